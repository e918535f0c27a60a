package zcl

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Registry holds all known ZCL cluster definitions, indexed by ID and key.
type Registry struct {
	mu       sync.RWMutex
	clusters map[uint16]*ClusterDef
	byKey    map[string]uint16
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		clusters: make(map[uint16]*ClusterDef),
		byKey:    make(map[string]uint16),
		logger:   logger,
	}
}

// Register adds a cluster definition to the registry. Registering an ID
// twice merges the new attributes and commands into the existing entry.
func (r *Registry) Register(c ClusterDef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.clusters[c.ID]; ok {
		existing.Merge(&c)
		r.logger.Debug("cluster merged", "id", fmt.Sprintf("0x%04X", c.ID), "key", existing.Key)
		return
	}
	r.clusters[c.ID] = c.DeepCopy()
	if c.Key != "" {
		r.byKey[c.Key] = c.ID
	}
	r.logger.Debug("cluster registered", "id", fmt.Sprintf("0x%04X", c.ID), "key", c.Key)
}

// Get returns a cluster definition by ID, or nil if not found.
// The returned value is a deep copy; callers may modify it safely.
func (r *Registry) Get(id uint16) *ClusterDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := r.clusters[id]
	if c == nil {
		return nil
	}
	return c.DeepCopy()
}

// Lookup returns a cluster definition by key (e.g. "hvacThermostat").
func (r *Registry) Lookup(key string) *ClusterDef {
	r.mu.RLock()
	id, ok := r.byKey[key]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	return r.Get(id)
}

// ResolveAttribute resolves a cluster key and attribute key to their
// definitions.
func (r *Registry) ResolveAttribute(clusterKey, attrKey string) (*ClusterDef, *AttributeDef, error) {
	c := r.Lookup(clusterKey)
	if c == nil {
		return nil, nil, fmt.Errorf("unknown cluster %q", clusterKey)
	}
	a := c.AttributeByKey(attrKey)
	if a == nil {
		return c, nil, fmt.Errorf("unknown attribute %q in cluster %s", attrKey, clusterKey)
	}
	return c, a, nil
}

// All returns all registered cluster definitions ordered by ID.
// Each entry is a deep copy; callers may modify them safely.
func (r *Registry) All() []ClusterDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]ClusterDef, 0, len(r.clusters))
	for _, c := range r.clusters {
		result = append(result, *c.DeepCopy())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}
