package convert

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/niracler/zigbee-herdsman-converters/internal/zcl"
)

// Target addresses a set or get request: the device's profile, the endpoint
// the operations go to, and the device's last known state.
type Target struct {
	Profile  *Profile
	Endpoint Endpoint
	State    State
}

// Outbound turns semantic set/get requests into ordered cluster operations
// and dispatches them.
type Outbound struct {
	registry *zcl.Registry
	logger   *slog.Logger
}

// NewOutbound creates an outbound translator resolving attribute names with
// registry.
func NewOutbound(registry *zcl.Registry, logger *slog.Logger) *Outbound {
	return &Outbound{registry: registry, logger: logger.With("component", "outbound")}
}

// resolved is an operation bound to wire identifiers.
type resolved struct {
	op        Operation
	clusterID uint16
	records   []zcl.AttributeRecord
	readIDs   []uint16
	mfrCode   uint16
}

// Set validates value for key, converts it and dispatches the resulting
// operations in order, awaiting each. It returns the mirrored state only if
// every operation succeeded; the first transport failure aborts the sequence
// and is returned as a *TransportError.
func (o *Outbound) Set(ctx context.Context, t Target, key string, value any) (State, error) {
	conv, ok := t.Profile.Converter(key)
	if !ok {
		return nil, fmt.Errorf("%s: %w for %s", key, ErrUnsupportedKey, t.Profile.Model)
	}
	if conv.ConvertSet == nil {
		return nil, fmt.Errorf("%s: %w", key, ErrNotSettable)
	}

	normalized, err := conv.Accepts.Normalize(key, value)
	if err != nil {
		return nil, err
	}

	meta := &Meta{Profile: t.Profile, State: t.State, Logger: o.logger}
	res, err := conv.ConvertSet(key, normalized, meta)
	if err != nil {
		return nil, fmt.Errorf("convert %s: %w", key, err)
	}

	ops, err := o.resolve(res.Operations)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	if err := o.dispatch(ctx, t.Endpoint, key, ops); err != nil {
		return nil, err
	}

	o.logger.Debug("set applied", "model", t.Profile.Model, "key", key, "value", normalized, "operations", len(ops))
	return res.State, nil
}

// SetMany applies every key of values in sorted key order. It stops at the
// first error and returns the state accumulated from the keys that fully
// succeeded, together with that error.
func (o *Outbound) SetMany(ctx context.Context, t Target, values map[string]any) (State, error) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	patch := State{}
	for _, k := range keys {
		st, err := o.Set(ctx, t, k, values[k])
		if err != nil {
			return patch, err
		}
		patch.Merge(st)
	}
	return patch, nil
}

// Get dispatches the read operations for key. The values arrive as read
// responses; the statuses of every read are returned for callers that feed
// them back through the inbound path.
func (o *Outbound) Get(ctx context.Context, t Target, key string) ([]ReadResult, error) {
	conv, ok := t.Profile.Converter(key)
	if !ok {
		return nil, fmt.Errorf("%s: %w for %s", key, ErrUnsupportedKey, t.Profile.Model)
	}
	if conv.ConvertGet == nil {
		return nil, fmt.Errorf("%s: %w: no get converter", key, ErrUnsupportedKey)
	}
	opsIn, err := conv.ConvertGet(key, &Meta{Profile: t.Profile, State: t.State, Logger: o.logger})
	if err != nil {
		return nil, fmt.Errorf("convert %s: %w", key, err)
	}
	ops, err := o.resolve(opsIn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}

	var results []ReadResult
	for i, r := range ops {
		if _, isRead := r.op.(AttributeRead); !isRead {
			return results, fmt.Errorf("%s: get converter emitted %s", key, r.op)
		}
		statuses, err := t.Endpoint.ReadAttributes(ctx, r.clusterID, r.readIDs, r.mfrCode)
		if err != nil {
			return results, &TransportError{Key: key, Operation: r.op, Index: i, Err: err}
		}
		results = append(results, ReadResult{ClusterID: r.clusterID, Statuses: statuses})
	}
	return results, nil
}

// ReadResult holds the attribute statuses of one dispatched read.
type ReadResult struct {
	ClusterID uint16
	Statuses  []zcl.AttributeStatus
}

// resolve binds every operation to wire identifiers before anything is sent,
// so a bad operation fails the request without partial dispatch.
func (o *Outbound) resolve(ops []Operation) ([]resolved, error) {
	out := make([]resolved, 0, len(ops))
	for _, op := range ops {
		switch v := op.(type) {
		case AttributeWrite:
			c, a, err := o.registry.ResolveAttribute(v.Cluster, v.Attribute)
			if err != nil {
				return nil, err
			}
			out = append(out, resolved{
				op:        v,
				clusterID: c.ID,
				records:   []zcl.AttributeRecord{{ID: a.ID, Type: a.Type, Value: v.Value}},
				mfrCode:   a.ManufacturerCode,
			})

		case ManufacturerWrite:
			if err := v.Validate(); err != nil {
				return nil, err
			}
			c := o.registry.Lookup(v.Cluster)
			if c == nil {
				return nil, fmt.Errorf("unknown cluster %q", v.Cluster)
			}
			out = append(out, resolved{
				op:        v,
				clusterID: c.ID,
				records:   []zcl.AttributeRecord{{ID: v.AttrID, Type: v.Type, Value: v.Value}},
				mfrCode:   v.ManufacturerCode,
			})

		case AttributeRead:
			c := o.registry.Lookup(v.Cluster)
			if c == nil {
				return nil, fmt.Errorf("unknown cluster %q", v.Cluster)
			}
			r := resolved{op: v, clusterID: c.ID}
			for _, name := range v.Attributes {
				a := c.AttributeByKey(name)
				if a == nil {
					return nil, fmt.Errorf("unknown attribute %q in cluster %s", name, v.Cluster)
				}
				r.readIDs = append(r.readIDs, a.ID)
				r.mfrCode = a.ManufacturerCode
			}
			out = append(out, r)

		default:
			return nil, fmt.Errorf("unsupported operation %T", op)
		}
	}
	return out, nil
}

func (o *Outbound) dispatch(ctx context.Context, ep Endpoint, key string, ops []resolved) error {
	for i, r := range ops {
		var err error
		if _, isRead := r.op.(AttributeRead); isRead {
			_, err = ep.ReadAttributes(ctx, r.clusterID, r.readIDs, r.mfrCode)
		} else {
			err = ep.WriteAttributes(ctx, r.clusterID, r.records, r.mfrCode)
		}
		if err != nil {
			o.logger.Warn("operation failed", "key", key, "op", r.op.String(), "index", i, "err", err)
			return &TransportError{Key: key, Operation: r.op, Index: i, Err: err}
		}
	}
	return nil
}
