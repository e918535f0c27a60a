// Package convert translates between semantic device state and ZCL cluster
// operations. Profiles are immutable after construction; Outbound and
// Inbound hold no per-request state and are safe for concurrent use.
package convert

import (
	"context"
	"log/slog"
	"maps"

	"github.com/niracler/zigbee-herdsman-converters/internal/zcl"
)

// State is a flat set of semantic device properties.
type State map[string]any

// Merge copies every entry of other into s.
func (s State) Merge(other State) {
	maps.Copy(s, other)
}

// Endpoint is the transport for a single device endpoint. Every call blocks
// until the device acknowledged the request or the transport gave up.
type Endpoint interface {
	ID() uint8
	WriteAttributes(ctx context.Context, clusterID uint16, records []zcl.AttributeRecord, manufacturerCode uint16) error
	ReadAttributes(ctx context.Context, clusterID uint16, attrIDs []uint16, manufacturerCode uint16) ([]zcl.AttributeStatus, error)
	ConfigureReporting(ctx context.Context, clusterID uint16, cfgs []zcl.ReportingConfig, manufacturerCode uint16) error
	// Bind binds clusterID on this endpoint to the coordinator.
	Bind(ctx context.Context, clusterID uint16) error
	DefaultResponse(ctx context.Context, clusterID uint16, commandID, status, tsn uint8) error
}

// Device gives a configure routine access to a device's endpoints.
type Device interface {
	IEEE() string
	Endpoint(id uint8) (Endpoint, error)
}

// Meta is the read-only context passed to converters.
type Meta struct {
	Profile *Profile
	State   State // last known state, may be nil
	Logger  *slog.Logger
}

// Result is the outcome of a successful ConvertSet.
type Result struct {
	Operations []Operation
	State      State
}

// ToZigbee converts a set request for one of Keys into cluster operations.
// ConvertSet receives the value already normalized against Accepts and must
// not perform I/O.
type ToZigbee struct {
	Keys    []string
	Accepts ValueSpec
	// Unexposed lists accepted enum values deliberately left out of the
	// key's expose.
	Unexposed  []string
	ConvertSet func(key string, value any, meta *Meta) (Result, error)
	ConvertGet func(key string, meta *Meta) ([]Operation, error)
}

// Message is an inbound attribute report, read response or cluster command.
type Message struct {
	// Type is "attributeReport", "readResponse" or "command<Name>" for
	// cluster commands (e.g. "commandArm").
	Type        string
	Cluster     string
	Data        map[string]any
	Endpoint    Endpoint
	TSN         uint8
	LinkQuality uint8
}

// Message types for foundation frames.
const (
	TypeAttributeReport = "attributeReport"
	TypeReadResponse    = "readResponse"
)

// FromZigbee converts matching inbound messages into state deltas. A nil
// return means the message carried nothing for this converter.
type FromZigbee struct {
	Cluster string
	Types   []string
	Convert func(msg *Message, meta *Meta) State
}

// Matches reports whether the converter handles msg.
func (c FromZigbee) Matches(msg *Message) bool {
	if c.Cluster != msg.Cluster {
		return false
	}
	for _, t := range c.Types {
		if t == msg.Type {
			return true
		}
	}
	return false
}

// ConfigureFunc prepares a freshly joined device (bindings, reporting).
type ConfigureFunc func(ctx context.Context, dev Device, logger *slog.Logger) error

// EventFunc observes every inbound message after the fromZigbee converters
// ran. It may issue transport calls through msg.Endpoint.
type EventFunc func(ctx context.Context, msg *Message) error

// Profile is a device definition: how one vendor product maps onto ZCL.
type Profile struct {
	ZigbeeModel []string `json:"zigbee_model"`
	Model       string   `json:"model"`
	Vendor      string   `json:"vendor"`
	Description string   `json:"description"`
	// Fingerprint is an optional expression over Model and Manufacturer,
	// evaluated when no ZigbeeModel entry matches.
	Fingerprint string   `json:"fingerprint,omitempty"`
	Exposes     []Expose `json:"exposes"`

	FromZigbee []FromZigbee  `json:"-"`
	ToZigbee   []ToZigbee    `json:"-"`
	Configure  ConfigureFunc `json:"-"`
	OnEvent    EventFunc     `json:"-"`
}

// Converter returns the outbound converter owning key.
func (p *Profile) Converter(key string) (*ToZigbee, bool) {
	for i := range p.ToZigbee {
		for _, k := range p.ToZigbee[i].Keys {
			if k == key {
				return &p.ToZigbee[i], true
			}
		}
	}
	return nil, false
}

// Expose returns the expose (or composite feature) whose property is key.
func (p *Profile) Expose(key string) (*Expose, bool) {
	return findExpose(p.Exposes, key)
}

func findExpose(exposes []Expose, key string) (*Expose, bool) {
	for i := range exposes {
		if exposes[i].Property == key {
			return &exposes[i], true
		}
		if e, ok := findExpose(exposes[i].Features, key); ok {
			return e, true
		}
	}
	return nil, false
}
