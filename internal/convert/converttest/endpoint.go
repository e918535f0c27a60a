// Package converttest provides a recording convert.Endpoint for tests.
package converttest

import (
	"context"
	"fmt"
	"sync"

	"github.com/niracler/zigbee-herdsman-converters/internal/convert"
	"github.com/niracler/zigbee-herdsman-converters/internal/zcl"
)

// Call kinds.
const (
	KindWrite           = "write"
	KindRead            = "read"
	KindReporting       = "reporting"
	KindBind            = "bind"
	KindDefaultResponse = "defaultResponse"
)

// Call is one recorded transport call.
type Call struct {
	Kind             string
	ClusterID        uint16
	Records          []zcl.AttributeRecord
	AttrIDs          []uint16
	Reporting        []zcl.ReportingConfig
	ManufacturerCode uint16
	CommandID        uint8
	Status           uint8
	TSN              uint8
}

// Endpoint records every call. Fail, when set, is consulted before each call
// is recorded as successful; a non-nil return fails that call.
type Endpoint struct {
	EP uint8

	// Fail receives the zero-based call index and the call.
	Fail func(n int, c Call) error
	// Reads answers read requests; nil yields success with no values.
	Reads func(clusterID uint16, attrIDs []uint16) []zcl.AttributeStatus

	mu    sync.Mutex
	calls []Call
}

// New returns an endpoint with the given ID.
func New(id uint8) *Endpoint {
	return &Endpoint{EP: id}
}

// FailAt returns a Fail func failing the n-th (zero-based) call with err.
func FailAt(n int, err error) func(int, Call) error {
	return func(i int, _ Call) error {
		if i == n {
			return err
		}
		return nil
	}
}

// Calls returns a copy of the recorded calls, failed ones included.
func (e *Endpoint) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

// Writes returns only the recorded write calls.
func (e *Endpoint) Writes() []Call {
	var out []Call
	for _, c := range e.Calls() {
		if c.Kind == KindWrite {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets the recorded calls.
func (e *Endpoint) Reset() {
	e.mu.Lock()
	e.calls = nil
	e.mu.Unlock()
}

func (e *Endpoint) record(c Call) error {
	e.mu.Lock()
	n := len(e.calls)
	e.calls = append(e.calls, c)
	fail := e.Fail
	e.mu.Unlock()
	if fail != nil {
		if err := fail(n, c); err != nil {
			return err
		}
	}
	return nil
}

func (e *Endpoint) ID() uint8 { return e.EP }

func (e *Endpoint) WriteAttributes(_ context.Context, clusterID uint16, records []zcl.AttributeRecord, mfr uint16) error {
	return e.record(Call{Kind: KindWrite, ClusterID: clusterID, Records: records, ManufacturerCode: mfr})
}

func (e *Endpoint) ReadAttributes(_ context.Context, clusterID uint16, attrIDs []uint16, mfr uint16) ([]zcl.AttributeStatus, error) {
	if err := e.record(Call{Kind: KindRead, ClusterID: clusterID, AttrIDs: attrIDs, ManufacturerCode: mfr}); err != nil {
		return nil, err
	}
	if e.Reads == nil {
		return nil, nil
	}
	return e.Reads(clusterID, attrIDs), nil
}

func (e *Endpoint) ConfigureReporting(_ context.Context, clusterID uint16, cfgs []zcl.ReportingConfig, mfr uint16) error {
	return e.record(Call{Kind: KindReporting, ClusterID: clusterID, Reporting: cfgs, ManufacturerCode: mfr})
}

func (e *Endpoint) Bind(_ context.Context, clusterID uint16) error {
	return e.record(Call{Kind: KindBind, ClusterID: clusterID})
}

func (e *Endpoint) DefaultResponse(_ context.Context, clusterID uint16, commandID, status, tsn uint8) error {
	return e.record(Call{Kind: KindDefaultResponse, ClusterID: clusterID, CommandID: commandID, Status: status, TSN: tsn})
}

var (
	_ convert.Endpoint = (*Endpoint)(nil)
	_ convert.Device   = (*Device)(nil)
)

// Device is a convert.Device over a fixed set of recording endpoints.
type Device struct {
	Addr      string
	Endpoints map[uint8]*Endpoint
}

// NewDevice returns a device with recording endpoints for each id.
func NewDevice(ieee string, ids ...uint8) *Device {
	d := &Device{Addr: ieee, Endpoints: make(map[uint8]*Endpoint)}
	for _, id := range ids {
		d.Endpoints[id] = New(id)
	}
	return d
}

func (d *Device) IEEE() string { return d.Addr }

// Endpoint returns the recording endpoint id.
func (d *Device) Endpoint(id uint8) (convert.Endpoint, error) {
	ep, ok := d.Endpoints[id]
	if !ok {
		return nil, fmt.Errorf("device %s has no endpoint %d", d.Addr, id)
	}
	return ep, nil
}
