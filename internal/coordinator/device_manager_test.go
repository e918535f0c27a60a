package coordinator

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/niracler/zigbee-herdsman-converters/internal/devices"
	"github.com/niracler/zigbee-herdsman-converters/internal/ncp"
	"github.com/niracler/zigbee-herdsman-converters/internal/store"
	"github.com/niracler/zigbee-herdsman-converters/internal/zcl"
	"github.com/niracler/zigbee-herdsman-converters/internal/zcl/clusters"
)

const (
	naviclimIEEE = "00124b0001020304"
	remoteIEEE   = "a4c1380000000001"
)

// fakeNCP records requests and lets tests inject indications.
type fakeNCP struct {
	mu        sync.Mutex
	writes    []ncp.WriteAttributesRequest
	reads     []ncp.ReadAttributesRequest
	reporting []ncp.ConfigureReportingRequest
	binds     []ncp.BindRequest
	responses []ncp.DefaultResponseRequest

	readReply func(ncp.ReadAttributesRequest) []zcl.AttributeStatus
	writeErr  error
	bindErr   error

	onReport  func(ncp.AttributeReportEvent)
	onCommand func(ncp.ClusterCommandEvent)
}

var _ ncp.NCP = (*fakeNCP)(nil)

func (f *fakeNCP) Bind(_ context.Context, req ncp.BindRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.binds = append(f.binds, req)
	return f.bindErr
}

func (f *fakeNCP) ReadAttributes(_ context.Context, req ncp.ReadAttributesRequest) ([]zcl.AttributeStatus, error) {
	f.mu.Lock()
	f.reads = append(f.reads, req)
	reply := f.readReply
	f.mu.Unlock()
	if reply == nil {
		return nil, nil
	}
	return reply(req), nil
}

func (f *fakeNCP) WriteAttributes(_ context.Context, req ncp.WriteAttributesRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, req)
	return f.writeErr
}

func (f *fakeNCP) ConfigureReporting(_ context.Context, req ncp.ConfigureReportingRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reporting = append(f.reporting, req)
	return nil
}

func (f *fakeNCP) DefaultResponse(_ context.Context, req ncp.DefaultResponseRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, req)
	return nil
}

func (f *fakeNCP) OnAttributeReport(h func(ncp.AttributeReportEvent)) { f.onReport = h }
func (f *fakeNCP) OnClusterCommand(h func(ncp.ClusterCommandEvent))   { f.onCommand = h }
func (f *fakeNCP) Close() error                                        { return nil }

func newTestCoordinator(t *testing.T) (*Coordinator, *fakeNCP) {
	t.Helper()
	return newTestCoordinatorConfig(t, Config{Endpoint: 1})
}

func newTestCoordinatorConfig(t *testing.T, cfg Config) (*Coordinator, *fakeNCP) {
	t.Helper()
	logger := newTestLogger()

	st, err := store.NewBoltStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	registry := zcl.NewRegistry(logger)
	clusters.RegisterAll(registry)

	catalog, err := devices.NewCatalog(logger, devices.Builtin()...)
	if err != nil {
		t.Fatal(err)
	}

	backend := &fakeNCP{}
	c := New(backend, st, registry, catalog, NewEventBus(logger), cfg, logger)
	t.Cleanup(c.devices.waitConfigure)
	return c, backend
}

func registerNaviclim(t *testing.T, c *Coordinator) {
	t.Helper()
	err := c.Devices().RegisterDevice(&store.Device{
		IEEEAddress:  naviclimIEEE,
		ShortAddress: 0x1A2B,
		Manufacturer: "Atlantic Group",
		ZigbeeModel:  "Adapter Zigbee FUJITSU",
		FriendlyName: "living_room_ac",
		Endpoints: []store.Endpoint{
			{ID: 1, ProfileID: 0x0104, InClusters: []uint16{0x0003, 0x0201, 0x0202, 0xFC03}},
			{ID: 232, ProfileID: 0x0104, InClusters: []uint16{0x0B05}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func registerRemote(t *testing.T, c *Coordinator) {
	t.Helper()
	err := c.Devices().RegisterDevice(&store.Device{
		IEEEAddress:  remoteIEEE,
		ShortAddress: 0x2000,
		Manufacturer: "_TZ3000_0zrccfgx",
		ZigbeeModel:  "TS0215",
		Endpoints:    []store.Endpoint{{ID: 1, ProfileID: 0x0104, InClusters: []uint16{0x0001, 0x0501}}},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestRegisterDevice(t *testing.T) {
	c, _ := newTestCoordinator(t)

	var got Event
	c.Events().On(EventDeviceRegistered, func(e Event) { got = e })

	registerNaviclim(t, c)

	data, ok := got.Data.(map[string]any)
	if !ok {
		t.Fatalf("event data = %T", got.Data)
	}
	if data["model"] != "GW003-AS-IN-TE-FC" || data["supported"] != true {
		t.Errorf("event data = %v", data)
	}

	dev, err := c.Devices().Resolve("living_room_ac")
	if err != nil {
		t.Fatal(err)
	}
	if dev.IEEEAddress != naviclimIEEE {
		t.Errorf("ieee = %q", dev.IEEEAddress)
	}
	if dev.JoinedAt.IsZero() {
		t.Error("joined_at not set")
	}
	if ieee := c.Devices().lookupOrRebuild(0x1A2B); ieee != naviclimIEEE {
		t.Errorf("lookup 0x1A2B = %q", ieee)
	}
}

func TestRegisterDeviceRejectsBadIEEE(t *testing.T) {
	c, _ := newTestCoordinator(t)

	for _, ieee := range []string{"", "00124b", "not-an-address"} {
		if err := c.Devices().RegisterDevice(&store.Device{IEEEAddress: ieee}); err == nil {
			t.Errorf("RegisterDevice(%q) succeeded", ieee)
		}
	}
}

func TestRegisterUnsupportedDevice(t *testing.T) {
	c, _ := newTestCoordinator(t)

	var got Event
	c.Events().On(EventDeviceRegistered, func(e Event) { got = e })

	err := c.Devices().RegisterDevice(&store.Device{IEEEAddress: "0000000000000001", ZigbeeModel: "lumi.sensor"})
	if err != nil {
		t.Fatal(err)
	}
	if data := got.Data.(map[string]any); data["supported"] != false {
		t.Errorf("event data = %v", data)
	}

	_, err = c.SetProperties(context.Background(), "0000000000000001", map[string]any{"state": "ON"})
	if !errors.Is(err, ErrNoProfile) {
		t.Errorf("err = %v, want ErrNoProfile", err)
	}
}

func TestRegisterKeepsConfiguredForSameModel(t *testing.T) {
	c, _ := newTestCoordinator(t)
	registerNaviclim(t, c)

	if err := c.ConfigureDevice(context.Background(), "living_room_ac"); err != nil {
		t.Fatal(err)
	}
	registerNaviclim(t, c)

	dev, _ := c.Store().GetDevice(naviclimIEEE)
	if !dev.Configured {
		t.Error("re-registering the same model dropped the configured flag")
	}
}

func TestRegisterConfiguresOnJoin(t *testing.T) {
	c, backend := newTestCoordinatorConfig(t, Config{Endpoint: 1, ConfigureOnJoin: true})

	configured := make(chan Event, 2)
	c.Events().On(EventDeviceConfigured, func(e Event) { configured <- e })

	registerNaviclim(t, c)
	c.devices.waitConfigure()

	backend.mu.Lock()
	binds, reporting := len(backend.binds), len(backend.reporting)
	backend.mu.Unlock()
	if binds == 0 || reporting == 0 {
		t.Errorf("binds = %d, reporting = %d after register", binds, reporting)
	}
	if len(configured) != 1 {
		t.Errorf("configured events = %d, want 1", len(configured))
	}
	dev, _ := c.Store().GetDevice(naviclimIEEE)
	if !dev.Configured {
		t.Errorf("device = %+v", dev)
	}

	// A configured device is not configured again on re-registration.
	registerNaviclim(t, c)
	c.devices.waitConfigure()
	backend.mu.Lock()
	defer backend.mu.Unlock()
	if len(backend.binds) != binds {
		t.Errorf("binds = %d after re-register, want %d", len(backend.binds), binds)
	}
}

func TestRegisterSkipsConfigure(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		dev  *store.Device
	}{
		{"disabled", Config{Endpoint: 1}, &store.Device{IEEEAddress: remoteIEEE, ZigbeeModel: "TS0215", Manufacturer: "_TZ3000_0zrccfgx"}},
		{"unsupported", Config{Endpoint: 1, ConfigureOnJoin: true}, &store.Device{IEEEAddress: "0000000000000001", ZigbeeModel: "lumi.sensor"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, backend := newTestCoordinatorConfig(t, tt.cfg)
			if err := c.Devices().RegisterDevice(tt.dev); err != nil {
				t.Fatal(err)
			}
			c.devices.waitConfigure()
			backend.mu.Lock()
			defer backend.mu.Unlock()
			if len(backend.binds) != 0 {
				t.Errorf("binds = %d, want 0", len(backend.binds))
			}
		})
	}
}

func TestRegisterConfigureFailureRecorded(t *testing.T) {
	c, backend := newTestCoordinatorConfig(t, Config{Endpoint: 1, ConfigureOnJoin: true})
	backend.bindErr = errors.New("bind timeout")

	registerRemote(t, c)
	c.devices.waitConfigure()

	dev, err := c.Store().GetDevice(remoteIEEE)
	if err != nil {
		t.Fatal(err)
	}
	if dev.Configured || dev.ConfigureError == "" {
		t.Errorf("device = %+v", dev)
	}
}

func TestAddrIndexMovesWithShortAddress(t *testing.T) {
	c, _ := newTestCoordinator(t)
	dm := c.Devices()

	dm.updateAddrIndex("00158d00012a3b4c", 0x1234)
	dm.updateAddrIndex("00158d00012a3b4c", 0x5678)

	dm.addrMu.RLock()
	_, stale := dm.addrIndex[0x1234]
	current := dm.addrIndex[0x5678]
	dm.addrMu.RUnlock()

	if stale {
		t.Error("old short address still indexed")
	}
	if current != "00158d00012a3b4c" {
		t.Errorf("0x5678 = %q", current)
	}
}

func TestAddrIndexRebuild(t *testing.T) {
	c, _ := newTestCoordinator(t)
	dm := c.Devices()

	// Saved behind the manager's back.
	c.Store().SaveDevice(&store.Device{IEEEAddress: "aaaaaaaaaaaaaaaa", ShortAddress: 0x0001})
	c.Store().SaveDevice(&store.Device{IEEEAddress: "bbbbbbbbbbbbbbbb", ShortAddress: 0x0002})

	dm.RebuildAddrIndex()

	dm.addrMu.RLock()
	defer dm.addrMu.RUnlock()
	if ieee := dm.addrIndex[0x0001]; ieee != "aaaaaaaaaaaaaaaa" {
		t.Errorf("after rebuild, 0x0001 = %q", ieee)
	}
	if ieee := dm.addrIndex[0x0002]; ieee != "bbbbbbbbbbbbbbbb" {
		t.Errorf("after rebuild, 0x0002 = %q", ieee)
	}
}

func TestLookupOrRebuild(t *testing.T) {
	c, _ := newTestCoordinator(t)
	dm := c.Devices()

	c.Store().SaveDevice(&store.Device{IEEEAddress: "cccccccccccccccc", ShortAddress: 0x0003})

	if ieee := dm.lookupOrRebuild(0x0003); ieee != "cccccccccccccccc" {
		t.Errorf("lookupOrRebuild(0x0003) = %q", ieee)
	}
	// Second call hits the index.
	if ieee := dm.lookupOrRebuild(0x0003); ieee != "cccccccccccccccc" {
		t.Errorf("second lookupOrRebuild(0x0003) = %q", ieee)
	}
	if ieee := dm.lookupOrRebuild(0xDEAD); ieee != "" {
		t.Errorf("lookupOrRebuild(0xDEAD) = %q, want empty", ieee)
	}
}

func TestRemoveDevice(t *testing.T) {
	c, _ := newTestCoordinator(t)
	registerNaviclim(t, c)

	if _, err := c.SetProperties(context.Background(), "living_room_ac", map[string]any{"quiet_fan": true}); err != nil {
		t.Fatal(err)
	}

	var removed bool
	c.Events().On(EventDeviceRemoved, func(Event) { removed = true })

	if err := c.Devices().RemoveDevice("living_room_ac"); err != nil {
		t.Fatal(err)
	}
	if !removed {
		t.Error("no remove event")
	}
	if st := c.State(naviclimIEEE); len(st) != 0 {
		t.Errorf("state kept after remove: %v", st)
	}
	if _, err := c.Devices().Resolve(naviclimIEEE); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("resolve err = %v, want ErrNotFound", err)
	}
	if err := c.Devices().RemoveDevice(naviclimIEEE); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second remove err = %v, want ErrNotFound", err)
	}
}
