package coordinator

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/niracler/zigbee-herdsman-converters/internal/convert"
	"github.com/niracler/zigbee-herdsman-converters/internal/ncp"
	"github.com/niracler/zigbee-herdsman-converters/internal/store"
	"github.com/niracler/zigbee-herdsman-converters/internal/zcl"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestParseIEEE(t *testing.T) {
	want := [8]byte{0x00, 0x12, 0x4B, 0x00, 0x01, 0x02, 0x03, 0x04}
	for _, in := range []string{naviclimIEEE, "00:12:4B:00:01:02:03:04", "0x00124b0001020304"} {
		got, err := ParseIEEE(in)
		if err != nil || got != want {
			t.Errorf("ParseIEEE(%q) = %X, %v", in, got, err)
		}
	}
	for _, in := range []string{"", "00124b", "00124b000102030405", "zz124b0001020304"} {
		if _, err := ParseIEEE(in); err == nil {
			t.Errorf("ParseIEEE(%q) succeeded", in)
		}
	}
}

func TestEventBusDelivery(t *testing.T) {
	bus := NewEventBus(newTestLogger())

	var typed, all []string
	bus.On(EventDeviceRegistered, func(Event) { panic("handler bug") })
	offTyped := bus.On(EventDeviceRegistered, func(e Event) { typed = append(typed, e.Type) })
	offAll := bus.OnAll(func(e Event) { all = append(all, e.Type) })

	bus.Emit(Event{Type: EventDeviceRegistered})
	bus.Emit(Event{Type: EventDeviceRemoved})
	offTyped()
	offAll()
	bus.Emit(Event{Type: EventDeviceRegistered})

	if len(typed) != 1 || typed[0] != EventDeviceRegistered {
		t.Errorf("typed handler got %v", typed)
	}
	if len(all) != 2 || all[1] != EventDeviceRemoved {
		t.Errorf("catch-all handler got %v", all)
	}
}

func TestStateChangedAccumulates(t *testing.T) {
	c, backend := newTestCoordinator(t)
	registerNaviclim(t, c)

	var changes []StateChange
	c.Events().On(EventStateChanged, func(e Event) { changes = append(changes, e.Data.(StateChange)) })

	backend.onReport(ncp.AttributeReportEvent{
		SrcAddr:   0x1A2B,
		SrcEP:     1,
		ClusterID: 0x0202,
		Records:   []zcl.AttributeRecord{{ID: 0x0000, Type: zcl.TypeEnum8, Value: uint8(1)}},
		LQI:       90,
	})
	backend.onReport(ncp.AttributeReportEvent{
		SrcAddr:   0x1A2B,
		SrcEP:     1,
		ClusterID: 0x0201,
		Records:   []zcl.AttributeRecord{{ID: 0x0000, Type: zcl.TypeInt16, Value: int16(2150)}},
		LQI:       110,
	})

	if len(changes) != 2 {
		t.Fatalf("state events = %d, want 2", len(changes))
	}
	for _, ch := range changes {
		if ch.IEEE != naviclimIEEE || ch.Name != "living_room_ac" {
			t.Errorf("state event addressed to %s/%s", ch.IEEE, ch.Name)
		}
	}

	first := changes[0]
	if first.Patch["fan_mode"] != "low" || first.Patch["linkquality"] != uint8(90) {
		t.Errorf("first patch = %v", first.Patch)
	}

	second := changes[1]
	if _, ok := second.Patch["fan_mode"]; ok {
		t.Errorf("second patch repeats earlier keys: %v", second.Patch)
	}
	if second.Patch["local_temperature"] != 21.5 || second.Patch["linkquality"] != uint8(110) {
		t.Errorf("second patch = %v", second.Patch)
	}
	if second.State["fan_mode"] != "low" || second.State["local_temperature"] != 21.5 || second.State["linkquality"] != uint8(110) {
		t.Errorf("second state = %v", second.State)
	}

	// Snapshots are detached from the live state.
	first.State["fan_mode"] = "high"
	if st := c.State(naviclimIEEE); st["fan_mode"] != "low" {
		t.Errorf("live state changed through an event: %v", st)
	}
}

func TestSetPropertiesStateChange(t *testing.T) {
	c, _ := newTestCoordinator(t)
	registerNaviclim(t, c)

	var changes []StateChange
	c.Events().On(EventStateChanged, func(e Event) { changes = append(changes, e.Data.(StateChange)) })

	if _, err := c.SetProperties(context.Background(), naviclimIEEE, map[string]any{"occupied_heating_setpoint": 20.5}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.SetProperties(context.Background(), "living_room_ac", map[string]any{"preset": "boost"}); err != nil {
		t.Fatal(err)
	}

	if len(changes) != 2 {
		t.Fatalf("state events = %d, want 2", len(changes))
	}
	if p := changes[1].Patch; len(p) != 1 || p["preset"] != "boost" {
		t.Errorf("preset patch = %v", p)
	}
	if _, ok := changes[1].Patch["linkquality"]; ok {
		t.Error("set patch carries linkquality")
	}
	st := changes[1].State
	if st["occupied_heating_setpoint"] != 20.5 || st["preset"] != "boost" {
		t.Errorf("state = %v", st)
	}
}

func TestCommandMessageEvent(t *testing.T) {
	c, backend := newTestCoordinator(t)
	registerRemote(t, c)

	var order []string
	var msg MessageEvent
	c.Events().OnAll(func(e Event) {
		order = append(order, e.Type)
		if m, ok := e.Data.(MessageEvent); ok {
			msg = m
		}
	})

	backend.onCommand(ncp.ClusterCommandEvent{
		SrcAddr:   0x2000,
		SrcEP:     1,
		ClusterID: 0x0501,
		TSN:       0x10,
		CommandID: 0x00,
		Payload:   []byte{0x00},
	})

	if len(order) != 2 || order[0] != EventMessage || order[1] != EventStateChanged {
		t.Fatalf("events = %v, want message then state change", order)
	}
	if msg.IEEE != remoteIEEE || msg.Type != "commandArm" || msg.Cluster != "ssIasAce" || msg.Endpoint != 1 {
		t.Errorf("message = %+v", msg)
	}
	if msg.Data["armmode"] != uint8(0) {
		t.Errorf("message data = %v", msg.Data)
	}
	if st := c.State(remoteIEEE); st["action"] != "disarm" {
		t.Errorf("state = %v", st)
	}
}

func TestMessageEventForUnsupportedDevice(t *testing.T) {
	c, backend := newTestCoordinator(t)
	err := c.Devices().RegisterDevice(&store.Device{IEEEAddress: "0000000000000001", ShortAddress: 0x3000, ZigbeeModel: "lumi.sensor"})
	if err != nil {
		t.Fatal(err)
	}

	var messages []MessageEvent
	var changes int
	c.Events().On(EventMessage, func(e Event) { messages = append(messages, e.Data.(MessageEvent)) })
	c.Events().On(EventStateChanged, func(Event) { changes++ })

	backend.onReport(ncp.AttributeReportEvent{
		SrcAddr:   0x3000,
		SrcEP:     1,
		ClusterID: 0x0202,
		Records:   []zcl.AttributeRecord{{ID: 0x0000, Type: zcl.TypeEnum8, Value: uint8(2)}},
	})

	if len(messages) != 1 || messages[0].Type != convert.TypeAttributeReport || messages[0].Data["fanMode"] != uint8(2) {
		t.Errorf("messages = %+v", messages)
	}
	if changes != 0 {
		t.Errorf("state events = %d for a device without a profile", changes)
	}
}
