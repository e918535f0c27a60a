package clusters

import (
	"log/slog"
	"os"
	"testing"

	"github.com/niracler/zigbee-herdsman-converters/internal/zcl"
)

func TestRegisterAll(t *testing.T) {
	r := zcl.NewRegistry(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
	RegisterAll(r)

	if got := len(r.All()); got != len(All) {
		t.Fatalf("registered %d clusters, want %d", got, len(All))
	}

	tests := []struct {
		cluster string
		attr    string
		id      uint16
		typ     uint8
	}{
		{"hvacThermostat", "localTemp", 0x0000, zcl.TypeInt16},
		{"hvacThermostat", "occupiedCoolingSetpoint", 0x0011, zcl.TypeInt16},
		{"hvacThermostat", "systemMode", 0x001C, zcl.TypeEnum8},
		{"hvacThermostat", "programingOperMode", 0x0025, zcl.TypeBitmap8},
		{"hvacFanCtrl", "fanMode", 0x0000, zcl.TypeEnum8},
		{"genPowerCfg", "batteryPercentageRemaining", 0x0021, zcl.TypeUint8},
	}
	for _, tt := range tests {
		_, attr, err := r.ResolveAttribute(tt.cluster, tt.attr)
		if err != nil {
			t.Errorf("ResolveAttribute(%s, %s): %v", tt.cluster, tt.attr, err)
			continue
		}
		if attr.ID != tt.id || attr.Type != tt.typ {
			t.Errorf("%s.%s = 0x%04X/%s, want 0x%04X/%s", tt.cluster, tt.attr,
				attr.ID, zcl.TypeName(attr.Type), tt.id, zcl.TypeName(tt.typ))
		}
	}
}

func TestIASACEArmPayload(t *testing.T) {
	cmd := IASACE.FindCommand(0x00, zcl.DirectionToServer)
	if cmd == nil || cmd.Key != "arm" {
		t.Fatalf("arm command not found: %+v", cmd)
	}
	fields, err := cmd.DecodeCommand([]byte{0x03, 0x04, '1', '2', '3', '4', 0x00})
	if err != nil {
		t.Fatal(err)
	}
	if fields["armmode"] != uint8(3) || fields["code"] != "1234" || fields["zoneid"] != uint8(0) {
		t.Errorf("fields = %v", fields)
	}
}
