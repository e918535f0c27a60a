package devices

import (
	"context"
	"log/slog"

	"github.com/niracler/zigbee-herdsman-converters/internal/convert"
	"github.com/niracler/zigbee-herdsman-converters/internal/zcl"
)

// Atlantic vendor attributes on hvacThermostat and hvacFanCtrl.
const (
	atlanticAttrBoost          uint16 = 17008
	atlanticAttrLouverPosition uint16 = 17011
	atlanticAttrSwing          uint16 = 17012
	atlanticAttrActivity       uint16 = 17013
	atlanticAttrQuietFan       uint16 = 0x1000
)

// LouverPositions are the Naviclim louver positions.
var LouverPositions = convert.EnumTable{
	"quarter_open":        1,
	"half_open":           2,
	"three_quarters_open": 3,
	"fully_open":          4,
}

var (
	naviclimSystemModes = []string{"off", "heat", "cool", "auto", "dry", "fan_only"}
	naviclimFanModes    = []string{"low", "medium", "high", "auto"}
)

func atlanticWrite(cluster string, attr uint16, typ uint8, value any) convert.ManufacturerWrite {
	return convert.ManufacturerWrite{
		Cluster:          cluster,
		AttrID:           attr,
		Type:             typ,
		Value:            value,
		ManufacturerCode: zcl.ManufacturerAtlanticGroup,
	}
}

func flag(b bool) int {
	if b {
		return 1
	}
	return 0
}

var atlanticQuietFan = convert.ToZigbee{
	Keys:    []string{"quiet_fan"},
	Accepts: convert.Bool(),
	ConvertSet: func(key string, v any, _ *convert.Meta) (convert.Result, error) {
		on := v.(bool)
		return convert.Result{
			Operations: []convert.Operation{atlanticWrite("hvacFanCtrl", atlanticAttrQuietFan, zcl.TypeBool, flag(on))},
			State:      convert.State{key: on},
		}, nil
	},
}

var atlanticLouverPosition = convert.ToZigbee{
	Keys:    []string{"ac_louver_position"},
	Accepts: LouverPositions.Spec(),
	ConvertSet: func(key string, v any, _ *convert.Meta) (convert.Result, error) {
		pos := v.(string)
		code, _ := LouverPositions.Code(pos)
		return convert.Result{
			Operations: []convert.Operation{atlanticWrite("hvacThermostat", atlanticAttrLouverPosition, zcl.TypeEnum8, code)},
			State:      convert.State{key: pos},
		}, nil
	},
}

// atlanticPreset drives three independent device flags. Selecting one preset
// asserts its flag and clears the other two, always writing all three in the
// same order, so a repeated request is idempotent.
var atlanticPreset = convert.ToZigbee{
	Keys:    []string{"preset"},
	Accepts: convert.Enum("activity", "boost", "eco", "none"),
	// none clears all three flags; the device reports no matching preset.
	Unexposed: []string{"none"},
	ConvertSet: func(key string, v any, _ *convert.Meta) (convert.Result, error) {
		preset := v.(string)
		eco := 0
		if preset == "eco" {
			eco = ProgrammingOperationModes["eco"]
		}
		return convert.Result{
			Operations: []convert.Operation{
				atlanticWrite("hvacThermostat", atlanticAttrActivity, zcl.TypeEnum8, flag(preset == "activity")),
				convert.AttributeWrite{Cluster: "hvacThermostat", Attribute: "programingOperMode", Value: eco},
				atlanticWrite("hvacThermostat", atlanticAttrBoost, zcl.TypeBool, flag(preset == "boost")),
			},
			State: convert.State{key: preset},
		}, nil
	},
}

var atlanticSwingMode = convert.ToZigbee{
	Keys:    []string{"swing_mode"},
	Accepts: convert.Enum("on", "off"),
	ConvertSet: func(key string, v any, _ *convert.Meta) (convert.Result, error) {
		mode := v.(string)
		return convert.Result{
			Operations: []convert.Operation{atlanticWrite("hvacThermostat", atlanticAttrSwing, zcl.TypeBool, flag(mode == "on"))},
			State:      convert.State{key: mode},
		}, nil
	},
}

func configureAtlantic(ctx context.Context, dev convert.Device, logger *slog.Logger) error {
	ep1, err := dev.Endpoint(1)
	if err != nil {
		return err
	}
	if err := Bind(ctx, ep1, "hvacFanCtrl", "genIdentify", "hvacFanCtrl", "hvacThermostat", "manuSpecificPhilips2"); err != nil {
		return err
	}
	if err := ThermostatTemperature(ctx, ep1); err != nil {
		return err
	}
	if err := ThermostatOccupiedCoolingSetpoint(ctx, ep1); err != nil {
		return err
	}
	if err := ThermostatSystemMode(ctx, ep1); err != nil {
		return err
	}

	ep232, err := dev.Endpoint(232)
	if err != nil {
		return err
	}
	if err := Bind(ctx, ep232, "haDiagnostic"); err != nil {
		return err
	}
	logger.Debug("naviclim configured", "ieee", dev.IEEE())
	return nil
}

// AtlanticNaviclim is the Atlantic Group Naviclim interface for Takao air
// conditioners.
func AtlanticNaviclim() *convert.Profile {
	return &convert.Profile{
		ZigbeeModel: []string{"Adapter Zigbee FUJITSU"},
		Model:       "GW003-AS-IN-TE-FC",
		Vendor:      "Atlantic Group",
		Description: "Interface Naviclim for Takao air conditioners",
		FromZigbee:  []convert.FromZigbee{Thermostat, Fan},
		ToZigbee: []convert.ToZigbee{
			atlanticLouverPosition,
			atlanticPreset,
			atlanticQuietFan,
			atlanticSwingMode,
			FanMode(naviclimFanModes...),
			LocalTemperature,
			OccupiedCoolingSetpoint(18, 30),
			OccupiedHeatingSetpoint(16, 30),
			ProgrammingOperationMode,
			SystemMode(naviclimSystemModes...),
		},
		Exposes: []convert.Expose{
			ProgrammingOperationModeExpose(),
			Climate(
				LocalTemperatureExpose(),
				SetpointExpose("occupied_cooling_setpoint", 18, 30, 0.5),
				SetpointExpose("occupied_heating_setpoint", 16, 30, 0.5),
				SystemModeExpose(naviclimSystemModes...),
				PresetExpose("activity", "boost", "eco"),
				FanModeExpose(naviclimFanModes...),
				SwingModeExpose(accessStateSet, "on", "off"),
			),
			convert.Binary("quiet_fan", accessStateSet, true, false).WithDescription("Fan quiet mode"),
			convert.EnumExpose("ac_louver_position", accessStateSet, LouverPositions.Keys()).
				WithDescription("Ac louver position of this device"),
		},
		Configure: configureAtlantic,
	}
}
