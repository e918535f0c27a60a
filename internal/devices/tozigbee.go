package devices

import (
	"math"

	"github.com/niracler/zigbee-herdsman-converters/internal/convert"
)

func read(cluster string, attrs ...string) func(string, *convert.Meta) ([]convert.Operation, error) {
	return func(string, *convert.Meta) ([]convert.Operation, error) {
		return []convert.Operation{convert.AttributeRead{Cluster: cluster, Attributes: attrs}}, nil
	}
}

// enumWrite builds a converter writing the table code of the selected token
// to a standard attribute.
func enumWrite(key, cluster, attr string, table convert.EnumTable, extra func(string) convert.State) convert.ToZigbee {
	return convert.ToZigbee{
		Keys:    []string{key},
		Accepts: table.Spec(),
		ConvertSet: func(key string, v any, _ *convert.Meta) (convert.Result, error) {
			token := v.(string)
			code, _ := table.Code(token)
			state := convert.State{key: token}
			if extra != nil {
				state.Merge(extra(token))
			}
			return convert.Result{
				Operations: []convert.Operation{convert.AttributeWrite{Cluster: cluster, Attribute: attr, Value: code}},
				State:      state,
			}, nil
		},
		ConvertGet: read(cluster, attr),
	}
}

// FanMode sets hvacFanCtrl.fanMode to one of modes.
func FanMode(modes ...string) convert.ToZigbee {
	return enumWrite("fan_mode", "hvacFanCtrl", "fanMode", FanModes.Only(modes...), func(mode string) convert.State {
		return convert.State{"fan_state": fanState(mode)}
	})
}

// SystemMode sets hvacThermostat.systemMode to one of modes.
func SystemMode(modes ...string) convert.ToZigbee {
	return enumWrite("system_mode", "hvacThermostat", "systemMode", SystemModes.Only(modes...), nil)
}

// ProgrammingOperationMode sets hvacThermostat.programingOperMode.
var ProgrammingOperationMode = enumWrite("programming_operation_mode", "hvacThermostat", "programingOperMode", ProgrammingOperationModes, nil)

// LocalTemperature reads hvacThermostat.localTemp; it cannot be set.
var LocalTemperature = convert.ToZigbee{
	Keys:       []string{"local_temperature"},
	ConvertGet: read("hvacThermostat", "localTemp"),
}

// setpointStep is the resolution thermostats accept for setpoints.
const setpointStep = 0.5

// setpoint builds a converter for a setpoint in degrees Celsius, written in
// hundredths.
func setpoint(key, attr string, min, max float64) convert.ToZigbee {
	return convert.ToZigbee{
		Keys:    []string{key},
		Accepts: convert.Numeric(min, max, setpointStep),
		ConvertSet: func(key string, v any, _ *convert.Meta) (convert.Result, error) {
			celsius := v.(float64)
			return convert.Result{
				Operations: []convert.Operation{convert.AttributeWrite{
					Cluster: "hvacThermostat", Attribute: attr, Value: int(math.Round(celsius * 100)),
				}},
				State: convert.State{key: celsius},
			}, nil
		},
		ConvertGet: read("hvacThermostat", attr),
	}
}

// OccupiedCoolingSetpoint sets hvacThermostat.occupiedCoolingSetpoint within [min, max].
func OccupiedCoolingSetpoint(min, max float64) convert.ToZigbee {
	return setpoint("occupied_cooling_setpoint", "occupiedCoolingSetpoint", min, max)
}

// OccupiedHeatingSetpoint sets hvacThermostat.occupiedHeatingSetpoint within [min, max].
func OccupiedHeatingSetpoint(min, max float64) convert.ToZigbee {
	return setpoint("occupied_heating_setpoint", "occupiedHeatingSetpoint", min, max)
}
