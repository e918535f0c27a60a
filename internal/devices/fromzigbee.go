package devices

import (
	"math"

	"github.com/niracler/zigbee-herdsman-converters/internal/convert"
	"github.com/niracler/zigbee-herdsman-converters/internal/zcl"
)

var foundationTypes = []string{convert.TypeAttributeReport, convert.TypeReadResponse}

// Thermostat converts hvacThermostat reports into climate state.
var Thermostat = convert.FromZigbee{
	Cluster: "hvacThermostat",
	Types:   foundationTypes,
	Convert: func(msg *convert.Message, _ *convert.Meta) convert.State {
		s := convert.State{}
		if v, ok := number(msg.Data, "localTemp"); ok && v != -32768 {
			s["local_temperature"] = round(v/100, 2)
		}
		if v, ok := number(msg.Data, "localTemperatureCalibration"); ok {
			s["local_temperature_calibration"] = round(v/10, 1)
		}
		if v, ok := number(msg.Data, "occupiedCoolingSetpoint"); ok {
			s["occupied_cooling_setpoint"] = round(v/100, 2)
		}
		if v, ok := number(msg.Data, "occupiedHeatingSetpoint"); ok {
			s["occupied_heating_setpoint"] = round(v/100, 2)
		}
		if v, ok := number(msg.Data, "systemMode"); ok {
			if name, known := SystemModes.Name(int(v)); known {
				s["system_mode"] = name
			}
		}
		if v, ok := number(msg.Data, "runningState"); ok {
			s["running_state"] = runningState(int(v))
		}
		if v, ok := number(msg.Data, "programingOperMode"); ok {
			if name, known := ProgrammingOperationModes.Name(int(v)); known {
				s["programming_operation_mode"] = name
			}
		}
		if v, ok := number(msg.Data, "pIHeatingDemand"); ok {
			s["pi_heating_demand"] = v
		}
		if v, ok := number(msg.Data, "pICoolingDemand"); ok {
			s["pi_cooling_demand"] = v
		}
		return s
	},
}

func runningState(bits int) string {
	switch {
	case bits&0x0001 != 0:
		return "heat"
	case bits&0x0002 != 0:
		return "cool"
	case bits&0x0004 != 0:
		return "fan_only"
	}
	return "idle"
}

// Fan converts hvacFanCtrl reports.
var Fan = convert.FromZigbee{
	Cluster: "hvacFanCtrl",
	Types:   foundationTypes,
	Convert: func(msg *convert.Message, _ *convert.Meta) convert.State {
		v, ok := number(msg.Data, "fanMode")
		if !ok {
			return nil
		}
		name, known := FanModes.Name(int(v))
		if !known {
			return nil
		}
		return convert.State{"fan_mode": name, "fan_state": fanState(name)}
	},
}

func fanState(mode string) string {
	if mode == "off" {
		return "OFF"
	}
	return "ON"
}

// Battery converts genPowerCfg reports. The percentage attribute counts in
// half-percent steps.
var Battery = convert.FromZigbee{
	Cluster: "genPowerCfg",
	Types:   foundationTypes,
	Convert: func(msg *convert.Message, _ *convert.Meta) convert.State {
		s := convert.State{}
		if v, ok := number(msg.Data, "batteryPercentageRemaining"); ok && v != 255 {
			s["battery"] = math.Min(100, math.Round(v/2))
		}
		if v, ok := number(msg.Data, "batteryVoltage"); ok && v != 255 {
			s["voltage"] = v * 100 // mV
		}
		if v, ok := number(msg.Data, "batteryAlarmState"); ok {
			s["battery_low"] = int64(v)&(1|1<<10|1<<20) != 0
		}
		return s
	},
}

// CommandArm converts ssIasAce arm commands into actions.
var CommandArm = convert.FromZigbee{
	Cluster: "ssIasAce",
	Types:   []string{"commandArm"},
	Convert: func(msg *convert.Message, _ *convert.Meta) convert.State {
		mode, ok := number(msg.Data, "armmode")
		if !ok {
			return nil
		}
		action, known := ArmModes.Name(int(mode))
		if !known {
			return nil
		}
		s := convert.State{"action": action}
		if code, ok := msg.Data["code"].(string); ok {
			s["action_code"] = code
		}
		if zone, ok := number(msg.Data, "zoneid"); ok {
			s["action_zone"] = zone
		}
		return s
	},
}

// CommandEmergency converts ssIasAce emergency commands.
var CommandEmergency = convert.FromZigbee{
	Cluster: "ssIasAce",
	Types:   []string{"commandEmergency"},
	Convert: func(*convert.Message, *convert.Meta) convert.State {
		return convert.State{"action": "emergency"}
	},
}

func number(data map[string]any, key string) (float64, bool) {
	v, ok := data[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	i, ok := zcl.ToInt64(v)
	return float64(i), ok
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
