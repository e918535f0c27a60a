package devices

import "github.com/niracler/zigbee-herdsman-converters/internal/convert"

const (
	accessStateSet = convert.AccessState | convert.AccessSet
	accessStateGet = convert.AccessState | convert.AccessGet
)

// Climate groups thermostat features into one composite expose.
func Climate(features ...convert.Expose) convert.Expose {
	return convert.Expose{Type: convert.ExposeClimate, Features: features}
}

func LocalTemperatureExpose() convert.Expose {
	return convert.NumericExpose("local_temperature", accessStateGet).
		WithUnit("°C").
		WithDescription("Current temperature measured on the device")
}

func SetpointExpose(name string, min, max, step float64) convert.Expose {
	return convert.NumericExpose(name, convert.AccessAll).WithRange(min, max, step).WithUnit("°C")
}

func SystemModeExpose(values ...string) convert.Expose {
	return convert.EnumExpose("system_mode", convert.AccessAll, values).WithDescription("Mode of this device")
}

func PresetExpose(values ...string) convert.Expose {
	return convert.EnumExpose("preset", accessStateSet, values).WithDescription("Mode of this device (similar to system_mode)")
}

func FanModeExpose(values ...string) convert.Expose {
	return convert.EnumExpose("fan_mode", convert.AccessAll, values).WithDescription("Mode of the fan")
}

func SwingModeExpose(access int, values ...string) convert.Expose {
	return convert.EnumExpose("swing_mode", access, values).WithDescription("Swing mode")
}

func ProgrammingOperationModeExpose() convert.Expose {
	return convert.EnumExpose("programming_operation_mode", convert.AccessAll, ProgrammingOperationModes.Keys()).
		WithDescription("Controls how programming affects the thermostat. Possible values: setpoint (only use specified setpoint), " +
			"schedule (follow programmed setpoint schedule), schedule_with_preheat, eco (use eco setpoint).")
}

func BatteryExpose() convert.Expose {
	return convert.NumericExpose("battery", accessStateGet).
		WithRange(0, 100, 1).
		WithUnit("%").
		WithDescription("Remaining battery in %")
}

func ActionExpose(values ...string) convert.Expose {
	return convert.EnumExpose("action", convert.AccessState, values).WithDescription("Triggered action (e.g. a button click)")
}
