package devices

import "github.com/niracler/zigbee-herdsman-converters/internal/convert"

// Enumeration tables shared by converters and exposes. Tokens are lowercase.
var (
	SystemModes = convert.EnumTable{
		"off":               0,
		"auto":              1,
		"cool":              3,
		"heat":              4,
		"emergency_heating": 5,
		"precooling":        6,
		"fan_only":          7,
		"dry":               8,
		"sleep":             9,
	}

	FanModes = convert.EnumTable{
		"off":    0,
		"low":    1,
		"medium": 2,
		"high":   3,
		"on":     4,
		"auto":   5,
		"smart":  6,
	}

	ProgrammingOperationModes = convert.EnumTable{
		"setpoint":              0,
		"schedule":              1,
		"schedule_with_preheat": 3,
		"eco":                   4,
	}

	ArmModes = convert.EnumTable{
		"disarm":          0,
		"arm_day_zones":   1,
		"arm_night_zones": 2,
		"arm_all_zones":   3,
	}
)
