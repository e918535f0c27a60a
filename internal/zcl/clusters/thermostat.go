package clusters

import "github.com/niracler/zigbee-herdsman-converters/internal/zcl"

var Thermostat = zcl.ClusterDef{
	ID:  0x0201,
	Key: "hvacThermostat",
	Attributes: []zcl.AttributeDef{
		{ID: 0x0000, Key: "localTemp", Type: zcl.TypeInt16, Access: zcl.AccessRead | zcl.AccessReport},
		{ID: 0x0003, Key: "absMinHeatSetpointLimit", Type: zcl.TypeInt16, Access: zcl.AccessRead},
		{ID: 0x0004, Key: "absMaxHeatSetpointLimit", Type: zcl.TypeInt16, Access: zcl.AccessRead},
		{ID: 0x0005, Key: "absMinCoolSetpointLimit", Type: zcl.TypeInt16, Access: zcl.AccessRead},
		{ID: 0x0006, Key: "absMaxCoolSetpointLimit", Type: zcl.TypeInt16, Access: zcl.AccessRead},
		{ID: 0x0007, Key: "pICoolingDemand", Type: zcl.TypeUint8, Access: zcl.AccessRead | zcl.AccessReport},
		{ID: 0x0008, Key: "pIHeatingDemand", Type: zcl.TypeUint8, Access: zcl.AccessRead | zcl.AccessReport},
		{ID: 0x0010, Key: "localTemperatureCalibration", Type: zcl.TypeInt8, Access: zcl.AccessRead | zcl.AccessWrite},
		{ID: 0x0011, Key: "occupiedCoolingSetpoint", Type: zcl.TypeInt16, Access: zcl.AccessRead | zcl.AccessWrite | zcl.AccessReport},
		{ID: 0x0012, Key: "occupiedHeatingSetpoint", Type: zcl.TypeInt16, Access: zcl.AccessRead | zcl.AccessWrite | zcl.AccessReport},
		{ID: 0x001B, Key: "ctrlSeqeOfOper", Type: zcl.TypeEnum8, Access: zcl.AccessRead | zcl.AccessWrite},
		{ID: 0x001C, Key: "systemMode", Type: zcl.TypeEnum8, Access: zcl.AccessRead | zcl.AccessWrite | zcl.AccessReport},
		{ID: 0x001E, Key: "runningMode", Type: zcl.TypeEnum8, Access: zcl.AccessRead},
		{ID: 0x0025, Key: "programingOperMode", Type: zcl.TypeBitmap8, Access: zcl.AccessRead | zcl.AccessWrite},
		{ID: 0x0029, Key: "runningState", Type: zcl.TypeBitmap16, Access: zcl.AccessRead | zcl.AccessReport},
	},
	Commands: []zcl.CommandDef{
		{ID: 0x00, Key: "setpointRaiseLower", Direction: zcl.DirectionToServer, Params: []zcl.ParamDef{
			{Key: "mode", Type: zcl.TypeEnum8},
			{Key: "amount", Type: zcl.TypeInt8},
		}},
	},
}
