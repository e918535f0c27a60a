package clusters

import "github.com/niracler/zigbee-herdsman-converters/internal/zcl"

var Basic = zcl.ClusterDef{
	ID:  0x0000,
	Key: "genBasic",
	Attributes: []zcl.AttributeDef{
		{ID: 0x0000, Key: "zclVersion", Type: zcl.TypeUint8, Access: zcl.AccessRead},
		{ID: 0x0001, Key: "appVersion", Type: zcl.TypeUint8, Access: zcl.AccessRead},
		{ID: 0x0003, Key: "hwVersion", Type: zcl.TypeUint8, Access: zcl.AccessRead},
		{ID: 0x0004, Key: "manufacturerName", Type: zcl.TypeCharStr, Access: zcl.AccessRead},
		{ID: 0x0005, Key: "modelId", Type: zcl.TypeCharStr, Access: zcl.AccessRead},
		{ID: 0x0006, Key: "dateCode", Type: zcl.TypeCharStr, Access: zcl.AccessRead},
		{ID: 0x0007, Key: "powerSource", Type: zcl.TypeEnum8, Access: zcl.AccessRead},
		{ID: 0x4000, Key: "swBuildId", Type: zcl.TypeCharStr, Access: zcl.AccessRead},
	},
	Commands: []zcl.CommandDef{
		{ID: 0x00, Key: "resetFactDefault", Direction: zcl.DirectionToServer},
	},
}
