package clusters

import "github.com/niracler/zigbee-herdsman-converters/internal/zcl"

var Identify = zcl.ClusterDef{
	ID:  0x0003,
	Key: "genIdentify",
	Attributes: []zcl.AttributeDef{
		{ID: 0x0000, Key: "identifyTime", Type: zcl.TypeUint16, Access: zcl.AccessRead | zcl.AccessWrite},
	},
	Commands: []zcl.CommandDef{
		{ID: 0x00, Key: "identify", Direction: zcl.DirectionToServer, Params: []zcl.ParamDef{{Key: "identifytime", Type: zcl.TypeUint16}}},
		{ID: 0x01, Key: "identifyQuery", Direction: zcl.DirectionToServer},
	},
}
