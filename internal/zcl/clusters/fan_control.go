package clusters

import "github.com/niracler/zigbee-herdsman-converters/internal/zcl"

var FanControl = zcl.ClusterDef{
	ID:  0x0202,
	Key: "hvacFanCtrl",
	Attributes: []zcl.AttributeDef{
		{ID: 0x0000, Key: "fanMode", Type: zcl.TypeEnum8, Access: zcl.AccessRead | zcl.AccessWrite | zcl.AccessReport},
		{ID: 0x0001, Key: "fanModeSequence", Type: zcl.TypeEnum8, Access: zcl.AccessRead | zcl.AccessWrite},
	},
}
