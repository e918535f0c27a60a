package clusters

import "github.com/niracler/zigbee-herdsman-converters/internal/zcl"

var PowerConfiguration = zcl.ClusterDef{
	ID:  0x0001,
	Key: "genPowerCfg",
	Attributes: []zcl.AttributeDef{
		{ID: 0x0000, Key: "mainsVoltage", Type: zcl.TypeUint16, Access: zcl.AccessRead},
		{ID: 0x0020, Key: "batteryVoltage", Type: zcl.TypeUint8, Access: zcl.AccessRead | zcl.AccessReport},
		{ID: 0x0021, Key: "batteryPercentageRemaining", Type: zcl.TypeUint8, Access: zcl.AccessRead | zcl.AccessReport},
		{ID: 0x0031, Key: "batterySize", Type: zcl.TypeEnum8, Access: zcl.AccessRead | zcl.AccessWrite},
		{ID: 0x0033, Key: "batteryQuantity", Type: zcl.TypeUint8, Access: zcl.AccessRead | zcl.AccessWrite},
		{ID: 0x003E, Key: "batteryAlarmState", Type: zcl.TypeBitmap32, Access: zcl.AccessRead | zcl.AccessReport},
	},
}
