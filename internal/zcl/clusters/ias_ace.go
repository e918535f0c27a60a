package clusters

import "github.com/niracler/zigbee-herdsman-converters/internal/zcl"

// IASACE is the IAS Ancillary Control Equipment cluster. Keypads and remotes
// send commands to the server side; responses flow back to the client.
var IASACE = zcl.ClusterDef{
	ID:  0x0501,
	Key: "ssIasAce",
	Commands: []zcl.CommandDef{
		{ID: 0x00, Key: "arm", Direction: zcl.DirectionToServer, Params: []zcl.ParamDef{
			{Key: "armmode", Type: zcl.TypeEnum8},
			{Key: "code", Type: zcl.TypeCharStr},
			{Key: "zoneid", Type: zcl.TypeUint8},
		}},
		{ID: 0x01, Key: "bypass", Direction: zcl.DirectionToServer},
		{ID: 0x02, Key: "emergency", Direction: zcl.DirectionToServer},
		{ID: 0x03, Key: "fire", Direction: zcl.DirectionToServer},
		{ID: 0x04, Key: "panic", Direction: zcl.DirectionToServer},
		{ID: 0x07, Key: "getPanelStatus", Direction: zcl.DirectionToServer},
		{ID: 0x00, Key: "armRsp", Direction: zcl.DirectionToClient, Params: []zcl.ParamDef{
			{Key: "armnotification", Type: zcl.TypeEnum8},
		}},
		{ID: 0x04, Key: "panelStatusChanged", Direction: zcl.DirectionToClient, Params: []zcl.ParamDef{
			{Key: "panelstatus", Type: zcl.TypeEnum8},
			{Key: "secondsremain", Type: zcl.TypeUint8},
			{Key: "audiblenotif", Type: zcl.TypeEnum8},
			{Key: "alarmstatus", Type: zcl.TypeEnum8},
		}},
	},
}
