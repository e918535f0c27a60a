package clusters

import "github.com/niracler/zigbee-herdsman-converters/internal/zcl"

var Diagnostics = zcl.ClusterDef{
	ID:  0x0B05,
	Key: "haDiagnostic",
	Attributes: []zcl.AttributeDef{
		{ID: 0x0000, Key: "numberOfResets", Type: zcl.TypeUint16, Access: zcl.AccessRead},
		{ID: 0x0104, Key: "macTxUcastRetry", Type: zcl.TypeUint16, Access: zcl.AccessRead},
		{ID: 0x0105, Key: "macTxUcastFail", Type: zcl.TypeUint16, Access: zcl.AccessRead},
		{ID: 0x010B, Key: "apsTxUcastFail", Type: zcl.TypeUint16, Access: zcl.AccessRead},
		{ID: 0x011C, Key: "lastMessageLqi", Type: zcl.TypeUint8, Access: zcl.AccessRead},
		{ID: 0x011D, Key: "lastMessageRssi", Type: zcl.TypeInt8, Access: zcl.AccessRead},
	},
}
