package clusters

import "github.com/niracler/zigbee-herdsman-converters/internal/zcl"

// PhilipsPrivate2 is the Signify private cluster 0xFC03. Some third-party
// bridges (e.g. the Atlantic Naviclim) expose it and expect it bound.
var PhilipsPrivate2 = zcl.ClusterDef{
	ID:  0xFC03,
	Key: "manuSpecificPhilips2",
	Attributes: []zcl.AttributeDef{
		{ID: 0x0002, Key: "state", Type: zcl.TypeOctetStr, Access: zcl.AccessRead | zcl.AccessWrite, ManufacturerCode: zcl.ManufacturerSignify},
	},
}
