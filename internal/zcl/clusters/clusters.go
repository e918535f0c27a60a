// Package clusters holds the ZCL cluster definitions used by the device
// catalog.
package clusters

import "github.com/niracler/zigbee-herdsman-converters/internal/zcl"

// All lists every built-in cluster definition.
var All = []zcl.ClusterDef{
	Basic,
	PowerConfiguration,
	Identify,
	Thermostat,
	FanControl,
	IASACE,
	Diagnostics,
	PhilipsPrivate2,
}

// RegisterAll registers every built-in cluster with r.
func RegisterAll(r *zcl.Registry) {
	for _, c := range All {
		r.Register(c)
	}
}
