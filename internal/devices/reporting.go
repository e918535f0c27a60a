package devices

import (
	"context"
	"fmt"

	"github.com/niracler/zigbee-herdsman-converters/internal/convert"
	"github.com/niracler/zigbee-herdsman-converters/internal/zcl"
	"github.com/niracler/zigbee-herdsman-converters/internal/zcl/clusters"
)

// Reporting intervals in seconds.
const (
	intervalHour = 3600
	intervalMax  = 62000
)

// Bind binds each cluster on ep to the coordinator, in order. Repeated
// clusters are bound once.
func Bind(ctx context.Context, ep convert.Endpoint, clusterKeys ...string) error {
	seen := make(map[uint16]bool, len(clusterKeys))
	for _, key := range clusterKeys {
		c, err := clusterDef(key)
		if err != nil {
			return err
		}
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		if err := ep.Bind(ctx, c.ID); err != nil {
			return fmt.Errorf("bind %s on endpoint %d: %w", key, ep.ID(), err)
		}
	}
	return nil
}

func clusterDef(key string) (*zcl.ClusterDef, error) {
	for i := range clusters.All {
		if clusters.All[i].Key == key {
			return &clusters.All[i], nil
		}
	}
	return nil, fmt.Errorf("unknown cluster %q", key)
}

// Report configures reporting for a single attribute.
func Report(ctx context.Context, ep convert.Endpoint, clusterKey, attrKey string, min, max uint16, change any) error {
	c, err := clusterDef(clusterKey)
	if err != nil {
		return err
	}
	a := c.AttributeByKey(attrKey)
	if a == nil {
		return fmt.Errorf("unknown attribute %q in cluster %s", attrKey, clusterKey)
	}
	cfg := zcl.ReportingConfig{AttrID: a.ID, Type: a.Type, MinInterval: min, MaxInterval: max, ReportableChange: change}
	if err := ep.ConfigureReporting(ctx, c.ID, []zcl.ReportingConfig{cfg}, a.ManufacturerCode); err != nil {
		return fmt.Errorf("configure reporting %s.%s: %w", clusterKey, attrKey, err)
	}
	return nil
}

// ThermostatTemperature reports localTemp on 0.1 °C changes, hourly at least.
func ThermostatTemperature(ctx context.Context, ep convert.Endpoint) error {
	return Report(ctx, ep, "hvacThermostat", "localTemp", 0, intervalHour, 10)
}

// ThermostatOccupiedCoolingSetpoint reports occupiedCoolingSetpoint changes.
func ThermostatOccupiedCoolingSetpoint(ctx context.Context, ep convert.Endpoint) error {
	return Report(ctx, ep, "hvacThermostat", "occupiedCoolingSetpoint", 0, intervalHour, 10)
}

// ThermostatOccupiedHeatingSetpoint reports occupiedHeatingSetpoint changes.
func ThermostatOccupiedHeatingSetpoint(ctx context.Context, ep convert.Endpoint) error {
	return Report(ctx, ep, "hvacThermostat", "occupiedHeatingSetpoint", 0, intervalHour, 10)
}

// ThermostatSystemMode reports systemMode changes.
func ThermostatSystemMode(ctx context.Context, ep convert.Endpoint) error {
	return Report(ctx, ep, "hvacThermostat", "systemMode", 10, intervalHour, nil)
}

// FanModeReporting reports fanMode changes.
func FanModeReporting(ctx context.Context, ep convert.Endpoint) error {
	return Report(ctx, ep, "hvacFanCtrl", "fanMode", 0, intervalHour, nil)
}

// BatteryPercentageRemaining reports battery level hourly to daily.
func BatteryPercentageRemaining(ctx context.Context, ep convert.Endpoint) error {
	return Report(ctx, ep, "genPowerCfg", "batteryPercentageRemaining", intervalHour, intervalMax, 0)
}

// Reporters maps reporting helper names to helpers, for external converters.
var Reporters = map[string]func(context.Context, convert.Endpoint) error{
	"thermostat_temperature":               ThermostatTemperature,
	"thermostat_occupied_cooling_setpoint": ThermostatOccupiedCoolingSetpoint,
	"thermostat_occupied_heating_setpoint": ThermostatOccupiedHeatingSetpoint,
	"thermostat_system_mode":               ThermostatSystemMode,
	"fan_mode":                             FanModeReporting,
	"battery_percentage_remaining":         BatteryPercentageRemaining,
}
