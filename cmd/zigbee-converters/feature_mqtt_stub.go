//go:build no_mqtt

package main

import (
	"log/slog"

	"github.com/niracler/zigbee-herdsman-converters/internal/coordinator"
)

type mqttStopper struct{}

func (m *mqttStopper) Stop() {}

func initMQTT(_ *coordinator.Coordinator, _ *Config, _ *slog.Logger) *mqttStopper {
	return &mqttStopper{}
}
