//go:build !no_mqtt

package mqtt

import (
	"fmt"
	"strings"

	"github.com/niracler/zigbee-herdsman-converters/internal/convert"
	"github.com/niracler/zigbee-herdsman-converters/internal/store"
)

// discoveryMsg is a Home Assistant MQTT discovery payload.
type discoveryMsg struct {
	Topic   string // e.g. "homeassistant/select/zigbee_00124b.../preset/config"
	Payload []byte // JSON, empty means delete
}

// haDevice is the "device" block in HA discovery.
type haDevice struct {
	Identifiers  []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name"`
}

// haDiscovery is a generic HA discovery payload.
type haDiscovery struct {
	Name              string   `json:"name"`
	UniqueID          string   `json:"unique_id"`
	StateTopic        string   `json:"state_topic"`
	CommandTopic      string   `json:"command_topic,omitempty"`
	CommandTemplate   string   `json:"command_template,omitempty"`
	AvailabilityTopic string   `json:"availability_topic"`
	ValueTemplate     string   `json:"value_template,omitempty"`
	UnitOfMeasurement string   `json:"unit_of_measurement,omitempty"`
	DeviceClass       string   `json:"device_class,omitempty"`
	StateClass        string   `json:"state_class,omitempty"`
	PayloadOn         string   `json:"payload_on,omitempty"`
	PayloadOff        string   `json:"payload_off,omitempty"`
	StateOn           string   `json:"state_on,omitempty"`
	StateOff          string   `json:"state_off,omitempty"`
	Options           []string `json:"options,omitempty"`
	Min               *float64 `json:"min,omitempty"`
	Max               *float64 `json:"max,omitempty"`
	Step              *float64 `json:"step,omitempty"`
	Device            haDevice `json:"device"`
}

// deviceIdentifier returns the unique identifier for HA device registry.
func deviceIdentifier(dev *store.Device) string {
	return "zigbee_" + dev.IEEEAddress
}

// deviceTopicName returns the topic name for a device (friendly name or IEEE).
func deviceTopicName(dev *store.Device) string {
	if dev.FriendlyName != "" {
		name := strings.ToLower(dev.FriendlyName)
		name = strings.Map(func(r rune) rune {
			if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
				return r
			}
			return '_'
		}, name)
		return name
	}
	return dev.IEEEAddress
}

// flatExposes lists leaf exposes; composite exposes contribute their features.
func flatExposes(exposes []convert.Expose) []convert.Expose {
	var out []convert.Expose
	for _, e := range exposes {
		if len(e.Features) > 0 {
			out = append(out, flatExposes(e.Features)...)
			continue
		}
		if e.Property != "" {
			out = append(out, e)
		}
	}
	return out
}

// component returns the HA component an expose maps to.
func component(e convert.Expose) string {
	switch e.Type {
	case convert.ExposeBinary:
		if e.Settable() {
			return "switch"
		}
		return "binary_sensor"
	case convert.ExposeEnum:
		if e.Settable() {
			return "select"
		}
	case convert.ExposeNumeric:
		if e.Settable() {
			return "number"
		}
	}
	return "sensor"
}

// buildDiscovery generates HA discovery messages for a device from its
// profile's exposes.
func buildDiscovery(dev *store.Device, p *convert.Profile, prefix string) []discoveryMsg {
	avail := prefix + "/bridge/state"
	stateTopic := prefix + "/" + deviceTopicName(dev)
	cmdTopic := stateTopic + "/set"
	nodeID := deviceIdentifier(dev)
	displayName := dev.Name()

	haDev := haDevice{
		Identifiers:  []string{nodeID},
		Manufacturer: p.Vendor,
		Model:        p.Model,
		Name:         displayName,
	}

	var msgs []discoveryMsg
	for _, e := range flatExposes(p.Exposes) {
		comp := component(e)
		payload := haDiscovery{
			Name:              displayName + " " + humanize(e.Name),
			UniqueID:          nodeID + "_" + e.Property,
			StateTopic:        stateTopic,
			AvailabilityTopic: avail,
			ValueTemplate:     fmt.Sprintf("{{ value_json.%s }}", e.Property),
			UnitOfMeasurement: e.Unit,
			Device:            haDev,
		}
		switch comp {
		case "switch", "binary_sensor":
			payload.ValueTemplate = fmt.Sprintf("{{ value_json.%s | tojson }}", e.Property)
			payload.StateOn = string(mustJSON(e.ValueOn))
			payload.StateOff = string(mustJSON(e.ValueOff))
			if comp == "switch" {
				payload.CommandTopic = cmdTopic
				payload.PayloadOn = string(mustJSON(map[string]any{e.Property: e.ValueOn}))
				payload.PayloadOff = string(mustJSON(map[string]any{e.Property: e.ValueOff}))
			}
		case "select":
			payload.CommandTopic = cmdTopic
			payload.CommandTemplate = fmt.Sprintf(`{"%s": "{{ value }}"}`, e.Property)
			payload.Options = e.Values
		case "number":
			payload.CommandTopic = cmdTopic
			payload.CommandTemplate = fmt.Sprintf(`{"%s": {{ value }}}`, e.Property)
			payload.Min, payload.Max, payload.Step = e.ValueMin, e.ValueMax, e.ValueStep
		case "sensor":
			if e.Type == convert.ExposeNumeric {
				payload.StateClass = "measurement"
			}
			if e.Property == "battery" {
				payload.DeviceClass = "battery"
			}
		}
		msgs = append(msgs, discoveryMsg{
			Topic:   fmt.Sprintf("homeassistant/%s/%s/%s/config", comp, nodeID, e.Property),
			Payload: mustJSON(payload),
		})
	}

	// Link quality sensor for all devices.
	msgs = append(msgs, discoveryMsg{
		Topic: fmt.Sprintf("homeassistant/sensor/%s/linkquality/config", nodeID),
		Payload: mustJSON(haDiscovery{
			Name:              displayName + " Link Quality",
			UniqueID:          nodeID + "_linkquality",
			StateTopic:        stateTopic,
			AvailabilityTopic: avail,
			ValueTemplate:     "{{ value_json.linkquality }}",
			UnitOfMeasurement: "lqi",
			StateClass:        "measurement",
			Device:            haDev,
		}),
	})
	return msgs
}

// buildRemoveDiscovery generates empty retained messages removing every
// entity buildDiscovery published for the device.
func buildRemoveDiscovery(dev *store.Device, p *convert.Profile) []discoveryMsg {
	msgs := buildDiscovery(dev, p, "")
	for i := range msgs {
		msgs[i].Payload = nil
	}
	return msgs
}

// humanize turns "occupied_cooling_setpoint" into "Occupied cooling setpoint".
func humanize(name string) string {
	s := strings.ReplaceAll(name, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
