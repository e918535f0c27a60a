package store

import "time"

// Device is the identity of a paired device: how to address it and which
// profile translates for it. Device state is never persisted.
type Device struct {
	IEEEAddress  string     `json:"ieee_address"`
	ShortAddress uint16     `json:"short_address"`
	Manufacturer string     `json:"manufacturer,omitempty"`
	ZigbeeModel  string     `json:"zigbee_model,omitempty"`
	FriendlyName string     `json:"friendly_name,omitempty"`
	Endpoints    []Endpoint `json:"endpoints,omitempty"`
	JoinedAt     time.Time  `json:"joined_at"`
	LastSeen     time.Time  `json:"last_seen"`
	LQI          uint8      `json:"lqi,omitempty"`

	// Set after the profile's configure routine ran.
	Configured     bool      `json:"configured"`
	ConfiguredAt   time.Time `json:"configured_at,omitempty"`
	ConfigureError string    `json:"configure_error,omitempty"`
}

// Name returns the friendly name, falling back to the IEEE address.
func (d *Device) Name() string {
	if d.FriendlyName != "" {
		return d.FriendlyName
	}
	return d.IEEEAddress
}

// HasEndpoint reports whether the device declares endpoint id.
func (d *Device) HasEndpoint(id uint8) bool {
	for _, ep := range d.Endpoints {
		if ep.ID == id {
			return true
		}
	}
	return false
}

// Endpoint represents a device endpoint.
type Endpoint struct {
	ID          uint8    `json:"id"`
	ProfileID   uint16   `json:"profile_id"`
	DeviceID    uint16   `json:"device_id"`
	InClusters  []uint16 `json:"in_clusters"`
	OutClusters []uint16 `json:"out_clusters"`
}
