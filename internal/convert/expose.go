package convert

// Expose kinds.
const (
	ExposeBinary  = "binary"
	ExposeEnum    = "enum"
	ExposeNumeric = "numeric"
	ExposeClimate = "climate"
)

// Access flags, as published by zigbee2mqtt.
const (
	AccessState = 1 << iota
	AccessSet
	AccessGet

	AccessAll = AccessState | AccessSet | AccessGet
)

// Expose describes one property a profile publishes or accepts.
type Expose struct {
	Type        string   `json:"type"`
	Name        string   `json:"name,omitempty"`
	Property    string   `json:"property,omitempty"`
	Access      int      `json:"access,omitempty"`
	Description string   `json:"description,omitempty"`
	Unit        string   `json:"unit,omitempty"`
	Values      []string `json:"values,omitempty"`
	ValueOn     any      `json:"value_on,omitempty"`
	ValueOff    any      `json:"value_off,omitempty"`
	ValueMin    *float64 `json:"value_min,omitempty"`
	ValueMax    *float64 `json:"value_max,omitempty"`
	ValueStep   *float64 `json:"value_step,omitempty"`
	Features    []Expose `json:"features,omitempty"`
}

// Binary returns a binary expose.
func Binary(name string, access int, on, off any) Expose {
	return Expose{Type: ExposeBinary, Name: name, Property: name, Access: access, ValueOn: on, ValueOff: off}
}

// EnumExpose returns an enum expose.
func EnumExpose(name string, access int, values []string) Expose {
	return Expose{Type: ExposeEnum, Name: name, Property: name, Access: access, Values: values}
}

// NumericExpose returns a numeric expose.
func NumericExpose(name string, access int) Expose {
	return Expose{Type: ExposeNumeric, Name: name, Property: name, Access: access}
}

// WithRange sets the value range and step.
func (e Expose) WithRange(min, max, step float64) Expose {
	e.ValueMin, e.ValueMax, e.ValueStep = &min, &max, &step
	return e
}

// WithUnit sets the unit.
func (e Expose) WithUnit(unit string) Expose {
	e.Unit = unit
	return e
}

// WithDescription sets the description.
func (e Expose) WithDescription(d string) Expose {
	e.Description = d
	return e
}

// Settable reports whether the expose accepts set requests.
func (e Expose) Settable() bool {
	return e.Access&AccessSet != 0
}
