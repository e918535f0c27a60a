package zcl

// Access flags
const (
	AccessRead   uint8 = 0x01
	AccessWrite  uint8 = 0x02
	AccessReport uint8 = 0x04
)

// AttributeDef defines a ZCL attribute. Key is the lowerCamel identifier used
// by converters (e.g. "occupiedCoolingSetpoint").
type AttributeDef struct {
	ID     uint16 `json:"id"`
	Key    string `json:"key"`
	Type   uint8  `json:"type"`
	Access uint8  `json:"access"` // bitmask: 1=read, 2=write, 4=reportable
	// ManufacturerCode is set for manufacturer-specific attributes.
	ManufacturerCode uint16 `json:"manufacturer_code,omitempty"`
}

// IsWritable returns true if the attribute can be written.
func (a *AttributeDef) IsWritable() bool {
	return a.Access&AccessWrite != 0
}

// IsReportable returns true if the attribute supports reporting.
func (a *AttributeDef) IsReportable() bool {
	return a.Access&AccessReport != 0
}

// CommandDirection indicates the direction of a cluster command.
type CommandDirection string

const (
	DirectionToServer CommandDirection = "toServer"
	DirectionToClient CommandDirection = "toClient"
)

// ParamDef is one field of a cluster command payload.
type ParamDef struct {
	Key  string `json:"key"`
	Type uint8  `json:"type"`
}

// CommandDef defines a cluster-specific command.
type CommandDef struct {
	ID        uint8            `json:"id"`
	Key       string           `json:"key"`
	Direction CommandDirection `json:"direction"`
	Params    []ParamDef       `json:"params,omitempty"`
}

// ClusterDef defines a ZCL cluster with its attributes and commands.
type ClusterDef struct {
	ID         uint16         `json:"id"`
	Key        string         `json:"key"`
	Attributes []AttributeDef `json:"attributes,omitempty"`
	Commands   []CommandDef   `json:"commands,omitempty"`
}

// FindAttribute looks up an attribute by ID.
func (c *ClusterDef) FindAttribute(id uint16) *AttributeDef {
	for i := range c.Attributes {
		if c.Attributes[i].ID == id {
			return &c.Attributes[i]
		}
	}
	return nil
}

// AttributeByKey looks up an attribute by its key.
func (c *ClusterDef) AttributeByKey(key string) *AttributeDef {
	for i := range c.Attributes {
		if c.Attributes[i].Key == key {
			return &c.Attributes[i]
		}
	}
	return nil
}

// FindCommand looks up a command by ID and direction.
func (c *ClusterDef) FindCommand(id uint8, dir CommandDirection) *CommandDef {
	for i := range c.Commands {
		if c.Commands[i].ID == id && c.Commands[i].Direction == dir {
			return &c.Commands[i]
		}
	}
	return nil
}

// DeepCopy returns a deep copy of the cluster definition.
func (c *ClusterDef) DeepCopy() *ClusterDef {
	cp := *c
	cp.Attributes = append([]AttributeDef(nil), c.Attributes...)
	if c.Commands != nil {
		cp.Commands = make([]CommandDef, len(c.Commands))
		for i, cmd := range c.Commands {
			cmd.Params = append([]ParamDef(nil), cmd.Params...)
			cp.Commands[i] = cmd
		}
	}
	return &cp
}

// Merge adds attributes and commands from another definition, used when
// external converters extend a standard cluster.
func (c *ClusterDef) Merge(other *ClusterDef) {
	for _, attr := range other.Attributes {
		if c.FindAttribute(attr.ID) == nil {
			c.Attributes = append(c.Attributes, attr)
		}
	}
	for _, cmd := range other.Commands {
		if c.FindCommand(cmd.ID, cmd.Direction) == nil {
			c.Commands = append(c.Commands, cmd)
		}
	}
}

// DecodeCommand decodes a cluster command payload into named fields using the
// command's parameter list. Trailing parameters missing from the payload are
// omitted.
func (cmd *CommandDef) DecodeCommand(payload []byte) (map[string]any, error) {
	fields := make(map[string]any, len(cmd.Params))
	pos := 0
	for _, p := range cmd.Params {
		if pos >= len(payload) {
			break
		}
		val, n, err := DecodeValue(p.Type, payload[pos:])
		if err != nil {
			return fields, err
		}
		fields[p.Key] = val
		pos += n
	}
	return fields, nil
}
