package convert

import "fmt"

// Operation is one cluster operation emitted by an outbound converter. The
// set of implementations is closed: AttributeWrite, ManufacturerWrite and
// AttributeRead.
type Operation interface {
	fmt.Stringer
	operation()
}

// AttributeWrite writes a standard attribute addressed by name. The wire
// type comes from the cluster registry.
type AttributeWrite struct {
	Cluster   string
	Attribute string
	Value     any
}

func (AttributeWrite) operation() {}

func (w AttributeWrite) String() string {
	return fmt.Sprintf("write %s.%s=%v", w.Cluster, w.Attribute, w.Value)
}

// ManufacturerWrite writes a vendor attribute addressed by numeric ID with
// an explicit wire type. ManufacturerCode is mandatory.
type ManufacturerWrite struct {
	Cluster          string
	AttrID           uint16
	Type             uint8
	Value            any
	ManufacturerCode uint16
}

func (ManufacturerWrite) operation() {}

func (w ManufacturerWrite) String() string {
	return fmt.Sprintf("write %s.%d=%v (mfr 0x%04X)", w.Cluster, w.AttrID, w.Value, w.ManufacturerCode)
}

// Validate checks that the write carries a manufacturer code.
func (w ManufacturerWrite) Validate() error {
	if w.ManufacturerCode == 0 {
		return fmt.Errorf("%s: %w", w, ErrMissingManufacturerCode)
	}
	return nil
}

// AttributeRead reads standard attributes addressed by name.
type AttributeRead struct {
	Cluster    string
	Attributes []string
}

func (AttributeRead) operation() {}

func (r AttributeRead) String() string {
	return fmt.Sprintf("read %s%v", r.Cluster, r.Attributes)
}
