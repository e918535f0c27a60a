package zcl

import (
	"encoding/binary"
	"fmt"
)

// Frame control bits.
const (
	FrameTypeGlobal  uint8 = 0x00
	FrameTypeCluster uint8 = 0x01

	flagManufacturerSpecific   uint8 = 0x04
	flagServerToClient         uint8 = 0x08
	flagDisableDefaultResponse uint8 = 0x10
)

// Header is the ZCL frame header. A non-zero ManufacturerCode marks the
// frame manufacturer-specific and is carried on the wire.
type Header struct {
	FrameType              uint8
	ManufacturerCode       uint16
	ServerToClient         bool
	DisableDefaultResponse bool
	TSN                    uint8
	CommandID              uint8
}

// ManufacturerSpecific reports whether the header carries a manufacturer code.
func (h Header) ManufacturerSpecific() bool {
	return h.ManufacturerCode != 0
}

// Encode returns the wire form of the header:
// frame_control(1) + [mfr_code(2)] + seq(1) + cmd_id(1).
func (h Header) Encode() []byte {
	fc := h.FrameType & 0x03
	if h.ManufacturerSpecific() {
		fc |= flagManufacturerSpecific
	}
	if h.ServerToClient {
		fc |= flagServerToClient
	}
	if h.DisableDefaultResponse {
		fc |= flagDisableDefaultResponse
	}
	buf := []byte{fc}
	if h.ManufacturerSpecific() {
		buf = binary.LittleEndian.AppendUint16(buf, h.ManufacturerCode)
	}
	return append(buf, h.TSN, h.CommandID)
}

// Frame is a decoded ZCL frame.
type Frame struct {
	Header
	Payload []byte
}

// Encode returns the frame bytes.
func (f Frame) Encode() []byte {
	return append(f.Header.Encode(), f.Payload...)
}

// Global reports whether the frame carries a foundation command.
func (f Frame) Global() bool {
	return f.FrameType == FrameTypeGlobal
}

// ParseFrame decodes a ZCL frame, accounting for manufacturer-specific headers.
func ParseFrame(data []byte) (Frame, error) {
	if len(data) < 3 {
		return Frame{}, fmt.Errorf("zcl: frame too short: %d bytes", len(data))
	}
	fc := data[0]
	hdrLen := 3
	var h Header
	h.FrameType = fc & 0x03
	h.ServerToClient = fc&flagServerToClient != 0
	h.DisableDefaultResponse = fc&flagDisableDefaultResponse != 0
	if fc&flagManufacturerSpecific != 0 {
		hdrLen += 2
		if len(data) < hdrLen {
			return Frame{}, fmt.Errorf("zcl: manufacturer-specific frame too short: %d bytes", len(data))
		}
		h.ManufacturerCode = binary.LittleEndian.Uint16(data[1:3])
	}
	h.TSN = data[hdrLen-2]
	h.CommandID = data[hdrLen-1]
	payload := make([]byte, len(data)-hdrLen)
	copy(payload, data[hdrLen:])
	return Frame{Header: h, Payload: payload}, nil
}

// AttributeRecord is an attribute identifier with a typed value.
type AttributeRecord struct {
	ID    uint16
	Type  uint8
	Value any
}

// AttributeStatus is a per-attribute result from a read or write response.
type AttributeStatus struct {
	ID     uint16
	Status uint8
	Type   uint8
	Value  any
}

// BuildReadAttributes builds a Read Attributes frame.
func BuildReadAttributes(h Header, attrIDs []uint16) []byte {
	h.FrameType = FrameTypeGlobal
	h.CommandID = FoundationReadAttributes
	buf := h.Encode()
	for _, id := range attrIDs {
		buf = binary.LittleEndian.AppendUint16(buf, id)
	}
	return buf
}

// BuildWriteAttributes builds a Write Attributes frame, encoding each value
// with its declared type.
func BuildWriteAttributes(h Header, records []AttributeRecord) ([]byte, error) {
	h.FrameType = FrameTypeGlobal
	h.CommandID = FoundationWriteAttributes
	buf := h.Encode()
	for _, rec := range records {
		value, err := EncodeValue(rec.Type, rec.Value)
		if err != nil {
			return nil, fmt.Errorf("attribute 0x%04X: %w", rec.ID, err)
		}
		buf = binary.LittleEndian.AppendUint16(buf, rec.ID)
		buf = append(buf, rec.Type)
		buf = append(buf, value...)
	}
	return buf, nil
}

// ReportingConfig is one Configure Reporting record.
type ReportingConfig struct {
	AttrID           uint16
	Type             uint8
	MinInterval      uint16
	MaxInterval      uint16
	ReportableChange any // ignored for discrete types
}

// IsAnalog reports whether a type is analog, i.e. carries a reportable change
// in Configure Reporting records.
func IsAnalog(typeID uint8) bool {
	switch {
	case typeID >= TypeUint8 && typeID <= TypeInt32:
		return true
	case typeID == TypeFloat32, typeID == TypeFloat64, typeID == TypeUTC:
		return true
	}
	return false
}

// BuildConfigureReporting builds a Configure Reporting frame.
func BuildConfigureReporting(h Header, cfgs []ReportingConfig) ([]byte, error) {
	h.FrameType = FrameTypeGlobal
	h.CommandID = FoundationConfigReporting
	buf := h.Encode()
	for _, c := range cfgs {
		buf = append(buf, 0x00) // direction: device sends reports
		buf = binary.LittleEndian.AppendUint16(buf, c.AttrID)
		buf = append(buf, c.Type)
		buf = binary.LittleEndian.AppendUint16(buf, c.MinInterval)
		buf = binary.LittleEndian.AppendUint16(buf, c.MaxInterval)
		if !IsAnalog(c.Type) {
			continue
		}
		change := c.ReportableChange
		if change == nil {
			change = 0
		}
		enc, err := EncodeValue(c.Type, change)
		if err != nil {
			return nil, fmt.Errorf("attribute 0x%04X reportable change: %w", c.AttrID, err)
		}
		buf = append(buf, enc...)
	}
	return buf, nil
}

// BuildDefaultResponse builds a Default Response acknowledging commandID.
func BuildDefaultResponse(h Header, commandID, status uint8) []byte {
	h.FrameType = FrameTypeGlobal
	h.CommandID = FoundationDefaultResponse
	h.DisableDefaultResponse = true
	return append(h.Encode(), commandID, status)
}

// BuildClusterCommand builds a cluster-specific command frame.
func BuildClusterCommand(h Header, payload []byte) []byte {
	h.FrameType = FrameTypeCluster
	return append(h.Encode(), payload...)
}

// ParseAttributeReports parses Report Attributes records:
// [attrID(2) + dataType(1) + value(N)]...
func ParseAttributeReports(payload []byte) ([]AttributeRecord, error) {
	var records []AttributeRecord
	pos := 0
	for pos < len(payload) {
		if pos+3 > len(payload) {
			return records, fmt.Errorf("zcl: truncated report record at offset %d", pos)
		}
		id := binary.LittleEndian.Uint16(payload[pos:])
		typ := payload[pos+2]
		pos += 3
		val, n, err := DecodeValue(typ, payload[pos:])
		if err != nil {
			return records, fmt.Errorf("attribute 0x%04X: %w", id, err)
		}
		pos += n
		records = append(records, AttributeRecord{ID: id, Type: typ, Value: val})
	}
	return records, nil
}

// ParseReadAttributesResponse parses Read Attributes Response records:
// [attrID(2) + status(1) + (dataType(1) + value(N) if status == 0)]...
func ParseReadAttributesResponse(payload []byte) ([]AttributeStatus, error) {
	var results []AttributeStatus
	pos := 0
	for pos+3 <= len(payload) {
		st := AttributeStatus{
			ID:     binary.LittleEndian.Uint16(payload[pos:]),
			Status: payload[pos+2],
		}
		pos += 3
		if st.Status != ZCLStatusSuccess {
			results = append(results, st)
			continue
		}
		if pos >= len(payload) {
			return results, fmt.Errorf("zcl: missing type for attribute 0x%04X", st.ID)
		}
		st.Type = payload[pos]
		pos++
		val, n, err := DecodeValue(st.Type, payload[pos:])
		if err != nil {
			return results, fmt.Errorf("attribute 0x%04X: %w", st.ID, err)
		}
		st.Value = val
		pos += n
		results = append(results, st)
	}
	return results, nil
}

// ParseWriteAttributesResponse parses a Write Attributes Response. A single
// success status means every record was written.
func ParseWriteAttributesResponse(payload []byte) ([]AttributeStatus, error) {
	if len(payload) == 1 {
		return []AttributeStatus{{Status: payload[0]}}, nil
	}
	var results []AttributeStatus
	for pos := 0; pos < len(payload); pos += 3 {
		if pos+3 > len(payload) {
			return results, fmt.Errorf("zcl: truncated write response at offset %d", pos)
		}
		results = append(results, AttributeStatus{
			Status: payload[pos],
			ID:     binary.LittleEndian.Uint16(payload[pos+1:]),
		})
	}
	return results, nil
}

// ParseConfigureReportingResponse decodes a Configure Reporting Response
// payload. A single status byte means every record succeeded.
func ParseConfigureReportingResponse(payload []byte) ([]AttributeStatus, error) {
	if len(payload) == 1 {
		return []AttributeStatus{{Status: payload[0]}}, nil
	}
	var results []AttributeStatus
	for pos := 0; pos < len(payload); pos += 4 {
		if pos+4 > len(payload) {
			return results, fmt.Errorf("zcl: truncated configure reporting response at offset %d", pos)
		}
		// status(1) + direction(1) + attr_id(2)
		results = append(results, AttributeStatus{
			Status: payload[pos],
			ID:     binary.LittleEndian.Uint16(payload[pos+2:]),
		})
	}
	return results, nil
}

// ParseDefaultResponse returns the acknowledged command and its status.
func ParseDefaultResponse(payload []byte) (commandID, status uint8, err error) {
	if len(payload) < 2 {
		return 0, 0, fmt.Errorf("zcl: default response too short: %d bytes", len(payload))
	}
	return payload[0], payload[1], nil
}

// ResponseError converts the statuses of a write or configure response into
// a *StatusError for the first failure, or nil.
func ResponseError(statuses []AttributeStatus) error {
	for _, st := range statuses {
		if st.Status != ZCLStatusSuccess {
			return &StatusError{Status: st.Status, AttrID: st.ID}
		}
	}
	return nil
}
