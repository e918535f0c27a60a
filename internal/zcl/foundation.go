package zcl

import "fmt"

// Foundation ZCL command IDs (global, not cluster-specific).
const (
	FoundationReadAttributes         uint8 = 0x00
	FoundationReadAttributesResponse uint8 = 0x01
	FoundationWriteAttributes        uint8 = 0x02
	FoundationWriteAttributesResp    uint8 = 0x04
	FoundationConfigReporting        uint8 = 0x06
	FoundationConfigReportingResp    uint8 = 0x07
	FoundationReportAttributes       uint8 = 0x0A
	FoundationDefaultResponse        uint8 = 0x0B
)

// ZCL status codes
const (
	ZCLStatusSuccess         uint8 = 0x00
	ZCLStatusFailure         uint8 = 0x01
	ZCLStatusUnsupportedCmd  uint8 = 0x81
	ZCLStatusUnsupportedAttr uint8 = 0x86
	ZCLStatusInvalidValue    uint8 = 0x87
	ZCLStatusReadOnly        uint8 = 0x88
	ZCLStatusNotFound        uint8 = 0x8B
	ZCLStatusUnreportable    uint8 = 0x8C
	ZCLStatusInvalidDataType uint8 = 0x8D
)

var statusNames = map[uint8]string{
	ZCLStatusSuccess:         "SUCCESS",
	ZCLStatusFailure:         "FAILURE",
	ZCLStatusUnsupportedCmd:  "UNSUP_COMMAND",
	ZCLStatusUnsupportedAttr: "UNSUPPORTED_ATTRIBUTE",
	ZCLStatusInvalidValue:    "INVALID_VALUE",
	ZCLStatusReadOnly:        "READ_ONLY",
	ZCLStatusNotFound:        "NOT_FOUND",
	ZCLStatusUnreportable:    "UNREPORTABLE_ATTRIBUTE",
	ZCLStatusInvalidDataType: "INVALID_DATA_TYPE",
}

// StatusName returns the ZCL name of a status code.
func StatusName(status uint8) string {
	if name, ok := statusNames[status]; ok {
		return name
	}
	return fmt.Sprintf("0x%02X", status)
}

// StatusError is a non-success status returned by a device.
type StatusError struct {
	Status uint8
	AttrID uint16 // zero for command-level statuses
}

func (e *StatusError) Error() string {
	if e.AttrID != 0 {
		return fmt.Sprintf("zcl: status %s for attribute 0x%04X", StatusName(e.Status), e.AttrID)
	}
	return fmt.Sprintf("zcl: status %s", StatusName(e.Status))
}
