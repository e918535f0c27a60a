// Package ncp defines the transport boundary to the Zigbee network
// co-processor. Requests carry ZCL operations addressed by short address and
// endpoint; indications deliver decoded reports and cluster commands.
package ncp

import (
	"context"

	"github.com/niracler/zigbee-herdsman-converters/internal/zcl"
)

// NCP is the abstract interface for a Zigbee coordinator backend.
type NCP interface {
	// ZDO
	Bind(ctx context.Context, req BindRequest) error

	// ZCL
	ReadAttributes(ctx context.Context, req ReadAttributesRequest) ([]zcl.AttributeStatus, error)
	WriteAttributes(ctx context.Context, req WriteAttributesRequest) error
	ConfigureReporting(ctx context.Context, req ConfigureReportingRequest) error
	DefaultResponse(ctx context.Context, req DefaultResponseRequest) error

	// Indication callbacks
	OnAttributeReport(handler func(AttributeReportEvent))
	OnClusterCommand(handler func(ClusterCommandEvent))

	// Lifecycle
	Close() error
}

// BindRequest is a ZDO bind request binding a cluster on the source
// endpoint to the coordinator.
type BindRequest struct {
	TargetShortAddr uint16
	SrcIEEE         [8]byte
	SrcEP           uint8
	ClusterID       uint16
	DstEP           uint8
}

// ReadAttributesRequest specifies which attributes to read.
type ReadAttributesRequest struct {
	DstAddr          uint16
	DstEP            uint8
	ClusterID        uint16
	AttrIDs          []uint16
	ManufacturerCode uint16
}

// WriteAttributesRequest specifies attributes to write. A non-zero
// ManufacturerCode sends a manufacturer-specific frame.
type WriteAttributesRequest struct {
	DstAddr          uint16
	DstEP            uint8
	ClusterID        uint16
	Records          []zcl.AttributeRecord
	ManufacturerCode uint16
}

// ConfigureReportingRequest sets up attribute reporting.
type ConfigureReportingRequest struct {
	DstAddr          uint16
	DstEP            uint8
	ClusterID        uint16
	Configs          []zcl.ReportingConfig
	ManufacturerCode uint16
}

// DefaultResponseRequest answers a received command. TSN echoes the
// command's transaction sequence number.
type DefaultResponseRequest struct {
	DstAddr   uint16
	DstEP     uint8
	ClusterID uint16
	CommandID uint8
	Status    uint8
	TSN       uint8
}

// AttributeReportEvent is emitted for every Report Attributes frame.
type AttributeReportEvent struct {
	SrcAddr          uint16
	SrcEP            uint8
	ClusterID        uint16
	ManufacturerCode uint16
	TSN              uint8
	Records          []zcl.AttributeRecord
	LQI              uint8
}

// ClusterCommandEvent is emitted for incoming cluster-specific commands.
type ClusterCommandEvent struct {
	SrcAddr          uint16
	SrcEP            uint8
	ClusterID        uint16
	ManufacturerCode uint16
	TSN              uint8
	CommandID        uint8
	ServerToClient   bool
	Payload          []byte
	LQI              uint8
}
