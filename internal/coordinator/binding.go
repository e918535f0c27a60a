package coordinator

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/niracler/zigbee-herdsman-converters/internal/convert"
	"github.com/niracler/zigbee-herdsman-converters/internal/ncp"
	"github.com/niracler/zigbee-herdsman-converters/internal/store"
	"github.com/niracler/zigbee-herdsman-converters/internal/zcl"
)

// ParseIEEE parses "DD:DD:DD:DD:DD:DD:DD:DD", "0xDDDDDDDDDDDDDDDD" or
// "DDDDDDDDDDDDDDDD" into [8]byte.
func ParseIEEE(s string) ([8]byte, error) {
	var result [8]byte
	s = strings.TrimPrefix(strings.ReplaceAll(s, ":", ""), "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return result, fmt.Errorf("parse ieee address: %w", err)
	}
	if len(b) != 8 {
		return result, fmt.Errorf("ieee address must be 8 bytes, got %d", len(b))
	}
	copy(result[:], b)
	return result, nil
}

// defaultEndpoint is the endpoint set/get requests go to: the device's first
// interviewed endpoint, or 1.
func defaultEndpoint(dev *store.Device) uint8 {
	if len(dev.Endpoints) > 0 {
		return dev.Endpoints[0].ID
	}
	return 1
}

// device adapts a stored device to convert.Device.
type device struct {
	c   *Coordinator
	dev *store.Device
}

var (
	_ convert.Device   = (*device)(nil)
	_ convert.Endpoint = (*endpoint)(nil)
)

func (d *device) IEEE() string { return d.dev.IEEEAddress }

// Endpoint returns endpoint id. Devices without interview data accept any
// endpoint.
func (d *device) Endpoint(id uint8) (convert.Endpoint, error) {
	if len(d.dev.Endpoints) > 0 && !d.dev.HasEndpoint(id) {
		return nil, fmt.Errorf("device %s has no endpoint %d", d.dev.Name(), id)
	}
	return &endpoint{c: d.c, dev: d.dev, id: id}, nil
}

// endpoint sends ZCL requests to one endpoint of a device over the NCP.
type endpoint struct {
	c   *Coordinator
	dev *store.Device
	id  uint8
}

func (e *endpoint) ID() uint8 { return e.id }

func (e *endpoint) WriteAttributes(ctx context.Context, clusterID uint16, records []zcl.AttributeRecord, manufacturerCode uint16) error {
	return e.c.ncp.WriteAttributes(ctx, ncp.WriteAttributesRequest{
		DstAddr:          e.dev.ShortAddress,
		DstEP:            e.id,
		ClusterID:        clusterID,
		Records:          records,
		ManufacturerCode: manufacturerCode,
	})
}

func (e *endpoint) ReadAttributes(ctx context.Context, clusterID uint16, attrIDs []uint16, manufacturerCode uint16) ([]zcl.AttributeStatus, error) {
	return e.c.ncp.ReadAttributes(ctx, ncp.ReadAttributesRequest{
		DstAddr:          e.dev.ShortAddress,
		DstEP:            e.id,
		ClusterID:        clusterID,
		AttrIDs:          attrIDs,
		ManufacturerCode: manufacturerCode,
	})
}

func (e *endpoint) ConfigureReporting(ctx context.Context, clusterID uint16, cfgs []zcl.ReportingConfig, manufacturerCode uint16) error {
	return e.c.ncp.ConfigureReporting(ctx, ncp.ConfigureReportingRequest{
		DstAddr:          e.dev.ShortAddress,
		DstEP:            e.id,
		ClusterID:        clusterID,
		Configs:          cfgs,
		ManufacturerCode: manufacturerCode,
	})
}

// Bind binds clusterID on this endpoint to the coordinator endpoint.
func (e *endpoint) Bind(ctx context.Context, clusterID uint16) error {
	src, err := ParseIEEE(e.dev.IEEEAddress)
	if err != nil {
		return err
	}
	err = e.c.ncp.Bind(ctx, ncp.BindRequest{
		TargetShortAddr: e.dev.ShortAddress,
		SrcIEEE:         src,
		SrcEP:           e.id,
		ClusterID:       clusterID,
		DstEP:           e.c.config.Endpoint,
	})
	if err != nil {
		return err
	}
	e.c.logger.Info("bound cluster", "device", e.dev.Name(), "ep", e.id, "cluster", fmt.Sprintf("0x%04X", clusterID))
	return nil
}

func (e *endpoint) DefaultResponse(ctx context.Context, clusterID uint16, commandID, status, tsn uint8) error {
	return e.c.ncp.DefaultResponse(ctx, ncp.DefaultResponseRequest{
		DstAddr:   e.dev.ShortAddress,
		DstEP:     e.id,
		ClusterID: clusterID,
		CommandID: commandID,
		Status:    status,
		TSN:       tsn,
	})
}
