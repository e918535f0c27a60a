// Package coordinator glues the translation core to the transport: it
// resolves devices to profiles, runs set/get requests through the outbound
// translator and feeds received frames through the inbound translator.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/niracler/zigbee-herdsman-converters/internal/convert"
	"github.com/niracler/zigbee-herdsman-converters/internal/ncp"
	"github.com/niracler/zigbee-herdsman-converters/internal/store"
	"github.com/niracler/zigbee-herdsman-converters/internal/zcl"
)

// ErrNoProfile is returned for devices no profile in the catalog matches.
var ErrNoProfile = errors.New("no profile for device")

// Config holds coordinator configuration.
type Config struct {
	// Endpoint is the coordinator endpoint bindings point at.
	Endpoint uint8
	// ConfigureOnJoin runs the profile's configure routine in the background
	// when a supported, unconfigured device is registered.
	ConfigureOnJoin bool
}

// Catalog resolves devices to profiles and runs their configure routines.
type Catalog interface {
	Lookup(model, manufacturer string) (*convert.Profile, bool)
	Configure(ctx context.Context, p *convert.Profile, dev convert.Device) error
}

// Coordinator dispatches requests and frames for registered devices.
type Coordinator struct {
	ncp      ncp.NCP
	store    store.Store
	registry *zcl.Registry
	catalog  Catalog
	outbound *convert.Outbound
	inbound  *convert.Inbound
	events   *EventBus
	devices  *DeviceManager
	logger   *slog.Logger
	config   Config

	// Last known state per IEEE. Held in memory only.
	stateMu sync.RWMutex
	states  map[string]convert.State
}

// New creates a coordinator and registers the NCP indication handlers.
func New(backend ncp.NCP, st store.Store, registry *zcl.Registry, catalog Catalog, events *EventBus, cfg Config, logger *slog.Logger) *Coordinator {
	if cfg.Endpoint == 0 {
		cfg.Endpoint = 1
	}
	c := &Coordinator{
		ncp:      backend,
		store:    st,
		registry: registry,
		catalog:  catalog,
		outbound: convert.NewOutbound(registry, logger),
		inbound:  convert.NewInbound(logger),
		events:   events,
		logger:   logger.With("component", "coordinator"),
		config:   cfg,
		states:   make(map[string]convert.State),
	}
	c.devices = NewDeviceManager(c)
	c.devices.RebuildAddrIndex()
	c.registerIndicationHandlers()
	return c
}

// Store returns the store.
func (c *Coordinator) Store() store.Store {
	return c.store
}

// Registry returns the ZCL registry.
func (c *Coordinator) Registry() *zcl.Registry {
	return c.registry
}

// Events returns the event bus.
func (c *Coordinator) Events() *EventBus {
	return c.events
}

// Devices returns the device manager.
func (c *Coordinator) Devices() *DeviceManager {
	return c.devices
}

func (c *Coordinator) registerIndicationHandlers() {
	c.ncp.OnAttributeReport(func(evt ncp.AttributeReportEvent) {
		c.HandleAttributeReport(context.Background(), evt)
	})
	c.ncp.OnClusterCommand(func(evt ncp.ClusterCommandEvent) {
		c.HandleClusterCommand(context.Background(), evt)
	})
}

// Profile returns the profile matching dev.
func (c *Coordinator) Profile(dev *store.Device) (*convert.Profile, error) {
	p, ok := c.catalog.Lookup(dev.ZigbeeModel, dev.Manufacturer)
	if !ok {
		return nil, fmt.Errorf("%s (%q): %w", dev.Name(), dev.ZigbeeModel, ErrNoProfile)
	}
	return p, nil
}

// State returns a copy of the last known state of a device.
func (c *Coordinator) State(ieee string) convert.State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	out := convert.State{}
	out.Merge(c.states[ieee])
	return out
}

// applyPatch merges patch into the device state and publishes the change.
func (c *Coordinator) applyPatch(dev *store.Device, patch convert.State) {
	if len(patch) == 0 {
		return
	}
	c.stateMu.Lock()
	st, ok := c.states[dev.IEEEAddress]
	if !ok {
		st = convert.State{}
		c.states[dev.IEEEAddress] = st
	}
	st.Merge(patch)
	snapshot := convert.State{}
	snapshot.Merge(st)
	c.stateMu.Unlock()

	c.events.Emit(Event{Type: EventStateChanged, Data: StateChange{
		IEEE:  dev.IEEEAddress,
		Name:  dev.Name(),
		Patch: patch,
		State: snapshot,
	}})
}

// target builds the outbound target for a device's default endpoint.
func (c *Coordinator) target(nameOrIEEE string) (*store.Device, convert.Target, error) {
	dev, err := c.devices.Resolve(nameOrIEEE)
	if err != nil {
		return nil, convert.Target{}, err
	}
	p, err := c.Profile(dev)
	if err != nil {
		return nil, convert.Target{}, err
	}
	ep := &endpoint{c: c, dev: dev, id: defaultEndpoint(dev)}
	return dev, convert.Target{Profile: p, Endpoint: ep, State: c.State(dev.IEEEAddress)}, nil
}

// SetProperties applies a set request, e.g. {"preset": "eco"}. Keys are
// applied in sorted order; the patch of keys that fully succeeded is
// published and returned even when a later key fails.
func (c *Coordinator) SetProperties(ctx context.Context, nameOrIEEE string, values map[string]any) (convert.State, error) {
	dev, t, err := c.target(nameOrIEEE)
	if err != nil {
		return nil, err
	}
	patch, err := c.outbound.SetMany(ctx, t, values)
	c.applyPatch(dev, patch)
	if err != nil {
		c.logger.Warn("set failed", "device", dev.Name(), "err", err)
		return patch, err
	}
	c.logger.Info("set", "device", dev.Name(), "patch", patch)
	return patch, nil
}

// GetProperty reads the attributes behind key and returns the state delta
// decoded from the read responses.
func (c *Coordinator) GetProperty(ctx context.Context, nameOrIEEE, key string) (convert.State, error) {
	dev, t, err := c.target(nameOrIEEE)
	if err != nil {
		return nil, err
	}
	results, err := c.outbound.Get(ctx, t, key)
	if err != nil {
		return nil, err
	}
	patch := convert.State{}
	for _, res := range results {
		msg := c.readResponseMessage(t.Endpoint, res)
		delta, err := c.inbound.Handle(ctx, t.Profile, c.State(dev.IEEEAddress), msg)
		if err != nil {
			c.logger.Warn("read response hook failed", "device", dev.Name(), "err", err)
		}
		patch.Merge(delta)
	}
	c.applyPatch(dev, patch)
	return patch, nil
}

// HandleAttributeReport translates a Report Attributes frame.
func (c *Coordinator) HandleAttributeReport(ctx context.Context, evt ncp.AttributeReportEvent) {
	dev := c.devices.touch(evt.SrcAddr, evt.LQI)
	if dev == nil {
		c.logger.Debug("report from unknown device", "short", fmt.Sprintf("0x%04X", evt.SrcAddr))
		return
	}
	ep := &endpoint{c: c, dev: dev, id: evt.SrcEP}
	c.handleMessage(ctx, dev, c.reportMessage(ep, evt))
}

// HandleClusterCommand translates a cluster-specific command frame.
func (c *Coordinator) HandleClusterCommand(ctx context.Context, evt ncp.ClusterCommandEvent) {
	dev := c.devices.touch(evt.SrcAddr, evt.LQI)
	if dev == nil {
		c.logger.Debug("command from unknown device", "short", fmt.Sprintf("0x%04X", evt.SrcAddr))
		return
	}
	ep := &endpoint{c: c, dev: dev, id: evt.SrcEP}
	msg, ok := c.commandMessage(ep, evt)
	if !ok {
		c.logger.Debug("unknown cluster command",
			"device", dev.Name(),
			"cluster", fmt.Sprintf("0x%04X", evt.ClusterID),
			"cmd", fmt.Sprintf("0x%02X", evt.CommandID))
		return
	}
	c.handleMessage(ctx, dev, msg)
}

func (c *Coordinator) handleMessage(ctx context.Context, dev *store.Device, msg *convert.Message) {
	c.events.Emit(Event{Type: EventMessage, Data: MessageEvent{
		IEEE:     dev.IEEEAddress,
		Type:     msg.Type,
		Cluster:  msg.Cluster,
		Endpoint: msg.Endpoint.ID(),
		Data:     msg.Data,
	}})

	p, err := c.Profile(dev)
	if err != nil {
		c.logger.Debug("message for unsupported device", "device", dev.Name(), "type", msg.Type)
		return
	}
	patch, err := c.inbound.Handle(ctx, p, c.State(dev.IEEEAddress), msg)
	if err != nil {
		c.logger.Warn("event hook failed", "device", dev.Name(), "type", msg.Type, "err", err)
	}
	if len(patch) > 0 && msg.LinkQuality > 0 {
		patch["linkquality"] = msg.LinkQuality
	}
	c.applyPatch(dev, patch)
}

// ConfigureDevice runs the profile's configure routine and records the
// outcome on the device.
func (c *Coordinator) ConfigureDevice(ctx context.Context, nameOrIEEE string) error {
	dev, err := c.devices.Resolve(nameOrIEEE)
	if err != nil {
		return err
	}
	p, err := c.Profile(dev)
	if err != nil {
		return err
	}

	cfgErr := c.catalog.Configure(ctx, p, &device{c: c, dev: dev})
	if err := c.store.UpdateDevice(dev.IEEEAddress, func(d *store.Device) error {
		d.Configured = cfgErr == nil
		d.ConfigureError = ""
		if cfgErr != nil {
			d.ConfigureError = cfgErr.Error()
		} else {
			d.ConfiguredAt = timeNow()
		}
		return nil
	}); err != nil {
		c.logger.Error("save configure result", "device", dev.Name(), "err", err)
	}
	if cfgErr != nil {
		c.logger.Warn("configure failed", "device", dev.Name(), "model", p.Model, "err", cfgErr)
		return fmt.Errorf("configure %s: %w", dev.Name(), cfgErr)
	}

	c.logger.Info("device configured", "device", dev.Name(), "model", p.Model)
	c.events.Emit(Event{Type: EventDeviceConfigured, Data: map[string]any{
		"ieee":  dev.IEEEAddress,
		"model": p.Model,
	}})
	return nil
}
