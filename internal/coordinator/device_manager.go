package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/niracler/zigbee-herdsman-converters/internal/store"
)

var timeNow = time.Now

// configureTimeout bounds a configure run started by registration.
const configureTimeout = time.Minute

// DeviceManager tracks registered devices and their short addresses.
type DeviceManager struct {
	coord  *Coordinator
	logger *slog.Logger

	// In-memory short address -> IEEE index for fast lookup.
	addrMu    sync.RWMutex
	addrIndex map[uint16]string

	// IEEEs with a configure run in flight.
	configMu    sync.Mutex
	configuring map[string]bool
	configWG    sync.WaitGroup
}

// NewDeviceManager creates a new device manager.
func NewDeviceManager(coord *Coordinator) *DeviceManager {
	return &DeviceManager{
		coord:       coord,
		logger:      coord.logger.With("component", "device_manager"),
		addrIndex:   make(map[uint16]string),
		configuring: make(map[string]bool),
	}
}

func (dm *DeviceManager) updateAddrIndex(ieee string, shortAddr uint16) {
	dm.addrMu.Lock()
	for addr, stored := range dm.addrIndex {
		if stored == ieee {
			delete(dm.addrIndex, addr)
		}
	}
	dm.addrIndex[shortAddr] = ieee
	dm.addrMu.Unlock()
}

func (dm *DeviceManager) removeFromAddrIndex(ieee string) {
	dm.addrMu.Lock()
	for addr, stored := range dm.addrIndex {
		if stored == ieee {
			delete(dm.addrIndex, addr)
		}
	}
	dm.addrMu.Unlock()
}

// RebuildAddrIndex loads all devices from store and populates the index.
func (dm *DeviceManager) RebuildAddrIndex() {
	devices, err := dm.coord.Store().ListDevices()
	if err != nil {
		dm.logger.Error("rebuild addr index", "err", err)
		return
	}
	dm.addrMu.Lock()
	clear(dm.addrIndex)
	for _, d := range devices {
		dm.addrIndex[d.ShortAddress] = d.IEEEAddress
	}
	dm.addrMu.Unlock()
}

// lookupOrRebuild looks up an IEEE address by short address from the in-memory
// index. If not found, rebuilds the index from the store under a write lock
// with a double-check to avoid redundant rebuilds.
func (dm *DeviceManager) lookupOrRebuild(shortAddr uint16) string {
	dm.addrMu.RLock()
	ieee := dm.addrIndex[shortAddr]
	dm.addrMu.RUnlock()
	if ieee != "" {
		return ieee
	}

	dm.addrMu.Lock()
	defer dm.addrMu.Unlock()
	if ieee = dm.addrIndex[shortAddr]; ieee != "" {
		return ieee
	}

	devices, err := dm.coord.Store().ListDevices()
	if err != nil {
		dm.logger.Error("rebuild addr index for lookup", "err", err)
		return ""
	}
	clear(dm.addrIndex)
	for _, d := range devices {
		dm.addrIndex[d.ShortAddress] = d.IEEEAddress
		if d.ShortAddress == shortAddr {
			ieee = d.IEEEAddress
		}
	}
	return ieee
}

// touch records that a frame arrived from shortAddr and returns the device,
// or nil when the address is unknown.
func (dm *DeviceManager) touch(shortAddr uint16, lqi uint8) *store.Device {
	ieee := dm.lookupOrRebuild(shortAddr)
	if ieee == "" {
		return nil
	}
	var dev *store.Device
	err := dm.coord.Store().UpdateDevice(ieee, func(d *store.Device) error {
		d.LastSeen = timeNow()
		if lqi > 0 {
			d.LQI = lqi
		}
		cp := *d
		dev = &cp
		return nil
	})
	if err != nil {
		dm.logger.Error("save device last_seen", "err", err, "ieee", ieee)
		return nil
	}
	return dev
}

// Resolve finds a device by friendly name or IEEE address.
func (dm *DeviceManager) Resolve(nameOrIEEE string) (*store.Device, error) {
	return dm.coord.Store().FindDevice(nameOrIEEE)
}

// RegisterDevice adds or replaces a device. The device's profile does not
// need to exist yet; unsupported devices still receive message events.
func (dm *DeviceManager) RegisterDevice(dev *store.Device) error {
	if dev.IEEEAddress == "" {
		return fmt.Errorf("register device: empty ieee address")
	}
	if _, err := ParseIEEE(dev.IEEEAddress); err != nil {
		return fmt.Errorf("register device: %w", err)
	}
	if existing, err := dm.coord.Store().GetDevice(dev.IEEEAddress); err == nil {
		if dev.JoinedAt.IsZero() {
			dev.JoinedAt = existing.JoinedAt
		}
		if !dev.Configured && existing.Configured && sameModel(existing, dev) {
			dev.Configured = true
			dev.ConfiguredAt = existing.ConfiguredAt
		}
	}
	if dev.JoinedAt.IsZero() {
		dev.JoinedAt = timeNow()
	}
	if err := dm.coord.Store().SaveDevice(dev); err != nil {
		return fmt.Errorf("register device: %w", err)
	}
	dm.updateAddrIndex(dev.IEEEAddress, dev.ShortAddress)

	model := ""
	if p, err := dm.coord.Profile(dev); err == nil {
		model = p.Model
	}
	dm.logger.Info("device registered",
		"ieee", dev.IEEEAddress,
		"short", fmt.Sprintf("0x%04X", dev.ShortAddress),
		"name", dev.Name(),
		"zigbee_model", dev.ZigbeeModel,
		"model", model)

	dm.coord.Events().Emit(Event{
		Type: EventDeviceRegistered,
		Data: map[string]any{
			"ieee":       dev.IEEEAddress,
			"short_addr": dev.ShortAddress,
			"model":      model,
			"supported":  model != "",
		},
	})

	if model != "" && !dev.Configured && dm.coord.config.ConfigureOnJoin {
		dm.startConfigure(dev.IEEEAddress)
	}
	return nil
}

// startConfigure runs ConfigureDevice in the background. A device already
// being configured is skipped.
func (dm *DeviceManager) startConfigure(ieee string) {
	dm.configMu.Lock()
	if dm.configuring[ieee] {
		dm.configMu.Unlock()
		return
	}
	dm.configuring[ieee] = true
	dm.configMu.Unlock()

	dm.configWG.Add(1)
	go func() {
		defer dm.configWG.Done()
		defer func() {
			dm.configMu.Lock()
			delete(dm.configuring, ieee)
			dm.configMu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), configureTimeout)
		defer cancel()
		if err := dm.coord.ConfigureDevice(ctx, ieee); err != nil {
			dm.logger.Warn("configure on join failed", "ieee", ieee, "err", err)
		}
	}()
}

// waitConfigure blocks until background configure runs have finished.
func (dm *DeviceManager) waitConfigure() {
	dm.configWG.Wait()
}

func sameModel(a, b *store.Device) bool {
	return a.ZigbeeModel == b.ZigbeeModel && strings.EqualFold(a.Manufacturer, b.Manufacturer)
}

// RemoveDevice forgets a device and its last known state.
func (dm *DeviceManager) RemoveDevice(nameOrIEEE string) error {
	dev, err := dm.Resolve(nameOrIEEE)
	if err != nil {
		return err
	}
	if err := dm.coord.Store().DeleteDevice(dev.IEEEAddress); err != nil {
		return err
	}
	dm.removeFromAddrIndex(dev.IEEEAddress)

	dm.coord.stateMu.Lock()
	delete(dm.coord.states, dev.IEEEAddress)
	dm.coord.stateMu.Unlock()

	dm.logger.Info("device removed", "ieee", dev.IEEEAddress, "name", dev.Name())
	dm.coord.Events().Emit(Event{
		Type: EventDeviceRemoved,
		Data: map[string]any{"ieee": dev.IEEEAddress},
	})
	return nil
}

// ListDevices returns all known devices.
func (dm *DeviceManager) ListDevices() ([]*store.Device, error) {
	return dm.coord.Store().ListDevices()
}
