//go:build !no_mqtt

// Package mqtt exposes devices over MQTT the way zigbee2mqtt does: state on
// <prefix>/<device>, requests on <prefix>/<device>/set and /get, Home
// Assistant discovery built from each profile's exposes.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/niracler/zigbee-herdsman-converters/internal/convert"
	"github.com/niracler/zigbee-herdsman-converters/internal/coordinator"
	"github.com/niracler/zigbee-herdsman-converters/internal/store"
)

// Config holds MQTT bridge configuration.
type Config struct {
	Broker      string
	Username    string
	Password    string
	ClientID    string
	TopicPrefix string
	// Discovery enables Home Assistant discovery messages.
	Discovery bool
}

// Bridge connects the coordinator to MQTT.
type Bridge struct {
	client    pahomqtt.Client
	coord     *coordinator.Coordinator
	prefix    string
	discovery bool
	logger    *slog.Logger
	unsub     func()
	ctx       context.Context
	cancel    context.CancelFunc
	timeout   time.Duration

	publishFn func(topic string, payload []byte, retained bool)

	// Devices discovery was published for, kept to retract it on removal.
	mu         sync.Mutex
	discovered map[string]*store.Device
}

func newBridge(coord *coordinator.Coordinator, prefix string, discovery bool, logger *slog.Logger) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		coord:      coord,
		prefix:     prefix,
		discovery:  discovery,
		logger:     logger.With("component", "mqtt"),
		ctx:        ctx,
		cancel:     cancel,
		timeout:    10 * time.Second,
		discovered: make(map[string]*store.Device),
	}
}

// NewBridge creates and connects an MQTT bridge.
func NewBridge(coord *coordinator.Coordinator, cfg Config, logger *slog.Logger) (*Bridge, error) {
	b := newBridge(coord, cfg.TopicPrefix, cfg.Discovery, logger)
	b.publishFn = b.publishMQTT

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "zigbee-converters"
	}
	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(cfg.TopicPrefix+"/bridge/state", "offline", 1, true).
		SetOnConnectHandler(func(_ pahomqtt.Client) {
			b.logger.Info("MQTT connected")
			b.publishBridgeState("online")
			b.publishDevices()
			b.publishAllDiscovery()
			b.subscribeRequests()
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			b.logger.Warn("MQTT connection lost", "err", err)
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := pahomqtt.NewClient(opts)
	b.client = client
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return b, nil
}

// Start subscribes to coordinator events and begins MQTT publishing.
func (b *Bridge) Start() {
	b.unsub = b.coord.Events().OnAll(b.handleEvent)
	b.logger.Info("MQTT bridge started", "prefix", b.prefix)
}

// Stop publishes offline state, unsubscribes, and disconnects.
func (b *Bridge) Stop() {
	b.cancel()
	if b.unsub != nil {
		b.unsub()
	}
	b.publishBridgeState("offline")
	if b.client != nil {
		b.client.Disconnect(1000)
	}
	b.logger.Info("MQTT bridge stopped")
}

func (b *Bridge) handleEvent(event coordinator.Event) {
	switch event.Type {
	case coordinator.EventStateChanged:
		if sc, ok := event.Data.(coordinator.StateChange); ok {
			b.publishState(sc)
		}
	case coordinator.EventDeviceRegistered:
		data, _ := event.Data.(map[string]any)
		ieee, _ := data["ieee"].(string)
		if dev, err := b.coord.Store().GetDevice(ieee); err == nil {
			b.publishDeviceDiscovery(dev)
		}
		b.publishDevices()
	case coordinator.EventDeviceRemoved:
		data, _ := event.Data.(map[string]any)
		ieee, _ := data["ieee"].(string)
		b.handleDeviceRemoved(ieee)
		b.publishDevices()
	case coordinator.EventDeviceConfigured:
		b.publishDevices()
	}
}

// publishState publishes the full retained state, and the action of
// stateless remotes on <device>/action.
func (b *Bridge) publishState(sc coordinator.StateChange) {
	dev, err := b.coord.Store().GetDevice(sc.IEEE)
	if err != nil {
		return
	}
	payload := make(map[string]any, len(sc.State)+1)
	for k, v := range sc.State {
		payload[k] = v
	}
	if !dev.LastSeen.IsZero() {
		payload["last_seen"] = dev.LastSeen.Format(time.RFC3339)
	}

	topic := b.prefix + "/" + deviceTopicName(dev)
	b.publish(topic, mustJSON(payload), true)
	if action, ok := sc.Patch["action"].(string); ok {
		b.publish(topic+"/action", []byte(action), false)
	}
}

func (b *Bridge) handleDeviceRemoved(ieee string) {
	b.mu.Lock()
	dev, ok := b.discovered[ieee]
	delete(b.discovered, ieee)
	b.mu.Unlock()
	if !ok {
		return
	}
	b.publish(b.prefix+"/"+deviceTopicName(dev), nil, true)
	if p, err := b.coord.Profile(dev); err == nil {
		for _, msg := range buildRemoveDiscovery(dev, p) {
			b.publish(msg.Topic, msg.Payload, true)
		}
	}
}

func (b *Bridge) publishBridgeState(state string) {
	b.publish(b.prefix+"/bridge/state", []byte(state), true)
}

// bridgeDevice is one entry of <prefix>/bridge/devices.
type bridgeDevice struct {
	IEEEAddress  string      `json:"ieee_address"`
	FriendlyName string      `json:"friendly_name"`
	ModelID      string      `json:"model_id"`
	Manufacturer string      `json:"manufacturer"`
	Supported    bool        `json:"supported"`
	Configured   bool        `json:"configured"`
	Definition   *definition `json:"definition"`
}

type definition struct {
	Model       string           `json:"model"`
	Vendor      string           `json:"vendor"`
	Description string           `json:"description"`
	Exposes     []convert.Expose `json:"exposes"`
}

func (b *Bridge) publishDevices() {
	devices, err := b.coord.Devices().ListDevices()
	if err != nil {
		b.logger.Error("list devices", "err", err)
		return
	}
	list := make([]bridgeDevice, 0, len(devices))
	for _, dev := range devices {
		entry := bridgeDevice{
			IEEEAddress:  dev.IEEEAddress,
			FriendlyName: dev.Name(),
			ModelID:      dev.ZigbeeModel,
			Manufacturer: dev.Manufacturer,
			Configured:   dev.Configured,
		}
		if p, err := b.coord.Profile(dev); err == nil {
			entry.Supported = true
			entry.Definition = &definition{Model: p.Model, Vendor: p.Vendor, Description: p.Description, Exposes: p.Exposes}
		}
		list = append(list, entry)
	}
	b.publish(b.prefix+"/bridge/devices", mustJSON(list), true)
}

func (b *Bridge) publishAllDiscovery() {
	devices, err := b.coord.Devices().ListDevices()
	if err != nil {
		b.logger.Error("list devices for discovery", "err", err)
		return
	}
	for _, dev := range devices {
		b.publishDeviceDiscovery(dev)
	}
}

func (b *Bridge) publishDeviceDiscovery(dev *store.Device) {
	p, err := b.coord.Profile(dev)
	if err != nil {
		return
	}
	b.mu.Lock()
	b.discovered[dev.IEEEAddress] = dev
	b.mu.Unlock()
	if !b.discovery {
		return
	}
	for _, msg := range buildDiscovery(dev, p, b.prefix) {
		b.publish(msg.Topic, msg.Payload, true)
	}
	b.logger.Info("published HA discovery", "ieee", dev.IEEEAddress, "name", dev.Name())
}

func (b *Bridge) subscribeRequests() {
	topics := map[string]byte{
		b.prefix + "/+/set":                          1,
		b.prefix + "/+/set/+":                        1,
		b.prefix + "/+/get":                          1,
		b.prefix + "/bridge/request/device/configure": 1,
	}
	b.client.SubscribeMultiple(topics, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		go b.handleMessage(msg.Topic(), msg.Payload())
	})
}

// handleMessage routes a request topic.
func (b *Bridge) handleMessage(topic string, payload []byte) {
	rest, ok := strings.CutPrefix(topic, b.prefix+"/")
	if !ok {
		return
	}
	if rest == "bridge/request/device/configure" {
		b.handleConfigure(payload)
		return
	}

	parts := strings.Split(rest, "/")
	if len(parts) < 2 || parts[0] == "bridge" {
		return
	}
	dev, err := b.resolve(parts[0])
	if err != nil {
		b.logger.Warn("request for unknown device", "device", parts[0], "topic", topic)
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, b.timeout)
	defer cancel()

	switch {
	case parts[1] == "set" && len(parts) == 2:
		var values map[string]any
		if err := json.Unmarshal(payload, &values); err != nil {
			b.logger.Warn("invalid set payload", "device", dev.Name(), "err", err)
			return
		}
		b.set(ctx, dev, values)
	case parts[1] == "set" && len(parts) == 3:
		b.set(ctx, dev, map[string]any{parts[2]: rawValue(payload)})
	case parts[1] == "get" && len(parts) == 2:
		var keys map[string]any
		if err := json.Unmarshal(payload, &keys); err != nil {
			b.logger.Warn("invalid get payload", "device", dev.Name(), "err", err)
			return
		}
		for key := range keys {
			if _, err := b.coord.GetProperty(ctx, dev.IEEEAddress, key); err != nil {
				b.logger.Warn("get failed", "device", dev.Name(), "key", key, "err", err)
			}
		}
	}
}

func (b *Bridge) set(ctx context.Context, dev *store.Device, values map[string]any) {
	if _, err := b.coord.SetProperties(ctx, dev.IEEEAddress, values); err != nil {
		b.logger.Warn("set failed", "device", dev.Name(), "err", err)
	}
}

// configureResponse answers a bridge/request/device/configure request.
type configureResponse struct {
	Data   map[string]string `json:"data"`
	Status string            `json:"status"`
	Error  string            `json:"error,omitempty"`
}

func (b *Bridge) handleConfigure(payload []byte) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(payload, &req); err != nil || req.ID == "" {
		req.ID = strings.TrimSpace(string(payload))
	}

	resp := configureResponse{Data: map[string]string{"id": req.ID}, Status: "ok"}
	ctx, cancel := context.WithTimeout(b.ctx, b.timeout)
	defer cancel()

	dev, err := b.resolve(req.ID)
	if err == nil {
		err = b.coord.ConfigureDevice(ctx, dev.IEEEAddress)
	}
	if err != nil {
		resp.Status = "error"
		resp.Error = err.Error()
	}
	b.publish(b.prefix+"/bridge/response/device/configure", mustJSON(resp), false)
}

// resolve finds a device by friendly name, IEEE address or topic name.
func (b *Bridge) resolve(name string) (*store.Device, error) {
	dev, err := b.coord.Devices().Resolve(name)
	if err == nil {
		return dev, nil
	}
	devices, listErr := b.coord.Devices().ListDevices()
	if listErr != nil {
		return nil, listErr
	}
	for _, d := range devices {
		if deviceTopicName(d) == name {
			return d, nil
		}
	}
	return nil, err
}

// rawValue decodes a single-attribute payload: JSON when it parses, the
// plain string otherwise ("eco" and "\"eco\"" both work).
func rawValue(payload []byte) any {
	var v any
	if err := json.Unmarshal(payload, &v); err == nil {
		return v
	}
	return string(payload)
}

func (b *Bridge) publish(topic string, payload []byte, retained bool) {
	if b.publishFn != nil {
		b.publishFn(topic, payload, retained)
	}
}

func (b *Bridge) publishMQTT(topic string, payload []byte, retained bool) {
	token := b.client.Publish(topic, 1, retained, payload)
	go func() {
		if !token.WaitTimeout(5 * time.Second) {
			b.logger.Warn("MQTT publish timeout", "topic", topic)
		} else if err := token.Error(); err != nil {
			b.logger.Warn("MQTT publish error", "topic", topic, "err", err)
		}
	}()
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
