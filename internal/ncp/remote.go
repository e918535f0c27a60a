package ncp

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/niracler/zigbee-herdsman-converters/internal/zcl"
)

// RemoteConfig configures a RemoteNCP.
type RemoteConfig struct {
	Broker      string
	Username    string
	Password    string
	ClientID    string
	TopicPrefix string
	Timeout     time.Duration
}

const (
	defaultResponseTimeout = 5 * time.Second
	indicationQueue        = 64
)

// ErrClosed is returned for requests pending or issued after Close.
var ErrClosed = errors.New("ncp closed")

// envelope is the JSON body of <prefix>/ncp/tx and <prefix>/ncp/rx
// messages. Frame is the hex-encoded ZCL frame.
type envelope struct {
	Addr    uint16 `json:"addr"`
	EP      uint8  `json:"ep"`
	Cluster uint16 `json:"cluster"`
	Frame   string `json:"frame"`
	LQI     uint8  `json:"lqi,omitempty"`
}

type bindEnvelope struct {
	TSN     uint8  `json:"tsn"`
	Addr    uint16 `json:"addr"`
	IEEE    string `json:"ieee"`
	EP      uint8  `json:"ep"`
	Cluster uint16 `json:"cluster"`
	DstEP   uint8  `json:"dst_ep"`
}

type bindResponse struct {
	TSN    uint8 `json:"tsn"`
	Status uint8 `json:"status"`
}

type pendingKey struct {
	addr uint16
	tsn  uint8
}

// RemoteNCP implements NCP against a coordinator reachable over MQTT. It
// builds and parses ZCL frames locally; the remote side only relays them.
// Responses are matched to requests by source address and ZCL transaction
// sequence number.
type RemoteNCP struct {
	client  pahomqtt.Client
	publish func(topic string, payload []byte) error
	prefix  string
	timeout time.Duration
	logger  *slog.Logger

	tsn atomic.Uint32

	pendingMu   sync.Mutex
	pending     map[pendingKey]chan zcl.Frame
	bindPending map[uint8]chan uint8

	handlerMu    sync.RWMutex
	onReport     func(AttributeReportEvent)
	onClusterCmd func(ClusterCommandEvent)

	// Indications run on one worker, in arrival order, off the MQTT
	// receive path so handlers may issue requests and await responses.
	indications chan func()

	done      chan struct{}
	closeOnce sync.Once
}

var _ NCP = (*RemoteNCP)(nil)

// NewRemoteNCP connects to the broker and subscribes to the receive topics.
func NewRemoteNCP(cfg RemoteConfig, logger *slog.Logger) (*RemoteNCP, error) {
	r := newRemote(cfg.TopicPrefix, cfg.Timeout, nil, logger)

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "zigbee-converters-ncp"
	}
	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(false).
		SetOnConnectHandler(func(c pahomqtt.Client) {
			r.logger.Info("remote ncp connected", "prefix", r.prefix)
			r.subscribe(c)
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			r.logger.Warn("remote ncp connection lost", "err", err)
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		r.Close()
		return nil, fmt.Errorf("remote ncp connect timeout")
	}
	if err := token.Error(); err != nil {
		r.Close()
		return nil, fmt.Errorf("remote ncp connect: %w", err)
	}
	r.client = client
	r.publish = func(topic string, payload []byte) error {
		t := client.Publish(topic, 1, false, payload)
		if !t.WaitTimeout(r.timeout) {
			return fmt.Errorf("publish %s: timeout", topic)
		}
		return t.Error()
	}
	return r, nil
}

func newRemote(prefix string, timeout time.Duration, publish func(string, []byte) error, logger *slog.Logger) *RemoteNCP {
	if timeout <= 0 {
		timeout = defaultResponseTimeout
	}
	r := &RemoteNCP{
		publish:     publish,
		prefix:      prefix,
		timeout:     timeout,
		logger:      logger.With("component", "ncp"),
		pending:     make(map[pendingKey]chan zcl.Frame),
		bindPending: make(map[uint8]chan uint8),
		indications: make(chan func(), indicationQueue),
		done:        make(chan struct{}),
	}
	go r.runIndications()
	return r
}

func (r *RemoteNCP) runIndications() {
	for {
		select {
		case f := <-r.indications:
			f()
		case <-r.done:
			return
		}
	}
}

func (r *RemoteNCP) deliver(f func()) {
	select {
	case r.indications <- f:
	case <-r.done:
	}
}

func (r *RemoteNCP) subscribe(c pahomqtt.Client) {
	subs := map[string]pahomqtt.MessageHandler{
		r.prefix + "/ncp/rx": func(_ pahomqtt.Client, m pahomqtt.Message) {
			r.handleRX(m.Payload())
		},
		r.prefix + "/ncp/zdo/bind/rsp": func(_ pahomqtt.Client, m pahomqtt.Message) {
			r.handleBindResponse(m.Payload())
		},
	}
	for topic, h := range subs {
		if t := c.Subscribe(topic, 1, h); t.Wait() && t.Error() != nil {
			r.logger.Error("subscribe failed", "topic", topic, "err", t.Error())
		}
	}
}

func (r *RemoteNCP) nextTSN() uint8 {
	return uint8(r.tsn.Add(1))
}

// send publishes frame and, when want is true, waits for the response frame
// carrying the same TSN from addr.
func (r *RemoteNCP) send(ctx context.Context, addr uint16, ep uint8, clusterID uint16, tsn uint8, frame []byte, want bool) (zcl.Frame, error) {
	var ch chan zcl.Frame
	key := pendingKey{addr: addr, tsn: tsn}
	if want {
		ch = make(chan zcl.Frame, 1)
		r.pendingMu.Lock()
		r.pending[key] = ch
		r.pendingMu.Unlock()
		defer func() {
			r.pendingMu.Lock()
			delete(r.pending, key)
			r.pendingMu.Unlock()
		}()
	}

	body, err := json.Marshal(envelope{Addr: addr, EP: ep, Cluster: clusterID, Frame: hex.EncodeToString(frame)})
	if err != nil {
		return zcl.Frame{}, err
	}
	select {
	case <-r.done:
		return zcl.Frame{}, ErrClosed
	default:
	}
	if err := r.publish(r.prefix+"/ncp/tx", body); err != nil {
		return zcl.Frame{}, fmt.Errorf("ncp tx: %w", err)
	}
	r.logger.Debug("zcl TX",
		"short", fmt.Sprintf("0x%04X", addr),
		"ep", ep,
		"cluster", fmt.Sprintf("0x%04X", clusterID),
		"tsn", tsn,
		"frame", fmt.Sprintf("%X", frame))
	if !want {
		return zcl.Frame{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	select {
	case resp, ok := <-ch:
		if !ok {
			return zcl.Frame{}, ErrClosed
		}
		return resp, nil
	case <-ctx.Done():
		r.logger.Warn("zcl response timeout", "short", fmt.Sprintf("0x%04X", addr), "tsn", tsn, "err", ctx.Err())
		return zcl.Frame{}, ctx.Err()
	case <-r.done:
		return zcl.Frame{}, ErrClosed
	}
}

// statusFromDefault converts a Default Response received instead of the
// expected response into an error.
func statusFromDefault(resp zcl.Frame) error {
	_, status, err := zcl.ParseDefaultResponse(resp.Payload)
	if err != nil {
		return err
	}
	if status != zcl.ZCLStatusSuccess {
		return &zcl.StatusError{Status: status}
	}
	return nil
}

func (r *RemoteNCP) ReadAttributes(ctx context.Context, req ReadAttributesRequest) ([]zcl.AttributeStatus, error) {
	tsn := r.nextTSN()
	frame := zcl.BuildReadAttributes(zcl.Header{ManufacturerCode: req.ManufacturerCode, TSN: tsn}, req.AttrIDs)
	resp, err := r.send(ctx, req.DstAddr, req.DstEP, req.ClusterID, tsn, frame, true)
	if err != nil {
		return nil, err
	}
	switch resp.CommandID {
	case zcl.FoundationReadAttributesResponse:
		return zcl.ParseReadAttributesResponse(resp.Payload)
	case zcl.FoundationDefaultResponse:
		if err := statusFromDefault(resp); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return nil, fmt.Errorf("unexpected response command 0x%02X to read attributes", resp.CommandID)
}

func (r *RemoteNCP) WriteAttributes(ctx context.Context, req WriteAttributesRequest) error {
	tsn := r.nextTSN()
	frame, err := zcl.BuildWriteAttributes(zcl.Header{ManufacturerCode: req.ManufacturerCode, TSN: tsn}, req.Records)
	if err != nil {
		return err
	}
	resp, err := r.send(ctx, req.DstAddr, req.DstEP, req.ClusterID, tsn, frame, true)
	if err != nil {
		return err
	}
	switch resp.CommandID {
	case zcl.FoundationWriteAttributesResp:
		statuses, err := zcl.ParseWriteAttributesResponse(resp.Payload)
		if err != nil {
			return err
		}
		return zcl.ResponseError(statuses)
	case zcl.FoundationDefaultResponse:
		return statusFromDefault(resp)
	}
	return fmt.Errorf("unexpected response command 0x%02X to write attributes", resp.CommandID)
}

func (r *RemoteNCP) ConfigureReporting(ctx context.Context, req ConfigureReportingRequest) error {
	tsn := r.nextTSN()
	frame, err := zcl.BuildConfigureReporting(zcl.Header{ManufacturerCode: req.ManufacturerCode, TSN: tsn}, req.Configs)
	if err != nil {
		return err
	}
	resp, err := r.send(ctx, req.DstAddr, req.DstEP, req.ClusterID, tsn, frame, true)
	if err != nil {
		return err
	}
	switch resp.CommandID {
	case zcl.FoundationConfigReportingResp:
		statuses, err := zcl.ParseConfigureReportingResponse(resp.Payload)
		if err != nil {
			return err
		}
		return zcl.ResponseError(statuses)
	case zcl.FoundationDefaultResponse:
		return statusFromDefault(resp)
	}
	return fmt.Errorf("unexpected response command 0x%02X to configure reporting", resp.CommandID)
}

// DefaultResponse sends a Default Response without awaiting anything back.
func (r *RemoteNCP) DefaultResponse(ctx context.Context, req DefaultResponseRequest) error {
	frame := zcl.BuildDefaultResponse(zcl.Header{ServerToClient: true, TSN: req.TSN}, req.CommandID, req.Status)
	_, err := r.send(ctx, req.DstAddr, req.DstEP, req.ClusterID, req.TSN, frame, false)
	return err
}

func (r *RemoteNCP) Bind(ctx context.Context, req BindRequest) error {
	tsn := r.nextTSN()
	ch := make(chan uint8, 1)
	r.pendingMu.Lock()
	r.bindPending[tsn] = ch
	r.pendingMu.Unlock()
	defer func() {
		r.pendingMu.Lock()
		delete(r.bindPending, tsn)
		r.pendingMu.Unlock()
	}()

	body, err := json.Marshal(bindEnvelope{
		TSN:     tsn,
		Addr:    req.TargetShortAddr,
		IEEE:    hex.EncodeToString(req.SrcIEEE[:]),
		EP:      req.SrcEP,
		Cluster: req.ClusterID,
		DstEP:   req.DstEP,
	})
	if err != nil {
		return err
	}
	if err := r.publish(r.prefix+"/ncp/zdo/bind", body); err != nil {
		return fmt.Errorf("ncp bind: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	select {
	case status, ok := <-ch:
		if !ok {
			return ErrClosed
		}
		if status != 0 {
			return fmt.Errorf("bind cluster 0x%04X: zdo status 0x%02X", req.ClusterID, status)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrClosed
	}
}

// handleRX decodes an incoming frame and routes it to a pending request or
// to the indication handlers.
func (r *RemoteNCP) handleRX(payload []byte) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		r.logger.Warn("bad rx envelope", "err", err)
		return
	}
	raw, err := hex.DecodeString(env.Frame)
	if err != nil {
		r.logger.Warn("bad rx frame", "err", err)
		return
	}
	frame, err := zcl.ParseFrame(raw)
	if err != nil {
		r.logger.Warn("zcl decode error", "err", err)
		return
	}
	r.logger.Debug("zcl RX",
		"short", fmt.Sprintf("0x%04X", env.Addr),
		"ep", env.EP,
		"cluster", fmt.Sprintf("0x%04X", env.Cluster),
		"tsn", frame.TSN,
		"cmd", fmt.Sprintf("0x%02X", frame.CommandID))

	if frame.Global() {
		switch frame.CommandID {
		case zcl.FoundationReadAttributesResponse, zcl.FoundationWriteAttributesResp,
			zcl.FoundationConfigReportingResp, zcl.FoundationDefaultResponse:
			r.pendingMu.Lock()
			ch, ok := r.pending[pendingKey{addr: env.Addr, tsn: frame.TSN}]
			r.pendingMu.Unlock()
			if ok {
				select {
				case ch <- frame:
				default:
				}
			} else {
				r.logger.Debug("orphaned zcl response", "short", fmt.Sprintf("0x%04X", env.Addr), "tsn", frame.TSN)
			}
			return

		case zcl.FoundationReportAttributes:
			records, err := zcl.ParseAttributeReports(frame.Payload)
			if err != nil {
				r.logger.Warn("bad attribute report", "err", err)
			}
			if len(records) == 0 {
				return
			}
			r.handlerMu.RLock()
			onReport := r.onReport
			r.handlerMu.RUnlock()
			if onReport != nil {
				evt := AttributeReportEvent{
					SrcAddr:          env.Addr,
					SrcEP:            env.EP,
					ClusterID:        env.Cluster,
					ManufacturerCode: frame.ManufacturerCode,
					TSN:              frame.TSN,
					Records:          records,
					LQI:              env.LQI,
				}
				r.deliver(func() { onReport(evt) })
			}
		}
		return
	}

	r.handlerMu.RLock()
	onClusterCmd := r.onClusterCmd
	r.handlerMu.RUnlock()
	if onClusterCmd != nil {
		evt := ClusterCommandEvent{
			SrcAddr:          env.Addr,
			SrcEP:            env.EP,
			ClusterID:        env.Cluster,
			ManufacturerCode: frame.ManufacturerCode,
			TSN:              frame.TSN,
			CommandID:        frame.CommandID,
			ServerToClient:   frame.ServerToClient,
			Payload:          frame.Payload,
			LQI:              env.LQI,
		}
		r.deliver(func() { onClusterCmd(evt) })
	}
}

func (r *RemoteNCP) handleBindResponse(payload []byte) {
	var rsp bindResponse
	if err := json.Unmarshal(payload, &rsp); err != nil {
		r.logger.Warn("bad bind response", "err", err)
		return
	}
	r.pendingMu.Lock()
	ch, ok := r.bindPending[rsp.TSN]
	r.pendingMu.Unlock()
	if ok {
		select {
		case ch <- rsp.Status:
		default:
		}
	}
}

func (r *RemoteNCP) OnAttributeReport(handler func(AttributeReportEvent)) {
	r.handlerMu.Lock()
	defer r.handlerMu.Unlock()
	r.onReport = handler
}

func (r *RemoteNCP) OnClusterCommand(handler func(ClusterCommandEvent)) {
	r.handlerMu.Lock()
	defer r.handlerMu.Unlock()
	r.onClusterCmd = handler
}

// Close fails pending requests and disconnects from the broker.
func (r *RemoteNCP) Close() error {
	r.closeOnce.Do(func() {
		close(r.done)
		if r.client != nil {
			r.client.Disconnect(250)
		}
	})
	return nil
}
