// Package mqtt connects the engine to an MQTT broker: committed schedule
// summaries are published and disruption events are consumed.
package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/berthplan/core/engine"
	"github.com/kilianp07/berthplan/core/reschedule"
	"github.com/kilianp07/berthplan/infra/logger"
)

const (
	DefaultUpdatesTopic = "berth/schedule/updates"
	DefaultEventsTopic  = "berth/events/+"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker       string          `json:"broker"`
	ClientID     string          `json:"client_id"`
	Username     string          `json:"username"`
	Password     string          `json:"password"`
	UpdatesTopic string          `json:"updates_topic"`
	EventsTopic  string          `json:"events_topic"`
	UseTLS       bool            `json:"use_tls"`
	ClientCert   string          `json:"client_cert"`
	ClientKey    string          `json:"client_key"`
	CABundle     string          `json:"ca_bundle"`
	AuthMethod   string          `json:"auth_method"`
	QoS          map[string]byte `json:"qos"`
	LWTTopic     string          `json:"lwt_topic"`
	LWTPayload   string          `json:"lwt_payload"`
	LWTQoS       byte            `json:"lwt_qos"`
	LWTRetain    bool            `json:"lwt_retain"`
	MaxRetries   int             `json:"max_retries"`
	BackoffMS    int             `json:"backoff_ms"`
	EventBuffer  int             `json:"event_buffer"`
	TLSConfig    *tls.Config     `json:"-"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "berthplan"
	}
	if c.UpdatesTopic == "" {
		c.UpdatesTopic = DefaultUpdatesTopic
	}
	if c.EventsTopic == "" {
		c.EventsTopic = DefaultEventsTopic
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = 64
	}
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// PahoClient publishes schedule summaries and forwards disruption events
// received on the events topic. It implements engine.Notifier.
type PahoClient struct {
	cli          pahoClient
	updatesTopic string
	eventsTopic  string
	qos          map[string]byte
	maxRetries   int
	backoff      time.Duration
	logger       logger.Logger

	mu     sync.Mutex
	events chan reschedule.Event
	closed bool
}

var _ engine.Notifier = (*PahoClient)(nil)

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoClient connects to the MQTT broker and subscribes to the events topic.
func NewPahoClient(cfg Config) (*PahoClient, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	logger := logger.New("mqtt_client")
	pc := &PahoClient{
		updatesTopic: cfg.UpdatesTopic,
		eventsTopic:  cfg.EventsTopic,
		qos:          cfg.QoS,
		maxRetries:   cfg.MaxRetries,
		backoff:      time.Duration(cfg.BackoffMS) * time.Millisecond,
		logger:       logger,
		events:       make(chan reschedule.Event, cfg.EventBuffer),
	}

	opts.OnConnect = func(c paho.Client) {
		logger.Infof("MQTT connected")
		if token := c.Subscribe(pc.eventsTopic, pc.qosFor("events"), pc.onEvent); token.Wait() && token.Error() != nil {
			logger.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		logger.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		logger.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	pc.cli = c
	return pc, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	cfg := &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}
	return cfg, nil
}

func (p *PahoClient) qosFor(kind string) byte {
	if q, ok := p.qos[kind]; ok {
		return q
	}
	return 0
}

// Events returns the disruption events received from the broker. The
// channel is closed by Disconnect.
func (p *PahoClient) Events() <-chan reschedule.Event { return p.events }

func (p *PahoClient) onEvent(_ paho.Client, msg paho.Message) {
	ev, err := decodeMessage(msg.Topic(), msg.Payload())
	if err != nil {
		p.logger.Errorf("failed to decode event on %s: %v", msg.Topic(), err)
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.events <- ev:
		p.logger.Debugf("received %s event on %s", ev.Kind(), msg.Topic())
	default:
		p.logger.Warnf("event buffer full, dropping %s event", ev.Kind())
	}
}

// decodeMessage decodes an event envelope. A payload without a type takes
// it from the last topic segment, so berth/events/vessel_delayed carries
// a bare VesselDelayed body.
func decodeMessage(topic string, payload []byte) (reschedule.Event, error) {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if _, ok := fields["type"]; !ok {
		kind := topic[strings.LastIndex(topic, "/")+1:]
		raw, err := json.Marshal(kind)
		if err != nil {
			return nil, err
		}
		fields["type"] = raw
		if payload, err = json.Marshal(fields); err != nil {
			return nil, err
		}
	}
	return reschedule.DecodeEvent(payload)
}

// updateMessage is the payload published for every committed update.
type updateMessage struct {
	MessageID string `json:"message_id"`
	Timestamp int64  `json:"timestamp"`
	engine.Summary
}

// NotifySchedule publishes the summary to the updates topic, retrying with
// exponential backoff.
func (p *PahoClient) NotifySchedule(ctx context.Context, s engine.Summary) error {
	msg := updateMessage{MessageID: uuid.NewString(), Timestamp: time.Now().UnixMilli(), Summary: s}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	qos := p.qosFor("updates")
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(p.updatesTopic, qos, false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.logger.Infof("published update %s (v%d) as %s", s.UpdateID, s.Version, msg.MessageID)
			return nil
		}
		p.logger.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt == p.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.backoff * time.Duration(1<<attempt)):
		}
	}
	return fmt.Errorf("publish update %s: %w", s.UpdateID, publishErr)
}

// Disconnect gracefully closes the MQTT connection and the events channel.
func (p *PahoClient) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.events)
	}
	p.mu.Unlock()
}
