package push

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/savelife/rescue/core/model"
	corepush "github.com/savelife/rescue/core/push"
	"github.com/savelife/rescue/infra/logger"
)

// MQTTConfig defines the connection parameters for the Paho MQTT gateway.
type MQTTConfig struct {
	Broker       string `json:"broker"`
	ClientID     string `json:"client_id"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	TopicPrefix  string `json:"topic_prefix"`
	ReceiptTopic string `json:"receipt_topic"`
	QoS          byte   `json:"qos"`
	UseTLS       bool   `json:"use_tls"`
	ClientCert   string `json:"client_cert"`
	ClientKey    string `json:"client_key"`
	CABundle     string `json:"ca_bundle"`
}

// SetDefaults applies sane defaults.
func (c *MQTTConfig) SetDefaults() {
	if c.TopicPrefix == "" {
		c.TopicPrefix = "rescue/device"
	}
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// MQTTGateway delivers notification payloads over MQTT, one topic per device.
// When a receipt topic is configured a payload counts as delivered only after
// the device publishes a receipt carrying the payload id; otherwise broker
// acceptance of the publish is enough.
type MQTTGateway struct {
	cli          pahoClient
	prefix       string
	qos          byte
	waitReceipts bool

	mu       sync.Mutex
	receipts map[string]chan struct{}
	log      logger.Logger
}

// NewMQTTGateway connects to the broker and, when configured, subscribes to
// the receipt topic.
func NewMQTTGateway(cfg MQTTConfig) (*MQTTGateway, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("push_mqtt")
	g := &MQTTGateway{
		prefix:   cfg.TopicPrefix,
		qos:      cfg.QoS,
		receipts: make(map[string]chan struct{}),
		log:      log,
	}
	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		if cfg.ReceiptTopic == "" {
			return
		}
		if token := c.Subscribe(cfg.ReceiptTopic, cfg.QoS, g.onReceipt); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	g.cli = c
	g.waitReceipts = cfg.ReceiptTopic != ""
	return g, nil
}

// NewClientOptions builds Paho client options from the config. Shared with
// other MQTT consumers such as the report ingestor.
func NewClientOptions(cfg MQTTConfig) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.loadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	return opts, nil
}

func (c MQTTConfig) loadTLSConfig() (*tls.Config, error) {
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
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

// onReceipt resolves the waiter registered for the receipt's payload id.
func (g *MQTTGateway) onReceipt(_ paho.Client, m paho.Message) {
	var rec struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(m.Payload(), &rec); err != nil || rec.ID == "" {
		g.log.Warnf("malformed receipt on %s", m.Topic())
		return
	}
	g.mu.Lock()
	ch, ok := g.receipts[rec.ID]
	if ok {
		delete(g.receipts, rec.ID)
	}
	g.mu.Unlock()
	if ok {
		close(ch)
	}
}

func (g *MQTTGateway) register(id string) chan struct{} {
	ch := make(chan struct{})
	g.mu.Lock()
	g.receipts[id] = ch
	g.mu.Unlock()
	return ch
}

func (g *MQTTGateway) unregister(id string) {
	g.mu.Lock()
	delete(g.receipts, id)
	g.mu.Unlock()
}

// Send publishes every payload concurrently and reports the recipients whose
// delivery was confirmed before ctx expired.
func (g *MQTTGateway) Send(ctx context.Context, payloads []model.NotificationPayload) (map[string]bool, error) {
	if g.cli == nil || !g.cli.IsConnected() {
		return nil, corepush.ErrGatewayUnavailable
	}
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		delivered = make(map[string]bool, len(payloads))
	)
	for _, p := range payloads {
		wg.Add(1)
		go func(p model.NotificationPayload) {
			defer wg.Done()
			if g.send(ctx, p) {
				mu.Lock()
				delivered[p.Recipient] = true
				mu.Unlock()
			}
		}(p)
	}
	wg.Wait()
	return delivered, nil
}

func (g *MQTTGateway) send(ctx context.Context, p model.NotificationPayload) bool {
	body, err := json.Marshal(p)
	if err != nil {
		g.log.Errorf("marshal payload %s: %v", p.ID, err)
		return false
	}
	var wait chan struct{}
	if g.waitReceipts {
		wait = g.register(p.ID)
		defer g.unregister(p.ID)
	}
	topic := fmt.Sprintf("%s/%s/notify", g.prefix, p.Recipient)
	token := g.cli.Publish(topic, g.qos, false, body)
	if !token.WaitTimeout(publishTimeout) || token.Error() != nil {
		g.log.Warnf("publish to %s failed: %v", topic, token.Error())
		return false
	}
	if wait == nil {
		return true
	}
	select {
	case <-wait:
		return true
	case <-ctx.Done():
		return false
	}
}

// Close disconnects from the broker.
func (g *MQTTGateway) Close() {
	if g.cli != nil {
		g.cli.Disconnect(disconnectQuiesceMS)
	}
}

const (
	publishTimeout      = 5 * time.Second
	disconnectQuiesceMS = 250
)
