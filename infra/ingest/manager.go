package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/savelife/rescue/core/dispatch"
	"github.com/savelife/rescue/core/model"
	"github.com/savelife/rescue/infra/logger"
	"github.com/savelife/rescue/infra/push"
)

// Config defines the MQTT position report ingestor settings.
type Config struct {
	Enabled bool            `json:"enabled"`
	MQTT    push.MQTTConfig `json:"mqtt"`
	// ReportTopic is the subscription filter for device reports. The device
	// token is the second-to-last topic segment.
	ReportTopic string `json:"report_topic"`
	QoS         byte   `json:"qos"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.ReportTopic == "" {
		c.ReportTopic = "rescue/device/+/report"
	}
}

// Dispatcher consumes the events decoded from device reports.
type Dispatcher interface {
	HandleEvent(ctx context.Context, ev model.Event) (dispatch.Result, error)
}

var (
	reportsReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_reports_received_total",
		Help: "Device reports received over MQTT",
	}, []string{"role"})
	reportErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingest_report_errors_total",
		Help: "Device reports dropped due to decode or dispatch errors",
	})
)

func init() {
	prometheus.MustRegister(reportsReceived, reportErrors)
}

var newIngestClient = func(opts *paho.ClientOptions) paho.Client {
	return paho.NewClient(opts)
}

// Manager subscribes to the device report topic and feeds decoded position
// reports into the dispatch engine. It covers devices that publish their
// location over MQTT instead of the HTTP intake endpoint.
type Manager struct {
	cfg    Config
	cli    paho.Client
	engine Dispatcher
	log    logger.Logger
}

// NewManager connects to MQTT and prepares report ingestion.
func NewManager(cfg Config, engine Dispatcher) (*Manager, error) {
	cfg.SetDefaults()
	if engine == nil {
		return nil, fmt.Errorf("ingest: nil dispatcher")
	}
	opts, err := push.NewClientOptions(cfg.MQTT)
	if err != nil {
		return nil, err
	}
	id := cfg.MQTT.ClientID
	if id != "" {
		id += "-ingest"
	} else {
		id = "ingest-" + uuid.NewString()
	}
	opts.SetClientID(id)
	cli := newIngestClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &Manager{cfg: cfg, cli: cli, engine: engine, log: logger.New("ingest")}, nil
}

// Start subscribes to the report topic and blocks until the context is done.
func (m *Manager) Start(ctx context.Context) error {
	if token := m.cli.Subscribe(m.cfg.ReportTopic, m.cfg.QoS, m.onReport); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	m.log.Infof("ingesting reports from %s", m.cfg.ReportTopic)
	<-ctx.Done()
	if m.cli.IsConnected() {
		m.cli.Disconnect(250)
	}
	return nil
}

// report mirrors the device's MQTT publication. Role defaults to driver.
type report struct {
	Role string   `json:"role"`
	Lat  *float64 `json:"lat"`
	Lon  *float64 `json:"lon"`
}

func (m *Manager) onReport(_ paho.Client, msg paho.Message) {
	token := deviceToken(msg.Topic())
	if token == "" {
		reportErrors.Inc()
		m.log.Warnf("report without device token on %s", msg.Topic())
		return
	}
	var rep report
	if err := json.Unmarshal(msg.Payload(), &rep); err != nil {
		reportErrors.Inc()
		m.log.Warnf("malformed report from %s: %v", token, err)
		return
	}
	var pos *model.Position
	if rep.Lat != nil && rep.Lon != nil {
		pos = &model.Position{Lat: *rep.Lat, Lon: *rep.Lon}
	}

	var ev model.Event
	switch rep.Role {
	case "", "driver":
		rep.Role = "driver"
		ev = model.DriverReportEvent{Token: token, Position: pos}
	case "person":
		ev = model.PersonEvent{Token: token, Position: pos}
	default:
		reportErrors.Inc()
		m.log.Warnf("unsupported report role %q from %s", rep.Role, token)
		return
	}
	if _, err := m.engine.HandleEvent(context.Background(), ev); err != nil {
		reportErrors.Inc()
		m.log.Warnf("report from %s rejected: %v", token, err)
		return
	}
	reportsReceived.WithLabelValues(rep.Role).Inc()
}

// deviceToken extracts the token segment from <prefix>/<token>/report.
func deviceToken(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-2]
}
