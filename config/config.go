package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/savelife/rescue/core/dispatch"
	"github.com/savelife/rescue/core/factory"
	"github.com/savelife/rescue/infra/ingest"
	"github.com/savelife/rescue/infra/monitoring"
	"github.com/savelife/rescue/infra/push"
)

type Config struct {
	Push     PushConfig              `json:"push"`
	Dispatch dispatch.Config         `json:"dispatch"`
	Metrics  MetricsConfig           `json:"metrics"`
	Logging  LoggingConfig           `json:"logging"`
	HTTP     HTTPConfig              `json:"http"`
	Ingest   ingest.Config           `json:"ingest"`
	Sentry   monitoring.SentryConfig `json:"sentry"`
}

// PushConfig selects and configures the delivery gateway backend.
type PushConfig struct {
	// Backend is one of "mqtt", "http" or "mock".
	Backend string          `json:"backend"`
	MQTT    push.MQTTConfig `json:"mqtt"`
	HTTP    push.HTTPConfig `json:"http"`
}

// SetDefaults applies sane defaults.
func (c *PushConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "mqtt"
	}
}

// Validate checks mandatory fields.
func (c PushConfig) Validate() error {
	switch c.Backend {
	case "mqtt", "http", "mock":
		return nil
	default:
		return fmt.Errorf("unknown push backend %s", c.Backend)
	}
}

// MetricsConfig enables the optional metric sinks. Sinks are module configs
// resolved through the sink registry ("nop", "prom", "influx").
type MetricsConfig struct {
	Sinks             []factory.ModuleConfig `json:"sinks"`
	PrometheusEnabled bool                   `json:"prometheus_enabled"`
	PrometheusAddr    string                 `json:"prometheus_addr"`
}

// SetDefaults applies sane defaults.
func (c *MetricsConfig) SetDefaults() {
	if c.PrometheusAddr == "" {
		c.PrometheusAddr = ":9100"
	}
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr string `json:"addr"`
	// LogToken protects the dispatch log endpoint when non-empty.
	LogToken string `json:"log_token"`
}

// SetDefaults applies sane defaults.
func (c *HTTPConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("RESCUE_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "rescue_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Push.SetDefaults()
	cfg.Dispatch.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.Logging.SetDefaults()
	cfg.HTTP.SetDefaults()
	cfg.Ingest.SetDefaults()
	if err := cfg.Push.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Dispatch.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Logging.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
