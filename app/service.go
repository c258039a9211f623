package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	apidevices "github.com/savelife/rescue/api/devices"
	apidispatch "github.com/savelife/rescue/api/dispatch"
	"github.com/savelife/rescue/api/intake"
	"github.com/savelife/rescue/config"
	"github.com/savelife/rescue/core/devicestore"
	"github.com/savelife/rescue/core/dispatch"
	"github.com/savelife/rescue/core/dispatch/logging"
	coremon "github.com/savelife/rescue/core/monitoring"
	corepush "github.com/savelife/rescue/core/push"
	"github.com/savelife/rescue/infra/ingest"
	"github.com/savelife/rescue/infra/logger"
	"github.com/savelife/rescue/infra/metrics"
	"github.com/savelife/rescue/infra/monitoring"
	"github.com/savelife/rescue/infra/push"
	"github.com/savelife/rescue/internal/eventbus"
)

// Service orchestrates the dispatch engine and the API server.
type Service struct {
	Engine *dispatch.Engine
	Store  devicestore.Store

	bus         eventbus.EventBus
	audit       logging.LogStore
	log         logger.Logger
	httpAddr    string
	logToken    string
	promEnabled bool
	promAddr    string
	ingestCfg   ingest.Config
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")
	gateway, err := newGateway(cfg.Push)
	if err != nil {
		return nil, fmt.Errorf("push gateway: %w", err)
	}

	monitor, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(monitor)

	sink, err := metrics.BuildSinks(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metric sinks: %w", err)
	}

	bus := eventbus.New()
	store := devicestore.NewMemoryStore()
	engine, err := dispatch.NewEngine(
		dispatch.RoleFilter{},
		dispatch.PayloadBuilder{},
		gateway,
		store,
		cfg.Dispatch,
		sink,
		bus,
		logg,
	)
	if err != nil {
		return nil, fmt.Errorf("dispatch engine: %w", err)
	}

	svc := &Service{
		Engine:      engine,
		Store:       store,
		bus:         bus,
		log:         logg,
		httpAddr:    cfg.HTTP.Addr,
		logToken:    cfg.HTTP.LogToken,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promAddr:    cfg.Metrics.PrometheusAddr,
		ingestCfg:   cfg.Ingest,
	}
	if cfg.Logging.Enabled {
		audit, err := newAuditStore(cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("audit store: %w", err)
		}
		engine.SetAuditStore(audit)
		svc.audit = audit
	}
	return svc, nil
}

func newGateway(cfg config.PushConfig) (corepush.Gateway, error) {
	switch cfg.Backend {
	case "mqtt":
		return push.NewMQTTGateway(cfg.MQTT)
	case "http":
		return push.NewHTTPGateway(cfg.HTTP)
	case "mock":
		return push.NewMockGateway(), nil
	default:
		return nil, fmt.Errorf("unknown push backend %s", cfg.Backend)
	}
}

func newAuditStore(cfg config.LoggingConfig) (logging.LogStore, error) {
	switch cfg.Backend {
	case "sqlite":
		return logging.NewSQLiteStore(cfg.Path)
	default:
		if cfg.MaxSizeMB > 0 {
			return logging.NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
		}
		return logging.NewJSONLStore(cfg.Path)
	}
}

// Run starts the API server and blocks until the context is cancelled or the
// server fails.
func (s *Service) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/api/events", intake.NewHandler(s.Engine, s.log))
	mux.Handle("/api/devices", apidevices.NewStatusHandler(s.Store))
	if s.audit != nil {
		mux.Handle("/api/dispatch/logs", apidispatch.NewLogHandler(s.audit, s.logToken))
	}
	srv := &http.Server{Addr: s.httpAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promAddr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if s.ingestCfg.Enabled {
		mgr, err := ingest.NewManager(s.ingestCfg, s.Engine)
		if err != nil {
			return fmt.Errorf("report ingestor: %w", err)
		}
		go func() {
			if err := mgr.Start(ctx); err != nil {
				s.log.Errorf("report ingestor: %v", err)
			}
		}()
	}
	go s.observe(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("http shutdown: %v", err)
		}
	}()

	s.log.Infof("listening on %s", s.httpAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// observe traces dispatch lifecycle events from the bus for debugging.
func (s *Service) observe(ctx context.Context) {
	ch := s.bus.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			s.log.Debugf("bus event: %+v", ev)
		}
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	coremon.Flush(2 * time.Second)
	return s.Engine.Close()
}
