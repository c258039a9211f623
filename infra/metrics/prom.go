package metrics

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	coremetrics "github.com/savelife/rescue/core/metrics"
)

// PromSink records dispatch outcomes in Prometheus metrics.
type PromSink struct {
	outcomes *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	resets   prometheus.Counter
}

// NewPromSink registers dispatch metrics on the default Prometheus registerer.
// The Prometheus server should be started separately via StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_outcomes_total",
		Help: "Per-recipient dispatch outcomes",
	}, []string{"event_kind", "delivered", "committed"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_recipient_latency_seconds",
		Help:    "Delivery latency attributed to each recipient",
		Buckets: prometheus.DefBuckets,
	}, []string{"event_kind", "delivered"})
	resets := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "responder_resets_recorded_total",
		Help: "Responders released by global resets",
	})

	if err := reg.Register(outcomes); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			outcomes = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(latency); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			latency = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(resets); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			resets = are.ExistingCollector.(prometheus.Counter)
		} else {
			return nil, err
		}
	}
	return &PromSink{outcomes: outcomes, latency: latency, resets: resets}, nil
}

// RecordDispatch increments the counters for each recipient outcome.
func (s *PromSink) RecordDispatch(recs []coremetrics.DispatchRecord) error {
	for _, r := range recs {
		delivered := strconv.FormatBool(r.Delivered)
		s.outcomes.WithLabelValues(r.EventKind, delivered, strconv.FormatBool(r.Committed)).Inc()
		s.latency.WithLabelValues(r.EventKind, delivered).Observe(r.Latency.Seconds())
	}
	return nil
}

// RecordReset adds the released responder count.
func (s *PromSink) RecordReset(count int, _ time.Time) error {
	s.resets.Add(float64(count))
	return nil
}

// StartPromServer starts an HTTP server exposing Prometheus metrics on the
// given address. The server runs until the provided context is canceled. A
// dedicated ServeMux is used to avoid interfering with other handlers.
func StartPromServer(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("prom server shutdown: %v", err)
		}
		cancel()
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
