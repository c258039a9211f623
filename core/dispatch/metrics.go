package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	deliveryLatency     *prometheus.HistogramVec
	devicesNotified     *prometheus.CounterVec
	commitConflicts     prometheus.Counter
	fleetResets         prometheus.Counter
	respondersCommitted prometheus.Counter
	pushSuccess         prometheus.Counter
	pushFailure         prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.HistogramVec, *prometheus.CounterVec, prometheus.Counter, prometheus.Counter, prometheus.Counter, prometheus.Counter, prometheus.Counter) {
	lat := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_delivery_latency_seconds",
			Help:    "Latency of the delivery step for one event",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"event_kind"},
	)
	notified := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devices_notified_total",
			Help: "Number of devices with a confirmed notification delivery",
		},
		[]string{"event_kind"},
	)
	conflicts := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "commit_conflicts_total",
			Help: "Number of responder-state commits lost to a concurrent writer",
		},
	)
	resets := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleet_resets_total",
			Help: "Number of global responder resets processed",
		},
	)
	committed := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "responders_committed_total",
			Help: "Number of drivers transitioned available to responding",
		},
	)
	suc := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "push_send_success_total",
			Help: "Number of delivery batches the gateway accepted",
		},
	)
	fail := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "push_send_failure_total",
			Help: "Number of delivery batches that failed entirely",
		},
	)
	return lat, notified, conflicts, resets, committed, suc, fail
}

func init() {
	deliveryLatency, devicesNotified, commitConflicts, fleetResets, respondersCommitted, pushSuccess, pushFailure = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(deliveryLatency, devicesNotified, commitConflicts, fleetResets, respondersCommitted, pushSuccess, pushFailure)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	deliveryLatency, devicesNotified, commitConflicts, fleetResets, respondersCommitted, pushSuccess, pushFailure = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
