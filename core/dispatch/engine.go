package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/savelife/rescue/core/devicestore"
	"github.com/savelife/rescue/core/dispatch/logging"
	"github.com/savelife/rescue/core/events"
	"github.com/savelife/rescue/core/geo"
	"github.com/savelife/rescue/core/logger"
	"github.com/savelife/rescue/core/metrics"
	"github.com/savelife/rescue/core/model"
	"github.com/savelife/rescue/core/monitoring"
	"github.com/savelife/rescue/core/push"
	"github.com/savelife/rescue/internal/eventbus"
)

const (
	reroutePrompt = "Hi, would you like to rebuild your path?"
	helpPrefix    = "Need a help due to the "
)

// Engine orchestrates one inbound event: filter candidates, build payloads,
// deliver, and commit responder-state transitions for confirmed deliveries.
// Events are processed concurrently; per-device consistency comes from the
// store's compare-and-set, not from serializing events.
type Engine struct {
	filter  EligibilityFilter
	builder Builder
	gateway push.Gateway
	store   devicestore.Store
	cfg     Config
	log     logger.Logger
	sink    metrics.Sink
	bus     eventbus.EventBus

	mu    sync.Mutex
	audit logging.LogStore
}

// NewEngine creates a new engine. sink and bus may be nil.
func NewEngine(filter EligibilityFilter, builder Builder, gateway push.Gateway, store devicestore.Store, cfg Config, sink metrics.Sink, bus eventbus.EventBus, log logger.Logger) (*Engine, error) {
	if filter == nil || builder == nil || gateway == nil || store == nil || log == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewEngine")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Engine{
		filter:  filter,
		builder: builder,
		gateway: gateway,
		store:   store,
		cfg:     cfg,
		log:     log,
		sink:    sink,
		bus:     bus,
	}, nil
}

// SetAuditStore configures the store used to persist dispatch records.
func (e *Engine) SetAuditStore(store logging.LogStore) {
	e.mu.Lock()
	e.audit = store
	e.mu.Unlock()
}

// Close releases resources held by the engine.
func (e *Engine) Close() error {
	if e.bus != nil {
		e.bus.Close()
	}
	e.mu.Lock()
	store := e.audit
	e.mu.Unlock()
	if store != nil {
		return store.Close()
	}
	return nil
}

// HandleEvent dispatches on the event variant.
func (e *Engine) HandleEvent(ctx context.Context, ev model.Event) (Result, error) {
	switch ev := ev.(type) {
	case model.AmbulanceEvent:
		return e.HandleAmbulance(ctx, ev)
	case model.PersonEvent:
		return e.HandlePerson(ctx, ev)
	case model.DriverReportEvent:
		return e.HandleDriverReport(ctx, ev)
	default:
		return Result{}, fmt.Errorf("dispatch: unknown event type %T", ev)
	}
}

// HandleAmbulance runs the dispatch protocol for an ambulance update.
// Enable=false releases every responding driver; otherwise available drivers
// near the ambulance receive the reroute prompt and each confirmed delivery
// is committed Available -> Responding.
func (e *Engine) HandleAmbulance(ctx context.Context, ev model.AmbulanceEvent) (Result, error) {
	e.publish(events.ReceivedEvent{Kind: model.KindAmbulance, Originator: ev.Token})
	if !ev.Enable {
		return e.resetAll(ev.Token)
	}
	if ev.Position == nil || !ev.Position.Valid() {
		return Result{}, fmt.Errorf("ambulance event: %w", geo.ErrInvalidCoordinate)
	}

	res := newResult(model.KindAmbulance)
	candidates := e.filter.Select(e.store.List(), ev.Token, model.RoleDriver)
	selected, err := geo.Query(*ev.Position, e.cfg.AmbulanceRadiusM, candidates)
	if err != nil {
		return Result{}, err
	}
	for _, d := range selected {
		res.Selected = append(res.Selected, d.Token)
	}
	if len(selected) == 0 {
		e.log.Infof("ambulance %s: no available drivers within %.0fm", ev.Token, e.cfg.AmbulanceRadiusM)
		e.appendAudit(ev.Token, res)
		return res, nil
	}

	payloads := make([]model.NotificationPayload, 0, len(selected))
	for _, d := range selected {
		payloads = append(payloads, e.builder.Build(d, reroutePrompt, map[string]string{"kind": "reroute"}))
	}
	e.log.Infof("dispatching reroute prompt to %d drivers", len(payloads))
	delivered, latency := e.deliver(ctx, model.KindAmbulance, payloads, &res)

	// Commit only confirmed deliveries. A lost compare-and-set means another
	// event or a reset touched the device after selection; the device is
	// skipped, never double-notified.
	for _, d := range selected {
		if !delivered[d.Token] {
			continue
		}
		ok, err := e.store.CompareAndSetState(d.Token, model.StateAvailable, model.StateResponding)
		switch {
		case err != nil:
			e.log.Warnf("commit %s: %v", d.Token, err)
			monitoring.CaptureException(err, map[string]string{"component": "dispatch_engine", "recipient": d.Token})
			res.Errors[d.Token] = err
		case !ok:
			commitConflicts.Inc()
			e.log.Warnf("commit %s: state changed since selection, skipping", d.Token)
		default:
			respondersCommitted.Inc()
			res.Committed[d.Token] = true
		}
		e.publish(events.CommitEvent{Recipient: d.Token, Committed: res.Committed[d.Token], Err: err})
	}
	res.Notified = len(res.Committed)
	res.Skipped = len(res.Selected) - res.Notified
	e.record(ev.Token, res, latency)
	e.appendAudit(ev.Token, res)
	return res, nil
}

// HandlePerson upserts the originator record and, when message and position
// are both present, broadcasts the help message to every device within the
// help radius. No responder state changes.
func (e *Engine) HandlePerson(ctx context.Context, ev model.PersonEvent) (Result, error) {
	e.publish(events.ReceivedEvent{Kind: model.KindPerson, Originator: ev.Token})
	if ev.Position != nil && !ev.Position.Valid() {
		return Result{}, fmt.Errorf("person event: %w", geo.ErrInvalidCoordinate)
	}
	res := newResult(model.KindPerson)
	if ev.Token != "" {
		e.store.UpsertReport(ev.Token, model.RolePerson, ev.Position)
	}
	if ev.Message == "" || ev.Position == nil || ev.Token == "" {
		e.log.Infof("help broadcast skipped for %q: message or position missing", ev.Token)
		return res, nil
	}

	candidates := e.filter.Select(e.store.List(), ev.Token, model.RoleAny)
	selected, err := geo.Query(*ev.Position, e.cfg.HelpRadiusM, candidates)
	if err != nil {
		return Result{}, err
	}
	for _, d := range selected {
		res.Selected = append(res.Selected, d.Token)
	}
	if len(selected) == 0 {
		e.appendAudit(ev.Token, res)
		return res, nil
	}

	body := helpPrefix + ev.Message
	payloads := make([]model.NotificationPayload, 0, len(selected))
	for _, d := range selected {
		payloads = append(payloads, e.builder.Build(d, body, map[string]string{"kind": "help"}))
	}
	e.log.Infof("broadcasting help message to %d devices", len(payloads))
	_, latency := e.deliver(ctx, model.KindPerson, payloads, &res)
	for _, ok := range res.Delivered {
		if ok {
			res.Notified++
		}
	}
	res.Skipped = len(res.Selected) - res.Notified
	e.record(ev.Token, res, latency)
	e.appendAudit(ev.Token, res)
	return res, nil
}

// HandleDriverReport upserts the driver record from its position self-report.
// No selection or delivery occurs.
func (e *Engine) HandleDriverReport(ctx context.Context, ev model.DriverReportEvent) (Result, error) {
	_ = ctx
	e.publish(events.ReceivedEvent{Kind: model.KindDriverReport, Originator: ev.Token})
	if ev.Token == "" {
		return Result{}, fmt.Errorf("driver report: missing token")
	}
	if ev.Position != nil && !ev.Position.Valid() {
		return Result{}, fmt.Errorf("driver report: %w", geo.ErrInvalidCoordinate)
	}
	e.store.UpsertReport(ev.Token, model.RoleDriver, ev.Position)
	return newResult(model.KindDriverReport), nil
}

// resetAll models "incident resolved": every responding driver goes back to
// available. Idempotent per device.
func (e *Engine) resetAll(originator string) (Result, error) {
	res := newResult(model.KindAmbulance)
	res.ResetCount = e.store.ResetAllResponding()
	fleetResets.Inc()
	e.log.Infof("incident resolved by %s: released %d responders", originator, res.ResetCount)
	e.publish(events.ResetEvent{Count: res.ResetCount})
	if rr, ok := e.sink.(metrics.ResetRecorder); ok {
		if err := rr.RecordReset(res.ResetCount, time.Now()); err != nil {
			e.log.Errorf("metrics error: %v", err)
		}
	}
	e.appendAudit(originator, res)
	return res, nil
}

// deliver invokes the gateway bounded by the configured timeout. Total
// transport failure or a timeout yields zero successes, leaving every
// candidate available and eligible again on the next event.
func (e *Engine) deliver(ctx context.Context, kind model.EventKind, payloads []model.NotificationPayload, res *Result) (map[string]bool, time.Duration) {
	timeout := time.Duration(e.cfg.DeliveryTimeoutSeconds) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	start := time.Now()
	delivered, err := e.gateway.Send(ctx, payloads)
	latency := time.Since(start)
	deliveryLatency.WithLabelValues(kind.String()).Observe(latency.Seconds())
	if err != nil {
		pushFailure.Inc()
		e.log.Errorf("delivery unavailable: %v", err)
		monitoring.CaptureException(err, map[string]string{"component": "dispatch_engine", "event_kind": kind.String()})
		delivered = nil
	} else {
		pushSuccess.Inc()
	}
	for _, p := range payloads {
		ok := delivered[p.Recipient]
		res.Delivered[p.Recipient] = ok
		if ok {
			devicesNotified.WithLabelValues(kind.String()).Inc()
		}
		e.publish(events.DeliveryEvent{Recipient: p.Recipient, Kind: kind, Delivered: ok, Latency: latency})
	}
	return delivered, latency
}

// record persists per-recipient outcomes if a sink is configured.
func (e *Engine) record(originator string, res Result, latency time.Duration) {
	if len(res.Selected) == 0 {
		return
	}
	now := time.Now()
	recs := make([]metrics.DispatchRecord, 0, len(res.Selected))
	for _, tok := range res.Selected {
		recs = append(recs, metrics.DispatchRecord{
			EventKind:  res.Kind.String(),
			Originator: originator,
			Recipient:  tok,
			Delivered:  res.Delivered[tok],
			Committed:  res.Committed[tok],
			Latency:    latency,
			Time:       now,
		})
	}
	if err := e.sink.RecordDispatch(recs); err != nil {
		e.log.Errorf("metrics error: %v", err)
	}
}

// appendAudit writes the record on a background context so an expiring
// request context cannot drop the audit trail for work already done.
func (e *Engine) appendAudit(originator string, res Result) {
	e.mu.Lock()
	store := e.audit
	e.mu.Unlock()
	if store == nil {
		return
	}
	rec := logging.Record{
		Timestamp:  time.Now(),
		Kind:       res.Kind.String(),
		Originator: originator,
		Selected:   res.Selected,
		Delivered:  res.Delivered,
		Committed:  res.Committed,
		Errors:     map[string]string{},
		Notified:   res.Notified,
		Skipped:    res.Skipped,
		ResetCount: res.ResetCount,
	}
	for tok, err := range res.Errors {
		if err != nil {
			rec.Errors[tok] = err.Error()
		}
	}
	if err := store.Append(context.Background(), rec); err != nil {
		e.log.Errorf("audit append: %v", err)
	}
}

func (e *Engine) publish(ev eventbus.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}
