package metrics

import "time"

// DispatchRecord represents one per-recipient dispatch outcome to be recorded.
type DispatchRecord struct {
	EventKind  string
	Originator string
	Recipient  string
	Delivered  bool
	Committed  bool
	Latency    time.Duration
	Time       time.Time
}

// Sink records dispatch outcomes for observability purposes.
type Sink interface {
	RecordDispatch(records []DispatchRecord) error
}

// ResetRecorder is implemented by sinks that also record global fleet resets.
type ResetRecorder interface {
	RecordReset(count int, at time.Time) error
}

// NopSink implements Sink with no-op methods.
type NopSink struct{}

func (NopSink) RecordDispatch([]DispatchRecord) error { return nil }

func (NopSink) RecordReset(int, time.Time) error { return nil }
