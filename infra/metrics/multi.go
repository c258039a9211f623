package metrics

import (
	"time"

	coremetrics "github.com/savelife/rescue/core/metrics"
)

// MultiSink fans dispatch records out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordDispatch forwards the records to all sinks, returning the first error
// encountered.
func (m *MultiSink) RecordDispatch(recs []coremetrics.DispatchRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordDispatch(recs); err != nil {
			return err
		}
	}
	return nil
}

// RecordReset forwards reset counts to sinks that support them.
func (m *MultiSink) RecordReset(count int, at time.Time) error {
	for _, s := range m.Sinks {
		if rr, ok := s.(coremetrics.ResetRecorder); ok {
			if err := rr.RecordReset(count, at); err != nil {
				return err
			}
		}
	}
	return nil
}
