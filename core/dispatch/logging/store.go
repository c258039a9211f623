package logging

import (
	"context"
	"time"
)

// Record captures one processed event and its per-recipient outcome.
type Record struct {
	Timestamp  time.Time         `json:"timestamp"`
	Kind       string            `json:"kind"`
	Originator string            `json:"originator"`
	Selected   []string          `json:"selected"`
	Delivered  map[string]bool   `json:"delivered"`
	Committed  map[string]bool   `json:"committed,omitempty"`
	Errors     map[string]string `json:"errors,omitempty"`
	Notified   int               `json:"notified"`
	Skipped    int               `json:"skipped"`
	ResetCount int               `json:"reset_count,omitempty"`
}

// Query defines filters for retrieving records.
type Query struct {
	Start time.Time
	End   time.Time
	Token string
	Kind  string
}

// Matches reports whether the record satisfies every filter set on q.
func (q Query) Matches(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Kind != "" && r.Kind != q.Kind {
		return false
	}
	if q.Token != "" {
		if r.Originator == q.Token {
			return true
		}
		for _, tok := range r.Selected {
			if tok == q.Token {
				return true
			}
		}
		return false
	}
	return true
}

// LogStore persists dispatch records and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}
