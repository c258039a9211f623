package events

import (
	"time"

	"github.com/savelife/rescue/core/model"
)

// ReceivedEvent is published when an inbound event enters the engine.
type ReceivedEvent struct {
	Kind       model.EventKind
	Originator string
}

// DeliveryEvent is published once per selected recipient after the delivery
// step completes.
type DeliveryEvent struct {
	Recipient string
	Kind      model.EventKind
	Delivered bool
	Latency   time.Duration
}

// CommitEvent is published for each attempted responder-state commit.
// Committed is false when the compare-and-set lost to a concurrent writer or
// the record disappeared.
type CommitEvent struct {
	Recipient string
	Committed bool
	Err       error
}

// ResetEvent is published after a global reset released all responders.
type ResetEvent struct {
	Count int
}
