package dispatch

import "github.com/savelife/rescue/core/model"

// Result summarizes one processed event. The per-recipient maps keep partial
// outcomes visible: a device can be selected but not delivered, or delivered
// but not committed when a concurrent writer changed its state first.
type Result struct {
	Kind model.EventKind
	// Selected lists the candidate tokens in selection order.
	Selected []string
	// Delivered marks the recipients the gateway confirmed.
	Delivered map[string]bool
	// Committed marks the recipients whose Available -> Responding transition
	// was applied. Only ambulance dispatches commit.
	Committed map[string]bool
	// Errors holds per-recipient failures; these never abort the event.
	Errors map[string]error
	// Notified counts confirmed deliveries, Skipped the selected devices that
	// ended up without one (delivery failure or lost commit).
	Notified int
	Skipped  int
	// ResetCount reports how many responders a global reset released.
	ResetCount int
}

func newResult(kind model.EventKind) Result {
	return Result{
		Kind:      kind,
		Delivered: make(map[string]bool),
		Committed: make(map[string]bool),
		Errors:    make(map[string]error),
	}
}
