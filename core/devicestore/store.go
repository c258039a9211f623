package devicestore

import (
	"errors"

	"github.com/savelife/rescue/core/model"
)

// ErrUnknownDevice is returned when no record exists for the given token.
var ErrUnknownDevice = errors.New("devicestore: unknown device")

// Store holds the durable device records. The dispatch engine depends only on
// these five operations; the persistence mechanism behind them is irrelevant
// to the protocol.
type Store interface {
	// Get returns the device recorded for token, or ErrUnknownDevice.
	Get(token string) (model.Device, error)
	// Upsert creates or replaces the record keyed by the device token and
	// stamps LastUpdated.
	Upsert(model.Device)
	// UpsertReport creates the record for token on first contact and updates
	// its position afterwards. The merge is atomic with respect to
	// CompareAndSetState and ResetAllResponding; role and responder state are
	// never modified for an existing record.
	UpsertReport(token string, role model.Role, pos *model.Position)
	// CompareAndSetState atomically transitions the responder state of token
	// from expected to next. It reports false without writing when the
	// current state differs from expected, and ErrUnknownDevice when no
	// record exists.
	CompareAndSetState(token string, expected, next model.ResponderState) (bool, error)
	// List returns a snapshot of all devices ordered by token.
	List() []model.Device
	// ResetAllResponding moves every responding driver back to available and
	// returns the number of devices changed. Each per-device write is atomic;
	// the reset as a whole is not serialized against concurrent commits.
	ResetAllResponding() int
}
