package push

import (
	"context"
	"errors"

	"github.com/savelife/rescue/core/model"
)

// ErrGatewayUnavailable means the transport itself could not be reached and no
// payload in the batch was delivered.
var ErrGatewayUnavailable = errors.New("push: gateway unavailable")

// Gateway delivers a batch of notification payloads to devices.
type Gateway interface {
	// Send delivers the payloads and returns the set of recipient tokens
	// whose send succeeded. Individual failures are reported through the
	// returned set, never as an error; a non-nil error means total transport
	// unavailability. Implementations must honor ctx cancellation.
	Send(ctx context.Context, payloads []model.NotificationPayload) (map[string]bool, error)
}
