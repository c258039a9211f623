package dispatch

import (
	"github.com/google/uuid"

	"github.com/savelife/rescue/core/model"
)

// Builder converts a selected device plus event context into an immutable
// outbound payload. Implementations must be pure and deterministic apart from
// the generated payload identifier.
type Builder interface {
	Build(device model.Device, body string, data map[string]string) model.NotificationPayload
}

// PayloadBuilder is the default Builder. The context map is copied so later
// mutation by the caller cannot leak into a built payload.
type PayloadBuilder struct{}

func (PayloadBuilder) Build(d model.Device, body string, data map[string]string) model.NotificationPayload {
	p := model.NotificationPayload{
		ID:        uuid.NewString(),
		Recipient: d.Token,
		Body:      body,
	}
	if len(data) > 0 {
		p.Data = make(map[string]string, len(data))
		for k, v := range data {
			p.Data[k] = v
		}
	}
	return p
}
