package intake

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/savelife/rescue/core/dispatch"
	"github.com/savelife/rescue/core/geo"
	"github.com/savelife/rescue/core/logger"
	"github.com/savelife/rescue/core/model"
)

// deviceMessage mirrors the mobile client's POST body. Which fields matter
// depends on the role query parameter.
type deviceMessage struct {
	Token   string   `json:"token"`
	Enable  *bool    `json:"enable,omitempty"`
	Message string   `json:"message,omitempty"`
	Lat     *float64 `json:"lat,omitempty"`
	Lon     *float64 `json:"lon,omitempty"`
}

func (m deviceMessage) position() *model.Position {
	if m.Lat == nil || m.Lon == nil {
		return nil
	}
	return &model.Position{Lat: *m.Lat, Lon: *m.Lon}
}

// event converts the message into the tagged variant for the given role.
func (m deviceMessage) event(role model.Role) (model.Event, bool) {
	switch role {
	case model.RoleAmbulance:
		// Releasing every responder requires an explicit enable=false; a
		// payload that omits the field dispatches.
		enable := true
		if m.Enable != nil {
			enable = *m.Enable
		}
		return model.AmbulanceEvent{Token: m.Token, Enable: enable, Position: m.position()}, true
	case model.RoleDriver:
		return model.DriverReportEvent{Token: m.Token, Position: m.position()}, true
	case model.RolePerson:
		return model.PersonEvent{Token: m.Token, Message: m.Message, Position: m.position()}, true
	default:
		return nil, false
	}
}

type eventResponse struct {
	Kind     string `json:"kind"`
	Notified int    `json:"notified"`
	Skipped  int    `json:"skipped"`
	Reset    int    `json:"reset,omitempty"`
}

// NewHandler returns the event intake handler for POST /api/events?role=<role>.
// Authentication happens upstream; the handler only deserializes the three
// event shapes and forwards them to the engine.
func NewHandler(engine *dispatch.Engine, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		role, ok := model.RoleFromString(r.URL.Query().Get("role"))
		if !ok {
			http.Error(w, "unknown role", http.StatusBadRequest)
			return
		}
		var msg deviceMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			http.Error(w, "malformed body", http.StatusBadRequest)
			return
		}
		if msg.Token == "" {
			http.Error(w, "token is required", http.StatusBadRequest)
			return
		}
		ev, ok := msg.event(role)
		if !ok {
			http.Error(w, "unknown role", http.StatusBadRequest)
			return
		}

		res, err := engine.HandleEvent(r.Context(), ev)
		if err != nil {
			if errors.Is(err, geo.ErrInvalidCoordinate) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			log.Errorf("handle %s event: %v", role, err)
			http.Error(w, "dispatch failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		resp := eventResponse{
			Kind:     res.Kind.String(),
			Notified: res.Notified,
			Skipped:  res.Skipped,
			Reset:    res.ResetCount,
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}
