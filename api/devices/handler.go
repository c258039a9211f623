package devices

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/savelife/rescue/core/devicestore"
	"github.com/savelife/rescue/core/model"
)

type status struct {
	Token       string          `json:"token"`
	Role        string          `json:"role"`
	State       string          `json:"state"`
	Position    *model.Position `json:"position,omitempty"`
	LastUpdated time.Time       `json:"last_updated"`
}

// NewStatusHandler returns an HTTP handler exposing device status data via
// GET /api/devices. The optional role and state query parameters filter the
// listing.
func NewStatusHandler(store devicestore.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		roleFilter := r.URL.Query().Get("role")
		stateFilter := r.URL.Query().Get("state")
		var entries []status
		for _, d := range store.List() {
			if roleFilter != "" && d.Role.String() != roleFilter {
				continue
			}
			if stateFilter != "" && d.State.String() != stateFilter {
				continue
			}
			entries = append(entries, status{
				Token:       d.Token,
				Role:        d.Role.String(),
				State:       d.State.String(),
				Position:    d.Position,
				LastUpdated: d.LastUpdated,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(entries); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
