package dispatch

import (
	"net/http"
	"time"

	"github.com/savelife/rescue/core/dispatch/logging"
	"github.com/savelife/rescue/pkg/export"
)

// NewLogHandler returns an HTTP handler exposing dispatch records via
// GET /api/dispatch/logs. Requests must include an Authorization header with
// "Bearer <token>" when token is non-empty. The format query parameter
// switches between json (default) and csv output.
func NewLogHandler(store logging.LogStore, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token != "" {
			auth := r.Header.Get("Authorization")
			if auth != "Bearer "+token {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		q := logging.Query{}
		if s := r.URL.Query().Get("start"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.Start = t
			}
		}
		if s := r.URL.Query().Get("end"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.End = t
			}
		}
		q.Token = r.URL.Query().Get("token")
		q.Kind = r.URL.Query().Get("kind")

		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if r.URL.Query().Get("format") == "csv" {
			w.Header().Set("Content-Type", "text/csv")
			if err := export.WriteCSV(w, records); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := export.WriteJSON(w, records); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
