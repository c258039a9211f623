package devices

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/savelife/rescue/core/devicestore"
	"github.com/savelife/rescue/core/model"
)

func TestStatusHandler(t *testing.T) {
	store := devicestore.NewMemoryStore()
	store.Upsert(model.Device{Token: "d1", Role: model.RoleDriver})
	store.Upsert(model.Device{Token: "d2", Role: model.RoleDriver, State: model.StateResponding})
	store.Upsert(model.Device{Token: "p1", Role: model.RolePerson, Position: &model.Position{Lat: 1, Lon: 2}})
	h := NewStatusHandler(store)

	get := func(target string) []status {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status %d for %s", rec.Code, target)
		}
		var entries []status
		if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return entries
	}

	if entries := get("/api/devices"); len(entries) != 3 {
		t.Fatalf("expected 3 devices, got %d", len(entries))
	}
	if entries := get("/api/devices?role=driver"); len(entries) != 2 {
		t.Fatalf("expected 2 drivers, got %d", len(entries))
	}
	entries := get("/api/devices?role=driver&state=responding")
	if len(entries) != 1 || entries[0].Token != "d2" {
		t.Fatalf("expected only d2, got %v", entries)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/devices", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST should be rejected, got %d", rec.Code)
	}
}
