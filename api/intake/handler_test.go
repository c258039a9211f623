package intake

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/savelife/rescue/core/devicestore"
	"github.com/savelife/rescue/core/dispatch"
	"github.com/savelife/rescue/core/model"
	"github.com/savelife/rescue/infra/logger"
	"github.com/savelife/rescue/infra/push"
)

func newTestHandler(t *testing.T) (http.Handler, *devicestore.MemoryStore, *push.MockGateway) {
	t.Helper()
	store := devicestore.NewMemoryStore()
	gw := push.NewMockGateway()
	eng, err := dispatch.NewEngine(dispatch.RoleFilter{}, dispatch.PayloadBuilder{}, gw, store, dispatch.Config{}, nil, nil, logger.NopLogger{})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	return NewHandler(eng, logger.NopLogger{}), store, gw
}

func post(h http.Handler, role, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/events?role="+role, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler_DriverReport(t *testing.T) {
	h, store, _ := newTestHandler(t)
	rec := post(h, "driver", `{"token":"d1","lat":48.8566,"lon":2.3522}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Kind != "driver_report" {
		t.Fatalf("unexpected kind %q", resp.Kind)
	}
	if _, err := store.Get("d1"); err != nil {
		t.Fatalf("driver record should exist: %v", err)
	}
}

func TestHandler_AmbulanceDispatch(t *testing.T) {
	h, store, gw := newTestHandler(t)
	store.Upsert(model.Device{Token: "d1", Role: model.RoleDriver, Position: &model.Position{Lat: 48.8570, Lon: 2.3522}})

	rec := post(h, "ambulance", `{"token":"amb","enable":true,"lat":48.8566,"lon":2.3522}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Notified int `json:"notified"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Notified != 1 {
		t.Fatalf("expected 1 notified, got %d", resp.Notified)
	}
	if _, ok := gw.Sent["d1"]; !ok {
		t.Fatalf("d1 should have received the prompt")
	}
}

func TestHandler_AmbulanceDefaultEnable(t *testing.T) {
	h, store, gw := newTestHandler(t)
	store.Upsert(model.Device{Token: "d1", Role: model.RoleDriver, Position: &model.Position{Lat: 48.8570, Lon: 2.3522}})

	// Omitting enable dispatches; it never triggers a reset.
	rec := post(h, "ambulance", `{"token":"amb","lat":48.8566,"lon":2.3522}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Notified int `json:"notified"`
		Reset    int `json:"reset"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Notified != 1 || resp.Reset != 0 {
		t.Fatalf("expected a dispatch, got notified=%d reset=%d", resp.Notified, resp.Reset)
	}
	if _, ok := gw.Sent["d1"]; !ok {
		t.Fatalf("d1 should have received the prompt")
	}
}

func TestHandler_AmbulanceReset(t *testing.T) {
	h, store, _ := newTestHandler(t)
	store.Upsert(model.Device{Token: "d1", Role: model.RoleDriver, State: model.StateResponding})

	rec := post(h, "ambulance", `{"token":"amb","enable":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Reset int `json:"reset"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Reset != 1 {
		t.Fatalf("expected 1 reset, got %d", resp.Reset)
	}
}

func TestHandler_Rejections(t *testing.T) {
	h, _, _ := newTestHandler(t)
	cases := []struct {
		name string
		role string
		body string
		code int
	}{
		{"unknown role", "pilot", `{"token":"x"}`, http.StatusBadRequest},
		{"missing role", "", `{"token":"x"}`, http.StatusBadRequest},
		{"malformed body", "driver", `{`, http.StatusBadRequest},
		{"missing token", "driver", `{"lat":1,"lon":2}`, http.StatusBadRequest},
		{"invalid coordinate", "driver", `{"token":"d1","lat":91,"lon":0}`, http.StatusBadRequest},
		{"ambulance without position", "ambulance", `{"token":"amb","enable":true}`, http.StatusBadRequest},
	}
	for _, c := range cases {
		if rec := post(h, c.role, c.body); rec.Code != c.code {
			t.Errorf("%s: status %d, want %d", c.name, rec.Code, c.code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/events?role=driver", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET should be rejected, got %d", rec.Code)
	}
}
