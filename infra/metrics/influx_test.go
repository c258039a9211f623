package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	coremetrics "github.com/savelife/rescue/core/metrics"
)

func TestNewInfluxSinkWithFallback_Unhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(InfluxConfig{URL: srv.URL, Org: "org", Bucket: "bucket"})
	if _, ok := sink.(coremetrics.NopSink); !ok {
		t.Fatalf("expected NopSink fallback, got %T", sink)
	}
}

func TestNewInfluxSinkWithFallback_Healthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"influxdb","status":"pass"}`))
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(InfluxConfig{URL: srv.URL, Org: "org", Bucket: "bucket"})
	if _, ok := sink.(*InfluxSink); !ok {
		t.Fatalf("expected InfluxSink, got %T", sink)
	}
}
