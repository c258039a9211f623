package push

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/savelife/rescue/auth"
	"github.com/savelife/rescue/core/model"
	corepush "github.com/savelife/rescue/core/push"
)

func TestHTTPGateway_Send(t *testing.T) {
	var (
		mu       sync.Mutex
		received []httpMessage
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "key=secret" {
			t.Errorf("missing api key header")
		}
		var msg httpMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			t.Errorf("decode: %v", err)
		}
		mu.Lock()
		received = append(received, msg)
		mu.Unlock()
		if msg.To == "bad" {
			http.Error(w, "invalid token", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	g, err := NewHTTPGateway(HTTPConfig{Endpoint: srv.URL, APIKey: "secret", RetryMax: -1})
	if err != nil {
		t.Fatalf("gateway: %v", err)
	}
	payloads := []model.NotificationPayload{
		{ID: "1", Recipient: "d1", Body: "hello", Data: map[string]string{"kind": "help"}},
		{ID: "2", Recipient: "bad", Body: "hello"},
	}
	delivered, err := g.Send(context.Background(), payloads)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !delivered["d1"] || delivered["bad"] {
		t.Fatalf("unexpected delivery map %v", delivered)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(received) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(received))
	}
	for _, msg := range received {
		if msg.To == "d1" && msg.Notification["body"] != "hello" {
			t.Fatalf("unexpected body %v", msg.Notification)
		}
	}
}

func TestHTTPGateway_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	g, err := NewHTTPGateway(HTTPConfig{Endpoint: srv.URL, RetryMax: -1, TimeoutSeconds: 1})
	if err != nil {
		t.Fatalf("gateway: %v", err)
	}
	_, err = g.Send(context.Background(), []model.NotificationPayload{{ID: "1", Recipient: "d1"}})
	if !errors.Is(err, corepush.ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
}

func TestHTTPGateway_OAuth(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"bearer","expires_in":3600}`))
	}))
	defer tokenSrv.Close()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	g, err := NewHTTPGateway(HTTPConfig{
		Endpoint: srv.URL,
		RetryMax: -1,
		Auth:     auth.Conf{ClientID: "id", ClientSecret: "secret", AuthURL: tokenSrv.URL},
	})
	if err != nil {
		t.Fatalf("gateway: %v", err)
	}
	delivered, err := g.Send(context.Background(), []model.NotificationPayload{{ID: "1", Recipient: "d1"}})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !delivered["d1"] {
		t.Fatalf("expected delivery, got %v", delivered)
	}
}

func TestHTTPGateway_RequiresEndpoint(t *testing.T) {
	if _, err := NewHTTPGateway(HTTPConfig{}); err == nil {
		t.Fatalf("expected error without endpoint")
	}
}
