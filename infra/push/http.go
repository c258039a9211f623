package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/savelife/rescue/auth"
	"github.com/savelife/rescue/core/model"
	corepush "github.com/savelife/rescue/core/push"
	"github.com/savelife/rescue/infra/logger"
)

// HTTPConfig defines the parameters for the HTTP push gateway.
type HTTPConfig struct {
	// Endpoint is the provider's send URL, e.g. an FCM legacy endpoint.
	Endpoint string `json:"endpoint"`
	// APIKey is sent as the Authorization key header. Ignored when Auth is
	// configured.
	APIKey         string `json:"api_key"`
	RetryMax       int    `json:"retry_max"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	// Auth holds OAuth2 client credentials for providers that require a
	// bearer token instead of a static key.
	Auth auth.Conf `json:"auth"`
}

// SetDefaults applies sane defaults.
func (c *HTTPConfig) SetDefaults() {
	if c.RetryMax == 0 {
		c.RetryMax = 2
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 5
	}
}

// Validate checks mandatory fields.
func (c HTTPConfig) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	return nil
}

// HTTPGateway delivers notification payloads through an HTTP push provider,
// one request per recipient.
type HTTPGateway struct {
	client   *retryablehttp.Client
	endpoint string
	apiKey   string
	cred     *auth.ClientCred
	log      logger.Logger
}

// NewHTTPGateway creates a gateway for the configured provider endpoint.
func NewHTTPGateway(cfg HTTPConfig) (*HTTPGateway, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := retryablehttp.NewClient()
	client.RetryMax = cfg.RetryMax
	client.HTTPClient.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	client.Logger = nil
	g := &HTTPGateway{
		client:   client,
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		log:      logger.New("push_http"),
	}
	if cfg.Auth.Enabled() {
		g.cred = auth.NewClientCred(cfg.Auth)
	}
	return g, nil
}

type httpMessage struct {
	To           string            `json:"to"`
	Notification map[string]string `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

// Send posts one message per payload. A non-2xx response fails only that
// recipient; ErrGatewayUnavailable is returned when no request reached the
// provider at all.
func (g *HTTPGateway) Send(ctx context.Context, payloads []model.NotificationPayload) (map[string]bool, error) {
	delivered := make(map[string]bool, len(payloads))
	transportErrs := 0
	for _, p := range payloads {
		if err := g.post(ctx, p); err != nil {
			if isTransportErr(err) {
				transportErrs++
			}
			g.log.Warnf("send to %s failed: %v", p.Recipient, err)
			continue
		}
		delivered[p.Recipient] = true
	}
	if len(payloads) > 0 && transportErrs == len(payloads) {
		return nil, corepush.ErrGatewayUnavailable
	}
	return delivered, nil
}

func (g *HTTPGateway) post(ctx context.Context, p model.NotificationPayload) error {
	msg := httpMessage{
		To:           p.Recipient,
		Notification: map[string]string{"body": p.Body},
		Data:         p.Data,
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case g.cred != nil:
		if err := g.cred.SetAuthHeader(req.Request); err != nil {
			return transportError{err}
		}
	case g.apiKey != "":
		req.Header.Set("Authorization", "key="+g.apiKey)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return transportError{err}
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("provider returned %s", resp.Status)
	}
	return nil
}

// transportError marks failures where the provider was never reached.
type transportError struct{ err error }

func (e transportError) Error() string { return e.err.Error() }
func (e transportError) Unwrap() error { return e.err }

func isTransportErr(err error) bool {
	_, ok := err.(transportError)
	return ok
}
