package auth

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ClientCred caches an OAuth2 client-credentials token and refreshes it when
// it expires.
type ClientCred struct {
	conf  clientcredentials.Config
	token *oauth2.Token
}

func NewClientCred(conf Conf) *ClientCred {
	return &ClientCred{
		conf: conf.toOauth2Config(),
	}
}

// GetToken returns a valid access token, requesting a fresh one from the
// token endpoint when the cached token has expired.
func (c *ClientCred) GetToken() (string, error) {
	if c.token != nil && c.token.Valid() {
		return c.token.AccessToken, nil
	}
	if err := c.getToken(); err != nil {
		return "", err
	}
	return c.token.AccessToken, nil
}

func (c *ClientCred) getToken() error {
	var err error
	c.token, err = c.conf.Token(context.Background())
	if err != nil {
		return fmt.Errorf("failed to get token: %w", err)
	}
	return nil
}

// ForceRefresh discards the cached token and requests a new one.
func (c *ClientCred) ForceRefresh() (string, error) {
	var err error
	c.token, err = c.conf.Token(context.Background())
	if err != nil {
		return "", fmt.Errorf("failed to get token: %w", err)
	}
	return c.token.AccessToken, nil
}

// SetAuthHeader sets the Authorization header on r, fetching a token first if
// none is cached.
func (c *ClientCred) SetAuthHeader(r *http.Request) error {
	if c.token != nil && c.token.Valid() {
		c.token.SetAuthHeader(r)
		return nil
	}
	if err := c.getToken(); err != nil {
		return err
	}
	c.token.SetAuthHeader(r)
	return nil
}
