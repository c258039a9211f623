package auth

import "golang.org/x/oauth2/clientcredentials"

// Conf represents the client credentials used to authenticate against a push
// provider's OAuth2 token endpoint.
type Conf struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	AuthURL      string `json:"auth_url"`
}

// Enabled reports whether client credential auth is configured at all.
func (c Conf) Enabled() bool { return c.AuthURL != "" }

func (c *Conf) toOauth2Config() clientcredentials.Config {
	return clientcredentials.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     c.AuthURL,
	}
}
