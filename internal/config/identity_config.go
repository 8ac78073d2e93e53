package config

import (
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

type IdentityConfig interface {
	GetIdentityBaseURL() string
	GetOAuthProviders() map[string]*oauth2.Config
}

type Identity struct{}

var _ IdentityConfig = Identity{}

func (Identity) GetIdentityBaseURL() string {
	return GetEnv("IDENTITY_BASE_URL", "http://localhost:9090")
}

// GetOAuthProviders returns the configured social-login providers. A provider
// with no client id is treated as disabled.
func (i Identity) GetOAuthProviders() map[string]*oauth2.Config {
	providers := map[string]*oauth2.Config{}
	redirectURL := EnvVars{}.GetBaseURL() + "/oauth/callback"

	if clientID := GetEnv("GOOGLE_CLIENT_ID", ""); clientID != "" {
		providers["google"] = &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: GetEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     google.Endpoint,
		}
	}
	if clientID := GetEnv("FACEBOOK_CLIENT_ID", ""); clientID != "" {
		providers["facebook"] = &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: GetEnv("FACEBOOK_CLIENT_SECRET", ""),
			RedirectURL:  redirectURL,
			Scopes:       []string{"public_profile", "email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://www.facebook.com/v18.0/dialog/oauth",
				TokenURL: "https://graph.facebook.com/v18.0/oauth/access_token",
			},
		}
	}
	return providers
}
