package identity_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/carelink/authgate/identity"
)

func googleConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:    "client-id",
		RedirectURL: "https://app.example.com/oauth/callback",
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/auth",
			TokenURL: "https://oauth2.googleapis.com/token",
		},
		Scopes: []string{"openid", "email"},
	}
}

func TestProvidersAuthCodeURLCarriesState(t *testing.T) {
	providers := identity.NewProviders(map[string]*oauth2.Config{"google": googleConfig()})

	require.True(t, providers.Known("google"))
	require.Equal(t, []string{"google"}, providers.Names())

	authURL, err := providers.AuthCodeURL("google", "state-123")
	require.NoError(t, err)
	require.Contains(t, authURL, "https://accounts.google.com/o/oauth2/auth")
	require.Contains(t, authURL, "state=state-123")
	require.Contains(t, authURL, "access_type=offline")
}

func TestUnknownProviderIsRejected(t *testing.T) {
	providers := identity.NewProviders(nil)

	require.False(t, providers.Known("github"))
	_, err := providers.AuthCodeURL("github", "state-123")
	require.ErrorIs(t, err, identity.UnknownProviderErr)
}
