package server_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/carelink/authgate/auth"
	fakeidentity "github.com/carelink/authgate/identity/identityfakes"
	"github.com/carelink/authgate/internal/config"
	"github.com/carelink/authgate/server"
	"github.com/carelink/authgate/server/oauthflow"
	"github.com/carelink/authgate/session"
	fakestore "github.com/carelink/authgate/session/storefakes"
	"github.com/carelink/authgate/token"
)

type serverFixture struct {
	server  *server.Server
	store   *fakestore.FakeStore
	backend *fakeidentity.FakeClient
	flows   oauthflow.Repo
}

func setupServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	store := fakestore.NewFakeStore()
	backend := fakeidentity.NewFakeClient()
	tokens := token.NewManager(store, backend)
	service, err := auth.NewService(store, backend, tokens)
	require.NoError(t, err)

	flows := oauthflow.NewInMemoryRepo()
	srv, err := server.New(config.New(), store, service, tokens, nil, flows)
	require.NoError(t, err)

	return &serverFixture{server: srv, store: store, backend: backend, flows: flows}
}

func (f *serverFixture) seedClientSession(t *testing.T, sessionID string) {
	t.Helper()

	access := "access-1"
	refresh := "refresh-1"
	expires := time.Now().Add(time.Hour)
	role := session.RoleClient
	require.NoError(t, f.store.Set(context.Background(), sessionID, session.Update{
		AccessToken:  &access,
		RefreshToken: &refresh,
		ExpiresAt:    &expires,
		Role:         &role,
	}))
}

func TestDashboardRendersForSignedInClient(t *testing.T) {
	f := setupServerFixture(t)
	f.seedClientSession(t, "sess-1")

	r := httptest.NewRequest(http.MethodGet, "/client/dashboard", nil)
	r.AddCookie(&http.Cookie{Name: "sid", Value: "sess-1"})
	r.AddCookie(&http.Cookie{Name: "token", Value: "access-1"})
	r.AddCookie(&http.Cookie{Name: "userRole", Value: "client"})
	w := httptest.NewRecorder()

	f.server.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "Client Dashboard")
}

func TestDashboardWithDeadSessionRedirectsToLogin(t *testing.T) {
	f := setupServerFixture(t)

	r := httptest.NewRequest(http.MethodGet, "/client/dashboard", nil)
	r.AddCookie(&http.Cookie{Name: "sid", Value: "sess-1"})
	r.AddCookie(&http.Cookie{Name: "token", Value: "stale"})
	r.AddCookie(&http.Cookie{Name: "userRole", Value: "client"})
	w := httptest.NewRecorder()

	f.server.ServeHTTP(w, r)

	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, "/login", w.Header().Get("Location"))
}

func TestOAuthCallbackLandsOnRequestedPath(t *testing.T) {
	tests := []struct {
		name     string
		returnTo string
		want     string
	}{
		{name: "path inside own scope is honoured", returnTo: "/client/bookings", want: "/client/bookings"},
		{name: "shared protected path is honoured", returnTo: "/settings", want: "/settings"},
		{name: "path in the other role's wing falls back", returnTo: "/provider/dashboard", want: "/client/dashboard"},
		{name: "schemeless external url falls back", returnTo: "//evil.example/phish", want: "/client/dashboard"},
		{name: "absolute url falls back", returnTo: "https://evil.example/", want: "/client/dashboard"},
		{name: "empty return path lands on dashboard", returnTo: "", want: "/client/dashboard"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupServerFixture(t)
			f.backend.ExchangeGrant = fakeidentity.Grant{
				AccessToken:  "access-1",
				RefreshToken: "refresh-1",
				ExpiresAt:    time.Now().Add(time.Hour),
				Role:         session.RoleClient,
			}
			require.NoError(t, f.flows.Upsert("state-1", &oauthflow.FlowState{
				Provider:  "google",
				ReturnURL: tt.returnTo,
			}))

			r := httptest.NewRequest(http.MethodGet, "/oauth/callback?code=abc&state=state-1", nil)
			w := httptest.NewRecorder()

			f.server.ServeHTTP(w, r)

			require.Equal(t, http.StatusSeeOther, w.Code)
			require.Equal(t, tt.want, w.Header().Get("Location"))
		})
	}
}
