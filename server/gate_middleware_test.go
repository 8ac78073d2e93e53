package server_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/carelink/authgate/server"
	"github.com/carelink/authgate/session"
)

// gateRequest runs a request through the route gate and reports whether the
// wrapped handler ran and where any redirect pointed.
func gateRequest(t *testing.T, path, token, role string) (*httptest.ResponseRecorder, bool) {
	t.Helper()

	nextCalled := false
	next := func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		w.WriteHeader(http.StatusOK)
	}

	gate := server.Gate(server.NewCookieManager("", false))

	r := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		r.AddCookie(&http.Cookie{Name: "token", Value: token})
	}
	if role != "" {
		r.AddCookie(&http.Cookie{Name: "userRole", Value: role})
	}

	w := httptest.NewRecorder()
	gate(next)(w, r)
	return w, nextCalled
}

func TestGateDecisionTable(t *testing.T) {
	tests := []struct {
		name         string
		path         string
		token        string
		role         string
		wantNext     bool
		wantRedirect string
	}{
		{name: "anonymous on public page passes", path: "/login", wantNext: true},
		{name: "anonymous on register passes", path: "/register", wantNext: true},
		{name: "signed-in client leaves public page", path: "/login", token: "t", role: "client", wantRedirect: "/client/dashboard"},
		{name: "signed-in provider leaves public page", path: "/register", token: "t", role: "care-provider", wantRedirect: "/provider/dashboard"},
		{name: "anonymous on protected page goes to login", path: "/", wantRedirect: "/login"},
		{name: "anonymous on settings goes to login", path: "/settings", wantRedirect: "/login"},
		{name: "anonymous on scoped page goes to login", path: "/client/dashboard", wantRedirect: "/login"},
		{name: "client on own dashboard passes", path: "/client/dashboard", token: "t", role: "client", wantNext: true},
		{name: "provider on own dashboard passes", path: "/provider/dashboard", token: "t", role: "care-provider", wantNext: true},
		{name: "client on provider wing goes home", path: "/provider/dashboard", token: "t", role: "client", wantRedirect: "/client/dashboard"},
		{name: "provider on client wing goes home", path: "/client/bookings", token: "t", role: "care-provider", wantRedirect: "/provider/dashboard"},
		{name: "signed-in client passes protected page", path: "/settings", token: "t", role: "client", wantNext: true},
		{name: "clients prefix is not client scoped", path: "/clients", wantRedirect: "/login"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w, nextCalled := gateRequest(t, tc.path, tc.token, tc.role)

			require.Equal(t, tc.wantNext, nextCalled)
			if tc.wantRedirect != "" {
				require.Equal(t, http.StatusSeeOther, w.Code)
				require.Equal(t, tc.wantRedirect, w.Header().Get("Location"))
			}
		})
	}
}

func TestGateTokenWithoutRoleIsCleared(t *testing.T) {
	w, nextCalled := gateRequest(t, "/client/bookings", "some-token", "")

	require.False(t, nextCalled)
	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, "/login", w.Header().Get("Location"))

	cleared := map[string]bool{}
	for _, cookie := range w.Result().Cookies() {
		if cookie.MaxAge < 0 {
			cleared[cookie.Name] = true
		}
	}
	require.True(t, cleared["token"])
	require.True(t, cleared["userRole"])
}

func TestGateTokenWithUnknownRoleIsCleared(t *testing.T) {
	w, nextCalled := gateRequest(t, "/", "some-token", "superuser")

	require.False(t, nextCalled)
	require.Equal(t, "/login", w.Header().Get("Location"))
}

func TestGateNeverRedirectsToCurrentPath(t *testing.T) {
	// A corrupt session already sitting on /login must not bounce back to
	// /login forever. The cookies still get cleared.
	w, nextCalled := gateRequest(t, "/login", "some-token", "superuser")

	require.True(t, nextCalled)
	require.Equal(t, http.StatusOK, w.Code)

	cleared := map[string]bool{}
	for _, cookie := range w.Result().Cookies() {
		if cookie.MaxAge < 0 {
			cleared[cookie.Name] = true
		}
	}
	require.True(t, cleared["token"])
	require.True(t, cleared["userRole"])
}

func TestGateRoleCookieWithoutToken(t *testing.T) {
	// A lone role cookie is not an authenticated signal.
	_, nextCalled := gateRequest(t, "/login", "", string(session.RoleClient))
	require.True(t, nextCalled)

	w, _ := gateRequest(t, "/client/dashboard", "", string(session.RoleClient))
	require.Equal(t, "/login", w.Header().Get("Location"))
}
