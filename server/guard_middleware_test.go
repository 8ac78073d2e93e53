package server_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/carelink/authgate/auth"
	"github.com/carelink/authgate/server"
	"github.com/carelink/authgate/session"
)

// stubStateSource returns a canned state for every session id.
type stubStateSource struct {
	state auth.State
	err   error
}

func (s stubStateSource) State(_ context.Context, _ string) (auth.State, error) {
	return s.state, s.err
}

func guardRequest(t *testing.T, source auth.StateSource, allowed ...session.Role) (*httptest.ResponseRecorder, bool) {
	t.Helper()

	nextCalled := false
	next := func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		w.WriteHeader(http.StatusOK)
	}

	r := httptest.NewRequest(http.MethodGet, "/client/dashboard", nil)
	r.AddCookie(&http.Cookie{Name: "sid", Value: "session-1"})

	w := httptest.NewRecorder()
	server.Guard(source, allowed...)(next)(w, r)
	return w, nextCalled
}

func TestGuardAllowsAuthenticatedRole(t *testing.T) {
	source := stubStateSource{state: auth.State{Authenticated: true, Role: session.RoleClient}}

	w, nextCalled := guardRequest(t, source, session.RoleClient)

	require.True(t, nextCalled)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestGuardEmptyAllowListAdmitsAnyRole(t *testing.T) {
	source := stubStateSource{state: auth.State{Authenticated: true, Role: session.RoleCareProvider}}

	_, nextCalled := guardRequest(t, source)

	require.True(t, nextCalled)
}

func TestGuardRedirectsAnonymousToLogin(t *testing.T) {
	source := stubStateSource{state: auth.State{}}

	w, nextCalled := guardRequest(t, source, session.RoleClient)

	require.False(t, nextCalled)
	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, "/login", w.Header().Get("Location"))
}

func TestGuardSendsWrongRoleHome(t *testing.T) {
	source := stubStateSource{state: auth.State{Authenticated: true, Role: session.RoleCareProvider}}

	w, nextCalled := guardRequest(t, source, session.RoleClient)

	require.False(t, nextCalled)
	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, "/provider/dashboard", w.Header().Get("Location"))
}

func TestGuardLoadingRendersPlaceholderWithoutRedirect(t *testing.T) {
	source := stubStateSource{state: auth.State{Loading: true}}

	w, nextCalled := guardRequest(t, source, session.RoleClient)

	require.False(t, nextCalled)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, w.Header().Get("Location"))
	require.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	require.Contains(t, w.Body.String(), "refresh")
}

func TestGuardStateErrorIsServiceUnavailable(t *testing.T) {
	source := stubStateSource{err: errors.Wrap(session.StoreUnavailableErr, "[State]")}

	w, nextCalled := guardRequest(t, source, session.RoleClient)

	require.False(t, nextCalled)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}
