package identity_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/carelink/authgate/identity"
	"github.com/carelink/authgate/session"
)

const (
	testEmail    = "jane.doe@example.com"
	testPassword = "password123"
)

func fixedNow() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

// backendStub serves a single canned response for whichever path is hit.
func backendStub(t *testing.T, status int, payload any) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(status)
		if payload != nil {
			require.NoError(t, json.NewEncoder(w).Encode(payload))
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestLoginMapsGrantWithExplicitExpiry(t *testing.T) {
	server := backendStub(t, http.StatusOK, map[string]any{
		"accessToken":  "access-1",
		"refreshToken": "refresh-1",
		"expiresIn":    900,
		"user": map[string]any{
			"id":    "u1",
			"email": testEmail,
			"role":  "client",
		},
	})
	client := identity.NewHTTPClient(server.URL, identity.WithNowTime(fixedNow))

	grant, err := client.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	require.Equal(t, "access-1", grant.AccessToken)
	require.Equal(t, "refresh-1", grant.RefreshToken)
	require.Equal(t, session.RoleClient, grant.Role)
	require.Equal(t, testEmail, grant.User.Email)
	require.Equal(t, fixedNow().Add(15*time.Minute), grant.ExpiresAt)
}

func TestLoginExpiryFallsBackToTokenClaim(t *testing.T) {
	exp := fixedNow().Add(30 * time.Minute)
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": exp.Unix(),
	}).SignedString([]byte("backend-secret"))
	require.NoError(t, err)

	server := backendStub(t, http.StatusOK, map[string]any{
		"accessToken":  accessToken,
		"refreshToken": "refresh-1",
		"user":         map[string]any{"id": "u1", "role": "client"},
	})
	client := identity.NewHTTPClient(server.URL, identity.WithNowTime(fixedNow))

	grant, err := client.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	require.Equal(t, exp.Unix(), grant.ExpiresAt.Unix())
}

func TestLoginRejectionIsInvalidCredentials(t *testing.T) {
	server := backendStub(t, http.StatusUnauthorized, map[string]string{"message": "bad credentials"})
	client := identity.NewHTTPClient(server.URL)

	_, err := client.Login(context.Background(), testEmail, "wrong")
	require.ErrorIs(t, err, identity.InvalidCredentialsErr)
}

func TestRefreshRejectionIsTerminal(t *testing.T) {
	server := backendStub(t, http.StatusUnauthorized, nil)
	client := identity.NewHTTPClient(server.URL)

	_, err := client.Refresh(context.Background(), "stale-refresh")
	require.ErrorIs(t, err, identity.RefreshRejectedErr)
}

func TestRegisterConflictIsAccountExists(t *testing.T) {
	server := backendStub(t, http.StatusConflict, nil)
	client := identity.NewHTTPClient(server.URL)

	err := client.Register(context.Background(), identity.Registration{
		Email:    testEmail,
		Password: testPassword,
		Role:     session.RoleClient,
	})
	require.ErrorIs(t, err, identity.AccountExistsErr)
}

func TestResetPasswordRejectionIsInvalidToken(t *testing.T) {
	server := backendStub(t, http.StatusUnprocessableEntity, nil)
	client := identity.NewHTTPClient(server.URL)

	err := client.ResetPassword(context.Background(), "stale-token", "newpassword1")
	require.ErrorIs(t, err, identity.InvalidResetTokenErr)
}

func TestUnreachableBackendSurfacesAsUnavailable(t *testing.T) {
	server := backendStub(t, http.StatusOK, nil)
	server.Close()
	client := identity.NewHTTPClient(server.URL)

	_, err := client.Login(context.Background(), testEmail, testPassword)
	require.ErrorIs(t, err, identity.BackendUnavailableErr)

	err = client.ForgotPassword(context.Background(), testEmail)
	require.ErrorIs(t, err, identity.BackendUnavailableErr)
}

func TestBackendErrorCarriesStatusAndMessage(t *testing.T) {
	server := backendStub(t, http.StatusInternalServerError, map[string]string{"message": "database down"})
	client := identity.NewHTTPClient(server.URL)

	_, err := client.Login(context.Background(), testEmail, testPassword)
	require.ErrorIs(t, err, identity.BackendUnavailableErr)
	require.Contains(t, err.Error(), "database down")
}
