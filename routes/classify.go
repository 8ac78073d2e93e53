// Package routes holds the single route-classification function shared by the
// cookie-level route gate and the live-state guards. Both layers must agree on
// how a path is scoped or a user can be bounced in a redirect loop.
package routes

import (
	"strings"

	"github.com/carelink/authgate/session"
)

// Class is the access classification of a request path.
type Class int

const (
	// Public paths render for anonymous visitors and bounce signed-in users
	// to their dashboard.
	Public Class = iota
	// ClientScoped paths require an authenticated client session.
	ClientScoped
	// ProviderScoped paths require an authenticated care-provider session.
	ProviderScoped
	// Protected paths require any authenticated session.
	Protected
)

// Path constants recognised by the gateway.
const (
	LoginPath          = "/login"
	RegisterPath       = "/register"
	VerifyOTPPath      = "/verify-otp"
	ForgotPasswordPath = "/forgot-password"
	ResetPasswordPath  = "/reset-password"
	OAuthCallbackPath  = "/oauth/callback"

	ClientDashboardPath   = "/client/dashboard"
	ProviderDashboardPath = "/provider/dashboard"

	clientPrefix   = "/client"
	providerPrefix = "/provider"
)

// Classify maps a request path to exactly one Class.
func Classify(path string) Class {
	switch path {
	case LoginPath, RegisterPath, VerifyOTPPath, ForgotPasswordPath, ResetPasswordPath, OAuthCallbackPath:
		return Public
	}
	if strings.HasPrefix(path, "/oauth/") {
		// Provider start/callback endpoints behave like the login page.
		return Public
	}
	if scoped(path, clientPrefix) {
		return ClientScoped
	}
	if scoped(path, providerPrefix) {
		return ProviderScoped
	}
	return Protected
}

func scoped(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// DashboardPath returns the landing page for a role. Callers must pass a
// valid role; anything else lands on the login page.
func DashboardPath(role session.Role) string {
	switch role {
	case session.RoleClient:
		return ClientDashboardPath
	case session.RoleCareProvider:
		return ProviderDashboardPath
	}
	return LoginPath
}
