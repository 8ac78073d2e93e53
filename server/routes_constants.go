package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteIndex = "/"

	// Public pages
	RouteLogin          = "/login"
	RouteRegister       = "/register"
	RouteVerifyOTP      = "/verify-otp"
	RouteForgotPassword = "/forgot-password"
	RouteResetPassword  = "/reset-password"

	// Form submission endpoints
	RouteAuthLogin          = "/auth/login"
	RouteAuthRegister       = "/auth/register"
	RouteAuthVerifyOTP      = "/auth/verify-otp"
	RouteAuthResendOTP      = "/auth/verify-otp/resend"
	RouteAuthLogout         = "/auth/logout"
	RouteAuthForgotPassword = "/auth/forgot-password"
	RouteAuthResetPassword  = "/auth/reset-password"

	// Social login
	RouteOAuthStart    = "/oauth/{provider}/start"
	RouteOAuthCallback = "/oauth/callback"

	// Session API
	RouteAPISession        = "/api/session"
	RouteAPISessionRefresh = "/api/session/refresh"

	// Dashboards
	RouteClientDashboard   = "/client/dashboard"
	RouteProviderDashboard = "/provider/dashboard"
)
