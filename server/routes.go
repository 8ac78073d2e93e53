package server

import (
	"github.com/carelink/authgate/session"
)

func (s *Server) initRoutes() {
	// Pages (gated)
	s.RegisterRouteHandler("GET "+RouteIndex, ChainMiddleware(s.IndexHandler(), s.HTMLMiddleware(Guard(s.auth))...))
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LoginPageHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteRegister, ChainMiddleware(s.RegisterPageHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteVerifyOTP, ChainMiddleware(s.VerifyOTPPageHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteForgotPassword, ChainMiddleware(s.ForgotPasswordPageHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteResetPassword, ChainMiddleware(s.ResetPasswordPageHandler(), s.HTMLMiddleware()...))

	// Dashboards: gate first (cookie signals), then guard (live state)
	s.RegisterRouteHandler("GET "+RouteClientDashboard,
		ChainMiddleware(s.DashboardHandler(session.RoleClient), s.HTMLMiddleware(Guard(s.auth, session.RoleClient))...))
	s.RegisterRouteHandler("GET "+RouteProviderDashboard,
		ChainMiddleware(s.DashboardHandler(session.RoleCareProvider), s.HTMLMiddleware(Guard(s.auth, session.RoleCareProvider))...))

	// Form submissions
	s.RegisterRouteHandler("POST "+RouteAuthLogin, ChainMiddleware(s.LoginSubmissionHandler(), s.FormMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthRegister, ChainMiddleware(s.RegisterSubmissionHandler(), s.FormMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthVerifyOTP, ChainMiddleware(s.VerifyOTPSubmissionHandler(), s.FormMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthResendOTP, ChainMiddleware(s.ResendOTPHandler(), s.FormMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthForgotPassword, ChainMiddleware(s.ForgotPasswordSubmissionHandler(), s.FormMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthResetPassword, ChainMiddleware(s.ResetPasswordSubmissionHandler(), s.FormMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.FormMiddleware()...))

	// Social login
	s.RegisterRouteHandler("GET "+RouteOAuthStart, ChainMiddleware(s.OAuthStartHandler(), s.FormMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteOAuthCallback, ChainMiddleware(s.OAuthCallbackHandler(), s.FormMiddleware()...))

	// Session API
	s.RegisterRouteHandler("GET "+RouteAPISession, ChainMiddleware(s.SessionInfoHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPISessionRefresh, ChainMiddleware(s.SessionRefreshHandler(), s.APIMiddleware()...))
}
