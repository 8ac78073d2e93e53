package server

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/carelink/authgate/routes"
	"github.com/carelink/authgate/session"
)

const contentTypeHTML = "text/html; charset=utf-8"

// LoginPageData contains data for rendering the login page
type LoginPageData struct {
	Error     string
	Email     string // Preserve email on error
	Providers []string
}

// RegisterPageData contains data for rendering the sign-up page
type RegisterPageData struct {
	Error string
	Email string
}

// VerifyOTPPageData contains data for rendering the verification page
type VerifyOTPPageData struct {
	Error string
	Email string
}

// DashboardPageData contains data for rendering a dashboard shell
type DashboardPageData struct {
	Title    string
	Greeting string
}

// LoginPageHandler displays the login page (GET /login)
func (s *Server) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.renderLogin(w, r.URL.Query().Get("error"), r.URL.Query().Get("email"))
	}
}

// RegisterPageHandler displays the sign-up page (GET /register)
func (s *Server) RegisterPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.renderRegister(w, r.URL.Query().Get("error"), r.URL.Query().Get("email"))
	}
}

// VerifyOTPPageHandler displays the email verification page. The address to
// verify carries over from the register step.
func (s *Server) VerifyOTPPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := cookieValue(r, sessionCookieName)
		email := r.URL.Query().Get("email")
		if email == "" {
			email = s.pendingEmail(r, sessionID)
		}
		s.renderVerifyOTP(w, r.URL.Query().Get("error"), email)
	}
}

// IndexHandler lands signed-in users on the dashboard for their role.
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := cookieValue(r, sessionCookieName)
		state, err := s.auth.State(r.Context(), sessionID)
		if err != nil || !state.Authenticated {
			http.Redirect(w, r, routes.LoginPath, http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, routes.DashboardPath(state.Role), http.StatusSeeOther)
	}
}

// DashboardHandler renders the dashboard shell for a role. The session's
// access token is confirmed first so a stale token gets refreshed before the
// page loads, and a dead session goes back to sign-in.
func (s *Server) DashboardHandler(role session.Role) http.HandlerFunc {
	titles := map[session.Role]string{
		session.RoleClient:       "Client Dashboard",
		session.RoleCareProvider: "Provider Dashboard",
	}
	greetings := map[session.Role]string{
		session.RoleClient:       "Welcome back. Your bookings and care team live here.",
		session.RoleCareProvider: "Welcome back. Your schedule and clients live here.",
	}

	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := cookieValue(r, sessionCookieName)
		if err := s.auth.Confirm(r.Context(), sessionID); err != nil {
			s.cookies.ClearSignals(w)
			http.Redirect(w, r, routes.LoginPath, http.StatusSeeOther)
			return
		}
		s.renderDashboard(w, DashboardPageData{
			Title:    titles[role],
			Greeting: greetings[role],
		})
	}
}

func (s *Server) renderDashboard(w http.ResponseWriter, data DashboardPageData) {
	dashboardTmpl, err := ParseTemplate("dashboard.html")
	if err != nil {
		log.Err(err).Msg("Failed to parse dashboard template")
		http.Error(w, "Failed to render dashboard", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentTypeHTML)
	if err := dashboardTmpl.Execute(w, data); err != nil {
		log.Err(err).Msg("Failed to render dashboard template")
		http.Error(w, "Failed to render dashboard", http.StatusInternalServerError)
	}
}

func (s *Server) renderLogin(w http.ResponseWriter, errorMsg, email string) {
	loginTmpl, err := ParseTemplate("login.html")
	if err != nil {
		log.Err(err).Msg("Failed to parse login template")
		http.Error(w, "Failed to render login page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentTypeHTML)
	if err := loginTmpl.Execute(w, LoginPageData{
		Error:     errorMsg,
		Email:     email,
		Providers: s.providers.Names(),
	}); err != nil {
		log.Err(err).Msg("Failed to render login template")
		http.Error(w, "Failed to render login page", http.StatusInternalServerError)
	}
}

func (s *Server) renderRegister(w http.ResponseWriter, errorMsg, email string) {
	registerTmpl, err := ParseTemplate("register.html")
	if err != nil {
		log.Err(err).Msg("Failed to parse register template")
		http.Error(w, "Failed to render register page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentTypeHTML)
	if err := registerTmpl.Execute(w, RegisterPageData{Error: errorMsg, Email: email}); err != nil {
		log.Err(err).Msg("Failed to render register template")
		http.Error(w, "Failed to render register page", http.StatusInternalServerError)
	}
}

func (s *Server) renderVerifyOTP(w http.ResponseWriter, errorMsg, email string) {
	verifyTmpl, err := ParseTemplate("verify_otp.html")
	if err != nil {
		log.Err(err).Msg("Failed to parse verify template")
		http.Error(w, "Failed to render verification page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentTypeHTML)
	if err := verifyTmpl.Execute(w, VerifyOTPPageData{Error: errorMsg, Email: email}); err != nil {
		log.Err(err).Msg("Failed to render verify template")
		http.Error(w, "Failed to render verification page", http.StatusInternalServerError)
	}
}

func (s *Server) renderCallbackError(w http.ResponseWriter, errorMsg string) {
	errorTmpl, err := ParseTemplate("oauth_error.html")
	if err != nil {
		log.Err(err).Msg("Failed to parse oauth error template")
		http.Error(w, errorMsg, http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(http.StatusBadRequest)
	if err := errorTmpl.Execute(w, struct{ Error string }{Error: errorMsg}); err != nil {
		log.Err(err).Msg("Failed to render oauth error template")
	}
}
