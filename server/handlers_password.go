package server

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

// ForgotPasswordPageData contains data for rendering the forgot-password page
type ForgotPasswordPageData struct {
	Error string
	Email string
	Sent  bool
}

// ResetPasswordPageData contains data for rendering the reset-password page
type ResetPasswordPageData struct {
	Error string
	Token string
}

// ForgotPasswordPageHandler displays the reset-link request page.
func (s *Server) ForgotPasswordPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.renderForgotPassword(w, ForgotPasswordPageData{
			Error: r.URL.Query().Get("error"),
			Email: r.URL.Query().Get("email"),
			Sent:  r.URL.Query().Get("sent") == "1",
		})
	}
}

// ForgotPasswordSubmissionHandler asks the backend for a reset email. The
// confirmation is the same whether or not the account exists.
func (s *Server) ForgotPasswordSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		sessionID := s.cookies.SessionID(w, r)
		email := r.FormValue("email")
		if email == "" {
			s.renderForgotPassword(w, ForgotPasswordPageData{Error: "Enter your email address"})
			return
		}

		if err := s.auth.ForgotPassword(r.Context(), sessionID, email); err != nil {
			log.Err(err).Msg("Forgot password request failed")
			s.renderForgotPassword(w, ForgotPasswordPageData{Error: s.displayableError(r, sessionID), Email: email})
			return
		}

		http.Redirect(w, r, RouteForgotPassword+"?sent=1", http.StatusSeeOther)
	}
}

// ResetPasswordPageHandler displays the new-password form. The reset token
// arrives in the emailed link's query string.
func (s *Server) ResetPasswordPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.renderResetPassword(w, ResetPasswordPageData{
			Error: r.URL.Query().Get("error"),
			Token: r.URL.Query().Get("token"),
		})
	}
}

// ResetPasswordSubmissionHandler applies the new password and sends the user
// back to sign in. No session is created here.
func (s *Server) ResetPasswordSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		sessionID := s.cookies.SessionID(w, r)
		resetToken := r.FormValue("token")
		password := r.FormValue("password")
		if resetToken == "" || password == "" {
			s.renderResetPassword(w, ResetPasswordPageData{Error: "The reset link is incomplete", Token: resetToken})
			return
		}

		if err := s.auth.ResetPassword(r.Context(), sessionID, resetToken, password); err != nil {
			log.Err(err).Msg("Password reset failed")
			s.renderResetPassword(w, ResetPasswordPageData{Error: s.displayableError(r, sessionID), Token: resetToken})
			return
		}

		http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
	}
}

func (s *Server) renderForgotPassword(w http.ResponseWriter, data ForgotPasswordPageData) {
	tmpl, err := ParseTemplate("forgot_password.html")
	if err != nil {
		log.Err(err).Msg("Failed to parse forgot password template")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentTypeHTML)
	if err := tmpl.Execute(w, data); err != nil {
		log.Err(err).Msg("Failed to render forgot password template")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

func (s *Server) renderResetPassword(w http.ResponseWriter, data ResetPasswordPageData) {
	tmpl, err := ParseTemplate("reset_password.html")
	if err != nil {
		log.Err(err).Msg("Failed to parse reset password template")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentTypeHTML)
	if err := tmpl.Execute(w, data); err != nil {
		log.Err(err).Msg("Failed to render reset password template")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}
