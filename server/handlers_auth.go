package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/carelink/authgate/identity"
	"github.com/carelink/authgate/routes"
	"github.com/carelink/authgate/server/oauthflow"
	"github.com/carelink/authgate/session"
)

// LoginSubmissionHandler processes the login form submission
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		sessionID := s.cookies.SessionID(w, r)
		email := r.FormValue("email")
		password := r.FormValue("password")

		if email == "" || password == "" {
			s.renderLogin(w, "Email and password are required", email)
			return
		}

		if err := s.auth.Login(r.Context(), sessionID, email, password); err != nil {
			log.Err(err).Msg("Login failed")
			s.renderLogin(w, s.displayableError(r, sessionID), email)
			return
		}

		s.finalizeSession(w, r, sessionID, "")
	}
}

// RegisterSubmissionHandler processes the sign-up form. Success leads to the
// OTP verification page, not to a signed-in session.
func (s *Server) RegisterSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		sessionID := s.cookies.SessionID(w, r)
		registration, message := registrationFromForm(r)
		if message != "" {
			s.renderRegister(w, message, registration.Email)
			return
		}

		if err := s.auth.Register(r.Context(), sessionID, registration); err != nil {
			log.Err(err).Msg("Registration failed")
			s.renderRegister(w, s.displayableError(r, sessionID), registration.Email)
			return
		}

		http.Redirect(w, r, RouteVerifyOTP, http.StatusSeeOther)
	}
}

// VerifyOTPSubmissionHandler completes the register handoff.
func (s *Server) VerifyOTPSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		sessionID := s.cookies.SessionID(w, r)
		email := r.FormValue("email")
		if email == "" {
			email = s.pendingEmail(r, sessionID)
		}
		code := r.FormValue("code")

		if email == "" || code == "" {
			s.renderVerifyOTP(w, "Enter the code we emailed you", email)
			return
		}

		if err := s.auth.VerifyOTP(r.Context(), sessionID, email, code); err != nil {
			log.Err(err).Msg("OTP verification failed")
			s.renderVerifyOTP(w, s.displayableError(r, sessionID), email)
			return
		}

		s.finalizeSession(w, r, sessionID, "")
	}
}

// ResendOTPHandler restarts the pending verification step.
func (s *Server) ResendOTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		sessionID := s.cookies.SessionID(w, r)
		email := r.FormValue("email")
		if email == "" {
			email = s.pendingEmail(r, sessionID)
		}
		if email == "" {
			http.Redirect(w, r, RouteRegister, http.StatusSeeOther)
			return
		}

		if err := s.auth.ResendOTP(r.Context(), sessionID, email); err != nil {
			log.Err(err).Msg("OTP resend failed")
		}
		http.Redirect(w, r, RouteVerifyOTP, http.StatusSeeOther)
	}
}

// LogoutHandler clears the session. Safe to hit without one.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := cookieValue(r, sessionCookieName)
		if sessionID != "" {
			if err := s.auth.Logout(r.Context(), sessionID); err != nil {
				log.Err(err).Msg("Logout failed to clear session")
			}
		}
		s.cookies.ClearSignals(w)
		http.Redirect(w, r, routes.LoginPath, http.StatusSeeOther)
	}
}

// OAuthStartHandler sends the user to the provider's consent screen.
func (s *Server) OAuthStartHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider := r.PathValue("provider")
		if !s.providers.Known(provider) {
			http.Error(w, "Unknown provider", http.StatusNotFound)
			return
		}

		state := uuid.New().String()
		if err := s.flows.Upsert(state, &oauthflow.FlowState{
			Provider:  provider,
			ReturnURL: r.FormValue("return_to"),
		}); err != nil {
			http.Error(w, "Failed to start sign-in", http.StatusInternalServerError)
			return
		}

		authURL, err := s.providers.AuthCodeURL(provider, state)
		if err != nil {
			http.Error(w, "Failed to start sign-in", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, authURL, http.StatusSeeOther)
	}
}

// OAuthCallbackHandler lands the provider redirect. Parameter problems are
// page-level errors with a manual way back, never an automatic retry.
func (s *Server) OAuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if errorParam := r.FormValue("error"); errorParam != "" {
			s.renderCallbackError(w, "Authorization failed: "+errorParam)
			return
		}

		code := r.FormValue("code")
		stateParam := r.FormValue("state")
		if code == "" || stateParam == "" {
			s.renderCallbackError(w, "Missing code or state parameter")
			return
		}

		flowState, err := s.flows.Get(stateParam)
		if err != nil {
			s.renderCallbackError(w, "Invalid state parameter")
			return
		}
		// Clean up state after use
		_ = s.flows.Delete(stateParam)

		sessionID := s.cookies.SessionID(w, r)
		if err := s.auth.HandleOAuthCallback(r.Context(), sessionID, flowState.Provider, code); err != nil {
			log.Err(err).Str("provider", flowState.Provider).Msg("OAuth callback failed")
			s.renderCallbackError(w, "Sign-in with "+flowState.Provider+" failed")
			return
		}

		s.finalizeSession(w, r, sessionID, flowState.ReturnURL)
	}
}

// SessionInfoHandler reports the live session state as JSON for status
// indicators and banners.
func (s *Server) SessionInfoHandler() http.HandlerFunc {
	type response struct {
		Authenticated            bool            `json:"authenticated"`
		Role                     string          `json:"role,omitempty"`
		User                     json.RawMessage `json:"user,omitempty"`
		PendingVerificationEmail string          `json:"pendingVerificationEmail,omitempty"`
		Error                    string          `json:"error,omitempty"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := cookieValue(r, sessionCookieName)
		state, err := s.auth.State(r.Context(), sessionID)
		if err != nil {
			log.Err(err).Msg("Session info unavailable")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "session state unavailable"})
			return
		}

		resp := response{
			Authenticated:            state.Authenticated,
			Role:                     string(state.Role),
			PendingVerificationEmail: state.PendingVerificationEmail,
			Error:                    state.Err,
		}
		if state.User != "" {
			resp.User = json.RawMessage(state.User)
		}
		if !state.Authenticated {
			resp.Role = ""
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// SessionRefreshHandler forces a token refresh. Failure is terminal for the
// session: the signals are cleared and the client must sign in again.
func (s *Server) SessionRefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := cookieValue(r, sessionCookieName)
		if sessionID == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "no session"})
			return
		}

		accessToken, err := s.auth.RefreshToken(r.Context(), sessionID)
		if err != nil {
			log.Err(err).Msg("Session refresh failed")
			s.cookies.ClearSignals(w)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "session expired"})
			return
		}

		snapshot, err := s.store.Get(r.Context(), sessionID)
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "session state unavailable"})
			return
		}
		s.cookies.SetSignals(w, snapshot.AccessToken, snapshot.Role, snapshot.ExpiresAt)
		writeJSON(w, http.StatusOK, map[string]any{
			"accessToken": accessToken,
			"expiresAt":   snapshot.ExpiresAt.UnixMilli(),
		})
	}
}

// finalizeSession mirrors the freshly stored session into the gate's signal
// cookies and lands the user on returnTo when it is a safe in-app destination
// for their role, otherwise on their dashboard.
func (s *Server) finalizeSession(w http.ResponseWriter, r *http.Request, sessionID, returnTo string) {
	snapshot, err := s.store.Get(r.Context(), sessionID)
	if err != nil {
		log.Err(err).Msg("Could not read session after sign-in")
		http.Error(w, "Sign-in failed", http.StatusInternalServerError)
		return
	}
	s.cookies.SetSignals(w, snapshot.AccessToken, snapshot.Role, snapshot.ExpiresAt)
	http.Redirect(w, r, landingPath(returnTo, snapshot.Role), http.StatusSeeOther)
}

// landingPath vets a requested post-sign-in destination. Only in-app paths the
// role is allowed to visit pass; everything else falls back to the dashboard.
func landingPath(returnTo string, role session.Role) string {
	if returnTo == "" || !strings.HasPrefix(returnTo, "/") || strings.HasPrefix(returnTo, "//") {
		return routes.DashboardPath(role)
	}
	switch routes.Classify(returnTo) {
	case routes.Protected:
		return returnTo
	case routes.ClientScoped:
		if role == session.RoleClient {
			return returnTo
		}
	case routes.ProviderScoped:
		if role == session.RoleCareProvider {
			return returnTo
		}
	}
	return routes.DashboardPath(role)
}

// displayableError fetches the user-facing message recorded by the last
// failed operation.
func (s *Server) displayableError(r *http.Request, sessionID string) string {
	state, err := s.auth.State(r.Context(), sessionID)
	if err != nil || state.Err == "" {
		return "Something went wrong. Please try again."
	}
	return state.Err
}

func (s *Server) pendingEmail(r *http.Request, sessionID string) string {
	state, err := s.auth.State(r.Context(), sessionID)
	if err != nil {
		return ""
	}
	return state.PendingVerificationEmail
}

func registrationFromForm(r *http.Request) (identity.Registration, string) {
	role, err := session.ParseRole(r.FormValue("role"))
	registration := identity.Registration{
		Email:     r.FormValue("email"),
		Password:  r.FormValue("password"),
		FirstName: r.FormValue("firstName"),
		LastName:  r.FormValue("lastName"),
		Role:      role,
	}
	switch {
	case registration.Email == "" || registration.Password == "":
		return registration, "Email and password are required"
	case err != nil:
		return registration, "Choose whether you are a client or a care provider"
	}
	return registration, ""
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Err(err).Msg("Failed to encode JSON response")
	}
}
