package server

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/carelink/authgate/auth"
	"github.com/carelink/authgate/routes"
	"github.com/carelink/authgate/session"
)

// Guard enforces the same contract as the Gate but from live session state,
// covering the window where cookies lag the store (first paint after login,
// logout from another tab). With an empty allow-list any authenticated
// session passes.
//
// While the state is still loading the guard renders a placeholder and never
// redirects: a deferred decision, not a denial.
func Guard(source auth.StateSource, allowed ...session.Role) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			sessionID := cookieValue(r, sessionCookieName)

			state, err := source.State(r.Context(), sessionID)
			if err != nil {
				log.Err(err).Str("path", r.URL.Path).Msg("Guard could not read session state")
				http.Error(w, "Service temporarily unavailable", http.StatusServiceUnavailable)
				return
			}

			if state.Loading {
				renderLoadingPlaceholder(w)
				return
			}
			if !state.Authenticated {
				// Silent redirect: the login page is the feedback.
				http.Redirect(w, r, routes.LoginPath, http.StatusSeeOther)
				return
			}
			if len(allowed) > 0 && !roleAllowed(state.Role, allowed) {
				http.Redirect(w, r, routes.DashboardPath(state.Role), http.StatusSeeOther)
				return
			}
			next(w, r)
		}
	}
}

func roleAllowed(role session.Role, allowed []session.Role) bool {
	for _, candidate := range allowed {
		if role == candidate {
			return true
		}
	}
	return false
}

func renderLoadingPlaceholder(w http.ResponseWriter) {
	w.Header().Set("Content-Type", contentTypeHTML)
	w.Header().Set("Cache-Control", "no-store")
	// Re-request shortly; by then the state will have settled.
	_, _ = w.Write([]byte(`<!DOCTYPE html>
<html><head><meta http-equiv="refresh" content="1"><title>Loading</title></head>
<body><p>Loading your session…</p></body></html>`))
}
