package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/carelink/authgate/session"
)

// Cookie names. The session id cookie is httpOnly and names the store entry;
// token and userRole are the transport-visible signals the route gate reads.
const (
	sessionCookieName    = "sid"
	tokenCookieName      = "token"
	roleCookieName       = "userRole"
	oauthStateCookieName = "oauth_state"
)

// CookieManager centralises cookie attributes so the gate, the guards, and
// the handlers all write the same shapes.
type CookieManager struct {
	domain string
	secure bool
}

func NewCookieManager(domain string, secure bool) *CookieManager {
	return &CookieManager{domain: domain, secure: secure}
}

// SessionID returns the request's session id, minting and setting one when
// the browser has none yet.
func (cm *CookieManager) SessionID(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	sessionID := uuid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   cm.domain,
		HttpOnly: true,
		Secure:   cm.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return sessionID
}

// SetSignals mirrors the authenticated session into the cookies the route
// gate inspects.
func (cm *CookieManager) SetSignals(w http.ResponseWriter, accessToken string, role session.Role, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookieName,
		Value:    accessToken,
		Path:     "/",
		Domain:   cm.domain,
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   cm.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     roleCookieName,
		Value:    string(role),
		Path:     "/",
		Domain:   cm.domain,
		Expires:  expiresAt,
		Secure:   cm.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSignals expires both signal cookies.
func (cm *CookieManager) ClearSignals(w http.ResponseWriter) {
	for _, name := range []string{tokenCookieName, roleCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Domain:   cm.domain,
			MaxAge:   -1,
			Secure:   cm.secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

func cookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
