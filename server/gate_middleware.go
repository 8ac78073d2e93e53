package server

import (
	"net/http"

	"github.com/carelink/authgate/routes"
	"github.com/carelink/authgate/session"
)

// Gate is the pre-render admission check, run once per navigation. It sees
// only the transport-visible signals (token and userRole cookies), never the
// session store: cookie truth can lag store truth, which is why the in-tree
// guards exist as a second layer.
//
// Decision table:
//
//	public    + authenticated        -> redirect to the role's dashboard
//	public    + anonymous            -> allow
//	protected + anonymous            -> redirect to login
//	scoped    + wrong role           -> redirect to the user's own dashboard
//	scoped    + matching role        -> allow
//	any       + token w/ bad role    -> clear signal cookies, redirect to login
//
// A request already at its computed destination is never redirected again.
func Gate(cookies *CookieManager) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			accessToken := cookieValue(r, tokenCookieName)
			role, roleErr := session.ParseRole(cookieValue(r, roleCookieName))

			// A token with a missing or unrecognised role is a corrupt
			// session: fail safe, not open.
			if accessToken != "" && roleErr != nil {
				cookies.ClearSignals(w)
				if redirectTo(w, r, routes.LoginPath) {
					return
				}
				next(w, r)
				return
			}

			authenticated := accessToken != "" && role.Valid()

			switch routes.Classify(r.URL.Path) {
			case routes.Public:
				if authenticated && redirectTo(w, r, routes.DashboardPath(role)) {
					return
				}
			case routes.Protected:
				if !authenticated && redirectTo(w, r, routes.LoginPath) {
					return
				}
			case routes.ClientScoped:
				if gateScoped(w, r, authenticated, role, session.RoleClient) {
					return
				}
			case routes.ProviderScoped:
				if gateScoped(w, r, authenticated, role, session.RoleCareProvider) {
					return
				}
			}
			next(w, r)
		}
	}
}

// gateScoped applies the scoped-route rows of the decision table. A wrong
// role goes to its own dashboard, never to login: the user is authenticated,
// just in the wrong wing.
func gateScoped(w http.ResponseWriter, r *http.Request, authenticated bool, role, required session.Role) bool {
	if !authenticated {
		return redirectTo(w, r, routes.LoginPath)
	}
	if role != required {
		return redirectTo(w, r, routes.DashboardPath(role))
	}
	return false
}

// redirectTo issues a redirect unless the request is already headed to the
// destination, which would loop. Returns whether the response was written.
func redirectTo(w http.ResponseWriter, r *http.Request, destination string) bool {
	if r.URL.Path == destination {
		return false
	}
	http.Redirect(w, r, destination, http.StatusSeeOther)
	return true
}
