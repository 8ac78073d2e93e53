package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/carelink/authgate/auth"
	"github.com/carelink/authgate/identity"
	"github.com/carelink/authgate/internal/config"
	"github.com/carelink/authgate/server/oauthflow"
	"github.com/carelink/authgate/session"
	"github.com/carelink/authgate/token"
)

type Server struct {
	env       string // Environment (e.g., "DEV", "production")
	mux       *http.ServeMux
	routes    []string
	config    config.Config
	store     session.Store
	auth      *auth.Service
	tokens    *token.Manager
	providers *identity.Providers
	flows     oauthflow.Repo
	cookies   *CookieManager
}

func New(cfg config.Config, store session.Store, authService *auth.Service, tokens *token.Manager, providers *identity.Providers, flows oauthflow.Repo) (*Server, error) {
	if store == nil || authService == nil || tokens == nil {
		return nil, fmt.Errorf("[Server New] store, auth service and token manager are required")
	}
	if providers == nil {
		providers = identity.NewProviders(nil)
	}
	if flows == nil {
		flows = oauthflow.NewInMemoryRepo()
	}

	s := &Server{
		mux:       http.NewServeMux(),
		config:    cfg,
		store:     store,
		auth:      authService,
		tokens:    tokens,
		providers: providers,
		flows:     flows,
		cookies:   NewCookieManager(cfg.GetCookieDomain(), cfg.GetCookieSecure()),
	}
	s.env = cfg.GetEnv()

	// Session banners and status indicators hang off refresh notifications.
	tokens.Subscribe(refreshLogListener{})

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Printf("[%-19s] %s", displayMethod, path)
}

// refreshLogListener surfaces token lifecycle events in the logs so session
// banners and operators can see refresh churn without polling.
type refreshLogListener struct{}

func (refreshLogListener) TokenRefreshed(sessionID string) {
	log.Debug().Str("session_id", sessionID).Msg("Access token refreshed")
}

func (refreshLogListener) TokenRefreshFailed(sessionID string, err error) {
	log.Warn().Err(err).Str("session_id", sessionID).Msg("Token refresh failed, session ended")
}
