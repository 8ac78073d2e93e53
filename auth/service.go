// Package auth is the single source of truth for "who is signed in, as what
// role" and owns the operations that change that answer. Handlers decide what
// to render or where to redirect; this package never redirects itself.
package auth

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/carelink/authgate/identity"
	"github.com/carelink/authgate/internal/utils"
	"github.com/carelink/authgate/session"
	"github.com/carelink/authgate/token"
)

// User-displayable messages. Handlers render these verbatim on the
// originating form; internal error detail stays in the logs.
const (
	msgInvalidCredentials = "Invalid email or password"
	msgInvalidOTP         = "That code is incorrect or has expired"
	msgAccountExists      = "An account with this email already exists"
	msgResetInvalid       = "That reset link is invalid or has expired"
	msgUnavailable        = "Something went wrong. Please try again."
)

// State is a point-in-time answer for one session. Guards must treat
// Loading=true as "decision deferred" and never redirect on it.
type State struct {
	User          string // serialized profile JSON, "" when anonymous
	Role          session.Role
	Authenticated bool
	Loading       bool
	Err           string // user-displayable message from the last failed operation

	// PendingVerificationEmail is set between register and verify-OTP.
	PendingVerificationEmail string
}

// StateSource is the read side of the Service, consumed by guards.
type StateSource interface {
	State(ctx context.Context, sessionID string) (State, error)
}

// Service wraps the session store and token lifecycle manager behind the
// sign-in operations.
type Service struct {
	store   session.Store
	backend identity.Client
	tokens  *token.Manager

	lock       sync.RWMutex
	messages   map[string]string
	validating map[string]int
}

// NewService creates the auth service. All dependencies are required.
func NewService(store session.Store, backend identity.Client, tokens *token.Manager) (*Service, error) {
	if store == nil {
		return nil, errors.New("[NewService] session store is required")
	}
	if backend == nil {
		return nil, errors.New("[NewService] identity client is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewService] token manager is required")
	}
	return &Service{
		store:      store,
		backend:    backend,
		tokens:     tokens,
		messages:   make(map[string]string),
		validating: make(map[string]int),
	}, nil
}

// Login exchanges credentials with the backend and populates the session.
// Failure records a user-displayable message and leaves the session alone.
func (s *Service) Login(ctx context.Context, sessionID, email, password string) error {
	grant, err := s.backend.Login(ctx, email, password)
	if err != nil {
		if errors.Is(err, identity.InvalidCredentialsErr) {
			s.recordMessage(sessionID, msgInvalidCredentials)
		} else {
			s.recordMessage(sessionID, msgUnavailable)
		}
		return errors.Wrap(err, "[Service.Login] backend.Login")
	}
	return s.adoptGrant(ctx, sessionID, grant)
}

// Register creates a pending account. The session stays unauthenticated until
// VerifyOTP succeeds; only the pending email is remembered.
func (s *Service) Register(ctx context.Context, sessionID string, registration identity.Registration) error {
	if err := s.backend.Register(ctx, registration); err != nil {
		if errors.Is(err, identity.AccountExistsErr) {
			s.recordMessage(sessionID, msgAccountExists)
		} else {
			s.recordMessage(sessionID, msgUnavailable)
		}
		return errors.Wrap(err, "[Service.Register] backend.Register")
	}

	if err := s.store.Set(ctx, sessionID, session.Update{PendingVerificationEmail: utils.Ptr(registration.Email)}); err != nil {
		return errors.Wrap(err, "[Service.Register] store.Set")
	}
	s.clearMessage(sessionID)
	return nil
}

// VerifyOTP completes the register handoff and finalizes the session exactly
// like Login.
func (s *Service) VerifyOTP(ctx context.Context, sessionID, email, code string) error {
	grant, err := s.backend.VerifyOTP(ctx, email, code)
	if err != nil {
		if errors.Is(err, identity.InvalidOTPErr) {
			s.recordMessage(sessionID, msgInvalidOTP)
		} else {
			s.recordMessage(sessionID, msgUnavailable)
		}
		return errors.Wrap(err, "[Service.VerifyOTP] backend.VerifyOTP")
	}
	return s.adoptGrant(ctx, sessionID, grant)
}

// ResendOTP restarts the pending-verification step.
func (s *Service) ResendOTP(ctx context.Context, sessionID, email string) error {
	if err := s.backend.ResendOTP(ctx, email); err != nil {
		s.recordMessage(sessionID, msgUnavailable)
		return errors.Wrap(err, "[Service.ResendOTP] backend.ResendOTP")
	}
	s.clearMessage(sessionID)
	return nil
}

// ForgotPassword asks the backend to email a reset link. The outcome looks
// the same whether or not the account exists.
func (s *Service) ForgotPassword(ctx context.Context, sessionID, email string) error {
	if err := s.backend.ForgotPassword(ctx, email); err != nil {
		s.recordMessage(sessionID, msgUnavailable)
		return errors.Wrap(err, "[Service.ForgotPassword] backend.ForgotPassword")
	}
	s.clearMessage(sessionID)
	return nil
}

// ResetPassword sets a new password against an emailed reset token. It never
// creates a session; the user signs in with the new password afterwards.
func (s *Service) ResetPassword(ctx context.Context, sessionID, resetToken, newPassword string) error {
	if err := s.backend.ResetPassword(ctx, resetToken, newPassword); err != nil {
		if errors.Is(err, identity.InvalidResetTokenErr) {
			s.recordMessage(sessionID, msgResetInvalid)
		} else {
			s.recordMessage(sessionID, msgUnavailable)
		}
		return errors.Wrap(err, "[Service.ResetPassword] backend.ResetPassword")
	}
	s.clearMessage(sessionID)
	return nil
}

// HandleOAuthCallback trades a provider authorization code for a session.
// CSRF state validation happens at the handler, which owns the state cookie;
// a missing code or provider is a page-level error with no retry.
func (s *Service) HandleOAuthCallback(ctx context.Context, sessionID, provider, code string) error {
	if provider == "" || code == "" {
		return MissingCallbackParamsErr
	}
	grant, err := s.backend.ExchangeOAuthCode(ctx, provider, code)
	if err != nil {
		s.recordMessage(sessionID, msgUnavailable)
		return errors.Wrap(err, "[Service.HandleOAuthCallback] backend.ExchangeOAuthCode")
	}
	return s.adoptGrant(ctx, sessionID, grant)
}

// Logout clears the session. Idempotent: a session that never existed clears
// to the same place.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	s.tokens.Untrack(sessionID)
	if err := s.store.Clear(ctx, sessionID); err != nil {
		return errors.Wrap(err, "[Service.Logout] store.Clear")
	}
	s.clearMessage(sessionID)
	return nil
}

// RefreshToken forces a token refresh, surfacing failure to the caller.
func (s *Service) RefreshToken(ctx context.Context, sessionID string) (string, error) {
	accessToken, err := s.tokens.Refresh(ctx, sessionID)
	if err != nil {
		return "", errors.Wrap(err, "[Service.RefreshToken]")
	}
	return accessToken, nil
}

// ClearError resets the recorded user-displayable message, typically before a
// retried operation.
func (s *Service) ClearError(sessionID string) {
	s.clearMessage(sessionID)
}

// State reads the live snapshot for a session. A token with a missing or
// unrecognised role is a corrupt session: it is force-cleared here rather
// than believed (fail-safe, not fail-open).
func (s *Service) State(ctx context.Context, sessionID string) (State, error) {
	s.lock.RLock()
	loading := s.validating[sessionID] > 0
	message := s.messages[sessionID]
	s.lock.RUnlock()

	snapshot, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return State{}, errors.Wrap(err, "[Service.State] store.Get")
	}
	if snapshot.Corrupt() {
		if err := s.store.Clear(ctx, sessionID); err != nil {
			return State{}, errors.Wrap(err, "[Service.State] store.Clear")
		}
		s.tokens.Untrack(sessionID)
		snapshot = session.Session{}
	}

	return State{
		User:                     snapshot.User,
		Role:                     snapshot.Role,
		Authenticated:            snapshot.Authenticated(),
		Loading:                  loading,
		Err:                      message,
		PendingVerificationEmail: snapshot.PendingVerificationEmail,
	}, nil
}

// Confirm performs the initial validity check for a session. While it runs,
// State reports Loading=true so guards defer their decision.
func (s *Service) Confirm(ctx context.Context, sessionID string) error {
	s.beginValidation(sessionID)
	defer s.endValidation(sessionID)

	_, err := s.tokens.ValidAccessToken(ctx, sessionID)
	if err != nil && !errors.Is(err, token.NotAuthenticatedErr) {
		return errors.Wrap(err, "[Service.Confirm]")
	}
	return nil
}

// adoptGrant finalizes an authenticated session from any successful exchange.
// A grant whose role is outside the closed enum is rejected before anything
// is written.
func (s *Service) adoptGrant(ctx context.Context, sessionID string, grant identity.Grant) error {
	if !grant.Role.Valid() {
		s.recordMessage(sessionID, msgUnavailable)
		return errors.Wrap(session.InvalidRoleErr, "[Service.adoptGrant]")
	}
	profile, err := grant.ProfileJSON()
	if err != nil {
		return errors.Wrap(err, "[Service.adoptGrant]")
	}

	update := session.Update{
		AccessToken:              utils.Ptr(grant.AccessToken),
		RefreshToken:             utils.Ptr(grant.RefreshToken),
		ExpiresAt:                utils.Ptr(grant.ExpiresAt),
		Role:                     utils.Ptr(grant.Role),
		User:                     utils.Ptr(profile),
		PendingVerificationEmail: utils.Ptr(""),
	}
	if err := s.store.Set(ctx, sessionID, update); err != nil {
		s.recordMessage(sessionID, msgUnavailable)
		return errors.Wrap(err, "[Service.adoptGrant] store.Set")
	}

	s.tokens.Track(sessionID)
	s.clearMessage(sessionID)
	return nil
}

func (s *Service) recordMessage(sessionID, message string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.messages[sessionID] = message
}

func (s *Service) clearMessage(sessionID string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.messages, sessionID)
}

func (s *Service) beginValidation(sessionID string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.validating[sessionID]++
}

func (s *Service) endValidation(sessionID string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.validating[sessionID] <= 1 {
		delete(s.validating, sessionID)
		return
	}
	s.validating[sessionID]--
}
