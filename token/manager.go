// Package token owns the access-token lifecycle: callers ask for a currently
// valid token and the manager refreshes against the identity backend when the
// cached one is near expiry.
package token

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/carelink/authgate/identity"
	"github.com/carelink/authgate/session"
)

var (
	NotAuthenticatedErr = errors.New("no authenticated session")
	SessionExpiredErr   = errors.New("session expired")
)

const (
	defaultRefreshMargin = 2 * time.Minute
	defaultCheckInterval = time.Minute
)

// Listener receives token lifecycle notifications. Subscribers are invoked
// synchronously and must not block.
type Listener interface {
	TokenRefreshed(sessionID string)
	TokenRefreshFailed(sessionID string, err error)
}

// Manager guarantees that ValidAccessToken either returns a token with at
// least the safety margin of lifetime left, or an explicit failure. Refresh
// failure is terminal for the session: the store is cleared and callers must
// send the user back through login.
type Manager struct {
	store   session.Store
	backend identity.Client

	margin        time.Duration
	checkInterval time.Duration
	nowTime       func() time.Time

	// flights coalesces concurrent refreshes per session id so at most one
	// backend refresh call is in flight at a time.
	flights singleflight.Group

	lock      sync.Mutex
	listeners []Listener
	tracked   map[string]struct{}
	stop      chan struct{}
	running   bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithRefreshMargin sets how much remaining lifetime counts as "still valid".
func WithRefreshMargin(margin time.Duration) ManagerOption {
	return func(m *Manager) {
		m.margin = margin
	}
}

// WithCheckInterval sets the periodic expiry-sweep interval.
func WithCheckInterval(interval time.Duration) ManagerOption {
	return func(m *Manager) {
		m.checkInterval = interval
	}
}

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

// NewManager creates a token lifecycle manager.
func NewManager(store session.Store, backend identity.Client, options ...ManagerOption) *Manager {
	m := &Manager{
		store:         store,
		backend:       backend,
		margin:        defaultRefreshMargin,
		checkInterval: defaultCheckInterval,
		nowTime:       time.Now,
		tracked:       make(map[string]struct{}),
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Subscribe registers a listener for refresh notifications.
func (m *Manager) Subscribe(listener Listener) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.listeners = append(m.listeners, listener)
}

// Track adds a session to the periodic expiry sweep.
func (m *Manager) Track(sessionID string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.tracked[sessionID] = struct{}{}
}

// Untrack removes a session from the sweep. Safe for unknown ids.
func (m *Manager) Untrack(sessionID string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.tracked, sessionID)
}

// Start begins the periodic expiry sweep. Idempotent: a running manager
// ignores further Start calls, so no duplicate tickers.
func (m *Manager) Start(ctx context.Context) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.running {
		return
	}
	m.running = true
	m.stop = make(chan struct{})
	go m.sweepLoop(ctx, m.stop)
}

// Stop ends the sweep. Safe to call on a stopped manager.
func (m *Manager) Stop() {
	m.lock.Lock()
	defer m.lock.Unlock()
	if !m.running {
		return
	}
	m.running = false
	close(m.stop)
}

// ValidAccessToken returns an access token with at least the safety margin of
// lifetime remaining, refreshing first when needed. Concurrent callers during
// an in-flight refresh share its single result.
func (m *Manager) ValidAccessToken(ctx context.Context, sessionID string) (string, error) {
	snapshot, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return "", errors.Wrap(err, "[Manager.ValidAccessToken] store.Get")
	}
	if snapshot.AccessToken == "" && snapshot.RefreshToken == "" {
		return "", NotAuthenticatedErr
	}
	if m.fresh(snapshot) {
		return snapshot.AccessToken, nil
	}
	return m.refresh(ctx, sessionID)
}

// Refresh forces a refresh regardless of remaining lifetime, coalescing with
// any refresh already in flight for the session.
func (m *Manager) Refresh(ctx context.Context, sessionID string) (string, error) {
	return m.refresh(ctx, sessionID)
}

func (m *Manager) fresh(snapshot session.Session) bool {
	return snapshot.AccessToken != "" &&
		!snapshot.ExpiresAt.IsZero() &&
		snapshot.ExpiresAt.Sub(m.nowTime()) > m.margin
}

func (m *Manager) refresh(ctx context.Context, sessionID string) (string, error) {
	accessToken, err, _ := m.flights.Do(sessionID, func() (any, error) {
		// The flight outlives the caller that started it: other callers are
		// waiting on this result, and a finished refresh must still write its
		// tokens even when the initiating request has gone away.
		ctx := context.WithoutCancel(ctx)

		snapshot, err := m.store.Get(ctx, sessionID)
		if err != nil {
			return "", errors.Wrap(err, "[Manager.refresh] store.Get")
		}
		// A coalesced caller that lost the race to start the flight may find
		// the previous flight already renewed the token.
		if m.fresh(snapshot) {
			return snapshot.AccessToken, nil
		}
		if snapshot.RefreshToken == "" {
			return "", NotAuthenticatedErr
		}

		grant, err := m.backend.Refresh(ctx, snapshot.RefreshToken)
		if err != nil {
			// A context error says nothing about the refresh token itself.
			// The session stays intact and a later attempt may still succeed.
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return "", errors.Wrap(err, "[Manager.refresh] backend.Refresh")
			}
			return "", m.failSession(ctx, sessionID, err)
		}

		written, err := m.store.SetTokensIfCurrent(ctx, sessionID, snapshot.RefreshToken, session.TokenUpdate{
			AccessToken:  grant.AccessToken,
			RefreshToken: grant.RefreshToken,
			ExpiresAt:    grant.ExpiresAt,
		})
		if err != nil {
			return "", errors.Wrap(err, "[Manager.refresh] store.SetTokensIfCurrent")
		}
		if !written {
			// The session was cleared (or re-issued) while the refresh was in
			// flight. The result is discarded, never written back.
			m.Untrack(sessionID)
			return "", SessionExpiredErr
		}

		m.notifyRefreshed(sessionID)
		return grant.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return accessToken.(string), nil
}

// failSession handles a terminal refresh failure: clear the session, notify,
// and hand every waiting caller the same authentication error.
func (m *Manager) failSession(ctx context.Context, sessionID string, cause error) error {
	if err := m.store.Clear(ctx, sessionID); err != nil {
		log.Err(err).Str("session_id", sessionID).Msg("Failed to clear session after refresh failure")
	}
	m.Untrack(sessionID)
	m.notifyFailed(sessionID, cause)
	return errors.Wrap(SessionExpiredErr, cause.Error())
}

func (m *Manager) sweepLoop(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

// sweep refreshes every tracked session whose token is inside the margin, so
// interactive callers rarely wait on a refresh themselves.
func (m *Manager) sweep(ctx context.Context) {
	m.lock.Lock()
	ids := make([]string, 0, len(m.tracked))
	for id := range m.tracked {
		ids = append(ids, id)
	}
	m.lock.Unlock()

	for _, sessionID := range ids {
		snapshot, err := m.store.Get(ctx, sessionID)
		if err != nil {
			log.Err(err).Str("session_id", sessionID).Msg("Expiry sweep could not read session")
			continue
		}
		if snapshot.RefreshToken == "" {
			m.Untrack(sessionID)
			continue
		}
		if m.fresh(snapshot) {
			continue
		}
		if _, err := m.refresh(ctx, sessionID); err != nil {
			log.Debug().Err(err).Str("session_id", sessionID).Msg("Expiry sweep refresh failed")
		}
	}
}

func (m *Manager) notifyRefreshed(sessionID string) {
	for _, listener := range m.snapshotListeners() {
		listener.TokenRefreshed(sessionID)
	}
}

func (m *Manager) notifyFailed(sessionID string, err error) {
	for _, listener := range m.snapshotListeners() {
		listener.TokenRefreshFailed(sessionID, err)
	}
}

func (m *Manager) snapshotListeners() []Listener {
	m.lock.Lock()
	defer m.lock.Unlock()
	return append([]Listener(nil), m.listeners...)
}
