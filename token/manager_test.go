package token_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/carelink/authgate/identity"
	fakeidentity "github.com/carelink/authgate/identity/identityfakes"
	"github.com/carelink/authgate/session"
	fakestore "github.com/carelink/authgate/session/storefakes"
	"github.com/carelink/authgate/token"
)

const testSessionID = "sess-1"

type recordingListener struct {
	lock      sync.Mutex
	refreshed []string
	failed    []string
}

func (l *recordingListener) TokenRefreshed(sessionID string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.refreshed = append(l.refreshed, sessionID)
}

func (l *recordingListener) TokenRefreshFailed(sessionID string, _ error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.failed = append(l.failed, sessionID)
}

func (l *recordingListener) refreshedCount() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return len(l.refreshed)
}

func (l *recordingListener) failedCount() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return len(l.failed)
}

type testFixture struct {
	store    *fakestore.FakeStore
	backend  *fakeidentity.FakeClient
	listener *recordingListener
	manager  *token.Manager
	now      time.Time
}

func setupTestFixture(t *testing.T, options ...token.ManagerOption) *testFixture {
	t.Helper()

	f := &testFixture{
		store:    fakestore.NewFakeStore(),
		backend:  fakeidentity.NewFakeClient(),
		listener: &recordingListener{},
		now:      time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
	options = append([]token.ManagerOption{token.WithNowTime(func() time.Time { return f.now })}, options...)
	f.manager = token.NewManager(f.store, f.backend, options...)
	f.manager.Subscribe(f.listener)
	return f
}

func (f *testFixture) seedSession(t *testing.T, accessToken string, expiresAt time.Time) {
	t.Helper()

	role := session.RoleClient
	refresh := "refresh-1"
	require.NoError(t, f.store.Set(context.Background(), testSessionID, session.Update{
		AccessToken:  &accessToken,
		RefreshToken: &refresh,
		ExpiresAt:    &expiresAt,
		Role:         &role,
	}))
}

func TestValidAccessTokenReturnsFreshTokenWithoutRefresh(t *testing.T) {
	f := setupTestFixture(t)
	f.seedSession(t, "access-1", f.now.Add(time.Hour))

	got, err := f.manager.ValidAccessToken(context.Background(), testSessionID)
	require.NoError(t, err)
	require.Equal(t, "access-1", got)
	require.Equal(t, 0, f.backend.RefreshCalls())
}

func TestValidAccessTokenFailsForMissingSession(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.manager.ValidAccessToken(context.Background(), "nobody")
	require.ErrorIs(t, err, token.NotAuthenticatedErr)
}

func TestValidAccessTokenRefreshesNearExpiry(t *testing.T) {
	f := setupTestFixture(t)
	f.seedSession(t, "access-1", f.now.Add(30*time.Second)) // inside the margin
	f.backend.RefreshGrant = fakeidentity.Grant{
		AccessToken:  "access-2",
		RefreshToken: "refresh-2",
		ExpiresAt:    f.now.Add(time.Hour),
	}

	got, err := f.manager.ValidAccessToken(context.Background(), testSessionID)
	require.NoError(t, err)
	require.Equal(t, "access-2", got)
	require.Equal(t, 1, f.backend.RefreshCalls())
	require.Equal(t, 1, f.listener.refreshedCount())

	snapshot, err := f.store.Get(context.Background(), testSessionID)
	require.NoError(t, err)
	require.Equal(t, "access-2", snapshot.AccessToken)
	require.Equal(t, "refresh-2", snapshot.RefreshToken)
}

func TestConcurrentCallersShareOneRefresh(t *testing.T) {
	f := setupTestFixture(t)
	f.seedSession(t, "access-1", f.now.Add(-time.Minute)) // already expired
	f.backend.RefreshGrant = fakeidentity.Grant{
		AccessToken:  "access-2",
		RefreshToken: "refresh-2",
		ExpiresAt:    f.now.Add(time.Hour),
	}

	// Hold the first refresh open long enough for every caller to pile in.
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f.backend.RefreshHook = func(context.Context, string) {
		once.Do(func() { close(started) })
		<-release
	}

	const callers = 16
	results := make(chan string, callers)
	failures := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := f.manager.ValidAccessToken(context.Background(), testSessionID)
			if err != nil {
				failures <- err
				return
			}
			results <- got
		}()
	}

	<-started
	time.Sleep(100 * time.Millisecond) // let the remaining callers join the flight
	close(release)
	wg.Wait()
	close(results)
	close(failures)

	for err := range failures {
		require.NoError(t, err)
	}
	for got := range results {
		require.Equal(t, "access-2", got)
	}
	require.Equal(t, 1, f.backend.RefreshCalls())
}

func TestRefreshFailureClearsSessionAndNotifies(t *testing.T) {
	f := setupTestFixture(t)
	f.seedSession(t, "access-1", f.now.Add(-time.Minute))
	f.backend.RefreshErr = identity.RefreshRejectedErr

	_, err := f.manager.ValidAccessToken(context.Background(), testSessionID)
	require.ErrorIs(t, err, token.SessionExpiredErr)
	require.Equal(t, 1, f.listener.failedCount())

	snapshot, err := f.store.Get(context.Background(), testSessionID)
	require.NoError(t, err)
	require.Equal(t, session.Session{}, snapshot)
}

func TestCallerCancellationDoesNotEndSession(t *testing.T) {
	f := setupTestFixture(t)
	f.seedSession(t, "access-1", f.now.Add(-time.Minute))

	// The caller walks away mid-refresh, e.g. the browser tab closes while
	// the backend call is on the wire.
	ctx, cancel := context.WithCancel(context.Background())
	f.backend.RefreshHook = func(context.Context, string) { cancel() }
	f.backend.RefreshErr = context.Canceled

	_, err := f.manager.ValidAccessToken(ctx, testSessionID)
	require.Error(t, err)
	require.NotErrorIs(t, err, token.SessionExpiredErr)
	require.Equal(t, 0, f.listener.failedCount())

	// The session survives and a later attempt can still refresh it.
	snapshot, err := f.store.Get(context.Background(), testSessionID)
	require.NoError(t, err)
	require.Equal(t, "refresh-1", snapshot.RefreshToken)

	f.backend.RefreshErr = nil
	f.backend.RefreshHook = nil
	f.backend.RefreshGrant = fakeidentity.Grant{
		AccessToken:  "access-2",
		RefreshToken: "refresh-2",
		ExpiresAt:    f.now.Add(time.Hour),
	}
	got, err := f.manager.ValidAccessToken(context.Background(), testSessionID)
	require.NoError(t, err)
	require.Equal(t, "access-2", got)
}

func TestLogoutDuringRefreshDiscardsResult(t *testing.T) {
	f := setupTestFixture(t)
	f.seedSession(t, "access-1", f.now.Add(-time.Minute))
	f.backend.RefreshGrant = fakeidentity.Grant{
		AccessToken:  "access-2",
		RefreshToken: "refresh-2",
		ExpiresAt:    f.now.Add(time.Hour),
	}
	// The user logs out while the refresh call is on the wire.
	f.backend.RefreshHook = func(ctx context.Context, _ string) {
		require.NoError(t, f.store.Clear(ctx, testSessionID))
	}

	_, err := f.manager.Refresh(context.Background(), testSessionID)
	require.ErrorIs(t, err, token.SessionExpiredErr)
	require.Equal(t, 0, f.listener.refreshedCount())

	// The cleared session must stay cleared.
	snapshot, err := f.store.Get(context.Background(), testSessionID)
	require.NoError(t, err)
	require.Equal(t, session.Session{}, snapshot)
}

func TestSweepRefreshesTrackedSessions(t *testing.T) {
	f := setupTestFixture(t, token.WithCheckInterval(10*time.Millisecond))
	f.seedSession(t, "access-1", f.now.Add(30*time.Second))
	f.backend.RefreshGrant = fakeidentity.Grant{
		AccessToken:  "access-2",
		RefreshToken: "refresh-2",
		ExpiresAt:    f.now.Add(time.Hour),
	}

	f.manager.Track(testSessionID)
	f.manager.Start(context.Background())
	f.manager.Start(context.Background()) // idempotent
	defer f.manager.Stop()

	require.Eventually(t, func() bool {
		return f.backend.RefreshCalls() >= 1
	}, time.Second, 5*time.Millisecond)

	snapshot, err := f.store.Get(context.Background(), testSessionID)
	require.NoError(t, err)
	require.Equal(t, "access-2", snapshot.AccessToken)
}

func TestStopWithoutStartIsSafe(t *testing.T) {
	f := setupTestFixture(t)
	f.manager.Stop()
	f.manager.Stop()
}
