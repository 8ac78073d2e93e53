package fakestore

import (
	"context"
	"sync"

	"github.com/carelink/authgate/session"
)

var _ session.Store = (*FakeStore)(nil)

// FakeStore is an in-memory session.Store for tests. It mirrors the merge and
// conditional-write semantics of the redis store.
type FakeStore struct {
	sessions map[string]session.Session
	lock     sync.RWMutex

	// FailWith, when set, is returned by every operation. Lets tests simulate
	// an unreachable store.
	FailWith error
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		sessions: make(map[string]session.Session),
	}
}

func (fs *FakeStore) Get(_ context.Context, sessionID string) (session.Session, error) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()

	if fs.FailWith != nil {
		return session.Session{}, fs.FailWith
	}
	return fs.sessions[sessionID], nil
}

func (fs *FakeStore) Set(_ context.Context, sessionID string, update session.Update) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if fs.FailWith != nil {
		return fs.FailWith
	}
	fs.sessions[sessionID] = update.Apply(fs.sessions[sessionID])
	return nil
}

func (fs *FakeStore) SetTokensIfCurrent(_ context.Context, sessionID, currentRefreshToken string, tokens session.TokenUpdate) (bool, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if fs.FailWith != nil {
		return false, fs.FailWith
	}
	current, ok := fs.sessions[sessionID]
	if !ok || current.RefreshToken != currentRefreshToken {
		return false, nil
	}
	current.AccessToken = tokens.AccessToken
	current.RefreshToken = tokens.RefreshToken
	current.ExpiresAt = tokens.ExpiresAt
	fs.sessions[sessionID] = current
	return true, nil
}

func (fs *FakeStore) Clear(_ context.Context, sessionID string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if fs.FailWith != nil {
		return fs.FailWith
	}
	delete(fs.sessions, sessionID)
	return nil
}
