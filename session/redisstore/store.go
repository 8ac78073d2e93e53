package redisstore

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/carelink/authgate/session"
)

const (
	fieldAccessToken       = "access_token"
	fieldRefreshToken      = "refresh_token"
	fieldExpiresAt         = "expires_at" // epoch millis as string
	fieldRole              = "role"
	fieldUser              = "user"
	fieldPendingEmail      = "pending_verification_email"
	defaultKeyPrefix       = "authgate:session:"
	defaultSessionLifetime = 30 * 24 * time.Hour
)

// setTokensScript writes the refreshed token fields only while the stored
// refresh token still matches ARGV[1]. A cleared session has no key, so the
// HGET mismatch also covers the logout-during-refresh case.
var setTokensScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], "refresh_token") ~= ARGV[1] then
  return 0
end
redis.call("HSET", KEYS[1], "access_token", ARGV[2], "refresh_token", ARGV[3], "expires_at", ARGV[4])
return 1
`)

var _ session.Store = (*Store)(nil)

// Store persists sessions as one redis hash per session id.
type Store struct {
	client    redis.UniversalClient
	keyPrefix string
	lifetime  time.Duration
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithKeyPrefix overrides the redis key prefix.
func WithKeyPrefix(prefix string) StoreOption {
	return func(s *Store) {
		s.keyPrefix = prefix
	}
}

// WithSessionLifetime overrides how long an untouched session hash survives.
func WithSessionLifetime(lifetime time.Duration) StoreOption {
	return func(s *Store) {
		s.lifetime = lifetime
	}
}

// New creates a redis-backed session store.
func New(client redis.UniversalClient, options ...StoreOption) *Store {
	store := &Store{
		client:    client,
		keyPrefix: defaultKeyPrefix,
		lifetime:  defaultSessionLifetime,
	}
	for _, opt := range options {
		opt(store)
	}
	return store
}

func (s *Store) key(sessionID string) string {
	return s.keyPrefix + sessionID
}

func (s *Store) Get(ctx context.Context, sessionID string) (session.Session, error) {
	fields, err := s.client.HGetAll(ctx, s.key(sessionID)).Result()
	if err != nil {
		return session.Session{}, errors.Wrap(session.StoreUnavailableErr, err.Error())
	}

	// Missing session: HGETALL returns an empty map, which decodes to the
	// zero Session (all fields unset).
	snapshot := session.Session{
		AccessToken:              fields[fieldAccessToken],
		RefreshToken:             fields[fieldRefreshToken],
		Role:                     session.Role(fields[fieldRole]),
		User:                     fields[fieldUser],
		PendingVerificationEmail: fields[fieldPendingEmail],
	}
	if raw := fields[fieldExpiresAt]; raw != "" {
		millis, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return session.Session{}, errors.Wrapf(err, "[Store.Get] bad expires_at %q", raw)
		}
		snapshot.ExpiresAt = time.UnixMilli(millis)
	}
	return snapshot, nil
}

func (s *Store) Set(ctx context.Context, sessionID string, update session.Update) error {
	values := make([]any, 0, 12)
	if update.AccessToken != nil {
		values = append(values, fieldAccessToken, *update.AccessToken)
	}
	if update.RefreshToken != nil {
		values = append(values, fieldRefreshToken, *update.RefreshToken)
	}
	if update.ExpiresAt != nil {
		values = append(values, fieldExpiresAt, strconv.FormatInt(update.ExpiresAt.UnixMilli(), 10))
	}
	if update.Role != nil {
		values = append(values, fieldRole, string(*update.Role))
	}
	if update.User != nil {
		values = append(values, fieldUser, *update.User)
	}
	if update.PendingVerificationEmail != nil {
		values = append(values, fieldPendingEmail, *update.PendingVerificationEmail)
	}
	if len(values) == 0 {
		return nil
	}

	key := s.key(sessionID)
	if err := s.client.HSet(ctx, key, values...).Err(); err != nil {
		return errors.Wrap(session.StoreUnavailableErr, err.Error())
	}
	if err := s.client.Expire(ctx, key, s.lifetime).Err(); err != nil {
		return errors.Wrap(session.StoreUnavailableErr, err.Error())
	}
	return nil
}

func (s *Store) SetTokensIfCurrent(ctx context.Context, sessionID, currentRefreshToken string, tokens session.TokenUpdate) (bool, error) {
	written, err := setTokensScript.Run(ctx, s.client,
		[]string{s.key(sessionID)},
		currentRefreshToken,
		tokens.AccessToken,
		tokens.RefreshToken,
		strconv.FormatInt(tokens.ExpiresAt.UnixMilli(), 10),
	).Int64()
	if err != nil {
		return false, errors.Wrap(session.StoreUnavailableErr, err.Error())
	}
	return written == 1, nil
}

func (s *Store) Clear(ctx context.Context, sessionID string) error {
	// Single DEL: either the whole hash goes or nothing does.
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return errors.Wrap(session.StoreUnavailableErr, err.Error())
	}
	return nil
}
