package session

import (
	"time"

	"github.com/pkg/errors"
)

var (
	InvalidRoleErr      = errors.New("invalid role")
	StoreUnavailableErr = errors.New("session store unavailable")
)

// Role is the fixed class of a signed-in user. It determines which dashboard
// the user lands on and which scoped routes they may visit.
type Role string

const (
	RoleClient       Role = "client"
	RoleCareProvider Role = "care-provider"
)

// ParseRole converts a raw role tag (cookie or storage value) into a Role.
// Anything outside the closed enum is rejected.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleClient, RoleCareProvider:
		return Role(s), nil
	}
	return "", errors.Wrapf(InvalidRoleErr, "%q", s)
}

// Valid reports whether the role is one of the two recognised values.
func (r Role) Valid() bool {
	return r == RoleClient || r == RoleCareProvider
}

func (r Role) String() string { return string(r) }

// Session is the durable credential state for one browser session.
// Zero values mean "not set"; a missing session reads as the zero Session.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time // access token expiry
	Role         Role
	User         string // serialized profile JSON
	// PendingVerificationEmail is transient state for the register -> verify-OTP
	// handoff. It is set by registration and cleared when a session is finalized.
	PendingVerificationEmail string
}

// Authenticated reports whether the session carries usable credentials.
// A token with a missing or unrecognised role does not count: such a session
// is corrupt and must be cleared by the caller.
func (s Session) Authenticated() bool {
	return s.AccessToken != "" && s.Role.Valid()
}

// Corrupt reports a token paired with an invalid role tag.
func (s Session) Corrupt() bool {
	return s.AccessToken != "" && !s.Role.Valid()
}

// Update carries a partial Session for Store.Set. Only non-nil fields are
// written; everything else keeps its stored value.
type Update struct {
	AccessToken              *string
	RefreshToken             *string
	ExpiresAt                *time.Time
	Role                     *Role
	User                     *string
	PendingVerificationEmail *string
}

// Apply merges the update into a snapshot. Shared by the in-memory fake and
// by tests that want the expected post-Set state.
func (u Update) Apply(s Session) Session {
	if u.AccessToken != nil {
		s.AccessToken = *u.AccessToken
	}
	if u.RefreshToken != nil {
		s.RefreshToken = *u.RefreshToken
	}
	if u.ExpiresAt != nil {
		s.ExpiresAt = *u.ExpiresAt
	}
	if u.Role != nil {
		s.Role = *u.Role
	}
	if u.User != nil {
		s.User = *u.User
	}
	if u.PendingVerificationEmail != nil {
		s.PendingVerificationEmail = *u.PendingVerificationEmail
	}
	return s
}
