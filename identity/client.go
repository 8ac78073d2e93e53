// Package identity wraps the remote identity backend. All token issuance, OTP
// verification, and OAuth code exchange happens on the backend; this package
// only speaks its HTTP contract.
package identity

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/carelink/authgate/session"
)

var (
	InvalidCredentialsErr = errors.New("invalid credentials")
	InvalidOTPErr         = errors.New("invalid or expired verification code")
	RefreshRejectedErr    = errors.New("refresh token rejected")
	InvalidResetTokenErr  = errors.New("invalid or expired reset token")
	AccountExistsErr      = errors.New("account already exists")
	BackendUnavailableErr = errors.New("identity backend unavailable")
)

// User is the profile slice of an identity grant that the dashboard needs.
type User struct {
	ID        string       `json:"id"`
	Email     string       `json:"email"`
	FirstName string       `json:"firstName"`
	LastName  string       `json:"lastName"`
	Role      session.Role `json:"role"`
}

// Grant is a successful credential exchange: tokens plus the profile they
// were issued for.
type Grant struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Role         session.Role
	User         User
}

// ProfileJSON serialises the grant's user for session storage.
func (g Grant) ProfileJSON() (string, error) {
	raw, err := json.Marshal(g.User)
	if err != nil {
		return "", errors.Wrap(err, "[Grant.ProfileJSON] marshal user")
	}
	return string(raw), nil
}

// Registration is the profile submitted at sign-up. The backend leaves the
// account pending until the emailed OTP is verified.
type Registration struct {
	Email     string       `json:"email"`
	Password  string       `json:"password"`
	FirstName string       `json:"firstName"`
	LastName  string       `json:"lastName"`
	Role      session.Role `json:"role"`
}

// Client is the identity backend contract.
type Client interface {
	// Login exchanges email+password for a grant.
	Login(ctx context.Context, email, password string) (Grant, error)

	// Register creates a pending account. No grant is issued until VerifyOTP.
	Register(ctx context.Context, registration Registration) error

	// VerifyOTP completes registration and issues a grant.
	VerifyOTP(ctx context.Context, email, code string) (Grant, error)

	// ResendOTP restarts the pending-verification step.
	ResendOTP(ctx context.Context, email string) error

	// ForgotPassword asks the backend to email a reset link. The backend
	// responds identically whether or not the account exists.
	ForgotPassword(ctx context.Context, email string) error

	// ResetPassword sets a new password against an emailed reset token.
	ResetPassword(ctx context.Context, resetToken, newPassword string) error

	// ExchangeOAuthCode trades a provider authorization code for a grant.
	ExchangeOAuthCode(ctx context.Context, provider, code string) (Grant, error)

	// Refresh trades a refresh token for a new access token and expiry.
	// RefreshRejectedErr means the session is over; callers must not retry.
	Refresh(ctx context.Context, refreshToken string) (Grant, error)
}
