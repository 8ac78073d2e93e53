package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const defaultRequestTimeout = 10 * time.Second

var _ Client = (*HTTPClient)(nil)

// HTTPClient talks to the identity backend's REST API.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	nowTime    func() time.Time
}

// HTTPClientOption configures an HTTPClient.
type HTTPClientOption func(*HTTPClient)

// WithHTTPClient overrides the underlying http.Client (primarily for testing).
func WithHTTPClient(hc *http.Client) HTTPClientOption {
	return func(c *HTTPClient) {
		c.httpClient = hc
	}
}

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) HTTPClientOption {
	return func(c *HTTPClient) {
		c.nowTime = nowFunc
	}
}

// NewHTTPClient creates a backend client rooted at baseURL.
func NewHTTPClient(baseURL string, options ...HTTPClientOption) *HTTPClient {
	client := &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		nowTime:    time.Now,
	}
	for _, opt := range options {
		opt(client)
	}
	return client
}

// grantResponse is the backend's session payload shape.
type grantResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"` // seconds; optional
	User         User   `json:"user"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (Grant, error) {
	body := map[string]string{"email": email, "password": password}
	resp, err := c.post(ctx, "/v1/auth/login", body)
	if err != nil {
		return Grant{}, errors.Wrap(err, "[HTTPClient.Login]")
	}
	return c.decodeGrant(resp, InvalidCredentialsErr)
}

func (c *HTTPClient) Register(ctx context.Context, registration Registration) error {
	resp, err := c.post(ctx, "/v1/auth/register", registration)
	if err != nil {
		return errors.Wrap(err, "[HTTPClient.Register]")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict:
		return AccountExistsErr
	case resp.StatusCode >= 400:
		return c.backendError(resp)
	}
	return nil
}

func (c *HTTPClient) VerifyOTP(ctx context.Context, email, code string) (Grant, error) {
	body := map[string]string{"email": email, "code": code}
	resp, err := c.post(ctx, "/v1/auth/otp/verify", body)
	if err != nil {
		return Grant{}, errors.Wrap(err, "[HTTPClient.VerifyOTP]")
	}
	return c.decodeGrant(resp, InvalidOTPErr)
}

func (c *HTTPClient) ResendOTP(ctx context.Context, email string) error {
	resp, err := c.post(ctx, "/v1/auth/otp/resend", map[string]string{"email": email})
	if err != nil {
		return errors.Wrap(err, "[HTTPClient.ResendOTP]")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.backendError(resp)
	}
	return nil
}

func (c *HTTPClient) ForgotPassword(ctx context.Context, email string) error {
	resp, err := c.post(ctx, "/v1/auth/password/forgot", map[string]string{"email": email})
	if err != nil {
		return errors.Wrap(err, "[HTTPClient.ForgotPassword]")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.backendError(resp)
	}
	return nil
}

func (c *HTTPClient) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	body := map[string]string{"token": resetToken, "password": newPassword}
	resp, err := c.post(ctx, "/v1/auth/password/reset", body)
	if err != nil {
		return errors.Wrap(err, "[HTTPClient.ResetPassword]")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusUnprocessableEntity:
		return InvalidResetTokenErr
	case resp.StatusCode >= 400:
		return c.backendError(resp)
	}
	return nil
}

func (c *HTTPClient) ExchangeOAuthCode(ctx context.Context, provider, code string) (Grant, error) {
	body := map[string]string{"provider": provider, "code": code}
	resp, err := c.post(ctx, "/v1/auth/oauth/exchange", body)
	if err != nil {
		return Grant{}, errors.Wrap(err, "[HTTPClient.ExchangeOAuthCode]")
	}
	return c.decodeGrant(resp, InvalidCredentialsErr)
}

func (c *HTTPClient) Refresh(ctx context.Context, refreshToken string) (Grant, error) {
	body := map[string]string{"refreshToken": refreshToken}
	resp, err := c.post(ctx, "/v1/auth/refresh", body)
	if err != nil {
		return Grant{}, errors.Wrap(err, "[HTTPClient.Refresh]")
	}
	return c.decodeGrant(resp, RefreshRejectedErr)
}

func (c *HTTPClient) post(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(BackendUnavailableErr, err.Error())
	}
	return resp, nil
}

// decodeGrant turns a backend response into a Grant. 401/403/422 map to the
// given rejection sentinel; other failures surface as backend errors.
func (c *HTTPClient) decodeGrant(resp *http.Response, rejected error) (Grant, error) {
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusUnprocessableEntity:
		return Grant{}, rejected
	case resp.StatusCode >= 400:
		return Grant{}, c.backendError(resp)
	}

	var payload grantResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Grant{}, errors.Wrap(err, "decode grant")
	}

	grant := Grant{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		Role:         payload.User.Role,
		User:         payload.User,
	}
	if payload.ExpiresIn > 0 {
		grant.ExpiresAt = c.nowTime().Add(time.Duration(payload.ExpiresIn) * time.Second)
	} else {
		grant.ExpiresAt = tokenExpiry(payload.AccessToken)
	}
	return grant, nil
}

func (c *HTTPClient) backendError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload errorResponse
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Message != "" {
		return errors.Wrapf(BackendUnavailableErr, "status %d: %s", resp.StatusCode, payload.Message)
	}
	return errors.Wrapf(BackendUnavailableErr, "status %d", resp.StatusCode)
}

// tokenExpiry reads the exp claim from an access token when the backend omits
// an explicit expiry. The parse is unverified: the backend signs its own
// tokens, we only need the schedule.
func tokenExpiry(accessToken string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		log.Debug().Err(err).Msg("Access token expiry not readable")
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
