package config

import (
	"strconv"
	"time"
)

type SessionConfig interface {
	GetRedisAddr() string
	GetRedisPassword() string
	GetSessionLifetime() time.Duration
	GetRefreshMargin() time.Duration
	GetRefreshCheckInterval() time.Duration
	GetCookieDomain() string
	GetCookieSecure() bool
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Session) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

func (Session) GetSessionLifetime() time.Duration {
	return durationEnv("SESSION_LIFETIME", 30*24*time.Hour)
}

// GetRefreshMargin is the remaining access-token lifetime below which a
// refresh is triggered.
func (Session) GetRefreshMargin() time.Duration {
	return durationEnv("TOKEN_REFRESH_MARGIN", 2*time.Minute)
}

func (Session) GetRefreshCheckInterval() time.Duration {
	return durationEnv("TOKEN_REFRESH_CHECK_INTERVAL", time.Minute)
}

func (Session) GetCookieDomain() string {
	return GetEnv("COOKIE_DOMAIN", "")
}

func (Session) GetCookieSecure() bool {
	secure, err := strconv.ParseBool(GetEnv("COOKIE_SECURE", "false"))
	if err != nil {
		return false
	}
	return secure
}

func durationEnv(envVar string, defaultValue time.Duration) time.Duration {
	raw := GetEnv(envVar, "")
	if raw == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue
	}
	return parsed
}
