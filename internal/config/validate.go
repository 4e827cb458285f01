package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks Config for deployment-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	// The model call cannot work without a key; fail at boot, not per request.
	if c.Gemini.APIKey == "" {
		errs = append(errs, "GEMINI_API_KEY is required")
	}
	if c.Gemini.Timeout <= 0 {
		errs = append(errs, "GEMINI_TIMEOUT must be positive")
	}

	if len(c.Identity.JWTSecret) < 32 {
		errs = append(errs, "IDENTITY_JWT_SECRET must be at least 32 characters")
	}

	if c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required")
	}

	if c.Storage.Bucket == "" {
		errs = append(errs, "STORAGE_BUCKET is required")
	}

	if c.RateLimit.Limit < 1 {
		errs = append(errs, fmt.Sprintf("RATELIMIT_GENERATE_LIMIT must be at least 1, got %d", c.RateLimit.Limit))
	}
	if c.RateLimit.Period <= 0 {
		errs = append(errs, "RATELIMIT_GENERATE_PERIOD must be positive")
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1–65535, got %d", c.Server.Port))
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1–65535, got %d", c.DB.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1–65535, got %d", c.Redis.Port))
	}

	// Events are optional: warn only
	if c.NATS.URL == "" {
		slog.Warn("NATS_URL is empty — audit events are disabled")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
