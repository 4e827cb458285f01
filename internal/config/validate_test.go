package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		DB: DBConfig{
			Host: "localhost", Port: 5432, User: "lumina",
			Password: "secret", Name: "lumina", SSLMode: "disable", MaxConns: 25,
		},
		Redis:   RedisConfig{Host: "localhost", Port: 6379},
		Storage: StorageConfig{Bucket: "lumina-images", Region: "us-east-1", URLExpiry: time.Hour},
		Gemini:  GeminiConfig{APIKey: "test-api-key", Timeout: 2 * time.Minute},
		Identity: IdentityConfig{
			JWTSecret: "identity-secret-that-is-at-least-32!",
			Issuer:    "lumina",
		},
		RateLimit: RateLimitConfig{Limit: 20, Period: 24 * time.Hour},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
}

func TestValidate_GeminiKeyRequired(t *testing.T) {
	cfg := validConfig()
	cfg.Gemini.APIKey = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Fatalf("expected GEMINI_API_KEY error, got: %v", err)
	}
}

func TestValidate_JWTSecretTooShort(t *testing.T) {
	cfg := validConfig()
	cfg.Identity.JWTSecret = "short"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "IDENTITY_JWT_SECRET") {
		t.Fatalf("expected IDENTITY_JWT_SECRET error, got: %v", err)
	}
}

func TestValidate_DBPasswordRequired(t *testing.T) {
	cfg := validConfig()
	cfg.DB.Password = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "DB_PASSWORD") {
		t.Fatalf("expected DB_PASSWORD error, got: %v", err)
	}
}

func TestValidate_StorageBucketRequired(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.Bucket = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "STORAGE_BUCKET") {
		t.Fatalf("expected STORAGE_BUCKET error, got: %v", err)
	}
}

func TestValidate_RateLimitBounds(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimit.Limit = 0
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "RATELIMIT_GENERATE_LIMIT") {
		t.Fatalf("expected RATELIMIT_GENERATE_LIMIT error, got: %v", err)
	}

	cfg = validConfig()
	cfg.RateLimit.Period = 0
	err = cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "RATELIMIT_GENERATE_PERIOD") {
		t.Fatalf("expected RATELIMIT_GENERATE_PERIOD error, got: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "SERVER_PORT") {
		t.Fatalf("expected SERVER_PORT error, got: %v", err)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Gemini.APIKey = ""
	cfg.DB.Password = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "GEMINI_API_KEY") || !strings.Contains(err.Error(), "DB_PASSWORD") {
		t.Fatalf("expected both errors to be reported, got: %v", err)
	}
}
