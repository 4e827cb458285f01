package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Redis     RedisConfig
	NATS      NATSConfig
	Storage   StorageConfig
	Gemini    GeminiConfig
	Identity  IdentityConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NATSConfig configures the event bus. An empty URL disables events.
type NATSConfig struct {
	URL string
}

// StorageConfig configures the S3 (or S3-compatible) blob store.
type StorageConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool
	URLExpiry       time.Duration
}

// GeminiConfig configures the external image model.
type GeminiConfig struct {
	APIKey  string
	Timeout time.Duration
}

// IdentityConfig holds the shared secret used to verify tokens issued by the
// external identity provider. Lumina never issues tokens itself.
type IdentityConfig struct {
	JWTSecret string
	Issuer    string
}

// RateLimitConfig sets the fixed-window quota applied to generation requests,
// independently per user and per caller origin.
type RateLimitConfig struct {
	Limit  int
	Period time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		DB: DBConfig{
			Host:     k.String("db.host"),
			Port:     k.Int("db.port"),
			User:     k.String("db.user"),
			Password: k.String("db.password"),
			Name:     k.String("db.name"),
			SSLMode:  k.String("db.sslmode"),
			MaxConns: int32(k.Int("db.max.conns")),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATSConfig{
			URL: k.String("nats.url"),
		},
		Storage: StorageConfig{
			Bucket:          k.String("storage.bucket"),
			Region:          k.String("storage.region"),
			Endpoint:        k.String("storage.endpoint"),
			AccessKeyID:     k.String("storage.access.key.id"),
			SecretAccessKey: k.String("storage.secret.access.key"),
			PathStyle:       k.Bool("storage.path.style"),
		},
		Gemini: GeminiConfig{
			APIKey: k.String("gemini.api.key"),
		},
		Identity: IdentityConfig{
			JWTSecret: k.String("identity.jwt.secret"),
			Issuer:    k.String("identity.issuer"),
		},
		RateLimit: RateLimitConfig{
			Limit: k.Int("ratelimit.generate.limit"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitOrigins(k.String("cors.allowed.origins")),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "lumina"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "lumina"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Identity.Issuer == "" {
		cfg.Identity.Issuer = "lumina"
	}
	if cfg.RateLimit.Limit == 0 {
		cfg.RateLimit.Limit = 20
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	// Parse durations
	periodStr := k.String("ratelimit.generate.period")
	if periodStr == "" {
		periodStr = "24h"
	}
	cfg.RateLimit.Period, err = time.ParseDuration(periodStr)
	if err != nil {
		return nil, fmt.Errorf("parsing rate limit period: %w", err)
	}

	timeoutStr := k.String("gemini.timeout")
	if timeoutStr == "" {
		timeoutStr = "2m"
	}
	cfg.Gemini.Timeout, err = time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("parsing gemini timeout: %w", err)
	}

	urlExpiryStr := k.String("storage.url.expiry")
	if urlExpiryStr == "" {
		urlExpiryStr = "1h"
	}
	cfg.Storage.URLExpiry, err = time.ParseDuration(urlExpiryStr)
	if err != nil {
		return nil, fmt.Errorf("parsing storage url expiry: %w", err)
	}

	return cfg, nil
}

func splitOrigins(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
