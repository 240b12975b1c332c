package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

const defaultPostgresDSN = "host=postgres user=postgres password=postgres dbname=catering port=5432 sslmode=disable"

const (
	AuthModeOIDC   = "oidc"
	AuthModeStatic = "static"

	CartStoreMemory = "memory"
	CartStoreFile   = "file"
	CartStoreRedis  = "redis"
)

type Config struct {
	HTTPAddr string `env:"HTTP_ADDR,default=:8080"`
	GinMode  string `env:"GIN_MODE,default=debug"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	DBDriver    string `env:"DB_DRIVER,default=postgres"`
	DatabaseDSN string `env:"DATABASE_DSN"`

	AuthMode     string   `env:"AUTH_MODE,default=oidc"`
	OIDCIssuer   string   `env:"OIDC_ISSUER,default=https://accounts.google.com"`
	OIDCClientID string   `env:"OIDC_CLIENT_ID"`
	AdminEmails  []string `env:"ADMIN_EMAILS"`
	StaticTokens []string `env:"STATIC_TOKENS"`
	LoginURL     string   `env:"LOGIN_URL,default=/login"`

	CartStore     string        `env:"CART_STORE,default=memory"`
	CartDir       string        `env:"CART_DIR,default=./data/carts"`
	CartTTL       time.Duration `env:"CART_TTL,default=720h"`
	RedisAddr     string        `env:"REDIS_ADDR,default=localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB,default=0"`

	RateLimitRPS   int `env:"RATE_LIMIT_RPS,default=5"`
	RateLimitBurst int `env:"RATE_LIMIT_BURST,default=10"`

	NotifySMTPAddr string `env:"NOTIFY_SMTP_ADDR"`
	NotifyFrom     string `env:"NOTIFY_FROM"`
	NotifyTo       string `env:"NOTIFY_TO"`
	NotifyUser     string `env:"NOTIFY_USER"`
	NotifyPassword string `env:"NOTIFY_PASSWORD"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DatabaseDSN == "" {
		switch c.DBDriver {
		case "sqlite":
			c.DatabaseDSN = "catering.db"
		default:
			c.DatabaseDSN = defaultPostgresDSN
		}
	}
}

func (c Config) Validate() error {
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER %q: want postgres or sqlite", c.DBDriver)
	}
	switch c.AuthMode {
	case AuthModeOIDC:
		if c.OIDCClientID == "" {
			return errors.New("OIDC_CLIENT_ID is required when AUTH_MODE=oidc")
		}
	case AuthModeStatic:
	default:
		return fmt.Errorf("AUTH_MODE %q: want oidc or static", c.AuthMode)
	}
	switch c.CartStore {
	case CartStoreMemory, CartStoreFile, CartStoreRedis:
	default:
		return fmt.Errorf("CART_STORE %q: want memory, file or redis", c.CartStore)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
