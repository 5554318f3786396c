// Package config loads application settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Email    EmailConfig
	Stripe   StripeConfig
	NATS     NATSConfig
	Redis    RedisConfig
	Limits   LimitsConfig
	Tracing  TracingConfig
}

type AppConfig struct {
	Env          string   `env:"NODE_ENV,default=development"`
	Port         string   `env:"PORT,default=3000"`
	PublicDir    string   `env:"PUBLIC_DIR,default=public"`
	TemplatesDir string   `env:"TEMPLATES_DIR,default=templates"`
	LogLevel     string   `env:"LOG_LEVEL,default=info"`
	// CORSOrigins is a semicolon separated list.
	CORSOrigins []string `env:"CORS_ORIGINS,default=*"`
}

type DatabaseConfig struct {
	Driver   string `env:"DB_DRIVER,default=mongo"`
	URI      string `env:"DATABASE"`
	Password string `env:"DATABASE_PASSWORD"`
	Name     string `env:"DATABASE_NAME,default=natours"`
}

type AuthConfig struct {
	JWTSecret         string        `env:"JWT_SECRET"`
	JWTExpiresIn      time.Duration `env:"JWT_EXPIRES_IN,default=2160h"`
	CookieExpiresDays int           `env:"JWT_COOKIE_EXPIRES_IN,default=90"`
	BcryptCost        int           `env:"BCRYPT_COST,default=12"`
}

type EmailConfig struct {
	Transport string `env:"EMAIL_TRANSPORT,default=log"`
	From      string `env:"EMAIL_FROM,default=Natours <hello@natours.io>"`
	Host      string `env:"EMAIL_HOST"`
	Port      int    `env:"EMAIL_PORT,default=587"`
	Username  string `env:"EMAIL_USERNAME"`
	Password  string `env:"EMAIL_PASSWORD"`
	// Worker starts the NATS mail worker in this process.
	Worker bool `env:"EMAIL_WORKER,default=false"`
}

type StripeConfig struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	Currency      string `env:"STRIPE_CURRENCY,default=usd"`
}

type NATSConfig struct {
	URL string `env:"NATS_URL"`
}

type RedisConfig struct {
	URL string `env:"REDIS_URL"`
}

type LimitsConfig struct {
	RateLimitRequests int           `env:"RATE_LIMIT_MAX,default=100"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW,default=1h"`
	BodyLimitBytes    int64         `env:"BODY_LIMIT_BYTES,default=10240"`
}

type TracingConfig struct {
	Exporter string `env:"TRACING_EXPORTER,default=none"`
}

// Load reads config.env (if present) into the process environment and
// decodes it into a Config.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{"config.env", ".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	cfg.App.Env = strings.ToLower(cfg.App.Env)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.App.Env == EnvProduction
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mongo":
		if c.Database.URI == "" {
			return errors.New("DATABASE must be set when DB_DRIVER=mongo")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.Database.Driver)
	}

	if c.Auth.JWTSecret == "" {
		if c.IsProduction() {
			return errors.New("JWT_SECRET must be set in production")
		}
		c.Auth.JWTSecret = "development-only-secret-change-me"
	}
	if c.Auth.JWTExpiresIn <= 0 {
		return errors.New("JWT_EXPIRES_IN must be positive")
	}

	switch c.Email.Transport {
	case "smtp":
		if c.Email.Host == "" {
			return errors.New("EMAIL_HOST must be set when EMAIL_TRANSPORT=smtp")
		}
	case "nats":
		if c.NATS.URL == "" {
			return errors.New("NATS_URL must be set when EMAIL_TRANSPORT=nats")
		}
	case "log":
	default:
		return fmt.Errorf("unknown EMAIL_TRANSPORT %q", c.Email.Transport)
	}
	if c.Email.Worker && c.Email.Host == "" {
		return errors.New("EMAIL_HOST must be set when EMAIL_WORKER is enabled")
	}
	return nil
}

// CookieTTL is the lifetime of the session cookie.
func (c *Config) CookieTTL() time.Duration {
	return time.Duration(c.Auth.CookieExpiresDays) * 24 * time.Hour
}
