package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const defaultJWTSecret = "change-me"

// Config holds application level configuration loaded from environment variables.
type Config struct {
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`
	AppEnv     string `env:"APP_ENV" envDefault:"development"`
	AppURL     string `env:"APP_URL" envDefault:"http://localhost:3000"`
	CORSOrigin string `env:"CORS_ORIGIN"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT"`

	DBDriver         string        `env:"DB_DRIVER" envDefault:"mongo"`
	MongoURI         string        `env:"MONGODB_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase    string        `env:"MONGODB_DATABASE" envDefault:"lexpertease"`
	MySQLDSN         string        `env:"MYSQL_DSN" envDefault:"user:password@tcp(localhost:3306)/app?charset=utf8mb4&parseTime=True&loc=UTC"`
	PostgresDSN      string        `env:"POSTGRES_DSN" envDefault:"host=localhost user=postgres password=postgres dbname=app port=5432 sslmode=disable"`
	DBPoolSize       int           `env:"DB_POOL_SIZE" envDefault:"10"`
	DBConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"5s"`

	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`
	RedisPass string `env:"REDIS_PASSWORD"`

	JWTSecret       string        `env:"JWT_SECRET" envDefault:"change-me"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"720h"`
	ResetTokenTTL   time.Duration `env:"RESET_TOKEN_TTL" envDefault:"15m"`

	SMTP SMTPConfig

	OTelEndpoint string `env:"OTEL_ENDPOINT"`
	SwaggerHost  string `env:"SWAGGER_HOST"`
}

// SMTPConfig configures the outbound mailer.
type SMTPConfig struct {
	Host      string `env:"SMTP_HOST" envDefault:"smtp.gmail.com"`
	Port      int    `env:"SMTP_PORT" envDefault:"587"`
	User      string `env:"SMTP_USER"`
	Pass      string `env:"SMTP_PASS"`
	FromName  string `env:"SMTP_FROM_NAME" envDefault:"LexpertEase"`
	FromEmail string `env:"SMTP_FROM_EMAIL"`
}

// From returns the sender address, falling back to the SMTP user.
func (c SMTPConfig) From() string {
	if c.FromEmail != "" {
		return c.FromEmail
	}
	return c.User
}

// Load builds Config from environment with sensible defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
		if cfg.IsProduction() {
			cfg.LogFormat = "json"
		}
	}
	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = cfg.AppURL
	}
	return &cfg, nil
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Validate rejects configurations that must not reach production.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "mongo", "mysql", "postgres", "memory":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret || len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be set to at least 32 characters in production")
		}
		if c.DBDriver == "memory" {
			return errors.New("DB_DRIVER=memory is not allowed in production")
		}
	}
	return nil
}
