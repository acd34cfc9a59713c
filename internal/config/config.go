// Package config loads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Port        string `env:"PORT,default=8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	StoreDriver string `env:"STORE_DRIVER,default=postgres"`
	GinMode     string `env:"GIN_MODE,default=release"`

	ClientDomain        string `env:"CLIENT_DOMAIN,default=http://localhost:5173"`
	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	BoostPriceCents     int64  `env:"BOOST_PRICE_CENTS,default=10000"`
	SubscribePriceCents int64  `env:"SUBSCRIBE_PRICE_CENTS,default=100000"`
	Currency            string `env:"PAYMENT_CURRENCY,default=usd"`

	JWTSecret string `env:"JWT_SECRET"`
	JWTIssuer string `env:"JWT_ISSUER"`

	TitleMatch string `env:"TITLE_MATCH,default=exact"`

	RateLimitRPS     float64       `env:"RATE_LIMIT_RPS,default=5"`
	RateLimitBurst   int           `env:"RATE_LIMIT_BURST,default=10"`
	SessionCacheSize int           `env:"SESSION_CACHE_SIZE,default=1024"`
	SessionCacheTTL  time.Duration `env:"SESSION_CACHE_TTL,default=10m"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=text"`
}

// Load reads .env (when present) and decodes the environment into a Config.
func Load(log logrus.FieldLogger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, finding env vars from system")
	}

	var cfg Config
	// 一个变量都没设置时 envdecode 会报错，但默认值仍然有效
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that cannot be expressed as envdecode tags.
func (c *Config) Validate() error {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.BoostPriceCents <= 0 || c.SubscribePriceCents <= 0 {
		return errors.New("payment prices must be positive")
	}
	if c.SessionCacheSize < 1 {
		return errors.New("SESSION_CACHE_SIZE must be at least 1")
	}
	return nil
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) NewLogger() (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	log.SetLevel(level)

	switch strings.ToLower(c.LogFormat) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	case "text", "":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	default:
		return nil, fmt.Errorf("unknown LOG_FORMAT %q", c.LogFormat)
	}
	return log, nil
}
