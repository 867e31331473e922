// Package config содержит логику чтения конфигурации витрины samshop.
package config

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

// ErrInvalid возвращается, если обязательный параметр отсутствует или имеет неверный формат.
var ErrInvalid = errors.New("invalid configuration")

// XenditKeyPrefix задаёт префикс секретных ключей платёжной системы.
const XenditKeyPrefix = "xnd_"

// Config содержит параметры конфигурации витрины samshop.
type Config struct {
	RunAddress    string `env:"RUN_ADDRESS"`
	DatabaseURI   string `env:"DATABASE_URI"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`

	XenditSecretKey    string        `env:"XENDIT_SECRET_KEY"`
	XenditAPIURL       string        `env:"XENDIT_API_URL" envDefault:"https://api.xendit.co"`
	XenditWebhookToken string        `env:"XENDIT_WEBHOOK_TOKEN"`
	InvoiceDuration    time.Duration `env:"INVOICE_DURATION" envDefault:"24h"`

	FonnteAPIKey  string        `env:"FONNTE_API_KEY"`
	FonnteAPIURL  string        `env:"FONNTE_API_URL" envDefault:"https://api.fonnte.com"`
	NotifyTimeout time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"20s"`

	TaxRate               decimal.Decimal `env:"TAX_RATE" envDefault:"0.10"`
	FreeShippingThreshold int64           `env:"FREE_SHIPPING_THRESHOLD" envDefault:"50000"`
	FlatShippingFee       int64           `env:"FLAT_SHIPPING_FEE" envDefault:"10000"`

	KafkaBrokers string `env:"KAFKA_BROKERS"`
	KafkaTopic   string `env:"KAFKA_TOPIC" envDefault:"samshop.orders"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envPublicBaseURL := cfg.PublicBaseURL

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.PublicBaseURL, "b", "http://localhost:3000", "public base URL for payment redirects")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envPublicBaseURL != "" {
		cfg.PublicBaseURL = envPublicBaseURL
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")

	return cfg, nil
}

// Validate проверяет наличие и формат секретов, без которых сервис не может работать.
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseURI == "" {
		errs = append(errs, fmt.Errorf("%w: DATABASE_URI is required", ErrInvalid))
	}

	switch {
	case c.XenditSecretKey == "":
		errs = append(errs, fmt.Errorf("%w: XENDIT_SECRET_KEY is required", ErrInvalid))
	case !strings.HasPrefix(c.XenditSecretKey, XenditKeyPrefix):
		errs = append(errs, fmt.Errorf("%w: XENDIT_SECRET_KEY must start with %q", ErrInvalid, XenditKeyPrefix))
	}

	if c.XenditWebhookToken == "" {
		errs = append(errs, fmt.Errorf("%w: XENDIT_WEBHOOK_TOKEN is required", ErrInvalid))
	}

	if c.FonnteAPIKey == "" {
		errs = append(errs, fmt.Errorf("%w: FONNTE_API_KEY is required", ErrInvalid))
	}

	if u, err := url.Parse(c.PublicBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("%w: PUBLIC_BASE_URL must be an absolute URL", ErrInvalid))
	}

	if c.TaxRate.IsNegative() || c.TaxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		errs = append(errs, fmt.Errorf("%w: TAX_RATE must be in [0, 1)", ErrInvalid))
	}

	if c.FreeShippingThreshold < 0 || c.FlatShippingFee < 0 {
		errs = append(errs, fmt.Errorf("%w: shipping amounts must not be negative", ErrInvalid))
	}

	return errors.Join(errs...)
}
