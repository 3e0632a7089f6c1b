package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string

	// Payment webhook signature secret shared with the payment provider.
	PaymentWebhookSecret string

	// Pricing knobs. The fallback rates apply when a rate-table lookup
	// fails and the quote degrades.
	MinOrderQuantity      int
	DepositPercent        decimal.Decimal
	FallbackMarkupPercent decimal.Decimal
	FallbackPrintRate     decimal.Decimal
	FallbackSetupFee      decimal.Decimal

	// Settlement lock held while closing a campaign.
	SettlementLockTTL time.Duration

	// Notification email settings. Notify is disabled when FromAddress is
	// empty.
	NotifyFromAddress string

	ShutdownGrace time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	minQty, err := parseInt(k.String("MIN_ORDER_QUANTITY"), 24)
	if err != nil {
		return nil, fmt.Errorf("MIN_ORDER_QUANTITY: %w", err)
	}
	depositPct, err := parseDecimal(k.String("DEPOSIT_PERCENT"), "50")
	if err != nil {
		return nil, fmt.Errorf("DEPOSIT_PERCENT: %w", err)
	}
	fbMarkup, err := parseDecimal(k.String("FALLBACK_MARKUP_PERCENT"), "40")
	if err != nil {
		return nil, fmt.Errorf("FALLBACK_MARKUP_PERCENT: %w", err)
	}
	fbPrint, err := parseDecimal(k.String("FALLBACK_PRINT_RATE"), "2.50")
	if err != nil {
		return nil, fmt.Errorf("FALLBACK_PRINT_RATE: %w", err)
	}
	fbSetup, err := parseDecimal(k.String("FALLBACK_SETUP_FEE"), "25")
	if err != nil {
		return nil, fmt.Errorf("FALLBACK_SETUP_FEE: %w", err)
	}

	cfg := &Config{
		AppEnv:               valueOrDefault(k.String("APP_ENV"), "development"),
		Port:                 valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:          k.String("DATABASE_URL"),
		RedisURL:             k.String("REDIS_URL"),
		CORSAllowedOrigins:   splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		PaymentWebhookSecret: k.String("PAYMENT_WEBHOOK_SECRET"),

		MinOrderQuantity:      minQty,
		DepositPercent:        depositPct,
		FallbackMarkupPercent: fbMarkup,
		FallbackPrintRate:     fbPrint,
		FallbackSetupFee:      fbSetup,

		SettlementLockTTL: parseDuration(k.String("SETTLEMENT_LOCK_TTL"), "30s"),
		NotifyFromAddress: strings.TrimSpace(k.String("NOTIFY_FROM_ADDRESS")),
		ShutdownGrace:     parseDuration(k.String("SHUTDOWN_GRACE"), "15s"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.PaymentWebhookSecret == "" {
		return nil, errors.New("PAYMENT_WEBHOOK_SECRET is required")
	}
	if cfg.MinOrderQuantity < 1 {
		return nil, errors.New("MIN_ORDER_QUANTITY must be positive")
	}
	if cfg.DepositPercent.LessThan(decimal.Zero) || cfg.DepositPercent.GreaterThan(decimal.NewFromInt(100)) {
		return nil, errors.New("DEPOSIT_PERCENT must be between 0 and 100")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) (int, error) {
	base := strings.TrimSpace(value)
	if base == "" {
		return fallback, nil
	}
	return strconv.Atoi(base)
}

func parseDecimal(value, fallback string) (decimal.Decimal, error) {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	return decimal.NewFromString(base)
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
