// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the runtime configuration.  Each field corresponds to an
// environment variable.
type Config struct {
	Env       string // APP_ENV (dev, test, prod)
	Port      string // APP_PORT
	DBUser    string
	DBPass    string // may be empty
	DBHost    string
	DBPort    string
	DBName    string
	DBMigrate bool // DB_MIGRATE: apply embedded migrations on startup
	JWTSecret string

	DBMaxOpenConns    int           // DB_MAX_OPEN_CONNS
	DBMaxIdleConns    int           // DB_MAX_IDLE_CONNS; capped at DBMaxOpenConns
	DBConnMaxLifetime time.Duration // DB_CONN_MAX_LIFETIME

	HoldWindow    time.Duration // HOLD_WINDOW
	SweepInterval time.Duration // SWEEP_INTERVAL
	SweepBatch    int           // SWEEP_BATCH
	TicketQR      bool          // TICKET_QR

	Payment PaymentConfig

	RabbitMQURL     string // RABBITMQ_URL; empty disables events
	ConsumerEnabled bool   // BOOKING_CONSUMER_ENABLED
}

// PaymentConfig selects and configures the payment gateway.
type PaymentConfig struct {
	Provider string        // PAYMENT_PROVIDER: vnpay or remote
	Timeout  time.Duration // PAYMENT_TIMEOUT

	VNPayTmnCode    string
	VNPayHashSecret string
	VNPayPayURL     string
	VNPayReturnURL  string
	VNPayLocale     string

	RemoteBaseURL string // PAYMENT_SERVICE_URL
}

const (
	ProviderVNPay  = "vnpay"
	ProviderRemote = "remote"
)

// Load reads the configuration.  Every missing required variable is
// reported in one error.
func Load() (Config, error) {
	var missing []string
	must := func(key string) string {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg := Config{
		Env:       must("APP_ENV"),
		Port:      must("APP_PORT"),
		DBUser:    must("DB_USER"),
		DBPass:    os.Getenv("DB_PASS"),
		DBHost:    must("DB_HOST"),
		DBPort:    must("DB_PORT"),
		DBName:    must("DB_NAME"),
		DBMigrate: envBool("DB_MIGRATE", false),
		JWTSecret: must("JWT_SECRET"),

		DBMaxOpenConns:    envInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:    envInt("DB_MAX_IDLE_CONNS", 25),
		DBConnMaxLifetime: envDur("DB_CONN_MAX_LIFETIME", 30*time.Minute),

		HoldWindow:    envDur("HOLD_WINDOW", 10*time.Minute),
		SweepInterval: envDur("SWEEP_INTERVAL", 30*time.Second),
		SweepBatch:    envInt("SWEEP_BATCH", 200),
		TicketQR:      envBool("TICKET_QR", true),

		Payment: PaymentConfig{
			Provider:        strings.ToLower(envStr("PAYMENT_PROVIDER", ProviderVNPay)),
			Timeout:         envDur("PAYMENT_TIMEOUT", 10*time.Second),
			VNPayTmnCode:    os.Getenv("VNPAY_TMN_CODE"),
			VNPayHashSecret: must("VNPAY_HASH_SECRET"),
			VNPayPayURL:     envStr("VNPAY_PAY_URL", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"),
			VNPayReturnURL:  os.Getenv("VNPAY_RETURN_URL"),
			VNPayLocale:     envStr("VNPAY_LOCALE", "vn"),
			RemoteBaseURL:   os.Getenv("PAYMENT_SERVICE_URL"),
		},

		RabbitMQURL:     os.Getenv("RABBITMQ_URL"),
		ConsumerEnabled: envBool("BOOKING_CONSUMER_ENABLED", false),
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}

	switch cfg.Payment.Provider {
	case ProviderVNPay:
	case ProviderRemote:
		if cfg.Payment.RemoteBaseURL == "" {
			return Config{}, fmt.Errorf("PAYMENT_SERVICE_URL is required for provider %q", ProviderRemote)
		}
	default:
		return Config{}, fmt.Errorf("invalid PAYMENT_PROVIDER %q", cfg.Payment.Provider)
	}
	if cfg.HoldWindow <= 0 {
		return Config{}, fmt.Errorf("invalid HOLD_WINDOW %s", cfg.HoldWindow)
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 30 * time.Second
	}
	if cfg.SweepBatch < 1 {
		cfg.SweepBatch = 200
	}
	if cfg.DBMaxOpenConns < 1 {
		return Config{}, fmt.Errorf("invalid DB_MAX_OPEN_CONNS %d", cfg.DBMaxOpenConns)
	}
	return cfg, nil
}

// IsProduction reports whether Env names a production deployment.
func (c Config) IsProduction() bool {
	return c.Env == "prod" || c.Env == "production"
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch strings.ToLower(os.Getenv(k)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
