// Package config reads process settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/fjod/go_cart/checkout-engine/internal/telemetry"
)

const (
	StoreMemory   = "memory"
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
)

type Config struct {
	HTTPPort        string
	GRPCHealthPort  string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	LogLevel        slog.Level

	TaxRate         decimal.Decimal
	ShippingFlatFee decimal.Decimal
	Currency        string

	CatalogDBPath         string
	CatalogMigrationsPath string
	CatalogTimeout        time.Duration

	CheckoutStore string
	CheckoutTTL   time.Duration
	MongoURI      string
	MongoDatabase string

	RedisAddr string
	OTPTTL    time.Duration

	OrderLedger    string
	DBHost         string
	DBPort         int
	DBUser         string
	DBPassword     string
	DBName         string
	MigrationsPath string

	KafkaBrokers []string
	OTLPEndpoint string
}

// Load reads .env (when present) and then the environment. Malformed values
// are reported together.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	p := &parser{}
	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		GRPCHealthPort:  getEnv("GRPC_HEALTH_PORT", "50070"),
		RequestTimeout:  p.duration("REQUEST_TIMEOUT", "30s"),
		ShutdownTimeout: p.duration("SHUTDOWN_TIMEOUT", "10s"),
		LogLevel:        p.level("LOG_LEVEL", "info"),

		TaxRate:         p.decimal("TAX_RATE", "0.10"),
		ShippingFlatFee: p.decimal("SHIPPING_FLAT_FEE", "5.00"),
		Currency:        strings.ToUpper(getEnv("CURRENCY", "USD")),

		CatalogDBPath:         getEnv("CATALOG_DB_PATH", "catalog.db"),
		CatalogMigrationsPath: getEnv("CATALOG_MIGRATIONS_PATH", "internal/catalog/migrations"),
		CatalogTimeout:        p.duration("CATALOG_TIMEOUT", "2s"),

		CheckoutStore: p.oneOf("CHECKOUT_STORE", StoreMemory, StoreMemory, StoreMongo),
		CheckoutTTL:   p.duration("CHECKOUT_TTL", "30m"),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DATABASE", "checkout"),

		RedisAddr: getEnv("REDIS_ADDR", ""),
		OTPTTL:    p.duration("OTP_TTL", "0s"),

		OrderLedger:    p.oneOf("ORDER_LEDGER", StoreMemory, StoreMemory, StorePostgres),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         p.integer("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", "postgres"),
		DBName:         getEnv("DB_NAME", "orders"),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "internal/repository/migrations"),

		KafkaBrokers: splitList(getEnv("KAFKA_BROKERS", "")),
		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if cfg.TaxRate.IsNegative() {
		p.errs = append(p.errs, fmt.Errorf("TAX_RATE must not be negative"))
	}
	if cfg.ShippingFlatFee.IsNegative() {
		p.errs = append(p.errs, fmt.Errorf("SHIPPING_FLAT_FEE must not be negative"))
	}
	if err := errors.Join(p.errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parser collects every malformed value instead of stopping at the first.
type parser struct {
	errs []error
}

func (p *parser) duration(key, def string) time.Duration {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err == nil && d < 0 {
		err = errors.New("must not be negative")
	}
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s=%q: %w", key, raw, err))
	}
	return d
}

func (p *parser) decimal(key, def string) decimal.Decimal {
	raw := getEnv(key, def)
	v, err := decimal.NewFromString(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s=%q: %w", key, raw, err))
	}
	return v
}

func (p *parser) integer(key, def string) int {
	raw := getEnv(key, def)
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s=%q: %w", key, raw, err))
	}
	return v
}

func (p *parser) level(key, def string) slog.Level {
	raw := getEnv(key, def)
	level, err := telemetry.ParseLevel(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
	}
	return level
}

func (p *parser) oneOf(key, def string, allowed ...string) string {
	raw := strings.ToLower(getEnv(key, def))
	for _, a := range allowed {
		if raw == a {
			return raw
		}
	}
	p.errs = append(p.errs, fmt.Errorf("%s=%q: must be one of %s", key, raw, strings.Join(allowed, ", ")))
	return def
}
