package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "50070", cfg.GRPCHealthPort)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "0.1", cfg.TaxRate.String())
	assert.Equal(t, "5.00", cfg.ShippingFlatFee.StringFixed(2))
	assert.Equal(t, "USD", cfg.Currency)
	assert.Equal(t, 2*time.Second, cfg.CatalogTimeout)
	assert.Equal(t, StoreMemory, cfg.CheckoutStore)
	assert.Equal(t, 30*time.Minute, cfg.CheckoutTTL)
	assert.Equal(t, StoreMemory, cfg.OrderLedger)
	assert.Equal(t, 5432, cfg.DBPort)
	assert.Zero(t, cfg.OTPTTL)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Empty(t, cfg.OTLPEndpoint)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("TAX_RATE", "0.2")
	t.Setenv("CURRENCY", "eur")
	t.Setenv("CHECKOUT_STORE", "Mongo")
	t.Setenv("ORDER_LEDGER", "postgres")
	t.Setenv("OTP_TTL", "5m")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.2", cfg.TaxRate.String())
	assert.Equal(t, "EUR", cfg.Currency)
	assert.Equal(t, StoreMongo, cfg.CheckoutStore)
	assert.Equal(t, StorePostgres, cfg.OrderLedger)
	assert.Equal(t, 5*time.Minute, cfg.OTPTTL)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"REQUEST_TIMEOUT", "soon"},
		{"CATALOG_TIMEOUT", "-1s"},
		{"TAX_RATE", "ten percent"},
		{"TAX_RATE", "-0.1"},
		{"SHIPPING_FLAT_FEE", "-5"},
		{"DB_PORT", "postgres"},
		{"CHECKOUT_STORE", "redis"},
		{"ORDER_LEDGER", "mysql"},
		{"LOG_LEVEL", "chatty"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}
