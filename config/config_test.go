package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadEnv_Defaults(t *testing.T) {
	cfg := LoadEnv()

	assert.Equal(t, "allow", cfg.Ledger.NegativePolicy)
	assert.Equal(t, 3, cfg.Ledger.MaxRetries)
	assert.Equal(t, []float64{64}, cfg.Eligibility.MilkSizesOz)
	assert.Equal(t, []float64{16}, cfg.Eligibility.BreadSizesOz)
	assert.Equal(t, 72.0, cfg.Eligibility.CerealCeilingOz)
	assert.Nil(t, cfg.Eligibility.CerealBrandAllow)
}

func TestLoadEnv_Overrides(t *testing.T) {
	t.Setenv("LEDGER_NEGATIVE_POLICY", "reject")
	t.Setenv("SCAN_EXTERNAL_TIMEOUT", "750ms")
	t.Setenv("ELIGIBILITY_MILK_SIZES_OZ", "64, 96")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg := LoadEnv()

	assert.Equal(t, "reject", cfg.Ledger.NegativePolicy)
	assert.Equal(t, 750*time.Millisecond, cfg.Nutrition.ScanTimeout)
	assert.Equal(t, []float64{64, 96}, cfg.Eligibility.MilkSizesOz)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoadEnv_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("LEDGER_MAX_RETRIES", "many")
	t.Setenv("ELIGIBILITY_BREAD_SIZES_OZ", "16,big")

	cfg := LoadEnv()

	assert.Equal(t, 3, cfg.Ledger.MaxRetries)
	assert.Equal(t, []float64{16}, cfg.Eligibility.BreadSizesOz)
}
