package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TAX_RATE", "")
	t.Setenv("WEEK_START", "")
	t.Setenv("PICKUP_SLOT_MINUTES", "")
	t.Setenv("LOYALTY_RECONCILE_SECONDS", "")

	cfg := Load()
	assert.Equal(t, "0.06", cfg.TaxRate.String())
	assert.Equal(t, time.Monday, cfg.WeekStart)
	assert.Equal(t, 30, cfg.SlotMinutes)
	assert.Equal(t, "09:00", cfg.PickupOpen)
	assert.Equal(t, "17:00", cfg.PickupClose)
	assert.Equal(t, time.Minute, cfg.LoyaltyReconcile)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TAX_RATE", "0.08")
	t.Setenv("WEEK_START", "Sun")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,,")
	t.Setenv("TIMEZONE", "UTC")

	cfg := Load()
	assert.Equal(t, "0.08", cfg.TaxRate.String())
	assert.Equal(t, time.Sunday, cfg.WeekStart)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, time.UTC, cfg.Location)
}

func TestLoadInvalidFallsBack(t *testing.T) {
	t.Setenv("TAX_RATE", "-1")
	t.Setenv("WEEK_START", "someday")
	t.Setenv("PICKUP_SLOT_MINUTES", "abc")

	cfg := Load()
	assert.Equal(t, "0.06", cfg.TaxRate.String())
	assert.Equal(t, time.Monday, cfg.WeekStart)
	assert.Equal(t, 30, cfg.SlotMinutes)
}

func TestParseWeekday(t *testing.T) {
	wd, ok := ParseWeekday("wednesday")
	assert.True(t, ok)
	assert.Equal(t, time.Wednesday, wd)

	_, ok = ParseWeekday("we")
	assert.False(t, ok)
}
