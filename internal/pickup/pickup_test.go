package pickup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func TestSlots_DefaultHours(t *testing.T) {
	slots := DefaultHours().Slots()
	require.Len(t, slots, 16)

	assert.Equal(t, "9:00", slots[0].Start.String())
	assert.Equal(t, "9:30", slots[0].End.String())
	assert.Equal(t, "9:00 AM - 9:30 AM", slots[0].Label)
	assert.Equal(t, "12:00 PM - 12:30 PM", slots[6].Label)
	assert.Equal(t, "12:30 PM - 1:00 PM", slots[7].Label)
	assert.Equal(t, "4:30 PM - 5:00 PM", slots[15].Label)
}

func TestAvailable_TodayExcludesPastSlots(t *testing.T) {
	h := DefaultHours()
	now := at(2024, 1, 15, 10, 30)

	slots := h.Available(now, now)
	require.NotEmpty(t, slots)
	// 10:30 has already started
	assert.Equal(t, "11:00", slots[0].Start.String())
	assert.Len(t, slots, 12)
}

func TestAvailable_TomorrowOffersAll(t *testing.T) {
	h := DefaultHours()
	now := at(2024, 1, 15, 16, 45)
	opts := DateOptions(now)

	assert.Empty(t, h.Available(opts[0].Date, now))
	assert.Len(t, h.Available(opts[1].Date, now), 16)
}

func TestAvailable_PastDateOffersNone(t *testing.T) {
	now := at(2024, 1, 15, 8, 0)
	assert.Empty(t, DefaultHours().Available(at(2024, 1, 14, 0, 0), now))
}

func TestDateOptions_Labels(t *testing.T) {
	opts := DateOptions(at(2024, 12, 31, 20, 0))
	require.Len(t, opts, 2)
	assert.Equal(t, "Tue 31", opts[0].Label)
	assert.True(t, opts[0].Today)
	assert.Equal(t, "Wed 01", opts[1].Label)
	assert.Equal(t, 2025, opts[1].Date.Year())
}

func TestSelect(t *testing.T) {
	h := DefaultHours()
	now := at(2024, 1, 15, 10, 10)

	sel, err := h.Select(now, NewClock(10, 30), now)
	require.NoError(t, err)
	assert.Equal(t, "Mon 15", sel.DateLabel)
	assert.Equal(t, "10:30 AM - 11:00 AM", sel.Slot.Label)

	_, err = h.Select(now, NewClock(10, 0), now)
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	_, err = h.Select(now, NewClock(10, 15), now)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestParseHours(t *testing.T) {
	h, err := ParseHours("08:00", "10:00", 60)
	require.NoError(t, err)
	assert.Len(t, h.Slots(), 2)

	_, err = ParseHours("10:00", "09:00", 30)
	assert.ErrorIs(t, err, ErrInvalidHours)

	_, err = ParseHours("25:00", "09:00", 30)
	assert.ErrorIs(t, err, ErrInvalidClock)
}
