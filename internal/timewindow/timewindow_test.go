package timewindow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func TestToday_Bounds(t *testing.T) {
	w := Today(date(2024, 1, 20, 14, 5))
	assert.Equal(t, date(2024, 1, 20, 0, 0), w.Start)
	assert.Equal(t, time.Date(2024, 1, 20, 23, 59, 59, 999_000_000, time.UTC), w.End)

	assert.True(t, w.Contains(w.Start))
	assert.True(t, w.Contains(w.End))
	assert.False(t, w.Contains(w.End.Add(time.Millisecond)))
	assert.False(t, w.Contains(w.Start.Add(-time.Nanosecond)))
}

func TestThisWeek(t *testing.T) {
	// Saturday
	now := date(2024, 1, 20, 9, 0)

	assert.Equal(t, date(2024, 1, 15, 0, 0), ThisWeek(now, time.Monday).Start)
	assert.Equal(t, date(2024, 1, 14, 0, 0), ThisWeek(now, time.Sunday).Start)
	assert.Equal(t, date(2024, 1, 20, 0, 0), ThisWeek(now, time.Saturday).Start)
}

func TestThisWeek_YearRollover(t *testing.T) {
	// Wednesday
	w := ThisWeek(date(2025, 1, 1, 12, 0), time.Monday)
	assert.Equal(t, date(2024, 12, 30, 0, 0), w.Start)
	assert.Equal(t, 2025, w.End.Year())
}

func TestThisMonth(t *testing.T) {
	w := ThisMonth(date(2024, 1, 20, 9, 0))
	assert.Equal(t, date(2024, 1, 1, 0, 0), w.Start)
	assert.Equal(t, 20, w.End.Day())
}

func TestLastMonth(t *testing.T) {
	w := LastMonth(date(2024, 3, 10, 9, 0))
	assert.Equal(t, date(2024, 2, 1, 0, 0), w.Start)
	assert.Equal(t, time.Date(2024, 2, 29, 23, 59, 59, 999_000_000, time.UTC), w.End)

	jan := LastMonth(date(2024, 1, 5, 0, 0))
	assert.Equal(t, date(2023, 12, 1, 0, 0), jan.Start)
	assert.Equal(t, 31, jan.End.Day())
	assert.Equal(t, time.December, jan.End.Month())
}

func TestThisMonth_ExcludesNextMonthRecord(t *testing.T) {
	now := date(2024, 1, 20, 12, 0)
	w := ThisMonth(now)

	first, err := ParseTimestamp("2024-01-15 10:30", time.UTC)
	require.NoError(t, err)
	second, err := ParseTimestamp("2024-02-01 09:00", time.UTC)
	require.NoError(t, err)

	assert.True(t, w.Contains(first))
	assert.False(t, w.Contains(second))
}

func TestCustom_SwapsAndCoversWholeDays(t *testing.T) {
	w := Custom(date(2024, 1, 10, 15, 0), date(2024, 1, 3, 8, 0))
	assert.Equal(t, date(2024, 1, 3, 0, 0), w.Start)
	assert.Equal(t, 10, w.End.Day())
	assert.Equal(t, 23, w.End.Hour())
}

func TestParseTimestamp_Invalid(t *testing.T) {
	for _, s := range []string{"", "yesterday", "2024-13-01 10:00", "2024/01/01 10:00"} {
		_, err := ParseTimestamp(s, time.UTC)
		assert.ErrorIs(t, err, ErrInvalidTimestamp, s)
	}
}

func TestResolver(t *testing.T) {
	loc := time.FixedZone("MYT", 8*3600)
	r := Resolver{
		WeekStart: time.Sunday,
		Location:  loc,
		Now:       func() time.Time { return time.Date(2024, 1, 19, 20, 0, 0, 0, time.UTC) },
	}

	// 04:00 Saturday in MYT
	w, err := r.Window(PeriodToday)
	require.NoError(t, err)
	assert.Equal(t, 20, w.Start.Day())

	w, err = r.Window(PeriodThisWeek)
	require.NoError(t, err)
	assert.Equal(t, 14, w.Start.Day())

	_, err = r.Window(Period("decade"))
	assert.Error(t, err)

	ts, err := r.Parse("2024-01-20 03:59")
	require.NoError(t, err)
	assert.Equal(t, loc, ts.Location())

	p, ok := ParsePeriod("lastMonth")
	assert.True(t, ok)
	assert.Equal(t, "Last Month", p.Title())
}
