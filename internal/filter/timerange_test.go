package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func TestParseTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		raw           string
		tz            string
		wantPresent   bool
		wantTimeOfDay bool
		wantUnix      int64
	}{
		{name: "date_only_utc", raw: "2024-01-15", tz: "UTC", wantPresent: true, wantUnix: 1705276800},
		{name: "date_hour_minute_utc", raw: "2024-01-15 09:00", tz: "UTC", wantPresent: true, wantTimeOfDay: true, wantUnix: 1705309200},
		{name: "date_with_seconds", raw: "2024-01-15 09:00:30", tz: "UTC", wantPresent: true, wantTimeOfDay: true, wantUnix: 1705309230},
		{name: "new_york_offset", raw: "2024-01-15 09:00", tz: "America/New_York", wantPresent: true, wantTimeOfDay: true, wantUnix: 1705327200},
		{name: "surrounding_whitespace", raw: "  2024-01-15  ", tz: "UTC", wantPresent: true, wantUnix: 1705276800},
		{name: "rfc3339_keeps_own_offset", raw: "2024-01-15T09:00:00Z", tz: "America/New_York", wantPresent: true, wantUnix: 1705309200},
		{name: "t_separator_has_no_space", raw: "2024-01-15T09:00", tz: "UTC", wantPresent: true, wantUnix: 1705309200},
		{name: "garbage", raw: "yesterday", tz: "UTC"},
		{name: "garbage_with_space", raw: "last week", tz: "UTC", wantTimeOfDay: true},
		{name: "empty", raw: "", tz: "UTC"},
		{name: "invalid_month", raw: "2024-13-01", tz: "UTC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ParseTime(tt.raw, mustLoad(t, tt.tz))
			assert.Equal(t, tt.wantPresent, p.Present)
			assert.Equal(t, tt.wantTimeOfDay, p.HasTimeOfDay)
			if tt.wantPresent {
				assert.Equal(t, tt.wantUnix, p.Instant.Unix())
			}
		})
	}
}

func TestParseTime_NilLocation(t *testing.T) {
	p := ParseTime("2024-01-15", nil)
	assert.False(t, p.Present)
}

func TestParsedTime_Where_DateOnlyOmitsHour(t *testing.T) {
	p := ParseTime("2024-01-15", time.UTC)
	got := p.Where(">=")
	assert.Equal(t, "timestamp >= 1705276800 AND year >= '2024' AND month >= '01' AND day >= '15'", got)
	assert.NotContains(t, got, "hour")
}

func TestParsedTime_Where_TimeOfDayAddsHour(t *testing.T) {
	p := ParseTime("2024-01-15 09:00", time.UTC)
	assert.Equal(t,
		"timestamp >= 1705309200 AND year >= '2024' AND month >= '01' AND day >= '15' AND hour >= '09'",
		p.Where(">="))
}

func TestParsedTime_Where_PartitionColumnsAreUTC(t *testing.T) {
	// 09:00 in New York is 14:00 UTC.
	p := ParseTime("2024-01-15 09:00", mustLoad(t, "America/New_York"))
	assert.Contains(t, p.Where("<="), "hour <= '14'")

	// Midnight in Tokyo falls on the previous UTC day.
	p = ParseTime("2024-01-15", mustLoad(t, "Asia/Tokyo"))
	assert.Equal(t, "timestamp <= 1705244400 AND year <= '2024' AND month <= '01' AND day <= '14'", p.Where("<="))
}

func TestRenderRange(t *testing.T) {
	start := ParseTime("2024-01-15", time.UTC)
	end := ParseTime("2024-01-16 10:00", time.UTC)
	missing := ParseTime("not a time", time.UTC)

	got, ok := RenderRange(start, end)
	require.True(t, ok)
	assert.Equal(t, "("+start.Where(">=")+") AND ("+end.Where("<=")+")", got)

	got, ok = RenderRange(start, missing)
	require.True(t, ok)
	assert.Equal(t, start.Where(">="), got)

	got, ok = RenderRange(missing, end)
	require.True(t, ok)
	assert.Equal(t, end.Where("<="), got)

	got, ok = RenderRange(missing, missing)
	assert.False(t, ok)
	assert.Empty(t, got)
}
