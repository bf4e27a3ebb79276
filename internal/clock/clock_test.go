package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTodayYMD_UsesKST(t *testing.T) {
	// 2025-01-05 23:30 UTC is already 2025-01-06 08:30 in KST
	now := time.Date(2025, 1, 5, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, "2025-01-06", TodayYMD(now))
}

func TestWeekKeyFromYMD(t *testing.T) {
	tests := []struct {
		ymd  string
		want string
	}{
		{"2025-01-06", "2025-W02"}, // a Monday
		{"2025-01-12", "2025-W02"}, // the following Sunday
		{"2025-01-01", "2025-W01"},
		{"2024-12-30", "2025-W01"}, // ISO week 1 of 2025 starts in 2024
		{"2023-01-01", "2022-W52"}, // a Sunday belonging to the previous ISO year
	}
	for _, tt := range tests {
		got, err := WeekKeyFromYMD(tt.ymd)
		require.NoError(t, err, tt.ymd)
		assert.Equal(t, tt.want, got, tt.ymd)
	}
}

func TestWeekYMDsFromWeekKey(t *testing.T) {
	ymds, err := WeekYMDsFromWeekKey("2025-W02")
	require.NoError(t, err)
	require.Len(t, ymds, 7)
	assert.Equal(t, "2025-01-06", ymds[0]) // Monday
	assert.Equal(t, "2025-01-12", ymds[6]) // Sunday

	// Round-trip: every day of the week maps back to the same key
	for _, ymd := range ymds {
		wk, err := WeekKeyFromYMD(ymd)
		require.NoError(t, err)
		assert.Equal(t, "2025-W02", wk)
	}
}

func TestWeekYMDsFromWeekKey_YearBoundary(t *testing.T) {
	ymds, err := WeekYMDsFromWeekKey("2025-W01")
	require.NoError(t, err)
	assert.Equal(t, "2024-12-30", ymds[0])
	assert.Equal(t, "2025-01-05", ymds[6])
}

func TestWeekYMDsFromWeekKey_Invalid(t *testing.T) {
	_, err := WeekYMDsFromWeekKey("garbage")
	assert.Error(t, err)

	_, err = WeekYMDsFromWeekKey("2025-W99")
	assert.Error(t, err)
}

func TestAddDaysYMD(t *testing.T) {
	got, err := AddDaysYMD("2025-01-04", 2)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-06", got)

	got, err = AddDaysYMD("2025-01-01", -1)
	require.NoError(t, err)
	assert.Equal(t, "2024-12-31", got)
}

func TestBand(t *testing.T) {
	tests := []struct {
		hour int
		want TimeBand
	}{
		{0, BandNight}, {6, BandNight},
		{7, BandMorning}, {11, BandMorning},
		{12, BandDay}, {17, BandDay},
		{18, BandEvening}, {23, BandEvening},
	}
	for _, tt := range tests {
		now := time.Date(2025, 1, 6, tt.hour, 0, 0, 0, KST)
		assert.Equal(t, tt.want, Band(now), "hour %d", tt.hour)
	}
}

func TestPrevWeekKey(t *testing.T) {
	// Monday 2025-01-06 -> previous week is W01
	now := time.Date(2025, 1, 6, 0, 30, 0, 0, KST)
	assert.Equal(t, "2025-W01", PrevWeekKey(now))
}
