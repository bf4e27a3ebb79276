// Package clock provides the KST-anchored calendar helpers used for every
// day and week boundary in the game. All idempotence keys (daily explore,
// daily interest, board keys, report markers) derive from these functions.
package clock

import (
	"fmt"
	"time"
)

// KST is the canonical game timezone (UTC+09:00, no DST).
var KST = time.FixedZone("KST", 9*60*60)

// TimeBand classifies a wall-clock instant into a coarse part of day.
type TimeBand string

const (
	BandNight   TimeBand = "night"   // 00-06
	BandMorning TimeBand = "morning" // 07-11
	BandDay     TimeBand = "day"     // 12-17
	BandEvening TimeBand = "evening" // 18-23
)

// TodayYMD returns the KST calendar day of now as "YYYY-MM-DD".
func TodayYMD(now time.Time) string {
	return now.In(KST).Format("2006-01-02")
}

// ParseYMD parses a "YYYY-MM-DD" key into a KST midnight instant.
func ParseYMD(ymd string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", ymd, KST)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid ymd %q: %w", ymd, err)
	}
	return t, nil
}

// AddDaysYMD shifts a ymd key by n calendar days.
func AddDaysYMD(ymd string, n int) (string, error) {
	t, err := ParseYMD(ymd)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, n).Format("2006-01-02"), nil
}

// WeekKeyFromYMD returns the ISO-8601 week key "YYYY-Www" (Monday-start)
// containing the given day.
func WeekKeyFromYMD(ymd string) (string, error) {
	t, err := ParseYMD(ymd)
	if err != nil {
		return "", err
	}
	year, week := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week), nil
}

// WeekKey returns the ISO week key containing now (KST).
func WeekKey(now time.Time) string {
	year, week := now.In(KST).ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// WeekYMDsFromWeekKey expands a week key into its seven ymd keys, Monday
// through Sunday.
func WeekYMDsFromWeekKey(weekKey string) ([]string, error) {
	var year, week int
	if _, err := fmt.Sscanf(weekKey, "%d-W%d", &year, &week); err != nil {
		return nil, fmt.Errorf("invalid week key %q: %w", weekKey, err)
	}
	if week < 1 || week > 53 {
		return nil, fmt.Errorf("invalid week key %q: week out of range", weekKey)
	}

	// January 4th is always inside ISO week 1; walk back to its Monday and
	// then forward to the requested week.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, KST)
	monday := jan4.AddDate(0, 0, -(isoWeekday(jan4) - 1))
	monday = monday.AddDate(0, 0, (week-1)*7)

	ymds := make([]string, 7)
	for i := 0; i < 7; i++ {
		ymds[i] = monday.AddDate(0, 0, i).Format("2006-01-02")
	}
	return ymds, nil
}

// PrevWeekKey returns the ISO week key of the week before now (KST).
func PrevWeekKey(now time.Time) string {
	return WeekKey(now.In(KST).AddDate(0, 0, -7))
}

// Band returns the time band of now in KST.
func Band(now time.Time) TimeBand {
	switch hour := now.In(KST).Hour(); {
	case hour <= 6:
		return BandNight
	case hour <= 11:
		return BandMorning
	case hour <= 17:
		return BandDay
	default:
		return BandEvening
	}
}

// isoWeekday maps time.Weekday onto ISO numbering (Mon=1..Sun=7).
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
