package daily

import (
	"fmt"
	"time"

	"github.com/aristath/abydos/internal/clock"
)

// Settings is one user's preference and stamp row.
type Settings struct {
	UserID         string
	DMOptIn        bool
	NoiseOptIn     bool
	StampsOptIn    bool
	Stamps         int64
	StampsRewarded int64
	StampTitle     string
	LastStampAt    time.Time
}

// SettingsFor returns a user's settings, creating the default row on first
// touch.
func (s *Service) SettingsFor(uid string) (Settings, error) {
	now := time.Now().Unix()
	if _, err := s.db.Exec(`
		INSERT INTO user_settings (user_id, created_at, updated_at)
		VALUES (?, ?, ?) ON CONFLICT(user_id) DO NOTHING
	`, uid, now, now); err != nil {
		return Settings{}, fmt.Errorf("failed to init user settings: %w", err)
	}

	var (
		st                           Settings
		dm, noise, stamps, lastStamp int64
	)
	err := s.db.QueryRow(`
		SELECT user_id, dm_opt_in, noise_opt_in, stamps_opt_in, stamps,
		       stamps_rewarded, stamp_title, last_stamp_at
		FROM user_settings WHERE user_id = ?
	`, uid).Scan(&st.UserID, &dm, &noise, &stamps,
		&st.Stamps, &st.StampsRewarded, &st.StampTitle, &lastStamp)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read user settings: %w", err)
	}
	st.DMOptIn = dm != 0
	st.NoiseOptIn = noise != 0
	st.StampsOptIn = stamps != 0
	if lastStamp > 0 {
		st.LastStampAt = time.Unix(lastStamp, 0)
	}
	return st, nil
}

// SetOptIn flips one of a user's opt-in flags.
func (s *Service) SetOptIn(uid, flag string, on bool) error {
	var column string
	switch flag {
	case "dm":
		column = "dm_opt_in"
	case "noise":
		column = "noise_opt_in"
	case "stamps":
		column = "stamps_opt_in"
	default:
		return fmt.Errorf("unknown opt-in flag %q", flag)
	}

	if _, err := s.SettingsFor(uid); err != nil {
		return err
	}
	value := 0
	if on {
		value = 1
	}
	_, err := s.db.Exec(
		"UPDATE user_settings SET "+column+" = ?, updated_at = ? WHERE user_id = ?",
		value, time.Now().Unix(), uid)
	if err != nil {
		return fmt.Errorf("failed to update user settings: %w", err)
	}
	return nil
}

// TouchStamp awards the user's daily attendance stamp on their first
// interaction of a KST day. Returns true when a stamp was granted.
func (s *Service) TouchStamp(uid string, now time.Time) (bool, error) {
	st, err := s.SettingsFor(uid)
	if err != nil {
		return false, err
	}
	if !st.StampsOptIn {
		return false, nil
	}
	if !st.LastStampAt.IsZero() && clock.TodayYMD(st.LastStampAt) == clock.TodayYMD(now) {
		return false, nil
	}

	var prev int64
	if !st.LastStampAt.IsZero() {
		prev = st.LastStampAt.Unix()
	}
	// The previous timestamp in the WHERE clause makes concurrent touches
	// award at most one stamp.
	res, err := s.db.Exec(`
		UPDATE user_settings SET stamps = stamps + 1, last_stamp_at = ?, updated_at = ?
		WHERE user_id = ? AND last_stamp_at = ?
	`, now.Unix(), now.Unix(), uid, prev)
	if err != nil {
		return false, fmt.Errorf("failed to award stamp: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// StampEntry is one row of the stamp leaderboard.
type StampEntry struct {
	UserID string
	Stamps int64
	Title  string
}

// TopStamps returns the highest stamp counts among opted-in users.
func (s *Service) TopStamps(limit int) ([]StampEntry, error) {
	rows, err := s.db.Query(`
		SELECT user_id, stamps, stamp_title FROM user_settings
		WHERE stamps_opt_in = 1 AND stamps > 0
		ORDER BY stamps DESC, user_id LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read stamp leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []StampEntry
	for rows.Next() {
		var e StampEntry
		if err := rows.Scan(&e.UserID, &e.Stamps, &e.Title); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
