package wordchain

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Record is one user's lifetime match tally.
type Record struct {
	UserID      string
	DisplayName string
	Wins        int64
	Losses      int64
}

// Records owns the word_chain_records table.
type Records struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRecords creates the match record repository.
func NewRecords(db *sql.DB, log zerolog.Logger) *Records {
	return &Records{
		db:  db,
		log: log.With().Str("repository", "word_chain_records").Logger(),
	}
}

// Add applies one match result to a user's tally.
func (r *Records) Add(uid, displayName string, won bool) error {
	wins, losses := 0, 1
	if won {
		wins, losses = 1, 0
	}
	now := time.Now().Unix()
	_, err := r.db.Exec(`
		INSERT INTO word_chain_records (user_id, display_name, wins, losses, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			wins = wins + excluded.wins,
			losses = losses + excluded.losses,
			display_name = CASE WHEN excluded.display_name != '' THEN excluded.display_name ELSE display_name END,
			updated_at = excluded.updated_at
	`, uid, displayName, wins, losses, now, now)
	if err != nil {
		return fmt.Errorf("failed to record match result: %w", err)
	}
	return nil
}

// For returns a user's tally. A user with no matches has the zero record.
func (r *Records) For(uid string) (Record, error) {
	rec := Record{UserID: uid}
	err := r.db.QueryRow(`
		SELECT display_name, wins, losses FROM word_chain_records WHERE user_id = ?
	`, uid).Scan(&rec.DisplayName, &rec.Wins, &rec.Losses)
	if err == sql.ErrNoRows {
		return rec, nil
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to read match record: %w", err)
	}
	return rec, nil
}

// Top returns the highest win counts, for the leaderboard command.
func (r *Records) Top(limit int) ([]Record, error) {
	rows, err := r.db.Query(`
		SELECT user_id, display_name, wins, losses FROM word_chain_records
		ORDER BY wins DESC, losses, user_id LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read match leaderboard: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.UserID, &rec.DisplayName, &rec.Wins, &rec.Losses); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
