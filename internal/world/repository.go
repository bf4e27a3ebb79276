// Package world owns the global weather variable shared by every guild.
// The state row is a singleton; the Scheduler in this package is its only
// writer process-wide.
package world

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Weather is the global world weather.
type Weather string

const (
	Clear     Weather = "clear"
	Cloudy    Weather = "cloudy"
	Sandstorm Weather = "sandstorm"
)

// Valid reports whether w is one of the three known weathers.
func (w Weather) Valid() bool {
	return w == Clear || w == Cloudy || w == Sandstorm
}

// State is the singleton world state row.
type State struct {
	Weather      Weather
	ChangedAt    time.Time
	NextChangeAt time.Time
}

// Repository handles world_state database operations.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new world state repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "world").Logger(),
	}
}

// Get returns the world state, lazily creating the default row on first
// read.
func (r *Repository) Get() (State, error) {
	var (
		weather      string
		changedAt    int64
		nextChangeAt int64
	)
	err := r.db.QueryRow(`
		SELECT weather, weather_changed_at, weather_next_change_at
		FROM world_state WHERE id = 1
	`).Scan(&weather, &changedAt, &nextChangeAt)
	if err == sql.ErrNoRows {
		now := time.Now()
		if err := r.initDefault(now); err != nil {
			return State{}, err
		}
		return State{Weather: Clear, ChangedAt: now}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("failed to read world state: %w", err)
	}
	return State{
		Weather:      Weather(weather),
		ChangedAt:    time.Unix(changedAt, 0),
		NextChangeAt: time.Unix(nextChangeAt, 0),
	}, nil
}

// Set persists a weather change atomically.
func (r *Repository) Set(weather Weather, changedAt, nextChangeAt time.Time) error {
	if !weather.Valid() {
		return fmt.Errorf("invalid weather %q", weather)
	}
	now := time.Now().Unix()
	_, err := r.db.Exec(`
		INSERT INTO world_state (id, weather, weather_changed_at, weather_next_change_at, created_at, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			weather = excluded.weather,
			weather_changed_at = excluded.weather_changed_at,
			weather_next_change_at = excluded.weather_next_change_at,
			updated_at = excluded.updated_at
	`, string(weather), changedAt.Unix(), nextChangeAt.Unix(), now, now)
	if err != nil {
		return fmt.Errorf("failed to set world state: %w", err)
	}
	return nil
}

func (r *Repository) initDefault(now time.Time) error {
	_, err := r.db.Exec(`
		INSERT INTO world_state (id, weather, weather_changed_at, weather_next_change_at, created_at, updated_at)
		VALUES (1, 'clear', ?, 0, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, now.Unix(), now.Unix(), now.Unix())
	if err != nil {
		return fmt.Errorf("failed to init world state: %w", err)
	}
	return nil
}
