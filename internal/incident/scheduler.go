package incident

import (
	"database/sql"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/abydos/internal/clock"
	"github.com/aristath/abydos/internal/database"
	"github.com/aristath/abydos/internal/economy"
)

const tickInterval = 120 * time.Second

// Record is one row of the incident log.
type Record struct {
	GuildID     string
	Kind        string
	Title       string
	Description string
	DeltaDebt   int64
	CreatedAt   time.Time
}

// Notifier receives best-effort incident announcements.
type Notifier interface {
	AnnounceIncident(gid string, record Record)
}

// Scheduler drives per-guild incidents. It is the only writer of
// aby_incident_state: a single loop iterates guilds sequentially, so at
// most one tick is in flight at a time.
type Scheduler struct {
	repo     *economy.Repository
	debt     *economy.DebtEngine
	notifier Notifier // may be nil
	rng      *rand.Rand
	log      zerolog.Logger

	stop    chan struct{}
	stopped bool
	started bool
	mu      sync.Mutex
	wg      sync.WaitGroup
}

// NewScheduler creates a new incident scheduler.
func NewScheduler(repo *economy.Repository, debt *economy.DebtEngine, notifier Notifier, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		repo:     repo,
		debt:     debt,
		notifier: notifier,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		log:      log.With().Str("component", "incident_scheduler").Logger(),
		stop:     make(chan struct{}),
	}
}

// SetNotifier attaches the announcement sink. Must be called before Start.
func (s *Scheduler) SetNotifier(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

// Start starts the incident loop.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started && !s.stopped {
		s.log.Warn().Msg("Incident scheduler already started, ignoring")
		return
	}
	if s.stopped {
		s.stop = make(chan struct{})
		s.stopped = false
	}
	s.started = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		s.log.Info().Msg("Incident scheduler started")

		for {
			select {
			case <-s.stop:
				return
			case now := <-ticker.C:
				s.TickAll(now)
			}
		}
	}()
}

// Stop stops the scheduler and waits for the loop to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	close(s.stop)
	s.stopped = true
	s.started = false
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info().Msg("Incident scheduler stopped")
}

// TickAll processes every indebted guild once. Failures are per-guild:
// one broken guild never starves the rest.
func (s *Scheduler) TickAll(now time.Time) {
	gids, err := s.repo.GuildsWithDebt()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list indebted guilds")
		return
	}
	for _, gid := range gids {
		if _, err := s.TickGuild(gid, now); err != nil {
			s.log.Error().Err(err).Str("guild", gid).Msg("Incident tick failed")
		}
	}
}

// TickGuild fires an incident for one guild if it is due. Returns the
// record when an incident fired. Exported so tests can drive the scheduler
// without real time.
func (s *Scheduler) TickGuild(gid string, now time.Time) (*Record, error) {
	nextAt, _, err := s.state(gid)
	if err != nil {
		return nil, err
	}
	if nextAt.After(now) {
		return nil, nil
	}

	// Interest catch-up first so the pressure stage sees today's balance.
	today := clock.TodayYMD(now)
	if err := s.debt.ApplyInterestUpTo(gid, today); err != nil {
		return nil, err
	}

	debt, err := s.repo.GuildDebt(gid)
	if err != nil {
		return nil, err
	}
	stage := PressureStage(debt.Debt)
	event, delta := Draw(s.rng, stage)

	record := Record{
		GuildID:     gid,
		Kind:        event.Kind,
		Title:       event.Title,
		Description: event.Description,
		CreatedAt:   now,
	}

	minWait, maxWait := NextWindow(stage)
	nextIncident := now.Add(minWait + time.Duration(s.rng.Int63n(int64(maxWait-minWait))))

	err = database.WithTransaction(s.repo.DB(), func(tx *sql.Tx) error {
		applied, err := s.debt.AddDebt(tx, gid, delta)
		if err != nil {
			return err
		}
		record.DeltaDebt = applied

		if err := economy.LogTx(tx, gid, "", economy.KindIncident, 0, 0, applied, event.Title, now); err != nil {
			return err
		}
		if _, err := tx.Exec(`
			INSERT INTO aby_incident_log (guild_id, kind, title, description, delta_debt, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, gid, event.Kind, event.Title, event.Description, applied, now.Unix()); err != nil {
			return fmt.Errorf("failed to append incident log: %w", err)
		}
		return s.setState(tx, gid, nextIncident, now)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("guild", gid).Str("title", event.Title).
		Int("stage", stage).Int64("delta_debt", record.DeltaDebt).
		Time("next", nextIncident).
		Msg("Incident fired")

	if s.notifier != nil {
		s.notifier.AnnounceIncident(gid, record)
	}
	return &record, nil
}

// state reads a guild's incident schedule, creating the row with an
// immediate due time on first touch.
func (s *Scheduler) state(gid string) (nextAt, lastAt time.Time, err error) {
	var nextTS, lastTS int64
	err = s.repo.DB().QueryRow(`
		SELECT next_incident_at, last_incident_at FROM aby_incident_state WHERE guild_id = ?
	`, gid).Scan(&nextTS, &lastTS)
	if err == sql.ErrNoRows {
		now := time.Now().Unix()
		if _, err := s.repo.DB().Exec(`
			INSERT INTO aby_incident_state (guild_id, created_at, updated_at)
			VALUES (?, ?, ?) ON CONFLICT(guild_id) DO NOTHING
		`, gid, now, now); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("failed to init incident state: %w", err)
		}
		return time.Time{}, time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("failed to read incident state: %w", err)
	}
	return time.Unix(nextTS, 0), time.Unix(lastTS, 0), nil
}

func (s *Scheduler) setState(tx *sql.Tx, gid string, nextAt, lastAt time.Time) error {
	_, err := tx.Exec(`
		UPDATE aby_incident_state SET next_incident_at = ?, last_incident_at = ?, updated_at = ?
		WHERE guild_id = ?
	`, nextAt.Unix(), lastAt.Unix(), time.Now().Unix(), gid)
	if err != nil {
		return fmt.Errorf("failed to update incident state: %w", err)
	}
	return nil
}

// RecentIncidents returns the latest incidents for a guild, newest first.
func (s *Scheduler) RecentIncidents(gid string, limit int) ([]Record, error) {
	rows, err := s.repo.DB().Query(`
		SELECT guild_id, kind, title, description, delta_debt, created_at
		FROM aby_incident_log WHERE guild_id = ?
		ORDER BY id DESC LIMIT ?
	`, gid, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read incident log: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r  Record
			ts int64
		)
		if err := rows.Scan(&r.GuildID, &r.Kind, &r.Title, &r.Description, &r.DeltaDebt, &ts); err != nil {
			return nil, err
		}
		r.CreatedAt = time.Unix(ts, 0)
		records = append(records, r)
	}
	return records, rows.Err()
}
