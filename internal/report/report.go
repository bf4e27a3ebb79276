// Package report builds and publishes the weekly guild ledger summary.
// Everything in a report is derived from the append-only economy log and
// the weekly points table; the report itself stores no state beyond an
// at-most-once publish marker per guild-week.
package report

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/abydos/internal/clock"
	"github.com/aristath/abydos/internal/economy"
	"github.com/aristath/abydos/internal/quest"
)

const (
	markerPrefix = "weekly_report_last:"
	topN         = 5
)

// Entry is one leaderboard row.
type Entry struct {
	UserID string
	Amount int64
}

// Report is one guild's weekly summary.
type Report struct {
	GuildID      string
	WeekKey      string
	Interest     int64 // debt added by interest
	IncidentDebt int64 // net debt delta from incidents
	Repaid       int64 // credits paid against debt
	NetDebtDelta int64 // sum of all debt deltas in the week
	DebtNow      int64 // balance at build time
	TopRepayers  []Entry
	TopPoints    []Entry
}

// Publisher receives finished reports. Publish failures do not consume the
// guild's marker; the next sweep retries.
type Publisher interface {
	PublishWeeklyReport(gid string, r Report) error
}

// Service builds weekly reports and runs the publish sweep.
type Service struct {
	repo      *economy.Repository
	quests    *quest.Service
	publisher Publisher // may be nil
	log       zerolog.Logger
}

// NewService creates a new report service.
func NewService(repo *economy.Repository, quests *quest.Service, publisher Publisher, log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		quests:    quests,
		publisher: publisher,
		log:       log.With().Str("service", "report").Logger(),
	}
}

// Sweep publishes last week's report for every guild that is due. Runs on
// a short cron interval; outside the Monday publish window it is a no-op,
// so most invocations return immediately.
func (s *Service) Sweep(now time.Time) {
	if !InWindow(now) {
		return
	}
	weekKey := clock.PrevWeekKey(now)

	gids, err := s.activeGuilds(weekKey)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list guilds for weekly report")
		return
	}
	for _, gid := range gids {
		if err := s.publishOnce(gid, weekKey); err != nil {
			s.log.Error().Err(err).Str("guild", gid).Msg("Weekly report failed")
		}
	}
}

// InWindow reports whether now falls in the KST Monday 00:05-00:55 publish
// window. The lower bound keeps the sweep clear of the midnight interest
// rollover; the upper bound keeps a stalled sweep from publishing a report
// hours into the new week.
func InWindow(now time.Time) bool {
	kst := now.In(clock.KST)
	if kst.Weekday() != time.Monday || kst.Hour() != 0 {
		return false
	}
	return kst.Minute() >= 5 && kst.Minute() <= 55
}

func (s *Service) publishOnce(gid, weekKey string) error {
	last, err := s.marker(gid)
	if err != nil {
		return err
	}
	if last == weekKey {
		return nil
	}

	report, err := s.Build(gid, weekKey)
	if err != nil {
		return err
	}
	if s.publisher != nil {
		if err := s.publisher.PublishWeeklyReport(gid, report); err != nil {
			return fmt.Errorf("failed to publish weekly report: %w", err)
		}
	}
	if err := s.setMarker(gid, weekKey); err != nil {
		return err
	}

	s.log.Info().Str("guild", gid).Str("week", weekKey).Msg("Weekly report published")
	return nil
}

// Build aggregates one guild's economy log over the given ISO week.
func (s *Service) Build(gid, weekKey string) (Report, error) {
	start, end, err := weekBounds(weekKey)
	if err != nil {
		return Report{}, err
	}

	report := Report{GuildID: gid, WeekKey: weekKey}
	entries, err := s.repo.LogFor(gid, start, end)
	if err != nil {
		return Report{}, err
	}
	for _, e := range entries {
		report.NetDebtDelta += e.DeltaDebt
		switch e.Kind {
		case economy.KindInterest:
			report.Interest += e.DeltaDebt
		case economy.KindIncident:
			report.IncidentDebt += e.DeltaDebt
		case economy.KindRepay:
			report.Repaid += -e.DeltaCredits
		}
	}

	debt, err := s.repo.GuildDebt(gid)
	if err != nil {
		return Report{}, err
	}
	report.DebtNow = debt.Debt

	report.TopRepayers, err = s.topRepayers(gid, start, end)
	if err != nil {
		return Report{}, err
	}

	points, order, err := s.quests.TopWeeklyPoints(gid, weekKey, topN)
	if err != nil {
		return Report{}, err
	}
	for _, uid := range order {
		report.TopPoints = append(report.TopPoints, Entry{UserID: uid, Amount: points[uid]})
	}
	return report, nil
}

func (s *Service) topRepayers(gid string, start, end time.Time) ([]Entry, error) {
	rows, err := s.repo.DB().Query(`
		SELECT user_id, SUM(-delta_credits) AS paid
		FROM aby_economy_log
		WHERE guild_id = ? AND kind = 'repay' AND user_id IS NOT NULL
		  AND created_at >= ? AND created_at < ?
		GROUP BY user_id HAVING paid > 0
		ORDER BY paid DESC, user_id LIMIT ?
	`, gid, start.Unix(), end.Unix(), topN)
	if err != nil {
		return nil, fmt.Errorf("failed to rank repayers: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.UserID, &e.Amount); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// activeGuilds lists guilds that either carry debt or wrote any log row in
// the report week. A guild with a fully repaid debt still gets its report.
func (s *Service) activeGuilds(weekKey string) ([]string, error) {
	start, end, err := weekBounds(weekKey)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.DB().Query(`
		SELECT guild_id FROM aby_guild_debt WHERE debt > 0
		UNION
		SELECT DISTINCT guild_id FROM aby_economy_log
		WHERE guild_id IS NOT NULL AND created_at >= ? AND created_at < ?
	`, start.Unix(), end.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to list report guilds: %w", err)
	}
	defer rows.Close()

	var gids []string
	for rows.Next() {
		var gid string
		if err := rows.Scan(&gid); err != nil {
			return nil, err
		}
		gids = append(gids, gid)
	}
	return gids, rows.Err()
}

func weekBounds(weekKey string) (start, end time.Time, err error) {
	ymds, err := clock.WeekYMDsFromWeekKey(weekKey)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start, err = clock.ParseYMD(ymds[0])
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, start.Add(7 * 24 * time.Hour), nil
}

func (s *Service) marker(gid string) (string, error) {
	var value string
	err := s.repo.DB().QueryRow(
		"SELECT value FROM bot_config WHERE key = ?", markerPrefix+gid).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read report marker: %w", err)
	}
	return value, nil
}

func (s *Service) setMarker(gid, weekKey string) error {
	now := time.Now().Unix()
	_, err := s.repo.DB().Exec(`
		INSERT INTO bot_config (key, value, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, markerPrefix+gid, weekKey, now, now)
	if err != nil {
		return fmt.Errorf("failed to set report marker: %w", err)
	}
	return nil
}
