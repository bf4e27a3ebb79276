package incident

import (
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/abydos/internal/database"
	"github.com/aristath/abydos/internal/economy"
)

func newTestScheduler(t *testing.T) (*database.DB, *economy.Repository, *Scheduler) {
	t.Helper()
	db := database.NewTestDB(t)
	repo := economy.NewRepository(db.Conn(), zerolog.Nop())
	debt := economy.NewDebtEngine(repo, zerolog.Nop())
	return db, repo, NewScheduler(repo, debt, nil, zerolog.Nop())
}

func seedDebt(t *testing.T, db *database.DB, gid string, debt int64) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO aby_guild_debt (guild_id, debt, interest_rate, last_interest_ymd, created_at, updated_at)
		VALUES (?, ?, 0.005, '', 0, 0)
	`, gid, debt)
	require.NoError(t, err)
}

func TestPressureStage_Monotonic(t *testing.T) {
	debts := []int64{0, 50_000, 100_000, 1_000_000, 5_000_000, 10_000_000, 20_000_000, 50_000_000}
	prev := -1
	for _, d := range debts {
		stage := PressureStage(d)
		assert.GreaterOrEqual(t, stage, prev, "stage must not decrease with debt (%d)", d)
		prev = stage
	}
	assert.GreaterOrEqual(t, PressureStage(10_000_000), 4)
}

func TestBadEventProbability_Capped(t *testing.T) {
	assert.InDelta(t, 0.45, BadEventProbability(0), 1e-9)
	assert.InDelta(t, 0.77, BadEventProbability(4), 1e-9)
	assert.InDelta(t, 0.85, BadEventProbability(6), 1e-9)
	assert.InDelta(t, 0.85, BadEventProbability(20), 1e-9, "probability is capped at 0.85")
}

func TestNextWindow_ShrinksWithPressure(t *testing.T) {
	min6, max6 := NextWindow(6)
	min4, max4 := NextWindow(4)
	min2, max2 := NextWindow(2)
	min0, max0 := NextWindow(0)

	assert.Equal(t, time.Hour, min6)
	assert.Equal(t, 3*time.Hour, max6)
	assert.Equal(t, 90*time.Minute, min4)
	assert.Equal(t, 4*time.Hour, max4)
	assert.Equal(t, 2*time.Hour, min2)
	assert.Equal(t, 6*time.Hour, max2)
	assert.Equal(t, 4*time.Hour, min0)
	assert.Equal(t, 10*time.Hour, max0)
}

func TestDraw_ScalesWithStage(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		event, delta := Draw(rng, 4)
		if event.Kind == "bad" {
			assert.Positive(t, delta)
		} else {
			assert.Negative(t, delta)
		}
	}
}

func TestTickGuild_FiresWhenDue(t *testing.T) {
	db, _, sched := newTestScheduler(t)
	seedDebt(t, db, "G1", 10_000_000) // stage >= 4

	now := time.Now()
	record, err := sched.TickGuild("G1", now)
	require.NoError(t, err)

	// First touch creates the state row with zero due time, so the
	// incident fires immediately.
	require.NotNil(t, record)
	assert.NotEmpty(t, record.Title)

	// Incident log row appended
	records, err := sched.RecentIncidents("G1", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, record.Title, records[0].Title)

	// Economy log row appended with matching delta
	var delta int64
	require.NoError(t, db.QueryRow(
		"SELECT delta_debt FROM aby_economy_log WHERE kind='incident'").Scan(&delta))
	assert.Equal(t, record.DeltaDebt, delta)

	// Next fire scheduled inside the stage window [1.5h, 4h]
	var nextTS int64
	require.NoError(t, db.QueryRow(
		"SELECT next_incident_at FROM aby_incident_state WHERE guild_id='G1'").Scan(&nextTS))
	gap := time.Unix(nextTS, 0).Sub(now)
	assert.GreaterOrEqual(t, gap, 90*time.Minute)
	assert.LessOrEqual(t, gap, 4*time.Hour)
}

func TestTickGuild_NotDueIsNoop(t *testing.T) {
	db, _, sched := newTestScheduler(t)
	seedDebt(t, db, "G1", 1_000_000)

	now := time.Now()
	_, err := db.Exec(`
		INSERT INTO aby_incident_state (guild_id, next_incident_at, last_incident_at, created_at, updated_at)
		VALUES ('G1', ?, ?, 0, 0)
	`, now.Add(time.Hour).Unix(), now.Unix())
	require.NoError(t, err)

	record, err := sched.TickGuild("G1", now)
	require.NoError(t, err)
	assert.Nil(t, record)

	records, err := sched.RecentIncidents("G1", 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestTickGuild_DebtNeverGoesNegative(t *testing.T) {
	db, repo, sched := newTestScheduler(t)
	// Tiny debt: a mild event's negative delta would overshoot zero.
	seedDebt(t, db, "G1", 1000)

	// Drive many fresh guilds; every applied delta must keep debt >= 0.
	for i := 0; i < 50; i++ {
		record, err := sched.TickGuild("G1", time.Now().Add(time.Duration(i)*24*time.Hour))
		require.NoError(t, err)
		if record == nil {
			continue
		}
		debt, err := repo.GuildDebt("G1")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, debt.Debt, int64(0))
	}
}

func TestTickAll_SkipsDebtFreeGuilds(t *testing.T) {
	db, _, sched := newTestScheduler(t)
	seedDebt(t, db, "G_FREE", 0)

	sched.TickAll(time.Now())

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM aby_incident_log").Scan(&n))
	assert.Zero(t, n)
}
