package economy

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/abydos/internal/database"
)

func newTestEnv(t *testing.T) (*database.DB, *Repository) {
	t.Helper()
	db := database.NewTestDB(t)
	return db, NewRepository(db.Conn(), zerolog.Nop())
}

func setDebt(t *testing.T, db *database.DB, gid string, debt int64, rate float64, lastYMD string) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO aby_guild_debt (guild_id, debt, interest_rate, last_interest_ymd, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, 0)
		ON CONFLICT(guild_id) DO UPDATE SET
			debt = excluded.debt,
			interest_rate = excluded.interest_rate,
			last_interest_ymd = excluded.last_interest_ymd
	`, gid, debt, rate, lastYMD)
	require.NoError(t, err)
}

func setCredits(t *testing.T, db *database.DB, uid string, credits int64) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO aby_user_economy (user_id, credits, created_at, updated_at)
		VALUES (?, ?, 0, 0)
		ON CONFLICT(user_id) DO UPDATE SET credits = excluded.credits
	`, uid, credits)
	require.NoError(t, err)
}

func countLogRows(t *testing.T, db *database.DB, kind string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(
		"SELECT COUNT(*) FROM aby_economy_log WHERE kind = ?", kind).Scan(&n))
	return n
}

func TestApplyInterest_TwoDaysCompound(t *testing.T) {
	db, repo := newTestEnv(t)
	engine := NewDebtEngine(repo, zerolog.Nop())

	// debt=1,000,000 rate=0.5%/day, two days behind
	setDebt(t, db, "G1", 1_000_000, 0.005, "2025-01-04")

	require.NoError(t, engine.ApplyInterestUpTo("G1", "2025-01-06"))

	debt, err := repo.GuildDebt("G1")
	require.NoError(t, err)
	// 1,000,000 -> 1,005,000 -> 1,010,025 (ceiling each day)
	assert.Equal(t, int64(1_010_025), debt.Debt)
	assert.Equal(t, "2025-01-06", debt.LastInterestYMD)
	assert.Equal(t, 2, countLogRows(t, db, "interest"))
}

func TestApplyInterest_IdempotentPerDay(t *testing.T) {
	db, repo := newTestEnv(t)
	engine := NewDebtEngine(repo, zerolog.Nop())

	setDebt(t, db, "G1", 1_000_000, 0.005, "2025-01-04")

	require.NoError(t, engine.ApplyInterestUpTo("G1", "2025-01-06"))
	require.NoError(t, engine.ApplyInterestUpTo("G1", "2025-01-06"))
	require.NoError(t, engine.ApplyInterestUpTo("G1", "2025-01-06"))

	debt, err := repo.GuildDebt("G1")
	require.NoError(t, err)
	assert.Equal(t, int64(1_010_025), debt.Debt, "repeat applications must be no-ops")
	assert.Equal(t, 2, countLogRows(t, db, "interest"), "no duplicate log rows")
}

func TestApplyInterest_FreshGuildOnlyMovesCursor(t *testing.T) {
	db, repo := newTestEnv(t)
	engine := NewDebtEngine(repo, zerolog.Nop())

	setDebt(t, db, "G1", 500_000, 0.005, "")
	require.NoError(t, engine.ApplyInterestUpTo("G1", "2025-01-06"))

	debt, err := repo.GuildDebt("G1")
	require.NoError(t, err)
	assert.Equal(t, int64(500_000), debt.Debt, "no interest without a prior cursor")
	assert.Equal(t, "2025-01-06", debt.LastInterestYMD)
	assert.Equal(t, 0, countLogRows(t, db, "interest"))
}

func TestRepay_ClampsToDebt(t *testing.T) {
	db, repo := newTestEnv(t)
	engine := NewDebtEngine(repo, zerolog.Nop())

	setDebt(t, db, "G1", 5000, 0.005, "2025-01-06")
	setCredits(t, db, "U1", 8000)

	// "all"
	result, err := engine.Repay("G1", "U1", -1, "2025-01-06")
	require.NoError(t, err)
	assert.Equal(t, ReasonNone, result.Reason)
	assert.Equal(t, int64(5000), result.Paid)
	assert.Equal(t, int64(0), result.NewDebt)
	assert.Equal(t, int64(3000), result.CreditsAfter)

	// Log row carries matching deltas
	var dCredits, dDebt int64
	require.NoError(t, db.QueryRow(
		"SELECT delta_credits, delta_debt FROM aby_economy_log WHERE kind='repay'").
		Scan(&dCredits, &dDebt))
	assert.Equal(t, int64(-5000), dCredits)
	assert.Equal(t, int64(-5000), dDebt)
}

func TestRepay_ClampsToCredits(t *testing.T) {
	db, repo := newTestEnv(t)
	engine := NewDebtEngine(repo, zerolog.Nop())

	setDebt(t, db, "G1", 50_000, 0.005, "2025-01-06")
	setCredits(t, db, "U1", 2000)

	result, err := engine.Repay("G1", "U1", 10_000, "2025-01-06")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), result.Paid)
	assert.Equal(t, int64(48_000), result.NewDebt)
	assert.Equal(t, int64(0), result.CreditsAfter)
}

func TestRepay_TypedReasons(t *testing.T) {
	db, repo := newTestEnv(t)
	engine := NewDebtEngine(repo, zerolog.Nop())

	// No debt at all
	setCredits(t, db, "U1", 1000)
	result, err := engine.Repay("G1", "U1", 500, "2025-01-06")
	require.NoError(t, err)
	assert.Equal(t, ReasonNoDebt, result.Reason)

	// Empty wallet
	setDebt(t, db, "G1", 1000, 0.005, "2025-01-06")
	setCredits(t, db, "U2", 0)
	result, err = engine.Repay("G1", "U2", 500, "2025-01-06")
	require.NoError(t, err)
	assert.Equal(t, ReasonEmptyWallet, result.Reason)

	// Zero amount
	result, err = engine.Repay("G1", "U1", 0, "2025-01-06")
	require.NoError(t, err)
	assert.Equal(t, ReasonInvalidAmount, result.Reason)

	// Failed repayments must not write log rows
	assert.Equal(t, 0, countLogRows(t, db, "repay"))
}
