package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_FreshDatabase(t *testing.T) {
	db := NewTestDB(t)

	// All core tables must exist after migration
	tables := []string{
		"user_settings", "world_state", "bot_config", "daily_rules",
		"rule_suggestions", "daily_meals", "aby_user_economy",
		"aby_guild_debt", "aby_economy_log", "aby_inventory", "aby_buffs",
		"aby_explore_meta", "aby_quest_board", "aby_quest_claims",
		"aby_weekly_points", "aby_incident_state", "aby_incident_log",
		"xp_state", "xp_config", "word_chain_records",
	}
	for _, table := range tables {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s must exist", table)
	}

	version, err := schemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), version)
}

func TestMigrate_Idempotent(t *testing.T) {
	db := NewTestDB(t)

	// Running migrations again against an up-to-date store is a no-op
	require.NoError(t, Migrate(db, zerolog.Nop()))

	version, err := schemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), version)
}

func TestWithTransaction_CommitsOnSuccess(t *testing.T) {
	db := NewTestDB(t)

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec(
			"INSERT INTO bot_config (key, value, created_at, updated_at) VALUES ('k', 'v', 0, 0)")
		return err
	})
	require.NoError(t, err)

	var value string
	require.NoError(t, db.QueryRow("SELECT value FROM bot_config WHERE key='k'").Scan(&value))
	assert.Equal(t, "v", value)
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	db := NewTestDB(t)

	boom := errors.New("boom")
	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			"INSERT INTO bot_config (key, value, created_at, updated_at) VALUES ('k', 'v', 0, 0)"); err != nil {
			return err
		}
		return boom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM bot_config").Scan(&count))
	assert.Equal(t, 0, count, "failed transaction must not leave rows behind")
}

func TestWithTransaction_RecoversPanic(t *testing.T) {
	db := NewTestDB(t)

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		panic("unexpected")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in transaction")
}

func TestHealthCheck(t *testing.T) {
	db := NewTestDB(t)
	assert.NoError(t, db.HealthCheck(context.Background()))
}
