package database

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// migrations is the ordered list of additive schema versions. Entry i
// brings a database at schema_version i to version i+1. Migrations may add
// tables, columns, or indexes; they must never drop, rename, or retype.
var migrations = [][]string{
	// v1: base schema
	{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS user_settings (
			user_id TEXT PRIMARY KEY,
			dm_opt_in INTEGER NOT NULL DEFAULT 0,
			noise_opt_in INTEGER NOT NULL DEFAULT 0,
			stamps_opt_in INTEGER NOT NULL DEFAULT 1,
			stamps INTEGER NOT NULL DEFAULT 0,
			stamps_rewarded INTEGER NOT NULL DEFAULT 0,
			stamp_title TEXT NOT NULL DEFAULT '',
			last_stamp_at INTEGER NOT NULL DEFAULT 0,
			last_reward_at INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS world_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			weather TEXT NOT NULL DEFAULT 'clear',
			weather_changed_at INTEGER NOT NULL DEFAULT 0,
			weather_next_change_at INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS bot_config (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS daily_rules (
			date_ymd TEXT PRIMARY KEY,
			rule_no INTEGER NOT NULL,
			rule_text TEXT NOT NULL,
			posted_channel_id TEXT,
			posted_at INTEGER,
			attempts INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS rule_suggestions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS daily_meals (
			date_ymd TEXT PRIMARY KEY,
			meal_text TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS aby_user_economy (
			user_id TEXT PRIMARY KEY,
			credits INTEGER NOT NULL DEFAULT 0,
			water INTEGER NOT NULL DEFAULT 0,
			last_explore_ymd TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS aby_guild_debt (
			guild_id TEXT PRIMARY KEY,
			debt INTEGER NOT NULL DEFAULT 0 CHECK (debt >= 0),
			interest_rate REAL NOT NULL DEFAULT 0.005,
			last_interest_ymd TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS aby_economy_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			guild_id TEXT,
			user_id TEXT,
			kind TEXT NOT NULL,
			delta_credits INTEGER NOT NULL DEFAULT 0,
			delta_water INTEGER NOT NULL DEFAULT 0,
			delta_debt INTEGER NOT NULL DEFAULT 0,
			memo TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_economy_log_guild_created
			ON aby_economy_log(guild_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_economy_log_user_kind
			ON aby_economy_log(user_id, kind, created_at)`,
		`CREATE TABLE IF NOT EXISTS aby_inventory (
			user_id TEXT NOT NULL,
			item_key TEXT NOT NULL,
			qty INTEGER NOT NULL DEFAULT 0 CHECK (qty >= 0),
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (user_id, item_key)
		)`,
		`CREATE TABLE IF NOT EXISTS aby_buffs (
			user_id TEXT PRIMARY KEY,
			buff_key TEXT NOT NULL DEFAULT '',
			stacks INTEGER NOT NULL DEFAULT 0,
			expires_at INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS aby_explore_meta (
			user_id TEXT NOT NULL,
			date_ymd TEXT NOT NULL,
			weather TEXT NOT NULL,
			success INTEGER NOT NULL,
			credits_delta INTEGER NOT NULL,
			water_delta INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (user_id, date_ymd)
		)`,
		`CREATE TABLE IF NOT EXISTS aby_quest_board (
			guild_id TEXT NOT NULL,
			scope TEXT NOT NULL,
			board_key TEXT NOT NULL,
			quest_no INTEGER NOT NULL,
			quest_type TEXT NOT NULL,
			target_key TEXT NOT NULL DEFAULT '',
			target_qty INTEGER NOT NULL DEFAULT 0,
			reward_points INTEGER NOT NULL DEFAULT 0,
			reward_credits INTEGER NOT NULL DEFAULT 0,
			reward_item_key TEXT NOT NULL DEFAULT '',
			reward_item_qty INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (guild_id, scope, board_key, quest_no)
		)`,
		`CREATE TABLE IF NOT EXISTS aby_quest_claims (
			guild_id TEXT NOT NULL,
			scope TEXT NOT NULL,
			board_key TEXT NOT NULL,
			quest_no INTEGER NOT NULL,
			user_id TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (guild_id, scope, board_key, quest_no, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS aby_weekly_points (
			guild_id TEXT NOT NULL,
			week_key TEXT NOT NULL,
			user_id TEXT NOT NULL,
			points INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (guild_id, week_key, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS aby_incident_state (
			guild_id TEXT PRIMARY KEY,
			next_incident_at INTEGER NOT NULL DEFAULT 0,
			last_incident_at INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS aby_incident_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			guild_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			delta_debt INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS xp_state (
			guild_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			total_xp INTEGER NOT NULL DEFAULT 0,
			level INTEGER NOT NULL DEFAULT 0,
			last_xp_at_ts INTEGER NOT NULL DEFAULT 0,
			last_msg_sig TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (guild_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS xp_config (
			guild_id TEXT PRIMARY KEY,
			config_json TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS word_chain_records (
			user_id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL DEFAULT '',
			wins INTEGER NOT NULL DEFAULT 0,
			losses INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
	},
	// v2: explore meta lookup by week window
	{
		`CREATE INDEX IF NOT EXISTS idx_explore_meta_user_weather
			ON aby_explore_meta(user_id, weather, success)`,
	},
}

// Migrate creates missing tables and applies additive migrations keyed by
// the integer schema_version stored in the meta table. A failure here is
// / fatal at startup: the process must not run against a half-migrated store.
func Migrate(db *DB, log zerolog.Logger) error {
	// The meta table must exist before we can read the version from it.
	if _, err := db.Exec(migrations[0][0]); err != nil {
		return fmt.Errorf("failed to create meta table: %w", err)
	}

	version, err := schemaVersion(db)
	if err != nil {
		return err
	}

	for v := version; v < len(migrations); v++ {
		target := v + 1
		err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
			for _, stmt := range migrations[v] {
				if _, err := tx.Exec(stmt); err != nil {
					return fmt.Errorf("migration to v%d failed: %w", target, err)
				}
			}
			_, err := tx.Exec(`
				INSERT INTO meta (key, value) VALUES ('schema_version', ?)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value
			`, fmt.Sprintf("%d", target))
			return err
		})
		if err != nil {
			return err
		}
		log.Info().Int("from", v).Int("to", target).Msg("Applied schema migration")
	}

	return nil
}

// schemaVersion reads the current schema version, defaulting to 0 for a
// fresh database.
func schemaVersion(db *DB) (int, error) {
	var raw string
	err := db.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&raw)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	var v int
	if _, err := fmt.Sscanf(raw, "%d", &v); err != nil {
		return 0, fmt.Errorf("malformed schema version %q: %w", raw, err)
	}
	return v, nil
}
