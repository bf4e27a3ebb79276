// Package levels implements the per-guild XP engine: chat shaping with
// repeat suppression, command and interaction awards, and the level curve.
package levels

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Command tiers. The bot layer classifies each command module into a tier;
// the engine only maps tiers to XP.
const (
	TierSystem  = "system"
	TierGame    = "game"
	TierChat    = "chat"
	TierSocial  = "social"
	TierDefault = "default"
)

// Config is one guild's tunable XP parameters, stored as a JSON blob.
type Config struct {
	ChatMin           int64 `json:"chat_min"`
	ChatMax           int64 `json:"chat_max"`
	LengthStep        int64 `json:"length_step"` // +1 XP per step effective chars
	LengthCap         int64 `json:"length_cap"`
	AttachBonus       int64 `json:"attach_bonus"`
	LinkBonus         int64 `json:"link_bonus"`
	MinEffectiveChars int64 `json:"min_effective_chars"`
	RepeatWindowSec   int64 `json:"repeat_window_sec"`
	TotalCap          int64 `json:"total_cap"` // per-event clamp

	CommandXP   map[string]int64 `json:"command_xp"` // tier -> xp
	ComponentXP int64            `json:"component_xp"`
	ModalXP     int64            `json:"modal_xp"`

	AnnounceStyle   string   `json:"announce_style"` // text | banner
	AnnounceChannel string   `json:"announce_channel"`
	IgnoredChannels []string `json:"ignored_channels"`
}

// DefaultConfig returns the parameters a guild starts with.
func DefaultConfig() Config {
	return Config{
		ChatMin:           8,
		ChatMax:           14,
		LengthStep:        20,
		LengthCap:         6,
		AttachBonus:       4,
		LinkBonus:         2,
		MinEffectiveChars: 3,
		RepeatWindowSec:   60,
		TotalCap:          25,
		CommandXP: map[string]int64{
			TierSystem:  0,
			TierGame:    6,
			TierChat:    3,
			TierSocial:  4,
			TierDefault: 2,
		},
		ComponentXP:   1,
		ModalXP:       2,
		AnnounceStyle: "text",
	}
}

// ChannelIgnored reports whether chat in the channel earns nothing.
func (c Config) ChannelIgnored(cid string) bool {
	for _, ignored := range c.IgnoredChannels {
		if ignored == cid {
			return true
		}
	}
	return false
}

// Config loads a guild's XP parameters, falling back to defaults when the
// guild has no row or the stored blob no longer parses.
func (s *Service) Config(gid string) (Config, error) {
	var blob string
	err := s.db.QueryRow(
		"SELECT config_json FROM xp_config WHERE guild_id = ?", gid).Scan(&blob)
	if err == sql.ErrNoRows {
		return DefaultConfig(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read xp config: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal([]byte(blob), &cfg); err != nil {
		s.log.Warn().Err(err).Str("guild", gid).Msg("Stored XP config unparseable, using defaults")
		return DefaultConfig(), nil
	}
	return cfg, nil
}

// SetConfig stores a guild's XP parameters.
func (s *Service) SetConfig(gid string, cfg Config) error {
	blob, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode xp config: %w", err)
	}
	now := time.Now().Unix()
	_, err = s.db.Exec(`
		INSERT INTO xp_config (guild_id, config_json, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET config_json = excluded.config_json, updated_at = excluded.updated_at
	`, gid, string(blob), now, now)
	if err != nil {
		return fmt.Errorf("failed to store xp config: %w", err)
	}
	return nil
}
