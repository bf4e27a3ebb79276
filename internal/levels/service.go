package levels

import (
	"database/sql"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/abydos/internal/database"
)

// LevelUp describes one or more level crossings caused by a single award.
type LevelUp struct {
	GuildID     string
	UserID      string
	BeforeLevel int64
	AfterLevel  int64
	XPInto      int64
	XPToNext    int64
	TotalXP     int64
}

// ChatMessage is the shaped view of an inbound chat message.
type ChatMessage struct {
	GuildID       string
	ChannelID     string
	UserID        string
	Content       string
	IsBot         bool
	HasAttachment bool
}

// Service owns xp_state and xp_config.
type Service struct {
	db  *sql.DB
	log zerolog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewService creates the XP service.
func NewService(db *sql.DB, log zerolog.Logger) *Service {
	return &Service{
		db:  db,
		log: log.With().Str("service", "levels").Logger(),
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// HandleChat shapes a chat message into an XP award. Returns a LevelUp
// when the award crossed at least one level, nil otherwise.
func (s *Service) HandleChat(msg ChatMessage, commandPrefix string, now time.Time) (*LevelUp, error) {
	if msg.IsBot {
		return nil, nil
	}
	cfg, err := s.Config(msg.GuildID)
	if err != nil {
		return nil, err
	}
	if cfg.ChannelIgnored(msg.ChannelID) {
		return nil, nil
	}
	if commandPrefix != "" && len(msg.Content) >= len(commandPrefix) && msg.Content[:len(commandPrefix)] == commandPrefix {
		return nil, nil
	}

	effective := EffectiveChars(msg.Content)
	if effective < cfg.MinEffectiveChars {
		return nil, nil
	}

	sig := Signature(msg.Content)
	xp := s.chatXP(cfg, msg, effective)
	return s.award(msg.GuildID, msg.UserID, xp, sig, cfg.RepeatWindowSec, now)
}

func (s *Service) chatXP(cfg Config, msg ChatMessage, effective int64) int64 {
	s.mu.Lock()
	xp := cfg.ChatMin + s.rng.Int63n(cfg.ChatMax-cfg.ChatMin+1)
	s.mu.Unlock()

	if cfg.LengthStep > 0 {
		bonus := effective / cfg.LengthStep
		if bonus > cfg.LengthCap {
			bonus = cfg.LengthCap
		}
		xp += bonus
	}
	if msg.HasAttachment {
		xp += cfg.AttachBonus
	}
	if HasLink(msg.Content) {
		xp += cfg.LinkBonus
	}
	if xp > cfg.TotalCap {
		xp = cfg.TotalCap
	}
	return xp
}

// HandleCommand awards tier XP for a completed command.
func (s *Service) HandleCommand(gid, uid, tier string, now time.Time) (*LevelUp, error) {
	cfg, err := s.Config(gid)
	if err != nil {
		return nil, err
	}
	xp, ok := cfg.CommandXP[tier]
	if !ok {
		xp = cfg.CommandXP[TierDefault]
	}
	if xp <= 0 {
		return nil, nil
	}
	return s.award(gid, uid, xp, "", 0, now)
}

// HandleInteraction awards the flat component or modal XP.
func (s *Service) HandleInteraction(gid, uid string, modal bool, now time.Time) (*LevelUp, error) {
	cfg, err := s.Config(gid)
	if err != nil {
		return nil, err
	}
	xp := cfg.ComponentXP
	if modal {
		xp = cfg.ModalXP
	}
	if xp <= 0 {
		return nil, nil
	}
	return s.award(gid, uid, xp, "", 0, now)
}

// award applies xp to the user's state in one transaction. A non-empty sig
// matching the stored one inside the repeat window suppresses the award to
// zero; the sig and timestamp still roll forward, so sustained spam stays
// suppressed.
func (s *Service) award(gid, uid string, xp int64, sig string, repeatWindowSec int64, now time.Time) (*LevelUp, error) {
	var levelUp *LevelUp
	err := database.WithTransaction(s.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			INSERT INTO xp_state (guild_id, user_id, created_at, updated_at)
			VALUES (?, ?, ?, ?) ON CONFLICT(guild_id, user_id) DO NOTHING
		`, gid, uid, now.Unix(), now.Unix()); err != nil {
			return fmt.Errorf("failed to init xp state: %w", err)
		}

		var (
			total, level, lastAt int64
			lastSig              string
		)
		err := tx.QueryRow(`
			SELECT total_xp, level, last_xp_at_ts, last_msg_sig
			FROM xp_state WHERE guild_id = ? AND user_id = ?
		`, gid, uid).Scan(&total, &level, &lastAt, &lastSig)
		if err != nil {
			return fmt.Errorf("failed to read xp state: %w", err)
		}

		if sig != "" && sig == lastSig && now.Unix()-lastAt < repeatWindowSec {
			xp = 0
		}

		total += xp
		newLevel, into := LevelForTotal(total)
		if newLevel > level {
			levelUp = &LevelUp{
				GuildID:     gid,
				UserID:      uid,
				BeforeLevel: level,
				AfterLevel:  newLevel,
				XPInto:      into,
				XPToNext:    XPToNext(newLevel),
				TotalXP:     total,
			}
		}

		storedSig := lastSig
		if sig != "" {
			storedSig = sig
		}
		if _, err := tx.Exec(`
			UPDATE xp_state SET total_xp = ?, level = ?, last_xp_at_ts = ?, last_msg_sig = ?, updated_at = ?
			WHERE guild_id = ? AND user_id = ?
		`, total, newLevel, now.Unix(), storedSig, now.Unix(), gid, uid); err != nil {
			return fmt.Errorf("failed to update xp state: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if levelUp != nil {
		s.log.Info().
			Str("guild", gid).Str("user", uid).
			Int64("before", levelUp.BeforeLevel).Int64("after", levelUp.AfterLevel).
			Msg("Level up")
	}
	return levelUp, nil
}

// State returns a user's current level standing.
func (s *Service) State(gid, uid string) (total, level, into, toNext int64, err error) {
	err = s.db.QueryRow(`
		SELECT total_xp, level FROM xp_state WHERE guild_id = ? AND user_id = ?
	`, gid, uid).Scan(&total, &level)
	if err == sql.ErrNoRows {
		return 0, 0, 0, XPToNext(0), nil
	}
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("failed to read xp state: %w", err)
	}
	_, into = LevelForTotal(total)
	return total, level, into, XPToNext(level), nil
}

// Standing is one leaderboard row.
type Standing struct {
	UserID  string
	TotalXP int64
	Level   int64
}

// Top returns the guild's highest lifetime totals.
func (s *Service) Top(gid string, limit int) ([]Standing, error) {
	rows, err := s.db.Query(`
		SELECT user_id, total_xp, level FROM xp_state
		WHERE guild_id = ? ORDER BY total_xp DESC, user_id LIMIT ?
	`, gid, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read xp leaderboard: %w", err)
	}
	defer rows.Close()

	var out []Standing
	for rows.Next() {
		var entry Standing
		if err := rows.Scan(&entry.UserID, &entry.TotalXP, &entry.Level); err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
