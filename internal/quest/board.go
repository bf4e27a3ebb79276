// Package quest materializes deterministic quest boards per guild and
// handles at-most-once claims plus the weekly points ledger.
package quest

import (
	"database/sql"
	"fmt"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/abydos/internal/database"
	"github.com/aristath/abydos/internal/economy"
)

// Scope distinguishes daily and weekly boards.
type Scope string

const (
	ScopeDaily  Scope = "daily"
	ScopeWeekly Scope = "weekly"
)

// Quest types. Each type has its own claim evaluator.
const (
	TypeDeliverItem      = "deliver_item"
	TypeRepayTotal       = "repay_total"
	TypeExploreDone      = "explore_done"
	TypeExploreSandstorm = "explore_sandstorm_success"
)

// Quest is one materialized board entry.
type Quest struct {
	GuildID       string
	Scope         Scope
	BoardKey      string
	QuestNo       int
	Type          string
	TargetKey     string
	TargetQty     int64
	RewardPoints  int64
	RewardCredits int64
	RewardItemKey string
	RewardItemQty int64
}

// Service owns the quest tables.
type Service struct {
	repo *economy.Repository
	log  zerolog.Logger
}

// NewService creates a new quest service.
func NewService(repo *economy.Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("service", "quest").Logger(),
	}
}

// EnsureDailyBoard materializes the board for (gid, ymd) if it does not
// exist yet and returns it. Generation is deterministic: the PRNG is
// seeded from the guild and board key only, so every process that ever
// generates this board produces the same quests.
func (s *Service) EnsureDailyBoard(gid, ymd string) ([]Quest, error) {
	return s.ensureBoard(gid, ScopeDaily, ymd)
}

// EnsureWeeklyBoard materializes the board for (gid, weekKey) if needed.
func (s *Service) EnsureWeeklyBoard(gid, weekKey string) ([]Quest, error) {
	return s.ensureBoard(gid, ScopeWeekly, weekKey)
}

func (s *Service) ensureBoard(gid string, scope Scope, boardKey string) ([]Quest, error) {
	existing, err := s.Board(gid, scope, boardKey)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return existing, nil
	}

	quests := generate(gid, scope, boardKey)
	err = database.WithTransaction(s.repo.DB(), func(tx *sql.Tx) error {
		now := time.Now().Unix()
		for _, q := range quests {
			// INSERT OR IGNORE: a concurrent ensure of the same board
			// writes identical rows, so the race is harmless.
			if _, err := tx.Exec(`
				INSERT OR IGNORE INTO aby_quest_board
					(guild_id, scope, board_key, quest_no, quest_type, target_key, target_qty,
					 reward_points, reward_credits, reward_item_key, reward_item_qty, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, q.GuildID, string(q.Scope), q.BoardKey, q.QuestNo, q.Type, q.TargetKey, q.TargetQty,
				q.RewardPoints, q.RewardCredits, q.RewardItemKey, q.RewardItemQty, now); err != nil {
				return fmt.Errorf("failed to insert quest: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("guild", gid).Str("scope", string(scope)).Str("board", boardKey).Msg("Quest board materialized")
	return s.Board(gid, scope, boardKey)
}

// Board returns the materialized quests for a board, ordered by quest_no.
func (s *Service) Board(gid string, scope Scope, boardKey string) ([]Quest, error) {
	rows, err := s.repo.DB().Query(`
		SELECT guild_id, scope, board_key, quest_no, quest_type, target_key, target_qty,
		       reward_points, reward_credits, reward_item_key, reward_item_qty
		FROM aby_quest_board
		WHERE guild_id = ? AND scope = ? AND board_key = ?
		ORDER BY quest_no
	`, gid, string(scope), boardKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read quest board: %w", err)
	}
	defer rows.Close()

	var quests []Quest
	for rows.Next() {
		var (
			q        Quest
			scopeStr string
		)
		if err := rows.Scan(&q.GuildID, &scopeStr, &q.BoardKey, &q.QuestNo, &q.Type,
			&q.TargetKey, &q.TargetQty, &q.RewardPoints, &q.RewardCredits,
			&q.RewardItemKey, &q.RewardItemQty); err != nil {
			return nil, err
		}
		q.Scope = Scope(scopeStr)
		quests = append(quests, q)
	}
	return quests, rows.Err()
}

// generate builds the quest list for a board from a PRNG seeded by the
// board identity.
func generate(gid string, scope Scope, boardKey string) []Quest {
	rng := rand.New(rand.NewSource(boardSeed(gid, scope, boardKey)))

	base := Quest{GuildID: gid, Scope: scope, BoardKey: boardKey}
	var quests []Quest

	if scope == ScopeDaily {
		// 1: explore today
		q := base
		q.QuestNo = 1
		q.Type = TypeExploreDone
		q.RewardPoints = 2
		q.RewardCredits = 1500 + rng.Int63n(4)*500
		quests = append(quests, q)

		// 2: deliver scrap
		q = base
		q.QuestNo = 2
		q.Type = TypeDeliverItem
		q.TargetKey = "scrap"
		q.TargetQty = 3 + rng.Int63n(5) // 3..7
		q.RewardPoints = 3
		q.RewardCredits = 1000 + q.TargetQty*400
		quests = append(quests, q)

		// 3: repay today
		q = base
		q.QuestNo = 3
		q.Type = TypeRepayTotal
		q.TargetQty = (2 + rng.Int63n(9)) * 1000 // 2k..10k
		q.RewardPoints = 3
		q.RewardCredits = q.TargetQty / 2
		quests = append(quests, q)

		return quests
	}

	// Weekly board
	q := base
	q.QuestNo = 1
	q.Type = TypeExploreSandstorm
	q.RewardPoints = 8
	q.RewardCredits = 10_000
	q.RewardItemKey = "crystal"
	q.RewardItemQty = 1
	quests = append(quests, q)

	q = base
	q.QuestNo = 2
	q.Type = TypeDeliverItem
	q.TargetKey = "scrap"
	q.TargetQty = 15 + rng.Int63n(11) // 15..25
	q.RewardPoints = 6
	q.RewardCredits = q.TargetQty * 600
	quests = append(quests, q)

	q = base
	q.QuestNo = 3
	q.Type = TypeRepayTotal
	q.TargetQty = (30 + rng.Int63n(71)) * 1000 // 30k..100k
	q.RewardPoints = 10
	q.RewardCredits = q.TargetQty / 4
	quests = append(quests, q)

	q = base
	q.QuestNo = 4
	q.Type = TypeDeliverItem
	q.TargetKey = "crystal"
	q.TargetQty = 1 + rng.Int63n(2) // 1..2
	q.RewardPoints = 7
	q.RewardCredits = q.TargetQty * 8000
	quests = append(quests, q)

	return quests
}

// boardSeed hashes the board identity into a stable PRNG seed.
func boardSeed(gid string, scope Scope, boardKey string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(gid))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(scope))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(boardKey))
	return int64(h.Sum64())
}
