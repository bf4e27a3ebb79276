package quest

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/abydos/internal/clock"
	"github.com/aristath/abydos/internal/database"
	"github.com/aristath/abydos/internal/economy"
)

// Reason is a typed claim failure code.
type Reason string

const (
	ReasonNone    Reason = ""
	ReasonClaimed Reason = "claimed"
	ReasonItems   Reason = "items"
	ReasonRepay   Reason = "repay"
	ReasonExplore Reason = "explore"
	ReasonUnknown Reason = "unknown"
)

// ClaimResult reports a claim outcome.
type ClaimResult struct {
	Reason Reason // empty on success
	Quest  Quest
	Points int64 // weekly points granted
}

// Claim attempts to claim one quest for a user. The claim marker makes the
// operation at-most-once per (guild, scope, board, quest, user) for all
// time; rewards, marker, and weekly points land in a single transaction.
func (s *Service) Claim(gid, uid string, scope Scope, boardKey string, questNo int, today string) (ClaimResult, error) {
	quest, err := s.find(gid, scope, boardKey, questNo)
	if err != nil {
		return ClaimResult{}, err
	}
	if quest == nil {
		return ClaimResult{Reason: ReasonUnknown}, nil
	}

	claimed, err := s.alreadyClaimed(gid, uid, scope, boardKey, questNo)
	if err != nil {
		return ClaimResult{}, err
	}
	if claimed {
		return ClaimResult{Reason: ReasonClaimed, Quest: *quest}, nil
	}

	// Non-inventory predicates are evaluated before the transaction; they
	// only read provenance rows. deliver_item re-checks inside the
	// transaction because it must deduct.
	switch quest.Type {
	case TypeRepayTotal:
		window, err := s.repayWindow(scope, boardKey)
		if err != nil {
			return ClaimResult{}, err
		}
		total, err := s.repo.RepaidTotalIn(gid, uid, window)
		if err != nil {
			return ClaimResult{}, err
		}
		if total < quest.TargetQty {
			return ClaimResult{Reason: ReasonRepay, Quest: *quest}, nil
		}
	case TypeExploreDone:
		meta, err := s.repo.ExploreMetaFor(uid, today)
		if err != nil {
			return ClaimResult{}, err
		}
		if meta == nil {
			return ClaimResult{Reason: ReasonExplore, Quest: *quest}, nil
		}
	case TypeExploreSandstorm:
		weekKey, err := clock.WeekKeyFromYMD(today)
		if err != nil {
			return ClaimResult{}, err
		}
		ymds, err := clock.WeekYMDsFromWeekKey(weekKey)
		if err != nil {
			return ClaimResult{}, err
		}
		ok, err := s.repo.HasSandstormSuccess(uid, ymds)
		if err != nil {
			return ClaimResult{}, err
		}
		if !ok {
			return ClaimResult{Reason: ReasonExplore, Quest: *quest}, nil
		}
	}

	weekKey, err := clock.WeekKeyFromYMD(today)
	if err != nil {
		return ClaimResult{}, err
	}

	result := ClaimResult{Quest: *quest, Points: quest.RewardPoints}
	err = database.WithTransaction(s.repo.DB(), func(tx *sql.Tx) error {
		now := time.Now()

		// The claim marker's primary key is the idempotence guard: a
		// concurrent duplicate claim loses here and rolls back everything.
		res, err := tx.Exec(`
			INSERT OR IGNORE INTO aby_quest_claims
				(guild_id, scope, board_key, quest_no, user_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, gid, string(scope), boardKey, questNo, uid, now.Unix())
		if err != nil {
			return fmt.Errorf("failed to insert claim marker: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			result = ClaimResult{Reason: ReasonClaimed, Quest: *quest}
			return nil
		}

		if quest.Type == TypeDeliverItem {
			have, err := economy.ItemQtyTx(tx, uid, quest.TargetKey)
			if err != nil {
				return err
			}
			if have < quest.TargetQty {
				result = ClaimResult{Reason: ReasonItems, Quest: *quest}
				return errRollback
			}
			if err := economy.RemoveItemTx(tx, uid, quest.TargetKey, quest.TargetQty); err != nil {
				return err
			}
		}

		if quest.RewardCredits != 0 {
			if err := economy.AddCreditsTx(tx, uid, quest.RewardCredits); err != nil {
				return err
			}
		}
		if quest.RewardItemKey != "" && quest.RewardItemQty > 0 {
			if err := economy.AddItemTx(tx, uid, quest.RewardItemKey, quest.RewardItemQty); err != nil {
				return err
			}
		}
		if err := s.addWeeklyPoints(tx, gid, weekKey, uid, quest.RewardPoints); err != nil {
			return err
		}
		return economy.LogTx(tx, gid, uid, economy.KindQuest, quest.RewardCredits, 0, 0,
			fmt.Sprintf("%s/%s#%d", scope, boardKey, questNo), now)
	})
	// WithTransaction wraps the callback's error, so unwrap to spot the
	// deliberate precondition abort.
	if errors.Is(err, errRollback) {
		return result, nil
	}
	if err != nil {
		return ClaimResult{}, err
	}

	if result.Reason == ReasonNone {
		s.log.Info().
			Str("guild", gid).Str("user", uid).
			Str("board", boardKey).Int("quest", questNo).
			Msg("Quest claimed")
	}
	return result, nil
}

// errRollback aborts a claim transaction for a precondition failure that
// was only detectable inside it.
var errRollback = errors.New("claim precondition failed")

// Progress describes one quest's completion state for a user.
type Progress struct {
	Quest   Quest
	Claimed bool
	Current int64 // progress toward TargetQty, where meaningful
	Ready   bool  // predicate currently satisfied
}

// BoardProgress evaluates every quest on a board for one user. Used by the
// quests command to render the board.
func (s *Service) BoardProgress(gid, uid string, scope Scope, boardKey, today string) ([]Progress, error) {
	quests, err := s.Board(gid, scope, boardKey)
	if err != nil {
		return nil, err
	}

	progress := make([]Progress, 0, len(quests))
	for _, q := range quests {
		p := Progress{Quest: q}
		p.Claimed, err = s.alreadyClaimed(gid, uid, scope, boardKey, q.QuestNo)
		if err != nil {
			return nil, err
		}

		switch q.Type {
		case TypeDeliverItem:
			p.Current, err = s.repo.ItemQty(uid, q.TargetKey)
			if err != nil {
				return nil, err
			}
			p.Ready = p.Current >= q.TargetQty
		case TypeRepayTotal:
			window, err := s.repayWindow(scope, boardKey)
			if err != nil {
				return nil, err
			}
			p.Current, err = s.repo.RepaidTotalIn(gid, uid, window)
			if err != nil {
				return nil, err
			}
			p.Ready = p.Current >= q.TargetQty
		case TypeExploreDone:
			meta, err := s.repo.ExploreMetaFor(uid, today)
			if err != nil {
				return nil, err
			}
			if meta != nil {
				p.Current, p.Ready = 1, true
			}
		case TypeExploreSandstorm:
			weekKey, err := clock.WeekKeyFromYMD(today)
			if err != nil {
				return nil, err
			}
			ymds, err := clock.WeekYMDsFromWeekKey(weekKey)
			if err != nil {
				return nil, err
			}
			ok, err := s.repo.HasSandstormSuccess(uid, ymds)
			if err != nil {
				return nil, err
			}
			if ok {
				p.Current, p.Ready = 1, true
			}
		}
		if p.Claimed {
			p.Ready = false
		}
		progress = append(progress, p)
	}
	return progress, nil
}

// WeeklyPoints returns a user's points for a week.
func (s *Service) WeeklyPoints(gid, weekKey, uid string) (int64, error) {
	var points int64
	err := s.repo.DB().QueryRow(`
		SELECT points FROM aby_weekly_points
		WHERE guild_id = ? AND week_key = ? AND user_id = ?
	`, gid, weekKey, uid).Scan(&points)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read weekly points: %w", err)
	}
	return points, nil
}

// TopWeeklyPoints returns the week's point leaders, highest first.
func (s *Service) TopWeeklyPoints(gid, weekKey string, limit int) (map[string]int64, []string, error) {
	rows, err := s.repo.DB().Query(`
		SELECT user_id, points FROM aby_weekly_points
		WHERE guild_id = ? AND week_key = ? AND points > 0
		ORDER BY points DESC, user_id LIMIT ?
	`, gid, weekKey, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read weekly leaders: %w", err)
	}
	defer rows.Close()

	points := make(map[string]int64)
	var order []string
	for rows.Next() {
		var (
			uid string
			p   int64
		)
		if err := rows.Scan(&uid, &p); err != nil {
			return nil, nil, err
		}
		points[uid] = p
		order = append(order, uid)
	}
	return points, order, rows.Err()
}

func (s *Service) find(gid string, scope Scope, boardKey string, questNo int) (*Quest, error) {
	quests, err := s.Board(gid, scope, boardKey)
	if err != nil {
		return nil, err
	}
	for i := range quests {
		if quests[i].QuestNo == questNo {
			return &quests[i], nil
		}
	}
	return nil, nil
}

func (s *Service) alreadyClaimed(gid, uid string, scope Scope, boardKey string, questNo int) (bool, error) {
	var n int
	err := s.repo.DB().QueryRow(`
		SELECT COUNT(*) FROM aby_quest_claims
		WHERE guild_id = ? AND scope = ? AND board_key = ? AND quest_no = ? AND user_id = ?
	`, gid, string(scope), boardKey, questNo, uid).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check claim: %w", err)
	}
	return n > 0, nil
}

// repayWindow resolves the ymd range a repay_total quest counts over: the
// board's day for daily scope, the board's ISO week for weekly scope.
func (s *Service) repayWindow(scope Scope, boardKey string) ([]string, error) {
	if scope == ScopeDaily {
		return []string{boardKey}, nil
	}
	return clock.WeekYMDsFromWeekKey(boardKey)
}

func (s *Service) addWeeklyPoints(tx *sql.Tx, gid, weekKey, uid string, points int64) error {
	now := time.Now().Unix()
	_, err := tx.Exec(`
		INSERT INTO aby_weekly_points (guild_id, week_key, user_id, points, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id, week_key, user_id) DO UPDATE SET
			points = points + excluded.points,
			updated_at = excluded.updated_at
	`, gid, weekKey, uid, points, now, now)
	if err != nil {
		return fmt.Errorf("failed to add weekly points: %w", err)
	}
	return nil
}
