package economy

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/abydos/internal/clock"
	"github.com/aristath/abydos/internal/database"
)

// DebtEngine applies daily compound interest and processes repayments.
type DebtEngine struct {
	repo *Repository
	log  zerolog.Logger
}

// NewDebtEngine creates a new debt engine.
func NewDebtEngine(repo *Repository, log zerolog.Logger) *DebtEngine {
	return &DebtEngine{
		repo: repo,
		log:  log.With().Str("service", "debt").Logger(),
	}
}

// ApplyInterestUpTo advances the guild's last_interest_ymd one calendar day
// at a time up to (and including) today, compounding
// debt = ceil(debt * (1 + rate)) each day and logging one interest row per
// day. Idempotent per day: a second call with the same today is a no-op and
// produces no duplicate log rows.
func (e *DebtEngine) ApplyInterestUpTo(gid, today string) error {
	debt, err := e.repo.GuildDebt(gid)
	if err != nil {
		return err
	}
	if debt.Debt <= 0 {
		// Keep the cursor current so a later loan doesn't back-charge the
		// debt-free days.
		return e.touchInterestCursor(gid, today)
	}
	if debt.LastInterestYMD == "" {
		return e.touchInterestCursor(gid, today)
	}
	if debt.LastInterestYMD >= today {
		return nil
	}

	cursor := debt.LastInterestYMD
	for cursor < today {
		next, err := clock.AddDaysYMD(cursor, 1)
		if err != nil {
			return err
		}

		err = database.WithTransaction(e.repo.DB(), func(tx *sql.Tx) error {
			// Re-read inside the transaction; the cursor check makes each
			// day's step idempotent under concurrent catch-ups.
			d, err := getDebt(tx, gid)
			if err != nil {
				return err
			}
			if d.LastInterestYMD != cursor || d.Debt <= 0 {
				return nil
			}

			newDebt := int64(math.Ceil(float64(d.Debt) * (1 + d.InterestRate)))
			delta := newDebt - d.Debt
			if _, err := tx.Exec(`
				UPDATE aby_guild_debt SET debt = ?, last_interest_ymd = ?, updated_at = ?
				WHERE guild_id = ?
			`, newDebt, next, time.Now().Unix(), gid); err != nil {
				return fmt.Errorf("failed to apply interest: %w", err)
			}
			return insertLog(tx, gid, "", KindInterest, 0, 0, delta, next, time.Now())
		})
		if err != nil {
			return err
		}
		cursor = next
	}

	e.log.Debug().Str("guild", gid).Str("upto", today).Msg("Interest applied")
	return nil
}

// RepayResult reports the outcome of a repayment.
type RepayResult struct {
	Reason       Reason // empty on success
	Paid         int64
	NewDebt      int64
	CreditsAfter int64
}

// Repay pays down guild debt from a user's wallet within one transaction.
// amount < 0 means "all". The paid amount is clamped to
// min(amount, credits, debt).
func (e *DebtEngine) Repay(gid, uid string, amount int64, today string) (RepayResult, error) {
	if amount == 0 {
		return RepayResult{Reason: ReasonInvalidAmount}, nil
	}

	var result RepayResult
	err := database.WithTransaction(e.repo.DB(), func(tx *sql.Tx) error {
		wallet, err := getWallet(tx, uid)
		if err != nil {
			return err
		}
		debt, err := getDebt(tx, gid)
		if err != nil {
			return err
		}

		if debt.Debt <= 0 {
			result = RepayResult{Reason: ReasonNoDebt, CreditsAfter: wallet.Credits}
			return nil
		}
		if wallet.Credits <= 0 {
			result = RepayResult{Reason: ReasonEmptyWallet, NewDebt: debt.Debt}
			return nil
		}

		paid := amount
		if paid < 0 || paid > wallet.Credits {
			paid = wallet.Credits
		}
		if paid > debt.Debt {
			paid = debt.Debt
		}

		now := time.Now()
		if _, err := tx.Exec(`
			UPDATE aby_user_economy SET credits = credits - ?, updated_at = ? WHERE user_id = ?
		`, paid, now.Unix(), uid); err != nil {
			return fmt.Errorf("failed to deduct credits: %w", err)
		}
		if _, err := tx.Exec(`
			UPDATE aby_guild_debt SET debt = debt - ?, updated_at = ? WHERE guild_id = ?
		`, paid, now.Unix(), gid); err != nil {
			return fmt.Errorf("failed to decrement debt: %w", err)
		}
		if err := insertLog(tx, gid, uid, KindRepay, -paid, 0, -paid, today, now); err != nil {
			return err
		}

		result = RepayResult{
			Paid:         paid,
			NewDebt:      debt.Debt - paid,
			CreditsAfter: wallet.Credits - paid,
		}
		return nil
	})
	if err != nil {
		return RepayResult{}, err
	}

	if result.Reason == ReasonNone {
		e.log.Info().
			Str("guild", gid).Str("user", uid).
			Int64("paid", result.Paid).Int64("new_debt", result.NewDebt).
			Msg("Debt repaid")
	}
	return result, nil
}

// AddDebt applies a raw debt delta (used by the incident scheduler),
// clamping the balance at zero, and returns the delta actually applied.
func (e *DebtEngine) AddDebt(tx *sql.Tx, gid string, delta int64) (int64, error) {
	d, err := getDebt(tx, gid)
	if err != nil {
		return 0, err
	}
	applied := delta
	if d.Debt+applied < 0 {
		applied = -d.Debt
	}
	if _, err := tx.Exec(`
		UPDATE aby_guild_debt SET debt = debt + ?, updated_at = ? WHERE guild_id = ?
	`, applied, time.Now().Unix(), gid); err != nil {
		return 0, fmt.Errorf("failed to adjust debt: %w", err)
	}
	return applied, nil
}

// touchInterestCursor moves the interest cursor without charging anything.
func (e *DebtEngine) touchInterestCursor(gid, today string) error {
	_, err := e.repo.DB().Exec(`
		UPDATE aby_guild_debt SET last_interest_ymd = ?, updated_at = ?
		WHERE guild_id = ? AND last_interest_ymd < ?
	`, today, time.Now().Unix(), gid, today)
	if err != nil {
		return fmt.Errorf("failed to touch interest cursor: %w", err)
	}
	return nil
}
