// Package economy implements the colony economy: per-user wallets and
// inventories, the per-guild debt engine, buffs, the daily exploration
// transaction, the workshop, and the append-only economy log that every
// weekly aggregate is derived from.
package economy

import "time"

// Reason is a typed precondition failure code surfaced to the user layer.
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonAlreadyClaimedToday Reason = "already_claimed_today"
	ReasonInsufficientCredits Reason = "insufficient_credits"
	ReasonInsufficientItems   Reason = "insufficient_items"
	ReasonEmptyWallet         Reason = "empty_wallet"
	ReasonInvalidAmount       Reason = "invalid_amount"
	ReasonNoDebt              Reason = "no_debt"
	ReasonUnknownRecipe       Reason = "unknown_recipe"
	ReasonUnknownItem         Reason = "unknown_item"
	ReasonNotConsumable       Reason = "not_consumable"
)

// Log row kinds. The economy log is append-only; rows are never updated or
// deleted by the core.
const (
	KindInterest Kind = "interest"
	KindRepay    Kind = "repay"
	KindIncident Kind = "incident"
	KindExplore  Kind = "explore"
	KindCraft    Kind = "craft"
	KindSell     Kind = "sell"
	KindQuest    Kind = "quest"
)

// Kind tags an economy log row.
type Kind string

// Wallet is a user's economy row.
type Wallet struct {
	UserID         string
	Credits        int64
	Water          int64
	LastExploreYMD string
}

// Debt is a guild's debt row.
type Debt struct {
	GuildID         string
	Debt            int64
	InterestRate    float64
	LastInterestYMD string
}

// Buff is a user's single active buff. The zero value means "no buff".
type Buff struct {
	UserID    string
	Key       string
	Stacks    int64
	ExpiresAt time.Time
}

// Active reports whether the buff is valid at the given instant.
func (b Buff) Active(now time.Time) bool {
	return b.Key != "" && b.Stacks > 0 && b.ExpiresAt.After(now)
}

// LogEntry is one immutable economy log row.
type LogEntry struct {
	ID           int64
	GuildID      string
	UserID       string
	Kind         Kind
	DeltaCredits int64
	DeltaWater   int64
	DeltaDebt    int64
	Memo         string
	CreatedAt    time.Time
}

// ExploreMeta is the provenance row written by a committed exploration.
// Quest verification reads these rows; nothing else does.
type ExploreMeta struct {
	UserID       string
	DateYMD      string
	Weather      string
	Success      bool
	CreditsDelta int64
	WaterDelta   int64
}

// InventoryItem is one (user, item) stack.
type InventoryItem struct {
	ItemKey string
	Qty     int64
}
