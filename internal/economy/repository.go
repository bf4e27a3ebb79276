package economy

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/abydos/internal/clock"
)

// execer is satisfied by both *sql.DB and *sql.Tx so the row helpers can be
// reused inside and outside transactions.
type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// Repository handles the economy tables. Other packages read through it;
// only the services in this package (and the incident scheduler, for debt)
// write.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new economy repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "economy").Logger(),
	}
}

// DB exposes the underlying connection for services that open transactions.
func (r *Repository) DB() *sql.DB { return r.db }

// Wallet returns a user's economy row, creating it on first touch.
func (r *Repository) Wallet(uid string) (Wallet, error) {
	return getWallet(r.db, uid)
}

// GuildDebt returns a guild's debt row, creating it on first touch with the
// default interest rate and a zero balance.
func (r *Repository) GuildDebt(gid string) (Debt, error) {
	return getDebt(r.db, gid)
}

// GuildsWithDebt lists guild IDs with a positive debt balance.
func (r *Repository) GuildsWithDebt() ([]string, error) {
	rows, err := r.db.Query(`SELECT guild_id FROM aby_guild_debt WHERE debt > 0`)
	if err != nil {
		return nil, fmt.Errorf("failed to list indebted guilds: %w", err)
	}
	defer rows.Close()

	var gids []string
	for rows.Next() {
		var gid string
		if err := rows.Scan(&gid); err != nil {
			return nil, err
		}
		gids = append(gids, gid)
	}
	return gids, rows.Err()
}

// Inventory returns all non-zero stacks of a user, ordered by item key.
func (r *Repository) Inventory(uid string) ([]InventoryItem, error) {
	rows, err := r.db.Query(`
		SELECT item_key, qty FROM aby_inventory
		WHERE user_id = ? AND qty > 0 ORDER BY item_key
	`, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory: %w", err)
	}
	defer rows.Close()

	var items []InventoryItem
	for rows.Next() {
		var it InventoryItem
		if err := rows.Scan(&it.ItemKey, &it.Qty); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ItemQty returns the quantity of one item in a user's inventory.
func (r *Repository) ItemQty(uid, itemKey string) (int64, error) {
	return getItemQty(r.db, uid, itemKey)
}

// AddItem adds qty of an item to a user's inventory (outside any caller
// transaction; used for post-commit loot).
func (r *Repository) AddItem(uid, itemKey string, qty int64) error {
	return addItem(r.db, uid, itemKey, qty)
}

// EnsureBuffValid returns the user's buff, clearing the row first when it
// has expired or has no stacks left. The returned buff is the zero value
// when no valid buff exists.
func (r *Repository) EnsureBuffValid(uid string, now time.Time) (Buff, error) {
	buff, err := getBuff(r.db, uid)
	if err != nil {
		return Buff{}, err
	}
	if buff.Key == "" {
		return Buff{}, nil
	}
	if !buff.Active(now) {
		if err := clearBuff(r.db, uid); err != nil {
			return Buff{}, err
		}
		return Buff{}, nil
	}
	return buff, nil
}

// ConsumeBuffStack decrements one stack of the user's buff if it matches
// the given key, clearing the row when the last stack is spent.
func (r *Repository) ConsumeBuffStack(uid, key string, now time.Time) error {
	buff, err := r.EnsureBuffValid(uid, now)
	if err != nil {
		return err
	}
	if buff.Key != key {
		return nil
	}
	if buff.Stacks <= 1 {
		return clearBuff(r.db, uid)
	}
	_, err = r.db.Exec(`
		UPDATE aby_buffs SET stacks = stacks - 1, updated_at = ? WHERE user_id = ?
	`, now.Unix(), uid)
	if err != nil {
		return fmt.Errorf("failed to consume buff stack: %w", err)
	}
	return nil
}

// ExploreMetaFor returns a user's provenance row for a day, or nil.
func (r *Repository) ExploreMetaFor(uid, ymd string) (*ExploreMeta, error) {
	var (
		meta    ExploreMeta
		success int64
	)
	err := r.db.QueryRow(`
		SELECT user_id, date_ymd, weather, success, credits_delta, water_delta
		FROM aby_explore_meta WHERE user_id = ? AND date_ymd = ?
	`, uid, ymd).Scan(&meta.UserID, &meta.DateYMD, &meta.Weather, &success, &meta.CreditsDelta, &meta.WaterDelta)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read explore meta: %w", err)
	}
	meta.Success = success != 0
	return &meta, nil
}

// HasSandstormSuccess reports whether any of the given days carries a
// successful sandstorm exploration for the user.
func (r *Repository) HasSandstormSuccess(uid string, ymds []string) (bool, error) {
	for _, ymd := range ymds {
		var n int
		err := r.db.QueryRow(`
			SELECT COUNT(*) FROM aby_explore_meta
			WHERE user_id = ? AND date_ymd = ? AND weather = 'sandstorm' AND success = 1
		`, uid, ymd).Scan(&n)
		if err != nil {
			return false, fmt.Errorf("failed to check sandstorm success: %w", err)
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}

// RepaidTotalIn sums the user's repay log credits (as a positive number)
// over the given KST days.
func (r *Repository) RepaidTotalIn(gid, uid string, ymds []string) (int64, error) {
	if len(ymds) == 0 {
		return 0, nil
	}
	start, end, err := dayRangeBounds(ymds)
	if err != nil {
		return 0, err
	}
	var total sql.NullInt64
	err = r.db.QueryRow(`
		SELECT SUM(-delta_credits) FROM aby_economy_log
		WHERE guild_id = ? AND user_id = ? AND kind = 'repay'
		  AND created_at >= ? AND created_at < ?
	`, gid, uid, start.Unix(), end.Unix()).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum repayments: %w", err)
	}
	return total.Int64, nil
}

// LogFor returns all log rows for a guild within [start, end), oldest
// first. The weekly report is built exclusively from this query.
func (r *Repository) LogFor(gid string, start, end time.Time) ([]LogEntry, error) {
	rows, err := r.db.Query(`
		SELECT id, COALESCE(guild_id, ''), COALESCE(user_id, ''), kind,
		       delta_credits, delta_water, delta_debt, memo, created_at
		FROM aby_economy_log
		WHERE guild_id = ? AND created_at >= ? AND created_at < ?
		ORDER BY id
	`, gid, start.Unix(), end.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to read economy log: %w", err)
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var (
			e  LogEntry
			ts int64
			k  string
		)
		if err := rows.Scan(&e.ID, &e.GuildID, &e.UserID, &k,
			&e.DeltaCredits, &e.DeltaWater, &e.DeltaDebt, &e.Memo, &ts); err != nil {
			return nil, err
		}
		e.Kind = Kind(k)
		e.CreatedAt = time.Unix(ts, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- row helpers shared by services (usable inside transactions) ---

func getWallet(q execer, uid string) (Wallet, error) {
	now := time.Now().Unix()
	if _, err := q.Exec(`
		INSERT INTO aby_user_economy (user_id, created_at, updated_at)
		VALUES (?, ?, ?) ON CONFLICT(user_id) DO NOTHING
	`, uid, now, now); err != nil {
		return Wallet{}, fmt.Errorf("failed to ensure economy row: %w", err)
	}

	var w Wallet
	err := q.QueryRow(`
		SELECT user_id, credits, water, last_explore_ymd
		FROM aby_user_economy WHERE user_id = ?
	`, uid).Scan(&w.UserID, &w.Credits, &w.Water, &w.LastExploreYMD)
	if err != nil {
		return Wallet{}, fmt.Errorf("failed to read economy row: %w", err)
	}
	return w, nil
}

func getDebt(q execer, gid string) (Debt, error) {
	now := time.Now().Unix()
	if _, err := q.Exec(`
		INSERT INTO aby_guild_debt (guild_id, created_at, updated_at)
		VALUES (?, ?, ?) ON CONFLICT(guild_id) DO NOTHING
	`, gid, now, now); err != nil {
		return Debt{}, fmt.Errorf("failed to ensure debt row: %w", err)
	}

	var d Debt
	err := q.QueryRow(`
		SELECT guild_id, debt, interest_rate, last_interest_ymd
		FROM aby_guild_debt WHERE guild_id = ?
	`, gid).Scan(&d.GuildID, &d.Debt, &d.InterestRate, &d.LastInterestYMD)
	if err != nil {
		return Debt{}, fmt.Errorf("failed to read debt row: %w", err)
	}
	return d, nil
}

func getItemQty(q execer, uid, itemKey string) (int64, error) {
	var qty int64
	err := q.QueryRow(`
		SELECT qty FROM aby_inventory WHERE user_id = ? AND item_key = ?
	`, uid, itemKey).Scan(&qty)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read item qty: %w", err)
	}
	return qty, nil
}

func addItem(q execer, uid, itemKey string, qty int64) error {
	now := time.Now().Unix()
	_, err := q.Exec(`
		INSERT INTO aby_inventory (user_id, item_key, qty, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, item_key) DO UPDATE SET
			qty = qty + excluded.qty,
			updated_at = excluded.updated_at
	`, uid, itemKey, qty, now, now)
	if err != nil {
		return fmt.Errorf("failed to add item: %w", err)
	}
	return nil
}

// removeItem deducts qty, failing when the stack would go negative. Always
// called inside a transaction.
func removeItem(q execer, uid, itemKey string, qty int64) error {
	res, err := q.Exec(`
		UPDATE aby_inventory SET qty = qty - ?, updated_at = ?
		WHERE user_id = ? AND item_key = ? AND qty >= ?
	`, qty, time.Now().Unix(), uid, itemKey, qty)
	if err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("insufficient %s to remove %d", itemKey, qty)
	}
	return nil
}

func getBuff(q execer, uid string) (Buff, error) {
	var (
		b       Buff
		expires int64
	)
	err := q.QueryRow(`
		SELECT user_id, buff_key, stacks, expires_at FROM aby_buffs WHERE user_id = ?
	`, uid).Scan(&b.UserID, &b.Key, &b.Stacks, &expires)
	if err == sql.ErrNoRows {
		return Buff{}, nil
	}
	if err != nil {
		return Buff{}, fmt.Errorf("failed to read buff: %w", err)
	}
	b.ExpiresAt = time.Unix(expires, 0)
	return b, nil
}

func setBuff(q execer, uid, key string, stacks int64, expiresAt time.Time) error {
	now := time.Now().Unix()
	_, err := q.Exec(`
		INSERT INTO aby_buffs (user_id, buff_key, stacks, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			buff_key = excluded.buff_key,
			stacks = excluded.stacks,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`, uid, key, stacks, expiresAt.Unix(), now, now)
	if err != nil {
		return fmt.Errorf("failed to set buff: %w", err)
	}
	return nil
}

func clearBuff(q execer, uid string) error {
	_, err := q.Exec(`
		UPDATE aby_buffs SET buff_key = '', stacks = 0, expires_at = 0, updated_at = ?
		WHERE user_id = ?
	`, time.Now().Unix(), uid)
	if err != nil {
		return fmt.Errorf("failed to clear buff: %w", err)
	}
	return nil
}

func insertLog(q execer, gid, uid string, kind Kind, dCredits, dWater, dDebt int64, memo string, at time.Time) error {
	var gidVal, uidVal interface{}
	if gid != "" {
		gidVal = gid
	}
	if uid != "" {
		uidVal = uid
	}
	_, err := q.Exec(`
		INSERT INTO aby_economy_log
			(guild_id, user_id, kind, delta_credits, delta_water, delta_debt, memo, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, gidVal, uidVal, string(kind), dCredits, dWater, dDebt, memo, at.Unix())
	if err != nil {
		return fmt.Errorf("failed to append economy log: %w", err)
	}
	return nil
}

// dayRangeBounds returns [start of first ymd, start of day after last ymd)
// in KST. The caller guarantees the slice is a contiguous ascending range.
func dayRangeBounds(ymds []string) (time.Time, time.Time, error) {
	first, err := clock.ParseYMD(ymds[0])
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	last, err := clock.ParseYMD(ymds[len(ymds)-1])
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return first, last.AddDate(0, 0, 1), nil
}
