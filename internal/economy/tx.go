package economy

import (
	"database/sql"
	"fmt"
	"time"
)

// Transaction-scoped helpers for the subsystems that compose economy
// mutations with their own tables (incidents, quests) inside one store
// transaction. Row ownership still holds: these are the only entry points
// other packages get into the economy tables.

// LogTx appends an economy log row inside the caller's transaction.
func LogTx(tx *sql.Tx, gid, uid string, kind Kind, dCredits, dWater, dDebt int64, memo string, at time.Time) error {
	return insertLog(tx, gid, uid, kind, dCredits, dWater, dDebt, memo, at)
}

// AddCreditsTx adds credits to a user's wallet inside the caller's
// transaction, creating the wallet row if needed.
func AddCreditsTx(tx *sql.Tx, uid string, delta int64) error {
	if _, err := getWallet(tx, uid); err != nil {
		return err
	}
	_, err := tx.Exec(`
		UPDATE aby_user_economy SET credits = credits + ?, updated_at = ? WHERE user_id = ?
	`, delta, time.Now().Unix(), uid)
	if err != nil {
		return fmt.Errorf("failed to add credits: %w", err)
	}
	return nil
}

// AddItemTx adds an item stack inside the caller's transaction.
func AddItemTx(tx *sql.Tx, uid, itemKey string, qty int64) error {
	return addItem(tx, uid, itemKey, qty)
}

// RemoveItemTx deducts an item stack inside the caller's transaction,
// failing if the stack would go negative.
func RemoveItemTx(tx *sql.Tx, uid, itemKey string, qty int64) error {
	return removeItem(tx, uid, itemKey, qty)
}

// ItemQtyTx reads an item quantity inside the caller's transaction.
func ItemQtyTx(tx *sql.Tx, uid, itemKey string) (int64, error) {
	return getItemQty(tx, uid, itemKey)
}
