package economy

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/abydos/internal/database"
)

// Recipe is a static workshop recipe.
type Recipe struct {
	ID          string
	CostCredits int64
	Required    map[string]int64
	Outputs     map[string]int64
	Flavor      string
}

// Recipes is the static recipe table. Keyed by recipe ID; contents never
// change at runtime.
var Recipes = map[string]Recipe{
	"filter": {
		ID:          "filter",
		CostCredits: 3000,
		Required:    map[string]int64{"scrap": 3},
		Outputs:     map[string]int64{"filter": 1},
		Flavor:      "A crude dust filter. Keeps the worst of the sand out.",
	},
	"mask": {
		ID:          "mask",
		CostCredits: 5000,
		Required:    map[string]int64{"filter": 1, "scrap": 2},
		Outputs:     map[string]int64{BuffMask: 1},
		Flavor:      "A sealed breathing mask. Sandstorms feel like cloudy days.",
	},
	"drone": {
		ID:          "drone",
		CostCredits: 12000,
		Required:    map[string]int64{"scrap": 5, "crystal": 1},
		Outputs:     map[string]int64{BuffDrone: 1},
		Flavor:      "A scout drone. Flies ahead and marks the good routes.",
	},
	"kit": {
		ID:          "kit",
		CostCredits: 8000,
		Required:    map[string]int64{"scrap": 4},
		Outputs:     map[string]int64{BuffKit: 1},
		Flavor:      "A salvage kit. More room for whatever the desert gives up.",
	},
}

// SalePrices is the static unit price table for material sale.
var SalePrices = map[string]int64{
	"scrap":   800,
	"crystal": 6000,
	"filter":  1500,
}

// RecipeIDs returns all recipe IDs in stable order.
func RecipeIDs() []string {
	ids := make([]string, 0, len(Recipes))
	for id := range Recipes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Workshop implements recipe-gated crafting and fixed-price material sale.
type Workshop struct {
	repo *Repository
	log  zerolog.Logger
}

// NewWorkshop creates a new workshop service.
func NewWorkshop(repo *Repository, log zerolog.Logger) *Workshop {
	return &Workshop{
		repo: repo,
		log:  log.With().Str("service", "workshop").Logger(),
	}
}

// CraftResult reports a craft outcome.
type CraftResult struct {
	Reason       Reason // empty on success
	Recipe       Recipe
	CreditsAfter int64
}

// Craft verifies credits and materials, then deducts both and adds the
// outputs, all in one transaction.
func (w *Workshop) Craft(uid, recipeID string) (CraftResult, error) {
	recipe, ok := Recipes[recipeID]
	if !ok {
		return CraftResult{Reason: ReasonUnknownRecipe}, nil
	}

	result := CraftResult{Recipe: recipe}
	err := database.WithTransaction(w.repo.DB(), func(tx *sql.Tx) error {
		wallet, err := getWallet(tx, uid)
		if err != nil {
			return err
		}
		if wallet.Credits < recipe.CostCredits {
			result.Reason = ReasonInsufficientCredits
			return nil
		}
		for itemKey, need := range recipe.Required {
			have, err := getItemQty(tx, uid, itemKey)
			if err != nil {
				return err
			}
			if have < need {
				result.Reason = ReasonInsufficientItems
				return nil
			}
		}

		now := time.Now()
		if _, err := tx.Exec(`
			UPDATE aby_user_economy SET credits = credits - ?, updated_at = ? WHERE user_id = ?
		`, recipe.CostCredits, now.Unix(), uid); err != nil {
			return fmt.Errorf("failed to charge craft cost: %w", err)
		}
		for itemKey, need := range recipe.Required {
			if err := removeItem(tx, uid, itemKey, need); err != nil {
				return err
			}
		}
		for itemKey, qty := range recipe.Outputs {
			if err := addItem(tx, uid, itemKey, qty); err != nil {
				return err
			}
		}
		if err := insertLog(tx, "", uid, KindCraft, -recipe.CostCredits, 0, 0, recipeID, now); err != nil {
			return err
		}

		result.CreditsAfter = wallet.Credits - recipe.CostCredits
		return nil
	})
	if err != nil {
		return CraftResult{}, err
	}

	if result.Reason == ReasonNone {
		w.log.Info().Str("user", uid).Str("recipe", recipeID).Msg("Item crafted")
	}
	return result, nil
}

// SellResult reports a sale outcome.
type SellResult struct {
	Reason       Reason // empty on success
	Sold         int64
	UnitPrice    int64
	CreditsAfter int64
}

// Sell sells qty units of an item at the static unit price in one
// transaction. qty < 0 means "all".
func (w *Workshop) Sell(uid, itemKey string, qty int64) (SellResult, error) {
	price, ok := SalePrices[itemKey]
	if !ok {
		return SellResult{Reason: ReasonUnknownItem}, nil
	}
	if qty == 0 {
		return SellResult{Reason: ReasonInvalidAmount}, nil
	}

	var result SellResult
	err := database.WithTransaction(w.repo.DB(), func(tx *sql.Tx) error {
		have, err := getItemQty(tx, uid, itemKey)
		if err != nil {
			return err
		}
		sell := qty
		if sell < 0 {
			sell = have
		}
		if have < sell || sell == 0 {
			result = SellResult{Reason: ReasonInsufficientItems}
			return nil
		}

		wallet, err := getWallet(tx, uid)
		if err != nil {
			return err
		}

		now := time.Now()
		proceeds := sell * price
		if err := removeItem(tx, uid, itemKey, sell); err != nil {
			return err
		}
		if _, err := tx.Exec(`
			UPDATE aby_user_economy SET credits = credits + ?, updated_at = ? WHERE user_id = ?
		`, proceeds, now.Unix(), uid); err != nil {
			return fmt.Errorf("failed to credit sale: %w", err)
		}
		if err := insertLog(tx, "", uid, KindSell, proceeds, 0, 0,
			fmt.Sprintf("%s x%d", itemKey, sell), now); err != nil {
			return err
		}

		result = SellResult{
			Sold:         sell,
			UnitPrice:    price,
			CreditsAfter: wallet.Credits + proceeds,
		}
		return nil
	})
	if err != nil {
		return SellResult{}, err
	}

	if result.Reason == ReasonNone {
		w.log.Info().
			Str("user", uid).Str("item", itemKey).
			Int64("qty", result.Sold).Int64("proceeds", result.Sold*result.UnitPrice).
			Msg("Items sold")
	}
	return result, nil
}
