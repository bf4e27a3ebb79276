package economy

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCraft_DeductsAndAddsAtomically(t *testing.T) {
	db, repo := newTestEnv(t)
	shop := NewWorkshop(repo, zerolog.Nop())

	setCredits(t, db, "U1", 10_000)
	require.NoError(t, repo.AddItem("U1", "scrap", 5))

	result, err := shop.Craft("U1", "filter")
	require.NoError(t, err)
	assert.Equal(t, ReasonNone, result.Reason)
	assert.Equal(t, int64(7000), result.CreditsAfter)

	scrap, err := repo.ItemQty("U1", "scrap")
	require.NoError(t, err)
	assert.Equal(t, int64(2), scrap)

	filter, err := repo.ItemQty("U1", "filter")
	require.NoError(t, err)
	assert.Equal(t, int64(1), filter)
}

func TestCraft_Preconditions(t *testing.T) {
	db, repo := newTestEnv(t)
	shop := NewWorkshop(repo, zerolog.Nop())

	result, err := shop.Craft("U1", "nonsense")
	require.NoError(t, err)
	assert.Equal(t, ReasonUnknownRecipe, result.Reason)

	// No credits
	require.NoError(t, repo.AddItem("U1", "scrap", 5))
	result, err = shop.Craft("U1", "filter")
	require.NoError(t, err)
	assert.Equal(t, ReasonInsufficientCredits, result.Reason)

	// Credits but no materials
	setCredits(t, db, "U2", 50_000)
	result, err = shop.Craft("U2", "filter")
	require.NoError(t, err)
	assert.Equal(t, ReasonInsufficientItems, result.Reason)

	// Failed crafts leave no trace
	wallet, err := repo.Wallet("U2")
	require.NoError(t, err)
	assert.Equal(t, int64(50_000), wallet.Credits)
	scrap, err := repo.ItemQty("U1", "scrap")
	require.NoError(t, err)
	assert.Equal(t, int64(5), scrap)
}

func TestSell_FixedPriceAndAll(t *testing.T) {
	_, repo := newTestEnv(t)
	shop := NewWorkshop(repo, zerolog.Nop())

	require.NoError(t, repo.AddItem("U1", "scrap", 4))

	result, err := shop.Sell("U1", "scrap", 3)
	require.NoError(t, err)
	assert.Equal(t, ReasonNone, result.Reason)
	assert.Equal(t, int64(3), result.Sold)
	assert.Equal(t, int64(800), result.UnitPrice)
	assert.Equal(t, int64(2400), result.CreditsAfter)

	// qty < 0 sells the rest
	result, err = shop.Sell("U1", "scrap", -1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Sold)

	qty, err := repo.ItemQty("U1", "scrap")
	require.NoError(t, err)
	assert.Zero(t, qty)
}

func TestSell_Reasons(t *testing.T) {
	_, repo := newTestEnv(t)
	shop := NewWorkshop(repo, zerolog.Nop())

	result, err := shop.Sell("U1", "moonrock", 1)
	require.NoError(t, err)
	assert.Equal(t, ReasonUnknownItem, result.Reason)

	result, err = shop.Sell("U1", "scrap", 1)
	require.NoError(t, err)
	assert.Equal(t, ReasonInsufficientItems, result.Reason)

	result, err = shop.Sell("U1", "scrap", 0)
	require.NoError(t, err)
	assert.Equal(t, ReasonInvalidAmount, result.Reason)
}

func TestRecipes_OutputsAreSellableOrConsumable(t *testing.T) {
	for id, recipe := range Recipes {
		assert.Equal(t, id, recipe.ID)
		assert.NotEmpty(t, recipe.Outputs, "recipe %s must produce something", id)
		assert.Positive(t, recipe.CostCredits, "recipe %s must cost credits", id)
	}
}
