package llm

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledOracle(t *testing.T) {
	o := New(Config{UsageDir: t.TempDir()}, zerolog.Nop())
	assert.False(t, o.Enabled())

	_, err := o.Complete(context.Background(), "", "hello", 100)
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestBudget_RefusesWhenExhausted(t *testing.T) {
	o := New(Config{
		APIKey:          "test-key",
		MonthlyLimitUSD: 1.0,
		UsageDir:        t.TempDir(),
	}, zerolog.Nop())

	now := time.Now()
	require.NoError(t, o.checkBudget(now))

	o.mu.Lock()
	o.usage.SpentUSD = 1.0
	o.mu.Unlock()
	assert.ErrorIs(t, o.checkBudget(now), ErrBudgetExhausted)
}

func TestBudget_ZeroLimitMeansUnlimited(t *testing.T) {
	o := New(Config{APIKey: "test-key", UsageDir: t.TempDir()}, zerolog.Nop())
	o.mu.Lock()
	o.usage.SpentUSD = 9999
	o.mu.Unlock()
	assert.NoError(t, o.checkBudget(time.Now()))
}

func TestUsage_AccumulatesAndPersists(t *testing.T) {
	dir := t.TempDir()
	o := New(Config{
		APIKey:        "test-key",
		InputPrice1K:  0.001,
		OutputPrice1K: 0.005,
		UsageDir:      dir,
	}, zerolog.Nop())

	now := time.Now()
	o.recordUsage(2000, 1000, now)
	o.recordUsage(1000, 0, now)

	_, spent := o.Usage()
	assert.InDelta(t, 0.008, spent, 1e-9) // 3k in at 0.001 + 1k out at 0.005

	// The file round-trips into a fresh oracle.
	reloaded := New(Config{APIKey: "test-key", UsageDir: dir}, zerolog.Nop())
	month, spent2 := reloaded.Usage()
	assert.Equal(t, now.Format("2006-01"), month)
	assert.InDelta(t, spent, spent2, 1e-9)

	var u usage
	data, err := os.ReadFile(filepath.Join(dir, "llm_usage.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &u))
	assert.Equal(t, int64(3000), u.InputTokens)
	assert.Equal(t, int64(1000), u.OutputTokens)
}

func TestUsage_MonthRollover(t *testing.T) {
	o := New(Config{
		APIKey:          "test-key",
		MonthlyLimitUSD: 1.0,
		UsageDir:        t.TempDir(),
	}, zerolog.Nop())

	jan := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	o.mu.Lock()
	o.usage = usage{Month: "2026-01", SpentUSD: 1.0}
	o.mu.Unlock()
	require.ErrorIs(t, o.checkBudget(jan), ErrBudgetExhausted)

	// February resets the counter.
	feb := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	assert.NoError(t, o.checkBudget(feb))
	month, spent := o.Usage()
	assert.Equal(t, "2026-02", month)
	assert.Zero(t, spent)
}
