package presence

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/abydos/internal/clock"
)

type captureSetter struct {
	mu   sync.Mutex
	seen []string
}

func (c *captureSetter) SetPresence(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, text)
}

func (c *captureSetter) last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.seen) == 0 {
		return ""
	}
	return c.seen[len(c.seen)-1]
}

func TestEligible_FiltersByBand(t *testing.T) {
	pool := []Status{
		{Text: "any"},
		{Text: "nightly", Bands: []clock.TimeBand{clock.BandNight}},
		{Text: "daytime", Bands: []clock.TimeBand{clock.BandDay}},
	}

	night := Eligible(pool, clock.BandNight)
	require.Len(t, night, 2)
	assert.Equal(t, "any", night[0].Text)
	assert.Equal(t, "nightly", night[1].Text)

	morning := Eligible(pool, clock.BandMorning)
	require.Len(t, morning, 1)
	assert.Equal(t, "any", morning[0].Text)
}

func TestRotate_RespectsBand(t *testing.T) {
	setter := &captureSetter{}
	r := NewRotator(setter, zerolog.Nop())

	// 03:00 KST is the night band: a day-only status must never appear.
	night := time.Date(2026, 8, 25, 3, 0, 0, 0, clock.KST)
	for i := 0; i < 50; i++ {
		r.Rotate(night)
	}
	for _, text := range setter.seen {
		for _, s := range defaultStatuses {
			if s.Text != text || len(s.Bands) == 0 {
				continue
			}
			assert.Contains(t, s.Bands, clock.BandNight, "status %q applied outside its bands", text)
		}
	}
	assert.NotEmpty(t, setter.last())
}

func TestStartStop_AppliesInitialStatus(t *testing.T) {
	setter := &captureSetter{}
	r := NewRotator(setter, zerolog.Nop())

	r.Start()
	require.Eventually(t, func() bool { return setter.last() != "" },
		time.Second, 10*time.Millisecond)
	r.Stop()

	// Stop is idempotent and Start works again after it.
	r.Stop()
	r.Start()
	r.Stop()
}

func TestIntervalBounds(t *testing.T) {
	r := NewRotator(&captureSetter{}, zerolog.Nop())
	for i := 0; i < 100; i++ {
		d := r.nextInterval()
		assert.GreaterOrEqual(t, d, minInterval)
		assert.Less(t, d, maxInterval)
	}
}
