// Package incident generates stochastic economic events per guild. Event
// frequency and severity scale with debt pressure: the deeper a colony is
// in the red, the harder and more often the desert hits it.
package incident

import (
	"math/rand"
	"time"
)

// Event is one incident template. Debt deltas are scaled by the pressure
// stage before application.
type Event struct {
	Kind        string
	Title       string
	Description string
	MinDebt     int64 // base Δdebt range, positive = debt grows
	MaxDebt     int64
}

var badEvents = []Event{
	{
		Kind:        "bad",
		Title:       "Pipeline rupture",
		Description: "A water main cracked under the dunes. Repair crews billed overtime.",
		MinDebt:     30_000, MaxDebt: 120_000,
	},
	{
		Kind:        "bad",
		Title:       "Sandworm toll",
		Description: "The eastern convoy paid its way out of a burrow field.",
		MinDebt:     50_000, MaxDebt: 200_000,
	},
	{
		Kind:        "bad",
		Title:       "Generator failure",
		Description: "Backup generators ran on rented cells for three days.",
		MinDebt:     20_000, MaxDebt: 90_000,
	},
	{
		Kind:        "bad",
		Title:       "Creditor audit",
		Description: "The bank reassessed the colony's collateral. It went poorly.",
		MinDebt:     80_000, MaxDebt: 300_000,
	},
}

var mildEvents = []Event{
	{
		Kind:        "mild",
		Title:       "Salvage windfall",
		Description: "A buried cargo crawler turned out to be mostly intact.",
		MinDebt:     -80_000, MaxDebt: -20_000,
	},
	{
		Kind:        "mild",
		Title:       "Grace period",
		Description: "The creditor consortium waived a late fee. Nobody knows why.",
		MinDebt:     -50_000, MaxDebt: -10_000,
	},
	{
		Kind:        "mild",
		Title:       "Charity shipment",
		Description: "An aid convoy covered part of this cycle's fuel bill.",
		MinDebt:     -60_000, MaxDebt: -15_000,
	},
}

// PressureStage buckets debt into a monotonic non-decreasing step
// function. Stages feed both the bad-event probability and the reschedule
// window.
func PressureStage(debt int64) int {
	switch {
	case debt >= 50_000_000:
		return 8
	case debt >= 20_000_000:
		return 6
	case debt >= 10_000_000:
		return 4
	case debt >= 5_000_000:
		return 3
	case debt >= 1_000_000:
		return 2
	case debt >= 100_000:
		return 1
	default:
		return 0
	}
}

// BadEventProbability returns P(bad) for a pressure stage, capped at 0.85.
func BadEventProbability(stage int) float64 {
	p := 0.45 + 0.08*float64(stage)
	if p > 0.85 {
		p = 0.85
	}
	return p
}

// NextWindow returns the [min, max] delay until the next incident for a
// pressure stage. Windows shrink as pressure grows.
func NextWindow(stage int) (time.Duration, time.Duration) {
	switch {
	case stage >= 6:
		return 1 * time.Hour, 3 * time.Hour
	case stage >= 4:
		return 90 * time.Minute, 4 * time.Hour
	case stage >= 2:
		return 2 * time.Hour, 6 * time.Hour
	default:
		return 4 * time.Hour, 10 * time.Hour
	}
}

// pressureMultiplier scales event deltas by stage. Stage 0 keeps the base
// range; each stage adds 25%.
func pressureMultiplier(stage int) float64 {
	return 1.0 + 0.25*float64(stage)
}

// Draw picks an event and its scaled debt delta for the given stage.
func Draw(rng *rand.Rand, stage int) (Event, int64) {
	var event Event
	if rng.Float64() < BadEventProbability(stage) {
		event = badEvents[rng.Intn(len(badEvents))]
	} else {
		event = mildEvents[rng.Intn(len(mildEvents))]
	}

	span := event.MaxDebt - event.MinDebt
	base := event.MinDebt
	if span > 0 {
		base += rng.Int63n(span + 1)
	}
	return event, int64(float64(base) * pressureMultiplier(stage))
}
