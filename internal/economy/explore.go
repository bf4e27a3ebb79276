package economy

import (
	"database/sql"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/abydos/internal/database"
	"github.com/aristath/abydos/internal/world"
)

// Buff item keys. mask is a binary environmental modifier; drone and kit
// are single-use and consume one stack on a committed exploration.
const (
	BuffMask  = "mask"
	BuffDrone = "drone"
	BuffKit   = "kit"
)

// buffSpec describes what using a consumable grants.
type buffSpec struct {
	stacks   int64
	lifespan time.Duration
}

var buffSpecs = map[string]buffSpec{
	BuffMask:  {stacks: 1, lifespan: 6 * time.Hour},
	BuffDrone: {stacks: 2, lifespan: 24 * time.Hour},
	BuffKit:   {stacks: 1, lifespan: 24 * time.Hour},
}

// LootItem is one dropped item stack.
type LootItem struct {
	ItemKey string
	Qty     int64
}

// Roll is the caller-provided random outcome of an exploration. The
// service itself stays deterministic so the idempotence invariant is
// testable; randomness lives in RollExplore.
type Roll struct {
	Success bool
	Credits int64
	Water   int64
	Loot    []LootItem
}

// ExploreResult is the committed outcome of a daily exploration.
type ExploreResult struct {
	Weather      world.Weather // effective weather after mask normalization
	Success      bool
	CreditsDelta int64
	WaterDelta   int64
	CreditsAfter int64
	WaterAfter   int64
	Loot         []LootItem
	BuffConsumed string // drone/kit key when a stack was spent
}

// ExploreService implements the once-per-day exploration transaction.
type ExploreService struct {
	repo *Repository
	log  zerolog.Logger
}

// NewExploreService creates a new exploration service.
func NewExploreService(repo *Repository, log zerolog.Logger) *ExploreService {
	return &ExploreService{
		repo: repo,
		log:  log.With().Str("service", "explore").Logger(),
	}
}

// EffectiveWeather applies an active mask buff to the world weather:
// sandstorm is experienced as cloudy. The mask is binary; no stack is
// consumed by this check.
func (s *ExploreService) EffectiveWeather(uid string, actual world.Weather, now time.Time) (world.Weather, error) {
	if actual != world.Sandstorm {
		return actual, nil
	}
	buff, err := s.repo.EnsureBuffValid(uid, now)
	if err != nil {
		return actual, err
	}
	if buff.Key == BuffMask {
		return world.Cloudy, nil
	}
	return actual, nil
}

// ClaimDailyExplore atomically grants the once-per-day exploration reward.
// Returns (nil, nil) when the user already explored today; in that case
// nothing is consumed. The roll must already reflect the effective weather.
//
// Loot and buff consumption happen strictly after the commit: the economy
// row's last_explore_ymd is the single row that decides "explored today",
// and a crash between commit and loot loses at most the loot, never the
// idempotence.
func (s *ExploreService) ClaimDailyExplore(uid, today string, roll Roll, weather world.Weather) (*ExploreResult, error) {
	var (
		result    *ExploreResult
		duplicate bool
	)
	err := database.WithTransaction(s.repo.DB(), func(tx *sql.Tx) error {
		wallet, err := getWallet(tx, uid)
		if err != nil {
			return err
		}
		if wallet.LastExploreYMD == today {
			duplicate = true
			return nil
		}

		now := time.Now()
		if _, err := tx.Exec(`
			UPDATE aby_user_economy
			SET credits = credits + ?, water = water + ?, last_explore_ymd = ?, updated_at = ?
			WHERE user_id = ?
		`, roll.Credits, roll.Water, today, now.Unix(), uid); err != nil {
			return fmt.Errorf("failed to apply exploration reward: %w", err)
		}

		success := 0
		if roll.Success {
			success = 1
		}
		if _, err := tx.Exec(`
			INSERT INTO aby_explore_meta
				(user_id, date_ymd, weather, success, credits_delta, water_delta, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, uid, today, string(weather), success, roll.Credits, roll.Water, now.Unix()); err != nil {
			return fmt.Errorf("failed to record explore meta: %w", err)
		}
		if err := insertLog(tx, "", uid, KindExplore, roll.Credits, roll.Water, 0, today, now); err != nil {
			return err
		}

		result = &ExploreResult{
			Weather:      weather,
			Success:      roll.Success,
			CreditsDelta: roll.Credits,
			WaterDelta:   roll.Water,
			CreditsAfter: wallet.Credits + roll.Credits,
			WaterAfter:   wallet.Water + roll.Water,
			Loot:         roll.Loot,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if duplicate {
		return nil, nil
	}

	// Post-commit effects. Failures here are logged, not propagated: the
	// exploration itself is already durable.
	now := time.Now()
	for _, loot := range roll.Loot {
		if err := s.repo.AddItem(uid, loot.ItemKey, loot.Qty); err != nil {
			s.log.Error().Err(err).Str("user", uid).Str("item", loot.ItemKey).Msg("Failed to grant loot")
		}
	}
	if roll.Success {
		buff, err := s.repo.EnsureBuffValid(uid, now)
		if err != nil {
			s.log.Error().Err(err).Str("user", uid).Msg("Failed to read buff after explore")
		} else if buff.Key == BuffDrone || buff.Key == BuffKit {
			if err := s.repo.ConsumeBuffStack(uid, buff.Key, now); err != nil {
				s.log.Error().Err(err).Str("user", uid).Msg("Failed to consume buff stack")
			} else {
				result.BuffConsumed = buff.Key
			}
		}
	}

	s.log.Info().
		Str("user", uid).Str("ymd", today).Str("weather", string(weather)).
		Bool("success", roll.Success).Int64("credits", roll.Credits).
		Msg("Exploration claimed")
	return result, nil
}

// UseItem consumes one unit of a consumable item and installs its buff,
// replacing any previous buff, in a single transaction.
func (s *ExploreService) UseItem(uid, itemKey string, now time.Time) (Reason, error) {
	spec, ok := buffSpecs[itemKey]
	if !ok {
		return ReasonNotConsumable, nil
	}

	reason := ReasonNone
	err := database.WithTransaction(s.repo.DB(), func(tx *sql.Tx) error {
		qty, err := getItemQty(tx, uid, itemKey)
		if err != nil {
			return err
		}
		if qty < 1 {
			reason = ReasonInsufficientItems
			return nil
		}
		if err := removeItem(tx, uid, itemKey, 1); err != nil {
			return err
		}
		return setBuff(tx, uid, itemKey, spec.stacks, now.Add(spec.lifespan))
	})
	if err != nil {
		return ReasonNone, err
	}
	return reason, nil
}

// RollExplore draws a random exploration outcome for the given effective
// weather. Sandstorms fail more often and pay less; drones push the
// success rate up, kits sweeten the loot.
func RollExplore(rng *rand.Rand, weather world.Weather, buffKey string) Roll {
	successP := 0.80
	switch weather {
	case world.Cloudy:
		successP = 0.70
	case world.Sandstorm:
		successP = 0.40
	}
	if buffKey == BuffDrone {
		successP += 0.15
		if successP > 0.95 {
			successP = 0.95
		}
	}

	if rng.Float64() >= successP {
		return Roll{Success: false, Credits: 500 + rng.Int63n(1000)}
	}

	roll := Roll{
		Success: true,
		Credits: 8000 + rng.Int63n(8001),
		Water:   1 + rng.Int63n(2),
	}
	lootP := 0.35
	if buffKey == BuffKit {
		lootP = 0.75
	}
	if rng.Float64() < lootP {
		roll.Loot = append(roll.Loot, LootItem{ItemKey: "scrap", Qty: 1 + rng.Int63n(3)})
	}
	if weather == world.Sandstorm && rng.Float64() < 0.20 {
		// Sandstorm salvage: rare crystal find
		roll.Loot = append(roll.Loot, LootItem{ItemKey: "crystal", Qty: 1})
	}
	return roll
}
