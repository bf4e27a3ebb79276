package world

import (
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// Weather rotation parameters. The draw weights are deliberately skewed
// towards clear skies; sandstorms are the rare, punishing state.
const (
	tickInterval = 60 * time.Second
	minChangeGap = 4 * time.Hour
	maxChangeGap = 6 * time.Hour
	weightClear  = 0.55
	weightCloudy = 0.30
	weightStorm  = 0.15
)

var drawOrder = []Weather{Clear, Cloudy, Sandstorm}

// Notifier receives best-effort weather change announcements.
// Implemented by the bot transport layer; kept as an interface to avoid an
// import cycle.
type Notifier interface {
	AnnounceWeather(state State)
}

// Scheduler rotates the global weather on a randomized 4-6h cycle.
// Exactly one Scheduler runs per process; it is the single writer of the
// world_state row.
type Scheduler struct {
	repo     *Repository
	notifier Notifier // may be nil
	rng      *rand.Rand
	log      zerolog.Logger

	stop    chan struct{}
	stopped bool
	started bool
	mu      sync.Mutex
	wg      sync.WaitGroup
}

// NewScheduler creates a new weather rotation scheduler.
func NewScheduler(repo *Repository, notifier Notifier, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		repo:     repo,
		notifier: notifier,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		log:      log.With().Str("component", "world_scheduler").Logger(),
		stop:     make(chan struct{}),
	}
}

// SetNotifier attaches the announcement sink. Must be called before Start.
func (s *Scheduler) SetNotifier(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

// Start starts the rotation loop.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started && !s.stopped {
		s.log.Warn().Msg("World scheduler already started, ignoring")
		return
	}
	if s.stopped {
		s.stop = make(chan struct{})
		s.stopped = false
	}
	s.started = true

	// Small startup jitter so a fleet of restarts doesn't tick in lockstep
	// with the other background loops.
	jitter := 500*time.Millisecond + time.Duration(s.rng.Int63n(int64(2500*time.Millisecond)))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		select {
		case <-s.stop:
			return
		case <-time.After(jitter):
		}

		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		s.log.Info().Msg("World scheduler started")

		for {
			select {
			case <-s.stop:
				return
			case now := <-ticker.C:
				if err := s.Tick(now); err != nil {
					// Per-iteration failures are logged and the loop
					// continues; the next tick retries.
					s.log.Error().Err(err).Msg("Weather tick failed")
				}
			}
		}
	}()
}

// Stop stops the scheduler and waits for the loop to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	close(s.stop)
	s.stopped = true
	s.started = false
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info().Msg("World scheduler stopped")
}

// Tick advances the weather if the current rotation has expired. Exported
// so tests can drive the scheduler without real time.
func (s *Scheduler) Tick(now time.Time) error {
	state, err := s.repo.Get()
	if err != nil {
		return err
	}
	if state.NextChangeAt.After(now) {
		return nil
	}

	next := s.draw(state.Weather)
	nextChange := now.Add(minChangeGap + time.Duration(s.rng.Int63n(int64(maxChangeGap-minChangeGap))))
	if err := s.repo.Set(next, now, nextChange); err != nil {
		return err
	}

	s.log.Info().
		Str("from", string(state.Weather)).
		Str("to", string(next)).
		Time("next_change", nextChange).
		Msg("Weather rotated")

	if s.notifier != nil {
		// Announcements are best-effort and never fatal.
		s.notifier.AnnounceWeather(State{Weather: next, ChangedAt: now, NextChangeAt: nextChange})
	}
	return nil
}

// Force overrides the weather immediately and reschedules the next change.
// Used by the admin weather_set command.
func (s *Scheduler) Force(weather Weather, now time.Time) (State, error) {
	nextChange := now.Add(minChangeGap + time.Duration(s.rng.Int63n(int64(maxChangeGap-minChangeGap))))
	if err := s.repo.Set(weather, now, nextChange); err != nil {
		return State{}, err
	}
	state := State{Weather: weather, ChangedAt: now, NextChangeAt: nextChange}
	if s.notifier != nil {
		s.notifier.AnnounceWeather(state)
	}
	return state, nil
}

// draw picks the next weather by weighted draw; if the pick equals the
// current weather it re-rolls once uniformly among the other two.
func (s *Scheduler) draw(current Weather) Weather {
	w := sampleuv.NewWeighted([]float64{weightClear, weightCloudy, weightStorm}, nil)
	idx, ok := w.Take()
	if !ok {
		return Clear
	}
	pick := drawOrder[idx]
	if pick != current {
		return pick
	}

	others := make([]Weather, 0, 2)
	for _, cand := range drawOrder {
		if cand != current {
			others = append(others, cand)
		}
	}
	return others[s.rng.Intn(len(others))]
}
