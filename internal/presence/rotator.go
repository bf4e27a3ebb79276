// Package presence rotates the bot's status line on a jittered interval,
// picking from a pool filtered by the current KST time band.
package presence

import (
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/abydos/internal/clock"
)

const (
	minInterval = 35 * time.Minute
	maxInterval = 95 * time.Minute
)

// Status is one presence candidate. An empty Bands list means the status
// fits any time of day.
type Status struct {
	Text  string
	Bands []clock.TimeBand
}

var defaultStatuses = []Status{
	{Text: "사막 정찰 중 🏜️"},
	{Text: "빚 갚는 중... 💸"},
	{Text: "끝말잇기 연습 중"},
	{Text: "모래폭풍 관측 중", Bands: []clock.TimeBand{clock.BandDay, clock.BandEvening}},
	{Text: "야간 경계 근무 🌙", Bands: []clock.TimeBand{clock.BandNight}},
	{Text: "새벽 순찰 중", Bands: []clock.TimeBand{clock.BandNight, clock.BandMorning}},
	{Text: "아침 점호 ☀️", Bands: []clock.TimeBand{clock.BandMorning}},
	{Text: "물 배급 중 💧", Bands: []clock.TimeBand{clock.BandMorning, clock.BandDay}},
	{Text: "작업장 정비 중 🔧", Bands: []clock.TimeBand{clock.BandDay}},
	{Text: "저녁 식사 준비 🍲", Bands: []clock.TimeBand{clock.BandEvening}},
}

// Setter applies a status line to the chat transport.
type Setter interface {
	SetPresence(text string)
}

// Rotator drives the presence loop.
type Rotator struct {
	setter   Setter
	statuses []Status
	rng      *rand.Rand
	log      zerolog.Logger

	stop    chan struct{}
	stopped bool
	started bool
	mu      sync.Mutex
	wg      sync.WaitGroup
}

// NewRotator creates a rotator over the default status pool.
func NewRotator(setter Setter, log zerolog.Logger) *Rotator {
	return &Rotator{
		setter:   setter,
		statuses: defaultStatuses,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		log:      log.With().Str("component", "presence").Logger(),
		stop:     make(chan struct{}),
	}
}

// Start begins rotating. The first status is applied immediately.
func (r *Rotator) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started && !r.stopped {
		r.log.Warn().Msg("Presence rotator already started, ignoring")
		return
	}
	if r.stopped {
		r.stop = make(chan struct{})
		r.stopped = false
	}
	r.started = true

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.log.Info().Msg("Presence rotator started")
		r.Rotate(time.Now())
		for {
			timer := time.NewTimer(r.nextInterval())
			select {
			case <-r.stop:
				timer.Stop()
				return
			case <-timer.C:
				r.Rotate(time.Now())
			}
		}
	}()
}

// Stop halts the loop and waits for it to exit.
func (r *Rotator) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	close(r.stop)
	r.stopped = true
	r.started = false
	r.mu.Unlock()

	r.wg.Wait()
	r.log.Info().Msg("Presence rotator stopped")
}

// Rotate applies one status fitting now's time band. Exported so tests and
// the admin surface can force a rotation.
func (r *Rotator) Rotate(now time.Time) {
	pool := Eligible(r.statuses, clock.Band(now))
	if len(pool) == 0 {
		return
	}
	r.mu.Lock()
	status := pool[r.rng.Intn(len(pool))]
	r.mu.Unlock()

	r.setter.SetPresence(status.Text)
	r.log.Debug().Str("status", status.Text).Msg("Presence rotated")
}

func (r *Rotator) nextInterval() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return minInterval + time.Duration(r.rng.Int63n(int64(maxInterval-minInterval)))
}

// Eligible filters the pool to statuses allowed in the given band.
func Eligible(pool []Status, band clock.TimeBand) []Status {
	var out []Status
	for _, s := range pool {
		if len(s.Bands) == 0 {
			out = append(out, s)
			continue
		}
		for _, b := range s.Bands {
			if b == band {
				out = append(out, s)
				break
			}
		}
	}
	return out
}
