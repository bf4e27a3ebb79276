package bot

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

// Glitch glyph pool. Drawn from uniformly when a rune is corrupted.
var glitchGlyphs = []rune("▒▓░█▚▞▟▙■□◆◇")

// Glitcher occasionally corrupts outbound announcement text for flavor.
// It never touches command replies; only broadcast announcements pass
// through it.
type Glitcher struct {
	force    bool
	chance   float64 // probability a message is glitched at all
	split    float64 // probability a glitched message also gets a break
	maxRatio float64 // max fraction of runes corrupted

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGlitcher creates a glitcher with the given knobs. A zero chance with
// force off yields a pass-through.
func NewGlitcher(force bool, chance, split, maxRatio float64) *Glitcher {
	return &Glitcher{
		force:    force,
		chance:   chance,
		split:    split,
		maxRatio: maxRatio,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Apply returns the text, possibly glitched.
func (g *Glitcher) Apply(text string) string {
	if g == nil || text == "" {
		return text
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.force && g.rng.Float64() >= g.chance {
		return text
	}

	runes := []rune(text)
	corrupt := int(float64(len(runes)) * g.maxRatio)
	if corrupt < 1 {
		corrupt = 1
	}
	n := 1 + g.rng.Intn(corrupt)
	for i := 0; i < n; i++ {
		pos := g.rng.Intn(len(runes))
		if runes[pos] == '\n' {
			continue
		}
		runes[pos] = glitchGlyphs[g.rng.Intn(len(glitchGlyphs))]
	}

	out := string(runes)
	if g.rng.Float64() < g.split {
		mid := len(runes) / 2
		out = string(runes[:mid]) + "…" + strings.TrimLeft(string(runes[mid:]), " ")
	}
	return out
}
