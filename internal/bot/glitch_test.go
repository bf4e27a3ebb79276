package bot

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestGlitcher_PassThroughWhenDisabled(t *testing.T) {
	g := NewGlitcher(false, 0, 0, 0.25)
	text := "모래폭풍이 몰려옵니다"
	for i := 0; i < 50; i++ {
		assert.Equal(t, text, g.Apply(text))
	}
}

func TestGlitcher_ForceAlwaysCorrupts(t *testing.T) {
	g := NewGlitcher(true, 0, 0, 0.25)
	text := "모래폭풍이 몰려옵니다"

	changed := false
	for i := 0; i < 50; i++ {
		out := g.Apply(text)
		assert.True(t, utf8.ValidString(out))
		if out != text {
			changed = true
		}
	}
	assert.True(t, changed)
}

func TestGlitcher_NilAndEmpty(t *testing.T) {
	var g *Glitcher
	assert.Equal(t, "x", g.Apply("x"))

	g = NewGlitcher(true, 1, 1, 0.5)
	assert.Equal(t, "", g.Apply(""))
}

func TestGlitcher_BoundedCorruption(t *testing.T) {
	g := NewGlitcher(true, 1, 0, 0.2)
	text := "아비도스 사막 콜로니의 아침이 밝았습니다"
	runes := []rune(text)

	for i := 0; i < 50; i++ {
		out := []rune(g.Apply(text))
		diff := 0
		for j := range runes {
			if out[j] != runes[j] {
				diff++
			}
		}
		// At most maxRatio of the runes may differ.
		assert.LessOrEqual(t, diff, int(float64(len(runes))*0.2)+1)
	}
}
