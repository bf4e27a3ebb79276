package levels

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"unicode"
)

// EffectiveChars counts the characters that carry content: digits, Latin
// letters, and Hangul syllables. Everything else is filler for XP purposes.
func EffectiveChars(s string) int64 {
	var n int64
	for _, r := range s {
		if isEffective(r) {
			n++
		}
	}
	return n
}

func isEffective(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		return true
	case r >= 0xAC00 && r <= 0xD7A3: // Hangul syllable block
		return true
	}
	return false
}

// Normalize canonicalizes a message for repeat detection: lowercase,
// punctuation to spaces, whitespace collapsed.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsSpace(r) {
			b.WriteRune(' ')
		} else {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Signature hashes the normalized form. Stored per (guild, user) so two
// identical messages inside the repeat window earn nothing the second time.
func Signature(s string) string {
	sum := sha1.Sum([]byte(Normalize(s)))
	return hex.EncodeToString(sum[:])
}

// HasLink reports whether the message carries a URL.
func HasLink(s string) bool {
	return strings.Contains(s, "http://") || strings.Contains(s, "https://")
}

// XPToNext returns the XP needed to go from level to level+1.
func XPToNext(level int64) int64 {
	return 5*level*level + 50*level + 100
}

// LevelForTotal resolves (level, xp into that level) for a lifetime total.
func LevelForTotal(total int64) (level, into int64) {
	for total >= XPToNext(level) {
		total -= XPToNext(level)
		level++
	}
	return level, total
}
