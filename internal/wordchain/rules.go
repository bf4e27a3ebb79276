// Package wordchain implements the Korean word-chain game: a dictionary
// index with a phonetic follow rule, per-channel match sessions, and a
// bounded-time minimax opponent.
package wordchain

import (
	"bufio"
	"encoding/json"
	"strings"
)

// Rules is the phonetic-equivalence map. A word may start with the previous
// word's last syllable, any syllable it maps to, or any syllable that maps
// to it. The closure is symmetric so players are never punished for which
// side of a sound shift the dictionary happens to spell.
type Rules struct {
	forward map[rune][]rune
	inverse map[rune][]rune
}

// Initial-sound shifts applied when neither a rules file nor rules JSON is
// available.
var defaultShifts = map[rune][]rune{
	'녀': {'여'}, '뇨': {'요'}, '뉴': {'유'}, '니': {'이'},
	'라': {'나'}, '래': {'내'}, '로': {'노'}, '뢰': {'뇌'}, '루': {'누'}, '르': {'느'},
	'랴': {'야'}, '려': {'여'}, '례': {'예'}, '료': {'요'}, '류': {'유'}, '리': {'이'},
	'량': {'양'}, '력': {'역'}, '련': {'연'}, '렬': {'열'}, '렴': {'염'}, '령': {'영'},
}

// ParseRules builds the rule map from raw bytes, trying the line format
// ("리 -> 이" or "리 -> 이, 니") first and a JSON object second. Empty or
// unparseable input falls back to the built-in shifts.
func ParseRules(data []byte) *Rules {
	if m := parseRuleLines(data); len(m) > 0 {
		return newRules(m)
	}
	var jm map[string][]string
	if err := json.Unmarshal(data, &jm); err == nil && len(jm) > 0 {
		m := make(map[rune][]rune, len(jm))
		for k, vs := range jm {
			kr := []rune(strings.TrimSpace(k))
			if len(kr) != 1 {
				continue
			}
			for _, v := range vs {
				vr := []rune(strings.TrimSpace(v))
				if len(vr) == 1 {
					m[kr[0]] = append(m[kr[0]], vr[0])
				}
			}
		}
		if len(m) > 0 {
			return newRules(m)
		}
	}
	return DefaultRules()
}

// DefaultRules returns the built-in initial-sound rule set.
func DefaultRules() *Rules {
	return newRules(defaultShifts)
}

func parseRuleLines(data []byte) map[rune][]rune {
	m := make(map[rune][]rune)
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		left, right, ok := strings.Cut(line, "->")
		if !ok {
			continue
		}
		lr := []rune(strings.TrimSpace(left))
		if len(lr) != 1 {
			continue
		}
		for _, part := range strings.Split(right, ",") {
			pr := []rune(strings.TrimSpace(part))
			if len(pr) == 1 {
				m[lr[0]] = append(m[lr[0]], pr[0])
			}
		}
	}
	return m
}

func newRules(forward map[rune][]rune) *Rules {
	r := &Rules{
		forward: make(map[rune][]rune, len(forward)),
		inverse: make(map[rune][]rune),
	}
	for k, vs := range forward {
		r.forward[k] = append(r.forward[k], vs...)
		for _, v := range vs {
			r.inverse[v] = append(r.inverse[v], k)
		}
	}
	return r
}

// AllowedFirst returns every syllable a follow of a word ending in last may
// start with.
func (r *Rules) AllowedFirst(last rune) map[rune]bool {
	allowed := map[rune]bool{last: true}
	for _, c := range r.forward[last] {
		allowed[c] = true
	}
	for _, c := range r.inverse[last] {
		allowed[c] = true
	}
	return allowed
}
