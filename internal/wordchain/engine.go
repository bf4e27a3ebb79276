package wordchain

import (
	"sort"
	"time"
	"unicode/utf8"
)

// Difficulty selects the opponent's search depth.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyNormal Difficulty = "normal"
	DifficultyHard   Difficulty = "hard"
)

const (
	candidateCap   = 60
	winScanCap     = 30
	searchDeadline = 1200 * time.Millisecond

	scoreWin = 1_000_000
)

// SearchDepth maps difficulty to the alpha-beta depth cap.
func SearchDepth(d Difficulty) int {
	switch d {
	case DifficultyEasy:
		return 4
	case DifficultyHard:
		return 20
	default:
		return 10
	}
}

// Engine evaluates moves against one dictionary and rule set. It holds no
// match state; used-sets are passed in by the session.
type Engine struct {
	dict  *Dictionary
	rules *Rules
}

// NewEngine creates a move engine.
func NewEngine(dict *Dictionary, rules *Rules) *Engine {
	return &Engine{dict: dict, rules: rules}
}

// MoveError classifies why a submitted word is not a legal follow.
type MoveError string

const (
	MoveOK           MoveError = ""
	MoveUsed         MoveError = "used"
	MoveNotWord      MoveError = "not_word"
	MoveIllegalFirst MoveError = "illegal_first"
)

// Validate checks w as a follow of prev: a dictionary word, unused,
// starting with an allowed syllable. An empty prev accepts any unused
// dictionary word, which opens a match.
func (e *Engine) Validate(prev, w string, used map[string]bool) MoveError {
	if used[w] {
		return MoveUsed
	}
	if !e.dict.Contains(w) {
		return MoveNotWord
	}
	if prev == "" {
		return MoveOK
	}
	if !e.rules.AllowedFirst(lastRune(prev))[firstRune(w)] {
		return MoveIllegalFirst
	}
	return MoveOK
}

// Legal reports whether w is a valid follow of prev.
func (e *Engine) Legal(prev, w string, used map[string]bool) bool {
	return e.Validate(prev, w, used) == MoveOK
}

// Candidates returns every legal follow of prev, ordered by (-length, lex)
// and truncated to the search cap.
func (e *Engine) Candidates(prev string, used map[string]bool) []string {
	var out []string
	for first := range e.rules.AllowedFirst(lastRune(prev)) {
		for _, w := range e.dict.startingWith(first) {
			if !used[w] {
				out = append(out, w)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(out[i]), utf8.RuneCountInString(out[j])
		if li != lj {
			return li > lj
		}
		return out[i] < out[j]
	})
	if len(out) > candidateCap {
		out = out[:candidateCap]
	}
	return out
}

// BestMove picks the opponent's reply to prev. Returns ok=false when no
// legal move exists, which resigns the turn. The search never exceeds the
// wall deadline by more than one node's work.
func (e *Engine) BestMove(prev string, used map[string]bool, depth int) (string, bool) {
	moves := e.Candidates(prev, used)
	if len(moves) == 0 {
		return "", false
	}

	// A move that leaves the opponent with nothing wins outright. The
	// candidate ordering makes the first hit the longest, then lexically
	// smallest, winner.
	scratch := cloneUsed(used)
	for i, w := range moves {
		if i >= winScanCap {
			break
		}
		scratch[w] = true
		if len(e.Candidates(w, scratch)) == 0 {
			return w, true
		}
		delete(scratch, w)
	}

	deadline := time.Now().Add(searchDeadline)
	best := moves[0]
	bestScore := -scoreWin - 1
	alpha, beta := -scoreWin-1, scoreWin+1
	for _, w := range moves {
		scratch[w] = true
		score := -e.search(w, scratch, depth-1, -beta, -alpha, deadline)
		delete(scratch, w)
		if score > bestScore {
			bestScore, best = score, w
		}
		if score > alpha {
			alpha = score
		}
		if time.Now().After(deadline) {
			break
		}
	}
	return best, true
}

// search is a negamax with alpha-beta pruning, scored from the side to
// move. Running out of moves is a loss; hitting the depth floor or the
// wall deadline is neutral.
func (e *Engine) search(last string, used map[string]bool, depth, alpha, beta int, deadline time.Time) int {
	if time.Now().After(deadline) {
		return 0
	}
	moves := e.Candidates(last, used)
	if len(moves) == 0 {
		return -scoreWin
	}
	if depth <= 0 {
		return 0
	}

	best := -scoreWin
	for _, w := range moves {
		used[w] = true
		score := -e.search(w, used, depth-1, -beta, -alpha, deadline)
		delete(used, w)
		if score > best {
			best = score
		}
		if score > alpha {
			alpha = score
		}
		if alpha >= beta {
			break
		}
	}
	return best
}

func cloneUsed(used map[string]bool) map[string]bool {
	clone := make(map[string]bool, len(used)+1)
	for w := range used {
		clone[w] = true
	}
	return clone
}
