package wordchain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRules_LineFormat(t *testing.T) {
	rules := ParseRules([]byte(`
# initial-sound shifts
리 -> 이
라 -> 나, 야
`))

	allowed := rules.AllowedFirst('리')
	assert.True(t, allowed['리'])
	assert.True(t, allowed['이'])
	assert.False(t, allowed['나'])

	allowed = rules.AllowedFirst('라')
	assert.True(t, allowed['나'])
	assert.True(t, allowed['야'])
}

func TestParseRules_JSON(t *testing.T) {
	rules := ParseRules([]byte(`{"리": ["이"]}`))
	assert.True(t, rules.AllowedFirst('리')['이'])
}

func TestParseRules_FallsBackToDefault(t *testing.T) {
	rules := ParseRules([]byte("not a rules file"))
	assert.True(t, rules.AllowedFirst('리')['이'], "default shifts apply")

	rules = ParseRules(nil)
	assert.True(t, rules.AllowedFirst('녀')['여'])
}

func TestRules_SymmetricClosure(t *testing.T) {
	rules := ParseRules([]byte("리 -> 이"))

	// Forward: a word ending in 리 may be followed by 이...
	assert.True(t, rules.AllowedFirst('리')['이'])
	// ...and inverse: a word ending in 이 may be followed by 리...
	assert.True(t, rules.AllowedFirst('이')['리'])
	// ...and the identity always holds.
	assert.True(t, rules.AllowedFirst('이')['이'])
}

func TestDictionary_Index(t *testing.T) {
	dict := NewDictionary([]string{"가나", "가나다라", "가방", "가나", "나비"})

	assert.Equal(t, 4, dict.Len(), "duplicates collapse")
	assert.True(t, dict.Contains("가방"))
	assert.False(t, dict.Contains("없음"))

	// Buckets are ordered longest first, then lexically.
	assert.Equal(t, []string{"가나다라", "가나", "가방"}, dict.startingWith('가'))
}

func TestValidate_FollowRule(t *testing.T) {
	// The previous word ends in 리 and 기차 has already been played.
	dict := NewDictionary([]string{"기차", "이마", "바다", "유리"})
	engine := NewEngine(dict, ParseRules([]byte("리 -> 이")))
	used := map[string]bool{"유리": true, "기차": true}

	assert.Equal(t, MoveOK, engine.Validate("유리", "이마", used), "이 follows 리 via the shift")
	assert.Equal(t, MoveUsed, engine.Validate("유리", "기차", used))
	assert.Equal(t, MoveIllegalFirst, engine.Validate("유리", "바다", used))
	assert.Equal(t, MoveNotWord, engine.Validate("유리", "없는말", used))
}

func TestValidate_OpeningMove(t *testing.T) {
	dict := NewDictionary([]string{"바다"})
	engine := NewEngine(dict, DefaultRules())

	assert.Equal(t, MoveOK, engine.Validate("", "바다", map[string]bool{}))
	assert.Equal(t, MoveNotWord, engine.Validate("", "없는말", map[string]bool{}))
}

func TestCandidates_OrderAndCap(t *testing.T) {
	dict := NewDictionary([]string{"다리미", "다리", "다발"})
	engine := NewEngine(dict, DefaultRules())

	got := engine.Candidates("바다", map[string]bool{"다리": true})
	assert.Equal(t, []string{"다리미", "다발"}, got)
}

func TestBestMove_TakesImmediateWin(t *testing.T) {
	// 나비 leaves nothing starting with 비; 나라 leaves 라면 open.
	dict := NewDictionary([]string{"나비", "나라", "라면"})
	engine := NewEngine(dict, newRules(map[rune][]rune{}))

	word, ok := engine.BestMove("가나", map[string]bool{}, SearchDepth(DifficultyNormal))
	require.True(t, ok)
	assert.Equal(t, "나비", word)
}

func TestBestMove_ResignsWithNoMoves(t *testing.T) {
	dict := NewDictionary([]string{"가나"})
	engine := NewEngine(dict, DefaultRules())

	_, ok := engine.BestMove("가나", map[string]bool{}, SearchDepth(DifficultyHard))
	assert.False(t, ok)
}

func TestBestMove_NeverIllegal(t *testing.T) {
	dict := NewDictionary([]string{"가나", "나비", "비누", "누나", "나무", "무지개", "개미", "미소"})
	engine := NewEngine(dict, DefaultRules())

	used := map[string]bool{}
	last := "가나"
	used[last] = true
	for i := 0; i < 8; i++ {
		word, ok := engine.BestMove(last, used, SearchDepth(DifficultyEasy))
		if !ok {
			return
		}
		require.Equal(t, MoveOK, engine.Validate(last, word, used),
			"engine played %q after %q", word, last)
		used[word] = true
		last = word
	}
}

func TestSearchDepth(t *testing.T) {
	assert.Equal(t, 4, SearchDepth(DifficultyEasy))
	assert.Equal(t, 10, SearchDepth(DifficultyNormal))
	assert.Equal(t, 20, SearchDepth(DifficultyHard))
	assert.Equal(t, 10, SearchDepth(Difficulty("bogus")))
}
