package wordchain

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/abydos/internal/database"
)

type captureMessenger struct {
	mu   sync.Mutex
	sent []string
}

func (c *captureMessenger) Send(channelID, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, text)
}

func (c *captureMessenger) contains(substr string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.sent {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}

func newTestManager(t *testing.T, words []string) (*Manager, *Records, *captureMessenger) {
	t.Helper()
	db := database.NewTestDB(t)
	records := NewRecords(db.Conn(), zerolog.Nop())
	engine := NewEngine(NewDictionary(words), newRules(map[rune][]rune{}))
	sender := &captureMessenger{}
	m := NewManager(engine, records, sender, zerolog.Nop())
	t.Cleanup(m.Shutdown)
	return m, records, sender
}

func waitRecord(t *testing.T, records *Records, uid string, wins, losses int64) {
	t.Helper()
	require.Eventually(t, func() bool {
		rec, err := records.For(uid)
		return err == nil && rec.Wins == wins && rec.Losses == losses
	}, 3*time.Second, 10*time.Millisecond)
}

func TestPractice_UserWinsWhenNoFollowExists(t *testing.T) {
	// 나비 leaves nothing starting with 비.
	m, records, _ := newTestManager(t, []string{"나비"})
	require.NoError(t, m.StartPractice("G1", "C1", "U1", "tester", DifficultyEasy))

	assert.True(t, m.HandleMessage("G1", "C1", "U1", "나비"))
	waitRecord(t, records, "U1", 1, 0)

	require.Eventually(t, func() bool { return !m.Active("G1", "C1") },
		time.Second, 10*time.Millisecond)
}

func TestPractice_OpponentRepliesAndWins(t *testing.T) {
	// User opens 가나, the opponent must answer 나비, after which the user
	// has no word starting with 비.
	m, records, sender := newTestManager(t, []string{"가나", "나비"})
	require.NoError(t, m.StartPractice("G1", "C1", "U1", "tester", DifficultyNormal))

	assert.True(t, m.HandleMessage("G1", "C1", "U1", "가나"))
	waitRecord(t, records, "U1", 0, 1)
	assert.True(t, sender.contains("나비"))
}

func TestPractice_IllegalMoveKeepsTurn(t *testing.T) {
	m, records, sender := newTestManager(t, []string{"나비"})
	require.NoError(t, m.StartPractice("G1", "C1", "U1", "tester", DifficultyEasy))

	// Not a dictionary word: answered, turn continues.
	assert.True(t, m.HandleMessage("G1", "C1", "U1", "없는말"))
	require.Eventually(t, func() bool { return sender.contains("사전에 없는") },
		time.Second, 10*time.Millisecond)
	assert.True(t, m.Active("G1", "C1"))

	// The same turn still accepts a legal word.
	assert.True(t, m.HandleMessage("G1", "C1", "U1", "나비"))
	waitRecord(t, records, "U1", 1, 0)
}

func TestPractice_ForfeitLoses(t *testing.T) {
	m, records, _ := newTestManager(t, []string{"나비"})
	require.NoError(t, m.StartPractice("G1", "C1", "U1", "tester", DifficultyEasy))

	assert.True(t, m.HandleMessage("G1", "C1", "U1", "기권"))
	waitRecord(t, records, "U1", 0, 1)
}

func TestPvP_Flow(t *testing.T) {
	m, records, _ := newTestManager(t, []string{"가나", "나비"})
	require.NoError(t, m.StartPvP("G1", "C1", "U1", "host", "U2", "opp"))

	// Host opens; it is not U2's turn, so U2's message is swallowed
	// without effect.
	assert.True(t, m.HandleMessage("G1", "C1", "U2", "가나"))
	assert.True(t, m.HandleMessage("G1", "C1", "U1", "가나"))

	// U2 plays the terminal word and wins.
	assert.True(t, m.HandleMessage("G1", "C1", "U2", "나비"))
	waitRecord(t, records, "U2", 1, 0)
	waitRecord(t, records, "U1", 0, 1)
}

func TestManager_OneSessionPerChannel(t *testing.T) {
	m, _, _ := newTestManager(t, []string{"나비"})
	require.NoError(t, m.StartPractice("G1", "C1", "U1", "tester", DifficultyEasy))

	err := m.StartPractice("G1", "C1", "U2", "other", DifficultyEasy)
	assert.ErrorIs(t, err, ErrChannelBusy)

	// A different channel is free.
	assert.NoError(t, m.StartPractice("G1", "C2", "U2", "other", DifficultyEasy))
}

func TestManager_StopAbortsWithoutRecord(t *testing.T) {
	m, records, _ := newTestManager(t, []string{"나비"})
	require.NoError(t, m.StartPractice("G1", "C1", "U1", "tester", DifficultyEasy))

	assert.True(t, m.Stop("G1", "C1"))
	require.Eventually(t, func() bool { return !m.Active("G1", "C1") },
		time.Second, 10*time.Millisecond)

	rec, err := records.For("U1")
	require.NoError(t, err)
	assert.Zero(t, rec.Wins)
	assert.Zero(t, rec.Losses)

	assert.False(t, m.Stop("G1", "C1"), "second stop finds nothing")
}

func TestManager_IgnoresNonParticipants(t *testing.T) {
	m, _, _ := newTestManager(t, []string{"나비"})
	require.NoError(t, m.StartPractice("G1", "C1", "U1", "tester", DifficultyEasy))

	assert.False(t, m.HandleMessage("G1", "C1", "STRANGER", "나비"))
	assert.False(t, m.HandleMessage("G1", "C9", "U1", "나비"), "wrong channel")
}

func TestRecords_Tally(t *testing.T) {
	db := database.NewTestDB(t)
	records := NewRecords(db.Conn(), zerolog.Nop())

	require.NoError(t, records.Add("U1", "one", true))
	require.NoError(t, records.Add("U1", "one", false))
	require.NoError(t, records.Add("U1", "", true))
	require.NoError(t, records.Add("U2", "two", false))

	rec, err := records.For("U1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.Wins)
	assert.Equal(t, int64(1), rec.Losses)
	assert.Equal(t, "one", rec.DisplayName, "blank names never overwrite")

	top, err := records.Top(10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "U1", top[0].UserID)

	rec, err = records.For("NOBODY")
	require.NoError(t, err)
	assert.Zero(t, rec.Wins)
}
