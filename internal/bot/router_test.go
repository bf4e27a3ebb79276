package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/abydos/internal/daily"
	"github.com/aristath/abydos/internal/database"
	"github.com/aristath/abydos/internal/economy"
	"github.com/aristath/abydos/internal/levels"
	"github.com/aristath/abydos/internal/quest"
	"github.com/aristath/abydos/internal/wordchain"
	"github.com/aristath/abydos/internal/world"
)

type captureTransport struct {
	mu    sync.Mutex
	sends []string // "channel|text"
}

func (c *captureTransport) Send(channelID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sends = append(c.sends, channelID+"|"+text)
	return nil
}

func (c *captureTransport) Reply(m Message, text string) error {
	return c.Send(m.ChannelID, text)
}

func (c *captureTransport) last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sends) == 0 {
		return ""
	}
	return c.sends[len(c.sends)-1]
}

func (c *captureTransport) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sends)
}

func (c *captureTransport) contains(sub string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.sends {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func newTestBot(t *testing.T) (*database.DB, *captureTransport, *Bot) {
	t.Helper()
	db := database.NewTestDB(t)
	log := zerolog.Nop()
	tr := &captureTransport{}

	worlds := world.NewRepository(db.Conn(), log)
	worldSched := world.NewScheduler(worlds, nil, log)
	repo := economy.NewRepository(db.Conn(), log)
	debt := economy.NewDebtEngine(repo, log)
	explore := economy.NewExploreService(repo, log)
	workshop := economy.NewWorkshop(repo, log)
	quests := quest.NewService(repo, log)
	levelSvc := levels.NewService(db.Conn(), log)
	dailySvc := daily.NewService(db.Conn(), fakeCompleter{}, log)

	dict := wordchain.NewDictionary([]string{"가나", "나비"})
	engine := wordchain.NewEngine(dict, wordchain.DefaultRules())
	records := wordchain.NewRecords(db.Conn(), log)
	games := wordchain.NewManager(engine, records, NewTransportMessenger(tr, log), log)
	t.Cleanup(games.Shutdown)

	b := New(tr, Services{
		Worlds:     worlds,
		WorldSched: worldSched,
		Economy:    repo,
		Debt:       debt,
		Explore:    explore,
		Workshop:   workshop,
		Quests:     quests,
		Levels:     levelSvc,
		Daily:      dailySvc,
		Games:      games,
	}, "!", "ANNOUNCE", NewGlitcher(false, 0, 0, 0), log)
	return db, tr, b
}

type fakeCompleter struct{}

func (fakeCompleter) Complete(_ context.Context, _, _ string, _ int64) (string, error) {
	return "규칙", nil
}

func guildMsg(content string) Message {
	return Message{
		ID:         "M1",
		GuildID:    "G1",
		ChannelID:  "C1",
		AuthorID:   "U1",
		AuthorName: "유우카",
		Content:    content,
	}
}

func TestBotIgnoresOtherBots(t *testing.T) {
	_, tr, b := newTestBot(t)
	m := guildMsg("!wallet")
	m.IsBot = true
	b.HandleMessage(m)
	assert.Zero(t, tr.count())
}

func TestWalletCommand(t *testing.T) {
	_, tr, b := newTestBot(t)
	b.HandleMessage(guildMsg("!wallet"))
	assert.True(t, tr.contains("크레딧"), "wallet reply: %s", tr.last())
}

func TestExplore_SecondAttemptSameDay(t *testing.T) {
	_, tr, b := newTestBot(t)

	b.HandleMessage(guildMsg("!explore"))
	assert.True(t, tr.contains("탐사"), "first explore replies with a result")

	b.HandleMessage(guildMsg("!explore"))
	assert.True(t, tr.contains("이미 탐사"), "second explore is refused: %s", tr.last())
}

func TestRepay_NoDebt(t *testing.T) {
	_, tr, b := newTestBot(t)
	b.HandleMessage(guildMsg("!repay all"))
	assert.True(t, tr.contains("채무가 없습니다"), "got: %s", tr.last())
}

func TestRepay_UsageHint(t *testing.T) {
	_, tr, b := newTestBot(t)
	b.HandleMessage(guildMsg("!repay banana"))
	assert.True(t, tr.contains("사용법"), "got: %s", tr.last())
}

func TestWeatherSet_RequiresAdmin(t *testing.T) {
	_, tr, b := newTestBot(t)

	b.HandleMessage(guildMsg("!weather_set sandstorm"))
	assert.True(t, tr.contains("관리자"), "got: %s", tr.last())

	admin := guildMsg("!weather_set sandstorm")
	admin.AuthorIsAdmin = true
	b.HandleMessage(admin)
	assert.True(t, tr.contains("모래폭풍"), "got: %s", tr.last())
}

func TestWeatherCommand(t *testing.T) {
	_, tr, b := newTestBot(t)
	b.HandleMessage(guildMsg("!weather"))
	assert.True(t, tr.contains("현재 날씨"), "got: %s", tr.last())
}

func TestClaim_UnknownNumber(t *testing.T) {
	_, tr, b := newTestBot(t)
	b.HandleMessage(guildMsg("!claim 99"))
	assert.True(t, tr.contains("그런 퀘스트 번호"), "got: %s", tr.last())
}

func TestQuestsRendersBothBoards(t *testing.T) {
	_, tr, b := newTestBot(t)
	b.HandleMessage(guildMsg("!quests"))
	assert.True(t, tr.contains("일일 퀘스트"))
	assert.True(t, tr.contains("주간 퀘스트"))
}

func TestUnknownCommandIsSilent(t *testing.T) {
	_, tr, b := newTestBot(t)
	b.HandleMessage(guildMsg("!frobnicate"))
	assert.Zero(t, tr.count())
}

func TestPractice_BusyChannel(t *testing.T) {
	_, tr, b := newTestBot(t)

	b.HandleMessage(guildMsg("!practice easy"))
	b.HandleMessage(guildMsg("!practice easy"))
	assert.True(t, tr.contains("이미 게임이 진행 중"), "got: %s", tr.last())

	b.HandleMessage(guildMsg("!stop_practice"))
	require.Eventually(t, func() bool {
		return !b.services.Games.Active("G1", "C1")
	}, 3*time.Second, 10*time.Millisecond)
	b.HandleMessage(guildMsg("!stop_practice"))
	assert.True(t, tr.contains("진행 중인 게임이 없습니다"))
}

func TestStartWordgame_RequiresMention(t *testing.T) {
	_, tr, b := newTestBot(t)
	b.HandleMessage(guildMsg("!start_wordgame"))
	assert.True(t, tr.contains("사용법"), "got: %s", tr.last())
}

func TestChatMessageEarnsXPAndStamp(t *testing.T) {
	_, _, b := newTestBot(t)

	b.HandleMessage(guildMsg("안녕하세요 아비도스 주민 여러분"))

	total, _, _, _, err := b.services.Levels.State("G1", "U1")
	require.NoError(t, err)
	assert.Positive(t, total)

	settings, err := b.services.Daily.SettingsFor("U1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), settings.Stamps)
}

func TestCommandEarnsTieredXP(t *testing.T) {
	_, _, b := newTestBot(t)

	b.HandleMessage(guildMsg("!wallet"))

	total, _, _, _, err := b.services.Levels.State("G1", "U1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), total, "chat tier command awards 3 XP")
}

func TestLevelCommand(t *testing.T) {
	_, tr, b := newTestBot(t)
	b.HandleMessage(guildMsg("!level"))
	assert.True(t, tr.contains("Lv.0"), "got: %s", tr.last())
}

func TestSuggestStoresSuggestion(t *testing.T) {
	_, tr, b := newTestBot(t)

	b.HandleMessage(guildMsg("!suggest 매일 물 아끼기"))
	assert.True(t, tr.contains("접수"))

	texts, err := b.services.Daily.RecentSuggestions(5)
	require.NoError(t, err)
	require.Len(t, texts, 1)
	assert.Equal(t, "매일 물 아끼기", texts[0])
}

func TestAnnounceWeatherUsesAnnounceChannel(t *testing.T) {
	_, tr, b := newTestBot(t)

	b.AnnounceWeather(world.State{
		Weather:      world.Sandstorm,
		ChangedAt:    time.Now(),
		NextChangeAt: time.Now().Add(5 * time.Hour),
	})
	assert.True(t, strings.HasPrefix(tr.last(), "ANNOUNCE|"))
	assert.True(t, tr.contains("모래폭풍"))
}
