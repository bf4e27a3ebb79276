package levels

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/abydos/internal/database"
)

func newTestService(t *testing.T) (*database.DB, *Service) {
	t.Helper()
	db := database.NewTestDB(t)
	return db, NewService(db.Conn(), zerolog.Nop())
}

func TestEffectiveChars(t *testing.T) {
	assert.Equal(t, int64(0), EffectiveChars("!!! ... ???"))
	assert.Equal(t, int64(5), EffectiveChars("ab 12띠"))
	assert.Equal(t, int64(5), EffectiveChars("안녕하세요"), "Hangul syllables count")
	assert.Equal(t, int64(0), EffectiveChars("ㅋㅋㅋ"), "jamo-only filler does not count")
}

func TestNormalizeAndSignature(t *testing.T) {
	assert.Equal(t, "hello world", Normalize("  Hello,   WORLD!! "))
	assert.Equal(t, Signature("Hello, world"), Signature("hello   world"))
	assert.NotEqual(t, Signature("hello world"), Signature("hello worlds"))
}

func TestXPToNext_Curve(t *testing.T) {
	assert.Equal(t, int64(100), XPToNext(0))
	assert.Equal(t, int64(155), XPToNext(1))
	assert.Equal(t, int64(5*10*10+50*10+100), XPToNext(10))
}

func TestLevelForTotal(t *testing.T) {
	level, into := LevelForTotal(0)
	assert.Zero(t, level)
	assert.Zero(t, into)

	level, into = LevelForTotal(99)
	assert.Zero(t, level)
	assert.Equal(t, int64(99), into)

	level, into = LevelForTotal(100)
	assert.Equal(t, int64(1), level)
	assert.Zero(t, into)

	// 100 + 155 = 255 reaches level 2.
	level, into = LevelForTotal(260)
	assert.Equal(t, int64(2), level)
	assert.Equal(t, int64(5), into)
}

func TestHandleChat_AwardBounds(t *testing.T) {
	_, svc := newTestService(t)
	cfg := DefaultConfig()
	now := time.Now()

	msg := ChatMessage{GuildID: "G1", ChannelID: "C1", UserID: "U1", Content: "오늘 날씨가 좋네요"}
	_, err := svc.HandleChat(msg, "!", now)
	require.NoError(t, err)

	total, _, _, _, err := svc.State("G1", "U1")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, total, cfg.ChatMin)
	assert.LessOrEqual(t, total, cfg.TotalCap)
}

func TestHandleChat_Filters(t *testing.T) {
	_, svc := newTestService(t)
	now := time.Now()

	cases := []ChatMessage{
		{GuildID: "G1", ChannelID: "C1", UserID: "U1", Content: "hello there", IsBot: true},
		{GuildID: "G1", ChannelID: "C1", UserID: "U1", Content: "!explore"},
		{GuildID: "G1", ChannelID: "C1", UserID: "U1", Content: "ㅋㅋ!!"},
	}
	for _, msg := range cases {
		up, err := svc.HandleChat(msg, "!", now)
		require.NoError(t, err)
		assert.Nil(t, up)
	}

	total, _, _, _, err := svc.State("G1", "U1")
	require.NoError(t, err)
	assert.Zero(t, total, "filtered messages award nothing")
}

func TestHandleChat_IgnoredChannel(t *testing.T) {
	_, svc := newTestService(t)
	cfg := DefaultConfig()
	cfg.IgnoredChannels = []string{"C_SPAM"}
	require.NoError(t, svc.SetConfig("G1", cfg))

	_, err := svc.HandleChat(ChatMessage{
		GuildID: "G1", ChannelID: "C_SPAM", UserID: "U1", Content: "완전 정상적인 메시지",
	}, "!", time.Now())
	require.NoError(t, err)

	total, _, _, _, err := svc.State("G1", "U1")
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestHandleChat_RepeatSuppression(t *testing.T) {
	_, svc := newTestService(t)
	now := time.Now()

	msg := ChatMessage{GuildID: "G1", ChannelID: "C1", UserID: "U1", Content: "반복되는 메시지 입니다"}
	_, err := svc.HandleChat(msg, "!", now)
	require.NoError(t, err)
	first, _, _, _, err := svc.State("G1", "U1")
	require.NoError(t, err)
	require.Positive(t, first)

	// Same content inside the window: normalization differences don't help.
	msg.Content = "  반복되는   메시지 입니다!! "
	_, err = svc.HandleChat(msg, "!", now.Add(10*time.Second))
	require.NoError(t, err)
	after, _, _, _, err := svc.State("G1", "U1")
	require.NoError(t, err)
	assert.Equal(t, first, after)

	// Outside the window it earns again.
	_, err = svc.HandleChat(msg, "!", now.Add(time.Duration(DefaultConfig().RepeatWindowSec+20)*time.Second))
	require.NoError(t, err)
	after, _, _, _, err = svc.State("G1", "U1")
	require.NoError(t, err)
	assert.Greater(t, after, first)
}

func TestHandleChat_Bonuses(t *testing.T) {
	_, svc := newTestService(t)
	cfg := DefaultConfig()
	// Pin the uniform base so bonuses are observable.
	cfg.ChatMin, cfg.ChatMax = 10, 10
	cfg.TotalCap = 100
	require.NoError(t, svc.SetConfig("G1", cfg))

	long := strings.Repeat("가나다라마바사자", 10) // 80 effective chars = +4 length
	_, err := svc.HandleChat(ChatMessage{
		GuildID: "G1", ChannelID: "C1", UserID: "U1",
		Content: long + " https://example.com", HasAttachment: true,
	}, "!", time.Now())
	require.NoError(t, err)

	total, _, _, _, err := svc.State("G1", "U1")
	require.NoError(t, err)
	assert.Equal(t, int64(10+4+cfg.AttachBonus+cfg.LinkBonus), total)
}

func TestHandleCommand_Tiers(t *testing.T) {
	_, svc := newTestService(t)
	now := time.Now()

	up, err := svc.HandleCommand("G1", "U1", TierSystem, now)
	require.NoError(t, err)
	assert.Nil(t, up)
	total, _, _, _, err := svc.State("G1", "U1")
	require.NoError(t, err)
	assert.Zero(t, total, "system commands award nothing")

	_, err = svc.HandleCommand("G1", "U1", TierGame, now)
	require.NoError(t, err)
	total, _, _, _, err = svc.State("G1", "U1")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().CommandXP[TierGame], total)

	// Unknown tiers fall back to the default tier.
	_, err = svc.HandleCommand("G1", "U2", "made-up", now)
	require.NoError(t, err)
	total, _, _, _, err = svc.State("G1", "U2")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().CommandXP[TierDefault], total)
}

func TestAward_CascadesLevels(t *testing.T) {
	_, svc := newTestService(t)

	// 300 XP crosses level 0 (100) and level 1 (155) in one event.
	up, err := svc.award("G1", "U1", 300, "", 0, time.Now())
	require.NoError(t, err)
	require.NotNil(t, up)
	assert.Equal(t, int64(0), up.BeforeLevel)
	assert.Equal(t, int64(2), up.AfterLevel)
	assert.Equal(t, int64(300-100-155), up.XPInto)
	assert.Equal(t, XPToNext(2), up.XPToNext)
	assert.Equal(t, int64(300), up.TotalXP)

	// A small follow-up award does not cross and emits nothing.
	up, err = svc.award("G1", "U1", 1, "", 0, time.Now())
	require.NoError(t, err)
	assert.Nil(t, up)
}

func TestConfig_RoundTripAndDefaults(t *testing.T) {
	_, svc := newTestService(t)

	cfg, err := svc.Config("G_NEW")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	cfg.ChatMax = 99
	cfg.AnnounceStyle = "banner"
	require.NoError(t, svc.SetConfig("G1", cfg))

	got, err := svc.Config("G1")
	require.NoError(t, err)
	assert.Equal(t, int64(99), got.ChatMax)
	assert.Equal(t, "banner", got.AnnounceStyle)
}

func TestTop_Ordering(t *testing.T) {
	_, svc := newTestService(t)
	now := time.Now()

	_, err := svc.award("G1", "U1", 50, "", 0, now)
	require.NoError(t, err)
	_, err = svc.award("G1", "U2", 500, "", 0, now)
	require.NoError(t, err)
	_, err = svc.award("G2", "U3", 900, "", 0, now)
	require.NoError(t, err)

	top, err := svc.Top("G1", 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "U2", top[0].UserID)
	assert.Equal(t, int64(500), top[0].TotalXP)
}
