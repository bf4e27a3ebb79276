package bot

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/abydos/internal/clock"
	"github.com/aristath/abydos/internal/daily"
	"github.com/aristath/abydos/internal/economy"
	"github.com/aristath/abydos/internal/incident"
	"github.com/aristath/abydos/internal/levels"
	"github.com/aristath/abydos/internal/quest"
	"github.com/aristath/abydos/internal/report"
	"github.com/aristath/abydos/internal/wordchain"
	"github.com/aristath/abydos/internal/world"
)

// Services bundles the engines the bot dispatches into.
type Services struct {
	Worlds     *world.Repository
	WorldSched *world.Scheduler
	Economy    *economy.Repository
	Debt       *economy.DebtEngine
	Explore    *economy.ExploreService
	Workshop   *economy.Workshop
	Incidents  *incident.Scheduler
	Quests     *quest.Service
	Levels     *levels.Service
	Daily      *daily.Service
	Games      *wordchain.Manager
}

// Bot routes inbound chat traffic to the game engines and renders their
// results back as chat text. It also implements the outbound announcement
// interfaces of the schedulers.
type Bot struct {
	transport       Transport
	services        Services
	prefix          string
	announceChannel string // weather/incident/report broadcasts; empty disables
	glitch          *Glitcher
	log             zerolog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New creates the bot core.
func New(transport Transport, services Services, prefix, announceChannel string, glitch *Glitcher, log zerolog.Logger) *Bot {
	if prefix == "" {
		prefix = "!"
	}
	return &Bot{
		transport:       transport,
		services:        services,
		prefix:          prefix,
		announceChannel: announceChannel,
		glitch:          glitch,
		log:             log.With().Str("component", "bot").Logger(),
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Prefix returns the command prefix.
func (b *Bot) Prefix() string { return b.prefix }

// HandleMessage is the inbound pipeline: stamps, active word-chain
// sessions, commands, then passive chat XP, in that order. Called from
// the gateway read loop so per-channel ordering is preserved.
func (b *Bot) HandleMessage(m Message) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Interface("panic", r).Str("content", m.Content).Msg("Recovered from message handler panic")
		}
	}()

	if m.IsBot {
		return
	}
	now := time.Now()

	if m.GuildID != "" {
		if _, err := b.services.Daily.TouchStamp(m.AuthorID, now); err != nil {
			b.log.Warn().Err(err).Str("user", m.AuthorID).Msg("Failed to touch stamp")
		}
	}

	// Commands route first so stop_practice still works mid-game; every
	// other participant message on a channel with an active word-chain
	// session is consumed as a move.
	if strings.HasPrefix(m.Content, b.prefix) {
		b.dispatch(m, now)
		return
	}
	if b.services.Games.HandleMessage(m.GuildID, m.ChannelID, m.AuthorID, m.Content) {
		return
	}

	if m.GuildID == "" {
		return
	}
	levelUp, err := b.services.Levels.HandleChat(levels.ChatMessage{
		GuildID:       m.GuildID,
		ChannelID:     m.ChannelID,
		UserID:        m.AuthorID,
		Content:       m.Content,
		IsBot:         m.IsBot,
		HasAttachment: m.HasAttachment,
	}, b.prefix, now)
	if err != nil {
		b.log.Warn().Err(err).Str("user", m.AuthorID).Msg("Failed to award chat XP")
		return
	}
	b.announceLevelUp(m, levelUp)
}

// HandleInteraction awards interaction XP for components and modals.
func (b *Bot) HandleInteraction(i Interaction) {
	if i.GuildID == "" {
		return
	}
	levelUp, err := b.services.Levels.HandleInteraction(i.GuildID, i.UserID, i.Kind == "modal", time.Now())
	if err != nil {
		b.log.Warn().Err(err).Str("user", i.UserID).Msg("Failed to award interaction XP")
		return
	}
	if levelUp != nil {
		b.announceLevelUp(Message{GuildID: i.GuildID, ChannelID: i.ChannelID, AuthorID: i.UserID}, levelUp)
	}
}

func (b *Bot) announceLevelUp(m Message, up *levels.LevelUp) {
	if up == nil {
		return
	}
	cfg, err := b.services.Levels.Config(m.GuildID)
	if err != nil {
		b.log.Warn().Err(err).Msg("Failed to read level config")
		return
	}
	if cfg.AnnounceStyle == "none" {
		return
	}
	channel := m.ChannelID
	if cfg.AnnounceChannel != "" {
		channel = cfg.AnnounceChannel
	}
	b.send(channel, fmt.Sprintf("🎉 <@%s> 레벨 업! Lv.%d → Lv.%d (XP %d/%d)",
		m.AuthorID, up.BeforeLevel, up.AfterLevel, up.XPInto, up.XPToNext))
}

// AnnounceWeather implements world.Notifier.
func (b *Bot) AnnounceWeather(state world.State) {
	if b.announceChannel == "" {
		return
	}
	text := fmt.Sprintf("%s 날씨가 바뀌었습니다: **%s**\n다음 변화 예정: %s",
		weatherEmoji(state.Weather), weatherKorean(state.Weather),
		state.NextChangeAt.In(clock.KST).Format("15:04"))
	b.send(b.announceChannel, b.glitch.Apply(text))
}

// AnnounceIncident implements incident.Notifier.
func (b *Bot) AnnounceIncident(gid string, record incident.Record) {
	if b.announceChannel == "" {
		return
	}
	sign := "+"
	if record.DeltaDebt < 0 {
		sign = ""
	}
	text := fmt.Sprintf("⚠️ **%s**\n%s\n채무 변화: %s%s 크레딧",
		record.Title, record.Description, sign, formatCredits(record.DeltaDebt))
	b.send(b.announceChannel, b.glitch.Apply(text))
}

// PublishWeeklyReport implements report.Publisher.
func (b *Bot) PublishWeeklyReport(gid string, r report.Report) error {
	if b.announceChannel == "" {
		return fmt.Errorf("no announce channel configured")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 **주간 보고서 %s**\n", r.WeekKey)
	fmt.Fprintf(&sb, "이자: +%s | 사건: %+d | 상환: -%s\n",
		formatCredits(r.Interest), r.IncidentDebt, formatCredits(r.Repaid))
	fmt.Fprintf(&sb, "순 채무 변화: %+d → 현재 채무 %s 크레딧\n", r.NetDebtDelta, formatCredits(r.DebtNow))
	if len(r.TopRepayers) > 0 {
		sb.WriteString("🏆 상환왕: ")
		for i, e := range r.TopRepayers {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "<@%s> (%s)", e.UserID, formatCredits(e.Amount))
		}
		sb.WriteString("\n")
	}
	if len(r.TopPoints) > 0 {
		sb.WriteString("⭐ 퀘스트 포인트: ")
		for i, e := range r.TopPoints {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "<@%s> (%dpt)", e.UserID, e.Amount)
		}
		sb.WriteString("\n")
	}

	return b.transport.Send(b.announceChannel, b.glitch.Apply(sb.String()))
}

// PostDailyRule publishes the day's rule to the announce channel, once.
// Called from cron; generation happens here so a quiet day still gets its
// rule.
func (b *Bot) PostDailyRule(now time.Time) {
	if b.announceChannel == "" {
		return
	}
	ymd := clock.TodayYMD(now)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	rule, err := b.services.Daily.EnsureRule(ctx, ymd)
	if err != nil {
		b.log.Warn().Err(err).Str("ymd", ymd).Msg("Daily rule generation failed")
		return
	}
	if rule == nil || !rule.PostedAt.IsZero() {
		return
	}
	text := fmt.Sprintf("📜 **아비도스 규칙 제%d조** (%s)\n%s", rule.RuleNo, ymd, rule.Text)
	if err := b.transport.Send(b.announceChannel, text); err != nil {
		b.log.Warn().Err(err).Msg("Failed to post daily rule")
		return
	}
	if err := b.services.Daily.MarkRulePosted(ymd, b.announceChannel, now); err != nil {
		b.log.Error().Err(err).Msg("Failed to mark rule posted")
	}
}

// send delivers best-effort text; failures are logged, never propagated.
func (b *Bot) send(channelID, text string) {
	if err := b.transport.Send(channelID, text); err != nil {
		b.log.Warn().Err(err).Str("channel", channelID).Msg("Send failed")
	}
}

func (b *Bot) reply(m Message, text string) {
	if err := b.transport.Reply(m, text); err != nil {
		b.log.Warn().Err(err).Str("channel", m.ChannelID).Msg("Reply failed")
	}
}

func (b *Bot) roll(fn func(rng *rand.Rand)) {
	b.rngMu.Lock()
	fn(b.rng)
	b.rngMu.Unlock()
}

func weatherKorean(w world.Weather) string {
	switch w {
	case world.Clear:
		return "맑음"
	case world.Cloudy:
		return "흐림"
	case world.Sandstorm:
		return "모래폭풍"
	}
	return string(w)
}

func weatherEmoji(w world.Weather) string {
	switch w {
	case world.Clear:
		return "☀️"
	case world.Cloudy:
		return "☁️"
	case world.Sandstorm:
		return "🌪️"
	}
	return "❔"
}

func formatCredits(n int64) string {
	if n < 0 {
		return "-" + formatCredits(-n)
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	return strings.Join(parts, ",")
}
