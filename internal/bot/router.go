package bot

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/abydos/internal/clock"
	"github.com/aristath/abydos/internal/economy"
	"github.com/aristath/abydos/internal/levels"
	"github.com/aristath/abydos/internal/quest"
	"github.com/aristath/abydos/internal/wordchain"
	"github.com/aristath/abydos/internal/world"
)

// commandTiers maps command names to XP tiers. Unknown commands never
// reach the XP engine.
var commandTiers = map[string]string{
	"weather":        levels.TierChat,
	"wallet":         levels.TierChat,
	"bag":            levels.TierChat,
	"debt":           levels.TierChat,
	"quests":         levels.TierChat,
	"rank":           levels.TierChat,
	"level":          levels.TierChat,
	"rule":           levels.TierChat,
	"meal":           levels.TierChat,
	"stamps":         levels.TierChat,
	"explore":        levels.TierGame,
	"use":            levels.TierGame,
	"craft":          levels.TierGame,
	"sell":           levels.TierGame,
	"claim":          levels.TierGame,
	"repay":          levels.TierGame,
	"start_wordgame": levels.TierGame,
	"practice":       levels.TierGame,
	"suggest":        levels.TierSocial,
	"weather_set":    levels.TierSystem,
	"stop_practice":  levels.TierSystem,
	"optin":          levels.TierSystem,
}

// dispatch parses and runs one prefix command.
func (b *Bot) dispatch(m Message, now time.Time) {
	fields := strings.Fields(strings.TrimPrefix(m.Content, b.prefix))
	if len(fields) == 0 {
		return
	}
	name := strings.ToLower(fields[0])
	args := fields[1:]

	tier, known := commandTiers[name]
	if !known {
		return
	}

	b.log.Debug().Str("command", name).Str("user", m.AuthorID).Str("guild", m.GuildID).Msg("Command")

	switch name {
	case "weather":
		b.cmdWeather(m)
	case "weather_set":
		b.cmdWeatherSet(m, args, now)
	case "explore":
		b.cmdExplore(m, now)
	case "wallet":
		b.cmdWallet(m)
	case "bag":
		b.cmdBag(m, now)
	case "use":
		b.cmdUse(m, args, now)
	case "craft":
		b.cmdCraft(m, args)
	case "sell":
		b.cmdSell(m, args)
	case "quests":
		b.cmdQuests(m, now)
	case "claim":
		b.cmdClaim(m, args, now)
	case "debt":
		b.cmdDebt(m, now)
	case "repay":
		b.cmdRepay(m, args, now)
	case "rank":
		b.cmdRank(m, now)
	case "level":
		b.cmdLevel(m)
	case "start_wordgame":
		b.cmdStartWordgame(m)
	case "practice":
		b.cmdPractice(m, args)
	case "stop_practice":
		b.cmdStopPractice(m)
	case "rule":
		b.cmdRule(m, now)
	case "meal":
		b.cmdMeal(m, now)
	case "suggest":
		b.cmdSuggest(m, args)
	case "stamps":
		b.cmdStamps(m)
	case "optin":
		b.cmdOptIn(m, args)
	}

	if m.GuildID != "" {
		if levelUp, err := b.services.Levels.HandleCommand(m.GuildID, m.AuthorID, tier, now); err != nil {
			b.log.Warn().Err(err).Msg("Failed to award command XP")
		} else {
			b.announceLevelUp(m, levelUp)
		}
	}
}

func (b *Bot) cmdWeather(m Message) {
	state, err := b.services.Worlds.Get()
	if err != nil {
		b.replyError(m, err)
		return
	}
	b.reply(m, fmt.Sprintf("%s 현재 날씨: **%s**\n마지막 변화: %s | 다음 변화: %s",
		weatherEmoji(state.Weather), weatherKorean(state.Weather),
		state.ChangedAt.In(clock.KST).Format("01-02 15:04"),
		state.NextChangeAt.In(clock.KST).Format("01-02 15:04")))
}

func (b *Bot) cmdWeatherSet(m Message, args []string, now time.Time) {
	if !m.AuthorIsAdmin {
		b.reply(m, "관리자 전용 명령어입니다.")
		return
	}
	if len(args) != 1 {
		b.reply(m, "사용법: "+b.prefix+"weather_set <clear|cloudy|sandstorm>")
		return
	}
	weather := world.Weather(strings.ToLower(args[0]))
	if !weather.Valid() {
		b.reply(m, "사용법: "+b.prefix+"weather_set <clear|cloudy|sandstorm>")
		return
	}
	state, err := b.services.WorldSched.Force(weather, now)
	if err != nil {
		b.replyError(m, err)
		return
	}
	b.reply(m, fmt.Sprintf("%s 날씨를 **%s**(으)로 변경했습니다. 다음 변화: %s",
		weatherEmoji(state.Weather), weatherKorean(state.Weather),
		state.NextChangeAt.In(clock.KST).Format("15:04")))
}

func (b *Bot) cmdExplore(m Message, now time.Time) {
	if m.GuildID == "" {
		b.reply(m, "길드 채널에서만 사용할 수 있습니다.")
		return
	}
	state, err := b.services.Worlds.Get()
	if err != nil {
		b.replyError(m, err)
		return
	}
	effective, err := b.services.Explore.EffectiveWeather(m.AuthorID, state.Weather, now)
	if err != nil {
		b.replyError(m, err)
		return
	}
	buff, err := b.services.Economy.EnsureBuffValid(m.AuthorID, now)
	if err != nil {
		b.replyError(m, err)
		return
	}

	var roll economy.Roll
	b.roll(func(rng *rand.Rand) {
		roll = economy.RollExplore(rng, effective, buff.Key)
	})

	today := clock.TodayYMD(now)
	result, err := b.services.Explore.ClaimDailyExplore(m.AuthorID, today, roll, effective)
	if err != nil {
		b.replyError(m, err)
		return
	}
	if result == nil {
		b.reply(m, "오늘은 이미 탐사를 마쳤습니다. 내일 다시 오세요.")
		return
	}

	var sb strings.Builder
	if result.Success {
		fmt.Fprintf(&sb, "%s 탐사 성공! (+%s 크레딧, +%d 물)\n",
			weatherEmoji(result.Weather), formatCredits(result.CreditsDelta), result.WaterDelta)
	} else {
		fmt.Fprintf(&sb, "%s 탐사 실패… 위로금 +%s 크레딧\n",
			weatherEmoji(result.Weather), formatCredits(result.CreditsDelta))
	}
	for _, loot := range result.Loot {
		fmt.Fprintf(&sb, "🎒 %s x%d 획득\n", loot.ItemKey, loot.Qty)
	}
	if result.BuffConsumed != "" {
		fmt.Fprintf(&sb, "🔋 %s 1회 소모\n", result.BuffConsumed)
	}
	fmt.Fprintf(&sb, "💰 잔고: %s 크레딧 | 💧 물: %d", formatCredits(result.CreditsAfter), result.WaterAfter)
	b.reply(m, sb.String())
}

func (b *Bot) cmdWallet(m Message) {
	wallet, err := b.services.Economy.Wallet(m.AuthorID)
	if err != nil {
		b.replyError(m, err)
		return
	}
	explored := "아직"
	if wallet.LastExploreYMD != "" {
		explored = wallet.LastExploreYMD
	}
	b.reply(m, fmt.Sprintf("💰 크레딧: %s | 💧 물: %d | 마지막 탐사: %s",
		formatCredits(wallet.Credits), wallet.Water, explored))
}

func (b *Bot) cmdBag(m Message, now time.Time) {
	items, err := b.services.Economy.Inventory(m.AuthorID)
	if err != nil {
		b.replyError(m, err)
		return
	}
	buff, err := b.services.Economy.EnsureBuffValid(m.AuthorID, now)
	if err != nil {
		b.replyError(m, err)
		return
	}

	var sb strings.Builder
	sb.WriteString("🎒 **가방**\n")
	if len(items) == 0 {
		sb.WriteString("비어 있습니다.\n")
	}
	for _, item := range items {
		fmt.Fprintf(&sb, "- %s x%d\n", item.ItemKey, item.Qty)
	}
	if buff.Active(now) {
		fmt.Fprintf(&sb, "✨ 버프: %s (x%d, %s까지)",
			buff.Key, buff.Stacks, buff.ExpiresAt.In(clock.KST).Format("15:04"))
	} else {
		sb.WriteString("✨ 활성 버프 없음")
	}
	b.reply(m, sb.String())
}

func (b *Bot) cmdUse(m Message, args []string, now time.Time) {
	if len(args) != 1 {
		b.reply(m, "사용법: "+b.prefix+"use <아이템>")
		return
	}
	reason, err := b.services.Explore.UseItem(m.AuthorID, args[0], now)
	if err != nil {
		b.replyError(m, err)
		return
	}
	if reason != economy.ReasonNone {
		b.reply(m, reasonKorean(reason))
		return
	}
	b.reply(m, fmt.Sprintf("✨ %s 사용 완료. 버프가 적용되었습니다.", args[0]))
}

func (b *Bot) cmdCraft(m Message, args []string) {
	if len(args) != 1 {
		b.reply(m, "사용법: "+b.prefix+"craft <"+strings.Join(economy.RecipeIDs(), "|")+">")
		return
	}
	result, err := b.services.Workshop.Craft(m.AuthorID, args[0])
	if err != nil {
		b.replyError(m, err)
		return
	}
	if result.Reason != economy.ReasonNone {
		b.reply(m, reasonKorean(result.Reason))
		return
	}
	b.reply(m, fmt.Sprintf("🔨 **%s** 제작 완료! (-%s 크레딧)\n%s\n💰 잔고: %s 크레딧",
		result.Recipe.ID, formatCredits(result.Recipe.CostCredits),
		result.Recipe.Flavor, formatCredits(result.CreditsAfter)))
}

func (b *Bot) cmdSell(m Message, args []string) {
	if len(args) < 1 || len(args) > 2 {
		b.reply(m, "사용법: "+b.prefix+"sell <아이템> [수량|all]")
		return
	}
	qty := int64(1)
	if len(args) == 2 {
		if strings.EqualFold(args[1], "all") {
			qty = -1
		} else {
			n, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || n < 1 {
				b.reply(m, "사용법: "+b.prefix+"sell <아이템> [수량|all]")
				return
			}
			qty = n
		}
	}
	result, err := b.services.Workshop.Sell(m.AuthorID, args[0], qty)
	if err != nil {
		b.replyError(m, err)
		return
	}
	if result.Reason != economy.ReasonNone {
		b.reply(m, reasonKorean(result.Reason))
		return
	}
	b.reply(m, fmt.Sprintf("💱 %s x%d 판매 (+%s 크레딧)\n💰 잔고: %s 크레딧",
		args[0], result.Sold, formatCredits(result.Sold*result.UnitPrice),
		formatCredits(result.CreditsAfter)))
}

// dailyQuestSlots is where weekly quest numbering starts in the combined
// board the quests command renders: 1..3 daily, 4..7 weekly.
const dailyQuestSlots = 3

func (b *Bot) cmdQuests(m Message, now time.Time) {
	if m.GuildID == "" {
		b.reply(m, "길드 채널에서만 사용할 수 있습니다.")
		return
	}
	today := clock.TodayYMD(now)
	weekKey := clock.WeekKey(now)
	if _, err := b.services.Quests.EnsureDailyBoard(m.GuildID, today); err != nil {
		b.replyError(m, err)
		return
	}
	if _, err := b.services.Quests.EnsureWeeklyBoard(m.GuildID, weekKey); err != nil {
		b.replyError(m, err)
		return
	}

	dailyProgress, err := b.services.Quests.BoardProgress(m.GuildID, m.AuthorID, quest.ScopeDaily, today, today)
	if err != nil {
		b.replyError(m, err)
		return
	}
	weeklyProgress, err := b.services.Quests.BoardProgress(m.GuildID, m.AuthorID, quest.ScopeWeekly, weekKey, today)
	if err != nil {
		b.replyError(m, err)
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 **일일 퀘스트** (%s)\n", today)
	for _, p := range dailyProgress {
		sb.WriteString(renderQuest(p.Quest.QuestNo, p))
	}
	fmt.Fprintf(&sb, "📋 **주간 퀘스트** (%s)\n", weekKey)
	for _, p := range weeklyProgress {
		sb.WriteString(renderQuest(p.Quest.QuestNo+dailyQuestSlots, p))
	}
	fmt.Fprintf(&sb, "수령: %sclaim <번호>", b.prefix)
	b.reply(m, sb.String())
}

func renderQuest(no int, p quest.Progress) string {
	mark := "⬜"
	switch {
	case p.Claimed:
		mark = "✅"
	case p.Ready:
		mark = "🟡"
	}
	desc := questKorean(p.Quest)
	progress := ""
	if p.Quest.TargetQty > 0 {
		progress = fmt.Sprintf(" (%d/%d)", p.Current, p.Quest.TargetQty)
	}
	return fmt.Sprintf("%s %d. %s%s · %dpt\n", mark, no, desc, progress, p.Quest.RewardPoints)
}

func questKorean(q quest.Quest) string {
	switch q.Type {
	case quest.TypeExploreDone:
		return "오늘 탐사 완료하기"
	case quest.TypeExploreSandstorm:
		return "모래폭풍 탐사 성공하기"
	case quest.TypeDeliverItem:
		return fmt.Sprintf("%s %d개 납품하기", q.TargetKey, q.TargetQty)
	case quest.TypeRepayTotal:
		return fmt.Sprintf("채무 %s 크레딧 상환하기", formatCredits(q.TargetQty))
	}
	return q.Type
}

func (b *Bot) cmdClaim(m Message, args []string, now time.Time) {
	if m.GuildID == "" {
		b.reply(m, "길드 채널에서만 사용할 수 있습니다.")
		return
	}
	if len(args) != 1 {
		b.reply(m, "사용법: "+b.prefix+"claim <번호>")
		return
	}
	no, err := strconv.Atoi(args[0])
	if err != nil || no < 1 {
		b.reply(m, "사용법: "+b.prefix+"claim <번호>")
		return
	}

	today := clock.TodayYMD(now)
	scope := quest.ScopeDaily
	boardKey := today
	questNo := no
	if no > dailyQuestSlots {
		scope = quest.ScopeWeekly
		boardKey = clock.WeekKey(now)
		questNo = no - dailyQuestSlots
	}

	result, err := b.services.Quests.Claim(m.GuildID, m.AuthorID, scope, boardKey, questNo, today)
	if err != nil {
		b.replyError(m, err)
		return
	}
	if result.Reason != quest.ReasonNone {
		b.reply(m, claimReasonKorean(result.Reason))
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🎉 퀘스트 완료: %s\n", questKorean(result.Quest))
	fmt.Fprintf(&sb, "⭐ +%dpt", result.Points)
	if result.Quest.RewardCredits > 0 {
		fmt.Fprintf(&sb, " | 💰 +%s 크레딧", formatCredits(result.Quest.RewardCredits))
	}
	if result.Quest.RewardItemKey != "" {
		fmt.Fprintf(&sb, " | 🎒 %s x%d", result.Quest.RewardItemKey, result.Quest.RewardItemQty)
	}
	b.reply(m, sb.String())
}

func (b *Bot) cmdDebt(m Message, now time.Time) {
	if m.GuildID == "" {
		b.reply(m, "길드 채널에서만 사용할 수 있습니다.")
		return
	}
	today := clock.TodayYMD(now)
	if err := b.services.Debt.ApplyInterestUpTo(m.GuildID, today); err != nil {
		b.replyError(m, err)
		return
	}
	debt, err := b.services.Economy.GuildDebt(m.GuildID)
	if err != nil {
		b.replyError(m, err)
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🏦 길드 채무: **%s 크레딧** (일일 이자 %.1f%%)\n",
		formatCredits(debt.Debt), debt.InterestRate*100)
	if b.services.Incidents != nil {
		recent, err := b.services.Incidents.RecentIncidents(m.GuildID, 3)
		if err == nil && len(recent) > 0 {
			sb.WriteString("최근 사건:\n")
			for _, rec := range recent {
				fmt.Fprintf(&sb, "- %s (%+d)\n", rec.Title, rec.DeltaDebt)
			}
		}
	}
	b.reply(m, sb.String())
}

func (b *Bot) cmdRepay(m Message, args []string, now time.Time) {
	if m.GuildID == "" {
		b.reply(m, "길드 채널에서만 사용할 수 있습니다.")
		return
	}
	if len(args) != 1 {
		b.reply(m, "사용법: "+b.prefix+"repay <금액|all>")
		return
	}
	amount := int64(-1)
	if !strings.EqualFold(args[0], "all") {
		n, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || n < 1 {
			b.reply(m, "사용법: "+b.prefix+"repay <금액|all>")
			return
		}
		amount = n
	}

	today := clock.TodayYMD(now)
	if err := b.services.Debt.ApplyInterestUpTo(m.GuildID, today); err != nil {
		b.replyError(m, err)
		return
	}
	result, err := b.services.Debt.Repay(m.GuildID, m.AuthorID, amount, today)
	if err != nil {
		b.replyError(m, err)
		return
	}
	if result.Reason != economy.ReasonNone {
		b.reply(m, reasonKorean(result.Reason))
		return
	}
	b.reply(m, fmt.Sprintf("🏦 %s 크레딧 상환! 남은 채무: %s 크레딧\n💰 잔고: %s 크레딧",
		formatCredits(result.Paid), formatCredits(result.NewDebt), formatCredits(result.CreditsAfter)))
}

func (b *Bot) cmdRank(m Message, now time.Time) {
	if m.GuildID == "" {
		b.reply(m, "길드 채널에서만 사용할 수 있습니다.")
		return
	}
	standings, err := b.services.Levels.Top(m.GuildID, 10)
	if err != nil {
		b.replyError(m, err)
		return
	}
	points, order, err := b.services.Quests.TopWeeklyPoints(m.GuildID, clock.WeekKey(now), 5)
	if err != nil {
		b.replyError(m, err)
		return
	}

	var sb strings.Builder
	sb.WriteString("🏆 **레벨 랭킹**\n")
	if len(standings) == 0 {
		sb.WriteString("기록이 없습니다.\n")
	}
	for i, st := range standings {
		fmt.Fprintf(&sb, "%d. <@%s> Lv.%d (%s XP)\n", i+1, st.UserID, st.Level, formatCredits(st.TotalXP))
	}
	if len(order) > 0 {
		sb.WriteString("⭐ **이번 주 퀘스트 포인트**\n")
		for i, uid := range order {
			fmt.Fprintf(&sb, "%d. <@%s> %dpt\n", i+1, uid, points[uid])
		}
	}
	b.reply(m, sb.String())
}

func (b *Bot) cmdLevel(m Message) {
	if m.GuildID == "" {
		b.reply(m, "길드 채널에서만 사용할 수 있습니다.")
		return
	}
	target := m.AuthorID
	if len(m.Mentions) > 0 {
		target = m.Mentions[0]
	}
	total, level, into, toNext, err := b.services.Levels.State(m.GuildID, target)
	if err != nil {
		b.replyError(m, err)
		return
	}
	b.reply(m, fmt.Sprintf("📈 <@%s> Lv.%d | XP %d/%d (누적 %s)",
		target, level, into, toNext, formatCredits(total)))
}

func (b *Bot) cmdStartWordgame(m Message) {
	if m.GuildID == "" {
		b.reply(m, "길드 채널에서만 사용할 수 있습니다.")
		return
	}
	if len(m.Mentions) != 1 {
		b.reply(m, "사용법: "+b.prefix+"start_wordgame @상대")
		return
	}
	opponent := m.Mentions[0]
	if opponent == m.AuthorID {
		b.reply(m, "자기 자신과는 대결할 수 없습니다.")
		return
	}
	err := b.services.Games.StartPvP(m.GuildID, m.ChannelID, m.AuthorID, m.AuthorName, opponent, "")
	if errors.Is(err, wordchain.ErrChannelBusy) {
		b.reply(m, "이 채널에서 이미 게임이 진행 중입니다.")
		return
	}
	if err != nil {
		b.replyError(m, err)
	}
}

func (b *Bot) cmdPractice(m Message, args []string) {
	difficulty := wordchain.DifficultyNormal
	if len(args) == 1 {
		switch strings.ToLower(args[0]) {
		case "easy":
			difficulty = wordchain.DifficultyEasy
		case "normal":
			difficulty = wordchain.DifficultyNormal
		case "hard":
			difficulty = wordchain.DifficultyHard
		default:
			b.reply(m, "사용법: "+b.prefix+"practice [easy|normal|hard]")
			return
		}
	}
	err := b.services.Games.StartPractice(m.GuildID, m.ChannelID, m.AuthorID, m.AuthorName, difficulty)
	if errors.Is(err, wordchain.ErrChannelBusy) {
		b.reply(m, "이 채널에서 이미 게임이 진행 중입니다.")
		return
	}
	if err != nil {
		b.replyError(m, err)
	}
}

func (b *Bot) cmdStopPractice(m Message) {
	if !b.services.Games.Stop(m.GuildID, m.ChannelID) {
		b.reply(m, "진행 중인 게임이 없습니다.")
	}
}

func (b *Bot) cmdRule(m Message, now time.Time) {
	rule, err := b.services.Daily.RuleFor(clock.TodayYMD(now))
	if err != nil {
		b.replyError(m, err)
		return
	}
	if rule == nil {
		b.reply(m, "오늘의 규칙이 아직 정해지지 않았습니다.")
		return
	}
	b.reply(m, fmt.Sprintf("📜 아비도스 규칙 제%d조: %s", rule.RuleNo, rule.Text))
}

func (b *Bot) cmdMeal(m Message, now time.Time) {
	meal, err := b.services.Daily.MealFor(clock.TodayYMD(now))
	if err != nil {
		b.replyError(m, err)
		return
	}
	if meal == "" {
		b.reply(m, "오늘의 식단이 아직 정해지지 않았습니다.")
		return
	}
	b.reply(m, "🍽️ 오늘의 식단: "+meal)
}

func (b *Bot) cmdSuggest(m Message, args []string) {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		b.reply(m, "사용법: "+b.prefix+"suggest <규칙 제안>")
		return
	}
	if err := b.services.Daily.AddSuggestion(m.AuthorID, text); err != nil {
		b.replyError(m, err)
		return
	}
	b.reply(m, "💡 제안이 접수되었습니다. 내일의 규칙에 반영될 수 있습니다.")
}

func (b *Bot) cmdStamps(m Message) {
	settings, err := b.services.Daily.SettingsFor(m.AuthorID)
	if err != nil {
		b.replyError(m, err)
		return
	}
	top, err := b.services.Daily.TopStamps(5)
	if err != nil {
		b.replyError(m, err)
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🪪 출석 도장: %d개", settings.Stamps)
	if settings.StampTitle != "" {
		fmt.Fprintf(&sb, " · 칭호: %s", settings.StampTitle)
	}
	sb.WriteString("\n")
	for i, e := range top {
		fmt.Fprintf(&sb, "%d. <@%s> %d개\n", i+1, e.UserID, e.Stamps)
	}
	b.reply(m, sb.String())
}

func (b *Bot) cmdOptIn(m Message, args []string) {
	if len(args) != 2 {
		b.reply(m, "사용법: "+b.prefix+"optin <dm|noise|stamps> <on|off>")
		return
	}
	on := strings.EqualFold(args[1], "on")
	if !on && !strings.EqualFold(args[1], "off") {
		b.reply(m, "사용법: "+b.prefix+"optin <dm|noise|stamps> <on|off>")
		return
	}
	if err := b.services.Daily.SetOptIn(m.AuthorID, strings.ToLower(args[0]), on); err != nil {
		b.reply(m, "사용법: "+b.prefix+"optin <dm|noise|stamps> <on|off>")
		return
	}
	b.reply(m, "설정이 저장되었습니다.")
}

func (b *Bot) replyError(m Message, err error) {
	b.log.Error().Err(err).Str("user", m.AuthorID).Msg("Command failed")
	b.reply(m, "처리 중 오류가 발생했습니다. 잠시 후 다시 시도해 주세요.")
}

func reasonKorean(r economy.Reason) string {
	switch r {
	case economy.ReasonInsufficientCredits:
		return "크레딧이 부족합니다."
	case economy.ReasonInsufficientItems:
		return "재료가 부족합니다."
	case economy.ReasonEmptyWallet:
		return "지갑이 비어 있습니다."
	case economy.ReasonInvalidAmount:
		return "금액이 올바르지 않습니다."
	case economy.ReasonNoDebt:
		return "현재 길드 채무가 없습니다. 🎉"
	case economy.ReasonUnknownRecipe:
		return "그런 제작법은 없습니다."
	case economy.ReasonUnknownItem:
		return "그런 아이템은 없습니다."
	case economy.ReasonNotConsumable:
		return "사용할 수 없는 아이템입니다."
	}
	return "요청을 처리할 수 없습니다."
}

func claimReasonKorean(r quest.Reason) string {
	switch r {
	case quest.ReasonClaimed:
		return "이미 수령한 퀘스트입니다."
	case quest.ReasonItems:
		return "납품할 아이템이 부족합니다."
	case quest.ReasonRepay:
		return "상환 목표를 아직 달성하지 못했습니다."
	case quest.ReasonExplore:
		return "탐사 조건을 아직 달성하지 못했습니다."
	case quest.ReasonUnknown:
		return "그런 퀘스트 번호는 없습니다."
	}
	return "요청을 처리할 수 없습니다."
}
