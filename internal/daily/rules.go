// Package daily owns the colony's daily content: the rule of the day, the
// daily meal, and per-user settings with interaction stamps.
package daily

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	ruleMaxTokens = 300
	mealMaxTokens = 200

	maxSuggestionsInPrompt = 5
)

const ruleSystemPrompt = "너는 사막 콜로니 '아비도스'의 관리 봇이다. " +
	"오늘의 콜로니 규칙을 한 문장으로, 유머러스하지만 세계관에 맞게 만들어라. " +
	"따옴표나 설명 없이 규칙 문장만 출력하라."

const mealSystemPrompt = "너는 사막 콜로니 '아비도스'의 급식 담당이다. " +
	"오늘의 식단을 한두 줄로 만들어라. 사막 콜로니에서 구할 법한 재료만 사용하라."

// Rule is one day's colony rule.
type Rule struct {
	DateYMD         string
	RuleNo          int64
	Text            string
	PostedChannelID string
	PostedAt        time.Time
	Attempts        int64
}

// Completer produces text completions. Satisfied by *llm.Oracle.
type Completer interface {
	Complete(ctx context.Context, system, prompt string, maxTokens int64) (string, error)
}

// Service owns daily_rules, rule_suggestions, daily_meals, and
// user_settings.
type Service struct {
	db     *sql.DB
	oracle Completer
	log    zerolog.Logger
}

// NewService creates the daily content service.
func NewService(db *sql.DB, oracle Completer, log zerolog.Logger) *Service {
	return &Service{
		db:     db,
		oracle: oracle,
		log:    log.With().Str("service", "daily").Logger(),
	}
}

// RuleFor returns the cached rule for a day, or nil when none exists yet.
func (s *Service) RuleFor(ymd string) (*Rule, error) {
	var (
		r        Rule
		postedAt sql.NullInt64
		channel  sql.NullString
	)
	err := s.db.QueryRow(`
		SELECT date_ymd, rule_no, rule_text, posted_channel_id, posted_at, attempts
		FROM daily_rules WHERE date_ymd = ?
	`, ymd).Scan(&r.DateYMD, &r.RuleNo, &r.Text, &channel, &postedAt, &r.Attempts)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read daily rule: %w", err)
	}
	r.PostedChannelID = channel.String
	if postedAt.Valid {
		r.PostedAt = time.Unix(postedAt.Int64, 0)
	}
	return &r, nil
}

// EnsureRule returns the day's rule, generating it on first call. Recent
// user suggestions are folded into the prompt. Generation failures bump
// the attempts counter so the caller can retry later without hammering
// the oracle.
func (s *Service) EnsureRule(ctx context.Context, ymd string) (*Rule, error) {
	if rule, err := s.RuleFor(ymd); err != nil || rule != nil {
		return rule, err
	}

	suggestions, err := s.RecentSuggestions(maxSuggestionsInPrompt)
	if err != nil {
		return nil, err
	}
	prompt := "오늘 날짜: " + ymd
	if len(suggestions) > 0 {
		prompt += "\n주민들의 제안 (참고만, 그대로 쓰지 말 것):\n- " + strings.Join(suggestions, "\n- ")
	}

	text, err := s.oracle.Complete(ctx, ruleSystemPrompt, prompt, ruleMaxTokens)
	if err != nil {
		if bumpErr := s.bumpAttempts(ymd); bumpErr != nil {
			s.log.Error().Err(bumpErr).Msg("Failed to bump rule attempts")
		}
		return nil, fmt.Errorf("rule generation failed: %w", err)
	}
	text = strings.TrimSpace(text)

	now := time.Now().Unix()
	_, err = s.db.Exec(`
		INSERT INTO daily_rules (date_ymd, rule_no, rule_text, attempts, created_at, updated_at)
		VALUES (?, (SELECT COALESCE(MAX(rule_no), 0) + 1 FROM daily_rules), ?,
		        (SELECT COALESCE(MAX(attempts), 0) FROM daily_rules WHERE date_ymd = ?), ?, ?)
		ON CONFLICT(date_ymd) DO NOTHING
	`, ymd, text, ymd, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to store daily rule: %w", err)
	}
	return s.RuleFor(ymd)
}

// bumpAttempts records a failed generation try. The row may not exist yet;
// attempts for missing rows ride along in the next successful insert.
func (s *Service) bumpAttempts(ymd string) error {
	_, err := s.db.Exec(
		"UPDATE daily_rules SET attempts = attempts + 1, updated_at = ? WHERE date_ymd = ?",
		time.Now().Unix(), ymd)
	return err
}

// MarkRulePosted stamps the rule as published to a channel, once.
func (s *Service) MarkRulePosted(ymd, channelID string, at time.Time) error {
	_, err := s.db.Exec(`
		UPDATE daily_rules SET posted_channel_id = ?, posted_at = ?, updated_at = ?
		WHERE date_ymd = ? AND posted_at IS NULL
	`, channelID, at.Unix(), time.Now().Unix(), ymd)
	if err != nil {
		return fmt.Errorf("failed to mark rule posted: %w", err)
	}
	return nil
}

// AddSuggestion stores a user's rule suggestion.
func (s *Service) AddSuggestion(uid, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("empty suggestion")
	}
	_, err := s.db.Exec(
		"INSERT INTO rule_suggestions (user_id, text, created_at) VALUES (?, ?, ?)",
		uid, text, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to store suggestion: %w", err)
	}
	return nil
}

// RecentSuggestions returns the newest suggestion texts, newest first.
func (s *Service) RecentSuggestions(limit int) ([]string, error) {
	rows, err := s.db.Query(
		"SELECT text FROM rule_suggestions ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read suggestions: %w", err)
	}
	defer rows.Close()

	var texts []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, err
		}
		texts = append(texts, text)
	}
	return texts, rows.Err()
}

// MealFor returns the cached meal text for a day, empty when none.
func (s *Service) MealFor(ymd string) (string, error) {
	var text string
	err := s.db.QueryRow(
		"SELECT meal_text FROM daily_meals WHERE date_ymd = ?", ymd).Scan(&text)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read daily meal: %w", err)
	}
	return text, nil
}

// EnsureMeal returns the day's meal, generating and caching it on first
// request.
func (s *Service) EnsureMeal(ctx context.Context, ymd string) (string, error) {
	if text, err := s.MealFor(ymd); err != nil || text != "" {
		return text, err
	}

	text, err := s.oracle.Complete(ctx, mealSystemPrompt, "오늘 날짜: "+ymd, mealMaxTokens)
	if err != nil {
		return "", fmt.Errorf("meal generation failed: %w", err)
	}
	text = strings.TrimSpace(text)

	_, err = s.db.Exec(`
		INSERT INTO daily_meals (date_ymd, meal_text, created_at)
		VALUES (?, ?, ?) ON CONFLICT(date_ymd) DO NOTHING
	`, ymd, text, time.Now().Unix())
	if err != nil {
		return "", fmt.Errorf("failed to store daily meal: %w", err)
	}
	return s.MealFor(ymd)
}
