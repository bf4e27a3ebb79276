// Package llm wraps the Anthropic API behind a monthly budget. Callers get
// plain text completions; the oracle tracks token spend in a small JSON
// file and refuses calls once the month's limit is reached.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"
)

const (
	maxRetries     = 3
	initialBackoff = 1 * time.Second
)

var (
	// ErrDisabled is returned when no API key is configured.
	ErrDisabled = errors.New("llm oracle disabled")
	// ErrBudgetExhausted is returned once the monthly spend limit is hit.
	ErrBudgetExhausted = errors.New("monthly llm budget exhausted")
)

// Config carries the oracle's tunables.
type Config struct {
	APIKey          string
	Model           string
	MonthlyLimitUSD float64
	InputPrice1K    float64 // USD per 1000 input tokens
	OutputPrice1K   float64 // USD per 1000 output tokens
	UsageDir        string
}

// Oracle is a budget-guarded Anthropic client.
type Oracle struct {
	client  anthropic.Client
	model   anthropic.Model
	cfg     Config
	enabled bool
	log     zerolog.Logger

	mu    sync.Mutex
	usage usage
}

type usage struct {
	Month        string  `json:"month"` // "2026-08"
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	SpentUSD     float64 `json:"spent_usd"`
}

// New creates the oracle. An empty API key yields a disabled oracle whose
// Complete always returns ErrDisabled, so callers need no nil checks.
func New(cfg Config, log zerolog.Logger) *Oracle {
	o := &Oracle{
		cfg:     cfg,
		model:   anthropic.Model(cfg.Model),
		enabled: cfg.APIKey != "",
		log:     log.With().Str("component", "llm").Logger(),
	}
	if o.enabled {
		o.client = anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
	}
	o.loadUsage()
	return o
}

// Enabled reports whether the oracle can serve completions at all.
func (o *Oracle) Enabled() bool { return o.enabled }

// Usage returns the current month and its spend so far.
func (o *Oracle) Usage() (month string, spentUSD float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.usage.Month, o.usage.SpentUSD
}

// Complete sends one user prompt (with an optional system prompt) and
// returns the text reply. Transient API failures are retried with
// exponential backoff.
func (o *Oracle) Complete(ctx context.Context, system, prompt string, maxTokens int64) (string, error) {
	if !o.enabled {
		return "", ErrDisabled
	}
	if err := o.checkBudget(time.Now()); err != nil {
		return "", err
	}

	params := anthropic.MessageNewParams{
		Model:     o.model,
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := initialBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		message, err := o.client.Messages.New(ctx, params)
		if err == nil {
			o.recordUsage(message.Usage.InputTokens, message.Usage.OutputTokens, time.Now())
			if len(message.Content) == 0 {
				return "", fmt.Errorf("unexpected response format: no content blocks")
			}
			content := message.Content[0]
			if content.Type != "text" {
				return "", fmt.Errorf("unexpected response format: not a text block (type=%s)", content.Type)
			}
			return content.Text, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !isRetryable(err) {
			return "", fmt.Errorf("llm call failed: %w", err)
		}
	}
	return "", fmt.Errorf("llm call failed after %d retries: %w", maxRetries+1, lastErr)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}

func (o *Oracle) checkBudget(now time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rollMonthLocked(now)
	if o.cfg.MonthlyLimitUSD > 0 && o.usage.SpentUSD >= o.cfg.MonthlyLimitUSD {
		return ErrBudgetExhausted
	}
	return nil
}

func (o *Oracle) recordUsage(inTokens, outTokens int64, now time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rollMonthLocked(now)
	o.usage.InputTokens += inTokens
	o.usage.OutputTokens += outTokens
	o.usage.SpentUSD += float64(inTokens)/1000*o.cfg.InputPrice1K +
		float64(outTokens)/1000*o.cfg.OutputPrice1K
	o.saveUsageLocked()
}

func (o *Oracle) rollMonthLocked(now time.Time) {
	month := now.Format("2006-01")
	if o.usage.Month != month {
		o.usage = usage{Month: month}
		o.saveUsageLocked()
	}
}

func (o *Oracle) usagePath() string {
	return filepath.Join(o.cfg.UsageDir, "llm_usage.json")
}

func (o *Oracle) loadUsage() {
	data, err := os.ReadFile(o.usagePath())
	if err != nil {
		return
	}
	var u usage
	if err := json.Unmarshal(data, &u); err != nil {
		o.log.Warn().Err(err).Msg("Usage file unparseable, starting fresh")
		return
	}
	o.usage = u
}

// saveUsageLocked writes the usage file via temp-and-rename so a crash
// never truncates it. Failures are logged; usage tracking is best-effort.
func (o *Oracle) saveUsageLocked() {
	data, err := json.MarshalIndent(o.usage, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(o.cfg.UsageDir, 0o755); err != nil {
		o.log.Warn().Err(err).Msg("Failed to create usage dir")
		return
	}
	tmp, err := os.CreateTemp(o.cfg.UsageDir, "llm_usage.json.tmp-*")
	if err != nil {
		o.log.Warn().Err(err).Msg("Failed to write usage file")
		return
	}
	if _, err := tmp.Write(data); err == nil && tmp.Close() == nil {
		if err := os.Rename(tmp.Name(), o.usagePath()); err != nil {
			o.log.Warn().Err(err).Msg("Failed to replace usage file")
			os.Remove(tmp.Name())
		}
		return
	}
	tmp.Close()
	os.Remove(tmp.Name())
}
