// Package websync pushes a small JSON snapshot of the colony to an
// external web endpoint on a fixed cadence. The push is fire-and-forget:
// any failure is logged and the next tick tries again.
package websync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/abydos/internal/clock"
	"github.com/aristath/abydos/internal/daily"
	"github.com/aristath/abydos/internal/world"
)

const (
	postTimeout = 8 * time.Second
	topStamps   = 10
)

// GuildInfo identifies one connected guild.
type GuildInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// IdentitySource exposes the transport's view of who the bot is and where
// it lives. Implemented by the gateway client.
type IdentitySource interface {
	BotIdentity() (id, name string)
	GuildList() []GuildInfo
}

// Snapshot is the posted document.
type Snapshot struct {
	BotID       string       `json:"bot_id"`
	BotName     string       `json:"bot_name"`
	GeneratedAt time.Time    `json:"generated_at"`
	Guilds      []GuildInfo  `json:"guilds"`
	Weather     string       `json:"weather"`
	WeatherNext time.Time    `json:"weather_next_change"`
	RuleToday   string       `json:"rule_today,omitempty"`
	MealToday   string       `json:"meal_today,omitempty"`
	TopStamps   []StampEntry `json:"top_stamps"`
	Host        HostStats    `json:"host"`
}

// StampEntry mirrors the stamp leaderboard rows.
type StampEntry struct {
	UserID string `json:"user_id"`
	Stamps int64  `json:"stamps"`
	Title  string `json:"title,omitempty"`
}

// HostStats is a coarse view of the machine the bot runs on.
type HostStats struct {
	Hostname      string  `json:"hostname"`
	UptimeSec     uint64  `json:"uptime_sec"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemUsed       uint64  `json:"mem_used"`
	MemTotal      uint64  `json:"mem_total"`
	NumGoroutines int     `json:"num_goroutines"`
}

// Service builds and posts snapshots.
type Service struct {
	url      string
	token    string
	identity IdentitySource
	worlds   *world.Repository
	dailies  *daily.Service
	client   *http.Client
	log      zerolog.Logger
}

// NewService creates the web-sync service. An empty URL disables posting;
// SyncOnce becomes a no-op so the cron wiring stays unconditional.
func NewService(url, token string, identity IdentitySource, worlds *world.Repository, dailies *daily.Service, log zerolog.Logger) *Service {
	return &Service{
		url:      url,
		token:    token,
		identity: identity,
		worlds:   worlds,
		dailies:  dailies,
		client:   &http.Client{Timeout: postTimeout},
		log:      log.With().Str("service", "websync").Logger(),
	}
}

// SyncOnce builds a snapshot and posts it. Called from cron.
func (s *Service) SyncOnce(ctx context.Context) {
	if s.url == "" {
		return
	}
	snapshot, err := s.Build(time.Now())
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to build web sync snapshot")
		return
	}
	if err := s.post(ctx, snapshot); err != nil {
		s.log.Warn().Err(err).Msg("Web sync post failed")
		return
	}
	s.log.Debug().Int("guilds", len(snapshot.Guilds)).Msg("Web sync pushed")
}

// Build assembles the snapshot from the stores. Rule and meal are included
// only when already cached for today; web sync never triggers generation.
func (s *Service) Build(now time.Time) (Snapshot, error) {
	snapshot := Snapshot{GeneratedAt: now}
	if s.identity != nil {
		snapshot.BotID, snapshot.BotName = s.identity.BotIdentity()
		snapshot.Guilds = s.identity.GuildList()
	}

	state, err := s.worlds.Get()
	if err != nil {
		return Snapshot{}, err
	}
	snapshot.Weather = string(state.Weather)
	snapshot.WeatherNext = state.NextChangeAt

	today := clock.TodayYMD(now)
	if rule, err := s.dailies.RuleFor(today); err == nil && rule != nil {
		snapshot.RuleToday = rule.Text
	}
	if meal, err := s.dailies.MealFor(today); err == nil {
		snapshot.MealToday = meal
	}

	stamps, err := s.dailies.TopStamps(topStamps)
	if err != nil {
		return Snapshot{}, err
	}
	for _, e := range stamps {
		snapshot.TopStamps = append(snapshot.TopStamps, StampEntry{
			UserID: e.UserID, Stamps: e.Stamps, Title: e.Title,
		})
	}

	snapshot.Host = hostStats()
	return snapshot, nil
}

// hostStats gathers machine stats. Each probe is independent; a failing
// one just leaves its field zero.
func hostStats() HostStats {
	stats := HostStats{NumGoroutines: runtime.NumGoroutine()}
	if info, err := host.Info(); err == nil {
		stats.Hostname = info.Hostname
		stats.UptimeSec = info.Uptime
	}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		stats.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		stats.MemUsed = vm.Used
		stats.MemTotal = vm.Total
	}
	return stats
}

func (s *Service) post(ctx context.Context, snapshot Snapshot) error {
	body, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, postTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("sync endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
