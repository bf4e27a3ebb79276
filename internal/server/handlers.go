package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/abydos/internal/clock"
)

// HealthResponse is the health endpoint payload.
type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// StatusResponse is a coarse view of the running colony.
type StatusResponse struct {
	Status            string    `json:"status"`
	Weather           string    `json:"weather"`
	WeatherNextChange time.Time `json:"weather_next_change"`
	RuleToday         string    `json:"rule_today,omitempty"`
	MealToday         string    `json:"meal_today,omitempty"`
	GuildCount        int       `json:"guild_count"`
	UptimeSec         int64     `json:"uptime_sec"`
}

// SystemResponse reports host resource usage.
type SystemResponse struct {
	CPUPercent    float64 `json:"cpu_percent"`
	RAMPercent    float64 `json:"ram_percent"`
	MemUsed       uint64  `json:"mem_used"`
	MemTotal      uint64  `json:"mem_total"`
	DiskUsedMB    float64 `json:"disk_used_mb"`
	DiskFreeMB    float64 `json:"disk_free_mb"`
	NumGoroutines int     `json:"num_goroutines"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.HealthCheck(r.Context()); err != nil {
		s.log.Error().Err(err).Msg("Health check failed")
		s.writeJSONStatus(w, http.StatusServiceUnavailable, HealthResponse{
			Status: "unhealthy",
			Error:  err.Error(),
		})
		return
	}
	s.writeJSON(w, HealthResponse{Status: "healthy"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	response := StatusResponse{
		Status:    "ok",
		UptimeSec: int64(time.Since(s.startedAt).Seconds()),
	}

	state, err := s.worlds.Get()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to read world state")
		http.Error(w, "failed to read world state", http.StatusInternalServerError)
		return
	}
	response.Weather = string(state.Weather)
	response.WeatherNextChange = state.NextChangeAt

	// Rule and meal are shown only when already generated for today.
	today := clock.TodayYMD(time.Now())
	if rule, err := s.dailies.RuleFor(today); err == nil && rule != nil {
		response.RuleToday = rule.Text
	}
	if meal, err := s.dailies.MealFor(today); err == nil {
		response.MealToday = meal
	}

	if s.guilds != nil {
		response.GuildCount = s.guilds.GuildCount()
	}

	s.writeJSON(w, response)
}

// handleSystem gathers host stats. Each probe is independent; a failing
// one leaves its fields zero. The 100ms CPU sample keeps the endpoint
// responsive for dashboard polling.
func (s *Server) handleSystem(w http.ResponseWriter, r *http.Request) {
	response := SystemResponse{NumGoroutines: runtime.NumGoroutine()}

	if percents, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(percents) > 0 {
		response.CPUPercent = percents[0]
	} else if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get CPU percentage")
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		response.RAMPercent = vm.UsedPercent
		response.MemUsed = vm.Used
		response.MemTotal = vm.Total
	} else {
		s.log.Warn().Err(err).Msg("Failed to get memory statistics")
	}

	if usage, err := disk.Usage(s.db.Path()); err == nil {
		response.DiskUsedMB = float64(usage.Used) / 1024 / 1024
		response.DiskFreeMB = float64(usage.Free) / 1024 / 1024
	} else {
		s.log.Warn().Err(err).Msg("Failed to get disk usage")
	}

	s.writeJSON(w, response)
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	s.writeJSONStatus(w, http.StatusOK, v)
}

func (s *Server) writeJSONStatus(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}
