package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/abydos/internal/daily"
	"github.com/aristath/abydos/internal/database"
	"github.com/aristath/abydos/internal/world"
)

type fixedGuilds int

func (g fixedGuilds) GuildCount() int { return int(g) }

type nopCompleter struct{}

func (nopCompleter) Complete(context.Context, string, string, int64) (string, error) {
	return "", nil
}

func newTestServer(t *testing.T) (*database.DB, *Server) {
	t.Helper()
	db := database.NewTestDB(t)
	worlds := world.NewRepository(db.Conn(), zerolog.Nop())
	dailies := daily.NewService(db.Conn(), nopCompleter{}, zerolog.Nop())
	srv := New(Config{
		Log:     zerolog.Nop(),
		DB:      db,
		Worlds:  worlds,
		Dailies: dailies,
		Guilds:  fixedGuilds(3),
		Port:    0,
		DevMode: true,
	})
	return db, srv
}

func TestHandleHealth(t *testing.T) {
	_, srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var response HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response.Status)
}

func TestHandleStatus(t *testing.T) {
	db, srv := newTestServer(t)

	worlds := world.NewRepository(db.Conn(), zerolog.Nop())
	require.NoError(t, worlds.Set(world.Sandstorm, time.Now(), time.Now().Add(4*time.Hour)))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var response StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, "sandstorm", response.Weather)
	assert.Equal(t, 3, response.GuildCount)
	assert.Empty(t, response.RuleToday, "no rule generated yet")
}

func TestHandleSystem(t *testing.T) {
	_, srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/system", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var response SystemResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Positive(t, response.NumGoroutines)
}

func TestUnknownRoute(t *testing.T) {
	_, srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
