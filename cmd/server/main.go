// Package main is the entry point for the Abydos colony bot.
// One process runs everything: the websocket gateway client, the world and
// incident schedulers, the cron jobs for reports and daily content, and a
// small read-only admin HTTP server. All state lives in a single SQLite
// database under the data directory.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aristath/abydos/internal/bot"
	"github.com/aristath/abydos/internal/clock"
	"github.com/aristath/abydos/internal/config"
	"github.com/aristath/abydos/internal/daily"
	"github.com/aristath/abydos/internal/database"
	"github.com/aristath/abydos/internal/economy"
	"github.com/aristath/abydos/internal/incident"
	"github.com/aristath/abydos/internal/levels"
	"github.com/aristath/abydos/internal/llm"
	"github.com/aristath/abydos/internal/presence"
	"github.com/aristath/abydos/internal/quest"
	"github.com/aristath/abydos/internal/report"
	"github.com/aristath/abydos/internal/server"
	"github.com/aristath/abydos/internal/websync"
	"github.com/aristath/abydos/internal/wordchain"
	"github.com/aristath/abydos/internal/world"
	"github.com/aristath/abydos/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	log.Info().Msg("Starting Abydos")

	db, err := database.New(database.Config{Path: cfg.DatabasePath()})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	if err := database.Migrate(db, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Repositories and core engines. Everything shares the one connection
	// pool; cross-table writes go through database.WithTransaction.
	worlds := world.NewRepository(db.Conn(), log)
	repo := economy.NewRepository(db.Conn(), log)
	debt := economy.NewDebtEngine(repo, log)
	explore := economy.NewExploreService(repo, log)
	workshop := economy.NewWorkshop(repo, log)
	quests := quest.NewService(repo, log)
	levelSvc := levels.NewService(db.Conn(), log)

	oracle := llm.New(llm.Config{
		APIKey:          cfg.LLMAPIKey,
		Model:           cfg.LLMModel,
		MonthlyLimitUSD: cfg.LLMMonthlyLimitUSD,
		InputPrice1K:    cfg.LLMInputPricePer1K,
		OutputPrice1K:   cfg.LLMOutputPricePer1K,
		UsageDir:        cfg.DataDir,
	}, log)
	dailySvc := daily.NewService(db.Conn(), oracle, log)

	// Word-chain dictionary. A missing cache is not fatal: the bot comes up
	// with an empty dictionary and the loader refreshes it on next start.
	loadCtx, loadCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	dictLoader := wordchain.NewLoader(cfg.DictBaseURL, cfg.DictToken, filepath.Join(cfg.DataDir, "dict"), log)
	dict, rules, err := dictLoader.Load(loadCtx)
	loadCancel()
	if err != nil {
		log.Warn().Err(err).Msg("Dictionary unavailable, word-chain games will be degraded")
		dict = wordchain.NewDictionary(nil)
		rules = wordchain.DefaultRules()
	}
	engine := wordchain.NewEngine(dict, rules)
	records := wordchain.NewRecords(db.Conn(), log)

	gateway := bot.NewGateway(cfg.GatewayURL, cfg.TransportToken, log)
	games := wordchain.NewManager(engine, records, bot.NewTransportMessenger(gateway, log), log)

	worldSched := world.NewScheduler(worlds, nil, log)
	incidents := incident.NewScheduler(repo, debt, nil, log)

	glitch := bot.NewGlitcher(cfg.GlitchForce, cfg.GlitchChance, cfg.GlitchSplit, cfg.GlitchMaxRatio)
	b := bot.New(gateway, bot.Services{
		Worlds:     worlds,
		WorldSched: worldSched,
		Economy:    repo,
		Debt:       debt,
		Explore:    explore,
		Workshop:   workshop,
		Incidents:  incidents,
		Quests:     quests,
		Levels:     levelSvc,
		Daily:      dailySvc,
		Games:      games,
	}, cfg.CommandPrefix, cfg.WeatherAnnounceChannel, glitch, log)

	// The bot is the announcement sink for both schedulers, so it has to
	// exist before they start.
	worldSched.SetNotifier(b)
	incidents.SetNotifier(b)

	reports := report.NewService(repo, quests, b, log)
	rotator := presence.NewRotator(gateway, log)
	webSync := websync.NewService(cfg.WebSyncURL, cfg.WebSyncToken, gateway, worlds, dailySvc, log)

	gateway.OnMessage(b.HandleMessage)
	gateway.OnInteraction(b.HandleInteraction)

	srv := server.New(server.Config{
		Log:     log,
		DB:      db,
		Worlds:  worlds,
		Dailies: dailySvc,
		Guilds:  gateway,
		Port:    cfg.Port,
		DevMode: cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start admin server")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("Admin server started")

	if err := gateway.Start(); err != nil {
		log.Warn().Err(err).Msg("Gateway not connected yet, reconnecting in background")
	}

	worldSched.Start()
	incidents.Start()
	rotator.Start()

	// Time-of-day jobs run on KST: the colony's day boundary is midnight
	// Seoul time everywhere in the game rules.
	c := cron.New(cron.WithLocation(clock.KST))

	c.AddFunc("@every 10m", func() {
		reports.Sweep(time.Now())
	})

	// 00:05: post the day's rule (generating it if chat was quiet).
	c.AddFunc("5 0 * * *", func() {
		b.PostDailyRule(time.Now())
	})

	// 00:10: roll daily interest forward for every indebted guild.
	// Commands also apply interest lazily; this keeps idle guilds honest.
	c.AddFunc("10 0 * * *", func() {
		today := clock.TodayYMD(time.Now())
		gids, err := repo.GuildsWithDebt()
		if err != nil {
			log.Error().Err(err).Msg("Failed to list indebted guilds for interest sweep")
			return
		}
		for _, gid := range gids {
			if err := debt.ApplyInterestUpTo(gid, today); err != nil {
				log.Error().Err(err).Str("guild", gid).Msg("Interest sweep failed")
			}
		}
	})

	if cfg.WebSyncURL != "" {
		c.Schedule(cron.Every(cfg.WebSyncInterval), cron.FuncJob(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			webSync.SyncOnce(ctx)
		}))
	}

	c.Start()
	log.Info().Msg("Abydos is up")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	cronCtx := c.Stop()
	<-cronCtx.Done()

	rotator.Stop()
	incidents.Stop()
	worldSched.Stop()
	games.Shutdown()

	if err := gateway.Stop(); err != nil {
		log.Error().Err(err).Msg("Error stopping gateway")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Admin server forced to shutdown")
	}

	log.Info().Msg("Abydos stopped")
}
