// Command server runs the eligibility gating backend: the webhook HTTP
// surface, the background maintenance scheduler, and the storage pool behind
// them.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/luckyjet/go-prediction-backend/internal/bot"
	"github.com/luckyjet/go-prediction-backend/internal/cache"
	"github.com/luckyjet/go-prediction-backend/internal/config"
	httpapi "github.com/luckyjet/go-prediction-backend/internal/http"
	"github.com/luckyjet/go-prediction-backend/internal/http/handlers"
	"github.com/luckyjet/go-prediction-backend/internal/jobs"
	"github.com/luckyjet/go-prediction-backend/internal/observability"
	"github.com/luckyjet/go-prediction-backend/internal/platform"
	"github.com/luckyjet/go-prediction-backend/internal/repo"
	"github.com/luckyjet/go-prediction-backend/internal/services"
	"github.com/luckyjet/go-prediction-backend/internal/storage"
)

const version = "1.0.0"

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	setupLogging(cfg)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.Setup(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOTel(c)
	}()

	// Storage: pool init failure is fatal, the service cannot run degraded
	// from the start.
	pool := storage.NewPool(storage.PoolConfig{
		Driver:           cfg.DB.Driver(),
		DSN:              cfg.DB.DSN(),
		MinConns:         cfg.DB.MinConns,
		MaxConns:         cfg.DB.MaxConns,
		ConnectTimeout:   cfg.DB.ConnectTimeout,
		StatementTimeout: cfg.DB.StatementTimeout,
		IdleTimeout:      cfg.DB.IdleTimeout,
		MaxAttempts:      cfg.DB.MaxAttempts,
		Tracing:          cfg.OTEL.Enabled,
	}, log.Logger)
	if err := pool.Initialize(ctx); err != nil {
		log.Fatal().Err(err).Msg("storage pool initialization failed")
	}
	defer pool.Close()

	gateway := storage.NewGateway(pool, log.Logger)
	if err := gateway.Read(ctx, repo.AutoMigrate); err != nil {
		log.Fatal().Err(err).Msg("schema migration failed")
	}

	// Platform client and the service graph.
	client := platform.NewClient(cfg.Bot.Token, log.Logger)
	members := cache.New[int64, bool](cfg.Cache.MembershipCap, cfg.Cache.MembershipTTL)
	referrals := cache.New[int64, int](cfg.Cache.ReferralCap, cfg.Cache.ReferralTTL)

	eligibility := &services.EligibilityService{
		Gateway:        gateway,
		Membership:     client,
		Channel:        cfg.Bot.Channel,
		SharesRequired: cfg.Bot.SharesRequired,
		Members:        members,
		Referrals:      referrals,
		Retry:          services.DefaultRetryPolicy(),
		Log:            log.Logger,
	}
	loc, _ := time.LoadLocation(cfg.Bot.Timezone) // validated by config
	predictions := services.NewPredictionService(cfg.Bot.Cooldown, cfg.Bot.PredictionLead, loc, log.Logger)

	dispatcher := &bot.Dispatcher{
		Eligibility: eligibility,
		Referrals:   &services.ReferralService{Gateway: gateway, Eligibility: eligibility, Log: log.Logger},
		Broadcast: &services.BroadcastService{
			Eligibility: eligibility,
			BatchSize:   cfg.Broadcast.BatchSize,
			Interval:    cfg.Broadcast.Interval,
			Log:         log.Logger,
		},
		Live:        &services.LiveRequestService{Gateway: gateway, Log: log.Logger},
		Predictions: predictions,
		Notifier:    &services.AdminNotifier{Gateway: gateway, Sender: client, Log: log.Logger},
		Gateway:     gateway,
		Sender:      client,
		Channel:     cfg.Bot.Channel,
		BotName:     cfg.Bot.Name,
		Log:         log.Logger,
	}

	scheduler := &jobs.Scheduler{Pool: pool, UptimeURL: cfg.UptimeURL, Log: log.Logger}
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("scheduler start failed")
	}
	defer scheduler.Stop()

	engine := gin.New()
	httpapi.RegisterRoutes(engine, httpapi.Deps{
		Pool:       pool,
		Dispatcher: dispatcher,
		Caches: map[string]handlers.Occupancy{
			"membership": members,
			"referrals":  referrals,
			"cooldowns":  predictions.Cooldowns,
		},
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}

// setupLogging configures zerolog's global logger from the config.
func setupLogging(cfg config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
