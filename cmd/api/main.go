package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pharmacy-voice-agent/internal/auth"
	"pharmacy-voice-agent/internal/config"
	"pharmacy-voice-agent/internal/directory"
	"pharmacy-voice-agent/internal/httpapi"
	"pharmacy-voice-agent/internal/ingress"
	"pharmacy-voice-agent/internal/orchestrator"
	"pharmacy-voice-agent/internal/session"
	"pharmacy-voice-agent/internal/telephony"
	"pharmacy-voice-agent/pkg/logger"
	"pharmacy-voice-agent/pkg/metrics"
	"pharmacy-voice-agent/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Missing .env is fine outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	// Persistence: memory for local development, postgres otherwise.
	var (
		sessionRepo   session.Repository
		directoryRepo directory.Repository
	)
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			log.Error("postgres init failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()

		sr := session.NewPostgresRepo(db)
		dr := directory.NewPostgresRepo(db)
		if err := sr.EnsureSchema(rootCtx); err != nil {
			log.Error("session schema failed", "err", err)
			os.Exit(1)
		}
		if err := dr.EnsureSchema(rootCtx); err != nil {
			log.Error("directory schema failed", "err", err)
			os.Exit(1)
		}
		sessionRepo, directoryRepo = sr, dr
	default:
		sessionRepo = session.NewMemoryRepo()
		directoryRepo = directory.NewMemoryRepo()
	}

	dir := directory.NewService(directoryRepo)
	if err := dir.Seed(rootCtx); err != nil {
		log.Error("directory seed failed", "err", err)
		os.Exit(1)
	}

	// Redis backs the outbound-call concurrency cap; optional.
	var rdb *redis.Client
	if cfg.Telephony.MaxConcurrentCalls > 0 {
		rdb, err = utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
	}

	met := metrics.New("pharmacy_voice_agent")

	// Telephony provider. The simulated provider feeds events straight back
	// into the orchestrator, so its sink is attached after construction.
	var (
		provider  telephony.Provider
		simulated *telephony.SimulatedProvider
	)
	if cfg.Telephony.Mode == config.TelephonyModeTwilio {
		provider, err = telephony.NewTwilioProvider(cfg.Telephony.AccountSID, cfg.Telephony.AuthToken, cfg.Telephony.FromNumber)
		if err != nil {
			log.Error("telephony init failed", "err", err)
			os.Exit(1)
		}
	} else {
		simulated = telephony.NewSimulatedProvider(nil, log)
		provider = simulated
	}

	orch := orchestrator.NewService(provider, sessionRepo, dir, cfg.Telephony.WebhookBaseURL, orchestrator.Options{
		Redis:              rdb,
		MaxConcurrentCalls: cfg.Telephony.MaxConcurrentCalls,
		Metrics:            met,
		Logger:             log,
	})
	if simulated != nil {
		simulated.SetSink(orch)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, registerDeps{
		auth: authManager,
		api: httpapi.Handlers{
			Auth:         authManager,
			Orchestrator: orch,
			Directory:    dir,
			Sessions:     sessionRepo,
		},
		webhooks: ingress.Handlers{
			Orchestrator:   orch,
			WebhookBaseURL: cfg.Telephony.WebhookBaseURL,
		},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "telephony_mode", provider.Name(), "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
