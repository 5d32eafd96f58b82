package main

import (
	"context"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ToolsAustralia/ToolsAustralia-sub008/api/routes"
	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/cache"
	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/config"
	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/handlers"
	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/repositories"
	mongorepo "github.com/ToolsAustralia/ToolsAustralia-sub008/internal/repositories/mongodb"
	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/services"
	"github.com/ToolsAustralia/ToolsAustralia-sub008/pkg/mongodb"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"golang.org/x/exp/slog"
)

func main() {
	// A missing .env file is fine; the environment may carry everything.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx := context.Background()
	mongoClient, err := mongodb.NewClient(ctx, cfg.MongoDB.URI)
	if err != nil {
		logger.Error("failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			logger.Error("error disconnecting from MongoDB", "error", err)
		}
	}()

	db := mongoClient.Database(cfg.MongoDB.Database)

	// Repositories
	var drawRepo repositories.DrawRepository = mongorepo.NewDrawRepository(db)
	var winnerRepo repositories.WinnerRepository = mongorepo.NewWinnerRepository(db)
	var notificationRepo repositories.NotificationRepository = mongorepo.NewNotificationRepository(db)
	var adminUserRepo repositories.AdminUserRepository = mongorepo.NewAdminUserRepository(db)
	eventRepo := mongorepo.NewBenefitEventRepository(db)

	// The unique index is what makes benefit events idempotent; refuse to
	// start without it.
	if err := eventRepo.EnsureIndexes(ctx); err != nil {
		logger.Error("failed to ensure benefit event indexes", "error", err)
		os.Exit(1)
	}

	// Services
	displayCache := cache.New(cfg.Draws.DisplayCacheTTL)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	drawService := services.NewDrawService(drawRepo, winnerRepo, notificationRepo, displayCache, rng, services.Defaults{
		GapGraceWindow: cfg.Draws.DefaultGapGraceWindow,
		FreezeLead:     cfg.Draws.DefaultFreezeLead,
	})
	entryService := services.NewEntryService(drawService, eventRepo)
	authService := services.NewAuthService(adminUserRepo, cfg)
	sweepService := services.NewSweepService(drawRepo)

	// Status sweep keeps persisted draw statuses in step with the clock
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Draws.SweepSchedule, func() {
		sweepCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		transitions, err := sweepService.Run(sweepCtx, time.Now().UTC())
		if err != nil {
			logger.Error("status sweep failed", "error", err)
			return
		}
		if transitions > 0 {
			logger.Info("status sweep applied transitions", "count", transitions)
		}
	}); err != nil {
		logger.Error("failed to schedule status sweep", "schedule", cfg.Draws.SweepSchedule, "error", err)
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Handlers
	deps := routes.HandlerDependencies{
		AuthHandler:  handlers.NewAuthHandler(authService),
		DrawHandler:  handlers.NewDrawHandler(drawService, cfg),
		EntryHandler: handlers.NewEntryHandler(entryService),
	}

	router := routes.SetupRouter(cfg, logger, deps)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server exiting")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
