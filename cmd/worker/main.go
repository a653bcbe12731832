package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/abdelslam1997/light-messages-backend/internal/config"
	"github.com/abdelslam1997/light-messages-backend/internal/directory"
	"github.com/abdelslam1997/light-messages-backend/internal/infrastructure/database"
	queueadapter "github.com/abdelslam1997/light-messages-backend/internal/infrastructure/queue/adapter"
	"github.com/abdelslam1997/light-messages-backend/internal/notify"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn(".env file not loaded", "err", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration invalid", "err", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(log)

	if cfg.RedisURL == "" {
		log.Error("REDIS_URL is required for the worker")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	pool, err := database.Connect(connectCtx, cfg.DBURL)
	cancel()
	if err != nil {
		log.Error("database connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	srv, err := queueadapter.NewAsynqServer(cfg.RedisURL, cfg.WorkerConcurrency, log)
	if err != nil {
		log.Error("queue server failed", "err", err)
		os.Exit(1)
	}

	notifier := notify.NewWebhookNotifier(cfg.PushWebhookURL, directory.NewPgDirectory(pool), log)
	notify.Register(srv, notifier)

	log.Info("worker running", "concurrency", cfg.WorkerConcurrency)
	if err := srv.Run(ctx); err != nil {
		log.Error("worker stopped", "err", err)
		os.Exit(1)
	}
}
