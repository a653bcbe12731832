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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	redis "github.com/redis/go-redis/v9"

	"github.com/abdelslam1997/light-messages-backend/internal/api"
	"github.com/abdelslam1997/light-messages-backend/internal/auth"
	"github.com/abdelslam1997/light-messages-backend/internal/config"
	"github.com/abdelslam1997/light-messages-backend/internal/directory"
	"github.com/abdelslam1997/light-messages-backend/internal/infrastructure/database"
	queueadapter "github.com/abdelslam1997/light-messages-backend/internal/infrastructure/queue/adapter"
	queueport "github.com/abdelslam1997/light-messages-backend/internal/infrastructure/queue/port"
	"github.com/abdelslam1997/light-messages-backend/internal/media"
	msgstore "github.com/abdelslam1997/light-messages-backend/internal/messenger/postgres"
	"github.com/abdelslam1997/light-messages-backend/internal/realtime"
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

	// Redis is optional: without it the fabric is in-process only and the
	// offline-notification queue is disabled.
	var (
		fabric      realtime.Fabric = realtime.NewLocalFabric()
		queueClient queueport.Client
		dir         directory.Directory = directory.NewPgDirectory(pool)
	)
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Error("redis url invalid", "err", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opt)
		defer rdb.Close()

		fabric = realtime.NewRedisFabric(rdb, log)
		dir = directory.NewCachedDirectory(dir, rdb, cfg.DirectoryCacheTTL)

		queueClient, err = queueadapter.NewAsynqClient(cfg.RedisURL)
		if err != nil {
			log.Error("queue client failed", "err", err)
			os.Exit(1)
		}
		defer queueClient.Close()
	}
	defer fabric.Close()

	resolver, err := media.NewResolver(cfg.MediaBaseURL)
	if err != nil {
		log.Error("media base url invalid", "err", err)
		os.Exit(1)
	}

	dispatcher := realtime.NewDispatcher(fabric, queueClient, log)
	gate := auth.NewGate(cfg.JWTSecret, dir, log)
	store := msgstore.NewStore(pool, cfg.MessageMaxLength)

	r := gin.New()
	r.Use(gin.Recovery())
	api.RegisterRoutes(r, api.Deps{
		Store:      store,
		Dispatcher: dispatcher,
		Fabric:     fabric,
		Gate:       gate,
		Directory:  dir,
		Media:      resolver,
		Cfg:        cfg,
		Log:        log,
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		log.Info("api listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "err", err)
	}
}
