package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"talentvault/internal/api"
	"talentvault/internal/backup"
	"talentvault/internal/blobstore"
	"talentvault/internal/config"
	"talentvault/internal/records"
	"talentvault/internal/session"
	"talentvault/internal/syncengine"
)

const appVersion = "1.0.0"

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	store, err := blobstore.NewClient(cfg.Blob, cfg.Sync.Bucket, cfg.Backup.Bucket)
	if err != nil {
		log.Fatalf("init blob store: %v", err)
	}
	logger.Info("blob store ready", slog.String("endpoint", cfg.Blob.Endpoint))

	engine, err := syncengine.New(store, cfg.Sync, cfg.Blob.OpTimeout, logger)
	if err != nil {
		log.Fatalf("init sync engine: %v", err)
	}
	logger.Info("local cache file ready", slog.String("path", cfg.Sync.LocalPath))

	recordStore := records.NewStore(engine, nil, logger)
	manager := backup.NewManager(store, engine, recordStore, cfg.Backup, cfg.Sync, cfg.Blob.OpTimeout, appVersion, logger)
	recordStore.SetNotifier(manager)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	tokens, err := session.NewService(cfg.Session)
	if err != nil {
		log.Fatalf("init session service: %v", err)
	}
	gate := session.NewGate(engine, logger)
	cache := session.NewCache(redisClient, 5*time.Minute, logger)

	if cfg.Sync.AutoSyncEnabled {
		engine.StartAutoSync()
	}
	manager.StartScheduler()

	router := api.NewRouter(logger)
	api.RegisterRoutes(router, engine, recordStore, manager, tokens, gate, cache, redisClient, logger)

	address := fmt.Sprintf(":%d", cfg.API.Port)
	server := &http.Server{
		Addr:              address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("api listening", slog.String("address", address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to start api server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
	}

	manager.Stop()
	engine.Stop()
	engine.Cleanup(shutdownCtx)
	logger.Info("shutdown complete")
}
