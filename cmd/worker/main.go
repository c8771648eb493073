package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"volunteerhub/internal/cloudinary"
	"volunteerhub/internal/config"
	"volunteerhub/internal/metrics"
	"volunteerhub/internal/photos"
	"volunteerhub/internal/queue"
	"volunteerhub/internal/store"
)

// Worker consumes photo jobs from the redis queue and moves inline images
// to Cloudinary.
func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cdn := cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
	if !cdn.Configured() {
		log.Fatal("worker needs CLOUDINARY_CLOUD_NAME, CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET")
	}
	if cfg.StoreBackend == "" || cfg.StoreBackend == "memory" {
		log.Fatal("worker needs a shared STORE_BACKEND (redis, postgres or mongo)")
	}

	backend, err := store.OpenBackend(ctx, cfg.Store())
	if err != nil {
		log.Fatalf("store connect failed: %v", err)
	}
	st, err := store.New(ctx, backend, store.WithLogger(logger), store.WithAdmin(cfg.AdminName, cfg.AdminPassword))
	if err != nil {
		_ = backend.Close()
		log.Fatalf("store init failed: %v", err)
	}
	defer st.Close()

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer client.Close()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis not reachable at %s: %v", cfg.RedisAddr, err)
	}

	messages, err := queue.NewRedisQueue(client, cfg.QueueKey).Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	metrics.Register()
	srv := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "err", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	svc := photos.NewService(st, photos.WithLogger(logger))
	logger.Info("worker started", "queue", cfg.QueueKey, "metrics_port", cfg.WorkerMetricsPort)
	photos.NewOffloader(svc, cdn, logger).Run(ctx, messages)
	logger.Info("worker stopped")
}
