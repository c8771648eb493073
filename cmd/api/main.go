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

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"volunteerhub/internal/attendance"
	"volunteerhub/internal/auth"
	"volunteerhub/internal/cloudinary"
	"volunteerhub/internal/config"
	"volunteerhub/internal/events"
	"volunteerhub/internal/handler"
	"volunteerhub/internal/httpmiddleware"
	"volunteerhub/internal/identity"
	"volunteerhub/internal/messaging"
	"volunteerhub/internal/metrics"
	"volunteerhub/internal/photos"
	"volunteerhub/internal/queue"
	"volunteerhub/internal/store"
)

func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if cfg.Release() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, logger); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func run(cfg config.App, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Register()

	backend, err := store.OpenBackend(ctx, cfg.Store())
	if err != nil {
		return err
	}
	st, err := store.New(ctx, backend,
		store.WithLogger(logger),
		store.WithAdmin(cfg.AdminName, cfg.AdminPassword),
	)
	if err != nil {
		_ = backend.Close()
		return err
	}
	defer st.Close()
	logger.Info("store ready", "backend", cfg.StoreBackend)

	cdn := cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
	photoOpts := []photos.Option{photos.WithLogger(logger)}
	if cdn.Configured() {
		photoOpts = append(photoOpts, photos.WithUploader(cdn))
		logger.Info("cloudinary configured", "cloud", cfg.CloudinaryCloudName)
	} else {
		logger.Info("cloudinary not configured, images stay inline")
	}

	// Inline images are offloaded in-process for the memory queue and by
	// cmd/worker for the redis queue.
	var inproc *queue.InMemory
	switch {
	case cfg.QueueBackend == "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		photoOpts = append(photoOpts, photos.WithQueue(queue.NewRedisQueue(client, cfg.QueueKey)))
	case cdn.Configured():
		inproc = queue.NewInMemory(64)
		photoOpts = append(photoOpts, photos.WithQueue(inproc))
	}
	photoSvc := photos.NewService(st, photoOpts...)
	if inproc != nil {
		msgs, err := inproc.Consume(ctx)
		if err != nil {
			return err
		}
		go photos.NewOffloader(photoSvc, cdn, logger).Run(ctx, msgs)
	}

	h := handler.New(handler.Deps{
		Identity: identity.NewService(st),
		Events:   events.NewService(st),
		Ledger:   attendance.NewLedger(st),
		Messages: messaging.NewLog(st),
		Photos:   photoSvc,
		Tokens: auth.Issuer{
			Name:       cfg.JWTIssuer,
			Key:        cfg.JWTSigningKey,
			AccessTTL:  cfg.AccessTTL,
			RefreshTTL: cfg.RefreshTTL,
		},
		Logger: logger,
	})

	limiter := httpmiddleware.NewKeyedLimiter(cfg.RateLimitPerMin, cfg.RateLimitBurst)
	go limiter.Run(ctx)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}))
	r.Use(securityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		if _, err := st.Users(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "store": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "store": true})
	})

	api := r.Group("", limiter.GinMiddleware(httpmiddleware.ByClientIP))
	h.Register(api)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced shutdown", "err", err)
	}
	logger.Info("server exited")
	return nil
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
