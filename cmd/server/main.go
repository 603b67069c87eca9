// Package main runs the competition registration HTTP server with graceful shutdown.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/astro-comp/registrar/config"
	"github.com/astro-comp/registrar/internal/analytics"
	"github.com/astro-comp/registrar/internal/mailer"
	"github.com/astro-comp/registrar/internal/models"
	"github.com/astro-comp/registrar/internal/ratelimit"
	"github.com/astro-comp/registrar/internal/registrations"
	"github.com/astro-comp/registrar/pkg/logger"
	"github.com/astro-comp/registrar/pkg/metrics"
	"github.com/astro-comp/registrar/pkg/queue"
	"github.com/astro-comp/registrar/pkg/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()

	repo, err := registrations.Open(cfg.Storage.RegistrationsFile, log)
	if err != nil {
		log.Fatal("registration log", zap.Error(err), zap.String("path", cfg.Storage.RegistrationsFile))
	}
	log.Info("registration log ready", zap.String("path", repo.Path()))

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	var sender mailer.Sender
	if cfg.Email.Enabled() {
		sender = mailer.NewSMTPSender(cfg.Email)
		log.Info("email service configured", zap.String("smtp_host", cfg.Email.SMTPHost), zap.String("user", cfg.Email.User))
	} else {
		sender = mailer.NewDisabledSender()
		log.Warn("email service not configured (EMAIL_USER/EMAIL_PASS missing); registrations will be stored without confirmation emails")
	}
	dispatcher := mailer.NewDispatcher(sender, mailer.OptionsFromConfig(cfg), log)

	var limiter ratelimit.Limiter
	opts := []registrations.Option{
		registrations.WithMetrics(m),
		registrations.WithDispatchTimeout(cfg.Email.Timeout()),
	}
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			log.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		limiter = ratelimit.NewRedisLimiter(rdb.Client)
		opts = append(opts, registrations.WithOnStored(snapshotRequester(queue.NewQueue(rdb.Client, log), log)))
	} else {
		mem := ratelimit.NewMemoryLimiter()
		limiter = mem
		go sweepLimiter(ctx, mem, cfg.RateLimit.Window())
	}

	svc := registrations.NewService(repo, dispatcher, log, opts...)

	router, err := newRouter(routerDeps{
		cfg:        cfg,
		logger:     log,
		registry:   registry,
		metrics:    m,
		limiter:    limiter,
		register:   registrations.NewHandler(svc, log),
		stats:      analytics.NewHandler(repo, log),
		emailReady: dispatcher.Enabled(),
		started:    time.Now(),
	})
	if err != nil {
		log.Fatal("router", zap.Error(err))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Info("server listening",
			zap.String("port", cfg.Server.Port),
			zap.String("environment", cfg.Server.Environment),
			zap.Bool("email_configured", dispatcher.Enabled()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}
	if err := svc.Wait(shutdownCtx); err != nil {
		log.Warn("pending operator notices abandoned", zap.Error(err))
	}
	log.Info("server stopped")
}

func snapshotRequester(q *queue.Queue, log *zap.Logger) func(context.Context, *models.Registration) {
	return func(ctx context.Context, reg *models.Registration) {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := q.EnqueueSnapshot(ctx, queue.SnapshotPayload{Reason: "registration", RegistrationID: reg.ID}); err != nil {
			log.Warn("snapshot request not queued", zap.Error(err), zap.String("registration_id", reg.ID))
		}
	}
}

func sweepLimiter(ctx context.Context, l *ratelimit.MemoryLimiter, window time.Duration) {
	ticker := time.NewTicker(window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep(window)
		}
	}
}
