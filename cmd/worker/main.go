// Package main runs the snapshot worker: it copies the registration log to S3.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/astro-comp/registrar/config"
	"github.com/astro-comp/registrar/internal/worker"
	"github.com/astro-comp/registrar/pkg/logger"
	"github.com/astro-comp/registrar/pkg/queue"
	"github.com/astro-comp/registrar/pkg/redis"
	"github.com/astro-comp/registrar/pkg/storage"
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
	log = log.With(zap.String("process", "worker"))

	ctx := context.Background()

	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:          cfg.AWS.Region,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
		Bucket:          cfg.AWS.BackupBucket,
	}, log)
	if err != nil {
		log.Fatal("s3", zap.Error(err))
	}

	var jobs worker.Jobs
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			log.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		jobs = queue.NewQueue(rdb.Client, log)
	}

	processor := worker.NewSnapshotProcessor(cfg.Storage.RegistrationsFile, s3Client, log)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		processor.Run(workerCtx, cfg.AWS.BackupInterval(), jobs)
		close(done)
	}()
	log.Info("worker started",
		zap.String("bucket", cfg.AWS.BackupBucket),
		zap.Duration("interval", cfg.AWS.BackupInterval()),
		zap.Bool("queue", jobs != nil),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	<-done
	log.Info("worker stopped")
}
