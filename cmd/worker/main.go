// Package main is the entry point for the checkbook background worker.
// It relays outbox events to Kafka and prunes expired idempotency keys.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"checkbook/internal/config"
	"checkbook/internal/infrastructure/events/kafka"
	"checkbook/internal/infrastructure/storage/postgres"
	"checkbook/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	if cfg.Storage.Driver != config.StoragePostgres {
		log.Fatalw("worker requires the postgres storage driver", "driver", cfg.Storage.Driver)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting checkbook worker")

	poolCfg := postgres.DefaultPoolConfig(cfg.Database.DSN)
	poolCfg.AppName = "checkbook-worker"
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MinConns = 1
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	publisher := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warnw("failed to close kafka writer", "error", err)
		}
	}()

	txManager := postgres.NewTxManager(pool)
	worker := &Worker{
		relay:        postgres.NewOutboxRelay(txManager, cfg.Worker.BatchSize, publisher),
		idempotency:  postgres.NewIdempotencyStore(txManager, cfg.Worker.IdempotencyTTL),
		pool:         pool,
		pollInterval: cfg.Worker.PollInterval,
		cleanupEvery: cfg.Worker.CleanupEvery,
		log:          log.WithComponent("worker"),
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// Worker drives the outbox relay and periodic housekeeping.
type Worker struct {
	relay        *postgres.OutboxRelay
	idempotency  *postgres.IdempotencyStore
	pool         *postgres.Pool
	pollInterval time.Duration
	cleanupEvery time.Duration
	log          *logger.Logger
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	cleanupTicker := time.NewTicker(w.cleanupEvery)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processOutbox(ctx)
		case <-cleanupTicker.C:
			w.moveToDLQ(ctx)
			w.cleanupIdempotency(ctx)
			w.pool.LogStats(ctx)
		}
	}
}

func (w *Worker) processOutbox(ctx context.Context) {
	// Drain while full batches keep coming.
	for ctx.Err() == nil {
		count, err := w.relay.ProcessBatch(ctx)
		if err != nil {
			w.log.Errorw("outbox batch failed", "error", err)
			return
		}
		if count == 0 {
			return
		}
		w.log.Debugw("processed outbox batch", "count", count)
	}
}

func (w *Worker) moveToDLQ(ctx context.Context) {
	moved, err := w.relay.MoveToDLQ(ctx)
	if err != nil {
		w.log.Errorw("failed to move outbox messages to DLQ", "error", err)
		return
	}
	if moved > 0 {
		w.log.Warnw("moved outbox messages to DLQ", "count", moved)
	}
}

func (w *Worker) cleanupIdempotency(ctx context.Context) {
	removed, err := w.idempotency.CleanupExpired(ctx)
	if err != nil {
		w.log.Errorw("failed to clean up idempotency keys", "error", err)
		return
	}
	if removed > 0 {
		w.log.Infow("cleaned up idempotency keys", "count", removed)
	}
}
