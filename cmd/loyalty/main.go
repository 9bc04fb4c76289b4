package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-orderwise/internal/config"
	"github.com/ariefcatur/go-orderwise/internal/docstore"
	kafkax "github.com/ariefcatur/go-orderwise/internal/kafka"
	"github.com/ariefcatur/go-orderwise/internal/loyalty"
	"github.com/ariefcatur/go-orderwise/internal/postgres"
	"github.com/ariefcatur/go-orderwise/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger, err := config.NewLogger(cfg.LogLevel, cfg.ServiceName+"-loyalty")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	awarder := loyalty.NewAwarder(docstore.NewPostgres(db), logger.Named("awarder"))
	w := &loyalty.Worker{
		Awarder: awarder,
		Dedup:   redisx.NewDedup(rdb, "loyalty"),
		Log:     logger.Named("worker"),
	}

	// Consumer
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.LoyaltyGroup, loyalty.TopicPointsRetry, cfg.LoyaltyWorkers, logger)
	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info("loyalty consumer started",
			zap.String("group", cfg.LoyaltyGroup),
			zap.String("topic", loyalty.TopicPointsRetry),
			zap.Int("workers", cfg.LoyaltyWorkers))
		if err := cons.Start(ctx, w.HandleAwardRequested); err != nil {
			logger.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	// sweep awards whose order committed but whose points never landed
	go func() {
		t := time.NewTicker(cfg.LoyaltyReconcile)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				n, err := awarder.Reconcile(ctx, cfg.LoyaltyReconcile)
				if err != nil {
					logger.Warn("reconcile pending awards", zap.Int("applied", n), zap.Error(err))
				} else if n > 0 {
					logger.Info("reconciled pending awards", zap.Int("applied", n))
				}
			}
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	logger.Info("shutting down consumer")
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logger.Warn("consumer did not stop in time")
	}
}
