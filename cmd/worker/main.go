package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/unclebandit/spinwin-backend/internal/config"
	"github.com/unclebandit/spinwin-backend/internal/logging"
	"github.com/unclebandit/spinwin-backend/internal/metrics"
	"github.com/unclebandit/spinwin-backend/internal/queue"
	"github.com/unclebandit/spinwin-backend/internal/replica"
	"github.com/unclebandit/spinwin-backend/internal/repository"
	"github.com/unclebandit/spinwin-backend/internal/service"
)

// The worker consumes ledger_sync jobs from RabbitMQ and pushes the ledger
// file it shares with the server to the replica store.
func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := checkConfig(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("worker stopped with error", zap.Error(err))
	}
}

// checkConfig rejects configurations the worker has nothing to do with.
func checkConfig(cfg *config.Config) error {
	if cfg.Queue.Driver != "amqp" {
		return errors.New("worker requires queue.driver=amqp")
	}
	if cfg.Replica.Driver == "none" || cfg.Replica.Driver == "memory" {
		return fmt.Errorf("worker requires a shared replica store, got replica.driver=%s", cfg.Replica.Driver)
	}
	return nil
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	m := metrics.NewMetrics(prometheus.NewRegistry())

	rep, closeReplica, err := replica.Open(ctx, cfg, logger, m)
	if err != nil {
		return fmt.Errorf("open replica: %w", err)
	}
	defer closeReplica()

	ledger := repository.NewLedgerRepository(cfg.Ledger.Path, repository.LedgerOptions{Logger: logger, Metrics: m})
	worker := service.NewSyncWorker(ledger, rep, nil, cfg.Replica.SyncInterval, logger, m)

	q, err := queue.NewAMQPQueue(cfg.Queue.AMQPURL, cfg.Queue.MaxRetries, logger)
	if err != nil {
		return err
	}
	defer q.Close()

	if err := queue.StartLedgerSyncSubscriber(ctx, q, cfg.Queue.Topic, worker, logger); err != nil {
		return fmt.Errorf("subscribe to %s: %w", cfg.Queue.Topic, err)
	}

	logger.Info("worker running, waiting for sync jobs",
		zap.String("topic", cfg.Queue.Topic),
		zap.String("ledger", ledger.Path()),
	)
	<-ctx.Done()
	logger.Info("worker stopped")
	return nil
}
