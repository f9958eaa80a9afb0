// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/unclebandit/spinwin-backend/internal/config"
	"github.com/unclebandit/spinwin-backend/internal/controller"
	appErrors "github.com/unclebandit/spinwin-backend/internal/errors"
	"github.com/unclebandit/spinwin-backend/internal/handler"
	"github.com/unclebandit/spinwin-backend/internal/logging"
	"github.com/unclebandit/spinwin-backend/internal/metrics"
	"github.com/unclebandit/spinwin-backend/internal/queue"
	"github.com/unclebandit/spinwin-backend/internal/replica"
	"github.com/unclebandit/spinwin-backend/internal/repository"
	"github.com/unclebandit/spinwin-backend/internal/service"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
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
		logger.Fatal("server stopped with error", zap.Error(err))
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.NewMetrics(prometheus.NewRegistry())
	}

	ledger := repository.NewLedgerRepository(cfg.Ledger.Path, repository.LedgerOptions{
		MaxAttempts: cfg.Ledger.MaxWriteAttempts,
		SettleDelay: cfg.Ledger.SettleDelay,
		Logger:      logger,
		Metrics:     m,
	})

	rep, closeReplica, err := replica.Open(ctx, cfg, logger, m)
	if err != nil {
		return fmt.Errorf("open replica: %w", err)
	}
	defer closeReplica()

	if rep != nil && cfg.Replica.PullOnStart && !ledger.Exists() {
		restoreFromReplica(ctx, cfg, rep, ledger.Path(), logger)
	}
	if err := ledger.Init(); err != nil {
		return fmt.Errorf("initialize ledger: %w", err)
	}

	gate := &sync.Mutex{}
	q, closeQueue, err := openQueue(cfg, logger)
	if err != nil {
		return err
	}
	defer closeQueue()

	var worker *service.SyncWorker
	if rep != nil {
		worker = service.NewSyncWorker(ledger, rep, gate, cfg.Replica.SyncInterval, logger, m)
		// With a broker the standalone worker consumes sync jobs
		if cfg.Queue.Driver == "memory" {
			if err := queue.StartLedgerSyncSubscriber(ctx, q, cfg.Queue.Topic, worker, logger); err != nil {
				return fmt.Errorf("subscribe to %s: %w", cfg.Queue.Topic, err)
			}
		}
	} else if cfg.Queue.Driver == "memory" {
		// nobody would consume the jobs
		q = nil
	}

	submissions := service.NewSubmissionService(ledger, q, gate, logger, m)
	submissions.Topic = cfg.Queue.Topic

	var pinger handler.Pinger
	if rep != nil {
		pinger = rep
	}

	srv := &http.Server{
		Addr: cfg.Server.Addr(),
		Handler: newRouter(routerDeps{
			Config:     cfg,
			Logger:     logger,
			Metrics:    m,
			Submission: controller.NewSubmissionController(submissions, logger),
			Health:     handler.NewHealthHandler(pinger, cfg.Replica.Timeout, logger),
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server running", zap.String("addr", srv.Addr), zap.String("ledger", ledger.Path()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if worker != nil {
		g.Go(func() error {
			worker.Start(gctx)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// restoreFromReplica seeds a fresh host with the remote copy of the ledger.
func restoreFromReplica(ctx context.Context, cfg *config.Config, rep *replica.Replica, path string, logger *zap.Logger) {
	pullCtx, cancel := context.WithTimeout(ctx, cfg.Replica.Timeout)
	defer cancel()

	err := rep.Pull(pullCtx, path)
	switch {
	case err == nil:
		logger.Info("ledger restored from replica", zap.String("path", path))
	case errors.Is(err, appErrors.ErrReplicaNotFound):
		logger.Info("no replica yet, starting with an empty ledger")
	default:
		logger.Warn("failed to restore ledger from replica", zap.Error(err))
	}
}

func openQueue(cfg *config.Config, logger *zap.Logger) (queue.Queue, func() error, error) {
	if cfg.Queue.Driver == "amqp" {
		q, err := queue.NewAMQPQueue(cfg.Queue.AMQPURL, cfg.Queue.MaxRetries, logger)
		if err != nil {
			return nil, nil, err
		}
		return q, q.Close, nil
	}
	return queue.NewInMemoryQueue(cfg.Queue.MaxRetries, cfg.Queue.Backoff, logger), func() error { return nil }, nil
}
