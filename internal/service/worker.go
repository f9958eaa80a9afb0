package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/spinwin-backend/internal/errors"
	"github.com/unclebandit/spinwin-backend/internal/logging"
	"github.com/unclebandit/spinwin-backend/internal/metrics"
)

// LedgerReader is the part of the ledger repository the worker needs.
type LedgerReader interface {
	ReadRaw() ([]byte, error)
}

// ReplicaPusher uploads the encoded ledger.
type ReplicaPusher interface {
	Push(ctx context.Context, content []byte) error
}

// SyncWorker copies the local ledger to its replica, periodically and on
// demand.
type SyncWorker struct {
	Ledger   LedgerReader
	Replica  ReplicaPusher
	Gate     *sync.Mutex
	Interval time.Duration
	Logger   *zap.Logger
	Metrics  *metrics.Metrics

	// pushMu keeps pushes in order so an older snapshot never lands last.
	pushMu sync.Mutex
}

// Constructor
func NewSyncWorker(ledger LedgerReader, replica ReplicaPusher, gate *sync.Mutex, interval time.Duration, logger *zap.Logger, m *metrics.Metrics) *SyncWorker {
	if gate == nil {
		gate = &sync.Mutex{}
	}
	return &SyncWorker{
		Ledger:   ledger,
		Replica:  replica,
		Gate:     gate,
		Interval: interval,
		Logger:   logging.OrNop(logger),
		Metrics:  m,
	}
}

// SyncOnce pushes the current ledger. With wait false it gives up at once
// when a write holds the gate and reports skipped; with wait true it queues
// behind the write.
func (w *SyncWorker) SyncOnce(ctx context.Context, wait bool) (skipped bool, err error) {
	if wait {
		w.pushMu.Lock()
		w.Gate.Lock()
	} else {
		if !w.pushMu.TryLock() {
			w.Logger.Debug("push in progress, skipping sync cycle")
			return true, nil
		}
		if !w.Gate.TryLock() {
			w.pushMu.Unlock()
			w.Metrics.RecordSyncSkipped()
			w.Logger.Debug("write in progress, skipping sync cycle")
			return true, nil
		}
	}
	defer w.pushMu.Unlock()

	data, err := w.Ledger.ReadRaw()
	w.Gate.Unlock()

	if errors.Is(err, appErrors.ErrDatasetNotFound) {
		w.Logger.Debug("no ledger yet, nothing to sync")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read ledger for sync: %w", err)
	}

	if err := w.Replica.Push(ctx, data); err != nil {
		return false, err
	}
	w.Logger.Debug("ledger pushed to replica", zap.Int("bytes", len(data)))
	return false, nil
}

// Start runs a sync cycle every Interval until ctx is done.
func (w *SyncWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	w.Logger.Info("replica sync loop started", zap.Duration("interval", w.Interval))
	for {
		select {
		case <-ctx.Done():
			w.Logger.Info("replica sync loop stopped")
			return
		case <-ticker.C:
			skipped, err := w.SyncOnce(ctx, false)
			if err != nil {
				w.Logger.Warn("periodic replica sync failed", zap.Error(err))
			} else if skipped {
				w.Logger.Info("periodic replica sync skipped, write in progress")
			}
		}
	}
}
