package repository

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/spinwin-backend/internal/codec"
	appErrors "github.com/unclebandit/spinwin-backend/internal/errors"
	"github.com/unclebandit/spinwin-backend/internal/logging"
	"github.com/unclebandit/spinwin-backend/internal/lookup"
	"github.com/unclebandit/spinwin-backend/internal/metrics"
	"github.com/unclebandit/spinwin-backend/internal/model"
)

// LedgerRepositoryInterface is the local ledger as seen by the service layer.
type LedgerRepositoryInterface interface {
	Load() *model.Ledger
	Save(l *model.Ledger) error
	ReadRaw() ([]byte, error)
}

// LedgerOptions tunes write verification and retry.
type LedgerOptions struct {
	MaxAttempts int
	SettleDelay time.Duration
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
}

// LedgerRepository keeps the ledger as one workbook file on local disk.
type LedgerRepository struct {
	path        string
	maxAttempts int
	settleDelay time.Duration
	logger      *zap.Logger
	metrics     *metrics.Metrics

	writeFile func(path string, data []byte) error
	now       func() time.Time
}

func NewLedgerRepository(path string, opts LedgerOptions) *LedgerRepository {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	return &LedgerRepository{
		path:        path,
		maxAttempts: opts.MaxAttempts,
		settleDelay: opts.SettleDelay,
		logger:      logging.OrNop(opts.Logger),
		metrics:     opts.Metrics,
		writeFile:   WriteFileAtomic,
		now:         time.Now,
	}
}

func (r *LedgerRepository) Path() string {
	return r.path
}

// Exists reports whether a ledger file is present.
func (r *LedgerRepository) Exists() bool {
	_, err := os.Stat(r.path)
	return err == nil
}

// Init writes a header-only ledger when no file exists yet.
func (r *LedgerRepository) Init() error {
	if r.Exists() {
		r.logger.Info("ledger file already exists", zap.String("path", r.path))
		return nil
	}
	r.logger.Info("creating new ledger file", zap.String("path", r.path))
	return r.write(model.NewLedger())
}

// Load reads the ledger. It never fails: a missing, unreadable or corrupt
// file is replaced by a fresh ledger seeded with any salvageable rows, and the
// corrupt bytes are kept next to it.
func (r *LedgerRepository) Load() *model.Ledger {
	data, err := os.ReadFile(r.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return r.rebuild(nil, "missing", err)
	case err != nil:
		return r.rebuild(nil, "unreadable", err)
	}

	l, err := codec.Decode(data)
	if err != nil {
		return r.rebuild(data, "corrupt", err)
	}
	return l
}

func (r *LedgerRepository) rebuild(data []byte, reason string, cause error) *model.Ledger {
	r.logger.Warn("rebuilding ledger",
		zap.String("path", r.path),
		zap.String("reason", reason),
		zap.Error(cause),
	)
	r.metrics.RecordLedgerRecovery(reason)

	fresh := model.NewLedger()
	if len(data) > 0 {
		backup := r.path + ".corrupt-" + strconv.FormatInt(r.now().UnixNano(), 10)
		if err := os.WriteFile(backup, data, 0o644); err != nil {
			r.logger.Error("failed to keep corrupt ledger", zap.String("backup", backup), zap.Error(err))
		} else {
			r.logger.Info("corrupt ledger kept", zap.String("backup", backup))
		}

		salvaged := codec.Salvage(data)
		for _, rec := range salvaged {
			if lookup.FindConflict(fresh, rec.Email, rec.Phone) != lookup.ConflictNone {
				continue
			}
			fresh.Append(rec)
		}
		r.logger.Info("salvaged ledger rows", zap.Int("found", len(salvaged)), zap.Int("kept", fresh.Len()))
	}

	if err := r.write(fresh); err != nil {
		r.logger.Error("failed to persist rebuilt ledger", zap.Error(err))
	}
	return fresh
}

// Save rewrites the whole ledger and re-reads it to confirm the write landed.
// A failed attempt is retried with a ledger rebuilt from l's rows, up to the
// configured attempt limit. When every attempt fails the file is put back to
// what it held before the call.
func (r *LedgerRepository) Save(l *model.Ledger) error {
	prior, priorErr := os.ReadFile(r.path)

	target := l
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if attempt > 1 {
			r.metrics.RecordWriteRetry()
			target = model.Rebuild(l)
		}

		lastErr = r.writeAndVerify(target)
		if lastErr == nil {
			l.Header = target.Header
			r.metrics.SetLedgerRows(target.Len())
			return nil
		}
		r.logger.Warn("ledger write attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.maxAttempts),
			zap.Error(lastErr),
		)
	}

	r.restore(prior, priorErr)
	return appErrors.NewPersistenceError(r.maxAttempts, lastErr)
}

// restore puts back the bytes read before a failed Save, or removes the file
// when there was none.
func (r *LedgerRepository) restore(prior []byte, readErr error) {
	var err error
	switch {
	case readErr == nil:
		err = r.writeFile(r.path, prior)
	case errors.Is(readErr, fs.ErrNotExist):
		if err = os.Remove(r.path); errors.Is(err, fs.ErrNotExist) {
			err = nil
		}
	default:
		r.logger.Error("cannot restore ledger, previous content was unreadable", zap.Error(readErr))
		return
	}

	if err != nil {
		r.logger.Error("failed to restore ledger after failed save", zap.String("path", r.path), zap.Error(err))
		return
	}
	r.logger.Warn("ledger restored to its state before the failed save", zap.String("path", r.path))
}

func (r *LedgerRepository) writeAndVerify(l *model.Ledger) error {
	if err := r.write(l); err != nil {
		return err
	}
	if r.settleDelay > 0 {
		time.Sleep(r.settleDelay)
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("re-read ledger: %w", err)
	}
	got, err := codec.Decode(data)
	if err != nil {
		return fmt.Errorf("verify ledger: %w", err)
	}
	if !got.Equal(l) {
		return errors.New("verify ledger: persisted rows differ from intended write")
	}
	return nil
}

func (r *LedgerRepository) write(l *model.Ledger) error {
	data, err := codec.Encode(l)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := r.writeFile(r.path, data); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	return nil
}

// ReadRaw returns the encoded ledger exactly as stored.
func (r *LedgerRepository) ReadRaw() ([]byte, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, appErrors.ErrDatasetNotFound
	}
	return data, err
}

var _ LedgerRepositoryInterface = (*LedgerRepository)(nil)
