package replica

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/unclebandit/spinwin-backend/internal/config"
	"github.com/unclebandit/spinwin-backend/internal/db"
	"github.com/unclebandit/spinwin-backend/internal/logging"
	"github.com/unclebandit/spinwin-backend/internal/metrics"
	"github.com/unclebandit/spinwin-backend/internal/repository"
)

// OpenStore builds the remote store named by cfg.Replica.Driver. It returns a
// nil store for driver "none". The close func is always safe to call.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.ReplicaObjectRepositoryInterface, func() error, error) {
	noop := func() error { return nil }
	logger = logging.OrNop(logger)

	switch cfg.Replica.Driver {
	case "none":
		return nil, noop, nil
	case "memory":
		return repository.NewMemoryReplicaObjectRepository(), noop, nil
	case "postgres":
		conn, err := db.Open(ctx, cfg.Database, logger)
		if err != nil {
			return nil, noop, err
		}
		return &repository.ReplicaObjectRepository{DB: conn}, conn.Close, nil
	case "redis":
		store, err := repository.NewRedisReplicaObjectRepository(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown replica driver %q", cfg.Replica.Driver)
	}
}

// Open is OpenStore wrapped in a Replica; it returns nil for driver "none".
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (*Replica, func() error, error) {
	store, closeFn, err := OpenStore(ctx, cfg, logger)
	if err != nil || store == nil {
		return nil, closeFn, err
	}
	return New(store, cfg.Replica.Folder, cfg.Replica.ObjectName, logger, m), closeFn, nil
}
