// Package replica mirrors the local ledger file to a remote object store
// under one fixed folder and object name.
package replica

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/spinwin-backend/internal/errors"
	"github.com/unclebandit/spinwin-backend/internal/logging"
	"github.com/unclebandit/spinwin-backend/internal/metrics"
	"github.com/unclebandit/spinwin-backend/internal/repository"
)

// Replica is the sole writer of the remote ledger copy.
type Replica struct {
	store   repository.ReplicaObjectRepositoryInterface
	folder  string
	name    string
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func New(store repository.ReplicaObjectRepositoryInterface, folder, name string, logger *zap.Logger, m *metrics.Metrics) *Replica {
	return &Replica{
		store:   store,
		folder:  folder,
		name:    name,
		logger:  logging.OrNop(logger),
		metrics: m,
	}
}

// Push replaces the remote copy with content, creating it on first use.
// Repeated pushes keep exactly one remote object.
func (r *Replica) Push(ctx context.Context, content []byte) (err error) {
	defer func() { r.metrics.RecordReplicaPush(err) }()

	obj, err := r.store.FindByName(ctx, r.folder, r.name)
	if err != nil {
		return appErrors.NewReplicationError("lookup", err)
	}

	if obj != nil {
		if err := r.store.Update(ctx, obj.ID, content); err != nil {
			return appErrors.NewReplicationError("update", err)
		}
		r.logger.Debug("replica updated", zap.String("id", obj.ID), zap.Int("bytes", len(content)))
		return nil
	}

	created, err := r.store.Create(ctx, r.folder, r.name, content)
	if err != nil {
		return appErrors.NewReplicationError("create", err)
	}
	r.logger.Info("replica created",
		zap.String("id", created.ID),
		zap.String("folder", r.folder),
		zap.String("name", r.name),
	)
	return nil
}

// Pull downloads the remote copy into dst, replacing it atomically.
// It returns appErrors.ErrReplicaNotFound when there is no remote copy.
func (r *Replica) Pull(ctx context.Context, dst string) error {
	obj, err := r.store.FindByName(ctx, r.folder, r.name)
	if err != nil {
		return appErrors.NewReplicationError("lookup", err)
	}
	if obj == nil {
		return appErrors.ErrReplicaNotFound
	}

	rc, err := r.store.Open(ctx, obj.ID)
	if err != nil {
		return appErrors.NewReplicationError("download", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return appErrors.NewReplicationError("download", err)
	}
	if err := repository.WriteFileAtomic(dst, data); err != nil {
		return fmt.Errorf("store pulled replica: %w", err)
	}

	r.logger.Info("replica pulled", zap.String("id", obj.ID), zap.String("dst", dst), zap.Int("bytes", len(data)))
	return nil
}

// Ping checks that the remote store is reachable.
func (r *Replica) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}
