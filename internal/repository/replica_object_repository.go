package repository

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"strconv"

	"github.com/unclebandit/spinwin-backend/internal/model"
)

// ReplicaObjectRepositoryInterface is the remote store contract: named blobs
// inside a parent folder.
type ReplicaObjectRepositoryInterface interface {
	// FindByName returns nil, nil when no object matches.
	FindByName(ctx context.Context, parent, name string) (*model.ReplicaObject, error)
	// Create stores a new object, or replaces the content of the object that
	// already has parent and name, so racing creators end up sharing one.
	Create(ctx context.Context, parent, name string, content []byte) (*model.ReplicaObject, error)
	Update(ctx context.Context, id string, content []byte) error
	Open(ctx context.Context, id string) (io.ReadCloser, error)
	Ping(ctx context.Context) error
}

// ReplicaObjectRepository stores replica objects in postgres.
type ReplicaObjectRepository struct {
	DB *sql.DB
}

func (r *ReplicaObjectRepository) FindByName(ctx context.Context, parent, name string) (*model.ReplicaObject, error) {
	query := `
        SELECT id, parent, name, octet_length(content), updated_at
        FROM replica_objects
        WHERE parent = $1 AND name = $2
        ORDER BY id
        LIMIT 1
    `
	var (
		id  int64
		obj model.ReplicaObject
	)
	err := r.DB.QueryRowContext(ctx, query, parent, name).Scan(&id, &obj.Parent, &obj.Name, &obj.Size, &obj.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	obj.ID = strconv.FormatInt(id, 10)
	return &obj, nil
}

func (r *ReplicaObjectRepository) Create(ctx context.Context, parent, name string, content []byte) (*model.ReplicaObject, error) {
	query := `
        INSERT INTO replica_objects (parent, name, content, updated_at)
        VALUES ($1, $2, $3, NOW())
        ON CONFLICT (parent, name)
        DO UPDATE SET content = EXCLUDED.content, updated_at = NOW()
        RETURNING id, updated_at
    `
	obj := model.ReplicaObject{Parent: parent, Name: name, Size: int64(len(content))}
	var id int64
	if err := r.DB.QueryRowContext(ctx, query, parent, name, content).Scan(&id, &obj.UpdatedAt); err != nil {
		return nil, err
	}
	obj.ID = strconv.FormatInt(id, 10)
	return &obj, nil
}

func (r *ReplicaObjectRepository) Update(ctx context.Context, id string, content []byte) error {
	query := `UPDATE replica_objects SET content=$1, updated_at=NOW() WHERE id=$2`
	res, err := r.DB.ExecContext(ctx, query, content, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("replica object %s not found", id)
	}
	return nil
}

func (r *ReplicaObjectRepository) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	var content []byte
	err := r.DB.QueryRowContext(ctx, `SELECT content FROM replica_objects WHERE id=$1`, id).Scan(&content)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("replica object %s not found", id)
		}
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (r *ReplicaObjectRepository) Ping(ctx context.Context) error {
	return r.DB.PingContext(ctx)
}

var _ ReplicaObjectRepositoryInterface = (*ReplicaObjectRepository)(nil)
