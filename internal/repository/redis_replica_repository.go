package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/unclebandit/spinwin-backend/internal/logging"
	"github.com/unclebandit/spinwin-backend/internal/model"
)

// RedisReplicaObjectRepository keeps each replica object in one redis hash
// whose key doubles as the object id.
type RedisReplicaObjectRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisReplicaObjectRepository connects and pings the server.
func NewRedisReplicaObjectRepository(addr, password string, db int, logger *zap.Logger) (*RedisReplicaObjectRepository, error) {
	logger = logging.OrNop(logger)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis replica store unreachable", zap.String("addr", addr), zap.Error(err))
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("connected to redis replica store", zap.String("addr", addr), zap.Int("db", db))
	return &RedisReplicaObjectRepository{client: client, logger: logger}, nil
}

func redisObjectKey(parent, name string) string {
	return "replica:" + parent + ":" + name
}

func (r *RedisReplicaObjectRepository) FindByName(ctx context.Context, parent, name string) (*model.ReplicaObject, error) {
	key := redisObjectKey(parent, name)
	vals, err := r.client.HMGet(ctx, key, "size", "updated_at").Result()
	if err != nil {
		return nil, err
	}
	if vals[0] == nil {
		return nil, nil
	}

	obj := &model.ReplicaObject{ID: key, Parent: parent, Name: name}
	if s, ok := vals[0].(string); ok {
		obj.Size, _ = strconv.ParseInt(s, 10, 64)
	}
	if s, ok := vals[1].(string); ok {
		if nanos, err := strconv.ParseInt(s, 10, 64); err == nil {
			obj.UpdatedAt = time.Unix(0, nanos).UTC()
		}
	}
	return obj, nil
}

func (r *RedisReplicaObjectRepository) Create(ctx context.Context, parent, name string, content []byte) (*model.ReplicaObject, error) {
	key := redisObjectKey(parent, name)
	now := time.Now().UTC()
	err := r.client.HSet(ctx, key,
		"parent", parent,
		"name", name,
		"content", content,
		"size", len(content),
		"updated_at", now.UnixNano(),
	).Err()
	if err != nil {
		return nil, err
	}
	return &model.ReplicaObject{ID: key, Parent: parent, Name: name, Size: int64(len(content)), UpdatedAt: now}, nil
}

func (r *RedisReplicaObjectRepository) Update(ctx context.Context, id string, content []byte) error {
	n, err := r.client.Exists(ctx, id).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("replica object %s not found", id)
	}
	return r.client.HSet(ctx, id,
		"content", content,
		"size", len(content),
		"updated_at", time.Now().UTC().UnixNano(),
	).Err()
}

func (r *RedisReplicaObjectRepository) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	content, err := r.client.HGet(ctx, id, "content").Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("replica object %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (r *RedisReplicaObjectRepository) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		r.logger.Warn("redis ping failed", zap.Error(err))
		return err
	}
	return nil
}

func (r *RedisReplicaObjectRepository) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Warn("failed to close redis client", zap.Error(err))
		return err
	}
	return nil
}

var _ ReplicaObjectRepositoryInterface = (*RedisReplicaObjectRepository)(nil)
