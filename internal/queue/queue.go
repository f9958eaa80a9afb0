package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/spinwin-backend/internal/logging"
)

// TopicLedgerSync carries requests to push the ledger to its replica.
const TopicLedgerSync = "ledger_sync"

// Queue interface
type Queue interface {
	Publish(topic string, payload any) error
	Subscribe(topic string, handler func(payload any) error) error
}

// SyncJob asks for an immediate replica push.
type SyncJob struct {
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
}

// InMemoryQueue is an in-process queue with bounded retry
type InMemoryQueue struct {
	mu         sync.Mutex
	handlers   map[string][]func(payload any) error
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
	wg         sync.WaitGroup
}

// NewInMemoryQueue creates a new queue. Failed jobs are retried maxRetries
// times, sleeping attempt*backoff between tries.
func NewInMemoryQueue(maxRetries int, backoff time.Duration, logger *zap.Logger) *InMemoryQueue {
	return &InMemoryQueue{
		handlers:   make(map[string][]func(payload any) error),
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logging.OrNop(logger),
	}
}

// JobPayload wraps a message payload with retry info
type JobPayload struct {
	Topic      string
	Payload    any
	RetryCount int
	MaxRetries int
}

// Publish sends a message to all subscribers
func (q *InMemoryQueue) Publish(topic string, payload any) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	for _, handler := range handlers {
		job := JobPayload{
			Topic:      topic,
			Payload:    payload,
			MaxRetries: q.maxRetries,
		}
		q.wg.Add(1)
		go q.processJob(handler, job)
	}

	return nil
}

// processJob handles retries and errors
func (q *InMemoryQueue) processJob(handler func(payload any) error, job JobPayload) {
	defer q.wg.Done()

	for {
		err := handler(job.Payload)
		if err == nil {
			q.logger.Debug("job processed", zap.String("topic", job.Topic), zap.Int("retries", job.RetryCount))
			return
		}

		if job.RetryCount >= job.MaxRetries {
			q.logger.Error("job permanently failed",
				zap.String("topic", job.Topic),
				zap.Int("attempts", job.RetryCount+1),
				zap.Error(err),
			)
			return
		}

		job.RetryCount++
		q.logger.Warn("job failed, retrying",
			zap.String("topic", job.Topic),
			zap.Int("retry", job.RetryCount),
			zap.Int("max_retries", job.MaxRetries),
			zap.Error(err),
		)
		time.Sleep(time.Duration(job.RetryCount) * q.backoff)
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler func(payload any) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// Wait blocks until every published job has finished or given up.
func (q *InMemoryQueue) Wait() {
	q.wg.Wait()
}

// LedgerSyncer is what the sync subscriber drives.
type LedgerSyncer interface {
	SyncOnce(ctx context.Context, wait bool) (bool, error)
}

// StartLedgerSyncSubscriber pushes the ledger to its replica for every job
// published on topic. A failed push is returned so the queue retries it.
func StartLedgerSyncSubscriber(ctx context.Context, q Queue, topic string, syncer LedgerSyncer, logger *zap.Logger) error {
	logger = logging.OrNop(logger)

	return q.Subscribe(topic, func(payload any) error {
		job, err := DecodeSyncJob(payload)
		if err != nil {
			logger.Warn("dropping malformed sync job", zap.Error(err))
			return nil // retrying cannot fix it
		}

		if _, err := syncer.SyncOnce(ctx, true); err != nil {
			logger.Warn("replica sync failed", zap.String("reason", job.Reason), zap.Error(err))
			return err
		}
		logger.Debug("replica synced", zap.String("reason", job.Reason))
		return nil
	})
}

// DecodeSyncJob accepts a SyncJob published in-process or the JSON body of a
// broker delivery.
func DecodeSyncJob(payload any) (SyncJob, error) {
	switch p := payload.(type) {
	case SyncJob:
		return p, nil
	case *SyncJob:
		return *p, nil
	case []byte:
		var job SyncJob
		if err := json.Unmarshal(p, &job); err != nil {
			return SyncJob{}, fmt.Errorf("invalid sync job: %w", err)
		}
		return job, nil
	default:
		return SyncJob{}, fmt.Errorf("unexpected sync job payload %T", payload)
	}
}
