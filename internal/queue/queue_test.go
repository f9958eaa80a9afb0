package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPublishWithoutSubscribers(t *testing.T) {
	q := NewInMemoryQueue(3, time.Millisecond, nil)
	assert.Error(t, q.Publish(TopicLedgerSync, SyncJob{Reason: "submit"}))
}

func TestInMemoryQueueRetriesUntilSuccess(t *testing.T) {
	q := NewInMemoryQueue(3, time.Millisecond, nil)

	var calls atomic.Int32
	require.NoError(t, q.Subscribe("jobs", func(payload any) error {
		if calls.Add(1) < 3 {
			return errors.New("not yet")
		}
		return nil
	}))

	require.NoError(t, q.Publish("jobs", 42))
	q.Wait()
	assert.Equal(t, int32(3), calls.Load())
}

func TestInMemoryQueueGivesUp(t *testing.T) {
	q := NewInMemoryQueue(2, time.Millisecond, nil)

	var calls atomic.Int32
	require.NoError(t, q.Subscribe("jobs", func(payload any) error {
		calls.Add(1)
		return errors.New("always")
	}))

	require.NoError(t, q.Publish("jobs", "x"))
	q.Wait()
	assert.Equal(t, int32(3), calls.Load(), "one try plus two retries")
}

func TestInMemoryQueueFansOut(t *testing.T) {
	q := NewInMemoryQueue(0, 0, nil)

	var mu sync.Mutex
	var got []any
	for j := 0; j < 2; j++ {
		require.NoError(t, q.Subscribe("jobs", func(payload any) error {
			mu.Lock()
			got = append(got, payload)
			mu.Unlock()
			return nil
		}))
	}

	require.NoError(t, q.Publish("jobs", "hello"))
	q.Wait()
	assert.Equal(t, []any{"hello", "hello"}, got)
}

type fakeSyncer struct {
	calls atomic.Int32
	waits atomic.Int32
	err   error
}

func (f *fakeSyncer) SyncOnce(_ context.Context, wait bool) (bool, error) {
	f.calls.Add(1)
	if wait {
		f.waits.Add(1)
	}
	return false, f.err
}

func TestStartLedgerSyncSubscriber(t *testing.T) {
	q := NewInMemoryQueue(1, time.Millisecond, zap.NewNop())
	syncer := &fakeSyncer{}
	require.NoError(t, StartLedgerSyncSubscriber(context.Background(), q, TopicLedgerSync, syncer, nil))

	require.NoError(t, q.Publish(TopicLedgerSync, SyncJob{Reason: "submit"}))
	q.Wait()
	assert.Equal(t, int32(1), syncer.calls.Load())
	assert.Equal(t, int32(1), syncer.waits.Load(), "triggered syncs wait for the write gate")

	syncer.err = errors.New("remote down")
	require.NoError(t, q.Publish(TopicLedgerSync, SyncJob{Reason: "submit"}))
	q.Wait()
	assert.Equal(t, int32(3), syncer.calls.Load(), "failed push is retried once")

	require.NoError(t, q.Publish(TopicLedgerSync, 12345))
	q.Wait()
	assert.Equal(t, int32(3), syncer.calls.Load(), "malformed jobs are dropped")
}

func TestDecodeSyncJob(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	body, err := json.Marshal(SyncJob{Reason: "offer", RequestedAt: at})
	require.NoError(t, err)

	job, err := DecodeSyncJob(body)
	require.NoError(t, err)
	assert.Equal(t, "offer", job.Reason)
	assert.True(t, at.Equal(job.RequestedAt))

	job, err = DecodeSyncJob(&SyncJob{Reason: "ptr"})
	require.NoError(t, err)
	assert.Equal(t, "ptr", job.Reason)

	_, err = DecodeSyncJob([]byte("{"))
	assert.Error(t, err)
	_, err = DecodeSyncJob(3.14)
	assert.Error(t, err)
}

// fakeAcknowledger records how a delivery was settled.
type fakeAcknowledger struct {
	acks, nacks int
	requeued    bool
}

func (f *fakeAcknowledger) Ack(uint64, bool) error { f.acks++; return nil }
func (f *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacks++
	f.requeued = requeue
	return nil
}
func (f *fakeAcknowledger) Reject(uint64, bool) error { return nil }

func TestHandleDelivery(t *testing.T) {
	failing := func(any) error { return errors.New("push failed") }

	t.Run("success acks", func(t *testing.T) {
		q := &AMQPQueue{maxRetries: 3, logger: zap.NewNop()}
		ack := &fakeAcknowledger{}
		q.handleDelivery("t", amqp.Delivery{Acknowledger: ack, Body: []byte("{}")}, func(any) error { return nil })
		assert.Equal(t, 1, ack.acks)
	})

	t.Run("failure republishes with next retry count", func(t *testing.T) {
		var gotRetry int
		q := &AMQPQueue{maxRetries: 3, logger: zap.NewNop(), republish: func(_ string, _ []byte, retry int) error {
			gotRetry = retry
			return nil
		}}
		ack := &fakeAcknowledger{}
		q.handleDelivery("t", amqp.Delivery{Acknowledger: ack, Headers: amqp.Table{retryHeader: int32(1)}}, failing)
		assert.Equal(t, 2, gotRetry)
		assert.Equal(t, 1, ack.acks)
	})

	t.Run("exhausted retries are dropped", func(t *testing.T) {
		republished := false
		q := &AMQPQueue{maxRetries: 3, logger: zap.NewNop(), republish: func(string, []byte, int) error {
			republished = true
			return nil
		}}
		ack := &fakeAcknowledger{}
		q.handleDelivery("t", amqp.Delivery{Acknowledger: ack, Headers: amqp.Table{retryHeader: int64(3)}}, failing)
		assert.False(t, republished)
		assert.Equal(t, 1, ack.acks)
	})

	t.Run("republish failure nacks with requeue", func(t *testing.T) {
		q := &AMQPQueue{maxRetries: 3, logger: zap.NewNop(), republish: func(string, []byte, int) error {
			return errors.New("channel closed")
		}}
		ack := &fakeAcknowledger{}
		q.handleDelivery("t", amqp.Delivery{Acknowledger: ack}, failing)
		assert.Equal(t, 0, ack.acks)
		assert.Equal(t, 1, ack.nacks)
		assert.True(t, ack.requeued)
	})
}
