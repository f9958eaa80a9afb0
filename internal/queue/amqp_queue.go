package queue

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/unclebandit/spinwin-backend/internal/logging"
)

const retryHeader = "x-retry-count"

// AMQPQueue delivers jobs through durable RabbitMQ queues, one per topic.
type AMQPQueue struct {
	conn       *amqp.Connection
	mu         sync.Mutex // guards pubCh, channels are not safe for concurrent publish
	pubCh      *amqp.Channel
	maxRetries int
	logger     *zap.Logger

	republish func(topic string, body []byte, retry int) error
}

// NewAMQPQueue dials the broker and opens a publishing channel.
func NewAMQPQueue(url string, maxRetries int, logger *zap.Logger) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	q := &AMQPQueue{
		conn:       conn,
		pubCh:      ch,
		maxRetries: maxRetries,
		logger:     logging.OrNop(logger),
	}
	q.republish = q.publish
	return q, nil
}

func declare(ch *amqp.Channel, topic string) error {
	_, err := ch.QueueDeclare(
		topic, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	return err
}

// Publish sends payload as a persistent JSON message.
func (q *AMQPQueue) Publish(topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return q.publish(topic, body, 0)
}

func (q *AMQPQueue) publish(topic string, body []byte, retry int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := declare(q.pubCh, topic); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", topic, err)
	}
	return q.pubCh.Publish("", topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Headers:      amqp.Table{retryHeader: int32(retry)},
		Body:         body,
	})
}

// Subscribe consumes topic on its own channel. The handler receives the raw
// message body as []byte.
func (q *AMQPQueue) Subscribe(topic string, handler func(payload any) error) error {
	ch, err := q.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open a channel: %w", err)
	}
	if err := declare(ch, topic); err != nil {
		ch.Close()
		return fmt.Errorf("failed to declare queue %s: %w", topic, err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		return err
	}

	msgs, err := ch.Consume(
		topic,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	go func() {
		defer ch.Close()
		for d := range msgs {
			q.handleDelivery(topic, d, handler)
		}
		q.logger.Info("consumer stopped", zap.String("topic", topic))
	}()
	return nil
}

// handleDelivery acks every message exactly once. Failed messages are
// republished with an incremented retry header until maxRetries is reached.
func (q *AMQPQueue) handleDelivery(topic string, d amqp.Delivery, handler func(payload any) error) {
	err := handler(d.Body)
	if err == nil {
		d.Ack(false)
		return
	}

	retry := retryCount(d.Headers)
	if retry < q.maxRetries {
		if perr := q.republish(topic, d.Body, retry+1); perr != nil {
			q.logger.Error("failed to requeue job", zap.String("topic", topic), zap.Error(perr))
			d.Nack(false, true)
			return
		}
		q.logger.Warn("job failed, requeued",
			zap.String("topic", topic),
			zap.Int("retry", retry+1),
			zap.Error(err),
		)
		d.Ack(false)
		return
	}

	q.logger.Error("job permanently failed",
		zap.String("topic", topic),
		zap.Int("attempts", retry+1),
		zap.Error(err),
	)
	d.Ack(false)
}

func retryCount(headers amqp.Table) int {
	switch v := headers[retryHeader].(type) {
	case int:
		return v
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	default:
		return 0
	}
}

// Close shuts the publishing channel and the connection, which also stops
// every consumer.
func (q *AMQPQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.pubCh.Close(); err != nil {
		q.logger.Warn("failed to close channel", zap.Error(err))
	}
	return q.conn.Close()
}

var (
	_ Queue = (*AMQPQueue)(nil)
	_ Queue = (*InMemoryQueue)(nil)
)
