package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/timmy/reelforge/internal/domain"
)

// amqpChannel is the part of *amqp.Channel the queue publishes through.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

// AMQPQueue publishes kickoff messages to a durable RabbitMQ queue.
type AMQPQueue struct {
	queue       string
	callbackURL string
	open        func() (amqpChannel, error)
	closeConn   func() error

	mu sync.Mutex
	ch amqpChannel
}

// NewAMQPQueue dials url and declares queue.
func NewAMQPQueue(url, queue, callbackURL string) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	open := func() (amqpChannel, error) {
		ch, err := conn.Channel()
		if err != nil {
			return nil, err
		}
		return ch, nil
	}
	return newAMQPQueue(ch, open, conn.Close, queue, callbackURL), nil
}

func newAMQPQueue(ch amqpChannel, open func() (amqpChannel, error), closeConn func() error, queue, callbackURL string) *AMQPQueue {
	return &AMQPQueue{ch: ch, open: open, closeConn: closeConn, queue: queue, callbackURL: callbackURL}
}

// Enqueue publishes the kickoff message as a persistent JSON message.
func (q *AMQPQueue) Enqueue(ctx context.Context, job *domain.ContentJob) error {
	body, err := json.Marshal(NewKickoffMessage(job, q.callbackURL))
	if err != nil {
		return fmt.Errorf("failed to marshal kickoff message: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ch == nil || q.ch.IsClosed() {
		ch, err := q.open()
		if err != nil {
			return fmt.Errorf("failed to reopen channel: %w", err)
		}
		q.ch = ch
	}

	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish job %s: %w", job.ID, err)
	}
	return nil
}

// Close closes the channel and connection.
func (q *AMQPQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ch != nil {
		q.ch.Close()
	}
	return q.closeConn()
}
