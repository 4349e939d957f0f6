package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/streadway/amqp"
)

type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// AMQPQueue publishes and consumes tailoring jobs on a durable RabbitMQ queue.
type AMQPQueue struct {
	conn  *amqp.Connection
	ch    amqpChannel
	queue string
	mu    sync.Mutex
}

// NewAMQPQueue dials the broker and declares the queue.
func NewAMQPQueue(url, queue string) (*AMQPQueue, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("AMQP_URL is required")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	q, err := newAMQPQueue(ch, queue)
	if err != nil {
		conn.Close()
		return nil, err
	}
	q.conn = conn
	return q, nil
}

func newAMQPQueue(ch amqpChannel, queue string) (*AMQPQueue, error) {
	if strings.TrimSpace(queue) == "" {
		queue = "tailoring_jobs"
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("amqp declare %s: %w", queue, err)
	}
	return &AMQPQueue{ch: ch, queue: queue}, nil
}

// Send publishes a persistent message to the default exchange.
func (q *AMQPQueue) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode amqp message: %w", err)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	err = q.ch.Publish("", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.TailoringID,
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	})
	if err != nil {
		return fmt.Errorf("amqp publish: %w", err)
	}
	return nil
}

// Consume delivers messages to handle with at most concurrency in flight.
// Handled messages are acked, the rest are requeued. It returns when ctx is
// done or the broker closes the delivery channel.
func (q *AMQPQueue) Consume(ctx context.Context, concurrency int, handle HandlerFunc) error {
	if concurrency < 1 {
		concurrency = 1
	}
	if err := q.ch.Qos(concurrency, 0, false); err != nil {
		return fmt.Errorf("amqp qos: %w", err)
	}
	deliveries, err := q.ch.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("amqp consume: %w", err)
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("amqp delivery channel closed")
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				_ = d.Nack(false, true)
				return nil
			}
			wg.Add(1)
			go func(d amqp.Delivery) {
				defer wg.Done()
				defer func() { <-sem }()
				if handle(ctx, string(d.Body)) {
					_ = d.Ack(false)
					return
				}
				_ = d.Nack(false, true)
			}(d)
		}
	}
}

// Close shuts the channel and connection.
func (q *AMQPQueue) Close() error {
	err := q.ch.Close()
	if q.conn != nil {
		if cerr := q.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

var _ Client = (*AMQPQueue)(nil)
