// Package events publishes and consumes anonymous assessment outcomes over
// AMQP.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Publisher sends outcome events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, msg *AssessmentCompleted) error
	Healthy() bool
	Close() error
}

// Handler processes one consumed message. A returned error requeues it.
type Handler func(ctx context.Context, msg *AssessmentCompleted) error

// Noop discards events. It is used when AMQP_URL is empty.
type Noop struct{}

func (Noop) Publish(context.Context, *AssessmentCompleted) error { return nil }
func (Noop) Healthy() bool                                       { return true }
func (Noop) Close() error                                        { return nil }

const publishTimeout = 5 * time.Second

// publishChannel is the part of *amqp091.Channel used for publishing.
type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	IsClosed() bool
}

type Client struct {
	mu           sync.Mutex
	url          string
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	publisher    publishChannel
	redial       func() error
	exchangeName string
	queueName    string
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	client := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
	}
	client.redial = client.connect

	if err := client.connect(); err != nil {
		return nil, err
	}
	return client, nil
}

// connect dials the broker, replacing any previous connection.
func (c *Client) connect() error {
	c.closeLocked()

	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	c.conn, c.channel, c.publisher = conn, channel, channel
	if err := c.setup(); err != nil {
		c.closeLocked()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}
	return nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key is the queue name.
	err = c.channel.QueueBind(
		c.queueName,
		c.queueName,
		c.exchangeName,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// Publish sends msg as a persistent JSON message. A connection dropped by
// the broker is dialed again before publishing.
func (c *Client) Publish(ctx context.Context, msg *AssessmentCompleted) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.publisher == nil || c.publisher.IsClosed() {
		slog.WarnContext(ctx, "AMQP publisher disconnected, reconnecting", "exchange", c.exchangeName)
		if err := c.redial(); err != nil {
			return fmt.Errorf("reconnect publisher: %w", err)
		}
	}

	err = c.publisher.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    msg.RunID,
			Timestamp:    msg.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	slog.DebugContext(ctx, "Published assessment outcome",
		"run_id", msg.RunID,
		"exchange", c.exchangeName,
		"queue", c.queueName)

	return nil
}

// Healthy reports whether the publishing channel is open. A closed one is
// redialed by the next Publish.
func (c *Client) Healthy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.publisher != nil && !c.publisher.IsClosed()
}

// Consume delivers messages to handler until ctx is done or the channel
// closes. Deliveries are acknowledged manually.
func (c *Client) Consume(ctx context.Context, handler Handler) error {
	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming assessment outcomes", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return ErrClosed
			}
			dispatch(ctx, delivery.Body, delivery, handler)
		}
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Client) closeLocked() error {
	var err error
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil && !c.conn.IsClosed() {
		err = c.conn.Close()
	}
	c.conn, c.channel, c.publisher = nil, nil, nil
	return err
}

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

type disposition int

const (
	acked disposition = iota
	rejected
	requeued
)

// dispatch decodes one body, runs handler and settles the delivery:
// malformed messages are dropped, handler errors are requeued.
func dispatch(ctx context.Context, body []byte, ack acknowledger, handler Handler) disposition {
	msg, err := AssessmentCompletedFromJSON(body)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to unmarshal message", "error", err)
		_ = ack.Nack(false, false)
		return rejected
	}

	if err := handler(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to handle message", "error", err, "run_id", msg.RunID)
		_ = ack.Nack(false, true)
		return requeued
	}

	_ = ack.Ack(false)
	slog.DebugContext(ctx, "Processed assessment outcome", "run_id", msg.RunID)
	return acked
}
