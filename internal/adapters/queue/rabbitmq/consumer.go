package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"whatsapp-bulk-worker/internal/domain"
	"whatsapp-bulk-worker/internal/ports"

	amqp "github.com/rabbitmq/amqp091-go"
)

var _ ports.JobConsumer = (*Consumer)(nil)

// Consumer implements ports.JobConsumer using RabbitMQ.
type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	log     *slog.Logger
}

// NewConsumer dials RabbitMQ, declares topology, and returns a Consumer.
func NewConsumer(amqpURL string, log *slog.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	// One job at a time so pacing holds across the whole worker process.
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	if err := declare(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &Consumer{conn: conn, channel: ch, log: log}, nil
}

// acknowledger is the subset of amqp.Delivery used to settle a message.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// Consume registers a consumer on the queue and calls handler for each delivery.
// It blocks until ctx is cancelled.
func (c *Consumer) Consume(ctx context.Context, handler func(ctx context.Context, job domain.BulkJob) error) error {
	deliveries, err := c.channel.Consume(
		queueName,
		"",    // auto-generated consumer tag
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("deliveries channel closed")
			}
			c.handle(ctx, d.Body, d, handler)
		}
	}
}

// handle settles one delivery. Jobs are never requeued: a redelivered bulk
// job would resend the message to every recipient.
func (c *Consumer) handle(ctx context.Context, body []byte, ack acknowledger, handler func(ctx context.Context, job domain.BulkJob) error) {
	var job domain.BulkJob
	if err := json.Unmarshal(body, &job); err != nil {
		c.log.Error("unmarshal bulk job", "err", err)
		ack.Nack(false, false)
		return
	}

	if err := handler(ctx, job); err != nil {
		c.log.Error("bulk job failed", "dispatch_id", job.DispatchID, "err", err)
		ack.Nack(false, false)
		return
	}

	ack.Ack(false)
}

// Close cleanly shuts down the channel and connection.
func (c *Consumer) Close() {
	c.channel.Close()
	c.conn.Close()
}
