package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	"whatsapp-bulk-worker/internal/domain"
	"whatsapp-bulk-worker/internal/ports"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	exchangeName = "bulk"
	queueName    = "bulk.send"
	routingKey   = "bulk.send"
)

// channel is the subset of *amqp.Channel the publisher needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

var _ ports.JobPublisher = (*Publisher)(nil)

// Publisher implements ports.JobPublisher using RabbitMQ.
type Publisher struct {
	conn    *amqp.Connection
	channel channel
	closer  func() error
}

// NewPublisher dials RabbitMQ, declares the exchange and queue, and binds them.
func NewPublisher(amqpURL string) (*Publisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declare(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &Publisher{conn: conn, channel: ch, closer: ch.Close}, nil
}

// Publish serialises a domain.BulkJob and sends it to the queue.
func (p *Publisher) Publish(ctx context.Context, job domain.BulkJob) error {
	pub, err := encode(job)
	if err != nil {
		return err
	}
	if err := p.channel.PublishWithContext(
		ctx,
		exchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		pub,
	); err != nil {
		return fmt.Errorf("publish bulk job: %w", err)
	}
	return nil
}

// Close cleanly shuts down the channel and connection.
func (p *Publisher) Close() {
	if p.closer != nil {
		p.closer()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

func encode(job domain.BulkJob) (amqp.Publishing, error) {
	body, err := json.Marshal(job)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal bulk job: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.DispatchID.String(),
		Body:         body,
	}, nil
}

// declare idempotently sets up the exchange, queue, and binding.
func declare(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(exchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(queueName, routingKey, exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}
