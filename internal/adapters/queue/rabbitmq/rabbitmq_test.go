package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"whatsapp-bulk-worker/internal/domain"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	exchange, key string
	msg           amqp.Publishing
	err           error
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

type fakeAck struct {
	acked, nacked, requeued bool
}

func (f *fakeAck) Ack(bool) error { f.acked = true; return nil }

func (f *fakeAck) Nack(_ bool, requeue bool) error {
	f.nacked, f.requeued = true, requeue
	return nil
}

func testJob() domain.BulkJob {
	return domain.BulkJob{
		DispatchID:   domain.NewDispatch("", "queue", 2).ID,
		GroupID:      "g-1",
		PhoneNumbers: []string{"5550001", "5550002"},
		Text:         "hello",
		Delay:        30 * time.Second,
	}
}

func TestPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	p := &Publisher{channel: ch}
	job := testJob()

	require.NoError(t, p.Publish(context.Background(), job))
	assert.Equal(t, exchangeName, ch.exchange)
	assert.Equal(t, routingKey, ch.key)
	assert.Equal(t, job.DispatchID.String(), ch.msg.MessageId)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)

	var decoded domain.BulkJob
	require.NoError(t, json.Unmarshal(ch.msg.Body, &decoded))
	assert.Equal(t, job, decoded)
}

func TestPublisher_PublishError(t *testing.T) {
	p := &Publisher{channel: &fakeChannel{err: amqp.ErrClosed}}
	err := p.Publish(context.Background(), testJob())
	assert.ErrorIs(t, err, amqp.ErrClosed)
}

func TestConsumer_Handle(t *testing.T) {
	c := &Consumer{log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	job := testJob()
	body, err := json.Marshal(job)
	require.NoError(t, err)

	t.Run("acks on success", func(t *testing.T) {
		ack := &fakeAck{}
		var got domain.BulkJob
		c.handle(context.Background(), body, ack, func(_ context.Context, j domain.BulkJob) error {
			got = j
			return nil
		})
		assert.True(t, ack.acked)
		assert.Equal(t, job, got)
	})

	t.Run("drops failed jobs without requeue", func(t *testing.T) {
		ack := &fakeAck{}
		c.handle(context.Background(), body, ack, func(context.Context, domain.BulkJob) error {
			return errors.New("provider not configured")
		})
		assert.True(t, ack.nacked)
		assert.False(t, ack.requeued)
	})

	t.Run("drops malformed payloads", func(t *testing.T) {
		ack := &fakeAck{}
		called := false
		c.handle(context.Background(), []byte("{"), ack, func(context.Context, domain.BulkJob) error {
			called = true
			return nil
		})
		assert.False(t, called)
		assert.True(t, ack.nacked)
		assert.False(t, ack.requeued)
	})
}
