// Package broker feeds OutboundItems published on RabbitMQ into the
// in-process outbound queue.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/unclebandit/wa-dispatch/internal/model"
	"github.com/unclebandit/wa-dispatch/internal/observability"
)

type OutboundSink interface {
	Enqueue(ctx context.Context, item model.OutboundItem) error
}

// Consumer acks a delivery only after its item is in the outbound queue.
type Consumer struct {
	QueueName string
	Sink      OutboundSink

	conn     *amqp.Connection
	ch       *amqp.Channel
	validate *validator.Validate
}

func NewConsumer(queueName string, sink OutboundSink) *Consumer {
	return &Consumer{QueueName: queueName, Sink: sink, validate: validator.New()}
}

// Dial connects and declares the durable queue.
func (c *Consumer) Dial(url string, prefetch int) error {
	conn, err := amqp.Dial(url)
	if err != nil {
		return fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		c.QueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare queue: %w", err)
	}
	if prefetch > 0 {
		if err := ch.Qos(prefetch, 0, false); err != nil {
			ch.Close()
			conn.Close()
			return fmt.Errorf("set qos: %w", err)
		}
	}

	c.conn, c.ch = conn, ch
	return nil
}

// Run consumes until ctx is cancelled or the channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	if c.ch == nil {
		return errors.New("consumer not connected")
	}
	msgs, err := c.ch.Consume(
		c.QueueName,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}

	observability.Log.Info("amqp intake running", zap.String("queue", c.QueueName))
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("amqp delivery channel closed")
			}
			c.Handle(ctx, d)
		}
	}
}

// Handle moves one delivery into the outbound queue. Malformed items are
// rejected without requeue; items that could not be enqueued go back to the
// broker. Once acked, an item that is still queued at shutdown is written to
// the send log as interrupted by the send pipeline.
func (c *Consumer) Handle(ctx context.Context, d amqp.Delivery) {
	log := observability.Log.With(zap.Uint64("delivery_tag", d.DeliveryTag))

	var item model.OutboundItem
	if err := json.Unmarshal(d.Body, &item); err != nil {
		log.Warn("invalid outbound item", zap.Error(err))
		d.Nack(false, false)
		return
	}
	if item.IdempotencyKey == "" {
		item.IdempotencyKey = model.IdempotencyKeyFor(item.CampaignID, item.RecipientID)
	}
	if item.HeaderKind == "" {
		item.HeaderKind = model.HeaderNone
	}
	if err := c.validate.Struct(item); err != nil {
		log.Warn("outbound item failed validation", zap.String("idempotency_key", item.IdempotencyKey), zap.Error(err))
		d.Nack(false, false)
		return
	}

	if err := c.Sink.Enqueue(ctx, item); err != nil {
		log.Warn("enqueue failed, returning delivery to broker", zap.String("idempotency_key", item.IdempotencyKey), zap.Error(err))
		d.Nack(false, true)
		return
	}
	d.Ack(false)
}

func (c *Consumer) Close() {
	if c.ch != nil {
		c.ch.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
