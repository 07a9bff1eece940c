package events

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	pkgevents "github.com/greenrow/lot-auction/pkg/events"
	"github.com/greenrow/lot-auction/services/auction-service/internal/domain/bids"
)

// OutbidQueue is the durable queue the notifier worker consumes.
const OutbidQueue = "outbid_notifications"

// OutbidHandler delivers a decoded outbid event.
type OutbidHandler interface {
	HandleOutbid(ctx context.Context, event *bids.OutbidEvent) error
}

// OutbidConsumer consumes bid.outbid events and hands them to the notifier.
type OutbidConsumer struct {
	conn     *amqp.Connection
	exchange string
	prefetch int
	handler  OutbidHandler
	logger   *slog.Logger
}

// NewOutbidConsumer creates a new outbid consumer
func NewOutbidConsumer(conn *amqp.Connection, exchange string, prefetch int, handler OutbidHandler, logger *slog.Logger) *OutbidConsumer {
	return &OutbidConsumer{
		conn:     conn,
		exchange: exchange,
		prefetch: prefetch,
		handler:  handler,
		logger:   logger,
	}
}

// Run starts the consumer loop. It returns nil when ctx is cancelled.
func (c *OutbidConsumer) Run(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if setupErr := c.setupRabbitMQ(ch); setupErr != nil {
		return fmt.Errorf("failed to setup rabbitmq: %w", setupErr)
	}

	msgs, err := ch.Consume(
		OutbidQueue, // queue
		"",          // consumer tag
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("Waiting for outbid events...", "queue", OutbidQueue)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("channel closed")
			}
			c.handleDelivery(ctx, d)
		}
	}
}

// handleDelivery settles exactly one delivery.
//
// A payload that cannot be decoded is dropped. A handler failure is requeued
// on first delivery and dropped on redelivery, so a poison event cannot spin.
func (c *OutbidConsumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	event, err := bids.UnmarshalOutbidEvent(d.Body)
	if err != nil {
		c.logger.Error("Failed to unmarshal outbid event", "message_id", d.MessageId, "error", err)
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.logger.Error("Failed to Nack message", "error", nackErr)
		}
		return
	}

	if err := c.handler.HandleOutbid(ctx, event); err != nil {
		requeue := !d.Redelivered
		c.logger.Error("Failed to process outbid event",
			"event_id", event.EventID,
			"requeue", requeue,
			"error", err,
		)
		if nackErr := d.Nack(false, requeue); nackErr != nil {
			c.logger.Error("Failed to Nack message", "requeue", requeue, "error", nackErr)
		}
		return
	}

	if ackErr := d.Ack(false); ackErr != nil {
		c.logger.Error("Failed to Ack message", "error", ackErr)
	}
}

func (c *OutbidConsumer) setupRabbitMQ(ch *amqp.Channel) error {
	if err := pkgevents.DeclareExchange(ch, c.exchange); err != nil {
		return err
	}

	if c.prefetch > 0 {
		if err := ch.Qos(c.prefetch, 0, false); err != nil {
			return fmt.Errorf("failed to set qos: %w", err)
		}
	}

	q, err := ch.QueueDeclare(
		OutbidQueue, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return err
	}

	return ch.QueueBind(
		q.Name,               // queue name
		bids.EventTypeOutbid, // routing key
		c.exchange,           // exchange
		false,
		nil,
	)
}
