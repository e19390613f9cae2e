package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/transfa/banking-service/pkg/rabbitmq"
)

// DeliveryConsumer turns queued EmailRequested events into real deliveries.
type DeliveryConsumer struct {
	channel Channel
	logger  *slog.Logger
}

func NewDeliveryConsumer(channel Channel, logger *slog.Logger) *DeliveryConsumer {
	return &DeliveryConsumer{
		channel: channel,
		logger:  logger.With("component", "email_delivery_consumer"),
	}
}

// Handler binds Deliver to the queue, decoding the event at the edge.
func (c *DeliveryConsumer) Handler() rabbitmq.Handler {
	return rabbitmq.JSON(c.Deliver)
}

// Deliver sends one queued email. Events without a recipient are permanent
// failures; transport errors are returned as-is so the message is retried.
func (c *DeliveryConsumer) Deliver(ctx context.Context, event EmailRequested) error {
	err := c.channel.Send(ctx, Message{To: event.To, Subject: event.Subject, Body: event.Body, HTML: event.HTML})
	if errors.Is(err, ErrNoRecipient) {
		return rabbitmq.Permanent(fmt.Errorf("email event %s: %w", event.ID, err))
	}
	if err != nil {
		return fmt.Errorf("email event %s: %w", event.ID, err)
	}
	c.logger.Info("email delivered", "event_id", event.ID, "subject", event.Subject)
	return nil
}
