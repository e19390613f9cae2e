/**
 * @description
 * Package notify implements the notification channel consumed by the banking core:
 * a synchronous Channel contract, the transports behind it, and an asynchronous
 * Dispatcher for fire-and-forget messages.
 *
 * @dependencies
 * - pkg/rabbitmq: QueueChannel publishes email requests to the topic exchange.
 * - pkg/mailer: SMTPChannel delivers directly.
 */

package notify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/transfa/banking-service/pkg/rabbitmq"
)

// EmailRequestedRoutingKey is the routing key for queued email deliveries.
const EmailRequestedRoutingKey = "notification.email.requested"

// Message is one email addressed to an account holder.
type Message struct {
	To      string
	Subject string
	Body    string
	HTML    bool
}

// Channel sends a single message and reports whether it was accepted.
type Channel interface {
	Send(ctx context.Context, msg Message) error
}

// ErrNoRecipient is returned for messages without a destination address.
var ErrNoRecipient = errors.New("notification has no recipient address")

// EmailRequested is the event body published to RabbitMQ.
type EmailRequested struct {
	ID          uuid.UUID `json:"id"`
	To          string    `json:"to"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	HTML        bool      `json:"html"`
	RequestedAt time.Time `json:"requested_at"`
}

// QueueChannel hands messages to the email delivery consumer through RabbitMQ.
type QueueChannel struct {
	publisher rabbitmq.Publisher
	exchange  string
}

func NewQueueChannel(publisher rabbitmq.Publisher, exchange string) *QueueChannel {
	return &QueueChannel{publisher: publisher, exchange: exchange}
}

func (c *QueueChannel) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return ErrNoRecipient
	}
	return c.publisher.Publish(ctx, c.exchange, EmailRequestedRoutingKey, EmailRequested{
		ID:          uuid.New(),
		To:          msg.To,
		Subject:     msg.Subject,
		Body:        msg.Body,
		HTML:        msg.HTML,
		RequestedAt: time.Now().UTC(),
	})
}

// Sender is the subset of *mailer.Client the SMTP channel needs.
type Sender interface {
	Send(ctx context.Context, to, subject, body string, html bool) error
}

// SMTPChannel delivers messages synchronously over SMTP.
type SMTPChannel struct {
	sender Sender
}

func NewSMTPChannel(sender Sender) *SMTPChannel {
	return &SMTPChannel{sender: sender}
}

func (c *SMTPChannel) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return ErrNoRecipient
	}
	return c.sender.Send(ctx, msg.To, msg.Subject, msg.Body, msg.HTML)
}

// LogChannel only logs messages. It is used when no transport is configured.
type LogChannel struct {
	logger *slog.Logger
}

func NewLogChannel(logger *slog.Logger) *LogChannel {
	return &LogChannel{logger: logger.With("component", "notify", "transport", "log")}
}

func (c *LogChannel) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return ErrNoRecipient
	}
	c.logger.Info("notification", "to", msg.To, "subject", msg.Subject, "html", msg.HTML)
	return nil
}
