package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const defaultHandlerTimeout = 30 * time.Second

// Delivery is the part of an AMQP delivery a handler gets to see.
type Delivery struct {
	RoutingKey  string
	MessageID   string
	Redelivered bool
	Body        []byte
}

// Handler processes one delivery. A nil error acks it, an error marked with
// Permanent acks and drops it, and any other error requeues it.
type Handler func(ctx context.Context, d Delivery) error

var errPermanent = errors.New("permanent failure")

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return fmt.Errorf("%w: %w", errPermanent, err)
}

func IsPermanent(err error) bool {
	return errors.Is(err, errPermanent)
}

// JSON decodes each body into T before handing it to fn. Bodies that do not
// decode are dropped.
func JSON[T any](fn func(ctx context.Context, event T) error) Handler {
	return func(ctx context.Context, d Delivery) error {
		var event T
		if err := json.Unmarshal(d.Body, &event); err != nil {
			return Permanent(fmt.Errorf("decode %s: %w", d.RoutingKey, err))
		}
		return fn(ctx, event)
	}
}

type outcome int

const (
	outcomeAck outcome = iota
	outcomeDrop
	outcomeRequeue
)

func outcomeFor(err error) outcome {
	switch {
	case err == nil:
		return outcomeAck
	case IsPermanent(err):
		return outcomeDrop
	default:
		return outcomeRequeue
	}
}

type Consumer struct {
	conn    *amqp.Connection
	ch      *amqp.Channel
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

func sanitizeURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	if !strings.HasSuffix(clean, "/") {
		clean += "/"
	}
	parsed, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
		return "", fmt.Errorf("invalid AMQP scheme: %s", parsed.Scheme)
	}
	return clean, nil
}

func NewConsumer(amqpURL string, logger *slog.Logger) (*Consumer, error) {
	cleanURL, err := sanitizeURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp.Dial(cleanURL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	// One unacked delivery at a time; SMTP delivery is slow and serial.
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &Consumer{
		conn:    conn,
		ch:      ch,
		timeout: defaultHandlerTimeout,
		logger:  logger.With("component", "rabbitmq_consumer"),
	}, nil
}

// ConsumeWithBindings declares queueName, binds it to each routing key on exchange
// and dispatches deliveries to the matching handler in a background goroutine.
func (c *Consumer) ConsumeWithBindings(exchange, queueName string, bindings map[string]Handler) error {
	if len(bindings) == 0 {
		return fmt.Errorf("no bindings provided")
	}

	if err := c.ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}

	q, err := c.ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		return err
	}

	handlers := make(map[string]Handler, len(bindings))
	for routingKey, handler := range bindings {
		if handler == nil {
			continue
		}
		handlers[routingKey] = handler
		if err := c.ch.QueueBind(q.Name, routingKey, exchange, false, nil); err != nil {
			return err
		}
	}

	msgs, err := c.ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for d := range msgs {
			c.dispatch(handlers, d)
		}
	}()
	return nil
}

func (c *Consumer) dispatch(handlers map[string]Handler, d amqp.Delivery) {
	log := c.logger.With("routing_key", d.RoutingKey, "message_id", d.MessageId)

	handler, ok := handlers[d.RoutingKey]
	if !ok {
		log.Warn("no handler for routing key; dropping")
		d.Ack(false)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	err := handler(ctx, Delivery{
		RoutingKey:  d.RoutingKey,
		MessageID:   d.MessageId,
		Redelivered: d.Redelivered,
		Body:        d.Body,
	})
	cancel()

	switch outcomeFor(err) {
	case outcomeAck:
		d.Ack(false)
	case outcomeDrop:
		log.Error("delivery rejected; dropping", "err", err)
		d.Ack(false)
	default:
		log.Warn("delivery failed; re-queuing", "redelivered", d.Redelivered, "err", err)
		d.Nack(false, true)
	}
}

// Close stops consuming, waits for the in-flight delivery and then closes the connection.
func (c *Consumer) Close() {
	if c.ch != nil {
		c.ch.Close()
	}
	c.wg.Wait()
	if c.conn != nil {
		c.conn.Close()
	}
}
