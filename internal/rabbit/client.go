package rabbit

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/wb-go/wbf/zlog"
)

// ErrRequeue marks a delivery the handler did not get to process. The message
// goes back to the queue instead of being discarded.
var ErrRequeue = errors.New("message returned to queue")

// Client owns one connection and channel bound to the notification queue.
// Messages are routed by queue name through a durable direct exchange.
type Client struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	queue    string
	tag      string
}

func NewRabbit(url, exchange, queue string) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to connect to RabbitMQ")
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		zlog.Logger.Error().Err(err).Msg("failed to open RabbitMQ channel")
		return nil, err
	}

	client := &Client{conn: conn, channel: ch, exchange: exchange, queue: queue, tag: "portal-" + queue}
	if err := client.declareTopology(); err != nil {
		client.Close()
		zlog.Logger.Error().Err(err).Msg("failed to declare notification topology")
		return nil, err
	}

	zlog.Logger.Info().Msgf("RabbitMQ initialized (exchange=%s, queue=%s)", exchange, queue)
	return client, nil
}

func (c *Client) declareTopology() error {
	const durable, autoDelete, internal, exclusive, noWait = true, false, false, false, false

	if err := c.channel.ExchangeDeclare(c.exchange, amqp.ExchangeDirect, durable, autoDelete, internal, noWait, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", c.exchange, err)
	}
	if _, err := c.channel.QueueDeclare(c.queue, durable, autoDelete, exclusive, noWait, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", c.queue, err)
	}
	if err := c.channel.QueueBind(c.queue, c.queue, c.exchange, noWait, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", c.queue, err)
	}
	return nil
}

func (c *Client) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	zlog.Logger.Info().Msg("RabbitMQ connection closed")
}

// Publish enqueues one persistent notification.
func (c *Client) Publish(ctx context.Context, message []byte) error {
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         message,
	}
	if err := c.channel.PublishWithContext(ctx, c.exchange, c.queue, false, false, msg); err != nil {
		zlog.Logger.Error().Err(err).Str("queue", c.queue).Msg("failed to publish notification")
		return err
	}

	zlog.Logger.Debug().Str("queue", c.queue).Int("bytes", len(message)).Msg("notification queued")
	return nil
}

// Consume starts delivering queued messages to handler in a background
// goroutine until the consumer is cancelled or the channel closes. Only one
// unacknowledged message is held at a time. Every delivery is attempted once:
// a handler error discards the message, unless it wraps ErrRequeue.
func (c *Client) Consume(handler func([]byte) error) error {
	if err := c.channel.Qos(1, 0, false); err != nil {
		zlog.Logger.Error().Err(err).Str("queue", c.queue).Msg("failed to set prefetch")
		return err
	}

	msgs, err := c.channel.Consume(c.queue, c.tag, false, false, false, false, nil)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("queue", c.queue).Msg("failed to start consuming notifications")
		return err
	}

	go func() {
		for d := range msgs {
			settle(d, handler(d.Body))
		}
	}()

	zlog.Logger.Info().Msgf("Started consuming from queue %s", c.queue)
	return nil
}

// StopConsuming asks the broker to stop pushing deliveries. Messages that were
// not yet acknowledged stay in the queue.
func (c *Client) StopConsuming() error {
	if err := c.channel.Cancel(c.tag, false); err != nil {
		return fmt.Errorf("cancel consumer %s: %w", c.tag, err)
	}
	zlog.Logger.Info().Str("queue", c.queue).Msg("stopped consuming notifications")
	return nil
}

func settle(d amqp.Delivery, err error) {
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, ErrRequeue):
		zlog.Logger.Info().Err(err).Msg("notification requeued")
		_ = d.Nack(false, true)
	default:
		zlog.Logger.Warn().Err(err).Msg("notification discarded")
		_ = d.Nack(false, false)
	}
}
