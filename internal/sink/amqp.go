package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/keepmind9/villabot/internal/logger"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// maxDialDelay caps the backoff between broker dial attempts.
const maxDialDelay = 60 * time.Second

// channel is the subset of *amqp.Channel used for publishing.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes envelopes to a topic exchange.
type AMQPPublisher struct {
	exchange    string
	openChannel func() (channel, error)
	closeConn   func() error
}

// DialOptions configures DialWithRetry.
type DialOptions struct {
	URL      string
	Exchange string
	Attempts int
	Delay    time.Duration
}

// DialWithRetry connects to the broker with exponential backoff and
// declares the exchange. It gives up after Attempts tries or when ctx is
// done.
func DialWithRetry(ctx context.Context, opts DialOptions) (*AMQPPublisher, error) {
	if opts.Attempts <= 0 {
		opts.Attempts = 1
	}
	if opts.Delay <= 0 {
		opts.Delay = time.Second
	}

	var lastErr error
	for i := 1; i <= opts.Attempts; i++ {
		conn, err := amqp.Dial(opts.URL)
		if err == nil {
			p, err := newAMQPPublisher(conn, opts.Exchange)
			if err != nil {
				conn.Close()
				return nil, err
			}
			logger.WithFields(logrus.Fields{
				"exchange": opts.Exchange,
				"attempt":  i,
			}).Info("amqp-connected")
			return p, nil
		}
		lastErr = err

		if i == opts.Attempts {
			break
		}
		sleep := opts.Delay << (i - 1)
		if sleep > maxDialDelay || sleep <= 0 {
			sleep = maxDialDelay
		}
		logger.WithFields(logrus.Fields{
			"attempt": i,
			"sleep":   sleep,
			"error":   err,
		}).Warn("amqp-dial-failed")

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("amqp dial cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return nil, fmt.Errorf("failed to connect to amqp after %d attempts: %w", opts.Attempts, lastErr)
}

func newAMQPPublisher(conn *amqp.Connection, exchange string) (*AMQPPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open amqp channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	return &AMQPPublisher{
		exchange: exchange,
		openChannel: func() (channel, error) {
			return conn.Channel()
		},
		closeConn: conn.Close,
	}, nil
}

// Publish sends env as a persistent JSON message.
func (p *AMQPPublisher) Publish(ctx context.Context, key string, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}

	ch, err := p.openChannel()
	if err != nil {
		return fmt.Errorf("failed to open amqp channel: %w", err)
	}
	defer ch.Close()

	err = ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     env.Meta.ID,
		CorrelationId: env.Meta.SessionID,
		Type:          env.Meta.Event,
		AppId:         env.Meta.BotID,
		Timestamp:     env.Meta.OccurredAt,
		Body:          body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", key, err)
	}

	logger.WithFields(logrus.Fields{
		"exchange":    p.exchange,
		"routing_key": key,
		"message_id":  env.Meta.ID,
	}).Debug("event-published")
	return nil
}

// Close closes the broker connection.
func (p *AMQPPublisher) Close() error {
	if p.closeConn == nil {
		return nil
	}
	return p.closeConn()
}
