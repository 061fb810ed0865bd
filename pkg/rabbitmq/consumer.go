package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"YoloPipeline/pkg/metrics"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Prefetch is the number of unacknowledged deliveries a consumer may hold.
const Prefetch = 1

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConsuming
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConsuming:
		return "CONSUMING"
	case StateTerminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// Handler processes one delivery. Its error is logged; the delivery is acknowledged either way.
type Handler func(ctx context.Context, d amqp.Delivery) error

var errHandlerPanic = errors.New("handler panic")

type ConsumerOption func(*Consumer)

type Consumer struct {
	url     string
	queue   string
	tag     string
	dial    Dialer
	backoff Backoff
	handler Handler
	log     *logrus.Logger
	metrics *metrics.Metrics
	state   atomic.Int32
}

func WithConsumerDialer(dial Dialer) ConsumerOption {
	return func(c *Consumer) {
		c.dial = dial
	}
}

func WithBackoff(b Backoff) ConsumerOption {
	return func(c *Consumer) {
		c.backoff = b
	}
}

func WithConsumerMetrics(m *metrics.Metrics) ConsumerOption {
	return func(c *Consumer) {
		c.metrics = m
	}
}

func NewConsumer(cfg Config, handler Handler, log *logrus.Logger, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		url:     cfg.URL,
		queue:   cfg.Queue,
		tag:     cfg.ConsumerTag,
		handler: handler,
		log:     log,
	}
	if c.url == "" {
		c.url = GetURL()
	}
	if c.queue == "" {
		c.queue = DefaultQueue
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	c.backoff = cfg.NewBackoff()
	c.dial = DialAMQP(cfg.DialTimeout)

	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Consumer) State() State {
	return State(c.state.Load())
}

func (c *Consumer) setState(s State) {
	c.state.Store(int32(s))
	c.metrics.SetConsumerState(int(s))
}

// Run connects, consumes and reconnects until ctx is cancelled, then returns nil.
// It only returns an error when the backoff strategy gives up.
func (c *Consumer) Run(ctx context.Context) error {
	attempt := 0

	for {
		if ctx.Err() != nil {
			c.setState(StateTerminated)
			return nil
		}

		c.setState(StateConnecting)
		conn, ch, err := c.connect()
		if err == nil {
			attempt = 0
			c.setState(StateConsuming)
			c.log.WithFields(logrus.Fields{
				"queue":    c.queue,
				"prefetch": Prefetch,
			}).Info("Worker started, listening on queue")

			err = c.consume(ctx, conn, ch)
			ch.Close()
			conn.Close()

			if err == nil {
				c.setState(StateTerminated)
				c.log.WithField("queue", c.queue).Info("Worker shutting down")
				return nil
			}
			c.setState(StateDisconnected)
		}

		attempt++
		c.metrics.IncReconnect()
		delay, ok := c.backoff.Next(attempt)
		if !ok {
			c.setState(StateTerminated)
			return fmt.Errorf("%w: giving up after %d attempts: %v", ErrConnection, attempt, err)
		}

		c.log.WithFields(logrus.Fields{
			"queue":   c.queue,
			"attempt": attempt,
			"delay":   delay.String(),
			"error":   err.Error(),
		}).Warn("Broker unavailable, retrying")

		if !sleep(ctx, delay) {
			c.setState(StateTerminated)
			c.log.WithField("queue", c.queue).Info("Worker shutting down")
			return nil
		}
	}
}

func (c *Consumer) connect() (Connection, Channel, error) {
	conn, err := c.dial(c.url)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: dial: %v", ErrConnection, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("%w: open channel: %v", ErrConnection, err)
	}

	if err := declareQueue(ch, c.queue); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, err
	}

	return conn, ch, nil
}

// consume returns nil when ctx is cancelled and an error when the connection is lost.
func (c *Consumer) consume(ctx context.Context, conn Connection, ch Channel) error {
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))

	if err := ch.Qos(Prefetch, 0, false); err != nil {
		return fmt.Errorf("%w: set prefetch: %v", ErrConnection, err)
	}

	deliveries, err := ch.Consume(c.queue, c.tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("%w: consume: %v", ErrConnection, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				select {
				case reason := <-closed:
					if reason != nil {
						return fmt.Errorf("%w: %v", ErrConnectionLost, reason)
					}
				default:
				}
				return ErrConnectionLost
			}
			if err := c.process(ctx, d); err != nil {
				return err
			}
		}
	}
}

// process runs the handler and then acknowledges the delivery, whatever the handler did.
func (c *Consumer) process(ctx context.Context, d amqp.Delivery) error {
	fields := logrus.Fields{
		"queue":        c.queue,
		"delivery_tag": d.DeliveryTag,
		"message_id":   d.MessageId,
		"redelivered":  d.Redelivered,
	}

	outcome := metrics.OutcomeOK
	if err := c.handle(ctx, d); err != nil {
		switch {
		case errors.Is(err, ErrSerialization):
			outcome = metrics.OutcomeDecodeError
		case errors.Is(err, errHandlerPanic):
			outcome = metrics.OutcomePanic
		default:
			outcome = metrics.OutcomeHandlerError
		}
		fields["error"] = err.Error()
		// no dead-letter route: the message is dropped once acked
		c.log.WithFields(fields).Error("Error processing message, acknowledging anyway")
	}

	if err := d.Ack(false); err != nil {
		return fmt.Errorf("%w: ack delivery %d: %v", ErrConnectionLost, d.DeliveryTag, err)
	}

	c.metrics.IncConsumed(outcome)
	c.log.WithFields(fields).Debug("Message acknowledged")
	return nil
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errHandlerPanic, r)
		}
	}()
	return c.handler(ctx, d)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
