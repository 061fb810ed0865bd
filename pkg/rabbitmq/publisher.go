package rabbitmq

import (
	"context"
	"fmt"
	"time"

	"YoloPipeline/pkg/metrics"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

type IPublisher interface {
	Publish(ctx context.Context, payload any, queue string) error
	PublishBestEffort(ctx context.Context, payload any, queue string) bool
}

type PublisherOption func(*Publisher)

// Publisher opens a short-lived connection per message. Nothing is shared between calls.
type Publisher struct {
	url     string
	queue   string
	timeout time.Duration
	dial    Dialer
	log     *logrus.Logger
	metrics *metrics.Metrics
}

func WithPublisherDialer(dial Dialer) PublisherOption {
	return func(p *Publisher) {
		p.dial = dial
	}
}

func WithPublisherMetrics(m *metrics.Metrics) PublisherOption {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func NewPublisher(cfg Config, log *logrus.Logger, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		url:     cfg.URL,
		queue:   cfg.Queue,
		timeout: cfg.PublishTimeout,
		log:     log,
	}
	if p.url == "" {
		p.url = GetURL()
	}
	if p.queue == "" {
		p.queue = DefaultQueue
	}
	if p.timeout <= 0 {
		p.timeout = defaultPublishTimeout
	}

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	p.dial = DialAMQP(dialTimeout)

	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish sends payload as one persistent JSON message to queue (the configured queue when empty).
func (p *Publisher) Publish(ctx context.Context, payload any, queue string) error {
	if queue == "" {
		queue = p.queue
	}

	body, err := Encode(payload)
	if err != nil {
		return err
	}

	conn, err := p.dial(p.url)
	if err != nil {
		return fmt.Errorf("%w: dial: %v", ErrConnection, err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("%w: open channel: %v", ErrConnection, err)
	}
	defer ch.Close()

	if err := declareQueue(ch, queue); err != nil {
		return err
	}

	pubCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = ch.PublishWithContext(pubCtx, "", queue, false, false, amqp.Publishing{
		ContentType:  ContentTypeJSON,
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("%w: publish: %v", ErrConnection, err)
	}

	return nil
}

// PublishBestEffort never fails the caller: errors are logged and dropped.
func (p *Publisher) PublishBestEffort(ctx context.Context, payload any, queue string) bool {
	if queue == "" {
		queue = p.queue
	}

	if err := p.Publish(ctx, payload, queue); err != nil {
		p.metrics.IncPublishFailure()
		p.log.WithFields(logrus.Fields{
			"queue": queue,
			"error": err.Error(),
		}).Warn("Failed to publish message, dropping it")
		return false
	}

	p.metrics.IncPublished()
	p.log.WithFields(logrus.Fields{
		"queue": queue,
	}).Info("Published message to queue")
	return true
}
