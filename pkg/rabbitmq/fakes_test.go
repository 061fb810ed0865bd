package rabbitmq

import (
	"context"
	"errors"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

type declareCall struct {
	name    string
	durable bool
}

type fakeChannel struct {
	mu sync.Mutex

	declared    []declareCall
	qos         []int
	published   []amqp.Publishing
	publishKeys []string
	closed      bool

	deliveries chan amqp.Delivery
	declareErr error
	consumeErr error
	publishErr error
}

func newFakeChannel(buffer int) *fakeChannel {
	return &fakeChannel{deliveries: make(chan amqp.Delivery, buffer)}
}

func (c *fakeChannel) QueueDeclare(name string, durable, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.declareErr != nil {
		return amqp.Queue{}, c.declareErr
	}
	c.declared = append(c.declared, declareCall{name: name, durable: durable})
	return amqp.Queue{Name: name}, nil
}

func (c *fakeChannel) Qos(prefetchCount, _ int, _ bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.qos = append(c.qos, prefetchCount)
	return nil
}

func (c *fakeChannel) Consume(_, _ string, autoAck, _, _, _ bool, _ amqp.Table) (<-chan amqp.Delivery, error) {
	if c.consumeErr != nil {
		return nil, c.consumeErr
	}
	if autoAck {
		return nil, errors.New("fake channel: autoAck must be off")
	}
	return c.deliveries, nil
}

func (c *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return c.publishErr
	}
	c.published = append(c.published, msg)
	c.publishKeys = append(c.publishKeys, key)
	return nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeConnection struct {
	mu       sync.Mutex
	ch       *fakeChannel
	channels int
	closed   bool
}

func (c *fakeConnection) Channel() (Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels++
	return c.ch, nil
}

func (c *fakeConnection) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	return receiver
}

func (c *fakeConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConnection) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeDialer refuses the first failures dials, then hands out conns in order (the last one repeats).
type fakeDialer struct {
	mu       sync.Mutex
	failures int
	conns    []*fakeConnection
	dials    int
}

func (d *fakeDialer) dial(string) (Connection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.dials <= d.failures {
		return nil, errors.New("connection refused")
	}
	idx := d.dials - d.failures - 1
	if idx >= len(d.conns) {
		idx = len(d.conns) - 1
	}
	return d.conns[idx], nil
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// fakeAcker records acknowledgements per delivery tag.
type fakeAcker struct {
	mu     sync.Mutex
	acks   map[uint64]int
	order  []uint64
	onAck  func(tag uint64)
	ackErr error
}

func newFakeAcker() *fakeAcker {
	return &fakeAcker{acks: map[uint64]int{}}
}

func (a *fakeAcker) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ackErr != nil {
		return a.ackErr
	}
	if a.onAck != nil {
		a.onAck(tag)
	}
	a.acks[tag]++
	a.order = append(a.order, tag)
	return nil
}

func (a *fakeAcker) Nack(uint64, bool, bool) error {
	return errors.New("fake acker: nack not expected")
}

func (a *fakeAcker) Reject(uint64, bool) error {
	return errors.New("fake acker: reject not expected")
}

func (a *fakeAcker) ackCount(tag uint64) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.acks[tag]
}

func (a *fakeAcker) total() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.order)
}

func delivery(acker amqp.Acknowledger, tag uint64, body string) amqp.Delivery {
	return amqp.Delivery{
		Acknowledger: acker,
		DeliveryTag:  tag,
		ContentType:  ContentTypeJSON,
		Body:         []byte(body),
	}
}
