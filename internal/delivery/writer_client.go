package delivery

import (
	"context"
	"errors"
	"sync"

	"ats-sim/internal/sink"
	"ats-sim/internal/telemetry"
)

var errClientClosed = errors.New("client closed")

// WriterClient delivers records to a local sink.TelemetryWriter instead of a
// broker. Records are written in enqueue order on a background goroutine and
// acknowledged on partition 0 with increasing offsets.
type WriterClient struct {
	w       sink.TelemetryWriter
	name    string
	opts    options
	wake    chan struct{}
	quit    chan struct{}
	stopped chan struct{}

	mu       sync.Mutex
	queue    []pending
	inflight int
	idle     []chan struct{}
	closed   bool
	offset   int64
}

type pending struct {
	rec telemetry.Record
	ack *Ack
}

// NewWriterClient starts a client writing to w. name is reported as the topic.
func NewWriterClient(w sink.TelemetryWriter, name string, opts ...ClientOption) *WriterClient {
	c := &WriterClient{
		w:       w,
		name:    name,
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(&c.opts)
	}
	go c.run()
	return c
}

// Enqueue queues rec for writing.
func (c *WriterClient) Enqueue(rec telemetry.Record) *Ack {
	ack := NewAck()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.opts.settle(ack, Outcome{
			EntityID: rec.EntityID,
			Topic:    c.name,
			Err:      &Error{Kind: ErrBrokerUnavailable, Err: errClientClosed},
		})
		return ack
	}
	c.queue = append(c.queue, pending{rec: rec, ack: ack})
	c.inflight++
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return ack
}

func (c *WriterClient) run() {
	defer close(c.stopped)
	for {
		select {
		case <-c.wake:
			c.process()
		case <-c.quit:
			c.process()
			return
		}
	}
}

func (c *WriterClient) process() {
	c.mu.Lock()
	batch := c.queue
	c.queue = nil
	c.mu.Unlock()

	for _, p := range batch {
		out := Outcome{EntityID: p.rec.EntityID, Topic: c.name, Attempts: 1}
		if err := c.w.Write(p.rec); err != nil {
			out.Err = &Error{Kind: ErrBrokerUnavailable, Attempts: 1, Err: err}
		} else {
			c.mu.Lock()
			out.Offset = c.offset
			c.offset++
			c.mu.Unlock()
		}
		c.opts.settle(p.ack, out)
		c.done()
	}
}

func (c *WriterClient) done() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight--
	if c.inflight > 0 {
		return
	}
	for _, ch := range c.idle {
		close(ch)
	}
	c.idle = nil
}

// Flush waits until every queued record is written or ctx is done.
func (c *WriterClient) Flush(ctx context.Context) error {
	c.mu.Lock()
	if c.inflight == 0 {
		c.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	c.idle = append(c.idle, ch)
	c.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close writes anything still queued and stops the client.
func (c *WriterClient) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	close(c.quit)
	<-c.stopped
}
