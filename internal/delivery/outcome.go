// Package delivery hands telemetry records to the broker and reports, once
// per record, whether the broker accepted them.
package delivery

import (
	"context"
	"sync"
)

// Outcome is the result of one publish attempt.
type Outcome struct {
	EntityID  string
	Topic     string
	Partition int32
	Offset    int64
	Attempts  int
	Err       error
}

// OK reports whether the broker acknowledged the record.
func (o Outcome) OK() bool { return o.Err == nil }

// Ack is a single-use handle resolved when the broker settles a record.
type Ack struct {
	once    sync.Once
	done    chan struct{}
	outcome Outcome
}

// NewAck returns an unresolved Ack.
func NewAck() *Ack {
	return &Ack{done: make(chan struct{})}
}

// Resolve settles the Ack. Only the first call has an effect; it reports
// whether this call was the one that settled it.
func (a *Ack) Resolve(o Outcome) bool {
	resolved := false
	a.once.Do(func() {
		a.outcome = o
		close(a.done)
		resolved = true
	})
	return resolved
}

// Done is closed once the outcome is known.
func (a *Ack) Done() <-chan struct{} { return a.done }

// Outcome returns the settled outcome. It must only be called after Done is closed.
func (a *Ack) Outcome() Outcome { return a.outcome }

// Wait blocks until the Ack is resolved or ctx is done.
func (a *Ack) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-a.done:
		return a.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

type options struct {
	onDelivery func(Outcome)
}

// ClientOption configures a delivery client.
type ClientOption func(*options)

// OnDelivery registers fn to be called exactly once per record with its
// outcome. fn runs on the client's internal goroutine and must not block.
func OnDelivery(fn func(Outcome)) ClientOption {
	return func(o *options) { o.onDelivery = fn }
}

func (o options) settle(ack *Ack, out Outcome) {
	if ack.Resolve(out) && o.onDelivery != nil {
		o.onDelivery(out)
	}
}
