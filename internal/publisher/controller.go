// Package publisher runs the generate, validate, publish and confirm loop and
// owns the process lifecycle around it.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"ats-sim/internal/delivery"
	"ats-sim/internal/logging"
	"ats-sim/internal/sink"
	"ats-sim/internal/telemetry"
)

// Generator produces one record per call.
type Generator interface {
	Generate() telemetry.Record
}

// Validator accepts or rejects a record.
type Validator interface {
	Validate(telemetry.Record) error
}

// DeliveryClient hands records to the broker.
type DeliveryClient interface {
	Enqueue(telemetry.Record) *delivery.Ack
	Flush(ctx context.Context) error
}

// Deps are the collaborators a Controller drives. Mirror is optional and
// receives every acknowledged record.
type Deps struct {
	Generator Generator
	Validator Validator
	Client    DeliveryClient
	Mirror    sink.TelemetryWriter
}

// Options tune the publish loop. Zero fields take the DefaultOptions value.
type Options struct {
	Interval               time.Duration
	AckTimeout             time.Duration
	FailureBackoff         time.Duration
	DrainTimeout           time.Duration
	MaxConsecutiveFailures int
}

// DefaultOptions returns the production timings.
func DefaultOptions() Options {
	return Options{
		Interval:               30 * time.Second,
		AckTimeout:             10 * time.Second,
		FailureBackoff:         5 * time.Second,
		DrainTimeout:           30 * time.Second,
		MaxConsecutiveFailures: 5,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Interval <= 0 {
		o.Interval = d.Interval
	}
	if o.AckTimeout <= 0 {
		o.AckTimeout = d.AckTimeout
	}
	if o.FailureBackoff <= 0 {
		o.FailureBackoff = d.FailureBackoff
	}
	if o.DrainTimeout <= 0 {
		o.DrainTimeout = d.DrainTimeout
	}
	if o.MaxConsecutiveFailures <= 0 {
		o.MaxConsecutiveFailures = d.MaxConsecutiveFailures
	}
	return o
}

type inflight struct {
	rec telemetry.Record
	ack *delivery.Ack
}

// Controller is the single owner of the publisher state and the
// consecutive-failure counter.
type Controller struct {
	deps     Deps
	opts     Options
	log      atomic.Pointer[slog.Logger]
	counters *Counters

	state    atomic.Int32
	stop     chan struct{}
	stopOnce sync.Once

	mu            sync.Mutex
	failures      int
	lastErr       error
	lastPublished time.Time
	pending       *inflight
}

// New returns a Controller in the RUNNING state.
func New(deps Deps, opts Options, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		deps:     deps,
		opts:     opts.withDefaults(),
		counters: NewCounters(),
		stop:     make(chan struct{}),
	}
	c.log.Store(logger)
	c.state.Store(int32(StateRunning))
	return c
}

func (c *Controller) logger() *slog.Logger { return c.log.Load() }

// State returns the current lifecycle state.
func (c *Controller) State() State { return State(c.state.Load()) }

// Shutdown requests a graceful stop. It only flips the state and wakes the
// loop; Run performs the drain. Safe to call from any goroutine, repeatedly.
func (c *Controller) Shutdown() {
	c.transition("shutdown requested")
}

func (c *Controller) transition(reason string) {
	if c.state.CompareAndSwap(int32(StateRunning), int32(StateShuttingDown)) {
		c.logger().Info("publisher state changed", "from", StateRunning, "to", StateShuttingDown, "reason", reason)
	}
	c.stopOnce.Do(func() { close(c.stop) })
}

// Run executes ticks until ctx is cancelled, Shutdown is called or the
// failure limit is reached, then drains the delivery client. It returns nil
// on a requested shutdown and an error wrapping ErrTooManyFailures when
// delivery failures forced it. A logger stored in ctx replaces the one given
// to New.
func (c *Controller) Run(ctx context.Context) error {
	if l, ok := logging.Lookup(ctx); ok {
		c.log.Store(l)
	}
	c.logger().Info("publisher starting",
		"interval", c.opts.Interval,
		"ack_timeout", c.opts.AckTimeout,
		"max_consecutive_failures", c.opts.MaxConsecutiveFailures)

	go func() {
		select {
		case <-ctx.Done():
			c.transition("context cancelled")
		case <-c.stop:
		}
	}()

	var runErr error
	for c.State() == StateRunning {
		wait, fatal := c.handle(c.tick())
		if fatal != nil {
			runErr = fatal
			c.transition("consecutive failure limit reached")
			break
		}
		c.sleep(wait)
	}

	c.drain()
	c.logger().Info("publisher stopped",
		"published", c.counters.GetPublished(),
		"rejected", c.counters.GetRejected(),
		"failed", c.counters.GetFailed())
	return runErr
}

// tick runs one generate, validate, publish and confirm cycle.
func (c *Controller) tick() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &UnexpectedError{Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	rec := c.deps.Generator.Generate()
	c.counters.IncGenerated()
	if err := c.deps.Validator.Validate(rec); err != nil {
		return err
	}

	ack := c.deps.Client.Enqueue(rec)
	timer := time.NewTimer(c.opts.AckTimeout)
	defer timer.Stop()

	select {
	case <-ack.Done():
		out := ack.Outcome()
		if !out.OK() {
			return out.Err
		}
		c.published(rec, out)
		return nil
	case <-timer.C:
		return &delivery.Error{
			Kind: delivery.ErrTimeout,
			Err:  fmt.Errorf("no acknowledgement for %s within %s", rec.EntityID, c.opts.AckTimeout),
		}
	case <-c.stop:
		c.mu.Lock()
		c.pending = &inflight{rec: rec, ack: ack}
		c.mu.Unlock()
		return errInterrupted
	}
}

// handle applies the failure policy to a tick result. It returns how long to
// wait before the next tick, or a non-nil error when the loop must stop.
func (c *Controller) handle(err error) (time.Duration, error) {
	var verr *telemetry.ValidationError
	switch {
	case err == nil:
		return c.opts.Interval, nil

	case errors.Is(err, errInterrupted):
		return 0, nil

	case errors.As(err, &verr):
		c.counters.IncRejected()
		c.logger().Info("tick skipped", "field", verr.Field, "reason", verr.Reason)
		return c.opts.Interval, nil

	case errors.Is(err, delivery.ErrBrokerUnavailable),
		errors.Is(err, delivery.ErrTimeout),
		errors.Is(err, delivery.ErrRejected):
		n := c.fail(err)
		attrs := []any{"consecutive_failures", n, "err", err}
		var derr *delivery.Error
		if errors.As(err, &derr) {
			attrs = append(attrs, "kind", derr.Kind, "attempts", derr.Attempts)
		}
		c.logger().Error("delivery failed", attrs...)
		if n >= c.opts.MaxConsecutiveFailures {
			return 0, fmt.Errorf("%w (%d): %w", ErrTooManyFailures, n, err)
		}
		return c.opts.FailureBackoff, nil

	default:
		n := c.fail(err)
		c.logger().Error("unexpected tick failure", "consecutive_failures", n, "err", err)
		return c.opts.FailureBackoff, nil
	}
}

// fail records a failed tick and returns the bounded counter value.
func (c *Controller) fail(err error) int {
	c.counters.IncFailed()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failures < c.opts.MaxConsecutiveFailures {
		c.failures++
	}
	c.lastErr = err
	return c.failures
}

func (c *Controller) published(rec telemetry.Record, out delivery.Outcome) {
	c.counters.IncPublished()
	c.mu.Lock()
	c.failures = 0
	c.lastPublished = rec.Timestamp
	c.mu.Unlock()

	c.logger().Info("record published",
		"entity_id", rec.EntityID,
		"passengers", rec.PassengerCount,
		"power_kw", rec.PowerDrawKW,
		"speed_kmh", rec.SpeedKmh,
		"overcrowding", rec.Alerts.Overcrowding,
		"high_power_draw", rec.Alerts.HighPowerDraw,
		"topic", out.Topic,
		"partition", out.Partition,
		"offset", out.Offset)

	if c.deps.Mirror != nil {
		if err := c.deps.Mirror.Write(rec); err != nil {
			c.logger().Warn("mirror write failed", "entity_id", rec.EntityID, "err", err)
		}
	}
}

func (c *Controller) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-c.stop:
	}
}

// drain flushes the delivery client, bounded by DrainTimeout, and reports
// the outcome of a record still in flight when shutdown began.
func (c *Controller) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.DrainTimeout)
	defer cancel()

	c.logger().Info("draining delivery buffer", "timeout", c.opts.DrainTimeout)
	if err := c.deps.Client.Flush(ctx); err != nil {
		c.logger().Warn("drain incomplete", "err", err)
	}

	c.mu.Lock()
	p := c.pending
	c.pending = nil
	c.mu.Unlock()
	if p == nil {
		return
	}
	out, err := p.ack.Wait(ctx)
	switch {
	case err != nil:
		c.logger().Warn("in-flight record unacknowledged at exit", "entity_id", p.rec.EntityID, "err", err)
	case out.OK():
		c.published(p.rec, out)
	default:
		c.fail(out.Err)
		c.logger().Error("in-flight record failed during drain", "entity_id", p.rec.EntityID, "err", out.Err)
	}
}

// Status returns a snapshot of the publisher.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		State:               c.State().String(),
		ConsecutiveFailures: c.failures,
		Generated:           c.counters.GetGenerated(),
		Rejected:            c.counters.GetRejected(),
		Published:           c.counters.GetPublished(),
		Failed:              c.counters.GetFailed(),
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	if !c.lastPublished.IsZero() {
		t := c.lastPublished
		st.LastPublished = &t
	}
	return st
}
