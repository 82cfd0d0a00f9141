package publisher

import "sync/atomic"

// Counters holds the publisher's running totals.
type Counters struct {
	generated atomic.Int64
	rejected  atomic.Int64
	published atomic.Int64
	failed    atomic.Int64
}

func NewCounters() *Counters {
	return &Counters{}
}

func (c *Counters) IncGenerated() { c.generated.Add(1) }
func (c *Counters) IncRejected()  { c.rejected.Add(1) }
func (c *Counters) IncPublished() { c.published.Add(1) }
func (c *Counters) IncFailed()    { c.failed.Add(1) }

func (c *Counters) GetGenerated() int64 { return c.generated.Load() }
func (c *Counters) GetRejected() int64  { return c.rejected.Load() }
func (c *Counters) GetPublished() int64 { return c.published.Load() }
func (c *Counters) GetFailed() int64    { return c.failed.Load() }
