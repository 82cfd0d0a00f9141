package delivery

import (
	"context"
	"time"

	"ats-sim/internal/telemetry"
)

// Enqueuer is the producing half of a delivery client.
type Enqueuer interface {
	Enqueue(telemetry.Record) *Ack
}

// SyncWriter adapts a delivery client to sink.TelemetryWriter by waiting for
// each record's acknowledgement.
type SyncWriter struct {
	client  Enqueuer
	timeout time.Duration
}

// NewSyncWriter returns a SyncWriter waiting at most timeout per record.
func NewSyncWriter(client Enqueuer, timeout time.Duration) *SyncWriter {
	return &SyncWriter{client: client, timeout: timeout}
}

// Write publishes r and returns its delivery error, if any.
func (s *SyncWriter) Write(r telemetry.Record) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	out, err := s.client.Enqueue(r).Wait(ctx)
	if err != nil {
		return &Error{Kind: ErrTimeout, Err: err}
	}
	return out.Err
}
