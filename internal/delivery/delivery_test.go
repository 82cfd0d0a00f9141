package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"ats-sim/internal/telemetry"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func testRecords(n int) []telemetry.Record {
	gen := telemetry.NewGenerator(fixedClock{time.Date(2024, time.January, 9, 8, 0, 0, 0, time.UTC)}, telemetry.NewRand(3))
	rows := make([]telemetry.Record, n)
	for i := range rows {
		rows[i] = gen.Generate()
	}
	return rows
}

func TestAckResolvesOnce(t *testing.T) {
	ack := NewAck()
	select {
	case <-ack.Done():
		t.Fatalf("ack resolved before Resolve")
	default:
	}
	if !ack.Resolve(Outcome{Offset: 1}) {
		t.Fatalf("first Resolve returned false")
	}
	if ack.Resolve(Outcome{Offset: 2}) {
		t.Fatalf("second Resolve returned true")
	}
	out, err := ack.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if out.Offset != 1 || !out.OK() {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestAckWaitTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := NewAck().Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want error
	}{
		{nil, nil},
		{kgo.ErrRecordTimeout, ErrTimeout},
		{context.DeadlineExceeded, ErrTimeout},
		{kerr.MessageTooLarge, ErrRejected},
		{fmt.Errorf("produce: %w", kerr.TopicAuthorizationFailed), ErrRejected},
		{kgo.ErrRecordRetries, ErrBrokerUnavailable},
		{kerr.NotEnoughReplicas, ErrBrokerUnavailable},
		{errors.New("dial tcp: connection refused"), ErrBrokerUnavailable},
		{&Error{Kind: ErrRejected}, ErrRejected},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Errorf("Classify(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestErrorMatchesKindAndCause(t *testing.T) {
	cause := errors.New("boom")
	err := error(&Error{Kind: ErrBrokerUnavailable, Attempts: 4, Err: cause})
	if !errors.Is(err, ErrBrokerUnavailable) || !errors.Is(err, cause) {
		t.Fatalf("errors.Is failed for %v", err)
	}
	if errors.Is(err, ErrTimeout) {
		t.Fatalf("unexpected match with ErrTimeout")
	}
	want := "broker unavailable after 4 attempt(s): boom"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestCompressionCodec(t *testing.T) {
	for _, name := range []string{"", "none", "gzip", "snappy", "lz4", "ZSTD"} {
		if _, err := CompressionCodec(name); err != nil {
			t.Errorf("CompressionCodec(%q): %v", name, err)
		}
	}
	if _, err := CompressionCodec("brotli"); err == nil {
		t.Errorf("expected error for unknown codec")
	}
}

func TestNewKafkaClientValidation(t *testing.T) {
	if _, err := NewKafkaClient(KafkaConfig{Topic: "t"}, nil); err == nil {
		t.Errorf("expected error without brokers")
	}
	if _, err := NewKafkaClient(KafkaConfig{Brokers: []string{"localhost:9092"}}, nil); err == nil {
		t.Errorf("expected error without topic")
	}
	if _, err := NewKafkaClient(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "t", Compression: "bogus"}, nil); err == nil {
		t.Errorf("expected error for bad codec")
	}
}

func TestKafkaClientUnreachableBroker(t *testing.T) {
	var calls atomic.Int32
	c, err := NewKafkaClient(KafkaConfig{
		Brokers:      []string{"127.0.0.1:1"},
		Topic:        "ats_telemetry",
		Retries:      1,
		RetryBackoff: 10 * time.Millisecond,
		RunID:        "test",
	}, nil, OnDelivery(func(Outcome) { calls.Add(1) }))
	if err != nil {
		t.Fatalf("NewKafkaClient: %v", err)
	}

	ack := c.Enqueue(testRecords(1)[0])

	fctx, fcancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer fcancel()
	if err := c.Flush(fctx); err == nil {
		t.Fatalf("flush to an unreachable broker succeeded")
	}

	// Closing fails whatever is still buffered.
	c.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	out, err := ack.Wait(ctx)
	if err != nil {
		t.Fatalf("no outcome before deadline: %v", err)
	}
	if out.OK() {
		t.Fatalf("expected delivery failure, got %+v", out)
	}
	if !errors.Is(out.Err, ErrBrokerUnavailable) {
		t.Fatalf("expected broker unavailable, got %v", out.Err)
	}
	if calls.Load() != 1 {
		t.Fatalf("delivery hook called %d times, want 1", calls.Load())
	}
}
