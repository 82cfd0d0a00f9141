package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kslog"

	"ats-sim/internal/telemetry"
)

// KafkaConfig holds the producer settings. Acknowledgement mode, ordering
// and idempotence are fixed; the rest is tunable.
type KafkaConfig struct {
	Brokers         []string
	Topic           string
	ClientID        string
	Compression     string
	Linger          time.Duration
	BatchMaxBytes   int32
	Retries         int
	RetryBackoff    time.Duration
	DeliveryTimeout time.Duration
	// RunID is attached to every record as the "run_id" header when set.
	RunID string
}

// KafkaClient publishes records to a single topic. Every record must be
// acknowledged by all in-sync replicas, and only one produce request is in
// flight per broker so records land in generation order.
type KafkaClient struct {
	cl      *kgo.Client
	topic   string
	retries int
	headers []kgo.RecordHeader
	opts    options
	log     *slog.Logger
}

// NewKafkaClient builds the producer. No connection is made until the first
// record is produced.
func NewKafkaClient(cfg KafkaConfig, logger *slog.Logger, opts ...ClientOption) (*KafkaClient, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("topic is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	codec, err := CompressionCodec(cfg.Compression)
	if err != nil {
		return nil, err
	}

	backoff := cfg.RetryBackoff
	kopts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.DisableIdempotentWrite(),
		kgo.MaxProduceRequestsInflightPerBroker(1),
		kgo.RecordRetries(cfg.Retries),
		kgo.RetryBackoffFn(func(int) time.Duration { return backoff }),
		kgo.ProducerLinger(cfg.Linger),
		kgo.ProducerBatchCompression(codec),
		kgo.WithLogger(kslog.New(logger.With("component", "kgo"))),
	}
	if cfg.ClientID != "" {
		kopts = append(kopts, kgo.ClientID(cfg.ClientID))
	}
	if cfg.BatchMaxBytes > 0 {
		kopts = append(kopts, kgo.ProducerBatchMaxBytes(cfg.BatchMaxBytes))
	}
	if cfg.DeliveryTimeout > 0 {
		kopts = append(kopts, kgo.RecordDeliveryTimeout(cfg.DeliveryTimeout))
	}

	cl, err := kgo.NewClient(kopts...)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	c := &KafkaClient{cl: cl, topic: cfg.Topic, retries: cfg.Retries, log: logger}
	if cfg.RunID != "" {
		c.headers = []kgo.RecordHeader{{Key: "run_id", Value: []byte(cfg.RunID)}}
	}
	for _, opt := range opts {
		opt(&c.opts)
	}
	return c, nil
}

// CompressionCodec resolves a codec name (none, gzip, snappy, lz4, zstd).
func CompressionCodec(name string) (kgo.CompressionCodec, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return kgo.NoCompression(), nil
	case "gzip":
		return kgo.GzipCompression(), nil
	case "snappy":
		return kgo.SnappyCompression(), nil
	case "lz4":
		return kgo.Lz4Compression(), nil
	case "zstd":
		return kgo.ZstdCompression(), nil
	default:
		return kgo.NoCompression(), fmt.Errorf("unknown compression codec %q", name)
	}
}

// Enqueue buffers rec for delivery. It never blocks on the network and never
// fails synchronously: every error is reported through the returned Ack.
func (c *KafkaClient) Enqueue(rec telemetry.Record) *Ack {
	ack := NewAck()
	payload, err := json.Marshal(rec)
	if err != nil {
		c.opts.settle(ack, Outcome{
			EntityID: rec.EntityID,
			Topic:    c.topic,
			Err:      &Error{Kind: ErrRejected, Err: err},
		})
		return ack
	}

	kr := &kgo.Record{Topic: c.topic, Value: payload, Headers: c.headers}
	// The record must outlive any caller cancellation so a shutdown drain can
	// still deliver it.
	c.cl.Produce(context.Background(), kr, func(r *kgo.Record, err error) {
		c.opts.settle(ack, c.outcome(rec.EntityID, r, err))
	})
	return ack
}

func (c *KafkaClient) outcome(entityID string, r *kgo.Record, err error) Outcome {
	out := Outcome{EntityID: entityID, Topic: r.Topic, Partition: r.Partition, Offset: r.Offset, Attempts: 1}
	if err == nil {
		return out
	}
	kind := Classify(err)
	if kind != ErrRejected {
		// Retries are internal to the client; report the ceiling.
		out.Attempts = c.retries + 1
	}
	out.Err = &Error{Kind: kind, Attempts: out.Attempts, Err: err}
	return out
}

// Flush waits until every buffered record is settled or ctx is done.
func (c *KafkaClient) Flush(ctx context.Context) error {
	return c.cl.Flush(ctx)
}

// Ping checks that at least one broker answers.
func (c *KafkaClient) Ping(ctx context.Context) error {
	return c.cl.Ping(ctx)
}

// Close releases the client. Records still buffered are failed.
func (c *KafkaClient) Close() {
	c.cl.Close()
}
