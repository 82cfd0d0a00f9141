package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"ats-sim/internal/config"
	"ats-sim/internal/delivery"
	"ats-sim/internal/publisher"
	"ats-sim/internal/sink"
)

// deliveryClient is what the commands need from either client.
type deliveryClient interface {
	publisher.DeliveryClient
	Close()
}

// newDeliveryClient returns a Kafka client, or in print-only mode a client
// acknowledging records once they are written to out.
func newDeliveryClient(cfg *config.Config, runID string, out io.Writer, logger *slog.Logger, opts ...delivery.ClientOption) (deliveryClient, error) {
	if cfg.Publisher.PrintOnly {
		logger.Info("print-only mode: records are written to stdout")
		return delivery.NewWriterClient(recordWriter(out), "stdout", opts...), nil
	}
	b := cfg.Broker
	kc, err := delivery.NewKafkaClient(delivery.KafkaConfig{
		Brokers:         b.Brokers,
		Topic:           b.Topic,
		ClientID:        b.ClientID,
		Compression:     b.Compression,
		Linger:          b.Linger,
		BatchMaxBytes:   b.BatchMaxBytes,
		Retries:         b.Retries,
		RetryBackoff:    b.RetryBackoff,
		DeliveryTimeout: b.DeliveryTimeout,
		RunID:           runID,
	}, logger, opts...)
	if err != nil {
		return nil, err
	}
	return kc, nil
}

// recordWriter picks colored summaries for a terminal and JSON lines otherwise.
func recordWriter(out io.Writer) sink.TelemetryWriter {
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return sink.NewConsoleWriter(out)
	}
	return sink.NewJSONWriter(out)
}

// newMirror sets up the optional local copies of published records. It
// returns a nil writer when none is configured, and a cleanup function to
// close any resources.
func newMirror(cfg *config.Config, logger *slog.Logger) (sink.TelemetryWriter, func(), error) {
	cleanup := func() {}
	var writers []sink.TelemetryWriter

	if path := cfg.Mirror.File; path != "" {
		fw, err := sink.NewFileWriter(path)
		if err != nil {
			return nil, cleanup, fmt.Errorf("create log file: %w", err)
		}
		cleanup = func() {
			if err := fw.Close(); err != nil {
				logger.Warn("close log file", "path", path, "err", err)
			}
		}
		writers = append(writers, fw)
	}

	if g := cfg.Mirror.Greptime; g.Endpoint != "" {
		gw, err := sink.NewGreptimeDBWriter(g.Endpoint, g.Database, g.Table, logger)
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("init GreptimeDB writer: %w", err)
		}
		writers = append(writers, gw)
	}

	switch len(writers) {
	case 0:
		return nil, cleanup, nil
	case 1:
		return writers[0], cleanup, nil
	default:
		return sink.NewMultiWriter(writers...), cleanup, nil
	}
}
