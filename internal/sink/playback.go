package sink

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"ats-sim/internal/telemetry"
)

// RecordValidator checks a decoded record before it is replayed.
type RecordValidator interface {
	Validate(telemetry.Record) error
}

// ReplayOptions tunes ReplayLog.
type ReplayOptions struct {
	// Speed >0 scales the recorded inter-record gaps; <=0 replays without delay.
	Speed     float64
	Validator RecordValidator
	Logger    *slog.Logger
}

// ReplayStats summarises a replay run.
type ReplayStats struct {
	Replayed int
	Skipped  int
}

// ReplayLog replays records from r to writer in file order. Lines that are
// missing fields or fail validation are skipped; writer errors abort the replay.
func ReplayLog(ctx context.Context, r io.Reader, writer TelemetryWriter, opts ReplayOptions) (ReplayStats, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	var stats ReplayStats
	dec := json.NewDecoder(r)
	var prev time.Time
	for line := 1; ; line++ {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return stats, nil
			}
			return stats, err
		}
		rec, err := telemetry.DecodeRecord(raw)
		if err == nil && opts.Validator != nil {
			err = opts.Validator.Validate(rec)
		}
		if err != nil {
			log.Warn("skipping log entry", "line", line, "err", err)
			stats.Skipped++
			continue
		}

		if !prev.IsZero() && opts.Speed > 0 {
			diff := rec.Timestamp.Sub(prev)
			if opts.Speed != 1 {
				diff = time.Duration(float64(diff) / opts.Speed)
			}
			if diff > 0 {
				t := time.NewTimer(diff)
				select {
				case <-ctx.Done():
					t.Stop()
					return stats, ctx.Err()
				case <-t.C:
				}
			}
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := writer.Write(rec); err != nil {
			return stats, err
		}
		stats.Replayed++
		prev = rec.Timestamp
	}
}

// ReplayLogFile opens a log file and replays its records.
func ReplayLogFile(ctx context.Context, path string, writer TelemetryWriter, opts ReplayOptions) (ReplayStats, error) {
	f, err := OpenLog(path)
	if err != nil {
		return ReplayStats{}, err
	}
	defer f.Close()
	return ReplayLog(ctx, f, writer, opts)
}
