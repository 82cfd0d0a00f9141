package sink

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"ats-sim/internal/telemetry"
)

// writeRows writes rows to w one at a time.
func writeRows(t *testing.T, w TelemetryWriter, rows []telemetry.Record) {
	t.Helper()
	for i, r := range rows {
		if err := w.Write(r); err != nil {
			t.Fatalf("write record %d: %v", i, err)
		}
	}
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// testRecords returns n valid records one second apart.
func testRecords(n int) []telemetry.Record {
	start := time.Date(2024, time.January, 9, 8, 0, 0, 0, time.UTC)
	rnd := telemetry.NewRand(1)
	rows := make([]telemetry.Record, n)
	for i := range rows {
		clk := fixedClock{start.Add(time.Duration(i) * time.Second)}
		rows[i] = telemetry.NewGenerator(clk, rnd, telemetry.WithLocation(time.UTC)).Generate()
	}
	return rows
}

type collectWriter struct{ rows []telemetry.Record }

func (c *collectWriter) Write(r telemetry.Record) error {
	c.rows = append(c.rows, r)
	return nil
}

type failWriter struct{ err error }

func (f failWriter) Write(telemetry.Record) error { return f.err }

var errWrite = errors.New("write failed")

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
