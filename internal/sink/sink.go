// Package sink holds the local destinations a published record can be
// written to besides the broker: stdout, files, and a GreptimeDB mirror.
package sink

import "ats-sim/internal/telemetry"

// TelemetryWriter is an interface to support different output writers.
type TelemetryWriter interface {
	Write(telemetry.Record) error
}
