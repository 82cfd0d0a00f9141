package sink

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"ats-sim/internal/telemetry"
)

// JSONStdoutWriter prints records as JSON lines.
type JSONStdoutWriter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewJSONWriter creates a JSONStdoutWriter writing to out.
func NewJSONWriter(out io.Writer) *JSONStdoutWriter {
	return &JSONStdoutWriter{out: out}
}

// Write outputs a record in JSON format.
func (w *JSONStdoutWriter) Write(r telemetry.Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = fmt.Fprintln(w.out, string(data))
	return err
}
