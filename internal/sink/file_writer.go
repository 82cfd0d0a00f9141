package sink

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"ats-sim/internal/telemetry"
)

// FileWriter writes records to a JSONL file. Paths ending in ".zst" are
// zstd-compressed.
type FileWriter struct {
	file *os.File
	zw   *zstd.Encoder
	enc  *json.Encoder
}

// NewFileWriter creates (or truncates) path and returns a FileWriter for it.
func NewFileWriter(path string) (*FileWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	fw := &FileWriter{file: f}
	var w io.Writer = f
	if isCompressed(path) {
		zw, err := zstd.NewWriter(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		fw.zw = zw
		w = zw
	}
	fw.enc = json.NewEncoder(w)
	return fw, nil
}

// Write logs a single record.
func (f *FileWriter) Write(r telemetry.Record) error {
	return f.enc.Encode(r)
}

// Close flushes any compressed frame and closes the file.
func (f *FileWriter) Close() error {
	var err error
	if f.zw != nil {
		err = f.zw.Close()
	}
	if e := f.file.Close(); e != nil && err == nil {
		err = e
	}
	return err
}

// OpenLog opens a log written by FileWriter, transparently decompressing
// ".zst" files.
func OpenLog(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !isCompressed(path) {
		return f, nil
	}
	zr, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	return &zstdReadCloser{Decoder: zr, file: f}, nil
}

type zstdReadCloser struct {
	*zstd.Decoder
	file *os.File
}

func (z *zstdReadCloser) Close() error {
	z.Decoder.Close()
	return z.file.Close()
}

func isCompressed(path string) bool {
	return strings.HasSuffix(path, ".zst")
}
