// Package output persists the record sequence produced by the transform: as
// JSON lines for the profile aggregation layer, and optionally as
// OpenTelemetry spans for trace visualization.
package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"pintrace/internal/profile"
)

// Writer emits profile records as JSON lines, one record per line.
type Writer struct {
	buf *bufio.Writer
	enc *json.Encoder
}

// NewWriter creates a Writer emitting to w.
func NewWriter(w io.Writer) *Writer {
	buf := bufio.NewWriter(w)
	return &Writer{buf: buf, enc: json.NewEncoder(buf)}
}

// Write emits one record.
func (w *Writer) Write(rec profile.Record) error {
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	return nil
}

// Flush writes any buffered records to the underlying writer.
func (w *Writer) Flush() error {
	return w.buf.Flush()
}
