package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/velemoonkon/thunder/pkg/config"
)

// JSONLWriter writes records as JSONL (JSON Lines) - one JSON object
// per line. Ideal for streaming, piping to jq, and large runs.
type JSONLWriter struct {
	file   *os.File
	writer *bufio.Writer
	count  int
}

// NewJSONLWriter creates a JSONL writer to the specified file
// Use "-" for stdout
func NewJSONLWriter(filename string) (*JSONLWriter, error) {
	var file *os.File
	var err error

	if filename == "-" || filename == "" {
		file = os.Stdout
	} else {
		file, err = os.Create(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file: %w", err)
		}
	}

	return &JSONLWriter{
		file:   file,
		writer: bufio.NewWriterSize(file, config.Output.BufferSize),
	}, nil
}

// NewJSONLWriterFromWriter creates a JSONL writer from an existing io.Writer
// Useful for testing or custom output destinations
func NewJSONLWriterFromWriter(w io.Writer) *JSONLWriter {
	return &JSONLWriter{
		writer: bufio.NewWriterSize(w, config.Output.BufferSize),
	}
}

// Write writes a single record as a JSON line
func (w *JSONLWriter) Write(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if _, err := w.writer.Write(data); err != nil {
		return err
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return err
	}

	w.count++
	return nil
}

// Flush forces buffered data out, used between rounds so consumers
// see results as they happen
func (w *JSONLWriter) Flush() error {
	return w.writer.Flush()
}

// Count returns the number of records written
func (w *JSONLWriter) Count() int {
	return w.count
}

// Close flushes and closes the underlying file (stdout is left open)
func (w *JSONLWriter) Close() error {
	if err := w.writer.Flush(); err != nil {
		return err
	}
	if w.file != nil && w.file != os.Stdout {
		return w.file.Close()
	}
	return nil
}
