package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Format selects how a file sink lays out records.
type Format string

const (
	// FormatStream appends each record as its own JSON document. The file
	// as a whole is not one valid JSON value.
	FormatStream Format = "stream"

	// FormatArray buffers records and writes one JSON array on Close.
	FormatArray Format = "array"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatStream, FormatArray:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

// Stream writes each record to w as soon as it arrives.
type Stream struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	closed bool
	count  int
}

// NewStream creates a stream sink on w. Close does not close w.
func NewStream(w io.Writer) *Stream {
	return &Stream{w: w}
}

// Write encodes v and appends it followed by a newline.
func (s *Stream) Write(ctx context.Context, v any) error {
	data, err := Encode(v)
	if err != nil {
		writeErrors.WithLabelValues("stream").Inc()
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if _, err := s.w.Write(append(data, '\n')); err != nil {
		writeErrors.WithLabelValues("stream").Inc()
		return fmt.Errorf("write record: %w", err)
	}
	s.count++
	recordsWritten.WithLabelValues("stream").Inc()
	return nil
}

// Count returns the number of records written.
func (s *Stream) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Close marks the sink closed and closes the underlying file, if owned.
func (s *Stream) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// Array buffers records and writes them as one JSON array on Close.
type Array struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	items  []json.RawMessage
	closed bool

	// tmp is renamed over target on a successful Close when the array is
	// backed by a file.
	tmp    string
	target string
}

// NewArray creates an array sink on w. Close does not close w.
func NewArray(w io.Writer) *Array {
	return &Array{w: w}
}

// Write buffers the canonical encoding of v.
func (a *Array) Write(ctx context.Context, v any) error {
	data, err := Encode(v)
	if err != nil {
		writeErrors.WithLabelValues("array").Inc()
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	a.items = append(a.items, json.RawMessage(data))
	return nil
}

// Close writes the buffered records as a single array. An empty sink
// writes "[]". A file-backed array replaces its target only once the whole
// document is written.
func (a *Array) Close(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	items := a.items
	if items == nil {
		items = []json.RawMessage{}
	}

	data, err := Encode(items)
	if err == nil {
		_, err = a.w.Write(append(data, '\n'))
	}
	if err != nil {
		writeErrors.WithLabelValues("array").Inc()
		err = fmt.Errorf("write array: %w", err)
	}

	if a.closer != nil {
		if cerr := a.closer.Close(); err == nil {
			err = cerr
		}
	}

	if a.tmp != "" && err == nil {
		if rerr := os.Rename(a.tmp, a.target); rerr != nil {
			writeErrors.WithLabelValues("array").Inc()
			err = fmt.Errorf("replace %s: %w", a.target, rerr)
		}
	}
	if a.tmp != "" && err != nil {
		os.Remove(a.tmp)
	}

	if err == nil {
		recordsWritten.WithLabelValues("array").Add(float64(len(items)))
	}
	return err
}

// Abort drops the buffered records without writing anything. A file-backed
// array leaves its target as it was before the sink was opened.
func (a *Array) Abort(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true
	a.items = nil

	var err error
	if a.closer != nil {
		err = a.closer.Close()
	}
	if a.tmp != "" {
		if rerr := os.Remove(a.tmp); err == nil && rerr != nil && !os.IsNotExist(rerr) {
			err = rerr
		}
	}
	return err
}

// OpenFile opens path as a sink. Stream files are opened for append so
// successive runs accumulate. Array files are written to a temporary file
// next to path and renamed over it on Close, so path always holds a
// complete array from the last successful run.
func OpenFile(path string, format Format) (Sink, error) {
	switch format {
	case FormatStream:
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		return &Stream{w: f, closer: f}, nil
	case FormatArray:
		f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		if err := f.Chmod(0o644); err != nil {
			f.Close()
			os.Remove(f.Name())
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		return &Array{w: f, closer: f, tmp: f.Name(), target: path}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// ReadStream decodes every document of a stream-format file in order.
func ReadStream(r io.Reader) ([]map[string]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var out []map[string]any
	for dec.More() {
		var m map[string]any
		if err := dec.Decode(&m); err != nil {
			return nil, fmt.Errorf("decode record %d: %w", len(out), err)
		}
		out = append(out, m)
	}
	return out, nil
}
