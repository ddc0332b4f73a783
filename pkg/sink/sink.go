// Package sink persists harvested records. Every sink shares one canonical
// JSON encoding (4-space indentation, sorted keys, no HTML escaping) so the
// output diffs cleanly between runs.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("sink closed")

var (
	recordsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_sink_records_total",
		Help: "Records written by sink type",
	}, []string{"sink"})

	writeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_sink_errors_total",
		Help: "Sink write errors by sink type",
	}, []string{"sink"})
)

// Sink is an append-only destination for records.
type Sink interface {
	// Write appends one JSON-encodable value.
	Write(ctx context.Context, v any) error

	// Close flushes buffered output and releases resources.
	Close(ctx context.Context) error
}

// Aborter is implemented by sinks that can discard buffered output instead
// of flushing it.
type Aborter interface {
	Abort(ctx context.Context) error
}

// Abort releases s after a failed run. Sinks holding buffered output drop
// it; the others are closed normally, keeping what was already written.
func Abort(ctx context.Context, s Sink) error {
	if a, ok := s.(Aborter); ok {
		return a.Abort(ctx)
	}
	return s.Close(ctx)
}

// Encode returns the canonical encoding of v. Map keys are sorted at every
// level, so encoding a decoded record again yields identical bytes.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Decode parses one JSON object keeping numbers as json.Number, so ids and
// prices survive a decode/encode cycle unchanged.
func Decode(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return m, nil
}
