package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/Sternrassler/restaurant-harvester/pkg/sink"
)

// FlattenPage normalizes a page's restaurants payload: null or absent gives
// no records, an object gives one record and a list gives its records in
// order. Anything else is ErrMalformedRecordShape.
func FlattenPage(raw json.RawMessage) ([]Record, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	switch trimmed[0] {
	case '{':
		rec, err := decodeRecord(trimmed)
		if err != nil {
			return nil, err
		}
		return []Record{rec}, nil

	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRecordShape, err)
		}
		records := make([]Record, 0, len(items))
		for i, item := range items {
			item = bytes.TrimSpace(item)
			if len(item) == 0 || item[0] != '{' {
				return nil, fmt.Errorf("%w: list element %d is not an object", ErrMalformedRecordShape, i)
			}
			rec, err := decodeRecord(item)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
		return records, nil

	default:
		return nil, fmt.Errorf("%w: got %.20q", ErrMalformedRecordShape, trimmed)
	}
}

func decodeRecord(data []byte) (Record, error) {
	m, err := sink.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecordShape, err)
	}
	return Record(m), nil
}

// Flatten concatenates the records of every page in page order.
func Flatten(pages []SearchPage) ([]Record, error) {
	var out []Record
	for _, p := range pages {
		records, err := FlattenPage(p.Restaurants)
		if err != nil {
			return nil, fmt.Errorf("page at offset %d: %w", p.Offset, err)
		}
		out = append(out, records...)
	}
	return out, nil
}

// PersistRecords writes the restaurant body of every record to s, page by
// page, in encounter order, and returns how many were written. Records
// already written stay written when a later page fails.
func PersistRecords(ctx context.Context, pages []SearchPage, s sink.Sink) (int, error) {
	written := 0
	for _, p := range pages {
		records, err := FlattenPage(p.Restaurants)
		if err != nil {
			return written, fmt.Errorf("page at offset %d: %w", p.Offset, err)
		}
		for _, rec := range records {
			if err := s.Write(ctx, map[string]any(rec.Restaurant())); err != nil {
				return written, fmt.Errorf("persist record %d: %w", written, err)
			}
			written++
		}
	}
	return written, nil
}
