package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/Sternrassler/restaurant-harvester/pkg/sink"
)

func TestFlattenPage(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantIDs []string
		wantErr bool
	}{
		{"absent", ``, nil, false},
		{"null", `null`, nil, false},
		{"single object", `{"restaurant": {"R": {"res_id": 7}, "name": "Solo"}}`, []string{"7"}, false},
		{"list", `[{"restaurant": {"id": "1"}}, {"restaurant": {"id": "2"}}, {"restaurant": {"id": "3"}}]`, []string{"1", "2", "3"}, false},
		{"empty list", `[]`, nil, false},
		{"whitespace around list", "  \n[{\"id\": \"9\"}]\n", []string{"9"}, false},
		{"number", `42`, nil, true},
		{"string", `"closed"`, nil, true},
		{"boolean", `true`, nil, true},
		{"list of scalars", `[1, 2]`, nil, true},
		{"truncated list", `[{"id": "1"}`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := FlattenPage(json.RawMessage(tt.raw))
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedRecordShape) {
					t.Fatalf("FlattenPage() error = %v, want ErrMalformedRecordShape", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FlattenPage() error = %v", err)
			}
			if len(records) != len(tt.wantIDs) {
				t.Fatalf("got %d records, want %d", len(records), len(tt.wantIDs))
			}
			for i, rec := range records {
				if rec.ID() != tt.wantIDs[i] {
					t.Errorf("record %d id = %q, want %q", i, rec.ID(), tt.wantIDs[i])
				}
			}
		})
	}
}

func TestFlatten_PageOrder(t *testing.T) {
	pages := []SearchPage{
		{Offset: 0, Restaurants: json.RawMessage(`[{"id": "a"}, {"id": "b"}]`)},
		{Offset: 20, Restaurants: json.RawMessage(`null`)},
		{Offset: 40, Restaurants: json.RawMessage(`{"id": "c"}`)},
		{Offset: 60, Restaurants: json.RawMessage(`[]`)},
	}

	records, err := Flatten(pages)
	if err != nil {
		t.Fatalf("Flatten() error = %v", err)
	}

	var ids []string
	for _, r := range records {
		ids = append(ids, r.ID())
	}
	if got := strings.Join(ids, ","); got != "a,b,c" {
		t.Errorf("ids = %s, want a,b,c", got)
	}
}

func TestFlatten_MalformedPage(t *testing.T) {
	pages := []SearchPage{
		{Offset: 0, Restaurants: json.RawMessage(`[{"id": "a"}]`)},
		{Offset: 20, Restaurants: json.RawMessage(`17`)},
	}

	_, err := Flatten(pages)
	if !errors.Is(err, ErrMalformedRecordShape) {
		t.Fatalf("error = %v, want ErrMalformedRecordShape", err)
	}
	if !strings.Contains(err.Error(), "offset 20") {
		t.Errorf("error %q should name the page offset", err)
	}
}

func TestPersistRecords_RoundTrip(t *testing.T) {
	pages := []SearchPage{
		{Offset: 0, Restaurants: json.RawMessage(`[
			{"restaurant": {"R": {"res_id": 16570346}, "name": "Thames Street Oyster House", "user_rating": {"aggregate_rating": "4.9", "votes": 1032}}},
			{"restaurant": {"R": {"res_id": 16569187}, "name": "Woodberry Kitchen", "location": {"zipcode": "21211"}}}
		]`)},
		{Offset: 20, Restaurants: json.RawMessage(`{"restaurant": {"R": {"res_id": 17}, "name": "Faidley's", "price_range": 2}}`)},
	}

	var buf bytes.Buffer
	stream := sink.NewStream(&buf)

	n, err := PersistRecords(context.Background(), pages, stream)
	if err != nil {
		t.Fatalf("PersistRecords() error = %v", err)
	}
	if n != 3 {
		t.Fatalf("written = %d, want 3", n)
	}

	got, err := sink.ReadStream(&buf)
	if err != nil {
		t.Fatalf("ReadStream() error = %v", err)
	}

	want, err := Flatten(pages)
	if err != nil {
		t.Fatalf("Flatten() error = %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("read %d records, want %d", len(got), len(want))
	}

	for i := range want {
		wantBytes, err := sink.Encode(map[string]any(want[i].Restaurant()))
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		gotBytes, err := sink.Encode(got[i])
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		if !bytes.Equal(gotBytes, wantBytes) {
			t.Errorf("record %d differs after round trip:\n got %s\nwant %s", i, gotBytes, wantBytes)
		}
	}
}

type failingSink struct {
	failAfter int
	writes    int
}

func (f *failingSink) Write(ctx context.Context, v any) error {
	if f.writes >= f.failAfter {
		return errors.New("disk full")
	}
	f.writes++
	return nil
}

func (f *failingSink) Close(ctx context.Context) error { return nil }

func TestPersistRecords_SinkFailure(t *testing.T) {
	pages := []SearchPage{
		{Offset: 0, Restaurants: json.RawMessage(`[{"id": "1"}, {"id": "2"}, {"id": "3"}]`)},
	}
	s := &failingSink{failAfter: 2}

	n, err := PersistRecords(context.Background(), pages, s)
	if err == nil {
		t.Fatal("expected error")
	}
	if n != 2 {
		t.Errorf("written = %d, want 2", n)
	}
}

func TestPersistRecords_MalformedPage(t *testing.T) {
	pages := []SearchPage{
		{Offset: 0, Restaurants: json.RawMessage(`{"id": "1"}`)},
		{Offset: 20, Restaurants: json.RawMessage(`"oops"`)},
	}
	mem := sink.NewMemory()

	n, err := PersistRecords(context.Background(), pages, mem)
	if !errors.Is(err, ErrMalformedRecordShape) {
		t.Fatalf("error = %v, want ErrMalformedRecordShape", err)
	}
	if n != 1 || len(mem.Items()) != 1 {
		t.Errorf("written = %d, items = %d, want 1", n, len(mem.Items()))
	}
}
