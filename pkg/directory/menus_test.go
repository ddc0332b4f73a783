package directory

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/restaurant-harvester/internal/testutil"
	"github.com/Sternrassler/restaurant-harvester/pkg/client"
	"github.com/rs/zerolog"
)

func recordsWithIDs(ids ...string) []Record {
	out := make([]Record, len(ids))
	for i, id := range ids {
		if id == "" {
			out[i] = Record{"restaurant": map[string]any{"name": "Nameless"}}
			continue
		}
		out[i] = Record{"restaurant": map[string]any{"R": map[string]any{"res_id": id}, "name": "Restaurant " + id}}
	}
	return out
}

func TestCollectDailyMenus_SkipsMissing(t *testing.T) {
	api := testutil.NewMockAPI()
	defer api.Close()
	api.SetDailyMenus(map[string]string{
		"1": `{"name": "Lunch", "dishes": []}`,
		"3": `{"name": "Dinner", "dishes": [{"dish": {"name": "Pit beef", "price": "9.50"}}]}`,
	})

	cfg := client.DefaultConfig(api.URL(), "test-key")
	cfg.RequestsPerSecond = 0
	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	d := newTestDirectory(t, c)

	menus, err := d.CollectDailyMenus(context.Background(), recordsWithIDs("1", "2", "", "3"))
	if err != nil {
		t.Fatalf("CollectDailyMenus() error = %v", err)
	}

	if len(menus) != 2 {
		t.Fatalf("menus = %d, want 2", len(menus))
	}
	if menus[0].RestaurantID != "1" || menus[1].RestaurantID != "3" {
		t.Errorf("menu order = [%s %s], want [1 3]", menus[0].RestaurantID, menus[1].RestaurantID)
	}
	if n := len(api.RequestsTo("/dailymenu")); n != 3 {
		t.Errorf("dailymenu requests = %d, want 3 (record without id skipped)", n)
	}
}

func TestCollectDailyMenus_NoneAvailable(t *testing.T) {
	g := &fakeGetter{fn: func(string, url.Values) (*client.Response, error) {
		return jsonResponse(400, `{"message": "No Daily Menu Available"}`), nil
	}}
	d := newTestDirectory(t, g)

	menus, err := d.CollectDailyMenus(context.Background(), recordsWithIDs("1", "2"))
	if err != nil {
		t.Fatalf("CollectDailyMenus() error = %v", err)
	}
	if len(menus) != 0 {
		t.Errorf("menus = %d, want 0", len(menus))
	}
}

// concurrencyGetter tracks the peak number of Get calls in flight.
type concurrencyGetter struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	mu       sync.Mutex
	seen     []string
}

func (g *concurrencyGetter) Get(ctx context.Context, endpoint string, params url.Values) (*client.Response, error) {
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}

	g.mu.Lock()
	g.seen = append(g.seen, params.Get("res_id"))
	g.mu.Unlock()

	time.Sleep(10 * time.Millisecond)
	return jsonResponse(200, `{"daily_menu": {"name": "Menu `+params.Get("res_id")+`"}}`), nil
}

func TestCollectDailyMenus_Concurrency(t *testing.T) {
	tests := []struct {
		name        string
		concurrency int
		maxPeak     int32
	}{
		{"sequential", 1, 1},
		{"bounded", 3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &concurrencyGetter{}
			cfg := DefaultConfig()
			cfg.MenuConcurrency = tt.concurrency
			d, err := New(g, cfg, zerolog.Nop())
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			ids := []string{"1", "2", "3", "4", "5", "6"}
			menus, err := d.CollectDailyMenus(context.Background(), recordsWithIDs(ids...))
			if err != nil {
				t.Fatalf("CollectDailyMenus() error = %v", err)
			}

			if peak := g.peak.Load(); peak > tt.maxPeak {
				t.Errorf("peak in flight = %d, want <= %d", peak, tt.maxPeak)
			}
			if len(menus) != len(ids) {
				t.Fatalf("menus = %d, want %d", len(menus), len(ids))
			}
			for i, m := range menus {
				if m.RestaurantID != ids[i] {
					t.Errorf("menu %d = %s, want %s (record order)", i, m.RestaurantID, ids[i])
				}
			}
		})
	}
}

func TestCollectDailyMenus_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := &fakeGetter{fn: func(string, url.Values) (*client.Response, error) {
		return jsonResponse(200, `{"daily_menu": {}}`), nil
	}}
	d := newTestDirectory(t, g)

	_, err := d.CollectDailyMenus(ctx, recordsWithIDs("1", "2"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}
