package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Sternrassler/restaurant-harvester/internal/config"
	"github.com/Sternrassler/restaurant-harvester/internal/testutil"
	"github.com/Sternrassler/restaurant-harvester/pkg/directory"
	"github.com/Sternrassler/restaurant-harvester/pkg/sink"
	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
)

func setupMockAPI(t *testing.T) *testutil.MockAPI {
	t.Helper()
	api := testutil.NewMockAPI()
	t.Cleanup(api.Close)

	api.SetLocations(787, 42)
	api.SetSearchPages(4521, map[int]int{0: 20, 20: 20, 40: 20, 60: 20, 80: 5})
	api.SetDailyMenus(map[string]string{
		"1003": `{"daily_menu_id": "1", "name": "Lunch", "dishes": []}`,
		"1064": `{"daily_menu_id": "2", "name": "Brunch", "dishes": []}`,
	})
	return api
}

func testConfig(api *testutil.MockAPI, dir string) *config.Config {
	return &config.Config{
		ZomatoAPIKey:    "test-key",
		ZomatoBaseURL:   api.URL(),
		City:            "Baltimore",
		Category:        directory.CategoryDineOut,
		Output:          filepath.Join(dir, "restaurants.json"),
		MenuOutput:      filepath.Join(dir, "daily_menus.json"),
		Format:          config.FormatArray,
		MenuConcurrency: 2,
		RPS:             0,
	}
}

func readArray(t *testing.T, path string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	var out []map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("%s is not a JSON array: %v", path, err)
	}
	return out
}

func TestRun_ArrayFile(t *testing.T) {
	api := setupMockAPI(t)
	cfg := testConfig(api, t.TempDir())

	if err := run(context.Background(), cfg, zerolog.Nop()); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	records := readArray(t, cfg.Output)
	if len(records) != 85 {
		t.Fatalf("records = %d, want 85", len(records))
	}
	if records[0]["name"] != "Restaurant 1000" {
		t.Errorf("first record = %v", records[0]["name"])
	}
	if _, err := os.Stat(cfg.MenuOutput); !os.IsNotExist(err) {
		t.Error("daily menus should not be written unless enabled")
	}
}

func TestRun_StreamWithDailyMenus(t *testing.T) {
	api := setupMockAPI(t)
	cfg := testConfig(api, t.TempDir())
	cfg.Format = config.FormatStream
	cfg.DailyMenus = true

	if err := run(context.Background(), cfg, zerolog.Nop()); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	f, err := os.Open(cfg.Output)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := sink.ReadStream(f)
	if err != nil {
		t.Fatalf("ReadStream() error = %v", err)
	}
	if len(records) != 85 {
		t.Errorf("records = %d, want 85", len(records))
	}

	mf, err := os.Open(cfg.MenuOutput)
	if err != nil {
		t.Fatal(err)
	}
	defer mf.Close()
	menus, err := sink.ReadStream(mf)
	if err != nil {
		t.Fatalf("ReadStream() error = %v", err)
	}
	if len(menus) != 2 {
		t.Fatalf("menus = %d, want 2", len(menus))
	}
	if menus[0]["res_id"] != "1003" || menus[1]["res_id"] != "1064" {
		t.Errorf("menu ids = %v, %v", menus[0]["res_id"], menus[1]["res_id"])
	}
	if n := len(api.RequestsTo("/dailymenu")); n != 85 {
		t.Errorf("dailymenu requests = %d, want 85", n)
	}
}

func TestRun_SQLite(t *testing.T) {
	api := setupMockAPI(t)
	cfg := testConfig(api, t.TempDir())
	cfg.Format = config.FormatSQLite
	cfg.Output = filepath.Join(t.TempDir(), "harvest.db")
	cfg.DailyMenus = true

	if err := run(context.Background(), cfg, zerolog.Nop()); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	f := &sinkFactory{cfg: cfg}
	for collection, want := range map[string]int{"restaurants": 85, "daily_menus": 2} {
		db, err := sink.OpenSQLite(cfg.Output, f.key(collection))
		if err != nil {
			t.Fatalf("OpenSQLite() error = %v", err)
		}
		rows, err := db.ReadAll(context.Background())
		db.Close(context.Background())
		if err != nil {
			t.Fatalf("ReadAll() error = %v", err)
		}
		if len(rows) != want {
			t.Errorf("%s rows = %d, want %d", collection, len(rows), want)
		}
	}
}

func TestRun_Redis(t *testing.T) {
	api := setupMockAPI(t)
	mr := miniredis.RunT(t)

	cfg := testConfig(api, t.TempDir())
	cfg.Format = config.FormatRedis
	cfg.RedisURL = "redis://" + mr.Addr() + "/0"
	cfg.RedisKey = "test"

	if err := run(context.Background(), cfg, zerolog.Nop()); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	key := "harvest:test:restaurants:category=dine-out:city=Baltimore"
	items, err := mr.List(key)
	if err != nil {
		t.Fatalf("List(%s) error = %v", key, err)
	}
	if len(items) != 85 {
		t.Errorf("list length = %d, want 85", len(items))
	}
}

func TestRun_LookupFailure(t *testing.T) {
	api := testutil.NewMockAPI()
	defer api.Close()
	api.SetLocations()

	dir := t.TempDir()
	cfg := testConfig(api, dir)
	previous := "[{\"name\": \"from an earlier run\"}]\n"
	if err := os.WriteFile(cfg.Output, []byte(previous), 0o644); err != nil {
		t.Fatal(err)
	}

	err := run(context.Background(), cfg, zerolog.Nop())
	if !errors.Is(err, directory.ErrLookupFailure) {
		t.Fatalf("run() error = %v, want ErrLookupFailure", err)
	}

	// a failed run leaves the previous output in place
	data, err := os.ReadFile(cfg.Output)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != previous {
		t.Errorf("output = %q, want previous contents %q", data, previous)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries, want only the output file", len(entries))
	}
}

func TestRun_PageFailureKeepsPreviousOutput(t *testing.T) {
	api := setupMockAPI(t)
	api.SetResponse("/search", testutil.NewServerErrorResponse())

	cfg := testConfig(api, t.TempDir())
	previous := "[]\n"
	if err := os.WriteFile(cfg.Output, []byte(previous), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := run(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Fatal("expected error")
	}
	if data, _ := os.ReadFile(cfg.Output); string(data) != previous {
		t.Errorf("output = %q, want %q", data, previous)
	}
}

func TestRun_RedisUnavailable(t *testing.T) {
	api := setupMockAPI(t)
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig(api, t.TempDir())
	cfg.Format = config.FormatRedis
	cfg.RedisURL = addr

	if err := run(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Fatal("expected redis connection error")
	}
	if api.GetRequestCount() != 0 {
		t.Error("no API request should be sent without a sink")
	}
}

func TestRedisOptions(t *testing.T) {
	tests := []struct {
		raw     string
		addr    string
		db      int
		wantErr bool
	}{
		{"localhost:6379", "localhost:6379", 0, false},
		{"redis://cache:6380/2", "cache:6380", 2, false},
		{"redis://cache:6379/notadb", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			opts, err := redisOptions(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("redisOptions() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if opts.Addr != tt.addr || opts.DB != tt.db {
				t.Errorf("opts = %s/%d, want %s/%d", opts.Addr, opts.DB, tt.addr, tt.db)
			}
		})
	}
}

func TestSinkFactory_Key(t *testing.T) {
	f := &sinkFactory{cfg: &config.Config{City: "Baltimore", Category: directory.CategoryDelivery}}
	if got := f.key("restaurants").String(); got != "harvest:zomato:restaurants:category=delivery:city=Baltimore" {
		t.Errorf("key = %q", got)
	}
}
