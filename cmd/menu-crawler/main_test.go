package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/Sternrassler/restaurant-harvester/internal/config"
	"github.com/Sternrassler/restaurant-harvester/internal/testutil"
	"github.com/Sternrassler/restaurant-harvester/pkg/client"
	"github.com/Sternrassler/restaurant-harvester/pkg/delivery"
	"github.com/rs/zerolog"
)

func TestRun_PrintsCategories(t *testing.T) {
	api := testutil.NewMockAPI()
	defer api.Close()
	api.SetDeliverySearch("a", "gone", "b")
	api.SetDeliveryMenu("a", "Appetizers", "Crab Cakes")
	api.SetDeliveryMenu("b", "Desserts")

	cfg := &config.Config{
		EatStreetAPIKey:  "token",
		EatStreetBaseURL: api.URL(),
		EatStreetAddress: "Baltimore, MD",
	}

	var out bytes.Buffer
	if err := run(context.Background(), cfg, &out, zerolog.Nop()); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	want := "Appetizers\n" + separator + "\n" +
		"Crab Cakes\n" + separator + "\n" +
		"Desserts\n" + separator + "\n"
	if out.String() != want {
		t.Errorf("output =\n%s\nwant\n%s", out.String(), want)
	}

	if got := api.LastRequestHeader().Get(client.HeaderDeliveryKey); got != "token" {
		t.Errorf("%s = %q, want token", client.HeaderDeliveryKey, got)
	}
}

func TestRun_SearchFails(t *testing.T) {
	api := testutil.NewMockAPI()
	defer api.Close()
	api.SetResponse("/restaurant/search", testutil.NewServerErrorResponse())

	cfg := &config.Config{
		EatStreetAPIKey:  "token",
		EatStreetBaseURL: api.URL(),
		EatStreetAddress: "Baltimore, MD",
	}

	var out bytes.Buffer
	err := run(context.Background(), cfg, &out, zerolog.Nop())
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 500 {
		t.Fatalf("run() error = %v, want 500 *client.APIError", err)
	}
	if out.Len() != 0 {
		t.Errorf("nothing should be printed, got %q", out.String())
	}
}

func TestPrintMenu_Empty(t *testing.T) {
	var out bytes.Buffer
	if err := printMenu(&out, []delivery.MenuCategory{}); err != nil {
		t.Fatal(err)
	}
	if out.Len() != 0 {
		t.Errorf("output = %q, want empty", out.String())
	}
}
