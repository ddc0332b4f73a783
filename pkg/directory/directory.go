// Package directory harvests restaurant listings and daily menus for a city
// from the restaurant directory API.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/Sternrassler/restaurant-harvester/pkg/client"
	"github.com/Sternrassler/restaurant-harvester/pkg/pagination"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the directory API root.
const DefaultBaseURL = "https://developers.zomato.com/api/v2.1/"

// API endpoints, relative to the base URL.
const (
	EndpointLocations = "locations"
	EndpointSearch    = "search"
	EndpointDailyMenu = "dailymenu"
)

// Config holds the harvest configuration.
type Config struct {
	// Pagination bounds the search walk.
	Pagination pagination.Config

	// MenuConcurrency is the number of daily menu requests in flight.
	// 1 keeps menu collection sequential.
	MenuConcurrency int
}

// DefaultConfig returns the directory defaults.
func DefaultConfig() Config {
	return Config{
		Pagination:      pagination.DefaultConfig(),
		MenuConcurrency: 1,
	}
}

// Directory talks to the restaurant directory API.
type Directory struct {
	getter  client.Getter
	fetcher *pagination.Fetcher
	config  Config
	logger  zerolog.Logger
}

// New creates a Directory on top of getter.
func New(getter client.Getter, cfg Config, logger zerolog.Logger) (*Directory, error) {
	if getter == nil {
		return nil, fmt.Errorf("getter is required")
	}
	if cfg.MenuConcurrency <= 0 {
		cfg.MenuConcurrency = 1
	}

	return &Directory{
		getter:  getter,
		fetcher: pagination.NewFetcher(cfg.Pagination, logger),
		config:  cfg,
		logger:  logger,
	}, nil
}

type locationsResponse struct {
	LocationSuggestions []struct {
		CityID   int    `json:"city_id"`
		CityName string `json:"city_name"`
	} `json:"location_suggestions"`
}

// ResolveLocation looks the query up once and returns the city id of the
// first suggestion. Other suggestions are ignored.
func (d *Directory) ResolveLocation(ctx context.Context, q LocationQuery) (LocationID, error) {
	params := url.Values{}
	if q.Name != "" {
		params.Set("query", q.Name)
	}
	if q.Lat != nil {
		params.Set("lat", strconv.FormatFloat(*q.Lat, 'f', -1, 64))
	}
	if q.Lon != nil {
		params.Set("lon", strconv.FormatFloat(*q.Lon, 'f', -1, 64))
	}

	resp, err := d.getter.Get(ctx, EndpointLocations, params)
	if err != nil {
		return 0, fmt.Errorf("resolve location %s: %w", q, err)
	}
	if err := resp.CheckStatus(EndpointLocations); err != nil {
		return 0, fmt.Errorf("resolve location %s: %w", q, err)
	}

	var body locationsResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return 0, fmt.Errorf("resolve location %s: decode: %w", q, err)
	}

	if len(body.LocationSuggestions) == 0 {
		d.logger.Error().Str("query", q.String()).Msg("Location lookup returned no suggestions")
		return 0, fmt.Errorf("%w: %s", ErrLookupFailure, q)
	}

	first := body.LocationSuggestions[0]
	d.logger.Info().
		Str("query", q.String()).
		Int("location_id", first.CityID).
		Str("city", first.CityName).
		Int("suggestions", len(body.LocationSuggestions)).
		Msg("Location resolved")

	return LocationID(first.CityID), nil
}

type searchResponse struct {
	ResultsFound int             `json:"results_found"`
	ResultsShown int             `json:"results_shown"`
	Restaurants  json.RawMessage `json:"restaurants"`
}

// searchSource adapts the search endpoint to pagination.PageFetcher.
type searchSource struct {
	getter     client.Getter
	locationID LocationID
	category   Category
	logger     zerolog.Logger
}

// FetchPage returns the raw restaurants payload at offset and its
// results_shown.
func (s *searchSource) FetchPage(ctx context.Context, offset int) ([]byte, int, error) {
	params := url.Values{}
	params.Set("entity_id", strconv.Itoa(int(s.locationID)))
	params.Set("entity_type", "city")
	params.Set("category", strconv.Itoa(int(s.category)))
	if offset > 0 {
		params.Set("start", strconv.Itoa(offset))
	}

	resp, err := s.getter.Get(ctx, EndpointSearch, params)
	if err != nil {
		return nil, 0, err
	}
	if err := resp.CheckStatus(EndpointSearch); err != nil {
		return nil, 0, err
	}

	var body searchResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, 0, fmt.Errorf("decode search page: %w", err)
	}

	s.logger.Debug().
		Int("offset", offset).
		Int("results_shown", body.ResultsShown).
		Int("results_found", body.ResultsFound).
		Msg("Search page received")

	return body.Restaurants, body.ResultsShown, nil
}

// FetchAllPages walks the search results for a city and category up to the
// offset ceiling. Pages come back in request order, empty ones included.
// Any failed page aborts the walk.
func (d *Directory) FetchAllPages(ctx context.Context, id LocationID, category Category) ([]SearchPage, error) {
	logger := d.logger.With().
		Int("location_id", int(id)).
		Str("category", category.String()).
		Logger()

	src := &searchSource{
		getter:     d.getter,
		locationID: id,
		category:   category,
		logger:     logger,
	}

	results, err := d.fetcher.FetchAllPages(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("fetch search pages for location %d: %w", id, err)
	}

	pages := make([]SearchPage, len(results))
	for i, r := range results {
		pages[i] = SearchPage{
			Offset:       r.Offset,
			ResultsShown: r.ResultsShown,
			Restaurants:  json.RawMessage(r.Data),
		}
	}
	return pages, nil
}

// FetchDailyMenu returns the daily menu of a restaurant. The boolean is
// false when the restaurant has no menu or the request failed; the two are
// not distinguished.
func (d *Directory) FetchDailyMenu(ctx context.Context, restaurantID string) (*DailyMenu, bool) {
	params := url.Values{}
	params.Set("res_id", restaurantID)

	logger := d.logger.With().Str("res_id", restaurantID).Logger()

	resp, err := d.getter.Get(ctx, EndpointDailyMenu, params)
	if err != nil {
		logger.Debug().Err(err).Msg("Daily menu request failed")
		return nil, false
	}
	if !resp.OK() {
		logger.Debug().Int("status", resp.StatusCode).Msg("No daily menu")
		return nil, false
	}

	var body struct {
		DailyMenu json.RawMessage `json:"daily_menu"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		logger.Debug().Err(err).Msg("Daily menu response not decodable")
		return nil, false
	}

	raw := bytes.TrimSpace(body.DailyMenu)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		logger.Debug().Msg("No daily menu")
		return nil, false
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var menu any
	if err := dec.Decode(&menu); err != nil {
		logger.Debug().Err(err).Msg("Daily menu not decodable")
		return nil, false
	}
	if emptyMenu(menu) {
		logger.Debug().Msg("Daily menu is empty")
		return nil, false
	}

	return &DailyMenu{RestaurantID: restaurantID, Menu: menu}, true
}

// emptyMenu reports whether a decoded daily_menu carries nothing: an empty
// object, array or string, false, or zero.
func emptyMenu(v any) bool {
	switch m := v.(type) {
	case nil:
		return true
	case map[string]any:
		return len(m) == 0
	case []any:
		return len(m) == 0
	case string:
		return m == ""
	case bool:
		return !m
	case json.Number:
		f, err := m.Float64()
		return err == nil && f == 0
	}
	return false
}
