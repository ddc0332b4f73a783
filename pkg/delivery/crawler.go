// Package delivery crawls a food-delivery API for the restaurants near an
// address and their menus.
package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/Sternrassler/restaurant-harvester/pkg/client"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the delivery API root.
const DefaultBaseURL = "https://api.eatstreet.com/publicapi/v1/"

// EndpointSearch is the restaurant search endpoint, relative to the base URL.
const EndpointSearch = "restaurant/search"

// Search defaults.
const (
	DefaultMethod       = "both"
	DefaultPickupRadius = 50
)

var (
	menusCrawled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_delivery_menus_total",
			Help: "Delivery menus crawled by result",
		},
		[]string{"result"}, // ok, failed
	)
)

// Restaurant is one search hit.
type Restaurant struct {
	APIKey         string   `json:"apiKey"`
	Name           string   `json:"name"`
	StreetAddress  string   `json:"streetAddress,omitempty"`
	City           string   `json:"city,omitempty"`
	State          string   `json:"state,omitempty"`
	Zip            string   `json:"zip,omitempty"`
	Phone          string   `json:"phone,omitempty"`
	FoodTypes      []string `json:"foodTypes,omitempty"`
	OffersPickup   bool     `json:"offersPickup"`
	OffersDelivery bool     `json:"offersDelivery"`
	Latitude       float64  `json:"latitude,omitempty"`
	Longitude      float64  `json:"longitude,omitempty"`
}

// MenuItem is a single dish.
type MenuItem struct {
	APIKey      string  `json:"apiKey"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	BasePrice   float64 `json:"basePrice"`
}

// MenuCategory groups menu items under a heading.
type MenuCategory struct {
	APIKey string     `json:"apiKey,omitempty"`
	Name   string     `json:"name"`
	Items  []MenuItem `json:"items"`
}

// Config holds crawler configuration.
type Config struct {
	// Method is "delivery", "pickup" or "both".
	Method string

	// PickupRadius is the search radius in miles.
	PickupRadius int
}

// DefaultConfig returns the crawler defaults.
func DefaultConfig() Config {
	return Config{
		Method:       DefaultMethod,
		PickupRadius: DefaultPickupRadius,
	}
}

// Crawler walks the delivery API.
type Crawler struct {
	getter client.Getter
	config Config
	logger zerolog.Logger
}

// NewCrawler creates a Crawler on top of getter.
func NewCrawler(getter client.Getter, cfg Config, logger zerolog.Logger) (*Crawler, error) {
	if getter == nil {
		return nil, fmt.Errorf("getter is required")
	}
	if cfg.Method == "" {
		cfg.Method = DefaultMethod
	}
	if cfg.PickupRadius <= 0 {
		cfg.PickupRadius = DefaultPickupRadius
	}
	return &Crawler{getter: getter, config: cfg, logger: logger}, nil
}

// SearchRestaurants returns the restaurants serving address.
func (c *Crawler) SearchRestaurants(ctx context.Context, address string) ([]Restaurant, error) {
	if address == "" {
		return nil, fmt.Errorf("address is required")
	}

	params := url.Values{}
	params.Set("method", c.config.Method)
	params.Set("pickup-radius", fmt.Sprint(c.config.PickupRadius))
	params.Set("street-address", address)

	resp, err := c.getter.Get(ctx, EndpointSearch, params)
	if err != nil {
		return nil, fmt.Errorf("search restaurants near %q: %w", address, err)
	}
	if err := resp.CheckStatus(EndpointSearch); err != nil {
		return nil, fmt.Errorf("search restaurants near %q: %w", address, err)
	}

	var body struct {
		Restaurants []Restaurant `json:"restaurants"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, fmt.Errorf("search restaurants near %q: decode: %w", address, err)
	}

	c.logger.Info().
		Str("address", address).
		Int("restaurants", len(body.Restaurants)).
		Msg("Delivery search complete")

	return body.Restaurants, nil
}

// MenuEndpoint returns the menu endpoint of a restaurant.
func MenuEndpoint(apiKey string) string {
	return "restaurant/" + apiKey + "/menu"
}

// FetchMenu returns the menu categories of a restaurant.
func (c *Crawler) FetchMenu(ctx context.Context, apiKey string) ([]MenuCategory, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("restaurant api key is required")
	}

	endpoint := MenuEndpoint(apiKey)
	resp, err := c.getter.Get(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch menu %s: %w", apiKey, err)
	}
	if err := resp.CheckStatus(endpoint); err != nil {
		return nil, fmt.Errorf("fetch menu %s: %w", apiKey, err)
	}

	var menu []MenuCategory
	if err := json.Unmarshal(resp.Body, &menu); err != nil {
		return nil, fmt.Errorf("fetch menu %s: decode: %w", apiKey, err)
	}
	return menu, nil
}

// MenuFunc receives each restaurant with its menu.
type MenuFunc func(r Restaurant, menu []MenuCategory) error

// Crawl searches address and hands every restaurant's menu to fn in search
// order. A menu that fails to load is logged and skipped; an error from fn
// stops the crawl. Returns the number of menus delivered to fn.
func (c *Crawler) Crawl(ctx context.Context, address string, fn MenuFunc) (int, error) {
	restaurants, err := c.SearchRestaurants(ctx, address)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, r := range restaurants {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}

		menu, err := c.FetchMenu(ctx, r.APIKey)
		if err != nil {
			menusCrawled.WithLabelValues("failed").Inc()
			c.logger.Warn().Err(err).
				Str("restaurant", r.Name).
				Str("api_key", r.APIKey).
				Msg("Menu failed to load - skipping")
			continue
		}
		menusCrawled.WithLabelValues("ok").Inc()

		if err := fn(r, menu); err != nil {
			return delivered, fmt.Errorf("handle menu of %s: %w", r.APIKey, err)
		}
		delivered++
	}

	return delivered, nil
}
