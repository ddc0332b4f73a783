// Package config loads the command configuration from the environment and
// an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Sternrassler/restaurant-harvester/pkg/delivery"
	"github.com/Sternrassler/restaurant-harvester/pkg/directory"
	"github.com/joho/godotenv"
)

// Output formats accepted in HARVEST_FORMAT.
const (
	FormatArray  = "array"
	FormatStream = "stream"
	FormatRedis  = "redis"
	FormatSQLite = "sqlite"
)

// Config is the union of everything cmd/harvest and cmd/menu-crawler read.
type Config struct {
	// Directory API
	ZomatoAPIKey  string
	ZomatoBaseURL string

	// Delivery API
	EatStreetAPIKey  string
	EatStreetBaseURL string
	EatStreetAddress string

	// Harvest
	City            string
	Category        directory.Category
	Output          string
	MenuOutput      string
	Format          string
	DailyMenus      bool
	MenuConcurrency int
	RPS             float64

	// Redis sink
	RedisURL string
	RedisKey string

	// MetricsAddr enables the /metrics listener when set.
	MetricsAddr string
}

// Load reads .env (if present) and then the process environment. Variables
// already set in the environment win over .env.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		ZomatoAPIKey:     os.Getenv("ZOMATO_API_KEY"),
		ZomatoBaseURL:    getEnv("ZOMATO_BASE_URL", directory.DefaultBaseURL),
		EatStreetAPIKey:  os.Getenv("EATSTREET_API_KEY"),
		EatStreetBaseURL: getEnv("EATSTREET_BASE_URL", delivery.DefaultBaseURL),
		EatStreetAddress: getEnv("EATSTREET_ADDRESS", "Baltimore, MD"),
		City:             getEnv("HARVEST_CITY", "Baltimore"),
		MenuOutput:       getEnv("HARVEST_MENU_OUTPUT", "daily_menus.json"),
		Format:           strings.ToLower(getEnv("HARVEST_FORMAT", FormatArray)),
		RedisURL:         getEnv("REDIS_URL", "localhost:6379"),
		RedisKey:         os.Getenv("REDIS_KEY"),
		MetricsAddr:      os.Getenv("METRICS_ADDR"),
	}

	defaultOutput := "restaurants.json"
	if cfg.Format == FormatSQLite {
		defaultOutput = "restaurants.db"
	}
	cfg.Output = getEnv("HARVEST_OUTPUT", defaultOutput)

	var errs []error

	category, err := directory.ParseCategory(getEnv("HARVEST_CATEGORY", "dine-out"))
	if err != nil {
		errs = append(errs, fmt.Errorf("HARVEST_CATEGORY: %w", err))
	}
	cfg.Category = category

	if cfg.DailyMenus, err = getEnvBool("HARVEST_DAILY_MENUS", false); err != nil {
		errs = append(errs, err)
	}
	if cfg.MenuConcurrency, err = getEnvInt("HARVEST_MENU_CONCURRENCY", 1); err != nil {
		errs = append(errs, err)
	}
	if cfg.RPS, err = getEnvFloat("HARVEST_RPS", 2); err != nil {
		errs = append(errs, err)
	}

	switch cfg.Format {
	case FormatArray, FormatStream, FormatRedis, FormatSQLite:
	default:
		errs = append(errs, fmt.Errorf("HARVEST_FORMAT: unknown format %q (want array, stream, redis or sqlite)", cfg.Format))
	}
	if cfg.MenuConcurrency < 1 {
		errs = append(errs, fmt.Errorf("HARVEST_MENU_CONCURRENCY must be at least 1 (got %d)", cfg.MenuConcurrency))
	}
	if cfg.RPS < 0 {
		errs = append(errs, fmt.Errorf("HARVEST_RPS must not be negative (got %g)", cfg.RPS))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidateHarvest checks what cmd/harvest needs.
func (c *Config) ValidateHarvest() error {
	if c.ZomatoAPIKey == "" {
		return errors.New("ZOMATO_API_KEY is required")
	}
	if c.City == "" {
		return errors.New("HARVEST_CITY must not be empty")
	}
	return nil
}

// ValidateDelivery checks what cmd/menu-crawler needs.
func (c *Config) ValidateDelivery() error {
	if c.EatStreetAPIKey == "" {
		return errors.New("EATSTREET_API_KEY is required")
	}
	if c.EatStreetAddress == "" {
		return errors.New("EATSTREET_ADDRESS must not be empty")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", key, value)
	}
	return b, nil
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, value)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", key, value)
	}
	return f, nil
}
