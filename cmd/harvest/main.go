package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Sternrassler/restaurant-harvester/internal/config"
	"github.com/Sternrassler/restaurant-harvester/pkg/client"
	"github.com/Sternrassler/restaurant-harvester/pkg/directory"
	"github.com/Sternrassler/restaurant-harvester/pkg/logging"
	"github.com/Sternrassler/restaurant-harvester/pkg/metrics"
	"github.com/Sternrassler/restaurant-harvester/pkg/sink"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const userAgent = "restaurant-harvester/0.1.0"

func main() {
	logger := logging.Setup(logging.ConfigFromEnv())

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}
	if err := cfg.ValidateHarvest(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Harvest failed")
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	if _, err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
		return fmt.Errorf("start metrics server: %w", err)
	}

	clientCfg := client.DefaultConfig(cfg.ZomatoBaseURL, cfg.ZomatoAPIKey)
	clientCfg.UserAgent = userAgent
	clientCfg.RequestsPerSecond = cfg.RPS
	apiClient, err := client.New(clientCfg)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer apiClient.Close()

	dirCfg := directory.DefaultConfig()
	dirCfg.MenuConcurrency = cfg.MenuConcurrency
	dir, err := directory.New(apiClient, dirCfg, logging.NewLogger("directory"))
	if err != nil {
		return err
	}

	sinks, err := newSinkFactory(ctx, cfg)
	if err != nil {
		return err
	}
	defer sinks.Close()

	restaurants, err := sinks.Open("restaurants", cfg.Output)
	if err != nil {
		return err
	}

	result, err := dir.HarvestCity(ctx, directory.LocationQuery{Name: cfg.City}, cfg.Category, restaurants)
	if err != nil {
		if aerr := sink.Abort(ctx, restaurants); aerr != nil {
			logger.Warn().Err(aerr).Msg("Discarding restaurant sink failed")
		}
		return err
	}
	if err := restaurants.Close(ctx); err != nil {
		return fmt.Errorf("close restaurant sink: %w", err)
	}

	logger.Info().
		Str("city", cfg.City).
		Int("location_id", int(result.LocationID)).
		Int("pages", len(result.Pages)).
		Int("records", result.Records).
		Str("output", sinks.Describe("restaurants", cfg.Output)).
		Msg("Restaurants stored")

	if !cfg.DailyMenus {
		return nil
	}
	return collectMenus(ctx, dir, result.Pages, sinks, cfg.MenuOutput, logger)
}

func collectMenus(ctx context.Context, dir *directory.Directory, pages []directory.SearchPage, sinks *sinkFactory, output string, logger zerolog.Logger) error {
	records, err := directory.Flatten(pages)
	if err != nil {
		return err
	}

	menus, err := dir.CollectDailyMenus(ctx, records)
	if err != nil {
		return fmt.Errorf("collect daily menus: %w", err)
	}

	out, err := sinks.Open("daily_menus", output)
	if err != nil {
		return err
	}
	for _, m := range menus {
		if err := out.Write(ctx, m); err != nil {
			sink.Abort(ctx, out)
			return fmt.Errorf("write daily menu %s: %w", m.RestaurantID, err)
		}
	}
	if err := out.Close(ctx); err != nil {
		return fmt.Errorf("close daily menu sink: %w", err)
	}

	logger.Info().
		Int("restaurants", len(records)).
		Int("menus", len(menus)).
		Str("output", sinks.Describe("daily_menus", output)).
		Msg("Daily menus stored")
	return nil
}

// sinkFactory opens one sink per collection in the configured format and
// owns the shared Redis connection.
type sinkFactory struct {
	cfg   *config.Config
	redis *redis.Client
}

func newSinkFactory(ctx context.Context, cfg *config.Config) (*sinkFactory, error) {
	f := &sinkFactory{cfg: cfg}
	if cfg.Format != config.FormatRedis {
		return f, nil
	}

	opts, err := redisOptions(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	f.redis = redis.NewClient(opts)
	if err := f.redis.Ping(ctx).Err(); err != nil {
		f.redis.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}
	return f, nil
}

// redisOptions accepts a redis:// URL or a bare host:port.
func redisOptions(raw string) (*redis.Options, error) {
	if strings.Contains(raw, "://") {
		opts, err := redis.ParseURL(raw)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: raw}, nil
}

func (f *sinkFactory) key(collection string) sink.Key {
	source := "zomato"
	if f.cfg.RedisKey != "" {
		source = f.cfg.RedisKey
	}
	return sink.Key{
		Source:     source,
		Collection: collection,
		Params: map[string]string{
			"city":     f.cfg.City,
			"category": f.cfg.Category.String(),
		},
	}
}

// Open returns a sink for collection. path only applies to the file
// formats; SQLite collections share the Output database.
func (f *sinkFactory) Open(collection, path string) (sink.Sink, error) {
	switch f.cfg.Format {
	case config.FormatRedis:
		return sink.NewRedis(f.redis, f.key(collection)), nil
	case config.FormatSQLite:
		s, err := sink.OpenSQLite(f.cfg.Output, f.key(collection))
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		format, err := sink.ParseFormat(f.cfg.Format)
		if err != nil {
			return nil, err
		}
		return sink.OpenFile(path, format)
	}
}

// Describe names where collection ends up, for logs.
func (f *sinkFactory) Describe(collection, path string) string {
	switch f.cfg.Format {
	case config.FormatRedis:
		return "redis " + f.key(collection).String()
	case config.FormatSQLite:
		return "sqlite " + f.cfg.Output + " " + f.key(collection).String()
	default:
		return path
	}
}

func (f *sinkFactory) Close() error {
	if f.redis != nil {
		return f.redis.Close()
	}
	return nil
}
