package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/restaurant-harvester/internal/config"
	"github.com/Sternrassler/restaurant-harvester/pkg/client"
	"github.com/Sternrassler/restaurant-harvester/pkg/delivery"
	"github.com/Sternrassler/restaurant-harvester/pkg/logging"
	"github.com/Sternrassler/restaurant-harvester/pkg/metrics"
	"github.com/rs/zerolog"
)

const (
	userAgent = "restaurant-harvester/0.1.0"
	separator = "---------------------------"
)

func main() {
	logger := logging.Setup(logging.ConfigFromEnv())

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}
	if err := cfg.ValidateDelivery(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdout, logger); err != nil {
		logger.Fatal().Err(err).Msg("Menu crawl failed")
	}
}

func run(ctx context.Context, cfg *config.Config, out io.Writer, logger zerolog.Logger) error {
	if _, err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
		return fmt.Errorf("start metrics server: %w", err)
	}

	clientCfg := client.DefaultConfig(cfg.EatStreetBaseURL, cfg.EatStreetAPIKey)
	clientCfg.AuthHeader = client.HeaderDeliveryKey
	clientCfg.UserAgent = userAgent
	clientCfg.RequestsPerSecond = cfg.RPS
	apiClient, err := client.New(clientCfg)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer apiClient.Close()

	crawler, err := delivery.NewCrawler(apiClient, delivery.DefaultConfig(), logging.NewLogger("delivery"))
	if err != nil {
		return err
	}

	n, err := crawler.Crawl(ctx, cfg.EatStreetAddress, func(r delivery.Restaurant, menu []delivery.MenuCategory) error {
		return printMenu(out, menu)
	})
	if err != nil {
		return err
	}

	logger.Info().Str("address", cfg.EatStreetAddress).Int("menus", n).Msg("Menu crawl complete")
	return nil
}

// printMenu writes each category name followed by a separator line.
func printMenu(w io.Writer, menu []delivery.MenuCategory) error {
	for _, category := range menu {
		if _, err := fmt.Fprintf(w, "%s\n%s\n", category.Name, separator); err != nil {
			return err
		}
	}
	return nil
}
