package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

const (
	// DefaultStep is the offset increment between follow-up pages.
	DefaultStep = 20

	// DefaultMaxOffset is the first offset that is never requested.
	DefaultMaxOffset = 100
)

var (
	pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvest_pages_fetched_total",
		Help: "Total search pages fetched",
	})

	walkDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "harvest_page_walk_duration_seconds",
		Help:    "Duration of a complete page walk in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	})
)

// Config holds page walk configuration.
type Config struct {
	// Step is the offset increment after the first follow-up page.
	Step int

	// MaxOffset is the exclusive offset ceiling.
	MaxOffset int

	// StopOnEmptyFirstPage ends the walk after offset 0 when it returned
	// no results.
	StopOnEmptyFirstPage bool
}

// DefaultConfig returns the directory search limits.
func DefaultConfig() Config {
	return Config{
		Step:                 DefaultStep,
		MaxOffset:            DefaultMaxOffset,
		StopOnEmptyFirstPage: true,
	}
}

// PageFetcher fetches a single page and reports how many results it holds.
type PageFetcher interface {
	FetchPage(ctx context.Context, offset int) (data []byte, resultsShown int, err error)
}

// PageResult is one fetched page.
type PageResult struct {
	Offset       int
	ResultsShown int
	Data         []byte
}

// Fetcher walks all pages of a search sequentially.
type Fetcher struct {
	config Config
	logger zerolog.Logger
}

// NewFetcher creates a new fetcher. Non-positive limits fall back to the
// defaults.
func NewFetcher(config Config, logger zerolog.Logger) *Fetcher {
	if config.Step <= 0 {
		config.Step = DefaultStep
	}
	if config.MaxOffset <= 0 {
		config.MaxOffset = DefaultMaxOffset
	}

	return &Fetcher{
		config: config,
		logger: logger,
	}
}

// Offsets returns the full request schedule for a first page that showed
// resultsShown results: 0, then resultsShown, resultsShown+step, ... while
// below maxOffset.
func Offsets(resultsShown, step, maxOffset int) []int {
	if resultsShown < 0 {
		resultsShown = 0
	}
	if step <= 0 {
		step = DefaultStep
	}

	offsets := []int{0}
	for off := resultsShown; off < maxOffset; off += step {
		offsets = append(offsets, off)
	}
	return offsets
}

// FetchAllPages fetches offset 0, then every follow-up offset below the
// ceiling. Pages are returned in request order. Any failure aborts the walk
// and no partial result is returned.
func (f *Fetcher) FetchAllPages(ctx context.Context, src PageFetcher) ([]PageResult, error) {
	start := time.Now()

	data, shown, err := src.FetchPage(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("fetch first page: %w", err)
	}
	pagesFetchedTotal.Inc()

	results := []PageResult{{Offset: 0, ResultsShown: shown, Data: data}}

	if shown < 0 {
		shown = 0
	}
	if shown == 0 && f.config.StopOnEmptyFirstPage {
		f.logger.Info().Msg("First page is empty - nothing more to fetch")
		return results, nil
	}

	for _, offset := range Offsets(shown, f.config.Step, f.config.MaxOffset)[1:] {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("page walk cancelled at offset %d: %w", offset, err)
		}

		f.logger.Info().Int("offset", offset).Msg("Starting at offset")

		data, n, err := src.FetchPage(ctx, offset)
		if err != nil {
			f.logger.Error().Err(err).Int("offset", offset).Msg("Page fetch failed")
			return nil, fmt.Errorf("fetch page at offset %d: %w", offset, err)
		}
		pagesFetchedTotal.Inc()

		results = append(results, PageResult{Offset: offset, ResultsShown: n, Data: data})
	}

	walkDuration.Observe(time.Since(start).Seconds())
	f.logger.Info().
		Int("pages", len(results)).
		Int("first_page_size", shown).
		Dur("duration", time.Since(start)).
		Msg("Page walk complete")

	return results, nil
}
