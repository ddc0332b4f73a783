package directory

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/restaurant-harvester/pkg/sink"
)

// HarvestResult summarizes one city harvest.
type HarvestResult struct {
	LocationID LocationID
	Pages      []SearchPage
	Records    int
	Duration   time.Duration
}

// HarvestCity resolves the query, walks every search page for the category
// and persists the records to s. s is not closed.
func (d *Directory) HarvestCity(ctx context.Context, q LocationQuery, category Category, s sink.Sink) (*HarvestResult, error) {
	start := time.Now()

	id, err := d.ResolveLocation(ctx, q)
	if err != nil {
		return nil, err
	}

	pages, err := d.FetchAllPages(ctx, id, category)
	if err != nil {
		return nil, err
	}

	n, err := PersistRecords(ctx, pages, s)
	if err != nil {
		return nil, fmt.Errorf("persist records for location %d: %w", id, err)
	}

	result := &HarvestResult{
		LocationID: id,
		Pages:      pages,
		Records:    n,
		Duration:   time.Since(start),
	}

	d.logger.Info().
		Int("location_id", int(id)).
		Str("category", category.String()).
		Int("pages", len(pages)).
		Int("records", n).
		Dur("duration", result.Duration).
		Msg("Harvest complete")

	return result, nil
}
