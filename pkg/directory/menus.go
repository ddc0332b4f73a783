package directory

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// CollectDailyMenus fetches the daily menu of every record and returns the
// menus that exist, in record order. Records without an id are skipped.
// Config.MenuConcurrency bounds the requests in flight.
func (d *Directory) CollectDailyMenus(ctx context.Context, records []Record) ([]*DailyMenu, error) {
	menus := make([]*DailyMenu, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.config.MenuConcurrency)

	for i, rec := range records {
		id := rec.ID()
		if id == "" {
			d.logger.Warn().Str("name", rec.Name()).Msg("Record has no restaurant id - skipping daily menu")
			continue
		}

		d.logger.Info().Str("name", rec.Name()).Str("res_id", id).Msg("Getting daily menu")

		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if menu, ok := d.FetchDailyMenu(gctx, id); ok {
				menus[i] = menu
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*DailyMenu, 0, len(menus))
	for _, m := range menus {
		if m != nil {
			out = append(out, m)
		}
	}
	return out, nil
}
