// Package pagination walks offset-paginated search endpoints.
//
// The restaurant directory pages its search results by a "start" offset and
// reports how many results a page actually holds ("results_shown"). It never
// returns anything past the 100th result, whatever total it claims, so the
// walk is bounded by a hard offset ceiling instead of the reported total.
//
// Example usage:
//
//	fetcher := pagination.NewFetcher(pagination.DefaultConfig(), logger)
//	pages, err := fetcher.FetchAllPages(ctx, searchSource)
//
// The fetcher:
//   - Fetches offset 0 to learn the page size actually granted
//   - Continues at results_shown, results_shown+20, ... below the ceiling
//   - Keeps every page in request order, empty pages included
//   - Runs one request at a time and aborts on the first failure
package pagination
