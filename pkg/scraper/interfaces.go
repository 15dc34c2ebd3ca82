package scraper

import (
	"context"

	"pixscrape/pkg/config"
	"pixscrape/pkg/fetcher"
)

// QueryFetcher runs the pagination loop for a single query
type QueryFetcher interface {
	Fetch(ctx context.Context, query string, maxCount int) *fetcher.Result
}

// Reporter receives progress callbacks as the run advances. Calls happen on
// the goroutine that called Run.
type Reporter interface {
	QueryStarted(index, total int, job config.QueryJob)
	QueryFinished(index, total int, res *fetcher.Result)
}
