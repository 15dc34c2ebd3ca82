package fetcher

import (
	"context"
	"errors"

	apperrors "pixscrape/pkg/errors"
	"pixscrape/pkg/logger"
	"pixscrape/pkg/metrics"
	"pixscrape/pkg/models"
	"pixscrape/pkg/pixabay"
	"pixscrape/pkg/ratelimit"
)

// StopReason records why pagination for a query ended
type StopReason string

const (
	// StopTarget means the accumulator reached the requested count
	StopTarget StopReason = "target"
	// StopExhausted means the accumulator reached the API's totalHits
	StopExhausted StopReason = "exhausted"
	// StopShortPage means a page came back with fewer hits than requested
	StopShortPage StopReason = "short_page"
	StopTransport StopReason = "transport"
	StopSchema    StopReason = "schema"
	StopCanceled  StopReason = "canceled"
	// StopNoop means the target was zero or negative and nothing was requested
	StopNoop StopReason = "noop"
)

// Failed reports whether the query ended on an error
func (r StopReason) Failed() bool {
	return r == StopTransport || r == StopSchema || r == StopCanceled
}

// SearchClient fetches single result pages
type SearchClient interface {
	SearchPage(ctx context.Context, query string, page int) (*pixabay.Page, error)
	PerPage() int
}

// Result is the outcome of one Fetch call
type Result struct {
	Query   string
	Target  int
	Records []models.Record
	// Pages counts the pages whose hits were kept
	Pages int
	// TotalHits is the API's reachable total, -1 if no page succeeded or
	// the API did not report one
	TotalHits int
	Stop      StopReason
	// Err is set for transport, schema and canceled stops
	Err error
}

// Fetcher runs the pagination loop for one query at a time
type Fetcher struct {
	client  SearchClient
	limiter ratelimit.Limiter
	logger  logger.Logger
	metrics *metrics.Metrics
}

// New creates a Fetcher. A nil limiter disables pacing and a nil logger
// falls back to the global one.
func New(client SearchClient, limiter ratelimit.Limiter, log logger.Logger, m *metrics.Metrics) *Fetcher {
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Fetcher{
		client:  client,
		limiter: limiter,
		logger:  log,
		metrics: m,
	}
}

// Fetch requests consecutive pages for query until maxCount records are
// held, the API runs out, or a page fails. A failed page contributes
// nothing; pages before it are kept. The result never holds more than
// maxCount records.
func (f *Fetcher) Fetch(ctx context.Context, query string, maxCount int) *Result {
	res := &Result{
		Query:     query,
		Target:    maxCount,
		TotalHits: -1,
	}
	log := f.logger.WithFields(map[string]interface{}{
		"query":  query,
		"target": maxCount,
	})

	if maxCount <= 0 {
		res.Stop = StopNoop
		log.Debug("Target is not positive, skipping query")
		f.finish(res, log)
		return res
	}

	perPage := f.client.PerPage()
	var acc []models.Record

	for page := 1; len(acc) < maxCount; page++ {
		if err := f.limiter.Wait(ctx); err != nil {
			res.Stop = StopCanceled
			res.Err = apperrors.Wrap(apperrors.ErrorTypeCanceled, err, "query %q canceled before page %d", query, page)
			break
		}

		p, err := f.client.SearchPage(ctx, query, page)
		if err != nil {
			res.Stop, res.Err = classify(ctx, err)
			log.WithError(err).ErrorWithFields("Page request failed", map[string]interface{}{
				"page":   page,
				"status": statusOf(err),
				"kept":   len(acc),
			})
			break
		}

		if res.Pages == 0 {
			res.TotalHits = p.TotalHits
			log.InfoWithFields("Total available", map[string]interface{}{
				"total":      p.Total,
				"total_hits": p.TotalHits,
			})
		}

		acc = append(acc, p.Hits...)
		res.Pages++
		f.metrics.AddRecords(query, len(p.Hits))

		log.InfoWithFields("Page fetched", map[string]interface{}{
			"page":    page,
			"fetched": len(p.Hits),
			"so_far":  len(acc),
		})
		logger.LogQueryProgress(log, query, len(acc), maxCount)

		if len(p.Hits) < perPage {
			res.Stop = StopShortPage
			break
		}
		// An unreported total (-1) never ends the query on its own
		if res.TotalHits >= 0 && len(acc) >= res.TotalHits {
			res.Stop = StopExhausted
			break
		}
	}

	if res.Stop == "" {
		res.Stop = StopTarget
	}
	if len(acc) > maxCount {
		acc = acc[:maxCount]
	}
	res.Records = acc

	f.finish(res, log)
	return res
}

func (f *Fetcher) finish(res *Result, log logger.Logger) {
	f.metrics.IncStop(string(res.Stop))

	fields := map[string]interface{}{
		"records": len(res.Records),
		"pages":   res.Pages,
		"stop":    string(res.Stop),
	}
	if res.Stop.Failed() {
		log.WarnWithFields("Query ended early", fields)
		return
	}
	log.InfoWithFields("Query complete", fields)
}

// classify maps a page error to its stop reason. A request aborted by
// cancellation is reported as canceled rather than as a transport failure.
func classify(ctx context.Context, err error) (StopReason, error) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return StopCanceled, apperrors.Wrap(apperrors.ErrorTypeCanceled, err, "request canceled")
	}
	if apperrors.Is(err, apperrors.ErrorTypeSchema) {
		return StopSchema, err
	}
	if apperrors.Is(err, apperrors.ErrorTypeTransport) {
		return StopTransport, err
	}
	return StopTransport, apperrors.Wrap(apperrors.ErrorTypeTransport, err, "request failed")
}

func statusOf(err error) int {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return 0
}
