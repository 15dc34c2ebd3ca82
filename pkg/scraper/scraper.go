package scraper

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"pixscrape/pkg/config"
	apperrors "pixscrape/pkg/errors"
	"pixscrape/pkg/fetcher"
	"pixscrape/pkg/logger"
	"pixscrape/pkg/metrics"
	"pixscrape/pkg/models"
	"pixscrape/pkg/pixabay"
	"pixscrape/pkg/ratelimit"
	"pixscrape/pkg/storage"
)

// Scraper runs every configured query and writes the combined records
type Scraper struct {
	config     *config.Config
	fetcher    QueryFetcher
	writer     *storage.Writer
	httpClient *http.Client
	reporter   Reporter
	logger     logger.Logger
	metrics    *metrics.Metrics
}

// Option configures a Scraper
type Option func(*Scraper)

// WithFetcher replaces the Pixabay-backed fetcher
func WithFetcher(f QueryFetcher) Option {
	return func(s *Scraper) {
		s.fetcher = f
	}
}

// WithLogger sets the logger
func WithLogger(log logger.Logger) Option {
	return func(s *Scraper) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithMetrics records request, query and row counts
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scraper) {
		s.metrics = m
	}
}

// WithHTTPClient sets the HTTP client used for search requests
func WithHTTPClient(hc *http.Client) Option {
	return func(s *Scraper) {
		s.httpClient = hc
	}
}

// WithReporter receives per-query progress
func WithReporter(r Reporter) Option {
	return func(s *Scraper) {
		s.reporter = r
	}
}

// New creates a Scraper from cfg. Unless a fetcher is supplied, the
// configuration must carry an API key.
func New(cfg *config.Config, opts ...Option) (*Scraper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrorTypeConfig, err, "invalid configuration")
	}

	s := &Scraper{
		config: cfg,
		logger: logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.fetcher == nil {
		if cfg.Pixabay.APIKey == "" {
			return nil, apperrors.New(apperrors.ErrorTypeAuth, "no Pixabay API key configured")
		}
		client := pixabay.NewClient(cfg.Pixabay.APIKey, cfg.Pixabay.Timeout, s.logger,
			pixabay.WithBaseURL(cfg.Pixabay.BaseURL),
			pixabay.WithImageType(cfg.Pixabay.ImageType),
			pixabay.WithPerPage(cfg.Pixabay.PerPage),
			pixabay.WithUserAgent(cfg.Pixabay.UserAgent),
			pixabay.WithHTTPClient(s.httpClient),
			pixabay.WithMetrics(s.metrics),
		)
		s.fetcher = fetcher.New(client, ratelimit.New(cfg.RateLimit.RequestsPerMinute), s.logger, s.metrics)
	}

	writer, err := storage.NewWriter(cfg.Output.Fields, s.logger, s.metrics)
	if err != nil {
		return nil, err
	}
	s.writer = writer

	return s, nil
}

// Run fetches each query in table order, then writes all records to the
// output file in a single pass. Query failures are recorded in the Summary
// and do not stop the run; a failed write is returned as an error.
func (s *Scraper) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{
		RunID:   uuid.NewString(),
		Started: time.Now(),
		Output:  s.config.Output.Path,
	}
	log := s.logger.WithField("run_id", summary.RunID)

	log.InfoWithFields("Starting harvest", map[string]interface{}{
		"queries": len(s.config.Queries),
		"output":  summary.Output,
	})

	total := len(s.config.Queries)
	var records []models.Record
	for i, job := range s.config.Queries {
		if s.reporter != nil {
			s.reporter.QueryStarted(i, total, job)
		}

		res := s.fetcher.Fetch(ctx, job.Query, job.Target)
		summary.Results = append(summary.Results, res)
		records = append(records, res.Records...)

		if s.reporter != nil {
			s.reporter.QueryFinished(i, total, res)
		}
	}
	summary.Records = len(records)

	if err := s.writer.WriteFile(summary.Output, records); err != nil {
		summary.Duration = time.Since(summary.Started)
		log.WithError(err).Error("Failed to write output")
		return summary, err
	}
	summary.Written = len(records)

	if s.config.Scrape.VerifyOutput {
		summary.Verified = s.verify(log, summary.Output, len(records))
	}

	summary.Duration = time.Since(summary.Started)
	log.InfoWithFields("Harvest complete", map[string]interface{}{
		"records":  summary.Records,
		"written":  summary.Written,
		"failed":   len(summary.Failed()),
		"duration": summary.Duration,
	})
	return summary, nil
}

// verify reads the output back and checks it holds one row per record
func (s *Scraper) verify(log logger.Logger, path string, want int) bool {
	_, rows, err := storage.ReadFile(path)
	if err != nil {
		log.WithError(err).Warn("Could not read output back for verification")
		return false
	}
	if len(rows) != want {
		log.WarnWithFields("Output row count does not match record count", map[string]interface{}{
			"rows":    len(rows),
			"records": want,
		})
		return false
	}
	return true
}
