// Package scraper drives a full harvest run.
//
// A Scraper walks the configured query table in order, runs the pagination
// loop for each entry, concatenates the records and writes them to the
// output file once:
//
//	s, err := scraper.New(cfg, scraper.WithMetrics(m))
//	if err != nil {
//		return err
//	}
//	summary, err := s.Run(ctx)
//
// A query that fails keeps the pages it completed and the run moves on to
// the next one. Only configuration and output errors end the run.
package scraper
