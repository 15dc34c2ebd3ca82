package scraper

import (
	"time"

	"pixscrape/pkg/fetcher"
)

// Summary describes a finished run. Results holds one entry per query, in
// table order. Records counts what was fetched across all queries; Written
// counts the rows that reached the output file and stays zero when the
// write fails. Verified is true when the file was read back and its row
// count matched.
type Summary struct {
	RunID    string
	Started  time.Time
	Results  []*fetcher.Result
	Records  int
	Written  int
	Output   string
	Verified bool
	Duration time.Duration
}

// Failed returns the results of queries that ended on an error
func (s *Summary) Failed() []*fetcher.Result {
	var failed []*fetcher.Result
	for _, r := range s.Results {
		if r.Stop.Failed() {
			failed = append(failed, r)
		}
	}
	return failed
}
