package ui

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"pixscrape/pkg/config"
	"pixscrape/pkg/fetcher"
	"pixscrape/pkg/scraper"
)

// ConsoleReporter prints one line per query as the run advances
type ConsoleReporter struct{}

func (ConsoleReporter) QueryStarted(index, total int, job config.QueryJob) {
	printf(false, "%s %s %s\n",
		Magenta(fmt.Sprintf("[%d/%d]", index+1, total)),
		Cyan(job.Query),
		Dim(fmt.Sprintf("target %d", job.Target)))
}

func (ConsoleReporter) QueryFinished(index, total int, res *fetcher.Result) {
	bar := ProgressBarString(len(res.Records), res.Target, 20)
	line := fmt.Sprintf("      %s %d/%d %s", bar, len(res.Records), res.Target, stopLabel(res.Stop))
	if res.Stop.Failed() {
		printf(true, "%s\n", Red(line))
		if res.Err != nil {
			printf(true, "      %s\n", Red(res.Err.Error()))
		}
		return
	}
	printf(false, "%s\n", Green(line))
}

func stopLabel(r fetcher.StopReason) string {
	switch r {
	case fetcher.StopTarget:
		return "target reached"
	case fetcher.StopExhausted:
		return "all results fetched"
	case fetcher.StopShortPage:
		return "last page reached"
	case fetcher.StopNoop:
		return "skipped"
	case fetcher.StopTransport:
		return "request failed"
	case fetcher.StopSchema:
		return "bad response"
	case fetcher.StopCanceled:
		return "canceled"
	default:
		return string(r)
	}
}

// PrintSummary prints a per-query table and totals for a finished run
func PrintSummary(s *scraper.Summary) {
	if s == nil || IsQuietMode() {
		return
	}

	mu.Lock()
	w := out
	mu.Unlock()

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "QUERY\tTARGET\tRECORDS\tPAGES\tTOTAL HITS\tSTOP")
	for _, r := range s.Results {
		totalHits := "-"
		if r.TotalHits >= 0 {
			totalHits = strconv.Itoa(r.TotalHits)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\t%s\n",
			r.Query, r.Target, len(r.Records), r.Pages, totalHits, r.Stop)
	}
	tw.Flush()

	fmt.Fprintln(w)
	PrintInfo("Run", s.RunID)
	PrintInfo("Output", s.Output)
	PrintInfo("Records fetched", strconv.Itoa(s.Records))
	PrintInfo("Rows written", strconv.Itoa(s.Written))
	PrintInfo("Duration", s.Duration.Round(time.Millisecond).String())
	if failed := s.Failed(); len(failed) > 0 {
		PrintWarning(fmt.Sprintf("%d of %d queries ended early", len(failed), len(s.Results)))
	}
}
