package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "pixscrape/pkg/errors"
	"pixscrape/pkg/logger"
	"pixscrape/pkg/metrics"
	"pixscrape/pkg/models"
	"pixscrape/pkg/pixabay"
)

// fakeSource serves totalHits synthetic hits in pages of perPage. Pages
// listed in failures return that error instead. With hideTotal set the
// pages carry no totalHits.
type fakeSource struct {
	mu        sync.Mutex
	perPage   int
	totalHits int
	hideTotal bool
	failures  map[int]error
	onPage    func(page int)
	calls     []int
}

func (s *fakeSource) PerPage() int { return s.perPage }

func (s *fakeSource) SearchPage(ctx context.Context, query string, page int) (*pixabay.Page, error) {
	s.mu.Lock()
	s.calls = append(s.calls, page)
	s.mu.Unlock()

	if s.onPage != nil {
		s.onPage(page)
	}
	if err, ok := s.failures[page]; ok {
		return nil, err
	}

	start := (page - 1) * s.perPage
	end := start + s.perPage
	if end > s.totalHits {
		end = s.totalHits
	}

	var hits []models.Record
	for i := start; i < end; i++ {
		hits = append(hits, models.Record{
			"id":   json.Number(fmt.Sprint(i)),
			"tags": fmt.Sprintf("%s %d", query, i),
		})
	}
	reported := s.totalHits
	if s.hideTotal {
		reported = -1
	}
	return &pixabay.Page{Number: page, Total: s.totalHits, TotalHits: reported, Hits: hits}, nil
}

func (s *fakeSource) Calls() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.calls...)
}

func ids(records []models.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Text("id")
	}
	return out
}

func TestFetch_ShortPageBeforeTarget(t *testing.T) {
	src := &fakeSource{perPage: 200, totalHits: 220}
	m := metrics.New()
	f := New(src, nil, logger.NewTestLogger(), m)

	res := f.Fetch(context.Background(), "cat", 250)

	assert.Equal(t, []int{1, 2}, src.Calls())
	assert.Len(t, res.Records, 220)
	assert.Equal(t, StopShortPage, res.Stop)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, 220, res.TotalHits)
	assert.NoError(t, res.Err)
	assert.Equal(t, float64(220), testutil.ToFloat64(m.RecordsFetched.WithLabelValues("cat")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.QueryStops.WithLabelValues("short_page")))
}

func TestFetch_TruncatesToTarget(t *testing.T) {
	src := &fakeSource{perPage: 200, totalHits: 1000}
	f := New(src, nil, logger.NewTestLogger(), nil)

	res := f.Fetch(context.Background(), "nature", 250)

	assert.Equal(t, []int{1, 2}, src.Calls())
	require.Len(t, res.Records, 250)
	assert.Equal(t, StopTarget, res.Stop)
	assert.Equal(t, "0", res.Records[0].Text("id"))
	assert.Equal(t, "249", res.Records[249].Text("id"))
}

func TestFetch_ExactTargetOnPageBoundary(t *testing.T) {
	src := &fakeSource{perPage: 100, totalHits: 1000}
	f := New(src, nil, logger.NewTestLogger(), nil)

	res := f.Fetch(context.Background(), "lion", 200)

	assert.Equal(t, []int{1, 2}, src.Calls())
	assert.Len(t, res.Records, 200)
	assert.Equal(t, StopTarget, res.Stop)
}

func TestFetch_ExhaustedOnFullPage(t *testing.T) {
	src := &fakeSource{perPage: 100, totalHits: 200}
	f := New(src, nil, logger.NewTestLogger(), nil)

	res := f.Fetch(context.Background(), "laptop", 4000)

	assert.Equal(t, []int{1, 2}, src.Calls())
	assert.Len(t, res.Records, 200)
	assert.Equal(t, StopExhausted, res.Stop)
}

func TestFetch_UnreportedTotalDoesNotStop(t *testing.T) {
	src := &fakeSource{perPage: 3, totalHits: 30, hideTotal: true}
	f := New(src, nil, logger.NewTestLogger(), nil)

	res := f.Fetch(context.Background(), "cat", 9)

	assert.Equal(t, []int{1, 2, 3}, src.Calls())
	assert.Len(t, res.Records, 9)
	assert.Equal(t, StopTarget, res.Stop)
	assert.Equal(t, -1, res.TotalHits)
}

func TestFetch_UnreportedTotalEndsOnShortPage(t *testing.T) {
	src := &fakeSource{perPage: 3, totalHits: 7, hideTotal: true}
	f := New(src, nil, logger.NewTestLogger(), nil)

	res := f.Fetch(context.Background(), "cat", 100)

	assert.Equal(t, []int{1, 2, 3}, src.Calls())
	assert.Len(t, res.Records, 7)
	assert.Equal(t, StopShortPage, res.Stop)
}

func TestFetch_NonPositiveTarget(t *testing.T) {
	for _, target := range []int{0, -3} {
		t.Run(fmt.Sprint(target), func(t *testing.T) {
			src := &fakeSource{perPage: 200, totalHits: 500}
			f := New(src, nil, logger.NewTestLogger(), nil)

			res := f.Fetch(context.Background(), "money", target)

			assert.Empty(t, src.Calls())
			assert.Empty(t, res.Records)
			assert.Equal(t, StopNoop, res.Stop)
			assert.Equal(t, -1, res.TotalHits)
		})
	}
}

func TestFetch_EmptyResult(t *testing.T) {
	src := &fakeSource{perPage: 200, totalHits: 0}
	f := New(src, nil, logger.NewTestLogger(), nil)

	res := f.Fetch(context.Background(), "zzzz", 10)

	assert.Equal(t, []int{1}, src.Calls())
	assert.Empty(t, res.Records)
	assert.Equal(t, StopShortPage, res.Stop)
	assert.Equal(t, 0, res.TotalHits)
}

func TestFetch_TransportErrorKeepsEarlierPages(t *testing.T) {
	transportErr := &apperrors.Error{Type: apperrors.ErrorTypeTransport, Message: "server error", Code: 502}
	src := &fakeSource{
		perPage:   50,
		totalHits: 1000,
		failures:  map[int]error{3: transportErr},
	}
	log := logger.NewTestLogger()
	f := New(src, nil, log, nil)

	res := f.Fetch(context.Background(), "clothes", 500)

	assert.Equal(t, []int{1, 2, 3}, src.Calls())
	assert.Equal(t, StopTransport, res.Stop)
	assert.Equal(t, 2, res.Pages)
	require.Len(t, res.Records, 100)
	assert.Equal(t, "99", res.Records[99].Text("id"))
	assert.Equal(t, transportErr, res.Err)
	assert.True(t, res.Stop.Failed())

	failures := log.GetMessagesByLevel("ERROR")
	require.NotEmpty(t, failures)
	assert.Equal(t, 3, failures[0].Fields["page"])
	assert.Equal(t, 502, failures[0].Fields["status"])
	assert.Equal(t, "clothes", failures[0].Fields["query"])
}

func TestFetch_SchemaErrorOnFirstPage(t *testing.T) {
	src := &fakeSource{
		perPage:   200,
		totalHits: 1000,
		failures:  map[int]error{1: apperrors.New(apperrors.ErrorTypeSchema, "no hits in response")},
	}
	f := New(src, nil, logger.NewTestLogger(), nil)

	res := f.Fetch(context.Background(), "cat", 100)

	assert.Equal(t, StopSchema, res.Stop)
	assert.Empty(t, res.Records)
	assert.Equal(t, -1, res.TotalHits)
	assert.True(t, apperrors.Is(res.Err, apperrors.ErrorTypeSchema))
}

func TestFetch_UntypedErrorIsTransport(t *testing.T) {
	src := &fakeSource{
		perPage:   200,
		totalHits: 1000,
		failures:  map[int]error{1: fmt.Errorf("boom")},
	}
	f := New(src, nil, logger.NewTestLogger(), nil)

	res := f.Fetch(context.Background(), "cat", 100)

	assert.Equal(t, StopTransport, res.Stop)
	assert.True(t, apperrors.Is(res.Err, apperrors.ErrorTypeTransport))
}

func TestFetch_CanceledBetweenPages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &fakeSource{perPage: 10, totalHits: 1000}
	src.onPage = func(page int) {
		if page == 2 {
			cancel()
		}
	}
	f := New(src, nil, logger.NewTestLogger(), nil)

	res := f.Fetch(ctx, "cat", 100)

	// page 2 completes, the wait before page 3 sees the cancellation
	assert.Equal(t, []int{1, 2}, src.Calls())
	assert.Equal(t, StopCanceled, res.Stop)
	assert.Len(t, res.Records, 20)
	assert.True(t, apperrors.Is(res.Err, apperrors.ErrorTypeCanceled))
}

func TestFetch_CanceledDuringRequest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &fakeSource{
		perPage:   10,
		totalHits: 1000,
		failures:  map[int]error{2: apperrors.Wrap(apperrors.ErrorTypeTransport, context.Canceled, "network error")},
	}
	src.onPage = func(page int) {
		if page == 2 {
			cancel()
		}
	}
	f := New(src, nil, logger.NewTestLogger(), nil)

	res := f.Fetch(ctx, "cat", 100)

	assert.Equal(t, StopCanceled, res.Stop)
	assert.Len(t, res.Records, 10)
}

// countingLimiter records Wait calls without delaying
type countingLimiter struct {
	waits int
}

func (l *countingLimiter) Allow() bool { return true }

func (l *countingLimiter) Wait(ctx context.Context) error {
	l.waits++
	return ctx.Err()
}

func (l *countingLimiter) Reset() {}

func TestFetch_WaitsBeforeEveryRequest(t *testing.T) {
	src := &fakeSource{perPage: 10, totalHits: 35}
	limiter := &countingLimiter{}
	f := New(src, limiter, logger.NewTestLogger(), nil)

	res := f.Fetch(context.Background(), "cat", 100)

	assert.Equal(t, 4, limiter.waits)
	assert.Len(t, res.Records, 35)
	assert.Equal(t, StopShortPage, res.Stop)
}
