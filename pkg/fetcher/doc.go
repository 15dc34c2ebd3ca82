// Package fetcher implements the per-query pagination loop.
//
// Fetch walks pages 1, 2, ... of a search until one of these holds:
//
//   - the page came back shorter than the page size (StopShortPage)
//   - the accumulated count reached the API's totalHits (StopExhausted)
//   - the accumulated count reached the target (StopTarget)
//   - a page failed or the context was canceled
//
// The checks run in that order after every page, so a final short page that
// also exhausts the source reports StopShortPage. Records are truncated to
// the target after accumulation.
package fetcher
