// Package pixabay is a small client for the Pixabay image search API.
//
// A Client fetches one result page per call:
//
//	client := pixabay.NewClient(apiKey, 30*time.Second, log,
//		pixabay.WithImageType("photo"),
//		pixabay.WithPerPage(200),
//	)
//	page, err := client.SearchPage(ctx, "yellow flowers", 1)
//
// Hits are decoded into models.Record values with numbers kept as
// json.Number. Failures come back as *errors.Error with type transport
// (network failure or non-2xx status) or schema (unparseable body, missing
// hits). The client never retries.
package pixabay
