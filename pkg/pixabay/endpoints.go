package pixabay

import (
	"fmt"
	"net/url"
	"strconv"
)

const (
	// DefaultBaseURL is the image search endpoint
	DefaultBaseURL = "https://pixabay.com/api/"

	// DefaultImageType restricts results to photos
	DefaultImageType = "photo"

	// MinPerPage and MaxPerPage bound the per_page parameter
	MinPerPage = 3
	MaxPerPage = 200

	// DefaultPerPage asks for the largest page the API allows
	DefaultPerPage = MaxPerPage
)

// SearchParams are the query parameters of one search page request
type SearchParams struct {
	Key       string
	Query     string
	ImageType string
	PerPage   int
	Page      int
}

// ClampPerPage keeps a page size within the API's accepted range.
// Zero or negative selects the default.
func ClampPerPage(n int) int {
	switch {
	case n <= 0:
		return DefaultPerPage
	case n < MinPerPage:
		return MinPerPage
	case n > MaxPerPage:
		return MaxPerPage
	default:
		return n
	}
}

// SearchURL constructs the URL for one search page
func SearchURL(baseURL string, p SearchParams) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}

	params := u.Query()
	params.Set("key", p.Key)
	params.Set("q", p.Query)
	params.Set("image_type", p.ImageType)
	params.Set("per_page", strconv.Itoa(p.PerPage))
	params.Set("page", strconv.Itoa(p.Page))
	u.RawQuery = params.Encode()

	return u.String(), nil
}

// RedactKey returns rawURL with the key parameter masked, for logging
func RedactKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	params := u.Query()
	if params.Get("key") == "" {
		return rawURL
	}
	params.Set("key", "REDACTED")
	u.RawQuery = params.Encode()
	return u.String()
}
