package pixabay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "pixscrape/pkg/errors"
	"pixscrape/pkg/logger"
	"pixscrape/pkg/metrics"
)

// maxBodyPreview bounds how much of an error body ends up in messages
const maxBodyPreview = 200

// Client issues search page requests. Its parameters are fixed at
// construction and shared by every call.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	imageType  string
	perPage    int
	userAgent  string
	logger     logger.Logger
	metrics    *metrics.Metrics
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL overrides the search endpoint
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithImageType sets the image_type filter
func WithImageType(imageType string) Option {
	return func(c *Client) {
		if imageType != "" {
			c.imageType = imageType
		}
	}
}

// WithPerPage sets the page size, clamped to the API's range
func WithPerPage(n int) Option {
	return func(c *Client) {
		c.perPage = ClampPerPage(n)
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithMetrics records request outcomes
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a new Pixabay API client
func NewClient(apiKey string, timeout time.Duration, log logger.Logger, opts ...Option) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		imageType:  DefaultImageType,
		perPage:    DefaultPerPage,
		logger:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PerPage returns the page size sent with every request
func (c *Client) PerPage() int {
	return c.perPage
}

// SearchPage fetches one page of results for query. Any failure is returned
// as an *errors.Error of type transport or schema; nothing is retried.
func (c *Client) SearchPage(ctx context.Context, query string, page int) (*Page, error) {
	reqURL, err := SearchURL(c.baseURL, SearchParams{
		Key:       c.apiKey,
		Query:     query,
		ImageType: c.imageType,
		PerPage:   c.perPage,
		Page:      page,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrorTypeTransport, err, "build request")
	}
	logURL := RedactKey(reqURL)

	body, duration, err := c.get(ctx, reqURL, logURL)
	if err != nil {
		c.metrics.ObserveRequest("transport", duration)
		return nil, err
	}

	result, err := decodePage(body, page)
	if err != nil {
		c.metrics.ObserveRequest("schema", duration)

		var missing missingHitsError
		msg := "failed to parse JSON"
		if errors.As(err, &missing) {
			msg = "no hits in response"
		}
		c.logger.ErrorWithFields(msg, map[string]interface{}{
			"url":          logURL,
			"error":        err.Error(),
			"body_preview": preview(body),
		})
		return nil, apperrors.Wrap(apperrors.ErrorTypeSchema, err, "%s", msg)
	}

	c.metrics.ObserveRequest("ok", duration)
	return result, nil
}

// get performs the GET and returns the body of a 2xx response
func (c *Client) get(ctx context.Context, reqURL, logURL string) ([]byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, apperrors.Wrap(apperrors.ErrorTypeTransport, err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"url":      logURL,
			"error":    redactError(err, c.apiKey),
			"duration": duration,
		})
		return nil, duration, &apperrors.Error{
			Type:    apperrors.ErrorTypeTransport,
			Message: fmt.Sprintf("network error: %s", redactError(err, c.apiKey)),
			Err:     err,
		}
	}
	defer resp.Body.Close()

	logger.LogRequest(c.logger, req.Method, logURL, resp.StatusCode, duration)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, duration, &apperrors.Error{
			Type:    apperrors.ErrorTypeTransport,
			Message: fmt.Sprintf("failed to read response body: %v", err),
			Code:    resp.StatusCode,
			Err:     err,
		}
	}

	if err := checkResponseStatus(resp.StatusCode, body); err != nil {
		return nil, duration, err
	}

	return body, duration, nil
}

// checkResponseStatus maps a non-2xx status to a transport error
func checkResponseStatus(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}

	var msg string
	switch {
	case status == http.StatusBadRequest:
		msg = "bad request"
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		msg = "API key rejected"
	case status == http.StatusTooManyRequests:
		msg = "rate limit exceeded"
	case status >= 500:
		msg = "server error"
	default:
		msg = fmt.Sprintf("unexpected status code: %d", status)
	}
	if p := preview(body); p != "" {
		msg = fmt.Sprintf("%s: %s", msg, p)
	}

	return &apperrors.Error{
		Type:    apperrors.ErrorTypeTransport,
		Message: msg,
		Code:    status,
	}
}

func preview(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxBodyPreview {
		s = s[:maxBodyPreview] + "..."
	}
	return s
}

// redactError strips the API key from error text; url.Error embeds the
// full request URL.
func redactError(err error, key string) string {
	if key == "" {
		return err.Error()
	}
	return strings.ReplaceAll(err.Error(), key, "REDACTED")
}
