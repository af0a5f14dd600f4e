// Package shodan is a minimal client for the Shodan search API: paginated
// host search plus single-host metadata lookup. Only the fields the
// discovery pipeline consumes are decoded.
package shodan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

const (
	defaultBaseURL = "https://api.shodan.io"
	defaultTimeout = 30 * time.Second

	// maxBodySize caps API response reads.
	maxBodySize = 8 << 20

	// maxRetries bounds retry attempts for rate-limited page fetches.
	maxRetries = 3
)

// Match is one search hit. Port is zero when the index did not advertise one.
type Match struct {
	IPStr string `json:"ip_str"`
	Port  int    `json:"port"`
}

// SearchResult is one page of search hits.
type SearchResult struct {
	Total   int     `json:"total"`
	Matches []Match `json:"matches"`
}

// HostInfo is the host metadata used for enrichment. Missing fields decode
// to their zero values; the aggregator substitutes sentinels.
type HostInfo struct {
	CountryName string   `json:"country_name"`
	CityName    string   `json:"city_name"`
	Org         string   `json:"org"`
	Hostnames   []string `json:"hostnames"`
}

// apiError is the error body Shodan returns on failed requests.
type apiError struct {
	Error string `json:"error"`
}

// Client talks to the Shodan REST API. The credential is injected at
// construction; there is no package-level key state.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        logrus.FieldLogger
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API host, used by tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger replaces the default logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient builds a client for the given API key.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("shodan: missing API key")
	}
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Search fetches one page of results for the query. Rate-limited responses
// are retried with exponential backoff before the page is given up on.
func (c *Client) Search(ctx context.Context, query string, page int) (*SearchResult, error) {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("query", query)
	params.Set("page", strconv.Itoa(page))
	params.Set("minify", "true")
	reqURL := c.baseURL + "/shodan/host/search?" + params.Encode()

	var result SearchResult
	operation := func() error {
		if err := c.getJSON(ctx, reqURL, &result); err != nil {
			if isRetryable(err) {
				c.log.WithError(err).Debugf("shodan: retrying page %d of %q", page, query)
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("search %q page %d: %w", query, page, err)
	}
	return &result, nil
}

// Host looks up metadata for a single address.
func (c *Client) Host(ctx context.Context, address string) (*HostInfo, error) {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("minify", "true")
	reqURL := c.baseURL + "/shodan/host/" + url.PathEscape(address) + "?" + params.Encode()

	var info HostInfo
	if err := c.getJSON(ctx, reqURL, &info); err != nil {
		return nil, fmt.Errorf("host %s: %w", address, err)
	}
	return &info, nil
}

// statusError carries the HTTP status for retryability decisions.
type statusError struct {
	status  int
	message string
}

func (e *statusError) Error() string {
	if e.message != "" {
		return fmt.Sprintf("api status %d: %s", e.status, e.message)
	}
	return fmt.Sprintf("api status %d", e.status)
}

func (c *Client) getJSON(ctx context.Context, reqURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return &statusError{status: resp.StatusCode, message: apiErr.Error}
		}
		return &statusError{status: resp.StatusCode}
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// isRetryable reports whether an error looks like an upstream rate limit
// rather than a hard failure.
func isRetryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		if se.status == http.StatusTooManyRequests || se.status >= 500 {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"rate limit", "too many requests", "request limit reached"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
