// Package search talks to the external keyword search backend.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DialTimeout is the connection timeout.
	DialTimeout = 5 * time.Second
	// maxResponseBytes caps how much of a backend response is read.
	maxResponseBytes = 10 << 20
)

var (
	// ErrBackendUnavailable means the backend could not be reached or failed.
	ErrBackendUnavailable = errors.New("search backend unavailable")
	// ErrBackendRejected means the backend refused the query (4xx).
	ErrBackendRejected = errors.New("search backend rejected query")
)

// Result is the backend's response. Individual results are passed through
// untouched.
type Result struct {
	Results            []json.RawMessage `json:"results"`
	TotalFilesSearched int               `json:"total_files_searched"`
	ExecutionTime      float64           `json:"execution_time"`
	TotalResults       int               `json:"total_results"`
}

// Options configures a Client.
type Options struct {
	HTTPClient *http.Client
	// MaxRetries is how many times an unavailable backend is retried.
	MaxRetries uint64
	// RetryInterval is the first backoff interval.
	RetryInterval time.Duration
}

// Client calls the search backend over HTTP.
type Client struct {
	url           string
	httpClient    *http.Client
	maxRetries    uint64
	retryInterval time.Duration
}

// NewHTTPClient creates an HTTP client for backend calls.
// It does not follow redirects.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   5 * time.Second,
			ResponseHeaderTimeout: timeout,
			MaxIdleConns:          50,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// NewClient creates a Client for the backend at url.
func NewClient(url string, opts Options) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = NewHTTPClient(15 * time.Second)
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 200 * time.Millisecond
	}
	return &Client{
		url:           url,
		httpClient:    opts.HTTPClient,
		maxRetries:    opts.MaxRetries,
		retryInterval: opts.RetryInterval,
	}
}

// Search sends keyword to the backend, retrying while it is unavailable.
// Rejected queries are not retried.
func (c *Client) Search(ctx context.Context, keyword string) (*Result, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryInterval
	bo.MaxInterval = 2 * time.Second

	var result *Result
	operation := func() error {
		var err error
		result, err = c.do(ctx, keyword)
		if errors.Is(err, ErrBackendRejected) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, keyword string) (*Result, error) {
	body, err := json.Marshal(map[string]string{"keyword": keyword})
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "zeenbase/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrBackendUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrBackendUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: status %d", ErrBackendRejected, resp.StatusCode)
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: unexpected status %d", ErrBackendUnavailable, resp.StatusCode)
	}

	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrBackendUnavailable, err)
	}
	if result.Results == nil {
		result.Results = []json.RawMessage{}
	}
	if result.TotalResults == 0 {
		result.TotalResults = len(result.Results)
	}

	return &result, nil
}
