package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kjstillabower/city-explorer-service/internal/observability"
)

var (
	// ErrUpstreamFailure is wrapped by every provider failure: transport, status, body or missing element.
	ErrUpstreamFailure = errors.New("upstream failure")

	// ErrMalformedResponse marks a body that could not be decoded or lacks the expected element.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrNoResults is returned when the geocoder matched nothing.
	ErrNoResults = errors.New("no results")
)

// StatusError reports a non-2xx provider response.
type StatusError struct {
	Provider   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s returned HTTP %d", ErrUpstreamFailure, e.Provider, e.StatusCode)
}

// Is makes errors.Is(err, ErrUpstreamFailure) hold for status errors.
func (e *StatusError) Is(target error) bool {
	return target == ErrUpstreamFailure
}

// baseClient holds what every provider client shares: one http.Client and one parsed base URL.
type baseClient struct {
	provider string
	apiKey   string
	baseURL  *url.URL
	client   *http.Client
}

func newBaseClient(provider, apiKey, apiURL string, timeout time.Duration) (baseClient, error) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return baseClient{}, fmt.Errorf("%s: invalid API URL: %w", provider, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return baseClient{}, fmt.Errorf("%s: invalid API URL %q: scheme and host required", provider, apiURL)
	}
	return baseClient{
		provider: provider,
		apiKey:   apiKey,
		baseURL:  u,
		// Timeout 0 keeps the net/http default of no client timeout.
		client: &http.Client{Timeout: timeout},
	}, nil
}

// getJSON performs one GET and decodes the body into out. It never retries.
func (c *baseClient) getJSON(ctx context.Context, u *url.URL, out interface{}) error {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		observability.RecordUpstreamCall(c.provider, "error", time.Since(start).Seconds())
		return fmt.Errorf("%w: %s: build request: %w", ErrUpstreamFailure, c.provider, c.redactURLError(err))
	}
	req.Header.Set("Accept", "application/json")
	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.RecordUpstreamCall(c.provider, "error", time.Since(start).Seconds())
		return fmt.Errorf("%w: %s: http request failed: %w", ErrUpstreamFailure, c.provider, c.redactURLError(err))
	}
	defer resp.Body.Close()

	observability.RecordUpstreamCall(c.provider, statusLabel(resp.StatusCode), time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Provider: c.provider, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: %w: %v", ErrUpstreamFailure, c.provider, ErrMalformedResponse, err)
	}
	return nil
}

// malformed builds the error for a decoded body that is missing the element a mapping needs.
func (c *baseClient) malformed(what string) error {
	return fmt.Errorf("%w: %s: %w: missing %s", ErrUpstreamFailure, c.provider, ErrMalformedResponse, what)
}

// redactURLError strips the API key from the URL embedded in *url.Error so errors are safe to log.
func (c *baseClient) redactURLError(err error) error {
	var ue *url.Error
	if c.apiKey == "" || !errors.As(err, &ue) {
		return err
	}
	redacted := *ue
	redacted.URL = strings.ReplaceAll(ue.URL, c.apiKey, "REDACTED")
	redacted.URL = strings.ReplaceAll(redacted.URL, url.QueryEscape(c.apiKey), "REDACTED")
	return &redacted
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
