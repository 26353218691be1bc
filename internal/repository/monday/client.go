// Package monday implements the repository interfaces on top of the
// monday.com GraphQL v2 API.
//
// The API is eventually consistent, aggressively rate limited, and offers no
// transactions, unique constraints, or compare-and-swap. Everything in this
// package is shaped by those constraints: the client retries rate-limited
// calls with capped exponential backoff, and the inventory accessor verifies
// every write with a re-read because the API has been observed to accept a
// mutation and silently not apply it.
package monday

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/talmor/giftdesk/internal/metrics"
)

// Config tunes the transport client. Zero values fall back to the defaults
// used by the operational tooling: 7 retries, 250ms–5s backoff, 250ms
// jitter, 8s per-attempt timeout.
type Config struct {
	URL      string
	APIKey   string
	Retries  int // retries after the first attempt; total attempts = Retries+1
	MinDelay time.Duration
	MaxDelay time.Duration
	Jitter   time.Duration
	Timeout  time.Duration // per-attempt, enforced via context
}

func (c Config) withDefaults() Config {
	if c.URL == "" {
		c.URL = "https://api.monday.com/v2"
	}
	if c.Retries <= 0 {
		c.Retries = 7
	}
	if c.MinDelay <= 0 {
		c.MinDelay = 250 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 5 * time.Second
	}
	if c.Jitter < 0 {
		c.Jitter = 0
	}
	if c.Timeout <= 0 {
		c.Timeout = 8 * time.Second
	}
	return c
}

// APIError is a failed call to the board API. Status is the HTTP status for
// non-2xx responses; Messages holds GraphQL-level error messages from a 2xx
// response. Exactly one of the two is set.
type APIError struct {
	Status     int
	Messages   []string
	RetryAfter time.Duration // parsed Retry-After header, 0 if absent
	network    bool          // request never produced an HTTP response
}

func (e *APIError) Error() string {
	if len(e.Messages) > 0 {
		return "monday: " + strings.Join(e.Messages, "; ")
	}
	return fmt.Sprintf("monday: HTTP %d", e.Status)
}

// Substrings in GraphQL error messages that indicate rate limiting or
// complexity-budget exhaustion. Matched case-insensitively.
var retriablePatterns = []string{
	"rate limit",
	"too many requests",
	"complexity",
	"budget",
	"throttle",
}

var retriableStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Retriable reports whether the failure is worth retrying: a transient HTTP
// status, a network-level failure, or a GraphQL error that smells like rate
// limiting.
func (e *APIError) Retriable() bool {
	if e.network || retriableStatuses[e.Status] {
		return true
	}
	joined := strings.ToLower(strings.Join(e.Messages, " "))
	for _, p := range retriablePatterns {
		if strings.Contains(joined, p) {
			return true
		}
	}
	return false
}

// Client issues GraphQL requests to the board API with retry and backoff.
// It is stateless per call and safe for concurrent use.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		cfg: cfg.withDefaults(),
		// No Timeout on the http.Client itself — each attempt gets its own
		// deadline via context so the per-attempt budget is exact.
		http:   &http.Client{},
		logger: logger,
	}
}

// Request executes one GraphQL query/mutation, retrying retriable failures
// up to the configured attempt budget. On exhaustion the last error is
// returned verbatim.
func (c *Client) Request(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	var lastErr error

	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		if attempt > 0 {
			metrics.BoardRetries.Inc()
			if err := c.sleep(ctx, c.backoff(attempt, retryAfterOf(lastErr))); err != nil {
				return nil, err
			}
		}

		data, err := c.do(ctx, query, variables)
		if err == nil {
			metrics.BoardRequests.WithLabelValues("ok").Inc()
			return data, nil
		}
		lastErr = err

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.Retriable() {
			metrics.BoardRequests.WithLabelValues("fatal").Inc()
			return nil, err
		}
		c.logger.Warn("board request failed, will retry",
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()),
		)
	}

	metrics.BoardRequests.WithLabelValues("exhausted").Inc()
	return nil, lastErr
}

// do performs a single attempt with its own timeout.
func (c *Client) do(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return nil, fmt.Errorf("monday: encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("monday: building request: %w", err)
	}
	req.Header.Set("Authorization", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// Distinguish caller cancellation from a flaky connection: the
		// former must not be retried.
		if ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled) {
			return nil, err
		}
		return nil, &APIError{network: true, Messages: []string{err.Error()}}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &APIError{
			Status:     resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var payload struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &APIError{network: true, Messages: []string{"decoding response: " + err.Error()}}
	}

	if len(payload.Errors) > 0 {
		msgs := make([]string, 0, len(payload.Errors))
		for _, e := range payload.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, &APIError{Messages: msgs}
	}

	return payload.Data, nil
}

// backoff computes the delay before the given attempt (attempt >= 1).
// A server-provided Retry-After wins over the exponential term, but both
// are clamped to [MinDelay, MaxDelay] before jitter is added.
func (c *Client) backoff(attempt int, retryAfter time.Duration) time.Duration {
	d := c.cfg.MinDelay << (attempt - 1)
	if retryAfter > 0 {
		d = retryAfter
	}
	if d < c.cfg.MinDelay {
		d = c.cfg.MinDelay
	}
	if d > c.cfg.MaxDelay {
		d = c.cfg.MaxDelay
	}
	if c.cfg.Jitter > 0 {
		d += rand.N(c.cfg.Jitter)
	}
	return d
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func retryAfterOf(err error) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.RetryAfter
	}
	return 0
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
