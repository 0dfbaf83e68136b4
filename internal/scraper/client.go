package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"syscall"
	"time"
)

// browserUserAgent mimics a recent desktop browser; many sites serve
// degraded or empty markup to obvious bots.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// statusError is an HTTP-level failure. Never retried.
type statusError struct {
	code   int
	status string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP error %d: %s", e.code, e.status)
}

// Client is an HTTP client tuned for page fetching: pooled connections,
// redirect cap, and a retry loop with linear backoff for transient
// network failures.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	retries    int
	retryDelay time.Duration
}

// NewClient creates a fetch client. timeout bounds each individual
// attempt; retries is the number of extra attempts after the first,
// and retryDelay drives the backoff between them.
func NewClient(timeout time.Duration, retries int, retryDelay time.Duration) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects (max 10)")
				}
				return nil
			},
		},
		timeout:    timeout,
		retries:    retries,
		retryDelay: retryDelay,
	}
}

// Get fetches a URL once with browser-like headers. The context should
// already carry the per-attempt timeout.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	return c.httpClient.Do(req)
}

// FetchPage fetches a URL and returns its body (capped at maxBody
// bytes) and content type. A transient network failure is retried up to
// c.retries times after the initial attempt, with linear backoff
// (retryDelay * attempt). HTTP error statuses are not transient and
// fail immediately. The retry policy is an explicit loop, keeping stack
// depth bounded and attempts strictly sequential.
func (c *Client) FetchPage(ctx context.Context, url string, maxBody int64) ([]byte, string, error) {
	var lastErr error

	attempts := c.retries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		body, contentType, err := c.fetchOnce(ctx, url, maxBody)
		if err == nil {
			return body, contentType, nil
		}
		if !isTransient(err) || ctx.Err() != nil {
			return nil, "", err
		}
		lastErr = err

		if attempt < attempts {
			delay := c.retryDelay * time.Duration(attempt)
			log.Printf("🔁 [SCRAPER] Retry %d/%d for %s in %s: %v", attempt, c.retries, url, delay, err)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, "", ctx.Err()
			}
		}
	}

	return nil, "", fmt.Errorf("all %d attempts failed: %w", attempts, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, url string, maxBody int64) ([]byte, string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.Get(attemptCtx, url)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, "", &statusError{code: resp.StatusCode, status: resp.Status}
	}

	body, err := readLimited(resp.Body, maxBody)
	if err != nil {
		return nil, "", err
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// isTransient reports whether a fetch error is worth retrying: request
// timeouts, connection resets and refusals, and other temporary
// network conditions.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// IsStatusError reports whether err is an HTTP status failure and
// returns its code.
func IsStatusError(err error) (int, bool) {
	var se *statusError
	if errors.As(err, &se) {
		return se.code, true
	}
	return 0, false
}
