// Package harvest pulls bibliographic records from upstream sources
// (OpenAlex, Crossref, Unpaywall, Sucupira) into the raw store.
//
// Every remote source shares one fetch contract, implemented by
// HTTPClient: GET with exponential backoff capped at 15 seconds, up to
// five attempts on timeouts and 5xx responses. 4xx responses and
// malformed URLs are not retried and surface as PermanentFetchError.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ocabr/observatory/internal/domain"
	"github.com/ocabr/observatory/internal/observability"
)

const (
	defaultTimeout    = 2 * time.Second
	defaultMaxRetries = 5
	maxBackoff        = 15 * time.Second
)

// HTTPClientConfig configures the fetch behaviour for one upstream source.
type HTTPClientConfig struct {
	// Source labels errors and metrics emitted by this client.
	Source string
	// Timeout is the per-request timeout. Defaults to 2 seconds.
	Timeout time.Duration
	// RateLimit is the maximum requests per second. Zero disables limiting.
	RateLimit float64
	// BurstSize is the rate limiter burst. Defaults to 1 when limiting is on.
	BurstSize int
	// MaxAttempts bounds retries for one request. Defaults to 5.
	MaxAttempts int
	// UserAgent is sent with every request.
	UserAgent string
}

func (c *HTTPClientConfig) applyDefaults() {
	if c.Source == "" {
		c.Source = "upstream"
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxRetries
	}
	if c.RateLimit > 0 && c.BurstSize <= 0 {
		c.BurstSize = 1
	}
	if c.UserAgent == "" {
		c.UserAgent = "observatory-harvester/1.0"
	}
}

// HTTPClient wraps http.Client with rate limiting, retry with capped
// exponential backoff, and fetch-error classification.
type HTTPClient struct {
	client  *http.Client
	config  HTTPClientConfig
	limiter *rate.Limiter
	logger  zerolog.Logger
	metrics *observability.Metrics

	// backoffUnit scales the exponential backoff. One second in
	// production; shrunk in tests.
	backoffUnit time.Duration
}

// NewHTTPClient creates a client for one upstream source.
func NewHTTPClient(cfg HTTPClientConfig, logger zerolog.Logger, metrics *observability.Metrics) *HTTPClient {
	cfg.applyDefaults()

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.BurstSize)
	}

	return &HTTPClient{
		client:      &http.Client{Timeout: cfg.Timeout},
		config:      cfg,
		limiter:     limiter,
		logger:      logger.With().Str("component", "harvest-http").Str("source", cfg.Source).Logger(),
		metrics:     metrics,
		backoffUnit: time.Second,
	}
}

// Get fetches rawURL and returns the response body. Retries transient
// failures with backoff wait = min(15s, 2^attempt seconds); classifies
// everything else as permanent. The returned body is fully read and the
// connection released.
func (c *HTTPClient) Get(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return nil, domain.NewPermanentFetchError(c.config.Source, 0, fmt.Errorf("malformed url %q: %w", rawURL, err))
	}

	var lastErr error
	for attempt := 0; attempt < c.config.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := c.waitBackoff(ctx, attempt, lastErr); err != nil {
				return nil, err
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limiter wait: %w", err)
			}
		}

		body, err := c.doOnce(ctx, rawURL, header)
		if err == nil {
			return body, nil
		}
		if errors.Is(err, domain.ErrFetchPermanent) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		c.logger.Warn().Err(err).Int("attempt", attempt+1).Str("url", rawURL).Msg("fetch attempt failed")
	}

	if c.metrics != nil {
		c.metrics.RecordHarvestFailure(c.config.Source)
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", c.config.MaxAttempts, lastErr)
}

// GetJSON fetches rawURL with an Accept: application/json header.
func (c *HTTPClient) GetJSON(ctx context.Context, rawURL string) ([]byte, error) {
	header := http.Header{}
	header.Set("Accept", "application/json")
	return c.Get(ctx, rawURL, header)
}

func (c *HTTPClient) doOnce(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, domain.NewPermanentFetchError(c.config.Source, 0, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", c.config.UserAgent)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordSourceRequestFailed(c.config.Source, req.URL.Path, classifyTransportError(err))
		}
		return nil, c.classifyTransport(err)
	}
	defer resp.Body.Close()

	if c.metrics != nil {
		c.metrics.RecordSourceRequest(c.config.Source, req.URL.Path, time.Since(start).Seconds())
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, 50<<20))
		if err != nil {
			return nil, domain.NewRetryableFetchError(c.config.Source, resp.StatusCode, fmt.Errorf("read body: %w", err))
		}
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		if c.metrics != nil {
			c.metrics.RecordSourceRateLimited(c.config.Source)
		}
		return nil, domain.NewRateLimitError(c.config.Source, parseRetryAfter(resp.Header.Get("Retry-After")))
	case resp.StatusCode >= 500:
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck
		return nil, domain.NewRetryableFetchError(c.config.Source, resp.StatusCode, fmt.Errorf("server error"))
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, domain.NewPermanentFetchError(c.config.Source, resp.StatusCode, fmt.Errorf("unexpected status: %s", truncate(string(body), 200)))
	}
}

// waitBackoff sleeps min(15s, 2^attempt seconds) before the next try,
// honoring a larger Retry-After hint when the previous failure was a
// rate limit response.
func (c *HTTPClient) waitBackoff(ctx context.Context, attempt int, lastErr error) error {
	wait := time.Duration(1<<uint(attempt)) * c.backoffUnit
	if ceiling := maxBackoff / time.Second * c.backoffUnit; wait > ceiling {
		wait = ceiling
	}

	var rle *domain.RateLimitError
	if errors.As(lastErr, &rle) && rle.RetryAfter > wait {
		wait = rle.RetryAfter
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *HTTPClient) classifyTransport(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.NewRetryableFetchError(c.config.Source, 0, err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if errors.Is(urlErr.Err, context.Canceled) {
			return urlErr.Err
		}
		// Connection refused, DNS failures and the like are worth retrying.
		return domain.NewRetryableFetchError(c.config.Source, 0, err)
	}
	return domain.NewRetryableFetchError(c.config.Source, 0, err)
}

func classifyTransportError(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	return "transport"
}

// parseRetryAfter handles both delta-seconds and HTTP-date forms.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
