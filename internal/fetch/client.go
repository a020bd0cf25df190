package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultBaseURL serves the CBOE delayed-quote chain exports. Index
// tickers carry an underscore prefix, e.g. "_SPX".
const DefaultBaseURL = "https://cdn.cboe.com/api/global/delayed_quotes/options"

// Client interface for testability
type Client interface {
	FetchChain(ctx context.Context, ticker string, dest io.Writer) (int64, error)
}

type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	retryCount int
	retryDelay time.Duration
	logger     *zap.Logger
}

func NewClient(baseURL string, ratePerSec int, timeout, retryDelay time.Duration, retryCount int, logger *zap.Logger) *HTTPClient {
	transport := &http.Transport{
		MaxIdleConns:       100,
		MaxConnsPerHost:    10,
		IdleConnTimeout:    90 * time.Second,
		DisableCompression: false,
	}

	return &HTTPClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec*2),
		retryCount: retryCount,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// FetchChain downloads the current chain CSV for ticker into dest.
// Transient failures are retried with exponential backoff; nothing is
// written to dest until a 200 response arrives.
func (c *HTTPClient) FetchChain(ctx context.Context, ticker string, dest io.Writer) (int64, error) {
	// Wait for rate limiter
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limiter: %w", err)
	}

	url := fmt.Sprintf("%s/%s.csv", c.baseURL, ticker)
	c.logger.Debug("requesting", zap.String("url", url))

	var lastErr error
	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1)) // Exponential backoff
			c.logger.Debug("retrying request", zap.Int("attempt", attempt), zap.Duration("delay", delay))

			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return 0, fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Accept", "text/csv")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			_ = resp.Body.Close()
			return 0, ErrNotFound

		case resp.StatusCode == http.StatusTooManyRequests:
			_ = resp.Body.Close()
			lastErr = ErrRateLimited
			continue

		case resp.StatusCode >= 500:
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue

		case resp.StatusCode != http.StatusOK:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			_ = resp.Body.Close()
			return 0, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
		}

		size, err := io.Copy(dest, resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return 0, fmt.Errorf("streaming chain data: %w", err)
		}
		return size, nil
	}

	return 0, fmt.Errorf("max retries exceeded: %w", lastErr)
}
