// Package checks provides HTTP/HTTPS monitoring functionality.
package checks

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"webmonitor/internal/config"
	"webmonitor/internal/storage"

	"github.com/rs/zerolog/log"
)

// maxBodyBytes caps how much of a response body is read before timing stops.
const maxBodyBytes = 10 << 20

// HTTPChecker implements HTTP/HTTPS monitoring checks.
type HTTPChecker struct {
	*BaseChecker
	client   *http.Client
	defaults config.HTTPDefaultsConfig
}

// NewHTTPChecker creates a new HTTP checker instance.
//
// Parameters:
//   - cfg: HTTP check defaults
//
// Returns:
//   - *HTTPChecker: Initialized HTTP checker
func NewHTTPChecker(cfg config.HTTPDefaultsConfig) *HTTPChecker {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: !cfg.VerifySSL} //nolint:gosec // opt-in via config

	client := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= cfg.MaxRedirects {
				return errTooManyRedirects
			}
			return nil
		},
	}

	return &HTTPChecker{
		BaseChecker: NewBaseChecker(cfg.DegradedAfter),
		client:      client,
		defaults:    cfg,
	}
}

// Type returns the checker type identifier.
//
// Returns:
//   - string: Type identifier "http"
func (h *HTTPChecker) Type() string {
	return "http"
}

// Check executes an HTTP/HTTPS GET against the site URL.
//
// Timeouts and connection failures are retried up to the configured
// number of attempts with a pause in between. Every other outcome is
// final. A site that is down is a valid result, not an error; an error
// is only returned when ctx is cancelled.
//
// Parameters:
//   - ctx: Context for cancellation
//   - site: Site to check
//
// Returns:
//   - *Result: Classified outcome of the check
//   - error: ctx.Err() if the check was cancelled
func (h *HTTPChecker) Check(ctx context.Context, site *storage.Site) (*Result, error) {
	attempts := max(h.defaults.Attempts, 1)

	var result *Result
	for attempt := 1; attempt <= attempts; attempt++ {
		var retryable bool
		result, retryable = h.attempt(ctx, site.URL)

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !retryable || attempt == attempts {
			break
		}

		log.Debug().
			Int64("site_id", site.ID).
			Int("attempt", attempt).
			Str("error", result.Error).
			Msg("Check attempt failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(h.defaults.RetryPause):
		}
	}

	return result, nil
}

// attempt performs one request and reports whether a failure may be retried.
func (h *HTTPChecker) attempt(ctx context.Context, target string) (*Result, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return h.CreateErrorResult(ErrTextUnknownPrefix + fmt.Sprint(err)), false
	}
	req.Header.Set("User-Agent", h.defaults.UserAgent)

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		desc, retryable := h.DescribeError(err)
		return h.CreateErrorResult(desc), retryable
	}
	defer resp.Body.Close()

	// Elapsed time includes the body download
	if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes)); err != nil {
		desc, retryable := h.DescribeError(err)
		return h.CreateErrorResult(desc), retryable
	}

	return h.CreateResponseResult(resp.StatusCode, time.Since(start)), false
}
