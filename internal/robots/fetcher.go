package robots

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const (
	maxRedirects     = 3
	maxRobotsBody    = 1 << 20
	defaultFetchWait = 5 * time.Second
)

// URLValidator gates every request target, including redirect hops.
type URLValidator interface {
	Validate(ctx context.Context, rawURL string) error
}

// Fetcher retrieves robots.txt for a host and classifies the outcome.
type Fetcher struct {
	client    *http.Client
	userAgent string
	logger    *zap.Logger
}

// NewFetcher builds a Fetcher. Redirects are followed up to three hops and
// each hop is re-checked by the validator before it is requested.
func NewFetcher(timeout time.Duration, userAgent string, validator URLValidator, logger *zap.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = defaultFetchWait
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("robots redirect limit (%d) exceeded", maxRedirects)
				}
				if validator != nil {
					if err := validator.Validate(req.Context(), req.URL.String()); err != nil {
						return fmt.Errorf("robots redirect target rejected: %w", err)
					}
				}
				return nil
			},
		},
		userAgent: userAgent,
		logger:    logger,
	}
}

// Fetch retrieves scheme://host/robots.txt. A 404 is reported as
// StatusNotFound with no error; network failures, timeouts, and 5xx are
// reported as StatusFetchError. The error return carries detail for logging
// only and is never fatal to the caller.
func (f *Fetcher) Fetch(ctx context.Context, scheme, host string) (string, SourceStatus, error) {
	robotsURL := url.URL{Scheme: scheme, Host: host, Path: "/robots.txt"}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		return "", StatusFetchError, fmt.Errorf("new robots request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", StatusFetchError, fmt.Errorf("fetch robots: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			f.logger.Debug("close robots response body", zap.Error(cerr))
		}
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", StatusNotFound, nil
	case resp.StatusCode >= 500:
		return "", StatusFetchError, fmt.Errorf("robots fetch status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		// Other 4xx responses mean no usable policy; treat like absence.
		return "", StatusNotFound, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBody))
	if err != nil {
		return "", StatusFetchError, fmt.Errorf("read robots body: %w", err)
	}
	return string(body), StatusFound, nil
}
