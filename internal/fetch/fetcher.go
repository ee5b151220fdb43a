package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/pricewatch/extractor/internal/metrics"
)

// Config controls static fetch behavior.
type Config struct {
	UserAgent      string
	Timeout        time.Duration
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	MaxPageBytes   int64
}

// URLValidator gates request targets, including redirect hops.
type URLValidator interface {
	Validate(ctx context.Context, rawURL string) error
}

// StaticFetcher retrieves pages over plain HTTP using a colly collector,
// retrying transient failures with exponential backoff.
type StaticFetcher struct {
	base      *colly.Collector
	transport http.RoundTripper
	validator URLValidator
	cfg       Config
	retry     *ExponentialRetryPolicy
	logger    *zap.Logger
}

// NewStaticFetcher builds a fetcher. Robots compliance is enforced upstream
// by the orchestrator, so the collector's own robots handling is disabled.
// The validator, when non-nil, re-checks every redirect hop before it is
// followed; pass nil only when the caller gates targets itself.
func NewStaticFetcher(cfg Config, validator URLValidator, logger *zap.Logger) (*StaticFetcher, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxPageBytes <= 0 {
		cfg.MaxPageBytes = 5 * 1024 * 1024
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []colly.CollectorOption{
		colly.UserAgent(cfg.UserAgent),
		colly.MaxBodySize(int(cfg.MaxPageBytes)),
		colly.IgnoreRobotsTxt(),
	}
	base := colly.NewCollector(opts...)
	base.AllowURLRevisit = true
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ForceAttemptHTTP2:     true,
	}
	base.WithTransport(transport)
	base.SetRequestTimeout(cfg.Timeout)

	return &StaticFetcher{
		base:      base,
		transport: transport,
		validator: validator,
		cfg:       cfg,
		retry:     NewExponentialRetryPolicy(cfg.MaxRetries, cfg.BackoffInitial, cfg.BackoffMax),
		logger:    logger,
	}, nil
}

// Fetch retrieves rawURL, retrying transient failures up to the configured
// bound. 4xx responses are terminal and never retried.
func (f *StaticFetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	for attempt := 0; ; attempt++ {
		page, err := f.fetchOnce(ctx, rawURL)
		if err == nil {
			return page, nil
		}
		if !f.retry.ShouldRetry(err, attempt) {
			return Page{}, err
		}
		metrics.FetchRetriesTotal.Inc()
		backoff := f.retry.Backoff(attempt)
		f.logger.Debug("retrying fetch",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		if serr := sleep(ctx, backoff); serr != nil {
			return Page{}, serr
		}
	}
}

type fetchResult struct {
	page Page
	err  error
}

func (f *StaticFetcher) fetchOnce(ctx context.Context, rawURL string) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	collector := f.base.Clone()
	// The shared transport is wrapped per fetch so the caller's cancellation
	// reaches the in-flight request, not just its deadline.
	collector.WithTransport(&contextTransport{ctx: ctx, base: f.transport})
	collector.SetRedirectHandler(f.checkRedirect)
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < f.cfg.Timeout {
			collector.SetRequestTimeout(remaining)
		}
	}

	start := time.Now()
	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() { resultCh <- res })
	}

	collector.OnResponse(func(r *colly.Response) {
		headers := http.Header{}
		if r.Headers != nil {
			for k, v := range *r.Headers {
				cp := make([]string, len(v))
				copy(cp, v)
				headers[k] = cp
			}
		}
		send(fetchResult{page: Page{
			URL:        rawURL,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    headers,
			Body:       append([]byte{}, r.Body...),
			Duration:   time.Since(start),
		}})
	})

	collector.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		send(fetchResult{err: classify(status, err)})
	})

	if err := collector.Visit(rawURL); err != nil {
		send(fetchResult{err: classify(0, err)})
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return Page{}, err
		}
		return res.page, res.err
	default:
		return Page{}, classify(0, errors.New("fetch produced no result"))
	}
}

// checkRedirect re-validates each redirect hop before it is followed, so a
// page that 302s toward an internal address is stopped at the gate.
func (f *StaticFetcher) checkRedirect(req *http.Request, _ []*http.Request) error {
	if f.validator == nil {
		return nil
	}
	if err := f.validator.Validate(req.Context(), req.URL.String()); err != nil {
		return fmt.Errorf("redirect target rejected: %w", err)
	}
	return nil
}

// contextTransport reattaches a caller context to every outgoing request so
// cancellation aborts the connection immediately.
type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t *contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}

// classify wraps a raw transport or HTTP failure into a typed *Error.
func classify(status int, err error) error {
	if err == nil {
		err = errors.New("unknown fetch error")
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Err: err}
	case status > 0:
		return &Error{Kind: KindHTTPError, StatusCode: status, Err: err}
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return &Error{Kind: KindTimeout, Err: err}
		}
		return &Error{Kind: KindNetworkError, Err: err}
	}
}
