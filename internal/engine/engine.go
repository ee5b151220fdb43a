// Package engine orchestrates a single extraction call: URL safety check,
// robots policy decision, politeness pacing, page fetch, and the ordered
// strategy chain (selector override, structured data, heuristic locator,
// JS-rendered retry).
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/pricewatch/extractor/internal/extract"
	"github.com/pricewatch/extractor/internal/fetch"
	"github.com/pricewatch/extractor/internal/metrics"
	"github.com/pricewatch/extractor/internal/robots"
)

var (
	// ErrPolicyDenied means robots rules disallow the URL. Callers must not
	// bypass it or retry.
	ErrPolicyDenied = errors.New("blocked by robots policy")
	// ErrPolicyUnavailable means the policy could not be determined and
	// strict mode forbids proceeding without it.
	ErrPolicyUnavailable = errors.New("robots policy unavailable")
)

// Strategy names reported in results.
const (
	StrategySelector = "selector"
	StrategyNone     = "none"
)

// URLValidator rejects URLs that must never be fetched.
type URLValidator interface {
	Validate(ctx context.Context, rawURL string) error
}

// PolicyStore returns the cached robots rule set for a host.
type PolicyStore interface {
	Get(ctx context.Context, scheme, host string) (*robots.RuleSet, error)
}

// PageFetcher retrieves a page statically.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (fetch.Page, error)
}

// PageRenderer retrieves a page through the JS-rendering path.
type PageRenderer interface {
	Render(ctx context.Context, rawURL string) (fetch.Page, error)
}

// DomainLimiter paces outbound page fetches per domain.
type DomainLimiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Request is one extraction call. Selector, when set, is a caller-supplied
// CSS override attempted before every other strategy.
type Request struct {
	URL      string
	Selector string
}

// Result is the outcome of a completed extraction call. A nil Price with
// Strategy "none" is a valid negative result, not an error.
type Result struct {
	Price    *extract.Price
	Title    string
	Strategy string
	UsedJS   bool
}

// Options tunes per-call engine behavior.
type Options struct {
	UserAgent     string
	RobotsEnabled bool
	RobotsStrict  bool
	UseJSFallback bool
}

// Deps carries the engine's collaborators. Renderer and Limiter are optional.
type Deps struct {
	Validator URLValidator
	Policy    PolicyStore
	Fetcher   PageFetcher
	Renderer  PageRenderer
	Limiter   DomainLimiter
	Locator   *extract.Locator
	Logger    *zap.Logger
}

// Engine is the sole public entry point of the extraction core.
type Engine struct {
	deps Deps
	opts Options
}

// New validates dependencies and builds an Engine.
func New(deps Deps, opts Options) (*Engine, error) {
	if deps.Validator == nil {
		return nil, errors.New("engine: validator is required")
	}
	if deps.Fetcher == nil {
		return nil, errors.New("engine: fetcher is required")
	}
	if opts.RobotsEnabled && deps.Policy == nil {
		return nil, errors.New("engine: policy store is required when robots checks are enabled")
	}
	if deps.Locator == nil {
		deps.Locator = extract.NewLocator(extract.DefaultMinScore)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Engine{deps: deps, opts: opts}, nil
}

// Extract runs the state machine for one URL. Policy and network failures
// return typed errors; extraction misses return a Result with Strategy "none".
func (e *Engine) Extract(ctx context.Context, req Request) (Result, error) {
	if err := e.deps.Validator.Validate(ctx, req.URL); err != nil {
		metrics.UnsafeURLsTotal.Inc()
		metrics.ExtractionsTotal.WithLabelValues(StrategyNone, "error").Inc()
		return Result{}, err
	}

	parsed, err := url.Parse(req.URL)
	if err != nil {
		return Result{}, fmt.Errorf("parse url: %w", err)
	}

	if e.opts.RobotsEnabled {
		if err := e.checkPolicy(ctx, parsed); err != nil {
			metrics.ExtractionsTotal.WithLabelValues(StrategyNone, "denied").Inc()
			return Result{}, err
		}
	}

	if e.deps.Limiter != nil {
		if err := e.deps.Limiter.Wait(ctx, req.URL); err != nil {
			return Result{}, err
		}
	}

	page, err := e.deps.Fetcher.Fetch(ctx, req.URL)
	if err != nil {
		metrics.ExtractionsTotal.WithLabelValues(StrategyNone, "error").Inc()
		return Result{}, fmt.Errorf("fetch page: %w", err)
	}

	result, found := e.extractFromPage(page, req.Selector)
	if !found && e.opts.UseJSFallback && e.deps.Renderer != nil {
		rendered, renderErr := e.deps.Renderer.Render(ctx, req.URL)
		switch {
		case errors.Is(renderErr, fetch.ErrRendererDisabled):
			// fallback unavailable, keep the static outcome
		case renderErr != nil:
			metrics.ExtractionsTotal.WithLabelValues(StrategyNone, "error").Inc()
			return Result{}, fmt.Errorf("render page: %w", renderErr)
		default:
			metrics.RenderFallbacksTotal.Inc()
			result, found = e.extractFromPage(rendered, req.Selector)
		}
	}

	outcome := "notFound"
	if found {
		outcome = "found"
	}
	metrics.ExtractionsTotal.WithLabelValues(result.Strategy, outcome).Inc()

	e.deps.Logger.Info("extraction finished",
		zap.String("strategy", result.Strategy),
		zap.Bool("found", found),
		zap.Bool("used_js", result.UsedJS),
	)
	return result, nil
}

// checkPolicy evaluates robots rules for the URL's path. Indeterminate policy
// (robots fetch failed) proceeds under fail-open unless strict mode is on.
func (e *Engine) checkPolicy(ctx context.Context, u *url.URL) error {
	rules, err := e.deps.Policy.Get(ctx, u.Scheme, u.Host)
	if err != nil {
		return fmt.Errorf("robots policy lookup: %w", err)
	}

	if rules.Status == robots.StatusFetchError && e.opts.RobotsStrict {
		return fmt.Errorf("%w: robots.txt for %s could not be fetched", ErrPolicyUnavailable, u.Hostname())
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	decision := rules.IsAllowed(path, e.opts.UserAgent)
	if !decision.Allowed {
		metrics.PolicyDenialsTotal.Inc()
		return fmt.Errorf("%w: %s (%s)", ErrPolicyDenied, path, decision.Reason)
	}
	if decision.Reason == robots.ReasonPolicyCheckFailedOpen {
		e.deps.Logger.Warn("robots policy indeterminate, proceeding fail-open",
			zap.String("domain", robots.CacheKey(u.Host)),
		)
	}
	return nil
}

// extractFromPage runs the strategy chain over one fetched page.
func (e *Engine) extractFromPage(page fetch.Page, selector string) (Result, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		e.deps.Logger.Warn("html parse failed", zap.Error(err))
		return Result{Strategy: StrategyNone, UsedJS: page.UsedJS}, false
	}

	result := Result{
		Title:    extract.Title(doc),
		Strategy: StrategyNone,
		UsedJS:   page.UsedJS,
	}

	if selector != "" {
		if price, ok := extract.BySelector(doc, selector); ok {
			result.Price = &price
			result.Strategy = StrategySelector
			return result, true
		}
	}
	if price, strategy, ok := extract.Structured(doc); ok {
		result.Price = &price
		result.Strategy = strategy
		return result, true
	}
	if candidate, ok := e.deps.Locator.Locate(doc); ok {
		result.Price = &extract.Price{Amount: candidate.Value, Currency: candidate.Currency}
		result.Strategy = extract.StrategyHeuristic
		return result, true
	}
	return result, false
}
