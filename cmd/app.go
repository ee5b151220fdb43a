package cmd

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pricewatch/extractor/internal/config"
	"github.com/pricewatch/extractor/internal/engine"
	"github.com/pricewatch/extractor/internal/extract"
	"github.com/pricewatch/extractor/internal/fetch"
	"github.com/pricewatch/extractor/internal/logging"
	"github.com/pricewatch/extractor/internal/ratelimit"
	"github.com/pricewatch/extractor/internal/robots"
	"github.com/pricewatch/extractor/internal/urlsafety"
)

// app bundles the assembled engine with the resources that need teardown.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	engine   *engine.Engine
	limiter  *ratelimit.Limiter
	renderer *fetch.Renderer
}

// buildApp loads configuration and wires every engine collaborator.
func buildApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	validator := urlsafety.New(logger)

	robotsFetcher := robots.NewFetcher(
		time.Duration(cfg.Robots.FetchTimeoutSeconds)*time.Second,
		cfg.HTTP.UserAgent,
		validator,
		logger,
	)
	policyStore := robots.NewStore(robotsFetcher, logger,
		robots.WithTTL(cfg.RobotsTTL()),
		robots.WithMaxDomains(cfg.Robots.CacheMaxDomains),
	)

	fetcher, err := fetch.NewStaticFetcher(fetch.Config{
		UserAgent:      cfg.HTTP.UserAgent,
		Timeout:        cfg.RequestTimeout(),
		MaxRetries:     cfg.HTTP.MaxRetries,
		BackoffInitial: time.Duration(cfg.HTTP.BackoffInitialMs) * time.Millisecond,
		BackoffMax:     time.Duration(cfg.HTTP.BackoffMaxMs) * time.Millisecond,
		MaxPageBytes:   cfg.HTTP.MaxPageBytes,
	}, validator, logger)
	if err != nil {
		return nil, fmt.Errorf("init fetcher: %w", err)
	}

	var renderer *fetch.Renderer
	if cfg.Render.Enabled {
		renderer, err = fetch.NewRenderer(fetch.RenderConfig{
			UserAgent:   cfg.HTTP.UserAgent,
			Timeout:     time.Duration(cfg.Render.TimeoutSeconds) * time.Second,
			MaxParallel: cfg.Render.MaxParallel,
			DomainQPS:   cfg.Render.DomainQPS,
		}, logger)
		if errors.Is(err, fetch.ErrRendererDisabled) {
			renderer = nil
		} else if err != nil {
			logger.Warn("JS renderer unavailable, continuing without fallback", zap.Error(err))
			renderer = nil
		}
	}

	limiter := ratelimit.New(ratelimit.Config{
		DomainQPS:       cfg.RateLimit.DomainQPS,
		Burst:           cfg.RateLimit.Burst,
		CleanupInterval: cfg.RateLimit.CleanupInterval,
		IdleTTL:         cfg.RateLimit.IdleTTL,
	})

	deps := engine.Deps{
		Validator: validator,
		Policy:    policyStore,
		Fetcher:   fetcher,
		Limiter:   limiter,
		Locator:   extract.NewLocator(cfg.Extract.MinScore),
		Logger:    logger,
	}
	if renderer != nil {
		deps.Renderer = renderer
	}

	eng, err := engine.New(deps, engine.Options{
		UserAgent:     cfg.HTTP.UserAgent,
		RobotsEnabled: cfg.Robots.Enabled,
		RobotsStrict:  cfg.Robots.Strict,
		UseJSFallback: renderer != nil,
	})
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		engine:   eng,
		limiter:  limiter,
		renderer: renderer,
	}, nil
}

func (a *app) close() {
	a.limiter.Close()
	if a.renderer != nil {
		if err := a.renderer.Close(); err != nil {
			a.logger.Warn("renderer close failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
