// Package metrics exposes Prometheus collectors for the extraction engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExtractionsTotal counts finished extraction calls by strategy and outcome.
	ExtractionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricewatch_extractions_total",
		Help: "Total extraction calls, labeled by strategy and outcome.",
	}, []string{"strategy", "outcome"})

	// FetchRetriesTotal counts page fetch attempts beyond the first.
	FetchRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricewatch_fetch_retries_total",
		Help: "Total page fetch retries after transient failures.",
	})

	// RenderFallbacksTotal counts extractions escalated to the JS renderer.
	RenderFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricewatch_render_fallbacks_total",
		Help: "Total extractions that re-fetched through the JS renderer.",
	})

	// RobotsCacheTotal counts robots policy cache lookups by result.
	RobotsCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricewatch_robots_cache_total",
		Help: "Robots rule-set cache lookups, labeled hit or miss.",
	}, []string{"result"})

	// PolicyDenialsTotal counts extractions blocked by robots policy.
	PolicyDenialsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricewatch_policy_denials_total",
		Help: "Total extractions denied by robots policy.",
	})

	// UnsafeURLsTotal counts URLs rejected by the safety validator.
	UnsafeURLsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricewatch_unsafe_urls_total",
		Help: "Total URLs rejected before any network call.",
	})
)
