package robots

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/pricewatch/extractor/internal/metrics"
)

const (
	// DefaultTTL is how long a cached rule set stays fresh.
	DefaultTTL = 24 * time.Hour
	// DefaultMaxDomains caps the number of cached domains.
	DefaultMaxDomains = 10000
)

// RuleFetcher retrieves raw robots.txt for a host.
type RuleFetcher interface {
	Fetch(ctx context.Context, scheme, host string) (string, SourceStatus, error)
}

type cacheEntry struct {
	rules     *RuleSet
	expiresAt time.Time
}

// Store is an in-memory, TTL-based cache of parsed rule sets keyed by domain.
// It guarantees at most one in-flight robots fetch per domain: concurrent
// callers for the same uncached domain coalesce onto a single fetch. Entries
// are replaced atomically, never mutated in place.
type Store struct {
	fetcher    RuleFetcher
	ttl        time.Duration
	maxDomains int
	logger     *zap.Logger
	now        func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
	flight  singleflight.Group
}

// StoreOption customizes a Store.
type StoreOption func(*Store)

// WithTTL overrides the cache TTL.
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithMaxDomains overrides the domain cap.
func WithMaxDomains(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.maxDomains = n
		}
	}
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore builds a Store around the given fetcher.
func NewStore(fetcher RuleFetcher, logger *zap.Logger, opts ...StoreOption) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		fetcher:    fetcher,
		ttl:        DefaultTTL,
		maxDomains: DefaultMaxDomains,
		logger:     logger,
		now:        time.Now,
		entries:    make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the cached rule set for host, fetching and parsing it on a miss
// or after expiry. The host may include a port for the fetch; the cache key is
// the lowercased hostname. Callers that cancel while a shared fetch is in
// flight get their context error, but the fetch itself runs to completion and
// populates the cache for everyone else.
func (s *Store) Get(ctx context.Context, scheme, host string) (*RuleSet, error) {
	key := CacheKey(host)

	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if ok && s.now().Before(entry.expiresAt) {
		metrics.RobotsCacheTotal.WithLabelValues("hit").Inc()
		return entry.rules, nil
	}
	metrics.RobotsCacheTotal.WithLabelValues("miss").Inc()

	ch := s.flight.DoChan(key, func() (any, error) {
		// Re-check under the flight: another caller may have refreshed the
		// entry between our miss and this closure running.
		s.mu.RLock()
		entry, ok := s.entries[key]
		s.mu.RUnlock()
		if ok && s.now().Before(entry.expiresAt) {
			return entry.rules, nil
		}
		// The fetch is detached from any single caller's lifetime; the HTTP
		// client's own timeout bounds it.
		return s.refresh(context.WithoutCancel(ctx), scheme, host, key)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		rules, ok := res.Val.(*RuleSet)
		if !ok {
			return nil, fmt.Errorf("robots cache type mismatch: %T", res.Val)
		}
		return rules, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Store) refresh(ctx context.Context, scheme, host, key string) (*RuleSet, error) {
	raw, status, err := s.fetcher.Fetch(ctx, scheme, host)

	var rules *RuleSet
	switch status {
	case StatusFound:
		rules = Parse(raw)
	default:
		// notFound and fetchError both yield an empty rule set; the caller
		// decides fail-open vs fail-closed from the Status field.
		rules = &RuleSet{Status: status}
		if err != nil {
			s.logger.Warn("robots fetch failed",
				zap.String("domain", key),
				zap.String("status", string(status)),
				zap.Error(err),
			)
		}
	}
	rules.Status = status
	rules.FetchedAt = s.now()

	s.mu.Lock()
	s.entries[key] = cacheEntry{rules: rules, expiresAt: rules.FetchedAt.Add(s.ttl)}
	s.evictLocked()
	s.mu.Unlock()

	if rules.CrawlDelaySeconds > 0 {
		s.logger.Debug("robots crawl-delay parsed but not enforced",
			zap.String("domain", key),
			zap.Float64("crawl_delay_seconds", rules.CrawlDelaySeconds),
		)
	}
	return rules, nil
}

// evictLocked drops the entries with the oldest FetchedAt while over the cap.
func (s *Store) evictLocked() {
	for len(s.entries) > s.maxDomains {
		var (
			oldestKey string
			oldestAt  time.Time
		)
		for key, entry := range s.entries {
			if oldestKey == "" || entry.rules.FetchedAt.Before(oldestAt) {
				oldestKey = key
				oldestAt = entry.rules.FetchedAt
			}
		}
		delete(s.entries, oldestKey)
	}
}

// Len reports the number of cached domains.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// CacheKey normalizes a host to its cache key: lowercased, port stripped.
func CacheKey(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}
