package robots

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pricewatch/extractor/internal/metrics"
)

type countingFetcher struct {
	calls  int32
	raw    string
	status SourceStatus
	block  chan struct{}
}

func (f *countingFetcher) Fetch(_ context.Context, _, _ string) (string, SourceStatus, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.block != nil {
		<-f.block
	}
	status := f.status
	if status == "" {
		status = StatusFound
	}
	return f.raw, status, nil
}

func (f *countingFetcher) count() int32 { return atomic.LoadInt32(&f.calls) }

func TestStoreCachesRuleSets(t *testing.T) {
	fetcher := &countingFetcher{raw: "User-agent: *\nDisallow: /x"}
	store := NewStore(fetcher, zap.NewNop())

	ctx := context.Background()
	first, err := store.Get(ctx, "https", "Shop.Example.COM")
	require.NoError(t, err)
	require.False(t, first.IsAllowed("/x/1", "bot").Allowed)

	// Case and port differences hit the same entry.
	second, err := store.Get(ctx, "https", "shop.example.com:443")
	require.NoError(t, err)
	require.Same(t, first, second)
	require.EqualValues(t, 1, fetcher.count())
}

func TestStoreConcurrentLookupsSingleFetch(t *testing.T) {
	fetcher := &countingFetcher{
		raw:   "User-agent: *\nDisallow: /y",
		block: make(chan struct{}),
	}
	store := NewStore(fetcher, zap.NewNop())

	const callers = 16
	var wg sync.WaitGroup
	results := make([]*RuleSet, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rs, err := store.Get(context.Background(), "https", "example.com")
			require.NoError(t, err)
			results[i] = rs
		}(i)
	}

	// Give all goroutines time to pile up behind the single flight.
	time.Sleep(50 * time.Millisecond)
	close(fetcher.block)
	wg.Wait()

	require.EqualValues(t, 1, fetcher.count())
	for _, rs := range results {
		require.Same(t, results[0], rs)
	}
}

func TestStoreRecordsCacheHitsAndMisses(t *testing.T) {
	hits := metrics.RobotsCacheTotal.WithLabelValues("hit")
	misses := metrics.RobotsCacheTotal.WithLabelValues("miss")
	hitsBefore := testutil.ToFloat64(hits)
	missesBefore := testutil.ToFloat64(misses)

	fetcher := &countingFetcher{raw: "User-agent: *\nDisallow: /m"}
	store := NewStore(fetcher, zap.NewNop())

	ctx := context.Background()
	_, err := store.Get(ctx, "https", "metrics.example")
	require.NoError(t, err)
	_, err = store.Get(ctx, "https", "metrics.example")
	require.NoError(t, err)

	require.Equal(t, missesBefore+1, testutil.ToFloat64(misses))
	require.Equal(t, hitsBefore+1, testutil.ToFloat64(hits))
}

func TestStoreExpiredEntryTriggersRefetch(t *testing.T) {
	fetcher := &countingFetcher{raw: "User-agent: *\nDisallow: /z"}
	now := time.Now()
	clock := func() time.Time { return now }
	store := NewStore(fetcher, zap.NewNop(), WithTTL(time.Hour), WithClock(clock))

	ctx := context.Background()
	_, err := store.Get(ctx, "https", "example.com")
	require.NoError(t, err)
	require.EqualValues(t, 1, fetcher.count())

	// Still fresh.
	now = now.Add(59 * time.Minute)
	_, err = store.Get(ctx, "https", "example.com")
	require.NoError(t, err)
	require.EqualValues(t, 1, fetcher.count())

	// Past expiry the stale entry must never be served.
	now = now.Add(2 * time.Minute)
	_, err = store.Get(ctx, "https", "example.com")
	require.NoError(t, err)
	require.EqualValues(t, 2, fetcher.count())
}

func TestStoreEvictsOldestWhenOverCap(t *testing.T) {
	fetcher := &countingFetcher{raw: ""}
	now := time.Now()
	clock := func() time.Time { return now }
	store := NewStore(fetcher, zap.NewNop(), WithMaxDomains(2), WithClock(clock))

	ctx := context.Background()
	for _, host := range []string{"a.example", "b.example", "c.example"} {
		_, err := store.Get(ctx, "https", host)
		require.NoError(t, err)
		now = now.Add(time.Minute)
	}
	require.Equal(t, 2, store.Len())

	// a.example was fetched first, so it was evicted; re-requesting it
	// causes a new outbound fetch.
	before := fetcher.count()
	_, err := store.Get(ctx, "https", "a.example")
	require.NoError(t, err)
	require.Equal(t, before+1, fetcher.count())
}

func TestStoreFetchErrorYieldsEmptyRuleSetWithStatus(t *testing.T) {
	fetcher := &countingFetcher{status: StatusFetchError}
	store := NewStore(fetcher, zap.NewNop())

	rs, err := store.Get(context.Background(), "https", "down.example")
	require.NoError(t, err)
	require.Equal(t, StatusFetchError, rs.Status)
	require.Empty(t, rs.Rules)
	// An indeterminate policy still reads as allowed at this layer, with the
	// fail-open reason; strict mode is applied by the orchestrator.
	d := rs.IsAllowed("/anything", "bot")
	require.True(t, d.Allowed)
	require.Equal(t, ReasonPolicyCheckFailedOpen, d.Reason)
}

func TestStoreCancelledCallerDoesNotAbortSharedFetch(t *testing.T) {
	fetcher := &countingFetcher{
		raw:   "User-agent: *\nDisallow: /w",
		block: make(chan struct{}),
	}
	store := NewStore(fetcher, zap.NewNop())

	cancelledCtx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := store.Get(cancelledCtx, "https", "example.com")
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)

	// The detached fetch completes and populates the cache for others.
	close(fetcher.block)
	require.Eventually(t, func() bool {
		rs, err := store.Get(context.Background(), "https", "example.com")
		return err == nil && rs.Status == StatusFound && fetcher.count() == 1
	}, time.Second, 10*time.Millisecond)
}
