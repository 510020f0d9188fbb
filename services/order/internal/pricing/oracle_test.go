package pricing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onlineshop/settlement/services/order/internal/domain"
)

type stubFeed struct {
	mu    sync.Mutex
	price decimal.Decimal
	err   error
	calls int32
	delay time.Duration
}

func (f *stubFeed) SpotPrice(_ context.Context, _ string) (decimal.Decimal, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.price, f.err
}

func (f *stubFeed) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func newTestOracle(t *testing.T, feed Feed, policy Policy) (*Oracle, *time.Time) {
	t.Helper()
	o, err := NewOracle(feed, NewMemoryCache(), Options{
		Asset:       "solana",
		Policy:      policy,
		FallbackUSD: decimal.NewFromInt(100),
		MaxStale:    5 * time.Minute,
		FiatPerUSD:  decimal.NewFromInt(1500),
	})
	require.NoError(t, err)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	o.now = func() time.Time { return now }
	return o, &now
}

func TestToLamports(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		fiatMinor int64
		fiatUSD   string
		spot      string
		want      int64
	}{
		{"one sol exactly", 15_000_000, "1500", "100", 1_000_000_000},
		{"usd cents", 150, "1", "150", 10_000_000},
		{"rounds half up", 1, "1", "20000000", 1},
		{"rounds down below half", 1, "1", "30000000", 0},
		{"repeating fraction", 100, "1", "3", 333_333_333},
		{"repeating fraction up", 200, "1", "3", 666_666_667},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ToLamports(tt.fiatMinor, decimal.RequireFromString(tt.fiatUSD), decimal.RequireFromString(tt.spot))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatSOL(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "1", FormatSOL(1_000_000_000))
	assert.Equal(t, "0.5", FormatSOL(500_000_000))
	assert.Equal(t, "0.000000001", FormatSOL(1))
}

func TestFiatToCrypto_Live(t *testing.T) {
	t.Parallel()
	feed := &stubFeed{price: decimal.NewFromInt(100)}
	o, _ := newTestOracle(t, feed, PolicyStrict)

	q, err := o.FiatToCrypto(context.Background(), 15_000_000)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000_000), q.Lamports)
	assert.Equal(t, SourceLive, q.Source)
}

func TestFiatToCrypto_RejectsNonPositive(t *testing.T) {
	t.Parallel()
	o, _ := newTestOracle(t, &stubFeed{price: decimal.NewFromInt(100)}, PolicyStrict)

	_, err := o.FiatToCrypto(context.Background(), 0)
	require.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestFiatToCrypto_UsesFreshCacheOnFeedFailure(t *testing.T) {
	t.Parallel()
	feed := &stubFeed{price: decimal.NewFromInt(100)}
	o, now := newTestOracle(t, feed, PolicyStrict)
	ctx := context.Background()

	_, err := o.FiatToCrypto(ctx, 15_000_000)
	require.NoError(t, err)

	feed.fail(errors.New("feed down"))
	*now = now.Add(4 * time.Minute)

	q, err := o.FiatToCrypto(ctx, 15_000_000)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, q.Source)
	assert.Equal(t, int64(1_000_000_000), q.Lamports)
}

func TestFiatToCrypto_StrictFailsWhenCacheStale(t *testing.T) {
	t.Parallel()
	feed := &stubFeed{price: decimal.NewFromInt(100)}
	o, now := newTestOracle(t, feed, PolicyStrict)
	ctx := context.Background()

	_, err := o.FiatToCrypto(ctx, 15_000_000)
	require.NoError(t, err)

	feed.fail(errors.New("feed down"))
	*now = now.Add(6 * time.Minute)

	_, err = o.FiatToCrypto(ctx, 15_000_000)
	require.ErrorIs(t, err, domain.ErrPaymentUnavailable)
}

func TestFiatToCrypto_DegradedUsesFallback(t *testing.T) {
	t.Parallel()
	feed := &stubFeed{err: errors.New("feed down")}
	o, _ := newTestOracle(t, feed, PolicyDegraded)

	q, err := o.FiatToCrypto(context.Background(), 15_000_000)
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, q.Source)
	assert.Equal(t, int64(1_000_000_000), q.Lamports)
}

func TestNewOracle_Validation(t *testing.T) {
	t.Parallel()
	feed := &stubFeed{}

	_, err := NewOracle(feed, nil, Options{Policy: "maybe", FiatPerUSD: decimal.NewFromInt(1)})
	require.Error(t, err)

	_, err = NewOracle(feed, nil, Options{Policy: PolicyDegraded, FiatPerUSD: decimal.NewFromInt(1)})
	require.Error(t, err)

	_, err = NewOracle(feed, nil, Options{Policy: PolicyStrict})
	require.Error(t, err)
}

func TestSpotUSD_CoalescesConcurrentFetches(t *testing.T) {
	t.Parallel()
	feed := &stubFeed{price: decimal.NewFromInt(100), delay: 100 * time.Millisecond}
	o, _ := newTestOracle(t, feed, PolicyStrict)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := o.SpotUSD(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Less(t, atomic.LoadInt32(&feed.calls), int32(20))
}

// gatedFeed blocks until released or until its context ends.
type gatedFeed struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
	calls   int32
}

func (f *gatedFeed) SpotPrice(ctx context.Context, _ string) (decimal.Decimal, error) {
	atomic.AddInt32(&f.calls, 1)
	f.once.Do(func() { close(f.started) })
	select {
	case <-f.release:
		return decimal.NewFromInt(100), nil
	case <-ctx.Done():
		return decimal.Zero, ctx.Err()
	}
}

func TestSpotUSD_SharedFetchSurvivesFirstCallerCancel(t *testing.T) {
	t.Parallel()
	feed := &gatedFeed{started: make(chan struct{}), release: make(chan struct{})}
	o, _ := newTestOracle(t, feed, PolicyStrict)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, _, err := o.SpotUSD(ctxA)
		errA <- err
	}()
	<-feed.started

	type result struct {
		price decimal.Decimal
		src   Source
		err   error
	}
	resB := make(chan result, 1)
	go func() {
		p, src, err := o.SpotUSD(context.Background())
		resB <- result{p, src, err}
	}()
	// let the second caller join the in-flight fetch
	time.Sleep(100 * time.Millisecond)

	cancelA()
	require.ErrorIs(t, <-errA, context.Canceled)

	close(feed.release)
	got := <-resB
	require.NoError(t, got.err)
	assert.True(t, decimal.NewFromInt(100).Equal(got.price))
	assert.Equal(t, SourceLive, got.src)
	assert.Equal(t, int32(1), atomic.LoadInt32(&feed.calls))
}

func TestCoinGeckoFeed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "solana", r.URL.Query().Get("ids"))
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"solana":{"usd":142.37}}`))
	}))
	defer srv.Close()

	price, err := NewCoinGeckoFeed(srv.URL).SpotPrice(context.Background(), "solana")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("142.37").Equal(price))
}

func TestCoinGeckoFeed_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{}`},
		{"missing asset", http.StatusOK, `{"bitcoin":{"usd":1}}`},
		{"zero price", http.StatusOK, `{"solana":{"usd":0}}`},
		{"garbage", http.StatusOK, `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewCoinGeckoFeed(srv.URL).SpotPrice(context.Background(), "solana")
			require.Error(t, err)
		})
	}
}
