// Package pricing quotes fiat order totals in lamports using a live spot price
// with a bounded-staleness cache and a fixed failure policy.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/onlineshop/settlement/pkg/logging"
	"github.com/onlineshop/settlement/services/order/internal/domain"
)

const LamportsPerSOL = 1_000_000_000

// feedTimeout bounds a shared spot price fetch independently of any one caller.
const feedTimeout = 5 * time.Second

type Policy string

const (
	PolicyStrict   Policy = "strict"
	PolicyDegraded Policy = "degraded"
)

type Source string

const (
	SourceLive     Source = "live"
	SourceCache    Source = "cache"
	SourceFallback Source = "fallback"
)

type Feed interface {
	SpotPrice(ctx context.Context, asset string) (decimal.Decimal, error)
}

type Options struct {
	Asset       string
	Policy      Policy
	FallbackUSD decimal.Decimal
	MaxStale    time.Duration
	// FiatPerUSD is the static rate of the order currency to USD, in major units.
	FiatPerUSD decimal.Decimal
}

type Quote struct {
	Lamports int64
	SpotUSD  decimal.Decimal
	Source   Source
}

type Oracle struct {
	feed  Feed
	cache Cache
	opts  Options
	group singleflight.Group
	now   func() time.Time
}

func NewOracle(feed Feed, cache Cache, opts Options) (*Oracle, error) {
	switch opts.Policy {
	case PolicyStrict:
	case PolicyDegraded:
		if !opts.FallbackUSD.IsPositive() {
			return nil, errors.New("pricing: degraded policy requires a positive fallback price")
		}
	default:
		return nil, fmt.Errorf("pricing: unknown policy %q", opts.Policy)
	}
	if !opts.FiatPerUSD.IsPositive() {
		return nil, errors.New("pricing: fiat per usd must be positive")
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Oracle{feed: feed, cache: cache, opts: opts, now: time.Now}, nil
}

// FiatToCrypto converts an amount in fiat minor units to lamports.
func (o *Oracle) FiatToCrypto(ctx context.Context, fiatMinor int64) (Quote, error) {
	if fiatMinor <= 0 {
		return Quote{}, fmt.Errorf("%w: amount must be positive", domain.ErrBadRequest)
	}

	spot, src, err := o.SpotUSD(ctx)
	if err != nil {
		return Quote{}, err
	}

	lamports := ToLamports(fiatMinor, o.opts.FiatPerUSD, spot)
	if lamports <= 0 {
		return Quote{}, fmt.Errorf("%w: amount too small to quote", domain.ErrBadRequest)
	}
	return Quote{Lamports: lamports, SpotUSD: spot, Source: src}, nil
}

// SpotUSD returns the asset price in USD according to the configured policy.
func (o *Oracle) SpotUSD(ctx context.Context) (decimal.Decimal, Source, error) {
	l := logging.FromContext(ctx).With("component", "price_oracle", "asset", o.opts.Asset)

	ch := o.group.DoChan(o.opts.Asset, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), feedTimeout)
		defer cancel()
		return o.feed.SpotPrice(fetchCtx, o.opts.Asset)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return decimal.Zero, "", ctx.Err()
	}

	err := res.Err
	if err == nil {
		price := res.Val.(decimal.Decimal)
		if cerr := o.cache.Set(ctx, o.opts.Asset, CachedPrice{Price: price, FetchedAt: o.now().UTC()}); cerr != nil {
			l.Warn("price_cache_write_failed", "err", cerr)
		}
		return price, SourceLive, nil
	}
	l.Warn("price_feed_unavailable", "err", err)

	cached, ok, cerr := o.cache.Get(ctx, o.opts.Asset)
	if cerr != nil {
		l.Warn("price_cache_read_failed", "err", cerr)
	}
	if ok && o.now().Sub(cached.FetchedAt) <= o.opts.MaxStale {
		return cached.Price, SourceCache, nil
	}

	if o.opts.Policy == PolicyDegraded {
		l.Warn("price_fallback_used", "price", o.opts.FallbackUSD.String())
		return o.opts.FallbackUSD, SourceFallback, nil
	}
	return decimal.Zero, "", fmt.Errorf("%w: price feed: %v", domain.ErrPaymentUnavailable, err)
}

// ToLamports computes fiatMinor*1e9 / (100*fiatPerUSD*spotUSD), rounded half up.
func ToLamports(fiatMinor int64, fiatPerUSD, spotUSD decimal.Decimal) int64 {
	num := decimal.NewFromInt(fiatMinor).Mul(decimal.NewFromInt(LamportsPerSOL))
	den := decimal.NewFromInt(100).Mul(fiatPerUSD).Mul(spotUSD)
	if !den.IsPositive() {
		return 0
	}
	return num.DivRound(den, 0).IntPart()
}

// FormatSOL renders lamports as a SOL decimal without trailing zeros.
func FormatSOL(lamports int64) string {
	return decimal.New(lamports, -9).String()
}
