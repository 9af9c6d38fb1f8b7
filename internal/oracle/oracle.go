// Package oracle samples spot prices and candle history from an ordered list
// of upstream sources, falling back to the next source on failure.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/newthinker/verdict/internal/core"
	"github.com/newthinker/verdict/internal/oracle/symbol"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Snapshot is a price and optional candle history taken from a single source.
type Snapshot struct {
	Source   string
	Symbol   string
	Price    float64
	QuotedAt time.Time
	TakenAt  time.Time

	// Candles cover [Since, TakenAt] when HasCandles is set.
	HasCandles bool
	Since      time.Time
	Candles    []core.Candle

	// Cached is set when the snapshot was served from the cache after every
	// source failed.
	Cached bool
}

// Covers reports whether the snapshot can serve a request for the given range.
func (s *Snapshot) Covers(since time.Time, withCandles bool) bool {
	if s == nil {
		return false
	}
	if !withCandles {
		return true
	}
	return s.HasCandles && !s.Since.After(since)
}

// Config holds oracle settings.
type Config struct {
	Symbol       string
	DefaultQuote string
	Interval     string
	MaxQuoteAge  time.Duration

	// Breaker trips a source after this many consecutive failures and keeps
	// it open for BreakerTimeout.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// DefaultConfig returns the settings used when none are supplied.
func DefaultConfig() Config {
	return Config{
		Symbol:          "BTCUSDT",
		DefaultQuote:    "USDT",
		Interval:        "1h",
		MaxQuoteAge:     5 * time.Minute,
		BreakerFailures: 3,
		BreakerTimeout:  60 * time.Second,
	}
}

type source struct {
	provider Provider
	breaker  *gobreaker.CircuitBreaker
}

// Oracle tries each source in a fixed priority order and stops at the first success.
type Oracle struct {
	sources  []source
	cache    *Cache
	cfg      Config
	pair     string
	logger   *zap.Logger
	observer Observer
	now      func() time.Time
}

// Option customizes an Oracle.
type Option func(*Oracle)

// WithCache sets the fallback snapshot cache.
func WithCache(c *Cache) Option {
	return func(o *Oracle) { o.cache = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Oracle) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver sets the request outcome observer.
func WithObserver(obs Observer) Option {
	return func(o *Oracle) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Oracle) {
		if now != nil {
			o.now = now
		}
	}
}

// New creates an Oracle over providers in priority order.
func New(cfg Config, providers []Provider, opts ...Option) (*Oracle, error) {
	if len(providers) == 0 {
		return nil, core.WrapError(core.ErrConfigMissing, errors.New("at least one price provider is required"))
	}
	def := DefaultConfig()
	if cfg.Symbol == "" {
		cfg.Symbol = def.Symbol
	}
	if cfg.DefaultQuote == "" {
		cfg.DefaultQuote = def.DefaultQuote
	}
	if cfg.Interval == "" {
		cfg.Interval = def.Interval
	}
	if cfg.MaxQuoteAge == 0 {
		cfg.MaxQuoteAge = def.MaxQuoteAge
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = def.BreakerFailures
	}
	if cfg.BreakerTimeout == 0 {
		cfg.BreakerTimeout = def.BreakerTimeout
	}
	if err := symbol.Validate(cfg.Symbol); err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, err)
	}

	o := &Oracle{
		cfg:      cfg,
		pair:     symbol.Normalize(cfg.Symbol, cfg.DefaultQuote),
		logger:   zap.NewNop(),
		observer: nopObserver{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	failures := cfg.BreakerFailures
	for _, p := range providers {
		o.sources = append(o.sources, source{
			provider: p,
			breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
				Name:    p.Name(),
				Timeout: cfg.BreakerTimeout,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures >= failures
				},
			}),
		})
	}

	return o, nil
}

// Symbol returns the normalized pair the oracle prices.
func (o *Oracle) Symbol() string {
	return o.pair
}

// Sources returns provider names in priority order.
func (o *Oracle) Sources() []string {
	names := make([]string, len(o.sources))
	for i, s := range o.sources {
		names[i] = s.provider.Name()
	}
	return names
}

// CurrentPrice returns the spot price from the first healthy source.
func (o *Oracle) CurrentPrice(ctx context.Context) (*core.Quote, error) {
	snap, err := o.Sample(ctx, time.Time{}, false)
	if err != nil {
		return nil, err
	}
	return &core.Quote{Symbol: snap.Symbol, Price: snap.Price, Time: snap.QuotedAt, Source: snap.Source}, nil
}

// Candles returns ascending candles opened at or after since.
func (o *Oracle) Candles(ctx context.Context, since time.Time) ([]core.Candle, error) {
	snap, err := o.Sample(ctx, since, true)
	if err != nil {
		return nil, err
	}
	return snap.Candles, nil
}

// Sample takes the price and, when withCandles is set, the candle history
// since the given time, both from the same source. When every source fails a
// cached snapshot that covers the request is returned; otherwise the error is
// core.ErrPriceUnavailable.
func (o *Oracle) Sample(ctx context.Context, since time.Time, withCandles bool) (*Snapshot, error) {
	var errs []error
	for _, s := range o.sources {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		snap, err := o.sampleSource(ctx, s, since, withCandles)
		if err != nil {
			o.logger.Warn("price source failed",
				zap.String("source", s.provider.Name()),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.provider.Name(), err))
			continue
		}

		o.cache.Set(snap)
		return snap, nil
	}

	if cached, ok := o.cache.Get(o.pair); ok && cached.Covers(since, withCandles) {
		o.logger.Warn("all price sources failed, serving cached snapshot",
			zap.String("source", cached.Source),
			zap.Time("taken_at", cached.TakenAt),
		)
		cached.Cached = true
		return cached, nil
	}

	return nil, core.WrapError(core.ErrPriceUnavailable, errors.Join(errs...))
}

func (o *Oracle) sampleSource(ctx context.Context, s source, since time.Time, withCandles bool) (*Snapshot, error) {
	name := s.provider.Name()
	now := o.now()

	v, err := s.breaker.Execute(func() (interface{}, error) {
		return s.provider.FetchQuote(ctx, o.pair)
	})
	if err != nil {
		o.observer.ObserveOracleRequest(name, "quote", statusOf(err))
		return nil, err
	}
	quote := v.(*core.Quote)
	if quote == nil || quote.Price <= 0 {
		o.observer.ObserveOracleRequest(name, "quote", "invalid")
		return nil, fmt.Errorf("non-positive price from %s", name)
	}
	if !quote.Time.IsZero() && now.Sub(quote.Time) > o.cfg.MaxQuoteAge {
		o.observer.ObserveOracleRequest(name, "quote", "stale")
		return nil, core.WrapError(core.ErrStalePrice,
			fmt.Errorf("%s quote is %s old", name, now.Sub(quote.Time).Round(time.Second)))
	}
	o.observer.ObserveOracleRequest(name, "quote", "ok")

	snap := &Snapshot{
		Source:   name,
		Symbol:   o.pair,
		Price:    quote.Price,
		QuotedAt: quote.Time,
		TakenAt:  now,
	}
	if !withCandles {
		return snap, nil
	}

	v, err = s.breaker.Execute(func() (interface{}, error) {
		return s.provider.FetchCandles(ctx, o.pair, since, now, o.cfg.Interval)
	})
	if err != nil {
		o.observer.ObserveOracleRequest(name, "candles", statusOf(err))
		return nil, err
	}
	o.observer.ObserveOracleRequest(name, "candles", "ok")

	candles := v.([]core.Candle)
	sort.SliceStable(candles, func(i, j int) bool { return candles[i].Time.Before(candles[j].Time) })
	snap.HasCandles = true
	snap.Since = since
	snap.Candles = candles
	return snap, nil
}

func statusOf(err error) string {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "breaker_open"
	}
	return "error"
}
