package oracle

import (
	"context"
	"time"

	"github.com/newthinker/verdict/internal/core"
)

// Provider defines the interface for upstream price sources
type Provider interface {
	// Name returns the provider identifier (e.g., "binance", "coingecko")
	Name() string

	// FetchQuote fetches the spot price for a normalized pair (e.g., "BTCUSDT")
	FetchQuote(ctx context.Context, pair string) (*core.Quote, error)

	// FetchCandles fetches OHLC bars opened in [since, until], ascending.
	// interval: "1m", "5m", "15m", "1h", "4h", "1d"
	FetchCandles(ctx context.Context, pair string, since, until time.Time, interval string) ([]core.Candle, error)
}

// Observer receives per-source request outcomes.
type Observer interface {
	ObserveOracleRequest(source, kind, status string)
}

type nopObserver struct{}

func (nopObserver) ObserveOracleRequest(string, string, string) {}
