package oracle

import (
	"fmt"

	"github.com/newthinker/verdict/internal/core"
	"github.com/newthinker/verdict/internal/oracle/binance"
	"github.com/newthinker/verdict/internal/oracle/coingecko"
	"github.com/newthinker/verdict/internal/oracle/okx"
	"github.com/newthinker/verdict/internal/platform/httpclient"
)

// DefaultProviders is the priority order used when none is configured:
// exchange, exchange, then aggregator.
var DefaultProviders = []string{"binance", "okx", "coingecko"}

// ProviderOptions carries per-provider credentials.
type ProviderOptions struct {
	CoinGeckoAPIKey string
}

// BuildProviders creates providers by name, preserving the given order.
func BuildProviders(names []string, client *httpclient.Client, opts ProviderOptions) ([]Provider, error) {
	if len(names) == 0 {
		names = DefaultProviders
	}

	seen := make(map[string]struct{}, len(names))
	providers := make([]Provider, 0, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		switch name {
		case "binance":
			providers = append(providers, binance.New(client))
		case "okx":
			providers = append(providers, okx.New(client))
		case "coingecko":
			providers = append(providers, coingecko.New(client, opts.CoinGeckoAPIKey))
		default:
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown price provider %q", name))
		}
	}
	return providers, nil
}
