package coingecko

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/newthinker/verdict/internal/core"
	"github.com/newthinker/verdict/internal/oracle/symbol"
	"github.com/newthinker/verdict/internal/platform/httpclient"
)

const (
	baseURL = "https://api.coingecko.com/api/v3"
)

// Symbol to CoinGecko ID mapping
var symbolToIDMap = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"BNB":  "binancecoin",
	"SOL":  "solana",
	"XRP":  "ripple",
	"DOGE": "dogecoin",
	"ADA":  "cardano",
	"AVAX": "avalanche-2",
	"DOT":  "polkadot",
	"LINK": "chainlink",
	"LTC":  "litecoin",
	"ATOM": "cosmos",
}

// ohlcDays are the day ranges the OHLC endpoint accepts.
var ohlcDays = []int{1, 7, 14, 30, 90, 180, 365}

// CoinGecko implements the oracle Provider interface as the aggregator fallback.
type CoinGecko struct {
	client  *httpclient.Client
	baseURL string
	apiKey  string
}

// New creates a new CoinGecko provider
func New(client *httpclient.Client, apiKey string) *CoinGecko {
	if client == nil {
		client = httpclient.Default()
	}
	return &CoinGecko{
		client:  client,
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

// NewWithBaseURL creates a CoinGecko provider with custom base URL (for testing)
func NewWithBaseURL(client *httpclient.Client, apiKey, url string) *CoinGecko {
	c := New(client, apiKey)
	c.baseURL = url
	return c
}

func (c *CoinGecko) Name() string {
	return "coingecko"
}

func (c *CoinGecko) headers() map[string]string {
	if c.apiKey == "" {
		return nil
	}
	return map[string]string{"x-cg-demo-api-key": c.apiKey}
}

// symbolToID converts trading pair to CoinGecko coin ID
func (c *CoinGecko) symbolToID(pair string) string {
	base, _ := symbol.Parse(pair)
	if id, ok := symbolToIDMap[base]; ok {
		return id
	}
	return strings.ToLower(base)
}

// symbolToVsCurrency extracts the quote currency for CoinGecko API
func (c *CoinGecko) symbolToVsCurrency(pair string) string {
	_, quote := symbol.Parse(pair)
	switch quote {
	case "USDT", "USDC", "BUSD", "USD":
		return "usd"
	case "BTC":
		return "btc"
	case "ETH":
		return "eth"
	default:
		return "usd"
	}
}

// FetchQuote fetches real-time quote from CoinGecko
func (c *CoinGecko) FetchQuote(ctx context.Context, pair string) (*core.Quote, error) {
	coinID := c.symbolToID(pair)
	vsCurrency := c.symbolToVsCurrency(pair)

	endpoint := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=%s&include_last_updated_at=true",
		c.baseURL, coinID, vsCurrency)

	var result map[string]map[string]float64
	if err := c.client.GetJSON(ctx, endpoint, c.headers(), &result); err != nil {
		return nil, fmt.Errorf("fetching quote: %w", err)
	}

	coinData, ok := result[coinID]
	if !ok {
		return nil, fmt.Errorf("no data for coin: %s", coinID)
	}

	return &core.Quote{
		Symbol: pair,
		Price:  coinData[vsCurrency],
		Time:   time.Unix(int64(coinData["last_updated_at"]), 0),
		Source: c.Name(),
	}, nil
}

// FetchCandles fetches OHLC bars. Granularity is chosen by CoinGecko from the
// day range, so interval is advisory only.
func (c *CoinGecko) FetchCandles(ctx context.Context, pair string, since, until time.Time, interval string) ([]core.Candle, error) {
	coinID := c.symbolToID(pair)
	vsCurrency := c.symbolToVsCurrency(pair)

	days := daysFor(until.Sub(since))
	endpoint := fmt.Sprintf("%s/coins/%s/ohlc?vs_currency=%s&days=%d",
		c.baseURL, coinID, vsCurrency, days)

	// [[closeTime, open, high, low, close], ...]
	var ohlcData [][]float64
	if err := c.client.GetJSON(ctx, endpoint, c.headers(), &ohlcData); err != nil {
		return nil, fmt.Errorf("fetching ohlc: %w", err)
	}

	span := barSpan(days)
	data := make([]core.Candle, 0, len(ohlcData))
	for _, ohlc := range ohlcData {
		if len(ohlc) < 5 {
			continue
		}
		opened := time.UnixMilli(int64(ohlc[0])).Add(-span)
		if opened.Before(since) || opened.After(until) {
			continue
		}
		data = append(data, core.Candle{
			Time:  opened,
			Open:  ohlc[1],
			High:  ohlc[2],
			Low:   ohlc[3],
			Close: ohlc[4],
		})
	}

	return data, nil
}

// barSpan is the bar width CoinGecko serves for a days value. Its
// timestamps mark the bar close, so open = timestamp - span.
func barSpan(days int) time.Duration {
	switch {
	case days <= 2:
		return 30 * time.Minute
	case days <= 30:
		return 4 * time.Hour
	default:
		return 4 * 24 * time.Hour
	}
}

func daysFor(span time.Duration) int {
	need := int(span.Hours()/24) + 1
	for _, d := range ohlcDays {
		if d >= need {
			return d
		}
	}
	return ohlcDays[len(ohlcDays)-1]
}
