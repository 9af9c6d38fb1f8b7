package binance

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/newthinker/verdict/internal/core"
	"github.com/newthinker/verdict/internal/platform/httpclient"
)

const (
	baseURL = "https://api.binance.com"

	klineLimit = 1000
	maxPages   = 10
)

// Binance implements the oracle Provider interface for Binance exchange
type Binance struct {
	client  *httpclient.Client
	baseURL string
}

// New creates a new Binance provider
func New(client *httpclient.Client) *Binance {
	if client == nil {
		client = httpclient.Default()
	}
	return &Binance{
		client:  client,
		baseURL: baseURL,
	}
}

// NewWithBaseURL creates a Binance provider with custom base URL (for testing)
func NewWithBaseURL(client *httpclient.Client, url string) *Binance {
	b := New(client)
	b.baseURL = url
	return b
}

func (b *Binance) Name() string {
	return "binance"
}

// FetchQuote fetches the last traded price from the 24h rolling ticker.
func (b *Binance) FetchQuote(ctx context.Context, pair string) (*core.Quote, error) {
	endpoint := fmt.Sprintf("%s/api/v3/ticker/24hr?symbol=%s", b.baseURL, url.QueryEscape(pair))

	var result ticker24hr
	if err := b.client.GetJSON(ctx, endpoint, nil, &result); err != nil {
		return nil, fmt.Errorf("fetching quote: %w", err)
	}

	price, err := strconv.ParseFloat(result.LastPrice, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing last price %q: %w", result.LastPrice, err)
	}

	return &core.Quote{
		Symbol: pair,
		Price:  price,
		Time:   time.UnixMilli(result.CloseTime),
		Source: b.Name(),
	}, nil
}

// FetchCandles pages through klines from since to until in ascending order.
func (b *Binance) FetchCandles(ctx context.Context, pair string, since, until time.Time, interval string) ([]core.Candle, error) {
	binanceInterval := b.toInterval(interval)

	var data []core.Candle
	start := since.UnixMilli()
	for page := 0; page < maxPages; page++ {
		endpoint := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&startTime=%d&endTime=%d&limit=%d",
			b.baseURL, url.QueryEscape(pair), binanceInterval, start, until.UnixMilli(), klineLimit)

		var klines [][]any
		if err := b.client.GetJSON(ctx, endpoint, nil, &klines); err != nil {
			return nil, fmt.Errorf("fetching klines: %w", err)
		}

		for _, k := range klines {
			c, ok := parseKline(k)
			if !ok {
				continue
			}
			data = append(data, c)
		}

		if len(klines) < klineLimit || len(data) == 0 {
			break
		}
		start = data[len(data)-1].Time.UnixMilli() + 1
	}

	return data, nil
}

func parseKline(k []any) (core.Candle, bool) {
	if len(k) < 5 {
		return core.Candle{}, false
	}

	openTime, ok := k[0].(float64)
	if !ok {
		return core.Candle{}, false
	}

	var vals [4]float64
	for i := range vals {
		s, ok := k[i+1].(string)
		if !ok {
			return core.Candle{}, false
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return core.Candle{}, false
		}
		vals[i] = v
	}

	return core.Candle{
		Time:  time.UnixMilli(int64(openTime)),
		Open:  vals[0],
		High:  vals[1],
		Low:   vals[2],
		Close: vals[3],
	}, true
}

func (b *Binance) toInterval(interval string) string {
	switch interval {
	case "1m", "5m", "15m", "30m":
		return interval
	case "1h", "2h", "4h":
		return interval
	case "1d":
		return "1d"
	case "1w":
		return "1w"
	default:
		return "1h"
	}
}

// Binance API response types
type ticker24hr struct {
	Symbol    string `json:"symbol"`
	LastPrice string `json:"lastPrice"`
	CloseTime int64  `json:"closeTime"`
}
