package okx

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/newthinker/verdict/internal/core"
	"github.com/newthinker/verdict/internal/oracle/symbol"
	"github.com/newthinker/verdict/internal/platform/httpclient"
)

const (
	baseURL = "https://www.okx.com"

	candleLimit = 300
	maxPages    = 10
)

// OKX implements the oracle Provider interface for OKX exchange
type OKX struct {
	client  *httpclient.Client
	baseURL string
}

// New creates a new OKX provider
func New(client *httpclient.Client) *OKX {
	if client == nil {
		client = httpclient.Default()
	}
	return &OKX{
		client:  client,
		baseURL: baseURL,
	}
}

// NewWithBaseURL creates an OKX provider with custom base URL (for testing)
func NewWithBaseURL(client *httpclient.Client, url string) *OKX {
	o := New(client)
	o.baseURL = url
	return o
}

func (o *OKX) Name() string {
	return "okx"
}

// toInstID converts normalized symbol to OKX instrument ID
// BTCUSDT -> BTC-USDT
func (o *OKX) toInstID(pair string) string {
	base, quote := symbol.Parse(pair)
	if quote == "" {
		return base
	}
	return base + "-" + quote
}

// FetchQuote fetches real-time quote from OKX
func (o *OKX) FetchQuote(ctx context.Context, pair string) (*core.Quote, error) {
	endpoint := fmt.Sprintf("%s/api/v5/market/ticker?instId=%s", o.baseURL, o.toInstID(pair))

	var result okxTickerResponse
	if err := o.client.GetJSON(ctx, endpoint, nil, &result); err != nil {
		return nil, fmt.Errorf("fetching quote: %w", err)
	}

	if result.Code != "0" || len(result.Data) == 0 {
		return nil, fmt.Errorf("okx error: %s", result.Msg)
	}

	data := result.Data[0]
	price, err := strconv.ParseFloat(data.Last, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing last price %q: %w", data.Last, err)
	}
	ts, _ := strconv.ParseInt(data.Ts, 10, 64)

	return &core.Quote{
		Symbol: pair,
		Price:  price,
		Time:   time.UnixMilli(ts),
		Source: o.Name(),
	}, nil
}

// FetchCandles fetches bars between since and until. OKX pages newest first,
// so the cursor walks backwards until it passes since.
func (o *OKX) FetchCandles(ctx context.Context, pair string, since, until time.Time, interval string) ([]core.Candle, error) {
	instID := o.toInstID(pair)
	bar := o.toInterval(interval)

	var data []core.Candle
	cursor := until.UnixMilli() + 1
	for page := 0; page < maxPages; page++ {
		endpoint := fmt.Sprintf("%s/api/v5/market/candles?instId=%s&bar=%s&after=%d&limit=%d",
			o.baseURL, instID, bar, cursor, candleLimit)

		var result okxCandleResponse
		if err := o.client.GetJSON(ctx, endpoint, nil, &result); err != nil {
			return nil, fmt.Errorf("fetching candles: %w", err)
		}
		if result.Code != "0" {
			return nil, fmt.Errorf("okx error: %s", result.Msg)
		}

		oldest := cursor
		for _, raw := range result.Data {
			c, ok := parseCandle(raw)
			if !ok {
				continue
			}
			if ms := c.Time.UnixMilli(); ms < oldest {
				oldest = ms
			}
			if c.Time.Before(since) {
				continue
			}
			data = append(data, c)
		}

		if len(result.Data) < candleLimit || oldest <= since.UnixMilli() || oldest == cursor {
			break
		}
		cursor = oldest
	}

	sort.Slice(data, func(i, j int) bool { return data[i].Time.Before(data[j].Time) })
	return data, nil
}

func parseCandle(raw []string) (core.Candle, bool) {
	if len(raw) < 5 {
		return core.Candle{}, false
	}
	ts, err := strconv.ParseInt(raw[0], 10, 64)
	if err != nil {
		return core.Candle{}, false
	}

	var vals [4]float64
	for i := range vals {
		v, err := strconv.ParseFloat(raw[i+1], 64)
		if err != nil {
			return core.Candle{}, false
		}
		vals[i] = v
	}

	return core.Candle{
		Time:  time.UnixMilli(ts),
		Open:  vals[0],
		High:  vals[1],
		Low:   vals[2],
		Close: vals[3],
	}, true
}

func (o *OKX) toInterval(interval string) string {
	switch interval {
	case "1m", "5m", "15m", "30m":
		return interval
	case "1h":
		return "1H"
	case "2h":
		return "2H"
	case "4h":
		return "4H"
	case "1d":
		return "1D"
	case "1w":
		return "1W"
	default:
		return "1H"
	}
}

// OKX API response types
type okxTickerResponse struct {
	Code string      `json:"code"`
	Msg  string      `json:"msg"`
	Data []okxTicker `json:"data"`
}

type okxTicker struct {
	InstId string `json:"instId"`
	Last   string `json:"last"`
	Ts     string `json:"ts"`
}

type okxCandleResponse struct {
	Code string     `json:"code"`
	Msg  string     `json:"msg"`
	Data [][]string `json:"data"`
}
