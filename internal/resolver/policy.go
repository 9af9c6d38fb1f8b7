// Package resolver decides whether pending calls were right or wrong.
package resolver

import (
	"math"
	"time"

	"github.com/newthinker/verdict/internal/core"
)

// Market is the price data a cycle judges every call against. It comes from
// a single oracle sample.
type Market struct {
	Source     string
	Price      float64
	HasCandles bool
	Candles    []core.Candle // ascending by open time
}

// Decision is a policy's verdict on one call.
type Decision struct {
	Resolved   bool
	Correct    bool
	Price      float64 // price the call was judged at
	Resolution core.Resolution
}

// Requirements describes the market data a policy needs for a call.
type Requirements struct {
	Price   bool
	Candles bool
	Since   time.Time
}

// Policy judges a single unchecked call.
type Policy interface {
	Name() string
	Requires(call core.Call, now time.Time) Requirements
	Evaluate(call core.Call, m Market, now time.Time) (Decision, error)
}

// neutralBand is the absolute percent move inside which a neutral call holds.
const neutralBand = 1.0

// DirectionalCorrect applies the point-in-time rule: up is right when price
// rose above entry, down when it fell below, neutral when it moved less than
// one percent either way.
func DirectionalCorrect(dir core.Direction, entry, price float64) bool {
	switch dir {
	case core.DirectionUp:
		return price > entry
	case core.DirectionDown:
		return price < entry
	case core.DirectionNeutral:
		return math.Abs(PercentChange(entry, price)) < neutralBand
	}
	return false
}

// PercentChange returns the move from entry to price in percent.
func PercentChange(entry, price float64) float64 {
	if entry == 0 {
		return 0
	}
	return (price - entry) / entry * 100
}
