package resolver

import (
	"time"

	"github.com/newthinker/verdict/internal/core"
)

// PointSample judges a call by one spot price taken about a day after it was
// issued. Calls found past the settle window are caught up with the current
// price.
type PointSample struct {
	Horizon      time.Duration
	SettleWindow time.Duration
}

// NewPointSample returns the 24h policy with a one hour settle window.
func NewPointSample() *PointSample {
	return &PointSample{Horizon: 24 * time.Hour, SettleWindow: time.Hour}
}

func (p *PointSample) Name() string { return core.PolicyPointSample }

func (p *PointSample) Requires(call core.Call, now time.Time) Requirements {
	return Requirements{Price: call.Age(now) >= p.Horizon}
}

func (p *PointSample) Evaluate(call core.Call, m Market, now time.Time) (Decision, error) {
	age := call.Age(now)
	if age < p.Horizon {
		return Decision{}, nil
	}
	if m.Price <= 0 {
		return Decision{}, core.WrapError(core.ErrPriceUnavailable, errNoPrice)
	}

	resolution := core.ResolutionSettled
	if age > p.Horizon+p.SettleWindow {
		resolution = core.ResolutionCatchUp
	}
	return Decision{
		Resolved:   true,
		Correct:    DirectionalCorrect(call.Direction, call.EntryPrice, m.Price),
		Price:      m.Price,
		Resolution: resolution,
	}, nil
}
