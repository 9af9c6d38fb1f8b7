package resolver

import (
	"errors"
	"time"

	"github.com/newthinker/verdict/internal/core"
)

var (
	errNoPrice   = errors.New("market sample has no price")
	errNoCandles = errors.New("market sample has no candle history")
)

// DefaultStopFraction places the implied stop-loss 2% against the call.
const DefaultStopFraction = 0.02

// PathDependent walks the candles printed since a call was issued and settles
// it on the first touch of its stop-loss or target. Within one candle the
// stop-loss is tested first. Calls that touch neither level are left pending
// through the grace period and then settled on the current price.
type PathDependent struct {
	Grace time.Duration
}

// NewPathDependent returns the policy with a seven day grace period.
func NewPathDependent() *PathDependent {
	return &PathDependent{Grace: 7 * 24 * time.Hour}
}

func (p *PathDependent) Name() string { return core.PolicyPathDependent }

func (p *PathDependent) Requires(call core.Call, now time.Time) Requirements {
	return Requirements{Price: call.Age(now) > p.Grace, Candles: true, Since: call.CreatedAt}
}

// StopFor returns the call's stop-loss, or the default stop when unset.
func StopFor(call core.Call) float64 {
	if call.StopLoss != nil {
		return *call.StopLoss
	}
	if call.Direction == core.DirectionDown {
		return call.EntryPrice * (1 + DefaultStopFraction)
	}
	return call.EntryPrice * (1 - DefaultStopFraction)
}

func (p *PathDependent) Evaluate(call core.Call, m Market, now time.Time) (Decision, error) {
	if call.Target == nil {
		return Decision{}, core.WrapError(core.ErrMalformedCall, errors.New("path-dependent call has no target"))
	}
	if !m.HasCandles {
		return Decision{}, core.WrapError(core.ErrPriceUnavailable, errNoCandles)
	}

	target := *call.Target
	stop := StopFor(call)
	up := call.Direction == core.DirectionUp

	for _, c := range m.Candles {
		if c.Time.Before(call.CreatedAt) {
			continue
		}
		if up {
			if c.Low <= stop {
				return Decision{Resolved: true, Price: stop, Resolution: core.ResolutionStopHit}, nil
			}
			if c.High >= target {
				return Decision{Resolved: true, Correct: true, Price: target, Resolution: core.ResolutionTargetHit}, nil
			}
			continue
		}
		if c.High >= stop {
			return Decision{Resolved: true, Price: stop, Resolution: core.ResolutionStopHit}, nil
		}
		if c.Low <= target {
			return Decision{Resolved: true, Correct: true, Price: target, Resolution: core.ResolutionTargetHit}, nil
		}
	}

	if call.Age(now) <= p.Grace {
		return Decision{}, nil
	}
	if m.Price <= 0 {
		return Decision{}, core.WrapError(core.ErrPriceUnavailable, errNoPrice)
	}
	return Decision{
		Resolved:   true,
		Correct:    DirectionalCorrect(call.Direction, call.EntryPrice, m.Price),
		Price:      m.Price,
		Resolution: core.ResolutionExpired,
	}, nil
}
