package resolver

import (
	"errors"
	"time"

	"github.com/newthinker/verdict/internal/core"
	"go.uber.org/zap"
)

// Resolver routes each pending call to a policy and applies its decision.
type Resolver struct {
	point  Policy
	path   Policy
	logger *zap.Logger
}

// New creates a resolver with the default point-sample and path-dependent
// policies.
func New(logger ...*zap.Logger) *Resolver {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	return &Resolver{
		point:  NewPointSample(),
		path:   NewPathDependent(),
		logger: l,
	}
}

// WithPolicies replaces the policies used for selection.
func (r *Resolver) WithPolicies(point, path Policy) *Resolver {
	if point != nil {
		r.point = point
	}
	if path != nil {
		r.path = path
	}
	return r
}

// Select picks the path-dependent policy for directional calls with a target
// and the point-sample policy for everything else.
func (r *Resolver) Select(call core.Call) Policy {
	if call.Target != nil && call.Direction != core.DirectionNeutral {
		return r.path
	}
	return r.point
}

// Plan is the market data a cycle must sample before resolving.
type Plan struct {
	NeedPrice   bool
	NeedCandles bool
	Since       time.Time // earliest candle needed
	Pending     int
}

// NeedMarket reports whether the oracle must be sampled at all.
func (p Plan) NeedMarket() bool {
	return p.NeedPrice || p.NeedCandles
}

// Plan inspects the unchecked, well-formed calls and reports what market data
// resolving them requires.
func (r *Resolver) Plan(calls []core.Call, now time.Time) Plan {
	var plan Plan
	for _, call := range calls {
		if call.Checked || Validate(call, now) != nil {
			continue
		}
		plan.Pending++

		req := r.Select(call).Requires(call, now)
		if req.Price {
			plan.NeedPrice = true
		}
		if req.Candles {
			if !plan.NeedCandles || req.Since.Before(plan.Since) {
				plan.Since = req.Since
			}
			plan.NeedCandles = true
		}
	}
	// A candle fetch always carries a price from the same source.
	if plan.NeedCandles {
		plan.NeedPrice = true
	}
	return plan
}

// Verdict records one call resolved during a cycle.
type Verdict struct {
	CallID     string
	Policy     string
	Correct    bool
	Resolution core.Resolution
}

// Outcome counts what a resolution pass did.
type Outcome struct {
	Checked  int // newly resolved
	Correct  int // newly resolved and correct
	Skipped  int // malformed and left untouched
	Pending  int // still awaiting a verdict
	Verdicts []Verdict
}

// Resolve judges every unchecked call against m and returns the updated
// calls. Checked calls are copied through untouched. Malformed calls are
// skipped. If a policy cannot get the market data it needs the whole pass
// fails and no call is changed.
func (r *Resolver) Resolve(calls []core.Call, m Market, now time.Time) ([]core.Call, Outcome, error) {
	out := make([]core.Call, len(calls))
	copy(out, calls)

	var outcome Outcome
	for i := range out {
		call := out[i]
		if call.Checked {
			continue
		}

		if err := Validate(call, now); err != nil {
			outcome.Skipped++
			r.logger.Warn("skipping malformed call", zap.String("id", call.ID), zap.Error(err))
			continue
		}

		policy := r.Select(call)
		d, err := policy.Evaluate(call, m, now)
		if err != nil {
			if errors.Is(err, core.ErrMalformedCall) {
				outcome.Skipped++
				r.logger.Warn("skipping malformed call", zap.String("id", call.ID), zap.Error(err))
				continue
			}
			return nil, Outcome{}, err
		}
		if !d.Resolved {
			outcome.Pending++
			continue
		}

		out[i] = apply(call, d, policy.Name(), m.Source, now)
		outcome.Checked++
		if d.Correct {
			outcome.Correct++
		}
		outcome.Verdicts = append(outcome.Verdicts, Verdict{
			CallID:     call.ID,
			Policy:     policy.Name(),
			Correct:    d.Correct,
			Resolution: d.Resolution,
		})

		r.logger.Debug("call resolved",
			zap.String("id", call.ID),
			zap.String("policy", policy.Name()),
			zap.String("resolution", string(d.Resolution)),
			zap.Bool("correct", d.Correct),
			zap.Float64("price", d.Price),
		)
	}

	return out, outcome, nil
}

func apply(call core.Call, d Decision, policy, source string, now time.Time) core.Call {
	resolvedAt := now
	call.Checked = true
	call.Correct = core.Bool(d.Correct)
	call.ResolvedPrice = core.Float(d.Price)
	call.ResolvedAt = &resolvedAt
	call.ResolvedBy = policy
	call.Resolution = d.Resolution
	if source != "" {
		call.Source = source
	}
	if policy == core.PolicyPointSample {
		call.PriceAfter24h = core.Float(d.Price)
	}
	return call
}
