package resolver

import (
	"errors"
	"testing"
	"time"

	"github.com/newthinker/verdict/internal/core"
)

var now = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func pointCall(dir core.Direction, entry float64, age time.Duration) core.Call {
	return core.Call{
		ID:         "p1",
		CreatedAt:  now.Add(-age),
		EntryPrice: entry,
		Direction:  dir,
		Confidence: 0.7,
	}
}

func TestPointSample_Correctness(t *testing.T) {
	tests := []struct {
		name    string
		dir     core.Direction
		price   float64
		correct bool
	}{
		{"up and rose", core.DirectionUp, 95000, true},
		{"up and fell", core.DirectionUp, 85000, false},
		{"up and flat", core.DirectionUp, 90000, false},
		{"down and fell", core.DirectionDown, 85000, true},
		{"down and rose", core.DirectionDown, 95000, false},
		{"neutral inside band", core.DirectionNeutral, 90500, true},
		{"neutral outside band", core.DirectionNeutral, 92000, false},
		{"neutral small drop", core.DirectionNeutral, 89500, true},
	}

	p := NewPointSample()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := p.Evaluate(pointCall(tt.dir, 90000, 24*time.Hour+10*time.Minute), Market{Price: tt.price}, now)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !d.Resolved {
				t.Fatal("expected call to resolve")
			}
			if d.Correct != tt.correct {
				t.Errorf("correct = %v, want %v", d.Correct, tt.correct)
			}
			if d.Price != tt.price {
				t.Errorf("price = %v, want %v", d.Price, tt.price)
			}
		})
	}
}

func TestPointSample_Windows(t *testing.T) {
	tests := []struct {
		name       string
		age        time.Duration
		resolved   bool
		resolution core.Resolution
	}{
		{"fresh", time.Hour, false, ""},
		{"just under a day", 24*time.Hour - time.Second, false, ""},
		{"exactly a day", 24 * time.Hour, true, core.ResolutionSettled},
		{"end of settle window", 25 * time.Hour, true, core.ResolutionSettled},
		{"missed cycle", 25*time.Hour + time.Minute, true, core.ResolutionCatchUp},
		{"long missed", 10 * 24 * time.Hour, true, core.ResolutionCatchUp},
	}

	p := NewPointSample()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := p.Evaluate(pointCall(core.DirectionUp, 100, tt.age), Market{Price: 101}, now)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d.Resolved != tt.resolved {
				t.Fatalf("resolved = %v, want %v", d.Resolved, tt.resolved)
			}
			if d.Resolution != tt.resolution {
				t.Errorf("resolution = %q, want %q", d.Resolution, tt.resolution)
			}
		})
	}
}

func TestPointSample_NeedsPrice(t *testing.T) {
	p := NewPointSample()
	_, err := p.Evaluate(pointCall(core.DirectionUp, 100, 30*time.Hour), Market{}, now)
	if !errors.Is(err, core.ErrPriceUnavailable) {
		t.Fatalf("expected PRICE_UNAVAILABLE, got %v", err)
	}

	// A young call never looks at the price.
	d, err := p.Evaluate(pointCall(core.DirectionUp, 100, time.Hour), Market{}, now)
	if err != nil || d.Resolved {
		t.Fatalf("expected pending without error, got %+v, %v", d, err)
	}
}

func pathCall(dir core.Direction, entry, stop, target float64, age time.Duration) core.Call {
	c := core.Call{
		ID:         "x1",
		CreatedAt:  now.Add(-age),
		EntryPrice: entry,
		Direction:  dir,
		Confidence: 0.8,
		Target:     core.Float(target),
	}
	if stop > 0 {
		c.StopLoss = core.Float(stop)
	}
	return c
}

func candle(at time.Time, low, high float64) core.Candle {
	return core.Candle{Time: at, Open: (low + high) / 2, High: high, Low: low, Close: (low + high) / 2}
}

func TestPathDependent_StopPriority(t *testing.T) {
	call := pathCall(core.DirectionUp, 100, 98, 110, 2*time.Hour)
	m := Market{Price: 105, HasCandles: true, Candles: []core.Candle{
		candle(call.CreatedAt, 97, 112),
	}}

	d, err := NewPathDependent().Evaluate(call, m, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Resolved || d.Correct {
		t.Fatalf("expected stop hit, got %+v", d)
	}
	if d.Resolution != core.ResolutionStopHit {
		t.Errorf("resolution = %q", d.Resolution)
	}
}

func TestPathDependent_Touches(t *testing.T) {
	tests := []struct {
		name       string
		call       core.Call
		candles    [][2]float64 // low, high per hour after creation
		resolved   bool
		correct    bool
		resolution core.Resolution
		price      float64
	}{
		{
			name:       "up target",
			call:       pathCall(core.DirectionUp, 100, 98, 110, 5*time.Hour),
			candles:    [][2]float64{{99, 104}, {101, 111}},
			resolved:   true,
			correct:    true,
			resolution: core.ResolutionTargetHit,
			price:      110,
		},
		{
			name:       "up stop before later target",
			call:       pathCall(core.DirectionUp, 100, 98, 110, 5*time.Hour),
			candles:    [][2]float64{{97.5, 101}, {101, 115}},
			resolved:   true,
			resolution: core.ResolutionStopHit,
			price:      98,
		},
		{
			name:       "down target",
			call:       pathCall(core.DirectionDown, 100, 103, 90, 5*time.Hour),
			candles:    [][2]float64{{95, 101}, {89, 99}},
			resolved:   true,
			correct:    true,
			resolution: core.ResolutionTargetHit,
			price:      90,
		},
		{
			name:       "down stop priority",
			call:       pathCall(core.DirectionDown, 100, 103, 90, 5*time.Hour),
			candles:    [][2]float64{{85, 104}},
			resolved:   true,
			resolution: core.ResolutionStopHit,
			price:      103,
		},
		{
			name:       "up default stop",
			call:       pathCall(core.DirectionUp, 100, 0, 110, 5*time.Hour),
			candles:    [][2]float64{{98, 105}},
			resolved:   true,
			resolution: core.ResolutionStopHit,
			price:      98,
		},
		{
			name:     "down default stop not reached",
			call:     pathCall(core.DirectionDown, 100, 0, 90, 5*time.Hour),
			candles:  [][2]float64{{95, 101.9}},
			resolved: false,
		},
		{
			name:     "no touch young",
			call:     pathCall(core.DirectionUp, 100, 98, 110, 5*time.Hour),
			candles:  [][2]float64{{99, 105}},
			resolved: false,
		},
	}

	p := NewPathDependent()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Market{Price: 100, HasCandles: true}
			for i, lh := range tt.candles {
				m.Candles = append(m.Candles, candle(tt.call.CreatedAt.Add(time.Duration(i)*time.Hour), lh[0], lh[1]))
			}

			d, err := p.Evaluate(tt.call, m, now)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d.Resolved != tt.resolved {
				t.Fatalf("resolved = %v, want %v", d.Resolved, tt.resolved)
			}
			if !tt.resolved {
				return
			}
			if d.Correct != tt.correct {
				t.Errorf("correct = %v, want %v", d.Correct, tt.correct)
			}
			if d.Resolution != tt.resolution {
				t.Errorf("resolution = %q, want %q", d.Resolution, tt.resolution)
			}
			if d.Price != tt.price {
				t.Errorf("price = %v, want %v", d.Price, tt.price)
			}
		})
	}
}

func TestPathDependent_IgnoresCandlesBeforeCall(t *testing.T) {
	call := pathCall(core.DirectionUp, 100, 98, 110, 5*time.Hour)
	m := Market{Price: 100, HasCandles: true, Candles: []core.Candle{
		candle(call.CreatedAt.Add(-time.Hour), 90, 120),
		candle(call.CreatedAt.Add(time.Hour), 99, 105),
	}}

	d, err := NewPathDependent().Evaluate(call, m, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Resolved {
		t.Fatalf("candle opened before the call must not count, got %+v", d)
	}
}

func TestPathDependent_GraceWindow(t *testing.T) {
	p := NewPathDependent()
	quiet := func(c core.Call) Market {
		return Market{Price: 104, HasCandles: true, Candles: []core.Candle{candle(c.CreatedAt, 99, 105)}}
	}

	young := pathCall(core.DirectionUp, 100, 98, 110, 3*24*time.Hour)
	d, err := p.Evaluate(young, quiet(young), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Resolved {
		t.Fatalf("3 day old call should stay pending, got %+v", d)
	}

	old := pathCall(core.DirectionUp, 100, 98, 110, 8*24*time.Hour)
	d, err = p.Evaluate(old, quiet(old), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Resolved || !d.Correct || d.Resolution != core.ResolutionExpired {
		t.Fatalf("8 day old call should expire correct at 104, got %+v", d)
	}
	if d.Price != 104 {
		t.Errorf("price = %v, want 104", d.Price)
	}

	m := quiet(old)
	m.Price = 99
	d, _ = p.Evaluate(old, m, now)
	if !d.Resolved || d.Correct {
		t.Fatalf("expired up call below entry should be incorrect, got %+v", d)
	}
}

func TestPathDependent_RequiresCandles(t *testing.T) {
	_, err := NewPathDependent().Evaluate(pathCall(core.DirectionUp, 100, 98, 110, time.Hour), Market{Price: 100}, now)
	if !errors.Is(err, core.ErrPriceUnavailable) {
		t.Fatalf("expected PRICE_UNAVAILABLE, got %v", err)
	}
}

func TestStopFor(t *testing.T) {
	if got := StopFor(core.Call{EntryPrice: 100, Direction: core.DirectionUp}); got != 98 {
		t.Errorf("up default stop = %v", got)
	}
	if got := StopFor(core.Call{EntryPrice: 100, Direction: core.DirectionDown}); got != 102 {
		t.Errorf("down default stop = %v", got)
	}
	if got := StopFor(core.Call{EntryPrice: 100, Direction: core.DirectionUp, StopLoss: core.Float(95)}); got != 95 {
		t.Errorf("explicit stop = %v", got)
	}
}

func TestPercentChange(t *testing.T) {
	if got := PercentChange(100, 101); got != 1 {
		t.Errorf("PercentChange = %v", got)
	}
	if got := PercentChange(0, 101); got != 0 {
		t.Errorf("PercentChange with zero entry = %v", got)
	}
}
