package core

import "time"

// Direction is the predicted move of a call.
type Direction string

const (
	DirectionUp      Direction = "up"
	DirectionDown    Direction = "down"
	DirectionNeutral Direction = "neutral"
)

// IsValid reports whether d is a known direction.
func (d Direction) IsValid() bool {
	switch d {
	case DirectionUp, DirectionDown, DirectionNeutral:
		return true
	}
	return false
}

// Policy names recorded on resolved calls.
const (
	PolicyPointSample   = "point_sample"
	PolicyPathDependent = "path_dependent"
)

// Resolution describes how a call was settled.
type Resolution string

const (
	ResolutionSettled   Resolution = "settled"    // sampled inside the 24h-25h window
	ResolutionCatchUp   Resolution = "catch_up"   // sampled late after a missed cycle
	ResolutionTargetHit Resolution = "target_hit" // candle touched the target
	ResolutionStopHit   Resolution = "stop_hit"   // candle touched the stop-loss
	ResolutionExpired   Resolution = "expired"    // no touch after the grace window
)

// Call is a directional market prediction awaiting or holding a verdict.
type Call struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	EntryPrice float64   `json:"entryPrice"`
	Direction  Direction `json:"direction"`
	Confidence float64   `json:"confidence"`
	Target     *float64  `json:"target,omitempty"`
	StopLoss   *float64  `json:"stopLoss,omitempty"`

	Checked bool  `json:"checked"`
	Correct *bool `json:"correct,omitempty"`

	PriceAfter24h *float64   `json:"priceAfter24h,omitempty"`
	ResolvedPrice *float64   `json:"resolvedPrice,omitempty"`
	ResolvedAt    *time.Time `json:"resolvedAt,omitempty"`
	ResolvedBy    string     `json:"resolvedBy,omitempty"`
	Resolution    Resolution `json:"resolution,omitempty"`
	Source        string     `json:"source,omitempty"`
}

// IsCorrect reports whether the call is checked and judged correct.
func (c Call) IsCorrect() bool {
	return c.Checked && c.Correct != nil && *c.Correct
}

// Age returns how long ago the call was issued.
func (c Call) Age(now time.Time) time.Duration {
	return now.Sub(c.CreatedAt)
}

// Candle is one OHLC bar. Time is the bar's open time.
type Candle struct {
	Time  time.Time `json:"openTime"`
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
}

// Quote is a spot price sample from one source.
type Quote struct {
	Symbol string
	Price  float64
	Time   time.Time
	Source string
}

// IsValid checks if the quote has required fields
func (q Quote) IsValid() bool {
	return q.Symbol != "" && q.Price > 0
}

// StatsSnapshot is the rolling accuracy summary derived from checked calls.
type StatsSnapshot struct {
	Total         int       `json:"total"`
	Correct       int       `json:"correct"`
	Pending       int       `json:"pending"`
	Accuracy7d    float64   `json:"accuracy7d"`
	Accuracy30d   float64   `json:"accuracy30d"`
	AccuracyAll   float64   `json:"accuracyAll"`
	AvgConfidence float64   `json:"avgConfidence"`
	StreakCurrent int       `json:"streakCurrent"`
	StreakBest    int       `json:"streakBest"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// Bool returns a pointer to v.
func Bool(v bool) *bool {
	return &v
}
