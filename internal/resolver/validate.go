package resolver

import (
	"fmt"
	"math"
	"time"

	"github.com/newthinker/verdict/internal/core"
)

// Validate reports why a call cannot be judged, or nil when it can.
func Validate(call core.Call, now time.Time) error {
	if err := validate(call, now); err != nil {
		return core.WrapError(core.ErrMalformedCall, err)
	}
	return nil
}

func validate(call core.Call, now time.Time) error {
	switch {
	case call.ID == "":
		return fmt.Errorf("missing id")
	case call.CreatedAt.IsZero():
		return fmt.Errorf("call %s: missing createdAt", call.ID)
	case call.CreatedAt.After(now):
		return fmt.Errorf("call %s: createdAt %s is in the future", call.ID, call.CreatedAt.Format(time.RFC3339))
	case !finite(call.EntryPrice) || call.EntryPrice <= 0:
		return fmt.Errorf("call %s: entry price %v must be positive", call.ID, call.EntryPrice)
	case !call.Direction.IsValid():
		return fmt.Errorf("call %s: unknown direction %q", call.ID, call.Direction)
	case !finite(call.Confidence) || call.Confidence < 0 || call.Confidence > 1:
		return fmt.Errorf("call %s: confidence %v outside [0,1]", call.ID, call.Confidence)
	}

	if call.Direction == core.DirectionNeutral {
		return nil
	}
	entry := call.EntryPrice
	up := call.Direction == core.DirectionUp

	if t := call.Target; t != nil {
		if !finite(*t) || (up && *t <= entry) || (!up && *t >= entry) {
			return fmt.Errorf("call %s: target %v on the wrong side of entry %v", call.ID, *t, entry)
		}
	}
	if s := call.StopLoss; s != nil {
		if !finite(*s) || *s <= 0 || (up && *s >= entry) || (!up && *s <= entry) {
			return fmt.Errorf("call %s: stop-loss %v on the wrong side of entry %v", call.ID, *s, entry)
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
