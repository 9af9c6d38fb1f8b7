// Package stats derives the rolling accuracy summary from the ledger.
package stats

import (
	"sort"
	"time"

	"github.com/newthinker/verdict/internal/core"
)

// Rolling windows.
const (
	Window7d  = 7 * 24 * time.Hour
	Window30d = 30 * 24 * time.Hour
)

// Compute recomputes the snapshot from scratch. Only checked calls count
// toward accuracy, confidence and streaks; unchecked ones are reported as
// pending.
func Compute(calls []core.Call, now time.Time) core.StatsSnapshot {
	snap := core.StatsSnapshot{LastUpdated: now}

	var checked []core.Call
	var confidence float64
	var total7, correct7, total30, correct30 int

	for _, c := range calls {
		if !c.Checked {
			snap.Pending++
			continue
		}
		checked = append(checked, c)
		confidence += c.Confidence

		age := c.Age(now)
		ok := c.IsCorrect()
		if ok {
			snap.Correct++
		}
		if age <= Window7d {
			total7++
			if ok {
				correct7++
			}
		}
		if age <= Window30d {
			total30++
			if ok {
				correct30++
			}
		}
	}

	snap.Total = len(checked)
	snap.AccuracyAll = Accuracy(snap.Correct, snap.Total)
	snap.Accuracy7d = Accuracy(correct7, total7)
	snap.Accuracy30d = Accuracy(correct30, total30)
	if snap.Total > 0 {
		snap.AvgConfidence = confidence / float64(snap.Total)
	}
	snap.StreakCurrent, snap.StreakBest = Streaks(checked)
	return snap
}

// Accuracy returns correct/total as a percentage, or 0 for an empty set.
func Accuracy(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total) * 100
}

// Streaks orders checked calls newest first and returns the run of correct
// calls starting at the newest one and the longest run anywhere.
func Streaks(checked []core.Call) (current, best int) {
	ordered := make([]core.Call, 0, len(checked))
	for _, c := range checked {
		if c.Checked {
			ordered = append(ordered, c)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.After(ordered[j].CreatedAt)
	})

	run := 0
	leading := true
	for _, c := range ordered {
		if c.IsCorrect() {
			run++
			if run > best {
				best = run
			}
			continue
		}
		if leading {
			current = run
			leading = false
		}
		run = 0
	}
	if leading {
		current = run
	}
	return current, best
}
