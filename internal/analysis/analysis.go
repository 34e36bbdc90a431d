// Package analysis computes the timing metrics that accompany an executor
// response when it is sent to the classifier. The numbers only shape the
// moderator-facing explanation; they never drive a transition.
package analysis

import (
	"math"
	"time"
)

const day = 24 * time.Hour

// Timing describes how long an executor took compared to the expected window.
type Timing struct {
	RealDays     float64 `json:"real_days"`
	ExpectedDays float64 `json:"expected_days"`
	// DelayDays is zero when the executor finished within the window.
	DelayDays float64 `json:"delay_days"`
	// Ratio is RealDays / ExpectedDays.
	Ratio float64 `json:"ratio"`
}

// ComputeTiming measures the span from createdAt to finishedAt.
// A finishedAt before createdAt counts as zero elapsed time.
func ComputeTiming(createdAt, finishedAt time.Time, expectedDays int) Timing {
	elapsed := finishedAt.Sub(createdAt)
	if elapsed < 0 {
		elapsed = 0
	}
	elapsedDays := round2(elapsed.Hours() / day.Hours())

	t := Timing{RealDays: elapsedDays, ExpectedDays: float64(expectedDays)}
	if expectedDays <= 0 {
		return t
	}
	t.DelayDays = round2(math.Max(0, elapsedDays-t.ExpectedDays))
	t.Ratio = round2(elapsedDays / t.ExpectedDays)
	return t
}

// Overdue reports whether the executor missed the expected window.
func (t Timing) Overdue() bool {
	return t.DelayDays > 0
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
