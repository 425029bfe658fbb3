// Package nb implements the N/B bound scorer.
//
// A sequence of numbers is spread over a table of 50*n synthetic buckets
// whose weights sum to a bit budget. Each value collects the weight of the
// first bucket that contains it, and the total is rescaled by the sequence's
// average-to-max ratio. The forward pass yields the MAX score, the pass with
// the weight column reversed yields the MIN score.
package nb

import (
	"math"
)

// Default bit budgets used by the two historical front ends.
const (
	DefaultBit = 999.0
	LegacyBit  = 5.5
)

// Accepted range for a caller-supplied bit.
const (
	MinBit = 1.0
	MaxBit = 10000.0
)

// Direction selects the weight order of a scoring pass.
type Direction int

const (
	// Forward keeps bucket weights in construction order (MAX).
	Forward Direction = iota
	// Reverse reverses the bucket weights (MIN).
	Reverse
)

func (d Direction) String() string {
	if d == Reverse {
		return "min"
	}
	return "max"
}

// Calculate returns the raw score of values for the given bit budget and
// direction. It is pure: no fallback substitution happens here, so the
// result may be NaN or infinite for pathological input.
func Calculate(values []float64, bit float64, dir Direction) float64 {
	n := len(values)
	if n < 2 {
		return bit / 100
	}

	score := inner(values, bit, dir)

	// Exactly two samples are inverted against the budget.
	if n == 2 {
		return bit - score
	}
	return score
}

// inner is the clamped, ratio-scaled accumulated weight before the
// two-sample inversion.
func inner(values []float64, bit float64, dir Direction) float64 {
	table := BuildTable(values, bit, dir)
	total := table.Accumulate(values)

	_, hi := bounds(values)
	var sum float64
	for _, v := range values {
		sum += v
	}

	absMax := math.Abs(hi)
	if hi == 0 {
		absMax = 1
	}
	ratio := (sum / (float64(len(values)) * absMax)) * 100

	return math.Min((total/100)*ratio, bit)
}
