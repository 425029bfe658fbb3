package nb

import "math"

// BucketsPerValue is the number of buckets generated for every input element.
const BucketsPerValue = 50

// Bucket is one synthetic interval of the weight distribution.
type Bucket struct {
	Edge   float64 // lower-mid edge
	Share  float64 // cumulative share of the bit budget
	Lower  float64
	Upper  float64
	Weight float64 // Share normalized by n-1
}

// Contains reports whether v lies in [Lower, Upper].
func (b Bucket) Contains(v float64) bool {
	return b.Lower <= v && v <= b.Upper
}

// Table is the bucket table built for a single scoring call.
type Table []Bucket

// BuildTable generates the 50*n bucket table for values. Buckets are
// replicated per element: the i-th outer pass produces buckets
// [50*i, 50*i+50) using the step that matches the sign of values[i].
// The caller guarantees len(values) >= 2.
func BuildTable(values []float64, bit float64, dir Direction) Table {
	n := len(values)
	k := BucketsPerValue * n
	lo, hi := bounds(values)

	var negStep, posStep float64
	if lo < 0 {
		negStep = -lo / float64(k-1)
	}
	if hi > 0 {
		posStep = hi / float64(k-1)
	}

	table := make(Table, 0, k)
	count := 0
	for _, v := range values {
		step := posStep
		if v < 0 {
			step = negStep
		}
		for range BucketsPerValue {
			edge := lo + step*float64(count+1)
			share := float64(count+1) * bit / float64(k)
			table = append(table, Bucket{
				Edge:   edge,
				Share:  share,
				Lower:  edge - step*2,
				Upper:  edge + step,
				Weight: share / float64(n-1),
			})
			count++
		}
	}

	if dir == Reverse {
		table.reverseWeights()
	}
	return table
}

// reverseWeights reverses the Weight column only; geometry keeps its order.
func (t Table) reverseWeights() {
	for i, j := 0, len(t)-1; i < j; i, j = i+1, j-1 {
		t[i].Weight, t[j].Weight = t[j].Weight, t[i].Weight
	}
}

// Accumulate sums, for every value, the weight of the first bucket whose
// interval contains it. Values matching no bucket contribute nothing.
func (t Table) Accumulate(values []float64) float64 {
	var total float64
	for _, v := range values {
		for a := range t {
			if t[a].Contains(v) {
				total += t[min(a, len(t)-1)].Weight
				break
			}
		}
	}
	return total
}

func bounds(values []float64) (lo, hi float64) {
	lo, hi = values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}
