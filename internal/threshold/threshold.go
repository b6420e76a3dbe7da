package threshold

import (
	"fmt"

	"pixload/internal/metrics"
)

// Stat selects which statistic of a metric a threshold compares against.
type Stat string

const (
	StatValue Stat = "value" // rate value or counter count
	StatAvg   Stat = "avg"
	StatMax   Stat = "max"
	StatP90   Stat = "p90"
	StatP95   Stat = "p95"
	StatP99   Stat = "p99"
)

// Op is the comparison operator of a threshold predicate.
type Op string

const (
	OpLT Op = "<"
	OpLE Op = "<="
	OpGT Op = ">"
	OpGE Op = ">="
)

// Threshold is one declared pass/fail predicate over the final metrics.
// Trend statistics are compared in milliseconds.
type Threshold struct {
	Metric string  `json:"metric"`
	Stat   Stat    `json:"stat"`
	Op     Op      `json:"op"`
	Bound  float64 `json:"bound"`
}

func (t Threshold) String() string {
	return fmt.Sprintf("%s.%s %s %g", t.Metric, t.Stat, t.Op, t.Bound)
}

// Result is one evaluated threshold.
type Result struct {
	Threshold
	Actual float64 `json:"actual"`
	Pass   bool    `json:"pass"`
}

// Evaluate applies every threshold to the snapshot. It is a pure function of
// its inputs: same snapshot, same results. A threshold naming a metric the
// run never recorded evaluates against zero, consistent with the empty-trend
// policy.
func Evaluate(snap metrics.Snapshot, thresholds []Threshold) []Result {
	results := make([]Result, 0, len(thresholds))
	for _, t := range thresholds {
		actual := lookup(snap, t)
		results = append(results, Result{
			Threshold: t,
			Actual:    actual,
			Pass:      compare(actual, t.Op, t.Bound),
		})
	}
	return results
}

// AllPassed reports whether no threshold failed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Pass {
			return false
		}
	}
	return true
}

func lookup(snap metrics.Snapshot, t Threshold) float64 {
	if ts, ok := snap.Trends[t.Metric]; ok {
		switch t.Stat {
		case StatAvg:
			return ts.AvgMs
		case StatMax:
			return ts.MaxMs
		case StatP90:
			return ts.P90Ms
		case StatP95:
			return ts.P95Ms
		case StatP99:
			return ts.P99Ms
		default:
			return ts.AvgMs
		}
	}
	if v, ok := snap.Rates[t.Metric]; ok {
		return v
	}
	if v, ok := snap.Counters[t.Metric]; ok {
		return float64(v)
	}
	return 0
}

func compare(actual float64, op Op, bound float64) bool {
	switch op {
	case OpLT:
		return actual < bound
	case OpLE:
		return actual <= bound
	case OpGT:
		return actual > bound
	case OpGE:
		return actual >= bound
	default:
		return false
	}
}
