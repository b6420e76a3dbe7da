package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Trend accumulates duration samples and answers mean/min/max/percentile
// queries. Samples are recorded in microseconds on an HDR histogram
// (1us to 10min, 3 significant figures); stats are reported in milliseconds.
type Trend struct {
	mu   sync.Mutex
	hist *hdrhistogram.Histogram
}

func NewTrend() *Trend {
	h := hdrhistogram.New(1, int64(10*time.Minute/time.Microsecond), 3)
	return &Trend{hist: h}
}

func (t *Trend) Record(d time.Duration) {
	us := d.Microseconds()
	if us < 1 {
		us = 1
	}
	t.mu.Lock()
	t.hist.RecordValue(us)
	t.mu.Unlock()
}

// TrendStats is a fixed summary of a trend at one instant. All durations are
// milliseconds. An empty trend reports zero for every field; percentiles on
// a single-sample trend all equal that sample.
type TrendStats struct {
	Count uint64  `json:"count"`
	AvgMs float64 `json:"avg_ms"`
	MinMs float64 `json:"min_ms"`
	MaxMs float64 `json:"max_ms"`
	P50Ms float64 `json:"p50_ms"`
	P90Ms float64 `json:"p90_ms"`
	P95Ms float64 `json:"p95_ms"`
	P99Ms float64 `json:"p99_ms"`
}

func (t *Trend) Stats() TrendStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	count := t.hist.TotalCount()
	if count == 0 {
		return TrendStats{}
	}
	return TrendStats{
		Count: uint64(count),
		AvgMs: t.hist.Mean() / 1000.0,
		MinMs: float64(t.hist.Min()) / 1000.0,
		MaxMs: float64(t.hist.Max()) / 1000.0,
		P50Ms: float64(t.hist.ValueAtQuantile(50)) / 1000.0,
		P90Ms: float64(t.hist.ValueAtQuantile(90)) / 1000.0,
		P95Ms: float64(t.hist.ValueAtQuantile(95)) / 1000.0,
		P99Ms: float64(t.hist.ValueAtQuantile(99)) / 1000.0,
	}
}

func (t *Trend) Count() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return uint64(t.hist.TotalCount())
}

// Percentile returns the value at quantile q (0-100) in milliseconds.
func (t *Trend) Percentile(q float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.hist.TotalCount() == 0 {
		return 0
	}
	return float64(t.hist.ValueAtQuantile(q)) / 1000.0
}
