package metrics

import (
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterConcurrentAdds(t *testing.T) {
	reg := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				reg.Counter(ReqIssued).Inc()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(50_000), reg.Counter(ReqIssued).Count())
}

func TestRateBounds(t *testing.T) {
	r := &Rate{}
	assert.Equal(t, 0.0, r.Value(), "empty rate reports 0")

	for i := 0; i < 30; i++ {
		r.Observe(i%3 == 0)
	}
	v := r.Value()
	assert.GreaterOrEqual(t, v, 0.0)
	assert.LessOrEqual(t, v, 1.0)
	assert.InDelta(t, 1.0/3.0, v, 0.001)
}

func TestRateBoundedUnderConcurrentObserve(t *testing.T) {
	r := &Rate{}
	stop := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					r.Observe(true)
				}
			}
		}()
	}

	// On a single-CPU machine the tight read loop below never yields, so
	// make sure the writers have been scheduled at least once first.
	for r.Total() == 0 {
		runtime.Gosched()
	}

	// Every true observation bumps total before trues, so a reader
	// interleaved with the writers must never see a ratio above 1.
	for i := 0; i < 200_000; i++ {
		v := r.Value()
		if v > 1.0 {
			close(stop)
			wg.Wait()
			t.Fatalf("rate value %v exceeds 1.0", v)
		}
	}
	close(stop)
	wg.Wait()

	assert.Equal(t, 1.0, r.Value())
}

func TestRegistryNamesSorted(t *testing.T) {
	reg := NewRegistry()
	reg.Trend(ReqDuration).Record(time.Millisecond)
	reg.Counter(ReqIssued).Inc()
	reg.Rate(FailureRate).Observe(false)
	reg.Counter(HealthChecks).Inc()

	assert.Equal(t,
		[]string{HealthChecks, ReqDuration, FailureRate, ReqIssued},
		reg.Names())
}

func TestTrendEmptyAndSingleSample(t *testing.T) {
	tr := NewTrend()

	// Empty trend reports zero everywhere.
	s := tr.Stats()
	assert.Zero(t, s.Count)
	assert.Zero(t, s.P95Ms)
	assert.Zero(t, tr.Percentile(99))

	tr.Record(120 * time.Millisecond)
	s = tr.Stats()
	require.Equal(t, uint64(1), s.Count)
	// A single-sample trend answers every percentile with that sample
	// (within histogram resolution).
	assert.InEpsilon(t, 120.0, s.P50Ms, 0.01)
	assert.InEpsilon(t, 120.0, s.P99Ms, 0.01)
	assert.InEpsilon(t, 120.0, s.MaxMs, 0.01)
}

func TestTrendPercentilesMonotonic(t *testing.T) {
	tr := NewTrend()
	for i := 1; i <= 500; i++ {
		tr.Record(time.Duration(i) * time.Millisecond)
	}

	s := tr.Stats()
	assert.LessOrEqual(t, s.P50Ms, s.P90Ms)
	assert.LessOrEqual(t, s.P90Ms, s.P95Ms)
	assert.LessOrEqual(t, s.P95Ms, s.P99Ms)
	assert.LessOrEqual(t, s.P99Ms, s.MaxMs)
	assert.LessOrEqual(t, s.MinMs, s.AvgMs)
	assert.LessOrEqual(t, s.AvgMs, s.MaxMs)
}

func TestSnapshotDoesNotBlockWriters(t *testing.T) {
	reg := NewRegistry()
	stop := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				reg.Counter(ReqIssued).Inc()
				reg.Rate(FailureRate).Observe(false)
				reg.Trend(ReqDuration).Record(time.Millisecond)
			}
		}
	}()

	for i := 0; i < 100; i++ {
		snap := reg.Snapshot()
		assert.LessOrEqual(t, snap.Rates[FailureRate], 1.0)
	}
	close(stop)
	wg.Wait()

	snap := reg.Snapshot()
	assert.Equal(t, snap.Counters[ReqIssued], reg.Counter(ReqIssued).Count())
}

func TestRegistryIsolation(t *testing.T) {
	a := NewRegistry()
	b := NewRegistry()

	a.Counter(ReqIssued).Add(5)
	assert.Equal(t, uint64(5), a.Counter(ReqIssued).Count())
	assert.Equal(t, uint64(0), b.Counter(ReqIssued).Count())
}
