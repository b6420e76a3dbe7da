package sched

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPoolConvergesOnTarget(t *testing.T) {
	p := Profile{
		Discipline:       ConstantWorkers,
		Stages:           []Stage{{Duration: 1500 * time.Millisecond, Target: 8}},
		GracefulRampDown: time.Second,
		ThinkMin:         5 * time.Millisecond,
		ThinkMax:         15 * time.Millisecond,
	}

	var iterations atomic.Int64
	s, err := New(p, func(ctx context.Context) {
		iterations.Add(1)
		time.Sleep(2 * time.Millisecond)
	}, Hooks{}, nil)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()

	// Mid-run the pool should sit at the stage target.
	time.Sleep(700 * time.Millisecond)
	assert.Equal(t, StateRunning, s.State())
	active := s.ActiveWorkers()
	assert.GreaterOrEqual(t, active, int64(7))
	assert.LessOrEqual(t, active, int64(9))

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("run did not finish")
	}

	assert.Equal(t, StateSummarized, s.State())
	assert.Equal(t, int64(0), s.ActiveWorkers(), "all workers drained")
	assert.Greater(t, iterations.Load(), int64(50))
}

func TestWorkerPoolScalesDown(t *testing.T) {
	p := Profile{
		Discipline: ConstantWorkers,
		Stages: []Stage{
			{Duration: 600 * time.Millisecond, Target: 10},
			{Duration: 900 * time.Millisecond, Target: 2},
		},
		GracefulRampDown: time.Second,
		ThinkMin:         time.Millisecond,
		ThinkMax:         5 * time.Millisecond,
	}

	s, err := New(p, func(ctx context.Context) {
		time.Sleep(time.Millisecond)
	}, Hooks{}, nil)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()

	time.Sleep(1100 * time.Millisecond)
	// Well into the second stage: drained down to the new, lower target.
	assert.LessOrEqual(t, s.ActiveWorkers(), int64(4))

	<-done
	assert.Equal(t, StateSummarized, s.State())
}

func TestArrivalRateIssuesOnSchedule(t *testing.T) {
	p := Profile{
		Discipline:       ConstantArrival,
		Stages:           []Stage{{Duration: 2 * time.Second, Target: 50}},
		MaxWorkers:       100,
		GracefulRampDown: time.Second,
	}

	var issued, requested, dropped atomic.Int64
	s, err := New(p,
		func(ctx context.Context) { issued.Add(1) },
		Hooks{
			Requested: func() { requested.Add(1) },
			Dropped:   func() { dropped.Add(1) },
		}, nil)
	require.NoError(t, err)

	s.Run(context.Background())

	// 50 rps for 2s, generous tolerance for scheduling jitter.
	req := requested.Load()
	assert.Greater(t, req, int64(70))
	assert.Less(t, req, int64(130))
	assert.Equal(t, req, issued.Load()+dropped.Load(),
		"every scheduled arrival is either issued or dropped")
	assert.Equal(t, int64(0), dropped.Load(), "pool was never saturated")
}

// With a pool bound of 1 and slow iterations, most of the demand cannot be
// served; it must be shed and accounted, never queued.
func TestArrivalRateShedsWhenPoolSaturated(t *testing.T) {
	p := Profile{
		Discipline:       ConstantArrival,
		Stages:           []Stage{{Duration: 1500 * time.Millisecond, Target: 40}},
		MaxWorkers:       1,
		GracefulRampDown: 2 * time.Second,
	}

	var issued, requested, dropped atomic.Int64
	s, err := New(p,
		func(ctx context.Context) {
			issued.Add(1)
			time.Sleep(200 * time.Millisecond)
		},
		Hooks{
			Requested: func() { requested.Add(1) },
			Dropped:   func() { dropped.Add(1) },
		}, nil)
	require.NoError(t, err)

	start := time.Now()
	s.Run(context.Background())

	assert.Greater(t, dropped.Load(), int64(0))
	assert.Equal(t, requested.Load(), issued.Load()+dropped.Load())
	assert.Less(t, issued.Load(), requested.Load())
	// The timeline must not stretch to serve the backlog.
	assert.Less(t, time.Since(start), 6*time.Second)
}

func TestRampingArrivalFollowsCurve(t *testing.T) {
	p := Profile{
		Discipline:       RampingArrival,
		Stages:           []Stage{{Duration: 2 * time.Second, Target: 60}},
		MaxWorkers:       50,
		GracefulRampDown: time.Second,
	}

	var requested atomic.Int64
	s, err := New(p,
		func(ctx context.Context) {},
		Hooks{Requested: func() { requested.Add(1) }}, nil)
	require.NoError(t, err)

	s.Run(context.Background())

	// Linear ramp 0->60 over 2s averages 30 rps, ~60 arrivals.
	req := requested.Load()
	assert.Greater(t, req, int64(35))
	assert.Less(t, req, int64(90))
}

// A sparse arrival schedule sleeps for whole inter-arrival periods between
// iterations; cancellation must cut those sleeps short, not wait them out.
func TestArrivalPacerStopsPromptlyOnCancel(t *testing.T) {
	p := Profile{
		Discipline:       ConstantArrival,
		Stages:           []Stage{{Duration: 5 * time.Minute, Target: 1}},
		Per:              time.Minute,
		MaxWorkers:       5,
		GracefulRampDown: 500 * time.Millisecond,
	}

	s, err := New(p, func(ctx context.Context) {}, Hooks{}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	// 1 arrival per minute: after the first the pacer sleeps a full
	// 60s period.
	time.Sleep(200 * time.Millisecond)
	cancel()

	start := time.Now()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("cancel did not stop the pacer")
	}
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, StateSummarized, s.State())
}

func TestRunRespectsContextCancel(t *testing.T) {
	p := Profile{
		Discipline:       ConstantWorkers,
		Stages:           []Stage{{Duration: time.Minute, Target: 4}},
		GracefulRampDown: 500 * time.Millisecond,
	}

	s, err := New(p, func(ctx context.Context) {
		select {
		case <-ctx.Done():
		case <-time.After(10 * time.Millisecond):
		}
	}, Hooks{}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(300 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("cancel did not stop the run")
	}
	assert.Equal(t, StateSummarized, s.State())
}
