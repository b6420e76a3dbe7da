package sched

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// State is the run lifecycle. A scheduler walks it strictly forward; a new
// run is a new Scheduler with fresh metric state.
type State int32

const (
	StateSetup State = iota
	StateRunning
	StateDraining
	StateTeardown
	StateSummarized
)

func (s State) String() string {
	switch s {
	case StateSetup:
		return "setup"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateTeardown:
		return "teardown"
	case StateSummarized:
		return "summarized"
	default:
		return "unknown"
	}
}

// IterationFunc performs one logical iteration (generate a payload, drive
// the request, record the outcome). It must contain its own failures.
type IterationFunc func(ctx context.Context)

// Hooks let the scheduler report arrival-rate accounting without owning the
// metric registry. Either may be nil.
type Hooks struct {
	// Requested is called once per scheduled arrival, issued or not.
	Requested func()
	// Dropped is called when an arrival is shed because the pool was full.
	Dropped func()
}

// Scheduler realizes a Profile as concurrent execution over wall-clock time.
type Scheduler struct {
	profile Profile
	iterate IterationFunc
	hooks   Hooks
	logger  *zap.Logger

	state  atomic.Int32
	active atomic.Int64

	// tick is the control-loop granularity for the worker disciplines.
	tick time.Duration
}

func New(profile Profile, iterate IterationFunc, hooks Hooks, logger *zap.Logger) (*Scheduler, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		profile: profile,
		iterate: iterate,
		hooks:   hooks,
		logger:  logger,
		tick:    100 * time.Millisecond,
	}, nil
}

func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// ActiveWorkers reports the number of workers currently between spawn and
// exit, including any finishing an in-flight iteration during drain.
func (s *Scheduler) ActiveWorkers() int64 {
	return s.active.Load()
}

// Run executes the profile and blocks until the run reaches Summarized.
// Iteration failures never abort the run; only context cancellation cuts it
// short. The whole run is bounded by the stage timeline plus the drain
// window, after which stragglers are forcibly stopped.
func (s *Scheduler) Run(ctx context.Context) {
	drain := s.profile.GracefulRampDown
	if drain <= 0 {
		drain = 30 * time.Second
	}

	// Hard wall-clock bound for everything spawned below.
	hardCtx, hardCancel := context.WithTimeout(ctx, s.profile.TotalDuration()+drain+10*time.Second)
	defer hardCancel()

	s.state.Store(int32(StateRunning))
	s.logger.Info("run started",
		zap.String("discipline", string(s.profile.Discipline)),
		zap.Int("stages", len(s.profile.Stages)),
		zap.Duration("total", s.profile.TotalDuration()),
	)

	var wg sync.WaitGroup
	if s.profile.arrival() {
		s.paceArrivals(hardCtx, &wg)
	} else {
		s.runWorkerPool(hardCtx, &wg)
	}

	s.state.Store(int32(StateDraining))
	if !waitTimeout(&wg, drain) {
		s.logger.Warn("drain window elapsed, forcing stop",
			zap.Int64("stragglers", s.active.Load()))
	}

	s.state.Store(int32(StateTeardown))
	hardCancel()
	wg.Wait()

	s.state.Store(int32(StateSummarized))
	s.logger.Info("run finished")
}

// runWorkerPool drives the worker-count disciplines: a control loop keeps
// the pool size on the stage curve, spawning on scale-up and closing
// per-worker stop channels on scale-down. Stopped workers drain: they finish
// the current iteration, then exit.
func (s *Scheduler) runWorkerPool(ctx context.Context, wg *sync.WaitGroup) {
	start := time.Now()
	total := s.profile.TotalDuration()

	var stops []chan struct{}
	defer func() {
		for _, stop := range stops {
			close(stop)
		}
	}()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		elapsed := time.Since(start)
		if elapsed >= total {
			return
		}

		target := int(math.Round(s.profile.TargetAt(elapsed)))
		for len(stops) < target {
			stop := make(chan struct{})
			stops = append(stops, stop)
			wg.Add(1)
			s.active.Add(1)
			go s.worker(ctx, stop, wg)
		}
		for len(stops) > target {
			last := len(stops) - 1
			close(stops[last])
			stops = stops[:last]
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) worker(ctx context.Context, stop <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	defer s.active.Add(-1)

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		default:
		}

		s.iterate(ctx)

		if think := s.thinkTime(); think > 0 {
			timer := time.NewTimer(think)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-stop:
				// Think-time sleep is interrupted immediately on drain.
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}
}

func (s *Scheduler) thinkTime() time.Duration {
	min, max := s.profile.ThinkMin, s.profile.ThinkMax
	if max <= 0 {
		return 0
	}
	if max == min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

// paceArrivals drives the arrival-rate disciplines: a pacing loop schedules
// iteration starts on the target-rate curve and hands them to an elastic
// pool bounded by MaxWorkers. When the pool is saturated the excess is
// dropped rather than queued, so the timeline never slips; the shortfall is
// visible as requested-vs-issued counters.
func (s *Scheduler) paceArrivals(ctx context.Context, wg *sync.WaitGroup) {
	start := time.Now()
	total := s.profile.TotalDuration()

	slots := make(chan struct{}, s.profile.MaxWorkers)
	nextAt := start

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		now := time.Now()
		elapsed := now.Sub(start)
		if elapsed >= total {
			return
		}

		rate := s.profile.ratePerSecond(s.profile.TargetAt(elapsed))
		if rate <= 0.01 {
			if !sleepCtx(ctx, 50*time.Millisecond) {
				return
			}
			nextAt = time.Now()
			continue
		}
		period := time.Duration(float64(time.Second) / rate)

		if nextAt.After(now) {
			if !sleepCtx(ctx, nextAt.Sub(now)) {
				return
			}
		}

		if s.hooks.Requested != nil {
			s.hooks.Requested()
		}
		select {
		case slots <- struct{}{}:
			wg.Add(1)
			s.active.Add(1)
			go func() {
				defer wg.Done()
				defer s.active.Add(-1)
				defer func() { <-slots }()
				s.iterate(ctx)
			}()
		default:
			if s.hooks.Dropped != nil {
				s.hooks.Dropped()
			}
		}

		nextAt = nextAt.Add(period)
		// Never carry more than a second of schedule debt; a stalled
		// pacing loop should shed the backlog, not burst.
		if time.Since(nextAt) > time.Second {
			nextAt = time.Now()
		}
	}
}

// sleepCtx blocks for d or until ctx is cancelled, reporting whether the
// full duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func waitTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}
