package scenario

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pixload/internal/client"
	"pixload/internal/config"
	"pixload/internal/health"
	"pixload/internal/metrics"
	"pixload/internal/payload"
	"pixload/internal/report"
	"pixload/internal/sched"
	"pixload/internal/threshold"
)

// Update is one live progress sample, pushed to the Updates channel a few
// times a second while a run is in flight.
type Update struct {
	Elapsed time.Duration
	Total   time.Duration
	State   sched.State
	Active  int64

	Requests  uint64
	Failed    uint64
	ErrorRate float64

	P50Ms float64
	P90Ms float64
	P99Ms float64
	MaxMs float64
}

// Runner executes one scenario run against one configured target. A new run
// is a new Runner: metric state is per-run and Updates closes at run end.
type Runner struct {
	cfg    config.Config
	logger *zap.Logger

	// Updates receives progress samples during Run. Sends are non-blocking;
	// a slow consumer just misses samples.
	Updates chan Update
}

func NewRunner(cfg config.Config, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:     cfg,
		logger:  logger,
		Updates: make(chan Update, 100),
	}
}

// Run executes one scenario end to end and returns its composed report.
// The only fatal error is the pre-run liveness gate: once load generation
// starts, every failure is contained and lands in the metrics.
func (r *Runner) Run(ctx context.Context, sc Scenario) (report.Report, error) {
	driver := client.New(r.cfg.TargetURL, r.cfg.APIKey, sc.Timeout, r.cfg.Debug, r.logger)

	gateCtx, gateCancel := context.WithTimeout(ctx, 10*time.Second)
	defer gateCancel()
	if err := driver.CheckHealth(gateCtx); err != nil {
		return report.Report{}, fmt.Errorf("pre-run liveness check failed for %s: %w", r.cfg.TargetURL, err)
	}

	if backends, err := driver.ListBackends(gateCtx); err == nil {
		r.logger.Info("target inventory", zap.Int("backends", len(backends)))
	}

	reg := metrics.NewRegistry()
	gen := payload.NewGenerator()

	iterate := func(ctx context.Context) {
		out := driver.Generate(ctx, gen.Sample())
		reg.Counter(metrics.ReqIssued).Inc()
		if out.Success {
			reg.Counter(metrics.ReqSucceeded).Inc()
		} else {
			reg.Counter(metrics.ReqFailed).Inc()
		}
		reg.Rate(metrics.FailureRate).Observe(!out.Success)
		reg.Trend(metrics.ReqDuration).Record(out.Duration)
	}

	hooks := sched.Hooks{
		Requested: func() { reg.Counter(metrics.ReqRequested).Inc() },
		Dropped:   func() { reg.Counter(metrics.ReqDropped).Inc() },
	}

	scheduler, err := sched.New(sc.Profile, iterate, hooks, r.logger)
	if err != nil {
		return report.Report{}, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	monitor := health.NewMonitor(driver, sc.HealthInterval, reg, r.logger)
	go monitor.Run(runCtx)

	start := time.Now()
	go r.tick(runCtx, sc, scheduler, reg, start)

	scheduler.Run(runCtx)
	cancel()
	elapsed := time.Since(start)

	snap := reg.Snapshot()
	r.logger.Debug("metric series recorded", zap.Strings("series", reg.Names()))
	results := threshold.Evaluate(snap, sc.Thresholds)

	echo := report.ConfigEcho{
		TargetURL:  r.cfg.TargetURL,
		Discipline: string(sc.Profile.Discipline),
		Stages:     sc.Profile.Stages,
		Debug:      r.cfg.Debug,
	}
	return report.Compose(uuid.NewString(), sc.Name, echo, snap, elapsed, results, sc.Analysis), nil
}

// tick feeds the Updates channel and, for scenarios with a checkpoint
// interval, logs mid-run threshold breaches so a long soak is observable
// before its final report. As the only sender it closes Updates on exit.
func (r *Runner) tick(ctx context.Context, sc Scenario, s *sched.Scheduler, reg *metrics.Registry, start time.Time) {
	defer close(r.Updates)

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	var lastCheckpoint time.Time
	total := sc.Profile.TotalDuration()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := reg.Snapshot()
			lat := snap.Trends[metrics.ReqDuration]

			u := Update{
				Elapsed:   time.Since(start),
				Total:     total,
				State:     s.State(),
				Active:    s.ActiveWorkers(),
				Requests:  snap.Counters[metrics.ReqIssued],
				Failed:    snap.Counters[metrics.ReqFailed],
				ErrorRate: snap.Rates[metrics.FailureRate],
				P50Ms:     lat.P50Ms,
				P90Ms:     lat.P90Ms,
				P99Ms:     lat.P99Ms,
				MaxMs:     lat.MaxMs,
			}
			select {
			case r.Updates <- u:
			default:
				// Drop the sample; the consumer is behind.
			}

			if sc.Checkpoint > 0 && time.Since(start) >= sc.Checkpoint &&
				time.Since(lastCheckpoint) >= sc.Checkpoint {
				lastCheckpoint = time.Now()
				for _, res := range threshold.Evaluate(snap, sc.Thresholds) {
					if !res.Pass {
						r.logger.Warn("checkpoint threshold breach",
							zap.String("threshold", res.Threshold.String()),
							zap.Float64("actual", res.Actual))
					}
				}
			}
		}
	}
}
