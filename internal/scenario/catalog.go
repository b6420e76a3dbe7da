package scenario

import (
	"fmt"
	"sort"
	"time"

	"pixload/internal/metrics"
	"pixload/internal/report"
	"pixload/internal/sched"
	"pixload/internal/threshold"
)

// Scenario is one declarative test run: a load profile, a request timeout,
// the thresholds to judge it by and the analysis its report carries.
// Immutable once a run starts.
type Scenario struct {
	Name        string
	Description string
	Profile     sched.Profile

	// Timeout bounds every generation request.
	Timeout time.Duration
	// HealthInterval is the liveness-probe period.
	HealthInterval time.Duration
	// Checkpoint, when set, evaluates thresholds against a snapshot at
	// this interval mid-run (soak). Checkpoints only log; they never stop
	// the run.
	Checkpoint time.Duration

	Thresholds []threshold.Threshold
	Analysis   report.AnalysisConfig
}

// Catalog is the fixed set of scenarios the engine knows how to run.
func Catalog() map[string]Scenario {
	return map[string]Scenario{
		"baseline": {
			Name:        "baseline",
			Description: "steady light load to establish reference numbers",
			Profile: sched.Profile{
				Discipline:       sched.ConstantWorkers,
				Stages:           []sched.Stage{{Duration: 5 * time.Minute, Target: 10}},
				GracefulRampDown: 30 * time.Second,
				ThinkMin:         500 * time.Millisecond,
				ThinkMax:         1500 * time.Millisecond,
			},
			Timeout:        60 * time.Second,
			HealthInterval: 30 * time.Second,
			Thresholds: []threshold.Threshold{
				{Metric: metrics.ReqDuration, Stat: threshold.StatP95, Op: threshold.OpLT, Bound: 30_000},
				{Metric: metrics.FailureRate, Stat: threshold.StatValue, Op: threshold.OpLT, Bound: 0.01},
			},
		},
		"stress": {
			Name:        "stress",
			Description: "ramping worker load well past expected capacity",
			Profile: sched.Profile{
				Discipline: sched.RampingWorkers,
				Stages: []sched.Stage{
					{Duration: 2 * time.Minute, Target: 10},
					{Duration: 3 * time.Minute, Target: 30},
					{Duration: 3 * time.Minute, Target: 50},
					{Duration: 2 * time.Minute, Target: 0},
				},
				GracefulRampDown: time.Minute,
				ThinkMin:         200 * time.Millisecond,
				ThinkMax:         800 * time.Millisecond,
			},
			Timeout:        90 * time.Second,
			HealthInterval: 15 * time.Second,
			Thresholds: []threshold.Threshold{
				{Metric: metrics.ReqDuration, Stat: threshold.StatP95, Op: threshold.OpLT, Bound: 60_000},
				{Metric: metrics.FailureRate, Stat: threshold.StatValue, Op: threshold.OpLT, Bound: 0.05},
			},
			Analysis: report.AnalysisConfig{BreakTrigger: 0.10},
		},
		"soak": {
			Name:        "soak",
			Description: "moderate sustained load watching for slow degradation",
			Profile: sched.Profile{
				Discipline:       sched.ConstantWorkers,
				Stages:           []sched.Stage{{Duration: 30 * time.Minute, Target: 6}},
				GracefulRampDown: 30 * time.Second,
				ThinkMin:         time.Second,
				ThinkMax:         3 * time.Second,
			},
			Timeout:        60 * time.Second,
			HealthInterval: 10 * time.Second,
			Checkpoint:     5 * time.Minute,
			Thresholds: []threshold.Threshold{
				{Metric: metrics.ReqDuration, Stat: threshold.StatP95, Op: threshold.OpLT, Bound: 45_000},
				{Metric: metrics.FailureRate, Stat: threshold.StatValue, Op: threshold.OpLT, Bound: 0.02},
			},
			Analysis: report.AnalysisConfig{Soak: &report.SoakLimits{
				MaxErrorRate:      0.02,
				MaxP95Ms:          45_000,
				MaxHealthFailures: 5,
			}},
		},
		"breakpoint": {
			Name:        "breakpoint",
			Description: "escalating arrival rate until the target breaks",
			Profile: sched.Profile{
				Discipline: sched.RampingArrival,
				Per:        time.Minute,
				Stages: []sched.Stage{
					{Duration: 2 * time.Minute, Target: 10},
					{Duration: 2 * time.Minute, Target: 50},
					{Duration: 2 * time.Minute, Target: 100},
					{Duration: 2 * time.Minute, Target: 200},
					{Duration: 2 * time.Minute, Target: 400},
				},
				GracefulRampDown: time.Minute,
				MaxWorkers:       200,
			},
			Timeout:        90 * time.Second,
			HealthInterval: 15 * time.Second,
			Analysis:       report.AnalysisConfig{BreakTrigger: 0.10},
		},
		"spike": {
			Name:        "spike",
			Description: "sudden burst on top of light background load",
			Profile: sched.Profile{
				Discipline: sched.RampingWorkers,
				Stages: []sched.Stage{
					{Duration: time.Minute, Target: 5},
					{Duration: 30 * time.Second, Target: 75},
					{Duration: time.Minute, Target: 75},
					{Duration: 30 * time.Second, Target: 5},
					{Duration: 2 * time.Minute, Target: 5},
				},
				GracefulRampDown: 30 * time.Second,
				ThinkMin:         200 * time.Millisecond,
				ThinkMax:         600 * time.Millisecond,
			},
			Timeout:        90 * time.Second,
			HealthInterval: 10 * time.Second,
			Thresholds: []threshold.Threshold{
				{Metric: metrics.FailureRate, Stat: threshold.StatValue, Op: threshold.OpLT, Bound: 0.10},
			},
		},
	}
}

// ByName resolves a catalog scenario.
func ByName(name string) (Scenario, error) {
	sc, ok := Catalog()[name]
	if !ok {
		return Scenario{}, fmt.Errorf("unknown scenario %q (have: %v)", name, Names())
	}
	return sc, nil
}

// Names lists the catalog in stable order.
func Names() []string {
	catalog := Catalog()
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
