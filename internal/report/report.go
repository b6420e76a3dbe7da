package report

import (
	"time"

	"pixload/internal/metrics"
	"pixload/internal/sched"
	"pixload/internal/threshold"
)

// Degradation indicator names. Stable identifiers: the recommendation
// mapping and downstream tooling key off them.
const (
	IndicatorHighErrorRate  = "high-error-rate"
	IndicatorDegradedP95    = "degraded-latency"
	IndicatorHealthFailures = "health-check-failures"
)

// recommendations is the deterministic indicator -> advice mapping.
var recommendations = map[string]string{
	IndicatorHighErrorRate:  "Sustained error rate exceeded the soak limit; inspect backend capacity and gateway queue sizing.",
	IndicatorDegradedP95:    "p95 latency degraded under sustained load; look for resource leaks or growing queues in the gateway.",
	IndicatorHealthFailures: "Liveness probes failed repeatedly during the run; check gateway stability and restart behavior.",
}

const breakingPointRecommendation = "Failure rate passed the breaking-point trigger; cap production traffic below the sustainable throughput estimate or scale the backends out."

// ConfigEcho is the configuration snapshot embedded in every report. The
// credential is deliberately absent.
type ConfigEcho struct {
	TargetURL  string        `json:"target_url"`
	Discipline string        `json:"discipline"`
	Stages     []sched.Stage `json:"stages"`
	Debug      bool          `json:"debug"`
}

// Summary is the aggregate metrics block of a report.
type Summary struct {
	TotalRequests uint64 `json:"total_requests"`
	Succeeded     uint64 `json:"succeeded"`
	Failed        uint64 `json:"failed"`

	// Arrival-rate runs also record scheduled demand and shed arrivals;
	// both are zero for worker-count runs.
	RequestedArrivals uint64 `json:"requested_arrivals"`
	DroppedArrivals   uint64 `json:"dropped_arrivals"`

	DurationSec float64 `json:"duration_sec"`
	// Throughput is the achieved rate in requests per second.
	Throughput float64 `json:"throughput_rps"`
	// ErrorRate is a fraction in [0, 1].
	ErrorRate float64 `json:"error_rate"`

	Latency metrics.TrendStats `json:"latency"`

	HealthChecks      uint64 `json:"health_checks"`
	HealthCheckFailed uint64 `json:"health_checks_failed"`
}

// BreakingPoint is the stress/breakpoint analysis block.
type BreakingPoint struct {
	// Reached is true once the failure rate passed the trigger.
	Reached     bool    `json:"reached"`
	TriggerRate float64 `json:"trigger_rate"`
	FailureRate float64 `json:"failure_rate"`
	// ObservedRPS is the throughput at which the estimate was taken.
	ObservedRPS float64 `json:"observed_rps"`
	// SustainableRPS is observed * (1 - failure_rate) * 0.9, a
	// conservative estimate of what the target can actually hold.
	// Zero when the trigger was not reached.
	SustainableRPS float64 `json:"sustainable_rps"`
}

// Degradation is the soak analysis block. Stable iff no indicator fired.
type Degradation struct {
	Stable     bool     `json:"stable"`
	Indicators []string `json:"indicators"`
}

// Analysis is the scenario-specific part of a report. Absent blocks are nil;
// Recommendations is always non-nil, empty when nothing fired.
type Analysis struct {
	BreakingPoint   *BreakingPoint `json:"breaking_point,omitempty"`
	Degradation     *Degradation   `json:"degradation,omitempty"`
	Recommendations []string       `json:"recommendations"`
}

// Report is the run's final document, composed once after teardown and never
// mutated afterwards.
type Report struct {
	RunID      string             `json:"run_id"`
	Scenario   string             `json:"scenario"`
	Timestamp  time.Time          `json:"timestamp"`
	Config     ConfigEcho         `json:"config"`
	Summary    Summary            `json:"summary"`
	Thresholds []threshold.Result `json:"thresholds"`
	Passed     bool               `json:"passed"`
	Analysis   Analysis           `json:"analysis"`
}

// SoakLimits configures the degradation indicators of a soak run.
type SoakLimits struct {
	MaxErrorRate      float64 `json:"max_error_rate"`
	MaxP95Ms          float64 `json:"max_p95_ms"`
	MaxHealthFailures uint64  `json:"max_health_failures"`
}

// AnalysisConfig selects which derived analysis a scenario gets.
type AnalysisConfig struct {
	// BreakTrigger is the failure-rate fraction beyond which a breaking
	// point is estimated. Zero disables the block.
	BreakTrigger float64
	// Soak enables degradation indicators when non-nil.
	Soak *SoakLimits
}

// Compose builds the report from one metrics snapshot. Pure with respect to
// the snapshot: it reads nothing else and has no side effects.
func Compose(runID, scenario string, echo ConfigEcho, snap metrics.Snapshot,
	elapsed time.Duration, thresholds []threshold.Result, ac AnalysisConfig) Report {

	sum := summarize(snap, elapsed)
	return Report{
		RunID:      runID,
		Scenario:   scenario,
		Timestamp:  time.Now().UTC(),
		Config:     echo,
		Summary:    sum,
		Thresholds: thresholds,
		Passed:     threshold.AllPassed(thresholds),
		Analysis:   analyze(sum, ac),
	}
}

func summarize(snap metrics.Snapshot, elapsed time.Duration) Summary {
	sum := Summary{
		TotalRequests:     snap.Counters[metrics.ReqIssued],
		Succeeded:         snap.Counters[metrics.ReqSucceeded],
		Failed:            snap.Counters[metrics.ReqFailed],
		RequestedArrivals: snap.Counters[metrics.ReqRequested],
		DroppedArrivals:   snap.Counters[metrics.ReqDropped],
		DurationSec:       elapsed.Seconds(),
		ErrorRate:         snap.Rates[metrics.FailureRate],
		Latency:           snap.Trends[metrics.ReqDuration],
		HealthChecks:      snap.Counters[metrics.HealthChecks],
		HealthCheckFailed: snap.Counters[metrics.HealthChecksFailed],
	}
	if sum.DurationSec > 0 {
		sum.Throughput = float64(sum.TotalRequests) / sum.DurationSec
	}
	return sum
}

func analyze(sum Summary, ac AnalysisConfig) Analysis {
	a := Analysis{Recommendations: []string{}}

	if ac.BreakTrigger > 0 {
		bp := &BreakingPoint{
			TriggerRate: ac.BreakTrigger,
			FailureRate: sum.ErrorRate,
			ObservedRPS: sum.Throughput,
		}
		if sum.ErrorRate > ac.BreakTrigger {
			bp.Reached = true
			bp.SustainableRPS = sum.Throughput * (1 - sum.ErrorRate) * 0.9
			a.Recommendations = append(a.Recommendations, breakingPointRecommendation)
		}
		a.BreakingPoint = bp
	}

	if ac.Soak != nil {
		deg := &Degradation{Indicators: []string{}}
		if sum.ErrorRate > ac.Soak.MaxErrorRate {
			deg.Indicators = append(deg.Indicators, IndicatorHighErrorRate)
		}
		if sum.Latency.P95Ms > ac.Soak.MaxP95Ms {
			deg.Indicators = append(deg.Indicators, IndicatorDegradedP95)
		}
		if sum.HealthCheckFailed > ac.Soak.MaxHealthFailures {
			deg.Indicators = append(deg.Indicators, IndicatorHealthFailures)
		}
		deg.Stable = len(deg.Indicators) == 0
		for _, ind := range deg.Indicators {
			a.Recommendations = append(a.Recommendations, recommendations[ind])
		}
		a.Degradation = deg
	}

	return a
}
