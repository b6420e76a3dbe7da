package sched

import (
	"errors"
	"fmt"
	"time"
)

// Discipline selects how the stage targets are realized: as a pool of
// concurrent workers or as a request arrival rate served by an elastic pool.
type Discipline string

const (
	ConstantWorkers Discipline = "constant-workers"
	RampingWorkers  Discipline = "ramping-workers"
	ConstantArrival Discipline = "constant-arrival-rate"
	RampingArrival  Discipline = "ramping-arrival-rate"
)

// Stage is one segment of the load timeline. Target is a worker count or an
// arrival rate depending on the profile's discipline.
type Stage struct {
	Duration time.Duration `json:"duration"`
	Target   float64       `json:"target"`
}

// Profile declares one run's load shape. Immutable once a run starts.
type Profile struct {
	Discipline Discipline `json:"discipline"`
	Stages     []Stage    `json:"stages"`

	// GracefulRampDown bounds the drain at the end of the run (and on
	// downward scaling): workers finish their in-flight iteration, and
	// anything still running after the window is forcibly stopped.
	GracefulRampDown time.Duration `json:"graceful_ramp_down"`

	// MaxWorkers bounds the elastic pool for the arrival-rate disciplines.
	MaxWorkers int `json:"max_workers,omitempty"`

	// Per is the time unit of arrival-rate targets (a target of 60 with
	// Per=time.Minute is one request a second). Zero means per second.
	Per time.Duration `json:"per,omitempty"`

	// Think time bounds for the worker disciplines; each worker idles a
	// uniformly random duration in [ThinkMin, ThinkMax] between iterations.
	ThinkMin time.Duration `json:"think_min,omitempty"`
	ThinkMax time.Duration `json:"think_max,omitempty"`
}

var errNoStages = errors.New("profile has no stages")

func (p Profile) Validate() error {
	switch p.Discipline {
	case ConstantWorkers, RampingWorkers, ConstantArrival, RampingArrival:
	default:
		return fmt.Errorf("unknown discipline %q", p.Discipline)
	}
	if len(p.Stages) == 0 {
		return errNoStages
	}
	for i, st := range p.Stages {
		if st.Duration <= 0 {
			return fmt.Errorf("stage %d: duration must be positive", i)
		}
		if st.Target < 0 {
			return fmt.Errorf("stage %d: target must be non-negative", i)
		}
	}
	if p.arrival() && p.MaxWorkers <= 0 {
		return errors.New("arrival-rate profiles need max_workers > 0")
	}
	if p.ThinkMax < p.ThinkMin {
		return errors.New("think_max must be >= think_min")
	}
	return nil
}

// TotalDuration is the sum of all stage durations. The stages exhaustively
// partition [0, TotalDuration); the drain window comes on top.
func (p Profile) TotalDuration() time.Duration {
	var total time.Duration
	for _, st := range p.Stages {
		total += st.Duration
	}
	return total
}

// TargetAt evaluates the stage curve at the given offset from run start.
// Ramping disciplines interpolate linearly from the previous stage's target
// (from zero for the first stage); constant disciplines hold each stage's
// target as a plateau. Past the last stage the target is zero.
func (p Profile) TargetAt(elapsed time.Duration) float64 {
	if elapsed < 0 {
		elapsed = 0
	}
	prev := 0.0
	var offset time.Duration
	for _, st := range p.Stages {
		end := offset + st.Duration
		if elapsed < end {
			if !p.ramping() {
				return st.Target
			}
			frac := float64(elapsed-offset) / float64(st.Duration)
			return prev + (st.Target-prev)*frac
		}
		prev = st.Target
		offset = end
	}
	return 0
}

func (p Profile) ramping() bool {
	return p.Discipline == RampingWorkers || p.Discipline == RampingArrival
}

func (p Profile) arrival() bool {
	return p.Discipline == ConstantArrival || p.Discipline == RampingArrival
}

// ratePerSecond converts a stage target to requests per second.
func (p Profile) ratePerSecond(target float64) float64 {
	per := p.Per
	if per <= 0 {
		per = time.Second
	}
	return target / per.Seconds()
}
