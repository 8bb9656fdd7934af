package strategy

import (
	"fmt"
	"math"
	"time"

	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/common"
	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/config"
)

const (
	defaultTolerance    = 0.05
	defaultTestDuration = 60 * time.Second
	minimumRPS          = 0.01
)

// targetRPS drives the load towards a target throughput with a damped proportional controller
// and stops once the target was sustained for the test duration
type targetRPS struct {
	initialUsers   int
	target         float64
	tolerance      float64
	testDuration   time.Duration
	maxDegradation float64
	waitTime       time.Duration

	holding   bool
	holdStart time.Time
}

// NewTargetRPS creates a new target RPS strategy
func NewTargetRPS(cfg config.StrategyConfig) (*targetRPS, error) {
	if cfg.TargetRPS <= 0 {
		return nil, fmt.Errorf("%w: target_rps must be positive", ErrInvalidParameter)
	}

	return &targetRPS{
		initialUsers:   intOrDefault(cfg.InitialUsers, defaultInitialUsers),
		target:         cfg.TargetRPS,
		tolerance:      floatOrDefault(cfg.Tolerance, defaultTolerance),
		testDuration:   secondsOrDefault(cfg.TestDurationInSeconds, defaultTestDuration),
		maxDegradation: cfg.MaxDegradation,
		waitTime:       secondsOrDefault(cfg.WaitTimeInSeconds, DefaultWaitTime),
	}, nil
}

// Decide holds while the throughput is within the tolerance band and stops once it was held long enough
func (tr *targetRPS) Decide(metrics common.AnalyzedMetrics) common.Verdict {
	raw := metrics.Raw
	if tr.maxDegradation > 0 && metrics.DegradationIndex >= tr.maxDegradation {
		tr.holding = false
		return stop(common.ReasonDegradation, true,
			"degradation index %.2f reached %.2f before the target", metrics.DegradationIndex, tr.maxDegradation)
	}

	if tr.deviation(raw.RPS) > tr.tolerance {
		tr.holding = false
		return proceed(false)
	}

	if !tr.holding {
		tr.holding = true
		tr.holdStart = raw.Timestamp
	}
	held := raw.Timestamp.Sub(tr.holdStart)
	if held >= tr.testDuration {
		return stop(common.ReasonTargetReached, false,
			"%.2f rps sustained for %s", raw.RPS, held)
	}

	return hold(false)
}

// NextUsers estimates the users needed for the target and moves a damped fraction of the way there.
// The result is floored.
func (tr *targetRPS) NextUsers(currentUsers int, metrics common.AnalyzedMetrics) int {
	if currentUsers == 0 {
		return tr.initialUsers
	}

	rps := metrics.Raw.RPS
	if rps < minimumRPS {
		return currentUsers * 2
	}

	current := float64(currentUsers)
	idealUsers := tr.target * (current / rps)
	next := int(math.Floor(current + (idealUsers-current)*damping(tr.deviation(rps))))
	if next < 1 {
		return 1
	}

	return next
}

func (tr *targetRPS) deviation(rps float64) float64 {
	return math.Abs(rps-tr.target) / tr.target
}

func damping(deviation float64) float64 {
	switch {
	case deviation < 0.1:
		return 0.3
	case deviation < 0.2:
		return 0.5
	default:
		return 0.7
	}
}

// WaitTime returns the time between two load changes
func (tr *targetRPS) WaitTime() time.Duration {
	return tr.waitTime
}

// Reset stops the hold timer
func (tr *targetRPS) Reset() {
	tr.holding = false
	tr.holdStart = time.Time{}
}

// Name returns the strategy name
func (tr *targetRPS) Name() string {
	return string(KindTargetRPS)
}

// IsInterfaceNil returns true if the value under the interface is nil
func (tr *targetRPS) IsInterfaceNil() bool {
	return tr == nil
}
