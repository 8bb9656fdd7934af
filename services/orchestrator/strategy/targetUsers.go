package strategy

import (
	"fmt"
	"time"

	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/common"
	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/config"
)

const (
	defaultTargetUsersGrowth    = 1.5
	defaultTargetMaxDegradation = 0.8
	defaultStabilityChecks      = 3
)

// targetUsers grows the load up to a fixed user count and confirms it stays healthy there
type targetUsers struct {
	initialUsers    int
	target          int
	growthFactor    float64
	maxDegradation  float64
	stabilityChecks int
	waitTime        time.Duration

	healthyChecks int
}

// NewTargetUsers creates a new target users strategy
func NewTargetUsers(cfg config.StrategyConfig) (*targetUsers, error) {
	if cfg.TargetUsers <= 0 {
		return nil, fmt.Errorf("%w: target_users must be positive", ErrInvalidParameter)
	}

	return &targetUsers{
		initialUsers:    intOrDefault(cfg.InitialUsers, defaultInitialUsers),
		target:          cfg.TargetUsers,
		growthFactor:    floatOrDefault(cfg.GrowthFactor, defaultTargetUsersGrowth),
		maxDegradation:  floatOrDefault(cfg.MaxDegradation, defaultTargetMaxDegradation),
		stabilityChecks: intOrDefault(cfg.StabilityChecks, defaultStabilityChecks),
		waitTime:        secondsOrDefault(cfg.WaitTimeInSeconds, DefaultWaitTime),
	}, nil
}

// Decide returns STOP(Degradation) on a high degradation index, CONTINUE below the target,
// HOLD at the target and STOP(TargetReached) after enough healthy checks there
func (tu *targetUsers) Decide(metrics common.AnalyzedMetrics) common.Verdict {
	if metrics.DegradationIndex >= tu.maxDegradation {
		return stop(common.ReasonDegradation, true,
			"degradation index %.2f reached %.2f", metrics.DegradationIndex, tu.maxDegradation)
	}
	if metrics.Raw.Users < tu.target {
		tu.healthyChecks = 0
		return proceed(false)
	}

	tu.healthyChecks++
	if tu.healthyChecks >= tu.stabilityChecks {
		return stop(common.ReasonTargetReached, false,
			"%d users held for %d healthy checks", metrics.Raw.Users, tu.healthyChecks)
	}

	return hold(false)
}

// NextUsers multiplies the current load by the growth factor, capped at the target
func (tu *targetUsers) NextUsers(currentUsers int, _ common.AnalyzedMetrics) int {
	next := tu.initialUsers
	if currentUsers > 0 {
		next = grow(currentUsers, tu.growthFactor)
	}
	if next > tu.target {
		return tu.target
	}

	return next
}

// WaitTime returns the time between two load changes
func (tu *targetUsers) WaitTime() time.Duration {
	return tu.waitTime
}

// Reset clears the healthy checks counter
func (tu *targetUsers) Reset() {
	tu.healthyChecks = 0
}

// Name returns the strategy name
func (tu *targetUsers) Name() string {
	return string(KindTargetUsers)
}

// IsInterfaceNil returns true if the value under the interface is nil
func (tu *targetUsers) IsInterfaceNil() bool {
	return tu == nil
}
