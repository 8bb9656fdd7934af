package strategy

import (
	"time"

	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/common"
	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/config"
)

const (
	defaultSLAMaxP99         = 1000.0
	defaultSLAMaxErrorRate   = 1.0
	defaultSLAStepMultiplier = 1.5
)

// slaValidation grows the load while the SLA holds
type slaValidation struct {
	initialUsers   int
	maxP99         float64
	maxErrorRate   float64
	stepMultiplier float64
	maxUsers       int
	waitTime       time.Duration
}

// NewSLAValidation creates a new SLA validation strategy. A zero max users value means no cap.
func NewSLAValidation(cfg config.StrategyConfig) *slaValidation {
	return &slaValidation{
		initialUsers:   intOrDefault(cfg.InitialUsers, defaultInitialUsers),
		maxP99:         floatOrDefault(cfg.MaxP99, defaultSLAMaxP99),
		maxErrorRate:   floatOrDefault(cfg.MaxErrorRate, defaultSLAMaxErrorRate),
		stepMultiplier: floatOrDefault(cfg.StepMultiplier, defaultSLAStepMultiplier),
		maxUsers:       cfg.MaxUsers,
		waitTime:       secondsOrDefault(cfg.WaitTimeInSeconds, DefaultWaitTime),
	}
}

// Decide returns STOP(SLAViolated) on a breach and STOP(MaxUsers) when the cap was validated
func (sla *slaValidation) Decide(metrics common.AnalyzedMetrics) common.Verdict {
	raw := metrics.Raw
	if raw.P99 > sla.maxP99 {
		return stop(common.ReasonSLAViolated, true, "p99 %.0f ms exceeds the %.0f ms SLA", raw.P99, sla.maxP99)
	}
	if raw.ErrorRate > sla.maxErrorRate {
		return stop(common.ReasonSLAViolated, true,
			"error rate %.2f%% exceeds the %.2f%% SLA", raw.ErrorRate, sla.maxErrorRate)
	}
	if sla.maxUsers > 0 && raw.Users >= sla.maxUsers {
		return stop(common.ReasonMaxUsers, false, "SLA held up to %d users", raw.Users)
	}

	return proceed(false)
}

// NextUsers multiplies the current load by the step multiplier, capped at max users
func (sla *slaValidation) NextUsers(currentUsers int, _ common.AnalyzedMetrics) int {
	next := sla.initialUsers
	if currentUsers > 0 {
		next = grow(currentUsers, sla.stepMultiplier)
	}
	if sla.maxUsers > 0 && next > sla.maxUsers {
		return sla.maxUsers
	}

	return next
}

// WaitTime returns the time between two load changes
func (sla *slaValidation) WaitTime() time.Duration {
	return sla.waitTime
}

// Reset does nothing, the strategy is stateless
func (sla *slaValidation) Reset() {
}

// Name returns the strategy name
func (sla *slaValidation) Name() string {
	return string(KindSLAValidation)
}

// IsInterfaceNil returns true if the value under the interface is nil
func (sla *slaValidation) IsInterfaceNil() bool {
	return sla == nil
}
