package strategy

import (
	"time"

	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/common"
	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/config"
)

const (
	defaultBreakPointGrowth    = 2.0
	defaultBreakPointErrorRate = 10.0
	breakPointMaxP99           = 10000.0
	breakPointRPSDrop          = 0.5
)

// breakPoint grows the load aggressively until the system stops functioning
type breakPoint struct {
	initialUsers       int
	growthFactor       float64
	errorRateThreshold float64
	waitTime           time.Duration

	previousRPS float64
	hasPrevious bool
}

// NewBreakPoint creates a new break point strategy
func NewBreakPoint(cfg config.StrategyConfig) *breakPoint {
	return &breakPoint{
		initialUsers:       intOrDefault(cfg.InitialUsers, defaultInitialUsers),
		growthFactor:       floatOrDefault(cfg.GrowthFactor, defaultBreakPointGrowth),
		errorRateThreshold: floatOrDefault(cfg.ErrorRateThreshold, defaultBreakPointErrorRate),
		waitTime:           secondsOrDefault(cfg.WaitTimeInSeconds, DefaultWaitTime),
	}
}

// Decide returns STOP(BreakPoint) when the system is broken, CONTINUE otherwise
func (bp *breakPoint) Decide(metrics common.AnalyzedMetrics) common.Verdict {
	raw := metrics.Raw
	previousRPS, hasPrevious := bp.previousRPS, bp.hasPrevious
	bp.previousRPS, bp.hasPrevious = raw.RPS, true

	if raw.ErrorRate >= bp.errorRateThreshold {
		return stop(common.ReasonBreakPoint, true,
			"error rate %.2f%% reached the %.2f%% threshold", raw.ErrorRate, bp.errorRateThreshold)
	}
	if raw.RPS == 0 && raw.Users > 0 {
		return stop(common.ReasonBreakPoint, true, "no throughput with %d active users", raw.Users)
	}
	if raw.P99 > breakPointMaxP99 {
		return stop(common.ReasonBreakPoint, true, "p99 %.0f ms is above %.0f ms", raw.P99, breakPointMaxP99)
	}
	if hasPrevious && previousRPS > 0 {
		drop := (previousRPS - raw.RPS) / previousRPS
		if drop >= breakPointRPSDrop {
			return stop(common.ReasonBreakPoint, true,
				"throughput dropped %.0f%% from %.2f to %.2f rps", drop*100, previousRPS, raw.RPS)
		}
	}

	return proceed(false)
}

// NextUsers multiplies the current load by the growth factor
func (bp *breakPoint) NextUsers(currentUsers int, _ common.AnalyzedMetrics) int {
	if currentUsers == 0 {
		return bp.initialUsers
	}

	return grow(currentUsers, bp.growthFactor)
}

// WaitTime returns the time between two load changes
func (bp *breakPoint) WaitTime() time.Duration {
	return bp.waitTime
}

// Reset forgets the previous sample
func (bp *breakPoint) Reset() {
	bp.previousRPS = 0
	bp.hasPrevious = false
}

// Name returns the strategy name
func (bp *breakPoint) Name() string {
	return string(KindBreakPoint)
}

// IsInterfaceNil returns true if the value under the interface is nil
func (bp *breakPoint) IsInterfaceNil() bool {
	return bp == nil
}
