package strategy

import (
	"time"

	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/common"
	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/config"
)

const (
	defaultCanaryUsers        = 5
	defaultCanaryDuration     = 60 * time.Second
	defaultCanaryMaxErrorRate = 1.0
	defaultCanaryMaxP99       = 5000.0
)

// canary runs a small constant load: fast fail on errors or latency, fast pass once the duration elapsed
type canary struct {
	users        int
	duration     time.Duration
	maxErrorRate float64
	maxP99       float64

	start   time.Time
	started bool
}

// NewCanary creates a new canary strategy
func NewCanary(cfg config.StrategyConfig) *canary {
	return &canary{
		users:        intOrDefault(cfg.CanaryUsers, intOrDefault(cfg.InitialUsers, defaultCanaryUsers)),
		duration:     secondsOrDefault(cfg.CanaryDurationInSeconds, defaultCanaryDuration),
		maxErrorRate: floatOrDefault(cfg.CanaryMaxErrorRate, defaultCanaryMaxErrorRate),
		maxP99:       floatOrDefault(cfg.CanaryMaxP99, defaultCanaryMaxP99),
	}
}

// Decide starts the timer on the first sample, then stops on the first breach or after the canary duration
func (c *canary) Decide(metrics common.AnalyzedMetrics) common.Verdict {
	raw := metrics.Raw
	if !c.started {
		c.started = true
		c.start = raw.Timestamp
		return hold(false)
	}

	if raw.ErrorRate > c.maxErrorRate {
		return stop(common.ReasonDegradation, true,
			"canary error rate %.2f%% above %.2f%%", raw.ErrorRate, c.maxErrorRate)
	}
	if raw.P99 > c.maxP99 {
		return stop(common.ReasonDegradation, true, "canary p99 %.0f ms above %.0f ms", raw.P99, c.maxP99)
	}
	if raw.Timestamp.Sub(c.start) >= c.duration {
		return stop(common.ReasonTargetReached, false, "canary passed after %s", c.duration)
	}

	return hold(false)
}

// NextUsers always returns the canary load
func (c *canary) NextUsers(_ int, _ common.AnalyzedMetrics) int {
	return c.users
}

// WaitTime returns the time between two load changes
func (c *canary) WaitTime() time.Duration {
	return DefaultWaitTime
}

// Reset stops the canary timer
func (c *canary) Reset() {
	c.start = time.Time{}
	c.started = false
}

// Name returns the strategy name
func (c *canary) Name() string {
	return string(KindCanary)
}

// IsInterfaceNil returns true if the value under the interface is nil
func (c *canary) IsInterfaceNil() bool {
	return c == nil
}
