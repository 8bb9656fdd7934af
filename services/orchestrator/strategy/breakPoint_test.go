package strategy

import (
	"testing"
	"time"

	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/common"
	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/config"
	"github.com/stretchr/testify/assert"
)

func TestBreakPoint_Decide(t *testing.T) {
	t.Parallel()

	t.Run("rps halving should stop even when healthy", func(t *testing.T) {
		bp := NewBreakPoint(config.StrategyConfig{})
		assert.Equal(t, common.Continue, bp.Decide(sample(0, 10, 100)).Decision)

		current := sample(5, 20, 40)
		current.Raw.ErrorRate = 0
		current.Raw.P99 = 50
		verdict := bp.Decide(current)
		assert.Equal(t, common.Stop, verdict.Decision)
		assert.Equal(t, common.ReasonBreakPoint, verdict.Reason)
		assert.True(t, verdict.Violation)
	})
	t.Run("rps drop threshold is inclusive", func(t *testing.T) {
		bp := NewBreakPoint(config.StrategyConfig{})
		_ = bp.Decide(sample(0, 10, 100))
		assert.Equal(t, common.Continue, bp.Decide(sample(5, 20, 51)).Decision)

		bp.Reset()
		_ = bp.Decide(sample(0, 10, 100))
		assert.Equal(t, common.Stop, bp.Decide(sample(5, 20, 50)).Decision)
	})
	t.Run("error rate threshold is inclusive", func(t *testing.T) {
		bp := NewBreakPoint(config.StrategyConfig{})
		m := sample(0, 10, 100)
		m.Raw.ErrorRate = 9.99
		assert.Equal(t, common.Continue, bp.Decide(m).Decision)

		m.Raw.ErrorRate = 10
		assert.Equal(t, common.Stop, bp.Decide(m).Decision)
	})
	t.Run("p99 above 10s should stop", func(t *testing.T) {
		bp := NewBreakPoint(config.StrategyConfig{})
		m := sample(0, 10, 100)
		m.Raw.P99 = 10000
		assert.Equal(t, common.Continue, bp.Decide(m).Decision)

		m.Raw.P99 = 10001
		assert.Equal(t, common.Stop, bp.Decide(m).Decision)
	})
	t.Run("no throughput with users should stop", func(t *testing.T) {
		bp := NewBreakPoint(config.StrategyConfig{})
		assert.Equal(t, common.Continue, bp.Decide(sample(0, 0, 0)).Decision)
		assert.Equal(t, common.Stop, bp.Decide(sample(5, 5, 0)).Decision)
	})
}

func TestBreakPoint_NextUsers(t *testing.T) {
	t.Parallel()

	bp := NewBreakPoint(config.StrategyConfig{})
	assert.Equal(t, 10, bp.NextUsers(0, common.AnalyzedMetrics{}))
	assert.Equal(t, 20, bp.NextUsers(10, common.AnalyzedMetrics{}))
	assert.Equal(t, DefaultWaitTime, bp.WaitTime())

	bp = NewBreakPoint(config.StrategyConfig{InitialUsers: 3, GrowthFactor: 1.2, WaitTimeInSeconds: 5})
	assert.Equal(t, 3, bp.NextUsers(0, common.AnalyzedMetrics{}))
	assert.Equal(t, 4, bp.NextUsers(3, common.AnalyzedMetrics{}))
	assert.Equal(t, 5*time.Second, bp.WaitTime())
}
