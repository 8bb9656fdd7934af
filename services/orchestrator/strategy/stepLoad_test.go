package strategy

import (
	"testing"
	"time"

	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/common"
	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/config"
	"github.com/stretchr/testify/assert"
)

func createStepLoad() *stepLoad {
	return NewStepLoad(config.StrategyConfig{
		StepSize:              10,
		StepDurationInSeconds: 60,
		MaxUsers:              30,
	})
}

func unstableSample(seconds int, users int) common.AnalyzedMetrics {
	m := sample(seconds, users, 100)
	m.Raw.P99 = 200
	m.Raw.P50 = 50

	return analyzed(m.Raw)
}

func TestStepLoad_Ladder(t *testing.T) {
	t.Parallel()

	sl := createStepLoad()
	assert.Equal(t, 60*time.Second, sl.WaitTime())
	assert.Equal(t, 10, sl.NextUsers(0, common.AnalyzedMetrics{}))

	assert.Equal(t, common.Hold, sl.Decide(sample(0, 10, 100)).Decision)
	assert.Equal(t, common.Hold, sl.Decide(sample(30, 10, 100)).Decision)
	assert.Equal(t, common.Continue, sl.Decide(sample(60, 10, 100)).Decision)
	assert.Equal(t, 20, sl.NextUsers(10, sample(60, 10, 100)))

	assert.Equal(t, common.Hold, sl.Decide(sample(90, 20, 200)).Decision)
	assert.Equal(t, common.Continue, sl.Decide(sample(120, 20, 200)).Decision)
	assert.Equal(t, 30, sl.NextUsers(20, sample(120, 20, 200)))
	assert.Equal(t, 30, sl.NextUsers(25, sample(120, 25, 200)))

	assert.Equal(t, common.Hold, sl.Decide(sample(150, 30, 300)).Decision)
	verdict := sl.Decide(sample(180, 30, 300))
	assert.Equal(t, common.Stop, verdict.Decision)
	assert.Equal(t, common.ReasonMaxUsers, verdict.Reason)
}

func TestStepLoad_Instability(t *testing.T) {
	t.Parallel()

	t.Run("consecutive unstable samples should stop", func(t *testing.T) {
		sl := createStepLoad()
		_ = sl.Decide(sample(0, 10, 100))

		first := sl.Decide(unstableSample(5, 10))
		assert.Equal(t, common.Hold, first.Decision)
		assert.True(t, first.Violation)

		verdict := sl.Decide(unstableSample(10, 10))
		assert.Equal(t, common.Stop, verdict.Decision)
		assert.Equal(t, common.ReasonDegradation, verdict.Reason)
	})
	t.Run("a stable sample resets the counter", func(t *testing.T) {
		sl := createStepLoad()
		_ = sl.Decide(unstableSample(0, 10))
		_ = sl.Decide(sample(5, 10, 100))
		assert.Equal(t, common.Hold, sl.Decide(unstableSample(10, 10)).Decision)
	})
	t.Run("error rate above 5% is unstable", func(t *testing.T) {
		sl := createStepLoad()
		m := sample(0, 10, 100)
		m.Raw.ErrorRate = 5
		assert.False(t, sl.Decide(m).Violation)

		m.Raw.ErrorRate = 5.1
		assert.True(t, sl.Decide(m).Violation)
	})
	t.Run("missing p50 is unstable", func(t *testing.T) {
		sl := createStepLoad()
		m := sample(0, 10, 100)
		m.Raw.P50 = 0
		assert.True(t, sl.Decide(analyzed(m.Raw)).Violation)
	})
}
