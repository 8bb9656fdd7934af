package analytics

import (
	"testing"

	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/common"
	"github.com/stretchr/testify/assert"
)

func healthySample() common.RawMetrics {
	return common.RawMetrics{RtAvg: 50, P50: 40, P95: 100, P99: 150, ErrorRate: 0, RPS: 1000, Users: 100}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, NormalizeGrowth(10, 5, 5))
	assert.Equal(t, 0.0, NormalizeGrowth(50, 100, 1000))
	assert.InDelta(t, 0.5, NormalizeGrowth(550, 100, 1000), 1e-9)
	assert.Equal(t, 1.0, NormalizeGrowth(5000, 100, 1000))

	assert.Equal(t, 0.0, NormalizeDrop(2000, 1000, 100))
	assert.InDelta(t, 0.5, NormalizeDrop(550, 1000, 100), 1e-9)
	assert.Equal(t, 1.0, NormalizeDrop(0, 1000, 100))
}

func TestTrendDegradation(t *testing.T) {
	t.Parallel()

	ref := DefaultReferenceMetrics()
	curr := healthySample()

	for _, v := range TrendDegradation(curr, nil, ref) {
		assert.Equal(t, 0.0, v)
	}

	prev := curr
	curr.P95 = 550
	curr.RPS = 550
	trend := TrendDegradation(curr, &prev, ref)
	assert.InDelta(t, 0.5, trend[MetricP95], 1e-9)
	assert.InDelta(t, 0.5, trend[MetricRPS], 1e-9)
	assert.Equal(t, 0.0, trend[MetricP99])

	improved := TrendDegradation(prev, &curr, ref)
	assert.Equal(t, 0.0, improved[MetricP95])
	assert.Equal(t, 0.0, improved[MetricRPS])
}

func TestSpikeDegradation(t *testing.T) {
	t.Parallel()

	history := NewWindow[common.RawMetrics](3)
	history.Append(healthySample())
	history.Append(healthySample())

	spike := SpikeDegradation(common.RawMetrics{P95: 900}, history)
	assert.Equal(t, 0.0, spike[MetricP95], "insufficient history yields 0")

	history.Append(healthySample())
	spike = SpikeDegradation(healthySample(), history)
	assert.Equal(t, 0.0, spike[MetricP95])

	outlier := healthySample()
	outlier.P95 = 900
	spike = SpikeDegradation(outlier, history)
	assert.Equal(t, 1.0, spike[MetricP95])
}

func TestSDICalculator(t *testing.T) {
	t.Parallel()

	t.Run("healthy samples at reference should be zero", func(t *testing.T) {
		calc := NewSDICalculator(ArgsSDICalculator{})
		for i := 0; i < 12; i++ {
			assert.Equal(t, 0.0, calc.Compute(healthySample()).Index)
		}
	})
	t.Run("critical sample should saturate the amplitude", func(t *testing.T) {
		calc := NewSDICalculator(ArgsSDICalculator{})
		critical := common.RawMetrics{RtAvg: 500, P95: 1000, P99: 2000, ErrorRate: 5, RPS: 100}

		breakdown := calc.Compute(critical)
		// amplitude only: alpha * sum(weights) = 0.4
		assert.InDelta(t, 0.4, breakdown.Index, 1e-9)
		assert.Equal(t, 1.0, breakdown.PerMetric[MetricP95].Amplitude)
		assert.Equal(t, 0.0, breakdown.PerMetric[MetricP95].Trend)
	})
	t.Run("index stays in [0, 1]", func(t *testing.T) {
		calc := NewSDICalculator(ArgsSDICalculator{SpikeWindow: 2})
		_ = calc.Compute(healthySample())
		_ = calc.Compute(healthySample())
		breakdown := calc.Compute(common.RawMetrics{RtAvg: 9000, P95: 9000, P99: 9000, ErrorRate: 90, RPS: 0})
		assert.InDelta(t, 1.0, breakdown.Index, 1e-9)
	})
	t.Run("reset should behave like a fresh calculator", func(t *testing.T) {
		samples := []common.RawMetrics{healthySample(), {RtAvg: 100, P95: 300, P99: 500, ErrorRate: 1, RPS: 800}}

		fresh := NewSDICalculator(ArgsSDICalculator{})
		used := NewSDICalculator(ArgsSDICalculator{})
		_ = used.Compute(common.RawMetrics{P95: 5000})
		used.Reset()

		for _, s := range samples {
			assert.Equal(t, fresh.Compute(s), used.Compute(s))
		}
	})
}
