package analytics

import (
	"math"

	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/common"
	logger "github.com/multiversx/mx-chain-logger-go"
)

var log = logger.GetOrCreate("analytics")

const (
	// DefaultWindowSize is the number of raw samples kept by the analyzer
	DefaultWindowSize = 5

	// stabilityThreshold is the p99/p50 ratio considered unstable
	stabilityThreshold = 3.0
	// errorRateThreshold is the error rate (%) considered critical
	errorRateThreshold = 5.0
	efficiencyTarget   = 1.0

	stabilityWeight  = 0.5
	efficiencyWeight = 0.3
	errorsWeight     = 0.2
)

// analyzer keeps a sliding window of raw samples and derives stability, scaling efficiency
// and the composite degradation index for every new sample
type analyzer struct {
	window *Window[common.RawMetrics]
}

// NewAnalyzer creates an analyzer with the provided window size
func NewAnalyzer(windowSize int) *analyzer {
	if windowSize < 2 {
		windowSize = DefaultWindowSize
	}

	return &analyzer{
		window: NewWindow[common.RawMetrics](windowSize),
	}
}

// Analyze appends the raw sample to the window and returns its analyzed view
func (a *analyzer) Analyze(raw common.RawMetrics) common.AnalyzedMetrics {
	a.window.Append(raw)

	stability := Stability(raw)
	efficiency := a.scalingEfficiency()
	index := DegradationIndex(stability, efficiency, raw.ErrorRate)

	log.Trace("analyzed sample",
		"users", raw.Users,
		"stability", stability,
		"efficiency", efficiency,
		"degradation index", index)

	return common.AnalyzedMetrics{
		Raw:               raw,
		Stability:         stability,
		ScalingEfficiency: efficiency,
		DegradationIndex:  index,
	}
}

func (a *analyzer) scalingEfficiency() float64 {
	items := a.window.Items()
	if len(items) < 2 {
		return 0
	}

	return ScalingEfficiency(items[len(items)-2], items[len(items)-1])
}

// Window returns a copy of the retained samples, oldest first
func (a *analyzer) Window() []common.RawMetrics {
	return a.window.Items()
}

// Reset clears the retained samples
func (a *analyzer) Reset() {
	a.window.Clear()
}

// IsInterfaceNil returns true if the value under the interface is nil
func (a *analyzer) IsInterfaceNil() bool {
	return a == nil
}

// Stability returns the p99/p50 ratio, +Inf when p50 is zero (no signal, treated as unstable)
func Stability(raw common.RawMetrics) float64 {
	if raw.P50 == 0 {
		return math.Inf(1)
	}

	return raw.P99 / raw.P50
}

// ScalingEfficiency returns the throughput gained per added user between two samples,
// 0 when the user count did not change
func ScalingEfficiency(prev common.RawMetrics, curr common.RawMetrics) float64 {
	deltaUsers := curr.Users - prev.Users
	if deltaUsers == 0 {
		return 0
	}

	return (curr.RPS - prev.RPS) / float64(deltaUsers)
}

// DegradationIndex blends stability, scaling efficiency and error rate into a [0, 1] score
func DegradationIndex(stability float64, efficiency float64, errorRate float64) float64 {
	stabilityScore := 1.0
	if !math.IsInf(stability, 1) && !math.IsNaN(stability) {
		stabilityScore = math.Min(stability/stabilityThreshold, 1)
	}

	efficiencyScore := 1.0
	if efficiency > 0 {
		efficiencyScore = 1 - math.Min(efficiency/efficiencyTarget, 1)
	}

	errorScore := math.Min(errorRate/errorRateThreshold, 1)

	index := stabilityScore*stabilityWeight + efficiencyScore*efficiencyWeight + errorScore*errorsWeight

	return clamp01(index)
}
