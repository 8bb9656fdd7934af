package analytics

import (
	"math"

	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/common"
)

const (
	// DefaultSpikeWindow is the number of previous samples the spike component is computed over
	DefaultSpikeWindow = 10

	spikeEpsilon = 1e-6
)

// metric names used by the SDI breakdown
const (
	MetricRtAvg     = "rt_avg"
	MetricP95       = "rt_95"
	MetricP99       = "rt_99"
	MetricErrorRate = "error_rate"
	MetricRPS       = "rps"
)

var sdiMetrics = []string{MetricRtAvg, MetricP95, MetricP99, MetricErrorRate, MetricRPS}

var sdiWeights = map[string]float64{
	MetricP95:       0.30,
	MetricP99:       0.25,
	MetricErrorRate: 0.25,
	MetricRPS:       0.15,
	MetricRtAvg:     0.05,
}

// ReferenceMetrics holds the reference (healthy) and critical values used to normalize the SDI components
type ReferenceMetrics struct {
	RtAvgRef     float64
	P95Ref       float64
	P99Ref       float64
	ErrorRateRef float64
	RPSRef       float64

	RtAvgCrit     float64
	P95Crit       float64
	P99Crit       float64
	ErrorRateCrit float64
	RPSCrit       float64
}

// DefaultReferenceMetrics returns the reference values used when none are configured
func DefaultReferenceMetrics() ReferenceMetrics {
	return ReferenceMetrics{
		RtAvgRef:      50,
		P95Ref:        100,
		P99Ref:        150,
		ErrorRateRef:  0,
		RPSRef:        1000,
		RtAvgCrit:     500,
		P95Crit:       1000,
		P99Crit:       2000,
		ErrorRateCrit: 5,
		RPSCrit:       100,
	}
}

// SDIWeights are the amplitude, trend and spike coefficients, summing up to 1
type SDIWeights struct {
	Alpha float64
	Beta  float64
	Gamma float64
}

// DefaultSDIWeights returns 0.4/0.3/0.3
func DefaultSDIWeights() SDIWeights {
	return SDIWeights{Alpha: 0.4, Beta: 0.3, Gamma: 0.3}
}

// Components holds the amplitude, trend and spike degradation of one metric, each in [0, 1]
type Components struct {
	Amplitude float64
	Trend     float64
	Spike     float64
}

// SDIBreakdown is the full SDI computation of one sample
type SDIBreakdown struct {
	PerMetric map[string]Components
	Index     float64
}

// ArgsSDICalculator is the DTO used to create a new SDI calculator
type ArgsSDICalculator struct {
	Reference   ReferenceMetrics
	Weights     SDIWeights
	SpikeWindow int
}

// SDICalculator computes the system degradation index from the raw sample stream.
// It keeps the previous sample (trend) and a trailing window (spike).
type SDICalculator struct {
	reference ReferenceMetrics
	weights   SDIWeights
	prev      *common.RawMetrics
	history   *Window[common.RawMetrics]
}

// NewSDICalculator creates a new SDI calculator, zero valued arguments are replaced by defaults
func NewSDICalculator(args ArgsSDICalculator) *SDICalculator {
	if args.Reference == (ReferenceMetrics{}) {
		args.Reference = DefaultReferenceMetrics()
	}
	if args.Weights == (SDIWeights{}) {
		args.Weights = DefaultSDIWeights()
	}
	if args.SpikeWindow <= 0 {
		args.SpikeWindow = DefaultSpikeWindow
	}

	return &SDICalculator{
		reference: args.Reference,
		weights:   args.Weights,
		history:   NewWindow[common.RawMetrics](args.SpikeWindow),
	}
}

// Compute returns the SDI breakdown of the current sample and records it for the next computations
func (calc *SDICalculator) Compute(curr common.RawMetrics) SDIBreakdown {
	amplitude := AmplitudeDegradation(curr, calc.reference)
	trend := TrendDegradation(curr, calc.prev, calc.reference)
	spike := SpikeDegradation(curr, calc.history)

	breakdown := SDIBreakdown{
		PerMetric: make(map[string]Components, len(sdiMetrics)),
	}

	index := 0.0
	for _, name := range sdiMetrics {
		c := Components{
			Amplitude: amplitude[name],
			Trend:     trend[name],
			Spike:     spike[name],
		}
		breakdown.PerMetric[name] = c

		d := calc.weights.Alpha*c.Amplitude + calc.weights.Beta*c.Trend + calc.weights.Gamma*c.Spike
		index += sdiWeights[name] * math.Min(1, d)
	}
	breakdown.Index = clamp01(index)

	prev := curr
	calc.prev = &prev
	calc.history.Append(curr)

	return breakdown
}

// Reset forgets the previous samples
func (calc *SDICalculator) Reset() {
	calc.prev = nil
	calc.history.Clear()
}

// NormalizeGrowth maps value to [0, 1] where ref is healthy and crit is critical (higher is worse)
func NormalizeGrowth(value float64, ref float64, crit float64) float64 {
	if crit == ref {
		return 0
	}

	return clamp01((value - ref) / (crit - ref))
}

// NormalizeDrop maps value to [0, 1] where ref is healthy and crit is critical (lower is worse)
func NormalizeDrop(value float64, ref float64, crit float64) float64 {
	if crit == ref {
		return 0
	}

	return clamp01((ref - value) / (ref - crit))
}

// AmplitudeDegradation returns the deviation of each metric from its reference
func AmplitudeDegradation(curr common.RawMetrics, ref ReferenceMetrics) map[string]float64 {
	return map[string]float64{
		MetricRtAvg:     NormalizeGrowth(curr.RtAvg, ref.RtAvgRef, ref.RtAvgCrit),
		MetricP95:       NormalizeGrowth(curr.P95, ref.P95Ref, ref.P95Crit),
		MetricP99:       NormalizeGrowth(curr.P99, ref.P99Ref, ref.P99Crit),
		MetricErrorRate: NormalizeGrowth(curr.ErrorRate, ref.ErrorRateRef, ref.ErrorRateCrit),
		MetricRPS:       NormalizeDrop(curr.RPS, ref.RPSRef, ref.RPSCrit),
	}
}

// TrendDegradation returns the worsening of each metric since the previous sample,
// normalized against the reference/critical span. A nil previous sample yields zeros.
func TrendDegradation(curr common.RawMetrics, prev *common.RawMetrics, ref ReferenceMetrics) map[string]float64 {
	if prev == nil {
		return zeroComponents()
	}

	return map[string]float64{
		MetricRtAvg:     normalizeDelta(curr.RtAvg-prev.RtAvg, ref.RtAvgRef, ref.RtAvgCrit),
		MetricP95:       normalizeDelta(curr.P95-prev.P95, ref.P95Ref, ref.P95Crit),
		MetricP99:       normalizeDelta(curr.P99-prev.P99, ref.P99Ref, ref.P99Crit),
		MetricErrorRate: normalizeDelta(curr.ErrorRate-prev.ErrorRate, ref.ErrorRateRef, ref.ErrorRateCrit),
		MetricRPS:       normalizeDelta(prev.RPS-curr.RPS, ref.RPSCrit, ref.RPSRef),
	}
}

func normalizeDelta(delta float64, ref float64, crit float64) float64 {
	if crit == ref {
		return 0
	}

	return clamp01(delta / (crit - ref))
}

// SpikeDegradation returns a z-score like instability of each metric against the trailing window.
// A window that is not yet full yields zeros.
func SpikeDegradation(curr common.RawMetrics, history *Window[common.RawMetrics]) map[string]float64 {
	if !history.IsFull() {
		return zeroComponents()
	}

	items := history.Items()
	extract := func(getter func(m common.RawMetrics) float64) []float64 {
		values := make([]float64, 0, len(items))
		for _, m := range items {
			values = append(values, getter(m))
		}

		return values
	}

	return map[string]float64{
		MetricRtAvg:     spikeScore(curr.RtAvg, extract(func(m common.RawMetrics) float64 { return m.RtAvg })),
		MetricP95:       spikeScore(curr.P95, extract(func(m common.RawMetrics) float64 { return m.P95 })),
		MetricP99:       spikeScore(curr.P99, extract(func(m common.RawMetrics) float64 { return m.P99 })),
		MetricErrorRate: spikeScore(curr.ErrorRate, extract(func(m common.RawMetrics) float64 { return m.ErrorRate })),
		MetricRPS:       spikeScore(curr.RPS, extract(func(m common.RawMetrics) float64 { return m.RPS })),
	}
}

func spikeScore(value float64, window []float64) float64 {
	mean := Mean(window)
	std := StdDev(window)

	return math.Min(1, math.Abs(value-mean)/(std+spikeEpsilon))
}

func zeroComponents() map[string]float64 {
	out := make(map[string]float64, len(sdiMetrics))
	for _, name := range sdiMetrics {
		out[name] = 0
	}

	return out
}
