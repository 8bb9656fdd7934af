package strategy

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/analytics"
	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/common"
	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/config"
	"github.com/samber/lo"
)

// degradation search detection modes
const (
	ModeSDI      = "sdi"
	ModeBaseline = "baseline"
)

const (
	defaultStepUsers      = 10
	defaultWarmupSamples  = 15
	defaultVoteWindow     = 5
	defaultVoteThreshold  = 3
	defaultSDIThreshold   = 0.5
	defaultBaselineWindow = 10
	defaultCheckWindow    = 3
	defaultMultiplier     = 1.5
	defaultMinErrorRate   = 1.0
)

// degradationSearch adds a fixed number of users per change and stops on confirmed degradation.
// In sdi mode a sample votes "degraded" when its SDI reaches the threshold and the test stops once
// enough votes accumulate in the trailing window. In baseline mode the recent samples are compared
// against the rolling median of the healthy ones.
type degradationSearch struct {
	mode         string
	initialUsers int
	stepUsers    int
	waitTime     time.Duration

	warmupSamples int
	voteThreshold int
	sdiThreshold  float64
	sdi           *analytics.SDICalculator
	votes         *analytics.Window[bool]
	samples       int

	multiplier   float64
	minErrorRate float64
	baseline     *analytics.Window[common.RawMetrics]
	checks       *analytics.Window[bool]
}

// NewDegradationSearch creates a new degradation search strategy
func NewDegradationSearch(cfg config.StrategyConfig) (*degradationSearch, error) {
	mode := strings.ToLower(cfg.Mode)
	if mode == "" {
		mode = ModeSDI
	}
	if mode != ModeSDI && mode != ModeBaseline {
		return nil, fmt.Errorf("%w: unknown degradation search mode %q", ErrInvalidParameter, cfg.Mode)
	}

	voteWindow := intOrDefault(cfg.VoteWindow, defaultVoteWindow)
	voteThreshold := intOrDefault(cfg.VoteThreshold, defaultVoteThreshold)
	if voteThreshold > voteWindow {
		return nil, fmt.Errorf("%w: vote threshold %d exceeds vote window %d", ErrInvalidParameter, voteThreshold, voteWindow)
	}

	return &degradationSearch{
		mode:          mode,
		initialUsers:  intOrDefault(cfg.InitialUsers, defaultInitialUsers),
		stepUsers:     intOrDefault(cfg.StepUsers, defaultStepUsers),
		waitTime:      secondsOrDefault(cfg.WaitTimeInSeconds, DefaultWaitTime),
		warmupSamples: intOrDefault(cfg.WarmupSamples, defaultWarmupSamples),
		voteThreshold: voteThreshold,
		sdiThreshold:  floatOrDefault(cfg.SDIThreshold, defaultSDIThreshold),
		sdi:           analytics.NewSDICalculator(analytics.ArgsSDICalculator{}),
		votes:         analytics.NewWindow[bool](voteWindow),
		multiplier:    floatOrDefault(cfg.Multiplier, defaultMultiplier),
		minErrorRate:  floatOrDefault(cfg.MinErrorRate, defaultMinErrorRate),
		baseline:      analytics.NewWindow[common.RawMetrics](intOrDefault(cfg.BaselineWindow, defaultBaselineWindow)),
		checks:        analytics.NewWindow[bool](intOrDefault(cfg.CheckWindow, defaultCheckWindow)),
	}, nil
}

// Decide returns STOP(Degradation) once the degradation is confirmed
func (ds *degradationSearch) Decide(metrics common.AnalyzedMetrics) common.Verdict {
	ds.samples++
	if ds.mode == ModeBaseline {
		return ds.decideOnBaseline(metrics.Raw)
	}

	return ds.decideOnSDI(metrics.Raw)
}

func (ds *degradationSearch) decideOnSDI(raw common.RawMetrics) common.Verdict {
	breakdown := ds.sdi.Compute(raw)
	degraded := breakdown.Index >= ds.sdiThreshold
	ds.votes.Append(degraded)
	numVotes := lo.Count(ds.votes.Items(), true)

	log.Debug("degradation search sdi",
		"sample", ds.samples,
		"sdi", breakdown.Index,
		"p95 amplitude", breakdown.PerMetric[analytics.MetricP95].Amplitude,
		"error trend", breakdown.PerMetric[analytics.MetricErrorRate].Trend,
		"votes", numVotes)

	if ds.samples < ds.warmupSamples {
		return hold(degraded)
	}
	if numVotes >= ds.voteThreshold {
		return stop(common.ReasonDegradation, true,
			"sdi reached %.2f in %d of the last %d samples", ds.sdiThreshold, numVotes, ds.votes.Len())
	}

	return proceed(degraded)
}

func (ds *degradationSearch) decideOnBaseline(raw common.RawMetrics) common.Verdict {
	if !ds.baseline.IsFull() {
		ds.baseline.Append(raw)
		return proceed(false)
	}

	healthy := ds.baseline.Items()
	baselineP95 := analytics.Median(lo.Map(healthy, func(m common.RawMetrics, _ int) float64 { return m.P95 }))
	baselineErrors := analytics.Median(lo.Map(healthy, func(m common.RawMetrics, _ int) float64 { return m.ErrorRate }))

	maxP95 := baselineP95 * ds.multiplier
	maxErrorRate := math.Max(baselineErrors*ds.multiplier, ds.minErrorRate)
	violates := raw.P95 > maxP95 || raw.ErrorRate > maxErrorRate

	ds.checks.Append(violates)
	if !violates {
		ds.baseline.Append(raw)
	}

	log.Debug("degradation search baseline",
		"sample", ds.samples,
		"p95", raw.P95, "max p95", maxP95,
		"error rate", raw.ErrorRate, "max error rate", maxErrorRate,
		"violates", violates)

	if ds.checks.IsFull() && lo.Count(ds.checks.Items(), true) == ds.checks.Len() {
		return stop(common.ReasonDegradation, true,
			"last %d samples exceeded the baseline (p95 %.1f ms, error rate %.2f%%)", ds.checks.Len(), baselineP95, baselineErrors)
	}

	return proceed(violates)
}

// NextUsers adds the configured step once warmed up
func (ds *degradationSearch) NextUsers(currentUsers int, _ common.AnalyzedMetrics) int {
	if currentUsers == 0 {
		return ds.initialUsers
	}
	if ds.mode == ModeSDI && ds.samples < ds.warmupSamples {
		return currentUsers
	}

	return currentUsers + ds.stepUsers
}

// WaitTime returns the time between two load changes
func (ds *degradationSearch) WaitTime() time.Duration {
	return ds.waitTime
}

// Reset clears the collected samples
func (ds *degradationSearch) Reset() {
	ds.samples = 0
	ds.sdi.Reset()
	ds.votes.Clear()
	ds.baseline.Clear()
	ds.checks.Clear()
}

// Name returns the strategy name
func (ds *degradationSearch) Name() string {
	return string(KindDegradationSearch)
}

// IsInterfaceNil returns true if the value under the interface is nil
func (ds *degradationSearch) IsInterfaceNil() bool {
	return ds == nil
}
