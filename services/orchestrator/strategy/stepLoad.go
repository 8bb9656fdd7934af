package strategy

import (
	"math"
	"time"

	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/common"
	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/config"
)

const (
	defaultStepSize        = 10
	defaultStepDuration    = 60 * time.Second
	defaultStepMaxUsers    = 100
	defaultUnstableChecks  = 2
	stepStabilityThreshold = 3.0
	stepErrorRateThreshold = 5.0
)

// stepLoad climbs a ladder of fixed size rungs, holding each for the step duration
type stepLoad struct {
	initialUsers   int
	stepSize       int
	stepDuration   time.Duration
	maxUsers       int
	unstableChecks int

	rungStart time.Time
	started   bool
	unstable  int
}

// NewStepLoad creates a new step load strategy
func NewStepLoad(cfg config.StrategyConfig) *stepLoad {
	stepSize := intOrDefault(cfg.StepSize, defaultStepSize)

	return &stepLoad{
		initialUsers:   intOrDefault(cfg.InitialUsers, stepSize),
		stepSize:       stepSize,
		stepDuration:   secondsOrDefault(cfg.StepDurationInSeconds, defaultStepDuration),
		maxUsers:       intOrDefault(cfg.MaxUsers, defaultStepMaxUsers),
		unstableChecks: intOrDefault(cfg.UnstableChecks, defaultUnstableChecks),
	}
}

// Decide returns STOP(Degradation) after consecutive unstable samples, STOP(MaxUsers) once the last rung was held,
// CONTINUE when the current rung was held long enough and HOLD otherwise
func (sl *stepLoad) Decide(metrics common.AnalyzedMetrics) common.Verdict {
	raw := metrics.Raw
	if !sl.started {
		sl.started = true
		sl.rungStart = raw.Timestamp
	}

	unstable := isUnstable(metrics)
	if unstable {
		sl.unstable++
		if sl.unstable >= sl.unstableChecks {
			return stop(common.ReasonDegradation, true,
				"%d consecutive unstable samples at %d users", sl.unstable, raw.Users)
		}

		return hold(true)
	}
	sl.unstable = 0

	if raw.Timestamp.Sub(sl.rungStart) < sl.stepDuration {
		return hold(false)
	}
	if raw.Users >= sl.maxUsers {
		return stop(common.ReasonMaxUsers, false, "held the last rung of %d users", raw.Users)
	}

	return proceed(false)
}

func isUnstable(metrics common.AnalyzedMetrics) bool {
	return math.IsInf(metrics.Stability, 1) ||
		metrics.Stability > stepStabilityThreshold ||
		metrics.Raw.ErrorRate > stepErrorRateThreshold
}

// NextUsers moves to the next rung and restarts the rung timer
func (sl *stepLoad) NextUsers(currentUsers int, metrics common.AnalyzedMetrics) int {
	if currentUsers == 0 {
		return sl.initialUsers
	}

	sl.rungStart = metrics.Raw.Timestamp
	next := currentUsers + sl.stepSize
	if next > sl.maxUsers {
		return sl.maxUsers
	}

	return next
}

// WaitTime returns the rung duration
func (sl *stepLoad) WaitTime() time.Duration {
	return sl.stepDuration
}

// Reset returns to the first rung
func (sl *stepLoad) Reset() {
	sl.rungStart = time.Time{}
	sl.started = false
	sl.unstable = 0
}

// Name returns the strategy name
func (sl *stepLoad) Name() string {
	return string(KindStepLoad)
}

// IsInterfaceNil returns true if the value under the interface is nil
func (sl *stepLoad) IsInterfaceNil() bool {
	return sl == nil
}
