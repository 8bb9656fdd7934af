package strategy

import (
	"fmt"
	"time"

	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/common"
	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/config"
)

const (
	defaultSpikeBaselineDuration = 60 * time.Second
	defaultSpikeDuration         = 30 * time.Second
	defaultRecoveryDuration      = 60 * time.Second
	defaultAbortErrorRate        = 50.0
)

// spike runs the baseline, spike and recovery phases. Phase timing uses the metrics timestamps.
type spike struct {
	cfg common.SpikeConfig

	phase      common.SpikePhase
	phaseStart time.Time
	started    bool
}

// NewSpike creates a new spike strategy
func NewSpike(cfg config.StrategyConfig) (*spike, error) {
	if cfg.SpikeUsers <= 0 {
		return nil, fmt.Errorf("%w: spike_users must be positive", ErrInvalidParameter)
	}

	baselineUsers := intOrDefault(cfg.BaselineUsers, intOrDefault(cfg.InitialUsers, defaultInitialUsers))
	spikeCfg := common.SpikeConfig{
		BaselineUsers:    baselineUsers,
		BaselineDuration: secondsOrDefault(cfg.BaselineDurationInSeconds, defaultSpikeBaselineDuration),
		SpikeUsers:       cfg.SpikeUsers,
		SpikeDuration:    secondsOrDefault(cfg.SpikeDurationInSeconds, defaultSpikeDuration),
		RecoveryUsers:    intOrDefault(cfg.RecoveryUsers, baselineUsers),
		RecoveryDuration: secondsOrDefault(cfg.RecoveryDurationInSeconds, defaultRecoveryDuration),
		AbortErrorRate:   floatOrDefault(cfg.AbortErrorRate, defaultAbortErrorRate),
	}

	return &spike{
		cfg: spikeCfg,
	}, nil
}

// Decide returns CONTINUE on every phase change so the new phase target is applied,
// HOLD inside a phase and STOP(TargetReached) after the recovery phase
func (s *spike) Decide(metrics common.AnalyzedMetrics) common.Verdict {
	raw := metrics.Raw
	if !s.started {
		s.started = true
		s.enter(common.PhaseBaseline, raw.Timestamp)
	}
	elapsed := raw.Timestamp.Sub(s.phaseStart)

	switch s.phase {
	case common.PhaseBaseline:
		if elapsed >= s.cfg.BaselineDuration {
			s.enter(common.PhaseSpike, raw.Timestamp)
			return proceed(false)
		}
	case common.PhaseSpike:
		if raw.RPS == 0 && raw.Users > 0 {
			s.enter(common.PhaseFinished, raw.Timestamp)
			return stop(common.ReasonBreakPoint, true, "no throughput during the spike with %d users", raw.Users)
		}
		if raw.ErrorRate > s.cfg.AbortErrorRate {
			log.Debug("spike aborted early", "error rate", raw.ErrorRate)
			s.enter(common.PhaseRecovery, raw.Timestamp)
			return proceed(true)
		}
		if elapsed >= s.cfg.SpikeDuration {
			s.enter(common.PhaseRecovery, raw.Timestamp)
			return proceed(false)
		}
	case common.PhaseRecovery:
		if elapsed >= s.cfg.RecoveryDuration {
			s.enter(common.PhaseFinished, raw.Timestamp)
			return stop(common.ReasonTargetReached, false, "recovered after the spike")
		}
	default:
		return stop(common.ReasonTargetReached, false, "spike test finished")
	}

	return hold(false)
}

func (s *spike) enter(phase common.SpikePhase, timestamp time.Time) {
	if s.phase != phase {
		log.Debug("spike phase change", "from", s.phase.String(), "to", phase.String())
	}
	s.phase = phase
	s.phaseStart = timestamp
}

// NextUsers returns the target of the current phase
func (s *spike) NextUsers(_ int, _ common.AnalyzedMetrics) int {
	switch s.phase {
	case common.PhaseBaseline:
		return s.cfg.BaselineUsers
	case common.PhaseSpike:
		return s.cfg.SpikeUsers
	default:
		return s.cfg.RecoveryUsers
	}
}

// WaitTime is zero so phase changes are applied on the tick they are decided
func (s *spike) WaitTime() time.Duration {
	return 0
}

// Phase returns the current phase
func (s *spike) Phase() common.SpikePhase {
	return s.phase
}

// Reset returns to the baseline phase
func (s *spike) Reset() {
	s.phase = common.PhaseBaseline
	s.phaseStart = time.Time{}
	s.started = false
}

// Name returns the strategy name
func (s *spike) Name() string {
	return string(KindSpike)
}

// IsInterfaceNil returns true if the value under the interface is nil
func (s *spike) IsInterfaceNil() bool {
	return s == nil
}
