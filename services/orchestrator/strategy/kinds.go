package strategy

import (
	"fmt"
	"strings"
	"time"

	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/common"
	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/config"
	logger "github.com/multiversx/mx-chain-logger-go"
	"github.com/samber/lo"
)

var log = logger.GetOrCreate("strategy")

// Kind is the closed set of available strategies
type Kind string

const (
	KindDegradationSearch Kind = "degradation_search"
	KindBreakPoint        Kind = "break_point"
	KindSLAValidation     Kind = "sla_validation"
	KindTargetRPS         Kind = "target_rps"
	KindSpike             Kind = "spike"
	KindStepLoad          Kind = "step_load"
	KindCanary            Kind = "canary"
	KindTargetUsers       Kind = "target_users"
)

// DefaultWaitTime is the time between two load changes when a strategy does not override it
const DefaultWaitTime = 30 * time.Second

const defaultInitialUsers = 10

var kinds = []Kind{
	KindDegradationSearch,
	KindBreakPoint,
	KindSLAValidation,
	KindTargetRPS,
	KindSpike,
	KindStepLoad,
	KindCanary,
	KindTargetUsers,
}

// Kinds returns all registered strategy kinds
func Kinds() []Kind {
	return append(make([]Kind, 0, len(kinds)), kinds...)
}

// ParseKind converts the configured strategy type into a Kind
func ParseKind(value string) (Kind, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(value)))
	if !lo.Contains(kinds, kind) {
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, value)
	}

	return kind, nil
}

// New creates the strategy selected by cfg.Type
func New(cfg config.StrategyConfig) (Strategy, error) {
	kind, err := ParseKind(cfg.Type)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindDegradationSearch:
		return asStrategy(NewDegradationSearch(cfg))
	case KindBreakPoint:
		return NewBreakPoint(cfg), nil
	case KindSLAValidation:
		return NewSLAValidation(cfg), nil
	case KindTargetRPS:
		return asStrategy(NewTargetRPS(cfg))
	case KindSpike:
		return asStrategy(NewSpike(cfg))
	case KindStepLoad:
		return NewStepLoad(cfg), nil
	case KindCanary:
		return NewCanary(cfg), nil
	default:
		return asStrategy(NewTargetUsers(cfg))
	}
}

// asStrategy avoids wrapping a nil pointer into a non-nil interface
func asStrategy(instance Strategy, err error) (Strategy, error) {
	if err != nil {
		return nil, err
	}

	return instance, nil
}

func intOrDefault(value int, defaultValue int) int {
	if value <= 0 {
		return defaultValue
	}

	return value
}

func floatOrDefault(value float64, defaultValue float64) float64 {
	if value <= 0 {
		return defaultValue
	}

	return value
}

func secondsOrDefault(seconds float64, defaultValue time.Duration) time.Duration {
	if seconds <= 0 {
		return defaultValue
	}

	return time.Duration(seconds * float64(time.Second))
}

// grow applies a multiplicative factor, truncating to int and adding at least one user
func grow(current int, factor float64) int {
	next := int(float64(current) * factor)
	if next <= current {
		return current + 1
	}

	return next
}

func proceed(violation bool) common.Verdict {
	return common.Verdict{
		Decision:  common.Continue,
		Violation: violation,
	}
}

func hold(violation bool) common.Verdict {
	return common.Verdict{
		Decision:  common.Hold,
		Violation: violation,
	}
}

func stop(reason common.StopReason, violation bool, format string, args ...interface{}) common.Verdict {
	return common.Verdict{
		Decision:  common.Stop,
		Reason:    reason,
		Violation: violation,
		Message:   fmt.Sprintf(format, args...),
	}
}
