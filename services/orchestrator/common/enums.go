package common

import (
	"encoding/json"
	"fmt"
)

// Decision is the verdict of a strategy on a sample
type Decision int

const (
	// Continue applies the next load level when the change timer allows it
	Continue Decision = iota
	// Hold keeps the current load
	Hold
	// Stop ends the test
	Stop
)

var decisionNames = map[Decision]string{
	Continue: "CONTINUE",
	Hold:     "HOLD",
	Stop:     "STOP",
}

// String returns the decision name
func (d Decision) String() string {
	name, ok := decisionNames[d]
	if !ok {
		return fmt.Sprintf("Decision(%d)", int(d))
	}

	return name
}

// MarshalJSON encodes the decision as its name
func (d Decision) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes the decision from its name
func (d *Decision) UnmarshalJSON(data []byte) error {
	return unmarshalName(data, decisionNames, d)
}

// State is the orchestrator lifecycle phase
type State int

const (
	// StateInit covers generator start-up and warm-up
	StateInit State = iota
	// StateRunning is the active feedback loop
	StateRunning
	// StateFinished is terminal
	StateFinished
)

var stateNames = map[State]string{
	StateInit:     "INIT",
	StateRunning:  "RUNNING",
	StateFinished: "FINISHED",
}

// String returns the state name
func (s State) String() string {
	name, ok := stateNames[s]
	if !ok {
		return fmt.Sprintf("State(%d)", int(s))
	}

	return name
}

// MarshalJSON encodes the state as its name
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes the state from its name
func (s *State) UnmarshalJSON(data []byte) error {
	return unmarshalName(data, stateNames, s)
}

// StopReason classifies why a run ended
type StopReason int

const (
	// ReasonNone is set while the run is still in progress
	ReasonNone StopReason = iota
	ReasonDegradation
	ReasonBreakPoint
	ReasonTargetReached
	ReasonSLAViolated
	ReasonMaxUsers
	ReasonTimeout
	ReasonManual
	ReasonError
)

var stopReasonNames = map[StopReason]string{
	ReasonNone:          "NONE",
	ReasonDegradation:   "DEGRADATION",
	ReasonBreakPoint:    "BREAK_POINT",
	ReasonTargetReached: "TARGET_REACHED",
	ReasonSLAViolated:   "SLA_VIOLATED",
	ReasonMaxUsers:      "MAX_USERS",
	ReasonTimeout:       "TIMEOUT",
	ReasonManual:        "MANUAL",
	ReasonError:         "ERROR",
}

// String returns the stop reason name
func (r StopReason) String() string {
	name, ok := stopReasonNames[r]
	if !ok {
		return fmt.Sprintf("StopReason(%d)", int(r))
	}

	return name
}

// MarshalJSON encodes the stop reason as its name
func (r StopReason) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON decodes the stop reason from its name
func (r *StopReason) UnmarshalJSON(data []byte) error {
	return unmarshalName(data, stopReasonNames, r)
}

func unmarshalName[T comparable](data []byte, names map[T]string, out *T) error {
	var name string
	err := json.Unmarshal(data, &name)
	if err != nil {
		return err
	}

	for value, candidate := range names {
		if candidate == name {
			*out = value
			return nil
		}
	}

	return fmt.Errorf("unknown value %q", name)
}

// SpikePhase is the internal phase of the spike strategy
type SpikePhase int

const (
	PhaseBaseline SpikePhase = iota
	PhaseSpike
	PhaseRecovery
	PhaseFinished
)

var spikePhaseNames = map[SpikePhase]string{
	PhaseBaseline: "BASELINE",
	PhaseSpike:    "SPIKE",
	PhaseRecovery: "RECOVERY",
	PhaseFinished: "FINISHED",
}

// String returns the phase name
func (p SpikePhase) String() string {
	name, ok := spikePhaseNames[p]
	if !ok {
		return fmt.Sprintf("SpikePhase(%d)", int(p))
	}

	return name
}

// EventType discriminates the live events
type EventType string

const (
	EventMetrics  EventType = "metrics"
	EventStatus   EventType = "status"
	EventDecision EventType = "decision"
	EventResult   EventType = "result"
)
