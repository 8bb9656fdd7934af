package common

import (
	"encoding/json"
	"math"
	"time"
)

// RawMetrics is one aggregate snapshot reported by the load generator. Latencies are in milliseconds,
// the error rate is a percentage.
type RawMetrics struct {
	Timestamp      time.Time `json:"timestamp"`
	Users          int       `json:"users"`
	RPS            float64   `json:"rps"`
	RtAvg          float64   `json:"rtAvg"`
	P50            float64   `json:"p50"`
	P95            float64   `json:"p95"`
	P99            float64   `json:"p99"`
	FailedRequests int64     `json:"failedRequests"`
	ErrorRate      float64   `json:"errorRate"`
	TotalRequests  int64     `json:"totalRequests"`
}

// AnalyzedMetrics wraps a raw sample with its derived scores
type AnalyzedMetrics struct {
	Raw               RawMetrics `json:"raw"`
	Stability         float64    `json:"-"`
	ScalingEfficiency float64    `json:"scalingEfficiency"`
	DegradationIndex  float64    `json:"degradationIndex"`
}

// StabilityValue returns the stability ratio, or -1 when the p50 latency was zero (infinite ratio).
// JSON cannot carry +Inf so every serialized form goes through this accessor.
func (am AnalyzedMetrics) StabilityValue() float64 {
	if math.IsInf(am.Stability, 1) {
		return -1
	}

	return am.Stability
}

// MarshalJSON encodes the analyzed sample replacing an infinite stability with -1
func (am AnalyzedMetrics) MarshalJSON() ([]byte, error) {
	type plain AnalyzedMetrics

	return json.Marshal(struct {
		plain
		Stability float64 `json:"stability"`
	}{
		plain:     plain(am),
		Stability: am.StabilityValue(),
	})
}

// UnmarshalJSON decodes an analyzed sample, a negative stability restores the infinite ratio
func (am *AnalyzedMetrics) UnmarshalJSON(data []byte) error {
	type plain AnalyzedMetrics

	decoded := struct {
		*plain
		Stability float64 `json:"stability"`
	}{
		plain: (*plain)(am),
	}
	err := json.Unmarshal(data, &decoded)
	if err != nil {
		return err
	}

	am.Stability = decoded.Stability
	if decoded.Stability < 0 {
		am.Stability = math.Inf(1)
	}

	return nil
}

// Step is one monitoring tick: the analyzed sample, the verdict taken on it and the user count
// configured on the generator after the tick
type Step struct {
	Index   int             `json:"index"`
	Metrics AnalyzedMetrics `json:"metrics"`
	Verdict Verdict         `json:"verdict"`
	Users   int             `json:"users"`
}

// Verdict is a strategy (or guard) decision together with the reason a STOP carries
type Verdict struct {
	Decision  Decision   `json:"decision"`
	Reason    StopReason `json:"reason"`
	Violation bool       `json:"violation"`
	Message   string     `json:"message,omitempty"`
}

// TestResult is the final artifact of a run
type TestResult struct {
	StartedAt      time.Time  `json:"startedAt"`
	FinishedAt     time.Time  `json:"finishedAt"`
	MaxStableUsers int        `json:"maxStableUsers"`
	MaxStableRPS   float64    `json:"maxStableRps"`
	StopReason     StopReason `json:"stopReason"`
	StopMessage    string     `json:"stopMessage,omitempty"`
	History        []Step     `json:"history"`
}

// Duration returns the wall clock duration of the run
func (tr *TestResult) Duration() time.Duration {
	return tr.FinishedAt.Sub(tr.StartedAt)
}

// SpikeConfig holds the three phases of a spike test
type SpikeConfig struct {
	BaselineUsers    int
	BaselineDuration time.Duration
	SpikeUsers       int
	SpikeDuration    time.Duration
	RecoveryUsers    int
	RecoveryDuration time.Duration
	AbortErrorRate   float64
}

// RunStatus is the read-only view of a running (or finished) orchestrator
type RunStatus struct {
	State        State      `json:"state"`
	CurrentUsers int        `json:"currentUsers"`
	Steps        int        `json:"steps"`
	Elapsed      float64    `json:"elapsed"`
	StopReason   StopReason `json:"stopReason"`
}

// Event is a notification pushed to live subscribers
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// RunSummary is the stored header of a run
type RunSummary struct {
	ID             int64      `json:"id"`
	Strategy       string     `json:"strategy"`
	StartedAt      time.Time  `json:"startedAt"`
	FinishedAt     *time.Time `json:"finishedAt,omitempty"`
	StopReason     StopReason `json:"stopReason"`
	StopMessage    string     `json:"stopMessage,omitempty"`
	MaxStableUsers int        `json:"maxStableUsers"`
	MaxStableRPS   float64    `json:"maxStableRps"`
	NumSteps       int        `json:"numSteps"`
}
