package engine

import (
	"context"
	"time"

	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/common"
)

// Adapter defines the load generator capabilities the orchestrator needs
type Adapter interface {
	Launch(ctx context.Context) error
	// IsReady is a non-blocking check, safe to poll
	IsReady(ctx context.Context) bool
	Configure(ctx context.Context, users int, spawnRate float64) error
	GetStats(ctx context.Context) (common.RawMetrics, error)
	// Stop halts the traffic, the control plane stays alive
	Stop(ctx context.Context) error
	// Shutdown terminates the generator. It is idempotent and safe to call without Launch.
	Shutdown() error
	IsInterfaceNil() bool
}

// Strategy defines the decision policy driving the load
type Strategy interface {
	Decide(metrics common.AnalyzedMetrics) common.Verdict
	NextUsers(currentUsers int, metrics common.AnalyzedMetrics) int
	WaitTime() time.Duration
	Reset()
	Name() string
	IsInterfaceNil() bool
}

// Analyzer derives the analyzed view of every raw sample
type Analyzer interface {
	Analyze(raw common.RawMetrics) common.AnalyzedMetrics
	Reset()
	IsInterfaceNil() bool
}

// RunRecorder keeps the runs and their steps
type RunRecorder interface {
	BeginRun(strategyName string, startedAt time.Time) (int64, error)
	RecordStep(runID int64, step common.Step) error
	FinishRun(runID int64, result common.TestResult) error
	IsInterfaceNil() bool
}

// Notifier receives the events produced during a run
type Notifier interface {
	Notify(event common.Event)
	IsInterfaceNil() bool
}
