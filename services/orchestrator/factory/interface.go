package factory

import (
	"context"
	"time"

	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/common"
)

// Orchestrator defines the operations of one load test run
type Orchestrator interface {
	Run(ctx context.Context) (*common.TestResult, error)
	Stop()
	LatestStep() (common.Step, bool)
	History() []common.Step
	Result() *common.TestResult
	Status() common.RunStatus
	IsInterfaceNil() bool
}

// Server defines the operation of an entity able to serve requests
type Server interface {
	Start()
	Close() error
	Address() string
	Notify(event common.Event)
	IsInterfaceNil() bool
}

// RunStore defines the run persistence component
type RunStore interface {
	BeginRun(strategyName string, startedAt time.Time) (int64, error)
	RecordStep(runID int64, step common.Step) error
	FinishRun(runID int64, result common.TestResult) error
	ListRuns(ctx context.Context) ([]common.RunSummary, error)
	GetSamples(ctx context.Context, runID int64) ([]common.Step, error)
	Close() error
	IsInterfaceNil() bool
}

// ComponentsHandler defines the operations the entry point needs from the wired components
type ComponentsHandler interface {
	Run(ctx context.Context) (*common.TestResult, error)
	StartWebServer() error
	GetServer() Server
	Close()
	IsInterfaceNil() bool
}
