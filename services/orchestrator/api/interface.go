package api

import (
	"context"

	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/common"
	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/config"
)

// RunController drives the runs started from the management surface
type RunController interface {
	StartRun() error
	StopRun() error
	Status() common.RunStatus
	LatestStep() (common.Step, bool)
	History() []common.Step
	Result() *common.TestResult
	Config() config.Config
	// UpdateConfig validates and replaces the configuration used by the next run
	UpdateConfig(cfg config.Config) error
	IsInterfaceNil() bool
}

// RunStore defines the read side of the stored runs
type RunStore interface {
	ListRuns(ctx context.Context) ([]common.RunSummary, error)
	GetSamples(ctx context.Context, runID int64) ([]common.Step, error)
	IsInterfaceNil() bool
}
