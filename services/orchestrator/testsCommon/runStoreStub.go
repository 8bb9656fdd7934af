package testsCommon

import (
	"context"

	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/common"
)

// RunStoreStub -
type RunStoreStub struct {
	ListRunsHandler   func(ctx context.Context) ([]common.RunSummary, error)
	GetSamplesHandler func(ctx context.Context, runID int64) ([]common.Step, error)
}

// ListRuns -
func (stub *RunStoreStub) ListRuns(ctx context.Context) ([]common.RunSummary, error) {
	if stub.ListRunsHandler != nil {
		return stub.ListRunsHandler(ctx)
	}

	return make([]common.RunSummary, 0), nil
}

// GetSamples -
func (stub *RunStoreStub) GetSamples(ctx context.Context, runID int64) ([]common.Step, error) {
	if stub.GetSamplesHandler != nil {
		return stub.GetSamplesHandler(ctx, runID)
	}

	return make([]common.Step, 0), nil
}

// IsInterfaceNil -
func (stub *RunStoreStub) IsInterfaceNil() bool {
	return stub == nil
}
