package testsCommon

import (
	"time"

	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/common"
)

// RecorderStub -
type RecorderStub struct {
	BeginRunHandler   func(strategyName string, startedAt time.Time) (int64, error)
	RecordStepHandler func(runID int64, step common.Step) error
	FinishRunHandler  func(runID int64, result common.TestResult) error
}

// BeginRun -
func (stub *RecorderStub) BeginRun(strategyName string, startedAt time.Time) (int64, error) {
	if stub.BeginRunHandler != nil {
		return stub.BeginRunHandler(strategyName, startedAt)
	}

	return 1, nil
}

// RecordStep -
func (stub *RecorderStub) RecordStep(runID int64, step common.Step) error {
	if stub.RecordStepHandler != nil {
		return stub.RecordStepHandler(runID, step)
	}

	return nil
}

// FinishRun -
func (stub *RecorderStub) FinishRun(runID int64, result common.TestResult) error {
	if stub.FinishRunHandler != nil {
		return stub.FinishRunHandler(runID, result)
	}

	return nil
}

// IsInterfaceNil -
func (stub *RecorderStub) IsInterfaceNil() bool {
	return stub == nil
}
