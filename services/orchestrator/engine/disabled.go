package engine

import (
	"time"

	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/common"
)

type disabledRecorder struct{}

// BeginRun does nothing
func (dr *disabledRecorder) BeginRun(_ string, _ time.Time) (int64, error) {
	return 0, nil
}

// RecordStep does nothing
func (dr *disabledRecorder) RecordStep(_ int64, _ common.Step) error {
	return nil
}

// FinishRun does nothing
func (dr *disabledRecorder) FinishRun(_ int64, _ common.TestResult) error {
	return nil
}

// IsInterfaceNil returns true if the value under the interface is nil
func (dr *disabledRecorder) IsInterfaceNil() bool {
	return dr == nil
}

type disabledNotifier struct{}

// Notify does nothing
func (dn *disabledNotifier) Notify(_ common.Event) {
}

// IsInterfaceNil returns true if the value under the interface is nil
func (dn *disabledNotifier) IsInterfaceNil() bool {
	return dn == nil
}
