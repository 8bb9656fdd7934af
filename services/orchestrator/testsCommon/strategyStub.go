package testsCommon

import (
	"time"

	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/common"
)

// StrategyStub -
type StrategyStub struct {
	DecideHandler    func(metrics common.AnalyzedMetrics) common.Verdict
	NextUsersHandler func(currentUsers int, metrics common.AnalyzedMetrics) int
	WaitTimeValue    time.Duration
	ResetHandler     func()
	NameValue        string
}

// Decide -
func (stub *StrategyStub) Decide(metrics common.AnalyzedMetrics) common.Verdict {
	if stub.DecideHandler != nil {
		return stub.DecideHandler(metrics)
	}

	return common.Verdict{Decision: common.Continue}
}

// NextUsers -
func (stub *StrategyStub) NextUsers(currentUsers int, metrics common.AnalyzedMetrics) int {
	if stub.NextUsersHandler != nil {
		return stub.NextUsersHandler(currentUsers, metrics)
	}

	return currentUsers
}

// WaitTime -
func (stub *StrategyStub) WaitTime() time.Duration {
	return stub.WaitTimeValue
}

// Reset -
func (stub *StrategyStub) Reset() {
	if stub.ResetHandler != nil {
		stub.ResetHandler()
	}
}

// Name -
func (stub *StrategyStub) Name() string {
	if stub.NameValue == "" {
		return "stub"
	}

	return stub.NameValue
}

// IsInterfaceNil -
func (stub *StrategyStub) IsInterfaceNil() bool {
	return stub == nil
}
