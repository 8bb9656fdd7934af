package testsCommon

import (
	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/common"
	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/config"
)

// RunControllerStub -
type RunControllerStub struct {
	StartRunHandler     func() error
	StopRunHandler      func() error
	StatusHandler       func() common.RunStatus
	LatestStepHandler   func() (common.Step, bool)
	HistoryHandler      func() []common.Step
	ResultHandler       func() *common.TestResult
	ConfigHandler       func() config.Config
	UpdateConfigHandler func(cfg config.Config) error
}

// StartRun -
func (stub *RunControllerStub) StartRun() error {
	if stub.StartRunHandler != nil {
		return stub.StartRunHandler()
	}

	return nil
}

// StopRun -
func (stub *RunControllerStub) StopRun() error {
	if stub.StopRunHandler != nil {
		return stub.StopRunHandler()
	}

	return nil
}

// Status -
func (stub *RunControllerStub) Status() common.RunStatus {
	if stub.StatusHandler != nil {
		return stub.StatusHandler()
	}

	return common.RunStatus{}
}

// LatestStep -
func (stub *RunControllerStub) LatestStep() (common.Step, bool) {
	if stub.LatestStepHandler != nil {
		return stub.LatestStepHandler()
	}

	return common.Step{}, false
}

// History -
func (stub *RunControllerStub) History() []common.Step {
	if stub.HistoryHandler != nil {
		return stub.HistoryHandler()
	}

	return make([]common.Step, 0)
}

// Result -
func (stub *RunControllerStub) Result() *common.TestResult {
	if stub.ResultHandler != nil {
		return stub.ResultHandler()
	}

	return nil
}

// Config -
func (stub *RunControllerStub) Config() config.Config {
	if stub.ConfigHandler != nil {
		return stub.ConfigHandler()
	}

	return config.Config{}
}

// UpdateConfig -
func (stub *RunControllerStub) UpdateConfig(cfg config.Config) error {
	if stub.UpdateConfigHandler != nil {
		return stub.UpdateConfigHandler(cfg)
	}

	return nil
}

// IsInterfaceNil -
func (stub *RunControllerStub) IsInterfaceNil() bool {
	return stub == nil
}
