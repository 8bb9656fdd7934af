package testsCommon

import (
	"context"

	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/common"
)

// AdapterStub -
type AdapterStub struct {
	LaunchHandler    func(ctx context.Context) error
	IsReadyHandler   func(ctx context.Context) bool
	ConfigureHandler func(ctx context.Context, users int, spawnRate float64) error
	GetStatsHandler  func(ctx context.Context) (common.RawMetrics, error)
	StopHandler      func(ctx context.Context) error
	ShutdownHandler  func() error
}

// Launch -
func (stub *AdapterStub) Launch(ctx context.Context) error {
	if stub.LaunchHandler != nil {
		return stub.LaunchHandler(ctx)
	}

	return nil
}

// IsReady -
func (stub *AdapterStub) IsReady(ctx context.Context) bool {
	if stub.IsReadyHandler != nil {
		return stub.IsReadyHandler(ctx)
	}

	return true
}

// Configure -
func (stub *AdapterStub) Configure(ctx context.Context, users int, spawnRate float64) error {
	if stub.ConfigureHandler != nil {
		return stub.ConfigureHandler(ctx, users, spawnRate)
	}

	return nil
}

// GetStats -
func (stub *AdapterStub) GetStats(ctx context.Context) (common.RawMetrics, error) {
	if stub.GetStatsHandler != nil {
		return stub.GetStatsHandler(ctx)
	}

	return common.RawMetrics{}, nil
}

// Stop -
func (stub *AdapterStub) Stop(ctx context.Context) error {
	if stub.StopHandler != nil {
		return stub.StopHandler(ctx)
	}

	return nil
}

// Shutdown -
func (stub *AdapterStub) Shutdown() error {
	if stub.ShutdownHandler != nil {
		return stub.ShutdownHandler()
	}

	return nil
}

// IsInterfaceNil -
func (stub *AdapterStub) IsInterfaceNil() bool {
	return stub == nil
}
