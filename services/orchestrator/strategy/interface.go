package strategy

import (
	"time"

	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/common"
)

// Strategy defines a load decision policy. Implementations are driven only by the metrics stream
// and never call the load generator themselves.
type Strategy interface {
	// Decide returns the verdict for the latest analyzed sample
	Decide(metrics common.AnalyzedMetrics) common.Verdict
	// NextUsers returns the next user count to apply. A current value of 0 asks for the initial load.
	NextUsers(currentUsers int, metrics common.AnalyzedMetrics) int
	// WaitTime is the minimum time between two load changes
	WaitTime() time.Duration
	Reset()
	Name() string
	IsInterfaceNil() bool
}
