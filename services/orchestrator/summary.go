package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/common"
)

const (
	summaryWidth    = 60
	summaryTailSize = 5
)

// writeSummary prints the human readable outcome of a run followed by the last steps of its history
func writeSummary(w io.Writer, result *common.TestResult) {
	separator := strings.Repeat("=", summaryWidth)

	_, _ = fmt.Fprintln(w, separator)
	_, _ = fmt.Fprintln(w, "TEST RESULTS")
	_, _ = fmt.Fprintln(w, separator)
	_, _ = fmt.Fprintf(w, "Duration:         %s\n", result.Duration().Round(100*time.Millisecond))
	_, _ = fmt.Fprintf(w, "Stop reason:      %s\n", result.StopReason.String())
	if result.StopMessage != "" {
		_, _ = fmt.Fprintf(w, "Stop message:     %s\n", result.StopMessage)
	}
	_, _ = fmt.Fprintf(w, "Max stable users: %d\n", result.MaxStableUsers)
	_, _ = fmt.Fprintf(w, "Max stable RPS:   %.1f\n", result.MaxStableRPS)
	_, _ = fmt.Fprintf(w, "Total steps:      %d\n", len(result.History))

	tail := result.History
	if len(tail) > summaryTailSize {
		tail = tail[len(tail)-summaryTailSize:]
	}
	if len(tail) > 0 {
		_, _ = fmt.Fprintf(w, "\nHistory (last %d steps):\n", len(tail))
	}
	for _, step := range tail {
		raw := step.Metrics.Raw
		_, _ = fmt.Fprintf(w, "  %3d. Users: %4d | RPS: %7.1f | P99: %6.1fms | Errors: %5.2f%% | %s\n",
			step.Index, raw.Users, raw.RPS, raw.P99, raw.ErrorRate, step.Verdict.Decision.String())
	}
	_, _ = fmt.Fprintln(w, separator)
}
