package telemetry

import (
	"context"
	"time"

	"codeberg.org/mutker/coreprobe/internal/execution"
)

// Recorder counts command runs and report deliveries.
type Recorder interface {
	execution.Observer
	ReportSent(ctx context.Context, err error)
	Shutdown(ctx context.Context) error
}

// Outcome attribute values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Instrument names.
const (
	MetricCommandExecutions = "coreprobe.command.executions"
	MetricCommandDuration   = "coreprobe.command.duration"
	MetricReportsSent       = "coreprobe.reports.sent"
)

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}

	return OutcomeSuccess
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
