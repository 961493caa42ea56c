package testfloat

import (
	"github.com/ethereum-optimism/infra/op-testfloat/metrics"
	"github.com/ethereum-optimism/infra/op-testfloat/reporting"
	"github.com/ethereum-optimism/infra/op-testfloat/types"
)

// MetricsReporter records case and run outcomes as prometheus metrics.
type MetricsReporter struct{}

var _ reporting.Reporter = (*MetricsReporter)(nil)

// NewMetricsReporter creates a new MetricsReporter.
func NewMetricsReporter() *MetricsReporter {
	return &MetricsReporter{}
}

func (r *MetricsReporter) CaseStarted(types.TestCase, []string, []string) {}

func (r *MetricsReporter) CaseOutput(types.TestCase, string) {}

// CaseFinished counts the case by operation and result.
func (r *MetricsReporter) CaseFinished(result *types.CaseResult) {
	metrics.RecordCase(result.Case.Operation, metrics.CaseResultLabel(result), result.Duration)
}

// RunFinished publishes the totals of the run.
func (r *MetricsReporter) RunFinished(result *types.RunResult) {
	metrics.RecordRun(
		result.RunID,
		result.State.String(),
		result.ExitStatus,
		result.Passed(),
		result.Failed(),
		result.Skipped(),
	)
}
