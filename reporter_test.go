package testfloat

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-testfloat/types"
)

// gaugeOrCounter returns the value of the series of family name whose labels
// include want.
func gaugeOrCounter(t *testing.T, name string, want map[string]string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if hasLabels(m, want) {
				if m.GetCounter() != nil {
					return m.GetCounter().GetValue()
				}
				return m.GetGauge().GetValue()
			}
		}
	}
	return 0
}

func hasLabels(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string)
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestMetricsReporter_CaseFinished(t *testing.T) {
	r := NewMetricsReporter()
	labels := map[string]string{"op": "ui64_to_f32", "result": "unresponsive"}
	before := gaugeOrCounter(t, "testfloat_cases_total", labels)

	cr := caseResult(1, "ui64_to_f32", 124)
	cr.Failure = types.FailureUnresponsive
	cr.Duration = time.Second
	r.CaseStarted(cr.Case, cr.GeneratorArgs, cr.ConsumerArgs)
	r.CaseOutput(cr.Case, "ignored")
	r.CaseFinished(cr)

	assert.Equal(t, before+1, gaugeOrCounter(t, "testfloat_cases_total", labels))
}

func TestMetricsReporter_RunFinished(t *testing.T) {
	result := &types.RunResult{RunID: "metrics-run", State: types.RunAbortedOnFailure, Planned: 5}
	result.Record(caseResult(1, "f32_add", 0))
	result.Record(caseResult(2, "f32_sub", 4))

	NewMetricsReporter().RunFinished(result)

	assert.Equal(t, 4.0, gaugeOrCounter(t, "testfloat_run_status", map[string]string{"run_id": "metrics-run", "result": "aborted"}))
	assert.Equal(t, 1.0, gaugeOrCounter(t, "testfloat_run_cases", map[string]string{"run_id": "metrics-run", "outcome": "passed"}))
	assert.Equal(t, 1.0, gaugeOrCounter(t, "testfloat_run_cases", map[string]string{"run_id": "metrics-run", "outcome": "failed"}))
	assert.Equal(t, 3.0, gaugeOrCounter(t, "testfloat_run_cases", map[string]string{"run_id": "metrics-run", "outcome": "skipped"}))
}
