package testfloat

import (
	"bytes"
	"testing"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-testfloat/types"
)

func formatResults(t *testing.T, result *types.RunResult) string {
	t.Helper()
	out := &bytes.Buffer{}
	f := NewConsoleResultFormatter(log.NewLogger(log.DiscardHandler()), out)
	require.NoError(t, f.FormatResults(result))
	return stripansi.Strip(out.String())
}

func TestConsoleResultFormatter_FailedRun(t *testing.T) {
	result := &types.RunResult{RunID: "run-1", State: types.RunCompleted, Planned: 4, Duration: 1500 * time.Millisecond}
	result.Record(caseResult(1, "f32_add", 0))
	result.Record(caseResult(2, "f32_sub", 1))
	timedOut := caseResult(3, "f64_sqrt", 124)
	timedOut.Failure = types.FailureUnresponsive
	result.Record(timedOut)

	out := formatResults(t, result)
	assert.Contains(t, out, "TestFloat Results (1.5s)")
	assert.Contains(t, out, "f32_sub")
	assert.Contains(t, out, "testfloat_gen f32_sub | consumer f32_sub")
	assert.Contains(t, out, "FAIL (unresponsive)")
	// footers are upper cased by the table style
	assert.Contains(t, out, "FIRST FAILURE: CASE 2")
	assert.NotContains(t, out, "testfloat_gen f32_add", "passing cases are not listed")
	assert.Contains(t, out, "Run run-1 completed: 3/4 cases run, 1 passed, 2 failed, exit status 1")
}

func TestConsoleResultFormatter_PassingRun(t *testing.T) {
	result := &types.RunResult{RunID: "run-2", State: types.RunCompleted, Planned: 1, Duration: 100 * time.Millisecond}
	result.Record(caseResult(1, "f32_add", 0))

	out := formatResults(t, result)
	assert.Contains(t, out, "PASS")
	assert.NotContains(t, out, "FIRST FAILURE")
	assert.Contains(t, out, "exit status 0")
}

func TestGetResultString(t *testing.T) {
	assert.Equal(t, "PASS", getResultString(caseResult(1, "f32_add", 0)))
	assert.Equal(t, "FAIL", getResultString(caseResult(1, "f32_add", 1)))
	gen := caseResult(1, "f32_add", 3)
	gen.Failure = types.FailureGenerator
	assert.Equal(t, "FAIL (generator)", getResultString(gen))
	assert.Equal(t, "2.0s", formatDuration(2*time.Second))
}
