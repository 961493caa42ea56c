// Package reporting turns run events into human readable output.
package reporting

import (
	"al.essio.dev/pkg/shellescape"

	"github.com/ethereum-optimism/infra/op-testfloat/types"
)

// Reporter receives the events of a run in order. Calls for one case are
// never interleaved with calls for another.
type Reporter interface {
	// CaseStarted is called before the processes of a case are launched.
	CaseStarted(tc types.TestCase, generatorArgs, consumerArgs []string)
	// CaseOutput is called for every consumer output line as it arrives.
	CaseOutput(tc types.TestCase, line string)
	// CaseFinished is called once per case after both processes are gone.
	CaseFinished(result *types.CaseResult)
	// RunFinished is called once, after the last case.
	RunFinished(result *types.RunResult)
}

// Multi fans every event out to each reporter in turn.
type Multi []Reporter

var _ Reporter = Multi(nil)

func (m Multi) CaseStarted(tc types.TestCase, generatorArgs, consumerArgs []string) {
	for _, r := range m {
		r.CaseStarted(tc, generatorArgs, consumerArgs)
	}
}

func (m Multi) CaseOutput(tc types.TestCase, line string) {
	for _, r := range m {
		r.CaseOutput(tc, line)
	}
}

func (m Multi) CaseFinished(result *types.CaseResult) {
	for _, r := range m {
		r.CaseFinished(result)
	}
}

func (m Multi) RunFinished(result *types.RunResult) {
	for _, r := range m {
		r.RunFinished(result)
	}
}

// ReproCommand renders a generator and consumer argv as a shell pipeline that
// can be pasted as is. Arguments with spaces or shell metacharacters are
// single quoted.
func ReproCommand(generatorArgs, consumerArgs []string) string {
	return shellescape.QuoteCommand(generatorArgs) + " | " + shellescape.QuoteCommand(consumerArgs)
}
