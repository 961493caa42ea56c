package reporting

import (
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/ethereum-optimism/infra/op-testfloat/types"
)

// Console prints the live transcript of a run: a header per case with its
// reproduction command, every consumer line indented by a tab, and an error
// banner for failing cases.
type Console struct {
	w io.Writer
}

var _ Reporter = (*Console)(nil)

// NewConsole creates a Console writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) CaseStarted(tc types.TestCase, generatorArgs, consumerArgs []string) {
	fmt.Fprintln(c.w)
	fmt.Fprintln(c.w, tc.Title())
	c.repro(generatorArgs, consumerArgs)
}

func (c *Console) CaseOutput(_ types.TestCase, line string) {
	fmt.Fprintf(c.w, "\t%s\n", strings.TrimRightFunc(line, unicode.IsSpace))
}

// CaseFinished prints the failure banner and repeats the reproduction
// command. Passing cases print nothing.
func (c *Console) CaseFinished(result *types.CaseResult) {
	if result.Passed() {
		return
	}
	switch result.Failure {
	case types.FailureMismatch, types.FailureNone:
		fmt.Fprintf(c.w, "\tERROR %d\n", result.ExitStatus)
	default:
		fmt.Fprintf(c.w, "\tERROR %d (%s)\n", result.ExitStatus, result.Failure)
	}
	c.repro(result.GeneratorArgs, result.ConsumerArgs)
}

func (c *Console) RunFinished(*types.RunResult) {}

func (c *Console) repro(generatorArgs, consumerArgs []string) {
	fmt.Fprintf(c.w, "\t\t %s\n", ReproCommand(generatorArgs, consumerArgs))
}
