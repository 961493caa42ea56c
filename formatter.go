package testfloat

import (
	"fmt"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/op-testfloat/reporting"
	"github.com/ethereum-optimism/infra/op-testfloat/types"
)

// ResultFormatter is responsible for formatting and displaying run results.
type ResultFormatter interface {
	FormatResults(result *types.RunResult) error
}

// ConsoleResultFormatter renders a run as a table.
type ConsoleResultFormatter struct {
	logger log.Logger
	out    io.Writer
}

// NewConsoleResultFormatter creates a new ConsoleResultFormatter.
func NewConsoleResultFormatter(logger log.Logger, out io.Writer) *ConsoleResultFormatter {
	return &ConsoleResultFormatter{
		logger: logger,
		out:    out,
	}
}

// FormatResults prints one row per failing case and the run totals.
func (f *ConsoleResultFormatter) FormatResults(result *types.RunResult) error {
	f.logger.Debug("Printing results...")
	t := table.NewWriter()
	t.SetOutputMirror(f.out)
	t.SetTitle(fmt.Sprintf("TestFloat Results (%s)", formatDuration(result.Duration)))

	t.AppendHeader(table.Row{
		"Case", "Operation", "Modes", "Duration", "Status", "Result", "Reproduce",
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Case", Align: text.AlignRight},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Status", Align: text.AlignRight},
		{Name: "Reproduce", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, cr := range result.Cases {
		if cr.Passed() {
			continue
		}
		t.AppendRow(table.Row{
			cr.Case.Index,
			cr.Case.Operation,
			cr.Case.Modes.String(),
			formatDuration(cr.Duration),
			cr.ExitStatus,
			getResultString(cr),
			reporting.ReproCommand(cr.GeneratorArgs, cr.ConsumerArgs),
		})
	}
	t.AppendSeparator()

	t.AppendRow(table.Row{"", "Planned", "", "", result.Planned, "", ""})
	t.AppendRow(table.Row{"", "Passed", "", "", result.Passed(), "", ""})
	t.AppendRow(table.Row{"", "Failed", "", "", result.Failed(), "", ""})
	t.AppendRow(table.Row{"", "Skipped", "", "", result.Skipped(), "", ""})

	switch {
	case result.ExitStatus != 0:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	case result.Skipped() > 0:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	}

	first := ""
	if result.FirstFailure != nil {
		first = fmt.Sprintf("first failure: case %d", result.FirstFailure.Case.Index)
	}
	t.AppendFooter(table.Row{
		"TOTAL",
		result.State.String(),
		first,
		formatDuration(result.Duration),
		result.ExitStatus,
		runResultString(result),
		"",
	})

	t.Render()

	_, err := fmt.Fprintln(f.out, result.String())
	return err
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func getResultString(cr *types.CaseResult) string {
	if cr.Passed() {
		return "PASS"
	}
	if cr.Failure == types.FailureNone || cr.Failure == types.FailureMismatch {
		return "FAIL"
	}
	return fmt.Sprintf("FAIL (%s)", cr.Failure)
}

func runResultString(result *types.RunResult) string {
	if result.ExitStatus != 0 {
		return "FAIL"
	}
	return "PASS"
}
