package types

import (
	"fmt"
	"time"
)

// CaseState tracks a test case through its lifecycle.
type CaseState int

const (
	CasePending CaseState = iota
	CaseLaunching
	CaseStreaming
	CaseCompleted
)

func (s CaseState) String() string {
	switch s {
	case CasePending:
		return "pending"
	case CaseLaunching:
		return "launching"
	case CaseStreaming:
		return "streaming"
	case CaseCompleted:
		return "completed"
	default:
		return fmt.Sprintf("CaseState(%d)", int(s))
	}
}

// RunState tracks the traversal of the whole matrix.
type RunState int

const (
	RunRunning RunState = iota
	RunCompleted
	RunAbortedOnFailure
)

func (s RunState) String() string {
	switch s {
	case RunRunning:
		return "running"
	case RunCompleted:
		return "completed"
	case RunAbortedOnFailure:
		return "aborted"
	default:
		return fmt.Sprintf("RunState(%d)", int(s))
	}
}

// FailureKind says why a completed case did not pass.
type FailureKind string

const (
	FailureNone FailureKind = ""
	// FailureMismatch is a non-zero consumer exit status.
	FailureMismatch FailureKind = "mismatch"
	// FailureUnresponsive is a case killed after exceeding its timeout.
	FailureUnresponsive FailureKind = "unresponsive"
	// FailureGenerator is a failed generator behind a passing consumer.
	FailureGenerator FailureKind = "generator"
)

// CaseResult captures the outcome of a single test case.
type CaseResult struct {
	Case            TestCase
	State           CaseState
	ExitStatus      int // consumer status, or the status assigned to Failure
	GeneratorStatus int // -1 when the generator never exited normally
	Failure         FailureKind
	Lines           []string // consumer output, most recent lines only
	LinesDropped    int      // lines discarded from the front of Lines
	Duration        time.Duration
	GeneratorArgs   []string
	ConsumerArgs    []string
}

// Passed reports whether the case completed with status 0.
func (r *CaseResult) Passed() bool {
	return r.State == CaseCompleted && r.ExitStatus == 0 && r.Failure == FailureNone
}

// AddLine records a consumer output line, keeping at most max lines.
func (r *CaseResult) AddLine(line string, max int) {
	r.Lines = append(r.Lines, line)
	if max > 0 && len(r.Lines) > max {
		drop := len(r.Lines) - max
		r.Lines = append(r.Lines[:0:0], r.Lines[drop:]...)
		r.LinesDropped += drop
	}
}

// RunResult captures a whole traversal of the matrix.
type RunResult struct {
	RunID        string
	State        RunState
	Planned      int
	Cases        []*CaseResult
	ExitStatus   int         // first non-zero case status
	FirstFailure *CaseResult // case that produced ExitStatus
	StartTime    time.Time
	Duration     time.Duration
}

// Record appends a completed case and remembers the first failure.
func (r *RunResult) Record(cr *CaseResult) {
	r.Cases = append(r.Cases, cr)
	if !cr.Passed() && r.FirstFailure == nil {
		r.FirstFailure = cr
		r.ExitStatus = cr.ExitStatus
	}
}

// Passed returns the number of passing cases.
func (r *RunResult) Passed() int {
	n := 0
	for _, c := range r.Cases {
		if c.Passed() {
			n++
		}
	}
	return n
}

// Failed returns the number of failing cases.
func (r *RunResult) Failed() int {
	return len(r.Cases) - r.Passed()
}

// Skipped returns the number of planned cases that never ran.
func (r *RunResult) Skipped() int {
	return r.Planned - len(r.Cases)
}

func (r *RunResult) String() string {
	return fmt.Sprintf("Run %s %s: %d/%d cases run, %d passed, %d failed, exit status %d (%s)",
		r.RunID, r.State, len(r.Cases), r.Planned, r.Passed(), r.Failed(), r.ExitStatus,
		r.Duration.Round(time.Millisecond))
}
