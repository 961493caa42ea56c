// Package logging keeps a per-run directory of plain text logs: every case
// in all.log, one file per case under passed/ or failed/, and summary.log.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-testfloat/reporting"
	"github.com/ethereum-optimism/infra/op-testfloat/types"
)

const (
	RunDirectoryPrefix = "testrun-"
	PassedDir          = "passed"
	FailedDir          = "failed"
	AllLogsFilename    = "all.log"
	SummaryFilename    = "summary.log"
)

// ResultSink consumes finished cases and the finished run.
type ResultSink interface {
	Consume(result *types.CaseResult) error
	Complete(result *types.RunResult) error
}

// allLogsQueue bounds how much consumer output waits for the all.log writer.
const allLogsQueue = 256

// FileLogger writes the logs of one run. It is a reporting.Reporter; errors
// are logged as they happen and the first one is returned by Err.
//
// Case output reaches all.log through a queue drained by one goroutine.
type FileLogger struct {
	logDir string
	runID  string
	log    log.Logger

	allLogs  *os.File
	entries  chan string
	drained  chan struct{}
	queueMu  sync.Mutex
	queueEnd bool

	sinks []ResultSink

	mu  sync.Mutex
	err error
}

var _ reporting.Reporter = (*FileLogger)(nil)

// NewFileLogger creates <baseDir>/testrun-<runID>/ with its passed and failed
// directories and opens all.log.
func NewFileLogger(baseDir string, runID string, logger log.Logger) (*FileLogger, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}
	if baseDir == "" {
		return nil, fmt.Errorf("baseDir cannot be empty")
	}

	logDir := filepath.Join(baseDir, RunDirectoryPrefix+runID)
	for _, dir := range []string{logDir, filepath.Join(logDir, PassedDir), filepath.Join(logDir, FailedDir)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	allLogsPath := filepath.Join(logDir, AllLogsFilename)
	allLogs, err := os.Create(allLogsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", allLogsPath, err)
	}

	l := &FileLogger{
		logDir:  logDir,
		runID:   runID,
		log:     logger,
		allLogs: allLogs,
		entries: make(chan string, allLogsQueue),
		drained: make(chan struct{}),
	}
	l.sinks = []ResultSink{
		&PerCaseFileSink{logDir: logDir},
		&SummarySink{path: filepath.Join(logDir, SummaryFilename)},
	}
	go l.writeAllLogs()
	return l, nil
}

// writeAllLogs appends queued entries to all.log until the queue is closed.
func (l *FileLogger) writeAllLogs() {
	defer close(l.drained)
	for entry := range l.entries {
		if _, err := l.allLogs.WriteString(entry); err != nil {
			l.fail("failed to write all.log", err)
		}
	}
}

// appendAllLogs queues entry for all.log. Entries arriving after the run's
// logs were closed are recorded as an error.
func (l *FileLogger) appendAllLogs(entry string) {
	l.queueMu.Lock()
	defer l.queueMu.Unlock()
	if l.queueEnd {
		l.fail("failed to write all.log", fmt.Errorf("%s is closed", l.allLogs.Name()))
		return
	}
	l.entries <- entry
}

// closeAllLogs flushes the queue and closes all.log. Later calls do nothing.
func (l *FileLogger) closeAllLogs() error {
	l.queueMu.Lock()
	if l.queueEnd {
		l.queueMu.Unlock()
		return nil
	}
	l.queueEnd = true
	close(l.entries)
	l.queueMu.Unlock()

	<-l.drained
	return l.allLogs.Close()
}

// GetRunID returns the run ID the directory is named after
func (l *FileLogger) GetRunID() string {
	return l.runID
}

// GetLogDir returns the run directory
func (l *FileLogger) GetLogDir() string {
	return l.logDir
}

// Err returns the first error met while writing logs.
func (l *FileLogger) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *FileLogger) fail(msg string, err error) {
	if err == nil {
		return
	}
	l.log.Error(msg, "dir", l.logDir, "err", err)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err == nil {
		l.err = fmt.Errorf("%s: %w", msg, err)
	}
}

func (l *FileLogger) CaseStarted(tc types.TestCase, generatorArgs, consumerArgs []string) {
	var content strings.Builder
	fmt.Fprintf(&content, "\n")
	fmt.Fprintf(&content, "┌─────────────────────────────────────────────────────────────────────┐\n")
	fmt.Fprintf(&content, "│ CASE %-5d %-56s │\n", tc.Index, truncateString(tc.Title(), 56))
	fmt.Fprintf(&content, "│ Time:     %-57s │\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&content, "└─────────────────────────────────────────────────────────────────────┘\n")
	fmt.Fprintf(&content, "%s\n\n", reporting.ReproCommand(generatorArgs, consumerArgs))
	l.appendAllLogs(content.String())
}

func (l *FileLogger) CaseOutput(_ types.TestCase, line string) {
	l.appendAllLogs("  " + stripansi.Strip(line) + "\n")
}

func (l *FileLogger) CaseFinished(result *types.CaseResult) {
	footer := fmt.Sprintf("\n=> %s, status %d, generator status %d, %s\n",
		caseStatus(result), result.ExitStatus, result.GeneratorStatus, result.Duration.Round(time.Millisecond))
	l.appendAllLogs(footer)

	for _, sink := range l.sinks {
		l.fail("failed to log case", sink.Consume(result))
	}
}

// RunFinished completes every sink and closes all.log.
func (l *FileLogger) RunFinished(result *types.RunResult) {
	for _, sink := range l.sinks {
		l.fail("failed to complete run log", sink.Complete(result))
	}
	l.fail("failed to close all.log", l.closeAllLogs())
}

// Close releases all.log for runs that never finished.
func (l *FileLogger) Close() error {
	return l.closeAllLogs()
}

func caseStatus(result *types.CaseResult) string {
	if result.Passed() {
		return "PASS"
	}
	if result.Failure == types.FailureNone {
		return "FAIL"
	}
	return "FAIL (" + string(result.Failure) + ")"
}

// truncateString truncates a string to the specified max length
// and adds an ellipsis if needed
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// safeFilename converts a string to a safe filename by replacing problematic characters
func safeFilename(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, s)
}

// CaseFilename is the per-case log file name, e.g. 0007-f32_add-rmin-tininessbefore-exact.log.
func CaseFilename(tc types.TestCase) string {
	return fmt.Sprintf("%04d-%s.log", tc.Index, safeFilename(tc.Key()))
}

// PerCaseFileSink writes one file per case into passed/ or failed/.
type PerCaseFileSink struct {
	logDir string
}

func (s *PerCaseFileSink) Consume(result *types.CaseResult) error {
	dir := PassedDir
	if !result.Passed() {
		dir = FailedDir
	}
	path := filepath.Join(s.logDir, dir, CaseFilename(result.Case))

	var content strings.Builder
	fmt.Fprintf(&content, "Case:      %d\n", result.Case.Index)
	fmt.Fprintf(&content, "Operation: %s\n", result.Case.Operation)
	fmt.Fprintf(&content, "Modes:     %s\n", result.Case.Modes)
	fmt.Fprintf(&content, "Status:    %s\n", caseStatus(result))
	fmt.Fprintf(&content, "Exit:      %d\n", result.ExitStatus)
	fmt.Fprintf(&content, "Generator: %d\n", result.GeneratorStatus)
	fmt.Fprintf(&content, "Duration:  %s\n", result.Duration)
	fmt.Fprintf(&content, "Command:   %s\n", reporting.ReproCommand(result.GeneratorArgs, result.ConsumerArgs))
	fmt.Fprintf(&content, "\nOUTPUT:\n~~~~~~~\n")
	if result.LinesDropped > 0 {
		fmt.Fprintf(&content, "  ... %d earlier lines not kept, see %s\n", result.LinesDropped, AllLogsFilename)
	}
	for _, line := range result.Lines {
		fmt.Fprintf(&content, "  %s\n", stripansi.Strip(line))
	}

	if err := os.WriteFile(path, []byte(content.String()), 0644); err != nil {
		return fmt.Errorf("failed to write case log %s: %w", path, err)
	}
	return nil
}

func (s *PerCaseFileSink) Complete(*types.RunResult) error {
	return nil
}

// SummarySink writes summary.log once the run is over.
type SummarySink struct {
	path string
}

func (s *SummarySink) Consume(*types.CaseResult) error {
	return nil
}

func (s *SummarySink) Complete(result *types.RunResult) error {
	var content strings.Builder
	fmt.Fprintf(&content, "%s\n\n", result.String())
	fmt.Fprintf(&content, "Planned: %d\nPassed:  %d\nFailed:  %d\nSkipped: %d\n",
		result.Planned, result.Passed(), result.Failed(), result.Skipped())
	if ff := result.FirstFailure; ff != nil {
		fmt.Fprintf(&content, "\nFirst failure: case %d %s, status %d\n", ff.Case.Index, ff.Case.Title(), ff.ExitStatus)
		fmt.Fprintf(&content, "  %s\n", reporting.ReproCommand(ff.GeneratorArgs, ff.ConsumerArgs))
	}
	failed := false
	for _, cr := range result.Cases {
		if cr.Passed() {
			continue
		}
		if !failed {
			fmt.Fprintf(&content, "\nFailed cases:\n")
			failed = true
		}
		fmt.Fprintf(&content, "  %s  %s\n", CaseFilename(cr.Case), caseStatus(cr))
	}

	if err := os.WriteFile(s.path, []byte(content.String()), 0644); err != nil {
		return fmt.Errorf("failed to write summary %s: %w", s.path, err)
	}
	return nil
}
