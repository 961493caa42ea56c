package testfloat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ethereum-optimism/optimism/op-service/cliapp"

	"github.com/ethereum-optimism/infra/op-testfloat/logging"
	"github.com/ethereum-optimism/infra/op-testfloat/matrix"
	"github.com/ethereum-optimism/infra/op-testfloat/metrics"
	"github.com/ethereum-optimism/infra/op-testfloat/reporting"
	"github.com/ethereum-optimism/infra/op-testfloat/runner"
	"github.com/ethereum-optimism/infra/op-testfloat/service"
	"github.com/ethereum-optimism/infra/op-testfloat/types"
)

const serviceShutdownTimeout = 5 * time.Second

// MatrixRunner runs test cases in order and reports them.
type MatrixRunner interface {
	Run(ctx context.Context, cases []types.TestCase) (*types.RunResult, error)
}

// Harness implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &Harness{}

// Harness runs the whole test matrix once and exits with the status of the
// first failing case.
type Harness struct {
	ctx        context.Context
	config     *Config
	version    string
	runID      string
	cases      []types.TestCase
	runner     MatrixRunner
	formatter  ResultFormatter
	fileLogger *logging.FileLogger
	svc        *service.Service
	result     *types.RunResult

	running atomic.Bool

	shutdownCallback func(error) // Callback to signal application shutdown
}

// New builds the matrix and the runner for config.
func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*Harness, error) {
	return newHarness(ctx, config, version, shutdownCallback, os.Stdout, nil)
}

func newHarness(ctx context.Context, config *Config, version string, shutdownCallback func(error),
	out io.Writer, cmdBuilder runner.CmdBuilder) (*Harness, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	m := matrix.Build(config.Selection)
	runID := uuid.New().String()
	config.Log.Debug("Creating harness with config",
		"runID", runID,
		"cases", m.Size(),
		"backend", config.Backend,
		"generator", config.Generator,
		"consumer", config.Consumer,
		"workDir", config.WorkDir,
		"logDir", config.LogDir)

	reporters := reporting.Multi{reporting.NewConsole(out), NewMetricsReporter()}
	var fileLogger *logging.FileLogger
	if config.LogDir != "" {
		var err error
		fileLogger, err = logging.NewFileLogger(config.LogDir, runID, config.Log)
		if err != nil {
			return nil, fmt.Errorf("failed to create file logger: %w", err)
		}
		reporters = append(reporters, fileLogger)
	}

	sel := config.Selection
	testRunner, err := runner.New(runner.Config{
		Generator:           config.Generator,
		Emulator:            config.Emulator,
		EmulateConsumer:     config.EmulateConsumer,
		Consumer:            config.Consumer,
		Cargo:               config.Cargo,
		WorkDir:             config.WorkDir,
		Backend:             config.Backend,
		Level2:              sel.Level2,
		Release:             sel.Release,
		NoExit:              sel.NoExit,
		Coverage:            sel.Coverage,
		ShowGeneratorStderr: sel.Stderr,
		KeepGoing:           config.KeepGoing,
		CaseTimeout:         config.CaseTimeout,
		CheckGenerator:      config.CheckGenerator,
		RunID:               runID,
		Reporter:            reporters,
		Log:                 config.Log,
		CmdBuilder:          cmdBuilder,
	})
	if err != nil {
		if fileLogger != nil {
			_ = fileLogger.Close()
		}
		return nil, fmt.Errorf("failed to create test runner: %w", err)
	}
	config.Log.Info("harness.New: built test matrix", "cases", m.Size())

	return &Harness{
		ctx:              ctx,
		config:           config,
		version:          version,
		runID:            runID,
		cases:            m.Cases(),
		runner:           testRunner,
		formatter:        NewConsoleResultFormatter(config.Log, out),
		fileLogger:       fileLogger,
		shutdownCallback: shutdownCallback,
	}, nil
}

// Start runs every case of the matrix. A failing case is returned as a
// CaseFailureError carrying its exit status.
// Start implements the cliapp.Lifecycle interface.
func (h *Harness) Start(ctx context.Context) error {
	h.ctx = ctx
	h.running.Store(true)
	h.config.Log.Info("Starting op-testfloat", "version", h.version, "runID", h.runID, "cases", len(h.cases))

	if h.config.Metrics.Enabled {
		addr := net.JoinHostPort(h.config.Metrics.ListenAddr, strconv.Itoa(h.config.Metrics.ListenPort))
		h.svc = service.New(service.Config{MetricsAddr: addr}, h.config.Log)
		if err := h.svc.Start(); err != nil {
			h.svc = nil
			return h.fail(NewRuntimeError(fmt.Errorf("failed to start service: %w", err)))
		}
	}

	result, err := h.runner.Run(ctx, h.cases)
	h.result = result
	if err != nil {
		h.config.Log.Error("Runtime error running test matrix", "error", err)
		metrics.RecordErrorDetails("run", err)
		return h.fail(NewRuntimeError(fmt.Errorf("test run failed: %w", err)))
	}

	if !h.config.NoSummary {
		if err := h.formatter.FormatResults(result); err != nil {
			h.config.Log.Warn("Failed to print results", "error", err)
		}
	}
	if h.fileLogger != nil {
		if err := h.fileLogger.Err(); err != nil {
			return h.fail(NewRuntimeError(fmt.Errorf("failed to write logs to %s: %w", h.fileLogger.GetLogDir(), err)))
		}
		h.config.Log.Info("Case logs written", "dir", h.fileLogger.GetLogDir())
	}

	if result.ExitStatus != 0 {
		msg := "test case failed"
		if result.FirstFailure != nil {
			msg = result.FirstFailure.Case.Title()
		}
		h.config.Log.Warn("Test matrix finished with failures", "status", result.ExitStatus, "failed", result.Failed())
		return h.fail(NewCaseFailureError(result.ExitStatus, msg))
	}

	h.config.Log.Info("Test matrix passed", "cases", len(result.Cases))
	go func() {
		h.shutdownCallback(nil)
	}()
	return nil
}

// fail releases what Start acquired, since Stop is not called after a
// failed Start.
func (h *Harness) fail(err error) error {
	if stopErr := h.Stop(h.ctx); stopErr != nil {
		h.config.Log.Warn("Failed to clean up", "error", stopErr)
	}
	return err
}

// Stop implements the cliapp.Lifecycle interface.
func (h *Harness) Stop(ctx context.Context) error {
	h.running.Store(false)
	var errs []error
	if h.fileLogger != nil {
		errs = append(errs, h.fileLogger.Close())
	}
	if h.svc != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), serviceShutdownTimeout)
		defer cancel()
		errs = append(errs, h.svc.Shutdown(shutdownCtx))
		h.svc = nil
	}
	if err := errors.Join(errs...); err != nil {
		return NewRuntimeError(err)
	}
	return nil
}

// Stopped implements the cliapp.Lifecycle interface.
func (h *Harness) Stopped() bool {
	return !h.running.Load()
}

// Result returns the result of the last run, nil before Start.
func (h *Harness) Result() *types.RunResult {
	return h.result
}

// RunID identifies the run in logs and metrics.
func (h *Harness) RunID() string {
	return h.runID
}
