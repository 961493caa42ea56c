package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/infra/op-testfloat/exitcodes"
	"github.com/ethereum-optimism/infra/op-testfloat/matrix"
	"github.com/ethereum-optimism/infra/op-testfloat/pipeline"
	"github.com/ethereum-optimism/infra/op-testfloat/reporting"
	"github.com/ethereum-optimism/infra/op-testfloat/types"
)

// DefaultMaxLines is how many consumer output lines a case result keeps.
const DefaultMaxLines = 200

// CmdBuilder creates an unstarted command and a cleanup func to call once
// the command has been waited on.
type CmdBuilder func(ctx context.Context, name string, arg ...string) (*exec.Cmd, func())

// Config holds configuration for creating a new Runner
type Config struct {
	Generator       string         // path to testfloat_gen
	Emulator        string         // user-mode emulator used by the emulated backend
	EmulateConsumer bool           // also run a prebuilt consumer under the emulator
	Consumer        string         // prebuilt consumer binary; empty runs it through cargo
	Cargo           string         // cargo binary
	WorkDir         string         // working directory of both processes
	Backend         matrix.Backend // native or emulated

	Level2   bool // extended generator coverage
	Release  bool // optimized consumer build
	NoExit   bool // consumer keeps going past its first mismatch
	Coverage bool // wrap the consumer in llvm-cov

	ShowGeneratorStderr bool      // otherwise generator stderr is discarded
	Stderr              io.Writer // destination for the processes' stderr

	KeepGoing      bool          // continue past a failing case
	CaseTimeout    time.Duration // 0 waits forever
	CheckGenerator bool          // fail a case whose generator exited non-zero

	MaxLines   int // consumer lines kept per case result
	RunID      string
	Reporter   reporting.Reporter
	Log        log.Logger
	CmdBuilder CmdBuilder
}

// Runner walks a list of test cases strictly in order, one process pair at a
// time.
type Runner struct {
	cfg      Config
	log      log.Logger
	reporter reporting.Reporter
	tracer   trace.Tracer
}

// New validates cfg and creates a Runner.
func New(cfg Config) (*Runner, error) {
	if cfg.Generator == "" {
		return nil, errors.New("generator is required")
	}
	if cfg.Consumer != "" && (cfg.Release || cfg.Coverage) {
		return nil, errors.New("release and coverage only apply when the consumer is run through cargo")
	}
	if cfg.Backend == "" {
		cfg.Backend = matrix.BackendNative
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	if cfg.MaxLines == 0 {
		cfg.MaxLines = DefaultMaxLines
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Reporter == nil {
		cfg.Reporter = reporting.Multi{}
	}
	r := &Runner{
		cfg:      cfg,
		log:      cfg.Log,
		reporter: cfg.Reporter,
		tracer:   otel.Tracer("testfloat runner"),
	}
	if r.cfg.CmdBuilder == nil {
		r.cfg.CmdBuilder = r.commandContext
	}

	cfg.Log.Debug("runner.New()", "generator", cfg.Generator, "consumer", cfg.Consumer,
		"backend", cfg.Backend, "level2", cfg.Level2, "keepGoing", cfg.KeepGoing,
		"caseTimeout", cfg.CaseTimeout, "checkGenerator", cfg.CheckGenerator)
	return r, nil
}

// Run executes cases in order. By default the run stops after the first
// failing case; with KeepGoing it runs every case and the run's exit status
// is that of the first failure.
//
// An error is returned only for harness faults: a process that could not be
// started, a broken pipe, or ctx being cancelled. The partial result is
// returned alongside it.
func (r *Runner) Run(ctx context.Context, cases []types.TestCase) (*types.RunResult, error) {
	runID := r.cfg.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("run %s", runID))
	defer span.End()

	result := &types.RunResult{
		RunID:     runID,
		State:     types.RunRunning,
		Planned:   len(cases),
		StartTime: time.Now(),
	}
	r.log.Info("Running test matrix", "run_id", runID, "cases", len(cases))

	var runErr error
	for _, tc := range cases {
		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("run interrupted before case %d: %w", tc.Index, err)
			break
		}
		cr, err := r.RunCase(ctx, tc)
		if err != nil {
			runErr = err
			break
		}
		result.Record(cr)
		if !cr.Passed() && !r.cfg.KeepGoing {
			r.log.Warn("Case failed, aborting run", "case", tc.Index, "op", tc.Operation, "status", cr.ExitStatus)
			result.State = types.RunAbortedOnFailure
			break
		}
	}

	result.Duration = time.Since(result.StartTime)
	if result.State == types.RunRunning && runErr == nil {
		result.State = types.RunCompleted
	}
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		return result, runErr
	}
	r.reporter.RunFinished(result)
	r.log.Info("Test matrix finished", "run_id", runID, "state", result.State,
		"passed", result.Passed(), "failed", result.Failed(), "exit_status", result.ExitStatus)
	return result, nil
}

// RunCase runs the process pair of a single case and reports it.
func (r *Runner) RunCase(ctx context.Context, tc types.TestCase) (*types.CaseResult, error) {
	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("case %s", tc.Key()))
	defer span.End()
	span.SetAttributes(
		attribute.Int("case.index", tc.Index),
		attribute.String("case.op", string(tc.Operation)),
		attribute.String("case.modes", tc.Modes.String()),
	)

	cr := &types.CaseResult{
		Case:            tc,
		State:           types.CasePending,
		ExitStatus:      -1,
		GeneratorStatus: -1,
		GeneratorArgs:   GeneratorArgs(r.cfg, tc.Modes, tc.Operation),
		ConsumerArgs:    ConsumerArgs(r.cfg, tc.Modes, tc.Operation),
	}

	caseCtx := ctx
	if r.cfg.CaseTimeout > 0 {
		var cancel context.CancelFunc
		caseCtx, cancel = context.WithTimeout(ctx, r.cfg.CaseTimeout)
		defer cancel()
	}

	gen, genCleanup := r.cfg.CmdBuilder(caseCtx, cr.GeneratorArgs[0], cr.GeneratorArgs[1:]...)
	defer genCleanup()
	cons, consCleanup := r.cfg.CmdBuilder(caseCtx, cr.ConsumerArgs[0], cr.ConsumerArgs[1:]...)
	defer consCleanup()
	if r.cfg.ShowGeneratorStderr {
		gen.Stderr = r.cfg.Stderr
	}
	cons.Stderr = r.cfg.Stderr

	pair, err := pipeline.New(gen, cons)
	if err != nil {
		return nil, fmt.Errorf("case %d (%s): %w", tc.Index, tc.Title(), err)
	}
	pair.OnStart = func() { cr.State = types.CaseStreaming }

	r.log.Info("Running case", "case", tc.Index, "op", tc.Operation, "modes", tc.Modes.String())
	r.log.Debug("Case command", "generator", gen.String(), "consumer", cons.String())
	r.reporter.CaseStarted(tc, cr.GeneratorArgs, cr.ConsumerArgs)

	cr.State = types.CaseLaunching
	start := time.Now()
	res, err := pair.Run(caseCtx, func(line string) {
		cr.AddLine(line, r.cfg.MaxLines)
		r.reporter.CaseOutput(tc, line)
	})
	cr.Duration = time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("case %d (%s): %w", tc.Index, tc.Title(), err)
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("case %d (%s) interrupted: %w", tc.Index, tc.Title(), ctx.Err())
	}

	cr.State = types.CaseCompleted
	cr.ExitStatus = res.ConsumerStatus
	cr.GeneratorStatus = res.GeneratorStatus
	switch {
	case res.ConsumerKilled && caseCtx.Err() != nil:
		cr.Failure = types.FailureUnresponsive
		cr.ExitStatus = exitcodes.Unresponsive
		r.log.Warn("Case timed out", "case", tc.Index, "op", tc.Operation, "timeout", r.cfg.CaseTimeout)
	case res.ConsumerStatus != 0:
		cr.Failure = types.FailureMismatch
	case r.cfg.CheckGenerator && res.GeneratorStatus != 0:
		cr.Failure = types.FailureGenerator
		cr.ExitStatus = exitcodes.GeneratorFailure
		r.log.Warn("Generator failed", "case", tc.Index, "op", tc.Operation, "status", res.GeneratorStatus)
	}

	span.SetAttributes(attribute.Int("case.status", cr.ExitStatus))
	if !cr.Passed() {
		span.SetStatus(codes.Error, fmt.Sprintf("%s: status %d", cr.Failure, cr.ExitStatus))
	}
	r.log.Debug("Case finished", "case", tc.Index, "status", cr.ExitStatus,
		"generator_status", cr.GeneratorStatus, "duration", cr.Duration)
	r.reporter.CaseFinished(cr)
	return cr, nil
}

func (r *Runner) commandContext(ctx context.Context, name string, arg ...string) (*exec.Cmd, func()) {
	cmd := exec.CommandContext(ctx, name, arg...)
	cmd.Dir = r.cfg.WorkDir
	// lets an instrumented consumer join the case's trace
	cmd.Env = telemetry.InstrumentEnvironment(ctx, os.Environ())
	return cmd, func() {}
}
