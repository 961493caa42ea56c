package testfloat

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"

	"github.com/ethereum-optimism/infra/op-testfloat/flags"
	"github.com/ethereum-optimism/infra/op-testfloat/matrix"
)

const (
	// DefaultTestfloatDir is where the TestFloat tree lives relative to the
	// directory holding the op-testfloat binary.
	DefaultTestfloatDir = "testfloat/berkeley-testfloat-3"
	nativeBuild         = "build/Linux-x86_64-GCC"
	emulatedBuild       = "build/Linux-RISCV64-GCC"
	generatorBinary     = "testfloat_gen"
)

// Config holds the application configuration
type Config struct {
	Selection    matrix.Selection // positional tokens merged over the selection file
	Backend      matrix.Backend
	TestfloatDir string
	Generator    string // resolved testfloat_gen path

	Emulator        string
	EmulateConsumer bool
	Consumer        string // prebuilt consumer, empty runs cargo
	Cargo           string
	WorkDir         string
	SelectionFile   string

	LogDir         string        // per-run case logs, disabled when empty
	CaseTimeout    time.Duration // 0 waits forever
	CheckGenerator bool
	KeepGoing      bool
	NoSummary      bool

	Metrics opmetrics.CLIConfig
	Log     log.Logger
}

// NewConfig creates a new Config from cli context. Invocation mistakes are
// returned as a ConfigError.
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	cliSel, err := matrix.Parse(ctx.Args().Slice())
	if err != nil {
		return nil, NewConfigError(err)
	}

	sel := cliSel
	selectionFile := ctx.String(flags.SelectionFile.Name)
	if selectionFile != "" {
		selectionFile, err = filepath.Abs(selectionFile)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for selection file: %w", err)
		}
		fileSel, err := matrix.LoadSelectionFile(selectionFile)
		if err != nil {
			return nil, NewConfigError(err)
		}
		sel = fileSel.Override(cliSel)
	}

	consumer := ctx.String(flags.Consumer.Name)
	if consumer != "" && (sel.Release || sel.Coverage) {
		return nil, NewConfigError(errors.New("release and coverage cannot be combined with --consumer"))
	}

	backend := sel.EffectiveBackend()

	testfloatDir := ctx.String(flags.TestfloatDir.Name)
	if testfloatDir == "" {
		testfloatDir, err = defaultTestfloatDir()
		if err != nil {
			return nil, err
		}
	}
	testfloatDir, err = filepath.Abs(testfloatDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for testfloat dir '%s': %w", testfloatDir, err)
	}

	generator := ctx.String(flags.Generator.Name)
	if generator == "" {
		generator = GeneratorPath(testfloatDir, backend)
	}

	workDir, err := absOrEmpty(ctx.String(flags.WorkDir.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for work dir: %w", err)
	}
	logDir, err := absOrEmpty(ctx.String(flags.LogDir.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for log dir: %w", err)
	}

	metricsCfg := opmetrics.ReadCLIConfig(ctx)
	if err := metricsCfg.Check(); err != nil {
		return nil, NewConfigError(fmt.Errorf("invalid metrics config: %w", err))
	}

	return &Config{
		Selection:       sel,
		Backend:         backend,
		TestfloatDir:    testfloatDir,
		Generator:       generator,
		Emulator:        ctx.String(flags.Emulator.Name),
		EmulateConsumer: ctx.Bool(flags.EmulateConsumer.Name),
		Consumer:        consumer,
		Cargo:           ctx.String(flags.Cargo.Name),
		WorkDir:         workDir,
		SelectionFile:   selectionFile,
		LogDir:          logDir,
		CaseTimeout:     ctx.Duration(flags.CaseTimeout.Name),
		CheckGenerator:  ctx.Bool(flags.CheckGenerator.Name),
		KeepGoing:       ctx.Bool(flags.KeepGoing.Name),
		NoSummary:       ctx.Bool(flags.NoSummary.Name),
		Metrics:         metricsCfg,
		Log:             log,
	}, nil
}

// GeneratorPath returns the testfloat_gen build for backend inside dir.
func GeneratorPath(dir string, backend matrix.Backend) string {
	build := nativeBuild
	if backend == matrix.BackendEmulated {
		build = emulatedBuild
	}
	return filepath.Join(dir, build, generatorBinary)
}

func defaultTestfloatDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to locate executable: %w", err)
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("failed to resolve executable path: %w", err)
	}
	return filepath.Join(filepath.Dir(exe), DefaultTestfloatDir), nil
}

func absOrEmpty(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	return filepath.Abs(path)
}
