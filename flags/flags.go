package flags

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

const EnvVarPrefix = "OP_TESTFLOAT"

var (
	TestfloatDir = &cli.StringFlag{
		Name:    "testfloat-dir",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TESTFLOAT_DIR"),
		Usage:   "Berkeley TestFloat source tree holding the per-platform builds. Defaults to testfloat/berkeley-testfloat-3 next to the op-testfloat binary",
	}
	Generator = &cli.StringFlag{
		Name:    "generator",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "GENERATOR"),
		Usage:   "Path to testfloat_gen. Overrides the build picked from --testfloat-dir for the selected backend",
	}
	Emulator = &cli.StringFlag{
		Name:    "emulator",
		Value:   "qemu-riscv64",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "EMULATOR"),
		Usage:   "User-mode emulator that runs the generator on the emulated (qemu) backend",
	}
	EmulateConsumer = &cli.BoolFlag{
		Name:    "emulate-consumer",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "EMULATE_CONSUMER"),
		Usage:   "Also run the --consumer binary under the emulator on the emulated backend",
	}
	Consumer = &cli.StringFlag{
		Name:    "consumer",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CONSUMER"),
		Usage:   "Prebuilt consumer binary. When unset the consumer is run through 'cargo run'",
	}
	Cargo = &cli.StringFlag{
		Name:    "cargo",
		Value:   "cargo",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CARGO"),
		Usage:   "Path to the cargo binary used to run the consumer",
	}
	WorkDir = &cli.StringFlag{
		Name:    "work-dir",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "WORK_DIR"),
		Usage:   "Working directory of the generator and consumer processes (the consumer's cargo project). Defaults to the current directory",
	}
	SelectionFile = &cli.StringFlag{
		Name:    "selection-file",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SELECTION_FILE"),
		Usage:   "YAML file narrowing the test matrix. Positional tokens replace its values axis by axis",
	}
	LogDir = &cli.StringFlag{
		Name:    "log-dir",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LOG_DIR"),
		Usage:   "Directory to write per-run case logs to. Disabled when empty",
	}
	CaseTimeout = &cli.DurationFlag{
		Name:    "case-timeout",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CASE_TIMEOUT"),
		Usage:   "Kill a test case that runs longer than this (e.g. '10m') and fail it with status 124. 0 waits forever",
		Action: func(_ *cli.Context, d time.Duration) error {
			return validateCaseTimeout(d)
		},
	}
	CheckGenerator = &cli.BoolFlag{
		Name:    "check-generator",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CHECK_GENERATOR"),
		Usage:   "Fail a test case with status 3 when the generator exits non-zero behind a passing consumer",
	}
	KeepGoing = &cli.BoolFlag{
		Name:    "keep-going",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "KEEP_GOING"),
		Usage:   "Run every test case even after one fails. The exit status is still that of the first failure",
	}
	NoSummary = &cli.BoolFlag{
		Name:    "no-summary",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "NO_SUMMARY"),
		Usage:   "Do not print the results table after the run",
	}
)

var optionalFlags = []cli.Flag{
	TestfloatDir,
	Generator,
	Emulator,
	EmulateConsumer,
	Consumer,
	Cargo,
	WorkDir,
	SelectionFile,
	LogDir,
	CaseTimeout,
	CheckGenerator,
	KeepGoing,
	NoSummary,
}

var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = optionalFlags
}

func validateCaseTimeout(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("case-timeout must not be negative, got %s", d)
	}
	return nil
}
