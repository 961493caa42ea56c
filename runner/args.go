package runner

import (
	"github.com/ethereum-optimism/infra/op-testfloat/matrix"
	"github.com/ethereum-optimism/infra/op-testfloat/types"
)

const (
	DefaultCargo    = "cargo"
	DefaultEmulator = "qemu-riscv64"

	LevelFlag  = "-level"
	Level2     = "2"
	ExitFlag   = "-exit"
	NoExitFlag = "-noexit"
)

// coverageArgs wrap the cargo invocation in llvm-cov instrumentation.
var coverageArgs = []string{"llvm-cov", "--offline", "--no-clean", "--no-cfg-coverage"}

// GeneratorArgs builds the generator argv for one case:
// [emulator] <generator> <mode flags> [-level 2] <op>
func GeneratorArgs(cfg Config, mc types.ModeCombination, op types.Operation) []string {
	var args []string
	if cfg.emulated() {
		args = append(args, cfg.emulator())
	}
	args = append(args, cfg.Generator)
	args = append(args, mc.Flags()...)
	if cfg.Level2 {
		args = append(args, LevelFlag, Level2)
	}
	return append(args, string(op))
}

// ConsumerArgs builds the consumer argv for one case. Through cargo it is
// cargo [llvm-cov ...] run -q [-r] -- <op> <mode flags> -exit|-noexit,
// and with a prebuilt binary [emulator] <consumer> <op> <mode flags> -exit|-noexit.
func ConsumerArgs(cfg Config, mc types.ModeCombination, op types.Operation) []string {
	var args []string
	if cfg.Consumer != "" {
		if cfg.EmulateConsumer && cfg.emulated() {
			args = append(args, cfg.emulator())
		}
		args = append(args, cfg.Consumer)
	} else {
		args = append(args, cfg.cargo())
		if cfg.Coverage {
			args = append(args, coverageArgs...)
		}
		args = append(args, "run", "-q")
		if cfg.Release {
			args = append(args, "-r")
		}
		args = append(args, "--")
	}
	args = append(args, string(op))
	args = append(args, mc.Flags()...)
	if cfg.NoExit {
		return append(args, NoExitFlag)
	}
	return append(args, ExitFlag)
}

func (c Config) emulated() bool {
	return c.Backend == matrix.BackendEmulated
}

func (c Config) cargo() string {
	if c.Cargo == "" {
		return DefaultCargo
	}
	return c.Cargo
}

func (c Config) emulator() string {
	if c.Emulator == "" {
		return DefaultEmulator
	}
	return c.Emulator
}
