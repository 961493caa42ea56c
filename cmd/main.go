package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	testfloat "github.com/ethereum-optimism/infra/op-testfloat"
	"github.com/ethereum-optimism/infra/op-testfloat/exitcodes"
	"github.com/ethereum-optimism/infra/op-testfloat/flags"
	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := newApp()

	// Start telemetry
	ctx, shutdown, err := telemetry.SetupOpenTelemetry(
		context.Background(),
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer shutdown()

	// Start CLI
	ctx = ctxinterrupt.WithSignalWaiterMain(ctx)
	err = app.RunContext(ctx, os.Args)
	if err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "op-testfloat"
	app.Usage = "Cross-validate a softfloat implementation against Berkeley TestFloat"
	app.ArgsUsage = "[round modes] [tininess] [exactness] [types] [operations] [level2|release|noexit|stderr|coverage|qemu|native]..."
	app.Description = "op-testfloat pipes testfloat_gen test vectors into a consumer for every selected " +
		"rounding mode, tininess and exactness combination and every selected operation. " +
		"It exits with the status of the first failing consumer."
	app.Flags = cliapp.ProtectFlags(flags.Flags)
	app.Action = cliapp.LifecycleCmd(run)
	app.ExitErrHandler = exitErrHandler
	return app
}

func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	var exitErr cli.ExitCoder
	if errors.As(err, &exitErr) {
		// Use the exit code from the ExitCoder
		cli.HandleExitCoder(exitErr)
		return
	}
	if testfloat.IsCaseFailureError(err) {
		// the failing case has already been reported on stdout
		cli.HandleExitCoder(cli.Exit("", testfloat.ExitCode(err)))
		return
	}
	if !testfloat.IsConfigError(err) && !testfloat.IsRuntimeError(err) {
		// flag parsing errors from urfave/cli are invocation mistakes
		cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.ConfigErr))
		return
	}
	cli.HandleExitCoder(cli.Exit(err.Error(), testfloat.ExitCode(err)))
}

func run(ctx *cli.Context, closeApp context.CancelCauseFunc) (cliapp.Lifecycle, error) {
	logCfg := oplog.ReadCLIConfig(ctx)
	log := oplog.NewLogger(oplog.AppOut(ctx), logCfg)
	oplog.SetGlobalLogHandler(log.Handler())
	oplog.SetupDefaults()

	cfg, err := testfloat.NewConfig(ctx, log)
	if err != nil {
		if testfloat.IsConfigError(err) {
			return nil, err
		}
		return nil, testfloat.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}

	cfg.Log.Debug("Config", "config", cfg)

	harness, err := testfloat.New(ctx.Context, cfg, Version, closeApp)
	if err != nil {
		// Wrap in RuntimeError to signal this should exit with code 2
		return nil, testfloat.NewRuntimeError(fmt.Errorf("failed to create harness: %w", err))
	}

	return harness, nil
}
