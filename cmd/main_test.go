package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	testfloat "github.com/ethereum-optimism/infra/op-testfloat"
	"github.com/ethereum-optimism/infra/op-testfloat/exitcodes"
)

// When set the test binary acts as testfloat_gen or as the consumer. The
// generator is called with the mode flags first, the consumer with the
// operation first.
const helperEnv = "OP_TESTFLOAT_CMD_HELPER"

func TestMain(m *testing.M) {
	if failOp, ok := os.LookupEnv(helperEnv); ok {
		args := os.Args[1:]
		if strings.HasPrefix(args[0], "-") {
			fmt.Printf("%s vector\n", args[len(args)-1])
			os.Exit(0)
		}
		n := 0
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			n++
		}
		if args[0] == failOp {
			fmt.Println("Test failure in line 1")
			os.Exit(6)
		}
		fmt.Printf("Tests run: %d, Failures: 0\n", n)
		os.Exit(0)
	}
	os.Exit(m.Run())
}

// runApp runs the CLI in process and returns the status it exited with.
func runApp(t *testing.T, args ...string) (int, string) {
	t.Helper()
	status := exitcodes.Success
	errOut := &bytes.Buffer{}

	oldExiter, oldErrWriter := cli.OsExiter, cli.ErrWriter
	cli.OsExiter = func(code int) { status = code }
	cli.ErrWriter = errOut
	t.Cleanup(func() {
		cli.OsExiter = oldExiter
		cli.ErrWriter = oldErrWriter
	})

	app := newApp()
	app.Writer = &bytes.Buffer{}
	_ = app.RunContext(context.Background(), append([]string{"op-testfloat"}, args...))
	return status, errOut.String()
}

func TestExitErrHandler(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"config", testfloat.NewConfigError(errors.New("unrecognized flag: \"x\"")), exitcodes.ConfigErr},
		{"runtime", testfloat.NewRuntimeError(errors.New("broken pipe")), exitcodes.RuntimeErr},
		{"case failure", errors.Join(fmt.Errorf("failed to start: %w", testfloat.NewCaseFailureError(7, "f32_add"))), 7},
		{"exit coder", cli.Exit("boom", 5), 5},
		{"usage", errors.New("flag provided but not defined: -bogus"), exitcodes.ConfigErr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := -1
			oldExiter, oldErrWriter := cli.OsExiter, cli.ErrWriter
			cli.OsExiter = func(code int) { got = code }
			cli.ErrWriter = &bytes.Buffer{}
			defer func() {
				cli.OsExiter = oldExiter
				cli.ErrWriter = oldErrWriter
			}()

			exitErrHandler(nil, tt.err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnknownTokenExitsWithConfigError(t *testing.T) {
	status, errOut := runApp(t, "--generator", os.Args[0], "f32", "bogus")
	assert.Equal(t, exitcodes.ConfigErr, status)
	assert.Contains(t, errOut, `unrecognized flag: "bogus"`)
}

func TestMissingGeneratorExitsWithRuntimeError(t *testing.T) {
	status, errOut := runApp(t, "--generator", "/nonexistent/testfloat_gen", "--consumer", os.Args[0],
		"f32", "add", "rmin", "tininessbefore", "exact")
	assert.Equal(t, exitcodes.RuntimeErr, status)
	assert.Contains(t, errOut, "failed to start generator")
}

func TestRunExitsWithConsumerStatus(t *testing.T) {
	t.Setenv(helperEnv, "f32_sub")
	status, _ := runApp(t, "--generator", os.Args[0], "--consumer", os.Args[0], "--no-summary",
		"f32", "add", "sub", "rmin", "tininessbefore", "exact")
	assert.Equal(t, 6, status)
}

func TestRunPasses(t *testing.T) {
	t.Setenv(helperEnv, "none")
	status, errOut := runApp(t, "--generator", os.Args[0], "--consumer", os.Args[0],
		"f64", "mul", "rmax", "tininessafter", "notexact")
	require.Equal(t, exitcodes.Success, status, errOut)
}
