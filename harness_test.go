package testfloat

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-testfloat/logging"
	"github.com/ethereum-optimism/infra/op-testfloat/matrix"
	"github.com/ethereum-optimism/infra/op-testfloat/runner"
	"github.com/ethereum-optimism/infra/op-testfloat/types"
)

const (
	roleEnv = "OP_TESTFLOAT_HARNESS_ROLE"

	fakeGenerator = "fake-gen"
	fakeConsumer  = "fake-consumer"

	// op the fake consumer reports a mismatch for
	failOpEnv = "FAKE_FAIL_OP"
)

func TestMain(m *testing.M) {
	switch os.Getenv(roleEnv) {
	case fakeGenerator:
		args := os.Args[1:]
		fmt.Printf("%s vector\n", args[len(args)-1])
		os.Exit(0)
	case fakeConsumer:
		os.Exit(consumerMain(os.Args[1:]))
	}
	os.Exit(m.Run())
}

// consumerMain checks the vectors of the op named by its first argument.
func consumerMain(args []string) int {
	op := args[0]
	n := 0
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		n++
	}
	if op == os.Getenv(failOpEnv) {
		fmt.Println("Test failure in line 1")
		return 9
	}
	fmt.Printf("Tests run: %d, Failures: 0\n", n)
	return 0
}

func fakeCommands(env ...string) runner.CmdBuilder {
	return func(ctx context.Context, name string, arg ...string) (*exec.Cmd, func()) {
		cmd := exec.CommandContext(ctx, os.Args[0], arg...)
		cmd.Env = append(os.Environ(), roleEnv+"="+name)
		cmd.Env = append(cmd.Env, env...)
		return cmd, func() {}
	}
}

// mockRunner stands in for the runner in lifecycle tests.
type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, cases []types.TestCase) (*types.RunResult, error) {
	args := m.Called(ctx, cases)
	res, _ := args.Get(0).(*types.RunResult)
	return res, args.Error(1)
}

// shutdownRecorder captures the shutdown callback, which Start calls from a
// goroutine.
type shutdownRecorder struct {
	mu     sync.Mutex
	called bool
	done   chan struct{}
}

func newShutdownRecorder() *shutdownRecorder {
	return &shutdownRecorder{done: make(chan struct{})}
}

func (s *shutdownRecorder) callback(error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.called {
		s.called = true
		close(s.done)
	}
}

func (s *shutdownRecorder) wasCalled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.called
}

func testConfig(t *testing.T, tokens ...string) *Config {
	t.Helper()
	sel, err := matrix.Parse(tokens)
	require.NoError(t, err)
	return &Config{
		Selection: sel,
		Backend:   sel.EffectiveBackend(),
		Generator: fakeGenerator,
		Consumer:  fakeConsumer,
		Cargo:     "cargo",
		Emulator:  "qemu-riscv64",
		Log:       log.NewLogger(log.DiscardHandler()),
	}
}

func caseResult(index int, op types.Operation, status int) *types.CaseResult {
	cr := &types.CaseResult{
		Case: types.TestCase{
			Index:     index,
			Operation: op,
			Modes:     types.ModeCombination{Round: types.RoundNearEven, Tininess: types.TininessBefore, Exactness: types.Exact},
		},
		State:         types.CaseCompleted,
		ExitStatus:    status,
		GeneratorArgs: []string{"testfloat_gen", string(op)},
		ConsumerArgs:  []string{"consumer", string(op)},
	}
	if status != 0 {
		cr.Failure = types.FailureMismatch
	}
	return cr
}

func newMockedHarness(t *testing.T, cfg *Config, result *types.RunResult, runErr error) (*Harness, *mockRunner, *shutdownRecorder, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	rec := newShutdownRecorder()
	h, err := newHarness(context.Background(), cfg, "test", rec.callback, out, nil)
	require.NoError(t, err)

	mr := &mockRunner{}
	mr.On("Run", mock.Anything, h.cases).Return(result, runErr).Once()
	h.runner = mr
	return h, mr, rec, out
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(context.Background(), nil, "test", func(error) {})
	assert.ErrorContains(t, err, "config is required")
}

func TestNewBuildsMatrix(t *testing.T) {
	h, err := newHarness(context.Background(), testConfig(t, "f32", "add", "sub", "rmin", "exact"), "test", func(error) {}, &bytes.Buffer{}, nil)
	require.NoError(t, err)

	require.Len(t, h.cases, 4)
	assert.Equal(t, types.Operation("f32_add"), h.cases[0].Operation)
	assert.Equal(t, types.Operation("f32_sub"), h.cases[1].Operation)
	assert.Equal(t, types.TininessAfter, h.cases[2].Modes.Tininess)
	assert.NotEmpty(t, h.RunID())
	assert.Nil(t, h.Result())
}

func TestNewRejectsConsumerWithRelease(t *testing.T) {
	cfg := testConfig(t, "release")
	_, err := newHarness(context.Background(), cfg, "test", func(error) {}, &bytes.Buffer{}, nil)
	assert.ErrorContains(t, err, "failed to create test runner")
}

func TestStartPassingRun(t *testing.T) {
	cfg := testConfig(t, "f32", "add", "rmin", "tininessbefore", "exact")
	result := &types.RunResult{RunID: "r", State: types.RunCompleted, Planned: 1, Duration: 2 * time.Second}
	result.Record(caseResult(1, "f32_add", 0))

	h, mr, rec, out := newMockedHarness(t, cfg, result, nil)

	require.NoError(t, h.Start(context.Background()))
	mr.AssertExpectations(t)
	assert.False(t, h.Stopped())
	assert.Same(t, result, h.Result())

	select {
	case <-rec.done:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown callback not called")
	}
	assert.Contains(t, out.String(), "TestFloat Results")
	assert.Contains(t, out.String(), "exit status 0")

	require.NoError(t, h.Stop(context.Background()))
	assert.True(t, h.Stopped())
}

func TestStartFailingRun(t *testing.T) {
	cfg := testConfig(t, "f32", "add", "sub", "rmin", "tininessbefore", "exact")
	cfg.NoSummary = true
	result := &types.RunResult{RunID: "r", State: types.RunAbortedOnFailure, Planned: 2}
	result.Record(caseResult(1, "f32_add", 7))

	h, _, rec, out := newMockedHarness(t, cfg, result, nil)

	err := h.Start(context.Background())
	require.Error(t, err)
	assert.True(t, IsCaseFailureError(err))
	assert.Equal(t, 7, ExitCode(err))
	assert.Contains(t, err.Error(), "f32_add rnear_even tininessbefore exact")
	assert.Empty(t, out.String(), "summary disabled")
	assert.True(t, h.Stopped())
	assert.False(t, rec.wasCalled())
}

func TestStartRuntimeError(t *testing.T) {
	cfg := testConfig(t, "f32", "add", "rmin", "tininessbefore", "exact")
	partial := &types.RunResult{RunID: "r", State: types.RunRunning, Planned: 1}

	h, _, rec, out := newMockedHarness(t, cfg, partial, errors.New("failed to start generator: no such file"))

	err := h.Start(context.Background())
	require.Error(t, err)
	assert.True(t, IsRuntimeError(err))
	assert.Equal(t, 2, ExitCode(err))
	assert.ErrorContains(t, err, "no such file")
	assert.NotContains(t, out.String(), "TestFloat Results")
	assert.False(t, rec.wasCalled())
}

func TestStartFailsWhenMetricsAddressBusy(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := testConfig(t, "f32", "add", "rmin", "tininessbefore", "exact")
	cfg.Metrics.Enabled = true
	cfg.Metrics.ListenAddr = "127.0.0.1"
	cfg.Metrics.ListenPort = ln.Addr().(*net.TCPAddr).Port

	h, mr, _, _ := newMockedHarness(t, cfg, nil, nil)

	err = h.Start(context.Background())
	require.Error(t, err)
	assert.True(t, IsRuntimeError(err))
	assert.ErrorContains(t, err, "failed to start service")
	mr.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestHarnessRunsProcesses(t *testing.T) {
	cfg := testConfig(t, "f32", "add", "sub", "rmin", "tininessbefore", "exact")
	cfg.KeepGoing = true
	cfg.LogDir = t.TempDir()

	out := &bytes.Buffer{}
	rec := newShutdownRecorder()
	h, err := newHarness(context.Background(), cfg, "test", rec.callback, out, fakeCommands(failOpEnv+"=f32_sub"))
	require.NoError(t, err)

	err = h.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, 9, ExitCode(err))

	res := h.Result()
	require.NotNil(t, res)
	assert.Equal(t, types.RunCompleted, res.State)
	assert.Equal(t, 1, res.Passed())
	assert.Equal(t, 1, res.Failed())

	console := out.String()
	assert.Contains(t, console, "f32_add rmin tininessbefore exact\n")
	assert.Contains(t, console, "\tTests run: 1, Failures: 0\n")
	assert.Contains(t, console, "\tERROR 9\n")
	assert.Contains(t, console, "TestFloat Results")

	runDir := filepath.Join(cfg.LogDir, logging.RunDirectoryPrefix+h.RunID())
	assert.FileExists(t, filepath.Join(runDir, logging.SummaryFilename))
	assert.FileExists(t, filepath.Join(runDir, logging.FailedDir, logging.CaseFilename(res.Cases[1].Case)))
	assert.False(t, rec.wasCalled())
}
