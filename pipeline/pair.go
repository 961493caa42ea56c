// Package pipeline runs a generator process whose standard output feeds a
// consumer process, and streams the consumer's own output line by line.
package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"go.uber.org/multierr"
)

// Result is the outcome of one run of a Pair.
type Result struct {
	ConsumerStatus  int
	GeneratorStatus int
	// ConsumerKilled is set when cancellation of the run's context killed a
	// consumer that was still running. A consumer that had already exited
	// keeps its own status and is not marked.
	ConsumerKilled bool
}

// Pair owns a generator and a consumer process connected by a pipe, plus a
// second pipe carrying the consumer's output back to the caller. A Pair runs
// once; both processes are reaped and both pipes closed before Run returns.
type Pair struct {
	generator *exec.Cmd
	consumer  *exec.Cmd

	// OnStart, if set, is called once both processes are running.
	OnStart func()
}

// New validates the commands and returns a Pair ready to run. The pair takes
// over the generator's stdout and the consumer's stdin and stdout; stderr of
// both is left to the caller.
func New(generator, consumer *exec.Cmd) (*Pair, error) {
	if generator == nil || consumer == nil {
		return nil, errors.New("generator and consumer commands are required")
	}
	if generator.Stdout != nil {
		return nil, errors.New("generator stdout is already set")
	}
	if consumer.Stdin != nil || consumer.Stdout != nil {
		return nil, errors.New("consumer stdin or stdout is already set")
	}
	if generator.Process != nil || consumer.Process != nil {
		return nil, errors.New("commands already started")
	}
	return &Pair{generator: generator, consumer: consumer}, nil
}

// Run starts both processes, calls onLine for every consumer output line as
// it arrives, and waits for both to exit. A non-zero consumer status is not
// an error; errors are reserved for pipe and process plumbing failures.
//
// Cancelling ctx kills both processes and closes the output pipe, which ends
// the stream even if a grandchild of the consumer still holds it open.
func (p *Pair) Run(ctx context.Context, onLine func(line string)) (Result, error) {
	res := Result{ConsumerStatus: -1, GeneratorStatus: -1}

	genR, genW, err := os.Pipe()
	if err != nil {
		return res, fmt.Errorf("failed to create generator pipe: %w", err)
	}
	outR, outW, err := os.Pipe()
	if err != nil {
		return res, multierr.Combine(fmt.Errorf("failed to create consumer pipe: %w", err), genR.Close(), genW.Close())
	}
	p.generator.Stdout = genW
	p.consumer.Stdin = genR
	p.consumer.Stdout = outW

	if err := p.generator.Start(); err != nil {
		return res, multierr.Combine(fmt.Errorf("failed to start generator: %w", err),
			genR.Close(), genW.Close(), outR.Close(), outW.Close())
	}
	if err := p.consumer.Start(); err != nil {
		err = multierr.Combine(fmt.Errorf("failed to start consumer: %w", err),
			genR.Close(), genW.Close(), outR.Close(), outW.Close())
		_ = p.generator.Process.Kill()
		_ = p.generator.Wait()
		return res, err
	}

	// The children hold their own copies now. Ours must go, or the consumer
	// never sees end of stream once the generator finishes and we never see
	// it once the consumer does.
	if err := multierr.Combine(genW.Close(), genR.Close(), outW.Close()); err != nil {
		p.kill()
		_ = p.consumer.Wait()
		_ = p.generator.Wait()
		_ = outR.Close()
		return res, fmt.Errorf("failed to release pipe ends: %w", err)
	}

	stop := make(chan struct{})
	var watcher sync.WaitGroup
	watcher.Add(1)
	go func() {
		defer watcher.Done()
		select {
		case <-ctx.Done():
			p.kill()
			_ = outR.Close()
		case <-stop:
		}
	}()

	if p.OnStart != nil {
		p.OnStart()
	}

	readErr := streamLines(outR, onLine)
	if readErr != nil {
		// nothing is reading the consumer's output any more
		p.kill()
	}

	consErr := p.consumer.Wait()
	// The generator is always reaped. Once the consumer is gone its writes
	// fail with a broken pipe, so this does not block on a healthy generator.
	genErr := p.generator.Wait()

	close(stop)
	watcher.Wait()
	closeErr := outR.Close()
	if errors.Is(closeErr, os.ErrClosed) {
		closeErr = nil
	}

	var statusErr error
	res.ConsumerStatus, statusErr = exitStatus(p.consumer, consErr)
	res.GeneratorStatus, _ = exitStatus(p.generator, genErr)
	res.ConsumerKilled = ctx.Err() != nil && killed(p.consumer.ProcessState)

	if readErr != nil {
		return res, multierr.Combine(fmt.Errorf("failed to read consumer output: %w", readErr), statusErr, closeErr)
	}
	if statusErr != nil {
		return res, multierr.Append(fmt.Errorf("failed to wait for consumer: %w", statusErr), closeErr)
	}
	if closeErr != nil {
		return res, fmt.Errorf("failed to close consumer pipe: %w", closeErr)
	}
	return res, nil
}

func (p *Pair) kill() {
	_ = p.consumer.Process.Kill()
	_ = p.generator.Process.Kill()
}

// streamLines reads r until end of stream. A pipe closed underneath us by
// cancellation counts as end of stream.
func streamLines(r io.Reader, onLine func(string)) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 && onLine != nil {
			onLine(strings.TrimRight(line, "\r\n"))
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return err
		}
	}
}

// exitStatus extracts a shell style status from a finished command. A
// process killed by a signal reports 128+signal.
func exitStatus(cmd *exec.Cmd, waitErr error) (int, error) {
	if cmd.ProcessState == nil {
		if waitErr == nil {
			waitErr = errors.New("process state unavailable")
		}
		return -1, waitErr
	}
	return statusOf(cmd.ProcessState), nil
}

// killed reports whether the process died of SIGKILL, the signal used on
// cancellation.
func killed(state *os.ProcessState) bool {
	if state == nil {
		return false
	}
	ws, ok := state.Sys().(syscall.WaitStatus)
	return ok && ws.Signaled() && ws.Signal() == syscall.SIGKILL
}

func statusOf(state *os.ProcessState) int {
	if code := state.ExitCode(); code >= 0 {
		return code
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return 1
}
