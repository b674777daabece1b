// Package runner executes external tool invocations as child processes
// of vercel-deploy.
//
// Design decisions:
//   - A non-zero exit status is not an error: it is reported through
//     model.Result.ExitCode so the caller decides what it means. Only
//     failures to start the process at all are returned as errors.
//   - A missing executable is reported as model.ErrToolNotFound so the
//     verified deploy flow can install the tool.
//   - Deploy invocations stream the tool's output straight to the
//     terminal; only invocations with Capture set are buffered.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/shinji-kodama/vercel-deploy/internal/model"
)

// Runner runs a single invocation to completion.
//
// Implementations block until the child process exits. They return a
// Result for every process that started, whatever its exit code, and an
// error wrapping model.ErrToolNotFound when the executable is missing.
type Runner interface {
	Run(ctx context.Context, inv model.Invocation) (*model.Result, error)
}

// Exec runs invocations on the host with os/exec.
type Exec struct {
	// Stdin is attached to interactive invocations.
	Stdin io.Reader

	// Stdout and Stderr receive the tool's streamed output.
	Stdout io.Writer
	Stderr io.Writer

	// LookPath resolves executables. Defaults to exec.LookPath.
	LookPath func(file string) (string, error)
}

// NewExec creates an Exec runner wired to the process's standard streams.
func NewExec() *Exec {
	return &Exec{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Run executes inv and waits for it to exit.
func (e *Exec) Run(ctx context.Context, inv model.Invocation) (*model.Result, error) {
	if inv.Name == "" {
		return nil, fmt.Errorf("empty command name")
	}

	// Resolve up front so a missing binary is distinguishable from a
	// binary that ran and failed.
	lookPath := e.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	path, err := lookPath(inv.Name)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", inv.Name, model.ErrToolNotFound)
		}
		return nil, fmt.Errorf("resolving %s: %w", inv.Name, err)
	}

	// #nosec G204: command and args come from configuration, not from
	// untrusted input.
	cmd := exec.CommandContext(ctx, path, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Stderr = e.stderr()

	var stdout strings.Builder
	if inv.Capture {
		cmd.Stdout = &stdout
	} else {
		cmd.Stdout = e.stdout()
	}
	if inv.Interactive {
		cmd.Stdin = e.Stdin
	}

	runErr := cmd.Run()

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			// Start failure (permissions, bad dir) or context cancellation
			// before start.
			return nil, fmt.Errorf("running %s: %w", inv, runErr)
		}
		exitCode = exitErr.ExitCode()
		if exitCode < 0 {
			// Killed by a signal, usually because ctx was cancelled.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("running %s: %w", inv, ctxErr)
			}
			exitCode = int(model.ExitGeneralError)
		}
	}

	return &model.Result{
		ExitCode: exitCode,
		Stdout:   stdout.String(),
	}, nil
}

func (e *Exec) stdout() io.Writer {
	if e.Stdout == nil {
		return io.Discard
	}
	return e.Stdout
}

func (e *Exec) stderr() io.Writer {
	if e.Stderr == nil {
		return io.Discard
	}
	return e.Stderr
}
