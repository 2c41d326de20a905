// Package bash runs shell snippets through the mvdan.cc/sh interpreter and
// splits typed lines into shell words.
package bash

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// Runner executes shell snippets. Each call gets a fresh interpreter, so
// variables set by one snippet never leak into the next.
type Runner struct {
	// Dir is the working directory; empty means the process directory.
	Dir string
	// Env replaces the process environment when non-nil.
	Env    []string
	Logger *zap.Logger
}

func NewRunner(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{Logger: logger}
}

// Run parses and runs script with the given standard streams. Cancelling ctx
// interrupts the running child process.
func (r *Runner) Run(ctx context.Context, script string, stdin io.Reader, stdout, stderr io.Writer) error {
	prog, err := syntax.NewParser().Parse(strings.NewReader(script), "")
	if err != nil {
		return fmt.Errorf("failed to parse command: %w", err)
	}

	env := r.Env
	if env == nil {
		env = os.Environ()
	}

	opts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(stdin, stdout, stderr),
		interp.ExecHandlers(r.logExec),
	}
	if r.Dir != "" {
		opts = append(opts, interp.Dir(r.Dir))
	}

	runner, err := interp.New(opts...)
	if err != nil {
		return err
	}

	return runner.Run(ctx, prog)
}

// Output runs script without stdin and returns what it wrote to stdout. A
// non-zero exit is an error that carries the trimmed stderr.
func (r *Runner) Output(ctx context.Context, script string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	err := r.Run(ctx, script, nil, &stdout, &stderr)
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return stdout.Bytes(), fmt.Errorf("%w: %s", err, msg)
		}
		return stdout.Bytes(), err
	}
	return stdout.Bytes(), nil
}

func (r *Runner) logExec(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(ctx context.Context, args []string) error {
		if r.Logger != nil {
			r.Logger.Debug("exec", zap.Strings("args", args))
		}
		return next(ctx, args)
	}
}

// RunBashCommand runs script and returns its stdout and stderr.
func RunBashCommand(ctx context.Context, script string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	err := NewRunner(nil).Run(ctx, script, nil, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

// ExitCode maps a Run error to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if status, ok := interp.IsExitStatus(err); ok {
		return int(status)
	}
	return 1
}

// IsExitStatus reports whether err is a command's non-zero exit.
func IsExitStatus(err error) bool {
	_, ok := interp.IsExitStatus(err)
	return ok
}
