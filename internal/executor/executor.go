// Package executor runs matched alias chains and renders command help.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/robottwo/dya/internal/bash"
	"github.com/robottwo/dya/internal/match"
	"github.com/robottwo/dya/internal/styles"
	"go.uber.org/zap"
)

var (
	ErrTimeout   = errors.New("command timed out")
	ErrCancelled = errors.New("operation cancelled")
)

// TimeoutError is returned when a command outlives its root timeout.
// errors.Is(err, ErrTimeout) holds for it.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s after %s", ErrTimeout, e.After)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// StrictViolationError is returned for a strict command given extra tokens.
type StrictViolationError struct {
	Remaining []string
}

func (e *StrictViolationError) Error() string {
	return "unexpected arguments for strict command: " + strings.Join(e.Remaining, " ")
}

// Runner is satisfied by *bash.Runner.
type Runner interface {
	Run(ctx context.Context, script string, stdin io.Reader, stdout, stderr io.Writer) error
}

type Executor struct {
	runner Runner
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	logger *zap.Logger
	now    func() time.Time
	width  int

	// interrupts lists the signals that cancel a running command.
	interrupts []os.Signal
}

type Option func(*Executor)

func WithStreams(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(e *Executor) {
		e.stdin, e.stdout, e.stderr = stdin, stdout, stderr
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// WithWidth sets the column at which help text wraps.
func WithWidth(width int) Option {
	return func(e *Executor) { e.width = width }
}

func New(runner Runner, opts ...Option) *Executor {
	e := &Executor{
		runner:     runner,
		stdin:      os.Stdin,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		logger:     zap.NewNop(),
		now:        time.Now,
		width:      80,
		interrupts: []os.Signal{os.Interrupt},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.runner == nil {
		e.runner = bash.NewRunner(e.logger)
	}
	return e
}

// Execute renders the result's command and runs it. Rejected results are
// refused. The root command's timeout bounds the run and an interrupt
// cancels it; neither touches resolver or cache state.
func (e *Executor) Execute(ctx context.Context, res match.Result) error {
	if res.Rejected() {
		return &StrictViolationError{Remaining: res.Remaining}
	}

	cmd := res.Shell()
	fmt.Fprintln(e.stdout, styles.RUNNING("Running:")+" "+cmd)
	fmt.Fprintln(e.stdout, strings.Repeat("-", 30))

	ctx, stop := signal.NotifyContext(ctx, e.interrupts...)
	defer stop()

	timeout := res.Timeout()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, timeout, ErrTimeout)
		defer cancel()
	}

	e.logger.Info("executing command", zap.String("command", cmd), zap.Duration("timeout", timeout))
	err := e.runner.Run(ctx, cmd, e.stdin, e.stdout, e.stderr)

	switch {
	case errors.Is(context.Cause(ctx), ErrTimeout):
		e.logger.Warn("command timed out", zap.String("command", cmd), zap.Duration("timeout", timeout))
		return &TimeoutError{After: timeout}
	case ctx.Err() != nil:
		e.logger.Info("command cancelled", zap.String("command", cmd))
		return ErrCancelled
	case err != nil:
		e.logger.Debug("command failed", zap.String("command", cmd), zap.Error(err))
		return err
	}
	return nil
}

// Message turns an Execute error into the line shown to the user. Exit
// statuses yield an empty message since the command reports its own failure.
func Message(err error) string {
	var strict *StrictViolationError
	var timeout *TimeoutError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &strict):
		return "Error: Unexpected arguments: " + strings.Join(strict.Remaining, " ")
	case errors.As(err, &timeout):
		return fmt.Sprintf("Error: Command timed out after %s", timeout.After)
	case errors.Is(err, ErrCancelled):
		return "Operation cancelled."
	case bash.IsExitStatus(err):
		return ""
	}
	return "Error: " + err.Error()
}
