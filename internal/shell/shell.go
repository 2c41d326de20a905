// Package shell is the interactive front end: it reads lines with completion
// and dispatches them to the matcher and executor.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/robottwo/dya/internal/alias"
	"github.com/robottwo/dya/internal/bash"
	"github.com/robottwo/dya/internal/config"
	"github.com/robottwo/dya/internal/datasource"
	"github.com/robottwo/dya/internal/executor"
	"github.com/robottwo/dya/internal/history"
	"github.com/robottwo/dya/internal/match"
	"github.com/robottwo/dya/internal/styles"
	"go.uber.org/zap"
)

// LineReader reads one line given the history, newest first.
type LineReader func(ctx context.Context, history []string) (string, error)

type Session struct {
	Matcher   *match.Matcher
	Completer Completer
	Executor  *executor.Executor
	History   *history.History
	Resolver  *datasource.Resolver
	Global    config.Global
	Logger    *zap.Logger
	Out       io.Writer

	// ReadLine replaces the terminal line editor when set.
	ReadLine LineReader
}

func (s *Session) out() io.Writer {
	if s.Out == nil {
		return os.Stdout
	}
	return s.Out
}

func (s *Session) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// Run reads and processes lines until exit, quit, Ctrl+D or ctx is done.
func Run(ctx context.Context, s *Session) error {
	read := s.ReadLine
	if read == nil {
		read = func(ctx context.Context, hist []string) (string, error) {
			var search HistorySearch
			if s.History != nil {
				search = s.History.Search
			}
			return readLine(ctx, s.out(), s.Completer, hist, search, s.Global, s.logger())
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		var hist []string
		if s.History != nil {
			hist = s.History.Load()
		}

		line, err := read(ctx, hist)
		switch {
		case errors.Is(err, ErrInterrupted):
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return err
		}

		if s.Process(ctx, line) {
			return nil
		}
	}
}

// Process handles one input line and reports whether the session should end.
func (s *Session) Process(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	if s.History != nil {
		if err := s.History.Add(line); err != nil {
			s.logger().Warn("failed to save history", zap.Error(err))
		}
	}

	if line == "exit" || line == "quit" {
		return true
	}

	w := s.out()

	parts, err := bash.SplitWords(line)
	if errors.Is(err, bash.ErrUnbalancedQuotes) {
		fmt.Fprintln(w, styles.ERROR("Error: Invalid quotes"))
		return false
	}
	if err != nil {
		fmt.Fprintln(w, styles.ERROR("Error: "+err.Error()))
		return false
	}

	res, ok := s.Matcher.FindCommand(ctx, parts)
	switch {
	case ok && res.Help:
		s.Executor.PrintHelp(res)
	case ok:
		if msg := executor.Message(s.Executor.Execute(ctx, res)); msg != "" {
			fmt.Fprintln(w, styles.ERROR(msg))
		}
	case len(parts) == 1 && alias.IsHelpMarker(parts[0]):
		var sources []datasource.SourceInfo
		if s.Resolver != nil {
			sources = s.Resolver.Sources()
		}
		s.Executor.PrintGlobalHelp(s.Matcher.Tree(), sources)
	default:
		fmt.Fprintln(w, styles.ERROR("Invalid command."))
	}
	return false
}
