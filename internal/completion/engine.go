// Package completion suggests the next token while a line is being typed.
package completion

import (
	"context"
	"iter"
	"strings"

	"github.com/robottwo/dya/internal/alias"
	"github.com/robottwo/dya/internal/bash"
	"github.com/robottwo/dya/internal/match"
)

// Engine computes suggestions from the alias tree. It never changes the tree
// or persisted state; app variable sources are resolved lazily through the
// matcher.
type Engine struct {
	matcher *match.Matcher
}

func NewEngine(matcher *match.Matcher) *Engine {
	return &Engine{matcher: matcher}
}

// CompleteLine splits text with shell quoting rules and completes the last
// word. A trailing space starts a new, empty word. Text with unbalanced
// quotes has no suggestions.
func (e *Engine) CompleteLine(ctx context.Context, text string) iter.Seq[string] {
	parts, err := bash.SplitWords(text)
	if err != nil {
		return func(func(string) bool) {}
	}
	if len(parts) == 0 || strings.HasSuffix(text, " ") || strings.HasSuffix(text, "\t") {
		parts = append(parts, "")
	}
	return e.Complete(ctx, parts)
}

// Complete suggests values for the last element of parts, which is the word
// being typed. The elements before it are complete words.
func (e *Engine) Complete(ctx context.Context, parts []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		if len(parts) == 0 {
			parts = []string{""}
		}
		typed, prefix := parts[:len(parts)-1], parts[len(parts)-1]

		seen := make(map[string]struct{})
		emit := func(s string) bool {
			if _, dup := seen[s]; dup {
				return true
			}
			seen[s] = struct{}{}
			return yield(s)
		}

		st := e.replay(ctx, typed)
		if st.pos < len(typed) {
			e.midStructure(ctx, st, typed[st.pos:], prefix, emit)
			return
		}
		e.boundary(ctx, st, prefix, emit)
	}
}

type replayState struct {
	// active is the deepest command or subcommand fully typed so far.
	active alias.Branch
	used   map[int]bool
	pos    int
}

func (e *Engine) scope(st replayState) []alias.Branch {
	if st.active == nil {
		return e.matcher.Tree().Branches()
	}
	return alias.ChildBranches(st.active)
}

// replay walks the complete words through the tree: children first, then
// unused arguments of the active node. It stops at the first word that does
// not start a fully typed pattern.
func (e *Engine) replay(ctx context.Context, typed []string) replayState {
	st := replayState{used: make(map[int]bool)}

	for st.pos < len(typed) {
		rest := typed[st.pos:]

		if b, n, ok := e.firstFull(ctx, e.scope(st), rest); ok {
			st.active = b
			st.used = make(map[int]bool)
			st.pos += n
			continue
		}

		if st.active != nil {
			if i, n, ok := e.firstArg(ctx, st, rest); ok {
				st.used[i] = true
				st.pos += n
				continue
			}
		}

		break
	}
	return st
}

func (e *Engine) firstFull(ctx context.Context, candidates []alias.Branch, rest []string) (alias.Branch, int, bool) {
	for _, b := range candidates {
		p := b.Pattern()
		if len(p) == 0 || len(p) > len(rest) {
			continue
		}
		if _, ok := e.matcher.MatchExact(ctx, p, rest[:len(p)]); ok {
			return b, len(p), true
		}
	}
	return nil, 0, false
}

func (e *Engine) firstArg(ctx context.Context, st replayState, rest []string) (int, int, bool) {
	for i, arg := range st.active.Arguments() {
		if st.used[i] {
			continue
		}
		p := arg.Pattern()
		if len(p) == 0 || len(p) > len(rest) {
			continue
		}
		if _, ok := e.matcher.MatchExact(ctx, p, rest[:len(p)]); ok {
			return i, len(p), true
		}
	}
	return 0, 0, false
}

// boundary suggests the heads of every child and unused argument of the
// active node, or of every root when nothing is active.
func (e *Engine) boundary(ctx context.Context, st replayState, prefix string, emit func(string) bool) {
	var heads []alias.TokenSpec
	for _, b := range e.scope(st) {
		if h, ok := alias.Head(b); ok {
			heads = append(heads, h)
		}
	}
	if st.active != nil {
		for i, arg := range st.active.Arguments() {
			if st.used[i] {
				continue
			}
			if h, ok := alias.Head(arg); ok {
				heads = append(heads, h)
			}
		}
	}

	for _, h := range heads {
		if !e.expand(ctx, h, prefix, emit) {
			return
		}
	}
}

// midStructure handles leftover words that are a strict prefix of some
// pattern. A partially typed argument is exclusive; partially typed sibling
// commands all contribute.
func (e *Engine) midStructure(ctx context.Context, st replayState, chunk []string, prefix string, emit func(string) bool) {
	if st.active != nil {
		for i, arg := range st.active.Arguments() {
			if st.used[i] {
				continue
			}
			if next, ok := e.nextExpected(ctx, arg.Pattern(), chunk); ok {
				e.expand(ctx, next, prefix, emit)
				return
			}
		}
	}

	for _, b := range e.scope(st) {
		next, ok := e.nextExpected(ctx, b.Pattern(), chunk)
		if !ok {
			continue
		}
		if !e.expand(ctx, next, prefix, emit) {
			return
		}
	}
}

func (e *Engine) nextExpected(ctx context.Context, pattern []alias.TokenSpec, chunk []string) (alias.TokenSpec, bool) {
	if len(chunk) == 0 || len(chunk) >= len(pattern) {
		return alias.TokenSpec{}, false
	}
	if _, ok := e.matcher.MatchExact(ctx, pattern[:len(chunk)], chunk); !ok {
		return alias.TokenSpec{}, false
	}
	return pattern[len(chunk)], true
}

// expand emits the suggestions one token spec contributes. It returns false
// once the consumer stops iterating.
func (e *Engine) expand(ctx context.Context, spec alias.TokenSpec, prefix string, emit func(string) bool) bool {
	switch spec.Kind {
	case alias.TokenLiteral:
		if strings.HasPrefix(spec.Text, prefix) {
			return emit(spec.Text)
		}
	case alias.TokenUserVar:
		// nothing enumerable
	case alias.TokenAppVar:
		for _, rec := range e.matcher.Records(ctx, spec.Source) {
			v, ok := rec[spec.Field]
			if !ok || !strings.HasPrefix(v, prefix) {
				continue
			}
			if !emit(v) {
				return false
			}
		}
	}
	return true
}
