package bash

import (
	"errors"
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

var ErrUnbalancedQuotes = errors.New("unbalanced quotes")

// metaChars split words or start comments in sh but are plain text on an
// alias line.
const metaChars = ";&|<>()#"

// SplitWords splits line into words using shell quoting rules, without
// performing any expansion. Only whitespace separates words: "a;b" is one
// word and a leading # is not a comment. Unbalanced quotes are
// ErrUnbalancedQuotes.
func SplitWords(line string) ([]string, error) {
	escaped, err := escapeMeta(line)
	if err != nil {
		return nil, err
	}

	words := []string{}
	err = syntax.NewParser().Words(strings.NewReader(escaped), func(w *syntax.Word) bool {
		words = append(words, wordText(w))
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	return words, nil
}

// escapeMeta backslash-escapes unquoted metaChars.
func escapeMeta(line string) (string, error) {
	var sb strings.Builder
	var quote byte

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote == '\'':
			if c == '\'' {
				quote = 0
			}
		case quote == '"':
			if c == '\\' && i+1 < len(line) {
				sb.WriteByte(c)
				i++
				c = line[i]
			} else if c == '"' {
				quote = 0
			}
		case c == '\\':
			if i+1 < len(line) {
				sb.WriteByte(c)
				i++
				c = line[i]
			}
		case c == '\'' || c == '"':
			quote = c
		case strings.IndexByte(metaChars, c) >= 0:
			sb.WriteByte('\\')
		}
		sb.WriteByte(c)
	}

	if quote != 0 {
		return "", ErrUnbalancedQuotes
	}
	return sb.String(), nil
}

// Quote renders s as a single shell word.
func Quote(s string) string {
	quoted, err := syntax.Quote(s, syntax.LangBash)
	if err != nil {
		return s
	}
	return quoted
}

func wordText(w *syntax.Word) string {
	var sb strings.Builder
	for _, part := range w.Parts {
		writePart(&sb, part, false)
	}
	return sb.String()
}

func writePart(sb *strings.Builder, part syntax.WordPart, inDouble bool) {
	switch p := part.(type) {
	case *syntax.Lit:
		sb.WriteString(unescape(p.Value, inDouble))
	case *syntax.SglQuoted:
		sb.WriteString(p.Value)
	case *syntax.DblQuoted:
		for _, inner := range p.Parts {
			writePart(sb, inner, true)
		}
	default:
		// expansions are kept verbatim
		_ = syntax.NewPrinter().Print(sb, part)
	}
}

func unescape(s string, inDouble bool) string {
	if !strings.Contains(s, `\`) {
		return s
	}

	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			sb.WriteByte(c)
			continue
		}
		next := s[i+1]
		if next == '\n' {
			i++
			continue
		}
		if inDouble && !strings.ContainsRune("$`\"\\", rune(next)) {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte(next)
		i++
	}
	return sb.String()
}
