package executor

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
	"github.com/robottwo/dya/internal/alias"
	"github.com/robottwo/dya/internal/datasource"
	"github.com/robottwo/dya/internal/match"
	"github.com/robottwo/dya/internal/styles"
)

// PrintHelp describes the matched chain: its path, the help text of the
// deepest node that has one, and what may follow the deepest branch.
func (e *Executor) PrintHelp(res match.Result) {
	w := e.stdout

	fmt.Fprintln(w, styles.HEADER("Command:")+" "+styles.ALIAS(alias.Path(res.Chain)))

	for i := len(res.Chain) - 1; i >= 0; i-- {
		if help := strings.TrimSpace(res.Chain[i].HelpText()); help != "" {
			fmt.Fprintln(w)
			fmt.Fprintln(w, indent.String(wordwrap.String(help, e.width-2), 2))
			break
		}
	}

	branch := res.Deepest()
	if branch == nil {
		return
	}

	if subs := branch.Children(); len(subs) > 0 {
		rows := make([][2]string, 0, len(subs))
		for _, s := range subs {
			rows = append(rows, [2]string{s.Alias, s.Help})
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, styles.HEADER("Subcommands:"))
		e.writeTable(w, rows)
	}

	if args := branch.Arguments(); len(args) > 0 {
		rows := make([][2]string, 0, len(args))
		for _, a := range args {
			rows = append(rows, [2]string{a.Alias, a.Help})
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, styles.HEADER("Arguments:"))
		e.writeTable(w, rows)
	}
}

// PrintGlobalHelp lists the declared data sources and every root command.
func (e *Executor) PrintGlobalHelp(tree *alias.Tree, sources []datasource.SourceInfo) {
	w := e.stdout

	var static, dynamic [][2]string
	for _, s := range sources {
		if !s.Dynamic {
			static = append(static, [2]string{s.Name, pluralRecords(s.Records)})
			continue
		}
		dynamic = append(dynamic, [2]string{s.Name, e.cacheState(s)})
	}

	if len(static) > 0 {
		fmt.Fprintln(w, styles.HEADER("Static dicts:"))
		e.writeTable(w, static)
		fmt.Fprintln(w)
	}
	if len(dynamic) > 0 {
		fmt.Fprintln(w, styles.HEADER("Dynamic dicts:"))
		e.writeTable(w, dynamic)
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, styles.HEADER("Commands:"))
	if tree == nil || len(tree.Commands) == 0 {
		fmt.Fprintln(w, styles.HINT("  no commands configured"))
		return
	}
	rows := make([][2]string, 0, len(tree.Commands))
	for _, c := range tree.Commands {
		rows = append(rows, [2]string{c.Alias, c.Help})
	}
	e.writeTable(w, rows)
	fmt.Fprintln(w)
	fmt.Fprintln(w, styles.HINT("Append -h or --help to a command for details."))
}

func (e *Executor) cacheState(s datasource.SourceInfo) string {
	if s.CachedAt.IsZero() {
		return "not cached"
	}
	state := "cached " + humanize.RelTime(s.CachedAt, e.now(), "ago", "from now")
	if s.Resolved {
		state += ", " + pluralRecords(s.Records)
	}
	return state
}

func pluralRecords(n int) string {
	if n == 1 {
		return "1 record"
	}
	return humanize.Comma(int64(n)) + " records"
}

// writeTable prints two columns. The first is padded to the widest cell, the
// second is wrapped and continuation lines are indented under it.
func (e *Executor) writeTable(w io.Writer, rows [][2]string) {
	width := 0
	for _, r := range rows {
		width = max(width, runewidth.StringWidth(r[0]))
	}

	gutter := strings.Repeat(" ", width+4)
	wrapAt := max(20, e.width-len(gutter))

	for _, r := range rows {
		label := styles.ALIAS(runewidth.FillRight(r[0], width))
		text := strings.Join(strings.Fields(r[1]), " ")
		if text == "" {
			fmt.Fprintln(w, "  "+label)
			continue
		}
		lines := strings.Split(wordwrap.String(text, wrapAt), "\n")
		fmt.Fprintln(w, "  "+label+"  "+lines[0])
		for _, line := range lines[1:] {
			fmt.Fprintln(w, gutter+line)
		}
	}
}
