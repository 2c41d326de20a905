package match

import (
	"regexp"
	"strings"
	"time"

	"github.com/robottwo/dya/internal/alias"
	"github.com/robottwo/dya/internal/bash"
	"github.com/samber/lo"
)

// Result is a successful match: the matched chain from root to deepest node,
// the captured bindings and any unconsumed tokens.
type Result struct {
	Chain     []alias.Node
	Bindings  Bindings
	Help      bool
	Remaining []string
	rejected  bool
}

// Rejected reports a strict command that matched except for its trailing
// tokens. Rejected results must never be executed.
func (r Result) Rejected() bool { return r.rejected }

// Root is the matched root command, or nil for a result of a non-root match.
func (r Result) Root() *alias.Command {
	if len(r.Chain) == 0 {
		return nil
	}
	c, _ := r.Chain[0].(*alias.Command)
	return c
}

// Timeout is the root command's timeout. Zero means unbounded.
func (r Result) Timeout() time.Duration {
	if root := r.Root(); root != nil {
		return root.Timeout
	}
	return 0
}

// Deepest returns the last branch of the chain, skipping trailing arguments.
func (r Result) Deepest() alias.Branch {
	for i := len(r.Chain) - 1; i >= 0; i-- {
		if b, ok := r.Chain[i].(alias.Branch); ok {
			return b
		}
	}
	return nil
}

var (
	appVarRef  = regexp.MustCompile(`\$\$\{(\w+)\.(\w+)\}`)
	userVarRef = regexp.MustCompile(`\$\{(\w+)\}`)
)

// Shell renders the chain's templates into the final command. App variable
// references are replaced first, then user variables; references without a
// binding are left untouched. For non-strict results the unconsumed tokens
// are appended, shell quoted.
func (r Result) Shell() string {
	templates := lo.FilterMap(r.Chain, func(n alias.Node, _ int) (string, bool) {
		t := strings.TrimSpace(n.Template())
		return t, t != ""
	})
	cmd := strings.Join(templates, " ")

	cmd = appVarRef.ReplaceAllStringFunc(cmd, func(ref string) string {
		m := appVarRef.FindStringSubmatch(ref)
		b, ok := r.Bindings[m[1]]
		if !ok || !b.IsRecord() {
			return ref
		}
		if v, ok := b.Record[m[2]]; ok {
			return v
		}
		return ref
	})

	cmd = userVarRef.ReplaceAllStringFunc(cmd, func(ref string) string {
		m := userVarRef.FindStringSubmatch(ref)
		b, ok := r.Bindings[m[1]]
		if !ok || b.IsRecord() {
			return ref
		}
		return b.Raw
	})

	if len(r.Remaining) > 0 && !r.rejected {
		quoted := lo.Map(r.Remaining, func(tok string, _ int) string { return bash.Quote(tok) })
		if cmd == "" {
			return strings.Join(quoted, " ")
		}
		cmd += " " + strings.Join(quoted, " ")
	}

	return cmd
}
