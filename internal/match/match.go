// Package match resolves typed tokens against the alias tree.
package match

import (
	"context"

	"github.com/robottwo/dya/internal/alias"
	"github.com/robottwo/dya/internal/datasource"
)

// Sources yields the records of a data source by name.
type Sources interface {
	ResolveOne(ctx context.Context, name string) []datasource.Record
}

// Binding is what a variable captured: the raw token for a user variable or
// the whole matched record for an app variable.
type Binding struct {
	Raw    string
	Record datasource.Record
}

func (b Binding) IsRecord() bool { return b.Record != nil }

// Bindings maps variable names, and source names for app variables, to what
// they captured.
type Bindings map[string]Binding

func (b Bindings) merge(other Bindings) {
	for k, v := range other {
		b[k] = v
	}
}

// Matcher matches token lists against a tree. It holds no state besides the
// tree and the source resolver.
type Matcher struct {
	tree    *alias.Tree
	sources Sources
}

func New(tree *alias.Tree, sources Sources) *Matcher {
	if tree == nil {
		tree = &alias.Tree{}
	}
	return &Matcher{tree: tree, sources: sources}
}

func (m *Matcher) Tree() *alias.Tree { return m.tree }

// Records resolves a data source through the matcher's resolver.
func (m *Matcher) Records(ctx context.Context, source string) []datasource.Record {
	if m.sources == nil {
		return nil
	}
	return m.sources.ResolveOne(ctx, source)
}

// MatchToken matches one typed token against one token spec. It returns the
// name to bind under ("" for literals) and the binding.
func (m *Matcher) MatchToken(ctx context.Context, spec alias.TokenSpec, token string) (string, Binding, bool) {
	switch spec.Kind {
	case alias.TokenUserVar:
		return spec.Name, Binding{Raw: token}, true
	case alias.TokenAppVar:
		for _, rec := range m.Records(ctx, spec.Source) {
			if v, ok := rec[spec.Field]; ok && v == token {
				return spec.Source, Binding{Record: rec}, true
			}
		}
		return "", Binding{}, false
	default:
		return "", Binding{}, spec.Text == token
	}
}

// MatchExact reports whether tokens match pattern token for token, with no
// special handling of help markers. Lengths must be equal.
func (m *Matcher) MatchExact(ctx context.Context, pattern []alias.TokenSpec, tokens []string) (Bindings, bool) {
	if len(tokens) != len(pattern) {
		return nil, false
	}
	bindings := make(Bindings)
	for i, spec := range pattern {
		name, b, ok := m.MatchToken(ctx, spec, tokens[i])
		if !ok {
			return nil, false
		}
		if name != "" {
			bindings[name] = b
		}
	}
	return bindings, true
}

type patternMatch struct {
	bindings Bindings
	consumed int
	help     bool
}

// matchPattern matches the leading tokens against pattern. A help marker in a
// variable position stops matching successfully with help set.
func (m *Matcher) matchPattern(ctx context.Context, pattern []alias.TokenSpec, tokens []string) (patternMatch, bool) {
	pm := patternMatch{bindings: make(Bindings)}
	for i, spec := range pattern {
		if i >= len(tokens) {
			return patternMatch{}, false
		}
		token := tokens[i]
		if spec.Kind != alias.TokenLiteral && alias.IsHelpMarker(token) {
			pm.consumed = i
			pm.help = true
			return pm, true
		}
		name, b, ok := m.MatchToken(ctx, spec, token)
		if !ok {
			return patternMatch{}, false
		}
		if name != "" {
			pm.bindings[name] = b
		}
	}
	pm.consumed = len(pattern)
	return pm, true
}

type attempt struct {
	chain     []alias.Node
	bindings  Bindings
	help      bool
	remaining []string
}

func (m *Matcher) matchBranch(ctx context.Context, node alias.Branch, tokens []string, strict bool) (attempt, bool) {
	pm, ok := m.matchPattern(ctx, node.Pattern(), tokens)
	if !ok {
		return attempt{}, false
	}
	return m.descend(ctx, node, pm, tokens, strict)
}

// descend continues below a node whose own pattern matched. The first child
// whose pattern matches is final: a strict failure below it fails node too.
func (m *Matcher) descend(ctx context.Context, node alias.Branch, pm patternMatch, tokens []string, strict bool) (attempt, bool) {
	a := attempt{chain: []alias.Node{node}, bindings: pm.bindings}
	if pm.help {
		a.help = true
		return a, true
	}
	rest := tokens[pm.consumed:]

	args := node.Arguments()
	used := make([]bool, len(args))
	for len(rest) > 0 {
		found := false
		for i, arg := range args {
			if used[i] {
				continue
			}
			am, ok := m.matchPattern(ctx, arg.Pattern(), rest)
			if !ok {
				continue
			}
			a.chain = append(a.chain, arg)
			a.bindings.merge(am.bindings)
			if am.help {
				a.help = true
				return a, true
			}
			used[i] = true
			rest = rest[am.consumed:]
			found = true
			break
		}
		if !found {
			break
		}
	}

	if len(rest) == 0 {
		return a, true
	}

	for _, child := range node.Children() {
		cm, ok := m.matchPattern(ctx, child.Pattern(), rest)
		if !ok {
			continue
		}
		sub, ok := m.descend(ctx, child, cm, rest, strict)
		if !ok {
			return attempt{}, false
		}
		a.chain = append(a.chain, sub.chain...)
		a.bindings.merge(sub.bindings)
		a.help = sub.help
		a.remaining = sub.remaining
		return a, true
	}

	if alias.IsHelpMarker(rest[0]) {
		a.help = true
		return a, true
	}
	if strict {
		return attempt{}, false
	}
	a.remaining = rest
	return a, true
}

func (a attempt) result(rejected bool) Result {
	return Result{
		Chain:     a.chain,
		Bindings:  a.bindings,
		Help:      a.help,
		Remaining: a.remaining,
		rejected:  rejected,
	}
}

// Match matches tokens against a single node. Strictness applies when node is
// a strict root Command.
func (m *Matcher) Match(ctx context.Context, node alias.Branch, tokens []string) (Result, bool) {
	strict := false
	if c, ok := node.(*alias.Command); ok {
		strict = c.Strict
	}
	a, ok := m.matchBranch(ctx, node, tokens, strict)
	if !ok {
		return Result{}, false
	}
	return a.result(false), true
}

// FindCommand tries every root in declared order and returns the first match.
// When nothing matches but a strict root would have matched apart from
// trailing tokens, that chain is returned with Rejected set.
func (m *Matcher) FindCommand(ctx context.Context, tokens []string) (Result, bool) {
	for _, root := range m.tree.Commands {
		if a, ok := m.matchBranch(ctx, root, tokens, root.Strict); ok {
			return a.result(false), true
		}
	}

	for _, root := range m.tree.Commands {
		if !root.Strict {
			continue
		}
		if a, ok := m.matchBranch(ctx, root, tokens, false); ok && len(a.remaining) > 0 {
			return a.result(true), true
		}
	}

	return Result{}, false
}
