package alias

import (
	"strings"
	"sync"
	"time"
)

// Node is anything that can be matched against typed tokens: a root Command,
// a SubCommand or an Arg. The set is closed; use a type switch to tell them apart.
type Node interface {
	Pattern() []TokenSpec
	Template() string
	HelpText() string
	isNode()
}

// Branch is a Node that can carry children and optional arguments.
type Branch interface {
	Node
	Children() []*SubCommand
	Arguments() []*Arg
}

// Command is a root alias.
type Command struct {
	Name  string
	Alias string
	Shell string
	Help  string
	Subs  []*SubCommand
	Args  []*Arg
	// Timeout bounds the rendered shell command. Zero means no limit.
	Timeout time.Duration
	// Strict rejects leftover tokens anywhere in the chain below this command.
	Strict bool

	pattern parsedPattern
}

func (c *Command) Pattern() []TokenSpec    { return c.pattern.get(c.Alias) }
func (c *Command) Template() string        { return c.Shell }
func (c *Command) HelpText() string        { return c.Help }
func (c *Command) Children() []*SubCommand { return c.Subs }
func (c *Command) Arguments() []*Arg       { return c.Args }
func (c *Command) isNode()                 {}

// SubCommand is a nested alias whose template is appended to its parent's.
type SubCommand struct {
	Alias string
	Shell string
	Help  string
	Subs  []*SubCommand
	Args  []*Arg

	pattern parsedPattern
}

func (s *SubCommand) Pattern() []TokenSpec    { return s.pattern.get(s.Alias) }
func (s *SubCommand) Template() string        { return s.Shell }
func (s *SubCommand) HelpText() string        { return s.Help }
func (s *SubCommand) Children() []*SubCommand { return s.Subs }
func (s *SubCommand) Arguments() []*Arg       { return s.Args }
func (s *SubCommand) isNode()                 {}

// Arg is an optional flag-like pattern that may appear at most once, in any
// order, after its owner's pattern.
type Arg struct {
	Alias string
	Shell string
	Help  string

	pattern parsedPattern
}

func (a *Arg) Pattern() []TokenSpec { return a.pattern.get(a.Alias) }
func (a *Arg) Template() string     { return a.Shell }
func (a *Arg) HelpText() string     { return a.Help }
func (a *Arg) isNode()              {}

// parsedPattern parses an alias on first use. Nodes are never edited after
// loading, so the result is shared by every caller and must not be modified.
type parsedPattern struct {
	once   sync.Once
	tokens []TokenSpec
}

func (p *parsedPattern) get(alias string) []TokenSpec {
	p.once.Do(func() {
		p.tokens = ParsePattern(alias)
	})
	return p.tokens
}

// Tree is the immutable set of root commands, in declared order.
type Tree struct {
	Commands []*Command
}

// Branches returns the roots as branches, in declared order.
func (t *Tree) Branches() []Branch {
	if t == nil {
		return nil
	}
	out := make([]Branch, 0, len(t.Commands))
	for _, c := range t.Commands {
		out = append(out, c)
	}
	return out
}

// Lookup finds a root command by name.
func (t *Tree) Lookup(name string) (*Command, bool) {
	for _, c := range t.Commands {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// ChildBranches returns b's children as branches.
func ChildBranches(b Branch) []Branch {
	subs := b.Children()
	out := make([]Branch, 0, len(subs))
	for _, s := range subs {
		out = append(out, s)
	}
	return out
}

// Walk visits n and everything below it depth first. Returning false from fn
// skips the node's descendants.
func Walk(n Node, fn func(Node) bool) {
	if !fn(n) {
		return
	}
	b, ok := n.(Branch)
	if !ok {
		return
	}
	for _, a := range b.Arguments() {
		Walk(a, fn)
	}
	for _, s := range b.Children() {
		Walk(s, fn)
	}
}

// Head returns the first token of n's alias.
func Head(n Node) (TokenSpec, bool) {
	p := n.Pattern()
	if len(p) == 0 {
		return TokenSpec{}, false
	}
	return p[0], true
}

// Path renders the aliases of a chain the way a user would type it.
func Path(chain []Node) string {
	parts := make([]string, 0, len(chain))
	for _, n := range chain {
		parts = append(parts, strings.Join(strings.Fields(aliasOf(n)), " "))
	}
	return strings.Join(parts, " ")
}

func aliasOf(n Node) string {
	switch v := n.(type) {
	case *Command:
		return v.Alias
	case *SubCommand:
		return v.Alias
	case *Arg:
		return v.Alias
	default:
		return ""
	}
}
