package match

import (
	"context"
	"testing"
	"time"

	"github.com/robottwo/dya/internal/alias"
	"github.com/robottwo/dya/internal/datasource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSources map[string][]datasource.Record

func (s staticSources) ResolveOne(_ context.Context, name string) []datasource.Record {
	return s[name]
}

func fixtureSources() staticSources {
	return staticSources{
		"static_envs": {
			{"name": "dev", "url": "dev.internal"},
			{"name": "prod", "url": "prod.internal"},
		},
		"dynamic_nodes": {
			{"name": "node-1", "ip": "10.0.0.1"},
			{"name": "node-2", "ip": "10.0.0.2"},
		},
	}
}

func fixtureTree() *alias.Tree {
	return &alias.Tree{Commands: []*alias.Command{
		{Name: "simple", Alias: "simple", Shell: "echo simple", Help: "Prints simple"},
		{Name: "consume", Alias: "consume $${static_envs.name}", Shell: "curl $${static_envs.url}"},
		{Name: "dyn", Alias: "dyn $${dynamic_nodes.name}", Shell: "ssh $${dynamic_nodes.ip}"},
		{
			Name:  "complex",
			Alias: "complex ${arg1}",
			Shell: "run ${arg1}",
			Args: []*alias.Arg{
				{Alias: "--flag", Shell: "-f"},
				{Alias: "--opt ${val}", Shell: "-o ${val}"},
			},
			Subs: []*alias.SubCommand{
				{Alias: "sub1", Shell: "s1", Subs: []*alias.SubCommand{{Alias: "deep", Shell: "d"}}},
			},
		},
		{Name: "strict", Alias: "strict", Shell: "echo strict", Strict: true, Subs: []*alias.SubCommand{
			{Alias: "child", Shell: "child"},
		}},
		{Name: "timeout", Alias: "timeout", Shell: "sleep 5", Timeout: time.Second},
	}}
}

func newFixtureMatcher() *Matcher {
	return New(fixtureTree(), fixtureSources())
}

func TestFindCommand(t *testing.T) {
	m := newFixtureMatcher()
	ctx := context.Background()

	tests := []struct {
		name      string
		tokens    []string
		found     bool
		help      bool
		rejected  bool
		chainLen  int
		remaining []string
		shell     string
	}{
		{name: "literal", tokens: []string{"simple"}, found: true, chainLen: 1, shell: "echo simple"},
		{name: "help after literal", tokens: []string{"simple", "-h"}, found: true, help: true, chainLen: 1},
		{name: "long help after literal", tokens: []string{"simple", "--help"}, found: true, help: true, chainLen: 1},
		{name: "help at user var", tokens: []string{"complex", "-h"}, found: true, help: true, chainLen: 1},
		{name: "help at app var", tokens: []string{"consume", "-h"}, found: true, help: true, chainLen: 1},
		{name: "help at dynamic app var", tokens: []string{"dyn", "--help"}, found: true, help: true, chainLen: 1},
		{name: "prefix of alias is not a match", tokens: []string{"sim", "-h"}, found: false},
		{name: "app var binds record", tokens: []string{"consume", "prod"}, found: true, chainLen: 1, shell: "curl prod.internal"},
		{name: "app var without record", tokens: []string{"consume", "staging"}, found: false},
		{name: "short input", tokens: []string{"consume"}, found: false},
		{name: "args in any order", tokens: []string{"complex", "v", "--opt", "7", "--flag"}, found: true, chainLen: 3, shell: "run v -o 7 -f"},
		{name: "args then sub", tokens: []string{"complex", "v", "--flag", "sub1", "deep"}, found: true, chainLen: 4, shell: "run v -f s1 d"},
		{name: "help inside arg", tokens: []string{"complex", "v", "--opt", "-h"}, found: true, help: true, chainLen: 2},
		{name: "help after sub", tokens: []string{"complex", "v", "sub1", "-h"}, found: true, help: true, chainLen: 2},
		{name: "repeated arg is leftover", tokens: []string{"complex", "v", "--flag", "--flag"}, found: true, chainLen: 2, remaining: []string{"--flag"}, shell: "run v -f --flag"},
		{name: "non-strict leftovers", tokens: []string{"simple", "extra", "two words"}, found: true, chainLen: 1, remaining: []string{"extra", "two words"}, shell: "echo simple extra 'two words'"},
		{name: "strict exact", tokens: []string{"strict"}, found: true, chainLen: 1, shell: "echo strict"},
		{name: "strict child", tokens: []string{"strict", "child"}, found: true, chainLen: 2, shell: "echo strict child"},
		{name: "strict leftovers rejected", tokens: []string{"strict", "extra"}, found: true, rejected: true, chainLen: 1, remaining: []string{"extra"}},
		{name: "strict inherited by child", tokens: []string{"strict", "child", "extra"}, found: true, rejected: true, chainLen: 2, remaining: []string{"extra"}},
		{name: "strict help", tokens: []string{"strict", "-h"}, found: true, help: true, chainLen: 1},
		{name: "empty input", tokens: []string{}, found: false},
		{name: "unknown", tokens: []string{"nope"}, found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, ok := m.FindCommand(ctx, tt.tokens)
			require.Equal(t, tt.found, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.help, res.Help)
			assert.Equal(t, tt.rejected, res.Rejected())
			assert.Len(t, res.Chain, tt.chainLen)
			assert.Equal(t, tt.remaining, res.Remaining)
			if tt.shell != "" {
				assert.Equal(t, tt.shell, res.Shell())
			}
		})
	}
}

func TestFindCommandBindings(t *testing.T) {
	m := newFixtureMatcher()

	res, ok := m.FindCommand(context.Background(), []string{"dyn", "node-2"})
	require.True(t, ok)
	b, ok := res.Bindings["dynamic_nodes"]
	require.True(t, ok)
	assert.True(t, b.IsRecord())
	assert.Equal(t, "10.0.0.2", b.Record["ip"])
	assert.Equal(t, "ssh 10.0.0.2", res.Shell())

	res, ok = m.FindCommand(context.Background(), []string{"complex", "hello", "--opt", "x"})
	require.True(t, ok)
	assert.Equal(t, Binding{Raw: "hello"}, res.Bindings["arg1"])
	assert.Equal(t, Binding{Raw: "x"}, res.Bindings["val"])
}

func TestFirstMatchingRootWins(t *testing.T) {
	tree := &alias.Tree{Commands: []*alias.Command{
		{Name: "any", Alias: "${x}", Shell: "first ${x}"},
		{Name: "literal", Alias: "go", Shell: "second"},
	}}
	res, ok := New(tree, nil).FindCommand(context.Background(), []string{"go"})
	require.True(t, ok)
	assert.Equal(t, "first go", res.Shell())
}

func TestFirstMatchingChildWinsWithoutBacktracking(t *testing.T) {
	tests := []struct {
		name      string
		subs      []*alias.SubCommand
		tokens    []string
		shell     string
		rejected  bool
		remaining []string
	}{
		{
			name:   "first child consumes everything",
			subs:   []*alias.SubCommand{{Alias: "a", Shell: "a-only"}, {Alias: "a b", Shell: "a-b"}},
			tokens: []string{"root", "a"},
			shell:  "r a-only",
		},
		{
			name:      "later sibling is not tried",
			subs:      []*alias.SubCommand{{Alias: "a", Shell: "a-only"}, {Alias: "a b", Shell: "a-b"}},
			tokens:    []string{"root", "a", "b"},
			shell:     "r a-only",
			rejected:  true,
			remaining: []string{"b"},
		},
		{
			name:      "variable child is committed to",
			subs:      []*alias.SubCommand{{Alias: "a ${x}", Shell: "first ${x}"}, {Alias: "a b c", Shell: "second"}},
			tokens:    []string{"root", "a", "b", "c"},
			shell:     "r first b",
			rejected:  true,
			remaining: []string{"c"},
		},
		{
			name:   "non-matching child is skipped",
			subs:   []*alias.SubCommand{{Alias: "x", Shell: "x"}, {Alias: "a b", Shell: "a-b"}},
			tokens: []string{"root", "a", "b"},
			shell:  "r a-b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := &alias.Tree{Commands: []*alias.Command{
				{Name: "root", Alias: "root", Shell: "r", Strict: true, Subs: tt.subs},
			}}
			res, ok := New(tree, nil).FindCommand(context.Background(), tt.tokens)
			require.True(t, ok)
			assert.Equal(t, tt.rejected, res.Rejected())
			assert.Equal(t, tt.remaining, res.Remaining)
			assert.Equal(t, tt.shell, res.Shell())
		})
	}
}

func TestMatchSingleNode(t *testing.T) {
	m := newFixtureMatcher()
	sub := fixtureTree().Commands[3].Subs[0]

	res, ok := m.Match(context.Background(), sub, []string{"sub1", "deep", "more"})
	require.True(t, ok)
	assert.Equal(t, []string{"more"}, res.Remaining)
	assert.Nil(t, res.Root())
	assert.Equal(t, time.Duration(0), res.Timeout())

	_, ok = m.Match(context.Background(), sub, []string{"other"})
	assert.False(t, ok)
}

func TestMatchExact(t *testing.T) {
	m := newFixtureMatcher()
	ctx := context.Background()
	pattern := alias.ParsePattern("consume $${static_envs.name}")

	b, ok := m.MatchExact(ctx, pattern, []string{"consume", "dev"})
	require.True(t, ok)
	assert.Equal(t, "dev.internal", b["static_envs"].Record["url"])

	_, ok = m.MatchExact(ctx, pattern, []string{"consume"})
	assert.False(t, ok)
	_, ok = m.MatchExact(ctx, pattern, []string{"consume", "-h"})
	assert.False(t, ok)
}

func TestMatchTokenFirstRecordWins(t *testing.T) {
	m := New(nil, staticSources{"s": {{"k": "x", "n": "1"}, {"k": "x", "n": "2"}}})
	name, b, ok := m.MatchToken(context.Background(), alias.ParseToken("$${s.k}"), "x")
	require.True(t, ok)
	assert.Equal(t, "s", name)
	assert.Equal(t, "1", b.Record["n"])

	_, _, ok = m.MatchToken(context.Background(), alias.ParseToken("$${s.missing}"), "x")
	assert.False(t, ok)
	_, _, ok = m.MatchToken(context.Background(), alias.ParseToken("$${unknown.k}"), "x")
	assert.False(t, ok)
}

func TestResultTimeoutAndDeepest(t *testing.T) {
	m := newFixtureMatcher()

	res, ok := m.FindCommand(context.Background(), []string{"timeout"})
	require.True(t, ok)
	assert.Equal(t, time.Second, res.Timeout())

	res, ok = m.FindCommand(context.Background(), []string{"complex", "v", "sub1", "--x"})
	require.True(t, ok)
	deepest := res.Deepest()
	require.NotNil(t, deepest)
	assert.Equal(t, "s1", deepest.Template())

	res, ok = m.FindCommand(context.Background(), []string{"complex", "v", "--flag"})
	require.True(t, ok)
	assert.Equal(t, "run ${arg1}", res.Deepest().Template())
}

func TestShellLeavesUnknownPlaceholders(t *testing.T) {
	res := Result{
		Chain: []alias.Node{
			&alias.Command{Alias: "x", Shell: "echo ${missing} $${nosrc.f} $${src.nofield} ${ok}"},
			&alias.Arg{Alias: "--quiet"},
		},
		Bindings: Bindings{
			"ok":  {Raw: "fine"},
			"src": {Record: datasource.Record{"f": "v"}},
		},
	}
	assert.Equal(t, "echo ${missing} $${nosrc.f} $${src.nofield} fine", res.Shell())
}

func TestShellRejectedOmitsRemaining(t *testing.T) {
	res, ok := newFixtureMatcher().FindCommand(context.Background(), []string{"strict", "rm", "-rf"})
	require.True(t, ok)
	require.True(t, res.Rejected())
	assert.Equal(t, "echo strict", res.Shell())
}
