package alias

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToken(t *testing.T) {
	tests := []struct {
		token    string
		expected TokenSpec
	}{
		{"deploy", TokenSpec{Kind: TokenLiteral, Text: "deploy"}},
		{"--flag", TokenSpec{Kind: TokenLiteral, Text: "--flag"}},
		{"${name}", TokenSpec{Kind: TokenUserVar, Text: "${name}", Name: "name"}},
		{"$${env.host}", TokenSpec{Kind: TokenAppVar, Text: "$${env.host}", Source: "env", Field: "host"}},
		{"${a}b", TokenSpec{Kind: TokenLiteral, Text: "${a}b"}},
		{"x$${a.b}", TokenSpec{Kind: TokenLiteral, Text: "x$${a.b}"}},
		{"$${onlysource}", TokenSpec{Kind: TokenLiteral, Text: "$${onlysource}"}},
		{"${with-dash}", TokenSpec{Kind: TokenLiteral, Text: "${with-dash}"}},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseToken(tt.token))
		})
	}
}

func TestParsePattern(t *testing.T) {
	pattern := ParsePattern("  pg   $${db.name}\t${query} ")
	require.Len(t, pattern, 3)
	assert.Equal(t, TokenLiteral, pattern[0].Kind)
	assert.Equal(t, TokenAppVar, pattern[1].Kind)
	assert.Equal(t, "db", pattern[1].VarName())
	assert.Equal(t, TokenUserVar, pattern[2].Kind)
	assert.Equal(t, "query", pattern[2].VarName())
	assert.Equal(t, "", pattern[0].VarName())
}

func TestCheckPattern(t *testing.T) {
	assert.NoError(t, CheckPattern(ParsePattern("run ${a} ${b}")))
	assert.Error(t, CheckPattern(ParsePattern("")))
	assert.Error(t, CheckPattern(ParsePattern("run ${a} ${a}")))
	assert.Error(t, CheckPattern(ParsePattern("$${db.name} $${db.host}")))
}

func TestIsHelpMarker(t *testing.T) {
	assert.True(t, IsHelpMarker("-h"))
	assert.True(t, IsHelpMarker("--help"))
	assert.False(t, IsHelpMarker("-help"))
	assert.False(t, IsHelpMarker("h"))
}

func TestTokenKindString(t *testing.T) {
	assert.Equal(t, "literal", TokenLiteral.String())
	assert.Equal(t, "app-var", TokenAppVar.String())
	assert.Equal(t, "TokenKind(9)", TokenKind(9).String())
}

func TestWalkAndPath(t *testing.T) {
	deep := &SubCommand{Alias: "deep", Shell: "d"}
	arg := &Arg{Alias: "--opt   ${v}", Shell: "-o ${v}"}
	root := &Command{
		Name:  "root",
		Alias: "root ${x}",
		Args:  []*Arg{arg},
		Subs:  []*SubCommand{{Alias: "sub1", Subs: []*SubCommand{deep}}},
	}

	var visited []string
	Walk(root, func(n Node) bool {
		visited = append(visited, aliasOf(n))
		return true
	})
	assert.Equal(t, []string{"root ${x}", "--opt   ${v}", "sub1", "deep"}, visited)

	assert.Equal(t, "root ${x} --opt ${v}", Path([]Node{root, arg}))

	tree := &Tree{Commands: []*Command{root}}
	found, ok := tree.Lookup("root")
	require.True(t, ok)
	assert.Same(t, root, found)
	_, ok = tree.Lookup("missing")
	assert.False(t, ok)
	assert.Len(t, tree.Branches(), 1)
	assert.Len(t, ChildBranches(root), 1)

	head, ok := Head(root)
	require.True(t, ok)
	assert.Equal(t, "root", head.Text)
}

func TestNodePatternParsedOnce(t *testing.T) {
	nodes := []Node{
		&Command{Alias: "deploy ${env}"},
		&SubCommand{Alias: "logs $${pods.name}"},
		&Arg{Alias: "--tail ${n}"},
	}

	for _, n := range nodes {
		first := n.Pattern()
		require.Len(t, first, 2)
		assert.Equal(t, ParsePattern(aliasOf(n)), first)
		assert.Same(t, &first[0], &n.Pattern()[0])
	}
}
