package alias

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// TokenKind classifies a single whitespace-delimited alias token.
type TokenKind int

const (
	// TokenLiteral must be typed exactly.
	TokenLiteral TokenKind = iota
	// TokenUserVar (${name}) binds whatever the user typed.
	TokenUserVar
	// TokenAppVar ($${source.field}) must equal the field of some record of a data source.
	TokenAppVar
)

func (k TokenKind) String() string {
	switch k {
	case TokenLiteral:
		return "literal"
	case TokenUserVar:
		return "user-var"
	case TokenAppVar:
		return "app-var"
	default:
		return fmt.Sprintf("TokenKind(%d)", int(k))
	}
}

// TokenSpec is one parsed token of an alias pattern.
type TokenSpec struct {
	Kind TokenKind
	// Text is the token exactly as written in the alias.
	Text string
	// Name is set for user variables.
	Name string
	// Source and Field are set for app variables.
	Source string
	Field  string
}

var (
	userVarToken = regexp.MustCompile(`^\$\{(\w+)\}$`)
	appVarToken  = regexp.MustCompile(`^\$\$\{(\w+)\.(\w+)\}$`)
)

// ParseToken classifies a single alias token. A token is a variable only when
// the whole token is the placeholder; "${a}b" is a literal.
func ParseToken(token string) TokenSpec {
	if m := appVarToken.FindStringSubmatch(token); m != nil {
		return TokenSpec{Kind: TokenAppVar, Text: token, Source: m[1], Field: m[2]}
	}
	if m := userVarToken.FindStringSubmatch(token); m != nil {
		return TokenSpec{Kind: TokenUserVar, Text: token, Name: m[1]}
	}
	return TokenSpec{Kind: TokenLiteral, Text: token}
}

// ParsePattern splits an alias on whitespace and classifies every token.
func ParsePattern(alias string) []TokenSpec {
	fields := strings.Fields(alias)
	pattern := make([]TokenSpec, 0, len(fields))
	for _, f := range fields {
		pattern = append(pattern, ParseToken(f))
	}
	return pattern
}

// VarName is the key a matched token binds under: the variable name for user
// variables, the source name for app variables and "" for literals.
func (t TokenSpec) VarName() string {
	switch t.Kind {
	case TokenUserVar:
		return t.Name
	case TokenAppVar:
		return t.Source
	default:
		return ""
	}
}

// IsHelpMarker reports whether token asks for help instead of a value.
func IsHelpMarker(token string) bool {
	return token == "-h" || token == "--help"
}

// CheckPattern rejects patterns that are empty or bind the same name twice.
func CheckPattern(pattern []TokenSpec) error {
	if len(pattern) == 0 {
		return errors.New("empty alias")
	}
	seen := make(map[string]bool)
	for _, t := range pattern {
		name := t.VarName()
		if name == "" {
			continue
		}
		if seen[name] {
			return fmt.Errorf("variable %q bound more than once in alias", name)
		}
		seen[name] = true
	}
	return nil
}
