package styles

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	stdout = termenv.NewOutput(os.Stdout)

	ERROR = func(s string) string {
		return stdout.String(s).
			Foreground(stdout.Color("9")).
			String()
	}
	// RUNNING prefixes the command about to be executed
	RUNNING = func(s string) string {
		return stdout.String(s).
			Foreground(stdout.Color("10")).
			Bold().
			String()
	}
	HEADER = func(s string) string {
		return stdout.String(s).
			Foreground(stdout.Color("11")).
			Bold().
			String()
	}
	// ALIAS styles alias tokens in help output (e.g., "deploy $${envs.name}")
	ALIAS = func(s string) string {
		return stdout.String(s).
			Foreground(stdout.Color("12")).
			String()
	}
	HINT = func(s string) string {
		return stdout.String(s).
			Foreground(stdout.Color("244")).
			String()
	}
)

var namedColors = map[string]string{
	"black":   "0",
	"red":     "1",
	"green":   "2",
	"yellow":  "3",
	"blue":    "4",
	"magenta": "5",
	"cyan":    "6",
	"white":   "7",
	"gray":    "8",
	"grey":    "8",
}

// Color converts "#rrggbb", an ANSI number or a basic color name to a lipgloss color.
func Color(name string) lipgloss.Color {
	name = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), "ansi")
	if c, ok := namedColors[name]; ok {
		return lipgloss.Color(c)
	}
	return lipgloss.Color(name)
}

// Parse reads a style string such as "bg:#008888 #ffffff bold": "bg:" sets the
// background, "fg:" or a bare color sets the foreground, and bold, italic,
// underline and reverse toggle attributes. Unknown words are ignored.
func Parse(spec string) lipgloss.Style {
	style := lipgloss.NewStyle()
	for _, word := range strings.Fields(spec) {
		switch {
		case strings.HasPrefix(word, "bg:"):
			style = style.Background(Color(strings.TrimPrefix(word, "bg:")))
		case strings.HasPrefix(word, "fg:"):
			style = style.Foreground(Color(strings.TrimPrefix(word, "fg:")))
		case word == "bold":
			style = style.Bold(true)
		case word == "italic":
			style = style.Italic(true)
		case word == "underline":
			style = style.Underline(true)
		case word == "reverse":
			style = style.Reverse(true)
		case strings.HasPrefix(word, "#"), isNamedColor(word):
			style = style.Foreground(Color(word))
		}
	}
	return style
}

func isNamedColor(word string) bool {
	_, ok := namedColors[strings.TrimPrefix(strings.ToLower(word), "ansi")]
	return ok
}
