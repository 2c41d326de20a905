package shell

import (
	"context"
	"iter"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/robottwo/dya/internal/config"
	"github.com/robottwo/dya/internal/history"
	"github.com/robottwo/dya/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	items []string
	calls []string
}

func (f *fakeCompleter) CompleteLine(_ context.Context, text string) iter.Seq[string] {
	f.calls = append(f.calls, text)
	word := text[strings.LastIndexAny(text, " \t")+1:]
	return func(yield func(string) bool) {
		for _, s := range f.items {
			if strings.HasPrefix(s, word) && !yield(s) {
				return
			}
		}
	}
}

func typed(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func key(k tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: k} }

func send(m lineModel, msgs ...tea.Msg) lineModel {
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(lineModel)
	}
	return m
}

func newTestModel(items []string, history ...string) (lineModel, *fakeCompleter) {
	c := &fakeCompleter{items: items}
	return newLineModel(context.Background(), c, history, nil, config.DefaultGlobal(), nil), c
}

func TestTypingOpensMenu(t *testing.T) {
	m, c := newTestModel([]string{"simple", "strict", "deploy"})

	m = send(m, typed("s"))

	assert.Equal(t, "s", m.textInput.Value())
	assert.True(t, m.menuOpen())
	assert.Equal(t, []string{"simple", "strict"}, m.suggestions)
	assert.Equal(t, -1, m.selected)
	assert.Equal(t, []string{"s"}, c.calls)
}

func TestApplySuggestion(t *testing.T) {
	tests := []struct {
		name   string
		keys   []tea.Msg
		expect string
	}{
		{name: "tab applies first", keys: []tea.Msg{typed("s"), key(tea.KeyTab)}, expect: "simple "},
		{name: "enter applies first", keys: []tea.Msg{typed("s"), key(tea.KeyEnter)}, expect: "simple "},
		{name: "down then enter applies highlighted", keys: []tea.Msg{typed("s"), key(tea.KeyDown), key(tea.KeyDown), key(tea.KeyEnter)}, expect: "strict "},
		{name: "up wraps to last", keys: []tea.Msg{typed("s"), key(tea.KeyUp), key(tea.KeyTab)}, expect: "strict "},
		{name: "replaces only the current word", keys: []tea.Msg{typed("deploy s"), key(tea.KeyTab)}, expect: "deploy simple "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestModel([]string{"simple", "strict", "deploy"})
			m = send(m, tt.keys...)

			assert.Equal(t, tt.expect, m.textInput.Value())
			assert.False(t, m.menuOpen())
			assert.Equal(t, active, m.appState)
		})
	}
}

func TestApplySuggestionQuotes(t *testing.T) {
	m, _ := newTestModel([]string{"two words"})
	m = send(m, typed("t"), key(tea.KeyTab))
	assert.Equal(t, "'two words' ", m.textInput.Value())
}

func TestEnterSubmitsWhenMenuClosed(t *testing.T) {
	m, _ := newTestModel([]string{"simple"})

	m = send(m, typed("simple extra"))
	require.False(t, m.menuOpen(), "no suggestion matches the last word")

	next, cmd := m.Update(key(tea.KeyEnter))
	m = next.(lineModel)
	assert.NotNil(t, cmd)
	assert.Equal(t, terminated, m.appState)
	assert.Equal(t, "simple extra", m.result)
	assert.Empty(t, m.View())
}

func TestEscClosesMenuAndTabReopens(t *testing.T) {
	m, _ := newTestModel([]string{"simple", "strict"})

	m = send(m, typed("s"), key(tea.KeyEsc))
	assert.False(t, m.menuOpen())

	m = send(m, key(tea.KeyTab))
	assert.True(t, m.menuOpen())
	assert.Equal(t, 0, m.selected)

	m = send(m, key(tea.KeyTab))
	assert.Equal(t, "simple ", m.textInput.Value())
}

func TestBackspaceRecomputes(t *testing.T) {
	m, c := newTestModel([]string{"simple", "strict"})

	m = send(m, typed("sx"))
	assert.False(t, m.menuOpen())

	m = send(m, key(tea.KeyBackspace))
	assert.Equal(t, "s", m.textInput.Value())
	assert.True(t, m.menuOpen())
	assert.Equal(t, "s", c.calls[len(c.calls)-1])

	// backspace on an empty line still re-evaluates
	m = send(m, key(tea.KeyBackspace), key(tea.KeyBackspace))
	assert.Equal(t, "", c.calls[len(c.calls)-1])
	assert.True(t, m.menuOpen())
}

func TestHistoryNavigation(t *testing.T) {
	m, _ := newTestModel(nil, "newest", "older")

	m = send(m, typed("draft"))
	m = send(m, key(tea.KeyUp))
	assert.Equal(t, "newest", m.textInput.Value())

	m = send(m, key(tea.KeyUp))
	assert.Equal(t, "older", m.textInput.Value())

	m = send(m, key(tea.KeyUp))
	assert.Equal(t, "older", m.textInput.Value(), "stops at the oldest entry")

	m = send(m, key(tea.KeyDown), key(tea.KeyDown))
	assert.Equal(t, "draft", m.textInput.Value())

	m = send(m, key(tea.KeyDown))
	assert.Equal(t, "draft", m.textInput.Value())
}

func TestCtrlKeys(t *testing.T) {
	t.Run("ctrl+c interrupts", func(t *testing.T) {
		m, _ := newTestModel(nil)
		m = send(m, typed("half typed"), key(tea.KeyCtrlC))
		assert.True(t, m.interrupted)
		assert.Equal(t, terminated, m.appState)
	})

	t.Run("ctrl+d on empty line ends input", func(t *testing.T) {
		m, _ := newTestModel(nil)
		m = send(m, key(tea.KeyCtrlD))
		assert.True(t, m.eof)
	})

	t.Run("ctrl+d with text is ignored", func(t *testing.T) {
		m, _ := newTestModel(nil)
		m = send(m, typed("x"), key(tea.KeyCtrlD))
		assert.False(t, m.eof)
		assert.Equal(t, active, m.appState)
	})
}

func TestMenuView(t *testing.T) {
	items := []string{"a1", "a2", "a3", "a4", "a5", "a6", "a7", "a8", "a9", "a10"}
	m, _ := newTestModel(items)

	m = send(m, typed("a"))
	view := m.View()
	lines := strings.Split(view, "\n")
	require.Len(t, lines, 1+maxMenuItems)
	assert.Contains(t, view, "a1")
	assert.NotContains(t, view, "a9")

	// moving past the window scrolls it
	for range 9 {
		m = send(m, key(tea.KeyDown))
	}
	assert.Equal(t, 8, m.selected)
	assert.Contains(t, m.View(), "a9")
	assert.NotContains(t, m.View(), "a1 ")
}

func TestHistorySearch(t *testing.T) {
	h := history.New(store.NewMemory(), history.DefaultSize)
	for _, line := range []string{"deploy prod", "ssh node-1", "deploy staging"} {
		require.NoError(t, h.Add(line))
	}
	newModel := func() lineModel {
		c := &fakeCompleter{items: []string{"deploy"}}
		return newLineModel(context.Background(), c, h.Load(), h.Search, config.DefaultGlobal(), nil)
	}

	t.Run("ctrl+r lists matches for the line", func(t *testing.T) {
		m := send(newModel(), typed("dep"), key(tea.KeyCtrlR))
		assert.True(t, m.searching)
		assert.True(t, m.menuOpen())
		assert.Equal(t, []string{"deploy prod", "deploy staging"}, m.suggestions, "shorter lines score higher")
		assert.Equal(t, SearchPrompt, m.textInput.Prompt)
		assert.Contains(t, m.View(), "deploy staging")
	})

	t.Run("typing narrows the matches", func(t *testing.T) {
		m := send(newModel(), key(tea.KeyCtrlR))
		assert.Len(t, m.suggestions, 3)

		m = send(m, typed("stg"))
		assert.Equal(t, []string{"deploy staging"}, m.suggestions)
	})

	t.Run("enter replaces the whole line", func(t *testing.T) {
		m := send(newModel(), typed("ssh"), key(tea.KeyCtrlR), key(tea.KeyEnter))
		assert.Equal(t, "ssh node-1", m.textInput.Value())
		assert.False(t, m.searching)
		assert.Equal(t, Prompt, m.textInput.Prompt)
		assert.Equal(t, active, m.appState)
	})

	t.Run("esc leaves search", func(t *testing.T) {
		m := send(newModel(), key(tea.KeyCtrlR), key(tea.KeyEsc))
		assert.False(t, m.searching)
		assert.False(t, m.menuOpen())

		m = send(m, typed("d"))
		assert.Equal(t, []string{"deploy"}, m.suggestions)
	})

	t.Run("no search without history", func(t *testing.T) {
		m, _ := newTestModel(nil)
		m = send(m, key(tea.KeyCtrlR))
		assert.False(t, m.searching)
	})
}
