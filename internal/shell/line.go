package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/robottwo/dya/internal/bash"
	"github.com/robottwo/dya/internal/config"
	"github.com/robottwo/dya/internal/styles"
	"go.uber.org/zap"
)

const (
	Prompt       = "dya > "
	SearchPrompt = "(history) "
	maxMenuItems = 8
)

var ErrInterrupted = errors.New("interrupted")

type Completer interface {
	CompleteLine(ctx context.Context, text string) iter.Seq[string]
}

// HistorySearch returns the history entries matching query, best first.
type HistorySearch func(query string) []string

type appState int

const (
	active appState = iota
	terminated
)

type lineModel struct {
	ctx       context.Context
	completer Completer
	search    HistorySearch
	logger    *zap.Logger

	textInput textinput.Model

	// history is newest first; historyIdx is -1 while editing the draft
	history    []string
	historyIdx int
	draft      string

	suggestions []string
	selected    int
	showMenu    bool
	// searching lists history matches for the whole line instead of completions
	searching bool

	result      string
	appState    appState
	interrupted bool
	eof         bool

	menuStyle      lipgloss.Style
	currentStyle   lipgloss.Style
	scrollbarStyle lipgloss.Style
	thumbStyle     lipgloss.Style
}

func newLineModel(ctx context.Context, completer Completer, history []string, search HistorySearch, global config.Global, logger *zap.Logger) lineModel {
	if logger == nil {
		logger = zap.NewNop()
	}

	textInput := textinput.New()
	textInput.Prompt = Prompt
	textInput.Placeholder = global.PlaceholderText
	textInput.PlaceholderStyle = lipgloss.NewStyle().Foreground(styles.Color(global.PlaceholderColor))
	textInput.Cursor.SetMode(cursor.CursorStatic)
	textInput.Focus()

	return lineModel{
		ctx:       ctx,
		completer: completer,
		search:    search,
		logger:    logger,

		textInput:  textInput,
		history:    history,
		historyIdx: -1,
		selected:   -1,
		appState:   active,

		menuStyle:      styles.Parse(global.Styles[config.StyleCompletion]),
		currentStyle:   styles.Parse(global.Styles[config.StyleCompletionCurrent]),
		scrollbarStyle: styles.Parse(global.Styles[config.StyleScrollbarBG]),
		thumbStyle:     styles.Parse(global.Styles[config.StyleScrollbarButton]),
	}
}

func (m lineModel) Init() tea.Cmd {
	return nil
}

func (m lineModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.textInput.Width = max(1, msg.Width-runewidth.StringWidth(Prompt)-1)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "tab":
			if m.menuOpen() {
				m.applySuggestion()
				return m, nil
			}
			m.refresh()
			if len(m.suggestions) > 0 {
				m.selected = 0
			}
			return m, nil

		case "enter":
			if m.menuOpen() {
				m.applySuggestion()
				return m, nil
			}
			m.result = m.textInput.Value()
			m.appState = terminated
			return m, tea.Quit

		case "up", "ctrl+p":
			if m.menuOpen() {
				m.moveSelection(-1)
			} else {
				m.historyStep(1)
			}
			return m, nil

		case "down", "ctrl+n":
			if m.menuOpen() {
				m.moveSelection(1)
			} else {
				m.historyStep(-1)
			}
			return m, nil

		case "esc":
			m.closeMenu()
			return m, nil

		case "ctrl+r":
			if m.search == nil {
				return m, nil
			}
			m.searching = true
			m.textInput.Prompt = SearchPrompt
			m.refresh()
			return m, nil

		case "ctrl+c":
			m.interrupted = true
			m.appState = terminated
			return m, tea.Quit

		case "ctrl+d":
			if strings.TrimSpace(m.textInput.Value()) == "" {
				m.eof = true
				m.appState = terminated
				return m, tea.Quit
			}
			return m, nil
		}
	}

	before := m.textInput.Value()
	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)

	if key, ok := msg.(tea.KeyMsg); ok {
		if m.textInput.Value() != before || key.Type == tea.KeyBackspace {
			m.refresh()
		}
	}
	return m, cmd
}

func (m lineModel) View() string {
	if m.appState == terminated {
		return ""
	}
	if !m.menuOpen() {
		return m.textInput.View()
	}
	return m.textInput.View() + "\n" + m.menuView()
}

func (m lineModel) menuOpen() bool {
	return m.showMenu && len(m.suggestions) > 0
}

func (m *lineModel) closeMenu() {
	m.showMenu = false
	m.selected = -1
	m.searching = false
	m.textInput.Prompt = Prompt
}

// refresh recomputes the suggestions for the text left of the cursor, or the
// history matches for the whole line while searching.
func (m *lineModel) refresh() {
	if m.searching {
		m.suggestions = m.search(m.textInput.Value())
		m.selected = -1
		m.showMenu = true
		return
	}
	if m.completer == nil {
		return
	}
	m.suggestions = slices.Collect(m.completer.CompleteLine(m.ctx, m.beforeCursor()))
	m.selected = -1
	m.showMenu = true
	m.logger.Debug("completions", zap.String("line", m.textInput.Value()), zap.Int("count", len(m.suggestions)))
}

func (m lineModel) beforeCursor() string {
	runes := []rune(m.textInput.Value())
	return string(runes[:min(m.textInput.Position(), len(runes))])
}

// wordStart is the rune offset where the word under the cursor begins.
func (m lineModel) wordStart() int {
	before := []rune(m.beforeCursor())
	for i := len(before) - 1; i >= 0; i-- {
		if before[i] == ' ' || before[i] == '\t' {
			return i + 1
		}
	}
	return 0
}

// applySuggestion replaces the word under the cursor with the highlighted
// suggestion, or the first one when nothing is highlighted.
func (m *lineModel) applySuggestion() {
	choice := m.suggestions[max(m.selected, 0)]

	if m.searching {
		m.textInput.SetValue(choice)
		m.textInput.CursorEnd()
		m.closeMenu()
		return
	}

	runes := []rune(m.textInput.Value())
	pos := min(m.textInput.Position(), len(runes))
	start := m.wordStart()

	head := string(runes[:start]) + bash.Quote(choice) + " "
	m.textInput.SetValue(head + string(runes[pos:]))
	m.textInput.SetCursor(len([]rune(head)))
	m.closeMenu()
}

func (m *lineModel) moveSelection(delta int) {
	n := len(m.suggestions)
	if m.selected < 0 {
		if delta > 0 {
			m.selected = 0
		} else {
			m.selected = n - 1
		}
		return
	}
	m.selected = ((m.selected+delta)%n + n) % n
}

// historyStep moves towards older entries for positive steps.
func (m *lineModel) historyStep(delta int) {
	next := m.historyIdx + delta
	if next < -1 || next >= len(m.history) {
		return
	}
	if m.historyIdx == -1 {
		m.draft = m.textInput.Value()
	}
	m.historyIdx = next
	if next == -1 {
		m.textInput.SetValue(m.draft)
	} else {
		m.textInput.SetValue(m.history[next])
	}
	m.textInput.CursorEnd()
	m.closeMenu()
}

func (m lineModel) menuView() string {
	total := len(m.suggestions)
	rows := min(total, maxMenuItems)

	first := 0
	if m.selected >= rows {
		first = m.selected - rows + 1
	}

	width := 0
	for _, s := range m.suggestions {
		width = max(width, runewidth.StringWidth(s))
	}

	thumb := -1
	if total > rows {
		thumb = first * (rows - 1) / (total - rows)
	}

	indent := runewidth.StringWidth(m.textInput.Prompt)
	if !m.searching {
		indent += runewidth.StringWidth(string([]rune(m.beforeCursor())[:m.wordStart()]))
	}
	pad := strings.Repeat(" ", indent)

	lines := make([]string, 0, rows)
	for i := 0; i < rows; i++ {
		idx := first + i
		style := m.menuStyle
		if idx == m.selected {
			style = m.currentStyle
		}
		line := pad + style.Render(" "+runewidth.FillRight(m.suggestions[idx], width)+" ")
		if thumb >= 0 {
			bar := m.scrollbarStyle
			if i == thumb {
				bar = m.thumbStyle
			}
			line += bar.Render(" ")
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// readLine runs one bubbletea program to read a line. Ctrl+C yields
// ErrInterrupted, Ctrl+D on an empty line yields io.EOF and Ctrl+R searches
// history.
func readLine(ctx context.Context, out io.Writer, completer Completer, history []string, search HistorySearch, global config.Global, logger *zap.Logger) (string, error) {
	p := tea.NewProgram(
		newLineModel(ctx, completer, history, search, global, logger),
		tea.WithContext(ctx),
	)

	final, err := p.Run()
	if err != nil {
		return "", err
	}

	m, ok := final.(lineModel)
	if !ok {
		return "", fmt.Errorf("unexpected line model %T", final)
	}

	switch {
	case m.interrupted:
		fmt.Fprintln(out, Prompt+m.textInput.Value()+"^C")
		return "", ErrInterrupted
	case m.eof:
		fmt.Fprintln(out, Prompt)
		return "", io.EOF
	}

	fmt.Fprintln(out, Prompt+m.result)
	return m.result, nil
}
