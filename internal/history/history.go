package history

import (
	"slices"
	"sync"

	"github.com/robottwo/dya/internal/store"
	"github.com/sahilm/fuzzy"
	"github.com/samber/lo"
)

const (
	DefaultSize = 20
	MaxSize     = 1000
)

// History is the bounded list of accepted interactive lines. It is stored
// oldest first and evicts from the front.
type History struct {
	mu    sync.Mutex
	store store.Store
	limit int
}

func New(st store.Store, limit int) *History {
	if limit <= 0 {
		limit = DefaultSize
	}
	if limit > MaxSize {
		limit = MaxSize
	}
	return &History{store: st, limit: limit}
}

// Add appends line, drops the oldest entries beyond the limit and saves.
func (h *History) Add(line string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	lines := append(h.store.History(), line)
	if len(lines) > h.limit {
		lines = lines[len(lines)-h.limit:]
	}
	return h.store.SetHistory(lines)
}

// Load returns the entries newest first.
func (h *History) Load() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	return lo.Reverse(slices.Clone(h.store.History()))
}

// Search fuzzy-matches query against the entries, best match first. An empty
// query returns Load().
func (h *History) Search(query string) []string {
	entries := h.Load()
	if query == "" {
		return entries
	}

	matches := fuzzy.Find(query, entries)
	return lo.Map(matches, func(m fuzzy.Match, _ int) string { return m.Str })
}

func (h *History) Limit() int {
	return h.limit
}
