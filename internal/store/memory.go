package store

import "sync"

// MemoryStore is a Store that forgets everything when the process exits.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
	history []string
}

func NewMemory() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (m *MemoryStore) Entry(name string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[name]
	if !ok {
		return Entry{}, false
	}
	return cloneEntry(e), true
}

func (m *MemoryStore) PutEntry(name string, entry Entry) error {
	if err := checkName(name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[name] = cloneEntry(entry)
	return nil
}

func (m *MemoryStore) History() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.history...)
}

func (m *MemoryStore) SetHistory(lines []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append([]string(nil), lines...)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
