package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// FileStore keeps the whole document in memory and rewrites the JSON file
// after every mutation.
type FileStore struct {
	path    string
	logger  *zap.Logger
	lock    *fileLock
	mu      sync.Mutex
	entries map[string]Entry
	history []string
}

// OpenFile loads the document at path. A missing file is an empty document;
// an unreadable one is logged and treated as empty.
func OpenFile(path string, logger *zap.Logger) (*FileStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &FileStore{
		path:    path,
		logger:  logger,
		lock:    newFileLock(path),
		entries: make(map[string]Entry),
	}

	data, err := s.read()
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	if err := s.decode(data); err != nil {
		logger.Warn("ignoring unreadable cache file", zap.String("path", path), zap.Error(err))
		s.entries = make(map[string]Entry)
		s.history = nil
	}

	return s, nil
}

// read loads the file under the shared lock so a concurrent save is never
// seen half way.
func (s *FileStore) read() ([]byte, error) {
	if _, err := os.Stat(s.path); err != nil {
		return nil, err
	}
	if err := s.lock.RLock(); err != nil {
		return nil, err
	}
	defer func() {
		_ = s.lock.Unlock()
	}()
	return os.ReadFile(s.path)
}

func (s *FileStore) decode(data []byte) error {
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	for key, value := range raw {
		if key == HistoryKey {
			if err := json.Unmarshal(value, &s.history); err != nil {
				return fmt.Errorf("history: %w", err)
			}
			continue
		}

		var entry Entry
		if err := json.Unmarshal(value, &entry); err != nil {
			s.logger.Debug("skipping malformed cache entry", zap.String("name", key), zap.Error(err))
			continue
		}
		s.entries[key] = entry
	}

	return nil
}

func (s *FileStore) Entry(name string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok {
		return Entry{}, false
	}
	return cloneEntry(e), true
}

func (s *FileStore) PutEntry(name string, entry Entry) error {
	if err := checkName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[name] = cloneEntry(entry)
	return s.save()
}

func (s *FileStore) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.history...)
}

func (s *FileStore) SetHistory(lines []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append([]string(nil), lines...)
	return s.save()
}

func (s *FileStore) Close() error {
	return nil
}

// save must be called with s.mu held.
func (s *FileStore) save() error {
	doc := make(map[string]any, len(s.entries)+1)
	for name, e := range s.entries {
		doc[name] = e
	}
	history := s.history
	if history == nil {
		history = []string{}
	}
	doc[HistoryKey] = history

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire cache lock: %w", err)
	}
	defer func() {
		_ = s.lock.Unlock()
	}()

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace cache file: %w", err)
	}

	s.logger.Debug("saved cache", zap.String("path", s.path), zap.Int("entries", len(s.entries)))
	return nil
}
