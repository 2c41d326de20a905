// Package store persists data-source cache entries and the interactive history.
package store

import (
	"errors"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// HistoryKey is the reserved document key holding the history list.
const HistoryKey = "_history"

var ErrReservedName = errors.New("name is reserved for history")

// Entry is the cached output of one dynamic data source.
type Entry struct {
	// Timestamp is the unix time, in seconds, the data was fetched.
	Timestamp int64               `json:"timestamp"`
	Data      []map[string]string `json:"data"`
}

// Store is the persisted cache document. Every mutation is saved before the
// call returns.
type Store interface {
	Entry(name string) (Entry, bool)
	PutEntry(name string, entry Entry) error
	History() []string
	SetHistory(lines []string) error
	Close() error
}

// Open picks the backend from the file extension: ".db" and ".sqlite" use
// SQLite, anything else is a JSON document.
func Open(path string, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return OpenSQLite(path, logger)
	default:
		return OpenFile(path, logger)
	}
}

func checkName(name string) error {
	if name == HistoryKey {
		return ErrReservedName
	}
	return nil
}

func cloneEntry(e Entry) Entry {
	data := make([]map[string]string, 0, len(e.Data))
	for _, rec := range e.Data {
		cp := make(map[string]string, len(rec))
		for k, v := range rec {
			cp[k] = v
		}
		data = append(data, cp)
	}
	return Entry{Timestamp: e.Timestamp, Data: data}
}
