package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// CacheRow is one data source's cached records.
type CacheRow struct {
	Name      string `gorm:"primarykey"`
	Timestamp int64
	// Data holds the records as a JSON array.
	Data      string
	UpdatedAt time.Time
}

func (CacheRow) TableName() string { return "cache_entries" }

// HistoryRow is one accepted interactive line. Rows are ordered by ID, oldest first.
type HistoryRow struct {
	ID   uint `gorm:"primarykey"`
	Line string
}

func (HistoryRow) TableName() string { return "history_lines" }

// SQLiteStore keeps the cache document in a SQLite database.
type SQLiteStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

func OpenSQLite(dbFilePath string, log *zap.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = zap.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(dbFilePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	// busy_timeout lets a second dya process wait for the writer instead of failing
	connectionString := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=synchronous(1)&_pragma=temp_store(2)", dbFilePath)

	db, err := gorm.Open(sqlite.Open(connectionString), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	if err := db.AutoMigrate(&CacheRow{}, &HistoryRow{}); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &SQLiteStore{db: db, logger: log}, nil
}

func (s *SQLiteStore) Entry(name string) (Entry, bool) {
	var row CacheRow
	result := s.db.Where("name = ?", name).Limit(1).Find(&row)
	if result.Error != nil {
		s.logger.Warn("failed to read cache entry", zap.String("name", name), zap.Error(result.Error))
		return Entry{}, false
	}
	if result.RowsAffected == 0 {
		return Entry{}, false
	}

	var data []map[string]string
	if err := json.Unmarshal([]byte(row.Data), &data); err != nil {
		s.logger.Warn("malformed cache entry", zap.String("name", name), zap.Error(err))
		return Entry{}, false
	}

	return Entry{Timestamp: row.Timestamp, Data: data}, true
}

func (s *SQLiteStore) PutEntry(name string, entry Entry) error {
	if err := checkName(name); err != nil {
		return err
	}

	data := entry.Data
	if data == nil {
		data = []map[string]string{}
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return err
	}

	row := CacheRow{Name: name, Timestamp: entry.Timestamp, Data: string(encoded)}
	return s.db.Save(&row).Error
}

func (s *SQLiteStore) History() []string {
	var rows []HistoryRow
	if err := s.db.Order("id asc").Find(&rows).Error; err != nil {
		s.logger.Warn("failed to read history", zap.Error(err))
		return nil
	}

	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, r.Line)
	}
	return lines
}

func (s *SQLiteStore) SetHistory(lines []string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM history_lines").Error; err != nil {
			return err
		}
		if len(lines) == 0 {
			return nil
		}
		rows := make([]HistoryRow, 0, len(lines))
		for _, l := range lines {
			rows = append(rows, HistoryRow{Line: l})
		}
		return tx.Create(&rows).Error
	})
}

// Close closes the database connection so the file can be removed, which
// matters on Windows.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
