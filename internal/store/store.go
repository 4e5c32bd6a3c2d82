// Package store persists the connector's durable state: read offsets
// of the broker tables and an audit trail of everything published or
// consumed on the bus.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver; matches the _pragma DSN syntax below.
)

// OffsetCheckpoint records how many rows of a broker table have been
// consumed. Source is the table path.
type OffsetCheckpoint struct {
	Source    string `gorm:"primaryKey"`
	Row       int64
	UpdatedAt time.Time
}

// AuditRecord is one bus message, inbound or outbound, as it crossed
// the connector boundary.
type AuditRecord struct {
	ID        string `gorm:"primaryKey;size:36"`
	Kind      string `gorm:"index;size:32"`
	Account   string `gorm:"index;size:64"`
	Channel   string `gorm:"size:128"`
	Payload   datatypes.JSON
	CreatedAt time.Time `gorm:"index"`
}

type Store struct {
	db *gorm.DB
}

func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	return NewFromDB(db)
}

func NewFromDB(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db cannot be nil")
	}
	if err := db.AutoMigrate(&OffsetCheckpoint{}, &AuditRecord{}); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// LoadOffsets returns all persisted checkpoints keyed by source path.
func (s *Store) LoadOffsets(ctx context.Context) (map[string]int64, error) {
	var rows []OffsetCheckpoint
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Source] = r.Row
	}
	return out, nil
}

// SaveOffset upserts the checkpoint for one source table.
func (s *Store) SaveOffset(ctx context.Context, source string, row int64) error {
	cp := OffsetCheckpoint{Source: source, Row: row, UpdatedAt: time.Now().UTC()}
	return s.db.WithContext(ctx).Save(&cp).Error
}

// AppendAudit writes one audit record. Payload must be valid JSON.
func (s *Store) AppendAudit(ctx context.Context, kind, account, channel string, payload []byte) error {
	rec := AuditRecord{
		ID:        uuid.NewString(),
		Kind:      kind,
		Account:   account,
		Channel:   channel,
		Payload:   datatypes.JSON(payload),
		CreatedAt: time.Now().UTC(),
	}
	return s.db.WithContext(ctx).Create(&rec).Error
}

// RecentAudit returns the newest records of a kind, newest first. A
// zero limit defaults to 100.
func (s *Store) RecentAudit(ctx context.Context, kind string, limit int) ([]AuditRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []AuditRecord
	q := s.db.WithContext(ctx).Order("created_at desc").Limit(limit)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
