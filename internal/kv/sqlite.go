package kv

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/example/post-scheduler/internal/internaltypes"
)

type entry struct {
	Namespace string `gorm:"primaryKey"`
	EntryKey  string `gorm:"primaryKey"`
	Value     []byte `gorm:"not null"`
	UpdatedAt time.Time
}

func (entry) TableName() string { return "kv_entries" }

// SQLite is a single-file backend for running the CLI without a server.
type SQLite struct {
	db *gorm.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite %s: %w", internaltypes.ErrStoreUnavailable, path, err)
	}
	if err := gdb.AutoMigrate(&entry{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite %s: %w", path, err)
	}
	return &SQLite{db: gdb}, nil
}

func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLite) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	var e entry
	res := s.db.WithContext(ctx).
		Where("namespace = ? AND entry_key = ?", namespace, key).
		Limit(1).
		Find(&e)
	if res.Error != nil {
		return nil, unavailable("get", namespace, key, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, internaltypes.ErrNotFound
	}
	return e.Value, nil
}

func (s *SQLite) Put(ctx context.Context, namespace, key string, value []byte) error {
	e := entry{Namespace: namespace, EntryKey: key, Value: value, UpdatedAt: time.Now().UTC()}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&e).Error
	if err != nil {
		return unavailable("put", namespace, key, err)
	}
	return nil
}
