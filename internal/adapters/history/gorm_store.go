package history

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Ethanwithtech/Fact-Safe-Elder/internal/core"
)

// GormStore persists verdict records in SQLite through gorm. Writes are
// issued off the response path by the service; a failed write costs a
// log line, never a request.
type GormStore struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewGormStore opens (and migrates) the history database.
func NewGormStore(dbPath string, log *zap.Logger) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if err := db.AutoMigrate(&core.VerdictRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate history schema: %w", err)
	}

	return &GormStore{db: db, log: log}, nil
}

// Record stores one verdict.
func (s *GormStore) Record(ctx context.Context, rec *core.VerdictRecord) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to record verdict: %w", err)
	}
	return nil
}

// Recent returns the most recent records, newest first.
func (s *GormStore) Recent(ctx context.Context, limit, offset int) ([]core.VerdictRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	var records []core.VerdictRecord
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	return records, nil
}
