package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Ethanwithtech/Fact-Safe-Elder/internal/adapters/history"
	"github.com/Ethanwithtech/Fact-Safe-Elder/internal/config"
	"github.com/Ethanwithtech/Fact-Safe-Elder/internal/core"
)

// HistoryFactory creates the optional verdict history store
type HistoryFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewHistoryFactory creates a new history factory
func NewHistoryFactory(cfg *config.Config, logger *zap.Logger) *HistoryFactory {
	return &HistoryFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateHistoryStore returns the configured store, or nil when history
// is disabled.
func (f *HistoryFactory) CreateHistoryStore() (core.HistoryStore, error) {
	if !f.cfg.GetBool("history.enabled") {
		return nil, nil
	}

	dbPath := f.cfg.GetString("history.sqlite_path")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	return history.NewGormStore(dbPath, f.logger)
}
