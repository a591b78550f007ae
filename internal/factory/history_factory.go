package factory

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mikey/markov-phish-filter/internal/adapters/history"
	"github.com/mikey/markov-phish-filter/internal/config"
	"github.com/mikey/markov-phish-filter/internal/core"
	"go.uber.org/zap"
)

// HistoryFactory creates detection history repositories based on configuration
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

// CreateHistoryRepository creates a history repository based on the configuration
func (f *HistoryFactory) CreateHistoryRepository() (core.HistoryRepository, error) {
	historyConfig := f.cfg.GetHistory()
	cleanupFreq, err := f.cfg.GetDuration("history.cleanup_frequency")
	if err != nil {
		return nil, fmt.Errorf("invalid history cleanup frequency: %w", err)
	}

	switch historyConfig.Type {
	case "memory":
		return history.NewMemoryHistory(f.logger, cleanupFreq), nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(historyConfig.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return history.NewSQLiteHistory(historyConfig.SQLitePath, f.logger, cleanupFreq)
	case "mysql":
		return history.NewMySQLHistory(historyConfig.MySQLDSN, f.logger, cleanupFreq)
	default:
		return nil, fmt.Errorf("unsupported history type: %s", historyConfig.Type)
	}
}

// GetRetention returns how long detections are kept
func (f *HistoryFactory) GetRetention() (time.Duration, error) {
	return f.cfg.GetDuration("history.retention")
}

// IsHistoryEnabled returns whether detections are recorded
func (f *HistoryFactory) IsHistoryEnabled() bool {
	return f.cfg.GetHistory().Enabled
}
