package core

import (
	"context"
)

// Detector classifies raw email text
type Detector interface {
	// Detect scores text against the trained models
	Detect(text string) (*DetectionResult, error)

	// Statistics reports training counters
	Statistics() Statistics
}

// HistoryRepository defines the interface for storing detection results
type HistoryRepository interface {
	// Record stores a history entry
	Record(ctx context.Context, entry *HistoryEntry) error

	// Get retrieves an entry by processing ID
	Get(ctx context.Context, processingID string) (*HistoryEntry, error)

	// Recent returns up to limit unexpired entries, newest first
	Recent(ctx context.Context, limit int) ([]*HistoryEntry, error)

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}
