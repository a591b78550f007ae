package history

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/mikey/markov-phish-filter/internal/core"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when a history entry is not found
	ErrNotFound = errors.New("history entry not found")
)

// MemoryHistory is an in-memory implementation of the HistoryRepository interface
type MemoryHistory struct {
	entries     map[string]*core.HistoryEntry
	mu          sync.RWMutex
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
	now         func() time.Time
}

// NewMemoryHistory creates a new in-memory history store
func NewMemoryHistory(logger *zap.Logger, cleanupFreq time.Duration) *MemoryHistory {
	h := &MemoryHistory{
		entries:     make(map[string]*core.HistoryEntry),
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
		now:         time.Now,
	}

	// Start background cleanup
	if cleanupFreq > 0 {
		go h.startCleanupTask()
	}

	return h
}

// Record stores a history entry
func (h *MemoryHistory) Record(ctx context.Context, entry *core.HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	stored := *entry
	stored.Features = append([]string(nil), entry.Features...)
	h.entries[entry.ProcessingID] = &stored
	return nil
}

// Get retrieves an unexpired entry by processing ID
func (h *MemoryHistory) Get(ctx context.Context, processingID string) (*core.HistoryEntry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	entry, ok := h.entries[processingID]
	if !ok || h.now().After(entry.ExpiresAt) {
		return nil, ErrNotFound
	}

	found := *entry
	return &found, nil
}

// Recent returns up to limit unexpired entries, newest first
func (h *MemoryHistory) Recent(ctx context.Context, limit int) ([]*core.HistoryEntry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := h.now()
	entries := make([]*core.HistoryEntry, 0, len(h.entries))
	for _, entry := range h.entries {
		if now.After(entry.ExpiresAt) {
			continue
		}
		found := *entry
		entries = append(entries, &found)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].AnalyzedAt.After(entries[j].AnalyzedAt)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	return entries, nil
}

// Cleanup removes expired entries
func (h *MemoryHistory) Cleanup(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	expiredCount := 0

	for key, entry := range h.entries {
		if now.After(entry.ExpiresAt) {
			delete(h.entries, key)
			expiredCount++
		}
	}

	h.logger.Debug("Cleaned up expired history entries", zap.Int("expired_count", expiredCount))
	return nil
}

// startCleanupTask starts a background task to clean up expired entries
func (h *MemoryHistory) startCleanupTask() {
	ticker := time.NewTicker(h.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := h.Cleanup(context.Background()); err != nil {
				h.logger.Error("Failed to clean up history", zap.Error(err))
			}
		case <-h.stopCh:
			return
		}
	}
}

// Stop stops the background cleanup task
func (h *MemoryHistory) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
}
