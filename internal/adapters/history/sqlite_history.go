package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/markov-phish-filter/internal/core"
	"go.uber.org/zap"
)

// SQLiteHistory is a SQLite implementation of the HistoryRepository interface.
// Timestamps are stored as Unix nanoseconds.
type SQLiteHistory struct {
	db          *sql.DB
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
	now         func() time.Time
}

// NewSQLiteHistory opens (and if needed creates) the history database at dbPath
func NewSQLiteHistory(dbPath string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLiteHistory, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// a single connection serialises writers and keeps :memory: databases coherent
	db.SetMaxOpenConns(1)

	// Create table if it doesn't exist
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS detection_history (
			processing_id TEXT PRIMARY KEY,
			sender TEXT,
			subject TEXT,
			verdict TEXT NOT NULL,
			confidence REAL,
			legitimate_score REAL,
			phishing_score REAL,
			features TEXT,
			analyzed_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	// Create indexes for cleanup and recency queries
	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS idx_history_expires_at ON detection_history(expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_history_analyzed_at ON detection_history(analyzed_at)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create index: %w", err)
		}
	}

	h := &SQLiteHistory{
		db:          db,
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
		now:         time.Now,
	}

	// Start background cleanup
	if cleanupFreq > 0 {
		go h.startCleanupTask()
	}

	return h, nil
}

// Record stores a history entry
func (h *SQLiteHistory) Record(ctx context.Context, entry *core.HistoryEntry) error {
	features, err := encodeFeatures(entry.Features)
	if err != nil {
		return err
	}

	_, err = h.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO detection_history (`+historyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ProcessingID, entry.Sender, entry.Subject, string(entry.Verdict), entry.Confidence,
		nullScore(entry.LegitimateScore), nullScore(entry.PhishingScore), features,
		entry.AnalyzedAt.UnixNano(), entry.ExpiresAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}

	return nil
}

// Get retrieves an unexpired entry by processing ID
func (h *SQLiteHistory) Get(ctx context.Context, processingID string) (*core.HistoryEntry, error) {
	row := h.db.QueryRowContext(ctx, `
		SELECT `+historyColumns+`
		FROM detection_history
		WHERE processing_id = ? AND expires_at > ?
	`, processingID, h.now().UnixNano())

	entry, err := scanSQLiteEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	return entry, nil
}

// Recent returns up to limit unexpired entries, newest first
func (h *SQLiteHistory) Recent(ctx context.Context, limit int) ([]*core.HistoryEntry, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT `+historyColumns+`
		FROM detection_history
		WHERE expires_at > ?
		ORDER BY analyzed_at DESC
		LIMIT ?
	`, h.now().UnixNano(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []*core.HistoryEntry
	for rows.Next() {
		entry, err := scanSQLiteEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}

	return entries, nil
}

// Cleanup removes expired entries
func (h *SQLiteHistory) Cleanup(ctx context.Context) error {
	result, err := h.db.ExecContext(ctx, `
		DELETE FROM detection_history
		WHERE expires_at <= ?
	`, h.now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to clean up expired entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		h.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		h.logger.Debug("Cleaned up expired history entries", zap.Int64("expired_count", rowsAffected))
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteEntry(row rowScanner) (*core.HistoryEntry, error) {
	var (
		entry                  core.HistoryEntry
		verdict, features      string
		legitScore, phishScore sql.NullFloat64
		analyzedAt, expiresAt  int64
	)

	if err := row.Scan(&entry.ProcessingID, &entry.Sender, &entry.Subject, &verdict, &entry.Confidence,
		&legitScore, &phishScore, &features, &analyzedAt, &expiresAt); err != nil {
		return nil, err
	}

	decoded, err := decodeFeatures(features)
	if err != nil {
		return nil, err
	}

	entry.Verdict = core.Verdict(verdict)
	entry.LegitimateScore = scoreFromNull(legitScore)
	entry.PhishingScore = scoreFromNull(phishScore)
	entry.Features = decoded
	entry.AnalyzedAt = time.Unix(0, analyzedAt)
	entry.ExpiresAt = time.Unix(0, expiresAt)

	return &entry, nil
}

// startCleanupTask starts a background task to clean up expired entries
func (h *SQLiteHistory) startCleanupTask() {
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

// Stop stops the background cleanup task and closes the database connection
func (h *SQLiteHistory) Stop() {
	close(h.stopCh)
	if err := h.db.Close(); err != nil {
		h.logger.Error("Failed to close SQLite database", zap.Error(err))
	}
}
