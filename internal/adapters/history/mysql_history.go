package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/mikey/markov-phish-filter/internal/core"
	"go.uber.org/zap"
)

// MySQLHistory is a MySQL implementation of the HistoryRepository interface
type MySQLHistory struct {
	db          *sql.DB
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
	now         func() time.Time
}

// NewMySQLHistory creates a new MySQL history store
func NewMySQLHistory(dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*MySQLHistory, error) {
	dsn, err := prepareMySQLDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	// Create table if it doesn't exist
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS detection_history (
			processing_id CHAR(36) PRIMARY KEY,
			sender VARCHAR(320),
			subject TEXT,
			verdict VARCHAR(16) NOT NULL,
			confidence DOUBLE,
			legitimate_score DOUBLE NULL,
			phishing_score DOUBLE NULL,
			features TEXT,
			analyzed_at DATETIME(6) NOT NULL,
			expires_at DATETIME(6) NOT NULL,
			INDEX idx_history_expires_at (expires_at),
			INDEX idx_history_analyzed_at (analyzed_at)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	h := &MySQLHistory{
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

// prepareMySQLDSN forces time parsing in UTC so DATETIME columns scan into time.Time
func prepareMySQLDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid MySQL DSN: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

// Record stores a history entry
func (h *MySQLHistory) Record(ctx context.Context, entry *core.HistoryEntry) error {
	features, err := encodeFeatures(entry.Features)
	if err != nil {
		return err
	}

	_, err = h.db.ExecContext(ctx, `
		INSERT INTO detection_history (`+historyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			verdict = VALUES(verdict),
			confidence = VALUES(confidence),
			legitimate_score = VALUES(legitimate_score),
			phishing_score = VALUES(phishing_score),
			features = VALUES(features),
			analyzed_at = VALUES(analyzed_at),
			expires_at = VALUES(expires_at)
	`, entry.ProcessingID, entry.Sender, entry.Subject, string(entry.Verdict), entry.Confidence,
		nullScore(entry.LegitimateScore), nullScore(entry.PhishingScore), features,
		entry.AnalyzedAt.UTC(), entry.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}

	return nil
}

// Get retrieves an unexpired entry by processing ID
func (h *MySQLHistory) Get(ctx context.Context, processingID string) (*core.HistoryEntry, error) {
	row := h.db.QueryRowContext(ctx, `
		SELECT `+historyColumns+`
		FROM detection_history
		WHERE processing_id = ? AND expires_at > ?
	`, processingID, h.now().UTC())

	entry, err := scanMySQLEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	return entry, nil
}

// Recent returns up to limit unexpired entries, newest first
func (h *MySQLHistory) Recent(ctx context.Context, limit int) ([]*core.HistoryEntry, error) {
	query := `
		SELECT ` + historyColumns + `
		FROM detection_history
		WHERE expires_at > ?
		ORDER BY analyzed_at DESC`
	args := []any{h.now().UTC()}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []*core.HistoryEntry
	for rows.Next() {
		entry, err := scanMySQLEntry(rows)
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
func (h *MySQLHistory) Cleanup(ctx context.Context) error {
	result, err := h.db.ExecContext(ctx, `
		DELETE FROM detection_history
		WHERE expires_at <= ?
	`, h.now().UTC())
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

func scanMySQLEntry(row rowScanner) (*core.HistoryEntry, error) {
	var (
		entry                  core.HistoryEntry
		verdict, features      string
		legitScore, phishScore sql.NullFloat64
	)

	if err := row.Scan(&entry.ProcessingID, &entry.Sender, &entry.Subject, &verdict, &entry.Confidence,
		&legitScore, &phishScore, &features, &entry.AnalyzedAt, &entry.ExpiresAt); err != nil {
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

	return &entry, nil
}

// startCleanupTask starts a background task to clean up expired entries
func (h *MySQLHistory) startCleanupTask() {
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
func (h *MySQLHistory) Stop() {
	close(h.stopCh)
	if err := h.db.Close(); err != nil {
		h.logger.Error("Failed to close MySQL database", zap.Error(err))
	}
}
