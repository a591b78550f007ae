package history

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/mikey/markov-phish-filter/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"
)

type SQLiteHistorySuite struct {
	suite.Suite
	history *SQLiteHistory
	ctx     context.Context
}

func (s *SQLiteHistorySuite) SetupTest() {
	dbPath := filepath.Join(s.T().TempDir(), "history.db")
	h, err := NewSQLiteHistory(dbPath, zaptest.NewLogger(s.T()), 0)
	s.Require().NoError(err)
	h.now = func() time.Time { return baseTime }
	s.history = h
	s.ctx = context.Background()
}

func (s *SQLiteHistorySuite) TearDownTest() {
	s.history.Stop()
}

func (s *SQLiteHistorySuite) TestRecordAndGet() {
	entry := newEntry("a", baseTime, time.Hour)
	s.Require().NoError(s.history.Record(s.ctx, entry))

	got, err := s.history.Get(s.ctx, "a")
	s.Require().NoError(err)
	s.Equal(entry.Sender, got.Sender)
	s.Equal(entry.Subject, got.Subject)
	s.Equal(core.VerdictPhishing, got.Verdict)
	s.InDelta(87.5, got.Confidence, 1e-9)
	s.InDelta(-42.5, got.LegitimateScore, 1e-9)
	s.InDelta(-40.25, got.PhishingScore, 1e-9)
	s.Equal(entry.Features, got.Features)
	s.True(entry.AnalyzedAt.Equal(got.AnalyzedAt))
	s.True(entry.ExpiresAt.Equal(got.ExpiresAt))
}

func (s *SQLiteHistorySuite) TestGetMissing() {
	_, err := s.history.Get(s.ctx, "missing")
	s.ErrorIs(err, ErrNotFound)
}

func (s *SQLiteHistorySuite) TestRecordReplacesExisting() {
	s.Require().NoError(s.history.Record(s.ctx, newEntry("a", baseTime, time.Hour)))

	updated := newEntry("a", baseTime, time.Hour)
	updated.Verdict = core.VerdictLegitimate
	updated.Features = nil
	s.Require().NoError(s.history.Record(s.ctx, updated))

	got, err := s.history.Get(s.ctx, "a")
	s.Require().NoError(err)
	s.Equal(core.VerdictLegitimate, got.Verdict)
	s.Empty(got.Features)
}

func (s *SQLiteHistorySuite) TestInfiniteScoresRoundTrip() {
	entry := newEntry("short", baseTime, time.Hour)
	entry.LegitimateScore = math.Inf(-1)
	entry.PhishingScore = math.Inf(-1)
	entry.Confidence = 50
	s.Require().NoError(s.history.Record(s.ctx, entry))

	got, err := s.history.Get(s.ctx, "short")
	s.Require().NoError(err)
	s.True(math.IsInf(got.LegitimateScore, -1))
	s.True(math.IsInf(got.PhishingScore, -1))
}

func (s *SQLiteHistorySuite) TestRecentOrderLimitAndExpiry() {
	s.Require().NoError(s.history.Record(s.ctx, newEntry("expired", baseTime.Add(-2*time.Hour), time.Hour)))
	s.Require().NoError(s.history.Record(s.ctx, newEntry("first", baseTime.Add(-time.Minute), time.Hour)))
	s.Require().NoError(s.history.Record(s.ctx, newEntry("second", baseTime, time.Hour)))

	all, err := s.history.Recent(s.ctx, 0)
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal("second", all[0].ProcessingID)
	s.Equal("first", all[1].ProcessingID)

	limited, err := s.history.Recent(s.ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(limited, 1)
	s.Equal("second", limited[0].ProcessingID)
}

func (s *SQLiteHistorySuite) TestCleanup() {
	s.Require().NoError(s.history.Record(s.ctx, newEntry("expired", baseTime.Add(-2*time.Hour), time.Hour)))
	s.Require().NoError(s.history.Record(s.ctx, newEntry("live", baseTime, time.Hour)))

	s.Require().NoError(s.history.Cleanup(s.ctx))

	var count int
	s.Require().NoError(s.history.db.QueryRow(`SELECT COUNT(*) FROM detection_history`).Scan(&count))
	s.Equal(1, count)
}

func TestSQLiteHistorySuite(t *testing.T) {
	suite.Run(t, new(SQLiteHistorySuite))
}

func TestSQLiteHistory_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	h, err := NewSQLiteHistory(dbPath, logger, 0)
	require.NoError(t, err)
	require.NoError(t, h.Record(ctx, newEntry("kept", time.Now(), time.Hour)))
	h.Stop()

	reopened, err := NewSQLiteHistory(dbPath, logger, 0)
	require.NoError(t, err)
	defer reopened.Stop()

	got, err := reopened.Get(ctx, "kept")
	require.NoError(t, err)
	assert.Equal(t, "kept", got.ProcessingID)
}
