package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrHistoryDisabled is returned when detections are not recorded
var ErrHistoryDisabled = errors.New("detection history is disabled")

// SenderPolicy decides whether a sender bypasses detection
type SenderPolicy interface {
	IsWhitelisted(from string) bool
}

// TextPreparer cleans raw text before it reaches the detector
type TextPreparer interface {
	ProcessText(text string, maxSize int) string
}

// ServiceConfig holds the tunables of PhishingFilterService
type ServiceConfig struct {
	HistoryEnabled bool
	Retention      time.Duration
	MaxBodySize    int
}

// PhishingFilterService is the core service for phishing detection
type PhishingFilterService struct {
	detector Detector
	history  HistoryRepository
	policy   SenderPolicy
	text     TextPreparer
	logger   *zap.Logger
	cfg      ServiceConfig
}

// NewPhishingFilterService creates a new phishing filter service.
// history, policy and text may be nil.
func NewPhishingFilterService(
	detector Detector,
	history HistoryRepository,
	policy SenderPolicy,
	text TextPreparer,
	logger *zap.Logger,
	cfg ServiceConfig,
) *PhishingFilterService {
	return &PhishingFilterService{
		detector: detector,
		history:  history,
		policy:   policy,
		text:     text,
		logger:   logger,
		cfg:      cfg,
	}
}

// AnalyzeEmail checks if an email is phishing
func (s *PhishingFilterService) AnalyzeEmail(ctx context.Context, email *Email) (*DetectionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Check whitelist first
	if s.policy != nil && s.policy.IsWhitelisted(email.From) {
		s.logger.Info("Skipping phishing check for whitelisted domain",
			zap.String("sender", email.From),
			zap.String("action", "whitelist_bypass"))

		return &DetectionResult{
			Verdict:      VerdictLegitimate,
			AnalyzedAt:   time.Now(),
			ModelUsed:    "whitelist",
			ProcessingID: uuid.NewString(),
		}, nil
	}

	text := email.Text()
	if s.text != nil {
		text = s.text.ProcessText(text, s.cfg.MaxBodySize)
	}

	result, err := s.detector.Detect(text)
	if err != nil {
		return nil, fmt.Errorf("failed to detect phishing: %w", err)
	}
	result.ProcessingID = uuid.NewString()

	// Record the detection if enabled
	if s.cfg.HistoryEnabled && s.history != nil {
		entry := &HistoryEntry{
			ProcessingID:    result.ProcessingID,
			Sender:          email.From,
			Subject:         email.Subject,
			Verdict:         result.Verdict,
			Confidence:      result.Confidence,
			LegitimateScore: result.LegitimateScore,
			PhishingScore:   result.PhishingScore,
			Features:        result.Features,
			AnalyzedAt:      result.AnalyzedAt,
			ExpiresAt:       result.AnalyzedAt.Add(s.cfg.Retention),
		}
		if err := s.history.Record(ctx, entry); err != nil {
			s.logger.Error("Failed to record detection", zap.Error(err))
		}
	}

	s.logger.Debug("Analyzed email",
		zap.String("sender", email.From),
		zap.String("processing_id", result.ProcessingID),
		zap.String("verdict", string(result.Verdict)),
		zap.Float64("confidence", result.Confidence))

	return result, nil
}

// RecentDetections returns the latest recorded detections
func (s *PhishingFilterService) RecentDetections(ctx context.Context, limit int) ([]*HistoryEntry, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.Recent(ctx, limit)
}

// Detection returns a recorded detection by processing ID
func (s *PhishingFilterService) Detection(ctx context.Context, processingID string) (*HistoryEntry, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.Get(ctx, processingID)
}

// Statistics returns the detector's training counters
func (s *PhishingFilterService) Statistics() Statistics {
	return s.detector.Statistics()
}

// IsPhishing reports whether a result should be treated as phishing
func (s *PhishingFilterService) IsPhishing(result *DetectionResult) bool {
	return result != nil && result.IsPhishing
}
