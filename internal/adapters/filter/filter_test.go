package filter

import (
	"context"
	"sync"

	"github.com/mikey/markov-phish-filter/internal/core"
)

// stubAnalyzer records every email it is asked to analyze
type stubAnalyzer struct {
	mu     sync.Mutex
	emails []*core.Email
	result *core.DetectionResult
	err    error
}

func (s *stubAnalyzer) AnalyzeEmail(_ context.Context, email *core.Email) (*core.DetectionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emails = append(s.emails, email)
	if s.err != nil {
		return nil, s.err
	}
	result := *s.result
	return &result, nil
}

func (s *stubAnalyzer) calls() []*core.Email {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*core.Email(nil), s.emails...)
}

func phishingResult() *core.DetectionResult {
	return &core.DetectionResult{
		Verdict:         core.VerdictPhishing,
		IsPhishing:      true,
		Confidence:      97.3,
		LegitimateScore: -120.5,
		PhishingScore:   -80.25,
		Features:        []string{"Urgency keyword: 'urgent'", "Suspicious domain: .tk"},
		ModelUsed:       "markov-order-2",
		ProcessingID:    "11111111-2222-3333-4444-555555555555",
	}
}

func legitimateResult() *core.DetectionResult {
	return &core.DetectionResult{
		Verdict:         core.VerdictLegitimate,
		Confidence:      3.5,
		LegitimateScore: -40,
		PhishingScore:   -75,
		ModelUsed:       "markov-order-2",
	}
}
