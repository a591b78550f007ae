package core

import (
	"strings"
	"time"
)

// Verdict is the label assigned to an analysed email
type Verdict string

const (
	VerdictLegitimate Verdict = "LEGITIMATE"
	VerdictPhishing   Verdict = "PHISHING"
)

// Email represents an email message
type Email struct {
	From    string
	To      []string
	Subject string
	Body    string
	Headers map[string][]string
}

// Text returns the content that is scored: the subject followed by the body
func (e *Email) Text() string {
	if e.Subject == "" {
		return e.Body
	}
	var b strings.Builder
	b.WriteString(e.Subject)
	b.WriteString("\n\n")
	b.WriteString(e.Body)
	return b.String()
}

// DetectionResult represents the outcome of phishing detection for one email
type DetectionResult struct {
	Verdict         Verdict
	IsPhishing      bool
	Confidence      float64 // probability of phishing, in percent
	LegitimateScore float64
	PhishingScore   float64
	Features        []string
	AnalyzedAt      time.Time
	ModelUsed       string
	ProcessingID    string
}

// Statistics summarises what a classifier has been trained on
type Statistics struct {
	LegitimateEmails   int
	PhishingEmails     int
	LegitimateContexts int
	PhishingContexts   int
	Order              int
}

// HistoryEntry is a persisted record of a detection
type HistoryEntry struct {
	ProcessingID    string
	Sender          string
	Subject         string
	Verdict         Verdict
	Confidence      float64
	LegitimateScore float64
	PhishingScore   float64
	Features        []string
	AnalyzedAt      time.Time
	ExpiresAt       time.Time
}
