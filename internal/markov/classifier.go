package markov

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/mikey/markov-phish-filter/internal/core"
	"github.com/mikey/markov-phish-filter/internal/features"
	"go.uber.org/zap"
)

// ErrNotTrained is returned by Detect before any phishing examples were trained
var ErrNotTrained = errors.New("model not trained")

// Classifier compares how well text fits a chain trained on legitimate mail
// against one trained on phishing mail. It is safe for concurrent use:
// training is exclusive, detection runs under a shared lock.
type Classifier struct {
	mu              sync.RWMutex
	order           int
	legitimate      *Chain
	phishing        *Chain
	legitimateCount int
	phishingCount   int
	// detection is gated on phishing training only
	trained bool
	logger  *zap.Logger
}

// NewClassifier creates an untrained classifier
func NewClassifier(order int, logger *zap.Logger) (*Classifier, error) {
	legitimate, err := NewChain(order)
	if err != nil {
		return nil, err
	}
	phishing, err := NewChain(order)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Classifier{
		order:      order,
		legitimate: legitimate,
		phishing:   phishing,
		logger:     logger,
	}, nil
}

// TrainLegitimate feeds legitimate emails into the legitimate chain
func (c *Classifier) TrainLegitimate(emails []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, email := range emails {
		c.legitimate.Train(Normalize(email))
		c.legitimateCount++
	}

	c.logger.Info("Trained on legitimate emails",
		zap.Int("emails", c.legitimateCount),
		zap.Int("contexts", c.legitimate.Contexts()))
}

// TrainPhishing feeds phishing emails into the phishing chain and marks the
// classifier as trained, even if emails is empty
func (c *Classifier) TrainPhishing(emails []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, email := range emails {
		c.phishing.Train(Normalize(email))
		c.phishingCount++
	}
	c.trained = true

	c.logger.Info("Trained on phishing emails",
		zap.Int("emails", c.phishingCount),
		zap.Int("contexts", c.phishing.Contexts()))
}

// Trained reports whether Detect may be called
func (c *Classifier) Trained() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.trained
}

// HasLegitimateData reports whether any legitimate email was trained
func (c *Classifier) HasLegitimateData() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.legitimateCount > 0
}

// Detect classifies a raw email
func (c *Classifier) Detect(text string) (*core.DetectionResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.trained {
		return nil, ErrNotTrained
	}
	if c.legitimateCount == 0 {
		c.logger.Warn("Detecting without legitimate training data")
	}

	tokens := Normalize(text)
	legitScore := Score(tokens, c.legitimate)
	phishingScore := Score(tokens, c.phishing)

	confidence, isPhishing := Decide(legitScore, phishingScore)

	verdict := core.VerdictLegitimate
	if isPhishing {
		verdict = core.VerdictPhishing
	}

	result := &core.DetectionResult{
		Verdict:         verdict,
		IsPhishing:      isPhishing,
		Confidence:      confidence,
		LegitimateScore: legitScore,
		PhishingScore:   phishingScore,
		Features:        features.Describe(features.Extract(text)),
		AnalyzedAt:      time.Now(),
		ModelUsed:       fmt.Sprintf("markov-order-%d", c.order),
	}

	c.logger.Debug("Detected email",
		zap.Int("tokens", len(tokens)),
		zap.String("verdict", string(verdict)),
		zap.Float64("confidence", confidence),
		zap.Int("features", len(result.Features)))

	return result, nil
}

// Decide turns two log-likelihoods into a phishing confidence in percent and
// a verdict. Two -Inf scores yield 50% legitimate; a tie favours legitimate.
func Decide(legitScore, phishingScore float64) (float64, bool) {
	if math.IsInf(legitScore, -1) && math.IsInf(phishingScore, -1) {
		return 50, false
	}

	maxScore := math.Max(legitScore, phishingScore)
	legitExp := math.Exp(legitScore - maxScore)
	phishingExp := math.Exp(phishingScore - maxScore)

	return phishingExp / (legitExp + phishingExp) * 100, phishingScore > legitScore
}

// Statistics returns the training counters
func (c *Classifier) Statistics() core.Statistics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return core.Statistics{
		LegitimateEmails:   c.legitimateCount,
		PhishingEmails:     c.phishingCount,
		LegitimateContexts: c.legitimate.Contexts(),
		PhishingContexts:   c.phishing.Contexts(),
		Order:              c.order,
	}
}
