package factory

import (
	"context"
	"fmt"

	"github.com/mikey/markov-phish-filter/internal/config"
	"github.com/mikey/markov-phish-filter/internal/corpus"
	"github.com/mikey/markov-phish-filter/internal/markov"
	"go.uber.org/zap"
)

// ClassifierFactory creates trained classifiers based on configuration
type ClassifierFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewClassifierFactory creates a new classifier factory
func NewClassifierFactory(cfg *config.Config, logger *zap.Logger) *ClassifierFactory {
	return &ClassifierFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateCorpusSource creates the configured training corpus source
func (f *ClassifierFactory) CreateCorpusSource() (corpus.Source, error) {
	corpusConfig := f.cfg.GetCorpus()

	switch corpusConfig.Source {
	case "builtin":
		return corpus.NewBuiltinSource(), nil
	case "directory":
		return corpus.NewDirectorySource(corpusConfig.LegitimateDir, corpusConfig.PhishingDir, f.logger), nil
	default:
		return nil, fmt.Errorf("unsupported corpus source: %s", corpusConfig.Source)
	}
}

// CreateClassifier loads the corpus and trains a new classifier on it,
// legitimate emails first
func (f *ClassifierFactory) CreateClassifier(ctx context.Context) (*markov.Classifier, error) {
	order := f.cfg.GetMarkov().Order

	classifier, err := markov.NewClassifier(order, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier: %w", err)
	}

	source, err := f.CreateCorpusSource()
	if err != nil {
		return nil, err
	}
	c, err := source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load corpus: %w", err)
	}

	if len(c.Legitimate) == 0 {
		f.logger.Warn("Corpus has no legitimate emails, every score will favour phishing")
	}
	if len(c.Phishing) == 0 {
		f.logger.Warn("Corpus has no phishing emails")
	}

	classifier.TrainLegitimate(c.Legitimate)
	classifier.TrainPhishing(c.Phishing)

	f.logger.Info("Classifier ready",
		zap.Int("order", order),
		zap.Int("legitimate_emails", len(c.Legitimate)),
		zap.Int("phishing_emails", len(c.Phishing)))

	return classifier, nil
}
