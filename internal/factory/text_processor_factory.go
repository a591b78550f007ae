package factory

import (
	"github.com/mikey/markov-phish-filter/internal/utils"
	"github.com/mikey/markov-phish-filter/internal/whitelist"
	"go.uber.org/zap"
)

// TextProcessorFactory creates the helpers that prepare emails for detection
type TextProcessorFactory struct {
	logger *zap.Logger
}

// NewTextProcessorFactory creates a new TextProcessorFactory
func NewTextProcessorFactory(logger *zap.Logger) *TextProcessorFactory {
	return &TextProcessorFactory{
		logger: logger,
	}
}

// CreateTextProcessor creates a new TextProcessor
func (f *TextProcessorFactory) CreateTextProcessor() *utils.TextProcessor {
	return utils.NewTextProcessor(f.logger)
}

// CreateWhitelistChecker creates a sender whitelist for the given domains
func (f *TextProcessorFactory) CreateWhitelistChecker(domains []string) *whitelist.Checker {
	if len(domains) > 0 {
		f.logger.Info("Loaded whitelisted domains", zap.Strings("domains", domains))
	}
	return whitelist.NewChecker(domains, f.logger)
}
