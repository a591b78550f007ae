package di

import (
	"context"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/markov-phish-filter/internal/config"
	"github.com/mikey/markov-phish-filter/internal/core"
	"github.com/mikey/markov-phish-filter/internal/factory"
	"github.com/mikey/markov-phish-filter/internal/logging"
	"github.com/mikey/markov-phish-filter/internal/markov"
	"github.com/mikey/markov-phish-filter/internal/ports"
	"github.com/mikey/markov-phish-filter/internal/utils"
	"github.com/mikey/markov-phish-filter/internal/whitelist"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := provideShared(container); err != nil {
		return nil, err
	}

	// Register history repository
	if err := container.Provide(func(f *factory.HistoryFactory) (core.HistoryRepository, error) {
		return f.CreateHistoryRepository()
	}); err != nil {
		return nil, err
	}

	// Register service settings
	if err := container.Provide(func(cfg *config.Config, f *factory.HistoryFactory) (core.ServiceConfig, error) {
		retention, err := f.GetRetention()
		if err != nil {
			return core.ServiceConfig{}, err
		}
		return core.ServiceConfig{
			HistoryEnabled: f.IsHistoryEnabled(),
			Retention:      retention,
			MaxBodySize:    cfg.GetDetection().MaxBodySize,
		}, nil
	}); err != nil {
		return nil, err
	}

	// Register phishing filter service
	if err := container.Provide(newService); err != nil {
		return nil, err
	}

	// Register email filter
	if err := container.Provide(func(f *factory.FilterFactory) (ports.EmailFilter, error) {
		return f.CreateEmailFilter()
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// provideShared registers the factories and the trained classifier used by
// both the daemon and the CLI
func provideShared(container *dig.Container) error {
	for _, constructor := range []any{
		factory.NewClassifierFactory,
		factory.NewHistoryFactory,
		factory.NewFilterFactory,
		factory.NewTextProcessorFactory,
	} {
		if err := container.Provide(constructor); err != nil {
			return err
		}
	}

	// Register trained classifier
	if err := container.Provide(func(f *factory.ClassifierFactory) (*markov.Classifier, error) {
		return f.CreateClassifier(context.Background())
	}); err != nil {
		return err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return err
	}

	// Register whitelist
	if err := container.Provide(func(f *factory.TextProcessorFactory, cfg *config.Config) *whitelist.Checker {
		return f.CreateWhitelistChecker(cfg.GetDetection().WhitelistedDomains)
	}); err != nil {
		return err
	}

	return nil
}

// newService binds the concrete collaborators to the service ports
func newService(
	classifier *markov.Classifier,
	historyRepo core.HistoryRepository,
	checker *whitelist.Checker,
	textProcessor *utils.TextProcessor,
	logger *zap.Logger,
	cfg core.ServiceConfig,
) *core.PhishingFilterService {
	return core.NewPhishingFilterService(classifier, historyRepo, checker, textProcessor, logger, cfg)
}
