package factory

import (
	"fmt"
	"os"

	"github.com/mikey/markov-phish-filter/internal/adapters/filter"
	"github.com/mikey/markov-phish-filter/internal/config"
	"github.com/mikey/markov-phish-filter/internal/core"
	"github.com/mikey/markov-phish-filter/internal/ports"
	"go.uber.org/zap"
)

// FilterFactory creates email filters based on configuration
type FilterFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	service *core.PhishingFilterService
}

// NewFilterFactory creates a new filter factory
func NewFilterFactory(cfg *config.Config, logger *zap.Logger, service *core.PhishingFilterService) *FilterFactory {
	return &FilterFactory{
		cfg:     cfg,
		logger:  logger,
		service: service,
	}
}

// CreateEmailFilter creates an email filter based on the configuration
func (f *FilterFactory) CreateEmailFilter() (ports.EmailFilter, error) {
	serverConfig := f.cfg.GetServer()

	switch serverConfig.FilterType {
	case "postfix":
		return filter.NewPostfixFilter(f.service, f.logger, serverConfig), nil
	case "cli":
		return filter.NewCliFilter(f.service, f.logger, os.Stdout, f.cfg.GetBool("cli.verbose")), nil
	default:
		return nil, fmt.Errorf("unsupported filter type: %s", serverConfig.FilterType)
	}
}

// CreateInteractiveFilter creates an interactive session on the process terminal
func (f *FilterFactory) CreateInteractiveFilter() *filter.InteractiveFilter {
	return filter.NewInteractiveFilter(f.service, os.Stdin, os.Stdout, f.logger)
}
