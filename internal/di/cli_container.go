package di

import (
	"flag"
	"strings"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/markov-phish-filter/internal/config"
	"github.com/mikey/markov-phish-filter/internal/core"
	"github.com/mikey/markov-phish-filter/internal/factory"
	"github.com/mikey/markov-phish-filter/internal/logging"
	"github.com/mikey/markov-phish-filter/internal/markov"
)

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// Model flags
	Order         int
	LegitimateDir string
	PhishingDir   string

	// Detection flags
	MaxBodySize int
	Whitelist   string
	History     string

	// Input flags
	InputFile  string
	Stdin      bool
	Demo       bool
	Verbose    bool
	JSONLog    bool
	ConfigFile string
}

// ParseFlags parses command line arguments (without the program name)
func ParseFlags(args []string) (*CLIFlags, error) {
	flags := &CLIFlags{}
	fs := flag.NewFlagSet("phish-detector", flag.ContinueOnError)

	// Model flags
	fs.IntVar(&flags.Order, "order", markov.DefaultOrder, "Markov chain order (context length)")
	fs.StringVar(&flags.LegitimateDir, "legit-dir", "", "Directory of legitimate training emails (built-in samples if empty)")
	fs.StringVar(&flags.PhishingDir, "phish-dir", "", "Directory of phishing training emails (built-in samples if empty)")

	// Detection flags
	fs.IntVar(&flags.MaxBodySize, "max-body-size", 65536, "Maximum email size analyzed, in bytes")
	fs.StringVar(&flags.Whitelist, "whitelist", "", "Comma-separated list of whitelisted domains")
	fs.StringVar(&flags.History, "history", "", "Record detections in a history store (memory, sqlite)")

	// Input flags
	fs.StringVar(&flags.InputFile, "file", "", "Input email file (interactive mode if neither -file nor -stdin is given)")
	fs.BoolVar(&flags.Stdin, "stdin", false, "Read a single email from stdin")
	fs.BoolVar(&flags.Demo, "demo", false, "Analyze the built-in demonstration emails")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	fs.StringVar(&flags.ConfigFile, "config", "", "Path to config file (overrides command line flags)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return flags, nil
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		if flags.ConfigFile != "" {
			cfg, err := config.NewFromFile(flags.ConfigFile)
			if err != nil {
				return nil, err
			}
			cfg.GetViper().Set("server.filter_type", "cli")
			cfg.GetViper().Set("cli.verbose", flags.Verbose)
			logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
			return cfg, nil
		}

		// Create config from command line flags
		return createConfigFromFlags(flags), nil
	}); err != nil {
		return nil, err
	}

	if err := provideShared(container); err != nil {
		return nil, err
	}

	// Register history repository, absent unless requested
	if err := container.Provide(func(f *factory.HistoryFactory) (core.HistoryRepository, error) {
		if !f.IsHistoryEnabled() {
			return nil, nil
		}
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

	return container, nil
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags(flags *CLIFlags) *config.Config {
	v := config.NewEmptyViper()

	// Set some cli specific settings
	v.Set("server.filter_type", "cli")
	v.Set("cli.verbose", flags.Verbose)

	v.Set("markov.order", flags.Order)
	if flags.LegitimateDir != "" || flags.PhishingDir != "" {
		v.Set("corpus.source", "directory")
		v.Set("corpus.legitimate_dir", flags.LegitimateDir)
		v.Set("corpus.phishing_dir", flags.PhishingDir)
	}

	v.Set("detection.max_body_size", flags.MaxBodySize)
	v.Set("detection.whitelisted_domains", splitDomains(flags.Whitelist))

	if flags.History != "" {
		v.Set("history.enabled", true)
		v.Set("history.type", flags.History)
	} else {
		v.Set("history.enabled", false)
	}

	return config.NewFromViper(v)
}

func splitDomains(list string) []string {
	domains := []string{}
	for _, domain := range strings.Split(list, ",") {
		if domain = strings.TrimSpace(domain); domain != "" {
			domains = append(domains, domain)
		}
	}
	return domains
}
