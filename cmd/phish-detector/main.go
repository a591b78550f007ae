package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikey/markov-phish-filter/internal/adapters/filter"
	"github.com/mikey/markov-phish-filter/internal/core"
	"github.com/mikey/markov-phish-filter/internal/corpus"
	"github.com/mikey/markov-phish-filter/internal/di"
	"github.com/mikey/markov-phish-filter/internal/factory"
	"github.com/mikey/markov-phish-filter/internal/utils"
	"go.uber.org/zap"
)

// recentLimit is the number of recorded detections listed at exit
const recentLimit = 10

func main() {
	flags, err := di.ParseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

func run(
	flags *di.CLIFlags,
	logger *zap.Logger,
	service *core.PhishingFilterService,
	filters *factory.FilterFactory,
	historyRepo core.HistoryRepository,
) error {
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if stopper, ok := historyRepo.(interface{ Stop() }); ok {
		defer stopper.Stop()
	}

	filter.WriteStatistics(os.Stdout, service.Statistics())

	emailFilter, err := filters.CreateEmailFilter()
	if err != nil {
		logger.Fatal("Failed to create email filter", zap.Error(err))
	}

	switch {
	case flags.Demo:
		demos, err := corpus.DemoEmails()
		if err != nil {
			logger.Fatal("Failed to load demonstration emails", zap.Error(err))
		}
		for _, text := range demos {
			if _, err := emailFilter.ProcessEmail(ctx, &core.Email{Body: text}); err != nil {
				return err
			}
		}

	case flags.InputFile != "" || flags.Stdin:
		var emailReader io.Reader = os.Stdin
		if flags.InputFile != "" {
			file, err := os.Open(flags.InputFile)
			if err != nil {
				logger.Fatal("Failed to open input file", zap.Error(err), zap.String("file", flags.InputFile))
			}
			defer file.Close()
			emailReader = file
			logger.Info("Reading email from file", zap.String("file", flags.InputFile))
		} else {
			logger.Info("Reading email from stdin")
		}

		email, err := utils.ParseEmail(emailReader)
		if err != nil {
			logger.Fatal("Failed to parse email", zap.Error(err))
		}
		if _, err := emailFilter.ProcessEmail(ctx, email); err != nil {
			return err
		}

	default:
		if err := filters.CreateInteractiveFilter().Run(ctx); err != nil {
			return err
		}
	}

	return printRecent(ctx, service)
}

// printRecent lists the detections recorded during this run, if history is enabled
func printRecent(ctx context.Context, service *core.PhishingFilterService) error {
	entries, err := service.RecentDetections(context.WithoutCancel(ctx), recentLimit)
	if err != nil {
		return fmt.Errorf("failed to list recent detections: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	fmt.Printf("\n=== Recent detections ===\n")
	for _, entry := range entries {
		fmt.Printf("%s  %-10s  %6.1f%%  %s\n",
			entry.AnalyzedAt.Format("15:04:05"), entry.Verdict, entry.Confidence, entry.ProcessingID)
	}
	return nil
}
