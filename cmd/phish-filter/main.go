package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikey/markov-phish-filter/internal/core"
	"github.com/mikey/markov-phish-filter/internal/di"
	"github.com/mikey/markov-phish-filter/internal/ports"
	"go.uber.org/zap"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	emailFilter ports.EmailFilter,
	service *core.PhishingFilterService,
	historyRepo core.HistoryRepository,
) error {
	defer logger.Sync()

	stats := service.Statistics()
	logger.Info("Model trained",
		zap.Int("order", stats.Order),
		zap.Int("legitimate_emails", stats.LegitimateEmails),
		zap.Int("phishing_emails", stats.PhishingEmails),
		zap.Int("legitimate_contexts", stats.LegitimateContexts),
		zap.Int("phishing_contexts", stats.PhishingContexts))

	// Start the filter
	if err := emailFilter.Start(); err != nil {
		logger.Fatal("Failed to start filter", zap.Error(err))
		return err
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	// Stop the filter
	if err := emailFilter.Stop(); err != nil {
		logger.Error("Failed to stop filter", zap.Error(err))
	}

	// Stop the history store if needed
	if stopper, ok := historyRepo.(interface{ Stop() }); ok {
		stopper.Stop()
	}

	logger.Info("Shutdown complete")
	return nil
}
