package filter

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mikey/markov-phish-filter/internal/core"
	"github.com/mikey/markov-phish-filter/internal/ports"
	"go.uber.org/zap"
)

// previewLength is the number of body characters shown in verbose mode
const previewLength = 500

// CliFilter implements a command-line interface for phishing detection
type CliFilter struct {
	analyzer ports.EmailAnalyzer
	logger   *zap.Logger
	out      io.Writer
	verbose  bool
}

// NewCliFilter creates a new CLI filter writing its report to out
func NewCliFilter(analyzer ports.EmailAnalyzer, logger *zap.Logger, out io.Writer, verbose bool) *CliFilter {
	return &CliFilter{
		analyzer: analyzer,
		logger:   logger,
		out:      out,
		verbose:  verbose,
	}
}

// ProcessEmail processes an email and displays the results
func (f *CliFilter) ProcessEmail(ctx context.Context, email *core.Email) (*core.DetectionResult, error) {
	f.logger.Debug("Processing email", zap.String("sender", email.From))

	fmt.Fprintf(f.out, "\n=== Email Summary ===\n")
	fmt.Fprintf(f.out, "From: %s\n", email.From)
	fmt.Fprintf(f.out, "To: %s\n", strings.Join(email.To, ", "))
	fmt.Fprintf(f.out, "Subject: %s\n", email.Subject)
	fmt.Fprintf(f.out, "Body length: %d bytes\n", len(email.Body))
	if f.verbose {
		fmt.Fprintf(f.out, "\nBody preview:\n%s\n", preview(email.Body, previewLength))
	}

	fmt.Fprintf(f.out, "\n=== Analysis ===\n")
	start := time.Now()
	result, err := f.analyzer.AnalyzeEmail(ctx, email)
	if err != nil {
		f.logger.Error("Failed to analyze email", zap.Error(err))
		fmt.Fprintf(f.out, "Error: %v\n", err)
		return nil, err
	}
	duration := time.Since(start)

	fmt.Fprintf(f.out, "\n=== Results ===\n")
	writeResult(f.out, result)
	fmt.Fprintf(f.out, "\nModel used: %s\n", result.ModelUsed)
	if result.ProcessingID != "" {
		fmt.Fprintf(f.out, "Processing ID: %s\n", result.ProcessingID)
	}
	fmt.Fprintf(f.out, "Processing time: %v\n", duration)

	return result, nil
}

// Start is a no-op for the CLI filter
func (f *CliFilter) Start() error {
	return nil
}

// Stop is a no-op for the CLI filter
func (f *CliFilter) Stop() error {
	return nil
}
