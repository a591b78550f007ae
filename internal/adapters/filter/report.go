package filter

import (
	"fmt"
	"io"
	"strings"

	"github.com/mikey/markov-phish-filter/internal/core"
)

const ruler = "======================================================================"

// writeResult renders a detection result for a terminal
func writeResult(w io.Writer, result *core.DetectionResult) {
	if result.IsPhishing {
		fmt.Fprintln(w, "PHISHING DETECTED")
	} else {
		fmt.Fprintln(w, "LEGITIMATE EMAIL")
	}
	fmt.Fprintf(w, "Confidence: %.1f%%\n", result.Confidence)
	fmt.Fprintf(w, "Legitimate score: %.2f\n", result.LegitimateScore)
	fmt.Fprintf(w, "Phishing score: %.2f\n", result.PhishingScore)

	if len(result.Features) == 0 {
		fmt.Fprintln(w, "\nNo suspicious features detected")
		return
	}
	fmt.Fprintf(w, "\nSuspicious features (%d):\n", len(result.Features))
	for _, feature := range result.Features {
		fmt.Fprintf(w, "  - %s\n", feature)
	}
}

// WriteStatistics renders the training counters
func WriteStatistics(w io.Writer, stats core.Statistics) {
	fmt.Fprintln(w, "Training statistics:")
	fmt.Fprintf(w, "  legitimate emails: %d\n", stats.LegitimateEmails)
	fmt.Fprintf(w, "  phishing emails: %d\n", stats.PhishingEmails)
	fmt.Fprintf(w, "  legitimate contexts: %d\n", stats.LegitimateContexts)
	fmt.Fprintf(w, "  phishing contexts: %d\n", stats.PhishingContexts)
	fmt.Fprintf(w, "  order: %d\n", stats.Order)
}

func preview(text string, limit int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
