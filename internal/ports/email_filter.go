package ports

import (
	"context"

	"github.com/mikey/markov-phish-filter/internal/core"
)

// EmailFilter defines the interface for email filtering
type EmailFilter interface {
	// ProcessEmail processes an email and returns the detection result
	ProcessEmail(ctx context.Context, email *core.Email) (*core.DetectionResult, error)

	// Start starts the email filter service
	Start() error

	// Stop stops the email filter service
	Stop() error
}

// EmailAnalyzer scores a single email
type EmailAnalyzer interface {
	AnalyzeEmail(ctx context.Context, email *core.Email) (*core.DetectionResult, error)
}
