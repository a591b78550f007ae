package filter

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/mikey/markov-phish-filter/internal/core"
	"github.com/mikey/markov-phish-filter/internal/ports"
	"go.uber.org/zap"
)

// quitCommand ends an interactive session
const quitCommand = "quit"

// InteractiveFilter reads pasted emails from a terminal and reports on each one.
// An email ends at the first empty line after some text.
type InteractiveFilter struct {
	analyzer ports.EmailAnalyzer
	in       io.Reader
	out      io.Writer
	logger   *zap.Logger
}

// NewInteractiveFilter creates a new interactive session over in and out
func NewInteractiveFilter(analyzer ports.EmailAnalyzer, in io.Reader, out io.Writer, logger *zap.Logger) *InteractiveFilter {
	return &InteractiveFilter{
		analyzer: analyzer,
		in:       in,
		out:      out,
		logger:   logger,
	}
}

// Run processes emails until "quit", end of input or cancellation of ctx.
// A partially typed email is discarded in the last two cases.
func (f *InteractiveFilter) Run(ctx context.Context) error {
	// stops the reader once the session ends; a Scan blocked on input
	// returns at the next line and then exits
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(f.in)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSuffix(scanner.Text(), "\r"):
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
		close(lines)
	}()

	fmt.Fprintln(f.out, ruler)
	fmt.Fprintf(f.out, "Interactive mode - type '%s' to exit\n", quitCommand)
	fmt.Fprintln(f.out, ruler)

	for {
		fmt.Fprintln(f.out, "\nPaste email text (press Enter twice when done):")

		text, ok, err := f.readEmail(ctx, lines, readErr)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if strings.EqualFold(strings.TrimSpace(text), quitCommand) {
			return nil
		}

		result, err := f.analyzer.AnalyzeEmail(ctx, &core.Email{Body: text})
		if err != nil {
			if ctx.Err() != nil {
				fmt.Fprintln(f.out, "\n\nGoodbye!")
				return nil
			}
			f.logger.Error("Failed to analyze email", zap.Error(err))
			fmt.Fprintf(f.out, "Error: %v\n", err)
			continue
		}

		fmt.Fprintln(f.out, "\n"+ruler)
		fmt.Fprintln(f.out, "ANALYSIS RESULTS")
		fmt.Fprintln(f.out, ruler)
		writeResult(f.out, result)
		fmt.Fprintln(f.out, "\n"+ruler)
	}
}

// readEmail collects lines up to the first empty line following some text.
// Leading empty lines are ignored. ok is false when the session must end.
func (f *InteractiveFilter) readEmail(ctx context.Context, lines <-chan string, readErr <-chan error) (string, bool, error) {
	var buf []string
	for {
		select {
		case <-ctx.Done():
			if len(buf) > 0 {
				f.logger.Debug("Discarding partial input", zap.Int("lines", len(buf)))
			}
			fmt.Fprintln(f.out, "\n\nGoodbye!")
			return "", false, nil
		case line, open := <-lines:
			if !open {
				if err := <-readErr; err != nil {
					return "", false, fmt.Errorf("failed to read input: %w", err)
				}
				return "", false, nil
			}
			if line != "" {
				buf = append(buf, line)
				continue
			}
			if len(buf) > 0 {
				return strings.Join(buf, "\n"), true, nil
			}
		}
	}
}
