// Package corpus loads the labelled emails used to train the classifier
package corpus

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mikey/markov-phish-filter/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

//go:embed samples
var samplesFS embed.FS

// maxConcurrentReads bounds the number of files read at once per directory
const maxConcurrentReads = 8

// Corpus holds training emails by label
type Corpus struct {
	Legitimate []string
	Phishing   []string
}

// Source loads a corpus
type Source interface {
	Load(ctx context.Context) (*Corpus, error)
}

// BuiltinSource serves the sample emails compiled into the binary
type BuiltinSource struct{}

// NewBuiltinSource creates a source for the embedded samples
func NewBuiltinSource() *BuiltinSource {
	return &BuiltinSource{}
}

// Load returns the embedded legitimate and phishing samples
func (s *BuiltinSource) Load(ctx context.Context) (*Corpus, error) {
	legitimate, err := readSamples("legitimate")
	if err != nil {
		return nil, err
	}
	phishing, err := readSamples("phishing")
	if err != nil {
		return nil, err
	}
	return &Corpus{Legitimate: legitimate, Phishing: phishing}, nil
}

// DemoEmails returns the unlabelled sample emails used for demonstrations
func DemoEmails() ([]string, error) {
	return readSamples("demo")
}

func readSamples(dir string) ([]string, error) {
	entries, err := fs.ReadDir(samplesFS, path.Join("samples", dir))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s samples: %w", dir, err)
	}

	emails := make([]string, 0, len(entries))
	for _, entry := range entries {
		data, err := samplesFS.ReadFile(path.Join("samples", dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read sample %s: %w", entry.Name(), err)
		}
		emails = append(emails, string(data))
	}
	return emails, nil
}

// DirectorySource reads *.txt and *.eml files from one directory per label.
// Files that cannot be read or parsed are logged and skipped.
type DirectorySource struct {
	legitimateDir string
	phishingDir   string
	logger        *zap.Logger
}

// NewDirectorySource creates a source reading from the given directories
func NewDirectorySource(legitimateDir, phishingDir string, logger *zap.Logger) *DirectorySource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectorySource{
		legitimateDir: legitimateDir,
		phishingDir:   phishingDir,
		logger:        logger,
	}
}

// Load reads both directories concurrently
func (s *DirectorySource) Load(ctx context.Context) (*Corpus, error) {
	var c Corpus

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		emails, err := s.loadDir(ctx, s.legitimateDir)
		c.Legitimate = emails
		return err
	})
	g.Go(func() error {
		emails, err := s.loadDir(ctx, s.phishingDir)
		c.Phishing = emails
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Info("Loaded corpus",
		zap.Int("legitimate", len(c.Legitimate)),
		zap.Int("phishing", len(c.Phishing)))

	return &c, nil
}

func (s *DirectorySource) loadDir(ctx context.Context, dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus directory %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".txt", ".eml":
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)

	// results keep directory order; skipped files leave an empty slot
	results := make([]string, len(files))
	loaded := make([]bool, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentReads)
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			text, err := readEmailFile(file)
			if err != nil {
				s.logger.Warn("Skipping corpus file", zap.String("file", file), zap.Error(err))
				return nil
			}
			results[i] = text
			loaded[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	emails := make([]string, 0, len(files))
	for i, ok := range loaded {
		if ok {
			emails = append(emails, results[i])
		}
	}
	return emails, nil
}

// readEmailFile returns plain text files verbatim; .eml files are parsed and
// reduced to their subject and text body
func readEmailFile(file string) (string, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return "", err
	}
	if !strings.EqualFold(filepath.Ext(file), ".eml") {
		return string(data), nil
	}

	email, err := utils.ParseEmail(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	return email.Text(), nil
}
