package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	assert.Equal(t, MarkovConfig{Order: 2}, cfg.GetMarkov())
	assert.Equal(t, "builtin", cfg.GetCorpus().Source)
	assert.Equal(t, 65536, cfg.GetDetection().MaxBodySize)
	assert.Empty(t, cfg.GetDetection().WhitelistedDomains)

	history := cfg.GetHistory()
	assert.True(t, history.Enabled)
	assert.Equal(t, "memory", history.Type)

	retention, err := cfg.GetDuration("history.retention")
	require.NoError(t, err)
	assert.Equal(t, 168*time.Hour, retention)

	server := cfg.GetServer()
	assert.Equal(t, "postfix", server.FilterType)
	assert.Equal(t, "X-Phishing-Status", server.StatusHeader)
	assert.Equal(t, 10026, server.PostfixPort)
}

func TestNewFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
markov:
  order: 3
corpus:
  source: directory
  legitimate_dir: /tmp/legit
detection:
  whitelisted_domains:
    - example.com
history:
  type: sqlite
`), 0o600))

	cfg, err := NewFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.GetMarkov().Order)
	assert.Equal(t, CorpusConfig{
		Source:        "directory",
		LegitimateDir: "/tmp/legit",
		PhishingDir:   "/data/corpus/phishing",
	}, cfg.GetCorpus())
	assert.Equal(t, []string{"example.com"}, cfg.GetDetection().WhitelistedDomains)
	assert.Equal(t, "sqlite", cfg.GetHistory().Type)
	assert.Equal(t, cfg.GetViper().ConfigFileUsed(), path)
}

func TestNewFromFile_Missing(t *testing.T) {
	_, err := NewFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("PHISH_FILTER_MARKOV_ORDER", "4")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.GetMarkov().Order)
}

func TestGetDuration_Invalid(t *testing.T) {
	v := NewEmptyViper()
	v.Set("history.retention", "forever")

	_, err := NewFromViper(v).GetDuration("history.retention")
	assert.Error(t, err)
}
