package filter

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mikey/markov-phish-filter/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCliFilter_ProcessEmail(t *testing.T) {
	analyzer := &stubAnalyzer{result: phishingResult()}
	var out bytes.Buffer
	f := NewCliFilter(analyzer, zaptest.NewLogger(t), &out, true)

	email := &core.Email{
		From:    "alerts@secure-bank.tk",
		To:      []string{"a@example.com", "b@example.com"},
		Subject: "Verify now",
		Body:    strings.Repeat("x", 600),
	}
	result, err := f.ProcessEmail(context.Background(), email)
	require.NoError(t, err)
	assert.True(t, result.IsPhishing)

	output := out.String()
	assert.Contains(t, output, "From: alerts@secure-bank.tk")
	assert.Contains(t, output, "To: a@example.com, b@example.com")
	assert.Contains(t, output, "Body length: 600 bytes")
	assert.Contains(t, output, strings.Repeat("x", 500)+"...")
	assert.Contains(t, output, "PHISHING DETECTED")
	assert.Contains(t, output, "Model used: markov-order-2")
	assert.Contains(t, output, "Processing ID: 11111111-2222-3333-4444-555555555555")
}

func TestCliFilter_ProcessEmailError(t *testing.T) {
	analyzer := &stubAnalyzer{err: errors.New("boom")}
	var out bytes.Buffer
	f := NewCliFilter(analyzer, zaptest.NewLogger(t), &out, false)

	_, err := f.ProcessEmail(context.Background(), &core.Email{Body: "hi"})
	assert.Error(t, err)
	assert.Contains(t, out.String(), "Error: boom")
	assert.NotContains(t, out.String(), "Body preview")
}

func TestCliFilter_StartStop(t *testing.T) {
	f := NewCliFilter(&stubAnalyzer{}, zaptest.NewLogger(t), &bytes.Buffer{}, false)
	assert.NoError(t, f.Start())
	assert.NoError(t, f.Stop())
}

func TestWriteStatistics(t *testing.T) {
	var out bytes.Buffer
	WriteStatistics(&out, core.Statistics{LegitimateEmails: 4, PhishingEmails: 4, LegitimateContexts: 120, PhishingContexts: 130, Order: 2})
	assert.Contains(t, out.String(), "legitimate emails: 4")
	assert.Contains(t, out.String(), "phishing contexts: 130")
	assert.Contains(t, out.String(), "order: 2")
}
