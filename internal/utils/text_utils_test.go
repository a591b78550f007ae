package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestTextProcessor_TruncateText(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	tests := []struct {
		name    string
		text    string
		maxSize int
		want    string
	}{
		{"no limit", "hello world", 0, "hello world"},
		{"within limit", "hello", 10, "hello"},
		{"ascii cut", "hello world", 5, "hello"},
		{"does not split a rune", "naïve", 3, "na"},
		{"cut on rune boundary", "naïve", 4, "naï"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tp.TruncateText(tt.text, tt.maxSize))
		})
	}
}

func TestTextProcessor_SanitizeUTF8(t *testing.T) {
	tp := NewTextProcessor(nil)

	assert.Equal(t, "valid", tp.SanitizeUTF8("valid"))
	assert.Equal(t, "abc", tp.SanitizeUTF8("a\xffb\xfe\xfdc"))
}

func TestTextProcessor_ProcessText(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	// "e" followed by a combining acute accent composes into a single rune
	assert.Equal(t, "caf\u00e9", tp.ProcessText("cafe\u0301", 0))
	assert.Equal(t, "ab", tp.ProcessText("a\xffbcdef", 3))
}
