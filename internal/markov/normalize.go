package markov

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mikey/markov-phish-filter/internal/features"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Placeholder tokens substituted for volatile entities
const (
	TokenURL    = "<URL>"
	TokenEmail  = "<EMAIL>"
	TokenMoney  = "<MONEY>"
	TokenNumber = "<NUMBER>"
)

var placeholders = []string{TokenURL, TokenEmail, TokenMoney, TokenNumber}

// Masks run in declaration order; a later pattern never sees text an earlier one replaced.
var masks = []struct {
	find        func(text string) [][]int
	placeholder string
}{
	{func(text string) [][]int { return features.URLPattern.FindAllStringIndex(text, -1) }, TokenURL},
	{findEmails, TokenEmail},
	{func(text string) [][]int { return moneyPattern.FindAllStringIndex(text, -1) }, TokenMoney},
	{findNumbers, TokenNumber},
}

var (
	moneyPattern  = regexp.MustCompile(`\$\p{Nd}+(?:\.\p{Nd}+)?`)
	digitsPattern = regexp.MustCompile(`\p{Nd}+`)
	// anchored; the trailing group stands in for a word boundary after the TLD
	emailPattern  = regexp.MustCompile(`^([a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,})(?:[^\p{L}\p{N}_]|$)`)
)

// Normalize lowercases text, masks URLs, email addresses, money amounts and
// numbers, and splits the result into tokens
func Normalize(text string) []string {
	return Tokenize(Mask(lower(text)))
}

// Mask replaces volatile entities in already lowercased text with placeholders
func Mask(text string) string {
	for _, m := range masks {
		text = replaceSpans(text, m.find(text), m.placeholder)
	}
	return text
}

func replaceSpans(text string, spans [][]int, placeholder string) string {
	if len(spans) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, span := range spans {
		b.WriteString(text[last:span[0]])
		b.WriteString(placeholder)
		last = span[1]
	}
	b.WriteString(text[last:])
	return b.String()
}

// findNumbers returns digit runs that are not part of a larger word.
// Digit runs are maximal, so only the runes either side need checking.
func findNumbers(text string) [][]int {
	var spans [][]int
	for _, span := range digitsPattern.FindAllStringIndex(text, -1) {
		if wordBoundary(text, span[0], span[1]) {
			spans = append(spans, span)
		}
	}
	return spans
}

// findEmails tries the address pattern at every word boundary, so an address
// glued to surrounding letters is left alone.
func findEmails(text string) [][]int {
	var spans [][]int
	for i := 0; i < len(text); {
		if atBoundary(text, i) {
			if m := emailPattern.FindStringSubmatchIndex(text[i:]); m != nil {
				spans = append(spans, []int{i + m[2], i + m[3]})
				i += m[3]
				continue
			}
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		i += size
	}
	return spans
}

// wordBoundary reports whether text[start:end] is neither preceded nor
// followed by a word rune.
func wordBoundary(text string, start, end int) bool {
	if start > 0 {
		if r, _ := utf8.DecodeLastRuneInString(text[:start]); isWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		if r, _ := utf8.DecodeRuneInString(text[end:]); isWordRune(r) {
			return false
		}
	}
	return true
}

// atBoundary reports whether a word starts or ends at offset i.
func atBoundary(text string, i int) bool {
	before, after := false, false
	if i > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:i])
		before = isWordRune(r)
	}
	if i < len(text) {
		r, _ := utf8.DecodeRuneInString(text[i:])
		after = isWordRune(r)
	}
	return before != after
}

// Tokenize splits text into maximal word runs and single punctuation
// characters. Whitespace only separates tokens. Placeholders stay atomic.
func Tokenize(text string) []string {
	tokens := make([]string, 0, len(text)/4+1)

	for i := 0; i < len(text); {
		if text[i] == '<' {
			if p, ok := placeholderAt(text[i:]); ok {
				tokens = append(tokens, p)
				i += len(p)
				continue
			}
		}

		r, size := utf8.DecodeRuneInString(text[i:])
		switch {
		case isSpace(r):
			i += size
		case isWordRune(r):
			j := i + size
			for j < len(text) {
				next, n := utf8.DecodeRuneInString(text[j:])
				if !isWordRune(next) {
					break
				}
				j += n
			}
			tokens = append(tokens, text[i:j])
			i = j
		default:
			tokens = append(tokens, text[i:i+size])
			i += size
		}
	}

	return tokens
}

func placeholderAt(s string) (string, bool) {
	for _, p := range placeholders {
		if strings.HasPrefix(s, p) {
			return p, true
		}
	}
	return "", false
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// isSpace also treats the ASCII information separators as whitespace.
func isSpace(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f)
}

// lower uses a fresh Caser per call since casers are not safe for concurrent use.
func lower(text string) string {
	return cases.Lower(language.Und).String(text)
}
