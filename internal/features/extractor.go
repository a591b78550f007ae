// Package features scans raw email text for common phishing red flags. It is
// independent of any trained model and never decides a verdict by itself.
package features

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Kind identifies which check produced a finding
type Kind string

const (
	KindUrgency          Kind = "urgency"
	KindMultipleURLs     Kind = "multiple_urls"
	KindSuspiciousDomain Kind = "suspicious_domain"
	KindSensitiveInfo    Kind = "sensitive_info"
	KindGenericGreeting  Kind = "generic_greeting"
	KindMisspelling      Kind = "misspelling"
)

// MaxURLs is the number of links tolerated before a finding is raised
const MaxURLs = 2

var (
	UrgencyPhrases    = []string{"urgent", "immediate", "act now", "expire", "suspended", "verify", "confirm", "update", "security alert"}
	SuspiciousDomains = []string{".tk", ".ml", ".ga", "bit.ly", "tinyurl"}
	SensitiveTerms    = []string{"password", "ssn", "social security", "credit card", "account number", "pin", "banking"}
	Misspellings      = []string{"recieve", "seperate", "occured", "privilage"}
)

// URLPattern matches a link up to the next whitespace or separator rune,
// including vertical tab, the ASCII information separators and NEL.
// It is case-sensitive.
var URLPattern = regexp.MustCompile(`https?://[^\s\v\x{1c}-\x{1f}\x{85}\p{Z}]+`)

var greetingPattern = regexp.MustCompile(`dear\s+(?:customer|user|member)`)

// Finding is a single red flag
type Finding struct {
	Kind Kind
	// Term is the phrase, domain marker or URL count that triggered the finding
	Term string
}

// String returns the human readable description of the finding
func (f Finding) String() string {
	switch f.Kind {
	case KindUrgency:
		return fmt.Sprintf("Urgency keyword: '%s'", f.Term)
	case KindMultipleURLs:
		return fmt.Sprintf("Multiple URLs (%s)", f.Term)
	case KindSuspiciousDomain:
		return fmt.Sprintf("Suspicious domain: %s", f.Term)
	case KindSensitiveInfo:
		return fmt.Sprintf("Requests sensitive info: '%s'", f.Term)
	case KindGenericGreeting:
		return "Generic greeting (no name)"
	case KindMisspelling:
		return fmt.Sprintf("Possible typo: '%s'", f.Term)
	default:
		return fmt.Sprintf("%s: %s", f.Kind, f.Term)
	}
}

// Extract runs every check in a fixed order and returns the findings in the
// order they were detected. Duplicates are kept.
func Extract(text string) []Finding {
	var findings []Finding
	lowered := cases.Lower(language.Und).String(text)

	findings = appendContained(findings, lowered, UrgencyPhrases, KindUrgency)

	urls := URLPattern.FindAllString(text, -1)
	if len(urls) > MaxURLs {
		findings = append(findings, Finding{Kind: KindMultipleURLs, Term: fmt.Sprintf("%d", len(urls))})
	}
	for _, url := range urls {
		findings = appendContained(findings, url, SuspiciousDomains, KindSuspiciousDomain)
	}

	findings = appendContained(findings, lowered, SensitiveTerms, KindSensitiveInfo)

	if greetingPattern.MatchString(lowered) {
		findings = append(findings, Finding{Kind: KindGenericGreeting})
	}

	findings = appendContained(findings, lowered, Misspellings, KindMisspelling)

	return findings
}

// Describe renders findings as description strings, preserving order
func Describe(findings []Finding) []string {
	descriptions := make([]string, len(findings))
	for i, f := range findings {
		descriptions[i] = f.String()
	}
	return descriptions
}

func appendContained(findings []Finding, text string, terms []string, kind Kind) []Finding {
	for _, term := range terms {
		if strings.Contains(text, term) {
			findings = append(findings, Finding{Kind: kind, Term: term})
		}
	}
	return findings
}
