package whitelist

import (
	"net/mail"
	"strings"

	"go.uber.org/zap"
)

// Checker decides whether a sender's domain is trusted enough to skip detection
type Checker struct {
	domains []string
	logger  *zap.Logger
}

// NewChecker creates a new whitelist checker
func NewChecker(domains []string, logger *zap.Logger) *Checker {
	normalized := make([]string, 0, len(domains))
	for _, domain := range domains {
		domain = strings.Trim(strings.ToLower(strings.TrimSpace(domain)), ".")
		if domain != "" {
			normalized = append(normalized, domain)
		}
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	if len(normalized) > 0 {
		logger.Info("Initialized whitelist checker", zap.Strings("domains", normalized))
	}

	return &Checker{
		domains: normalized,
		logger:  logger,
	}
}

// IsWhitelisted reports whether the sender's domain, or a parent of it, is whitelisted.
// from may be a bare address or a header value such as "Name <user@example.com>".
func (c *Checker) IsWhitelisted(from string) bool {
	if len(c.domains) == 0 {
		return false
	}

	domain := SenderDomain(from)
	if domain == "" {
		return false
	}

	for _, whitelisted := range c.domains {
		if domain == whitelisted || strings.HasSuffix(domain, "."+whitelisted) {
			c.logger.Debug("Domain is whitelisted",
				zap.String("domain", domain),
				zap.String("email", from))
			return true
		}
	}

	return false
}

// SenderDomain extracts the lowercased domain of an address, or "" if there is none
func SenderDomain(from string) string {
	address := strings.TrimSpace(from)
	if parsed, err := mail.ParseAddress(address); err == nil {
		address = parsed.Address
	}

	at := strings.LastIndex(address, "@")
	if at < 0 || at == len(address)-1 {
		return ""
	}
	return strings.ToLower(strings.Trim(address[at+1:], "> "))
}
