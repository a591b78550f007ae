package filter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/mikey/markov-phish-filter/internal/config"
	"github.com/mikey/markov-phish-filter/internal/core"
	"github.com/mikey/markov-phish-filter/internal/ports"
	"github.com/mikey/markov-phish-filter/internal/utils"
	"github.com/mikey/markov-phish-filter/internal/whitelist"
	"go.uber.org/zap"
)

// DefaultSubjectPrefix is used when subject rewriting is enabled without a prefix
const DefaultSubjectPrefix = "[**PHISHING**] "

// analysisTimeout bounds the detection of a single message
const analysisTimeout = 10 * time.Second

// PostfixFilter implements a Postfix content filter
type PostfixFilter struct {
	analyzer ports.EmailAnalyzer
	logger   *zap.Logger
	cfg      config.ServerConfig
	server   *smtp.Server
	// deliver re-injects the filtered message
	deliver func(sender string, recipients []string, data []byte) error
}

// NewPostfixFilter creates a new Postfix content filter
func NewPostfixFilter(analyzer ports.EmailAnalyzer, logger *zap.Logger, cfg config.ServerConfig) *PostfixFilter {
	// If subject prefix is not set but modify subject is enabled, use default prefix
	if cfg.SubjectPrefix == "" && cfg.ModifySubject {
		cfg.SubjectPrefix = DefaultSubjectPrefix
	}

	f := &PostfixFilter{
		analyzer: analyzer,
		logger:   logger,
		cfg:      cfg,
	}
	f.deliver = f.sendToPostfix
	return f
}

// Start starts the Postfix filter service
func (f *PostfixFilter) Start() error {
	f.server = smtp.NewServer(&smtpBackend{filter: f})

	f.server.Addr = f.cfg.ListenAddress
	f.server.Domain = "localhost"
	f.server.ReadTimeout = 30 * time.Second
	f.server.WriteTimeout = 30 * time.Second
	f.server.MaxMessageBytes = 30 * 1024 * 1024
	f.server.MaxRecipients = 50
	f.server.AllowInsecureAuth = true

	f.logger.Info("Postfix filter starting", zap.String("address", f.cfg.ListenAddress))

	go func() {
		if err := f.server.ListenAndServe(); err != nil && err != smtp.ErrServerClosed {
			f.logger.Error("SMTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop stops the Postfix filter service
func (f *PostfixFilter) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// ProcessEmail analyzes an email without going through SMTP
func (f *PostfixFilter) ProcessEmail(ctx context.Context, email *core.Email) (*core.DetectionResult, error) {
	return f.analyzer.AnalyzeEmail(ctx, email)
}

// sendToPostfix sends the processed email back to Postfix using go-smtp
func (f *PostfixFilter) sendToPostfix(sender string, recipients []string, data []byte) error {
	addr := net.JoinHostPort(f.cfg.PostfixAddress, fmt.Sprint(f.cfg.PostfixPort))

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to Postfix: %w", err)
	}
	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}
	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	// Continue with other recipients even if one fails
	accepted := 0
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			f.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
			continue
		}
		accepted++
	}
	if accepted == 0 {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send email data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	// The message is already queued at this point
	if err := c.Quit(); err != nil {
		f.logger.Warn("QUIT command failed", zap.Error(err))
	}

	return nil
}

// filterMessage analyzes a raw message and returns it with detection headers added.
// A non-nil SMTP error means the message must be rejected.
func (f *PostfixFilter) filterMessage(sender string, recipients []string, raw []byte) ([]byte, *core.DetectionResult, error) {
	header, body := splitMessage(raw)

	email, err := utils.ParseEmail(bytes.NewReader(raw))
	if email == nil {
		return nil, nil, fmt.Errorf("failed to parse email message: %w", err)
	}
	if err != nil {
		f.logger.Warn("Failed to extract text content", zap.Error(err))
	}
	email.From = sender
	email.To = recipients
	senderDomain := whitelist.SenderDomain(sender)

	ctx, cancel := context.WithTimeout(context.Background(), analysisTimeout)
	defer cancel()

	result, analysisErr := f.analyzer.AnalyzeEmail(ctx, email)
	if analysisErr != nil {
		f.logger.Error("Failed to analyze email",
			zap.Error(analysisErr),
			zap.String("sender", sender),
			zap.String("sender_domain", senderDomain))

		// Deliver unmarked rather than lose mail
		result = &core.DetectionResult{
			Verdict:    core.VerdictLegitimate,
			AnalyzedAt: time.Now(),
			ModelUsed:  "error",
		}
	}

	if result.IsPhishing && f.cfg.BlockPhishing {
		f.logger.Info("Rejecting phishing email",
			zap.String("from", sender),
			zap.String("sender_domain", senderDomain),
			zap.Float64("confidence", result.Confidence),
			zap.Strings("features", result.Features),
			zap.String("model", result.ModelUsed))
		return nil, result, &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 7, 1},
			Message:      fmt.Sprintf("Rejected as phishing (confidence: %.2f%%)", result.Confidence),
		}
	}

	var out bytes.Buffer
	fmt.Fprintf(&out, "%s: %s\r\n", f.cfg.StatusHeader, result.Verdict)
	fmt.Fprintf(&out, "%s: %.2f\r\n", f.cfg.ConfidenceHeader, result.Confidence)
	if len(result.Features) > 0 {
		fmt.Fprintf(&out, "%s: %s\r\n", f.cfg.FeaturesHeader, headerValue(strings.Join(result.Features, "; ")))
	}
	if analysisErr != nil {
		fmt.Fprintf(&out, "X-Phishing-Analysis-Error: %s\r\n", headerValue(analysisErr.Error()))
	}

	if result.IsPhishing && f.cfg.ModifySubject && f.cfg.SubjectPrefix != "" &&
		!strings.HasPrefix(email.Subject, f.cfg.SubjectPrefix) {
		header = replaceSubject(header, f.cfg.SubjectPrefix+email.Subject)
	}

	out.Write(header)
	out.Write(body)

	return out.Bytes(), result, nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	filter *PostfixFilter
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{filter: b.filter}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	filter     *PostfixFilter
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = nil
}

// Mail sets the sender address
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data analyzes the message and re-injects it into Postfix
func (s *smtpSession) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		s.filter.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	filtered, result, err := s.filter.filterMessage(s.sender, s.recipients, raw)
	if err != nil {
		return err
	}

	if s.filter.cfg.PostfixEnabled {
		if err := s.filter.deliver(s.sender, s.recipients, filtered); err != nil {
			s.filter.logger.Error("Failed to send email back to Postfix",
				zap.Error(err),
				zap.String("sender", s.sender))
			return err
		}
	} else {
		s.filter.logger.Warn("Postfix forwarding disabled, message not re-injected")
	}

	s.filter.logger.Info("Processed email",
		zap.String("from", s.sender),
		zap.String("processing_id", result.ProcessingID),
		zap.String("verdict", string(result.Verdict)),
		zap.Float64("confidence", result.Confidence),
		zap.String("model", result.ModelUsed))

	return nil
}

// Logout handles SMTP logout
func (s *smtpSession) Logout() error {
	return nil
}

// splitMessage separates the raw header block (including its terminating
// blank line) from the body
func splitMessage(raw []byte) (header, body []byte) {
	if i := bytes.Index(raw, []byte("\r\n\r\n")); i >= 0 {
		return raw[:i+4], raw[i+4:]
	}
	if i := bytes.Index(raw, []byte("\n\n")); i >= 0 {
		return raw[:i+2], raw[i+2:]
	}
	return raw, nil
}

// replaceSubject rewrites the Subject field of a raw header block, keeping
// every other field in place. Folded continuation lines of the old subject are dropped.
func replaceSubject(header []byte, subject string) []byte {
	encoded := mime.QEncoding.Encode("utf-8", subject)
	lines := strings.SplitAfter(string(header), "\n")

	var out strings.Builder
	replaced, skipping := false, false
	for _, line := range lines {
		if skipping && (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) {
			continue
		}
		skipping = false

		name, _, found := strings.Cut(line, ":")
		if found && strings.EqualFold(strings.TrimSpace(name), "Subject") && !replaced {
			out.WriteString("Subject: " + encoded + "\r\n")
			replaced, skipping = true, true
			continue
		}
		if !replaced && strings.TrimRight(line, "\r\n") == "" {
			// no Subject field: add one before the blank separator line
			out.WriteString("Subject: " + encoded + "\r\n")
			replaced = true
		}
		out.WriteString(line)
	}
	return []byte(out.String())
}

// headerValue flattens a value onto a single header line
func headerValue(value string) string {
	return strings.Join(strings.Fields(value), " ")
}
