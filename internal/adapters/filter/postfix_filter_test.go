package filter

import (
	"errors"
	"strings"
	"testing"

	"github.com/emersion/go-smtp"
	"github.com/mikey/markov-phish-filter/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const rawPhish = "From: PayPal <alerts@paypal-secure.ml>\r\n" +
	"To: victim@example.com\r\n" +
	"Subject: Verify your account\r\n" +
	"Message-ID: <1@paypal-secure.ml>\r\n" +
	"\r\n" +
	"URGENT: confirm your password at http://paypal-secure.ml/update\r\n"

func testServerConfig() config.ServerConfig {
	return config.ServerConfig{
		StatusHeader:     "X-Phishing-Status",
		ConfidenceHeader: "X-Phishing-Confidence",
		FeaturesHeader:   "X-Phishing-Features",
		PostfixAddress:   "127.0.0.1",
		PostfixPort:      10026,
		PostfixEnabled:   true,
	}
}

type delivery struct {
	sender     string
	recipients []string
	data       string
}

func newTestPostfixFilter(t *testing.T, analyzer *stubAnalyzer, cfg config.ServerConfig) (*PostfixFilter, *[]delivery) {
	f := NewPostfixFilter(analyzer, zaptest.NewLogger(t), cfg)
	var delivered []delivery
	f.deliver = func(sender string, recipients []string, data []byte) error {
		delivered = append(delivered, delivery{sender, recipients, string(data)})
		return nil
	}
	return f, &delivered
}

func TestPostfixFilter_AddsHeaders(t *testing.T) {
	analyzer := &stubAnalyzer{result: phishingResult()}
	f, _ := newTestPostfixFilter(t, analyzer, testServerConfig())

	out, result, err := f.filterMessage("alerts@paypal-secure.ml", []string{"victim@example.com"}, []byte(rawPhish))
	require.NoError(t, err)
	assert.True(t, result.IsPhishing)

	msg := string(out)
	assert.True(t, strings.HasPrefix(msg, "X-Phishing-Status: PHISHING\r\n"))
	assert.Contains(t, msg, "X-Phishing-Confidence: 97.30\r\n")
	assert.Contains(t, msg, "X-Phishing-Features: Urgency keyword: 'urgent'; Suspicious domain: .tk\r\n")
	assert.Contains(t, msg, "Subject: Verify your account\r\n")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\nURGENT: confirm your password at http://paypal-secure.ml/update\r\n"))

	calls := analyzer.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Verify your account", calls[0].Subject)
	assert.Equal(t, "alerts@paypal-secure.ml", calls[0].From)
	assert.Contains(t, calls[0].Body, "confirm your password")
}

func TestPostfixFilter_DecodesLegacyCharset(t *testing.T) {
	raw := "From: Banque <alerte@banque-secure.tk>\r\n" +
		"Subject: =?ISO-8859-1?Q?V=E9rification?=\r\n" +
		"Content-Type: text/plain; charset=iso-8859-1\r\n" +
		"Content-Transfer-Encoding: quoted-printable\r\n" +
		"\r\n" +
		"V=E9rifiez votre compte imm=E9diatement\r\n"
	analyzer := &stubAnalyzer{result: legitimateResult()}
	f, _ := newTestPostfixFilter(t, analyzer, testServerConfig())

	_, _, err := f.filterMessage("alerte@banque-secure.tk", []string{"client@example.com"}, []byte(raw))
	require.NoError(t, err)

	calls := analyzer.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Vérification", calls[0].Subject)
	assert.Equal(t, "Vérifiez votre compte immédiatement\r\n", calls[0].Body)
	assert.Equal(t, []string{"client@example.com"}, calls[0].To)
}

func TestPostfixFilter_NoTextPartStillAnalyzed(t *testing.T) {
	raw := "Subject: invoice\r\n" +
		"Content-Type: multipart/mixed; boundary=b\r\n" +
		"\r\n" +
		"--b\r\n" +
		"Content-Type: application/pdf\r\n\r\n" +
		"%PDF\r\n" +
		"--b--\r\n"
	analyzer := &stubAnalyzer{result: legitimateResult()}
	f, _ := newTestPostfixFilter(t, analyzer, testServerConfig())

	out, _, err := f.filterMessage("a@example.com", []string{"b@example.com"}, []byte(raw))
	require.NoError(t, err)
	assert.Contains(t, string(out), "X-Phishing-Status: LEGITIMATE\r\n")

	calls := analyzer.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "invoice", calls[0].Subject)
	assert.Empty(t, calls[0].Body)
}

func TestPostfixFilter_LegitimateWithoutFeatures(t *testing.T) {
	f, _ := newTestPostfixFilter(t, &stubAnalyzer{result: legitimateResult()}, testServerConfig())

	out, _, err := f.filterMessage("a@example.com", []string{"b@example.com"}, []byte(rawPhish))
	require.NoError(t, err)
	assert.Contains(t, string(out), "X-Phishing-Status: LEGITIMATE\r\n")
	assert.NotContains(t, string(out), "X-Phishing-Features")
}

func TestPostfixFilter_ModifiesSubject(t *testing.T) {
	cfg := testServerConfig()
	cfg.ModifySubject = true
	f, _ := newTestPostfixFilter(t, &stubAnalyzer{result: phishingResult()}, cfg)

	out, _, err := f.filterMessage("a@x.ml", []string{"b@example.com"}, []byte(rawPhish))
	require.NoError(t, err)

	msg := string(out)
	assert.Contains(t, msg, "Subject: [**PHISHING**] Verify your account\r\n")
	assert.Equal(t, 1, strings.Count(msg, "Subject:"))
	assert.Contains(t, msg, "Message-ID: <1@paypal-secure.ml>\r\n")
}

func TestPostfixFilter_SubjectAlreadyPrefixed(t *testing.T) {
	cfg := testServerConfig()
	cfg.ModifySubject = true
	f, _ := newTestPostfixFilter(t, &stubAnalyzer{result: phishingResult()}, cfg)

	raw := strings.Replace(rawPhish, "Subject: Verify", "Subject: [**PHISHING**] Verify", 1)
	out, _, err := f.filterMessage("a@x.ml", nil, []byte(raw))
	require.NoError(t, err)
	assert.Contains(t, string(out), "Subject: [**PHISHING**] Verify your account\r\n")
	assert.NotContains(t, string(out), "[**PHISHING**] [**PHISHING**]")
}

func TestPostfixFilter_BlocksPhishing(t *testing.T) {
	cfg := testServerConfig()
	cfg.BlockPhishing = true
	f, delivered := newTestPostfixFilter(t, &stubAnalyzer{result: phishingResult()}, cfg)

	session := &smtpSession{filter: f}
	require.NoError(t, session.Mail("alerts@paypal-secure.ml", nil))
	require.NoError(t, session.Rcpt("victim@example.com", nil))

	err := session.Data(strings.NewReader(rawPhish))
	var smtpErr *smtp.SMTPError
	require.ErrorAs(t, err, &smtpErr)
	assert.Equal(t, 550, smtpErr.Code)
	assert.Empty(t, *delivered)
}

func TestPostfixFilter_AnalysisErrorStillDelivers(t *testing.T) {
	cfg := testServerConfig()
	cfg.BlockPhishing = true
	f, delivered := newTestPostfixFilter(t, &stubAnalyzer{err: errors.New("model not trained")}, cfg)

	session := &smtpSession{filter: f}
	require.NoError(t, session.Mail("a@example.com", nil))
	require.NoError(t, session.Rcpt("b@example.com", nil))
	require.NoError(t, session.Rcpt("c@example.com", nil))
	require.NoError(t, session.Data(strings.NewReader(rawPhish)))

	require.Len(t, *delivered, 1)
	d := (*delivered)[0]
	assert.Equal(t, "a@example.com", d.sender)
	assert.Equal(t, []string{"b@example.com", "c@example.com"}, d.recipients)
	assert.Contains(t, d.data, "X-Phishing-Status: LEGITIMATE\r\n")
	assert.Contains(t, d.data, "X-Phishing-Analysis-Error: model not trained\r\n")
}

func TestPostfixFilter_ForwardingDisabled(t *testing.T) {
	cfg := testServerConfig()
	cfg.PostfixEnabled = false
	f, delivered := newTestPostfixFilter(t, &stubAnalyzer{result: legitimateResult()}, cfg)

	session := &smtpSession{filter: f}
	require.NoError(t, session.Data(strings.NewReader(rawPhish)))
	assert.Empty(t, *delivered)
}

func TestSmtpSession_Reset(t *testing.T) {
	session := &smtpSession{sender: "a@example.com", recipients: []string{"b@example.com"}}
	session.Reset()
	assert.Empty(t, session.sender)
	assert.Empty(t, session.recipients)
}

func TestReplaceSubject(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		subject string
		want    string
	}{
		{
			name:    "folded subject",
			header:  "From: a@b.c\r\nSubject: first\r\n second\r\nTo: d@e.f\r\n\r\n",
			subject: "[P] new",
			want:    "From: a@b.c\r\nSubject: [P] new\r\nTo: d@e.f\r\n\r\n",
		},
		{
			name:    "missing subject",
			header:  "From: a@b.c\r\n\r\n",
			subject: "[P] ",
			want:    "From: a@b.c\r\nSubject: [P] \r\n\r\n",
		},
		{
			name:    "non ascii subject is encoded",
			header:  "subject: x\n\n",
			subject: "[P] café",
			want:    "Subject: =?utf-8?q?[P]_caf=C3=A9?=\r\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(replaceSubject([]byte(tt.header), tt.subject)))
		})
	}
}

func TestNewPostfixFilter_DefaultPrefix(t *testing.T) {
	cfg := testServerConfig()
	cfg.ModifySubject = true
	f := NewPostfixFilter(&stubAnalyzer{}, zaptest.NewLogger(t), cfg)
	assert.Equal(t, DefaultSubjectPrefix, f.cfg.SubjectPrefix)
}
