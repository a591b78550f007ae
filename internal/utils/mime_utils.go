package utils

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/textproto"
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"
	"github.com/mikey/markov-phish-filter/internal/core"
)

// ErrNoTextContent is returned when a message carries no text/plain part
var ErrNoTextContent = errors.New("no text content found in message")

var headerDecoder = &mime.WordDecoder{CharsetReader: charset.Reader}

// DecodeHeader decodes RFC 2047 encoded words, returning the raw value when decoding fails
func DecodeHeader(value string) string {
	decoded, err := headerDecoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

// ParseEmail reads an RFC 5322 message into an Email with decoded headers and
// text body. Bodies are converted to UTF-8 from their declared charset.
//
// The body holds every inline text/plain part, descending into nested
// multiparts, joined by newlines. When a part cannot be read the partially
// parsed Email is returned along with the error.
func ParseEmail(r io.Reader) (*core.Email, error) {
	mr, err := gomail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("failed to parse email: %w", err)
	}

	headers := make(map[string][]string)
	fields := mr.Header.Fields()
	for fields.Next() {
		key := textproto.CanonicalMIMEHeaderKey(fields.Key())
		headers[key] = append(headers[key], DecodeHeader(fields.Value()))
	}

	email := &core.Email{
		From:    DecodeHeader(mr.Header.Get("From")),
		To:      splitAddresses(DecodeHeader(mr.Header.Get("To"))),
		Subject: DecodeHeader(mr.Header.Get("Subject")),
		Headers: headers,
	}

	parts, err := readTextParts(mr)
	email.Body = strings.Join(parts, "\n")
	if err != nil {
		return email, fmt.Errorf("failed to extract email text: %w", err)
	}
	if len(parts) == 0 {
		return email, ErrNoTextContent
	}
	return email, nil
}

func readTextParts(mr *gomail.Reader) ([]string, error) {
	var parts []string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return parts, nil
		}
		// an unknown charset leaves the part undecoded but readable
		if err != nil && (part == nil || !message.IsUnknownCharset(err)) {
			return parts, fmt.Errorf("failed to read message part: %w", err)
		}

		h, ok := part.Header.(*gomail.InlineHeader)
		if !ok || !isPlainText(h) {
			continue
		}
		data, err := io.ReadAll(part.Body)
		if err != nil {
			return parts, fmt.Errorf("failed to read text part: %w", err)
		}
		parts = append(parts, string(data))
	}
}

// isPlainText treats parts without a usable content type as text/plain
func isPlainText(h *gomail.InlineHeader) bool {
	mediaType, _, err := h.ContentType()
	return err != nil || mediaType == "" || mediaType == "text/plain"
}

func splitAddresses(value string) []string {
	var addresses []string
	for _, addr := range strings.Split(value, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			addresses = append(addresses, addr)
		}
	}
	return addresses
}
