// SPDX-License-Identifier: GPL-3.0-or-later
package mail

import (
	"bytes"
	"fmt"
	"mime"
	stdmail "net/mail"
	"strings"
	"time"

	"github.com/emersion/go-message/charset"
	"github.com/jhillyerd/enmime"
)

// Parsed holds the parts of a message the monitor needs to classify and report it.
type Parsed struct {
	Subject   string
	From      string
	MessageId string
	Date      time.Time
	Text      string
}

var wordDecoder = &mime.WordDecoder{
	CharsetReader: charset.Reader,
}

// DecodeHeader decodes RFC 2047 encoded words, falling back to the raw value.
func DecodeHeader(value string) string {
	decoded, err := wordDecoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

// MailHeaderInfos returns the decoded subject, sender and Message-Id of a raw mail or header block.
func MailHeaderInfos(rawMail []byte) (string, string, string, error) {
	msg, err := stdmail.ReadMessage(bytes.NewReader(rawMail))
	if err != nil {
		return "", "", "", fmt.Errorf("could not parse mail: %w", err)
	}

	subject, err := wordDecoder.DecodeHeader(msg.Header.Get("Subject"))
	if err != nil {
		return "", "", "", fmt.Errorf("could decode subject header: %w", err)
	}

	return subject, DecodeHeader(msg.Header.Get("From")), msg.Header.Get("Message-Id"), nil
}

// Parse extracts headers and flattens subject, text and html bodies into one classification text.
// Broken MIME structure is tolerated as far as enmime manages to recover it.
func Parse(rawMail []byte) (*Parsed, error) {
	envelope, err := enmime.ReadEnvelope(bytes.NewReader(rawMail))
	if err != nil {
		return nil, fmt.Errorf("could not parse mail: %w", err)
	}

	parsed := &Parsed{
		Subject:   envelope.GetHeader("Subject"),
		From:      envelope.GetHeader("From"),
		MessageId: envelope.GetHeader("Message-Id"),
	}

	if date, err := envelope.Date(); err == nil {
		parsed.Date = date
	}

	parsed.Text = ClassificationText(parsed.Subject, envelope.Text, envelope.HTML)

	return parsed, nil
}

// ClassificationText joins the non-empty parts with a single space.
func ClassificationText(subject, plain, html string) string {
	parts := []string{}
	for _, p := range []string{subject, plain, html} {
		p = strings.TrimSpace(p)
		if len(p) > 0 {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

func ShortSubject(subject string) string {
	if len([]rune(subject)) > 30 {
		subject = string([]rune(subject)[:30]) + "..."
	}
	return subject
}
