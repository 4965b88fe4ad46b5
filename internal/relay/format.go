package relay

import (
	"bytes"
	"fmt"
	"io"
	"net/textproto"
	"strings"

	"github.com/emersion/go-message/mail"

	"github.com/kworr/smtp2tg/internal/dispatch"
)

// Formatter renders the outbound chat payload from a completed transaction.
// It surfaces a configured list of header fields, in order, followed by a
// blank line and the first text part of the message. Fields absent from the
// message are silently omitted. Remaining parts and attachments come back as
// documents to be forwarded as files. Truncation to backend message limits is
// the sender's concern, not the formatter's.
type Formatter struct {
	fields []string
}

// NewFormatter creates a Formatter surfacing the given header fields.
// Field names are matched case-insensitively.
func NewFormatter(fields []string) *Formatter {
	normalized := make([]string, len(fields))
	for i, f := range fields {
		normalized[i] = strings.ToLower(strings.TrimSpace(f))
	}
	return &Formatter{fields: normalized}
}

// Format renders the payload and collects the documents for one transaction.
// The same payload and documents go to every accepted recipient of the
// transaction.
func (f *Formatter) Format(tx *Transaction) (string, []dispatch.Document) {
	headers, text, docs := parseMessage(tx.Body, f.fields)

	var b strings.Builder
	for _, field := range f.fields {
		value := headers[field]
		if value == "" && field == "from" {
			// Envelope sender stands in when the message has no From header.
			value = tx.Sender
		}
		if value == "" {
			continue
		}
		b.WriteString(textproto.CanonicalMIMEHeaderKey(field))
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\n")
	}

	if b.Len() > 0 && text != "" {
		b.WriteString("\n")
	}
	b.WriteString(text)

	return b.String(), docs
}

// parseMessage extracts the requested header values, the first text part and
// the remaining parts from a raw message. The first inline part becomes the
// payload body; later inline parts and all attachments become documents,
// named from the attachment filename when there is one. A message that cannot
// be parsed at all is passed through as plain body text with no headers.
func parseMessage(body []byte, fields []string) (map[string]string, string, []dispatch.Document) {
	mr, err := mail.CreateReader(bytes.NewReader(body))
	if err != nil {
		return map[string]string{}, strings.TrimRight(string(body), "\r\n"), nil
	}

	headers := make(map[string]string, len(fields))
	for _, field := range fields {
		if value, err := mr.Header.Text(field); err == nil && value != "" {
			headers[field] = value
		}
	}

	var text string
	var textFound bool
	var docs []dispatch.Document
	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			data, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			if !textFound {
				text = strings.TrimRight(string(data), "\r\n")
				textFound = true
				continue
			}
			if len(data) > 0 {
				docs = append(docs, dispatch.Document{
					Name: fmt.Sprintf("part-%d", len(docs)+1),
					Data: data,
				})
			}
		case *mail.AttachmentHeader:
			data, err := io.ReadAll(part.Body)
			if err != nil || len(data) == 0 {
				continue
			}
			name, _ := h.Filename()
			if name == "" {
				name = fmt.Sprintf("attachment-%d", len(docs)+1)
			}
			docs = append(docs, dispatch.Document{Name: name, Data: data})
		}
	}

	return headers, text, docs
}
