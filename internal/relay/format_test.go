package relay

import (
	"strings"
	"testing"
)

func TestFormat(t *testing.T) {
	f := NewFormatter([]string{"date", "from", "subject"})

	tx := &Transaction{
		Sender: "envelope@remote.net",
		Body: []byte("Date: Mon, 24 Aug 2026 10:00:00 +0000\r\n" +
			"From: Some One <someone@remote.net>\r\n" +
			"Subject: disk almost full\r\n" +
			"\r\n" +
			"/dev/sda1 is at 97%\r\n"),
	}

	got, _ := f.Format(tx)
	want := "Date: Mon, 24 Aug 2026 10:00:00 +0000\n" +
		"From: Some One <someone@remote.net>\n" +
		"Subject: disk almost full\n" +
		"\n" +
		"/dev/sda1 is at 97%"

	if got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}
}

func TestFormatFieldOrder(t *testing.T) {
	// The configured order wins over the order in the message.
	f := NewFormatter([]string{"subject", "from"})

	tx := &Transaction{
		Sender: "envelope@remote.net",
		Body: []byte("From: someone@remote.net\r\n" +
			"Subject: hello\r\n" +
			"\r\n" +
			"body\r\n"),
	}

	got, _ := f.Format(tx)
	if !strings.HasPrefix(got, "Subject: hello\nFrom: someone@remote.net\n") {
		t.Errorf("expected subject before from, got %q", got)
	}
}

func TestFormatOmitsAbsentFields(t *testing.T) {
	f := NewFormatter([]string{"date", "from", "subject"})

	tx := &Transaction{
		Sender: "envelope@remote.net",
		Body: []byte("From: someone@remote.net\r\n" +
			"Subject: no date header\r\n" +
			"\r\n" +
			"body\r\n"),
	}

	got, _ := f.Format(tx)
	if strings.Contains(got, "Date:") {
		t.Errorf("absent field must be omitted, got %q", got)
	}
	if !strings.Contains(got, "Subject: no date header") {
		t.Errorf("present field missing, got %q", got)
	}
}

func TestFormatEnvelopeSenderFallback(t *testing.T) {
	f := NewFormatter([]string{"from", "subject"})

	tx := &Transaction{
		Sender: "envelope@remote.net",
		Body: []byte("Subject: headless\r\n" +
			"\r\n" +
			"body\r\n"),
	}

	got, _ := f.Format(tx)
	if !strings.Contains(got, "From: envelope@remote.net") {
		t.Errorf("expected envelope sender fallback, got %q", got)
	}
}

func TestFormatFieldsCaseInsensitive(t *testing.T) {
	f := NewFormatter([]string{"SUBJECT"})

	tx := &Transaction{
		Body: []byte("subject: mixed case\r\n\r\nbody\r\n"),
	}

	got, _ := f.Format(tx)
	if !strings.Contains(got, "Subject: mixed case") {
		t.Errorf("expected case-insensitive field match, got %q", got)
	}
}

func TestFormatUnparseableBody(t *testing.T) {
	f := NewFormatter([]string{"from", "subject"})

	tx := &Transaction{
		Sender: "envelope@remote.net",
		Body:   []byte("not a mail message at all"),
	}

	got, _ := f.Format(tx)
	if !strings.Contains(got, "not a mail message at all") {
		t.Errorf("expected raw body passthrough, got %q", got)
	}
}

func TestFormatAttachments(t *testing.T) {
	f := NewFormatter([]string{"subject"})

	tx := &Transaction{
		Sender: "envelope@remote.net",
		Body: []byte("From: someone@remote.net\r\n" +
			"Subject: weekly report\r\n" +
			"Content-Type: multipart/mixed; boundary=frontier\r\n" +
			"\r\n" +
			"--frontier\r\n" +
			"Content-Type: text/plain\r\n" +
			"\r\n" +
			"numbers attached\r\n" +
			"--frontier\r\n" +
			"Content-Type: text/csv\r\n" +
			"Content-Disposition: attachment; filename=\"report.csv\"\r\n" +
			"\r\n" +
			"a,b\r\n1,2\r\n" +
			"--frontier--\r\n"),
	}

	got, docs := f.Format(tx)
	if !strings.Contains(got, "numbers attached") {
		t.Errorf("expected text part in payload, got %q", got)
	}
	if strings.Contains(got, "a,b") {
		t.Errorf("attachment content must not leak into the payload, got %q", got)
	}

	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	if docs[0].Name != "report.csv" {
		t.Errorf("document name = %q, want %q", docs[0].Name, "report.csv")
	}
	if !strings.Contains(string(docs[0].Data), "a,b") {
		t.Errorf("document data = %q", docs[0].Data)
	}
}

func TestFormatAttachmentWithoutFilename(t *testing.T) {
	f := NewFormatter([]string{"subject"})

	tx := &Transaction{
		Body: []byte("Subject: unnamed\r\n" +
			"Content-Type: multipart/mixed; boundary=frontier\r\n" +
			"\r\n" +
			"--frontier\r\n" +
			"Content-Type: text/plain\r\n" +
			"\r\n" +
			"body\r\n" +
			"--frontier\r\n" +
			"Content-Type: application/octet-stream\r\n" +
			"Content-Disposition: attachment\r\n" +
			"\r\n" +
			"blob\r\n" +
			"--frontier--\r\n"),
	}

	_, docs := f.Format(tx)
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	if docs[0].Name == "" {
		t.Error("expected a generated name for an unnamed attachment")
	}
}

func TestFormatNoAttachments(t *testing.T) {
	f := NewFormatter([]string{"subject"})

	tx := &Transaction{
		Body: []byte("Subject: plain\r\n\r\njust text\r\n"),
	}

	_, docs := f.Format(tx)
	if len(docs) != 0 {
		t.Errorf("expected no documents, got %d", len(docs))
	}
}

func TestFormatEmptyBody(t *testing.T) {
	f := NewFormatter([]string{"subject"})

	tx := &Transaction{
		Body: []byte("Subject: only headers\r\n\r\n"),
	}

	got, _ := f.Format(tx)
	if got != "Subject: only headers\n" {
		t.Errorf("expected headers without trailing blank line, got %q", got)
	}
}
