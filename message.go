package mailmerge

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lattiq/mailmerge/internal/core"
)

// Builder assembles rendered messages into transmittable emails. It
// resolves attachments against a base directory, fills in a sender when
// the message has none, stamps a Date header, and produces the complete
// payload bytes the transports put on the wire.
//
// Apart from a generated Date, building the same message twice yields
// byte-identical payloads: the MIME boundary is derived from the message
// content, not from randomness.
type Builder struct {
	// Dir is the directory attachment paths resolve against. Usually
	// the template file's directory.
	Dir string

	// From is the sender used when a message carries no From header.
	From string

	// Now supplies the clock for generated Date headers; nil means
	// time.Now.
	Now func() time.Time
}

// NewBuilder creates a builder resolving attachments under dir and
// defaulting the sender to from.
func NewBuilder(dir, from string) *Builder {
	return &Builder{Dir: dir, From: from}
}

func (b *Builder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

// Build turns a rendered message into a transmittable email.
func (b *Builder) Build(msg *Message) (*core.Email, error) {
	headers := make(core.HeaderList, 0, len(msg.Headers)+4)
	headers = append(headers, msg.Headers...)

	from := headers.Get("From")
	if from == "" {
		if b.From == "" {
			return nil, core.NewValidationError("from", "no sender in template or configuration")
		}
		from = b.From
		headers.Add("From", from)
	}
	sender, err := core.ParseAddress(from)
	if err != nil {
		return nil, core.NewValidationErrorWithValue("from", "unparseable sender address", from)
	}

	to, err := recipientList(headers, "To")
	if err != nil {
		return nil, err
	}
	cc, err := recipientList(headers, "Cc")
	if err != nil {
		return nil, err
	}
	bcc, err := recipientList(headers, "Bcc")
	if err != nil {
		return nil, err
	}

	if !headers.Has("Date") {
		headers.Add("Date", b.now().Format(time.RFC1123Z))
	}

	attachments, err := b.loadAttachments(msg.Attachments)
	if err != nil {
		return nil, err
	}

	mediaType := "text/plain"
	if ct := headers.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return nil, core.NewValidationErrorWithValue("content-type", "unparseable content type", ct)
		}
		mediaType = mt
	}

	email := &core.Email{
		From:        sender,
		To:          to,
		CC:          cc,
		BCC:         bcc,
		Subject:     headers.Get("Subject"),
		Attachments: attachments,
	}
	if mediaType == "text/html" {
		email.HTMLBody = msg.Body
	} else {
		email.TextBody = msg.Body
	}

	// Bcc recipients ride in the envelope only; the transmitted headers
	// never name them. Content headers are re-emitted below.
	wire := headers.Without("Bcc").Without("Content-Type").
		Without("Content-Transfer-Encoding").Without("MIME-Version")

	email.Headers, email.Payload = assemble(wire, mediaType, msg.Body, attachments)

	if err := email.Validate(); err != nil {
		return nil, err
	}
	return email, nil
}

// loadAttachments resolves and reads each attachment path. Relative
// paths resolve against the builder's directory.
func (b *Builder) loadAttachments(paths []string) ([]core.Attachment, error) {
	var attachments []core.Attachment
	for _, raw := range paths {
		path := strings.TrimSpace(raw)
		if path == "" {
			return nil, NewAttachmentError(raw, "empty attachment path", nil)
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(b.Dir, path)
		}

		content, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, NewAttachmentError(path, "file not found", err)
			}
			return nil, NewAttachmentError(path, "cannot read file", err)
		}

		att := core.Attachment{
			Filename: filepath.Base(path),
			Path:     path,
			Content:  content,
		}
		att.ContentType = att.DetectContentType()
		attachments = append(attachments, att)
	}
	return attachments, nil
}

// assemble writes the final wire headers and payload. Lines end with a
// bare \n; the SMTP data writer converts to CRLF on transmission, and
// the same bytes print cleanly on a terminal.
func assemble(wire core.HeaderList, mediaType, body string, attachments []core.Attachment) (core.HeaderList, []byte) {
	charset := "utf-8"
	transferEncoding := "8bit"
	if isASCII(body) {
		charset = "us-ascii"
		transferEncoding = "7bit"
	}

	headers := wire
	headers.Add("MIME-Version", "1.0")

	var payload strings.Builder
	if len(attachments) == 0 {
		headers.Add("Content-Type", contentTypeValue(mediaType, charset))
		headers.Add("Content-Transfer-Encoding", transferEncoding)

		writeHeaders(&payload, headers)
		payload.WriteString("\n")
		payload.WriteString(body)
		return headers, []byte(payload.String())
	}

	boundary := contentBoundary(body, attachments)
	headers.Add("Content-Type", fmt.Sprintf("multipart/mixed; boundary=%q", boundary))

	writeHeaders(&payload, headers)
	payload.WriteString("\n")

	payload.WriteString("--" + boundary + "\n")
	payload.WriteString("Content-Type: " + contentTypeValue(mediaType, charset) + "\n")
	payload.WriteString("Content-Transfer-Encoding: " + transferEncoding + "\n")
	payload.WriteString("\n")
	payload.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		payload.WriteString("\n")
	}

	for _, att := range attachments {
		payload.WriteString("--" + boundary + "\n")
		payload.WriteString("Content-Type: " + att.ContentType + "\n")
		payload.WriteString("Content-Transfer-Encoding: base64\n")
		payload.WriteString(fmt.Sprintf("Content-Disposition: attachment; filename=%q\n", att.Filename))
		payload.WriteString("\n")
		payload.WriteString(wrapBase64(att.Content))
	}
	payload.WriteString("--" + boundary + "--\n")

	return headers, []byte(payload.String())
}

func writeHeaders(b *strings.Builder, headers core.HeaderList) {
	for _, h := range headers {
		b.WriteString(h.Name + ": " + h.Value + "\n")
	}
}

func contentTypeValue(mediaType, charset string) string {
	if strings.HasPrefix(mediaType, "text/") {
		return fmt.Sprintf("%s; charset=%q", mediaType, charset)
	}
	return mediaType
}

// contentBoundary derives the multipart boundary from the message
// content, so identical inputs produce identical payload bytes.
func contentBoundary(body string, attachments []core.Attachment) string {
	h := sha256.New()
	h.Write([]byte(body))
	for _, att := range attachments {
		h.Write([]byte(att.Filename))
		h.Write(att.Content)
	}
	return fmt.Sprintf("================%x", h.Sum(nil)[:12])
}

// wrapBase64 encodes data in base64 folded at 76 columns.
func wrapBase64(data []byte) string {
	enc := base64.StdEncoding.EncodeToString(data)
	var b strings.Builder
	for len(enc) > 76 {
		b.WriteString(enc[:76])
		b.WriteString("\n")
		enc = enc[76:]
	}
	b.WriteString(enc)
	b.WriteString("\n")
	return b.String()
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7F {
			return false
		}
	}
	return true
}

// recipientList parses the named header's address list, tolerating an
// absent header.
func recipientList(headers core.HeaderList, name string) ([]core.Address, error) {
	value := headers.Get(name)
	if value == "" {
		return nil, nil
	}
	addrs, err := core.ParseAddressList(value)
	if err != nil {
		return nil, core.NewValidationErrorWithValue(strings.ToLower(name), "unparseable address list", value)
	}
	return addrs, nil
}
