package sendgrid

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/lattiq/mailmerge/internal/core"
)

const transportName = "sendgrid"

// reservedHeaders are set through the structured API and rejected by
// SendGrid when they also appear in the custom header map.
var reservedHeaders = map[string]struct{}{
	"from":                      {},
	"to":                        {},
	"cc":                        {},
	"bcc":                       {},
	"subject":                   {},
	"reply-to":                  {},
	"content-type":              {},
	"content-transfer-encoding": {},
	"mime-version":              {},
}

// Config holds the SendGrid settings.
type Config struct {
	APIKey string
}

// Transport delivers email through the SendGrid v3 mail-send API.
type Transport struct {
	client *sendgrid.Client
}

// NewTransport creates a SendGrid transport.
func NewTransport(config Config) (*Transport, error) {
	if config.APIKey == "" {
		return nil, core.NewValidationError("api_key", "SendGrid API key is required")
	}

	return &Transport{client: sendgrid.NewSendClient(config.APIKey)}, nil
}

// Send maps the email onto SendGrid's structured request: recipients as
// a personalization, bodies as content parts, attachments base64
// encoded, remaining headers passed through.
func (t *Transport) Send(ctx context.Context, email *core.Email) (*core.SendResult, error) {
	if err := email.Validate(); err != nil {
		return nil, err
	}

	message := mail.NewV3Mail()
	message.SetFrom(mail.NewEmail(email.From.Name, email.From.Email))
	message.Subject = email.Subject

	personalization := mail.NewPersonalization()
	for _, recipient := range email.To {
		personalization.AddTos(mail.NewEmail(recipient.Name, recipient.Email))
	}
	for _, recipient := range email.CC {
		personalization.AddCCs(mail.NewEmail(recipient.Name, recipient.Email))
	}
	for _, recipient := range email.BCC {
		personalization.AddBCCs(mail.NewEmail(recipient.Name, recipient.Email))
	}
	message.AddPersonalizations(personalization)

	if email.TextBody != "" {
		message.AddContent(mail.NewContent("text/plain", email.TextBody))
	}
	if email.HTMLBody != "" {
		message.AddContent(mail.NewContent("text/html", email.HTMLBody))
	}

	if replyTo := email.Headers.Get("Reply-To"); replyTo != "" {
		if addr, err := core.ParseAddress(replyTo); err == nil {
			message.SetReplyTo(mail.NewEmail(addr.Name, addr.Email))
		}
	}
	for _, h := range email.Headers {
		if _, reserved := reservedHeaders[strings.ToLower(h.Name)]; reserved {
			continue
		}
		message.SetHeader(h.Name, h.Value)
	}

	for _, att := range email.Attachments {
		attachment := mail.NewAttachment()
		attachment.SetContent(base64.StdEncoding.EncodeToString(att.Content))
		attachment.SetType(att.ContentType)
		attachment.SetFilename(att.Filename)
		attachment.SetDisposition("attachment")
		message.AddAttachment(attachment)
	}

	response, err := t.client.SendWithContext(ctx, message)
	if err != nil {
		return nil, core.NewTransportErrorWithCause(transportName, "send_error",
			"failed to send email", err)
	}
	if response.StatusCode >= 400 {
		return nil, &core.TransportError{
			Transport:  transportName,
			Code:       "api_error",
			Message:    response.Body,
			StatusCode: response.StatusCode,
		}
	}

	// SendGrid reports the assigned ID in a response header.
	messageID := ""
	if ids := response.Headers["X-Message-Id"]; len(ids) > 0 {
		messageID = ids[0]
	}

	return &core.SendResult{
		MessageID: messageID,
		Transport: transportName,
		Timestamp: time.Now(),
	}, nil
}
