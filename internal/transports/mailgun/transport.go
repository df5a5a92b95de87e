package mailgun

import (
	"context"
	"strings"
	"time"

	"github.com/mailgun/mailgun-go/v4"

	"github.com/lattiq/mailmerge/internal/core"
)

const transportName = "mailgun"

// reservedHeaders are carried by the structured message fields; adding
// them again as custom headers would duplicate them on the wire.
var reservedHeaders = map[string]struct{}{
	"from":                      {},
	"to":                        {},
	"cc":                        {},
	"bcc":                       {},
	"subject":                   {},
	"content-type":              {},
	"content-transfer-encoding": {},
	"mime-version":              {},
}

// Config holds the Mailgun settings.
type Config struct {
	// Domain is the Mailgun sending domain.
	Domain string

	// BaseURL overrides the API base, e.g. for the EU region.
	BaseURL string

	// APIKey is the private API key.
	APIKey string
}

// Transport delivers email through the Mailgun messages API.
type Transport struct {
	client mailgun.Mailgun
}

// NewTransport creates a Mailgun transport.
func NewTransport(config Config) (*Transport, error) {
	if config.APIKey == "" {
		return nil, core.NewValidationError("api_key", "Mailgun API key is required")
	}
	if config.Domain == "" {
		return nil, core.NewValidationError("domain", "Mailgun domain is required")
	}

	client := mailgun.NewMailgun(config.Domain, config.APIKey)
	if config.BaseURL != "" {
		client.SetAPIBase(config.BaseURL)
	}

	return &Transport{client: client}, nil
}

// Send maps the email onto a Mailgun message: recipients and bodies
// structurally, attachments from their buffered content, remaining
// headers passed through.
func (t *Transport) Send(ctx context.Context, email *core.Email) (*core.SendResult, error) {
	if err := email.Validate(); err != nil {
		return nil, err
	}

	to := make([]string, 0, len(email.To))
	for _, recipient := range email.To {
		to = append(to, recipient.String())
	}

	message := mailgun.NewMessage(email.From.String(), email.Subject, email.TextBody, to...)
	for _, cc := range email.CC {
		message.AddCC(cc.String())
	}
	for _, bcc := range email.BCC {
		message.AddBCC(bcc.String())
	}

	if email.HTMLBody != "" {
		message.SetHTML(email.HTMLBody)
	}

	for _, h := range email.Headers {
		if _, reserved := reservedHeaders[strings.ToLower(h.Name)]; reserved {
			continue
		}
		message.AddHeader(h.Name, h.Value)
	}

	for _, att := range email.Attachments {
		message.AddBufferAttachment(att.Filename, att.Content)
	}

	mes, id, err := t.client.Send(ctx, message)
	if err != nil {
		return nil, core.NewTransportErrorWithCause(transportName, "send_failed", err.Error(), err)
	}

	return &core.SendResult{
		MessageID: id,
		Transport: transportName,
		Timestamp: time.Now(),
		Metadata: map[string]interface{}{
			"message": mes,
		},
	}, nil
}
