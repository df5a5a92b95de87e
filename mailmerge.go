package mailmerge

import (
	"fmt"

	"github.com/lattiq/mailmerge/internal/core"
	"github.com/lattiq/mailmerge/internal/transports/dryrun"
	"github.com/lattiq/mailmerge/internal/transports/mailgun"
	"github.com/lattiq/mailmerge/internal/transports/mbox"
	"github.com/lattiq/mailmerge/internal/transports/sendgrid"
	"github.com/lattiq/mailmerge/internal/transports/ses"
	"github.com/lattiq/mailmerge/internal/transports/smtp"
)

// Type aliases to re-export core types for the public API.
// This allows users to access types like mailmerge.Email instead of
// core.Email, maintaining a clean public interface while keeping
// implementation details internal.
type (
	Transport       = core.Transport
	Email           = core.Email
	Address         = core.Address
	Header          = core.Header
	HeaderList      = core.HeaderList
	Attachment      = core.Attachment
	SendResult      = core.SendResult
	ValidationError = core.ValidationError
	TransportError  = core.TransportError
)

// Error constructor and address helper functions.
var (
	NewValidationError          = core.NewValidationError
	NewValidationErrorWithValue = core.NewValidationErrorWithValue
	NewTransportError           = core.NewTransportError
	NewTransportErrorWithCause  = core.NewTransportErrorWithCause
	ParseAddress                = core.ParseAddress
	ParseAddressList            = core.ParseAddressList
)

// NewTransport creates the delivery transport the server configuration
// selects. The driver substitutes the dry-run sink itself when the run
// is a dry run.
func NewTransport(cfg ServerConfig) (Transport, error) {
	switch cfg.Transport {
	case TransportSMTP:
		return smtp.NewTransport(smtp.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Security: cfg.SMTP.Security.Normalize().String(),
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
		})
	case TransportDryRun:
		return dryrun.NewTransport(), nil
	case TransportAWSSES:
		return ses.NewTransport(ses.Config{
			Region:           cfg.SES.Region,
			ConfigurationSet: cfg.SES.ConfigurationSet,
			AccessKeyID:      cfg.SES.AccessKeyID,
			SecretAccessKey:  cfg.SES.SecretAccessKey,
		})
	case TransportSendGrid:
		return sendgrid.NewTransport(sendgrid.Config{
			APIKey: cfg.SendGrid.APIKey,
		})
	case TransportMailgun:
		return mailgun.NewTransport(mailgun.Config{
			Domain:  cfg.Mailgun.Domain,
			BaseURL: cfg.Mailgun.BaseURL,
			APIKey:  cfg.Mailgun.APIKey,
		})
	case TransportMbox:
		return mbox.NewTransport(mbox.Config{
			Path: cfg.Mbox.Path,
		})
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", cfg.Transport)
	}
}
