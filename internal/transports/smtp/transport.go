package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/lattiq/mailmerge/internal/core"
)

const transportName = "smtp"

// Security modes for the connection.
const (
	SecurityNever    = "never"    // plain connection, no TLS
	SecuritySTARTTLS = "starttls" // plain connection upgraded via STARTTLS
	SecuritySSLTLS   = "ssl/tls"  // implicit TLS from the first byte
)

// Config holds the SMTP endpoint settings.
type Config struct {
	Host     string
	Port     int
	Security string
	Username string
	Password string
}

// Transport delivers email over a live SMTP session. The connection is
// dialed lazily on the first send and reused until Close, which issues
// QUIT. Not safe for concurrent use; the merge driver sends one message
// at a time.
type Transport struct {
	config Config
	client *smtp.Client
}

// NewTransport validates the endpoint settings and returns an
// unconnected transport.
func NewTransport(config Config) (*Transport, error) {
	if config.Host == "" {
		return nil, core.NewValidationError("host", "SMTP host is required")
	}
	if config.Port < 1 || config.Port > 65535 {
		return nil, core.NewValidationError("port", "invalid port number: "+strconv.Itoa(config.Port))
	}
	switch config.Security {
	case SecurityNever, SecuritySTARTTLS, SecuritySSLTLS:
	default:
		return nil, core.NewValidationError("security", "invalid security mode: "+config.Security)
	}

	return &Transport{config: config}, nil
}

// Send transmits the email's envelope (MAIL FROM, one RCPT TO per
// recipient) and payload (DATA) over the shared session. The data
// writer handles dot-stuffing and CRLF conversion.
func (t *Transport) Send(ctx context.Context, email *core.Email) (*core.SendResult, error) {
	if err := email.Validate(); err != nil {
		return nil, err
	}

	client, err := t.connect(ctx)
	if err != nil {
		return nil, err
	}

	if err := client.Mail(email.From.Email); err != nil {
		return nil, core.NewTransportErrorWithCause(transportName, "sender_rejected",
			"MAIL FROM rejected for "+email.From.Email, err)
	}
	for _, rcpt := range email.Recipients() {
		if err := client.Rcpt(rcpt); err != nil {
			return nil, core.NewTransportErrorWithCause(transportName, "recipient_rejected",
				"RCPT TO rejected for "+rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return nil, core.NewTransportErrorWithCause(transportName, "data_error", "DATA command failed", err)
	}
	if _, err := w.Write(email.Payload); err != nil {
		w.Close()
		return nil, core.NewTransportErrorWithCause(transportName, "data_error", "payload transmission failed", err)
	}
	if err := w.Close(); err != nil {
		return nil, core.NewTransportErrorWithCause(transportName, "data_error", "message not accepted", err)
	}

	// SMTP assigns no message ID; synthesize one for the result.
	return &core.SendResult{
		MessageID: fmt.Sprintf("%d@%s", time.Now().UnixNano(), t.config.Host),
		Transport: transportName,
		Timestamp: time.Now(),
	}, nil
}

// connect dials the endpoint, negotiates TLS per the security mode, and
// authenticates when a username is configured. The established client
// is cached for subsequent sends.
func (t *Transport) connect(ctx context.Context) (*smtp.Client, error) {
	if t.client != nil {
		return t.client, nil
	}

	addr := net.JoinHostPort(t.config.Host, strconv.Itoa(t.config.Port))
	tlsConfig := &tls.Config{
		ServerName: t.config.Host,
		MinVersion: tls.VersionTLS12,
	}

	var conn net.Conn
	var err error
	if t.config.Security == SecuritySSLTLS {
		dialer := &tls.Dialer{NetDialer: &net.Dialer{}, Config: tlsConfig}
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	} else {
		dialer := &net.Dialer{}
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, core.NewTransportErrorWithCause(transportName, "connection_error",
			"failed to connect to "+addr, err)
	}

	client, err := smtp.NewClient(conn, t.config.Host)
	if err != nil {
		conn.Close()
		return nil, core.NewTransportErrorWithCause(transportName, "connection_error",
			"SMTP greeting failed", err)
	}

	if t.config.Security == SecuritySTARTTLS {
		if err := client.StartTLS(tlsConfig); err != nil {
			client.Close()
			return nil, core.NewTransportErrorWithCause(transportName, "tls_error",
				"STARTTLS negotiation failed", err)
		}
	}

	if t.config.Username != "" {
		auth := smtp.PlainAuth("", t.config.Username, t.config.Password, t.config.Host)
		if err := client.Auth(auth); err != nil {
			client.Close()
			return nil, core.NewTransportErrorWithCause(transportName, "auth_error",
				"authentication failed for "+t.config.Username, err)
		}
	}

	t.client = client
	return client, nil
}

// Close ends the SMTP session with QUIT. Closing an unconnected
// transport is a no-op.
func (t *Transport) Close() error {
	if t.client == nil {
		return nil
	}
	client := t.client
	t.client = nil

	if err := client.Quit(); err != nil {
		return fmt.Errorf("smtp quit: %w", err)
	}
	return nil
}
