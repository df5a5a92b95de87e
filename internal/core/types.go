package core

import (
	"context"
	"fmt"
	"mime"
	"net/mail"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Transport delivers a built email. Implementations cover live delivery
// (SMTP, SES, SendGrid, Mailgun), local capture (mbox) and dry runs; the
// caller cannot tell which variant is active.
type Transport interface {
	// Send delivers a single email and reports the outcome.
	Send(ctx context.Context, email *Email) (*SendResult, error)
}

// Address represents an email address with optional display name.
type Address struct {
	Name  string `json:"name"`  // Display name (optional)
	Email string `json:"email"` // Email address (required)
}

// String returns the formatted email address.
// If Name is provided, returns "Name <email@domain.com>"
// Otherwise returns just "email@domain.com"
func (a Address) String() string {
	if a.Name != "" {
		return mime.QEncoding.Encode("UTF-8", a.Name) + " <" + a.Email + ">"
	}
	return a.Email
}

// Valid checks if the address has a valid email format.
func (a Address) Valid() bool {
	if a.Email == "" {
		return false
	}
	_, err := mail.ParseAddress(a.String())
	return err == nil
}

// ParseAddress parses a single RFC 5322 address, with or without a
// display name.
func ParseAddress(s string) (Address, error) {
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return Address{}, fmt.Errorf("parse address %q: %w", s, err)
	}
	return Address{Name: addr.Name, Email: addr.Address}, nil
}

// ParseAddressList parses a comma-separated RFC 5322 address list.
func ParseAddressList(s string) ([]Address, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parsed, err := mail.ParseAddressList(s)
	if err != nil {
		return nil, fmt.Errorf("parse address list %q: %w", s, err)
	}
	addrs := make([]Address, 0, len(parsed))
	for _, p := range parsed {
		addrs = append(addrs, Address{Name: p.Name, Email: p.Address})
	}
	return addrs, nil
}

// Header is a single message header field. Name keeps the casing it was
// written with.
type Header struct {
	Name  string
	Value string
}

// HeaderList is an ordered list of header fields. Order is significant:
// headers are transmitted exactly as listed.
type HeaderList []Header

// Get returns the value of the first header matching name
// (case-insensitive), or "" if absent.
func (h HeaderList) Get(name string) string {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return f.Value
		}
	}
	return ""
}

// Has reports whether a header with the given name is present
// (case-insensitive).
func (h HeaderList) Has(name string) bool {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return true
		}
	}
	return false
}

// Add appends a header field, preserving existing fields and order.
func (h *HeaderList) Add(name, value string) {
	*h = append(*h, Header{Name: name, Value: value})
}

// Without returns a copy of the list with all headers matching name
// (case-insensitive) removed.
func (h HeaderList) Without(name string) HeaderList {
	out := make(HeaderList, 0, len(h))
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Attachment represents a file attached to the email. The content is read
// in full when the message is built, so a send never touches the
// filesystem.
type Attachment struct {
	// Filename is the name of the file as it will appear in the email.
	Filename string

	// Path is the resolved filesystem path the content was read from.
	Path string

	// ContentType is the MIME content type of the file.
	// If empty, it will be detected from the filename extension.
	ContentType string

	// Content is the raw file content.
	Content []byte
}

// DetectContentType attempts to detect the content type from the filename.
func (a *Attachment) DetectContentType() string {
	if a.ContentType != "" {
		return a.ContentType
	}

	ext := strings.ToLower(filepath.Ext(a.Filename))
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".xls":
		return "application/vnd.ms-excel"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".ppt":
		return "application/vnd.ms-powerpoint"
	case ".pptx":
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".txt":
		return "text/plain"
	case ".html", ".htm":
		return "text/html"
	case ".csv":
		return "text/csv"
	case ".zip":
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}

// Email is a fully built, transmittable message. Headers and Payload hold
// the message exactly as it goes on the wire; the structured fields exist
// for transports whose APIs want addresses and bodies broken out.
//
// Bcc recipients appear in the envelope (Recipients) but never in Headers
// or Payload.
type Email struct {
	From        Address      `json:"from"`        // Envelope and header sender
	To          []Address    `json:"to"`          // Primary recipients
	CC          []Address    `json:"cc"`          // Carbon copy recipients
	BCC         []Address    `json:"bcc"`         // Blind carbon copy recipients
	Subject     string       `json:"subject"`     // Email subject
	TextBody    string       `json:"text_body"`   // Plain text body content
	HTMLBody    string       `json:"html_body"`   // HTML body content
	Attachments []Attachment `json:"attachments"` // File attachments
	Headers     HeaderList   `json:"headers"`     // Payload headers, in wire order
	Payload     []byte       `json:"-"`           // Complete RFC 5322 message
}

// Validate checks if the email has valid structure and required fields.
func (e *Email) Validate() error {
	if !e.From.Valid() {
		return &ValidationError{Field: "from", Message: "invalid or missing sender address"}
	}

	if e.TotalRecipients() == 0 {
		return &ValidationError{Field: "to", Message: "at least one recipient required"}
	}

	for i, to := range e.To {
		if !to.Valid() {
			return &ValidationError{
				Field:   "to",
				Message: "invalid recipient address at index " + strconv.Itoa(i),
			}
		}
	}

	for i, cc := range e.CC {
		if !cc.Valid() {
			return &ValidationError{
				Field:   "cc",
				Message: "invalid CC address at index " + strconv.Itoa(i),
			}
		}
	}

	for i, bcc := range e.BCC {
		if !bcc.Valid() {
			return &ValidationError{
				Field:   "bcc",
				Message: "invalid BCC address at index " + strconv.Itoa(i),
			}
		}
	}

	if len(e.Payload) == 0 {
		return &ValidationError{Field: "payload", Message: "payload is empty"}
	}

	return nil
}

// HasAttachments returns true if the email has any attachments.
func (e *Email) HasAttachments() bool {
	return len(e.Attachments) > 0
}

// TotalRecipients returns the total number of recipients (To + CC + BCC).
func (e *Email) TotalRecipients() int {
	return len(e.To) + len(e.CC) + len(e.BCC)
}

// AllRecipients returns all recipients combined into a single slice.
func (e *Email) AllRecipients() []Address {
	all := make([]Address, 0, e.TotalRecipients())
	all = append(all, e.To...)
	all = append(all, e.CC...)
	all = append(all, e.BCC...)
	return all
}

// Recipients returns the envelope recipient list: every To, CC and BCC
// addr-spec with display names stripped.
func (e *Email) Recipients() []string {
	all := e.AllRecipients()
	out := make([]string, 0, len(all))
	for _, a := range all {
		out = append(out, a.Email)
	}
	return out
}

// SendResult contains the result of sending a single email.
type SendResult struct {
	// MessageID is the identifier assigned by the transport.
	MessageID string

	// Transport is the name of the transport that delivered the email.
	Transport string

	// Timestamp when the email was accepted by the transport.
	Timestamp time.Time

	// Metadata contains transport-specific information.
	Metadata map[string]interface{}
}

// ValidationError represents a validation error with specific field information.
type ValidationError struct {
	// Field is the name of the field that failed validation.
	Field string

	// Message is the validation error message.
	Message string

	// Value is the invalid value (optional).
	Value interface{}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation error in %s: %s (value: %v)", e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// Is implements error matching for errors.Is.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// TransportError represents an error from a delivery transport.
type TransportError struct {
	// Transport is the name of the transport that generated the error.
	Transport string

	// Code is the transport-specific error code.
	Code string

	// Message is the error message from the transport.
	Message string

	// StatusCode is the HTTP status code (for HTTP-based transports).
	StatusCode int

	// Cause is the underlying error that caused this transport error.
	Cause error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("transport %s error [%s] (status: %d): %s",
			e.Transport, e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("transport %s error [%s]: %s", e.Transport, e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// Is implements error matching for errors.Is.
func (e *TransportError) Is(target error) bool {
	te, ok := target.(*TransportError)
	if !ok {
		return false
	}
	return e.Transport == te.Transport && e.Code == te.Code
}

// Constructor functions for errors

// NewTransportError creates a new transport error.
func NewTransportError(transport, code, message string) *TransportError {
	return &TransportError{
		Transport: transport,
		Code:      code,
		Message:   message,
	}
}

// NewTransportErrorWithCause creates a new transport error wrapping an
// underlying error.
func NewTransportErrorWithCause(transport, code, message string, cause error) *TransportError {
	return &TransportError{
		Transport: transport,
		Code:      code,
		Message:   message,
		Cause:     cause,
	}
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewValidationErrorWithValue creates a new validation error with a value.
func NewValidationErrorWithValue(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}
