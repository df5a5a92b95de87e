package mailmerge

import (
	"errors"
	"fmt"
)

// Predefined sentinel errors for common cases.
var (
	// ErrTemplateNotFound indicates the template file was not found.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrDatabaseNotFound indicates the database file was not found.
	ErrDatabaseNotFound = errors.New("database not found")

	// ErrConfigNotFound indicates the server configuration file was not found.
	ErrConfigNotFound = errors.New("server configuration not found")

	// ErrNoRecipients indicates the database contains no data rows.
	ErrNoRecipients = errors.New("no recipients in database")

	// ErrRunClosed indicates the merge has been closed.
	ErrRunClosed = errors.New("merge closed")
)

// DatabaseError represents a malformed or missing data source: an
// unreadable file, a broken header, a ragged row, or a row without a
// usable key column.
type DatabaseError struct {
	// Path is the database file that caused the error.
	Path string

	// Row is the 1-based data row the error occurred on, or 0 when the
	// error concerns the file or header as a whole.
	Row int

	// Message is the error message.
	Message string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *DatabaseError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("database error in %s at row %d: %s", e.Path, e.Row, e.Message)
	}
	return fmt.Sprintf("database error in %s: %s", e.Path, e.Message)
}

// Unwrap returns the underlying error.
func (e *DatabaseError) Unwrap() error {
	return e.Cause
}

// Is implements error matching for errors.Is.
func (e *DatabaseError) Is(target error) bool {
	_, ok := target.(*DatabaseError)
	return ok
}

// MergeError represents a failure combining the template with a row: an
// unresolvable placeholder, or a template that does not parse.
type MergeError struct {
	// Field is the placeholder name that could not be resolved, if any.
	Field string

	// Row is the zero-based message index being rendered, or -1 for
	// errors found while parsing the template itself.
	Row int

	// Message is the error message.
	Message string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *MergeError) Error() string {
	if e.Row < 0 {
		if e.Field != "" {
			return fmt.Sprintf("template parse error: %s %q", e.Message, e.Field)
		}
		return fmt.Sprintf("template parse error: %s", e.Message)
	}
	if e.Field != "" {
		return fmt.Sprintf("merge error at message %d: %s %q", e.Row, e.Message, e.Field)
	}
	return fmt.Sprintf("merge error at message %d: %s", e.Row, e.Message)
}

// Unwrap returns the underlying error.
func (e *MergeError) Unwrap() error {
	return e.Cause
}

// Is implements error matching for errors.Is.
func (e *MergeError) Is(target error) bool {
	_, ok := target.(*MergeError)
	return ok
}

// AttachmentError represents a missing or unreadable attachment file.
type AttachmentError struct {
	// Path is the attachment path as resolved against the template
	// directory.
	Path string

	// Message is the error message.
	Message string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *AttachmentError) Error() string {
	return fmt.Sprintf("attachment error for %s: %s", e.Path, e.Message)
}

// Unwrap returns the underlying error.
func (e *AttachmentError) Unwrap() error {
	return e.Cause
}

// Is implements error matching for errors.Is.
func (e *AttachmentError) Is(target error) bool {
	_, ok := target.(*AttachmentError)
	return ok
}

// SendError represents a transport-level delivery failure: connection
// refused, authentication rejected, recipient rejected. Messages sent
// before the failure stay sent; the run stops here.
type SendError struct {
	// Index is the zero-based index of the message that failed.
	Index int

	// Message is the error message.
	Message string

	// Cause is the underlying transport error.
	Cause error
}

// Error implements the error interface.
func (e *SendError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("send error at message %d: %s", e.Index, e.Message)
	}
	return fmt.Sprintf("send error at message %d: %v", e.Index, e.Cause)
}

// Unwrap returns the underlying error.
func (e *SendError) Unwrap() error {
	return e.Cause
}

// Is implements error matching for errors.Is.
func (e *SendError) Is(target error) bool {
	_, ok := target.(*SendError)
	return ok
}

// NewDatabaseError creates a new database error.
func NewDatabaseError(path string, row int, message string, cause error) *DatabaseError {
	return &DatabaseError{
		Path:    path,
		Row:     row,
		Message: message,
		Cause:   cause,
	}
}

// NewMergeError creates a new merge error for a row being rendered.
func NewMergeError(field string, row int, message string) *MergeError {
	return &MergeError{
		Field:   field,
		Row:     row,
		Message: message,
	}
}

// NewTemplateParseError creates a merge error for a failure in the
// template itself, before any row is involved.
func NewTemplateParseError(field, message string) *MergeError {
	return &MergeError{
		Field:   field,
		Row:     -1,
		Message: message,
	}
}

// NewAttachmentError creates a new attachment error.
func NewAttachmentError(path, message string, cause error) *AttachmentError {
	return &AttachmentError{
		Path:    path,
		Message: message,
		Cause:   cause,
	}
}

// NewSendError creates a new send error.
func NewSendError(index int, cause error) *SendError {
	return &SendError{
		Index: index,
		Cause: cause,
	}
}
