package mbox

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/emersion/go-mbox"

	"github.com/lattiq/mailmerge/internal/core"
)

const transportName = "mbox"

// Config holds the mbox settings.
type Config struct {
	// Path is the mbox file messages are appended to. Created when
	// missing.
	Path string
}

// Transport appends each message to a local mbox file instead of
// delivering it, preserving the payload bytes for archival or offline
// inspection. The file is opened lazily on the first send and held
// until Close.
type Transport struct {
	path   string
	file   *os.File
	writer *mbox.Writer
}

// NewTransport creates an mbox transport.
func NewTransport(config Config) (*Transport, error) {
	if config.Path == "" {
		return nil, core.NewValidationError("path", "mbox output path is required")
	}

	return &Transport{path: config.Path}, nil
}

// Send appends the payload as one mbox entry, separated by a From line
// carrying the envelope sender and the append time.
func (t *Transport) Send(ctx context.Context, email *core.Email) (*core.SendResult, error) {
	if err := email.Validate(); err != nil {
		return nil, err
	}

	if t.writer == nil {
		f, err := os.OpenFile(t.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, core.NewTransportErrorWithCause(transportName, "open_error",
				"cannot open mbox file "+t.path, err)
		}
		t.file = f
		t.writer = mbox.NewWriter(f)
	}

	now := time.Now()
	mw, err := t.writer.CreateMessage(email.From.Email, now)
	if err != nil {
		return nil, core.NewTransportErrorWithCause(transportName, "write_error",
			"cannot start mbox entry", err)
	}
	if _, err := mw.Write(email.Payload); err != nil {
		return nil, core.NewTransportErrorWithCause(transportName, "write_error",
			"cannot append to "+t.path, err)
	}

	return &core.SendResult{
		MessageID: fmt.Sprintf("%d@mbox", now.UnixNano()),
		Transport: transportName,
		Timestamp: now,
	}, nil
}

// Close flushes the final entry and closes the file.
func (t *Transport) Close() error {
	if t.writer == nil {
		return nil
	}

	werr := t.writer.Close()
	ferr := t.file.Close()
	t.writer = nil
	t.file = nil

	if werr != nil {
		return fmt.Errorf("close mbox: %w", werr)
	}
	if ferr != nil {
		return fmt.Errorf("close mbox: %w", ferr)
	}
	return nil
}
