package mailmerge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lattiq/mailmerge/internal/core"
	"github.com/lattiq/mailmerge/internal/transports/dryrun"
)

const tracerName = "github.com/lattiq/mailmerge"

// Merge drives the pipeline: it reads database rows, renders each one
// through the template, builds the transmittable email, and hands it to
// the transport, honoring the resume offset, the send limit, and the
// rate limit. Processing is strictly sequential — one row is fully
// rendered, built, and sent before the next is read.
//
// A dry run walks the identical code path and produces the identical
// report; only the transport differs.
type Merge struct {
	config    RunConfig
	transport core.Transport
	tracer    trace.Tracer
	out       io.Writer

	mu     sync.Mutex
	closed bool
}

// RunResult summarizes a completed run.
type RunResult struct {
	// Sent counts messages accepted by the transport.
	Sent int

	// Skipped counts rows left unprocessed because the send limit was
	// reached before the database was exhausted.
	Skipped int

	// DryRun reports whether the run used the dry-run sink.
	DryRun bool
}

// New creates a merge run from the given configuration. Options are
// applied on top of cfg. The transport is chosen here: a dry run always
// uses the dry-run sink; otherwise the server configuration (or the
// WithTransport option) decides.
func New(cfg RunConfig, opts ...Option) (*Merge, error) {
	m := &Merge{
		config: cfg,
		tracer: otel.Tracer(tracerName),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.config.Output == nil {
		m.config.Output = DefaultRunConfig().Output
	}
	if m.out == nil {
		m.out = m.config.Output
	}

	if err := m.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	switch {
	case m.config.DryRun:
		m.transport = dryrun.NewTransport()
	case m.transport == nil:
		transport, err := NewTransport(m.config.Server)
		if err != nil {
			return nil, err
		}
		m.transport = transport
	}

	return m, nil
}

// Run executes the merge: parse the template, then for each database
// row render, build, and send, reporting each message on the output
// writer. The first error of any kind halts the run; messages already
// sent stay sent.
func (m *Merge) Run(ctx context.Context) (*RunResult, error) {
	ctx, span := m.tracer.Start(ctx, "mailmerge.Merge.Run",
		trace.WithAttributes(
			attribute.String("mailmerge.template", m.config.TemplatePath),
			attribute.String("mailmerge.database", m.config.DatabasePath),
			attribute.Bool("mailmerge.dry_run", m.config.DryRun),
			attribute.Int("mailmerge.limit", m.config.Limit),
			attribute.Int("mailmerge.resume", m.config.Resume),
		))
	defer span.End()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, fail(span, ErrRunClosed)
	}
	m.mu.Unlock()

	tmpl, err := ParseTemplateFile(m.config.TemplatePath)
	if err != nil {
		return nil, fail(span, err)
	}

	db, err := OpenDatabase(m.config.DatabasePath, m.config.KeyColumn)
	if err != nil {
		return nil, fail(span, err)
	}
	defer db.Close()

	builder := NewBuilder(tmpl.Dir(), m.config.Server.From)
	limiter := NewRateLimiter(m.config.Server.RateLimit)
	result := &RunResult{DryRun: m.config.DryRun}

	index := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, fail(span, err)
		}

		row, err := db.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fail(span, err)
		}

		// Rows before the resume point are read but not rendered. Rows
		// after the limit is reached are still read, so a malformed row
		// fails the run no matter where it sits.
		if index < m.config.Resume-1 {
			index++
			continue
		}
		if m.config.Limit > 0 && result.Sent == m.config.Limit {
			result.Skipped++
			index++
			continue
		}

		msg, err := tmpl.Render(row, index)
		if err != nil {
			return nil, fail(span, err)
		}

		email, err := builder.Build(msg)
		if err != nil {
			return nil, fail(span, err)
		}

		fmt.Fprintf(m.out, ">>> message %d\n", index)
		m.out.Write(email.Payload)
		if n := len(email.Payload); n == 0 || email.Payload[n-1] != '\n' {
			fmt.Fprintln(m.out)
		}

		if err := limiter.Wait(ctx); err != nil {
			return nil, fail(span, err)
		}
		if err := m.send(ctx, index, email); err != nil {
			return nil, fail(span, err)
		}

		fmt.Fprintf(m.out, ">>> sent message %d\n", index)
		result.Sent++
		index++
	}

	if index == 0 {
		return nil, fail(span, fmt.Errorf("%w: %s", ErrNoRecipients, m.config.DatabasePath))
	}

	switch {
	case m.config.Limit == 0:
		fmt.Fprintf(m.out, ">>> No limit was set.  Processed all %d messages.\n", result.Sent)
	case result.Sent == m.config.Limit:
		fmt.Fprintf(m.out, ">>> Limit was %d messages.", m.config.Limit)
		if result.Skipped > 0 {
			fmt.Fprintf(m.out, "  Skipped %d rows.", result.Skipped)
		}
		fmt.Fprintf(m.out, "  To remove the limit, use the --no-limit option.\n")
	}
	if m.config.DryRun {
		fmt.Fprintf(m.out, ">>> This was a dry run.  To send messages, use the --no-dry-run option.\n")
	}

	span.SetAttributes(
		attribute.Int("mailmerge.sent", result.Sent),
		attribute.Int("mailmerge.skipped", result.Skipped),
	)
	span.SetStatus(codes.Ok, "")
	return result, nil
}

// send delivers one built email through the transport, wrapping any
// transport failure with the message index.
func (m *Merge) send(ctx context.Context, index int, email *core.Email) error {
	ctx, span := m.tracer.Start(ctx, "mailmerge.Merge.Send",
		trace.WithAttributes(
			attribute.Int("mailmerge.message_index", index),
			attribute.Int("mailmerge.recipients", email.TotalRecipients()),
			attribute.Bool("mailmerge.dry_run", m.config.DryRun),
		))
	defer span.End()

	result, err := m.transport.Send(ctx, email)
	if err != nil {
		return fail(span, NewSendError(index, err))
	}

	span.SetAttributes(
		attribute.String("mailmerge.transport", result.Transport),
		attribute.String("mailmerge.message_id", result.MessageID),
	)
	span.SetStatus(codes.Ok, "")
	return nil
}

// Transport exposes the active transport, mainly for inspection in
// tests.
func (m *Merge) Transport() core.Transport {
	return m.transport
}

// Config returns a copy of the effective run configuration.
func (m *Merge) Config() RunConfig {
	return m.config
}

// Close releases the transport's resources. A live SMTP transport quits
// its connection; most other transports hold nothing. Close is
// idempotent, and a closed merge refuses further runs.
func (m *Merge) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	if closer, ok := m.transport.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("close transport: %w", err)
		}
	}
	return nil
}

// fail records err on the span and marks it failed.
func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
