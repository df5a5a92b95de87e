package mailmerge

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/lattiq/mailmerge/internal/core"
)

// Attachment declarations use this header name inside the template's
// header block. The header is consumed during parsing and never appears
// in the built message.
const attachmentHeader = "Attachment"

// Placeholder delimiters. A placeholder is the pair wrapped around a
// database column name, e.g. {{email}}.
const (
	placeholderOpen  = "{{"
	placeholderClose = "}}"
)

// Template is a parsed message template: an ordered header block, a body,
// and the attachment declarations lifted out of the headers. Values still
// contain their placeholders; Render substitutes them per row.
//
// Parsing happens in two phases. ParseTemplate splits the text into
// structured headers and body and verifies that every placeholder is
// well-formed; Render resolves placeholders against a row and fails on
// the first field the row does not provide.
type Template struct {
	// Path is the file the template was read from, or "" when parsed
	// from memory.
	Path string

	// Headers holds the template's header fields with casing, order and
	// value whitespace preserved.
	Headers core.HeaderList

	// Body is the message body text.
	Body string

	// Attachments holds the raw attachment declarations in order. Paths
	// are not resolved until the message is built.
	Attachments []string
}

// ParseTemplateFile reads and parses a template file.
func ParseTemplateFile(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, path)
		}
		return nil, fmt.Errorf("read template %s: %w", path, err)
	}

	tmpl, err := ParseTemplate(string(data))
	if err != nil {
		return nil, err
	}
	tmpl.Path = path
	return tmpl, nil
}

// ParseTemplate parses template text into its header block and body.
// The header block is a run of "Name: value" lines ending at the first
// blank line; everything after that line is the body. Header names are
// case-insensitive; the reserved Attachment header may repeat and is
// collected separately.
func ParseTemplate(text string) (*Template, error) {
	text = strings.TrimPrefix(text, "﻿")
	text = strings.ReplaceAll(text, "\r\n", "\n")

	tmpl := &Template{}

	lines := strings.Split(text, "\n")
	body := ""
	for i, line := range lines {
		if line == "" {
			body = strings.Join(lines[i+1:], "\n")
			break
		}

		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, NewTemplateParseError("", fmt.Sprintf("header line %d has no colon", i+1))
		}
		if name == "" || strings.ContainsAny(name, " \t") {
			return nil, NewTemplateParseError("", fmt.Sprintf("header line %d has a malformed name", i+1))
		}
		value = strings.TrimLeft(value, " \t")

		if strings.EqualFold(name, attachmentHeader) {
			tmpl.Attachments = append(tmpl.Attachments, value)
			continue
		}
		tmpl.Headers.Add(name, value)
	}
	tmpl.Body = body

	for _, h := range tmpl.Headers {
		if err := checkPlaceholders(h.Value); err != nil {
			return nil, NewTemplateParseError("", fmt.Sprintf("header %s: %v", h.Name, err))
		}
	}
	for _, a := range tmpl.Attachments {
		if err := checkPlaceholders(a); err != nil {
			return nil, NewTemplateParseError("", fmt.Sprintf("attachment declaration: %v", err))
		}
	}
	if err := checkPlaceholders(tmpl.Body); err != nil {
		return nil, NewTemplateParseError("", fmt.Sprintf("body: %v", err))
	}

	return tmpl, nil
}

// Dir returns the directory attachment paths resolve against: the
// template file's directory, or the working directory for in-memory
// templates.
func (t *Template) Dir() string {
	if t.Path == "" {
		return "."
	}
	return filepath.Dir(t.Path)
}

// Fields returns the set of placeholder names the template references,
// in first-appearance order.
func (t *Template) Fields() []string {
	seen := make(map[string]bool)
	var fields []string
	collect := func(s string) {
		for _, f := range scanPlaceholders(s) {
			if !seen[f] {
				seen[f] = true
				fields = append(fields, f)
			}
		}
	}
	for _, h := range t.Headers {
		collect(h.Value)
	}
	for _, a := range t.Attachments {
		collect(a)
	}
	collect(t.Body)
	return fields
}

// Render substitutes every placeholder in the template's headers,
// attachment declarations and body with values from row. index is the
// zero-based message index, used in error reporting. Rendering never
// mutates the template; given the same row it always produces identical
// output.
func (t *Template) Render(row Row, index int) (*Message, error) {
	msg := &Message{
		Row:     index,
		Headers: make(core.HeaderList, 0, len(t.Headers)),
	}

	for _, h := range t.Headers {
		value, err := substitute(h.Value, row, index)
		if err != nil {
			return nil, err
		}
		msg.Headers.Add(h.Name, value)
	}

	for _, a := range t.Attachments {
		path, err := substitute(a, row, index)
		if err != nil {
			return nil, err
		}
		msg.Attachments = append(msg.Attachments, path)
	}

	body, err := substitute(t.Body, row, index)
	if err != nil {
		return nil, err
	}
	msg.Body = body

	return msg, nil
}

// Message is one rendered message: the template with one row's values
// substituted in. Attachment paths are still raw; the builder resolves
// and reads them.
type Message struct {
	// Headers holds the rendered header fields in template order.
	Headers core.HeaderList

	// Body is the rendered body text.
	Body string

	// Attachments holds the rendered attachment paths.
	Attachments []string

	// Row is the zero-based message index this message was rendered
	// from.
	Row int
}

// substitute replaces each placeholder in s with the row's value for the
// named column. The first reference to a column the row does not carry
// fails the render.
func substitute(s string, row Row, index int) (string, error) {
	var b strings.Builder
	for {
		open := strings.Index(s, placeholderOpen)
		if open < 0 {
			b.WriteString(s)
			return b.String(), nil
		}
		b.WriteString(s[:open])
		rest := s[open+len(placeholderOpen):]

		end := strings.Index(rest, placeholderClose)
		if end < 0 {
			return "", NewMergeError("", index, "unterminated placeholder")
		}
		field := strings.Trim(rest[:end], " \t")
		if field == "" {
			return "", NewMergeError("", index, "empty placeholder")
		}

		value, ok := row.Get(field)
		if !ok {
			return "", NewMergeError(field, index, "no database field")
		}
		b.WriteString(value)
		s = rest[end+len(placeholderClose):]
	}
}

// checkPlaceholders verifies every placeholder in s is properly
// delimited and names a field.
func checkPlaceholders(s string) error {
	for {
		open := strings.Index(s, placeholderOpen)
		if open < 0 {
			return nil
		}
		rest := s[open+len(placeholderOpen):]
		end := strings.Index(rest, placeholderClose)
		if end < 0 {
			return errors.New("unterminated placeholder")
		}
		if strings.Trim(rest[:end], " \t") == "" {
			return errors.New("empty placeholder")
		}
		s = rest[end+len(placeholderClose):]
	}
}

// scanPlaceholders returns the placeholder names in s, in order,
// skipping malformed spans.
func scanPlaceholders(s string) []string {
	var fields []string
	for {
		open := strings.Index(s, placeholderOpen)
		if open < 0 {
			return fields
		}
		rest := s[open+len(placeholderOpen):]
		end := strings.Index(rest, placeholderClose)
		if end < 0 {
			return fields
		}
		if f := strings.Trim(rest[:end], " \t"); f != "" {
			fields = append(fields, f)
		}
		s = rest[end+len(placeholderClose):]
	}
}
