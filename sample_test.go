package mailmerge

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteSampleFiles(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	if err := WriteSampleFiles(dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tmpl, err := ParseTemplateFile(filepath.Join(dir, DefaultTemplatePath))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fields := tmpl.Fields()
	wantFields := []string{"email", "name", "number"}
	if len(fields) != len(wantFields) {
		t.Fatalf("Fields: got %v, want %v", fields, wantFields)
	}
	for i := range wantFields {
		if fields[i] != wantFields[i] {
			t.Errorf("Fields[%d]: got %q, want %q", i, fields[i], wantFields[i])
		}
	}

	db, err := OpenDatabase(filepath.Join(dir, DefaultDatabasePath), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer db.Close()

	first, err := db.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first["email"] != "myself@mydomain.com" || first["number"] != "17" {
		t.Errorf("first row: got %v", first)
	}
	second, err := db.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second["email"] != "bob@bobdomain.com" || second["number"] != "42" {
		t.Errorf("second row: got %v", second)
	}
	if _, err := db.Next(); err != io.EOF {
		t.Errorf("error: got %v, want io.EOF", err)
	}

	cfg, err := LoadServerConfig(filepath.Join(dir, DefaultConfigPath))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Transport != TransportSMTP {
		t.Errorf("Transport: got %q, want %q", cfg.Transport, TransportSMTP)
	}
	if cfg.SMTP.Host != "smtp.mydomain.com" {
		t.Errorf("Host: got %q, want %q", cfg.SMTP.Host, "smtp.mydomain.com")
	}
	if cfg.SMTP.Port != 25 {
		t.Errorf("Port: got %d, want 25", cfg.SMTP.Port)
	}
	if cfg.SMTP.Security != SecurityNever {
		t.Errorf("Security: got %q, want %q", cfg.SMTP.Security, SecurityNever)
	}
	if cfg.SMTP.Username != "" {
		t.Errorf("Username: got %q, want empty", cfg.SMTP.Username)
	}
	if cfg.RateLimit != 0 {
		t.Errorf("RateLimit: got %d, want 0", cfg.RateLimit)
	}
}

func TestWriteSampleFiles_RefusesOverwrite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := WriteSampleFiles(dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := WriteSampleFiles(dir)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "refusing to overwrite") {
		t.Errorf("Error: got %q, want a refusal", err)
	}
}

func TestRun_SampleFilesEndToEnd(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := WriteSampleFiles(dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := &bytes.Buffer{}
	cfg := DefaultRunConfig()
	cfg.TemplatePath = filepath.Join(dir, DefaultTemplatePath)
	cfg.DatabasePath = filepath.Join(dir, DefaultDatabasePath)
	cfg.Output = out

	m, err := New(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer m.Close()

	result, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Sent != 1 {
		t.Errorf("Sent: got %d, want 1", result.Sent)
	}

	report := out.String()
	if !strings.Contains(report, ">>> sent message 0") {
		t.Error("report missing send confirmation")
	}
	if !strings.Contains(report, "Limit was 1 messages") {
		t.Error("report missing limit notice")
	}
	if !strings.Contains(report, "This was a dry run") {
		t.Error("report missing dry-run trailer")
	}
}
