package mailmerge

import (
	"errors"
	"os"
	"strings"
	"testing"
)

// mailmergeEnvKeys lists every environment variable the configuration
// reads. Tests clear them all so the host environment never leaks in.
var mailmergeEnvKeys = []string{
	"MAILMERGE_TRANSPORT",
	"MAILMERGE_FROM",
	"MAILMERGE_RATELIMIT",
	"MAILMERGE_SMTP_HOST",
	"MAILMERGE_SMTP_PORT",
	"MAILMERGE_SMTP_SECURITY",
	"MAILMERGE_SMTP_USERNAME",
	"MAILMERGE_SMTP_PASSWORD",
	"MAILMERGE_SES_REGION",
	"MAILMERGE_SES_CONFIGURATION_SET",
	"MAILMERGE_SES_ACCESS_KEY_ID",
	"MAILMERGE_SES_SECRET_ACCESS_KEY",
	"MAILMERGE_SENDGRID_API_KEY",
	"MAILMERGE_MAILGUN_DOMAIN",
	"MAILMERGE_MAILGUN_BASE_URL",
	"MAILMERGE_MAILGUN_API_KEY",
	"MAILMERGE_MBOX_PATH",
}

// clearEnv removes every mailmerge variable for the duration of the
// test. Setenv first so the original value is restored on cleanup.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range mailmergeEnvKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestDefaultRunConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultRunConfig()
	if cfg.TemplatePath != DefaultTemplatePath {
		t.Errorf("TemplatePath: got %q, want %q", cfg.TemplatePath, DefaultTemplatePath)
	}
	if cfg.DatabasePath != DefaultDatabasePath {
		t.Errorf("DatabasePath: got %q, want %q", cfg.DatabasePath, DefaultDatabasePath)
	}
	if cfg.KeyColumn != DefaultKeyColumn {
		t.Errorf("KeyColumn: got %q, want %q", cfg.KeyColumn, DefaultKeyColumn)
	}
	if !cfg.DryRun {
		t.Error("DryRun: got false, want true")
	}
	if cfg.Limit != 1 {
		t.Errorf("Limit: got %d, want 1", cfg.Limit)
	}
	if cfg.Resume != 1 {
		t.Errorf("Resume: got %d, want 1", cfg.Resume)
	}
	if cfg.Output != os.Stdout {
		t.Error("Output: got a different writer, want os.Stdout")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: got %v, want nil", err)
	}
}

func TestDefaultServerConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultServerConfig()
	if cfg.Transport != TransportSMTP {
		t.Errorf("Transport: got %q, want %q", cfg.Transport, TransportSMTP)
	}
	if cfg.SMTP.Host != "localhost" {
		t.Errorf("Host: got %q, want %q", cfg.SMTP.Host, "localhost")
	}
	if cfg.SMTP.Port != 25 {
		t.Errorf("Port: got %d, want 25", cfg.SMTP.Port)
	}
	if cfg.SMTP.Security != SecurityNever {
		t.Errorf("Security: got %q, want %q", cfg.SMTP.Security, SecurityNever)
	}
	if cfg.RateLimit != 0 {
		t.Errorf("RateLimit: got %d, want 0", cfg.RateLimit)
	}
}

func TestLoadServerConfig(t *testing.T) {
	clearEnv(t)

	content := `transport: smtp
from: Events Desk <events@example.com>
ratelimit: 30
smtp:
  host: mail.example.com
  port: 587
  security: starttls
  username: sender
`
	path := writeTestFile(t, t.TempDir(), "mailmerge_server.conf", content)

	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Transport != TransportSMTP {
		t.Errorf("Transport: got %q, want %q", cfg.Transport, TransportSMTP)
	}
	if cfg.From != "Events Desk <events@example.com>" {
		t.Errorf("From: got %q", cfg.From)
	}
	if cfg.RateLimit != 30 {
		t.Errorf("RateLimit: got %d, want 30", cfg.RateLimit)
	}
	if cfg.SMTP.Host != "mail.example.com" {
		t.Errorf("Host: got %q, want %q", cfg.SMTP.Host, "mail.example.com")
	}
	if cfg.SMTP.Port != 587 {
		t.Errorf("Port: got %d, want 587", cfg.SMTP.Port)
	}
	if cfg.SMTP.Security != SecuritySTARTTLS {
		t.Errorf("Security: got %q, want %q", cfg.SMTP.Security, SecuritySTARTTLS)
	}
	if cfg.SMTP.Username != "sender" {
		t.Errorf("Username: got %q, want %q", cfg.SMTP.Username, "sender")
	}
	if cfg.SMTP.Password != "" {
		t.Errorf("Password: got %q, want empty", cfg.SMTP.Password)
	}
}

func TestLoadServerConfig_AppliesDefaults(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "minimal file", content: "transport: smtp\n"},
		{name: "empty file", content: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)

			path := writeTestFile(t, t.TempDir(), "mailmerge_server.conf", tt.content)
			cfg, err := LoadServerConfig(path)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.Transport != TransportSMTP {
				t.Errorf("Transport: got %q, want %q", cfg.Transport, TransportSMTP)
			}
			if cfg.SMTP.Host != "localhost" {
				t.Errorf("Host: got %q, want %q", cfg.SMTP.Host, "localhost")
			}
			if cfg.SMTP.Port != 25 {
				t.Errorf("Port: got %d, want 25", cfg.SMTP.Port)
			}
			if cfg.SMTP.Security != SecurityNever {
				t.Errorf("Security: got %q, want %q", cfg.SMTP.Security, SecurityNever)
			}
		})
	}
}

func TestLoadServerConfig_EnvOverridesFile(t *testing.T) {
	clearEnv(t)

	content := `transport: smtp
smtp:
  host: mail.example.com
  port: 587
  security: starttls
`
	path := writeTestFile(t, t.TempDir(), "mailmerge_server.conf", content)

	t.Setenv("MAILMERGE_SMTP_HOST", "relay.example.net")
	t.Setenv("MAILMERGE_SMTP_PORT", "2525")
	t.Setenv("MAILMERGE_SMTP_PASSWORD", "hunter2")

	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SMTP.Host != "relay.example.net" {
		t.Errorf("Host: got %q, want %q", cfg.SMTP.Host, "relay.example.net")
	}
	if cfg.SMTP.Port != 2525 {
		t.Errorf("Port: got %d, want 2525", cfg.SMTP.Port)
	}
	if cfg.SMTP.Password != "hunter2" {
		t.Errorf("Password: got %q, want %q", cfg.SMTP.Password, "hunter2")
	}
	if cfg.SMTP.Security != SecuritySTARTTLS {
		t.Errorf("Security: got %q, want %q", cfg.SMTP.Security, SecuritySTARTTLS)
	}
}

func TestLoadServerConfig_EnvOnlyTransport(t *testing.T) {
	clearEnv(t)

	path := writeTestFile(t, t.TempDir(), "mailmerge_server.conf", "")

	t.Setenv("MAILMERGE_TRANSPORT", "mbox")
	t.Setenv("MAILMERGE_MBOX_PATH", "outbox.mbox")

	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Transport != TransportMbox {
		t.Errorf("Transport: got %q, want %q", cfg.Transport, TransportMbox)
	}
	if cfg.Mbox.Path != "outbox.mbox" {
		t.Errorf("Path: got %q, want %q", cfg.Mbox.Path, "outbox.mbox")
	}
}

func TestLoadServerConfig_SecretsNeverFromFile(t *testing.T) {
	clearEnv(t)

	content := `transport: smtp
smtp:
  host: mail.example.com
  port: 587
  security: starttls
  password: sneaky
sendgrid:
  api_key: sneaky
mailgun:
  domain: mg.example.com
  api_key: sneaky
`
	path := writeTestFile(t, t.TempDir(), "mailmerge_server.conf", content)

	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SMTP.Password != "" {
		t.Errorf("Password: got %q, want empty", cfg.SMTP.Password)
	}
	if cfg.SendGrid.APIKey != "" {
		t.Errorf("SendGrid APIKey: got %q, want empty", cfg.SendGrid.APIKey)
	}
	if cfg.Mailgun.APIKey != "" {
		t.Errorf("Mailgun APIKey: got %q, want empty", cfg.Mailgun.APIKey)
	}
	if cfg.Mailgun.Domain != "mg.example.com" {
		t.Errorf("Domain: got %q, want %q", cfg.Mailgun.Domain, "mg.example.com")
	}
}

func TestLoadServerConfig_NotFound(t *testing.T) {
	clearEnv(t)

	_, err := LoadServerConfig(t.TempDir() + "/absent.conf")
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("error: got %v, want ErrConfigNotFound", err)
	}
}

func TestLoadServerConfig_BadYAML(t *testing.T) {
	clearEnv(t)

	path := writeTestFile(t, t.TempDir(), "mailmerge_server.conf", "transport: [unclosed\n")

	_, err := LoadServerConfig(path)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "parse server configuration") {
		t.Errorf("Error: got %q, want a parse failure", err)
	}
}

func TestLoadServerConfig_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantField string
	}{
		{
			name:      "unsupported transport",
			content:   "transport: pigeon\n",
			wantField: "transport",
		},
		{
			name:      "negative rate limit",
			content:   "ratelimit: -5\n",
			wantField: "ratelimit",
		},
		{
			name:      "bad security mode",
			content:   "smtp:\n  security: bogus\n",
			wantField: "smtp.security",
		},
		{
			name:      "port out of range",
			content:   "smtp:\n  port: 99999\n",
			wantField: "smtp.port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)

			path := writeTestFile(t, t.TempDir(), "mailmerge_server.conf", tt.content)
			_, err := LoadServerConfig(path)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error type: got %T, want *ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Field: got %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}

func TestSecurityMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mode   SecurityMode
		valid  bool
		normal SecurityMode
	}{
		{mode: SecurityNever, valid: true, normal: "never"},
		{mode: SecuritySTARTTLS, valid: true, normal: "starttls"},
		{mode: SecuritySSLTLS, valid: true, normal: "ssl/tls"},
		{mode: "STARTTLS", valid: true, normal: "starttls"},
		{mode: "SSL/TLS", valid: true, normal: "ssl/tls"},
		{mode: "Never", valid: true, normal: "never"},
		{mode: "bogus", valid: false, normal: "bogus"},
		{mode: "", valid: false, normal: ""},
	}

	for _, tt := range tests {
		if got := tt.mode.Valid(); got != tt.valid {
			t.Errorf("Valid(%q): got %v, want %v", tt.mode, got, tt.valid)
		}
		if got := tt.mode.Normalize(); got != tt.normal {
			t.Errorf("Normalize(%q): got %q, want %q", tt.mode, got, tt.normal)
		}
	}
}

func TestTransportTypeValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		transport TransportType
		want      bool
	}{
		{transport: TransportSMTP, want: true},
		{transport: TransportDryRun, want: true},
		{transport: TransportAWSSES, want: true},
		{transport: TransportSendGrid, want: true},
		{transport: TransportMailgun, want: true},
		{transport: TransportMbox, want: true},
		{transport: "pigeon", want: false},
		{transport: "", want: false},
	}

	for _, tt := range tests {
		if got := tt.transport.Valid(); got != tt.want {
			t.Errorf("Valid(%q): got %v, want %v", tt.transport, got, tt.want)
		}
	}
}

func TestRunConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mutate    func(*RunConfig)
		wantField string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *RunConfig) {},
		},
		{
			name:      "empty template path",
			mutate:    func(c *RunConfig) { c.TemplatePath = "" },
			wantField: "template",
		},
		{
			name:      "empty database path",
			mutate:    func(c *RunConfig) { c.DatabasePath = "" },
			wantField: "database",
		},
		{
			name:      "negative limit",
			mutate:    func(c *RunConfig) { c.Limit = -2 },
			wantField: "limit",
		},
		{
			name:      "zero resume",
			mutate:    func(c *RunConfig) { c.Resume = 0 },
			wantField: "resume",
		},
		{
			name:      "invalid server",
			mutate:    func(c *RunConfig) { c.Server.SMTP.Port = 0 },
			wantField: "smtp.port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultRunConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error type: got %T, want *ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Field: got %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}
