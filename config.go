package mailmerge

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"dario.cat/mergo"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/lattiq/mailmerge/internal/core"
)

// RunConfig holds the complete settings for one merge run. It is
// resolved once, before the pipeline starts, and handed to the driver;
// nothing in the pipeline reads ambient state.
type RunConfig struct {
	// TemplatePath is the message template file.
	TemplatePath string

	// DatabasePath is the recipient CSV file.
	DatabasePath string

	// KeyColumn is the database column every row must fill.
	// Empty means "email".
	KeyColumn string

	// Server contains delivery settings.
	Server ServerConfig

	// DryRun renders and reports every message without touching the
	// network.
	DryRun bool

	// Limit stops the run after this many successful sends. Zero means
	// unlimited.
	Limit int

	// Resume is the 1-based message number to start on. One processes
	// the whole database.
	Resume int

	// Output receives the per-message report. Nil means os.Stdout.
	Output io.Writer
}

// ServerConfig contains delivery settings: the transport to use and the
// per-transport sections. Secrets are never read from the file; they
// arrive through the environment.
type ServerConfig struct {
	// Transport selects the delivery backend.
	Transport TransportType `yaml:"transport" env:"MAILMERGE_TRANSPORT"`

	// From is the sender used when the template has no From header.
	From string `yaml:"from" env:"MAILMERGE_FROM"`

	// RateLimit caps sends per minute. Zero means unpaced.
	RateLimit int `yaml:"ratelimit" env:"MAILMERGE_RATELIMIT"`

	SMTP     SMTPConfig     `yaml:"smtp"`
	SES      SESConfig      `yaml:"ses"`
	SendGrid SendGridConfig `yaml:"sendgrid"`
	Mailgun  MailgunConfig  `yaml:"mailgun"`
	Mbox     MboxConfig     `yaml:"mbox"`
}

// SMTPConfig contains settings for the live SMTP transport.
type SMTPConfig struct {
	// Host is the server to connect to.
	Host string `yaml:"host" env:"MAILMERGE_SMTP_HOST"`

	// Port is the server port.
	Port int `yaml:"port" env:"MAILMERGE_SMTP_PORT"`

	// Security selects the connection security mode.
	Security SecurityMode `yaml:"security" env:"MAILMERGE_SMTP_SECURITY"`

	// Username enables authentication when non-empty.
	Username string `yaml:"username" env:"MAILMERGE_SMTP_USERNAME"`

	// Password is supplied out-of-band: environment variable or prompt,
	// never the configuration file.
	Password string `yaml:"-" env:"MAILMERGE_SMTP_PASSWORD"`
}

// SESConfig contains settings for the Amazon SES transport. Credentials
// follow the AWS default chain unless the static pair is set.
type SESConfig struct {
	// Region is the AWS region to send from.
	Region string `yaml:"region" env:"MAILMERGE_SES_REGION"`

	// ConfigurationSet tags sends with an SES configuration set.
	ConfigurationSet string `yaml:"configuration_set" env:"MAILMERGE_SES_CONFIGURATION_SET"`

	// AccessKeyID and SecretAccessKey override the default credential
	// chain when both are set.
	AccessKeyID     string `yaml:"-" env:"MAILMERGE_SES_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"-" env:"MAILMERGE_SES_SECRET_ACCESS_KEY"`
}

// SendGridConfig contains settings for the SendGrid transport.
type SendGridConfig struct {
	// APIKey authenticates against the SendGrid v3 API.
	APIKey string `yaml:"-" env:"MAILMERGE_SENDGRID_API_KEY"`
}

// MailgunConfig contains settings for the Mailgun transport.
type MailgunConfig struct {
	// Domain is the sending domain registered with Mailgun.
	Domain string `yaml:"domain" env:"MAILMERGE_MAILGUN_DOMAIN"`

	// BaseURL overrides the API base, e.g. for the EU region.
	BaseURL string `yaml:"base_url" env:"MAILMERGE_MAILGUN_BASE_URL"`

	// APIKey authenticates against the Mailgun API.
	APIKey string `yaml:"-" env:"MAILMERGE_MAILGUN_API_KEY"`
}

// MboxConfig contains settings for the local mbox transport.
type MboxConfig struct {
	// Path is the mbox file messages are appended to.
	Path string `yaml:"path" env:"MAILMERGE_MBOX_PATH"`
}

// TransportType represents the type of delivery transport.
type TransportType string

const (
	// TransportSMTP represents a generic SMTP server.
	TransportSMTP TransportType = "smtp"

	// TransportDryRun represents the no-network dry-run sink.
	TransportDryRun TransportType = "dryrun"

	// TransportAWSSES represents Amazon Simple Email Service.
	TransportAWSSES TransportType = "aws_ses"

	// TransportSendGrid represents the SendGrid email service.
	TransportSendGrid TransportType = "sendgrid"

	// TransportMailgun represents the Mailgun email service.
	TransportMailgun TransportType = "mailgun"

	// TransportMbox represents a local mbox file sink.
	TransportMbox TransportType = "mbox"
)

// String returns the string representation of the transport type.
func (tt TransportType) String() string {
	return string(tt)
}

// Valid checks if the transport type is supported.
func (tt TransportType) Valid() bool {
	switch tt {
	case TransportSMTP, TransportDryRun, TransportAWSSES, TransportSendGrid, TransportMailgun, TransportMbox:
		return true
	default:
		return false
	}
}

// SecurityMode selects how the SMTP connection is protected.
type SecurityMode string

const (
	// SecurityNever uses a plain connection.
	SecurityNever SecurityMode = "never"

	// SecuritySTARTTLS upgrades a plain connection with STARTTLS.
	SecuritySTARTTLS SecurityMode = "starttls"

	// SecuritySSLTLS connects over implicit TLS.
	SecuritySSLTLS SecurityMode = "ssl/tls"
)

// String returns the string representation of the security mode.
func (sm SecurityMode) String() string {
	return string(sm)
}

// Valid checks if the security mode is supported. Matching is
// case-insensitive so configuration files may spell modes as STARTTLS.
func (sm SecurityMode) Valid() bool {
	switch SecurityMode(strings.ToLower(string(sm))) {
	case SecurityNever, SecuritySTARTTLS, SecuritySSLTLS:
		return true
	default:
		return false
	}
}

// Normalize returns the canonical lowercase form of the mode.
func (sm SecurityMode) Normalize() SecurityMode {
	return SecurityMode(strings.ToLower(string(sm)))
}

// DefaultRunConfig returns a run configuration with sensible defaults:
// dry run on, one message, starting at the beginning.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		TemplatePath: DefaultTemplatePath,
		DatabasePath: DefaultDatabasePath,
		KeyColumn:    DefaultKeyColumn,
		Server:       DefaultServerConfig(),
		DryRun:       true,
		Limit:        1,
		Resume:       1,
		Output:       os.Stdout,
	}
}

// DefaultServerConfig returns delivery settings pointing at a local
// plain SMTP server.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Transport: TransportSMTP,
		SMTP: SMTPConfig{
			Host:     "localhost",
			Port:     25,
			Security: SecurityNever,
		},
	}
}

// LoadServerConfig reads delivery settings from a YAML file, applies
// environment overrides, and fills remaining gaps with defaults.
func LoadServerConfig(path string) (*ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("read server configuration %s: %w", path, err)
	}

	var cfg ServerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse server configuration %s: %w", path, err)
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("apply environment overrides: %w", err)
	}
	if err := mergo.Merge(&cfg, DefaultServerConfig()); err != nil {
		return nil, fmt.Errorf("apply configuration defaults: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks structural validity: transport selection, security
// mode and ranges. Per-transport required fields are checked by the
// transport constructors.
func (c *ServerConfig) Validate() error {
	if !c.Transport.Valid() {
		return &core.ValidationError{
			Field:   "transport",
			Message: "invalid or unsupported transport type: " + string(c.Transport),
		}
	}

	if c.RateLimit < 0 {
		return &core.ValidationError{
			Field:   "ratelimit",
			Message: "rate limit must not be negative",
		}
	}

	if c.Transport == TransportSMTP {
		if !c.SMTP.Security.Valid() {
			return &core.ValidationError{
				Field:   "smtp.security",
				Message: "invalid security mode: " + string(c.SMTP.Security),
			}
		}
		if c.SMTP.Port < 1 || c.SMTP.Port > 65535 {
			return &core.ValidationError{
				Field:   "smtp.port",
				Message: fmt.Sprintf("port out of range: %d", c.SMTP.Port),
			}
		}
	}

	return nil
}

// Validate checks if the run configuration is valid and complete.
func (c *RunConfig) Validate() error {
	if c.TemplatePath == "" {
		return &core.ValidationError{
			Field:   "template",
			Message: "template path is required",
		}
	}

	if c.DatabasePath == "" {
		return &core.ValidationError{
			Field:   "database",
			Message: "database path is required",
		}
	}

	if c.Limit < 0 {
		return &core.ValidationError{
			Field:   "limit",
			Message: "limit must not be negative",
		}
	}

	if c.Resume < 1 {
		return &core.ValidationError{
			Field:   "resume",
			Message: "resume must be at least 1",
		}
	}

	return c.Server.Validate()
}
