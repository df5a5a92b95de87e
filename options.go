package mailmerge

import (
	"io"
)

// Option is a functional option for configuring a merge run.
type Option func(*Merge)

// WithDryRun enables or disables dry-run mode. A dry run renders and
// reports every message without touching the network.
func WithDryRun(enabled bool) Option {
	return func(m *Merge) {
		m.config.DryRun = enabled
	}
}

// WithLimit stops the run after limit successful sends.
func WithLimit(limit int) Option {
	return func(m *Merge) {
		m.config.Limit = limit
	}
}

// WithNoLimit removes the send limit: every row is processed.
func WithNoLimit() Option {
	return func(m *Merge) {
		m.config.Limit = 0
	}
}

// WithResume starts the run on the given 1-based message number.
// Earlier rows are read but neither rendered nor sent.
func WithResume(n int) Option {
	return func(m *Merge) {
		m.config.Resume = n
	}
}

// WithOutput directs the per-message report to w instead of standard
// output.
func WithOutput(w io.Writer) Option {
	return func(m *Merge) {
		m.config.Output = w
		m.out = w
	}
}

// WithKeyColumn overrides the database column every row must fill.
func WithKeyColumn(name string) Option {
	return func(m *Merge) {
		m.config.KeyColumn = name
	}
}

// WithRateLimit caps sends at perMinute messages per minute. Zero
// removes the cap.
func WithRateLimit(perMinute int) Option {
	return func(m *Merge) {
		m.config.Server.RateLimit = perMinute
	}
}

// WithFrom sets the sender used when the template has no From header.
func WithFrom(from string) Option {
	return func(m *Merge) {
		m.config.Server.From = from
	}
}

// WithServerConfig replaces the delivery settings wholesale.
func WithServerConfig(cfg ServerConfig) Option {
	return func(m *Merge) {
		m.config.Server = cfg
	}
}

// WithTransport supplies the transport used for live sends, replacing
// the one the server configuration would select. Dry runs still use the
// dry-run sink.
func WithTransport(t Transport) Option {
	return func(m *Merge) {
		m.transport = t
	}
}
