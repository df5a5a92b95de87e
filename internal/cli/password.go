package cli

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/lattiq/mailmerge"
)

// resolvePassword fills in the SMTP password for an authenticated live
// run. The password is never read from the configuration file: it comes
// from the MAILMERGE_SMTP_PASSWORD environment variable (already merged
// into cfg by the loader) or, failing that, an interactive prompt.
func resolvePassword(cfg *mailmerge.ServerConfig) error {
	if cfg.Transport != mailmerge.TransportSMTP {
		return nil
	}
	if cfg.SMTP.Username == "" || cfg.SMTP.Password != "" {
		return nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return fmt.Errorf("no SMTP password for %s: set MAILMERGE_SMTP_PASSWORD or run interactively",
			cfg.SMTP.Username)
	}

	fmt.Fprintf(os.Stderr, "Password for %s@%s: ", cfg.SMTP.Username, cfg.SMTP.Host)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	cfg.SMTP.Password = string(raw)
	return nil
}
