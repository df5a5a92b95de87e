/*
Package cli provides the command-line interface for mailmerge.
*/
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lattiq/mailmerge"
)

var (
	templatePath string
	databasePath string
	configPath   string
	dryRun       bool
	noDryRun     bool
	limit        int
	noLimit      bool
	resume       int
	sample       bool
	output       string
	verbose      bool
	debug        bool
)

// usageError marks a command-line mistake. Usage errors exit with
// status 2 and a help hint; pipeline failures exit with status 1.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// rootCmd is the one and only command: mailmerge has no subcommands.
var rootCmd = &cobra.Command{
	Use:   "mailmerge",
	Short: "Send personalized email from a template and a CSV database",
	Long: `Mailmerge sends personalized email by combining a message template
with rows from a CSV database. Every {{field}} placeholder in the
template is replaced with the matching column of each row, producing
one complete message per recipient.

By default nothing leaves your machine: runs are dry runs limited to
one message until --no-dry-run and --no-limit say otherwise.

Example:
  mailmerge --sample                # create starter input files
  mailmerge                         # dry run, first message only
  mailmerge --no-limit              # dry run, every message
  mailmerge --no-dry-run --no-limit # send everything for real

https://github.com/lattiq/mailmerge`,
	Args: func(cmd *cobra.Command, args []string) error {
		if err := cobra.NoArgs(cmd, args); err != nil {
			return &usageError{err}
		}
		return nil
	},
	SilenceUsage: true,
	Version:      mailmerge.GetVersion(),
	RunE:         run,
}

// Execute runs the root command and returns the process exit status:
// 0 on success, 2 for usage errors, 1 for everything else.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		var usage *usageError
		if errors.As(err, &usage) {
			fmt.Fprintln(os.Stderr, "Run 'mailmerge --help' for usage.")
			return 2
		}
		return 1
	}
	return 0
}

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err}
	})

	rootCmd.Flags().StringVarP(&templatePath, "template", "t", mailmerge.DefaultTemplatePath, "template email file")
	rootCmd.Flags().StringVarP(&databasePath, "database", "d", mailmerge.DefaultDatabasePath, "database CSV file")
	rootCmd.Flags().StringVarP(&configPath, "config", "c", mailmerge.DefaultConfigPath, "server configuration file")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", true, "don't send anything, just print what would be sent")
	rootCmd.Flags().BoolVar(&noDryRun, "no-dry-run", false, "send the messages for real")
	rootCmd.Flags().IntVarP(&limit, "limit", "l", 1, "stop after this many sent messages")
	rootCmd.Flags().BoolVar(&noLimit, "no-limit", false, "send every message in the database")
	rootCmd.Flags().IntVarP(&resume, "resume", "r", 1, "start on message number N (1-based)")
	rootCmd.Flags().BoolVar(&sample, "sample", false, "create sample input files and exit")
	rootCmd.Flags().StringVar(&output, "output", "", "append messages to this mbox file instead of the configured transport")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "enable debug output")
}

func initLogging() {
	log.SetOutput(os.Stderr)
	if debug {
		log.SetLevel(log.DebugLevel)
	} else if verbose {
		log.SetLevel(log.InfoLevel)
	} else {
		log.SetLevel(log.WarnLevel)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if limit < 0 {
		return &usageError{fmt.Errorf("invalid --limit value %d: limit must not be negative", limit)}
	}
	if resume < 1 {
		return &usageError{fmt.Errorf("invalid --resume value %d: message numbering starts at 1", resume)}
	}
	if cmd.Flags().Changed("dry-run") && cmd.Flags().Changed("no-dry-run") {
		return &usageError{errors.New("--dry-run and --no-dry-run are mutually exclusive")}
	}
	if cmd.Flags().Changed("limit") && cmd.Flags().Changed("no-limit") {
		return &usageError{errors.New("--limit and --no-limit are mutually exclusive")}
	}

	if sample {
		return writeSamples(cmd)
	}

	if err := godotenv.Load(); err == nil {
		log.Debug("loaded environment overrides from .env")
	}

	// Check the input files in a fixed order so the first complaint
	// points at the most likely omission.
	if _, err := os.Stat(templatePath); err != nil {
		return fmt.Errorf("can't find template email %s\nHint: the --sample option creates sample input files", templatePath)
	}
	if _, err := os.Stat(databasePath); err != nil {
		return fmt.Errorf("can't find database %s", databasePath)
	}

	server, err := mailmerge.LoadServerConfig(configPath)
	if err != nil {
		if errors.Is(err, mailmerge.ErrConfigNotFound) {
			return fmt.Errorf("can't find config %s", configPath)
		}
		return err
	}

	cfg := mailmerge.DefaultRunConfig()
	cfg.TemplatePath = templatePath
	cfg.DatabasePath = databasePath
	cfg.Server = *server
	cfg.DryRun = dryRun && !noDryRun
	cfg.Limit = limit
	if noLimit {
		cfg.Limit = 0
	}
	cfg.Resume = resume
	cfg.Output = cmd.OutOrStdout()

	if output != "" {
		cfg.Server.Transport = mailmerge.TransportMbox
		cfg.Server.Mbox.Path = output
	}

	if !cfg.DryRun {
		if err := resolvePassword(&cfg.Server); err != nil {
			return err
		}
	}

	log.Debug("starting run",
		"version", mailmerge.GetVersionInfo().String(),
		"template", cfg.TemplatePath,
		"database", cfg.DatabasePath,
		"transport", cfg.Server.Transport,
		"dry_run", cfg.DryRun,
		"limit", cfg.Limit,
		"resume", cfg.Resume,
	)

	merge, err := mailmerge.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := merge.Close(); cerr != nil {
			log.Warn("failed to close transport", "error", cerr)
		}
	}()

	result, err := merge.Run(cmd.Context())
	if err != nil {
		return err
	}

	log.Info("run complete", "sent", result.Sent, "skipped", result.Skipped, "dry_run", result.DryRun)
	return nil
}

func writeSamples(cmd *cobra.Command) error {
	if err := mailmerge.WriteSampleFiles("."); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, ">>> Created sample template email %s\n", mailmerge.DefaultTemplatePath)
	fmt.Fprintf(out, ">>> Created sample database %s\n", mailmerge.DefaultDatabasePath)
	fmt.Fprintf(out, ">>> Created sample config %s\n", mailmerge.DefaultConfigPath)
	fmt.Fprintln(out, ">>> Edit these files, then run mailmerge again.")
	return nil
}
