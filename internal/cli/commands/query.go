package commands

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/leapstack-labs/leapdriver/internal/cli/config"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Format string
	Input  string
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Run SQL against an embedded engine",
		Long: `Run SQL through the driver against the configured engine.

Statements come from the arguments, from --input, or from piped stdin.
Result sets are rendered in the chosen format; other statements report
their affected-row count. Every statement is recorded in the history
journal.

When invoked without input on a terminal, enters interactive REPL mode.`,
		Example: `  # Execute SQL directly
  leapdriver query "SELECT 42 AS answer"

  # Run a script against an on-disk SQLite database
  leapdriver query --engine sqlite --location ./data --input setup.sql

  # Output as JSON
  leapdriver query "SELECT * FROM t" --format json

  # Interactive mode
  leapdriver query`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: table, json, csv, md (default: --output)")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")

	return cmd
}

// resolveFormat picks the command's --format over the configured output.
func resolveFormat(cmd *cobra.Command, flagValue string) (string, error) {
	format := config.GetConfig(cmd.Context()).Output
	if flagValue != "" {
		format = flagValue
	}
	format = config.NormalizeOutput(format)
	if !slices.Contains(config.OutputFormats, format) {
		return "", fmt.Errorf("unknown output format %q (want one of %s)", flagValue, strings.Join(config.OutputFormats, ", "))
	}
	return format, nil
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	format, err := resolveFormat(cmd, opts.Format)
	if err != nil {
		return err
	}

	// Determine SQL source
	var script string
	interactive := false

	switch {
	case len(args) > 0:
		script = strings.Join(args, " ")
	case opts.Input != "":
		content, err := os.ReadFile(opts.Input)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		script = string(content)
	case !isTerminal(cmd.InOrStdin()):
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		script = string(content)
	default:
		interactive = true
	}

	sess, cleanup, err := OpenSession(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if interactive {
		return runQueryREPL(cmd, sess, format)
	}
	return sess.ExecScript(cmd.Context(), cmd.OutOrStdout(), script, format)
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
