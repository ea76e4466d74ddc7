package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/leapdriver/internal/cli/config"
	"github.com/leapstack-labs/leapdriver/internal/history"
	"github.com/spf13/cobra"
)

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	Limit  int
	Clear  bool
	Format string
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show journaled statements",
		Long: `Show the statements recorded in the history journal, newest first.

Each entry records the engine, the statement text, how it ended, the
row or affected-row count, and how long it took.`,
		Example: `  leapdriver history
  leapdriver history --limit 5 --format json
  leapdriver history --clear`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Number of entries to show (0 for all)")
	cmd.Flags().BoolVar(&opts.Clear, "clear", false, "Delete every journaled statement")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: table, json, csv, md (default: --output)")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions) error {
	ctx := cmd.Context()
	cfg := config.GetConfig(ctx)

	format, err := resolveFormat(cmd, opts.Format)
	if err != nil {
		return err
	}

	store, err := openHistory(cfg, config.GetLogger(ctx))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if opts.Clear {
		n, err := store.Clear(ctx)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d history entries\n", n)
		return nil
	}

	entries, err := store.List(ctx, opts.Limit)
	if err != nil {
		return err
	}
	return renderHistory(cmd.OutOrStdout(), entries, format)
}

type historyJSON struct {
	ID           string    `json:"id"`
	ConnectionID string    `json:"connection_id"`
	Engine       string    `json:"engine"`
	SQL          string    `json:"sql"`
	Outcome      string    `json:"outcome"`
	Rows         int64     `json:"rows"`
	Error        string    `json:"error,omitempty"`
	DurationUS   int64     `json:"duration_us"`
	ExecutedAt   time.Time `json:"executed_at"`
}

func renderHistory(w io.Writer, entries []history.Entry, format string) error {
	if format == "json" {
		out := make([]historyJSON, len(entries))
		for i, e := range entries {
			out[i] = historyJSON{
				ID:           e.ID,
				ConnectionID: e.ConnectionID,
				Engine:       e.Engine,
				SQL:          e.SQL,
				Outcome:      string(e.Outcome),
				Rows:         e.Rows,
				Error:        e.Error,
				DurationUS:   e.Duration.Microseconds(),
				ExecutedAt:   e.ExecutedAt,
			}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if len(entries) == 0 {
		_, _ = fmt.Fprintln(w, "(no history)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Executed", "Engine", "Outcome", "Rows", "Duration", "SQL"})
	for _, e := range entries {
		outcome := string(e.Outcome)
		if e.Error != "" {
			outcome += ": " + e.Error
		}
		t.AppendRow(table.Row{
			e.ExecutedAt.Local().Format(time.DateTime),
			e.Engine,
			outcome,
			e.Rows,
			e.Duration.Round(time.Microsecond).String(),
			oneLine(e.SQL),
		})
	}

	switch format {
	case "csv":
		t.RenderCSV()
	case "md":
		t.RenderMarkdown()
	default:
		t.SetStyle(table.StyleLight)
		t.Render()
	}
	return nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
