package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/leapdriver/pkg/driver"
	"github.com/leapstack-labs/leapdriver/pkg/types"
	"github.com/spf13/cobra"
)

// NewDescribeCommand creates the describe command.
func NewDescribeCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "describe SQL",
		Short: "Describe the parameters of a statement",
		Long: `Prepare a statement and print its parameter descriptor: the SQL type,
precision, scale, host class and nullability of every placeholder.

Engines that cannot describe parameter types report only the count.`,
		Example: `  leapdriver describe "INSERT INTO t VALUES (?, ?)"
  leapdriver describe --engine sqlite "SELECT * FROM t WHERE id = ?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := resolveFormat(cmd, format)
			if err != nil {
				return err
			}

			sess, cleanup, err := OpenSession(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ps, err := sess.Conn.Prepare(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			defer func() { _ = ps.Close() }()

			return renderParameters(cmd.OutOrStdout(), ps, f)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: table, json, csv, md (default: --output)")
	return cmd
}

type paramJSON struct {
	Position  int    `json:"position"`
	Type      string `json:"type"`
	Precision int    `json:"precision"`
	Scale     int    `json:"scale"`
	Class     string `json:"class"`
	Signed    bool   `json:"signed"`
	Nullable  string `json:"nullable"`
}

func describeParameters(pd *driver.ParameterDescriptor) ([]paramJSON, error) {
	out := make([]paramJSON, pd.Count())
	for i := range out {
		pos := i + 1
		name, err := pd.TypeName(pos)
		if err != nil {
			return nil, err
		}
		precision, _ := pd.Precision(pos)
		scale, _ := pd.Scale(pos)
		class, _ := pd.ClassName(pos)
		signed, _ := pd.IsSigned(pos)
		nullable, _ := pd.Nullable(pos)
		out[i] = paramJSON{
			Position:  pos,
			Type:      name,
			Precision: precision,
			Scale:     scale,
			Class:     class,
			Signed:    signed,
			Nullable:  nullabilityName(nullable),
		}
	}
	return out, nil
}

func nullabilityName(n types.Nullability) string {
	switch n {
	case types.NoNulls:
		return "no"
	case types.Nullable:
		return "yes"
	default:
		return "unknown"
	}
}

func renderParameters(w io.Writer, ps *driver.PreparedStatement, format string) error {
	pd, described := ps.ParameterDescriptor()
	if !described {
		if n, ok := ps.ParameterCount(); ok {
			_, _ = fmt.Fprintf(w, "%d parameters (types unavailable)\n", n)
		} else {
			_, _ = fmt.Fprintln(w, "parameters unavailable")
		}
		return nil
	}

	params, err := describeParameters(pd)
	if err != nil {
		return err
	}

	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(params)
	}
	if len(params) == 0 {
		_, _ = fmt.Fprintln(w, "(no parameters)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"#", "Type", "Precision", "Scale", "Class", "Signed", "Nullable"})
	for _, p := range params {
		t.AppendRow(table.Row{p.Position, p.Type, p.Precision, p.Scale, p.Class, p.Signed, p.Nullable})
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
