package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

const (
	replPrompt     = "leapdriver> "
	replContPrompt = "       ...> "
)

// lineReader is the part of readline the REPL loop needs.
type lineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
}

func runQueryREPL(cmd *cobra.Command, sess *Session, format string) error {
	// Keep the readline history next to the journal
	historyFile := ""
	if sess.Cfg.HistoryPath != ":memory:" {
		historyFile = filepath.Join(filepath.Dir(sess.Cfg.HistoryPath), "repl_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    newDotCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "leapdriver REPL (engine: %s, connection: %s)\n", sess.Conn.Engine(), sess.Conn.ID())
	_, _ = fmt.Fprintln(out, "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(out)

	return replLoop(cmd.Context(), sess, rl, out, cmd.ErrOrStderr(), format)
}

func replLoop(ctx context.Context, sess *Session, rl lineReader, out, errOut io.Writer, format string) error {
	var multiLineBuffer strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			multiLineBuffer.Reset()
			rl.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		// Dot-commands only at the start of a statement
		if multiLineBuffer.Len() == 0 && strings.HasPrefix(line, ".") {
			if quit := handleDotCommand(ctx, sess, out, errOut, line, format); quit {
				return nil
			}
			continue
		}

		// Accumulate multi-line SQL until semicolon
		multiLineBuffer.WriteString(line)
		if !strings.HasSuffix(line, ";") {
			multiLineBuffer.WriteString("\n")
			rl.SetPrompt(replContPrompt)
			continue
		}
		rl.SetPrompt(replPrompt)

		script := multiLineBuffer.String()
		multiLineBuffer.Reset()

		for _, sql := range splitStatements(script) {
			if err := sess.Exec(ctx, out, sql, format); err != nil {
				_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
				break
			}
		}
		_, _ = fmt.Fprintln(out)
	}
}

// handleDotCommand runs one dot-command and reports whether the REPL
// should exit.
func handleDotCommand(ctx context.Context, sess *Session, out, errOut io.Writer, line, format string) bool {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])
	args := parts[1:]

	report := func(err error) {
		if err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
		}
	}

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(out)

	case ".schema":
		if len(args) > 0 {
			report(sess.Conn.SetSchema(ctx, args[0]))
			return false
		}
		schema, err := sess.Conn.GetSchema(ctx)
		if err != nil {
			report(err)
			return false
		}
		_, _ = fmt.Fprintln(out, schema)

	case ".autocommit":
		if len(args) == 0 {
			on, err := sess.Conn.GetAutoCommit()
			if err != nil {
				report(err)
				return false
			}
			_, _ = fmt.Fprintf(out, "autocommit is %s\n", onOff(on))
			return false
		}
		switch strings.ToLower(args[0]) {
		case "on":
			report(sess.Conn.SetAutoCommit(ctx, true))
		case "off":
			report(sess.Conn.SetAutoCommit(ctx, false))
		default:
			_, _ = fmt.Fprintln(errOut, "Usage: .autocommit on|off")
		}

	case ".commit":
		report(sess.Conn.Commit(ctx))

	case ".rollback":
		report(sess.Conn.Rollback(ctx))

	case ".history":
		limit := 20
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 0 {
				_, _ = fmt.Fprintln(errOut, "Usage: .history [n]")
				return false
			}
			limit = n
		}
		entries, err := sess.History.List(ctx, limit)
		if err != nil {
			report(err)
			return false
		}
		report(renderHistory(out, entries, format))

	default:
		_, _ = fmt.Fprintf(errOut, "Unknown command: %s (type .help for commands)\n", command)
	}
	return false
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help               Show this help message
  .schema [name]      Show the current schema, or switch to name
  .autocommit on|off  Show or change the autocommit mode
  .commit             Commit the current transaction
  .rollback           Roll back the current transaction
  .history [n]        Show the last n journaled statements (default 20)
  .quit / .exit       Exit the REPL

Tips:
  - SQL statements must end with a semicolon (;)
  - Use arrow keys to navigate history
`
	_, _ = fmt.Fprintln(w, help)
}

func newDotCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem(".help"),
		readline.PcItem(".schema"),
		readline.PcItem(".autocommit",
			readline.PcItem("on"),
			readline.PcItem("off"),
		),
		readline.PcItem(".commit"),
		readline.PcItem(".rollback"),
		readline.PcItem(".history"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}
