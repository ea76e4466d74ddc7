package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/leapstack-labs/leapdriver/internal/cli/config"
	"github.com/leapstack-labs/leapdriver/internal/history"
	"github.com/leapstack-labs/leapdriver/pkg/driver"
	"github.com/spf13/cobra"
)

// Session holds the dependencies shared by commands that talk to an engine.
type Session struct {
	Cfg     *config.Config
	Logger  *slog.Logger
	Conn    *driver.Connection
	History *history.Store
}

// OpenSession opens the history journal and a driver connection from the
// command's config. The returned cleanup must be called (typically via defer).
func OpenSession(cmd *cobra.Command) (*Session, func(), error) {
	ctx := cmd.Context()
	cfg := config.GetConfig(ctx)
	logger := config.GetLogger(ctx)

	store, err := openHistory(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	conn, err := driver.Open(ctx, cfg.Driver, logger)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	cleanup := func() {
		if !conn.IsClosed() {
			_ = conn.Close()
		}
		_ = store.Close()
	}
	return &Session{Cfg: cfg, Logger: logger, Conn: conn, History: store}, cleanup, nil
}

func openHistory(cfg *config.Config, logger *slog.Logger) (*history.Store, error) {
	store := history.NewStore(logger)
	if err := store.Open(cfg.HistoryPath); err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return store, nil
}

// Exec runs one statement, journals it, and renders its outcome to w.
func (s *Session) Exec(ctx context.Context, w io.Writer, sql, format string) error {
	st, err := s.Conn.CreateStatement()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	entry := history.Entry{
		ConnectionID: s.Conn.ID(),
		Engine:       s.Conn.Engine(),
		SQL:          sql,
	}
	start := time.Now()
	isResult, err := st.Execute(ctx, sql)
	entry.Duration = time.Since(start)

	if err != nil {
		entry.Outcome = history.OutcomeError
		entry.Error = err.Error()
		s.journal(ctx, entry)
		return err
	}

	if !isResult {
		n, err := st.UpdateCount()
		if err != nil {
			return err
		}
		entry.Outcome = history.OutcomeCount
		entry.Rows = n
		s.journal(ctx, entry)
		return renderCount(w, n, format)
	}

	rs, err := st.ResultSet()
	if err != nil {
		return err
	}
	entry.Outcome = history.OutcomeResult
	entry.Rows = int64(rs.RowCount())
	s.journal(ctx, entry)
	return renderResultSet(w, rs, format)
}

// ExecScript runs each statement of script in order, stopping at the first
// failure.
func (s *Session) ExecScript(ctx context.Context, w io.Writer, script, format string) error {
	stmts := splitStatements(script)
	if len(stmts) == 0 {
		return fmt.Errorf("no SQL to execute")
	}
	for _, sql := range stmts {
		if err := s.Exec(ctx, w, sql, format); err != nil {
			return err
		}
	}
	return nil
}

// journal records e. A journal failure is logged, never returned.
func (s *Session) journal(ctx context.Context, e history.Entry) {
	if _, err := s.History.Record(ctx, e); err != nil {
		s.Logger.Warn("failed to journal statement", slog.String("error", err.Error()))
	}
}

// splitStatements splits script on semicolons outside quotes and comments.
// Empty statements are dropped.
func splitStatements(script string) []string {
	var (
		stmts []string
		cur   []rune
		quote rune
	)
	runes := []rune(script)
	flush := func() {
		if s := strings.TrimSpace(string(cur)); s != "" {
			stmts = append(stmts, s)
		}
		cur = cur[:0]
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote != 0:
			cur = append(cur, r)
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
			cur = append(cur, r)
		case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			cur = append(cur, '\n')
		case r == ';':
			flush()
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return stmts
}
