// Package sqlite provides the SQLite engine for LeapDriver, built on the
// pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/leapstack-labs/leapdriver/pkg/engine"
	"github.com/leapstack-labs/leapdriver/pkg/types"
	"modernc.org/sqlite"
)

// FileName is the database file created inside an on-disk location.
const FileName = "leapdriver.sqlite"

var dialect = &engine.Dialect{
	Name:          "sqlite",
	Begin:         "BEGIN",
	Commit:        "COMMIT",
	Rollback:      "ROLLBACK",
	CurrentSchema: "SELECT 'main'",
}

// Params holds SQLite-specific session settings.
type Params struct {
	// Pragmas applied once after open (e.g., foreign_keys, journal_mode)
	Pragmas map[string]string `mapstructure:"pragmas"`
}

// Engine implements engine.Engine for SQLite.
type Engine struct {
	engine.BaseSQL
}

// New creates a SQLite engine. A nil logger discards output.
func New(logger *slog.Logger) *Engine {
	e := &Engine{}
	e.FileName = FileName
	e.Order = binary.LittleEndian
	e.Logger = logger
	e.Hooks = engine.Hooks{
		OpenDB:    openDB,
		Setup:     setup,
		Resolve:   resolveColumn,
		Changes:   totalChanges,
		Describe:  describe,
		ErrorCode: errorCode,
	}
	return e
}

// Name returns the registered engine name.
func (e *Engine) Name() string {
	return "sqlite"
}

// Dialect returns SQLite's control statements. SQLite has no schema switch.
func (e *Engine) Dialect() *engine.Dialect {
	return dialect
}

func openDB(path string, _ engine.SessionOptions) (*sql.DB, error) {
	return sql.Open("sqlite", path)
}

func parseParams(params map[string]any) (*Params, error) {
	p := &Params{}
	if len(params) == 0 {
		return p, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           p,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build params decoder: %w", err)
	}
	if err := dec.Decode(params); err != nil {
		return nil, fmt.Errorf("invalid sqlite params: %w", err)
	}
	return p, nil
}

// pragmas renders the session limits and configured pragmas in a stable order.
func pragmas(opts engine.SessionOptions, p *Params) []string {
	var stmts []string
	if opts.MemoryLimitMB > 0 {
		stmts = append(stmts, fmt.Sprintf("PRAGMA soft_heap_limit = %d", int64(opts.MemoryLimitMB)<<20))
	}
	if opts.Threads > 0 {
		stmts = append(stmts, fmt.Sprintf("PRAGMA threads = %d", opts.Threads))
	}

	keys := make([]string, 0, len(p.Pragmas))
	for k := range p.Pragmas {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		stmts = append(stmts, fmt.Sprintf("PRAGMA %s = %s", k, p.Pragmas[k]))
	}
	return stmts
}

func setup(ctx context.Context, conn *sql.Conn, opts engine.SessionOptions) error {
	p, err := parseParams(opts.Params)
	if err != nil {
		return err
	}
	for _, stmt := range pragmas(opts, p) {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply %q: %w", stmt, err)
		}
	}
	return nil
}

// affinity maps SQLite declared types whose storage differs from the
// portable meaning of the name. INTEGER columns hold 64-bit values.
var affinity = map[string]types.Tag{
	"INTEGER":   types.Int64,
	"INT":       types.Int64,
	"MEDIUMINT": types.Int64,
	"REAL":      types.Float64,
	"FLOAT":     types.Float64,
	"NUMERIC":   types.Float64,
	"DATETIME":  types.Timestamp,
}

func resolveColumn(ct *sql.ColumnType) (types.Type, error) {
	name := strings.ToUpper(strings.TrimSpace(ct.DatabaseTypeName()))
	if name == "" {
		return types.Of(types.Unknown), nil
	}
	if tag, ok := affinity[name]; ok {
		return types.Of(tag), nil
	}
	// DECIMAL(p,s) columns have NUMERIC affinity and hold REAL or INTEGER
	// values, so no declared precision survives storage.
	base, _, _ := strings.Cut(name, "(")
	switch strings.TrimSpace(base) {
	case "DECIMAL", "DEC", "NUMERIC":
		return types.Of(types.Float64), nil
	}
	return engine.ResolveColumnType(ct)
}

func totalChanges(ctx context.Context, conn *sql.Conn) (int64, error) {
	var n int64
	if err := conn.QueryRowContext(ctx, "SELECT total_changes()").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// errorCode reports the SQLite primary result code.
func errorCode(err error) string {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return "SQLITE" + strconv.Itoa(se.Code()&0xff)
	}
	return ""
}

// Ensure Engine implements engine.Engine interface
var _ engine.Engine = (*Engine)(nil)
