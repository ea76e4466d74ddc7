// Package duckdb provides the DuckDB engine for LeapDriver.
package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/binary"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapdriver/pkg/engine"
	"github.com/leapstack-labs/leapdriver/pkg/types"
	"github.com/marcboeker/go-duckdb"
	"github.com/shopspring/decimal"
)

// FileName is the database file created inside an on-disk location.
const FileName = "leapdriver.duckdb"

var dialect = &engine.Dialect{
	Name:          "duckdb",
	Begin:         "BEGIN TRANSACTION",
	Commit:        "COMMIT",
	Rollback:      "ROLLBACK",
	CurrentSchema: "SELECT current_schema()",
	SwitchSchema: func(name string) string {
		return "SET schema = " + engine.QuoteString(name)
	},
}

// Engine implements engine.Engine for DuckDB.
type Engine struct {
	engine.BaseSQL
}

// New creates a DuckDB engine. A nil logger discards output.
func New(logger *slog.Logger) *Engine {
	e := &Engine{}
	e.FileName = FileName
	e.Order = binary.LittleEndian
	e.Logger = logger
	e.Hooks = engine.Hooks{
		OpenDB:    openDB,
		Setup:     setup,
		Resolve:   resolveColumn,
		Normalize: normalize,
		Classify:  classify,
		Describe:  describe,
	}
	return e
}

// Name returns the registered engine name.
func (e *Engine) Name() string {
	return "duckdb"
}

// Dialect returns DuckDB's control statements.
func (e *Engine) Dialect() *engine.Dialect {
	return dialect
}

func openDB(path string, opts engine.SessionOptions) (*sql.DB, error) {
	connector, err := duckdb.NewConnector(buildDSN(path, opts), nil)
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(connector), nil
}

func setup(ctx context.Context, conn *sql.Conn, opts engine.SessionOptions) error {
	params, err := parseParams(opts.Params)
	if err != nil {
		return err
	}
	for _, stmt := range sessionStatements(params) {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply %q: %w", stmt, err)
		}
	}
	return nil
}

// nameOverrides maps DuckDB type names the portable table does not know
// onto the tag able to hold them.
var nameOverrides = map[string]types.Tag{
	"UTINYINT":            types.Int16,
	"USMALLINT":           types.Int32,
	"UINTEGER":            types.Int64,
	"TIMESTAMP_S":         types.Timestamp,
	"TIMESTAMP_MS":        types.Timestamp,
	"TIMESTAMP_NS":        types.Timestamp,
	"TIME WITH TIME ZONE": types.Time,
	"TIMETZ":              types.Time,
}

func resolveColumn(ct *sql.ColumnType) (types.Type, error) {
	if tag, ok := nameOverrides[strings.ToUpper(ct.DatabaseTypeName())]; ok {
		return types.Of(tag), nil
	}
	return engine.ResolveColumnType(ct)
}

func normalize(_ types.Type, v any) any {
	if d, ok := v.(duckdb.Decimal); ok {
		return decimal.NewFromBigInt(d.Value, -int32(d.Scale))
	}
	return v
}

// classify asks DuckDB for the statement type so that DML and DDL run
// through Exec and report an affected count.
func classify(ctx context.Context, conn *sql.Conn, query string) (bool, error) {
	var returnsRows bool
	err := engine.RawPrepare(ctx, conn, query, func(st driver.Stmt) error {
		ds, ok := st.(*duckdb.Stmt)
		if !ok {
			return fmt.Errorf("unexpected statement %T", st)
		}
		stmtType, err := ds.StatementType()
		if err != nil {
			return err
		}
		switch stmtType {
		case duckdb.STATEMENT_TYPE_SELECT,
			duckdb.STATEMENT_TYPE_EXPLAIN,
			duckdb.STATEMENT_TYPE_PRAGMA,
			duckdb.STATEMENT_TYPE_CALL:
			returnsRows = true
		}
		return nil
	})
	return returnsRows, err
}

func describe(ctx context.Context, conn *sql.Conn, query string) (engine.ParamInfo, error) {
	info := engine.ParamInfo{Count: -1}
	err := engine.RawPrepare(ctx, conn, query, func(st driver.Stmt) error {
		ds, ok := st.(*duckdb.Stmt)
		if !ok {
			return engine.ErrDescribeUnavailable
		}
		n := ds.NumInput()
		info.Count = n
		info.Types = make([]types.Type, n)
		for i := 0; i < n; i++ {
			pt, err := ds.ParamType(i + 1)
			if err != nil {
				return err
			}
			info.Types[i] = paramType(pt)
		}
		return nil
	})
	return info, err
}

var paramTags = map[duckdb.Type]types.Tag{
	duckdb.TYPE_BOOLEAN:   types.Bool,
	duckdb.TYPE_TINYINT:   types.Int8,
	duckdb.TYPE_SMALLINT:  types.Int16,
	duckdb.TYPE_INTEGER:   types.Int32,
	duckdb.TYPE_BIGINT:    types.Int64,
	duckdb.TYPE_HUGEINT:   types.Int128,
	duckdb.TYPE_UBIGINT:   types.Size,
	duckdb.TYPE_FLOAT:     types.Float32,
	duckdb.TYPE_DOUBLE:    types.Float64,
	duckdb.TYPE_VARCHAR:   types.String,
	duckdb.TYPE_BLOB:      types.Blob,
	duckdb.TYPE_DATE:      types.Date,
	duckdb.TYPE_TIME:      types.Time,
	duckdb.TYPE_TIMESTAMP: types.Timestamp,
}

// paramType maps a DuckDB parameter type to a native type. Prepared
// statements report only the DECIMAL type id, so such parameters are
// described as NUMERIC without precision or scale.
func paramType(t duckdb.Type) types.Type {
	if t == duckdb.TYPE_DECIMAL {
		return types.NumericUnsized()
	}
	if tag, ok := paramTags[t]; ok {
		return types.Of(tag)
	}
	return types.Of(types.Unknown)
}

// Ensure Engine implements engine.Engine interface
var _ engine.Engine = (*Engine)(nil)
