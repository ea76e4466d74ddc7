package engine

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/leapstack-labs/leapdriver/pkg/core"
	"github.com/leapstack-labs/leapdriver/pkg/types"
	"github.com/shopspring/decimal"
)

// Hooks specialise BaseSQL for one engine. Only OpenDB is required.
type Hooks struct {
	// OpenDB opens the database file at path (or InMemory) with the
	// session options applied.
	OpenDB func(path string, opts SessionOptions) (*sql.DB, error)

	// Setup runs once on the pinned connection after open.
	Setup func(ctx context.Context, conn *sql.Conn, opts SessionOptions) error

	// Resolve maps a result column to its native type.
	// Defaults to ResolveColumnType.
	Resolve func(ct *sql.ColumnType) (types.Type, error)

	// Normalize converts a scanned value into a ColumnBuilder input.
	Normalize func(typ types.Type, v any) any

	// Bind converts a parameter into a database/sql argument.
	// Defaults to BindValue.
	Bind func(p Param) (any, error)

	// Classify reports whether query produces rows, before running it.
	// When nil, the query is run and a zero-column outcome is a count.
	Classify func(ctx context.Context, conn *sql.Conn, query string) (bool, error)

	// Changes returns the engine's running total of changed rows.
	// Only consulted when Classify is nil.
	Changes func(ctx context.Context, conn *sql.Conn) (int64, error)

	// Describe reports the parameters of query without running it.
	Describe func(ctx context.Context, conn *sql.Conn, query string) (ParamInfo, error)

	// ErrorCode extracts an SQL-state-like code from an engine error.
	ErrorCode func(err error) string
}

type session struct {
	mu       sync.Mutex
	db       *sql.DB
	conn     *sql.Conn
	opts     SessionOptions
	lastUsed time.Time
	expired  bool
}

// BaseSQL provides the Open, Close, Query and DescribeParameters entry
// points for engines reached through database/sql. Each session pins one
// *sql.Conn so that transaction state survives between calls.
//
// Embed this struct in concrete engines and fill in the Hooks.
type BaseSQL struct {
	// FileName is the database file created inside an on-disk location.
	FileName string
	// Order is the byte order of the columnar buffers produced by Query.
	Order  binary.ByteOrder
	Logger *slog.Logger
	Hooks  Hooks
	// Now is the clock for idle expiry. Nil means time.Now.
	Now func() time.Time

	sessions Arena[*session]
}

// Open starts a session. Failures are OpenFailed errors carrying the
// engine's diagnostic text.
func (b *BaseSQL) Open(ctx context.Context, location string, opts SessionOptions) (Handle, error) {
	path, err := ResolveLocation(location, b.FileName)
	if err != nil {
		return 0, b.openFailed(err)
	}

	db, err := b.Hooks.OpenDB(path, opts)
	if err != nil {
		return 0, b.openFailed(err)
	}
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return 0, b.openFailed(err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return 0, b.openFailed(err)
	}
	if b.Hooks.Setup != nil {
		if err := b.Hooks.Setup(ctx, conn, opts); err != nil {
			_ = conn.Close()
			_ = db.Close()
			return 0, b.openFailed(err)
		}
	}

	h := b.sessions.Put(&session{db: db, conn: conn, opts: opts, lastUsed: b.now()})
	b.logger().Debug("engine session opened",
		"handle", h,
		"path", path,
		"session_timeout", opts.SessionTimeout,
		"query_timeout", opts.QueryTimeout,
		"memory_limit_mb", opts.MemoryLimitMB,
		"threads", opts.Threads)
	return h, nil
}

// Close ends the session behind h.
func (b *BaseSQL) Close(h Handle) error {
	s, ok := b.sessions.Remove(h)
	if !ok {
		return core.Errorf(core.KindConnectionClosed, "engine handle %d is not open", h)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b.logger().Debug("closing engine session", "handle", h)
	err := errors.Join(s.conn.Close(), s.db.Close())
	if err != nil {
		return core.EngineError(err, b.code(err))
	}
	return nil
}

// Query runs one SQL text on the session and materializes its outcome.
func (b *BaseSQL) Query(ctx context.Context, h Handle, query string, params []Param) (*Result, error) {
	s, err := b.acquire(h)
	if err != nil {
		return nil, err
	}
	defer b.release(s)

	ctx, cancel := withTimeout(ctx, s.opts.QueryTimeout)
	defer cancel()

	args := make([]any, len(params))
	for i, p := range params {
		if args[i], err = b.bind(p); err != nil {
			return nil, err
		}
	}

	if b.Hooks.Classify != nil {
		returnsRows, err := b.Hooks.Classify(ctx, s.conn, query)
		if err != nil {
			return nil, b.engineErr(ctx, err)
		}
		if !returnsRows {
			res, err := s.conn.ExecContext(ctx, query, args...)
			if err != nil {
				return nil, b.engineErr(ctx, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return nil, b.engineErr(ctx, err)
			}
			return NewCountResult(n), nil
		}
		return b.queryRows(ctx, s.conn, query, args)
	}

	var before int64
	if b.Hooks.Changes != nil {
		if before, err = b.Hooks.Changes(ctx, s.conn); err != nil {
			return nil, b.engineErr(ctx, err)
		}
	}

	result, err := b.queryRows(ctx, s.conn, query, args)
	if err != nil {
		return nil, err
	}
	if len(result.Columns) > 0 {
		return result, nil
	}

	var affected int64
	if b.Hooks.Changes != nil {
		after, err := b.Hooks.Changes(ctx, s.conn)
		if err != nil {
			return nil, b.engineErr(ctx, err)
		}
		affected = after - before
	}
	return NewCountResult(affected), nil
}

// DescribeParameters reports the placeholders of query.
func (b *BaseSQL) DescribeParameters(ctx context.Context, h Handle, query string) (ParamInfo, error) {
	s, err := b.acquire(h)
	if err != nil {
		return ParamInfo{Count: -1}, err
	}
	defer b.release(s)

	if b.Hooks.Describe == nil {
		return ParamInfo{Count: -1}, ErrDescribeUnavailable
	}

	ctx, cancel := withTimeout(ctx, s.opts.QueryTimeout)
	defer cancel()

	info, err := b.Hooks.Describe(ctx, s.conn, query)
	if err != nil && !errors.Is(err, ErrDescribeUnavailable) {
		return ParamInfo{Count: -1}, b.engineErr(ctx, err)
	}
	return info, err
}

// Sessions returns the number of open sessions.
func (b *BaseSQL) Sessions() int {
	return b.sessions.Len()
}

func (b *BaseSQL) queryRows(ctx context.Context, conn *sql.Conn, query string, args []any) (*Result, error) {
	//nolint:rowserrcheck // rows.Err() is checked by materialize
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, b.engineErr(ctx, err)
	}
	result, err := b.materialize(rows)
	if err != nil {
		return nil, b.engineErr(ctx, err)
	}
	return result, nil
}

func (b *BaseSQL) materialize(rows *sql.Rows) (*Result, error) {
	defer func() { _ = rows.Close() }()

	cts, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types: %w", err)
	}

	colTypes := make([]types.Type, len(cts))
	for i, ct := range cts {
		if colTypes[i], err = b.resolve(ct); err != nil {
			return nil, err
		}
	}

	var data [][]any
	for rows.Next() {
		dest := make([]any, len(cts))
		ptrs := make([]any, len(cts))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		data = append(data, dest)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	order := b.order()
	columns := make([]Column, len(cts))
	for i, ct := range cts {
		typ := colTypes[i]
		if typ.Tag == types.Unknown {
			typ = InferType(data, i)
		}

		nullable := types.NullableUnknown
		if n, ok := ct.Nullable(); ok {
			nullable = types.NoNulls
			if n {
				nullable = types.Nullable
			}
		}

		cb := NewColumnBuilder(ct.Name(), typ, nullable, order)
		for _, row := range data {
			v := row[i]
			if b.Hooks.Normalize != nil && v != nil {
				v = b.Hooks.Normalize(typ, v)
			}
			if err := cb.Append(v); err != nil {
				return nil, err
			}
		}
		columns[i] = cb.Build()
	}
	return NewRowsResult(order, columns...), nil
}

// InferType picks a native type for column i of rows from the Go type of
// its first non-null value. Columns that hold only nulls, or values with no
// native counterpart, surface as VARCHAR.
func InferType(rows [][]any, i int) types.Type {
	for _, row := range rows {
		switch row[i].(type) {
		case nil:
			continue
		case bool:
			return types.Of(types.Bool)
		case int8:
			return types.Of(types.Int8)
		case int16:
			return types.Of(types.Int16)
		case int32:
			return types.Of(types.Int32)
		case int64, int:
			return types.Of(types.Int64)
		case uint64:
			return types.Of(types.Size)
		case float32:
			return types.Of(types.Float32)
		case float64:
			return types.Of(types.Float64)
		case []byte:
			return types.Of(types.Blob)
		case time.Time:
			return types.Of(types.Timestamp)
		case *big.Int:
			return types.Of(types.Int128)
		default:
			return types.Of(types.String)
		}
	}
	return types.Of(types.String)
}

func (b *BaseSQL) resolve(ct *sql.ColumnType) (types.Type, error) {
	if b.Hooks.Resolve != nil {
		return b.Hooks.Resolve(ct)
	}
	return ResolveColumnType(ct)
}

func (b *BaseSQL) bind(p Param) (any, error) {
	if b.Hooks.Bind != nil {
		return b.Hooks.Bind(p)
	}
	return BindValue(p)
}

// acquire returns the live session behind h, locked. Idle sessions past
// their timeout are expired for good.
func (b *BaseSQL) acquire(h Handle) (*session, error) {
	s, ok := b.sessions.Get(h)
	if !ok {
		return nil, core.Errorf(core.KindConnectionClosed, "engine handle %d is not open", h)
	}
	s.mu.Lock()

	now := b.now()
	if !s.expired && s.opts.SessionTimeout > 0 && now.Sub(s.lastUsed) > s.opts.SessionTimeout {
		s.expired = true
		b.logger().Debug("engine session expired", "handle", h, "idle", now.Sub(s.lastUsed))
	}
	if s.expired {
		s.mu.Unlock()
		return nil, &core.Error{
			Kind: core.KindEngineError,
			Code: core.CodeSessionExpired,
			Msg:  fmt.Sprintf("session expired after %s idle", s.opts.SessionTimeout),
		}
	}
	s.lastUsed = now
	return s, nil
}

func (b *BaseSQL) release(s *session) {
	s.lastUsed = b.now()
	s.mu.Unlock()
}

func (b *BaseSQL) openFailed(err error) error {
	return &core.Error{Kind: core.KindOpenFailed, Msg: err.Error(), Code: b.code(err), Err: err}
}

func (b *BaseSQL) engineErr(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return core.EngineError(err, core.CodeTimeout)
	}
	return core.EngineError(err, b.code(err))
}

func (b *BaseSQL) code(err error) string {
	if b.Hooks.ErrorCode != nil {
		if c := b.Hooks.ErrorCode(err); c != "" {
			return c
		}
	}
	return core.CodeGeneral
}

func (b *BaseSQL) order() binary.ByteOrder {
	if b.Order == nil {
		return binary.LittleEndian
	}
	return b.Order
}

func (b *BaseSQL) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

func (b *BaseSQL) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.Logger
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// ResolveColumnType maps a database/sql column to a native type by its
// database type name, using DecimalSize for NUMERIC columns. Unrecognised
// names resolve to Unknown and are inferred from the values.
func ResolveColumnType(ct *sql.ColumnType) (types.Type, error) {
	typ, err := types.ParseTypeName(ct.DatabaseTypeName())
	if err != nil {
		return types.Of(types.Unknown), nil
	}
	if typ.IsNumeric() && typ.Tag != types.Size {
		if p, s, ok := ct.DecimalSize(); ok && p > 0 {
			return types.NumericOf(int(p), int(s))
		}
	}
	return typ, nil
}

// BindValue converts a parameter into an argument database/sql drivers
// accept. NUMERIC values travel as exact decimal text; DATE and TIME
// values travel as ISO text.
func BindValue(p Param) (any, error) {
	switch v := p.Value.(type) {
	case nil:
		return nil, nil
	case decimal.Decimal:
		if p.Type.IsNumeric() {
			return v.StringFixed(int32(p.Type.Scale)), nil
		}
		return v.String(), nil
	case *big.Int:
		return v.String(), nil
	case time.Time:
		switch p.Type.Tag {
		case types.Date:
			return v.Format("2006-01-02"), nil
		case types.Time:
			return v.Format("15:04:05.999999"), nil
		default:
			return v.UTC(), nil
		}
	case bool, int8, int16, int32, int64, uint64, float32, float64, string, []byte:
		return v, nil
	}
	return nil, core.Errorf(core.KindTypeMismatch, "cannot bind %T as %s", p.Value, p.Type)
}

// RawPrepare prepares query on the underlying driver connection and hands
// the driver statement to fn. Engines use it to inspect a statement
// without running it.
func RawPrepare(ctx context.Context, conn *sql.Conn, query string, fn func(driver.Stmt) error) error {
	return conn.Raw(func(dc any) error {
		var (
			st  driver.Stmt
			err error
		)
		switch c := dc.(type) {
		case driver.ConnPrepareContext:
			st, err = c.PrepareContext(ctx, query)
		case driver.Conn:
			st, err = c.Prepare(query)
		default:
			return ErrDescribeUnavailable
		}
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()
		return fn(st)
	})
}

// CountPlaceholders describes a statement by placeholder count only.
// Parameter types stay unavailable.
func CountPlaceholders(ctx context.Context, conn *sql.Conn, query string) (ParamInfo, error) {
	info := ParamInfo{Count: -1}
	err := RawPrepare(ctx, conn, query, func(st driver.Stmt) error {
		info.Count = st.NumInput()
		return nil
	})
	if err != nil {
		return ParamInfo{Count: -1}, err
	}
	return info, ErrDescribeUnavailable
}
