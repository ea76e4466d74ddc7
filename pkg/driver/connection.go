package driver

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/leapstack-labs/leapdriver/pkg/core"
	"github.com/leapstack-labs/leapdriver/pkg/engine"
	"github.com/leapstack-labs/leapdriver/pkg/types"
)

// Connection is one session on an embedded engine. It exclusively owns the
// engine handle and serializes every engine call made through it, so
// statements created from one connection may be used from several
// goroutines.
//
// Closing a connection closes every statement and result set created
// from it; further use fails with ConnectionClosed.
type Connection struct {
	id      string
	cfg     Config
	opts    engine.SessionOptions
	engine  engine.Engine
	dialect *engine.Dialect
	logger  *slog.Logger

	// mu serializes engine calls and guards handle and autoCommit.
	mu         sync.Mutex
	handle     engine.Handle
	autoCommit bool
	closed     atomic.Bool

	stmtMu sync.Mutex
	stmts  map[*Statement]struct{}

	warnings core.Warnings
}

type queryFunc func(ctx context.Context, sql string, params []engine.Param) (*engine.Result, error)

func errConnClosed() error {
	return core.Errorf(core.KindConnectionClosed, "connection is closed")
}

// Open opens a connection on the engine named by cfg.Engine.
// A nil logger discards output.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Connection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e, err := engine.New(cfg.engineName(), logger)
	if err != nil {
		return nil, &core.Error{Kind: core.KindOpenFailed, Msg: err.Error(), Err: err}
	}
	return OpenEngine(ctx, e, cfg, logger)
}

// OpenEngine opens a connection on e.
func OpenEngine(ctx context.Context, e engine.Engine, cfg Config, logger *slog.Logger) (*Connection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	opts := cfg.SessionOptions()
	h, err := e.Open(ctx, cfg.Location, opts)
	if err != nil {
		if core.KindOf(err) == core.KindOpenFailed {
			return nil, err
		}
		return nil, &core.Error{Kind: core.KindOpenFailed, Msg: err.Error(), Code: core.CodeOf(err), Err: err}
	}

	id := uuid.NewString()
	c := &Connection{
		id:         id,
		cfg:        cfg,
		opts:       opts,
		engine:     e,
		dialect:    e.Dialect(),
		logger:     logger.With("connection_id", id),
		handle:     h,
		autoCommit: true,
		stmts:      make(map[*Statement]struct{}),
	}

	if !cfg.AutoCommit {
		c.mu.Lock()
		err := c.controlLocked(ctx, c.dialect.Begin)
		if err == nil {
			c.autoCommit = false
		}
		c.mu.Unlock()
		if err != nil {
			_ = e.Close(h)
			return nil, err
		}
	}

	c.logger.Debug("connection opened",
		"engine", e.Name(),
		"location", cfg.Location,
		"autocommit", cfg.AutoCommit)
	return c, nil
}

// ID returns the connection's unique id.
func (c *Connection) ID() string {
	return c.id
}

// Engine returns the name of the engine behind the connection.
func (c *Connection) Engine() string {
	return c.engine.Name()
}

// Config returns the configuration the connection was opened with.
func (c *Connection) Config() Config {
	return c.cfg
}

// Options returns the negotiated session options.
func (c *Connection) Options() engine.SessionOptions {
	return c.opts
}

// IsClosed reports whether the connection has been closed.
func (c *Connection) IsClosed() bool {
	return c.closed.Load()
}

// query runs one engine call under the connection lock.
func (c *Connection) query(ctx context.Context, sql string, params []engine.Param) (*engine.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queryLocked(ctx, sql, params)
}

// queryLocked runs one engine call. The caller holds c.mu; the closed flag
// is re-checked because the handle dies with the connection.
func (c *Connection) queryLocked(ctx context.Context, sql string, params []engine.Param) (*engine.Result, error) {
	if c.closed.Load() {
		return nil, errConnClosed()
	}
	res, err := c.engine.Query(ctx, c.handle, sql, params)
	if err != nil {
		return nil, core.EngineError(err, "")
	}
	return res, nil
}

// controlLocked issues control statements through a transient statement.
// The caller holds c.mu.
func (c *Connection) controlLocked(ctx context.Context, sqls ...string) error {
	st := newStatement(c, true)
	defer st.invalidate()
	for _, sql := range sqls {
		if _, err := st.ExecuteUpdate(ctx, sql); err != nil {
			return err
		}
	}
	return nil
}

// atomically runs fn under one hold of the connection lock. In autocommit
// mode fn runs inside a transaction that is committed when fn succeeds and
// rolled back when it fails.
func (c *Connection) atomically(ctx context.Context, fn func(q queryFunc) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return errConnClosed()
	}
	if !c.autoCommit {
		return fn(c.queryLocked)
	}

	if err := c.controlLocked(ctx, c.dialect.Begin); err != nil {
		return err
	}
	if err := fn(c.queryLocked); err != nil {
		if rbErr := c.controlLocked(ctx, c.dialect.Rollback); rbErr != nil {
			c.logger.Warn("rollback after failed batch failed", "error", rbErr)
		}
		return err
	}
	return c.controlLocked(ctx, c.dialect.Commit)
}

// CreateStatement creates a statement on the connection.
func (c *Connection) CreateStatement() (*Statement, error) {
	st := newStatement(c, false)
	if err := c.track(st); err != nil {
		return nil, err
	}
	return st, nil
}

// Prepare creates a prepared statement for sql. The engine is asked to
// describe the parameters; engines that cannot leave the parameter
// descriptor empty.
func (c *Connection) Prepare(ctx context.Context, sql string) (*PreparedStatement, error) {
	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		return nil, errConnClosed()
	}
	info, err := c.engine.DescribeParameters(ctx, c.handle, sql)
	c.mu.Unlock()

	var paramTypes []types.Type
	switch {
	case err == nil:
		paramTypes = append(make([]types.Type, 0, len(info.Types)), info.Types...)
	case errors.Is(err, engine.ErrDescribeUnavailable):
		c.logger.Debug("parameter description unavailable", "sql", sql, "count", info.Count)
	default:
		return nil, core.EngineError(err, "")
	}

	ps := &PreparedStatement{
		Statement:  newStatement(c, false),
		query:      sql,
		binder:     newBinder(info.Count),
		paramTypes: paramTypes,
	}
	if err := c.track(ps.Statement); err != nil {
		return nil, err
	}
	return ps, nil
}

func (c *Connection) track(st *Statement) error {
	c.stmtMu.Lock()
	defer c.stmtMu.Unlock()
	if c.closed.Load() {
		return errConnClosed()
	}
	c.stmts[st] = struct{}{}
	return nil
}

func (c *Connection) forget(st *Statement) {
	c.stmtMu.Lock()
	defer c.stmtMu.Unlock()
	delete(c.stmts, st)
}

// GetAutoCommit reports whether each statement commits on its own.
func (c *Connection) GetAutoCommit() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return false, errConnClosed()
	}
	return c.autoCommit, nil
}

// SetAutoCommit switches autocommit mode. Turning it off opens a
// transaction; turning it back on commits the open transaction.
func (c *Connection) SetAutoCommit(ctx context.Context, on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return errConnClosed()
	}
	if on == c.autoCommit {
		return nil
	}

	stmt := c.dialect.Begin
	if on {
		stmt = c.dialect.Commit
	}
	if err := c.controlLocked(ctx, stmt); err != nil {
		return err
	}
	c.autoCommit = on
	c.logger.Debug("autocommit changed", "autocommit", on)
	return nil
}

// Commit makes the open transaction durable and starts the next one.
// It fails with InvalidState in autocommit mode.
func (c *Connection) Commit(ctx context.Context) error {
	return c.endTransaction(ctx, c.dialect.Commit, "commit")
}

// Rollback discards the open transaction and starts the next one.
// It fails with InvalidState in autocommit mode.
func (c *Connection) Rollback(ctx context.Context) error {
	return c.endTransaction(ctx, c.dialect.Rollback, "rollback")
}

func (c *Connection) endTransaction(ctx context.Context, stmt, op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return errConnClosed()
	}
	if c.autoCommit {
		return core.Errorf(core.KindInvalidState, "%s is not allowed in autocommit mode", op)
	}
	if err := c.controlLocked(ctx, stmt, c.dialect.Begin); err != nil {
		return err
	}
	c.logger.Debug("transaction ended", "op", op)
	return nil
}

// SetSchema makes name the current schema.
func (c *Connection) SetSchema(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return errConnClosed()
	}
	stmt, ok := c.dialect.SetSchemaSQL(name)
	if !ok {
		return core.Unsupported(c.dialect.Name + " schema switching")
	}
	return c.controlLocked(ctx, stmt)
}

// GetSchema asks the engine for the current schema.
func (c *Connection) GetSchema(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return "", errConnClosed()
	}

	st := newStatement(c, true)
	defer st.invalidate()
	rs, err := st.ExecuteQuery(ctx, c.dialect.CurrentSchema)
	if err != nil {
		return "", err
	}
	ok, err := rs.Next()
	if err != nil {
		return "", err
	}
	if !ok || rs.ColumnCount() == 0 {
		return "", core.Errorf(core.KindEngineError, "current schema query returned no value")
	}
	return rs.GetString(1)
}

// Ping checks that the engine session still answers queries.
func (c *Connection) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return errConnClosed()
	}
	st := newStatement(c, true)
	defer st.invalidate()
	_, err := st.ExecuteQuery(ctx, "SELECT 1")
	return err
}

// SetReadOnly accepts the hint with a warning; engines run read-write.
func (c *Connection) SetReadOnly(readOnly bool) error {
	if c.closed.Load() {
		return errConnClosed()
	}
	if readOnly {
		c.warnings.Add("read-only mode unsupported, continuing", "01000")
	}
	return nil
}

// IsReadOnly always reports false.
func (c *Connection) IsReadOnly() bool {
	return false
}

// SetCatalog is not supported.
func (c *Connection) SetCatalog(string) error {
	if c.closed.Load() {
		return errConnClosed()
	}
	return core.Unsupported("catalogs")
}

// SetSavepoint is not supported.
func (c *Connection) SetSavepoint(string) error {
	if c.closed.Load() {
		return errConnClosed()
	}
	return core.Unsupported("savepoints")
}

// ReleaseSavepoint is not supported.
func (c *Connection) ReleaseSavepoint(string) error {
	if c.closed.Load() {
		return errConnClosed()
	}
	return core.Unsupported("savepoints")
}

// Warnings returns the connection's warning chain.
func (c *Connection) Warnings() []core.Warning {
	return c.warnings.List()
}

// ClearWarnings empties the connection's warning chain.
func (c *Connection) ClearWarnings() {
	c.warnings.Clear()
}

// Close ends the engine session and closes every statement and result set
// created from the connection. Closing twice fails with AlreadyClosed.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		return core.Errorf(core.KindAlreadyClosed, "connection is already closed")
	}
	c.closed.Store(true)
	err := c.engine.Close(c.handle)
	c.handle = 0
	c.mu.Unlock()

	c.stmtMu.Lock()
	stmts := c.stmts
	c.stmts = nil
	c.stmtMu.Unlock()
	for st := range stmts {
		st.invalidate()
	}

	c.logger.Debug("connection closed", "statements", len(stmts))
	if err != nil {
		return core.EngineError(err, "")
	}
	return nil
}
