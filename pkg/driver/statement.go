package driver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/leapstack-labs/leapdriver/pkg/core"
	"github.com/leapstack-labs/leapdriver/pkg/engine"
)

type stmtState uint8

const (
	stateIdle stmtState = iota
	stateExecuting
	stateHasResult
	stateHasRowCount
	stateClosed
)

var stateNames = [...]string{"idle", "executing", "result", "row-count", "closed"}

func (s stmtState) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("stmtState(%d)", s)
}

// BatchError reports the batch entry that aborted a batch.
// Entries after Index were not run.
type BatchError struct {
	// Index is the 0-based position of the failing entry.
	Index int
	// Counts holds the affected-row counts of the entries before Index.
	Counts []int64
	Err    error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch entry %d failed: %v", e.Index, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

type batchEntry struct {
	sql    string
	params []engine.Param
}

// Statement executes SQL on its connection. It owns at most one open
// ResultSet; executing again closes the previous one.
//
// Each execution yields either a result set or an affected-row count.
// UpdateCount reports -1 whenever the outcome is a result set.
type Statement struct {
	id     string
	conn   *Connection
	logger *slog.Logger
	// locked statements run while the caller holds the connection lock.
	locked bool

	mu                sync.Mutex
	state             stmtState
	rs                *ResultSet
	updateCount       int64
	batch             []string
	closeOnCompletion bool
	warnings          core.Warnings
}

func newStatement(c *Connection, locked bool) *Statement {
	id := uuid.NewString()
	return &Statement{
		id:          id,
		conn:        c,
		logger:      c.logger.With("statement_id", id),
		locked:      locked,
		updateCount: -1,
	}
}

// ID returns the statement's unique id.
func (s *Statement) ID() string {
	return s.id
}

// Connection returns the connection the statement runs on.
func (s *Statement) Connection() *Connection {
	return s.conn
}

// check reports why the statement is unusable. The caller holds s.mu.
func (s *Statement) check() error {
	if s.conn.closed.Load() {
		return errConnClosed()
	}
	if s.state == stateClosed {
		return core.Errorf(core.KindStatementClosed, "statement is closed")
	}
	return nil
}

func (s *Statement) query(ctx context.Context, sql string, params []engine.Param) (*engine.Result, error) {
	if s.locked {
		return s.conn.queryLocked(ctx, sql, params)
	}
	return s.conn.query(ctx, sql, params)
}

// executeLocked runs sql and records its outcome. The caller holds s.mu.
func (s *Statement) executeLocked(ctx context.Context, sql string, params []engine.Param) error {
	if err := s.check(); err != nil {
		return err
	}
	s.discardResultLocked()
	s.state = stateExecuting
	s.updateCount = -1

	start := time.Now()
	res, err := s.query(ctx, sql, params)
	if err != nil {
		s.state = stateIdle
		s.logger.Debug("statement failed", "sql", sql, "error", err)
		return err
	}

	if res.Kind == engine.RowsResult {
		s.rs = newResultSet(s, res)
		s.state = stateHasResult
		s.logger.Debug("statement executed",
			"outcome", "result",
			"rows", res.RowCount,
			"columns", len(res.Columns),
			"duration", time.Since(start))
		return nil
	}

	s.updateCount = res.Affected
	s.state = stateHasRowCount
	s.logger.Debug("statement executed",
		"outcome", "count",
		"affected", res.Affected,
		"duration", time.Since(start))
	return nil
}

// Execute runs sql and reports whether it produced a result set.
func (s *Statement) Execute(ctx context.Context, sql string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.executeLocked(ctx, sql, nil); err != nil {
		return false, err
	}
	return s.state == stateHasResult, nil
}

// ExecuteQuery runs sql and returns its result set. Statements that produce
// a row count fail with NotAResultSet.
func (s *Statement) ExecuteQuery(ctx context.Context, sql string) (*ResultSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.executeLocked(ctx, sql, nil); err != nil {
		return nil, err
	}
	return s.resultOrFail()
}

// ExecuteUpdate runs sql and returns the affected-row count. Statements
// that produce a result set fail with UnexpectedResultSet.
func (s *Statement) ExecuteUpdate(ctx context.Context, sql string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.executeLocked(ctx, sql, nil); err != nil {
		return 0, err
	}
	return s.countOrFail()
}

func (s *Statement) resultOrFail() (*ResultSet, error) {
	if s.state != stateHasResult {
		return nil, core.Errorf(core.KindNotAResultSet, "statement produced a row count (%d), not a result set", s.updateCount)
	}
	return s.rs, nil
}

func (s *Statement) countOrFail() (int64, error) {
	if s.state != stateHasRowCount {
		return 0, core.Errorf(core.KindUnexpectedResultSet, "statement produced a result set, not a row count")
	}
	return s.updateCount, nil
}

// ResultSet returns the current result set, or nil when the last execution
// produced a row count.
func (s *Statement) ResultSet() (*ResultSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	return s.rs, nil
}

// UpdateCount returns the affected-row count of the last execution, or -1
// when it produced a result set or nothing has run.
func (s *Statement) UpdateCount() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return -1, err
	}
	return s.updateCount, nil
}

// AddBatch queues sql for ExecuteBatch.
func (s *Statement) AddBatch(sql string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.batch = append(s.batch, sql)
	return nil
}

// ClearBatch empties the batch queue.
func (s *Statement) ClearBatch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.batch = nil
	return nil
}

// ExecuteBatch runs the queued statements as one unit and returns one
// affected-row count per entry. See runBatchLocked for failure handling.
func (s *Statement) ExecuteBatch(ctx context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]batchEntry, len(s.batch))
	for i, sql := range s.batch {
		entries[i] = batchEntry{sql: sql}
	}
	s.batch = nil
	return s.runBatchLocked(ctx, entries)
}

// runBatchLocked runs entries under one hold of the connection lock. In
// autocommit mode they share one transaction. The first failing entry, or
// the first entry producing a result set, aborts the batch: the
// transaction is rolled back, the statement is closed and a *BatchError
// names the entry. The caller holds s.mu.
func (s *Statement) runBatchLocked(ctx context.Context, entries []batchEntry) ([]int64, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	s.discardResultLocked()
	s.updateCount = -1
	if len(entries) == 0 {
		s.state = stateIdle
		return []int64{}, nil
	}
	s.state = stateExecuting

	start := time.Now()
	counts := make([]int64, 0, len(entries))
	err := s.conn.atomically(ctx, func(q queryFunc) error {
		for i, e := range entries {
			res, err := q(ctx, e.sql, e.params)
			if err == nil && res.Kind == engine.RowsResult {
				err = core.Errorf(core.KindUnexpectedResultSet, "batch entry %d produced a result set", i)
			}
			if err != nil {
				return &BatchError{Index: i, Counts: append([]int64(nil), counts...), Err: err}
			}
			counts = append(counts, res.Affected)
		}
		return nil
	})
	if err != nil {
		s.logger.Debug("batch failed", "entries", len(entries), "completed", len(counts), "error", err)
		if s.state != stateClosed {
			s.closeLocked()
		}
		return counts, err
	}

	s.state = stateIdle
	s.logger.Debug("batch executed", "entries", len(entries), "duration", time.Since(start))
	return counts, nil
}

// SetQueryTimeout is accepted for compatibility. Timeouts are negotiated
// once per connection, so the call only records a warning.
func (s *Statement) SetQueryTimeout(d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.warnings.Add(fmt.Sprintf("per-statement query timeout %s unsupported, using the session query timeout", d), "01000")
	return nil
}

// Cancel is not supported by the engine.
func (s *Statement) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	return core.Unsupported("statement cancel")
}

// CloseOnCompletion closes the statement once its current or next result
// set is explicitly closed.
func (s *Statement) CloseOnCompletion() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.closeOnCompletion = true
	return nil
}

// IsCloseOnCompletion reports whether CloseOnCompletion is in effect.
func (s *Statement) IsCloseOnCompletion() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeOnCompletion
}

// Warnings returns the statement's warning chain.
func (s *Statement) Warnings() []core.Warning {
	return s.warnings.List()
}

// ClearWarnings empties the statement's warning chain.
func (s *Statement) ClearWarnings() {
	s.warnings.Clear()
}

// IsClosed reports whether the statement or its connection is closed.
func (s *Statement) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateClosed || s.conn.closed.Load()
}

// Close closes the current result set, then the statement. Closing twice
// fails with StatementClosed.
func (s *Statement) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.closeLocked()
	return nil
}

func (s *Statement) closeLocked() {
	s.discardResultLocked()
	s.state = stateClosed
	s.batch = nil
	s.conn.forget(s)
	s.logger.Debug("statement closed")
}

// invalidate closes the statement on behalf of its connection.
func (s *Statement) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discardResultLocked()
	s.state = stateClosed
	s.batch = nil
}

func (s *Statement) discardResultLocked() {
	if s.rs != nil {
		s.rs.invalidate()
		s.rs = nil
	}
}

// resultClosed is called after rs was closed by its owner.
func (s *Statement) resultClosed(rs *ResultSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rs != rs {
		return
	}
	s.rs = nil
	if s.state == stateHasResult {
		s.state = stateIdle
	}
	if s.closeOnCompletion && s.state != stateClosed {
		s.closeLocked()
	}
}
