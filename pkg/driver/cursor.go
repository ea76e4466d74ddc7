package driver

import (
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/leapstack-labs/leapdriver/pkg/core"
	"github.com/leapstack-labs/leapdriver/pkg/engine"
	"github.com/shopspring/decimal"
)

// ResultSet is a scrollable cursor over a materialized columnar result.
//
// Rows are numbered from 1. Position 0 is before the first row and
// RowCount()+1 is after the last row; neither addresses a row. Column
// indices are 1-based. A ResultSet is safe for concurrent use; Close waits
// for reads in progress.
type ResultSet struct {
	stmt *Statement

	mu       sync.Mutex
	cols     []*ColumnView
	names    map[string]int
	desc     *ResultDescriptor
	rowCount int
	pos      int
	wasNull  bool
	closed   bool
}

func newResultSet(stmt *Statement, res *engine.Result) *ResultSet {
	rs := &ResultSet{
		stmt:     stmt,
		cols:     make([]*ColumnView, len(res.Columns)),
		names:    make(map[string]int, len(res.Columns)),
		rowCount: res.RowCount,
	}
	for i, col := range res.Columns {
		rs.cols[i] = newColumnView(col, res.Order)
		key := strings.ToLower(col.Name)
		if _, dup := rs.names[key]; !dup {
			rs.names[key] = i + 1
		}
	}
	rs.desc = newResultDescriptor(rs.cols)
	return rs
}

// check reports why the cursor is unusable. The caller holds rs.mu.
func (rs *ResultSet) check() error {
	if rs.stmt != nil && rs.stmt.conn.closed.Load() {
		return errConnClosed()
	}
	if rs.closed {
		return core.Errorf(core.KindStatementClosed, "result set is closed")
	}
	return nil
}

// Statement returns the statement that produced the result set.
func (rs *ResultSet) Statement() *Statement {
	return rs.stmt
}

// RowCount returns the number of rows in the result.
func (rs *ResultSet) RowCount() int {
	return rs.rowCount
}

// ColumnCount returns the number of columns in the result.
func (rs *ResultSet) ColumnCount() int {
	return rs.desc.ColumnCount()
}

// Descriptor returns the column descriptor of the result.
func (rs *ResultSet) Descriptor() *ResultDescriptor {
	return rs.desc
}

// Absolute moves to row. Negative rows count from the end, so -1 is the
// last row. Targets outside the result clamp to before-first or after-last.
// It reports whether the cursor is on a row.
func (rs *ResultSet) Absolute(row int) (bool, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if err := rs.check(); err != nil {
		return false, err
	}
	return rs.moveTo(row), nil
}

// Relative is Absolute(current + delta): a negative target counts from the
// end. It reports whether the cursor is on a row.
func (rs *ResultSet) Relative(delta int) (bool, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if err := rs.check(); err != nil {
		return false, err
	}
	return rs.moveTo(rs.pos + delta), nil
}

// moveTo positions the cursor at target, where a negative target counts
// from the end, and clamps to before-first or after-last.
func (rs *ResultSet) moveTo(target int) bool {
	if target < 0 {
		target = rs.rowCount + 1 + target
	}
	switch {
	case target <= 0:
		rs.pos = 0
	case target > rs.rowCount:
		rs.pos = rs.rowCount + 1
	default:
		rs.pos = target
	}
	return rs.onRow()
}

func (rs *ResultSet) onRow() bool {
	return rs.pos >= 1 && rs.pos <= rs.rowCount
}

// Next advances one row.
func (rs *ResultSet) Next() (bool, error) {
	return rs.Relative(1)
}

// Previous moves back one row.
func (rs *ResultSet) Previous() (bool, error) {
	return rs.Relative(-1)
}

// First moves to the first row.
func (rs *ResultSet) First() (bool, error) {
	return rs.Absolute(1)
}

// Last moves to the last row.
func (rs *ResultSet) Last() (bool, error) {
	return rs.Absolute(-1)
}

// BeforeFirst moves before the first row.
func (rs *ResultSet) BeforeFirst() error {
	_, err := rs.Absolute(0)
	return err
}

// AfterLast moves after the last row.
func (rs *ResultSet) AfterLast() error {
	_, err := rs.Absolute(rs.rowCount + 1)
	return err
}

// IsBeforeFirst reports whether the cursor is before the first row of a
// non-empty result.
func (rs *ResultSet) IsBeforeFirst() (bool, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if err := rs.check(); err != nil {
		return false, err
	}
	return rs.rowCount > 0 && rs.pos == 0, nil
}

// IsAfterLast reports whether the cursor is after the last row of a
// non-empty result.
func (rs *ResultSet) IsAfterLast() (bool, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if err := rs.check(); err != nil {
		return false, err
	}
	return rs.rowCount > 0 && rs.pos == rs.rowCount+1, nil
}

// Row returns the current row number, or 0 when not on a row.
func (rs *ResultSet) Row() (int, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if err := rs.check(); err != nil {
		return 0, err
	}
	if !rs.onRow() {
		return 0, nil
	}
	return rs.pos, nil
}

// FindColumn returns the index of the first column named name,
// compared case-insensitively.
func (rs *ResultSet) FindColumn(name string) (int, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if err := rs.check(); err != nil {
		return 0, err
	}
	i, ok := rs.names[strings.ToLower(name)]
	if !ok {
		return 0, core.Errorf(core.KindColumnOutOfRange, "no column named %q", name)
	}
	return i, nil
}

// WasNull reports whether the last cell read was NULL.
func (rs *ResultSet) WasNull() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.wasNull
}

// read decodes the cell at col on the current row and projects it.
// The null flag is only updated by reads that succeed.
func read[T any](rs *ResultSet, col int, project func(Value) (T, error)) (T, error) {
	var zero T
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if err := rs.check(); err != nil {
		return zero, err
	}
	if col < 1 || col > len(rs.cols) {
		return zero, core.Errorf(core.KindColumnOutOfRange, "column %d out of range [1, %d]", col, len(rs.cols))
	}
	if !rs.onRow() {
		return zero, core.Errorf(core.KindInvalidCursorPosition, "cursor is not on a row (position %d of %d)", rs.pos, rs.rowCount)
	}
	v, err := rs.cols[col-1].Value(rs.pos - 1)
	if err != nil {
		return zero, err
	}
	out, err := project(v)
	if err != nil {
		return zero, err
	}
	rs.wasNull = v.IsNull()
	return out, nil
}

// GetValue returns the cell at col as a tagged Value.
func (rs *ResultSet) GetValue(col int) (Value, error) {
	return read(rs, col, func(v Value) (Value, error) { return v, nil })
}

// GetBool reads a BOOLEAN cell.
func (rs *ResultSet) GetBool(col int) (bool, error) {
	return read(rs, col, Value.AsBool)
}

// GetInt8 reads a TINYINT cell.
func (rs *ResultSet) GetInt8(col int) (int8, error) {
	return read(rs, col, Value.AsInt8)
}

// GetInt16 reads an integer cell of at most 16 bits.
func (rs *ResultSet) GetInt16(col int) (int16, error) {
	return read(rs, col, Value.AsInt16)
}

// GetInt32 reads an integer cell of at most 32 bits.
func (rs *ResultSet) GetInt32(col int) (int32, error) {
	return read(rs, col, Value.AsInt32)
}

// GetInt64 reads an integer cell of at most 64 bits.
func (rs *ResultSet) GetInt64(col int) (int64, error) {
	return read(rs, col, Value.AsInt64)
}

// GetUint64 reads an unsigned 64-bit cell.
func (rs *ResultSet) GetUint64(col int) (uint64, error) {
	return read(rs, col, Value.AsUint64)
}

// GetFloat32 reads a REAL cell.
func (rs *ResultSet) GetFloat32(col int) (float32, error) {
	return read(rs, col, Value.AsFloat32)
}

// GetFloat64 reads a DOUBLE or REAL cell.
func (rs *ResultSet) GetFloat64(col int) (float64, error) {
	return read(rs, col, Value.AsFloat64)
}

// GetString reads a VARCHAR cell, or a NUMERIC cell as exact text.
func (rs *ResultSet) GetString(col int) (string, error) {
	return read(rs, col, Value.AsString)
}

// GetBytes reads a BLOB cell.
func (rs *ResultSet) GetBytes(col int) ([]byte, error) {
	return read(rs, col, Value.AsBytes)
}

// GetTime reads a DATE, TIME or TIMESTAMP cell.
func (rs *ResultSet) GetTime(col int) (time.Time, error) {
	return read(rs, col, Value.AsTime)
}

// GetBigInt reads an integer cell of any width.
func (rs *ResultSet) GetBigInt(col int) (*big.Int, error) {
	return read(rs, col, Value.AsBigInt)
}

// GetDecimal reads a NUMERIC or integer cell exactly.
func (rs *ResultSet) GetDecimal(col int) (decimal.Decimal, error) {
	return read(rs, col, Value.AsDecimal)
}

// IsClosed reports whether the result set has been closed.
func (rs *ResultSet) IsClosed() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.closed
}

// Close releases the result. Closing twice fails with StatementClosed.
// A statement in close-on-completion mode closes with its result.
func (rs *ResultSet) Close() error {
	rs.mu.Lock()
	if err := rs.check(); err != nil {
		rs.mu.Unlock()
		return err
	}
	rs.invalidateLocked()
	rs.mu.Unlock()

	if rs.stmt != nil {
		rs.stmt.resultClosed(rs)
	}
	return nil
}

// invalidate closes the result on behalf of its statement or connection,
// once reads in progress finish.
func (rs *ResultSet) invalidate() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.invalidateLocked()
}

func (rs *ResultSet) invalidateLocked() {
	rs.closed = true
	rs.cols = nil
	rs.pos = 0
}
