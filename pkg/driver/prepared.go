package driver

import (
	"context"
	"encoding/binary"
	"math/big"
	"time"

	"github.com/leapstack-labs/leapdriver/pkg/engine"
	"github.com/leapstack-labs/leapdriver/pkg/types"
	"github.com/shopspring/decimal"
)

// PreparedStatement is a Statement bound to one SQL text with 1-based
// positional parameters. Every parameter must be set before execution;
// unset parameters fail with ParameterNotSet rather than binding NULL.
type PreparedStatement struct {
	*Statement

	query      string
	binder     *binder
	paramTypes []types.Type
	paramBatch [][]engine.Param
	resultDesc *ResultDescriptor
}

// SQL returns the prepared SQL text.
func (p *PreparedStatement) SQL() string {
	return p.query
}

// ParameterCount returns the number of placeholders, or false when the
// engine could not count them.
func (p *PreparedStatement) ParameterCount() (int, bool) {
	return p.binder.arity, p.binder.arity >= 0
}

func (p *PreparedStatement) set(pos int, param engine.Param) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(); err != nil {
		return err
	}
	return p.binder.set(pos, param)
}

// SetBool binds a BOOLEAN.
func (p *PreparedStatement) SetBool(pos int, v bool) error {
	return p.set(pos, engine.Param{Type: types.Of(types.Bool), Value: v})
}

// SetInt8 binds a TINYINT.
func (p *PreparedStatement) SetInt8(pos int, v int8) error {
	return p.set(pos, engine.Param{Type: types.Of(types.Int8), Value: v})
}

// SetInt16 binds a SMALLINT.
func (p *PreparedStatement) SetInt16(pos int, v int16) error {
	return p.set(pos, engine.Param{Type: types.Of(types.Int16), Value: v})
}

// SetInt32 binds an INTEGER.
func (p *PreparedStatement) SetInt32(pos int, v int32) error {
	return p.set(pos, engine.Param{Type: types.Of(types.Int32), Value: v})
}

// SetInt64 binds a BIGINT.
func (p *PreparedStatement) SetInt64(pos int, v int64) error {
	return p.set(pos, engine.Param{Type: types.Of(types.Int64), Value: v})
}

// SetUint64 binds an unsigned 64-bit integer.
func (p *PreparedStatement) SetUint64(pos int, v uint64) error {
	return p.set(pos, engine.Param{Type: types.Of(types.Size), Value: v})
}

// SetFloat32 binds a REAL.
func (p *PreparedStatement) SetFloat32(pos int, v float32) error {
	return p.set(pos, engine.Param{Type: types.Of(types.Float32), Value: v})
}

// SetFloat64 binds a DOUBLE.
func (p *PreparedStatement) SetFloat64(pos int, v float64) error {
	return p.set(pos, engine.Param{Type: types.Of(types.Float64), Value: v})
}

// SetString binds a VARCHAR.
func (p *PreparedStatement) SetString(pos int, v string) error {
	return p.set(pos, engine.Param{Type: types.Of(types.String), Value: v})
}

// SetBytes binds a BLOB. A nil slice binds NULL.
func (p *PreparedStatement) SetBytes(pos int, v []byte) error {
	param, _ := paramOf(v)
	return p.set(pos, param)
}

// SetDate binds the calendar date of v.
func (p *PreparedStatement) SetDate(pos int, v time.Time) error {
	return p.set(pos, engine.Param{Type: types.Of(types.Date), Value: v})
}

// SetTime binds the time of day of v.
func (p *PreparedStatement) SetTime(pos int, v time.Time) error {
	return p.set(pos, engine.Param{Type: types.Of(types.Time), Value: v})
}

// SetTimestamp binds a TIMESTAMP.
func (p *PreparedStatement) SetTimestamp(pos int, v time.Time) error {
	return p.set(pos, engine.Param{Type: types.Of(types.Timestamp), Value: v})
}

// SetBigInt binds a 128-bit integer. A nil v binds NULL.
func (p *PreparedStatement) SetBigInt(pos int, v *big.Int) error {
	if v != nil {
		if err := types.EncodeInt128(binary.LittleEndian, make([]byte, 16), v); err != nil {
			return err
		}
	}
	param, _ := paramOf(v)
	return p.set(pos, param)
}

// SetDecimal binds a NUMERIC. When position pos was described as a NUMERIC
// with a known precision, v is rescaled to that type and must fit it
// exactly; otherwise v binds at its own precision and scale.
func (p *PreparedStatement) SetDecimal(pos int, v decimal.Decimal) error {
	var (
		param engine.Param
		err   error
	)
	if described, ok := p.describedNumeric(pos); ok {
		param, err = rescale(v, described)
	} else {
		param, err = paramOf(v)
	}
	if err != nil {
		return err
	}
	return p.set(pos, param)
}

func (p *PreparedStatement) describedNumeric(pos int) (types.Type, bool) {
	if pos < 1 || pos > len(p.paramTypes) {
		return types.Type{}, false
	}
	t := p.paramTypes[pos-1]
	return t, t.IsNumeric() && t.Sized()
}

// SetNull binds a NULL of sqlType. When the statement was described and
// position pos has that portable type with a known precision, the described
// precision and scale are kept.
func (p *PreparedStatement) SetNull(pos int, sqlType types.SQLType) error {
	typ, err := types.OfSQL(sqlType)
	if err != nil {
		return err
	}
	if pos >= 1 && pos <= len(p.paramTypes) {
		if described := p.paramTypes[pos-1]; described.SQL == sqlType && described.Sized() {
			typ = described
		}
	}
	return p.set(pos, engine.Param{Type: typ})
}

// SetValue binds any supported Go value, including a Value read from a
// result set. nil binds an untyped NULL.
func (p *PreparedStatement) SetValue(pos int, v any) error {
	if d, ok := v.(decimal.Decimal); ok {
		return p.SetDecimal(pos, d)
	}
	param, err := paramOf(v)
	if err != nil {
		return err
	}
	return p.set(pos, param)
}

// ClearParameters unsets every parameter.
func (p *PreparedStatement) ClearParameters() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(); err != nil {
		return err
	}
	p.binder.clear()
	return nil
}

func (p *PreparedStatement) executeBound(ctx context.Context) error {
	if err := p.check(); err != nil {
		return err
	}
	params, err := p.binder.params()
	if err != nil {
		return err
	}
	if err := p.executeLocked(ctx, p.query, params); err != nil {
		return err
	}
	if p.rs != nil {
		p.resultDesc = p.rs.Descriptor()
	}
	return nil
}

// Execute runs the statement with the bound parameters and reports
// whether it produced a result set.
func (p *PreparedStatement) Execute(ctx context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.executeBound(ctx); err != nil {
		return false, err
	}
	return p.state == stateHasResult, nil
}

// ExecuteQuery runs the statement and returns its result set.
func (p *PreparedStatement) ExecuteQuery(ctx context.Context) (*ResultSet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.executeBound(ctx); err != nil {
		return nil, err
	}
	return p.resultOrFail()
}

// ExecuteUpdate runs the statement and returns the affected-row count.
func (p *PreparedStatement) ExecuteUpdate(ctx context.Context) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.executeBound(ctx); err != nil {
		return 0, err
	}
	return p.countOrFail()
}

// AddBatch queues a copy of the current parameter set.
func (p *PreparedStatement) AddBatch() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(); err != nil {
		return err
	}
	params, err := p.binder.params()
	if err != nil {
		return err
	}
	p.paramBatch = append(p.paramBatch, params)
	return nil
}

// ClearBatch drops the queued parameter sets.
func (p *PreparedStatement) ClearBatch() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(); err != nil {
		return err
	}
	p.paramBatch = nil
	return nil
}

// ExecuteBatch runs the statement once per queued parameter set.
func (p *PreparedStatement) ExecuteBatch(ctx context.Context) ([]int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entries := make([]batchEntry, len(p.paramBatch))
	for i, params := range p.paramBatch {
		entries[i] = batchEntry{sql: p.query, params: params}
	}
	p.paramBatch = nil
	return p.runBatchLocked(ctx, entries)
}

// ParameterDescriptor describes the statement's parameters. It reports
// false, with an empty descriptor, when the engine could not describe
// parameter types.
func (p *PreparedStatement) ParameterDescriptor() (*ParameterDescriptor, bool) {
	if p.paramTypes == nil {
		return newParameterDescriptor(nil), false
	}
	return newParameterDescriptor(p.paramTypes), true
}

// ResultDescriptor describes the columns of the statement's result set.
// It reports false until an execution has produced a result set.
func (p *PreparedStatement) ResultDescriptor() (*ResultDescriptor, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resultDesc, p.resultDesc != nil
}
