// Package enginetest provides a scripted in-process engine for driver tests.
//
// Responses are registered per SQL text. Buffers are produced in big-endian
// order so that consumers cannot rely on the host byte order.
package enginetest

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leapstack-labs/leapdriver/pkg/core"
	"github.com/leapstack-labs/leapdriver/pkg/engine"
	"github.com/leapstack-labs/leapdriver/pkg/types"
)

// Order is the byte order of every buffer built by this package.
var Order binary.ByteOrder = binary.BigEndian

// Name is the engine name reported by Engine.
const Name = "enginetest"

// Call records one Query invocation.
type Call struct {
	Handle engine.Handle
	SQL    string
	Params []engine.Param
}

type response struct {
	result *engine.Result
	err    error
}

// Engine is a scripted engine.Engine. Unscripted SQL fails with an
// EngineError naming the statement.
type Engine struct {
	// Delay is slept inside every Query while the call counts as in flight.
	Delay time.Duration
	// OpenErr, when set, is returned by Open.
	OpenErr error

	mu        sync.Mutex
	responses map[string]response
	describe  map[string]engine.ParamInfo
	calls     []Call
	opened    []engine.SessionOptions

	sessions    engine.Arena[string]
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

// New creates an empty scripted engine.
func New() *Engine {
	return &Engine{
		responses: make(map[string]response),
		describe:  make(map[string]engine.ParamInfo),
	}
}

// OnRows scripts sql to return a columnar result built from cols.
func (e *Engine) OnRows(sql string, cols ...engine.Column) *Engine {
	return e.on(sql, response{result: engine.NewRowsResult(Order, cols...)})
}

// OnCount scripts sql to return an affected-row count.
func (e *Engine) OnCount(sql string, n int64) *Engine {
	return e.on(sql, response{result: engine.NewCountResult(n)})
}

// OnError scripts sql to fail with err.
func (e *Engine) OnError(sql string, err error) *Engine {
	return e.on(sql, response{err: err})
}

// OnDescribe scripts the parameter description of sql.
func (e *Engine) OnDescribe(sql string, info engine.ParamInfo) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.describe[sql] = info
	return e
}

func (e *Engine) on(sql string, r response) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.responses[sql] = r
	return e
}

// Name returns the engine name.
func (e *Engine) Name() string {
	return Name
}

// Open starts a scripted session.
func (e *Engine) Open(_ context.Context, location string, opts engine.SessionOptions) (engine.Handle, error) {
	if e.OpenErr != nil {
		return 0, e.OpenErr
	}
	e.mu.Lock()
	e.opened = append(e.opened, opts)
	e.mu.Unlock()
	return e.sessions.Put(location), nil
}

// Close ends a scripted session.
func (e *Engine) Close(h engine.Handle) error {
	if _, ok := e.sessions.Remove(h); !ok {
		return core.Errorf(core.KindConnectionClosed, "engine handle %d is not open", h)
	}
	return nil
}

// Query answers sql from the script.
func (e *Engine) Query(ctx context.Context, h engine.Handle, sql string, params []engine.Param) (*engine.Result, error) {
	n := e.inFlight.Add(1)
	defer e.inFlight.Add(-1)
	for {
		peak := e.maxInFlight.Load()
		if n <= peak || e.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}

	if _, ok := e.sessions.Get(h); !ok {
		return nil, core.Errorf(core.KindConnectionClosed, "engine handle %d is not open", h)
	}

	e.mu.Lock()
	e.calls = append(e.calls, Call{Handle: h, SQL: sql, Params: append([]engine.Param(nil), params...)})
	r, ok := e.responses[sql]
	e.mu.Unlock()

	if e.Delay > 0 {
		select {
		case <-time.After(e.Delay):
		case <-ctx.Done():
			return nil, core.EngineError(ctx.Err(), core.CodeTimeout)
		}
	}

	if !ok {
		return nil, core.EngineError(fmt.Errorf("no scripted response for %q", sql), "")
	}
	if r.err != nil {
		return nil, core.EngineError(r.err, "")
	}
	return r.result, nil
}

// DescribeParameters answers from the describe script. Unscripted SQL is
// reported as undescribable.
func (e *Engine) DescribeParameters(_ context.Context, h engine.Handle, sql string) (engine.ParamInfo, error) {
	if _, ok := e.sessions.Get(h); !ok {
		return engine.ParamInfo{Count: -1}, core.Errorf(core.KindConnectionClosed, "engine handle %d is not open", h)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	info, ok := e.describe[sql]
	if !ok {
		return engine.ParamInfo{Count: -1}, engine.ErrDescribeUnavailable
	}
	if info.Types == nil {
		return info, engine.ErrDescribeUnavailable
	}
	return info, nil
}

var dialect = &engine.Dialect{
	Name:          Name,
	Begin:         "BEGIN",
	Commit:        "COMMIT",
	Rollback:      "ROLLBACK",
	CurrentSchema: "SELECT current_schema()",
	SwitchSchema: func(name string) string {
		return "SET schema = " + engine.QuoteString(name)
	},
}

// Dialect returns the scripted control statements.
func (e *Engine) Dialect() *engine.Dialect {
	return dialect
}

// Calls returns the SQL texts seen by Query, in order.
func (e *Engine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.calls))
	for i, c := range e.calls {
		out[i] = c.SQL
	}
	return out
}

// LastCall returns the most recent Query invocation.
func (e *Engine) LastCall() (Call, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.calls) == 0 {
		return Call{}, false
	}
	return e.calls[len(e.calls)-1], true
}

// Opened returns the session options passed to each Open.
func (e *Engine) Opened() []engine.SessionOptions {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]engine.SessionOptions(nil), e.opened...)
}

// Sessions returns the number of open sessions.
func (e *Engine) Sessions() int {
	return e.sessions.Len()
}

// MaxInFlight returns the highest number of Query calls observed running
// at the same time.
func (e *Engine) MaxInFlight() int {
	return int(e.maxInFlight.Load())
}

// Column builds a native column from Go values; nil entries are nulls.
// It panics on values the column type cannot hold.
func Column(name string, typ types.Type, values ...any) engine.Column {
	b := engine.NewColumnBuilder(name, typ, types.NullableUnknown, Order)
	for _, v := range values {
		if err := b.Append(v); err != nil {
			panic(err)
		}
	}
	return b.Build()
}
