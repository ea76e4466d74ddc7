// Package engine defines the contract between the driver and an embedded
// database engine.
//
// An engine is an opaque, in-process collaborator reached through four entry
// points: open, close, query and describe-parameters. Sessions are addressed
// by Handle values; the engine owns whatever lies behind a handle. Query
// results come back in the engine's native columnar shape (see Result).
//
// Concrete engines live in pkg/engines/* and register themselves from init().
package engine

import (
	"context"
	"errors"

	"github.com/leapstack-labs/leapdriver/pkg/types"
)

// Handle identifies an open engine session. The zero Handle is never valid.
type Handle uint64

// Param is one bound parameter value handed to the engine.
// A nil Value is a typed null of Type.
type Param struct {
	Type  types.Type
	Value any
}

// ParamInfo describes the parameters of a statement ahead of execution.
type ParamInfo struct {
	// Count is the number of placeholders, or -1 when the engine cannot tell.
	Count int
	// Types is nil when the engine cannot describe parameter types.
	Types []types.Type
}

// ErrDescribeUnavailable is returned by engines that cannot describe
// parameter types ahead of execution.
var ErrDescribeUnavailable = errors.New("parameter description unavailable")

// Engine is the native collaborator behind a connection.
type Engine interface {
	// Name returns the registered engine name.
	Name() string

	// Open starts a session on location (":memory:" or a directory) with the
	// negotiated options. Failures carry the engine's diagnostic text.
	Open(ctx context.Context, location string, opts SessionOptions) (Handle, error)

	// Close ends a session and invalidates its handle.
	Close(h Handle) error

	// Query runs one SQL text and returns either a columnar result or an
	// affected-row count.
	Query(ctx context.Context, h Handle, sql string, params []Param) (*Result, error)

	// DescribeParameters reports the placeholders of sql without running it.
	DescribeParameters(ctx context.Context, h Handle, sql string) (ParamInfo, error)

	// Dialect returns the control statements understood by the engine.
	Dialect() *Dialect
}
