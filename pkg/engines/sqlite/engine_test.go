package sqlite

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/leapdriver/internal/testutil"
	"github.com/leapstack-labs/leapdriver/pkg/core"
	"github.com/leapstack-labs/leapdriver/pkg/engine"
	"github.com/leapstack-labs/leapdriver/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestEngine(t *testing.T, opts engine.SessionOptions) (*Engine, engine.Handle) {
	t.Helper()
	e := New(testutil.NewTestLogger(t))
	h, err := e.Open(context.Background(), engine.InMemory, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close(h) })
	return e, h
}

func mustQuery(t *testing.T, e *Engine, h engine.Handle, sql string, params ...engine.Param) *engine.Result {
	t.Helper()
	res, err := e.Query(context.Background(), h, sql, params)
	require.NoError(t, err, sql)
	return res
}

func TestEngine_Registered(t *testing.T) {
	assert.True(t, engine.IsRegistered("sqlite"))
	e, err := engine.New("sqlite", nil)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", e.Name())

	_, ok := e.Dialect().SetSchemaSQL("other")
	assert.False(t, ok)
}

func TestEngine_QueryCounts(t *testing.T) {
	e, h := openTestEngine(t, engine.SessionOptions{})

	res := mustQuery(t, e, h, "CREATE TABLE t (i INTEGER, s VARCHAR)")
	assert.Equal(t, engine.CountResult, res.Kind)
	assert.Equal(t, int64(0), res.Affected)

	res = mustQuery(t, e, h, "INSERT INTO t VALUES (1, 'a'), (2, 'b'), (3, NULL)")
	assert.Equal(t, engine.CountResult, res.Kind)
	assert.Equal(t, int64(3), res.Affected)

	res = mustQuery(t, e, h, "UPDATE t SET s = 'z' WHERE i > 1")
	assert.Equal(t, int64(2), res.Affected)

	res = mustQuery(t, e, h, "DELETE FROM t WHERE i = 1")
	assert.Equal(t, int64(1), res.Affected)
}

func TestEngine_ColumnTypes(t *testing.T) {
	e, h := openTestEngine(t, engine.SessionOptions{})

	mustQuery(t, e, h, "CREATE TABLE t (i INTEGER, b BIGINT, d DOUBLE, s VARCHAR, x BLOB)")
	mustQuery(t, e, h, "INSERT INTO t VALUES (7, 9000000000, 1.5, 'hi', x'0102'), (NULL, NULL, NULL, NULL, NULL)")

	res := mustQuery(t, e, h, "SELECT * FROM t ORDER BY i IS NULL")
	require.Equal(t, engine.RowsResult, res.Kind)
	require.Equal(t, 2, res.RowCount)

	want := []types.Tag{types.Int64, types.Int64, types.Float64, types.String, types.Blob}
	for i, tag := range want {
		assert.Equal(t, tag, res.Columns[i].Type.Tag, res.Columns[i].Name)
		assert.True(t, res.Columns[i].IsNull(1), res.Columns[i].Name)
	}

	assert.Equal(t, int64(7), int64(res.Order.Uint64(res.Columns[0].Element(0))))
	assert.Equal(t, int64(9000000000), int64(res.Order.Uint64(res.Columns[1].Element(0))))
	assert.Equal(t, 1.5, math.Float64frombits(res.Order.Uint64(res.Columns[2].Element(0))))
	assert.Equal(t, []byte("hi"), res.Columns[3].Values[0])
	assert.Equal(t, []byte{1, 2}, res.Columns[4].Values[0])
}

func TestEngine_DecimalColumnsAreDouble(t *testing.T) {
	e, h := openTestEngine(t, engine.SessionOptions{})

	mustQuery(t, e, h, "CREATE TABLE m (a DECIMAL(10,2), b NUMERIC, c DEC(5))")
	mustQuery(t, e, h, "INSERT INTO m VALUES (12.34, 5, NULL)")

	res := mustQuery(t, e, h, "SELECT a, b, c FROM m")
	require.Equal(t, 1, res.RowCount)
	for _, col := range res.Columns {
		assert.Equal(t, types.Of(types.Float64), col.Type, col.Name)
	}
	assert.Equal(t, 12.34, math.Float64frombits(res.Order.Uint64(res.Columns[0].Element(0))))
	assert.Equal(t, 5.0, math.Float64frombits(res.Order.Uint64(res.Columns[1].Element(0))), "integer storage widens")
	assert.True(t, res.Columns[2].IsNull(0))
}

func TestEngine_ExpressionColumnsInferred(t *testing.T) {
	e, h := openTestEngine(t, engine.SessionOptions{})

	res := mustQuery(t, e, h, "SELECT 1 + 1 AS n, 'x' || 'y' AS s, 2.5 AS f, NULL AS z")
	require.Equal(t, 1, res.RowCount)

	assert.Equal(t, types.Int64, res.Columns[0].Type.Tag)
	assert.Equal(t, types.String, res.Columns[1].Type.Tag)
	assert.Equal(t, types.Float64, res.Columns[2].Type.Tag)
	assert.Equal(t, types.String, res.Columns[3].Type.Tag)
	assert.True(t, res.Columns[3].IsNull(0))
}

func TestEngine_Parameters(t *testing.T) {
	e, h := openTestEngine(t, engine.SessionOptions{})
	mustQuery(t, e, h, "CREATE TABLE p (i INTEGER, s VARCHAR)")

	info, err := e.DescribeParameters(context.Background(), h, "INSERT INTO p VALUES (?, ?)")
	require.ErrorIs(t, err, engine.ErrDescribeUnavailable)
	assert.Equal(t, 2, info.Count)
	assert.Nil(t, info.Types)

	res := mustQuery(t, e, h, "INSERT INTO p VALUES (?, ?)",
		engine.Param{Type: types.Of(types.Int64), Value: int64(10)},
		engine.Param{Type: types.Of(types.String), Value: "Hello world"},
	)
	assert.Equal(t, int64(1), res.Affected)

	res = mustQuery(t, e, h, "INSERT INTO p VALUES (?, ?)",
		engine.Param{Type: types.Of(types.Int64)},
		engine.Param{Type: types.Of(types.String)},
	)
	assert.Equal(t, int64(1), res.Affected)

	res = mustQuery(t, e, h, "SELECT s FROM p WHERE i = ?", engine.Param{Type: types.Of(types.Int64), Value: int64(10)})
	require.Equal(t, 1, res.RowCount)
	assert.Equal(t, []byte("Hello world"), res.Columns[0].Values[0])

	res = mustQuery(t, e, h, "SELECT count(*) AS n FROM p WHERE i IS NULL AND s IS NULL")
	assert.Equal(t, int64(1), int64(res.Order.Uint64(res.Columns[0].Element(0))))
}

func TestEngine_Transactions(t *testing.T) {
	e, h := openTestEngine(t, engine.SessionOptions{})
	d := e.Dialect()

	mustQuery(t, e, h, "CREATE TABLE tx (i INTEGER)")
	mustQuery(t, e, h, d.Begin)
	mustQuery(t, e, h, "INSERT INTO tx VALUES (1)")
	mustQuery(t, e, h, d.Rollback)

	res := mustQuery(t, e, h, "SELECT count(*) FROM tx")
	assert.Equal(t, int64(0), int64(res.Order.Uint64(res.Columns[0].Element(0))))

	mustQuery(t, e, h, d.Begin)
	mustQuery(t, e, h, "INSERT INTO tx VALUES (1)")
	mustQuery(t, e, h, d.Commit)

	res = mustQuery(t, e, h, "SELECT count(*) FROM tx")
	assert.Equal(t, int64(1), int64(res.Order.Uint64(res.Columns[0].Element(0))))
}

func TestEngine_Pragmas(t *testing.T) {
	e, h := openTestEngine(t, engine.SessionOptions{
		Params: map[string]any{"pragmas": map[string]any{"foreign_keys": "ON"}},
	})

	res := mustQuery(t, e, h, "PRAGMA foreign_keys")
	require.Equal(t, 1, res.RowCount)
	assert.Equal(t, int64(1), int64(res.Order.Uint64(res.Columns[0].Element(0))))
}

func TestEngine_InvalidParams(t *testing.T) {
	e := New(nil)
	_, err := e.Open(context.Background(), engine.InMemory, engine.SessionOptions{
		Params: map[string]any{"extensions": []any{"json"}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrOpenFailed)
}

func TestEngine_EngineError(t *testing.T) {
	e, h := openTestEngine(t, engine.SessionOptions{})

	_, err := e.Query(context.Background(), h, "SELECT * FROM missing_table", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEngine)
	assert.Equal(t, "SQLITE1", core.CodeOf(err))
	assert.Contains(t, err.Error(), "missing_table")
}

func TestEngine_OnDisk(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "db")

	e := New(nil)
	h, err := e.Open(ctx, dir, engine.SessionOptions{})
	require.NoError(t, err)
	_, err = e.Query(ctx, h, "CREATE TABLE kept (x INTEGER)", nil)
	require.NoError(t, err)
	_, err = e.Query(ctx, h, "INSERT INTO kept VALUES (42)", nil)
	require.NoError(t, err)
	require.NoError(t, e.Close(h))
	assert.FileExists(t, filepath.Join(dir, FileName))

	h, err = e.Open(ctx, dir, engine.SessionOptions{})
	require.NoError(t, err)
	defer func() { _ = e.Close(h) }()

	res, err := e.Query(ctx, h, "SELECT x FROM kept", nil)
	require.NoError(t, err)
	require.Equal(t, 1, res.RowCount)
	assert.Equal(t, int64(42), int64(res.Order.Uint64(res.Columns[0].Element(0))))
}

func TestPragmas(t *testing.T) {
	stmts := pragmas(engine.SessionOptions{MemoryLimitMB: 2, Threads: 4}, &Params{
		Pragmas: map[string]string{"journal_mode": "WAL", "foreign_keys": "ON"},
	})

	assert.Equal(t, []string{
		"PRAGMA soft_heap_limit = 2097152",
		"PRAGMA threads = 4",
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
	}, stmts)
}
