package engine

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/leapdriver/internal/testutil"
	"github.com/leapstack-labs/leapdriver/pkg/core"
	"github.com/leapstack-labs/leapdriver/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockBase(t *testing.T, hooks Hooks) (*BaseSQL, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	hooks.OpenDB = func(string, SessionOptions) (*sql.DB, error) { return db, nil }
	return &BaseSQL{FileName: "test.db", Logger: testutil.NewTestLogger(t), Hooks: hooks}, mock
}

func TestBaseSQL_OpenFailed(t *testing.T) {
	base := &BaseSQL{Hooks: Hooks{
		OpenDB: func(string, SessionOptions) (*sql.DB, error) {
			return nil, errors.New("IO Error: Cannot open file")
		},
	}}

	_, err := base.Open(context.Background(), InMemory, SessionOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrOpenFailed)
	assert.Contains(t, err.Error(), "IO Error: Cannot open file")
	assert.Equal(t, 0, base.Sessions())
}

func TestBaseSQL_QueryRows(t *testing.T) {
	ctx := context.Background()
	base, mock := newMockBase(t, Hooks{})

	rows := sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("id").OfType("INTEGER", int64(0)),
		sqlmock.NewColumn("name").OfType("VARCHAR", ""),
		sqlmock.NewColumn("amount").OfType("DECIMAL", "").WithPrecisionAndScale(10, 2),
	).
		AddRow(int64(1), "alice", "12.34").
		AddRow(int64(2), nil, nil)
	mock.ExpectQuery("SELECT id, name, amount FROM users").WillReturnRows(rows)

	h, err := base.Open(ctx, InMemory, SessionOptions{})
	require.NoError(t, err)

	res, err := base.Query(ctx, h, "SELECT id, name, amount FROM users", nil)
	require.NoError(t, err)

	assert.Equal(t, RowsResult, res.Kind)
	assert.Equal(t, 2, res.RowCount)
	require.Len(t, res.Columns, 3)
	assert.Equal(t, binary.LittleEndian, res.Order)

	id := res.Columns[0]
	assert.Equal(t, "id", id.Name)
	assert.Equal(t, types.Int32, id.Type.Tag)
	assert.Equal(t, int32(2), int32(binary.LittleEndian.Uint32(id.Element(1))))

	name := res.Columns[1]
	assert.Equal(t, []byte("alice"), name.Values[0])
	assert.True(t, name.IsNull(1))

	amount := res.Columns[2]
	assert.Equal(t, types.Type{Tag: types.Int64, SQL: types.Numeric, Precision: 10, Scale: 2}, amount.Type)
	assert.Equal(t, int64(1234), int64(binary.LittleEndian.Uint64(amount.Element(0))))
	assert.False(t, amount.IsNull(0))
	assert.True(t, amount.IsNull(1))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBaseSQL_QueryWithParams(t *testing.T) {
	ctx := context.Background()
	base, mock := newMockBase(t, Hooks{})

	mock.ExpectQuery("SELECT").
		WithArgs(int64(5), "2024-01-02", "12.50").
		WillReturnRows(sqlmock.NewRowsWithColumnDefinition(
			sqlmock.NewColumn("ok").OfType("BOOLEAN", false),
		).AddRow(true))

	h, err := base.Open(ctx, InMemory, SessionOptions{})
	require.NoError(t, err)

	res, err := base.Query(ctx, h, "SELECT ? = 5 AND ? IS NOT NULL AND ? > 0", []Param{
		{Type: types.Of(types.Int64), Value: int64(5)},
		{Type: types.Of(types.Date), Value: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		{Type: types.Type{Tag: types.Int32, SQL: types.Numeric, Precision: 6, Scale: 2}, Value: decimal.RequireFromString("12.5")},
	})
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, res.Columns[0].Element(0))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBaseSQL_QueryClassifiedCount(t *testing.T) {
	ctx := context.Background()
	base, mock := newMockBase(t, Hooks{
		Classify: func(_ context.Context, _ *sql.Conn, query string) (bool, error) {
			return false, nil
		},
	})

	mock.ExpectExec("INSERT INTO t").WillReturnResult(sqlmock.NewResult(0, 3))

	h, err := base.Open(ctx, InMemory, SessionOptions{})
	require.NoError(t, err)

	res, err := base.Query(ctx, h, "INSERT INTO t VALUES (1), (2), (3)", nil)
	require.NoError(t, err)
	assert.Equal(t, CountResult, res.Kind)
	assert.Equal(t, int64(3), res.Affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBaseSQL_QueryCountFromChanges(t *testing.T) {
	ctx := context.Background()
	totals := []int64{10, 12}
	base, mock := newMockBase(t, Hooks{
		Changes: func(context.Context, *sql.Conn) (int64, error) {
			n := totals[0]
			totals = totals[1:]
			return n, nil
		},
	})

	mock.ExpectQuery("UPDATE t").WillReturnRows(sqlmock.NewRows(nil))

	h, err := base.Open(ctx, InMemory, SessionOptions{})
	require.NoError(t, err)

	res, err := base.Query(ctx, h, "UPDATE t SET x = 1", nil)
	require.NoError(t, err)
	assert.Equal(t, CountResult, res.Kind)
	assert.Equal(t, int64(2), res.Affected)
}

func TestBaseSQL_QueryEngineError(t *testing.T) {
	ctx := context.Background()
	base, mock := newMockBase(t, Hooks{
		ErrorCode: func(error) string { return "42601" },
	})

	mock.ExpectQuery("SELEC").WillReturnError(errors.New("Parser Error: syntax error at or near \"SELEC\""))

	h, err := base.Open(ctx, InMemory, SessionOptions{})
	require.NoError(t, err)

	_, err = base.Query(ctx, h, "SELEC 1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEngine)
	assert.Equal(t, "42601", core.CodeOf(err))
	assert.Contains(t, err.Error(), `Parser Error: syntax error at or near "SELEC"`)
}

func TestBaseSQL_QueryTimeout(t *testing.T) {
	ctx := context.Background()
	base, mock := newMockBase(t, Hooks{})

	mock.ExpectQuery("SELECT").
		WillDelayFor(time.Second).
		WillReturnRows(sqlmock.NewRows([]string{"x"}).AddRow(int64(1)))

	h, err := base.Open(ctx, InMemory, SessionOptions{QueryTimeout: 20 * time.Millisecond})
	require.NoError(t, err)

	_, err = base.Query(ctx, h, "SELECT 1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEngine)
	assert.Equal(t, core.CodeTimeout, core.CodeOf(err))
}

func TestBaseSQL_SessionExpiry(t *testing.T) {
	ctx := context.Background()
	base, mock := newMockBase(t, Hooks{})

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	base.Now = func() time.Time { return now }

	h, err := base.Open(ctx, InMemory, SessionOptions{SessionTimeout: time.Minute})
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = base.Query(ctx, h, "SELECT 1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEngine)
	assert.Equal(t, core.CodeSessionExpired, core.CodeOf(err))

	// The handle stays unusable once expired.
	now = now.Add(time.Second)
	_, err = base.Query(ctx, h, "SELECT 1", nil)
	assert.Equal(t, core.CodeSessionExpired, core.CodeOf(err))

	mock.ExpectClose()
	require.NoError(t, base.Close(h))
}

func TestBaseSQL_Close(t *testing.T) {
	ctx := context.Background()
	base, mock := newMockBase(t, Hooks{})

	h, err := base.Open(ctx, InMemory, SessionOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, base.Sessions())

	mock.ExpectClose()
	require.NoError(t, base.Close(h))
	assert.Equal(t, 0, base.Sessions())

	err = base.Close(h)
	assert.ErrorIs(t, err, core.ErrConnectionClosed)

	_, err = base.Query(ctx, h, "SELECT 1", nil)
	assert.ErrorIs(t, err, core.ErrConnectionClosed)
}

func TestBaseSQL_DescribeUnavailable(t *testing.T) {
	ctx := context.Background()
	base, _ := newMockBase(t, Hooks{})

	h, err := base.Open(ctx, InMemory, SessionOptions{})
	require.NoError(t, err)

	info, err := base.DescribeParameters(ctx, h, "SELECT ?")
	assert.ErrorIs(t, err, ErrDescribeUnavailable)
	assert.Equal(t, -1, info.Count)
	assert.Nil(t, info.Types)
}

func TestBaseSQL_DescribeCountOnly(t *testing.T) {
	ctx := context.Background()
	base, mock := newMockBase(t, Hooks{Describe: CountPlaceholders})

	mock.ExpectPrepare("INSERT INTO t").WillBeClosed()

	h, err := base.Open(ctx, InMemory, SessionOptions{})
	require.NoError(t, err)

	info, err := base.DescribeParameters(ctx, h, "INSERT INTO t VALUES (?, ?)")
	assert.ErrorIs(t, err, ErrDescribeUnavailable)
	assert.Nil(t, info.Types)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBindValue(t *testing.T) {
	ts := time.Date(2024, 3, 4, 5, 6, 7, 123456000, time.FixedZone("X", 3600))

	tests := []struct {
		name  string
		param Param
		want  any
	}{
		{"null", Param{Type: types.Of(types.Int32)}, nil},
		{"int", Param{Type: types.Of(types.Int32), Value: int32(7)}, int32(7)},
		{"string", Param{Type: types.Of(types.String), Value: "hi"}, "hi"},
		{"decimal", Param{Type: types.Type{Tag: types.Int64, SQL: types.Numeric, Precision: 10, Scale: 3}, Value: decimal.RequireFromString("1.5")}, "1.500"},
		{"bigint", Param{Type: types.Of(types.Int128), Value: big.NewInt(-42)}, "-42"},
		{"date", Param{Type: types.Of(types.Date), Value: ts}, "2024-03-04"},
		{"time", Param{Type: types.Of(types.Time), Value: ts}, "05:06:07.123456"},
		{"timestamp", Param{Type: types.Of(types.Timestamp), Value: ts}, ts.UTC()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BindValue(tt.param)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := BindValue(Param{Type: types.Of(types.String), Value: struct{}{}})
	assert.ErrorIs(t, err, core.ErrTypeMismatch)
}
