package driver

import (
	"sync"
	"testing"

	"github.com/leapstack-labs/leapdriver/internal/enginetest"
	"github.com/leapstack-labs/leapdriver/pkg/core"
	"github.com/leapstack-labs/leapdriver/pkg/engine"
	"github.com/leapstack-labs/leapdriver/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleResult mirrors (false,3,'hello'), (true,500,'world'), (false,-1,NULL).
func sampleResult() *engine.Result {
	return engine.NewRowsResult(enginetest.Order,
		enginetest.Column("b", types.Of(types.Bool), false, true, false),
		enginetest.Column("i", types.Of(types.Int32), int32(3), int32(500), int32(-1)),
		enginetest.Column("s", types.Of(types.String), "hello", "world", nil),
	)
}

func TestResultSet_Shape(t *testing.T) {
	rs := newResultSet(nil, sampleResult())
	assert.Equal(t, 3, rs.RowCount())
	assert.Equal(t, 3, rs.ColumnCount())
	assert.Nil(t, rs.Statement())
}

func TestResultSet_ForwardIteration(t *testing.T) {
	rs := newResultSet(nil, sampleResult())

	var ints []int32
	for {
		ok, err := rs.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		v, err := rs.GetInt32(2)
		require.NoError(t, err)
		ints = append(ints, v)
	}
	assert.Equal(t, []int32{3, 500, -1}, ints)

	after, err := rs.IsAfterLast()
	require.NoError(t, err)
	assert.True(t, after)

	ok, err := rs.Next()
	require.NoError(t, err)
	assert.False(t, ok, "next past the end stays after-last")
}

func TestResultSet_AbsoluteBoundaries(t *testing.T) {
	rs := newResultSet(nil, sampleResult())

	tests := []struct {
		row    int
		wantOK bool
		wantAt int
	}{
		{0, false, 0},
		{1, true, 1},
		{3, true, 3},
		{4, false, 0},
		{99, false, 0},
		{-1, true, 3},
		{-3, true, 1},
		{-4, false, 0},
		{-99, false, 0},
	}
	for _, tt := range tests {
		ok, err := rs.Absolute(tt.row)
		require.NoError(t, err)
		assert.Equal(t, tt.wantOK, ok, "absolute(%d)", tt.row)

		at, err := rs.Row()
		require.NoError(t, err)
		assert.Equal(t, tt.wantAt, at, "absolute(%d)", tt.row)
	}

	_, err := rs.Absolute(4)
	require.NoError(t, err)
	after, err := rs.IsAfterLast()
	require.NoError(t, err)
	assert.True(t, after)

	_, err = rs.Absolute(0)
	require.NoError(t, err)
	before, err := rs.IsBeforeFirst()
	require.NoError(t, err)
	assert.True(t, before)
}

func tenRows() *engine.Result {
	vals := make([]any, 10)
	for i := range vals {
		vals[i] = int32(i)
	}
	return engine.NewRowsResult(enginetest.Order, enginetest.Column("n", types.Of(types.Int32), vals...))
}

func TestResultSet_RelativeFollowsAbsolute(t *testing.T) {
	tests := []struct {
		name   string
		from   int
		delta  int
		wantOK bool
		wantAt int
	}{
		{"forward", 2, 3, true, 5},
		{"backward", 5, -3, true, 2},
		{"to before-first", 2, -2, false, 0},
		{"negative target counts from the end", 2, -5, true, 8},
		{"negative target to the last row", 0, -1, true, 10},
		{"negative target past the start", 2, -14, false, 0},
		{"past the end", 8, 5, false, 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := newResultSet(nil, tenRows())
			_, err := rs.Absolute(tt.from)
			require.NoError(t, err)

			ok, err := rs.Relative(tt.delta)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)

			switch tt.wantAt {
			case 0:
				before, _ := rs.IsBeforeFirst()
				assert.True(t, before)
			case 11:
				after, _ := rs.IsAfterLast()
				assert.True(t, after)
			default:
				at, _ := rs.Row()
				assert.Equal(t, tt.wantAt, at)
				v, err := rs.GetInt32(1)
				require.NoError(t, err)
				assert.Equal(t, int32(tt.wantAt-1), v)
			}
		})
	}
}

func TestResultSet_PreviousFromBeforeFirst(t *testing.T) {
	rs := newResultSet(nil, tenRows())

	ok, err := rs.Previous()
	require.NoError(t, err)
	assert.True(t, ok)
	at, _ := rs.Row()
	assert.Equal(t, 10, at)

	_, err = rs.First()
	require.NoError(t, err)
	ok, err = rs.Previous()
	require.NoError(t, err)
	assert.False(t, ok)
	before, _ := rs.IsBeforeFirst()
	assert.True(t, before)

	require.NoError(t, rs.AfterLast())
	ok, err = rs.Previous()
	require.NoError(t, err)
	assert.True(t, ok)
	at, _ = rs.Row()
	assert.Equal(t, 10, at)
}

func TestResultSet_FirstLast(t *testing.T) {
	rs := newResultSet(nil, sampleResult())

	ok, err := rs.Last()
	require.NoError(t, err)
	assert.True(t, ok)
	s, err := rs.GetString(3)
	require.NoError(t, err)
	assert.Equal(t, "", s)
	assert.True(t, rs.WasNull())

	ok, err = rs.First()
	require.NoError(t, err)
	assert.True(t, ok)
	s, err = rs.GetString(3)
	require.NoError(t, err)
	assert.Equal(t, "hello", s)
	assert.False(t, rs.WasNull())

	require.NoError(t, rs.AfterLast())
	after, _ := rs.IsAfterLast()
	assert.True(t, after)

	require.NoError(t, rs.BeforeFirst())
	before, _ := rs.IsBeforeFirst()
	assert.True(t, before)
}

func TestResultSet_EmptyResult(t *testing.T) {
	rs := newResultSet(nil, engine.NewRowsResult(enginetest.Order,
		enginetest.Column("x", types.Of(types.Int32)),
	))
	assert.Equal(t, 0, rs.RowCount())

	ok, err := rs.Next()
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = rs.Absolute(-1)
	require.NoError(t, err)
	assert.False(t, ok)

	before, _ := rs.IsBeforeFirst()
	after, _ := rs.IsAfterLast()
	assert.False(t, before)
	assert.False(t, after)
}

func TestResultSet_AccessErrors(t *testing.T) {
	rs := newResultSet(nil, sampleResult())

	_, err := rs.GetBool(1)
	assert.ErrorIs(t, err, core.ErrInvalidCursorPosition, "before first row")

	_, err = rs.Next()
	require.NoError(t, err)

	_, err = rs.GetBool(0)
	assert.ErrorIs(t, err, core.ErrColumnOutOfRange)
	_, err = rs.GetBool(4)
	assert.ErrorIs(t, err, core.ErrColumnOutOfRange)

	_, err = rs.GetString(2)
	assert.ErrorIs(t, err, core.ErrTypeMismatch)

	_, err = rs.GetInt8(2)
	assert.ErrorIs(t, err, core.ErrTypeMismatch, "int32 does not narrow to int8")

	i64, err := rs.GetInt64(2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), i64)
}

func TestResultSet_WasNullOnlyTracksSuccessfulReads(t *testing.T) {
	rs := newResultSet(nil, sampleResult())
	_, err := rs.Absolute(3)
	require.NoError(t, err)

	_, err = rs.GetString(3)
	require.NoError(t, err)
	assert.True(t, rs.WasNull())

	_, err = rs.GetString(2)
	require.Error(t, err)
	assert.True(t, rs.WasNull(), "failed read leaves the flag alone")

	b, err := rs.GetBool(1)
	require.NoError(t, err)
	assert.False(t, b)
	assert.False(t, rs.WasNull())
}

func TestResultSet_FindColumn(t *testing.T) {
	rs := newResultSet(nil, engine.NewRowsResult(enginetest.Order,
		enginetest.Column("Id", types.Of(types.Int64), int64(1)),
		enginetest.Column("id", types.Of(types.Int64), int64(2)),
		enginetest.Column("name", types.Of(types.String), "a"),
	))

	i, err := rs.FindColumn("ID")
	require.NoError(t, err)
	assert.Equal(t, 1, i, "first match wins")

	i, err = rs.FindColumn("name")
	require.NoError(t, err)
	assert.Equal(t, 3, i)

	_, err = rs.FindColumn("missing")
	assert.ErrorIs(t, err, core.ErrColumnOutOfRange)
}

func TestResultSet_GetValue(t *testing.T) {
	rs := newResultSet(nil, sampleResult())
	_, err := rs.Absolute(2)
	require.NoError(t, err)

	v, err := rs.GetValue(2)
	require.NoError(t, err)
	assert.Equal(t, types.Int32, v.Type().Tag)
	assert.Equal(t, int32(500), v.Any())
}

func TestResultSet_Close(t *testing.T) {
	rs := newResultSet(nil, sampleResult())
	_, err := rs.Next()
	require.NoError(t, err)

	require.NoError(t, rs.Close())
	assert.True(t, rs.IsClosed())

	_, err = rs.GetBool(1)
	assert.ErrorIs(t, err, core.ErrStatementClosed)
	_, err = rs.Next()
	assert.ErrorIs(t, err, core.ErrStatementClosed)

	err = rs.Close()
	assert.ErrorIs(t, err, core.ErrStatementClosed, "second close fails")
}

func TestResultSet_CloseWaitsForReads(t *testing.T) {
	rs := newResultSet(nil, sampleResult())
	_, err := rs.Next()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				_, err := rs.GetInt32(2)
				if err != nil {
					assert.ErrorIs(t, err, core.ErrStatementClosed)
					return
				}
			}
		}()
	}
	require.NoError(t, rs.Close())
	wg.Wait()
}

func TestResultDescriptor(t *testing.T) {
	dec, err := types.NumericOf(10, 2)
	require.NoError(t, err)

	b := engine.NewColumnBuilder("amount", dec, types.NoNulls, enginetest.Order)
	require.NoError(t, b.Append("12.34"))

	rs := newResultSet(nil, engine.NewRowsResult(enginetest.Order,
		enginetest.Column("flag", types.Of(types.Bool), true),
		enginetest.Column("n", types.Of(types.Int32), int32(1)),
		enginetest.Column("name", types.Of(types.String), "x"),
		b.Build(),
		enginetest.Column("size", types.Of(types.Size), uint64(7)),
	))
	d := rs.Descriptor()
	require.Equal(t, 5, d.ColumnCount())

	tests := []struct {
		col       int
		name      string
		sqlType   types.SQLType
		typeName  string
		precision int
		scale     int
		class     string
		display   int
		signed    bool
		caseSens  bool
	}{
		{1, "flag", types.Boolean, "BOOLEAN", 1, 0, "bool", 5, false, false},
		{2, "n", types.Integer, "INTEGER", 10, 0, "int32", 11, true, false},
		{3, "name", types.Varchar, "VARCHAR", 0, 0, "string", types.VarDisplaySize, false, true},
		{4, "amount", types.Numeric, "NUMERIC(10,2)", 10, 2, "decimal.Decimal", 12, true, false},
		{5, "size", types.Numeric, "NUMERIC(20,0)", 20, 0, "decimal.Decimal", 21, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, err := d.ColumnName(tt.col)
			require.NoError(t, err)
			assert.Equal(t, tt.name, name)

			sqlType, _ := d.ColumnType(tt.col)
			assert.Equal(t, tt.sqlType, sqlType)
			typeName, _ := d.ColumnTypeName(tt.col)
			assert.Equal(t, tt.typeName, typeName)
			precision, _ := d.Precision(tt.col)
			assert.Equal(t, tt.precision, precision)
			scale, _ := d.Scale(tt.col)
			assert.Equal(t, tt.scale, scale)
			class, _ := d.ColumnClassName(tt.col)
			assert.Equal(t, tt.class, class)
			display, _ := d.DisplaySize(tt.col)
			assert.Equal(t, tt.display, display)
			signed, _ := d.IsSigned(tt.col)
			assert.Equal(t, tt.signed, signed)
			caseSens, _ := d.IsCaseSensitive(tt.col)
			assert.Equal(t, tt.caseSens, caseSens)
		})
	}

	n, err := d.Nullable(4)
	require.NoError(t, err)
	assert.Equal(t, types.NoNulls, n)
	n, err = d.Nullable(1)
	require.NoError(t, err)
	assert.Equal(t, types.NullableUnknown, n)

	for _, bad := range []int{0, 6} {
		_, err := d.ColumnName(bad)
		assert.ErrorIs(t, err, core.ErrColumnOutOfRange)
		_, err = d.Precision(bad)
		assert.ErrorIs(t, err, core.ErrColumnOutOfRange)
		_, err = d.ColumnClassName(bad)
		assert.ErrorIs(t, err, core.ErrColumnOutOfRange)
	}

	require.NoError(t, rs.Close())
	assert.Equal(t, 5, d.ColumnCount(), "descriptor outlives the cursor")
}

func TestParameterDescriptor(t *testing.T) {
	dec, err := types.NumericOf(18, 3)
	require.NoError(t, err)
	d := newParameterDescriptor([]types.Type{types.Of(types.Bool), dec, types.Of(types.Size), types.NumericUnsized()})

	assert.Equal(t, 4, d.Count())
	name, err := d.TypeName(2)
	require.NoError(t, err)
	assert.Equal(t, "NUMERIC(18,3)", name)
	scale, _ := d.Scale(2)
	assert.Equal(t, 3, scale)
	class, _ := d.ClassName(1)
	assert.Equal(t, "bool", class)
	n, err := d.Nullable(1)
	require.NoError(t, err)
	assert.Equal(t, types.NullableUnknown, n)

	signed, _ := d.IsSigned(2)
	assert.True(t, signed)
	signed, _ = d.IsSigned(3)
	assert.False(t, signed, "UBIGINT is unsigned")

	name, _ = d.TypeName(4)
	assert.Equal(t, "NUMERIC", name)
	precision, _ := d.Precision(4)
	assert.Equal(t, 0, precision, "unknown precision")
	scale, _ = d.Scale(4)
	assert.Equal(t, 0, scale)

	_, err = d.Type(5)
	assert.ErrorIs(t, err, core.ErrParameterOutOfRange)

	empty := newParameterDescriptor(nil)
	assert.Equal(t, 0, empty.Count())
	_, err = empty.Type(1)
	assert.ErrorIs(t, err, core.ErrParameterOutOfRange)
}
