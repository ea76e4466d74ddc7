package driver

import (
	"math/big"
	"testing"
	"time"

	"github.com/leapstack-labs/leapdriver/internal/enginetest"
	"github.com/leapstack-labs/leapdriver/pkg/core"
	"github.com/leapstack-labs/leapdriver/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, typ types.Type, v any) Value {
	t.Helper()
	view := newColumnView(enginetest.Column("c", typ, v), enginetest.Order)
	val, err := view.Value(0)
	require.NoError(t, err)
	return val
}

func mustNumeric(t *testing.T, p, s int) types.Type {
	t.Helper()
	typ, err := types.NumericOf(p, s)
	require.NoError(t, err)
	return typ
}

func TestValue_IntegerWidening(t *testing.T) {
	i8 := decode(t, types.Of(types.Int8), int8(-7))
	i16 := decode(t, types.Of(types.Int16), int16(300))
	i32 := decode(t, types.Of(types.Int32), int32(-70000))
	i64 := decode(t, types.Of(types.Int64), int64(1)<<40)

	x8, err := i8.AsInt8()
	require.NoError(t, err)
	assert.Equal(t, int8(-7), x8)

	x64, err := i8.AsInt64()
	require.NoError(t, err)
	assert.Equal(t, int64(-7), x64)

	x32, err := i16.AsInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(300), x32)

	x64, err = i32.AsInt64()
	require.NoError(t, err)
	assert.Equal(t, int64(-70000), x64)

	x64, err = i64.AsInt64()
	require.NoError(t, err)
	assert.Equal(t, int64(1)<<40, x64)

	narrowing := []func() error{
		func() error { _, err := i16.AsInt8(); return err },
		func() error { _, err := i32.AsInt16(); return err },
		func() error { _, err := i64.AsInt32(); return err },
	}
	for i, f := range narrowing {
		assert.ErrorIs(t, f(), core.ErrTypeMismatch, "case %d", i)
	}
}

func TestValue_FloatPromotions(t *testing.T) {
	i16 := decode(t, types.Of(types.Int16), int16(12))
	i32 := decode(t, types.Of(types.Int32), int32(12))
	i64 := decode(t, types.Of(types.Int64), int64(12))
	f32 := decode(t, types.Of(types.Float32), float32(1.5))
	f64 := decode(t, types.Of(types.Float64), 2.25)

	x32, err := i16.AsFloat32()
	require.NoError(t, err)
	assert.Equal(t, float32(12), x32)

	_, err = i32.AsFloat32()
	assert.ErrorIs(t, err, core.ErrTypeMismatch)

	x64, err := i32.AsFloat64()
	require.NoError(t, err)
	assert.Equal(t, float64(12), x64)

	_, err = i64.AsFloat64()
	assert.ErrorIs(t, err, core.ErrTypeMismatch)

	x64, err = f32.AsFloat64()
	require.NoError(t, err)
	assert.Equal(t, 1.5, x64)

	_, err = f64.AsFloat32()
	assert.ErrorIs(t, err, core.ErrTypeMismatch)

	_, err = f64.AsInt64()
	assert.ErrorIs(t, err, core.ErrTypeMismatch)
}

func TestValue_NoImplicitConversions(t *testing.T) {
	s := decode(t, types.Of(types.String), "42")
	b := decode(t, types.Of(types.Bool), true)
	blob := decode(t, types.Of(types.Blob), []byte{1})

	_, err := s.AsInt64()
	assert.ErrorIs(t, err, core.ErrTypeMismatch)
	_, err = s.AsBool()
	assert.ErrorIs(t, err, core.ErrTypeMismatch)
	_, err = b.AsString()
	assert.ErrorIs(t, err, core.ErrTypeMismatch)
	_, err = blob.AsString()
	assert.ErrorIs(t, err, core.ErrTypeMismatch)
	_, err = s.AsBytes()
	assert.ErrorIs(t, err, core.ErrTypeMismatch)
	_, err = s.AsTime()
	assert.ErrorIs(t, err, core.ErrTypeMismatch)
}

func TestValue_Numeric(t *testing.T) {
	typ := mustNumeric(t, 10, 2)
	v := decode(t, typ, decimal.RequireFromString("-12345678.05"))

	s, err := v.AsString()
	require.NoError(t, err)
	assert.Equal(t, "-12345678.05", s)

	d, err := v.AsDecimal()
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("-12345678.05")))

	_, err = v.AsInt64()
	assert.ErrorIs(t, err, core.ErrTypeMismatch, "scaled NUMERIC is not integer-valued")
	_, err = v.AsFloat64()
	assert.ErrorIs(t, err, core.ErrTypeMismatch, "NUMERIC never goes through binary floating point")
	assert.Equal(t, "-12345678.05", v.String())
}

func TestValue_NumericScaleZero(t *testing.T) {
	v := decode(t, mustNumeric(t, 9, 0), int64(123456789))

	x, err := v.AsInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(123456789), x)

	_, err = v.AsInt16()
	assert.ErrorIs(t, err, core.ErrTypeMismatch)
}

func TestValue_Int128(t *testing.T) {
	maxInt128, ok := new(big.Int).SetString("170141183460469231731687303715884105727", 10)
	require.True(t, ok)
	v := decode(t, types.Of(types.Int128), maxInt128)

	bi, err := v.AsBigInt()
	require.NoError(t, err)
	assert.Equal(t, 0, bi.Cmp(maxInt128))

	s, err := v.AsString()
	require.NoError(t, err)
	assert.Equal(t, maxInt128.String(), s)

	_, err = v.AsInt64()
	assert.ErrorIs(t, err, core.ErrTypeMismatch)
}

func TestValue_Size(t *testing.T) {
	v := decode(t, types.Of(types.Size), uint64(1)<<63)

	u, err := v.AsUint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(1)<<63, u)

	bi, err := v.AsBigInt()
	require.NoError(t, err)
	assert.Equal(t, "9223372036854775808", bi.String())

	_, err = v.AsInt64()
	assert.ErrorIs(t, err, core.ErrTypeMismatch)
}

func TestValue_Temporal(t *testing.T) {
	ts := time.Date(2024, 2, 29, 13, 45, 30, 123456000, time.UTC)

	date := decode(t, types.Of(types.Date), ts)
	got, err := date.AsTime()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), got)
	assert.Equal(t, "2024-02-29", date.String())

	tod := decode(t, types.Of(types.Time), ts)
	got, err = tod.AsTime()
	require.NoError(t, err)
	assert.Equal(t, time.Date(1970, 1, 1, 13, 45, 30, 123456000, time.UTC), got)

	stamp := decode(t, types.Of(types.Timestamp), ts)
	got, err = stamp.AsTime()
	require.NoError(t, err)
	assert.True(t, ts.Equal(got))
	assert.Equal(t, "2024-02-29 13:45:30.123456", stamp.String())

	before := decode(t, types.Of(types.Date), time.Date(1969, 12, 31, 0, 0, 0, 0, time.UTC))
	got, err = before.AsTime()
	require.NoError(t, err)
	assert.Equal(t, "1969-12-31", got.Format("2006-01-02"))
}

func TestValue_Null(t *testing.T) {
	v := decode(t, types.Of(types.Int32), nil)
	assert.True(t, v.IsNull())
	assert.Nil(t, v.Any())
	assert.Equal(t, "NULL", v.String())

	x, err := v.AsInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(0), x)

	_, err = v.AsString()
	assert.ErrorIs(t, err, core.ErrTypeMismatch, "compatibility is checked before null")

	s := decode(t, types.Of(types.String), nil)
	str, err := s.AsString()
	require.NoError(t, err)
	assert.Equal(t, "", str)

	blob := decode(t, types.Of(types.Blob), nil)
	p, err := blob.AsBytes()
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestValue_EmptyIsNotNull(t *testing.T) {
	s := decode(t, types.Of(types.String), "")
	assert.False(t, s.IsNull())

	blob := decode(t, types.Of(types.Blob), []byte{})
	assert.False(t, blob.IsNull())
	p, err := blob.AsBytes()
	require.NoError(t, err)
	assert.NotNil(t, p)
	assert.Empty(t, p)
}

func TestValue_Any(t *testing.T) {
	tests := []struct {
		typ  types.Type
		in   any
		want any
	}{
		{types.Of(types.Bool), true, true},
		{types.Of(types.Int8), int8(1), int8(1)},
		{types.Of(types.Int16), int16(2), int16(2)},
		{types.Of(types.Int32), int32(3), int32(3)},
		{types.Of(types.Int64), int64(4), int64(4)},
		{types.Of(types.Size), uint64(5), uint64(5)},
		{types.Of(types.Float32), float32(0.5), float32(0.5)},
		{types.Of(types.Float64), 0.25, 0.25},
		{types.Of(types.String), "s", "s"},
		{types.Of(types.Blob), []byte("b"), []byte("b")},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, decode(t, tt.typ, tt.in).Any())
		})
	}
}
