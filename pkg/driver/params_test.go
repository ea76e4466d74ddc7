package driver

import (
	"math/big"
	"testing"
	"time"

	"github.com/leapstack-labs/leapdriver/internal/enginetest"
	"github.com/leapstack-labs/leapdriver/pkg/core"
	"github.com/leapstack-labs/leapdriver/pkg/engine"
	"github.com/leapstack-labs/leapdriver/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinder_FixedArity(t *testing.T) {
	b := newBinder(2)

	assert.ErrorIs(t, b.set(0, engine.Param{}), core.ErrParameterOutOfRange)
	assert.ErrorIs(t, b.set(3, engine.Param{}), core.ErrParameterOutOfRange)

	require.NoError(t, b.set(2, engine.Param{Type: types.Of(types.Int32), Value: int32(7)}))
	_, err := b.params()
	assert.ErrorIs(t, err, core.ErrParameterNotSet, "position 1 still unset")

	require.NoError(t, b.set(1, engine.Param{Type: types.Of(types.String), Value: "a"}))
	params, err := b.params()
	require.NoError(t, err)
	require.Len(t, params, 2)
	assert.Equal(t, "a", params[0].Value)
	assert.Equal(t, int32(7), params[1].Value)

	b.clear()
	_, err = b.params()
	assert.ErrorIs(t, err, core.ErrParameterNotSet)
}

func TestBinder_ZeroArity(t *testing.T) {
	b := newBinder(0)
	assert.ErrorIs(t, b.set(1, engine.Param{}), core.ErrParameterOutOfRange)

	params, err := b.params()
	require.NoError(t, err)
	assert.Empty(t, params)
}

func TestBinder_DynamicArity(t *testing.T) {
	b := newBinder(-1)
	assert.ErrorIs(t, b.set(0, engine.Param{}), core.ErrParameterOutOfRange)

	require.NoError(t, b.set(3, engine.Param{Type: types.Of(types.Bool), Value: true}))
	_, err := b.params()
	assert.ErrorIs(t, err, core.ErrParameterNotSet, "gaps are not filled with NULL")

	require.NoError(t, b.set(1, engine.Param{Type: types.Of(types.Bool), Value: true}))
	require.NoError(t, b.set(2, engine.Param{Type: types.Of(types.Bool)}))
	params, err := b.params()
	require.NoError(t, err)
	assert.Len(t, params, 3)
}

func TestDecimalType(t *testing.T) {
	tests := []struct {
		in        string
		precision int
		scale     int
	}{
		{"0", 1, 0},
		{"12.34", 4, 2},
		{"-0.005", 3, 3},
		{"1000", 4, 0},
		{"99999999999999999999999999999999999999", 38, 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			typ, err := decimalType(decimal.RequireFromString(tt.in))
			require.NoError(t, err)
			assert.Equal(t, types.Numeric, typ.SQL)
			assert.Equal(t, tt.precision, typ.Precision)
			assert.Equal(t, tt.scale, typ.Scale)
		})
	}

	_, err := decimalType(decimal.RequireFromString("123456789012345678901234567890123456789"))
	assert.ErrorIs(t, err, core.ErrTypeMismatch)
}

func TestRescale(t *testing.T) {
	target, err := types.NumericOf(5, 2)
	require.NoError(t, err)

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"1", "1.00", false},
		{"12.3", "12.30", false},
		{"-999.99", "-999.99", false},
		{"0.001", "", true},
		{"1000", "", true},
		{"-1000.00", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, err := rescale(decimal.RequireFromString(tt.in), target)
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrTypeMismatch)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, target, p.Type)
			bound, err := engine.BindValue(p)
			require.NoError(t, err)
			assert.Equal(t, tt.want, bound)
		})
	}
}

func TestParamOf(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		name     string
		in       any
		wantTag  types.Tag
		wantNull bool
	}{
		{"nil", nil, types.Unknown, true},
		{"bool", true, types.Bool, false},
		{"int8", int8(1), types.Int8, false},
		{"int16", int16(1), types.Int16, false},
		{"int32", int32(1), types.Int32, false},
		{"int64", int64(1), types.Int64, false},
		{"int", 1, types.Int64, false},
		{"uint64", uint64(1), types.Size, false},
		{"uint", uint(1), types.Size, false},
		{"float32", float32(1), types.Float32, false},
		{"float64", 1.0, types.Float64, false},
		{"string", "x", types.String, false},
		{"bytes", []byte("x"), types.Blob, false},
		{"nil bytes", []byte(nil), types.Blob, true},
		{"time", ts, types.Timestamp, false},
		{"bigint", big.NewInt(5), types.Int128, false},
		{"nil bigint", (*big.Int)(nil), types.Int128, true},
		{"decimal", decimal.RequireFromString("1.5"), types.Int16, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := paramOf(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTag, p.Type.Tag)
			assert.Equal(t, tt.wantNull, p.Value == nil)
		})
	}

	_, err := paramOf(struct{}{})
	assert.ErrorIs(t, err, core.ErrTypeMismatch)
	_, err = paramOf(map[string]int{})
	assert.ErrorIs(t, err, core.ErrTypeMismatch)
}

func TestParamOf_CopiesMutableInputs(t *testing.T) {
	buf := []byte("abc")
	p, err := paramOf(buf)
	require.NoError(t, err)
	buf[0] = 'z'
	assert.Equal(t, []byte("abc"), p.Value)

	n := big.NewInt(10)
	p, err = paramOf(n)
	require.NoError(t, err)
	n.SetInt64(11)
	assert.Equal(t, 0, p.Value.(*big.Int).Cmp(big.NewInt(10)))
}

func TestParamOf_Value(t *testing.T) {
	dec := mustNumeric(t, 10, 2)
	view := newColumnView(enginetest.Column("d", dec, "3.14", nil), enginetest.Order)

	v, err := view.Value(0)
	require.NoError(t, err)
	p, err := paramOf(v)
	require.NoError(t, err)
	assert.Equal(t, dec, p.Type, "precision and scale travel with the value")
	assert.True(t, decimal.RequireFromString("3.14").Equal(p.Value.(decimal.Decimal)))

	v, err = view.Value(1)
	require.NoError(t, err)
	p, err = paramOf(v)
	require.NoError(t, err)
	assert.Equal(t, dec, p.Type)
	assert.Nil(t, p.Value)
}
