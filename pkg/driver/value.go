package driver

import (
	"encoding/hex"
	"math/big"
	"strconv"
	"time"

	"github.com/leapstack-labs/leapdriver/pkg/core"
	"github.com/leapstack-labs/leapdriver/pkg/types"
	"github.com/shopspring/decimal"
)

// Value is one decoded cell. Exactly one payload field is meaningful,
// selected by the value's type; a null Value carries none.
//
// Projections (AsInt64, AsString, ...) accept only sources of a compatible
// type. Integers widen to wider integers, small integers widen to floats,
// and nothing narrows. A null Value projects to the zero value of the
// requested type after the same compatibility check.
type Value struct {
	typ  types.Type
	null bool

	b bool
	i int64
	u uint64
	f float64
	p []byte
	t time.Time
	d decimal.Decimal
}

// NullValue returns a null of typ.
func NullValue(typ types.Type) Value {
	return Value{typ: typ, null: true}
}

// Type returns the native type the value was decoded from.
func (v Value) Type() types.Type {
	return v.typ
}

// IsNull reports whether the value is SQL NULL.
func (v Value) IsNull() bool {
	return v.null
}

func (v Value) mismatch(target string) error {
	return core.Errorf(core.KindTypeMismatch, "cannot read %s value as %s", v.typ, target)
}

// isDecimal reports whether the payload lives in d.
func (v Value) isDecimal() bool {
	return v.typ.IsNumeric() && v.typ.Tag != types.Size
}

// intWidth returns the storage width of an integer-valued source, or 0 when
// the source is not integer-valued. Scaled NUMERIC is not integer-valued.
func (v Value) intWidth() int {
	if v.isDecimal() {
		if v.typ.Scale != 0 {
			return 0
		}
		return v.typ.Tag.Width()
	}
	if v.typ.Tag.IsInteger() {
		return v.typ.Tag.Width()
	}
	return 0
}

func (v Value) asInt(width int, target string) (int64, error) {
	w := v.intWidth()
	if w == 0 || w > width {
		return 0, v.mismatch(target)
	}
	if v.null {
		return 0, nil
	}
	if v.isDecimal() {
		return v.d.IntPart(), nil
	}
	return v.i, nil
}

// AsBool projects a BOOLEAN value.
func (v Value) AsBool() (bool, error) {
	if v.typ.Tag != types.Bool {
		return false, v.mismatch("bool")
	}
	return v.b, nil
}

// AsInt8 projects a TINYINT value.
func (v Value) AsInt8() (int8, error) {
	x, err := v.asInt(1, "int8")
	return int8(x), err
}

// AsInt16 projects an integer value of at most 16 bits.
func (v Value) AsInt16() (int16, error) {
	x, err := v.asInt(2, "int16")
	return int16(x), err
}

// AsInt32 projects an integer value of at most 32 bits.
func (v Value) AsInt32() (int32, error) {
	x, err := v.asInt(4, "int32")
	return int32(x), err
}

// AsInt64 projects an integer value of at most 64 bits.
func (v Value) AsInt64() (int64, error) {
	return v.asInt(8, "int64")
}

// AsUint64 projects an unsigned 64-bit value.
func (v Value) AsUint64() (uint64, error) {
	if v.typ.Tag != types.Size {
		return 0, v.mismatch("uint64")
	}
	return v.u, nil
}

// AsFloat32 projects a REAL value, or an integer of at most 16 bits.
func (v Value) AsFloat32() (float32, error) {
	switch {
	case v.typ.Tag == types.Float32:
		return float32(v.f), nil
	case !v.isDecimal() && (v.typ.Tag == types.Int8 || v.typ.Tag == types.Int16):
		return float32(v.i), nil
	}
	return 0, v.mismatch("float32")
}

// AsFloat64 projects a REAL or DOUBLE value, or an integer of at most 32 bits.
func (v Value) AsFloat64() (float64, error) {
	switch {
	case v.typ.Tag == types.Float32 || v.typ.Tag == types.Float64:
		return v.f, nil
	case !v.isDecimal() && v.typ.Tag.IsInteger() && v.typ.Tag.Width() <= 4:
		return float64(v.i), nil
	}
	return 0, v.mismatch("float64")
}

// AsString projects a VARCHAR value. NUMERIC values render as exact
// decimal text at their declared scale.
func (v Value) AsString() (string, error) {
	switch {
	case v.typ.Tag == types.String:
		return string(v.p), nil
	case v.isDecimal():
		if v.null {
			return "", nil
		}
		return v.d.StringFixed(int32(v.typ.Scale)), nil
	}
	return "", v.mismatch("string")
}

// AsBytes projects a BLOB value. The returned slice is a copy.
func (v Value) AsBytes() ([]byte, error) {
	if v.typ.Tag != types.Blob {
		return nil, v.mismatch("[]byte")
	}
	if v.null {
		return nil, nil
	}
	return append([]byte{}, v.p...), nil
}

// AsTime projects a DATE, TIME or TIMESTAMP value, in UTC. TIME values
// fall on 1970-01-01.
func (v Value) AsTime() (time.Time, error) {
	switch v.typ.Tag {
	case types.Date, types.Time, types.Timestamp:
		return v.t, nil
	}
	return time.Time{}, v.mismatch("time.Time")
}

// AsBigInt projects any integer-valued source, including unsigned and
// 128-bit integers.
func (v Value) AsBigInt() (*big.Int, error) {
	if v.intWidth() == 0 && v.typ.Tag != types.Size {
		return nil, v.mismatch("*big.Int")
	}
	if v.null {
		return nil, nil
	}
	switch {
	case v.isDecimal():
		return v.d.BigInt(), nil
	case v.typ.Tag == types.Size:
		return new(big.Int).SetUint64(v.u), nil
	}
	return big.NewInt(v.i), nil
}

// AsDecimal projects NUMERIC and integer sources exactly.
func (v Value) AsDecimal() (decimal.Decimal, error) {
	switch {
	case v.isDecimal():
		return v.d, nil
	case v.typ.Tag == types.Size:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(v.u), 0), nil
	case v.typ.Tag.IsInteger():
		return decimal.NewFromInt(v.i), nil
	}
	return decimal.Decimal{}, v.mismatch("decimal.Decimal")
}

// Any returns the value as its host class, or nil for NULL.
func (v Value) Any() any {
	if v.null {
		return nil
	}
	if v.isDecimal() {
		return v.d
	}
	switch v.typ.Tag {
	case types.Bool:
		return v.b
	case types.Int8:
		return int8(v.i)
	case types.Int16:
		return int16(v.i)
	case types.Int32:
		return int32(v.i)
	case types.Int64:
		return v.i
	case types.Size:
		return v.u
	case types.Float32:
		return float32(v.f)
	case types.Float64:
		return v.f
	case types.String:
		return string(v.p)
	case types.Blob:
		return append([]byte{}, v.p...)
	case types.Date, types.Time, types.Timestamp:
		return v.t
	}
	return nil
}

// String renders the value for display. NULL renders as "NULL".
func (v Value) String() string {
	if v.null {
		return "NULL"
	}
	if v.isDecimal() {
		return v.d.StringFixed(int32(v.typ.Scale))
	}
	switch v.typ.Tag {
	case types.Bool:
		return strconv.FormatBool(v.b)
	case types.Int8, types.Int16, types.Int32, types.Int64:
		return strconv.FormatInt(v.i, 10)
	case types.Size:
		return strconv.FormatUint(v.u, 10)
	case types.Float32:
		return strconv.FormatFloat(v.f, 'g', -1, 32)
	case types.Float64:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case types.String:
		return string(v.p)
	case types.Blob:
		return `\x` + hex.EncodeToString(v.p)
	case types.Date:
		return v.t.Format("2006-01-02")
	case types.Time:
		return v.t.Format("15:04:05.999999")
	case types.Timestamp:
		return v.t.Format("2006-01-02 15:04:05.999999")
	}
	return ""
}
