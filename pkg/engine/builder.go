package engine

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/leapdriver/pkg/core"
	"github.com/leapstack-labs/leapdriver/pkg/types"
	"github.com/shopspring/decimal"
)

// ColumnBuilder encodes host values into a native Column.
type ColumnBuilder struct {
	col   Column
	order binary.ByteOrder
	nulls bool
}

// NewColumnBuilder starts a column of the given type. Fixed-width values are
// written in order.
func NewColumnBuilder(name string, typ types.Type, nullable types.Nullability, order binary.ByteOrder) *ColumnBuilder {
	return &ColumnBuilder{
		col:   Column{Name: name, Type: typ, Nullable: nullable},
		order: order,
	}
}

// Len returns the number of values appended so far.
func (b *ColumnBuilder) Len() int {
	return b.col.Len
}

// AppendNull appends a null row.
func (b *ColumnBuilder) AppendNull() {
	if b.col.Type.Tag.IsVariable() {
		b.col.Values = append(b.col.Values, nil)
	} else {
		b.col.Data = append(b.col.Data, make([]byte, b.col.Type.Tag.Width())...)
		b.setValid(false)
	}
	b.nulls = true
	b.col.Len++
}

// Append converts v to the column's tag and appends it. A nil v appends null.
func (b *ColumnBuilder) Append(v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}

	tag := b.col.Type.Tag
	switch tag {
	case types.String:
		s := toText(v)
		b.col.Values = append(b.col.Values, append(make([]byte, 0, len(s)), s...))
		b.col.Len++
		return nil
	case types.Blob:
		p, ok := toBytes(v)
		if !ok {
			return b.mismatch(v)
		}
		b.col.Values = append(b.col.Values, append(make([]byte, 0, len(p)), p...))
		b.col.Len++
		return nil
	case types.Unknown:
		return b.mismatch(v)
	}

	buf := make([]byte, tag.Width())
	if err := b.encode(buf, v); err != nil {
		return err
	}
	b.col.Data = append(b.col.Data, buf...)
	b.setValid(true)
	b.col.Len++
	return nil
}

// Build returns the finished column. The validity bitmap is dropped when
// no null was appended.
func (b *ColumnBuilder) Build() Column {
	col := b.col
	if !b.nulls {
		col.Valid = nil
	}
	return col
}

func (b *ColumnBuilder) setValid(ok bool) {
	i := b.col.Len
	if i/8 >= len(b.col.Valid) {
		b.col.Valid = append(b.col.Valid, 0)
	}
	if ok {
		b.col.Valid[i/8] |= 1 << (uint(i) % 8)
	}
}

func (b *ColumnBuilder) mismatch(v any) error {
	return core.Errorf(core.KindTypeMismatch, "cannot store %T in %s column %q", v, b.col.Type, b.col.Name)
}

func (b *ColumnBuilder) encode(buf []byte, v any) error {
	typ := b.col.Type
	if typ.IsNumeric() && typ.Tag != types.Size {
		unscaled, err := toUnscaled(v, typ.Scale)
		if err != nil {
			return b.mismatch(v)
		}
		return b.putUnscaled(buf, unscaled)
	}

	switch typ.Tag {
	case types.Bool:
		x, ok := toBool(v)
		if !ok {
			return b.mismatch(v)
		}
		if x {
			buf[0] = 1
		}
	case types.Int8, types.Int16, types.Int32, types.Int64:
		x, ok := toInt64(v)
		if !ok || !fitsWidth(x, len(buf)) {
			return b.mismatch(v)
		}
		b.putInt(buf, x)
	case types.Size:
		x, ok := toUint64(v)
		if !ok {
			return b.mismatch(v)
		}
		b.order.PutUint64(buf, x)
	case types.Float32:
		x, ok := toFloat64(v)
		if !ok {
			return b.mismatch(v)
		}
		b.order.PutUint32(buf, math.Float32bits(float32(x)))
	case types.Float64:
		x, ok := toFloat64(v)
		if !ok {
			return b.mismatch(v)
		}
		b.order.PutUint64(buf, math.Float64bits(x))
	case types.Date:
		t, ok := toTime(v)
		if !ok {
			return b.mismatch(v)
		}
		b.order.PutUint32(buf, uint32(int32(DaysSinceEpoch(t))))
	case types.Time:
		t, ok := toTime(v)
		if !ok {
			return b.mismatch(v)
		}
		b.order.PutUint64(buf, uint64(MicrosSinceMidnight(t)))
	case types.Timestamp:
		t, ok := toTime(v)
		if !ok {
			return b.mismatch(v)
		}
		b.order.PutUint64(buf, uint64(t.UnixMicro()))
	default:
		return b.mismatch(v)
	}
	return nil
}

func (b *ColumnBuilder) putInt(buf []byte, x int64) {
	switch len(buf) {
	case 1:
		buf[0] = byte(int8(x))
	case 2:
		b.order.PutUint16(buf, uint16(int16(x)))
	case 4:
		b.order.PutUint32(buf, uint32(int32(x)))
	default:
		b.order.PutUint64(buf, uint64(x))
	}
}

func (b *ColumnBuilder) putUnscaled(buf []byte, v *big.Int) error {
	if len(buf) == 16 {
		if err := types.EncodeInt128(b.order, buf, v); err != nil {
			return core.Errorf(core.KindTypeMismatch, "value %s does not fit %s column %q", v, b.col.Type, b.col.Name)
		}
		return nil
	}
	if !v.IsInt64() || !fitsWidth(v.Int64(), len(buf)) {
		return core.Errorf(core.KindTypeMismatch, "value %s does not fit %s column %q", v, b.col.Type, b.col.Name)
	}
	b.putInt(buf, v.Int64())
	return nil
}

// DaysSinceEpoch returns the calendar date of t as days since 1970-01-01.
func DaysSinceEpoch(t time.Time) int64 {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return d.Unix() / 86400
}

// MicrosSinceMidnight returns the wall clock of t as microseconds since midnight.
func MicrosSinceMidnight(t time.Time) int64 {
	secs := int64(t.Hour())*3600 + int64(t.Minute())*60 + int64(t.Second())
	return secs*1_000_000 + int64(t.Nanosecond())/1000
}

func fitsWidth(x int64, width int) bool {
	switch width {
	case 1:
		return x >= math.MinInt8 && x <= math.MaxInt8
	case 2:
		return x >= math.MinInt16 && x <= math.MaxInt16
	case 4:
		return x >= math.MinInt32 && x <= math.MaxInt32
	default:
		return true
	}
}

func toBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		b, err := strconv.ParseBool(x)
		return b, err == nil
	}
	if i, ok := toInt64(v); ok {
		return i != 0, true
	}
	return false, false
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case uint:
		if uint64(x) > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case float64:
		if x != math.Trunc(x) || x < math.MinInt64 || x >= math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case *big.Int:
		if !x.IsInt64() {
			return 0, false
		}
		return x.Int64(), true
	case decimal.Decimal:
		if !x.IsInteger() || !x.BigInt().IsInt64() {
			return 0, false
		}
		return x.IntPart(), true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		return i, err == nil
	case []byte:
		i, err := strconv.ParseInt(strings.TrimSpace(string(x)), 10, 64)
		return i, err == nil
	}
	return 0, false
}

func toUint64(v any) (uint64, bool) {
	switch x := v.(type) {
	case uint64:
		return x, true
	case uint:
		return uint64(x), true
	case *big.Int:
		if !x.IsUint64() {
			return 0, false
		}
		return x.Uint64(), true
	case string:
		u, err := strconv.ParseUint(strings.TrimSpace(x), 10, 64)
		return u, err == nil
	}
	if i, ok := toInt64(v); ok && i >= 0 {
		return uint64(i), true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case decimal.Decimal:
		f, _ := x.Float64()
		return f, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	case []byte:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(x)), 64)
		return f, err == nil
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

// toUnscaled returns v multiplied by 10^scale as an exact integer.
func toUnscaled(v any, scale int) (*big.Int, error) {
	var d decimal.Decimal
	switch x := v.(type) {
	case decimal.Decimal:
		d = x
	case *big.Int:
		d = decimal.NewFromBigInt(x, 0)
	case uint64:
		d = decimal.NewFromBigInt(new(big.Int).SetUint64(x), 0)
	case float64:
		d = decimal.NewFromFloat(x)
	case float32:
		d = decimal.NewFromFloat32(x)
	case string:
		var err error
		if d, err = decimal.NewFromString(strings.TrimSpace(x)); err != nil {
			return nil, err
		}
	case []byte:
		var err error
		if d, err = decimal.NewFromString(strings.TrimSpace(string(x))); err != nil {
			return nil, err
		}
	default:
		i, ok := toInt64(v)
		if !ok {
			return nil, fmt.Errorf("not a number: %T", v)
		}
		d = decimal.NewFromInt(i)
	}
	return d.Shift(int32(scale)).Round(0).BigInt(), nil
}

func toText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

func toBytes(v any) ([]byte, bool) {
	switch x := v.(type) {
	case []byte:
		return x, true
	case string:
		return []byte(x), true
	}
	return nil, false
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
	"15:04:05.999999999",
}

func toTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case []byte:
		return parseTime(string(x))
	case string:
		return parseTime(x)
	}
	return time.Time{}, false
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
