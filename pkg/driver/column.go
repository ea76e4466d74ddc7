package driver

import (
	"encoding/binary"
	"math"
	"math/big"
	"time"

	"github.com/leapstack-labs/leapdriver/pkg/core"
	"github.com/leapstack-labs/leapdriver/pkg/engine"
	"github.com/leapstack-labs/leapdriver/pkg/types"
	"github.com/shopspring/decimal"
)

// ColumnView is a read-only typed view over one native column buffer.
// Row indices are 0-based.
type ColumnView struct {
	col   engine.Column
	order binary.ByteOrder
}

func newColumnView(col engine.Column, order binary.ByteOrder) *ColumnView {
	if order == nil {
		order = binary.LittleEndian
	}
	return &ColumnView{col: col, order: order}
}

// Name returns the column name.
func (c *ColumnView) Name() string {
	return c.col.Name
}

// Type returns the column's native type.
func (c *ColumnView) Type() types.Type {
	return c.col.Type
}

// Nullable returns the column's declared nullability.
func (c *ColumnView) Nullable() types.Nullability {
	return c.col.Nullable
}

// Len returns the number of rows.
func (c *ColumnView) Len() int {
	return c.col.Len
}

// IsNull reports whether row holds null.
func (c *ColumnView) IsNull(row int) bool {
	return c.col.IsNull(row)
}

// Value decodes row into a Value.
func (c *ColumnView) Value(row int) (Value, error) {
	if row < 0 || row >= c.col.Len {
		return Value{}, core.Errorf(core.KindInvalidCursorPosition, "row %d out of range [0, %d)", row, c.col.Len)
	}
	typ := c.col.Type
	if c.col.IsNull(row) {
		return NullValue(typ), nil
	}

	v := Value{typ: typ}
	if typ.Tag.IsVariable() {
		v.p = c.col.Values[row]
		return v, nil
	}

	el := c.col.Element(row)
	if typ.IsNumeric() && typ.Tag != types.Size {
		v.d = decimal.NewFromBigInt(c.unscaled(el), -int32(typ.Scale))
		return v, nil
	}

	switch typ.Tag {
	case types.Bool:
		v.b = el[0] != 0
	case types.Int8:
		v.i = int64(int8(el[0]))
	case types.Int16:
		v.i = int64(int16(c.order.Uint16(el)))
	case types.Int32:
		v.i = int64(int32(c.order.Uint32(el)))
	case types.Int64:
		v.i = int64(c.order.Uint64(el))
	case types.Size:
		v.u = c.order.Uint64(el)
	case types.Float32:
		v.f = float64(math.Float32frombits(c.order.Uint32(el)))
	case types.Float64:
		v.f = math.Float64frombits(c.order.Uint64(el))
	case types.Date:
		days := int64(int32(c.order.Uint32(el)))
		v.t = time.Unix(days*86400, 0).UTC()
	case types.Time, types.Timestamp:
		v.t = time.UnixMicro(int64(c.order.Uint64(el))).UTC()
	default:
		return Value{}, core.Errorf(core.KindUnknownType, "column %q has undecodable type %s", c.col.Name, typ)
	}
	return v, nil
}

// unscaled reconstructs the signed integer stored in a NUMERIC element.
func (c *ColumnView) unscaled(el []byte) *big.Int {
	switch len(el) {
	case 2:
		return big.NewInt(int64(int16(c.order.Uint16(el))))
	case 4:
		return big.NewInt(int64(int32(c.order.Uint32(el))))
	case 8:
		return big.NewInt(int64(c.order.Uint64(el)))
	}
	return types.DecodeInt128(c.order, el)
}
