package driver

import (
	"math/big"
	"time"

	"github.com/leapstack-labs/leapdriver/pkg/core"
	"github.com/leapstack-labs/leapdriver/pkg/engine"
	"github.com/leapstack-labs/leapdriver/pkg/types"
	"github.com/shopspring/decimal"
)

type slot struct {
	set   bool
	param engine.Param
}

// binder accumulates parameter values for one prepared statement.
// A negative arity means the engine could not count the placeholders and
// slots grow as they are set.
type binder struct {
	arity int
	slots []slot
}

func newBinder(arity int) *binder {
	b := &binder{arity: arity}
	if arity > 0 {
		b.slots = make([]slot, arity)
	}
	return b
}

func (b *binder) set(pos int, p engine.Param) error {
	if pos < 1 || (b.arity >= 0 && pos > b.arity) {
		if b.arity >= 0 {
			return core.Errorf(core.KindParameterOutOfRange, "parameter %d out of range [1, %d]", pos, b.arity)
		}
		return core.Errorf(core.KindParameterOutOfRange, "parameter %d out of range", pos)
	}
	for len(b.slots) < pos {
		b.slots = append(b.slots, slot{})
	}
	b.slots[pos-1] = slot{set: true, param: p}
	return nil
}

func (b *binder) clear() {
	for i := range b.slots {
		b.slots[i] = slot{}
	}
}

// params returns the bound values in position order. Every slot must be set.
func (b *binder) params() ([]engine.Param, error) {
	out := make([]engine.Param, len(b.slots))
	for i, s := range b.slots {
		if !s.set {
			return nil, core.Errorf(core.KindParameterNotSet, "parameter %d is not set", i+1)
		}
		out[i] = s.param
	}
	return out, nil
}

// decimalType returns the NUMERIC type that holds d exactly.
func decimalType(d decimal.Decimal) (types.Type, error) {
	scale := 0
	if exp := d.Exponent(); exp < 0 {
		scale = int(-exp)
	}
	digits := len(new(big.Int).Abs(d.Shift(int32(scale)).BigInt()).String())
	precision := max(digits, scale, 1)
	if precision > types.MaxPrecision {
		return types.Type{}, core.Errorf(core.KindTypeMismatch, "decimal %s exceeds NUMERIC precision %d", d, types.MaxPrecision)
	}
	return types.NumericOf(precision, scale)
}

// rescale fits d to the NUMERIC type t. Fractional digits beyond t's scale
// are rejected rather than rounded.
func rescale(d decimal.Decimal, t types.Type) (engine.Param, error) {
	fitted := d.Round(int32(t.Scale))
	if !fitted.Equal(d) {
		return engine.Param{}, core.Errorf(core.KindTypeMismatch, "decimal %s has more than %d fractional digits for %s", d, t.Scale, t)
	}
	if fitted.Abs().GreaterThanOrEqual(decimal.New(1, int32(t.Precision-t.Scale))) {
		return engine.Param{}, core.Errorf(core.KindTypeMismatch, "decimal %s overflows %s", d, t)
	}
	return engine.Param{Type: t, Value: fitted}, nil
}

// paramOf converts a Go value into a typed parameter. nil is an untyped null.
func paramOf(v any) (engine.Param, error) {
	switch x := v.(type) {
	case nil:
		return engine.Param{Type: types.Of(types.Unknown)}, nil
	case bool:
		return engine.Param{Type: types.Of(types.Bool), Value: x}, nil
	case int8:
		return engine.Param{Type: types.Of(types.Int8), Value: x}, nil
	case int16:
		return engine.Param{Type: types.Of(types.Int16), Value: x}, nil
	case int32:
		return engine.Param{Type: types.Of(types.Int32), Value: x}, nil
	case int64:
		return engine.Param{Type: types.Of(types.Int64), Value: x}, nil
	case int:
		return engine.Param{Type: types.Of(types.Int64), Value: int64(x)}, nil
	case uint64:
		return engine.Param{Type: types.Of(types.Size), Value: x}, nil
	case uint:
		return engine.Param{Type: types.Of(types.Size), Value: uint64(x)}, nil
	case float32:
		return engine.Param{Type: types.Of(types.Float32), Value: x}, nil
	case float64:
		return engine.Param{Type: types.Of(types.Float64), Value: x}, nil
	case string:
		return engine.Param{Type: types.Of(types.String), Value: x}, nil
	case []byte:
		if x == nil {
			return engine.Param{Type: types.Of(types.Blob)}, nil
		}
		return engine.Param{Type: types.Of(types.Blob), Value: append([]byte{}, x...)}, nil
	case time.Time:
		return engine.Param{Type: types.Of(types.Timestamp), Value: x}, nil
	case *big.Int:
		if x == nil {
			return engine.Param{Type: types.Of(types.Int128)}, nil
		}
		return engine.Param{Type: types.Of(types.Int128), Value: new(big.Int).Set(x)}, nil
	case decimal.Decimal:
		typ, err := decimalType(x)
		if err != nil {
			return engine.Param{}, err
		}
		return engine.Param{Type: typ, Value: x}, nil
	case Value:
		if x.IsNull() {
			return engine.Param{Type: x.Type()}, nil
		}
		return engine.Param{Type: x.Type(), Value: x.Any()}, nil
	}
	return engine.Param{}, core.Errorf(core.KindTypeMismatch, "cannot bind value of type %T", v)
}
