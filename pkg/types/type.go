package types

import (
	"fmt"

	"github.com/leapstack-labs/leapdriver/pkg/core"
)

// Type is a concrete column or parameter type: a native tag plus the
// portable type it surfaces as. Precision and Scale are only meaningful
// for NUMERIC and are zero otherwise.
type Type struct {
	Tag       Tag
	SQL       SQLType
	Precision int
	Scale     int
}

// Of returns the default Type for a tag. Int128 surfaces as NUMERIC(38,0)
// and Size as NUMERIC(20,0).
func Of(tag Tag) Type {
	if !tag.Valid() {
		return Type{Tag: Unknown, SQL: Other}
	}
	t := Type{Tag: tag, SQL: tags[tag].SQL}
	if t.SQL == Numeric {
		t.Precision = tags[tag].Precision
	}
	return t
}

// NumericStorage returns the narrowest integer tag able to hold an
// unscaled NUMERIC value of the given precision.
func NumericStorage(precision int) Tag {
	switch {
	case precision <= 4:
		return Int16
	case precision <= 9:
		return Int32
	case precision <= 18:
		return Int64
	default:
		return Int128
	}
}

// NumericOf builds a NUMERIC(precision, scale) type stored in the narrowest tag.
func NumericOf(precision, scale int) (Type, error) {
	if precision < 1 || precision > MaxPrecision {
		return Type{}, core.Errorf(core.KindUnknownType, "NUMERIC precision %d out of range [1, %d]", precision, MaxPrecision)
	}
	if scale < 0 || scale > precision {
		return Type{}, core.Errorf(core.KindUnknownType, "NUMERIC scale %d out of range [0, %d]", scale, precision)
	}
	return Type{Tag: NumericStorage(precision), SQL: Numeric, Precision: precision, Scale: scale}, nil
}

// NumericUnsized returns a NUMERIC type whose precision and scale are not
// known. It is stored in the widest tag and reports zero precision and scale.
func NumericUnsized() Type {
	return Type{Tag: Int128, SQL: Numeric}
}

// Sized reports whether t carries a declared precision. Only NUMERIC types
// can be unsized.
func (t Type) Sized() bool {
	return t.SQL != Numeric || t.Precision > 0
}

// Signed reports whether values of t carry a sign. Size surfaces as NUMERIC
// but holds unsigned 64-bit values.
func (t Type) Signed() bool {
	if t.Tag == Size {
		return false
	}
	return t.SQL.Signed()
}

// IsNumeric reports whether t surfaces as NUMERIC.
func (t Type) IsNumeric() bool {
	return t.SQL == Numeric
}

// HostClass returns the Go type name values of t are projected to.
func (t Type) HostClass() string {
	if !t.SQL.Valid() {
		return sqlTypes[Other].HostClass
	}
	return sqlTypes[t.SQL].HostClass
}

// DisplaySize returns the maximum rendered width of a t value.
// NUMERIC widths account for the sign and the decimal point.
func (t Type) DisplaySize() int {
	if t.SQL == Numeric && t.Precision > 0 {
		size := t.Precision + 1
		if t.Scale > 0 {
			size++
		}
		return size
	}
	if !t.Tag.Valid() {
		return 0
	}
	return tags[t.Tag].DisplaySize
}

// PrecisionOrDefault returns the declared precision, falling back to the
// tag's natural precision for non-NUMERIC types. Zero for VARCHAR and BLOB.
func (t Type) PrecisionOrDefault() int {
	if t.SQL == Numeric {
		return t.Precision
	}
	if !t.Tag.Valid() {
		return 0
	}
	return tags[t.Tag].Precision
}

func (t Type) String() string {
	if t.SQL == Numeric && t.Precision > 0 {
		return fmt.Sprintf("NUMERIC(%d,%d)", t.Precision, t.Scale)
	}
	return t.SQL.String()
}
