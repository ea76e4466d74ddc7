// Package types maps engine-native type tags to the portable SQL type system.
//
// Every mapping is a constant lookup table indexed by Tag or SQLType, so the
// tables stay total over the enumeration. Precision and scale of NUMERIC
// values cannot be recovered from a tag alone; they travel on Type.
package types

import (
	"fmt"

	"github.com/leapstack-labs/leapdriver/pkg/core"
)

// Tag is the engine-native type identity of a column or parameter.
type Tag uint8

// Native type tags.
const (
	Unknown Tag = iota
	Bool
	Int8
	Int16
	Int32
	Int64
	Int128
	Size
	Float32
	Float64
	String
	Blob
	Date
	Time
	Timestamp

	tagCount
)

// SQLType is the portable, host-facing type classification.
type SQLType uint8

// Portable SQL types.
const (
	Other SQLType = iota
	Boolean
	TinyInt
	SmallInt
	Integer
	BigInt
	Numeric
	Real
	Double
	Varchar
	Binary
	DateType
	TimeType
	TimestampType

	sqlTypeCount
)

// Display sizes that do not follow from a width.
const (
	// VarDisplaySize is reported for unbounded VARCHAR and BLOB columns.
	VarDisplaySize = 65535
	// MaxPrecision is the largest NUMERIC precision a 128-bit tag can hold.
	MaxPrecision = 38
)

type tagInfo struct {
	Name        string
	SQL         SQLType
	Width       int // bytes per element, 0 for variable-length storage
	DisplaySize int
	Precision   int
}

// tags is indexed by Tag.
var tags = [tagCount]tagInfo{
	Unknown:   {Name: "unknown", SQL: Other, Width: 0, DisplaySize: 0, Precision: 0},
	Bool:      {Name: "bool", SQL: Boolean, Width: 1, DisplaySize: 5, Precision: 1},
	Int8:      {Name: "int8", SQL: TinyInt, Width: 1, DisplaySize: 4, Precision: 3},
	Int16:     {Name: "int16", SQL: SmallInt, Width: 2, DisplaySize: 6, Precision: 5},
	Int32:     {Name: "int32", SQL: Integer, Width: 4, DisplaySize: 11, Precision: 10},
	Int64:     {Name: "int64", SQL: BigInt, Width: 8, DisplaySize: 20, Precision: 19},
	Int128:    {Name: "int128", SQL: Numeric, Width: 16, DisplaySize: 40, Precision: MaxPrecision},
	Size:      {Name: "size", SQL: Numeric, Width: 8, DisplaySize: 20, Precision: 20},
	Float32:   {Name: "float32", SQL: Real, Width: 4, DisplaySize: 15, Precision: 7},
	Float64:   {Name: "float64", SQL: Double, Width: 8, DisplaySize: 24, Precision: 15},
	String:    {Name: "string", SQL: Varchar, Width: 0, DisplaySize: VarDisplaySize, Precision: 0},
	Blob:      {Name: "blob", SQL: Binary, Width: 0, DisplaySize: VarDisplaySize, Precision: 0},
	Date:      {Name: "date", SQL: DateType, Width: 4, DisplaySize: 10, Precision: 10},
	Time:      {Name: "time", SQL: TimeType, Width: 8, DisplaySize: 15, Precision: 15},
	Timestamp: {Name: "timestamp", SQL: TimestampType, Width: 8, DisplaySize: 26, Precision: 26},
}

type sqlInfo struct {
	Name          string
	HostClass     string
	Tag           Tag
	Signed        bool
	CaseSensitive bool
}

// sqlTypes is indexed by SQLType.
var sqlTypes = [sqlTypeCount]sqlInfo{
	Other:         {Name: "OTHER", HostClass: "any", Tag: Unknown},
	Boolean:       {Name: "BOOLEAN", HostClass: "bool", Tag: Bool},
	TinyInt:       {Name: "TINYINT", HostClass: "int8", Tag: Int8, Signed: true},
	SmallInt:      {Name: "SMALLINT", HostClass: "int16", Tag: Int16, Signed: true},
	Integer:       {Name: "INTEGER", HostClass: "int32", Tag: Int32, Signed: true},
	BigInt:        {Name: "BIGINT", HostClass: "int64", Tag: Int64, Signed: true},
	Numeric:       {Name: "NUMERIC", HostClass: "decimal.Decimal", Tag: Int128, Signed: true},
	Real:          {Name: "REAL", HostClass: "float32", Tag: Float32, Signed: true},
	Double:        {Name: "DOUBLE", HostClass: "float64", Tag: Float64, Signed: true},
	Varchar:       {Name: "VARCHAR", HostClass: "string", Tag: String, CaseSensitive: true},
	Binary:        {Name: "BLOB", HostClass: "[]byte", Tag: Blob},
	DateType:      {Name: "DATE", HostClass: "time.Time", Tag: Date},
	TimeType:      {Name: "TIME", HostClass: "time.Time", Tag: Time},
	TimestampType: {Name: "TIMESTAMP", HostClass: "time.Time", Tag: Timestamp},
}

// Valid reports whether t is inside the tag enumeration.
func (t Tag) Valid() bool {
	return t < tagCount
}

func (t Tag) String() string {
	if !t.Valid() {
		return fmt.Sprintf("Tag(%d)", uint8(t))
	}
	return tags[t].Name
}

// Width returns the fixed element width in bytes, or 0 for variable-length tags.
func (t Tag) Width() int {
	if !t.Valid() {
		return 0
	}
	return tags[t].Width
}

// IsVariable reports whether values of t are stored as a sequence of
// individually sized values rather than a fixed-stride buffer.
func (t Tag) IsVariable() bool {
	return t == String || t == Blob
}

// IsInteger reports whether t is one of the signed integer tags.
func (t Tag) IsInteger() bool {
	return t >= Int8 && t <= Int128
}

// Valid reports whether s is inside the SQL type enumeration.
func (s SQLType) Valid() bool {
	return s < sqlTypeCount
}

func (s SQLType) String() string {
	if !s.Valid() {
		return fmt.Sprintf("SQLType(%d)", uint8(s))
	}
	return sqlTypes[s].Name
}

// Signed reports whether values of s carry a sign.
func (s SQLType) Signed() bool {
	return s.Valid() && sqlTypes[s].Signed
}

// CaseSensitive reports whether comparisons of s values are case sensitive.
func (s SQLType) CaseSensitive() bool {
	return s.Valid() && sqlTypes[s].CaseSensitive
}

// SQLTypeOf returns the portable type for a native tag.
func SQLTypeOf(tag Tag) (SQLType, error) {
	if !tag.Valid() {
		return Other, unknownTag(tag)
	}
	return tags[tag].SQL, nil
}

// HostClassOf returns the Go type name a value of sqlType is projected to.
func HostClassOf(sqlType SQLType) (string, error) {
	if !sqlType.Valid() {
		return "", core.Errorf(core.KindUnknownType, "unknown SQL type %d", uint8(sqlType))
	}
	return sqlTypes[sqlType].HostClass, nil
}

// OfSQL returns the default Type a portable type is stored as.
// NUMERIC defaults to NUMERIC(38,0) in 128-bit storage.
func OfSQL(sqlType SQLType) (Type, error) {
	if !sqlType.Valid() {
		return Of(Unknown), core.Errorf(core.KindUnknownType, "unknown SQL type %d", uint8(sqlType))
	}
	return Of(sqlTypes[sqlType].Tag), nil
}

// DisplaySizeOf returns the maximum character width of a rendered tag value.
func DisplaySizeOf(tag Tag) (int, error) {
	if !tag.Valid() {
		return 0, unknownTag(tag)
	}
	return tags[tag].DisplaySize, nil
}

func unknownTag(tag Tag) error {
	return core.Errorf(core.KindUnknownType, "unknown type tag %d", uint8(tag))
}

// Nullability describes whether a column may hold nulls.
type Nullability uint8

// Nullability values.
const (
	NoNulls Nullability = iota
	Nullable
	NullableUnknown
)

func (n Nullability) String() string {
	switch n {
	case NoNulls:
		return "NOT NULL"
	case Nullable:
		return "NULL"
	default:
		return "UNKNOWN"
	}
}
