package engine

import (
	"encoding/binary"

	"github.com/leapstack-labs/leapdriver/pkg/types"
)

// ResultKind tells which half of a Result is meaningful.
type ResultKind uint8

// Result kinds.
const (
	// RowsResult carries a columnar result set.
	RowsResult ResultKind = iota
	// CountResult carries an affected-row count.
	CountResult
)

// Result is the raw outcome of one engine query.
type Result struct {
	Kind ResultKind

	// Columns and RowCount are set for RowsResult.
	Columns  []Column
	RowCount int
	// Order is the byte order of every fixed-width buffer in Columns.
	Order binary.ByteOrder

	// Affected is set for CountResult.
	Affected int64
}

// NewRowsResult builds a columnar result. The row count is taken from the
// first column; a result without columns has zero rows.
func NewRowsResult(order binary.ByteOrder, columns ...Column) *Result {
	r := &Result{Kind: RowsResult, Columns: columns, Order: order}
	if len(columns) > 0 {
		r.RowCount = columns[0].Len
	}
	return r
}

// NewCountResult builds an affected-row count result.
func NewCountResult(affected int64) *Result {
	return &Result{Kind: CountResult, Affected: affected}
}

// Column is one native column buffer. Fixed-width tags store Len elements
// of Type.Tag.Width() bytes in Data with an optional validity bitmap.
// String and Blob store one entry per row in Values, where a nil entry is
// null and an empty non-nil entry is an empty value.
type Column struct {
	Name     string
	Type     types.Type
	Nullable types.Nullability

	Data []byte
	// Valid has bit i (LSB first) set when row i is non-null.
	// Nil means every row is valid.
	Valid []byte

	Values [][]byte

	Len int
}

// IsNull reports whether row i (0-based) holds null.
func (c *Column) IsNull(i int) bool {
	if c.Type.Tag.IsVariable() {
		return c.Values[i] == nil
	}
	if c.Valid == nil {
		return false
	}
	return c.Valid[i/8]&(1<<(uint(i)%8)) == 0
}

// Element returns the fixed-width bytes of row i (0-based).
func (c *Column) Element(i int) []byte {
	w := c.Type.Tag.Width()
	return c.Data[i*w : (i+1)*w]
}
