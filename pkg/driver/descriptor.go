package driver

import (
	"github.com/leapstack-labs/leapdriver/pkg/core"
	"github.com/leapstack-labs/leapdriver/pkg/types"
)

// ColumnInfo describes one result column.
type ColumnInfo struct {
	Name     string
	Type     types.Type
	Nullable types.Nullability
}

// ResultDescriptor describes the columns of a result set, independently of
// cursor position. Column indices are 1-based.
type ResultDescriptor struct {
	cols []ColumnInfo
}

func newResultDescriptor(views []*ColumnView) *ResultDescriptor {
	cols := make([]ColumnInfo, len(views))
	for i, v := range views {
		cols[i] = ColumnInfo{Name: v.Name(), Type: v.Type(), Nullable: v.Nullable()}
	}
	return &ResultDescriptor{cols: cols}
}

// ColumnCount returns the number of columns.
func (d *ResultDescriptor) ColumnCount() int {
	return len(d.cols)
}

// Column returns the description of column i.
func (d *ResultDescriptor) Column(i int) (ColumnInfo, error) {
	if i < 1 || i > len(d.cols) {
		return ColumnInfo{}, core.Errorf(core.KindColumnOutOfRange, "column %d out of range [1, %d]", i, len(d.cols))
	}
	return d.cols[i-1], nil
}

// Columns returns a copy of every column description.
func (d *ResultDescriptor) Columns() []ColumnInfo {
	return append([]ColumnInfo(nil), d.cols...)
}

// ColumnName returns the name of column i.
func (d *ResultDescriptor) ColumnName(i int) (string, error) {
	c, err := d.Column(i)
	return c.Name, err
}

// ColumnType returns the portable type of column i.
func (d *ResultDescriptor) ColumnType(i int) (types.SQLType, error) {
	c, err := d.Column(i)
	return c.Type.SQL, err
}

// ColumnTypeName returns the rendered type of column i, e.g. NUMERIC(10,2).
func (d *ResultDescriptor) ColumnTypeName(i int) (string, error) {
	c, err := d.Column(i)
	if err != nil {
		return "", err
	}
	return c.Type.String(), nil
}

// Precision returns the precision of column i. Zero for VARCHAR and BLOB.
func (d *ResultDescriptor) Precision(i int) (int, error) {
	c, err := d.Column(i)
	return c.Type.PrecisionOrDefault(), err
}

// Scale returns the scale of column i. Zero for everything but NUMERIC.
func (d *ResultDescriptor) Scale(i int) (int, error) {
	c, err := d.Column(i)
	return c.Type.Scale, err
}

// Nullable returns the nullability of column i.
func (d *ResultDescriptor) Nullable(i int) (types.Nullability, error) {
	c, err := d.Column(i)
	if err != nil {
		return types.NullableUnknown, err
	}
	return c.Nullable, nil
}

// ColumnClassName returns the Go type values of column i project to.
func (d *ResultDescriptor) ColumnClassName(i int) (string, error) {
	c, err := d.Column(i)
	if err != nil {
		return "", err
	}
	return c.Type.HostClass(), nil
}

// DisplaySize returns the maximum rendered width of column i.
func (d *ResultDescriptor) DisplaySize(i int) (int, error) {
	c, err := d.Column(i)
	return c.Type.DisplaySize(), err
}

// IsSigned reports whether column i holds signed numbers.
func (d *ResultDescriptor) IsSigned(i int) (bool, error) {
	c, err := d.Column(i)
	return c.Type.Signed(), err
}

// IsCaseSensitive reports whether column i compares case-sensitively.
func (d *ResultDescriptor) IsCaseSensitive(i int) (bool, error) {
	c, err := d.Column(i)
	return c.Type.SQL.CaseSensitive(), err
}

// ParameterDescriptor describes the parameters of a prepared statement.
// Positions are 1-based. An undescribable statement has zero parameters.
type ParameterDescriptor struct {
	types []types.Type
}

func newParameterDescriptor(ts []types.Type) *ParameterDescriptor {
	return &ParameterDescriptor{types: append([]types.Type(nil), ts...)}
}

// Count returns the number of described parameters.
func (d *ParameterDescriptor) Count() int {
	return len(d.types)
}

// Type returns the type of parameter i.
func (d *ParameterDescriptor) Type(i int) (types.Type, error) {
	if i < 1 || i > len(d.types) {
		return types.Type{}, core.Errorf(core.KindParameterOutOfRange, "parameter %d out of range [1, %d]", i, len(d.types))
	}
	return d.types[i-1], nil
}

// SQLType returns the portable type of parameter i.
func (d *ParameterDescriptor) SQLType(i int) (types.SQLType, error) {
	t, err := d.Type(i)
	return t.SQL, err
}

// TypeName returns the rendered type of parameter i.
func (d *ParameterDescriptor) TypeName(i int) (string, error) {
	t, err := d.Type(i)
	if err != nil {
		return "", err
	}
	return t.String(), nil
}

// Precision returns the precision of parameter i.
func (d *ParameterDescriptor) Precision(i int) (int, error) {
	t, err := d.Type(i)
	return t.PrecisionOrDefault(), err
}

// Scale returns the scale of parameter i.
func (d *ParameterDescriptor) Scale(i int) (int, error) {
	t, err := d.Type(i)
	return t.Scale, err
}

// ClassName returns the Go type parameter i is bound from.
func (d *ParameterDescriptor) ClassName(i int) (string, error) {
	t, err := d.Type(i)
	if err != nil {
		return "", err
	}
	return t.HostClass(), nil
}

// IsSigned reports whether parameter i holds signed numbers.
func (d *ParameterDescriptor) IsSigned(i int) (bool, error) {
	t, err := d.Type(i)
	return t.Signed(), err
}

// Nullable always reports NullableUnknown; engines do not describe
// parameter nullability.
func (d *ParameterDescriptor) Nullable(i int) (types.Nullability, error) {
	_, err := d.Type(i)
	return types.NullableUnknown, err
}
