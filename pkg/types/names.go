package types

import (
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapdriver/pkg/core"
)

// Default NUMERIC shape when a DECIMAL/NUMERIC name carries no arguments.
const (
	DefaultNumericPrecision = 18
	DefaultNumericScale     = 3
)

// names maps upper-cased engine type names and aliases to tags.
// INT8 follows the engines' meaning (an 8-byte BIGINT), not the tag name.
var names = map[string]Tag{
	"UNKNOWN": Unknown, "NULL": Unknown,

	"BOOLEAN": Bool, "BOOL": Bool, "LOGICAL": Bool,

	"TINYINT": Int8, "INT1": Int8,
	"SMALLINT": Int16, "INT2": Int16, "SHORT": Int16, "INT16": Int16,
	"INTEGER": Int32, "INT": Int32, "INT4": Int32, "SIGNED": Int32, "INT32": Int32,
	"BIGINT": Int64, "INT8": Int64, "LONG": Int64, "INT64": Int64,
	"HUGEINT": Int128, "INT128": Int128,
	"UBIGINT": Size, "SIZE": Size, "UINT64": Size,

	"REAL": Float32, "FLOAT": Float32, "FLOAT4": Float32, "FLOAT32": Float32,
	"DOUBLE": Float64, "FLOAT8": Float64, "DOUBLE PRECISION": Float64, "FLOAT64": Float64,

	"VARCHAR": String, "TEXT": String, "STRING": String, "CHAR": String,
	"BPCHAR": String, "CHARACTER VARYING": String, "UUID": String,

	"BLOB": Blob, "BYTEA": Blob, "BINARY": Blob, "VARBINARY": Blob,

	"DATE": Date,
	"TIME": Time,
	"TIMESTAMP": Timestamp, "DATETIME": Timestamp, "TIMESTAMP_US": Timestamp,
	"TIMESTAMP WITH TIME ZONE": Timestamp, "TIMESTAMPTZ": Timestamp,
}

// TagFromName resolves an engine type name (case-insensitive) to its tag.
// Length and precision arguments are ignored.
func TagFromName(name string) (Tag, error) {
	base, _ := splitArgs(name)
	tag, ok := names[base]
	if !ok {
		return Unknown, core.Errorf(core.KindUnknownType, "unknown type name %q", name)
	}
	return tag, nil
}

// ParseTypeName resolves a full engine type name, including DECIMAL(p,s)
// and NUMERIC(p,s) forms, into a Type.
func ParseTypeName(name string) (Type, error) {
	base, args := splitArgs(name)
	if base == "DECIMAL" || base == "NUMERIC" || base == "DEC" {
		p, s := DefaultNumericPrecision, DefaultNumericScale
		if len(args) > 0 {
			var err error
			if p, err = strconv.Atoi(args[0]); err != nil {
				return Type{}, core.Errorf(core.KindUnknownType, "invalid precision in type %q", name)
			}
			s = 0
		}
		if len(args) > 1 {
			var err error
			if s, err = strconv.Atoi(args[1]); err != nil {
				return Type{}, core.Errorf(core.KindUnknownType, "invalid scale in type %q", name)
			}
		}
		return NumericOf(p, s)
	}

	tag, err := TagFromName(name)
	if err != nil {
		return Type{}, err
	}
	return Of(tag), nil
}

// splitArgs upper-cases name and splits off a parenthesised argument list.
func splitArgs(name string) (string, []string) {
	name = strings.ToUpper(strings.TrimSpace(name))
	open := strings.IndexByte(name, '(')
	if open < 0 || !strings.HasSuffix(name, ")") {
		return name, nil
	}
	base := strings.TrimSpace(name[:open])
	inner := name[open+1 : len(name)-1]
	var args []string
	for _, a := range strings.Split(inner, ",") {
		args = append(args, strings.TrimSpace(a))
	}
	return base, args
}
