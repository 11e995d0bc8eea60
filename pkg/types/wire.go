package types

import (
	"encoding/base64"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TypeSignature is the structured type description carried by the client
// protocol's column metadata.
type TypeSignature struct {
	RawType   string         `json:"rawType"`
	Arguments []TypeArgument `json:"arguments"`
}

// TypeArgument is one parameter of a parameterized type such as decimal(p,s).
type TypeArgument struct {
	Kind  string `json:"kind"`
	Value any    `json:"value"`
}

// WireType returns the lower-case protocol type name of t, e.g. "bigint" or
// "decimal(10,2)".
func WireType(t SQLType) string {
	sig := Signature(t)
	if len(sig.Arguments) == 0 {
		return sig.RawType
	}
	args := make([]string, len(sig.Arguments))
	for i, a := range sig.Arguments {
		args[i] = fmt.Sprint(a.Value)
	}
	return sig.RawType + "(" + strings.Join(args, ",") + ")"
}

// Signature returns the protocol type signature of t.
func Signature(t SQLType) TypeSignature {
	args := []TypeArgument{}
	var raw string
	switch t.Name {
	case Null:
		raw = "unknown"
	case Boolean:
		raw = "boolean"
	case TinyInt:
		raw = "tinyint"
	case SmallInt:
		raw = "smallint"
	case Integer:
		raw = "integer"
	case BigInt:
		raw = "bigint"
	case Real:
		raw = "real"
	case Double:
		raw = "double"
	case Decimal:
		raw = "decimal"
		if t.Precision > 0 {
			args = append(args,
				TypeArgument{Kind: "LONG", Value: t.Precision},
				TypeArgument{Kind: "LONG", Value: t.Scale})
		}
	case Varchar:
		raw = "varchar"
	case Char:
		raw = "char"
	case Varbinary:
		raw = "varbinary"
	case Date:
		raw = "date"
	case Time:
		raw = "time"
	case Timestamp:
		raw = "timestamp"
	case TimestampLocalTZ, TimestampTZ:
		raw = "timestamp with time zone"
	case IntervalDayTime:
		raw = "interval day to second"
	case IntervalYearMonth:
		raw = "interval year to month"
	case Any:
		raw = "unknown"
	default:
		raw = "unknown"
	}
	return TypeSignature{RawType: raw, Arguments: args}
}

// JDBC type codes from java.sql.Types, reported by the introspection relations.
const (
	jdbcNull                  = 0
	jdbcBoolean               = 16
	jdbcTinyInt               = -6
	jdbcSmallInt              = 5
	jdbcInteger               = 4
	jdbcBigInt                = -5
	jdbcReal                  = 7
	jdbcDouble                = 8
	jdbcDecimal               = 3
	jdbcChar                  = 1
	jdbcVarchar               = 12
	jdbcVarbinary             = -3
	jdbcDate                  = 91
	jdbcTime                  = 92
	jdbcTimestamp             = 93
	jdbcTimestampWithTimezone = 2014
	jdbcOther                 = 1111
	jdbcJavaObject            = 2000
)

// JDBCType returns the java.sql.Types code for t.
func JDBCType(t SQLType) int {
	switch t.Name {
	case Null:
		return jdbcNull
	case Boolean:
		return jdbcBoolean
	case TinyInt:
		return jdbcTinyInt
	case SmallInt:
		return jdbcSmallInt
	case Integer:
		return jdbcInteger
	case BigInt:
		return jdbcBigInt
	case Real:
		return jdbcReal
	case Double:
		return jdbcDouble
	case Decimal:
		return jdbcDecimal
	case Varchar:
		return jdbcVarchar
	case Char:
		return jdbcChar
	case Varbinary:
		return jdbcVarbinary
	case Date:
		return jdbcDate
	case Time:
		return jdbcTime
	case Timestamp:
		return jdbcTimestamp
	case TimestampLocalTZ, TimestampTZ:
		return jdbcTimestampWithTimezone
	case IntervalDayTime, IntervalYearMonth:
		return jdbcOther
	case Any:
		return jdbcJavaObject
	default:
		return jdbcOther
	}
}

// ColumnSize returns the JDBC COLUMN_SIZE of t: precision for numeric types,
// maximum length for character types and zero when not applicable.
func ColumnSize(t SQLType) int {
	switch t.Name {
	case Boolean:
		return 1
	case TinyInt:
		return 3
	case SmallInt:
		return 5
	case Integer:
		return 10
	case BigInt:
		return 19
	case Real:
		return 24
	case Double:
		return 53
	case Decimal:
		return t.Precision
	case Varchar, Varbinary:
		return math.MaxInt32
	case Char:
		return 1
	case Date:
		return 10
	case Time:
		return 12
	case Timestamp, TimestampLocalTZ, TimestampTZ:
		return 29
	default:
		return 0
	}
}

var parenArgs = regexp.MustCompile(`^([a-z_ ]+?)\s*\(\s*(\d+)\s*(?:,\s*(\d+)\s*)?\)$`)

// ParseTypeName parses a type name as written in configuration files or
// reported by database drivers: "BIGINT", "varchar(255)", "decimal(10,2)",
// "timestamp with time zone", "int8" and similar spellings.
func ParseTypeName(s string) (SQLType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.Join(strings.Fields(name), " ")

	var p1, p2 int
	if m := parenArgs.FindStringSubmatch(name); m != nil {
		name = m[1]
		p1, _ = strconv.Atoi(m[2])
		if m[3] != "" {
			p2, _ = strconv.Atoi(m[3])
		}
	}

	var n TypeName
	switch name {
	case "null", "unknown":
		n = Null
	case "boolean", "bool":
		n = Boolean
	case "tinyint", "int1":
		n = TinyInt
	case "smallint", "int2", "smallserial":
		n = SmallInt
	case "integer", "int", "int4", "mediumint", "serial":
		n = Integer
	case "bigint", "int8", "bigserial", "long":
		n = BigInt
	case "real", "float", "float4":
		n = Real
	case "double", "double precision", "float8":
		n = Double
	case "decimal", "numeric", "number":
		return DecimalOf(p1, p2), nil
	case "varchar", "character varying", "text", "string", "nvarchar", "clob", "tinytext", "mediumtext", "longtext", "json", "jsonb", "uuid":
		n = Varchar
	case "char", "character", "bpchar", "nchar":
		n = Char
	case "varbinary", "binary", "blob", "bytea", "tinyblob", "mediumblob", "longblob":
		n = Varbinary
	case "date":
		n = Date
	case "time", "time without time zone":
		n = Time
	case "timestamp", "timestamp without time zone", "datetime":
		n = Timestamp
	case "timestamp with local time zone", "timestamp_with_local_time_zone", "timestamptz":
		n = TimestampLocalTZ
	case "timestamp with time zone", "timestamp_with_time_zone":
		n = TimestampTZ
	case "interval", "interval day to second", "interval_day_time":
		n = IntervalDayTime
	case "interval year to month", "interval_year_month":
		n = IntervalYearMonth
	case "any", "object":
		n = Any
	default:
		return SQLType{}, unsupported(s)
	}
	return NullableOf(n), nil
}

// EncodeWire renders a native value as the JSON value the client protocol
// expects for type t: temporal values as strings, varbinary as base64,
// decimals as fixed-point strings and non-finite floats as their names.
func EncodeWire(t SQLType, v any) (any, error) {
	if IsNull(v) {
		return nil, nil
	}
	switch t.Name {
	case Real, Double:
		f, err := toFloat(t, v)
		if err != nil {
			return nil, err
		}
		switch {
		case math.IsInf(f, 1):
			return "Infinity", nil
		case math.IsInf(f, -1):
			return "-Infinity", nil
		}
		return f, nil
	case Varbinary:
		b, err := toBytes(t, v)
		if err != nil {
			return nil, err
		}
		return base64.StdEncoding.EncodeToString(b), nil
	case Date:
		ts, err := toTime(t, v, time.UTC)
		if err != nil {
			return nil, err
		}
		return ts.Format("2006-01-02"), nil
	case Time:
		ts, err := toTimeOfDay(t, v)
		if err != nil {
			return nil, err
		}
		return ts.Format("15:04:05.000"), nil
	case Timestamp:
		ts, err := toTime(t, v, time.UTC)
		if err != nil {
			return nil, err
		}
		return ts.Format("2006-01-02 15:04:05.000"), nil
	case TimestampLocalTZ, TimestampTZ:
		ts, err := toTime(t, v, time.UTC)
		if err != nil {
			return nil, err
		}
		if t.Name == TimestampLocalTZ {
			ts = ts.UTC()
		}
		return ts.Format("2006-01-02 15:04:05.000 ") + ts.Location().String(), nil
	default:
		return FromNativeValue(t, v)
	}
}
