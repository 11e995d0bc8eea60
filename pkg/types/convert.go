package types

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// IntervalScale is the number of microseconds in one INTERVAL_DAY_TIME unit.
// INTERVAL_DAY_TIME values travel as integer milliseconds.
const IntervalScale = 1000

const maxIntervalUnits = math.MaxInt64 / (IntervalScale * int64(time.Microsecond))

// ToSQLType maps a native type onto the SQL taxonomy. Kinds that can hold a
// null sentinel (floats via NaN, nullable integers via NA, object-like and
// temporal kinds via Missing) map to the nullable variant.
func ToSQLType(n NativeType) (SQLType, error) {
	var t SQLType
	switch n.Kind {
	case KindNull:
		return NullableOf(Null), nil
	case KindBool:
		t = Of(Boolean)
	case KindInt8, KindUint8:
		t = Of(TinyInt)
	case KindInt16, KindUint16:
		t = Of(SmallInt)
	case KindInt32, KindUint32:
		t = Of(Integer)
	case KindInt64, KindUint64:
		t = Of(BigInt)
	case KindFloat32:
		return NullableOf(Real), nil
	case KindFloat64:
		return NullableOf(Double), nil
	case KindDecimal:
		return DecimalOf(n.Precision, n.Scale), nil
	case KindString, KindObject:
		return NullableOf(Varchar), nil
	case KindBytes:
		return NullableOf(Varbinary), nil
	case KindDate:
		return NullableOf(Date), nil
	case KindTime:
		return NullableOf(Time), nil
	case KindDatetime:
		switch n.Zone {
		case "":
			return NullableOf(Timestamp), nil
		case "UTC":
			return NullableOf(TimestampLocalTZ), nil
		default:
			return SQLType{Name: TimestampTZ, Nullable: true, Zone: n.Zone}, nil
		}
	case KindTimedelta:
		return NullableOf(IntervalDayTime), nil
	default:
		return SQLType{}, unsupported(n.String())
	}
	t.Unsigned = n.Kind.IsUnsigned()
	t.Nullable = n.Nullable
	return t, nil
}

// ToNativeType is the inverse of ToSQLType.
func ToNativeType(t SQLType) (NativeType, error) {
	var k Kind
	switch t.Name {
	case Null:
		return Native(KindNull), nil
	case Boolean:
		k = KindBool
	case TinyInt:
		k = pick(t.Unsigned, KindUint8, KindInt8)
	case SmallInt:
		k = pick(t.Unsigned, KindUint16, KindInt16)
	case Integer:
		k = pick(t.Unsigned, KindUint32, KindInt32)
	case BigInt:
		k = pick(t.Unsigned, KindUint64, KindInt64)
	case Real:
		return Native(KindFloat32), nil
	case Double:
		return Native(KindFloat64), nil
	case Decimal:
		return NativeType{Kind: KindDecimal, Precision: t.Precision, Scale: t.Scale}, nil
	case Varchar, Char:
		return Native(KindString), nil
	case Varbinary:
		return Native(KindBytes), nil
	case Date:
		return Native(KindDate), nil
	case Time:
		return Native(KindTime), nil
	case Timestamp:
		return Native(KindDatetime), nil
	case TimestampLocalTZ:
		return DatetimeIn("UTC"), nil
	case TimestampTZ:
		zone := t.Zone
		if zone == "" {
			zone = "UTC"
		}
		return DatetimeIn(zone), nil
	case IntervalDayTime:
		return Native(KindTimedelta), nil
	case IntervalYearMonth:
		k = KindInt64
	case Any:
		return Native(KindObject), nil
	default:
		return NativeType{}, unsupported(t.String())
	}
	return NativeType{Kind: k, Nullable: t.Nullable}, nil
}

func pick(cond bool, a, b Kind) Kind {
	if cond {
		return a
	}
	return b
}

// ToNativeValue converts an SQL-level value into the native representation
// for type t. Null inputs become the canonical sentinel for the target kind.
func ToNativeValue(t SQLType, v any) (any, error) {
	if IsNull(v) {
		n, err := ToNativeType(t)
		if err != nil {
			return nil, err
		}
		return NullFor(n), nil
	}

	switch t.Name {
	case Null:
		return Missing, nil
	case Boolean:
		return toBool(t, v)
	case TinyInt:
		if t.Unsigned {
			u, err := toUintRange(t, v, math.MaxUint8)
			return uint8(u), err
		}
		i, err := toIntRange(t, v, math.MinInt8, math.MaxInt8)
		return int8(i), err
	case SmallInt:
		if t.Unsigned {
			u, err := toUintRange(t, v, math.MaxUint16)
			return uint16(u), err
		}
		i, err := toIntRange(t, v, math.MinInt16, math.MaxInt16)
		return int16(i), err
	case Integer:
		if t.Unsigned {
			u, err := toUintRange(t, v, math.MaxUint32)
			return uint32(u), err
		}
		i, err := toIntRange(t, v, math.MinInt32, math.MaxInt32)
		return int32(i), err
	case BigInt:
		if t.Unsigned {
			return toUintRange(t, v, math.MaxUint64)
		}
		return toIntRange(t, v, math.MinInt64, math.MaxInt64)
	case Real:
		f, err := toFloat(t, v)
		return float32(f), err
	case Double:
		return toFloat(t, v)
	case Decimal:
		return toDecimal(t, v)
	case Varchar, Char:
		return toString(v), nil
	case Varbinary:
		return toBytes(t, v)
	case Date:
		ts, err := toTime(t, v, time.UTC)
		if err != nil {
			return nil, err
		}
		y, m, d := ts.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	case Time:
		return toTimeOfDay(t, v)
	case Timestamp:
		return toTime(t, v, time.UTC)
	case TimestampLocalTZ:
		ts, err := toTime(t, v, time.UTC)
		return ts.UTC(), err
	case TimestampTZ:
		loc, err := zoneOf(t)
		if err != nil {
			return nil, err
		}
		ts, err := toTime(t, v, loc)
		return ts.In(loc), err
	case IntervalDayTime:
		return toInterval(t, v)
	case IntervalYearMonth:
		return toIntRange(t, v, math.MinInt64, math.MaxInt64)
	case Any:
		return v, nil
	default:
		return nil, unsupported(t.String())
	}
}

// FromNativeValue is the inverse of ToNativeValue: it turns a native value
// back into its SQL-level form. Nulls become nil, integers int64, floats
// float64, decimals their fixed-point string and intervals integer
// milliseconds.
func FromNativeValue(t SQLType, v any) (any, error) {
	if IsNull(v) {
		return nil, nil
	}
	switch t.Name {
	case Null:
		return nil, nil
	case Boolean:
		return toBool(t, v)
	case TinyInt, SmallInt, Integer, BigInt, IntervalYearMonth:
		if t.Unsigned {
			u, err := toUintRange(t, v, math.MaxUint64)
			if err != nil {
				return nil, err
			}
			if u > math.MaxInt64 {
				return strconv.FormatUint(u, 10), nil
			}
			return int64(u), nil
		}
		return toIntRange(t, v, math.MinInt64, math.MaxInt64)
	case Real, Double:
		return toFloat(t, v)
	case Decimal:
		r, err := toDecimal(t, v)
		if err != nil {
			return nil, err
		}
		return r.FloatString(decimalScale(t, r)), nil
	case Varchar, Char:
		return toString(v), nil
	case Varbinary:
		return toBytes(t, v)
	case Date, Timestamp, TimestampLocalTZ, TimestampTZ:
		return toTime(t, v, time.UTC)
	case Time:
		return toTimeOfDay(t, v)
	case IntervalDayTime:
		d, err := toInterval(t, v)
		if err != nil {
			return nil, err
		}
		return int64(d / (IntervalScale * time.Microsecond)), nil
	case Any:
		return v, nil
	default:
		return nil, unsupported(t.String())
	}
}

func toBool(t SQLType, v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return false, conversion(t, v, err)
		}
		return b, nil
	default:
		i, err := toIntRange(t, v, math.MinInt64, math.MaxInt64)
		if err != nil {
			return false, err
		}
		return i != 0, nil
	}
}

func toIntRange(t SQLType, v any, lo, hi int64) (int64, error) {
	var i int64
	switch x := v.(type) {
	case int:
		i = int64(x)
	case int8:
		i = int64(x)
	case int16:
		i = int64(x)
	case int32:
		i = int64(x)
	case int64:
		i = x
	case uint:
		if uint64(x) > math.MaxInt64 {
			return 0, conversion(t, v, errOutOfRange)
		}
		i = int64(x)
	case uint8:
		i = int64(x)
	case uint16:
		i = int64(x)
	case uint32:
		i = int64(x)
	case uint64:
		if x > math.MaxInt64 {
			return 0, conversion(t, v, errOutOfRange)
		}
		i = int64(x)
	case float32:
		return toIntRange(t, float64(x), lo, hi)
	case float64:
		if x != math.Trunc(x) {
			return 0, conversion(t, v, errFraction)
		}
		if x < math.MinInt64 || x >= math.MaxInt64 {
			return 0, conversion(t, v, errOutOfRange)
		}
		i = int64(x)
	case bool:
		if x {
			i = 1
		}
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return 0, conversion(t, v, err)
		}
		i = n
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, conversion(t, v, err)
		}
		i = n
	case time.Duration:
		i = int64(x)
	default:
		return 0, conversion(t, v, errNotNumeric)
	}
	if i < lo || i > hi {
		return 0, conversion(t, v, errOutOfRange)
	}
	return i, nil
}

func toUintRange(t SQLType, v any, hi uint64) (uint64, error) {
	var u uint64
	switch x := v.(type) {
	case uint:
		u = uint64(x)
	case uint8:
		u = uint64(x)
	case uint16:
		u = uint64(x)
	case uint32:
		u = uint64(x)
	case uint64:
		u = x
	case string:
		n, err := strconv.ParseUint(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, conversion(t, v, err)
		}
		u = n
	default:
		i, err := toIntRange(t, v, 0, math.MaxInt64)
		if err != nil {
			return 0, err
		}
		u = uint64(i)
	}
	if u > hi {
		return 0, conversion(t, v, errOutOfRange)
	}
	return u, nil
}

func toFloat(t SQLType, v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, conversion(t, v, err)
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, conversion(t, v, err)
		}
		return f, nil
	case *big.Rat:
		f, _ := x.Float64()
		return f, nil
	case uint64:
		return float64(x), nil
	default:
		i, err := toIntRange(t, v, math.MinInt64, math.MaxInt64)
		if err != nil {
			return 0, err
		}
		return float64(i), nil
	}
}

func toDecimal(t SQLType, v any) (*big.Rat, error) {
	switch x := v.(type) {
	case *big.Rat:
		return x, nil
	case string:
		r, ok := new(big.Rat).SetString(strings.TrimSpace(x))
		if !ok {
			return nil, conversion(t, v, errNotNumeric)
		}
		return r, nil
	case json.Number:
		return toDecimal(t, x.String())
	case float64:
		r, ok := new(big.Rat).SetString(strconv.FormatFloat(x, 'g', -1, 64))
		if !ok {
			return nil, conversion(t, v, errNotNumeric)
		}
		return r, nil
	case float32:
		r, ok := new(big.Rat).SetString(strconv.FormatFloat(float64(x), 'g', -1, 32))
		if !ok {
			return nil, conversion(t, v, errNotNumeric)
		}
		return r, nil
	default:
		i, err := toIntRange(t, v, math.MinInt64, math.MaxInt64)
		if err != nil {
			return nil, err
		}
		return new(big.Rat).SetInt64(i), nil
	}
}

// maxDecimalScale bounds the digits rendered for an unscaled decimal whose
// value has no finite decimal expansion.
const maxDecimalScale = 38

// decimalScale is the declared scale of t, or for a decimal declared without
// precision the number of digits that renders r exactly.
func decimalScale(t SQLType, r *big.Rat) int {
	if t.Precision > 0 {
		return t.Scale
	}
	n, exact := r.FloatPrec()
	if !exact || n > maxDecimalScale {
		return maxDecimalScale
	}
	return n
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}

func toBytes(t SQLType, v any) ([]byte, error) {
	switch x := v.(type) {
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	default:
		return nil, conversion(t, v, fmt.Errorf("expected bytes"))
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

func toTime(t SQLType, v any, loc *time.Location) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range timestampLayouts {
			if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
				return ts, nil
			}
		}
		return time.Time{}, conversion(t, v, fmt.Errorf("unrecognized timestamp layout"))
	default:
		// Integer timestamps are nanoseconds since the epoch.
		ns, err := toIntRange(t, v, math.MinInt64, math.MaxInt64)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(0, ns).In(loc), nil
	}
}

func toTimeOfDay(t SQLType, v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return time.Date(0, 1, 1, x.Hour(), x.Minute(), x.Second(), x.Nanosecond(), time.UTC), nil
	case string:
		ts, err := time.Parse("15:04:05.999999999", strings.TrimSpace(x))
		if err != nil {
			return time.Time{}, conversion(t, v, err)
		}
		return ts, nil
	default:
		return time.Time{}, conversion(t, v, fmt.Errorf("expected time of day"))
	}
}

func toInterval(t SQLType, v any) (time.Duration, error) {
	if d, ok := v.(time.Duration); ok {
		return d, nil
	}
	units, err := toIntRange(t, v, math.MinInt64, math.MaxInt64)
	if err != nil {
		return 0, err
	}
	if units > maxIntervalUnits || units < -maxIntervalUnits {
		return 0, conversion(t, v, errOutOfRange)
	}
	return time.Duration(units) * IntervalScale * time.Microsecond, nil
}

func zoneOf(t SQLType) (*time.Location, error) {
	if t.Zone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(t.Zone)
	if err != nil {
		return nil, conversion(t, t.Zone, err)
	}
	return loc, nil
}
