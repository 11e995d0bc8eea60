package types

import (
	"fmt"
	"math"
	"math/big"
	"time"
)

// Kind is the storage class of a native column, mirroring the dtypes of a
// dataframe engine.
type Kind int

// Native kinds.
const (
	KindInvalid Kind = iota
	KindNull
	KindBool
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	KindDecimal
	KindString
	KindObject
	KindBytes
	KindDate
	KindTime
	KindDatetime
	KindTimedelta
)

var kindNames = map[Kind]string{
	KindInvalid:   "invalid",
	KindNull:      "null",
	KindBool:      "bool",
	KindInt8:      "int8",
	KindInt16:     "int16",
	KindInt32:     "int32",
	KindInt64:     "int64",
	KindUint8:     "uint8",
	KindUint16:    "uint16",
	KindUint32:    "uint32",
	KindUint64:    "uint64",
	KindFloat32:   "float32",
	KindFloat64:   "float64",
	KindDecimal:   "decimal",
	KindString:    "string",
	KindObject:    "object",
	KindBytes:     "bytes",
	KindDate:      "date",
	KindTime:      "time",
	KindDatetime:  "datetime",
	KindTimedelta: "timedelta",
}

// String returns the dtype-style name of k.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsSigned reports whether k is a signed integer kind.
func (k Kind) IsSigned() bool {
	return k >= KindInt8 && k <= KindInt64
}

// IsUnsigned reports whether k is an unsigned integer kind.
func (k Kind) IsUnsigned() bool {
	return k >= KindUint8 && k <= KindUint64
}

// IsInteger reports whether k is any integer kind.
func (k Kind) IsInteger() bool {
	return k.IsSigned() || k.IsUnsigned()
}

// IsFloat reports whether k is a floating point kind.
func (k Kind) IsFloat() bool {
	return k == KindFloat32 || k == KindFloat64
}

// NativeType describes a native column type.
type NativeType struct {
	Kind Kind

	// Nullable marks the nullable extension of integer and boolean kinds,
	// which use NA for missing values.
	Nullable bool

	// Zone applies to KindDatetime: empty for naive timestamps, "UTC" for
	// UTC-pinned ones, otherwise an IANA zone name.
	Zone string

	// Precision and Scale apply to KindDecimal.
	Precision int
	Scale     int
}

// Native returns a NativeType of the given kind.
func Native(k Kind) NativeType {
	return NativeType{Kind: k}
}

// NullableNative returns the nullable extension of kind k.
func NullableNative(k Kind) NativeType {
	return NativeType{Kind: k, Nullable: true}
}

// DatetimeIn returns a datetime type pinned to zone.
func DatetimeIn(zone string) NativeType {
	return NativeType{Kind: KindDatetime, Zone: zone}
}

// String renders the native type.
func (n NativeType) String() string {
	switch {
	case n.Kind == KindDatetime && n.Zone != "":
		return fmt.Sprintf("datetime[%s]", n.Zone)
	case n.Nullable && (n.Kind.IsInteger() || n.Kind == KindBool):
		return "nullable " + n.Kind.String()
	default:
		return n.Kind.String()
	}
}

// missingValue is the dedicated absent-value marker.
type missingValue struct{}

func (missingValue) String() string               { return "<missing>" }
func (missingValue) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

// naValue is the nullable-integer sentinel.
type naValue struct{}

func (naValue) String() string               { return "<NA>" }
func (naValue) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

var (
	// Missing marks an absent value in object, string and temporal columns.
	Missing any = missingValue{}

	// NA marks an absent value in nullable integer and boolean columns.
	NA any = naValue{}
)

// IsNull reports whether v is any of the null sentinels: nil, Missing, NA or a
// floating NaN.
func IsNull(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case missingValue, naValue:
		return true
	case float64:
		return math.IsNaN(x)
	case float32:
		return math.IsNaN(float64(x))
	default:
		return false
	}
}

// NullFor returns the canonical null sentinel for a native type.
func NullFor(n NativeType) any {
	switch {
	case n.Kind.IsFloat():
		if n.Kind == KindFloat32 {
			return float32(math.NaN())
		}
		return math.NaN()
	case n.Kind.IsInteger(), n.Kind == KindBool:
		return NA
	default:
		return Missing
	}
}

// InferNativeType derives the native type of a single Go value. Null
// sentinels map to the nullable variant of the type they stand for.
func InferNativeType(v any) (NativeType, error) {
	switch x := v.(type) {
	case nil, missingValue:
		return Native(KindNull), nil
	case naValue:
		return NullableNative(KindInt64), nil
	case bool:
		return Native(KindBool), nil
	case int8:
		return Native(KindInt8), nil
	case int16:
		return Native(KindInt16), nil
	case int32:
		return Native(KindInt32), nil
	case int, int64:
		return Native(KindInt64), nil
	case uint8:
		return Native(KindUint8), nil
	case uint16:
		return Native(KindUint16), nil
	case uint32:
		return Native(KindUint32), nil
	case uint, uint64:
		return Native(KindUint64), nil
	case float32:
		return Native(KindFloat32), nil
	case float64:
		return Native(KindFloat64), nil
	case *big.Rat:
		return Native(KindDecimal), nil
	case string:
		return Native(KindString), nil
	case []byte:
		return Native(KindBytes), nil
	case time.Duration:
		return Native(KindTimedelta), nil
	case time.Time:
		return datetimeType(x), nil
	default:
		return NativeType{}, unsupported(fmt.Sprintf("%T", v))
	}
}

func datetimeType(t time.Time) NativeType {
	switch loc := t.Location(); {
	case loc == time.UTC:
		return DatetimeIn("UTC")
	case loc == time.Local || loc.String() == "":
		return Native(KindDatetime)
	default:
		return DatetimeIn(loc.String())
	}
}
