package types

// family groups native kinds for the comparability check.
type family int

const (
	familyNone family = iota
	familySigned
	familyUnsigned
	familyFloat
	familyDecimal
	familyText
	familyBool
	familyBytes
	familyDate
	familyTime
	familyNaiveTimestamp
	familyUTCTimestamp
	familyZonedTimestamp
	familyTimedelta
	familyNull
)

func familyOf(n NativeType) family {
	switch {
	case n.Kind.IsSigned():
		return familySigned
	case n.Kind.IsUnsigned():
		return familyUnsigned
	case n.Kind.IsFloat():
		return familyFloat
	}
	switch n.Kind {
	case KindDecimal:
		return familyDecimal
	case KindString, KindObject:
		return familyText
	case KindBool:
		return familyBool
	case KindBytes:
		return familyBytes
	case KindDate:
		return familyDate
	case KindTime:
		return familyTime
	case KindDatetime:
		switch n.Zone {
		case "":
			return familyNaiveTimestamp
		case "UTC":
			return familyUTCTimestamp
		default:
			return familyZonedTimestamp
		}
	case KindTimedelta:
		return familyTimedelta
	case KindNull:
		return familyNull
	default:
		return familyNone
	}
}

func isNumericFamily(f family) bool {
	return f == familySigned || f == familyUnsigned || f == familyFloat || f == familyDecimal
}

// SimilarType reports whether columns of types a and b can be compared or
// joined without an explicit cast.
//
// Integers widen within their signedness family; signed and unsigned
// integers are never similar. Any integer is similar to any float (precision
// loss is the caller's concern). Naive, UTC and zoned timestamps are three
// distinct families. The relation is reflexive and symmetric but not
// transitive: int32~float64 and float64~uint32 hold while int32~uint32 does not.
func SimilarType(a, b NativeType) bool {
	fa, fb := familyOf(a), familyOf(b)
	if fa == familyNone || fb == familyNone {
		return false
	}
	if fa == familyNull || fb == familyNull {
		return true
	}
	if fa == fb {
		return true
	}
	if !isNumericFamily(fa) || !isNumericFamily(fb) {
		return false
	}
	// Mixed signedness is the only numeric pair that does not compare.
	return !(fa == familySigned && fb == familyUnsigned) &&
		!(fa == familyUnsigned && fb == familySigned)
}

// SimilarSQLType applies SimilarType to SQL types.
func SimilarSQLType(a, b SQLType) bool {
	na, err := ToNativeType(a)
	if err != nil {
		return false
	}
	nb, err := ToNativeType(b)
	if err != nil {
		return false
	}
	if a.Name == Any || b.Name == Any {
		return true
	}
	return SimilarType(na, nb)
}
