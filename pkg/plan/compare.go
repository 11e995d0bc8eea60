package plan

import (
	"bytes"
	"cmp"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/txn2/sqlgate/pkg/types"
)

type number struct {
	i     int64
	f     float64
	isInt bool
}

func (n number) float() float64 {
	if n.isInt {
		return float64(n.i)
	}
	return n.f
}

func toNumber(v any) (number, bool) {
	switch x := v.(type) {
	case int:
		return number{i: int64(x), isInt: true}, true
	case int8:
		return number{i: int64(x), isInt: true}, true
	case int16:
		return number{i: int64(x), isInt: true}, true
	case int32:
		return number{i: int64(x), isInt: true}, true
	case int64:
		return number{i: x, isInt: true}, true
	case uint8:
		return number{i: int64(x), isInt: true}, true
	case uint16:
		return number{i: int64(x), isInt: true}, true
	case uint32:
		return number{i: int64(x), isInt: true}, true
	case uint64:
		if x > math.MaxInt64 {
			return number{f: float64(x)}, true
		}
		return number{i: int64(x), isInt: true}, true
	case float32:
		return number{f: float64(x)}, true
	case float64:
		return number{f: x}, true
	case *big.Rat:
		f, _ := x.Float64()
		return number{f: f}, true
	default:
		return number{}, false
	}
}

// Compare orders two non-null native values. Numbers of any width compare
// by value; strings, booleans, byte slices, times and durations compare
// with their own kind.
func Compare(a, b any) (int, error) {
	if na, ok := toNumber(a); ok {
		nb, ok := toNumber(b)
		if !ok {
			return 0, mismatch(a, b)
		}
		if na.isInt && nb.isInt {
			return cmp.Compare(na.i, nb.i), nil
		}
		return cmp.Compare(na.float(), nb.float()), nil
	}

	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), nil
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0, nil
			case !x:
				return -1, nil
			default:
				return 1, nil
			}
		}
	case []byte:
		if y, ok := b.([]byte); ok {
			return bytes.Compare(x, y), nil
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), nil
		}
	case time.Duration:
		if y, ok := b.(time.Duration); ok {
			return cmp.Compare(x, y), nil
		}
	}
	return 0, mismatch(a, b)
}

// CompareNullsLast is Compare with NULL ordered after every value.
func CompareNullsLast(a, b any) (int, error) {
	an, bn := types.IsNull(a), types.IsNull(b)
	switch {
	case an && bn:
		return 0, nil
	case an:
		return 1, nil
	case bn:
		return -1, nil
	}
	return Compare(a, b)
}

func mismatch(a, b any) error {
	return fmt.Errorf("%w: cannot compare %T with %T", ErrTypeMismatch, a, b)
}
