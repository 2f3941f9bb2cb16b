package value

import (
	"bytes"
	"math"
)

// Equal reports deep equality. Kinds must match exactly: Int(1) is not
// Float(1), and a Tuple is never equal to a List. NaN equals NaN so that
// stored values compare equal to what was written.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}

	switch x := a.(type) {
	case Null:
		return true
	case Bool:
		return x == b.(Bool)
	case Int:
		return x == b.(Int)
	case Float:
		y := b.(Float)
		if math.IsNaN(float64(x)) && math.IsNaN(float64(y)) {
			return true
		}
		return x == y
	case String:
		return x == b.(String)
	case Bytes:
		return bytes.Equal(x, b.(Bytes))
	case List:
		return equalSeq(x, b.(List))
	case Tuple:
		return equalSeq(x, b.(Tuple))
	case Dict:
		y := b.(Dict)
		if len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, ok := y[k]
			if !ok || !Equal(xv, yv) {
				return false
			}
		}
		return true
	case Set:
		return equalMembers(x.m, b.(Set).m)
	case FrozenSet:
		return equalMembers(x.m, b.(FrozenSet).m)
	case Decimal:
		return x.Equal(b.(Decimal))
	case Date:
		return x == b.(Date)
	case DateTime:
		return x.Time.Equal(b.(DateTime).Time)
	case Time:
		return x == b.(Time)
	default:
		return false
	}
}

func equalSeq(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func equalMembers(a, b members) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
