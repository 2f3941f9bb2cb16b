package value

import "fmt"

// Kind names a concrete value type. The names double as wire discriminators
// and as the "type" field of record metadata, so they must never change.
type Kind string

const (
	KindNull      Kind = "NoneType"
	KindBool      Kind = "bool"
	KindInt       Kind = "int"
	KindFloat     Kind = "float"
	KindString    Kind = "str"
	KindBytes     Kind = "bytes"
	KindList      Kind = "list"
	KindDict      Kind = "dict"
	KindTuple     Kind = "tuple"
	KindSet       Kind = "set"
	KindFrozenSet Kind = "frozenset"
	KindDecimal   Kind = "Decimal"
	KindDate      Kind = "date"
	KindDateTime  Kind = "datetime"
	KindTime      Kind = "time"
)

// Kinds lists every supported kind in a stable order.
var Kinds = []Kind{
	KindNull, KindBool, KindInt, KindFloat, KindString, KindBytes,
	KindList, KindDict, KindTuple, KindSet, KindFrozenSet,
	KindDecimal, KindDate, KindDateTime, KindTime,
}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown kind %q", s)
}

// IsContainer reports whether values of this kind hold other values.
func (k Kind) IsContainer() bool {
	switch k {
	case KindList, KindDict, KindTuple, KindSet, KindFrozenSet:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	return string(k)
}
