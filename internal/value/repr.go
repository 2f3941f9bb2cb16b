package value

import (
	"math"
	"strconv"
	"strings"
)

// Repr renders a debug representation that is unique per distinct value.
// Set membership is keyed on it, so two values with the same Repr are the
// same member.
func Repr(v Value) string {
	var sb strings.Builder
	writeRepr(&sb, v)
	return sb.String()
}

func writeRepr(sb *strings.Builder, v Value) {
	switch val := v.(type) {
	case nil:
		sb.WriteString("<nil>")
	case Null:
		sb.WriteString("None")
	case Bool:
		if val {
			sb.WriteString("True")
		} else {
			sb.WriteString("False")
		}
	case Int:
		sb.WriteString(strconv.FormatInt(int64(val), 10))
	case Float:
		sb.WriteString(formatFloat(float64(val)))
	case String:
		sb.WriteString(strconv.Quote(string(val)))
	case Bytes:
		sb.WriteByte('b')
		sb.WriteString(strconv.Quote(string(val)))
	case List:
		sb.WriteByte('[')
		writeSeq(sb, val)
		sb.WriteByte(']')
	case Tuple:
		sb.WriteByte('(')
		writeSeq(sb, val)
		if len(val) == 1 {
			sb.WriteByte(',')
		}
		sb.WriteByte(')')
	case Dict:
		sb.WriteByte('{')
		for i, k := range val.SortedKeys() {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(strconv.Quote(k))
			sb.WriteString(": ")
			writeRepr(sb, val[k])
		}
		sb.WriteByte('}')
	case Set:
		if val.Len() == 0 {
			sb.WriteString("set()")
			return
		}
		sb.WriteByte('{')
		writeSeq(sb, val.Members())
		sb.WriteByte('}')
	case FrozenSet:
		sb.WriteString("frozenset(")
		if val.Len() > 0 {
			sb.WriteByte('{')
			writeSeq(sb, val.Members())
			sb.WriteByte('}')
		}
		sb.WriteByte(')')
	case Decimal:
		sb.WriteString("Decimal('")
		sb.WriteString(val.String())
		sb.WriteString("')")
	case Date:
		sb.WriteString("date(")
		sb.WriteString(val.String())
		sb.WriteByte(')')
	case DateTime:
		sb.WriteString("datetime(")
		sb.WriteString(val.String())
		sb.WriteByte(')')
	case Time:
		sb.WriteString("time(")
		sb.WriteString(val.String())
		sb.WriteByte(')')
	}
}

func writeSeq(sb *strings.Builder, vals []Value) {
	for i, elem := range vals {
		if i > 0 {
			sb.WriteString(", ")
		}
		writeRepr(sb, elem)
	}
}

// formatFloat always marks the value as a float ("1.0", not "1").
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}
