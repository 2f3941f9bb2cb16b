package value

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
)

// FromGo converts a native Go value into a Value.
// Slices become List and string-keyed maps become Dict; use As to reach
// Tuple, Set and the text-backed scalar kinds.
func FromGo(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case uint:
		if uint64(val) > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d overflows int64", val)
		}
		return Int(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d overflows int64", val)
		}
		return Int(val), nil
	case float32:
		return Float(val), nil
	case float64:
		return Float(val), nil
	case json.Number:
		return fromNumber(val)
	case string:
		return String(val), nil
	case []byte:
		return Bytes(bytes.Clone(val)), nil
	case time.Time:
		return DateTime{Time: val}, nil
	case *apd.Decimal:
		return DecimalFromApd(val), nil
	case []any:
		list := make(List, len(val))
		for i, elem := range val {
			ev, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			list[i] = ev
		}
		return list, nil
	case map[string]any:
		dict := make(Dict, len(val))
		for k, elem := range val {
			ev, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			dict[k] = ev
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// fromNumber keeps integers exact and falls back to Float for anything with
// a fraction or exponent.
func fromNumber(n json.Number) (Value, error) {
	s := string(n)
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			return Int(i), nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("invalid number %s: %w", s, err)
	}
	return Float(f), nil
}

// FromJSON parses plain (untagged) JSON into a Value.
func FromJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after JSON value")
	}
	return FromGo(raw)
}

// ToPlain converts a Value into plain Go data suitable for JSON or YAML
// output. The conversion is lossy: container kinds collapse to slices and
// text-backed scalars become strings.
func ToPlain(v Value) any {
	switch val := v.(type) {
	case Null:
		return nil
	case Bool:
		return bool(val)
	case Int:
		return int64(val)
	case Float:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return formatFloat(f)
		}
		return f
	case String:
		return string(val)
	case Bytes:
		return base64.StdEncoding.EncodeToString(val)
	case List:
		return plainSeq(val)
	case Tuple:
		return plainSeq(val)
	case Set:
		return plainSeq(val.Members())
	case FrozenSet:
		return plainSeq(val.Members())
	case Dict:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToPlain(elem)
		}
		return out
	case Decimal, Date, DateTime, Time:
		return val.(fmt.Stringer).String()
	default:
		return nil
	}
}

func plainSeq(vals []Value) []any {
	out := make([]any, len(vals))
	for i, elem := range vals {
		out[i] = ToPlain(elem)
	}
	return out
}

// As reshapes v into the requested kind where a lossless reading exists:
// sequences convert between List, Tuple, Set and FrozenSet; strings parse
// into Bytes (base64), Decimal, Date, DateTime and Time; Int widens to Float
// and Decimal. Any other combination is an error.
func As(v Value, kind Kind) (Value, error) {
	if v.Kind() == kind {
		return v, nil
	}

	var seq []Value
	switch val := v.(type) {
	case List:
		seq = val
	case Tuple:
		seq = val
	case Set:
		seq = val.Members()
	case FrozenSet:
		seq = val.Members()
	}
	if seq != nil || v.Kind().IsContainer() && v.Kind() != KindDict {
		switch kind {
		case KindList:
			return List(seq), nil
		case KindTuple:
			return Tuple(seq), nil
		case KindSet:
			if err := checkHashable(seq); err != nil {
				return nil, err
			}
			return NewSet(seq...), nil
		case KindFrozenSet:
			if err := checkHashable(seq); err != nil {
				return nil, err
			}
			return NewFrozenSet(seq...), nil
		}
	}

	switch val := v.(type) {
	case String:
		s := string(val)
		switch kind {
		case KindBytes:
			b, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return nil, fmt.Errorf("decode base64: %w", err)
			}
			return Bytes(b), nil
		case KindDecimal:
			return NewDecimal(s)
		case KindDate:
			return ParseDate(s)
		case KindDateTime:
			return ParseDateTime(s)
		case KindTime:
			return ParseTime(s)
		}
	case Int:
		switch kind {
		case KindFloat:
			return Float(val), nil
		case KindDecimal:
			return DecimalFromApd(apd.New(int64(val), 0)), nil
		}
	case Float:
		if kind == KindDecimal {
			var d apd.Decimal
			if _, err := d.SetFloat64(float64(val)); err != nil {
				return nil, fmt.Errorf("convert float to decimal: %w", err)
			}
			return DecimalFromApd(&d), nil
		}
	}

	return nil, fmt.Errorf("cannot convert %s to %s", v.Kind(), kind)
}

func checkHashable(vals []Value) error {
	for i, elem := range vals {
		if !Hashable(elem) {
			return fmt.Errorf("[%d]: unhashable %s cannot be a set member", i, elem.Kind())
		}
	}
	return nil
}
