package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"unicode/utf8"

	"github.com/roach88/dirstore/internal/value"
)

// Encoding names the wire format recorded in record metadata.
const Encoding = "json"

// Encode produces the tagged wire form of v and returns its top-level kind.
//
// Output is deterministic:
//  1. Dict keys sorted by UTF-16 code units (RFC 8785 order)
//  2. Set and FrozenSet members sorted by their encoded bytes
//  3. No HTML escaping
//  4. No insignificant whitespace
func Encode(v value.Value) ([]byte, value.Kind, error) {
	if v == nil {
		return nil, "", codecErr("$", "", "nil value", nil)
	}
	var buf bytes.Buffer
	if err := encodeNode(&buf, v, "$"); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), v.Kind(), nil
}

// encodeNode writes {"type":<kind>,"value":<payload>}.
func encodeNode(buf *bytes.Buffer, v value.Value, path string) error {
	if v == nil {
		return codecErr(path, "", "nil value", nil)
	}
	buf.WriteString(`{"type":"`)
	buf.WriteString(string(v.Kind()))
	buf.WriteString(`","value":`)
	if err := encodePayload(buf, v, path); err != nil {
		return err
	}
	buf.WriteByte('}')
	return nil
}

func encodePayload(buf *bytes.Buffer, v value.Value, path string) error {
	switch val := v.(type) {
	case value.Null:
		buf.WriteString("null")
	case value.Bool:
		buf.WriteString(strconv.FormatBool(bool(val)))
	case value.Int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case value.Float:
		f := float64(val)
		switch {
		case math.IsNaN(f):
			buf.WriteString(`"nan"`)
		case math.IsInf(f, 1):
			buf.WriteString(`"inf"`)
		case math.IsInf(f, -1):
			buf.WriteString(`"-inf"`)
		default:
			buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
		}
	case value.String:
		return writeString(buf, string(val), path, value.KindString)
	case value.Bytes:
		return writeString(buf, base64.StdEncoding.EncodeToString(val), path, value.KindBytes)
	case value.List:
		return encodeSeq(buf, val, path)
	case value.Tuple:
		return encodeSeq(buf, val, path)
	case value.Set:
		return encodeMembers(buf, val.Members(), path, value.KindSet)
	case value.FrozenSet:
		return encodeMembers(buf, val.Members(), path, value.KindFrozenSet)
	case value.Dict:
		return encodeDict(buf, val, path)
	case value.Decimal:
		return writeString(buf, val.String(), path, value.KindDecimal)
	case value.Date:
		if err := val.Validate(); err != nil {
			return codecErr(path, value.KindDate, "date cannot be stored", err)
		}
		return writeString(buf, val.String(), path, value.KindDate)
	case value.DateTime:
		if err := val.Validate(); err != nil {
			return codecErr(path, value.KindDateTime, "datetime cannot be stored", err)
		}
		return writeString(buf, val.String(), path, value.KindDateTime)
	case value.Time:
		if err := val.Validate(); err != nil {
			return codecErr(path, value.KindTime, "time cannot be stored", err)
		}
		return writeString(buf, val.String(), path, value.KindTime)
	default:
		return codecErr(path, "", fmt.Sprintf("unsupported value type %T", v), nil)
	}
	return nil
}

func encodeSeq(buf *bytes.Buffer, vals []value.Value, path string) error {
	buf.WriteByte('[')
	for i, elem := range vals {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeNode(buf, elem, fmt.Sprintf("%s[%d]", path, i)); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

// encodeMembers encodes each member separately so the output can be sorted
// by encoded bytes, independent of how the set was built.
func encodeMembers(buf *bytes.Buffer, vals []value.Value, path string, kind value.Kind) error {
	encoded := make([][]byte, len(vals))
	for i, elem := range vals {
		elemPath := fmt.Sprintf("%s[%d]", path, i)
		if !value.Hashable(elem) {
			return codecErr(elemPath, kind, fmt.Sprintf("unhashable member of kind %s", elem.Kind()), nil)
		}
		var eb bytes.Buffer
		if err := encodeNode(&eb, elem, elemPath); err != nil {
			return err
		}
		encoded[i] = eb.Bytes()
	}
	slices.SortFunc(encoded, bytes.Compare)

	buf.WriteByte('[')
	for i, eb := range encoded {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(eb)
	}
	buf.WriteByte(']')
	return nil
}

func encodeDict(buf *bytes.Buffer, d value.Dict, path string) error {
	buf.WriteByte('{')
	for i, k := range d.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(buf, k, path, value.KindDict); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := encodeNode(buf, d[k], fmt.Sprintf("%s[%q]", path, k)); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

// writeString writes a JSON string without HTML escaping. Invalid UTF-8 is
// rejected rather than silently replaced with U+FFFD.
func writeString(buf *bytes.Buffer, s string, path string, kind value.Kind) error {
	if !utf8.ValidString(s) {
		return codecErr(path, kind, "string is not valid UTF-8 (store it as bytes)", nil)
	}

	var sb bytes.Buffer
	enc := json.NewEncoder(&sb)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return codecErr(path, kind, "encode string", err)
	}

	// json.Encoder adds trailing newline, remove it
	buf.Write(bytes.TrimSuffix(sb.Bytes(), []byte("\n")))
	return nil
}
