package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/roach88/dirstore/internal/value"
)

// wireNode is the tagged envelope around every encoded value.
type wireNode struct {
	Type  string
	Value json.RawMessage
}

// Decode reconstructs a value whose top-level kind must equal want.
// A mismatch means the data does not belong to the metadata describing it.
func Decode(data []byte, want value.Kind) (value.Value, error) {
	v, err := DecodeAny(data)
	if err != nil {
		return nil, err
	}
	if v.Kind() != want {
		return nil, codecErr("$", want, fmt.Sprintf("top-level kind %s does not match expected %s", v.Kind(), want), nil)
	}
	return v, nil
}

// DecodeAny reconstructs a value of whatever kind the data declares.
func DecodeAny(data []byte) (value.Value, error) {
	if !json.Valid(data) {
		return nil, codecErr("$", "", "malformed JSON", nil)
	}
	return decodeNode(data, "$")
}

// Peek returns the top-level discriminator without decoding the payload.
func Peek(data []byte) (value.Kind, error) {
	node, err := parseNode(data, "$")
	if err != nil {
		return "", err
	}
	kind, err := value.ParseKind(node.Type)
	if err != nil {
		return "", codecErr("$", "", "unrecognized discriminator", err)
	}
	return kind, nil
}

func parseNode(data []byte, path string) (wireNode, error) {
	var fields map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&fields); err != nil {
		return wireNode{}, codecErr(path, "", "malformed node", err)
	}
	if dec.More() {
		return wireNode{}, codecErr(path, "", "trailing data after node", nil)
	}
	if fields == nil {
		return wireNode{}, codecErr(path, "", "node must be an object", nil)
	}
	// Field names are matched exactly; encoding/json would also accept
	// "TYPE" or "Value".
	for name := range fields {
		if name != "type" && name != "value" {
			return wireNode{}, codecErr(path, "", fmt.Sprintf("unexpected field %q", name), nil)
		}
	}

	var node wireNode
	if raw, ok := fields["type"]; ok {
		if err := json.Unmarshal(raw, &node.Type); err != nil {
			return wireNode{}, codecErr(path, "", "discriminator must be a string", err)
		}
	}
	if node.Type == "" {
		return wireNode{}, codecErr(path, "", "missing discriminator", nil)
	}
	raw, ok := fields["value"]
	if !ok {
		return wireNode{}, codecErr(path, "", "missing value", nil)
	}
	node.Value = raw
	return node, nil
}

func decodeNode(data []byte, path string) (value.Value, error) {
	node, err := parseNode(data, path)
	if err != nil {
		return nil, err
	}
	kind, err := value.ParseKind(node.Type)
	if err != nil {
		return nil, codecErr(path, "", "unrecognized discriminator", err)
	}
	return decodePayload(bytes.TrimSpace(node.Value), kind, path)
}

func decodePayload(raw []byte, kind value.Kind, path string) (value.Value, error) {
	if kind == value.KindNull {
		if !isNull(raw) {
			return nil, codecErr(path, kind, "payload must be null", nil)
		}
		return value.Null{}, nil
	}
	if isNull(raw) {
		return nil, codecErr(path, kind, "unexpected null payload", nil)
	}

	switch kind {
	case value.KindBool:
		switch string(raw) {
		case "true":
			return value.Bool(true), nil
		case "false":
			return value.Bool(false), nil
		}
		return nil, codecErr(path, kind, "payload must be a boolean", nil)

	case value.KindInt:
		n, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return nil, codecErr(path, kind, "payload must be an integer", err)
		}
		return value.Int(n), nil

	case value.KindFloat:
		return decodeFloat(raw, path)

	case value.KindString:
		s, err := decodeString(raw, path, kind)
		if err != nil {
			return nil, err
		}
		return value.String(s), nil

	case value.KindBytes:
		s, err := decodeString(raw, path, kind)
		if err != nil {
			return nil, err
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, codecErr(path, kind, "payload must be base64", err)
		}
		return value.Bytes(b), nil

	case value.KindList, value.KindTuple, value.KindSet, value.KindFrozenSet:
		elems, err := decodeSeq(raw, path, kind)
		if err != nil {
			return nil, err
		}
		switch kind {
		case value.KindList:
			return value.List(elems), nil
		case value.KindTuple:
			return value.Tuple(elems), nil
		case value.KindSet:
			return value.NewSet(elems...), nil
		default:
			return value.NewFrozenSet(elems...), nil
		}

	case value.KindDict:
		return decodeDict(raw, path)

	case value.KindDecimal, value.KindDate, value.KindDateTime, value.KindTime:
		s, err := decodeString(raw, path, kind)
		if err != nil {
			return nil, err
		}
		v, err := parseText(s, kind)
		if err != nil {
			return nil, codecErr(path, kind, "invalid text form", err)
		}
		return v, nil

	default:
		return nil, codecErr(path, kind, "unhandled discriminator", nil)
	}
}

func decodeFloat(raw []byte, path string) (value.Value, error) {
	if raw[0] == '"' {
		s, err := decodeString(raw, path, value.KindFloat)
		if err != nil {
			return nil, err
		}
		switch s {
		case "nan":
			return value.Float(math.NaN()), nil
		case "inf":
			return value.Float(math.Inf(1)), nil
		case "-inf":
			return value.Float(math.Inf(-1)), nil
		}
		return nil, codecErr(path, value.KindFloat, fmt.Sprintf("unknown float literal %q", s), nil)
	}
	if raw[0] != '-' && (raw[0] < '0' || raw[0] > '9') {
		return nil, codecErr(path, value.KindFloat, "payload must be a number", nil)
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return nil, codecErr(path, value.KindFloat, "payload must be a number", err)
	}
	return value.Float(f), nil
}

func decodeString(raw []byte, path string, kind value.Kind) (string, error) {
	if raw[0] != '"' {
		return "", codecErr(path, kind, "payload must be a string", nil)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", codecErr(path, kind, "payload must be a string", err)
	}
	return s, nil
}

func decodeSeq(raw []byte, path string, kind value.Kind) ([]value.Value, error) {
	if raw[0] != '[' {
		return nil, codecErr(path, kind, "payload must be a sequence", nil)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, codecErr(path, kind, "payload must be a sequence", err)
	}

	elems := make([]value.Value, len(items))
	for i, item := range items {
		elemPath := fmt.Sprintf("%s[%d]", path, i)
		elem, err := decodeNode(item, elemPath)
		if err != nil {
			return nil, err
		}
		if (kind == value.KindSet || kind == value.KindFrozenSet) && !value.Hashable(elem) {
			return nil, codecErr(elemPath, kind, fmt.Sprintf("unhashable member of kind %s", elem.Kind()), nil)
		}
		elems[i] = elem
	}
	return elems, nil
}

func decodeDict(raw []byte, path string) (value.Value, error) {
	if raw[0] != '{' {
		return nil, codecErr(path, value.KindDict, "payload must be an object", nil)
	}
	var items map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, codecErr(path, value.KindDict, "payload must be an object", err)
	}

	d := make(value.Dict, len(items))
	for k, item := range items {
		elem, err := decodeNode(item, fmt.Sprintf("%s[%q]", path, k))
		if err != nil {
			return nil, err
		}
		d[k] = elem
	}
	return d, nil
}

func parseText(s string, kind value.Kind) (value.Value, error) {
	switch kind {
	case value.KindDecimal:
		return value.NewDecimal(s)
	case value.KindDate:
		return value.ParseDate(s)
	case value.KindDateTime:
		return value.ParseDateTime(s)
	default:
		return value.ParseTime(s)
	}
}

func isNull(raw []byte) bool {
	return string(raw) == "null"
}
