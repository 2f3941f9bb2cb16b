package codec

import (
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dirstore/internal/value"
)

func roundTrip(t *testing.T, v value.Value) value.Value {
	t.Helper()
	data, kind, err := Encode(v)
	require.NoError(t, err)
	assert.Equal(t, v.Kind(), kind)

	got, err := Decode(data, kind)
	require.NoError(t, err)
	return got
}

func TestRoundTrip_Scalars(t *testing.T) {
	tests := []struct {
		name string
		v    value.Value
	}{
		{"null", value.Null{}},
		{"true", value.Bool(true)},
		{"false", value.Bool(false)},
		{"zero", value.Int(0)},
		{"max int", value.Int(math.MaxInt64)},
		{"min int", value.Int(math.MinInt64)},
		{"float", value.Float(3.14)},
		{"whole float", value.Float(2)},
		{"tiny float", value.Float(5e-324)},
		{"nan", value.Float(math.NaN())},
		{"inf", value.Float(math.Inf(1))},
		{"neg inf", value.Float(math.Inf(-1))},
		{"string", value.String("hello world")},
		{"empty string", value.String("")},
		{"unicode", value.String("labas, pasauli   \U0001F600")},
		{"bytes", value.Bytes("hello world")},
		{"binary bytes", value.Bytes{0x00, 0xff, 0xfe}},
		{"empty bytes", value.Bytes{}},
		{"decimal", value.MustDecimal("19.99")},
		{"decimal trailing zero", value.MustDecimal("19.90")},
		{"date", value.NewDate(2023, time.January, 1)},
		{"datetime", value.NewDateTime(time.Date(2023, 1, 1, 12, 30, 45, 0, time.UTC))},
		{"datetime offset", value.NewDateTime(time.Date(2023, 1, 1, 12, 30, 45, 123456789, time.FixedZone("", 3*3600)))},
		{"time", value.NewTime(12, 30, 45, 0)},
		{"time fraction", value.NewTime(23, 59, 59, 999999000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := roundTrip(t, tt.v)
			assert.True(t, value.Equal(tt.v, got), "want %s, got %s", value.Repr(tt.v), value.Repr(got))
		})
	}
}

func TestRoundTrip_DecimalKeepsText(t *testing.T) {
	got := roundTrip(t, value.MustDecimal("19.90"))
	assert.Equal(t, "19.90", got.(value.Decimal).String())
}

func TestRoundTrip_Containers(t *testing.T) {
	tests := []struct {
		name string
		v    value.Value
	}{
		{"empty list", value.List{}},
		{"empty dict", value.Dict{}},
		{"empty tuple", value.Tuple{}},
		{"empty set", value.NewSet()},
		{"empty frozenset", value.NewFrozenSet()},
		{"list", value.List{value.Int(1), value.Int(2), value.Int(3), value.String("hello")}},
		{"tuple", value.Tuple{value.Int(1), value.Int(2), value.String("hello")}},
		{"set", value.NewSet(value.Int(1), value.Int(2), value.Int(3), value.String("hello"))},
		{"frozenset", value.NewFrozenSet(value.Int(1), value.Int(2), value.Int(3))},
		{"dict", value.Dict{"a": value.Int(1), "b": value.String("hello"), "c": value.List{value.Int(1), value.Int(2)}}},
		{
			"map of lists of tuples",
			value.Dict{
				"pairs": value.List{
					value.Tuple{value.String("a"), value.Int(1)},
					value.Tuple{value.String("b"), value.Tuple{value.Float(2.5), value.Null{}}},
				},
				"empty": value.List{value.Tuple{}},
			},
		},
		{
			"set of distinct look-alikes",
			value.NewSet(value.Int(1), value.Float(1), value.String("1"), value.Bool(true), value.Tuple{value.Int(1)}),
		},
		{
			"frozenset of frozensets",
			value.NewFrozenSet(value.NewFrozenSet(value.Int(1)), value.NewFrozenSet(value.Int(2), value.Int(3))),
		},
		{
			"deep nesting",
			value.Dict{
				"level1": value.Dict{
					"level2": value.Dict{
						"level3": value.List{value.Int(1), value.Int(2), value.Int(3), value.Dict{"nested": value.String("value")}},
					},
				},
				"list_with_dicts": value.List{
					value.Dict{"id": value.Int(1), "name": value.String("Alice")},
					value.Dict{"id": value.Int(2), "name": value.String("Bob")},
				},
				"when": value.List{value.NewDate(2024, time.February, 29), value.MustDecimal("-0.001")},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := roundTrip(t, tt.v)
			assert.True(t, value.Equal(tt.v, got), "want %s, got %s", value.Repr(tt.v), value.Repr(got))
		})
	}
}

func TestRoundTrip_TupleAndListStayDistinct(t *testing.T) {
	elems := []value.Value{value.Int(1), value.Int(2)}

	gotTuple := roundTrip(t, value.Tuple(elems))
	gotList := roundTrip(t, value.List(elems))

	assert.Equal(t, value.KindTuple, gotTuple.Kind())
	assert.Equal(t, value.KindList, gotList.Kind())
	assert.False(t, value.Equal(gotTuple, gotList))
}

func TestRoundTrip_LargeValues(t *testing.T) {
	list := make(value.List, 1000)
	for i := range list {
		list[i] = value.Int(i)
	}
	dict := make(value.Dict, 100)
	for i := 0; i < 100; i++ {
		dict["key_"+strconv.Itoa(i)] = value.String("value_" + strconv.Itoa(i))
	}

	assert.True(t, value.Equal(list, roundTrip(t, list)))
	assert.True(t, value.Equal(dict, roundTrip(t, dict)))
}

func TestEncode_Deterministic(t *testing.T) {
	v := value.Dict{
		"z": value.NewSet(value.String("c"), value.String("a"), value.String("b")),
		"a": value.Int(1),
	}
	first, _, err := Encode(v)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, _, err := Encode(v)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestEncode_RejectsUnhashableSetMember(t *testing.T) {
	_, _, err := Encode(value.NewSet(value.List{value.Int(1)}))
	require.Error(t, err)
	assert.True(t, IsCodecError(err))
}

func TestEncode_RejectsInvalidUTF8(t *testing.T) {
	_, _, err := Encode(value.String([]byte{0xff, 0xfe}))
	require.Error(t, err)
	assert.True(t, IsCodecError(err))

	_, _, err = Encode(value.Dict{string([]byte{0xff}): value.Null{}})
	require.Error(t, err)
}

func TestEncode_RejectsNil(t *testing.T) {
	_, _, err := Encode(nil)
	assert.True(t, IsCodecError(err))

	_, _, err = Encode(value.List{nil})
	assert.True(t, IsCodecError(err))
}

func TestEncode_RejectsTemporalValuesItCannotRead(t *testing.T) {
	tests := []struct {
		name string
		v    value.Value
	}{
		{"datetime year 10000", value.NewDateTime(time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC))},
		{"datetime negative year", value.NewDateTime(time.Date(-1, 1, 1, 0, 0, 0, 0, time.UTC))},
		{"datetime local year past 9999", value.NewDateTime(time.Date(9999, 12, 31, 23, 0, 0, 0, time.UTC).In(time.FixedZone("", 2*3600)))},
		{"date year 10000", value.NewDate(10000, time.January, 1)},
		{"date negative year", value.NewDate(-5, time.March, 1)},
		{"date february 30", value.NewDate(2023, time.February, 30)},
		{"date month 13", value.NewDate(2023, 13, 1)},
		{"date day 0", value.NewDate(2023, time.January, 0)},
		{"time hour 24", value.NewTime(24, 0, 0, 0)},
		{"time minute 60", value.NewTime(12, 60, 0, 0)},
		{"time second 60", value.NewTime(12, 0, 60, 0)},
		{"time negative", value.NewTime(-1, 0, 0, 0)},
		{"time nanosecond overflow", value.NewTime(12, 0, 0, 1_000_000_000)},
		{"nested in list", value.List{value.NewDate(2023, time.February, 29)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Encode(tt.v)
			require.Error(t, err)
			assert.True(t, IsCodecError(err), "got %T: %v", err, err)
		})
	}
}

func TestRoundTrip_TemporalBounds(t *testing.T) {
	tests := []value.Value{
		value.NewDate(9999, time.December, 31),
		value.NewDate(2024, time.February, 29),
		value.NewDate(1, time.January, 1),
		value.NewDateTime(time.Date(9999, 12, 31, 23, 59, 59, 999999999, time.UTC)),
		value.NewTime(23, 59, 59, 999999999),
		value.NewTime(0, 0, 0, 0),
	}
	for _, v := range tests {
		got := roundTrip(t, v)
		assert.True(t, value.Equal(v, got), "want %s, got %s", value.Repr(v), value.Repr(got))
	}
}

func TestRoundTrip_DateTimeOffsetWithSeconds(t *testing.T) {
	// Local mean time zones have offsets such as +00:19:32.
	lmt := time.FixedZone("LMT", 19*60+32)
	v := value.NewDateTime(time.Date(1900, 1, 1, 12, 0, 0, 0, lmt))

	data, _, err := Encode(v)
	require.NoError(t, err)
	assert.Contains(t, string(data), "1900-01-01T12:00:00+00:19:32")

	got := roundTrip(t, v)
	assert.True(t, value.Equal(v, got), "want %s, got %s", value.Repr(v), value.Repr(got))

	_, off := got.(value.DateTime).Zone()
	assert.Equal(t, 19*60+32, off)

	west := value.NewDateTime(time.Date(1880, 6, 1, 8, 30, 0, 0, time.FixedZone("", -(4*3600 + 56*60 + 2))))
	got = roundTrip(t, west)
	assert.True(t, value.Equal(west, got), "want %s, got %s", value.Repr(west), value.Repr(got))
}

func TestDecode_FieldNamesAreExact(t *testing.T) {
	for _, data := range []string{
		`{"TYPE":"int","VALUE":1}`,
		`{"Type":"int","value":1}`,
		`{"type":"int","Value":1}`,
		`{"type":1,"value":1}`,
		`null`,
	} {
		t.Run(data, func(t *testing.T) {
			_, err := DecodeAny([]byte(data))
			require.Error(t, err)
			assert.True(t, IsCodecError(err), "got %T: %v", err, err)

			_, err = Peek([]byte(data))
			assert.True(t, IsCodecError(err))
		})
	}
}

func TestDecode_KindMismatch(t *testing.T) {
	data, _, err := Encode(value.List{value.Int(1)})
	require.NoError(t, err)

	_, err = Decode(data, value.KindTuple)
	require.Error(t, err)
	assert.True(t, IsCodecError(err))
}

func TestDecode_MalformedPayloads(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `invalid json`},
		{"truncated", `{"type":"list","value":[{"type":"int","value":1}`},
		{"unknown discriminator", `{"type":"complex","value":"1+2j"}`},
		{"missing type", `{"value":1}`},
		{"missing value", `{"type":"int"}`},
		{"unknown field", `{"type":"int","value":1,"extra":true}`},
		{"top-level array", `[1,2,3]`},
		{"tuple not a sequence", `{"type":"tuple","value":{"a":1}}`},
		{"list of raw items", `{"type":"list","value":[1,2]}`},
		{"dict not an object", `{"type":"dict","value":[]}`},
		{"int with fraction", `{"type":"int","value":1.5}`},
		{"int as string", `{"type":"int","value":"1"}`},
		{"int overflow", `{"type":"int","value":99999999999999999999}`},
		{"bool as string", `{"type":"bool","value":"true"}`},
		{"null with payload", `{"type":"NoneType","value":0}`},
		{"str with null", `{"type":"str","value":null}`},
		{"float literal", `{"type":"float","value":"infinity"}`},
		{"bytes not base64", `{"type":"bytes","value":"***"}`},
		{"bad date", `{"type":"date","value":"2023-13-45"}`},
		{"bad decimal", `{"type":"Decimal","value":"abc"}`},
		{"unhashable set member", `{"type":"set","value":[{"type":"list","value":[]}]}`},
		{"nested bad node", `{"type":"dict","value":{"a":{"type":"tuple","value":7}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeAny([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, IsCodecError(err), "got %T: %v", err, err)
		})
	}
}

func TestDecode_ErrorPath(t *testing.T) {
	_, err := DecodeAny([]byte(`{"type":"dict","value":{"a":{"type":"list","value":[{"type":"int","value":1},{"type":"tuple","value":7}]}}}`))
	require.Error(t, err)

	var ce *CodecError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, `$["a"][1]`, ce.Path)
	assert.Equal(t, value.KindTuple, ce.Kind)
}

func TestPeek(t *testing.T) {
	data, _, err := Encode(value.NewFrozenSet(value.Int(1)))
	require.NoError(t, err)

	kind, err := Peek(data)
	require.NoError(t, err)
	assert.Equal(t, value.KindFrozenSet, kind)

	kind, err = Peek([]byte(`{"type":"str","value":"test_value"}`))
	require.NoError(t, err)
	assert.Equal(t, value.KindString, kind)

	_, err = Peek([]byte(`{"type":"nope","value":1}`))
	assert.True(t, IsCodecError(err))

	_, err = Peek([]byte(`garbage`))
	assert.True(t, IsCodecError(err))
}
