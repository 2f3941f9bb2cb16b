package testutil

import (
	"math"
	"time"

	"github.com/roach88/dirstore/internal/value"
)

// Sample is a named value used as a round-trip fixture.
type Sample struct {
	Key   string
	Value value.Value
}

// Samples returns one value of every kind plus a few nested shapes.
//
// The same call always returns equal values, so fixtures written by one
// test can be checked by another.
func Samples() []Sample {
	return []Sample{
		{"none_key", value.Null{}},
		{"bool_key", value.Bool(true)},
		{"int_key", value.Int(42)},
		{"zero_key", value.Int(0)},
		{"float_key", value.Float(3.14)},
		{"nan_key", value.Float(math.NaN())},
		{"string_key", value.String("hello world")},
		{"bytes_key", value.Bytes("hello world")},
		{"list_key", value.List{value.Int(1), value.Int(2), value.Int(3), value.String("hello")}},
		{"dict_key", value.Dict{
			"a": value.Int(1),
			"b": value.String("hello"),
			"c": value.List{value.Int(1), value.Int(2), value.Int(3)},
		}},
		{"tuple_key", value.Tuple{value.Int(1), value.Int(2), value.String("hello")}},
		{"set_key", value.NewSet(value.Int(1), value.Int(2), value.Int(3), value.String("hello"))},
		{"frozenset_key", value.NewFrozenSet(value.Int(1), value.Int(2), value.Int(3))},
		{"decimal_key", value.MustDecimal("19.99")},
		{"datetime_key", value.NewDateTime(time.Date(2023, 1, 1, 12, 30, 45, 0, time.UTC))},
		{"date_key", value.NewDate(2023, time.January, 1)},
		{"time_key", value.NewTime(12, 30, 45, 0)},
		{"nested_key", value.Dict{
			"level1": value.Dict{
				"level2": value.Dict{
					"level3": value.List{value.Int(1), value.Int(2), value.Int(3), value.Dict{"nested": value.String("value")}},
				},
			},
			"list_with_dicts": value.List{
				value.Dict{"id": value.Int(1), "name": value.String("Alice")},
				value.Dict{"id": value.Int(2), "name": value.String("Bob")},
			},
			"pairs": value.List{value.Tuple{value.String("x"), value.Float(0.5)}},
		}},
	}
}
