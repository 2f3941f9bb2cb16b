package codec

import (
	"math"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dirstore/internal/value"
)

// TestEncode_Golden pins the wire format. Records written by older builds
// must stay readable, so a diff here is a format change, not a refactor.
//
// To regenerate golden files, run:
//
//	go test ./internal/codec -update
func TestEncode_Golden(t *testing.T) {
	tests := []struct {
		name string
		v    value.Value
	}{
		{
			"nested_dict",
			value.Dict{
				"b": value.List{value.Int(1), value.Tuple{value.String("x"), value.Null{}}},
				"a": value.Bool(true),
			},
		},
		{
			"frozenset",
			value.NewFrozenSet(value.Int(3), value.Int(1), value.Int(2)),
		},
		{
			"scalars",
			value.Tuple{
				value.Bytes("hello world"),
				value.MustDecimal("19.99"),
				value.NewDate(2023, time.January, 1),
				value.NewDateTime(time.Date(2023, 1, 1, 12, 30, 45, 0, time.UTC)),
				value.NewTime(12, 30, 45, 0),
				value.Float(3.14),
				value.Float(math.NaN()),
			},
		},
		{
			"html_chars",
			value.String("<a & b>"),
		},
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, _, err := Encode(tt.v)
			require.NoError(t, err)
			g.Assert(t, tt.name, data)

			got, err := Decode(data, tt.v.Kind())
			require.NoError(t, err)
			require.True(t, value.Equal(tt.v, got))
		})
	}
}
