package value

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromJSON_KeepsIntegersExact(t *testing.T) {
	v, err := FromJSON([]byte(`{"big": 9007199254740993, "f": 1.5, "e": 1e3, "list": [1, "a", null, true]}`))
	require.NoError(t, err)

	want := Dict{
		"big":  Int(9007199254740993),
		"f":    Float(1.5),
		"e":    Float(1000),
		"list": List{Int(1), String("a"), Null{}, Bool(true)},
	}
	assert.True(t, Equal(want, v), "got %s", Repr(v))
}

func TestFromJSON_RejectsTrailingData(t *testing.T) {
	_, err := FromJSON([]byte(`1 2`))
	assert.Error(t, err)

	_, err = FromJSON([]byte(`{`))
	assert.Error(t, err)
}

func TestFromGo(t *testing.T) {
	ts := time.Date(2023, 1, 1, 12, 30, 45, 0, time.UTC)
	v, err := FromGo(map[string]any{
		"n":    nil,
		"i":    int32(4),
		"b":    []byte("raw"),
		"when": ts,
	})
	require.NoError(t, err)

	want := Dict{
		"n":    Null{},
		"i":    Int(4),
		"b":    Bytes("raw"),
		"when": NewDateTime(ts),
	}
	assert.True(t, Equal(want, v))

	_, err = FromGo(struct{}{})
	assert.Error(t, err)

	_, err = FromGo(uint64(1 << 63))
	assert.Error(t, err)
}

func TestToPlain(t *testing.T) {
	v := Dict{
		"tuple": Tuple{Int(1), Float(2.5)},
		"set":   NewSet(Int(2), Int(1)),
		"dec":   MustDecimal("19.99"),
		"bytes": Bytes("hi"),
		"null":  Null{},
	}

	got := ToPlain(v)
	assert.Equal(t, map[string]any{
		"tuple": []any{int64(1), 2.5},
		"set":   []any{int64(1), int64(2)},
		"dec":   "19.99",
		"bytes": "aGk=",
		"null":  nil,
	}, got)
}

func TestAs(t *testing.T) {
	list := List{Int(3), Int(1), Int(2)}

	tuple, err := As(list, KindTuple)
	require.NoError(t, err)
	assert.True(t, Equal(Tuple{Int(3), Int(1), Int(2)}, tuple))

	fs, err := As(list, KindFrozenSet)
	require.NoError(t, err)
	assert.True(t, Equal(NewFrozenSet(Int(1), Int(2), Int(3)), fs))

	_, err = As(List{List{}}, KindSet)
	assert.Error(t, err, "lists are unhashable")

	dec, err := As(String("19.99"), KindDecimal)
	require.NoError(t, err)
	assert.True(t, Equal(MustDecimal("19.99"), dec))

	b, err := As(String("aGk="), KindBytes)
	require.NoError(t, err)
	assert.True(t, Equal(Bytes("hi"), b))

	f, err := As(Int(2), KindFloat)
	require.NoError(t, err)
	assert.True(t, Equal(Float(2), f))

	empty, err := As(List{}, KindSet)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.(Set).Len())

	_, err = As(Bool(true), KindDate)
	assert.Error(t, err)
}
