package safename

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"hello", "hello"},
		{"hello-world", "hello-world"},
		{"hello_world", "hello_world"},
		{"hello/world", "hello_world"},
		{"hello\\world", "hello_world"},
		{"hello:world", "hello_world"},
		{"hello@world#123", "helloworld123"},
		{"key with spaces", "keywithspaces"},
		{"key.with.dots", "keywithdots"},
		{"../../etc/passwd", "__etc_passwd"},
		{"žąsis", "žąsis"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := Encode(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncode_RejectsEmpty(t *testing.T) {
	for _, key := range []string{"", "   ", "\t\n"} {
		_, err := Encode(key)
		require.Error(t, err)
		assert.True(t, IsInvalidKey(err))
		assert.Contains(t, err.Error(), "Key cannot be empty")
	}
}

func TestEncode_RejectsSymbolOnly(t *testing.T) {
	_, err := Encode("@@@")
	require.Error(t, err)
	assert.True(t, IsInvalidKey(err))
	assert.Contains(t, err.Error(), "cannot be converted to safe filename")
}

func TestEncode_NormalizesComposition(t *testing.T) {
	composed, err := Encode("caf\u00e9")
	require.NoError(t, err)
	decomposed, err := Encode("cafe\u0301")
	require.NoError(t, err)
	assert.Equal(t, composed, decomposed)
}

func TestSameKey(t *testing.T) {
	assert.True(t, SameKey("k", "k"))
	assert.True(t, SameKey("caf\u00e9", "cafe\u0301"))
	assert.False(t, SameKey("a.b", "ab"), "a shared safe name is not the same key")
	assert.False(t, SameKey("K", "k"))
}

func TestEncode_Deterministic(t *testing.T) {
	first, err := Encode("a/b:c")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Encode("a/b:c")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestEncode_KnownCollision(t *testing.T) {
	a, err := Encode("a.b")
	require.NoError(t, err)
	b, err := Encode("ab")
	require.NoError(t, err)
	assert.Equal(t, a, b, "dropped characters collapse distinct keys")
}

func TestEncode_TruncatesLongNames(t *testing.T) {
	long1 := strings.Repeat("a", 300) + "1"
	long2 := strings.Repeat("a", 300) + "2"

	n1, err := Encode(long1)
	require.NoError(t, err)
	n2, err := Encode(long2)
	require.NoError(t, err)

	assert.LessOrEqual(t, len(n1), MaxLen)
	assert.NotEqual(t, n1, n2)
}

func TestEncode_TruncatesOnRuneBoundary(t *testing.T) {
	name, err := Encode(strings.Repeat("ž", 150))
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(name))
	assert.LessOrEqual(t, len(name), MaxLen)
}
