package record

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dirstore/internal/value"
)

type corruptionRecorder struct {
	mu     sync.Mutex
	events []CorruptionEvent
}

func (r *corruptionRecorder) record(e CorruptionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *corruptionRecorder) all() []CorruptionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]CorruptionEvent(nil), r.events...)
}

func TestRead_CorruptionIsAbsence(t *testing.T) {
	tests := []struct {
		name   string
		damage func(t *testing.T, dataPath, metaPath string)
	}{
		{
			name: "corrupt data",
			damage: func(t *testing.T, dataPath, _ string) {
				require.NoError(t, os.WriteFile(dataPath, []byte("invalid json"), 0o644))
			},
		},
		{
			name: "same size different bytes",
			damage: func(t *testing.T, dataPath, _ string) {
				raw, err := os.ReadFile(dataPath)
				require.NoError(t, err)
				raw[len(raw)-2] ^= 0x01
				require.NoError(t, os.WriteFile(dataPath, raw, 0o644))
			},
		},
		{
			name: "corrupt metadata",
			damage: func(t *testing.T, _, metaPath string) {
				require.NoError(t, os.WriteFile(metaPath, []byte("invalid json"), 0o644))
			},
		},
		{
			name: "metadata from the future",
			damage: func(t *testing.T, _, metaPath string) {
				require.NoError(t, os.WriteFile(metaPath, []byte(`{"original_key":"k","type":"str","encoding":"json","size_bytes":1,"checksum":"x","format":99}`), 0o644))
			},
		},
		{
			name: "missing data file",
			damage: func(t *testing.T, dataPath, _ string) {
				require.NoError(t, os.Remove(dataPath))
			},
		},
		{
			name: "missing metadata file",
			damage: func(t *testing.T, _, metaPath string) {
				require.NoError(t, os.Remove(metaPath))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			rec := &corruptionRecorder{}
			s := createTestStore(t, Options{OnCorrupt: rec.record})

			require.NoError(t, s.Write(ctx, "k", value.String("test_value"), false))
			dataPath, metaPath, err := s.Paths("k")
			require.NoError(t, err)
			tt.damage(t, dataPath, metaPath)

			got, ok, err := s.Read(ctx, "k")
			require.NoError(t, err, "corruption is never an error")
			assert.False(t, ok)
			assert.Nil(t, got)

			assert.Equal(t, int64(1), s.Corruptions())
			events := rec.all()
			require.Len(t, events, 1)
			assert.Equal(t, "k", events[0].Key)
			assert.Equal(t, "k", events[0].SafeName)
			assert.NotEmpty(t, events[0].Reason)

			keys, err := s.ListKeys(ctx)
			require.NoError(t, err)
			assert.Empty(t, keys, "corrupt records are not enumerated")
		})
	}
}

func TestRead_TypeMismatchIsCorruption(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, Options{})

	require.NoError(t, s.Write(ctx, "k", value.Int(1), false))
	_, metaPath, err := s.Paths("k")
	require.NoError(t, err)

	meta, ok, err := s.Info(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	meta.Type = value.KindString
	raw, err := marshalMetadata(meta)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(metaPath, raw, 0o644))

	_, ok, err = s.Read(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(1), s.Corruptions())
}

func TestPop_CorruptRecordIsRemoved(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, Options{})

	require.NoError(t, s.Write(ctx, "k", value.Int(1), false))
	dataPath, metaPath, err := s.Paths("k")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(dataPath, []byte("garbage"), 0o644))

	_, ok, err := s.Pop(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoFileExists(t, dataPath)
	assert.NoFileExists(t, metaPath)
	assert.Equal(t, int64(1), s.Corruptions())
}

func TestInfo_DoesNotReadPayload(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, Options{})

	require.NoError(t, s.Write(ctx, "k", value.String("abc"), false))
	dataPath, _, err := s.Paths("k")
	require.NoError(t, err)

	// Same length, different bytes: only a checksum would notice.
	raw, err := os.ReadFile(dataPath)
	require.NoError(t, err)
	raw[len(raw)-3] = 'x'
	require.NoError(t, os.WriteFile(dataPath, raw, 0o644))

	_, ok, err := s.Info(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = s.Read(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
