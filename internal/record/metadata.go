package record

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/roach88/dirstore/internal/codec"
	"github.com/roach88/dirstore/internal/value"
)

// FormatVersion is written into every metadata file.
// Readers reject metadata from a newer format.
const FormatVersion = 1

const checksumPrefix = "sha256:"

// Metadata is the sidecar record describing a data file.
type Metadata struct {
	OriginalKey string     `json:"original_key"`
	Type        value.Kind `json:"type"`
	Encoding    string     `json:"encoding"`
	SizeBytes   int64      `json:"size_bytes"`
	Checksum    string     `json:"checksum"`
	Format      int        `json:"format"`
}

func newMetadata(key string, kind value.Kind, data []byte) Metadata {
	return Metadata{
		OriginalKey: key,
		Type:        kind,
		Encoding:    codec.Encoding,
		SizeBytes:   int64(len(data)),
		Checksum:    Checksum(data),
		Format:      FormatVersion,
	}
}

// Checksum returns the metadata checksum string for data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return checksumPrefix + hex.EncodeToString(sum[:])
}

// parseMetadata decodes and validates a metadata file.
func parseMetadata(raw []byte) (Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return Metadata{}, fmt.Errorf("malformed metadata: %w", err)
	}
	if m.OriginalKey == "" {
		return Metadata{}, fmt.Errorf("metadata missing original_key")
	}
	if _, err := value.ParseKind(string(m.Type)); err != nil {
		return Metadata{}, fmt.Errorf("metadata type: %w", err)
	}
	if m.Encoding != codec.Encoding {
		return Metadata{}, fmt.Errorf("unsupported encoding %q", m.Encoding)
	}
	if m.SizeBytes < 0 {
		return Metadata{}, fmt.Errorf("negative size_bytes %d", m.SizeBytes)
	}
	if m.Format < 1 || m.Format > FormatVersion {
		return Metadata{}, fmt.Errorf("unsupported format %d", m.Format)
	}
	return m, nil
}

// verify checks that data is the payload this metadata describes.
func (m Metadata) verify(data []byte) error {
	if int64(len(data)) != m.SizeBytes {
		return fmt.Errorf("size mismatch: metadata says %d bytes, data has %d", m.SizeBytes, len(data))
	}
	if got := Checksum(data); got != m.Checksum {
		return fmt.Errorf("checksum mismatch")
	}
	return nil
}

func marshalMetadata(m Metadata) ([]byte, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return raw, nil
}
