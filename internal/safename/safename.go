// Package safename maps arbitrary store keys to filesystem-safe basenames.
//
// The mapping is pure: the same key always yields the same name. It is not
// injective, so callers that need the original key must record it themselves.
package safename

import (
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxLen bounds the byte length of an encoded name, leaving room for the
// ".data.json"/".meta.json" suffixes under common 255-byte filename limits.
const MaxLen = 200

// hashSuffixLen is "-" plus eight hex digits.
const hashSuffixLen = 9

// InvalidKeyError reports a key that cannot be turned into a safe name.
type InvalidKeyError struct {
	Key    string
	Reason string
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("invalid key %q: %s", e.Key, e.Reason)
}

// IsInvalidKey returns true if err is or wraps an InvalidKeyError.
func IsInvalidKey(err error) bool {
	var ike *InvalidKeyError
	return errors.As(err, &ike)
}

// Encode derives the safe name for key.
//
// Rules, applied in order:
//   - empty or whitespace-only keys are rejected
//   - the key is NFC-normalized
//   - '/', '\' and ':' become '_'
//   - letters, digits, '-' and '_' are kept; everything else is dropped
//   - an empty result is rejected
//   - results longer than MaxLen are truncated and suffixed with a hash of
//     the full name
func Encode(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", &InvalidKeyError{Key: key, Reason: "Key cannot be empty"}
	}

	var sb strings.Builder
	for _, r := range norm.NFC.String(key) {
		switch {
		case r == '/' || r == '\\' || r == ':':
			sb.WriteByte('_')
		case r == '-' || r == '_':
			sb.WriteRune(r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
		}
	}

	name := sb.String()
	if name == "" {
		return "", &InvalidKeyError{Key: key, Reason: "cannot be converted to safe filename"}
	}
	if len(name) > MaxLen {
		name = truncate(name)
	}
	return name, nil
}

// SameKey reports whether a and b name the same record. Keys are compared
// after NFC normalization, so composed and decomposed spellings match.
func SameKey(a, b string) bool {
	return a == b || norm.NFC.String(a) == norm.NFC.String(b)
}

// truncate shortens name on a rune boundary and appends an FNV-1a hash of
// the untruncated name so long keys with a shared prefix stay distinct.
func truncate(name string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))

	cut := MaxLen - hashSuffixLen
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return fmt.Sprintf("%s-%08x", name[:cut], h.Sum32())
}
