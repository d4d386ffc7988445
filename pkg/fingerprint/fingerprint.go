package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"sort"
	"strings"
)

// Absent is the fingerprint of a file that does not exist
const Absent = "absent"

// FromBytes creates a fingerprint for raw file content
func FromBytes(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// FromFile fingerprints the current content of path. A missing file
// yields Absent so that "created since load" is detected as a change.
func FromFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Absent, nil
	}
	if err != nil {
		return "", err
	}
	return FromBytes(data), nil
}

// Generate creates a deterministic fingerprint for structured data.
// The fingerprint is a SHA256 hash of the canonicalized JSON
func Generate(data map[string]any) string {
	hash := sha256.Sum256([]byte(canonicalize(data)))
	return hex.EncodeToString(hash[:])
}

// Short truncates a fingerprint for use in identifiers
func Short(fp string, n int) string {
	if len(fp) <= n {
		return fp
	}
	return fp[:n]
}

// HasChanged compares two fingerprints to detect changes
func HasChanged(oldFingerprint, newFingerprint string) bool {
	return oldFingerprint != newFingerprint
}

// canonicalize creates a deterministic string representation of a value
// by sorting map keys and recursively processing nested structures
func canonicalize(data any) string {
	switch v := data.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var b strings.Builder
		b.WriteString("{")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(",")
			}
			keyJSON, _ := json.Marshal(k)
			b.Write(keyJSON)
			b.WriteString(":")
			b.WriteString(canonicalize(v[k]))
		}
		b.WriteString("}")
		return b.String()
	case []any:
		var b strings.Builder
		b.WriteString("[")
		for i, item := range v {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString(canonicalize(item))
		}
		b.WriteString("]")
		return b.String()
	default:
		// For primitives, use JSON encoding
		out, _ := json.Marshal(v)
		return string(out)
	}
}
