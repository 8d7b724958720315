package vaultcrypto

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Fingerprint computes the stable, short identifier for a plaintext auth
// JSON document: parse, re-emit in canonical form (object keys sorted,
// no insignificant whitespace), SHA-256, first 8 bytes hex-encoded.
//
// Fingerprint is a pure function of plaintext: two auth documents that
// are structurally equal always produce the same fingerprint,
// regardless of key order or whitespace in the original bytes.
func Fingerprint(plaintext []byte) (string, error) {
	var v any
	if err := json.Unmarshal(plaintext, &v); err != nil {
		return "", fmt.Errorf("fingerprint: invalid json: %w", err)
	}

	canonical, err := canonicalize(v)
	if err != nil {
		return "", fmt.Errorf("fingerprint: canonicalize: %w", err)
	}

	sum := sha256.Sum256(canonical)

	return hex.EncodeToString(sum[:8]), nil
}

// canonicalize re-marshals v with object keys sorted at every level and
// no insignificant whitespace.
func canonicalize(v any) ([]byte, error) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		var buf bytes.Buffer

		buf.WriteByte('{')

		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}

			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}

			buf.Write(kb)
			buf.WriteByte(':')

			vb, err := canonicalize(val[k])
			if err != nil {
				return nil, err
			}

			buf.Write(vb)
		}

		buf.WriteByte('}')

		return buf.Bytes(), nil
	case []any:
		var buf bytes.Buffer

		buf.WriteByte('[')

		for i, e := range val {
			if i > 0 {
				buf.WriteByte(',')
			}

			eb, err := canonicalize(e)
			if err != nil {
				return nil, err
			}

			buf.Write(eb)
		}

		buf.WriteByte(']')

		return buf.Bytes(), nil
	default:
		return json.Marshal(val)
	}
}
