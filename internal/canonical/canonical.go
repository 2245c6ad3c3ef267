// Package canonical produces the deterministic byte form of JSON-shaped values
// that every signature and content id in the system is computed over.
//
// Object keys are sorted lexicographically at every nesting level, arrays keep
// their index order, numbers are written exactly as they were encoded, and HTML
// characters are not escaped. The output is independent of struct field order
// or map insertion order.
package canonical

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Canonicalize returns the canonical JSON encoding of v.
func Canonicalize(v any) ([]byte, error) {
	raw, err := marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: marshal: %w", err)
	}
	tree, err := decodeTree(raw)
	if err != nil {
		return nil, fmt.Errorf("canonical: decode: %w", err)
	}
	// encoding/json writes map keys in sorted order, which is the whole trick:
	// decoding into generic maps drops the source order.
	out, err := marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("canonical: encode: %w", err)
	}
	return out, nil
}

// Hash returns the SHA-256 digest of the canonical encoding of v.
func Hash(v any) ([]byte, error) {
	b, err := Canonicalize(v)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(b)
	return sum[:], nil
}

// HashHex is Hash encoded as lowercase hex.
func HashHex(v any) (string, error) {
	sum, err := Hash(v)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum), nil
}

// Without returns the canonical-ready generic form of v with the named
// top-level fields removed. Signers use it to strip the proof block.
func Without(v any, fields ...string) (map[string]any, error) {
	raw, err := marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: marshal: %w", err)
	}
	tree, err := decodeTree(raw)
	if err != nil {
		return nil, fmt.Errorf("canonical: decode: %w", err)
	}
	obj, ok := tree.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("canonical: expected a JSON object, got %T", tree)
	}
	for _, f := range fields {
		delete(obj, f)
	}
	return obj, nil
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func decodeTree(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, err
	}
	return tree, nil
}
