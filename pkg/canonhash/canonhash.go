package canonhash

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// ZeroHash is the chain anchor for genesis entries.
const ZeroHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

const prefix = "sha256:"

// SchemaError reports a record that cannot be canonicalized: a missing
// required field, a floating-point value, or a shape json cannot encode.
type SchemaError struct {
	Reason string
}

func (e *SchemaError) Error() string { return "schema error: " + e.Reason }

// Canonical returns the canonical byte encoding of v: JSON with object keys
// in sorted order, UTF-8, no insignificant whitespace. Two logically equal
// records always produce identical bytes regardless of struct field order or
// map iteration order in the caller.
func Canonical(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, &SchemaError{Reason: err.Error()}
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var norm any
	if err := dec.Decode(&norm); err != nil {
		return nil, &SchemaError{Reason: err.Error()}
	}
	if err := checkValue(norm); err != nil {
		return nil, err
	}
	out, err := json.Marshal(norm)
	if err != nil {
		return nil, &SchemaError{Reason: err.Error()}
	}
	return out, nil
}

// Sum canonicalizes v and returns its sha256 digest plus the canonical bytes.
func Sum(v any) (string, []byte, error) {
	b, err := Canonical(v)
	if err != nil {
		return "", nil, err
	}
	return SumBytes(b), b, nil
}

// SumBytes hashes already-canonical bytes.
func SumBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return prefix + hex.EncodeToString(sum[:])
}

// SumConcat hashes newline-joined parts. Used for chain links where the
// inputs are themselves digests or fixed tokens, never free-form records.
func SumConcat(parts ...string) string {
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(p)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return prefix + hex.EncodeToString(sum[:])
}

// Well checks that h looks like a digest this package produced.
func Well(h string) bool {
	if !strings.HasPrefix(h, prefix) {
		return false
	}
	rest := strings.TrimPrefix(h, prefix)
	if len(rest) != 64 {
		return false
	}
	_, err := hex.DecodeString(rest)
	return err == nil
}

func checkValue(v any) error {
	switch x := v.(type) {
	case map[string]any:
		for _, item := range x {
			if err := checkValue(item); err != nil {
				return err
			}
		}
	case []any:
		for _, item := range x {
			if err := checkValue(item); err != nil {
				return err
			}
		}
	case json.Number:
		if strings.ContainsAny(string(x), ".eE") {
			return &SchemaError{Reason: fmt.Sprintf("floating-point value %s is not canonicalizable", x)}
		}
	}
	return nil
}
