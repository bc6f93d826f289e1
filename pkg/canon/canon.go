// Package canon implements the canonical JSON encoding shared by lockfile
// assembly, self-hashing, refusal envelopes, and witness record ids.
//
// The rule is simple and deliberately narrow: object keys sorted by Unicode
// code point at every nesting depth, arrays left in input order, no
// whitespace between tokens, no trailing newline, and no HTML escaping.
// Any divergence here invalidates every self-hash computed downstream, so
// this package is the one place that owns the byte-for-byte contract.
package canon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Marshal encodes v into its canonical form. v may be a Go struct (its
// json tags are honored via a pre-marshal pass), a map, a slice, or any
// value already in the generic null|bool|json.Number|string|[]any|map
// shape produced by Decode.
func Marshal(v interface{}) ([]byte, error) {
	generic, err := toGeneric(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := encode(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalString is Marshal rendered as a string.
func MarshalString(v interface{}) (string, error) {
	b, err := Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Decode parses JSON text into the generic tree shape (preserving integer
// and decimal formatting via json.Number) that Marshal accepts directly.
func Decode(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("canon: decode: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("canon: decode: trailing data after top-level value")
	}
	return v, nil
}

// toGeneric normalizes v to the null|bool|json.Number|string|[]any|map tree.
// Scalars already in that shape are used as-is; everything else, including
// maps and slices whose elements may be plain Go values such as int, is
// round-tripped through the standard encoder to respect struct tags, then
// re-decoded with UseNumber (json.Number literals survive unchanged).
func toGeneric(v interface{}) (interface{}, error) {
	switch v.(type) {
	case nil, bool, json.Number, string:
		return v, nil
	}

	intermediate, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canon: pre-marshal: %w", err)
	}
	return Decode(intermediate)
}

func encode(buf *bytes.Buffer, v interface{}) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case json.Number:
		buf.WriteString(t.String())
		return nil
	case string:
		return encodeString(buf, t)
	case []interface{}:
		buf.WriteByte('[')
		for i, elem := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := encode(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	default:
		return fmt.Errorf("canon: unsupported value type %T", v)
	}
}

// encodeString writes a JSON string literal without HTML escaping.
func encodeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("canon: encode string: %w", err)
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'}))
	return nil
}
