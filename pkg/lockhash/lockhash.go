// Package lockhash computes and verifies the lockfile self-hash: a
// SHA-256 digest of the canonical form of the lockfile with its own
// lock_hash field blanked out.
package lockhash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/cmdrvl/lock/pkg/canon"
)

// Prefix is prepended to every computed digest.
const Prefix = "sha256:"

const hashField = "lock_hash"

// Compute returns the lock hash for v, which may be a struct (its JSON
// tags are honored) or an already-generic map[string]interface{}. The
// lock_hash field, wherever it sits in v's JSON shape, is blanked to the
// empty string before canonicalization, per the self-hash contract.
func Compute(v interface{}) (string, error) {
	generic, err := asGenericObject(v)
	if err != nil {
		return "", err
	}
	blanked := withBlankedHash(generic)
	b, err := canon.Marshal(blanked)
	if err != nil {
		return "", fmt.Errorf("lockhash: canonicalize: %w", err)
	}
	return digest(b), nil
}

// VerifyStruct recomputes the hash for v and compares it against the
// value found at v's lock_hash field.
func VerifyStruct(v interface{}) (bool, error) {
	generic, err := asGenericObject(v)
	if err != nil {
		return false, err
	}
	stored, _ := generic[hashField].(string)
	computed, err := Compute(generic)
	if err != nil {
		return false, err
	}
	return computed == stored, nil
}

// VerifyJSON parses raw JSON text, blanks lock_hash, canonicalizes, and
// compares the resulting digest to the lock_hash value found in the
// parsed text. This is the path that exercises the bytes on disk rather
// than a struct, catching lockfiles produced by a foreign encoder whose
// key order or spacing differs but whose canonical form should still
// match.
//
// A parse failure is always reported as an error; it is never collapsed
// into a false "invalid" result.
func VerifyJSON(raw []byte) (bool, error) {
	v, err := canon.Decode(raw)
	if err != nil {
		return false, fmt.Errorf("lockhash: parse: %w", err)
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return false, fmt.Errorf("lockhash: top-level value is not an object")
	}
	stored, _ := obj[hashField].(string)
	computed, err := Compute(obj)
	if err != nil {
		return false, err
	}
	return computed == stored, nil
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return Prefix + hex.EncodeToString(sum[:])
}

func withBlankedHash(obj map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(obj))
	for k, v := range obj {
		out[k] = v
	}
	out[hashField] = ""
	return out
}

func asGenericObject(v interface{}) (map[string]interface{}, error) {
	if obj, ok := v.(map[string]interface{}); ok {
		return obj, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("lockhash: marshal: %w", err)
	}
	generic, err := canon.Decode(b)
	if err != nil {
		return nil, err
	}
	obj, ok := generic.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("lockhash: value is not a JSON object")
	}
	return obj, nil
}
