package witness

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"lukechampine.com/blake3"
)

// Input names one file consumed by a run, as recorded for audit purposes.
type Input struct {
	Path  string `json:"path"`
	Hash  string `json:"hash"`
	Bytes uint64 `json:"bytes"`
}

// Record is one line of the witness ledger: a content-addressed,
// back-linked entry describing a single tool invocation's outcome.
//
// Its JSON field order is fixed by this struct's declaration order and
// is deliberately distinct from the sorted-key canonical form used for
// the lockfile and refusal envelope — the id preimage is computed over
// plain encoding/json output, not canon.Marshal output. Mixing the two
// orderings would produce ids that never re-verify.
type Record struct {
	ID         string                 `json:"id"`
	Tool       string                 `json:"tool"`
	Version    string                 `json:"version"`
	BinaryHash *string                `json:"binary_hash"`
	Inputs     []Input                `json:"inputs"`
	Params     map[string]interface{} `json:"params"`
	Outcome    string                 `json:"outcome"`
	ExitCode   int                    `json:"exit_code"`
	OutputHash string                 `json:"output_hash"`
	Prev       *string                `json:"prev"`
	TS         string                 `json:"ts"`
}

const blake3Prefix = "blake3:"

// OutputHash returns the blake3-prefixed digest of stdout bytes, per the
// record construction algorithm's first step.
func OutputHash(stdout []byte) string {
	sum := blake3.Sum256(stdout)
	return blake3Prefix + hex.EncodeToString(sum[:])
}

// finalize computes the record's content-addressed id: it serializes the
// record with ID held empty (the fixed preimage), digests that with
// BLAKE3, and substitutes the resulting id back in.
func finalize(rec Record) (Record, error) {
	rec.ID = ""
	preimage, err := json.Marshal(rec)
	if err != nil {
		return Record{}, fmt.Errorf("witness: marshal preimage: %w", err)
	}
	sum := blake3.Sum256(preimage)
	rec.ID = blake3Prefix + hex.EncodeToString(sum[:])
	return rec, nil
}

// VerifyID recomputes rec's id from its other fields and reports whether
// it matches the stored one, confirming no field was tampered with.
func VerifyID(rec Record) (bool, error) {
	stored := rec.ID
	recomputed, err := finalize(rec)
	if err != nil {
		return false, err
	}
	return recomputed.ID == stored, nil
}
