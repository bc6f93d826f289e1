// Package refusal builds the schema-stable REFUSAL payload emitted to
// stdout whenever the lock or verify pipelines cannot produce a domain
// outcome. The envelope shape is fixed: callers supply a code, message,
// and optional detail/recovery hint, and the builder guarantees sorted
// keys and a non-null detail object.
package refusal

import "github.com/cmdrvl/lock/pkg/canon"

// Lock path codes.
const (
	CodeEmptyInput  = "E_EMPTY"
	CodeBadInput    = "E_BAD_INPUT"
	CodeMissingHash = "E_MISSING_HASH"
)

// Verify path codes.
const (
	CodeIO                = "E_IO"
	CodeBadLockfile       = "E_BAD_LOCKFILE"
	CodeUnsupportedVer    = "E_UNSUPPORTED_VERSION"
	CodeRootNotFound      = "E_ROOT_NOT_FOUND"
	CodeUnknownAlgorithm  = "E_UNKNOWN_ALGORITHM"
)

// Schema tags for the two envelope producers.
const (
	SchemaLock   = "lock.v0"
	SchemaVerify = "lock-verify.v0"
)

// SampleCap bounds how many sample paths E_MISSING_HASH may report.
const SampleCap = 5

// Detail is the free-form, per-code payload attached to a refusal. It is
// always rendered as a JSON object, never as null, even when empty.
type Detail map[string]interface{}

// Refusal is the inner payload of the envelope. next_command always
// serializes, as null when no recovery hint applies, never omitted —
// the envelope's key set is fixed regardless of code.
type Refusal struct {
	Code        string  `json:"code"`
	Detail      Detail  `json:"detail"`
	Message     string  `json:"message"`
	NextCommand *string `json:"next_command"`
}

// Envelope is the fixed top-level shape written to stdout on refusal.
type Envelope struct {
	Outcome string  `json:"outcome"`
	Refusal Refusal `json:"refusal"`
	Version string  `json:"version"`
}

// New builds an envelope for the given schema, code, and message. detail
// may be nil, in which case an empty (but non-null) object is used.
func New(schema, code, message string, detail Detail, nextCommand string) Envelope {
	if detail == nil {
		detail = Detail{}
	}
	var next *string
	if nextCommand != "" {
		next = &nextCommand
	}
	return Envelope{
		Outcome: "REFUSAL",
		Version: schema,
		Refusal: Refusal{
			Code:        code,
			Detail:      detail,
			Message:     message,
			NextCommand: next,
		},
	}
}

// MissingHash builds the E_MISSING_HASH refusal, capping sample_paths at
// SampleCap while reporting the true total in count.
func MissingHash(schema string, paths []string) Envelope {
	count := len(paths)
	capped := paths
	if count > SampleCap {
		capped = paths[:SampleCap]
	}
	samples := make([]interface{}, len(capped))
	for i, p := range capped {
		samples[i] = p
	}
	return New(schema, CodeMissingHash,
		"one or more records are missing bytes_hash",
		Detail{"count": count, "sample_paths": samples},
		"ensure every non-skipped record carries a bytes_hash before hashing",
	)
}

// Render encodes the envelope in canonical form (sorted keys, compact,
// no trailing newline), the same contract used for the lockfile itself.
func Render(e Envelope) ([]byte, error) {
	return canon.Marshal(e)
}

// ExitCode is always 2 for any refusal, per the exit-code contract.
const ExitCode = 2
