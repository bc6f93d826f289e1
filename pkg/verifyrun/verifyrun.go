// Package verifyrun implements the verify orchestrator (C6): the state
// machine that turns lockfile bytes and an optional root directory into
// either a domain outcome or a refusal.
package verifyrun

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/cmdrvl/lock/pkg/canon"
	"github.com/cmdrvl/lock/pkg/lockfile"
	"github.com/cmdrvl/lock/pkg/lockhash"
	"github.com/cmdrvl/lock/pkg/memberverify"
	"github.com/cmdrvl/lock/pkg/refusal"
	"github.com/cmdrvl/lock/pkg/witness"
)

// Domain outcomes.
const (
	OutcomeOK      = "VERIFY_OK"
	OutcomePartial = "VERIFY_PARTIAL"
	OutcomeFailed  = "VERIFY_FAILED"
)

var recognizedAlgorithms = map[string]bool{"sha256": true, "blake3": true}

// Options configures one verify run.
type Options struct {
	Root    string
	HasRoot bool
	Strict  bool
}

// LockHashCheck reports the L1 self-hash recomputation result.
type LockHashCheck struct {
	Valid bool `json:"valid"`
}

// Report is the non-refusal verify result rendered to stdout.
type Report struct {
	Outcome  string               `json:"outcome"`
	Version  string               `json:"version"`
	LockHash LockHashCheck        `json:"lock_hash"`
	Members  *memberverify.Result `json:"members"`
}

// ExitCode maps a domain outcome to its process exit code.
func ExitCode(outcome string) int {
	if outcome == OutcomeOK {
		return 0
	}
	return 1
}

// Run executes the verify state machine over raw lockfile bytes. Exactly
// one of (report, envelope) is non-nil on return.
func Run(raw []byte, opts Options) (*Report, *refusal.Envelope) {
	generic, err := canon.Decode(raw)
	if err != nil {
		e := refusal.New(refusal.SchemaVerify, refusal.CodeBadLockfile,
			fmt.Sprintf("parse: %v", err), nil, "")
		return nil, &e
	}
	obj, ok := generic.(map[string]interface{})
	if !ok {
		e := refusal.New(refusal.SchemaVerify, refusal.CodeBadLockfile,
			"top-level value is not a JSON object", nil, "")
		return nil, &e
	}

	if env := shapeCheck(obj); env != nil {
		return nil, env
	}

	if opts.HasRoot {
		info, err := os.Stat(opts.Root)
		if err != nil || !info.IsDir() {
			e := refusal.New(refusal.SchemaVerify, refusal.CodeRootNotFound,
				fmt.Sprintf("root directory not found: %s", opts.Root), nil,
				"check --root points at an existing directory")
			return nil, &e
		}
	}

	valid, err := lockhash.VerifyJSON(raw)
	if err != nil {
		e := refusal.New(refusal.SchemaVerify, refusal.CodeBadLockfile,
			fmt.Sprintf("recompute self-hash: %v", err), nil, "")
		return nil, &e
	}
	if !valid {
		return &Report{
			Outcome:  OutcomeFailed,
			Version:  versionOf(obj),
			LockHash: LockHashCheck{Valid: false},
			Members:  nil,
		}, nil
	}

	if !opts.HasRoot {
		return &Report{
			Outcome:  OutcomeOK,
			Version:  versionOf(obj),
			LockHash: LockHashCheck{Valid: true},
			Members:  nil,
		}, nil
	}

	var lf lockfile.Lockfile
	if err := json.Unmarshal(raw, &lf); err != nil {
		e := refusal.New(refusal.SchemaVerify, refusal.CodeBadLockfile,
			fmt.Sprintf("decode: %v", err), nil, "")
		return nil, &e
	}

	result := memberverify.Verify(opts.Root, lf.Members)
	outcome := OutcomeOK
	switch {
	case result.Failed > 0:
		outcome = OutcomeFailed
	case result.Skipped > 0:
		if opts.Strict {
			outcome = OutcomeFailed
		} else {
			outcome = OutcomePartial
		}
	}

	return &Report{
		Outcome:  outcome,
		Version:  versionOf(obj),
		LockHash: LockHashCheck{Valid: true},
		Members:  result,
	}, nil
}

func versionOf(obj map[string]interface{}) string {
	s, _ := obj["version"].(string)
	return s
}

// shapeCheck validates the required top-level fields and every member's
// path/hash-algorithm shape before any hashing is attempted.
func shapeCheck(obj map[string]interface{}) *refusal.Envelope {
	for _, field := range []string{"version", "lock_hash", "members"} {
		if _, ok := obj[field]; !ok {
			e := refusal.New(refusal.SchemaVerify, refusal.CodeBadLockfile,
				fmt.Sprintf("missing required field %q", field), nil, "")
			return &e
		}
	}

	version, _ := obj["version"].(string)
	if version != lockfile.SchemaVersion {
		e := refusal.New(refusal.SchemaVerify, refusal.CodeUnsupportedVer,
			fmt.Sprintf("unsupported lockfile version %q", version), nil,
			"re-lock the dataset with a compatible tool version")
		return &e
	}

	members, ok := obj["members"].([]interface{})
	if !ok {
		e := refusal.New(refusal.SchemaVerify, refusal.CodeBadLockfile,
			"members is not an array", nil, "")
		return &e
	}

	for _, raw := range members {
		m, ok := raw.(map[string]interface{})
		if !ok {
			e := refusal.New(refusal.SchemaVerify, refusal.CodeBadLockfile,
				"member entry is not an object", nil, "")
			return &e
		}
		path, _ := m["path"].(string)
		if strings.HasPrefix(path, "/") || strings.HasPrefix(path, "\\") {
			e := refusal.New(refusal.SchemaVerify, refusal.CodeBadLockfile,
				fmt.Sprintf("member path %q is absolute", path), nil, "")
			return &e
		}
		if hasTraversalSegment(path) {
			e := refusal.New(refusal.SchemaVerify, refusal.CodeBadLockfile,
				fmt.Sprintf("member path %q contains a .. segment", path), nil, "")
			return &e
		}
		bytesHash, _ := m["bytes_hash"].(string)
		algo, _, _ := strings.Cut(bytesHash, ":")
		if !recognizedAlgorithms[algo] {
			e := refusal.New(refusal.SchemaVerify, refusal.CodeUnknownAlgorithm,
				fmt.Sprintf("member %q has unrecognized hash algorithm %q", path, algo), nil, "")
			return &e
		}
	}
	return nil
}

// RecordWitness appends a witness record for a completed, non-refusal
// verify run. toolVersion is this tool's own version string; lockfilePath
// is the path the operator passed on the command line; rendered is the
// exact stdout bytes the caller wrote. params carries subcommand, root
// and strict, and inputs names the lockfile itself (its own content hash and size are not
// recomputed here, so they are left zero-valued). Failures are returned
// so the caller can emit a non-fatal stderr warning without changing its
// exit code.
func RecordWitness(path, toolVersion string, opts Options, lockfilePath string, report *Report, rendered []byte) error {
	rec := witness.Record{
		Tool:     "lock-verify",
		Version:  toolVersion,
		Inputs:   []witness.Input{{Path: lockfilePath}},
		Params:   witnessParams(opts),
		Outcome:  report.Outcome,
		ExitCode: ExitCode(report.Outcome),
	}
	_, err := witness.Append(path, rec, rendered)
	return err
}

// witnessParams records the subcommand, the --root the operator supplied
// (null when none was given), and --strict.
func witnessParams(opts Options) map[string]interface{} {
	params := map[string]interface{}{
		"subcommand": "verify",
		"strict":     opts.Strict,
	}
	if opts.HasRoot {
		params["root"] = opts.Root
	} else {
		params["root"] = nil
	}
	return params
}

func hasTraversalSegment(path string) bool {
	normalized := strings.ReplaceAll(path, "\\", "/")
	for _, seg := range strings.Split(normalized, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}
