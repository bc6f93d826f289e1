// Package lockrun implements the lock orchestrator (C8): the linear
// pipeline from raw JSONL input bytes to a rendered lockfile (or a
// refusal), followed by a witness ledger append.
package lockrun

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/cmdrvl/lock/pkg/canon"
	"github.com/cmdrvl/lock/pkg/ingest"
	"github.com/cmdrvl/lock/pkg/lockfile"
	"github.com/cmdrvl/lock/pkg/lockhash"
	"github.com/cmdrvl/lock/pkg/refusal"
	"github.com/cmdrvl/lock/pkg/witness"
)

// Domain outcomes.
const (
	OutcomeCreated = "LOCK_CREATED"
	OutcomePartial = "LOCK_PARTIAL"
)

// Options configures one lock run.
type Options struct {
	Meta        lockfile.Meta
	NoWitness   bool
	WitnessPath string // empty means witness.ResolvePath()
}

// Result is the successful (non-refusal) outcome of a lock run.
type Result struct {
	Outcome        string
	ExitCode       int
	Rendered       []byte
	WitnessWarning string // non-empty if the (non-fatal) witness append failed
}

// Run executes the lock pipeline. Exactly one of (result, envelope) is
// non-nil on success/refusal; a non-nil error signals an unexpected
// internal failure (an encoder bug, never a user-input problem) that is
// not itself a structured refusal.
func Run(raw []byte, opts Options) (*Result, *refusal.Envelope, error) {
	records, err := ingest.Read(bytes.NewReader(raw))
	if err != nil {
		var pe *ingest.ParseError
		if errors.As(err, &pe) {
			e := refusal.New(refusal.SchemaLock, refusal.CodeBadInput, pe.Error(), nil,
				"fix the offending input line and re-run")
			return nil, &e, nil
		}
		e := refusal.New(refusal.SchemaLock, refusal.CodeBadInput, err.Error(), nil, "")
		return nil, &e, nil
	}

	if len(records) == 0 {
		e := refusal.New(refusal.SchemaLock, refusal.CodeEmptyInput,
			"input contains zero records", nil, "provide at least one JSONL record")
		return nil, &e, nil
	}

	for _, rec := range records {
		v, _ := rec.Data["version"].(string)
		if !ingest.RecognizedVersions[v] {
			e := refusal.New(refusal.SchemaLock, refusal.CodeBadInput,
				fmt.Sprintf("line %d: unrecognized record version %q", rec.Line, v), nil, "")
			return nil, &e, nil
		}
	}

	if err := lockfile.CheckHashes(records); err != nil {
		var mh *lockfile.MissingHashError
		if errors.As(err, &mh) {
			e := refusal.MissingHash(refusal.SchemaLock, mh.Paths)
			return nil, &e, nil
		}
		e := refusal.New(refusal.SchemaLock, refusal.CodeBadInput, err.Error(), nil, "")
		return nil, &e, nil
	}

	lf, err := lockfile.Assemble(records, opts.Meta)
	if err != nil {
		var ce *lockfile.ClassificationError
		if errors.As(err, &ce) {
			e := refusal.New(refusal.SchemaLock, refusal.CodeBadInput, ce.Error(),
				refusal.Detail{"line": ce.Line}, "")
			return nil, &e, nil
		}
		e := refusal.New(refusal.SchemaLock, refusal.CodeBadInput, err.Error(), nil, "")
		return nil, &e, nil
	}

	hash, err := lockhash.Compute(lf)
	if err != nil {
		return nil, nil, fmt.Errorf("lockrun: self-hash: %w", err)
	}
	lf.LockHash = hash

	rendered, err := canon.Marshal(lf)
	if err != nil {
		return nil, nil, fmt.Errorf("lockrun: render: %w", err)
	}

	outcome := OutcomeCreated
	if lf.SkippedCount > 0 {
		outcome = OutcomePartial
	}
	exitCode := 0
	if outcome == OutcomePartial {
		exitCode = 1
	}

	result := &Result{Outcome: outcome, ExitCode: exitCode, Rendered: rendered}

	if !opts.NoWitness {
		path := opts.WitnessPath
		if path == "" {
			path = witness.ResolvePath()
		}
		rec := witness.Record{
			Tool:     "lock",
			Version:  opts.Meta.ToolVersion,
			Inputs:   witnessInputs(lf),
			Params:   witnessParams(opts.Meta),
			Outcome:  outcome,
			ExitCode: exitCode,
		}
		if _, werr := witness.Append(path, rec, rendered); werr != nil {
			result.WitnessWarning = werr.Error()
		}
	}

	return result, nil, nil
}

func witnessInputs(lf *lockfile.Lockfile) []witness.Input {
	inputs := make([]witness.Input, 0, len(lf.Members))
	for _, m := range lf.Members {
		inputs = append(inputs, witness.Input{Path: m.Path, Hash: m.BytesHash, Bytes: m.Size})
	}
	return inputs
}

func witnessParams(meta lockfile.Meta) map[string]interface{} {
	params := map[string]interface{}{}
	if meta.DatasetID != nil {
		params["dataset_id"] = *meta.DatasetID
	}
	if meta.AsOf != nil {
		params["as_of"] = *meta.AsOf
	}
	if meta.Note != nil {
		params["note"] = *meta.Note
	}
	return params
}
