// Package witness implements the hash-chained, append-only witness
// ledger: every tool invocation's outcome, appended under an exclusive
// file lock with a content-addressed id linking back to the prior
// record.
package witness

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// EnvPath is the environment variable that, when set and non-empty,
// overrides the default witness ledger location.
const EnvPath = "EPISTEMIC_WITNESS"

// ResolvePath returns the ledger file path: the environment override if
// set, else $HOME/.epistemic/witness.jsonl, falling back to the current
// directory if no home directory can be determined.
func ResolvePath() string {
	if v := os.Getenv(EnvPath); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".epistemic", "witness.jsonl")
}

// Append builds and writes one witness record. Callers supply a
// partially-built Record (Tool, Version, BinaryHash, Inputs, Params,
// Outcome, ExitCode); ID, Prev, TS, and OutputHash are computed here
// under the exclusive lock, atomically with respect to other appenders
// on the same filesystem.
func Append(path string, rec Record, stdout []byte) (Record, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Record{}, fmt.Errorf("witness: create ledger dir: %w", err)
	}

	fl := flock.New(path)
	if err := fl.Lock(); err != nil {
		return Record{}, fmt.Errorf("witness: acquire lock: %w", err)
	}
	defer fl.Unlock()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return Record{}, fmt.Errorf("witness: open ledger: %w", err)
	}
	defer f.Close()

	prev, err := lastRecordID(f)
	if err != nil {
		return Record{}, fmt.Errorf("witness: read last record: %w", err)
	}

	rec.Prev = prev
	rec.TS = time.Now().UTC().Format("2006-01-02T15:04:05Z")
	rec.OutputHash = OutputHash(stdout)

	finalized, err := finalize(rec)
	if err != nil {
		return Record{}, err
	}

	line, err := json.Marshal(finalized)
	if err != nil {
		return Record{}, fmt.Errorf("witness: marshal record: %w", err)
	}

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return Record{}, fmt.Errorf("witness: seek: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return Record{}, fmt.Errorf("witness: write: %w", err)
	}
	if err := f.Sync(); err != nil {
		return Record{}, fmt.Errorf("witness: sync: %w", err)
	}

	return finalized, nil
}

// lastRecordID scans f for the id of the last parseable, non-blank
// line. Unparseable lines (including a partially-written final line)
// are silently skipped, since readers must tolerate a torn tail.
func lastRecordID(f *os.File) (*string, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	var lastID string
	found := false
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		lastID = rec.ID
		found = true
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &lastID, nil
}

// ReadAll reads every parseable record from the ledger, in file order.
// A missing ledger file yields an empty slice, not an error.
func ReadAll(path string) ([]Record, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("witness: open ledger: %w", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("witness: read ledger: %w", err)
	}
	return records, nil
}

// Filters selects a subset of witness records. Zero-value fields are
// not applied. Since/Until are raw RFC 3339 strings; an unparseable
// filter value is a guard that matches nothing, rather than silently
// falling back to lexical comparison.
type Filters struct {
	Tool      string
	Outcome   string
	InputHash string
	Since     string
	Until     string
}

func (f Filters) matches(rec Record) bool {
	if f.Tool != "" && rec.Tool != f.Tool {
		return false
	}
	if f.Outcome != "" && rec.Outcome != f.Outcome {
		return false
	}
	if f.InputHash != "" {
		hit := false
		for _, in := range rec.Inputs {
			if strings.Contains(in.Hash, f.InputHash) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	if f.Since != "" {
		sinceT, err := time.Parse(time.RFC3339, f.Since)
		if err != nil {
			return false
		}
		recT, err := time.Parse(time.RFC3339, rec.TS)
		if err != nil || recT.Before(sinceT) {
			return false
		}
	}
	if f.Until != "" {
		untilT, err := time.Parse(time.RFC3339, f.Until)
		if err != nil {
			return false
		}
		recT, err := time.Parse(time.RFC3339, rec.TS)
		if err != nil || recT.After(untilT) {
			return false
		}
	}
	return true
}

// Query reads the ledger, applies filters, sorts most-recent-first, and
// truncates to limit (limit <= 0 means unlimited). Records sharing a
// timestamp are ordered later-appended first.
func Query(path string, f Filters, limit int) ([]Record, error) {
	records, err := ReadAll(path)
	if err != nil {
		return nil, err
	}

	// Collect newest-first in file order so the stable sort below keeps
	// the later-appended record first among equal timestamps.
	matched := make([]Record, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		if f.matches(records[i]) {
			matched = append(matched, records[i])
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return moreRecent(matched[i], matched[j])
	})

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// Last returns the single most recent matching record.
func Last(path string, f Filters) (*Record, error) {
	records, err := Query(path, f, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// Count returns the number of matching records.
func Count(path string, f Filters) (int, error) {
	records, err := Query(path, f, 0)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// moreRecent reports whether a sorts before b (a is more recent),
// comparing parsed instants when both parse, falling back to lexical
// comparison of the raw ts string when either does not.
func moreRecent(a, b Record) bool {
	at, aerr := time.Parse(time.RFC3339, a.TS)
	bt, berr := time.Parse(time.RFC3339, b.TS)
	if aerr == nil && berr == nil {
		return at.After(bt)
	}
	return a.TS > b.TS
}
