package lockfile

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/cmdrvl/lock/pkg/ingest"
)

// Meta is the run metadata supplied by the caller alongside the input
// records: operator annotations and the running tool's own version.
type Meta struct {
	DatasetID   *string
	AsOf        *string
	Note        *string
	ToolVersion string
	Created     string // RFC 3339 UTC, seconds precision, Z suffix
}

// ClassificationError reports a record that could not become a Member
// or SkippedEntry, with the line number it came from.
type ClassificationError struct {
	Line    int
	Message string
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("lockfile: line %d: %s", e.Line, e.Message)
}

// MissingHashError collects every record missing a usable bytes_hash,
// for the E_MISSING_HASH refusal.
type MissingHashError struct {
	Paths []string
}

func (e *MissingHashError) Error() string {
	return fmt.Sprintf("lockfile: %d record(s) missing bytes_hash", len(e.Paths))
}

// CheckHashes is the hash gate: every record that is not _skipped must
// carry a non-empty string bytes_hash. This runs before classification
// so the refusal can name every offending record in one pass.
func CheckHashes(records []ingest.Record) error {
	var missing []string
	for _, rec := range records {
		if boolField(rec.Data, "_skipped") {
			continue
		}
		if s, ok := rec.Data["bytes_hash"].(string); !ok || s == "" {
			missing = append(missing, recordPath(rec.Data))
		}
	}
	if len(missing) > 0 {
		return &MissingHashError{Paths: missing}
	}
	return nil
}

// Assemble classifies records and produces the Lockfile value with
// lock_hash left empty, ready for the self-hash engine.
func Assemble(records []ingest.Record, meta Meta) (*Lockfile, error) {
	members := make([]Member, 0, len(records))
	skipped := make([]SkippedEntry, 0)
	toolVersions := make(map[string]string)

	for _, rec := range records {
		mergeToolVersions(toolVersions, rec.Data)

		if boolField(rec.Data, "_skipped") {
			entry, err := classifySkipped(rec)
			if err != nil {
				return nil, err
			}
			skipped = append(skipped, entry)
			continue
		}

		member, err := classifyMember(rec)
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}

	toolVersions["lock"] = meta.ToolVersion

	sort.SliceStable(members, func(i, j int) bool { return members[i].Path < members[j].Path })
	sort.SliceStable(skipped, func(i, j int) bool { return skipped[i].Path < skipped[j].Path })

	return &Lockfile{
		Version:      SchemaVersion,
		LockHash:     "",
		DatasetID:    meta.DatasetID,
		AsOf:         meta.AsOf,
		Note:         meta.Note,
		Created:      meta.Created,
		ToolVersions: toolVersions,
		Profiles:     []string{},
		Members:      members,
		Skipped:      skipped,
		MemberCount:  uint64(len(members)),
		SkippedCount: uint64(len(skipped)),
	}, nil
}

func classifyMember(rec ingest.Record) (Member, error) {
	path := recordPath(rec.Data)
	if path == "" {
		return Member{}, &ClassificationError{Line: rec.Line, Message: "record has neither relative_path nor path"}
	}
	bytesHash, ok := rec.Data["bytes_hash"].(string)
	if !ok || bytesHash == "" {
		return Member{}, &ClassificationError{Line: rec.Line, Message: "record is missing bytes_hash"}
	}
	size, ok := numberField(rec.Data, "size")
	if !ok {
		return Member{}, &ClassificationError{Line: rec.Line, Message: "record is missing size"}
	}

	m := Member{
		Path:      normalizePath(path),
		BytesHash: bytesHash,
		Size:      size,
	}
	if fp, ok := rec.Data["fingerprint"].(map[string]interface{}); ok {
		m.Fingerprint = classifyFingerprint(fp)
	}
	return m, nil
}

func classifyFingerprint(fp map[string]interface{}) *FingerprintResult {
	result := &FingerprintResult{
		FingerprintID:      stringField(fp, "fingerprint_id"),
		FingerprintVersion: stringField(fp, "fingerprint_version"),
		Matched:            boolField(fp, "matched"),
	}
	if ch, ok := fp["content_hash"].(string); ok {
		result.ContentHash = &ch
	}
	return result
}

func classifySkipped(rec ingest.Record) (SkippedEntry, error) {
	path := recordPath(rec.Data)
	if path == "" {
		return SkippedEntry{}, &ClassificationError{Line: rec.Line, Message: "skipped record has neither relative_path nor path"}
	}

	var warnings []Warning
	if raw, ok := rec.Data["_warnings"].([]interface{}); ok {
		warnings = make([]Warning, 0, len(raw))
		for _, w := range raw {
			wm, ok := w.(map[string]interface{})
			if !ok {
				continue
			}
			warnings = append(warnings, Warning{
				Tool:    stringField(wm, "tool"),
				Code:    stringField(wm, "code"),
				Message: stringField(wm, "message"),
				Detail:  renderDetail(wm["detail"]),
			})
		}
	}
	if warnings == nil {
		warnings = []Warning{}
	}

	return SkippedEntry{
		Path:     normalizePath(path),
		Warnings: warnings,
	}, nil
}

// renderDetail copies a warning's detail map, rendering any non-string
// value through its JSON representation.
func renderDetail(raw interface{}) map[string]string {
	out := map[string]string{}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return out
	}
	for k, v := range m {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			out[k] = fmt.Sprintf("%v", v)
			continue
		}
		out[k] = string(b)
	}
	return out
}

// mergeToolVersions applies first-seen-wins semantics: a tool_versions
// entry with a string value is inserted only if the key isn't already
// present.
func mergeToolVersions(into map[string]string, data map[string]interface{}) {
	tv, ok := data["tool_versions"].(map[string]interface{})
	if !ok {
		return
	}
	for k, v := range tv {
		if _, exists := into[k]; exists {
			continue
		}
		if s, ok := v.(string); ok {
			into[k] = s
		}
	}
}

func recordPath(data map[string]interface{}) string {
	if s, ok := data["relative_path"].(string); ok && s != "" {
		return s
	}
	if s, ok := data["path"].(string); ok && s != "" {
		return s
	}
	return ""
}

// normalizePath replaces every backslash with a forward slash; no other
// transformation is applied.
func normalizePath(p string) string {
	out := make([]rune, 0, len(p))
	for _, r := range p {
		if r == '\\' {
			out = append(out, '/')
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func boolField(m map[string]interface{}, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func numberField(m map[string]interface{}, key string) (uint64, bool) {
	switch v := m[key].(type) {
	case json.Number:
		n, err := strconv.ParseUint(v.String(), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	case nil:
		return 0, false
	default:
		return 0, false
	}
}
