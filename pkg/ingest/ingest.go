// Package ingest reads the upstream scanner's JSONL record stream.
//
// This is the ingestion collaborator the core specification treats as an
// external source: a finite ordered sequence of structured records, each
// tagged with the line number it came from. It does no classification and
// no hash validation beyond confirming each line parses as a JSON object;
// everything domain-specific lives in the lockfile assembler.
package ingest

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/cmdrvl/lock/pkg/canon"
)

// Record is one parsed input line: its 1-based line number and its
// generic JSON-object value.
type Record struct {
	Line int
	Data map[string]interface{}
}

// ParseError reports the line at which the input stream failed to parse.
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("ingest: line %d: %s", e.Line, e.Reason)
}

// Read consumes r as newline-delimited JSON, one object per line, with
// no blank lines permitted. It returns every record in input order; an
// empty stream yields a nil slice and no error — callers decide whether
// zero records is itself a refusal condition.
func Read(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var records []Record
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			return nil, &ParseError{Line: line, Reason: "blank line not permitted"}
		}
		v, err := canon.Decode([]byte(text))
		if err != nil {
			return nil, &ParseError{Line: line, Reason: fmt.Sprintf("invalid JSON: %v", err)}
		}
		obj, ok := v.(map[string]interface{})
		if !ok {
			return nil, &ParseError{Line: line, Reason: "record is not a JSON object"}
		}
		records = append(records, Record{Line: line, Data: obj})
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{Line: line + 1, Reason: fmt.Sprintf("read error: %v", err)}
	}
	return records, nil
}

// RecognizedVersions is the set of input record schema tags this tool
// understands.
var RecognizedVersions = map[string]bool{
	"vacuum.v0":     true,
	"hash.v0":       true,
	"fingerprint.v0": true,
}
