package main

// lockfileSchemaJSON is a minimal JSON Schema document describing the
// Lockfile shape, for operators who want to validate
// output without reading the specification prose.
const lockfileSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "lock.v0",
  "type": "object",
  "required": ["version", "lock_hash", "created", "tool_versions", "profiles", "members", "skipped", "member_count", "skipped_count"],
  "properties": {
    "version": {"type": "string", "const": "lock.v0"},
    "lock_hash": {"type": "string", "pattern": "^sha256:[0-9a-f]{64}$"},
    "dataset_id": {"type": ["string", "null"]},
    "as_of": {"type": ["string", "null"]},
    "note": {"type": ["string", "null"]},
    "created": {"type": "string", "format": "date-time"},
    "tool_versions": {"type": "object", "additionalProperties": {"type": "string"}},
    "profiles": {"type": "array", "items": {"type": "string"}},
    "members": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["path", "bytes_hash", "size", "fingerprint"],
        "properties": {
          "path": {"type": "string"},
          "bytes_hash": {"type": "string"},
          "size": {"type": "integer", "minimum": 0},
          "fingerprint": {
            "type": ["object", "null"],
            "properties": {
              "fingerprint_id": {"type": "string"},
              "fingerprint_version": {"type": "string"},
              "matched": {"type": "boolean"},
              "content_hash": {"type": ["string", "null"]}
            }
          }
        }
      }
    },
    "skipped": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["path", "warnings"],
        "properties": {
          "path": {"type": "string"},
          "warnings": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["tool", "code", "message", "detail"],
              "properties": {
                "tool": {"type": "string"},
                "code": {"type": "string"},
                "message": {"type": "string"},
                "detail": {"type": "object", "additionalProperties": {"type": "string"}}
              }
            }
          }
        }
      }
    },
    "member_count": {"type": "integer", "minimum": 0},
    "skipped_count": {"type": "integer", "minimum": 0}
  }
}`

// witnessRecordSchemaJSON documents the append-only ledger's record
// shape, for operators consuming the JSONL ledger directly.
const witnessRecordSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "witness-record",
  "type": "object",
  "required": ["id", "tool", "version", "binary_hash", "inputs", "params", "outcome", "exit_code", "output_hash", "prev", "ts"],
  "properties": {
    "id": {"type": "string", "pattern": "^blake3:[0-9a-f]{64}$"},
    "tool": {"type": "string"},
    "version": {"type": "string"},
    "binary_hash": {"type": ["string", "null"]},
    "inputs": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["path", "hash", "bytes"],
        "properties": {
          "path": {"type": "string"},
          "hash": {"type": "string"},
          "bytes": {"type": "integer", "minimum": 0}
        }
      }
    },
    "params": {"type": "object"},
    "outcome": {"type": "string"},
    "exit_code": {"type": "integer", "enum": [0, 1, 2]},
    "output_hash": {"type": "string", "pattern": "^blake3:[0-9a-f]{64}$"},
    "prev": {"type": ["string", "null"]},
    "ts": {"type": "string", "format": "date-time"}
  }
}`
