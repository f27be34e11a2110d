package ipcserver

// requestSchema is the JSON Schema validated against every decoded request
// frame before it reaches the arbiter (spec.md §7's request_malformed error
// kind). It intentionally only constrains "op" and the types of fields that
// matter for routing; per-op required fields are enforced in decode.go,
// where a missing buffer/cwd can be reported with a more specific message
// than a generic schema validation failure.
const requestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "op": {
      "type": "string",
      "enum": ["complete", "diagnose", "status", "shutdown", "invalidate_context"]
    },
    "buffer": {"type": "string"},
    "cursor": {"type": "integer", "minimum": 0},
    "cwd": {"type": "string"},
    "session": {"type": "string"},
    "shell_mode": {"type": "string"},
    "format": {"type": "string", "enum": ["plain", "list", "json"]},
    "last_exit_code": {"type": "integer"},
    "command": {"type": "string"},
    "exit_code": {"type": "integer"},
    "stderr_blob": {"type": "string"},
    "timeout_ms": {"type": "integer", "minimum": 0},
    "manual": {"type": "boolean"}
  },
  "required": ["op"]
}`
