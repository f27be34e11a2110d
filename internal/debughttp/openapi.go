package debughttp

import "net/http"

// openAPISpec documents the loopback debug surface only — the shell-facing
// IPC protocol (spec.md §6.1) is a length-prefixed JSON socket, not HTTP,
// and has no OpenAPI shape to describe.
const openAPISpec = `{
  "swagger": "2.0",
  "info": {
    "title": "nudge daemon debug API",
    "description": "Loopback-only diagnostics surface. The shell completion protocol itself runs over a Unix domain socket, not HTTP.",
    "version": "1"
  },
  "basePath": "/",
  "paths": {
    "/healthz": {
      "get": {
        "summary": "Liveness probe",
        "responses": {
          "200": {"description": "daemon is up"}
        }
      }
    },
    "/metrics": {
      "get": {
        "summary": "Cache occupancy and telemetry counters",
        "responses": {
          "200": {"description": "current counter snapshot"}
        }
      }
    }
  }
}`

func handleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(openAPISpec))
}
