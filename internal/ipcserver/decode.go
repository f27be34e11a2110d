package ipcserver

import (
	"encoding/json"
	"fmt"
	"strings"

	goccyjson "github.com/goccy/go-json"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/nudge-sh/nudge/internal/errs"
	"github.com/nudge-sh/nudge/pkg/protocol"
)

// schema is compiled once at package init from the embedded requestSchema.
var schema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("request.json", strings.NewReader(requestSchema)); err != nil {
		panic(fmt.Sprintf("ipcserver: invalid embedded request schema: %v", err))
	}
	s, err := compiler.Compile("request.json")
	if err != nil {
		panic(fmt.Sprintf("ipcserver: failed to compile request schema: %v", err))
	}
	return s
}

// decodeRequest validates body against the request schema (via the
// stdlib-decoded form jsonschema/v5 expects) and, if valid, decodes it into
// protocol.Request using goccy/go-json — the wire codec's actual unmarshal
// path, kept separate from schema validation's generic map decode.
func decodeRequest(body []byte) (protocol.Request, error) {
	var generic interface{}
	if err := json.Unmarshal(body, &generic); err != nil {
		return protocol.Request{}, errs.Wrap(errs.RequestMalformed, "invalid JSON body", err)
	}
	if err := schema.Validate(generic); err != nil {
		return protocol.Request{}, errs.Wrap(errs.RequestMalformed, "request failed schema validation", err)
	}

	var req protocol.Request
	if err := goccyjson.Unmarshal(body, &req); err != nil {
		return protocol.Request{}, errs.Wrap(errs.RequestMalformed, "decode request", err)
	}

	switch req.Op {
	case "complete":
		req.Kind = protocol.KindCompletion
		if req.CWD == "" {
			return protocol.Request{}, errs.New(errs.RequestMalformed, "complete requires cwd")
		}
	case "diagnose":
		req.Kind = protocol.KindDiagnosis
		if req.Command == "" {
			return protocol.Request{}, errs.New(errs.RequestMalformed, "diagnose requires command")
		}
	case "status", "shutdown", "invalidate_context":
		// control ops carry no mandatory payload fields beyond op
	default:
		return protocol.Request{}, errs.New(errs.RequestMalformed, "unknown op: "+req.Op)
	}

	return req, nil
}

func encodeResponse(resp protocol.Response) ([]byte, error) {
	body, err := goccyjson.Marshal(resp)
	if err != nil {
		return nil, errs.Wrap(errs.IPCProtocol, "encode response", err)
	}
	return body, nil
}
