package llm

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/nudge-sh/nudge/pkg/protocol"
)

// defaultSystemPrompt is the compile-time embedded system prompt (spec.md
// §4.6: "a compile-time embedded system prompt, overridable by
// config.system_prompt").
//
//go:embed systemprompt.txt
var defaultSystemPrompt string

// shellContracts maps each Format to the compile-time response-contract
// template that tells the model exactly what shape to answer in.
var shellContracts = map[protocol.Format]string{
	protocol.FormatPlain: "Respond with exactly one line: the completed shell command. " +
		"No explanation, no markdown fence, no leading prompt characters.",
	protocol.FormatList: "Respond with up to 6 lines, each tab-separated as:\n" +
		"risk\tcommand\twarning\twhy\tdiff\n" +
		"risk is one of safe|moderate|dangerous. Leave warning/diff blank when not applicable. " +
		"Do not include a header row.",
	protocol.FormatJSON: `Respond with a single JSON object: ` +
		`{"suggestions":[{"text":"...","summary_short":"...","reason_short":"..."}],"warning":"..."}. ` +
		"No markdown fence, no commentary outside the JSON object.",
}

// SystemPrompt returns the effective system prompt: configOverride if
// non-empty, otherwise the embedded default.
func SystemPrompt(configOverride string) string {
	if strings.TrimSpace(configOverride) != "" {
		return configOverride
	}
	return defaultSystemPrompt
}

// BuildPrompt assembles the full user-turn prompt: the shell-mode response
// contract, the serialized sanitized ContextBundle, and the raw buffer with
// cursor position marked.
func BuildPrompt(format protocol.Format, bundle *protocol.ContextBundle, buffer string, cursor int) string {
	var b strings.Builder

	contract, ok := shellContracts[format]
	if !ok {
		contract = shellContracts[protocol.FormatPlain]
	}
	b.WriteString(contract)
	b.WriteString("\n\n")

	b.WriteString("Context:\n")
	for _, s := range bundle.Sections {
		fmt.Fprintf(&b, "[%s]\n%s\n\n", s.Kind, s.Payload)
	}

	marked := buffer
	if cursor >= 0 && cursor <= len(buffer) {
		marked = buffer[:cursor] + "<CURSOR>" + buffer[cursor:]
	}
	fmt.Fprintf(&b, "Current command line (cursor marked as <CURSOR>):\n%s\n", marked)

	return b.String()
}
