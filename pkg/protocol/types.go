// Package protocol defines the wire-level data model shared by the IPC
// server, the request arbiter, and every downstream pipeline stage.
package protocol

import "time"

// RequestKind distinguishes a completion request from a failed-command
// diagnosis request.
type RequestKind string

const (
	KindCompletion RequestKind = "completion"
	KindDiagnosis  RequestKind = "diagnosis"
)

// Format selects the response-contract template the LLM connector asks the
// model to follow, and the parser used to decode the reply.
type Format string

const (
	FormatPlain Format = "plain"
	FormatList  Format = "list"
	FormatJSON  Format = "json"
)

// ShellMode tags how the caller will render the response. Unknown modes
// fall back to "{shell}-inline" by convention of the caller, not here.
type ShellMode string

const (
	ShellZshInline   ShellMode = "zsh-inline"
	ShellZshAuto     ShellMode = "zsh-auto"
	ShellBashInline  ShellMode = "bash-inline"
	ShellBashPopup   ShellMode = "bash-popup"
	ShellPSInline    ShellMode = "ps-inline"
	ShellPSAuto      ShellMode = "ps-auto"
	ShellCmdInline   ShellMode = "cmd-inline"
)

// Risk classifies a suggested command's danger level.
type Risk string

const (
	RiskSafe      Risk = "safe"
	RiskModerate  Risk = "moderate"
	RiskDangerous Risk = "dangerous"
)

// MaxBufferBytes bounds Request.Buffer per spec.md §3.
const MaxBufferBytes = 64 * 1024

// Request is the decoded form of an IPC request frame, for either a
// completion or a diagnosis op (§6.1 of the spec names the wire ops
// "complete"/"diagnose"; Kind is the normalized internal form).
type Request struct {
	Op            string      `json:"op"`
	Kind          RequestKind `json:"-"`
	Buffer        string      `json:"buffer,omitempty"`
	Cursor        int         `json:"cursor,omitempty"`
	CWD           string      `json:"cwd"`
	Session       string      `json:"session"`
	ShellMode     ShellMode   `json:"shell_mode,omitempty"`
	Format        Format      `json:"format,omitempty"`
	LastExitCode  *int        `json:"last_exit_code,omitempty"`
	Command       string      `json:"command,omitempty"`
	ExitCode      int         `json:"exit_code,omitempty"`
	StderrBlob    string      `json:"stderr_blob,omitempty"`
	TimeoutMillis int64       `json:"timeout_ms,omitempty"`

	// Manual distinguishes an explicit, user-triggered completion request
	// (ttl_manual_ms) from an idle-delay auto-trigger (ttl_auto_ms). Shell
	// integrations that bind a dedicated keypress set this true; the
	// default (omitted) is the auto-delay path.
	Manual bool `json:"manual,omitempty"`
}

// Candidate is one ranked alternative suggestion.
type Candidate struct {
	Text         string `json:"text"`
	SummaryShort string `json:"summary_short,omitempty"`
	ReasonShort  string `json:"reason_short,omitempty"`
	Risk         Risk   `json:"risk"`
}

// Trace carries advisory, version-stable-within-a-minor-release
// instrumentation. Spec.md §9 treats its shape as non-contractual.
type Trace struct {
	Cache       string `json:"cache,omitempty"` // "hit" | "miss" | "stale"
	LatencyMS   int64  `json:"latency_ms,omitempty"`
	PluginsFired []string `json:"plugins_fired,omitempty"`
}

// Response is the encoded form of an IPC response frame.
type Response struct {
	OK         bool        `json:"ok"`
	Suggestion string      `json:"suggestion"`
	Candidates []Candidate `json:"candidates,omitempty"`
	Warning    *string     `json:"warning,omitempty"`
	Risk       Risk        `json:"risk,omitempty"`
	Trace      *Trace      `json:"trace,omitempty"`
	ErrorKind  string      `json:"error_kind,omitempty"`
	Message    string      `json:"message,omitempty"`

	// Running/PID/Version are populated only by the status control op
	// (spec.md §6.1: "status -> {running:true, pid, version}"); every
	// other response leaves them at their zero value and omitted.
	Running bool   `json:"running,omitempty"`
	PID     int    `json:"pid,omitempty"`
	Version string `json:"version,omitempty"`
}

// SectionKind enumerates the ContextBundle section kinds.
type SectionKind string

const (
	SectionHistory        SectionKind = "history"
	SectionSimilarHistory  SectionKind = "similar_history"
	SectionCWDListing     SectionKind = "cwd_listing"
	SectionExitCode       SectionKind = "exit_code"
	SectionSystemInfo     SectionKind = "system_info"
	SectionPluginPrefix   SectionKind = "plugin:"
)

// ContextSection is one ordered, priority-tagged piece of the context bundle
// handed to the LLM connector after truncation and sanitization.
type ContextSection struct {
	Kind      SectionKind `json:"kind"`
	Priority  int         `json:"priority"`
	Payload   string      `json:"payload_text"`
	Tokens    int         `json:"tokens"`
	Mandatory bool        `json:"-"`
}

// ContextBundle is the ordered collection of sections built by the gatherer.
type ContextBundle struct {
	Sections []ContextSection
}

// TotalTokens sums the estimated token counts across all sections.
func (b *ContextBundle) TotalTokens() int {
	total := 0
	for _, s := range b.Sections {
		total += s.Tokens
	}
	return total
}

// PluginOutput is the result of one context-gathering plugin invocation.
// Plugins never fail the request: a timed-out or erroring plugin yields
// OK=false with an empty Text.
type PluginOutput struct {
	Name      string        `json:"name"`
	OK        bool          `json:"ok"`
	Text      string        `json:"text"`
	Truncated bool          `json:"truncated"`
	Elapsed   time.Duration `json:"-"`
}
