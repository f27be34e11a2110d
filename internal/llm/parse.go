package llm

import (
	"strings"

	json "github.com/goccy/go-json"

	"github.com/nudge-sh/nudge/pkg/protocol"
)

// maxListRows caps the list format at 6 rows (spec.md §4.6).
const maxListRows = 6

// Parsed is the format-aware decode of one LLM reply body.
type Parsed struct {
	Suggestion string
	Candidates []protocol.Candidate
	Warning    string
}

// stripFences removes a single leading/trailing markdown code fence, if
// present, and trims surrounding whitespace.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return text
	}
	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Parse decodes body according to format, falling back to plain parsing
// whenever a richer format fails to decode (spec.md §4.6: "on malformed
// JSON, fall back to plain on the same body").
func Parse(format protocol.Format, body string) Parsed {
	body = stripFences(body)

	switch format {
	case protocol.FormatList:
		return parseList(body)
	case protocol.FormatJSON:
		if parsed, ok := parseJSON(body); ok {
			return parsed
		}
		return parsePlain(body)
	default:
		return parsePlain(body)
	}
}

func parsePlain(body string) Parsed {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, " \t")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "```") {
			continue
		}
		return Parsed{Suggestion: line}
	}
	return Parsed{}
}

func parseList(body string) Parsed {
	var candidates []protocol.Candidate
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		for len(fields) < 5 {
			fields = append(fields, "")
		}
		risk, command, warning := strings.TrimSpace(fields[0]), strings.TrimSpace(fields[1]), strings.TrimSpace(fields[2])
		reason := strings.TrimSpace(fields[3])
		if command == "" {
			continue
		}
		_ = warning // per-row warnings aren't part of protocol.Candidate; see Response.Warning
		candidates = append(candidates, protocol.Candidate{
			Text:        command,
			ReasonShort: reason,
			Risk:        normalizeRisk(risk),
		})
		if len(candidates) >= maxListRows {
			break
		}
	}
	result := Parsed{Candidates: candidates}
	if len(candidates) > 0 {
		result.Suggestion = candidates[0].Text
	}
	return result
}

type jsonSuggestion struct {
	Text         string `json:"text"`
	SummaryShort string `json:"summary_short"`
	ReasonShort  string `json:"reason_short"`
}

type jsonResponse struct {
	Suggestions []jsonSuggestion `json:"suggestions"`
	Warning     string           `json:"warning"`
}

func parseJSON(body string) (Parsed, bool) {
	var decoded jsonResponse
	if err := json.Unmarshal([]byte(body), &decoded); err != nil {
		return Parsed{}, false
	}
	if len(decoded.Suggestions) == 0 {
		return Parsed{}, false
	}
	candidates := make([]protocol.Candidate, 0, len(decoded.Suggestions))
	for _, s := range decoded.Suggestions {
		if s.Text == "" {
			continue
		}
		candidates = append(candidates, protocol.Candidate{
			Text:         s.Text,
			SummaryShort: s.SummaryShort,
			ReasonShort:  s.ReasonShort,
			Risk:         protocol.RiskSafe,
		})
	}
	if len(candidates) == 0 {
		return Parsed{}, false
	}
	return Parsed{
		Suggestion: candidates[0].Text,
		Candidates: candidates,
		Warning:    decoded.Warning,
	}, true
}

func normalizeRisk(s string) protocol.Risk {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dangerous":
		return protocol.RiskDangerous
	case "moderate":
		return protocol.RiskModerate
	default:
		return protocol.RiskSafe
	}
}
