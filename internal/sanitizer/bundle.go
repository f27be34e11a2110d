package sanitizer

import "github.com/nudge-sh/nudge/pkg/protocol"

// RedactBundle applies Redact to every section's payload text in place,
// after gathering and before the connector (spec.md §4.5). The raw buffer
// is sanitized separately by the caller (it is sent after sanitization too,
// per spec.md §4.5's closing note).
func (s *Sanitizer) RedactBundle(b *protocol.ContextBundle) {
	for i := range b.Sections {
		b.Sections[i].Payload = s.Redact(b.Sections[i].Payload)
	}
}
