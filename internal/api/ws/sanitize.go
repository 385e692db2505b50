package ws

import (
	"html"

	"github.com/bomos/shell/internal/domain/sidecar"
	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer strips markup from sidecar output so the webview can show it
// as plain text.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer creates a sanitizer with bluemonday's strict policy.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{policy: bluemonday.StrictPolicy()}
}

// Text removes every tag and returns unescaped text.
func (s *Sanitizer) Text(text string) string {
	return html.UnescapeString(s.policy.Sanitize(text))
}

// Line returns a copy of l with sanitized text.
func (s *Sanitizer) Line(l sidecar.Line) sidecar.Line {
	l.Text = s.Text(l.Text)
	return l
}

// Lines sanitizes lines in place and returns them.
func (s *Sanitizer) Lines(lines []sidecar.Line) []sidecar.Line {
	for i := range lines {
		lines[i] = s.Line(lines[i])
	}
	return lines
}
