package route

import (
	"regexp"
	"strings"
)

// ContextReference is a context-scoped question extracted from a user reply
type ContextReference struct {
	ContextName string // The referenced context name, without the leading "@"
	Question    string // The question text after the colon
	OriginalRaw string // The original matched text
}

// Reply pattern:
//
//	@<contextName>: <question>
//
// Free-text routing is a fallback path; anything that does not match the
// pattern strictly is treated as a plain new question.
var contextReferencePattern = regexp.MustCompile(`^@([^\s:]+)\s*:\s*(.+)$`)

// ParseContextReference extracts a context-scoped question from a reply.
// Returns ok=false when the reply is not a context reference.
func ParseContextReference(reply string) (ContextReference, bool) {
	trimmed := strings.TrimSpace(reply)

	match := contextReferencePattern.FindStringSubmatch(trimmed)
	if match == nil {
		return ContextReference{}, false
	}

	question := strings.TrimSpace(match[2])
	if question == "" {
		return ContextReference{}, false
	}

	return ContextReference{
		ContextName: match[1],
		Question:    question,
		OriginalRaw: trimmed,
	}, true
}

// ParseSelection interprets a disambiguation reply as a 1-based option index.
// Accepts a bare number or an exact option label match (case-insensitive).
// Returns -1 when the reply selects nothing valid.
func ParseSelection(reply string, options []string) int {
	trimmed := strings.TrimSpace(reply)
	if trimmed == "" {
		return -1
	}

	if idx := parseIndex(trimmed); idx >= 1 && idx <= len(options) {
		return idx
	}

	for i, opt := range options {
		if strings.EqualFold(trimmed, opt) {
			return i + 1
		}
	}

	return -1
}

func parseIndex(s string) int {
	idx := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return -1
		}
		idx = idx*10 + int(r-'0')
		if idx > 1000 {
			return -1
		}
	}
	return idx
}
