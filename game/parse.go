package game

import (
	"regexp"
	"strings"
)

// Utterance is a parsed generator response. Structured output carries a
// private reasoning block that must never enter the shared log; Raw output
// has no reasoning and Message holds the whole text.
type Utterance struct {
	Reasoning string
	Message   string
}

var reasoningRegex = regexp.MustCompile(`(?s)<reasoning>(.*?)</reasoning>`)

// ParseUtterance splits an optional <reasoning>...</reasoning> block from
// the spoken message. Unstructured text passes through untouched.
func ParseUtterance(raw string) Utterance {
	match := reasoningRegex.FindStringSubmatch(raw)
	if match == nil {
		return Utterance{Message: strings.TrimSpace(raw)}
	}
	return Utterance{
		Reasoning: strings.TrimSpace(match[1]),
		Message:   strings.TrimSpace(reasoningRegex.ReplaceAllString(raw, "")),
	}
}

var (
	voteLineRegex   = regexp.MustCompile(`(?im)^\s*VOTE:\s*(.+)$`)
	reasonLineRegex = regexp.MustCompile(`(?im)^\s*REASON:\s*(.+)$`)
	targetLineRegex = regexp.MustCompile(`(?im)^\s*TARGET:\s*(.+)$`)
)

// ParseVote extracts a ballot from free text. It first looks for the
// expected VOTE:/REASON: lines, then degrades to scanning the raw text for
// any valid candidate name before giving up.
func ParseVote(raw string, candidates []string) (target, reason string, ok bool) {
	if match := voteLineRegex.FindStringSubmatch(raw); match != nil {
		if name := matchCandidate(match[1], candidates); name != "" {
			target = name
		}
	}
	if target == "" {
		target = scanForCandidate(raw, candidates)
	}
	if target == "" {
		return "", "", false
	}

	if match := reasonLineRegex.FindStringSubmatch(raw); match != nil {
		reason = strings.TrimSpace(match[1])
	}
	return target, reason, true
}

// ParseTarget extracts a kill target from free text: a TARGET: line first,
// then a raw name scan.
func ParseTarget(raw string, candidates []string) (string, bool) {
	if match := targetLineRegex.FindStringSubmatch(raw); match != nil {
		if name := matchCandidate(match[1], candidates); name != "" {
			return name, true
		}
	}
	if name := scanForCandidate(raw, candidates); name != "" {
		return name, true
	}
	return "", false
}

// matchCandidate finds a candidate name inside a single extracted value.
func matchCandidate(value string, candidates []string) string {
	value = strings.ToLower(strings.Trim(strings.TrimSpace(value), `"'.`))
	for _, name := range candidates {
		if strings.ToLower(name) == value {
			return name
		}
	}
	// The model sometimes appends trailing words ("VOTE: Jay, obviously")
	for _, name := range candidates {
		if strings.Contains(value, strings.ToLower(name)) {
			return name
		}
	}
	return ""
}

// scanForCandidate returns the candidate whose name appears earliest in
// the raw text, or "".
func scanForCandidate(raw string, candidates []string) string {
	lower := strings.ToLower(raw)
	best := ""
	bestPos := len(lower) + 1
	for _, name := range candidates {
		if pos := strings.Index(lower, strings.ToLower(name)); pos >= 0 && pos < bestPos {
			best = name
			bestPos = pos
		}
	}
	return best
}

const wordPunctuation = `.,!?;:'"()[]{}`

// RemoveWord removes the first token of will that equals word under
// case-insensitive, punctuation-stripped comparison. When no token
// matches, the original text is returned byte-for-byte unchanged.
func RemoveWord(will, word string) string {
	want := strings.ToLower(strings.Trim(word, wordPunctuation))
	if want == "" {
		return will
	}

	tokens := strings.Fields(will)
	for i, token := range tokens {
		if strings.ToLower(strings.Trim(token, wordPunctuation)) == want {
			return strings.Join(append(tokens[:i:i], tokens[i+1:]...), " ")
		}
	}
	return will
}
