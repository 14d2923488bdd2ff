// Package oracle answers narrow classification questions about game
// messages ("who is being accused?", "is this an echo chamber?") by asking
// the LLM with tightly constrained prompts. Every query runs a cheap local
// pre-filter first so obviously inapplicable messages never cost an API
// call, and every transport or parse failure degrades to a no-signal
// answer. The speaker-selection cascade must always complete even when the
// oracle is down.
package oracle

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"mafia/llm"
	"mafia/models"
)

// Oracle is stateless: every query is a pure function of the messages and
// active agent names it is given. Callers own all state updates.
type Oracle struct {
	generate llm.GenerateFunc
	logger   *logrus.Logger
}

// New creates an oracle backed by the given generation function.
func New(generate llm.GenerateFunc, logger *logrus.Logger) *Oracle {
	if logger == nil {
		logger = logrus.New()
	}
	return &Oracle{generate: generate, logger: logger}
}

// FindAddressed reports which single active agent a message is directly
// addressing or accusing, or "" if none. Deliberately conservative:
// ambiguous, generic, or passing mentions return "" so defense priority
// does not over-trigger.
func (o *Oracle) FindAddressed(ctx context.Context, messageText string, activeNames []string) string {
	if !mentionsAnyName(messageText, activeNames) {
		return ""
	}

	prompt := fmt.Sprintf(`Analyze this message from a Mafia game conversation:

MESSAGE: "%s"

ACTIVE PLAYERS: %s

Question: Is this message DIRECTLY addressing, accusing, or questioning a specific player?

Rules:
- Only return a name if the message is CLEARLY directed AT that person
- Questions like "Aryan, why did you..." -> return "Aryan"
- Accusations like "I think Jay is lying" -> return "Jay"
- General discussion like "I agree with what Jay said" -> return "none"
- Mentions in passing -> return "none"

Respond with ONLY the player's name, or "none" if not directly addressing anyone.

Your answer (just the name or "none"):`, messageText, strings.Join(activeNames, ", "))

	response, err := o.generate(ctx, prompt)
	if err != nil {
		o.logger.WithError(err).Warn("addressed-player detection failed, treating as no signal")
		return ""
	}

	answer := strings.ToLower(strings.Trim(strings.TrimSpace(response), `"'`))
	for _, name := range activeNames {
		if strings.ToLower(name) == answer {
			return name
		}
	}
	return ""
}

// FindQuestioned reports which active agents the message asks a direct
// question of. May return multiple names; returns nil when the message
// contains no question or no agent name.
func (o *Oracle) FindQuestioned(ctx context.Context, messageText string, activeNames []string) []string {
	if !strings.Contains(messageText, "?") || !mentionsAnyName(messageText, activeNames) {
		return nil
	}

	prompt := fmt.Sprintf(`Analyze this message from a Mafia game conversation:

MESSAGE: "%s"

ACTIVE PLAYERS: %s

Question: Which players, if any, are being asked a DIRECT question in this message?

Rules:
- Only include a player if the question is clearly aimed at them by name
- Rhetorical questions aimed at the whole group -> return "none"
- Multiple players can be questioned in one message

Respond with ONLY a comma-separated list of player names, or "none".

Your answer:`, messageText, strings.Join(activeNames, ", "))

	response, err := o.generate(ctx, prompt)
	if err != nil {
		o.logger.WithError(err).Warn("questioned-player detection failed, treating as no signal")
		return nil
	}

	answer := strings.ToLower(strings.TrimSpace(response))
	if answer == "none" || answer == "" {
		return nil
	}

	var questioned []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(answer, ",") {
		part = strings.Trim(strings.TrimSpace(part), `"'.`)
		for _, name := range activeNames {
			if strings.ToLower(name) == part && !seen[name] {
				seen[name] = true
				questioned = append(questioned, name)
			}
		}
	}
	return questioned
}

// IsUnproductiveLoop reports whether the recent window is an echo chamber:
// everyone repeating the same point with no new information. On oracle
// failure it falls back to a deterministic keyword heuristic instead of
// failing the call.
func (o *Oracle) IsUnproductiveLoop(ctx context.Context, recent []models.Message) bool {
	if len(recent) < 4 {
		return false
	}
	window := recent[len(recent)-4:]

	var lines []string
	for _, m := range window {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Speaker, m.Text))
	}

	prompt := fmt.Sprintf(`Analyze these recent messages from a Mafia game:

%s

Question: Are these messages an "echo chamber" where everyone is repeating the same point without adding new information?

Signs of echo chamber:
- Multiple people saying essentially the same thing
- Just agreeing with each other without new evidence
- Repeating the same keywords/phrases
- No progression in the argument

Signs of healthy conversation:
- New evidence being introduced
- Different perspectives being shared
- The discussion is moving forward

Respond with ONLY "yes" if this is an echo chamber, or "no" if the conversation is progressing.

Your answer (just "yes" or "no"):`, strings.Join(lines, "\n"))

	response, err := o.generate(ctx, prompt)
	if err != nil {
		o.logger.WithError(err).Warn("echo chamber detection failed, using keyword fallback")
		return keywordLoopHeuristic(window)
	}

	return strings.ToLower(strings.TrimSpace(response)) == "yes"
}

// loopKeywords groups the phrases that dominate stuck discussions. A
// category counts when any of its words appears in a message.
var loopKeywords = [][]string{
	{"consensus", "agree", "same thing"},
	{"suspicious", "sus", "suspect"},
	{"deflecting", "deflect", "dodging"},
	{"evasive", "avoiding", "vague"},
}

// keywordLoopHeuristic is the deterministic fallback: the window is a loop
// when at least 2 keyword categories each appear in at least 3 of the
// last 4 messages.
func keywordLoopHeuristic(window []models.Message) bool {
	if len(window) < 4 {
		return false
	}
	window = window[len(window)-4:]

	contents := make([]string, len(window))
	for i, m := range window {
		contents[i] = strings.ToLower(m.Text)
	}

	sharedCategories := 0
	for _, category := range loopKeywords {
		hits := 0
		for _, content := range contents {
			for _, word := range category {
				if strings.Contains(content, word) {
					hits++
					break
				}
			}
		}
		if hits >= 3 {
			sharedCategories++
		}
	}
	return sharedCategories >= 2
}

func mentionsAnyName(text string, names []string) bool {
	lower := strings.ToLower(text)
	for _, name := range names {
		if strings.Contains(lower, strings.ToLower(name)) {
			return true
		}
	}
	return false
}
