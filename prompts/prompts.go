// Package prompts builds the text sent to the generator. The game core
// supplies a log snapshot, the context-reset boundary, and behavioral
// flags derived from its own scheduling decisions; everything else here is
// template text.
package prompts

import (
	"fmt"
	"strings"

	"mafia/config"
	"mafia/models"
)

// SpeakerContext carries everything the speaker prompt needs from the core.
type SpeakerContext struct {
	Agent       *models.Agent
	Snapshot    []models.Message
	VoteHistory []models.VoteRecord
	// ResetIndex is the context-reset boundary: discussion before this log
	// index is already compacted into round summaries, so only messages
	// from it onward are shown verbatim.
	ResetIndex int
	Scratchpad string
	// Impatient marks a turn forced by patience overflow.
	Impatient bool
	// Mediator marks a turn granted to break a two-agent loop.
	Mediator bool
}

// SpeakerPrompt builds the discussion-turn prompt for an agent.
func SpeakerPrompt(sc SpeakerContext) string {
	personality := GetPersonality(sc.Agent.Name)

	var goal string
	if sc.Agent.Role == models.RoleMafia {
		goal = fmt.Sprintf(`You are secretly a MAFIA member. Your goal is to:
1. Deflect suspicion from yourself
2. Subtly cast doubt on villagers
3. Blend in naturally without being obvious

Your strategy: %s`, personality.MafiaStrategy)
	} else {
		goal = fmt.Sprintf(`You are a VILLAGER. Your goal is to:
1. Find and identify the mafia members
2. Ask probing questions
3. Analyze others' behavior and statements

Your strategy: %s`, personality.VillagerStrategy)
	}

	var toneHints []string
	if sc.Impatient {
		toneHints = append(toneHints, "You have been quiet for a long time and it is starting to look suspicious. Speak up with something substantial.")
	}
	if sc.Mediator {
		toneHints = append(toneHints, "Two players have been going back and forth and the discussion is stuck on them. Step in and steer the conversation somewhere new.")
	}
	tone := ""
	if len(toneHints) > 0 {
		tone = "\n" + strings.Join(toneHints, "\n")
	}

	scratchpad := ""
	if sc.Scratchpad != "" {
		scratchpad = fmt.Sprintf("\nNotes from your past games:\n%s\n", sc.Scratchpad)
	}

	return fmt.Sprintf(`You are %s, a player in a Mafia game (social deduction game).

PERSONALITY: %s
SPEAKING STYLE: %s

%s
%s%s
%s
Recent conversation:
%s

Respond naturally in 1-2 sentences, in character. Do not announce your role.
Your response:`,
		sc.Agent.Name,
		personality.Description,
		personality.SpeakingStyle,
		goal,
		scratchpad,
		tone,
		voteHistoryBlock(sc.VoteHistory),
		contextBlock(sc.Snapshot, sc.ResetIndex, config.ConversationContextSize),
	)
}

// VotePrompt builds the ballot prompt. Candidates never include the voter.
func VotePrompt(agent *models.Agent, snapshot []models.Message, voteHistory []models.VoteRecord, resetIndex int, candidates []string, scratchpad string) string {
	scratchpadBlock := ""
	if scratchpad != "" {
		scratchpadBlock = fmt.Sprintf("\nNotes from your past games:\n%s\n", scratchpad)
	}

	return fmt.Sprintf(`You are %s in a Mafia game. It is time to vote one player out.

You may vote for exactly one of: %s
You cannot vote for yourself.
%s%s
Recent conversation:
%s

Respond in EXACTLY this format:
VOTE: <player name>
REASON: <one sentence>`,
		agent.Name,
		strings.Join(candidates, ", "),
		scratchpadBlock,
		voteHistoryBlock(voteHistory),
		contextBlock(snapshot, resetIndex, config.VotingContextSize),
	)
}

// NightKillPrompt asks a mafia agent to pick the night's victim.
func NightKillPrompt(agent *models.Agent, snapshot []models.Message, resetIndex int, candidates []string) string {
	return fmt.Sprintf(`You are %s, a MAFIA member in a Mafia game. Night has fallen and the mafia must eliminate one villager.

Candidates: %s

Pick the villager who is the biggest threat to the mafia.

Recent conversation:
%s

Respond in EXACTLY this format:
TARGET: <player name>`,
		agent.Name,
		strings.Join(candidates, ", "),
		contextBlock(snapshot, resetIndex, config.ConversationContextSize),
	)
}

// LastWillPrompt generates the victim's final hint.
func LastWillPrompt(victim *models.Agent, snapshot []models.Message, resetIndex int) string {
	return fmt.Sprintf(`You are %s, a player in a Mafia game. You have just been eliminated during the night. You may leave a last will: a single cryptic sentence hinting at who you suspected, from your perspective.

Recent conversation:
%s

Respond with exactly one sentence.`,
		victim.Name,
		contextBlock(snapshot, resetIndex, config.ConversationContextSize),
	)
}

// RedactionPrompt asks a mafia agent to censor one word of the will.
func RedactionPrompt(agent *models.Agent, will string) string {
	return fmt.Sprintf(`You are %s, a MAFIA member in a Mafia game. The victim left this last will:

"%s"

You may remove exactly ONE word from it to blunt the hint. Respond with ONLY that single word, or "NONE" to leave the will untouched.`,
		agent.Name,
		will,
	)
}

// StrategySummaryPrompt asks an agent to distill lessons for future games.
func StrategySummaryPrompt(agent *models.Agent, snapshot []models.Message, won bool) string {
	outcome := "lost"
	if won {
		outcome = "won"
	}
	return fmt.Sprintf(`You are %s. The Mafia game just ended and your side %s. In 2-3 sentences, summarize what you learned about playing as a %s that would help you in the next game. Write in first person.

Final conversation:
%s`,
		agent.Name,
		outcome,
		agent.Role,
		contextBlock(snapshot, 0, config.VotingContextSize),
	)
}

// contextBlock renders the visible conversation window: messages from the
// reset boundary onward (earlier rounds are already compacted into the
// summary system messages that follow the boundary), capped at limit.
func contextBlock(snapshot []models.Message, resetIndex, limit int) string {
	if resetIndex < 0 {
		resetIndex = 0
	}
	if resetIndex > len(snapshot) {
		resetIndex = len(snapshot)
	}
	visible := snapshot[resetIndex:]
	if len(visible) > limit {
		visible = visible[len(visible)-limit:]
	}

	if len(visible) == 0 {
		return "(no messages yet)"
	}
	var lines []string
	for _, m := range visible {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Speaker, m.Text))
	}
	return strings.Join(lines, "\n")
}

func voteHistoryBlock(history []models.VoteRecord) string {
	if len(history) == 0 {
		return ""
	}
	var lines []string
	lines = append(lines, "\nPast voting rounds:")
	for _, record := range history {
		eliminated := "no one was eliminated"
		if record.Eliminated != "" {
			eliminated = record.Eliminated + " was eliminated"
		}
		var ballots []string
		for _, v := range record.Votes {
			ballots = append(ballots, fmt.Sprintf("%s->%s", v.Voter, v.Target))
		}
		lines = append(lines, fmt.Sprintf("Round %d: %s (%s)", record.Round, eliminated, strings.Join(ballots, ", ")))
	}
	return strings.Join(lines, "\n") + "\n"
}
