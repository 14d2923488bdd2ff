package orchestrator

import (
	"context"
	"math/rand"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mafia/models"
)

// stubOracle answers classification questions from fixed tables so cascade
// behavior can be pinned down without an LLM.
type stubOracle struct {
	addressed  map[string]string
	questioned map[string][]string
	loop       bool
}

func (s *stubOracle) FindAddressed(_ context.Context, text string, _ []string) string {
	return s.addressed[text]
}

func (s *stubOracle) FindQuestioned(_ context.Context, text string, _ []string) []string {
	return s.questioned[text]
}

func (s *stubOracle) IsUnproductiveLoop(_ context.Context, _ []models.Message) bool {
	return s.loop
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newTestOrchestrator(o *stubOracle, seed int64) *Orchestrator {
	return New(o, rand.New(rand.NewSource(seed)), quietLogger())
}

func TestSelectNextSpeaker_GameStartIsSeededRandom(t *testing.T) {
	agents := testAgents("Aryan", "Jay", "Khushi")
	snapshot := []models.Message{systemMsg("The game has started!")}

	first := newTestOrchestrator(&stubOracle{}, 7).
		SelectNextSpeaker(context.Background(), agents, snapshot)
	second := newTestOrchestrator(&stubOracle{}, 7).
		SelectNextSpeaker(context.Background(), agents, snapshot)

	require.NotNil(t, first)
	assert.Equal(t, first.Name, second.Name)
}

func TestSelectNextSpeaker_NoActiveAgents(t *testing.T) {
	agents := testAgents("Aryan", "Jay")
	for _, a := range agents {
		a.Alive = false
	}
	orch := newTestOrchestrator(&stubOracle{}, 1)

	assert.Nil(t, orch.SelectNextSpeaker(context.Background(), agents, nil))
}

func TestSelectNextSpeaker_DefensePriority(t *testing.T) {
	agents := testAgents("Aryan", "Jay", "Khushi")
	oracle := &stubOracle{addressed: map[string]string{
		"Jay has been way too quiet.": "Jay",
	}}
	orch := newTestOrchestrator(oracle, 1)

	snapshot := []models.Message{
		agentMsg("Khushi", "Let's talk."),
		agentMsg("Aryan", "Jay has been way too quiet."),
	}
	chosen := orch.SelectNextSpeaker(context.Background(), agents, snapshot)
	require.NotNil(t, chosen)
	assert.Equal(t, "Jay", chosen.Name)
}

func TestSelectNextSpeaker_DefaultPicksLongestWaiting(t *testing.T) {
	agents := testAgents("Alice", "Bob", "Carol")
	orch := newTestOrchestrator(&stubOracle{}, 1)

	snapshot := []models.Message{
		agentMsg("Alice", "I think Bob is acting strange"),
		agentMsg("Bob", "Not true"),
	}
	// No addressed agent, no questions, no overflow, no loop. Carol has
	// waited through both messages, Alice only one.
	chosen := orch.SelectNextSpeaker(context.Background(), agents, snapshot)
	require.NotNil(t, chosen)
	assert.Equal(t, "Carol", chosen.Name)
}

func TestSelectNextSpeaker_PingPongInstallsMediator(t *testing.T) {
	agents := testAgents("Aryan", "Jay", "Khushi", "Navya")
	orch := newTestOrchestrator(&stubOracle{}, 3)

	snapshot := []models.Message{
		agentMsg("Aryan", "You did it."),
		agentMsg("Jay", "No, you did."),
		agentMsg("Aryan", "Stop lying."),
		agentMsg("Jay", "You first."),
	}
	mediator := orch.SelectNextSpeaker(context.Background(), agents, snapshot)
	require.NotNil(t, mediator)
	assert.NotEqual(t, "Aryan", mediator.Name)
	assert.NotEqual(t, "Jay", mediator.Name)
	assert.True(t, orch.IsMediatorTurn(mediator.Name))
}

func TestSelectNextSpeaker_SameSpeakerRunIsNotPingPong(t *testing.T) {
	agents := testAgents("Aryan", "Jay", "Khushi")
	orch := newTestOrchestrator(&stubOracle{}, 1)

	snapshot := []models.Message{
		agentMsg("Aryan", "one"),
		agentMsg("Aryan", "two"),
		agentMsg("Jay", "three"),
		agentMsg("Jay", "four"),
	}
	chosen := orch.SelectNextSpeaker(context.Background(), agents, snapshot)
	require.NotNil(t, chosen)
	// [A,A,B,B] falls through to the default rule, not mediation
	assert.False(t, orch.IsMediatorTurn(chosen.Name))
	assert.Equal(t, "Khushi", chosen.Name)
}

func TestSelectNextSpeaker_ForcedDeflectionAfterMediation(t *testing.T) {
	agents := testAgents("Aryan", "Jay", "Khushi", "Navya", "Anushka")
	orch := newTestOrchestrator(&stubOracle{}, 3)

	snapshot := []models.Message{
		agentMsg("Aryan", "You did it."),
		agentMsg("Jay", "No, you did."),
		agentMsg("Aryan", "Stop lying."),
		agentMsg("Jay", "You first."),
	}
	mediator := orch.SelectNextSpeaker(context.Background(), agents, snapshot)
	require.NotNil(t, mediator)

	snapshot = append(snapshot, agentMsg(mediator.Name, "Let's all calm down."))
	next := orch.SelectNextSpeaker(context.Background(), agents, snapshot)
	require.NotNil(t, next)
	assert.NotEqual(t, mediator.Name, next.Name)
	assert.NotEqual(t, "Aryan", next.Name)
	assert.NotEqual(t, "Jay", next.Name)

	// Mediation memory lives for exactly one cycle after installation
	assert.False(t, orch.pingPong.active())
}

func TestSelectNextSpeaker_PairMemberDeniedDefensePriority(t *testing.T) {
	agents := testAgents("Aryan", "Jay", "Khushi", "Navya")
	oracle := &stubOracle{addressed: map[string]string{
		"Aryan started this whole mess.": "Aryan",
	}}
	orch := newTestOrchestrator(oracle, 1)
	orch.pingPong = pingPongState{pairA: "Aryan", pairB: "Jay", mediator: "Khushi"}

	snapshot := []models.Message{
		agentMsg("Aryan", "hello"),
		agentMsg("Jay", "fine"),
		agentMsg("Khushi", "Aryan started this whole mess."),
	}
	chosen := orch.SelectNextSpeaker(context.Background(), agents, snapshot)
	require.NotNil(t, chosen)
	// Aryan is remembered as half of the ping-pong pair and may not
	// re-seize the floor even though directly addressed; the default rule
	// hands the floor to the longest-waiting agent instead
	assert.Equal(t, "Navya", chosen.Name)
}

func TestSelectNextSpeaker_PendingQuestionWins(t *testing.T) {
	agents := testAgents("Aryan", "Jay", "Khushi")
	oracle := &stubOracle{questioned: map[string][]string{
		"Khushi, where were you last night?": {"Khushi"},
	}}
	orch := newTestOrchestrator(oracle, 1)

	snapshot := []models.Message{
		agentMsg("Khushi", "Nothing to report."),
		agentMsg("Jay", "Khushi, where were you last night?"),
	}
	chosen := orch.SelectNextSpeaker(context.Background(), agents, snapshot)
	require.NotNil(t, chosen)
	assert.Equal(t, "Khushi", chosen.Name)

	// Selection is the answer opportunity; the queue entry is consumed
	assert.Empty(t, orch.PendingQuestioners("Khushi"))
}

func TestMergeQuestions_DeduplicatesQuestioner(t *testing.T) {
	oracle := &stubOracle{questioned: map[string][]string{
		"Khushi, anything to say?": {"Khushi"},
	}}
	orch := newTestOrchestrator(oracle, 1)

	snapshot := []models.Message{agentMsg("Jay", "Khushi, anything to say?")}
	orch.mergeQuestions(context.Background(), snapshot, []string{"Jay", "Khushi"})
	orch.mergeQuestions(context.Background(), snapshot, []string{"Jay", "Khushi"})

	assert.Equal(t, []string{"Jay"}, orch.PendingQuestioners("Khushi"))
}

func TestMergeQuestions_SkipsSelfQuestion(t *testing.T) {
	oracle := &stubOracle{questioned: map[string][]string{
		"What do I even know?": {"Jay"},
	}}
	orch := newTestOrchestrator(oracle, 1)

	snapshot := []models.Message{agentMsg("Jay", "What do I even know?")}
	orch.mergeQuestions(context.Background(), snapshot, []string{"Jay", "Khushi"})

	assert.Empty(t, orch.PendingQuestioners("Jay"))
}

func TestSelectNextSpeaker_PatienceOverflow(t *testing.T) {
	agents := testAgents("Aryan", "Jay", "Khushi", "Navya")
	orch := newTestOrchestrator(&stubOracle{}, 1)

	// Navya never speaks across nine turns
	var snapshot []models.Message
	speakers := []string{"Aryan", "Jay", "Khushi"}
	for i := 0; i < 9; i++ {
		snapshot = append(snapshot, agentMsg(speakers[i%3], "chatter"))
	}
	chosen := orch.SelectNextSpeaker(context.Background(), agents, snapshot)
	require.NotNil(t, chosen)
	assert.Equal(t, "Navya", chosen.Name)
	assert.True(t, orch.IsImpatientTurn("Navya"))
}

func TestSelectNextSpeaker_LoopBreakPicksQuietAgent(t *testing.T) {
	agents := testAgents("Aryan", "Jay", "Khushi", "Navya", "Anushka")
	orch := newTestOrchestrator(&stubOracle{loop: true}, 1)

	snapshot := []models.Message{
		agentMsg("Aryan", "suspicious"),
		agentMsg("Jay", "I agree, suspicious"),
		agentMsg("Khushi", "same thing again"),
		agentMsg("Aryan", "still suspicious"),
	}
	chosen := orch.SelectNextSpeaker(context.Background(), agents, snapshot)
	require.NotNil(t, chosen)
	// Navya and Anushka are the quiet ones; first maximum wins the tie
	assert.Equal(t, "Navya", chosen.Name)
}

func TestSelectNextSpeaker_SingleSurvivorFallsThrough(t *testing.T) {
	agents := testAgents("Aryan", "Jay")
	agents[1].Alive = false
	orch := newTestOrchestrator(&stubOracle{}, 1)

	snapshot := []models.Message{agentMsg("Aryan", "anyone there?")}
	chosen := orch.SelectNextSpeaker(context.Background(), agents, snapshot)
	require.NotNil(t, chosen)
	assert.Equal(t, "Aryan", chosen.Name)
}

func TestDetectPingPong(t *testing.T) {
	tests := []struct {
		name     string
		speakers []string
		want     bool
	}{
		{"strict alternation", []string{"A", "B", "A", "B"}, true},
		{"reversed alternation", []string{"B", "A", "B", "A"}, true},
		{"run of two", []string{"A", "A", "B", "B"}, false},
		{"three speakers", []string{"A", "B", "C", "A"}, false},
		{"too short", []string{"A", "B", "A"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var window []models.Message
			for _, s := range tt.speakers {
				window = append(window, agentMsg(s, "text"))
			}
			_, _, ok := detectPingPong(window)
			assert.Equal(t, tt.want, ok)
		})
	}
}
