package game

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mafia/llm"
	"mafia/models"
	"mafia/oracle"
	"mafia/orchestrator"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func mkAgent(id int, name string, role models.Role) *models.Agent {
	return &models.Agent{ID: id, Name: name, Role: role, Alive: true}
}

// newTestGame builds a game directly so tests control the roster and roles
// instead of going through random assignment.
func newTestGame(agents []*models.Agent, gen llm.GenerateFunc) *Game {
	logger := quietLogger()
	rng := rand.New(rand.NewSource(42))
	g := &Game{
		id:          "test-game",
		agents:      agents,
		log:         NewConversationLog(),
		generate:    gen,
		rng:         rng,
		logger:      logger,
		turnDelay:   time.Nanosecond,
		phase:       models.PhaseDiscussion,
		scratchpads: make(map[string]string),
	}
	g.orch = orchestrator.New(oracle.New(gen, logger), rng, logger)
	g.running.Store(true)
	return g
}

func logContains(t *testing.T, g *Game, substr string) bool {
	t.Helper()
	for _, m := range g.log.Snapshot() {
		if strings.Contains(m.Text, substr) {
			return true
		}
	}
	return false
}

func failGen(ctx context.Context, prompt string) (string, error) {
	return "", errors.New("api unavailable")
}

func TestNewGame_Validation(t *testing.T) {
	gen := func(ctx context.Context, prompt string) (string, error) { return "", nil }

	_, err := NewGame(Config{NumAgents: 5, NumMafia: 1})
	assert.Error(t, err)

	_, err = NewGame(Config{NumAgents: 2, NumMafia: 1, Generate: gen})
	assert.Error(t, err)

	_, err = NewGame(Config{NumAgents: 5, NumMafia: 5, Generate: gen})
	assert.Error(t, err)

	g, err := NewGame(Config{
		NumAgents: 6,
		NumMafia:  2,
		Generate:  gen,
		Rand:      rand.New(rand.NewSource(1)),
		TurnDelay: time.Nanosecond,
		Logger:    quietLogger(),
	})
	require.NoError(t, err)

	states := g.AgentStates()
	assert.Len(t, states, 6)
	mafia := 0
	for _, a := range states {
		assert.True(t, a.Alive)
		if a.Role == models.RoleMafia {
			mafia++
		}
	}
	assert.Equal(t, 2, mafia)
	assert.Equal(t, models.PhaseDiscussion, g.Phase())

	// Announcement plus opening hint
	assert.Equal(t, 2, g.Log().Len())
	assert.Zero(t, g.Log().NonSystemLen())
}

func TestDiscussionTurn_AppendsParsedUtterance(t *testing.T) {
	agents := []*models.Agent{
		mkAgent(0, "Aryan", models.RoleMafia),
		mkAgent(1, "Jay", models.RoleVillager),
		mkAgent(2, "Khushi", models.RoleVillager),
	}
	gen := func(ctx context.Context, prompt string) (string, error) {
		return "<reasoning>testing the waters</reasoning>Hello everyone.", nil
	}
	g := newTestGame(agents, gen)

	require.NoError(t, g.Step(context.Background()))

	snapshot := g.log.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, "Hello everyone.", snapshot[0].Text)
	assert.False(t, snapshot[0].IsSystem)

	stats := g.Statistics()
	assert.Equal(t, 1, stats.TotalMessages)
	assert.Equal(t, 1, stats.AgentMessages[snapshot[0].Speaker])
}

func TestStep_DiscussionFlipsToVotingAtThreshold(t *testing.T) {
	agents := []*models.Agent{
		mkAgent(0, "Aryan", models.RoleMafia),
		mkAgent(1, "Jay", models.RoleVillager),
		mkAgent(2, "Khushi", models.RoleVillager),
	}
	calls := 0
	gen := func(ctx context.Context, prompt string) (string, error) {
		calls++
		return "", errors.New("should not be called")
	}
	g := newTestGame(agents, gen)

	for i := 0; i < 20; i++ {
		g.log.AddMessage("Aryan", "chatter", false)
	}
	require.NoError(t, g.Step(context.Background()))

	assert.Equal(t, models.PhaseVoting, g.Phase())
	assert.Zero(t, calls, "phase transition must not cost a generation call")
}

func TestVotingRound_FirstToMaxWinsTieBreak(t *testing.T) {
	agents := []*models.Agent{
		mkAgent(0, "Aryan", models.RoleMafia),
		mkAgent(1, "Jay", models.RoleVillager),
		mkAgent(2, "Kshitij", models.RoleVillager),
		mkAgent(3, "Laavanya", models.RoleVillager),
		mkAgent(4, "Anushka", models.RoleVillager),
	}
	ballots := map[string]string{
		"Aryan":    "VOTE: Jay\nREASON: too quiet.",
		"Jay":      "VOTE: Aryan\nREASON: he started it.",
		"Kshitij":  "VOTE: Jay\nREASON: evasive answers.",
		"Laavanya": "VOTE: Aryan\nREASON: deflecting all game.",
		"Anushka":  "VOTE: Kshitij\nREASON: gut feeling.",
	}
	gen := func(ctx context.Context, prompt string) (string, error) {
		for name, ballot := range ballots {
			if strings.HasPrefix(prompt, "You are "+name+" in a Mafia game") {
				return ballot, nil
			}
		}
		return "", errors.New("unexpected prompt")
	}
	g := newTestGame(agents, gen)

	require.NoError(t, g.runVotingRound(context.Background()))

	// Jay and Aryan both end on two votes; Jay reached two first in
	// ballot-insertion order
	history := g.VoteHistory()
	require.Len(t, history, 1)
	assert.Equal(t, 1, history[0].Round)
	assert.Len(t, history[0].Votes, 5)
	assert.Equal(t, "Jay", history[0].Eliminated)

	states := g.AgentStates()
	for _, a := range states {
		if a.Name == "Jay" {
			assert.False(t, a.Alive)
		} else {
			assert.True(t, a.Alive)
		}
	}
	assert.True(t, logContains(t, g, "Jay has been voted out. They were a villager!"))
	assert.Equal(t, models.PhaseNightKill, g.Phase())
}

func TestVotingRound_NoValidVotes(t *testing.T) {
	agents := []*models.Agent{
		mkAgent(0, "Aryan", models.RoleMafia),
		mkAgent(1, "Jay", models.RoleVillager),
		mkAgent(2, "Khushi", models.RoleVillager),
	}
	g := newTestGame(agents, failGen)

	require.NoError(t, g.runVotingRound(context.Background()))

	history := g.VoteHistory()
	require.Len(t, history, 1)
	assert.Empty(t, history[0].Votes)
	assert.Empty(t, history[0].Eliminated)
	assert.True(t, logContains(t, g, "No valid votes were cast"))
	for _, a := range g.AgentStates() {
		assert.True(t, a.Alive)
	}
	assert.Equal(t, models.PhaseNightKill, g.Phase())
}

func TestNightKill_FirstValidMafiaChoiceWins(t *testing.T) {
	agents := []*models.Agent{
		mkAgent(0, "Aryan", models.RoleMafia),
		mkAgent(1, "Jay", models.RoleMafia),
		mkAgent(2, "Khushi", models.RoleVillager),
		mkAgent(3, "Navya", models.RoleVillager),
		mkAgent(4, "Anushka", models.RoleVillager),
		mkAgent(5, "Yatharth", models.RoleVillager),
	}
	gen := func(ctx context.Context, prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "Night has fallen"):
			if strings.HasPrefix(prompt, "You are Aryan") {
				return "I refuse to answer.", nil
			}
			return "TARGET: Khushi", nil
		case strings.Contains(prompt, "You may leave a last will"):
			return "The quiet one holds the knife.", nil
		case strings.Contains(prompt, "remove exactly ONE word"):
			return "knife", nil
		}
		return "", errors.New("unexpected prompt")
	}
	g := newTestGame(agents, gen)

	require.NoError(t, g.runNightKill(context.Background()))

	for _, a := range g.AgentStates() {
		assert.Equal(t, a.Name != "Khushi", a.Alive)
	}
	assert.True(t, logContains(t, g, "Khushi was found dead this morning. They were a villager."))
	assert.True(t, logContains(t, g, `Their last will reads: "The quiet one holds the"`))
	assert.Equal(t, models.PhaseSummary, g.Phase())
}

func TestNightKill_RandomFallbackTargetsVillager(t *testing.T) {
	agents := []*models.Agent{
		mkAgent(0, "Aryan", models.RoleMafia),
		mkAgent(1, "Jay", models.RoleMafia),
		mkAgent(2, "Khushi", models.RoleVillager),
		mkAgent(3, "Navya", models.RoleVillager),
		mkAgent(4, "Anushka", models.RoleVillager),
		mkAgent(5, "Yatharth", models.RoleVillager),
	}
	g := newTestGame(agents, failGen)

	require.NoError(t, g.runNightKill(context.Background()))

	dead := 0
	for _, a := range g.AgentStates() {
		if !a.Alive {
			dead++
			assert.Equal(t, models.RoleVillager, a.Role, "mafia never target their own")
		}
	}
	assert.Equal(t, 1, dead)
	// Will generation failed, so the death notice carries no will
	assert.True(t, logContains(t, g, "was found dead this morning"))
	assert.False(t, logContains(t, g, "last will"))
	assert.Equal(t, models.PhaseSummary, g.Phase())
}

func TestCheckWin_MafiaParity(t *testing.T) {
	agents := []*models.Agent{
		mkAgent(0, "Aryan", models.RoleMafia),
		mkAgent(1, "Jay", models.RoleMafia),
		mkAgent(2, "Khushi", models.RoleVillager),
		mkAgent(3, "Navya", models.RoleVillager),
		mkAgent(4, "Anushka", models.RoleVillager),
	}
	g := newTestGame(agents, failGen)

	// Two mafia against three villagers is still live
	assert.False(t, g.checkWin(context.Background()))

	require.NotNil(t, g.eliminate("Khushi"))
	assert.True(t, g.checkWin(context.Background()))
	assert.Equal(t, models.RoleMafia, g.Winner())
	assert.Equal(t, models.PhaseGameOver, g.Phase())
	assert.True(t, logContains(t, g, "The mafia win!"))
}

func TestCheckWin_VillagersWin(t *testing.T) {
	agents := []*models.Agent{
		mkAgent(0, "Aryan", models.RoleMafia),
		mkAgent(1, "Jay", models.RoleVillager),
		mkAgent(2, "Khushi", models.RoleVillager),
	}
	g := newTestGame(agents, failGen)

	require.NotNil(t, g.eliminate("Aryan"))
	assert.True(t, g.checkWin(context.Background()))
	assert.Equal(t, models.RoleVillager, g.Winner())
	assert.True(t, logContains(t, g, "The villagers win!"))
}

func TestAppendSummary_ResetsContextAndBaseline(t *testing.T) {
	agents := []*models.Agent{
		mkAgent(0, "Aryan", models.RoleMafia),
		mkAgent(1, "Jay", models.RoleVillager),
		mkAgent(2, "Khushi", models.RoleVillager),
	}
	g := newTestGame(agents, failGen)

	g.log.AddMessage("Aryan", "pre-summary chatter", false)
	g.mu.Lock()
	g.round = 1
	g.lastVote = &models.VoteRecord{Round: 1, Votes: []models.Vote{{Voter: "Jay", Target: "Khushi"}}, Eliminated: "Khushi"}
	g.lastVictim = "Jay"
	g.phase = models.PhaseSummary
	g.mu.Unlock()

	require.NoError(t, g.Step(context.Background()))

	assert.True(t, logContains(t, g, "Round 1 summary."))
	assert.True(t, logContains(t, g, "The vote eliminated Khushi (1 ballots cast)."))
	assert.True(t, logContains(t, g, "During the night, Jay was killed."))

	// Everything before the summary is compacted away from future prompts
	assert.Equal(t, g.log.Len(), g.ContextResetIndex())
	assert.Equal(t, g.log.NonSystemLen(), g.voteBaselineValue())
	assert.Equal(t, models.PhaseDiscussion, g.Phase())
}

func TestStop_IsIdempotentAndHaltsSteps(t *testing.T) {
	agents := []*models.Agent{
		mkAgent(0, "Aryan", models.RoleMafia),
		mkAgent(1, "Jay", models.RoleVillager),
		mkAgent(2, "Khushi", models.RoleVillager),
	}
	calls := 0
	gen := func(ctx context.Context, prompt string) (string, error) {
		calls++
		return "fine.", nil
	}
	g := newTestGame(agents, gen)

	g.Stop()
	g.Stop()
	assert.False(t, g.Running())

	stopped := 0
	for _, m := range g.log.Snapshot() {
		if m.Text == "Game stopped." {
			stopped++
		}
	}
	assert.Equal(t, 1, stopped)

	require.NoError(t, g.Step(context.Background()))
	assert.Zero(t, calls)
}

func TestEliminate_OnlyOnce(t *testing.T) {
	agents := []*models.Agent{
		mkAgent(0, "Aryan", models.RoleMafia),
		mkAgent(1, "Jay", models.RoleVillager),
		mkAgent(2, "Khushi", models.RoleVillager),
	}
	g := newTestGame(agents, failGen)

	first := g.eliminate("Jay")
	require.NotNil(t, first)
	assert.False(t, first.Alive)

	assert.Nil(t, g.eliminate("Jay"))
	assert.Nil(t, g.eliminate("Nobody"))
}
