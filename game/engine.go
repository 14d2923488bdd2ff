// Package game implements the Mafia round state machine: discussion turns
// scheduled by the orchestrator, voting rounds, night kills, round
// summaries, and win-condition checks. One Game instance is one match;
// multiple games can run in the same process.
package game

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"mafia/config"
	"mafia/llm"
	"mafia/models"
	"mafia/oracle"
	"mafia/orchestrator"
	"mafia/prompts"
)

// ScratchpadStore persists per-agent memory across games. The engine reads
// a short summary per agent at game start and writes a strategy summary at
// game end; storage format is the store's concern.
type ScratchpadStore interface {
	LoadScratchpad(ctx context.Context, agentName string) (string, error)
	SaveScratchpad(ctx context.Context, agentName, summary string) error
	SaveVoteRecord(ctx context.Context, gameID string, record models.VoteRecord) error
}

// Config configures a new game.
type Config struct {
	NumAgents int
	NumMafia  int
	// TurnDelay is the pause before each external generation call.
	// Zero means config.TurnDelay.
	TurnDelay time.Duration
	// Rand drives the explicitly random decisions: role assignment,
	// opening hint, game-start speaker, mediator pick, night-kill fallback.
	Rand     *rand.Rand
	Generate llm.GenerateFunc
	// Store is optional; nil keeps scratchpads in memory only.
	Store  ScratchpadStore
	Logger *logrus.Logger
}

// Stats is a read-only statistics snapshot for the UI.
type Stats struct {
	TotalMessages int              `json:"total_messages"`
	NumAgents     int              `json:"num_agents"`
	NumMafia      int              `json:"num_mafia"`
	Round         int              `json:"round"`
	Phase         models.GamePhase `json:"phase"`
	AgentMessages map[string]int   `json:"agent_messages"`
}

// Game is the engine for a single match.
type Game struct {
	id       string
	agents   []*models.Agent
	log      *ConversationLog
	orch     *orchestrator.Orchestrator
	generate llm.GenerateFunc
	store    ScratchpadStore
	rng      *rand.Rand
	logger   *logrus.Logger

	turnDelay time.Duration
	running   atomic.Bool

	// mu guards the fields below plus agent mutations; the log carries
	// its own lock.
	mu           sync.RWMutex
	phase        models.GamePhase
	round        int
	resetIndex   int
	voteBaseline int
	votes        []models.VoteRecord
	scratchpads  map[string]string
	winner       models.Role

	// round-in-progress state consumed by the summary phase
	lastVote   *models.VoteRecord
	lastVictim string
}

// NewGame creates a game with shuffled names and random role assignment.
func NewGame(cfg Config) (*Game, error) {
	if cfg.Generate == nil {
		return nil, fmt.Errorf("generate function is required")
	}
	if cfg.NumAgents < 3 || cfg.NumAgents > config.MaxAgents {
		return nil, fmt.Errorf("num_agents must be between 3 and %d, got %d", config.MaxAgents, cfg.NumAgents)
	}
	if cfg.NumMafia < 1 || cfg.NumMafia >= cfg.NumAgents {
		return nil, fmt.Errorf("num_mafia must be between 1 and %d, got %d", cfg.NumAgents-1, cfg.NumMafia)
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.TurnDelay == 0 {
		cfg.TurnDelay = config.TurnDelay
	}

	names := append([]string(nil), config.AgentNames...)
	cfg.Rand.Shuffle(len(names), func(i, j int) { names[i], names[j] = names[j], names[i] })
	names = names[:cfg.NumAgents]

	mafiaIndex := make(map[int]bool, cfg.NumMafia)
	for _, i := range cfg.Rand.Perm(cfg.NumAgents)[:cfg.NumMafia] {
		mafiaIndex[i] = true
	}

	agents := make([]*models.Agent, 0, cfg.NumAgents)
	for i, name := range names {
		role := models.RoleVillager
		if mafiaIndex[i] {
			role = models.RoleMafia
		}
		agents = append(agents, &models.Agent{ID: i, Name: name, Role: role, Alive: true})
	}

	g := &Game{
		id:          uuid.New().String(),
		agents:      agents,
		log:         NewConversationLog(),
		generate:    cfg.Generate,
		store:       cfg.Store,
		rng:         cfg.Rand,
		logger:      cfg.Logger,
		turnDelay:   cfg.TurnDelay,
		phase:       models.PhaseDiscussion,
		scratchpads: make(map[string]string),
	}
	signalOracle := oracle.New(cfg.Generate, cfg.Logger)
	g.orch = orchestrator.New(signalOracle, cfg.Rand, cfg.Logger)

	g.log.AddMessage(models.SystemSpeaker,
		fmt.Sprintf("Game started! %d players, %d mafia among us. Players: %s",
			cfg.NumAgents, cfg.NumMafia, strings.Join(models.Names(agents), ", ")),
		true)
	g.log.AddMessage(models.SystemSpeaker,
		"A hint before you begin: "+config.OpeningHints[cfg.Rand.Intn(len(config.OpeningHints))],
		true)

	return g, nil
}

// ID returns the game's unique identifier.
func (g *Game) ID() string { return g.id }

// Log returns the conversation log for read-only consumers.
func (g *Game) Log() *ConversationLog { return g.log }

// Start marks the game as running and loads per-agent scratchpads.
func (g *Game) Start(ctx context.Context) {
	g.running.Store(true)
	if g.store == nil {
		return
	}
	for _, a := range g.agents {
		summary, err := g.store.LoadScratchpad(ctx, a.Name)
		if err != nil {
			g.logger.WithError(err).WithField("agent", a.Name).Warn("failed to load scratchpad")
			continue
		}
		g.mu.Lock()
		g.scratchpads[a.Name] = summary
		g.mu.Unlock()
	}
}

// Stop cancels the game. The loop and phase transitions check the running
// flag before every external call and abort promptly, leaving the log and
// agent states exactly as they were at the last completed step.
func (g *Game) Stop() {
	if !g.running.Swap(false) {
		return
	}
	if g.Phase() != models.PhaseGameOver {
		g.log.AddMessage(models.SystemSpeaker, "Game stopped.", true)
	}
}

// Running reports whether the game loop should continue.
func (g *Game) Running() bool { return g.running.Load() }

// Run drives the state machine until the game ends or is stopped.
func (g *Game) Run(ctx context.Context) {
	for g.running.Load() && g.Phase() != models.PhaseGameOver {
		if ctx.Err() != nil {
			return
		}
		if err := g.Step(ctx); err != nil {
			g.logger.WithError(err).Warn("game step failed")
		}
	}
}

// Step advances the state machine by one unit of work: one discussion
// turn, one full voting round, one night kill, or one summary.
func (g *Game) Step(ctx context.Context) error {
	if !g.running.Load() {
		return nil
	}
	switch g.Phase() {
	case models.PhaseDiscussion:
		if g.log.NonSystemLen()-g.voteBaselineValue() >= config.VotingMessageThreshold {
			g.setPhase(models.PhaseVoting)
			return nil
		}
		return g.discussionTurn(ctx)
	case models.PhaseVoting:
		return g.runVotingRound(ctx)
	case models.PhaseNightKill:
		return g.runNightKill(ctx)
	case models.PhaseSummary:
		g.appendSummary()
		return nil
	default:
		return nil
	}
}

// discussionTurn asks the orchestrator for one speaker, obtains their
// utterance, and appends it. Any single failure is logged and skipped;
// the loop never blocks on one broken turn.
func (g *Game) discussionTurn(ctx context.Context) error {
	snapshot := g.log.Snapshot()
	speaker := g.orch.SelectNextSpeaker(ctx, g.agentsCopy(), snapshot)
	if speaker == nil {
		return nil
	}

	sc := prompts.SpeakerContext{
		Agent:       speaker,
		Snapshot:    snapshot,
		VoteHistory: g.VoteHistory(),
		ResetIndex:  g.ContextResetIndex(),
		Scratchpad:  g.scratchpad(speaker.Name),
		Impatient:   g.orch.IsImpatientTurn(speaker.Name),
		Mediator:    g.orch.IsMediatorTurn(speaker.Name),
	}

	if !g.pause(ctx) {
		return nil
	}
	raw, err := g.generate(ctx, prompts.SpeakerPrompt(sc))
	if err != nil {
		g.logger.WithError(err).WithField("agent", speaker.Name).Warn("generation failed, skipping turn")
		return nil
	}

	utterance := ParseUtterance(raw)
	if utterance.Message == "" {
		return nil
	}

	g.log.AddMessage(speaker.Name, utterance.Message, false)
	g.mu.Lock()
	if live := models.ByName(g.agents, speaker.Name); live != nil {
		live.LastSpokeAt = len(snapshot)
		live.MessageCount++
	}
	g.mu.Unlock()
	return nil
}

// runVotingRound collects one ballot per active agent, eliminates by
// plurality, and reveals the role. Ties break to the first target to reach
// the maximum count in ballot-insertion order.
func (g *Game) runVotingRound(ctx context.Context) error {
	g.mu.Lock()
	g.round++
	round := g.round
	g.mu.Unlock()

	g.log.AddMessage(models.SystemSpeaker,
		fmt.Sprintf("Round %d voting begins. Each player casts one vote.", round), true)

	snapshot := g.log.Snapshot()
	record := models.VoteRecord{Round: round}

	type tallyEntry struct {
		name  string
		count int
	}
	var tally []tallyEntry

	for _, voter := range models.Active(g.agentsCopy()) {
		if !g.running.Load() {
			return nil
		}
		// Candidates are re-filtered against the live active set at the
		// moment of use; a stale list must never cross a phase boundary.
		candidates := models.Names(models.Active(g.agentsCopy()))
		candidates = withoutName(candidates, voter.Name)
		if len(candidates) == 0 {
			break
		}

		if !g.pause(ctx) {
			return nil
		}
		prompt := prompts.VotePrompt(voter, snapshot, g.VoteHistory(), g.ContextResetIndex(), candidates, g.scratchpad(voter.Name))
		raw, err := g.generate(ctx, prompt)
		if err != nil {
			g.logger.WithError(err).WithField("agent", voter.Name).Warn("vote generation failed, no vote recorded")
			continue
		}

		target, reason, ok := ParseVote(raw, candidates)
		if !ok {
			g.logger.WithField("agent", voter.Name).Warn("unparseable vote, no vote recorded")
			continue
		}

		record.Votes = append(record.Votes, models.Vote{Voter: voter.Name, Target: target, Reason: reason})
		g.log.AddMessage(models.SystemSpeaker,
			fmt.Sprintf("%s votes for %s. Reason: %s", voter.Name, target, reason), true)

		found := false
		for i := range tally {
			if tally[i].name == target {
				tally[i].count++
				found = true
				break
			}
		}
		if !found {
			tally = append(tally, tallyEntry{name: target, count: 1})
		}
	}

	// First maximum found in insertion order wins the tie-break.
	eliminatedName := ""
	best := 0
	for _, entry := range tally {
		if entry.count > best {
			best = entry.count
			eliminatedName = entry.name
		}
	}

	if eliminatedName != "" {
		if victim := g.eliminate(eliminatedName); victim != nil {
			g.log.AddMessage(models.SystemSpeaker,
				fmt.Sprintf("%s has been voted out. They were a %s!", victim.Name, victim.Role), true)
			record.Eliminated = victim.Name
		}
	} else {
		g.log.AddMessage(models.SystemSpeaker, "No valid votes were cast. No one is eliminated.", true)
	}

	g.mu.Lock()
	g.votes = append(g.votes, record)
	g.lastVote = &record
	g.lastVictim = ""
	g.mu.Unlock()

	if g.store != nil {
		if err := g.store.SaveVoteRecord(ctx, g.id, record); err != nil {
			g.logger.WithError(err).Warn("failed to persist vote record")
		}
	}

	if g.checkWin(ctx) {
		return nil
	}
	g.setPhase(models.PhaseNightKill)
	return nil
}

// runNightKill lets the mafia pick a villager to eliminate. Each mafia
// agent is consulted in turn; the first valid response wins, with a
// uniform random fallback when none produce one. The kill stays silent
// until the victim's last will is generated and possibly shortened by one
// word at a mafia agent's request.
func (g *Game) runNightKill(ctx context.Context) error {
	active := models.Active(g.agentsCopy())
	var mafia, villagers []*models.Agent
	for _, a := range active {
		if a.Role == models.RoleMafia {
			mafia = append(mafia, a)
		} else {
			villagers = append(villagers, a)
		}
	}
	if len(mafia) == 0 || len(villagers) == 0 {
		g.setPhase(models.PhaseSummary)
		return nil
	}

	snapshot := g.log.Snapshot()
	candidates := models.Names(villagers)

	targetName := ""
	for _, killer := range mafia {
		if !g.running.Load() {
			return nil
		}
		if !g.pause(ctx) {
			return nil
		}
		raw, err := g.generate(ctx, prompts.NightKillPrompt(killer, snapshot, g.ContextResetIndex(), candidates))
		if err != nil {
			g.logger.WithError(err).WithField("agent", killer.Name).Warn("night-kill generation failed")
			continue
		}
		if name, ok := ParseTarget(raw, candidates); ok {
			targetName = name
			break
		}
	}
	if targetName == "" {
		targetName = candidates[g.rng.Intn(len(candidates))]
		g.logger.WithField("target", targetName).Warn("no valid night-kill response, falling back to random target")
	}

	victim := g.eliminate(targetName)
	if victim == nil {
		g.setPhase(models.PhaseSummary)
		return nil
	}

	will := g.generateLastWill(ctx, victim, snapshot, mafia)

	death := fmt.Sprintf("%s was found dead this morning. They were a %s.", victim.Name, victim.Role)
	if will != "" {
		death += fmt.Sprintf(" Their last will reads: \"%s\"", will)
	}
	g.log.AddMessage(models.SystemSpeaker, death, true)

	g.mu.Lock()
	g.lastVictim = victim.Name
	g.mu.Unlock()

	if g.checkWin(ctx) {
		return nil
	}
	g.setPhase(models.PhaseSummary)
	return nil
}

// generateLastWill produces the victim's one-sentence hint and applies at
// most one word of mafia redaction. Soft failures leave the will empty or
// unredacted.
func (g *Game) generateLastWill(ctx context.Context, victim *models.Agent, snapshot []models.Message, mafia []*models.Agent) string {
	if !g.pause(ctx) {
		return ""
	}
	will, err := g.generate(ctx, prompts.LastWillPrompt(victim, snapshot, g.ContextResetIndex()))
	if err != nil || strings.TrimSpace(will) == "" {
		if err != nil {
			g.logger.WithError(err).WithField("agent", victim.Name).Warn("last-will generation failed")
		}
		return ""
	}
	will = strings.TrimSpace(will)

	if len(mafia) == 0 {
		return will
	}
	editor := mafia[0]
	if !g.pause(ctx) {
		return will
	}
	raw, err := g.generate(ctx, prompts.RedactionPrompt(editor, will))
	if err != nil {
		g.logger.WithError(err).WithField("agent", editor.Name).Warn("will-redaction generation failed, keeping will intact")
		return will
	}

	word := strings.TrimSpace(raw)
	if fields := strings.Fields(word); len(fields) > 0 {
		word = fields[0]
	}
	if word == "" || strings.EqualFold(word, "none") {
		return will
	}
	return RemoveWord(will, word)
}

// appendSummary writes the round's outcome as a system message and records
// the context-reset boundary: prompt construction treats discussion before
// this index as compacted into the summary rather than shown verbatim.
func (g *Game) appendSummary() {
	g.mu.RLock()
	vote := g.lastVote
	victim := g.lastVictim
	round := g.round
	g.mu.RUnlock()

	var parts []string
	parts = append(parts, fmt.Sprintf("Round %d summary.", round))
	if vote != nil {
		if vote.Eliminated != "" {
			parts = append(parts, fmt.Sprintf("The vote eliminated %s (%d ballots cast).", vote.Eliminated, len(vote.Votes)))
		} else {
			parts = append(parts, fmt.Sprintf("The vote eliminated no one (%d ballots cast).", len(vote.Votes)))
		}
	}
	if victim != "" {
		parts = append(parts, fmt.Sprintf("During the night, %s was killed.", victim))
	} else {
		parts = append(parts, "The night passed without a kill.")
	}
	parts = append(parts, "Discussion resumes now.")

	g.log.AddMessage(models.SystemSpeaker, strings.Join(parts, " "), true)

	g.mu.Lock()
	g.resetIndex = g.log.Len()
	g.lastVote = nil
	g.lastVictim = ""
	g.mu.Unlock()
	g.setVoteBaseline(g.log.NonSystemLen())
	g.setPhase(models.PhaseDiscussion)
}

// checkWin runs after every elimination. Villagers win at zero active
// mafia; mafia win the moment they reach parity with villagers. Returns
// true when the game is over.
func (g *Game) checkWin(ctx context.Context) bool {
	mafiaCount, villagerCount := 0, 0
	for _, a := range models.Active(g.agentsCopy()) {
		if a.Role == models.RoleMafia {
			mafiaCount++
		} else {
			villagerCount++
		}
	}

	var winner models.Role
	switch {
	case mafiaCount == 0:
		winner = models.RoleVillager
	case mafiaCount >= villagerCount:
		winner = models.RoleMafia
	default:
		return false
	}

	if winner == models.RoleVillager {
		g.log.AddMessage(models.SystemSpeaker, "All mafia have been eliminated. The villagers win!", true)
	} else {
		g.log.AddMessage(models.SystemSpeaker, "The mafia now match the villagers in number. The mafia win!", true)
	}

	g.mu.Lock()
	g.winner = winner
	g.mu.Unlock()
	g.setPhase(models.PhaseGameOver)
	g.saveScratchpads(ctx, winner)
	return true
}

// saveScratchpads writes each agent's strategy summary for future games.
// Every failure is soft; the game is already over.
func (g *Game) saveScratchpads(ctx context.Context, winner models.Role) {
	if g.store == nil {
		return
	}
	snapshot := g.log.Snapshot()
	for _, a := range g.agentsCopy() {
		if !g.running.Load() {
			return
		}
		if !g.pause(ctx) {
			return
		}
		summary, err := g.generate(ctx, prompts.StrategySummaryPrompt(a, snapshot, a.Role == winner))
		if err != nil || strings.TrimSpace(summary) == "" {
			if err != nil {
				g.logger.WithError(err).WithField("agent", a.Name).Warn("strategy summary generation failed")
			}
			continue
		}
		if err := g.store.SaveScratchpad(ctx, a.Name, strings.TrimSpace(summary)); err != nil {
			g.logger.WithError(err).WithField("agent", a.Name).Warn("failed to save scratchpad")
		}
	}
}

// eliminate flips an agent's alive flag. Returns nil if the name no longer
// matches an active agent.
func (g *Game) eliminate(name string) *models.Agent {
	g.mu.Lock()
	defer g.mu.Unlock()
	agent := models.ByName(g.agents, name)
	if agent == nil || !agent.Alive {
		return nil
	}
	agent.Alive = false
	copied := *agent
	return &copied
}

// pause enforces the inter-call delay, aborting early on cancellation.
// Returns false when the game should not continue with the external call.
func (g *Game) pause(ctx context.Context) bool {
	if !g.running.Load() {
		return false
	}
	if g.turnDelay <= 0 {
		return true
	}
	select {
	case <-time.After(g.turnDelay):
		return g.running.Load()
	case <-ctx.Done():
		return false
	}
}

// Phase returns the current phase.
func (g *Game) Phase() models.GamePhase {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.phase
}

func (g *Game) setPhase(phase models.GamePhase) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase == models.PhaseGameOver {
		return
	}
	g.phase = phase
}

// Winner returns the winning faction, or "" while the game is live.
func (g *Game) Winner() models.Role {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.winner
}

// ContextResetIndex returns the log index after which discussion is shown
// verbatim to prompt builders; everything before it is compacted.
func (g *Game) ContextResetIndex() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.resetIndex
}

// VoteHistory returns a copy of all voting rounds so far.
func (g *Game) VoteHistory() []models.VoteRecord {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]models.VoteRecord(nil), g.votes...)
}

// AgentStates returns value copies of all agents for read-only consumers.
func (g *Game) AgentStates() []models.Agent {
	g.mu.RLock()
	defer g.mu.RUnlock()
	states := make([]models.Agent, 0, len(g.agents))
	for _, a := range g.agents {
		states = append(states, *a)
	}
	return states
}

// Statistics returns a snapshot of game counters.
func (g *Game) Statistics() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	stats := Stats{
		TotalMessages: 0,
		NumAgents:     len(g.agents),
		Round:         g.round,
		Phase:         g.phase,
		AgentMessages: make(map[string]int, len(g.agents)),
	}
	for _, a := range g.agents {
		if a.Role == models.RoleMafia {
			stats.NumMafia++
		}
		stats.AgentMessages[a.Name] = a.MessageCount
	}
	stats.TotalMessages = g.log.NonSystemLen()
	return stats
}

func (g *Game) agentsCopy() []*models.Agent {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]*models.Agent(nil), g.agents...)
}

func (g *Game) scratchpad(name string) string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.scratchpads[name]
}

func (g *Game) voteBaselineValue() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.voteBaseline
}

func (g *Game) setVoteBaseline(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.voteBaseline = n
}

func withoutName(names []string, name string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}
