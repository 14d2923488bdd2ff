// Package orchestrator decides WHO speaks WHEN. It combines fairness
// counters, an LLM-backed text-signal oracle, and loop detection through a
// fixed priority cascade. The cascade ordering is a design contract:
// reordering the rules changes game dynamics materially.
package orchestrator

import (
	"context"
	"math/rand"

	"github.com/sirupsen/logrus"

	"mafia/config"
	"mafia/models"
)

// SignalOracle answers classification questions about message text. All
// methods must be side-effect free with respect to orchestrator state.
type SignalOracle interface {
	FindAddressed(ctx context.Context, messageText string, activeNames []string) string
	FindQuestioned(ctx context.Context, messageText string, activeNames []string) []string
	IsUnproductiveLoop(ctx context.Context, recent []models.Message) bool
}

// pingPongState is the only multi-turn memory the orchestrator keeps
// beyond counters and queues. It persists for exactly one selection cycle
// after being installed, then clears.
type pingPongState struct {
	pairA       string
	pairB       string
	mediator    string
	mustDeflect bool
}

func (s *pingPongState) active() bool {
	return s.mediator != ""
}

func (s *pingPongState) clear() {
	*s = pingPongState{}
}

func (s *pingPongState) inPair(name string) bool {
	return name != "" && (name == s.pairA || name == s.pairB)
}

// Orchestrator is the stateful speaker-selection engine. One instance per
// game; it is owned by the single-threaded turn loop and needs no lock.
type Orchestrator struct {
	patience *PatienceTracker
	// questions maps an agent to the ordered list of agents that asked
	// them a direct question and have not had the floor yield to them yet
	questions map[string][]string
	pingPong  pingPongState
	oracle    SignalOracle
	rng       *rand.Rand
	logger    *logrus.Logger
}

// New creates an orchestrator. The random source covers only the
// explicitly random decisions (game-start pick, mediator pick); everything
// else in the cascade is deterministic given the oracle's answers.
func New(signalOracle SignalOracle, rng *rand.Rand, logger *logrus.Logger) *Orchestrator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Orchestrator{
		patience:  NewPatienceTracker(),
		questions: make(map[string][]string),
		oracle:    signalOracle,
		rng:       rng,
		logger:    logger,
	}
}

// Patience exposes the tracker for flag derivation and tests.
func (o *Orchestrator) Patience() *PatienceTracker {
	return o.patience
}

// IsImpatientTurn reports whether an agent's upcoming turn was forced by
// patience overflow, so the generator can adjust tone.
func (o *Orchestrator) IsImpatientTurn(name string) bool {
	return o.patience.IsImpatient(name)
}

// IsMediatorTurn reports whether an agent was just installed as a
// ping-pong mediator.
func (o *Orchestrator) IsMediatorTurn(name string) bool {
	return o.pingPong.mustDeflect && o.pingPong.mediator == name
}

// SelectNextSpeaker decides which agent speaks next given a consistent
// snapshot of the conversation. Returns nil only when no active agents
// remain. The decision is consistent with the log as it existed when the
// snapshot was taken; the caller re-validates freshness if it needs to.
func (o *Orchestrator) SelectNextSpeaker(ctx context.Context, agents []*models.Agent, snapshot []models.Message) *models.Agent {
	active := models.Active(agents)
	if len(active) == 0 {
		return nil
	}
	activeNames := models.Names(active)

	o.patience.Tick(active, snapshot)

	recent := lastNonSystem(snapshot, config.QuietWindow)
	if len(recent) == 0 {
		// Game start: no one has spoken yet
		return o.finish(active[o.rng.Intn(len(active))])
	}
	last := recent[len(recent)-1]

	// Record new questioner->target edges before evaluating the cascade.
	o.mergeQuestions(ctx, snapshot, activeNames)

	hadPriorPingPong := o.pingPong.active()
	installedNow := false
	defer func() {
		// Remembered pair and mediator persist for exactly one selection
		// cycle after installation.
		if hadPriorPingPong && !installedNow {
			o.pingPong.clear()
		}
	}()

	// Rule 1: forced deflection after a mediator turn. Neither the
	// mediator nor the ping-pong pair may re-seize the floor.
	if o.pingPong.mustDeflect && last.Speaker == o.pingPong.mediator {
		candidates := exclude(active, o.pingPong.mediator, o.pingPong.pairA, o.pingPong.pairB)
		o.pingPong.mustDeflect = false
		if len(candidates) > 0 {
			chosen := o.patience.LongestWaiting(candidates)
			o.logger.WithField("speaker", chosen.Name).Debug("forced deflection after mediation")
			return o.finish(chosen)
		}
	}

	// Rule 2: ping-pong loop break. Fires before defense priority so a
	// pair member cannot re-seize the floor even if freshly accused.
	window := lastNonSystem(snapshot, config.PingPongWindow)
	if a, b, ok := detectPingPong(window); ok {
		candidates := exclude(active, a, b)
		if len(candidates) > 0 {
			mediator := candidates[o.rng.Intn(len(candidates))]
			o.pingPong = pingPongState{pairA: a, pairB: b, mediator: mediator.Name, mustDeflect: true}
			installedNow = true
			o.logger.WithFields(logrus.Fields{
				"pair":     []string{a, b},
				"mediator": mediator.Name,
			}).Info("ping-pong detected, installing mediator")
			return o.finish(mediator)
		}
	}

	// Rule 3: defense priority for a directly addressed agent.
	if addressed := o.oracle.FindAddressed(ctx, last.Text, activeNames); addressed != "" {
		if addressed != last.Speaker && !o.pingPong.inPair(addressed) {
			if agent := models.ByName(active, addressed); agent != nil {
				o.logger.WithField("speaker", addressed).Debug("defense priority")
				return o.finish(agent)
			}
		}
	}

	// Rule 4: pending direct questions, agent-list order.
	for _, a := range active {
		if len(o.questions[a.Name]) > 0 && a.Name != last.Speaker {
			o.logger.WithField("speaker", a.Name).Debug("pending question")
			return o.finish(a)
		}
	}

	// Rule 5: patience overflow.
	if impatient := o.patience.MostImpatient(active); impatient != nil {
		o.logger.WithFields(logrus.Fields{
			"speaker":  impatient.Name,
			"patience": o.patience.Counter(impatient.Name),
		}).Debug("patience overflow")
		return o.finish(impatient)
	}

	// Rule 6: general loop break. Hand the floor to someone quiet.
	if o.oracle.IsUnproductiveLoop(ctx, window) {
		quiet := quietAgents(exclude(active, last.Speaker), recent)
		if len(quiet) > 0 {
			chosen := o.patience.LongestWaiting(quiet)
			o.logger.WithField("speaker", chosen.Name).Debug("unproductive loop, picking quiet agent")
			return o.finish(chosen)
		}
	}

	// Rule 7: default, longest-waiting agent that is not the last speaker.
	if candidates := exclude(active, last.Speaker); len(candidates) > 0 {
		return o.finish(o.patience.LongestWaiting(candidates))
	}

	// Only the last speaker remains active.
	return o.finish(o.patience.LongestWaiting(active))
}

// finish clears the chosen agent's pending-question entry: selection is
// the answer opportunity, whether or not they actually answer.
func (o *Orchestrator) finish(chosen *models.Agent) *models.Agent {
	if chosen != nil {
		delete(o.questions, chosen.Name)
	}
	return chosen
}

// mergeQuestions runs question detection on the newest agent message and
// merges questioner->target edges, deduplicated.
func (o *Orchestrator) mergeQuestions(ctx context.Context, snapshot []models.Message, activeNames []string) {
	if len(snapshot) == 0 {
		return
	}
	newest := snapshot[len(snapshot)-1]
	if newest.IsSystem {
		return
	}

	for _, target := range o.oracle.FindQuestioned(ctx, newest.Text, activeNames) {
		if target == newest.Speaker {
			continue
		}
		if containsString(o.questions[target], newest.Speaker) {
			continue
		}
		o.questions[target] = append(o.questions[target], newest.Speaker)
	}
}

// PendingQuestioners returns the agents waiting on a reply from target.
func (o *Orchestrator) PendingQuestioners(target string) []string {
	return append([]string(nil), o.questions[target]...)
}

// detectPingPong reports whether the window is a genuine two-agent
// alternation: exactly 4 messages, exactly 2 distinct speakers, and no
// speaker twice in a row. [A,B,A,B] triggers; [A,A,B,B] does not.
func detectPingPong(window []models.Message) (string, string, bool) {
	if len(window) < 4 {
		return "", "", false
	}
	window = window[len(window)-4:]

	distinct := make(map[string]bool)
	for i, m := range window {
		distinct[m.Speaker] = true
		if i > 0 && window[i-1].Speaker == m.Speaker {
			return "", "", false
		}
	}
	if len(distinct) != 2 {
		return "", "", false
	}
	return window[0].Speaker, window[1].Speaker, true
}

func lastNonSystem(snapshot []models.Message, n int) []models.Message {
	var out []models.Message
	for i := len(snapshot) - 1; i >= 0 && len(out) < n; i-- {
		if !snapshot[i].IsSystem {
			out = append(out, snapshot[i])
		}
	}
	// collected newest-first; restore conversational order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func exclude(agents []*models.Agent, names ...string) []*models.Agent {
	out := make([]*models.Agent, 0, len(agents))
	for _, a := range agents {
		if !containsString(names, a.Name) {
			out = append(out, a)
		}
	}
	return out
}

// quietAgents returns the agents that do not appear as speakers in the
// recent window.
func quietAgents(agents []*models.Agent, recent []models.Message) []*models.Agent {
	spoke := make(map[string]bool)
	for _, m := range recent {
		spoke[m.Speaker] = true
	}
	out := make([]*models.Agent, 0, len(agents))
	for _, a := range agents {
		if !spoke[a.Name] {
			out = append(out, a)
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
