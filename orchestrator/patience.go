package orchestrator

import (
	"mafia/config"
	"mafia/models"
)

// PatienceTracker counts, per agent, how many messages have gone by since
// that agent last spoke. It is the source of the fairness guarantee: an
// agent whose counter crosses the threshold is forced a turn.
//
// Counters for eliminated agents are simply ignored, never renormalized.
type PatienceTracker struct {
	counters  map[string]int
	threshold int
	seen      int // non-system messages already processed
}

// NewPatienceTracker creates a tracker with the configured overflow threshold.
func NewPatienceTracker() *PatienceTracker {
	return &PatienceTracker{
		counters:  make(map[string]int),
		threshold: config.PatienceThreshold,
	}
}

// Tick advances counters for every non-system message in the snapshot that
// has not been processed yet: the speaker's counter resets to 0, every
// other active agent's counter increments by 1. Keyed off the snapshot
// length, so calling it twice against the same log state is a no-op.
func (p *PatienceTracker) Tick(active []*models.Agent, snapshot []models.Message) {
	for _, a := range active {
		if _, ok := p.counters[a.Name]; !ok {
			p.counters[a.Name] = 0
		}
	}

	index := 0
	for _, m := range snapshot {
		if m.IsSystem {
			continue
		}
		index++
		if index <= p.seen {
			continue
		}
		for _, a := range active {
			if a.Name == m.Speaker {
				p.counters[a.Name] = 0
			} else {
				p.counters[a.Name]++
			}
		}
	}
	if index > p.seen {
		p.seen = index
	}
}

// MostImpatient returns the first agent, in input order, whose counter has
// reached the threshold. Scan order is the tie-break, not magnitude.
func (p *PatienceTracker) MostImpatient(agents []*models.Agent) *models.Agent {
	for _, a := range agents {
		if p.counters[a.Name] >= p.threshold {
			return a
		}
	}
	return nil
}

// LongestWaiting returns the agent with the highest counter. Ties are
// broken by input order: the first maximum found wins.
func (p *PatienceTracker) LongestWaiting(agents []*models.Agent) *models.Agent {
	var best *models.Agent
	bestCount := -1
	for _, a := range agents {
		if p.counters[a.Name] > bestCount {
			best = a
			bestCount = p.counters[a.Name]
		}
	}
	return best
}

// Counter returns the current patience value for an agent.
func (p *PatienceTracker) Counter(name string) int {
	return p.counters[name]
}

// IsImpatient reports whether an agent's counter has reached the threshold.
func (p *PatienceTracker) IsImpatient(name string) bool {
	return p.counters[name] >= p.threshold
}
