package handlers

import (
	"sync"

	"github.com/sirupsen/logrus"

	"mafia/game"
	"mafia/llm"
)

// Registry holds the live games in this process, keyed by game ID.
type Registry struct {
	games map[string]*game.Game
	mu    sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{games: make(map[string]*game.Game)}
}

// Get retrieves a game by ID.
func (r *Registry) Get(id string) (*game.Game, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.games[id]
	return g, ok
}

// Set stores a game.
func (r *Registry) Set(g *game.Game) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.games[g.ID()] = g
}

// Delete removes a game.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.games, id)
}

// Shared handler dependencies, wired once from main.
var (
	registry = NewRegistry()
	generate llm.GenerateFunc
	store    game.ScratchpadStore
	logger   = logrus.New()
)

// Init wires the handler package's dependencies. store may be nil when no
// database is configured.
func Init(generateFn llm.GenerateFunc, scratchpadStore game.ScratchpadStore, log *logrus.Logger) {
	generate = generateFn
	store = scratchpadStore
	if log != nil {
		logger = log
	}
}
