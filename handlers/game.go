package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"mafia/config"
	"mafia/game"
	"mafia/models"
)

type CreateGameRequest struct {
	NumAgents int `json:"num_agents"`
	NumMafia  int `json:"num_mafia"`
}

type CreateGameResponse struct {
	GameID string `json:"game_id"`
	Error  string `json:"error,omitempty"`
}

// CreateGameHandler builds a new game with shuffled roles. The game does
// not run until /start is called.
func CreateGameHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CreateGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if req.NumAgents == 0 {
		req.NumAgents = config.DefaultNumAgents
	}
	if req.NumMafia == 0 {
		req.NumMafia = config.DefaultNumMafia
	}

	g, err := game.NewGame(game.Config{
		NumAgents: req.NumAgents,
		NumMafia:  req.NumMafia,
		Generate:  generate,
		Store:     store,
		Logger:    logger,
	})
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(CreateGameResponse{Error: err.Error()})
		return
	}

	registry.Set(g)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(CreateGameResponse{GameID: g.ID()})
}

type GameIDRequest struct {
	GameID string `json:"game_id"`
}

type GameStatusResponse struct {
	GameID string           `json:"game_id"`
	Phase  models.GamePhase `json:"phase"`
	Error  string           `json:"error,omitempty"`
}

// StartGameHandler starts the turn loop for a created game.
func StartGameHandler(w http.ResponseWriter, r *http.Request) {
	g, ok := lookupGame(w, r)
	if !ok {
		return
	}
	if g.Running() {
		writeStatus(w, g)
		return
	}

	ctx := context.Background()
	g.Start(ctx)
	go g.Run(ctx)

	logger.WithField("game_id", g.ID()).Info("game started")
	writeStatus(w, g)
}

// StopGameHandler cancels a running game. The loop aborts before its next
// external call; completed state is left untouched.
func StopGameHandler(w http.ResponseWriter, r *http.Request) {
	g, ok := lookupGame(w, r)
	if !ok {
		return
	}
	g.Stop()
	logger.WithField("game_id", g.ID()).Info("game stopped")
	writeStatus(w, g)
}

func lookupGame(w http.ResponseWriter, r *http.Request) (*game.Game, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return nil, false
	}

	var req GameIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return nil, false
	}

	g, ok := registry.Get(req.GameID)
	if !ok {
		http.Error(w, "Game not found", http.StatusNotFound)
		return nil, false
	}
	return g, true
}

func writeStatus(w http.ResponseWriter, g *game.Game) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(GameStatusResponse{GameID: g.ID(), Phase: g.Phase()})
}
