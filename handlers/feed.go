package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"mafia/game"
	"mafia/models"
)

type FeedResponse struct {
	GameID   string           `json:"game_id"`
	Phase    models.GamePhase `json:"phase"`
	Messages []models.Message `json:"messages"`
	Count    int              `json:"count"`
}

// FeedHandler returns a consistent snapshot of the conversation. A UI can
// poll this while the turn loop advances; the log's lock guarantees no
// partial message is ever observed.
func FeedHandler(w http.ResponseWriter, r *http.Request) {
	g, ok := lookupGameQuery(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	var messages []models.Message
	if limit > 0 {
		messages = g.Log().Recent(limit)
	} else {
		messages = g.Log().Snapshot()
	}

	response := FeedResponse{
		GameID:   g.ID(),
		Phase:    g.Phase(),
		Messages: messages,
		Count:    len(messages),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

type AgentsResponse struct {
	GameID string         `json:"game_id"`
	Agents []models.Agent `json:"agents"`
}

// AgentsHandler returns the current agent states.
func AgentsHandler(w http.ResponseWriter, r *http.Request) {
	g, ok := lookupGameQuery(w, r)
	if !ok {
		return
	}

	response := AgentsResponse{GameID: g.ID(), Agents: g.AgentStates()}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

type StatsResponse struct {
	GameID string     `json:"game_id"`
	Stats  game.Stats `json:"stats"`
}

// StatsHandler returns game statistics.
func StatsHandler(w http.ResponseWriter, r *http.Request) {
	g, ok := lookupGameQuery(w, r)
	if !ok {
		return
	}

	response := StatsResponse{GameID: g.ID(), Stats: g.Statistics()}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func lookupGameQuery(w http.ResponseWriter, r *http.Request) (*game.Game, bool) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return nil, false
	}

	gameID := r.URL.Query().Get("game_id")
	if gameID == "" {
		http.Error(w, "game_id is required", http.StatusBadRequest)
		return nil, false
	}

	g, ok := registry.Get(gameID)
	if !ok {
		http.Error(w, "Game not found", http.StatusNotFound)
		return nil, false
	}
	return g, true
}
