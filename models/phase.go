package models

// GamePhase represents the current state of the round machine.
type GamePhase string

const (
	PhaseDiscussion GamePhase = "discussion"
	PhaseVoting     GamePhase = "voting"
	PhaseNightKill  GamePhase = "night_kill"
	PhaseSummary    GamePhase = "summary"
	PhaseGameOver   GamePhase = "game_over"
)
