package models

// Vote is one agent's ballot in a voting round.
type Vote struct {
	Voter  string `json:"voter"`
	Target string `json:"target"`
	Reason string `json:"reason"`
}

// VoteRecord captures one voting round. Records are append-only across the
// game and feed later prompt construction.
type VoteRecord struct {
	Round      int    `json:"round"`
	Votes      []Vote `json:"votes"`
	Eliminated string `json:"eliminated,omitempty"`
}
