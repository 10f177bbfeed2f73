package domain

import "time"

// Settings are the table rules fixed at room creation.
type Settings struct {
	// MaxFan caps the counted fan of a winning hand; 0 means uncapped.
	MaxFan int `json:"max_fan"`
	// CallTransfer is the house rule flag carried for the clients; the ledger
	// arithmetic does not depend on it.
	CallTransfer bool `json:"call_transfer"`
	// PricePerFan converts final scores to money during debt netting.
	PricePerFan float64 `json:"price_per_fan"`
}

// ScoredPlayer is one player's row in the ledger.
type ScoredPlayer struct {
	ID                int64  `json:"id"` // permanent user id
	Name              string `json:"name"`
	TotalScore        int    `json:"total_score"`
	CurrentRoundScore int    `json:"current_round_score"`
}

// RoundRecord is the append-only snapshot of a settled round.
type RoundRecord struct {
	RoundNumber int           `json:"round_number"`
	Events      []*GameEvent  `json:"events"`
	FinalScores map[int64]int `json:"final_scores"`
	Timestamp   time.Time     `json:"timestamp"`
}

// GameState is the scored game owned by a room.
type GameState struct {
	Players            []*ScoredPlayer `json:"players"`
	CurrentRoundEvents []*GameEvent    `json:"current_round_events"`
	RoundHistory       []RoundRecord   `json:"round_history"`
	CurrentRound       int             `json:"current_round"` // >= 1
	Settings           Settings        `json:"settings"`
	IsGameFinished     bool            `json:"is_game_finished"`
	SettlementResult   []string        `json:"settlement_result,omitempty"`
}

// NewGameState seeds an empty ledger with the given table rules.
func NewGameState(settings Settings) *GameState {
	return &GameState{
		Players:      make([]*ScoredPlayer, 0, MaxSeats),
		CurrentRound: 1,
		Settings:     settings,
	}
}

// PlayerByID returns the scored player with the given id, or nil.
func (g *GameState) PlayerByID(id int64) *ScoredPlayer {
	for _, p := range g.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// PlayerName resolves a player id to a display name, falling back to "?" for
// ids the ledger does not know (client-declared targets are trusted, not
// validated).
func (g *GameState) PlayerName(id int64) string {
	if p := g.PlayerByID(id); p != nil {
		return p.Name
	}
	return "?"
}

// EventByID returns the open-round event with the given id and its index,
// or nil and -1.
func (g *GameState) EventByID(eventID string) (*GameEvent, int) {
	for i, ev := range g.CurrentRoundEvents {
		if ev.ID == eventID {
			return ev, i
		}
	}
	return nil, -1
}

// HasActivity reports whether anything worth archiving happened: at least one
// event in the open round or at least one settled round.
func (g *GameState) HasActivity() bool {
	return len(g.CurrentRoundEvents) > 0 || len(g.RoundHistory) > 0
}
