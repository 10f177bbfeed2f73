package domain

import "time"

// EventKind tags the GameEvent union.
type EventKind string

const (
	EventSelfDrawWin  EventKind = "self_draw_win"
	EventDiscardWin   EventKind = "discard_win"
	EventDeclaredMeld EventKind = "declared_meld"
)

// MeldKind is the declared meld variant, each with a fixed base stake.
type MeldKind string

const (
	MeldConcealed MeldKind = "concealed"
	MeldMixed     MeldKind = "mixed"
	MeldExposed   MeldKind = "exposed"
)

// MeldBaseStake returns the per-target stake for a meld declaration.
func MeldBaseStake(kind MeldKind) int {
	switch kind {
	case MeldConcealed:
		return 2
	case MeldMixed:
		return 1
	case MeldExposed:
		return 2
	default:
		return 0
	}
}

// FanType is one client-declared hand combination and its fan value. Values
// are trusted as declared; legality checking is out of scope.
type FanType struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// GameEvent is an immutable scoring event. FanCount, Score and Description are
// derived once at construction and never recomputed, which keeps the ledger
// purely additive and therefore reversible.
//
// Exactly one of the kind-specific field groups is populated:
//
//	SelfDrawWin:  WinnerID, ActivePlayerIDs, FanTypes, GangCount
//	DiscardWin:   WinnerID, DiscarderID, FanTypes, GangCount
//	DeclaredMeld: DeclarerID, MeldKind, TargetIDs
type GameEvent struct {
	ID   string    `json:"id"`
	Kind EventKind `json:"kind"`

	WinnerID        int64     `json:"winner_id,omitempty"`
	DiscarderID     int64     `json:"discarder_id,omitempty"`
	ActivePlayerIDs []int64   `json:"active_player_ids,omitempty"`
	DeclarerID      int64     `json:"declarer_id,omitempty"`
	MeldKind        MeldKind  `json:"meld_kind,omitempty"`
	TargetIDs       []int64   `json:"target_ids,omitempty"`
	FanTypes        []FanType `json:"fan_types,omitempty"`
	GangCount       int       `json:"gang_count,omitempty"`

	FanCount    int       `json:"fan_count"`
	Score       int       `json:"score"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}
