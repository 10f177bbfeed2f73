// Package scoring implements the pure ledger arithmetic: event construction,
// apply/reverse, round settlement and final debt netting. Nothing here touches
// storage or transport.
package scoring

import (
	"fmt"
	"time"

	"github.com/frankieli/mahjong_scorekeeper/internal/modules/room/domain"
	"github.com/google/uuid"
)

// ScoreFromFan converts counted fan to the base stake. Stakes double per fan;
// a 0-fan hand still costs the table minimum.
func ScoreFromFan(fan int) int {
	if fan <= 0 {
		return 1
	}
	return 1 << fan
}

// TotalFan sums declared fan values plus gang count, capped to maxFan when
// maxFan > 0 (0 means uncapped).
func TotalFan(fanTypes []domain.FanType, gangCount int, maxFan int) int {
	total := gangCount
	for _, ft := range fanTypes {
		total += ft.Value
	}
	if maxFan > 0 && total > maxFan {
		total = maxFan
	}
	return total
}

// NewSelfDrawWin builds a self-draw win event against the given game state.
// Score is (base+1) per non-winner, times the number of non-winners, so every
// active non-winner pays the same per-head amount.
func NewSelfDrawWin(g *domain.GameState, winnerID int64, activePlayerIDs []int64, fanTypes []domain.FanType, gangCount int) *domain.GameEvent {
	fan := TotalFan(fanTypes, gangCount, g.Settings.MaxFan)
	perLoser := ScoreFromFan(fan) + 1
	losers := len(activePlayerIDs) - 1
	score := perLoser * losers

	return &domain.GameEvent{
		ID:              uuid.NewString(),
		Kind:            domain.EventSelfDrawWin,
		WinnerID:        winnerID,
		ActivePlayerIDs: append([]int64(nil), activePlayerIDs...),
		FanTypes:        append([]domain.FanType(nil), fanTypes...),
		GangCount:       gangCount,
		FanCount:        fan,
		Score:           score,
		Description:     fmt.Sprintf("%s self-drew %d fan, %d from each of %d players", g.PlayerName(winnerID), fan, perLoser, losers),
		CreatedAt:       time.Now(),
	}
}

// NewDiscardWin builds a discard win event: no self-draw bonus, no multiplier,
// the single discarder carries the whole stake.
func NewDiscardWin(g *domain.GameState, winnerID, discarderID int64, fanTypes []domain.FanType, gangCount int) *domain.GameEvent {
	fan := TotalFan(fanTypes, gangCount, g.Settings.MaxFan)
	score := ScoreFromFan(fan)

	return &domain.GameEvent{
		ID:          uuid.NewString(),
		Kind:        domain.EventDiscardWin,
		WinnerID:    winnerID,
		DiscarderID: discarderID,
		FanTypes:    append([]domain.FanType(nil), fanTypes...),
		GangCount:   gangCount,
		FanCount:    fan,
		Score:       score,
		Description: fmt.Sprintf("%s won %d fan off %s's discard for %d", g.PlayerName(winnerID), fan, g.PlayerName(discarderID), score),
		CreatedAt:   time.Now(),
	}
}

// NewDeclaredMeld builds a meld declaration event: the declarer collects the
// kind's base stake from each named target.
func NewDeclaredMeld(g *domain.GameState, declarerID int64, kind domain.MeldKind, targetIDs []int64) *domain.GameEvent {
	base := domain.MeldBaseStake(kind)
	score := base * len(targetIDs)

	return &domain.GameEvent{
		ID:          uuid.NewString(),
		Kind:        domain.EventDeclaredMeld,
		DeclarerID:  declarerID,
		MeldKind:    kind,
		TargetIDs:   append([]int64(nil), targetIDs...),
		Score:       score,
		Description: fmt.Sprintf("%s declared a %s meld, %d from each of %d players", g.PlayerName(declarerID), kind, base, len(targetIDs)),
		CreatedAt:   time.Now(),
	}
}

// Apply mutates CurrentRoundScore (never TotalScore) by the event's fixed
// deltas. Participants the ledger does not know are skipped silently; the
// event fields are client-declared and trusted.
func Apply(g *domain.GameState, ev *domain.GameEvent) {
	applySigned(g, ev, 1)
}

// Reverse is the exact algebraic inverse of Apply for the same event, so
// retracting any single past event restores the pre-event balances regardless
// of how many events came in between.
func Reverse(g *domain.GameState, ev *domain.GameEvent) {
	applySigned(g, ev, -1)
}

func applySigned(g *domain.GameState, ev *domain.GameEvent, sign int) {
	switch ev.Kind {
	case domain.EventSelfDrawWin:
		losers := len(ev.ActivePlayerIDs) - 1
		if losers < 1 {
			return
		}
		perLoser := ev.Score / losers
		addScore(g, ev.WinnerID, sign*ev.Score)
		for _, id := range ev.ActivePlayerIDs {
			if id == ev.WinnerID {
				continue
			}
			addScore(g, id, -sign*perLoser)
		}

	case domain.EventDiscardWin:
		addScore(g, ev.WinnerID, sign*ev.Score)
		addScore(g, ev.DiscarderID, -sign*ev.Score)

	case domain.EventDeclaredMeld:
		base := domain.MeldBaseStake(ev.MeldKind)
		addScore(g, ev.DeclarerID, sign*ev.Score)
		for _, id := range ev.TargetIDs {
			addScore(g, id, -sign*base)
		}
	}
}

func addScore(g *domain.GameState, playerID int64, delta int) {
	if p := g.PlayerByID(playerID); p != nil {
		p.CurrentRoundScore += delta
	}
}

// RoundImbalance returns the sum of CurrentRoundScore across all players.
// Symmetric events keep it at zero; a non-zero value is tolerated but should
// be surfaced as a warning upstream.
func RoundImbalance(g *domain.GameState) int {
	sum := 0
	for _, p := range g.Players {
		sum += p.CurrentRoundScore
	}
	return sum
}

// SettleRound folds the open round into lifetime totals: TotalScore absorbs
// CurrentRoundScore, a RoundRecord snapshots the round, and the counter
// advances. A round with no events only advances the counter (skip-empty
// policy: no history entry, no score movement).
func SettleRound(g *domain.GameState) {
	if len(g.CurrentRoundEvents) == 0 {
		g.CurrentRound++
		return
	}

	finalScores := make(map[int64]int, len(g.Players))
	for _, p := range g.Players {
		finalScores[p.ID] = p.CurrentRoundScore
		p.TotalScore += p.CurrentRoundScore
		p.CurrentRoundScore = 0
	}

	g.RoundHistory = append(g.RoundHistory, domain.RoundRecord{
		RoundNumber: g.CurrentRound,
		Events:      g.CurrentRoundEvents,
		FinalScores: finalScores,
		Timestamp:   time.Now(),
	})
	g.CurrentRoundEvents = nil
	g.CurrentRound++
}
