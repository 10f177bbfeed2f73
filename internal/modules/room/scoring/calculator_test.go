package scoring

import (
	"testing"

	"github.com/frankieli/mahjong_scorekeeper/internal/modules/room/domain"
)

func newTestGame(maxFan int) *domain.GameState {
	g := domain.NewGameState(domain.Settings{MaxFan: maxFan, PricePerFan: 1})
	g.Players = []*domain.ScoredPlayer{
		{ID: 1, Name: "Alice"},
		{ID: 2, Name: "Bob"},
		{ID: 3, Name: "Carol"},
		{ID: 4, Name: "Dave"},
	}
	return g
}

func roundScores(g *domain.GameState) map[int64]int {
	out := make(map[int64]int, len(g.Players))
	for _, p := range g.Players {
		out[p.ID] = p.CurrentRoundScore
	}
	return out
}

func TestScoreFromFan(t *testing.T) {
	cases := []struct {
		fan  int
		want int
	}{
		{0, 1}, // minimum stake
		{1, 2},
		{2, 4},
		{4, 16},
		{6, 64},
	}
	for _, c := range cases {
		if got := ScoreFromFan(c.fan); got != c.want {
			t.Errorf("ScoreFromFan(%d) = %d, want %d", c.fan, got, c.want)
		}
	}
}

func TestTotalFanCapAndMonotonicity(t *testing.T) {
	fans := []domain.FanType{{Name: "all pungs", Value: 2}, {Name: "pure suit", Value: 3}}

	if got := TotalFan(fans, 0, 4); got != 4 {
		t.Errorf("capped TotalFan = %d, want 4", got)
	}
	if got := TotalFan(fans, 0, 0); got != 5 {
		t.Errorf("uncapped TotalFan = %d, want 5", got)
	}

	// Non-decreasing in gang count and in selected fan types.
	prev := -1
	for gang := 0; gang < 5; gang++ {
		got := TotalFan(fans, gang, 0)
		if got < prev {
			t.Fatalf("TotalFan decreased when gangCount grew: %d -> %d", prev, got)
		}
		prev = got
	}
	prev = -1
	for i := 0; i <= len(fans); i++ {
		got := TotalFan(fans[:i], 0, 0)
		if got < prev {
			t.Fatalf("TotalFan decreased when fan types grew: %d -> %d", prev, got)
		}
		prev = got
	}
}

func TestSelfDrawWinCappedScenario(t *testing.T) {
	// maxFan=4, declared fan 2+3=5, four active players:
	// capped fan 4, per-loser 2^4+1=17, winner credit 17*3=51.
	g := newTestGame(4)
	fans := []domain.FanType{{Name: "all pungs", Value: 2}, {Name: "pure suit", Value: 3}}

	ev := NewSelfDrawWin(g, 1, []int64{1, 2, 3, 4}, fans, 0)
	if ev.FanCount != 4 {
		t.Fatalf("FanCount = %d, want 4", ev.FanCount)
	}
	if ev.Score != 51 {
		t.Fatalf("Score = %d, want 51", ev.Score)
	}

	Apply(g, ev)
	want := map[int64]int{1: 51, 2: -17, 3: -17, 4: -17}
	for id, w := range want {
		if got := g.PlayerByID(id).CurrentRoundScore; got != w {
			t.Errorf("player %d score = %d, want %d", id, got, w)
		}
	}
	if sum := RoundImbalance(g); sum != 0 {
		t.Errorf("self-draw imbalance = %d, want 0", sum)
	}
}

func TestDiscardWinMinimumStake(t *testing.T) {
	g := newTestGame(0)
	ev := NewDiscardWin(g, 2, 3, nil, 0)
	if ev.Score != 1 {
		t.Fatalf("0-fan discard score = %d, want 1", ev.Score)
	}

	Apply(g, ev)
	if got := g.PlayerByID(2).CurrentRoundScore; got != 1 {
		t.Errorf("winner score = %d, want 1", got)
	}
	if got := g.PlayerByID(3).CurrentRoundScore; got != -1 {
		t.Errorf("discarder score = %d, want -1", got)
	}
}

func TestDeclaredMeldStakes(t *testing.T) {
	g := newTestGame(0)

	ev := NewDeclaredMeld(g, 1, domain.MeldConcealed, []int64{2, 3, 4})
	if ev.Score != 6 {
		t.Fatalf("concealed meld score = %d, want 6", ev.Score)
	}
	Apply(g, ev)
	if got := g.PlayerByID(1).CurrentRoundScore; got != 6 {
		t.Errorf("declarer score = %d, want 6", got)
	}
	for _, id := range []int64{2, 3, 4} {
		if got := g.PlayerByID(id).CurrentRoundScore; got != -2 {
			t.Errorf("target %d score = %d, want -2", id, got)
		}
	}

	mixed := NewDeclaredMeld(g, 1, domain.MeldMixed, []int64{2})
	if mixed.Score != 1 {
		t.Errorf("mixed meld score = %d, want 1", mixed.Score)
	}
	exposed := NewDeclaredMeld(g, 1, domain.MeldExposed, []int64{3})
	if exposed.Score != 2 {
		t.Errorf("exposed meld score = %d, want 2", exposed.Score)
	}
}

func TestApplyReverseRoundTrip(t *testing.T) {
	g := newTestGame(4)

	events := []*domain.GameEvent{
		NewSelfDrawWin(g, 1, []int64{1, 2, 3, 4}, []domain.FanType{{Name: "seven pairs", Value: 2}}, 1),
		NewDiscardWin(g, 2, 4, []domain.FanType{{Name: "all simples", Value: 1}}, 0),
		NewDeclaredMeld(g, 3, domain.MeldConcealed, []int64{1, 2, 4}),
		NewDiscardWin(g, 4, 1, nil, 2),
	}

	before := roundScores(g)
	for _, ev := range events {
		Apply(g, ev)
	}
	for i := len(events) - 1; i >= 0; i-- {
		Reverse(g, events[i])
	}

	after := roundScores(g)
	for id, want := range before {
		if after[id] != want {
			t.Errorf("player %d: round-trip score = %d, want %d", id, after[id], want)
		}
	}
}

func TestReverseSingleMidSequenceEvent(t *testing.T) {
	// Events commute on the linear ledger: retracting one event from the
	// middle restores exactly its deltas.
	g := newTestGame(0)
	first := NewDiscardWin(g, 1, 2, []domain.FanType{{Name: "x", Value: 3}}, 0)
	second := NewDeclaredMeld(g, 3, domain.MeldMixed, []int64{1, 2})
	third := NewSelfDrawWin(g, 4, []int64{1, 2, 3, 4}, nil, 1)

	Apply(g, first)
	Apply(g, second)
	Apply(g, third)

	withSecond := roundScores(g)
	Reverse(g, second)

	for _, p := range g.Players {
		want := withSecond[p.ID]
		switch p.ID {
		case 3:
			want -= second.Score
		case 1, 2:
			want += domain.MeldBaseStake(domain.MeldMixed)
		}
		if p.CurrentRoundScore != want {
			t.Errorf("player %d after mid-sequence reverse = %d, want %d", p.ID, p.CurrentRoundScore, want)
		}
	}
}

func TestSettleRoundMovesScoresAndHistory(t *testing.T) {
	g := newTestGame(0)
	ev := NewDiscardWin(g, 1, 2, []domain.FanType{{Name: "x", Value: 2}}, 0)
	g.CurrentRoundEvents = append(g.CurrentRoundEvents, ev)
	Apply(g, ev)
	SettleRound(g)

	if g.CurrentRound != 2 {
		t.Errorf("CurrentRound = %d, want 2", g.CurrentRound)
	}
	if len(g.RoundHistory) != 1 {
		t.Fatalf("RoundHistory len = %d, want 1", len(g.RoundHistory))
	}
	if g.RoundHistory[0].FinalScores[1] != 4 || g.RoundHistory[0].FinalScores[2] != -4 {
		t.Errorf("FinalScores = %v, want 1:+4 2:-4", g.RoundHistory[0].FinalScores)
	}
	if g.PlayerByID(1).TotalScore != 4 || g.PlayerByID(1).CurrentRoundScore != 0 {
		t.Errorf("winner totals after settle = %d/%d, want 4/0",
			g.PlayerByID(1).TotalScore, g.PlayerByID(1).CurrentRoundScore)
	}
	if len(g.CurrentRoundEvents) != 0 {
		t.Errorf("open round not cleared: %d events", len(g.CurrentRoundEvents))
	}
}

func TestSettleEmptyRoundOnlyAdvancesCounter(t *testing.T) {
	g := newTestGame(0)
	g.PlayerByID(1).TotalScore = 7

	SettleRound(g)

	if g.CurrentRound != 2 {
		t.Errorf("CurrentRound = %d, want 2", g.CurrentRound)
	}
	if len(g.RoundHistory) != 0 {
		t.Errorf("empty round appended history: %d records", len(g.RoundHistory))
	}
	if g.PlayerByID(1).TotalScore != 7 {
		t.Errorf("TotalScore moved on empty round: %d", g.PlayerByID(1).TotalScore)
	}
}
