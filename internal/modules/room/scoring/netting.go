package scoring

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/frankieli/mahjong_scorekeeper/internal/modules/room/domain"
)

// moneyTolerance absorbs floating-point dust when comparing converted scores.
const moneyTolerance = 0.001

// NetDebts converts final scores to money and produces ordered transfer
// instructions, one per indebted player: losers are taken largest debt first
// and each pays their entire converted debt to the winner holding the largest
// remaining credit. Ties fall back to roster order.
//
// The matching is deterministic but makes no attempt to minimize transaction
// count or to square each winner exactly; this mirrors the settlement text
// players have always seen and is preserved as-is.
func NetDebts(players []*domain.ScoredPlayer, pricePerFan float64) []string {
	type account struct {
		name   string
		amount float64 // positive: credit remaining; from losers: debt owed
		order  int
	}

	var winners, losers []*account
	for i, p := range players {
		money := float64(p.TotalScore) * pricePerFan
		switch {
		case money > moneyTolerance:
			winners = append(winners, &account{name: p.Name, amount: money, order: i})
		case money < -moneyTolerance:
			losers = append(losers, &account{name: p.Name, amount: -money, order: i})
		}
	}

	if len(winners) == 0 || len(losers) == 0 {
		return []string{}
	}

	sort.SliceStable(losers, func(i, j int) bool {
		if losers[i].amount != losers[j].amount {
			return losers[i].amount > losers[j].amount
		}
		return losers[i].order < losers[j].order
	})

	instructions := make([]string, 0, len(losers))
	for _, loser := range losers {
		var best *account
		for _, w := range winners {
			if best == nil || w.amount > best.amount {
				best = w
			}
		}
		best.amount -= loser.amount
		instructions = append(instructions, fmt.Sprintf("%s -> %s: %s", loser.name, best.name, formatAmount(loser.amount)))
	}

	return instructions
}

func formatAmount(v float64) string {
	// Round to cents before trimming trailing zeros.
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
