package rules

import (
	"lanes/internal/game"
)

// Resolution is what ResolveLane decided for a lane.
type Resolution struct {
	Lane    int              `json:"lane"`
	Status  game.ClaimStatus `json:"status"` // ClaimOpen means undecided
	By      game.Seat        `json:"by"`
	Outcome game.LaneOutcome `json:"outcome"`
}

// Decided reports whether the lane should leave the open state.
func (r Resolution) Decided() bool {
	return r.Status != game.ClaimOpen
}

// ResolveLane decides whether an open lane can be claimed.
//
// Both sides full: the stronger side claims; equal strength is contested or
// goes to the first side to fill, depending on the tie break. Exactly one
// side full: that side claims once no completion of the other side drawn
// from unseen can beat it (or reach it, when the tie would go to the full
// side anyway). unseen is every card not yet on the board.
func ResolveLane(lane game.Lane, s game.Scorer, unseen []game.Card, tie game.TieBreak) Resolution {
	res := Resolution{Lane: lane.Index, Status: game.ClaimOpen, By: game.NoSeat}
	res.Outcome = lane.Evaluate(s)
	if !lane.Open() {
		res.Status, res.By = lane.Claim.Status, lane.Claim.By
		return res
	}

	fullA := res.Outcome.Complete[game.SeatA]
	fullB := res.Outcome.Complete[game.SeatB]
	switch {
	case fullA && fullB:
		switch {
		case res.Outcome.Leader != game.NoSeat:
			res.Status, res.By = game.ClaimClaimed, res.Outcome.Leader
		case tie == game.TieFirstComplete && lane.FirstFull.Valid():
			res.Status, res.By = game.ClaimClaimed, lane.FirstFull
		default:
			res.Status = game.ClaimContested
		}
	case fullA || fullB:
		full := game.SeatA
		if fullB {
			full = game.SeatB
		}
		other := full.Opponent()
		target := res.Outcome.Strength[full]
		best, ok := bestCompletion(lane.Sides[other], unseen, lane.Room(other), lane.Pattern, s)
		switch {
		case !ok:
			res.Status, res.By = game.ClaimClaimed, full
		case best < target:
			res.Status, res.By = game.ClaimClaimed, full
		case best == target && tie == game.TieFirstComplete:
			// the full side filled first, so it would win the tie
			res.Status, res.By = game.ClaimClaimed, full
		}
	}
	return res
}

// bestCompletion returns the strongest score reachable by adding need cards
// from pool to side, scored under p. ok is false when pool holds fewer
// than need cards.
func bestCompletion(side, pool []game.Card, need int, p game.Pattern, s game.Scorer) (int, bool) {
	if need > len(pool) {
		return 0, false
	}
	formation := make([]game.Card, len(side), len(side)+need)
	copy(formation, side)
	best := 0
	found := false
	var walk func(start int)
	walk = func(start int) {
		if len(formation) == len(side)+need {
			if score := s.Score(formation, p); !found || score > best {
				best, found = score, true
			}
			return
		}
		remaining := len(side) + need - len(formation)
		for i := start; i <= len(pool)-remaining; i++ {
			formation = append(formation, pool[i])
			walk(i + 1)
			formation = formation[:len(formation)-1]
		}
	}
	walk(0)
	return best, found
}

// ResolveBoard resolves every open lane in index order without mutating the
// board. Callers apply the decided resolutions in the returned order.
func ResolveBoard(b *game.Board, s game.Scorer, unseen []game.Card, tie game.TieBreak) []Resolution {
	var out []Resolution
	for _, l := range b.Lanes() {
		if !l.Open() {
			continue
		}
		if r := ResolveLane(l, s, unseen, tie); r.Decided() {
			out = append(out, r)
		}
	}
	return out
}
