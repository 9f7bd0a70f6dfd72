// Package rules is the pure rules engine: move validation, lane resolution
// and win detection. Nothing here mutates its inputs.
package rules

import (
	"fmt"

	"lanes/internal/game"
)

// Reason names why a move was rejected.
type Reason string

const (
	NotYourTurn      Reason = "NotYourTurn"
	LaneClaimed      Reason = "LaneClaimed"
	CardNotInHand    Reason = "CardNotInHand"
	MoveShapeInvalid Reason = "MoveShapeInvalid"
	InvalidLane      Reason = "InvalidLane"
	MatchOver        Reason = "MatchOver"
)

// Rejection is a validation failure. It never implies a state change.
type Rejection struct {
	Reason Reason `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return string(r.Reason)
	}
	return fmt.Sprintf("%s: %s", r.Reason, r.Detail)
}

func reject(reason Reason, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// Position is the read-only slice of match state the rules engine needs.
type Position struct {
	Ruleset        game.Ruleset
	Board          *game.Board
	Hands          [2][]game.Card
	Turn           game.Seat
	Reinforcements [2]int // remaining per seat
	Over           bool
}

// ValidateMove checks a proposed move by seat. Checks run in a fixed order:
// turn owner, lane index, lane open, cards held, move shape.
func ValidateMove(pos Position, seat game.Seat, m game.Move) *Rejection {
	if pos.Over {
		return reject(MatchOver, "match is over")
	}
	if seat != pos.Turn {
		return reject(NotYourTurn, "it is %s's turn", pos.Turn)
	}

	if m.Kind == game.MovePass {
		if len(m.Cards) != 0 {
			return reject(MoveShapeInvalid, "pass carries no cards")
		}
		if hasCommit(pos, seat) {
			return reject(MoveShapeInvalid, "cannot pass while a card can be committed")
		}
		return nil
	}

	lane, err := pos.Board.Lane(m.Lane)
	if err != nil {
		return reject(InvalidLane, "lane %d out of range 0..%d", m.Lane, pos.Board.Len()-1)
	}
	if !lane.Open() {
		return reject(LaneClaimed, "lane %d is %s", m.Lane, lane.Claim.Status)
	}
	if !game.ContainsAll(pos.Hands[seat], m.Cards) {
		return reject(CardNotInHand, "%v not in hand", m.Cards)
	}

	room := lane.Room(seat)
	switch m.Kind {
	case game.MoveCommit:
		if len(m.Cards) != 1 {
			return reject(MoveShapeInvalid, "commit takes exactly one card, got %d", len(m.Cards))
		}
	case game.MoveReinforce:
		if pos.Ruleset.Reinforcements == 0 {
			return reject(MoveShapeInvalid, "ruleset has no reinforcements")
		}
		if pos.Reinforcements[seat] <= 0 {
			return reject(MoveShapeInvalid, "no reinforcements left")
		}
		if len(m.Cards) != 2 {
			return reject(MoveShapeInvalid, "reinforce takes exactly two cards, got %d", len(m.Cards))
		}
	default:
		return reject(MoveShapeInvalid, "unknown move kind %q", m.Kind)
	}
	if len(m.Cards) > room {
		return reject(MoveShapeInvalid, "lane %d has room for %d more card(s)", m.Lane, room)
	}
	return nil
}

// hasCommit reports whether seat could commit any card to any lane.
func hasCommit(pos Position, seat game.Seat) bool {
	if len(pos.Hands[seat]) == 0 {
		return false
	}
	for _, l := range pos.Board.Lanes() {
		if l.Open() && !l.Full(seat) {
			return true
		}
	}
	return false
}

// LegalMoves lists every legal move for seat: single-card commits, then
// reinforcements, or a lone pass when nothing can be committed. Returns nil
// when it is not seat's turn or the match is over.
func LegalMoves(pos Position, seat game.Seat) []game.Move {
	if pos.Over || seat != pos.Turn {
		return nil
	}
	hand := pos.Hands[seat]
	var moves []game.Move
	for _, l := range pos.Board.Lanes() {
		if !l.Open() {
			continue
		}
		room := l.Room(seat)
		if room <= 0 {
			continue
		}
		for _, c := range hand {
			moves = append(moves, game.Commit(l.Index, c))
		}
		if room >= 2 && pos.Ruleset.Reinforcements > 0 && pos.Reinforcements[seat] > 0 {
			for i := 0; i < len(hand); i++ {
				for j := i + 1; j < len(hand); j++ {
					moves = append(moves, game.Move{
						Kind:  game.MoveReinforce,
						Lane:  l.Index,
						Cards: []game.Card{hand[i], hand[j]},
					})
				}
			}
		}
	}
	if len(moves) == 0 {
		return []game.Move{game.Pass()}
	}
	return moves
}

// CanAct reports whether seat has anything other than a pass available,
// regardless of whose turn it is.
func CanAct(pos Position, seat game.Seat) bool {
	return hasCommit(pos, seat)
}
