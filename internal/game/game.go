// Package game holds the value types of a lane-claim card game: cards,
// decks, lanes, the board, moves and the ruleset parameters.
package game

import (
	"encoding/json"
	"fmt"
)

// Seat identifies one of the two sides of a match.
type Seat int

const (
	NoSeat Seat = -1
	SeatA  Seat = 0
	SeatB  Seat = 1
)

// Seats lists the playable seats in turn order.
var Seats = [2]Seat{SeatA, SeatB}

// Opponent returns the other seat.
func (s Seat) Opponent() Seat {
	switch s {
	case SeatA:
		return SeatB
	case SeatB:
		return SeatA
	}
	return NoSeat
}

// Valid reports whether s is SeatA or SeatB.
func (s Seat) Valid() bool {
	return s == SeatA || s == SeatB
}

func (s Seat) String() string {
	switch s {
	case SeatA:
		return "A"
	case SeatB:
		return "B"
	}
	return "none"
}

// MoveKind is the shape of a move.
type MoveKind string

const (
	MoveCommit    MoveKind = "commit"
	MoveReinforce MoveKind = "reinforce"
	MovePass      MoveKind = "pass"
)

// Move is a player-submitted action. ID is assigned by the client and used
// to deduplicate retries. ExpectedSeq, when non-zero, must match the match's
// current sequence number.
type Move struct {
	ID          string   `json:"id,omitempty"`
	Kind        MoveKind `json:"kind"`
	Lane        int      `json:"lane"`
	Cards       []Card   `json:"cards,omitempty"`
	ExpectedSeq uint64   `json:"expectedSeq,omitempty"`
}

// Commit builds a single-card commit move.
func Commit(lane int, c Card) Move {
	return Move{Kind: MoveCommit, Lane: lane, Cards: []Card{c}}
}

// Pass builds a pass move.
func Pass() Move {
	return Move{Kind: MovePass}
}

func (m Move) String() string {
	switch m.Kind {
	case MovePass:
		return "pass"
	default:
		return fmt.Sprintf("%s %v -> lane %d", m.Kind, m.Cards, m.Lane)
	}
}

// UnmarshalJSON accepts a single "card" field as shorthand for a
// one-element "cards" list.
func (m *Move) UnmarshalJSON(data []byte) error {
	type alias Move
	var aux struct {
		alias
		Card *Card `json:"card,omitempty"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*m = Move(aux.alias)
	if aux.Card != nil && len(m.Cards) == 0 {
		m.Cards = []Card{*aux.Card}
	}
	return nil
}
