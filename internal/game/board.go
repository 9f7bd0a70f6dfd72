package game

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidLane        = errors.New("invalid lane")
	ErrLaneAlreadyClaimed = errors.New("lane already claimed")
	ErrSideFull           = errors.New("lane side is full")
	ErrInvariantViolation = errors.New("invariant violation")
)

// ClaimStatus is the terminal state of a lane. Once a lane leaves
// ClaimOpen it never changes again.
type ClaimStatus string

const (
	ClaimOpen      ClaimStatus = "open"
	ClaimClaimed   ClaimStatus = "claimed"
	ClaimContested ClaimStatus = "contested"
)

// Claim is the claim marker of a lane. By is NoSeat unless Status is
// ClaimClaimed.
type Claim struct {
	Status ClaimStatus `json:"status"`
	By     Seat        `json:"by"`
}

// Lane is one contested zone: two ordered card sequences and a claim.
type Lane struct {
	Index     int       `json:"index"`
	Capacity  int       `json:"capacity"`
	Pattern   Pattern   `json:"pattern,omitempty"`
	Sides     [2][]Card `json:"sides"`
	Claim     Claim     `json:"claim"`
	FirstFull Seat      `json:"firstFull"` // first seat to fill its side
}

// Open reports whether the lane can still be played to.
func (l *Lane) Open() bool {
	return l.Claim.Status == ClaimOpen
}

// Full reports whether seat's side of the lane is at capacity.
func (l *Lane) Full(seat Seat) bool {
	return len(l.Sides[seat]) >= l.Capacity
}

// Room is how many more cards seat's side holds.
func (l *Lane) Room(seat Seat) int {
	return max(l.Capacity-len(l.Sides[seat]), 0)
}

func (l *Lane) clone() Lane {
	out := *l
	for i := range l.Sides {
		out.Sides[i] = append([]Card(nil), l.Sides[i]...)
	}
	return out
}

// Scorer maps a completed or partial side of a lane to a comparable
// strength under the lane's pattern. Higher is stronger.
type Scorer interface {
	Score(cards []Card, p Pattern) int
}

// LaneOutcome is the current comparison of a lane. It is a read, not a
// claim.
type LaneOutcome struct {
	Lane     int     `json:"lane"`
	Strength [2]int  `json:"strength"`
	Complete [2]bool `json:"complete"`
	Leader   Seat    `json:"leader"`
	Tied     bool    `json:"tied"`
	Claim    Claim   `json:"claim"`
}

// Board is the ordered collection of lanes.
type Board struct {
	lanes []Lane
}

// NewBoard creates a board of n open, unpatterned lanes of the given side
// capacity.
func NewBoard(n, capacity int) *Board {
	specs := make([]LaneSpec, n)
	for i := range specs {
		specs[i] = LaneSpec{Capacity: capacity}
	}
	return NewBoardOf(specs)
}

// NewBoardOf creates one open lane per spec.
func NewBoardOf(specs []LaneSpec) *Board {
	lanes := make([]Lane, len(specs))
	for i, spec := range specs {
		lanes[i] = Lane{
			Index:     i,
			Capacity:  spec.Capacity,
			Pattern:   spec.Pattern,
			Claim:     Claim{Status: ClaimOpen, By: NoSeat},
			FirstFull: NoSeat,
		}
	}
	return &Board{lanes: lanes}
}

// Len returns the number of lanes.
func (b *Board) Len() int {
	return len(b.lanes)
}

// Lane returns a copy of lane i.
func (b *Board) Lane(i int) (Lane, error) {
	if i < 0 || i >= len(b.lanes) {
		return Lane{}, fmt.Errorf("%w: %d", ErrInvalidLane, i)
	}
	return b.lanes[i].clone(), nil
}

// Lanes returns copies of all lanes.
func (b *Board) Lanes() []Lane {
	out := make([]Lane, len(b.lanes))
	for i := range b.lanes {
		out[i] = b.lanes[i].clone()
	}
	return out
}

// Cards returns every card committed to the board.
func (b *Board) Cards() []Card {
	var out []Card
	for i := range b.lanes {
		out = append(out, b.lanes[i].Sides[SeatA]...)
		out = append(out, b.lanes[i].Sides[SeatB]...)
	}
	return out
}

// Claims returns the claim marker of every lane in order.
func (b *Board) Claims() []Claim {
	out := make([]Claim, len(b.lanes))
	for i := range b.lanes {
		out[i] = b.lanes[i].Claim
	}
	return out
}

// CommitCard appends c to seat's side of lane i.
func (b *Board) CommitCard(i int, seat Seat, c Card) error {
	if i < 0 || i >= len(b.lanes) {
		return fmt.Errorf("%w: %d", ErrInvalidLane, i)
	}
	if !seat.Valid() {
		return fmt.Errorf("%w: seat %d", ErrInvariantViolation, seat)
	}
	l := &b.lanes[i]
	if !l.Open() {
		return fmt.Errorf("%w: lane %d is %s", ErrLaneAlreadyClaimed, i, l.Claim.Status)
	}
	if l.Full(seat) {
		return fmt.Errorf("%w: lane %d seat %s", ErrSideFull, i, seat)
	}
	l.Sides[seat] = append(l.Sides[seat], c)
	if l.FirstFull == NoSeat && l.Full(seat) {
		l.FirstFull = seat
	}
	return nil
}

// EvaluateLane compares both sides of lane i with the scorer.
func (b *Board) EvaluateLane(i int, s Scorer) (LaneOutcome, error) {
	if i < 0 || i >= len(b.lanes) {
		return LaneOutcome{}, fmt.Errorf("%w: %d", ErrInvalidLane, i)
	}
	return b.lanes[i].Evaluate(s), nil
}

// Evaluate compares both sides of the lane with the scorer.
func (l *Lane) Evaluate(s Scorer) LaneOutcome {
	out := LaneOutcome{Lane: l.Index, Leader: NoSeat, Claim: l.Claim}
	for _, seat := range Seats {
		if len(l.Sides[seat]) > 0 {
			out.Strength[seat] = s.Score(l.Sides[seat], l.Pattern)
		}
		out.Complete[seat] = l.Full(seat)
	}
	switch {
	case len(l.Sides[SeatA]) == 0 && len(l.Sides[SeatB]) == 0:
	case len(l.Sides[SeatB]) == 0:
		out.Leader = SeatA
	case len(l.Sides[SeatA]) == 0:
		out.Leader = SeatB
	case out.Strength[SeatA] > out.Strength[SeatB]:
		out.Leader = SeatA
	case out.Strength[SeatB] > out.Strength[SeatA]:
		out.Leader = SeatB
	default:
		out.Tied = true
	}
	return out
}

// MarkClaim assigns lane i to seat. Claiming an already claimed lane for the
// same seat is a no-op; any other existing claim is an invariant violation.
func (b *Board) MarkClaim(i int, seat Seat) error {
	if i < 0 || i >= len(b.lanes) {
		return fmt.Errorf("%w: %d", ErrInvalidLane, i)
	}
	if !seat.Valid() {
		return fmt.Errorf("%w: claim by seat %d", ErrInvariantViolation, seat)
	}
	l := &b.lanes[i]
	switch l.Claim.Status {
	case ClaimOpen:
		l.Claim = Claim{Status: ClaimClaimed, By: seat}
		return nil
	case ClaimClaimed:
		if l.Claim.By == seat {
			return nil
		}
	}
	return fmt.Errorf("%w: lane %d already %s by %s", ErrInvariantViolation, i, l.Claim.Status, l.Claim.By)
}

// MarkContested sets lane i to the terminal tie state. Idempotent.
func (b *Board) MarkContested(i int) error {
	if i < 0 || i >= len(b.lanes) {
		return fmt.Errorf("%w: %d", ErrInvalidLane, i)
	}
	l := &b.lanes[i]
	switch l.Claim.Status {
	case ClaimOpen:
		l.Claim = Claim{Status: ClaimContested, By: NoSeat}
		return nil
	case ClaimContested:
		return nil
	}
	return fmt.Errorf("%w: lane %d already claimed by %s", ErrInvariantViolation, i, l.Claim.By)
}

// Clone returns a deep copy of the board.
func (b *Board) Clone() *Board {
	return &Board{lanes: b.Lanes()}
}
