package match

import (
	"time"

	"lanes/internal/game"
)

// EventKind identifies a state change emitted by a match.
type EventKind string

const (
	EventMatchStarted  EventKind = "match_started"
	EventHandDealt     EventKind = "hand_dealt"
	EventCardCommitted EventKind = "card_committed"
	EventCardDrawn     EventKind = "card_drawn"
	EventTurnPassed    EventKind = "turn_passed"
	EventLaneClaimed   EventKind = "lane_claimed"
	EventLaneContested EventKind = "lane_contested"
	EventTurnChanged   EventKind = "turn_changed"
	EventMatchEnded    EventKind = "match_ended"
	EventMatchAborted  EventKind = "match_aborted"
)

// NoLane is the Lane of events that do not concern a lane.
const NoLane = -1

// Event is one state change. Seq increases by one for every event of a
// match, so a recipient can detect gaps. Lane is NoLane when not applicable.
type Event struct {
	Seq     uint64        `json:"seq"`
	Kind    EventKind     `json:"kind"`
	Seat    game.Seat     `json:"seat"`
	Lane    int           `json:"lane"`
	Move    game.MoveKind `json:"move,omitempty"`
	Cards   []game.Card   `json:"cards,omitempty"`
	Count   int           `json:"count,omitempty"`
	Outcome *Outcome      `json:"outcome,omitempty"`
	Reason  string        `json:"reason,omitempty"`
	At      time.Time     `json:"at"`

	private bool // Cards are visible to Seat only
}

// For projects the event for a viewer. Private cards are stripped unless the
// viewer owns them; Count still tells how many there were. Spectators pass
// game.NoSeat.
func (e Event) For(viewer game.Seat) Event {
	if !e.private || viewer == e.Seat {
		return e
	}
	e.Cards = nil
	return e
}

// Private reports whether the event carries cards only its seat may see.
func (e Event) Private() bool {
	return e.private
}

// Project applies For to every event.
func Project(events []Event, viewer game.Seat) []Event {
	out := make([]Event, len(events))
	for i, e := range events {
		out[i] = e.For(viewer)
	}
	return out
}

// Sink receives the events of every applied step, in order. It is called
// with the match's writer lock held and must not call back into the match.
type Sink func(events []Event)
