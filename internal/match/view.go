package match

import (
	"lanes/internal/game"
	"lanes/internal/rules"
)

// LaneView is a lane as every participant sees it.
type LaneView struct {
	Index     int              `json:"index"`
	Capacity  int              `json:"capacity"`
	Pattern   game.Pattern     `json:"pattern,omitempty"`
	Sides     [2][]game.Card   `json:"sides"`
	Claim     game.Claim       `json:"claim"`
	FirstFull game.Seat        `json:"firstFull"`
	Outcome   game.LaneOutcome `json:"outcome"`
}

// PublicView is the part of a match visible to everyone: committed cards,
// claims and hand sizes, never hand contents.
type PublicView struct {
	MatchID        string     `json:"matchId"`
	Seq            uint64     `json:"seq"`
	Status         Status     `json:"status"`
	Ruleset        string     `json:"ruleset"`
	Players        [2]string  `json:"players"`
	Turn           game.Seat  `json:"turn"`
	HandCounts     [2]int     `json:"handCounts"`
	DeckCount      int        `json:"deckCount"`
	Reinforcements [2]int     `json:"reinforcements"`
	Lanes          []LaneView `json:"lanes"`
	Outcome        *Outcome   `json:"outcome,omitempty"`
}

// PlayerView is the snapshot for one seat: the public view plus that seat's
// own hand. The opponent's hand appears only as a count.
type PlayerView struct {
	PublicView
	You        game.Seat   `json:"you"`
	Hand       []game.Card `json:"hand"`
	LegalMoves []game.Move `json:"legalMoves,omitempty"`
}

// SpectatorView is the snapshot for observers holding no seat.
type SpectatorView struct {
	PublicView
}

func (m *Match) publicLocked() PublicView {
	v := PublicView{
		MatchID:        m.id,
		Seq:            m.seq,
		Status:         m.status,
		Ruleset:        m.ruleset.Name,
		Players:        m.players,
		Turn:           m.turn,
		Reinforcements: m.reinforcements,
		HandCounts:     [2]int{len(m.hands[game.SeatA]), len(m.hands[game.SeatB])},
	}
	if m.deck != nil {
		v.DeckCount = m.deck.Len()
	} else {
		v.DeckCount = m.ruleset.DeckSize()
	}
	for _, l := range m.board.Lanes() {
		lv := LaneView{
			Index:     l.Index,
			Capacity:  l.Capacity,
			Pattern:   l.Pattern,
			Claim:     l.Claim,
			FirstFull: l.FirstFull,
			Outcome:   l.Evaluate(m.scorer),
		}
		for _, seat := range game.Seats {
			lv.Sides[seat] = append([]game.Card{}, l.Sides[seat]...)
		}
		v.Lanes = append(v.Lanes, lv)
	}
	if m.outcome != nil {
		o := *m.outcome
		v.Outcome = &o
	}
	return v
}

// PlayerView builds the snapshot for seat.
func (m *Match) PlayerView(seat game.Seat) (PlayerView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !seat.Valid() {
		return PlayerView{}, ErrUnknownSeat
	}
	v := PlayerView{
		PublicView: m.publicLocked(),
		You:        seat,
		Hand:       append([]game.Card{}, m.hands[seat]...),
	}
	if m.status == StatusInProgress && m.turn == seat {
		v.LegalMoves = rules.LegalMoves(m.position(), seat)
	}
	return v, nil
}

// SpectatorView builds the snapshot for observers.
func (m *Match) SpectatorView() SpectatorView {
	m.mu.Lock()
	defer m.mu.Unlock()
	return SpectatorView{PublicView: m.publicLocked()}
}
