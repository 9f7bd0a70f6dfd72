package game

import (
	"errors"
	"math/rand/v2"
)

// ErrEmptyDeck is returned when drawing from an exhausted deck.
var ErrEmptyDeck = errors.New("deck is empty")

// Deck is an ordered pile of cards. The last element is the top.
type Deck struct {
	cards []Card
}

// BuildDeck returns the full, unshuffled deck for a ruleset: every rank in
// 1..Ranks for every color, color-major.
func BuildDeck(rs Ruleset) *Deck {
	cards := make([]Card, 0, rs.Ranks*rs.Colors)
	for c := 0; c < rs.Colors; c++ {
		for r := 1; r <= rs.Ranks; r++ {
			cards = append(cards, Card{Rank: r, Color: Color(c)})
		}
	}
	return &Deck{cards: cards}
}

// NewDeck builds a deck from an explicit order; cards[len-1] is drawn first.
func NewDeck(cards []Card) *Deck {
	out := make([]Card, len(cards))
	copy(out, cards)
	return &Deck{cards: out}
}

// Shuffled returns a shuffled copy of the deck. The permutation depends only
// on seed.
func (d *Deck) Shuffled(seed int64) *Deck {
	out := make([]Card, len(d.cards))
	copy(out, d.cards)
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return &Deck{cards: out}
}

// Draw removes and returns the top card.
func (d *Deck) Draw() (Card, error) {
	if len(d.cards) == 0 {
		return Card{}, ErrEmptyDeck
	}
	top := d.cards[len(d.cards)-1]
	d.cards = d.cards[:len(d.cards)-1]
	return top, nil
}

// Len returns the number of cards left.
func (d *Deck) Len() int {
	return len(d.cards)
}

// Cards returns a copy of the remaining cards, bottom first.
func (d *Deck) Cards() []Card {
	out := make([]Card, len(d.cards))
	copy(out, d.cards)
	return out
}
