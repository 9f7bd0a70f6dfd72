package game

import (
	"fmt"
	"strconv"
	"strings"
)

// Color is the categorical suit of a card. Colors are unordered.
type Color uint8

var colorNames = []string{"red", "blue", "green", "yellow", "purple", "brown", "gray", "orange", "pink"}

// MaxColors is the largest number of colors a ruleset may use.
const MaxColors = 9

func (c Color) String() string {
	if int(c) < len(colorNames) {
		return colorNames[c]
	}
	return "color" + strconv.Itoa(int(c))
}

func (c Color) MarshalText() ([]byte, error) {
	if int(c) >= len(colorNames) {
		return nil, fmt.Errorf("color %d out of range", c)
	}
	return []byte(colorNames[c]), nil
}

func (c *Color) UnmarshalText(text []byte) error {
	name := strings.ToLower(string(text))
	for i, n := range colorNames {
		if n == name {
			*c = Color(i)
			return nil
		}
	}
	return fmt.Errorf("unknown color %q", text)
}

// Card is an immutable rank/color pair. Two cards with the same rank and
// color are interchangeable.
type Card struct {
	Rank  int   `json:"rank"`
	Color Color `json:"color"`
}

func (c Card) String() string {
	return fmt.Sprintf("%d-%s", c.Rank, c.Color)
}

// ParseCard parses the "<rank>-<color>" form produced by Card.String.
func ParseCard(s string) (Card, error) {
	rank, color, ok := strings.Cut(s, "-")
	if !ok {
		return Card{}, fmt.Errorf("invalid card %q", s)
	}
	r, err := strconv.Atoi(rank)
	if err != nil {
		return Card{}, fmt.Errorf("invalid card rank %q: %w", rank, err)
	}
	var c Color
	if err := c.UnmarshalText([]byte(color)); err != nil {
		return Card{}, err
	}
	return Card{Rank: r, Color: c}, nil
}

// RemoveCards removes the given cards from hand, respecting multiplicity,
// and returns the updated hand. Cards not present are ignored.
func RemoveCards(hand []Card, toRemove []Card) []Card {
	if len(toRemove) == 0 || len(hand) == 0 {
		return hand
	}

	removeCounts := make(map[Card]int, len(toRemove))
	for _, card := range toRemove {
		removeCounts[card]++
	}

	updated := make([]Card, 0, len(hand))
	for _, card := range hand {
		if count, ok := removeCounts[card]; ok && count > 0 {
			removeCounts[card] = count - 1
			continue
		}
		updated = append(updated, card)
	}
	return updated
}

// ContainsAll reports whether hand holds every card in cards, counting
// duplicates.
func ContainsAll(hand []Card, cards []Card) bool {
	counts := make(map[Card]int, len(hand))
	for _, c := range hand {
		counts[c]++
	}
	for _, c := range cards {
		if counts[c] == 0 {
			return false
		}
		counts[c]--
	}
	return true
}

// CountCards builds a multiset of the given card groups.
func CountCards(groups ...[]Card) map[Card]int {
	counts := make(map[Card]int)
	for _, g := range groups {
		for _, c := range g {
			counts[c]++
		}
	}
	return counts
}
