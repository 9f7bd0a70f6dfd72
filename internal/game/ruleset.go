package game

import (
	"errors"
	"fmt"
)

// TieBreak decides what happens when both complete sides of a lane are
// equally strong.
type TieBreak string

const (
	// TieContested marks the lane contested; nobody claims it.
	TieContested TieBreak = "contested"
	// TieFirstComplete awards the lane to the side that filled up first.
	TieFirstComplete TieBreak = "first-complete"
)

// Pattern restricts which formations count on a lane.
type Pattern string

const (
	PatternNone   Pattern = ""
	PatternColor  Pattern = "color"  // only color formations rank above a sum
	PatternRun    Pattern = "run"    // only runs rank above a sum
	PatternEquals Pattern = "equals" // only same-rank sets rank above a sum
	PatternPlus   Pattern = "plus"   // rank sum only
	PatternMinus  Pattern = "minus"  // lowest rank sum wins
)

// Valid reports whether p is a known pattern.
func (p Pattern) Valid() bool {
	switch p {
	case PatternNone, PatternColor, PatternRun, PatternEquals, PatternPlus, PatternMinus:
		return true
	}
	return false
}

// LaneSpec is the shape of one lane.
type LaneSpec struct {
	Capacity int     `json:"capacity"`
	Pattern  Pattern `json:"pattern,omitempty"`
}

// Ruleset parameterises a match. All fields are plain data so rulesets can be
// loaded from JSON and persisted next to a match.
type Ruleset struct {
	Name           string   `json:"name"`
	Lanes          int      `json:"lanes"`
	LaneCapacity   int      `json:"laneCapacity"`
	Ranks          int      `json:"ranks"`
	Colors         int      `json:"colors"`
	HandSize       int      `json:"handSize"`
	Refill         bool     `json:"refill"`
	Reinforcements int      `json:"reinforcements"`
	AdjacentToWin  int      `json:"adjacentToWin"`
	TotalToWin     int      `json:"totalToWin"`
	TieBreak       TieBreak `json:"tieBreak"`
	Scoring        string   `json:"scoring"`
	// Layout overrides LaneCapacity per lane and adds patterns. When set it
	// has one entry per lane.
	Layout []LaneSpec `json:"layout,omitempty"`
}

// Standard is nine lanes of three cards, ranks 1-9 in three colors, six-card
// hands refilled after every commit, won by three adjacent or any five
// lanes.
func Standard() Ruleset {
	return Ruleset{
		Name:          "standard",
		Lanes:         9,
		LaneCapacity:  3,
		Ranks:         9,
		Colors:        3,
		HandSize:      6,
		Refill:        true,
		AdjacentToWin: 3,
		TotalToWin:    5,
		TieBreak:      TieContested,
		Scoring:       "formation",
	}
}

// Skirmish is a shorter variant with a two-card reinforcement budget and the
// first-to-complete tie break of the original border game.
func Skirmish() Ruleset {
	return Ruleset{
		Name:           "skirmish",
		Lanes:          5,
		LaneCapacity:   3,
		Ranks:          9,
		Colors:         4,
		HandSize:       6,
		Refill:         true,
		Reinforcements: 2,
		AdjacentToWin:  2,
		TotalToWin:     3,
		TieBreak:       TieFirstComplete,
		Scoring:        "formation",
	}
}

// Siege is seven lanes of uneven length. The outer lanes are scored by
// rank sum, the last one in reverse.
func Siege() Ruleset {
	return Ruleset{
		Name:          "siege",
		Lanes:         7,
		LaneCapacity:  3,
		Ranks:         11,
		Colors:        5,
		HandSize:      6,
		Refill:        true,
		AdjacentToWin: 0,
		TotalToWin:    4,
		TieBreak:      TieFirstComplete,
		Scoring:       "formation",
		Layout: []LaneSpec{
			{Capacity: 3, Pattern: PatternPlus},
			{Capacity: 4},
			{Capacity: 3},
			{Capacity: 2},
			{Capacity: 3},
			{Capacity: 4},
			{Capacity: 3, Pattern: PatternMinus},
		},
	}
}

// LaneSpecs returns the shape of every lane in order.
func (r Ruleset) LaneSpecs() []LaneSpec {
	if len(r.Layout) > 0 {
		return append([]LaneSpec(nil), r.Layout...)
	}
	out := make([]LaneSpec, r.Lanes)
	for i := range out {
		out[i] = LaneSpec{Capacity: r.LaneCapacity}
	}
	return out
}

var errInvalidRuleset = errors.New("invalid ruleset")

// Validate checks that the ruleset describes a playable game.
func (r Ruleset) Validate() error {
	switch {
	case r.Name == "":
		return fmt.Errorf("%w: name required", errInvalidRuleset)
	case r.Lanes < 1:
		return fmt.Errorf("%w: need at least one lane", errInvalidRuleset)
	case r.LaneCapacity < 1:
		return fmt.Errorf("%w: lane capacity must be positive", errInvalidRuleset)
	case r.Ranks < 1:
		return fmt.Errorf("%w: need at least one rank", errInvalidRuleset)
	case r.Colors < 1 || r.Colors > MaxColors:
		return fmt.Errorf("%w: colors must be 1..%d", errInvalidRuleset, MaxColors)
	case r.HandSize < 1 || 2*r.HandSize > r.Ranks*r.Colors:
		return fmt.Errorf("%w: deck of %d cannot deal two hands of %d", errInvalidRuleset, r.Ranks*r.Colors, r.HandSize)
	case r.Reinforcements < 0:
		return fmt.Errorf("%w: reinforcements must not be negative", errInvalidRuleset)
	case r.Reinforcements > 0 && maxCapacity(r.LaneSpecs()) < 2:
		return fmt.Errorf("%w: reinforcements need lanes of at least two cards", errInvalidRuleset)
	case len(r.Layout) > 0 && len(r.Layout) != r.Lanes:
		return fmt.Errorf("%w: layout has %d lanes, want %d", errInvalidRuleset, len(r.Layout), r.Lanes)
	case r.AdjacentToWin < 0 || r.AdjacentToWin > r.Lanes:
		return fmt.Errorf("%w: adjacentToWin must be 0..%d", errInvalidRuleset, r.Lanes)
	case r.TotalToWin < 0 || r.TotalToWin > r.Lanes:
		return fmt.Errorf("%w: totalToWin must be 0..%d", errInvalidRuleset, r.Lanes)
	case r.AdjacentToWin == 0 && r.TotalToWin == 0:
		return fmt.Errorf("%w: no win condition", errInvalidRuleset)
	}
	switch r.TieBreak {
	case TieContested, TieFirstComplete:
	default:
		return fmt.Errorf("%w: unknown tie break %q", errInvalidRuleset, r.TieBreak)
	}
	for i, spec := range r.Layout {
		if spec.Capacity < 1 {
			return fmt.Errorf("%w: lane %d capacity must be positive", errInvalidRuleset, i)
		}
		if !spec.Pattern.Valid() {
			return fmt.Errorf("%w: lane %d has unknown pattern %q", errInvalidRuleset, i, spec.Pattern)
		}
	}
	if r.Scoring == "" {
		return fmt.Errorf("%w: scoring required", errInvalidRuleset)
	}
	return nil
}

func maxCapacity(specs []LaneSpec) int {
	m := 0
	for _, s := range specs {
		m = max(m, s.Capacity)
	}
	return m
}

// DeckSize is the number of cards BuildDeck produces.
func (r Ruleset) DeckSize() int {
	return r.Ranks * r.Colors
}
