package rules

import (
	"fmt"
	"sort"

	"lanes/internal/game"
)

// Formation classes, weakest first. A formation's strength is
// class*classWeight + rank sum, so any higher class beats any lower one.
type Formation int

const (
	FormationSum Formation = iota
	FormationRun
	FormationColor
	FormationSameRank
	FormationColorRun
)

const classWeight = 100

func (f Formation) String() string {
	switch f {
	case FormationRun:
		return "run"
	case FormationColor:
		return "color"
	case FormationSameRank:
		return "same-rank"
	case FormationColorRun:
		return "color-run"
	}
	return "sum"
}

// Classify returns the formation class of a set of cards. Fewer than two
// cards is always a plain sum.
func Classify(cards []game.Card) Formation {
	if len(cards) < 2 {
		return FormationSum
	}
	ranks := make([]int, len(cards))
	sameColor := true
	for i, c := range cards {
		ranks[i] = c.Rank
		if c.Color != cards[0].Color {
			sameColor = false
		}
	}
	sort.Ints(ranks)

	run, same := true, true
	for i := 1; i < len(ranks); i++ {
		if ranks[i]-ranks[i-1] != 1 {
			run = false
		}
		if ranks[i] != ranks[i-1] {
			same = false
		}
	}

	switch {
	case sameColor && run:
		return FormationColorRun
	case same:
		return FormationSameRank
	case sameColor:
		return FormationColor
	case run:
		return FormationRun
	}
	return FormationSum
}

func rankSum(cards []game.Card) int {
	sum := 0
	for _, c := range cards {
		sum += c.Rank
	}
	return sum
}

// Downgrade returns the class f counts as on a lane with pattern p. Classes
// the pattern does not allow count as a plain sum.
func (f Formation) Downgrade(p game.Pattern) Formation {
	switch p {
	case game.PatternPlus, game.PatternMinus:
		return FormationSum
	case game.PatternColor:
		if f == FormationSameRank || f == FormationRun {
			return FormationSum
		}
	case game.PatternRun:
		if f == FormationSameRank || f == FormationColor {
			return FormationSum
		}
	case game.PatternEquals:
		if f != FormationSameRank {
			return FormationSum
		}
	}
	return f
}

// patternSum is the rank sum as it counts under p.
func patternSum(cards []game.Card, p game.Pattern) int {
	if p == game.PatternMinus {
		return -rankSum(cards)
	}
	return rankSum(cards)
}

// FormationScorer ranks sides by formation class, then rank sum.
type FormationScorer struct{}

func (FormationScorer) Score(cards []game.Card, p game.Pattern) int {
	return int(Classify(cards).Downgrade(p))*classWeight + patternSum(cards, p)
}

// SumScorer ranks sides by rank sum only.
type SumScorer struct{}

func (SumScorer) Score(cards []game.Card, p game.Pattern) int {
	return patternSum(cards, p)
}

var scorers = map[string]game.Scorer{
	"formation": FormationScorer{},
	"sum":       SumScorer{},
}

// ScorerFor returns the comparison strategy named by a ruleset.
func ScorerFor(name string) (game.Scorer, error) {
	s, ok := scorers[name]
	if !ok {
		return nil, fmt.Errorf("unknown scoring %q", name)
	}
	return s, nil
}
