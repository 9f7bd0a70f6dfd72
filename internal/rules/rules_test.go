package rules

import (
	"testing"

	"lanes/internal/game"
)

func card(rank int, color game.Color) game.Card {
	return game.Card{Rank: rank, Color: color}
}

const (
	red   game.Color = 0
	blue  game.Color = 1
	green game.Color = 2
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		cards []game.Card
		want  Formation
	}{
		{"color run", []game.Card{card(3, red), card(1, red), card(2, red)}, FormationColorRun},
		{"same rank", []game.Card{card(4, red), card(4, blue), card(4, green)}, FormationSameRank},
		{"color", []game.Card{card(1, blue), card(5, blue), card(9, blue)}, FormationColor},
		{"run", []game.Card{card(6, red), card(7, blue), card(8, green)}, FormationRun},
		{"sum", []game.Card{card(1, red), card(5, blue), card(9, green)}, FormationSum},
		{"single card", []game.Card{card(9, red)}, FormationSum},
		{"empty", nil, FormationSum},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.cards); got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestFormationScorerOrdering(t *testing.T) {
	s := FormationScorer{}
	lowColor := s.Score([]game.Card{card(1, red), card(2, red), card(4, red)}, game.PatternNone)
	highRun := s.Score([]game.Card{card(7, red), card(8, blue), card(9, green)}, game.PatternNone)
	highSum := s.Score([]game.Card{card(9, red), card(9, blue), card(8, green)}, game.PatternNone)
	if lowColor <= highRun {
		t.Fatalf("color (%d) should beat run (%d)", lowColor, highRun)
	}
	if highRun <= highSum {
		t.Fatalf("run (%d) should beat sum (%d)", highRun, highSum)
	}
	if (SumScorer{}).Score([]game.Card{card(9, red), card(9, blue), card(8, green)}, game.PatternNone) != 26 {
		t.Fatal("sum scorer should add ranks")
	}
}

func TestFormationScorerPatterns(t *testing.T) {
	colorRun := []game.Card{card(1, red), card(2, red), card(3, red)}  // 6
	sameRank := []game.Card{card(4, red), card(4, blue), card(4, green)} // 12
	color := []game.Card{card(1, blue), card(5, blue), card(9, blue)}   // 15
	run := []game.Card{card(6, red), card(7, blue), card(8, green)}     // 21
	sum := []game.Card{card(1, red), card(5, blue), card(9, green)}     // 15

	tests := []struct {
		name    string
		pattern game.Pattern
		cards   []game.Card
		want    int
	}{
		{"none keeps the class", game.PatternNone, colorRun, 4*classWeight + 6},
		{"plus ignores the class", game.PatternPlus, colorRun, 6},
		{"plus on a run", game.PatternPlus, run, 21},
		{"minus negates the sum", game.PatternMinus, sameRank, -12},
		{"minus on a sum", game.PatternMinus, sum, -15},
		{"equals keeps same rank", game.PatternEquals, sameRank, 3*classWeight + 12},
		{"equals drops color run", game.PatternEquals, colorRun, 6},
		{"equals drops color", game.PatternEquals, color, 15},
		{"equals drops run", game.PatternEquals, run, 21},
		{"color keeps color", game.PatternColor, color, 2*classWeight + 15},
		{"color keeps color run", game.PatternColor, colorRun, 4*classWeight + 6},
		{"color drops run", game.PatternColor, run, 21},
		{"color drops same rank", game.PatternColor, sameRank, 12},
		{"run keeps run", game.PatternRun, run, 1*classWeight + 21},
		{"run keeps color run", game.PatternRun, colorRun, 4*classWeight + 6},
		{"run drops color", game.PatternRun, color, 15},
		{"run drops same rank", game.PatternRun, sameRank, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (FormationScorer{}).Score(tt.cards, tt.pattern); got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
		})
	}

	if got := (SumScorer{}).Score(run, game.PatternMinus); got != -21 {
		t.Fatalf("sum scorer should negate on minus lanes, got %d", got)
	}
}

func TestScorerFor(t *testing.T) {
	if _, err := ScorerFor("formation"); err != nil {
		t.Fatalf("formation: %v", err)
	}
	if _, err := ScorerFor("sum"); err != nil {
		t.Fatalf("sum: %v", err)
	}
	if _, err := ScorerFor("poker"); err == nil {
		t.Fatal("expected error for unknown scoring")
	}
}

func TestCheckWin(t *testing.T) {
	rs := game.Standard()
	a := game.Claim{Status: game.ClaimClaimed, By: game.SeatA}
	b := game.Claim{Status: game.ClaimClaimed, By: game.SeatB}
	o := game.Claim{Status: game.ClaimOpen, By: game.NoSeat}
	x := game.Claim{Status: game.ClaimContested, By: game.NoSeat}

	tests := []struct {
		name   string
		claims []game.Claim
		seat   game.Seat
		want   WinReason
	}{
		{"three adjacent", []game.Claim{o, a, a, a, o, o, o, o, o}, game.SeatA, WinAdjacent},
		{"broken by opponent", []game.Claim{a, a, b, a, o, o, o, o, o}, game.SeatA, WinNone},
		{"broken by contested", []game.Claim{a, a, x, a, o, o, o, o, o}, game.SeatA, WinNone},
		{"five anywhere", []game.Claim{a, o, a, b, a, o, a, b, a}, game.SeatA, WinTotal},
		{"other seat", []game.Claim{o, a, a, a, o, o, o, o, o}, game.SeatB, WinNone},
		{"nothing", []game.Claim{o, o, o, o, o, o, o, o, o}, game.SeatA, WinNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckWin(tt.claims, rs, tt.seat); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
