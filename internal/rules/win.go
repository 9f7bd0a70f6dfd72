package rules

import "lanes/internal/game"

// WinReason names which win condition was met.
type WinReason string

const (
	WinNone     WinReason = ""
	WinAdjacent WinReason = "adjacent"
	WinTotal    WinReason = "total"
)

// CheckWin reports whether seat holds a qualifying pattern of claimed lanes:
// AdjacentToWin consecutive lanes, or TotalToWin lanes anywhere. A zero
// threshold disables that condition.
func CheckWin(claims []game.Claim, rs game.Ruleset, seat game.Seat) WinReason {
	run, total := 0, 0
	for _, c := range claims {
		if c.Status == game.ClaimClaimed && c.By == seat {
			run++
			total++
			if rs.AdjacentToWin > 0 && run >= rs.AdjacentToWin {
				return WinAdjacent
			}
		} else {
			run = 0
		}
	}
	if rs.TotalToWin > 0 && total >= rs.TotalToWin {
		return WinTotal
	}
	return WinNone
}
