package engine

import (
	"github.com/partydeck/mafia-backend/internal/roles"
)

// VoteResult is the outcome of counting one day's votes.
type VoteResult struct {
	EliminatedID string
	IsTie        bool
	VoteCount    map[string]int
}

// Tally counts votes per target. A strict maximum eliminates; two or
// more targets sharing the top count is a tie and nobody goes.
func Tally(votes map[string]string) VoteResult {
	count := make(map[string]int, len(votes))
	for _, target := range votes {
		count[target]++
	}

	max := 0
	var top []string
	for id, n := range count {
		switch {
		case n > max:
			max = n
			top = []string{id}
		case n == max:
			top = append(top, id)
		}
	}

	res := VoteResult{VoteCount: count, IsTie: len(top) > 1}
	if len(top) == 1 {
		res.EliminatedID = top[0]
	}
	return res
}

// CheckWinCondition looks only at living players. A lone surviving
// joker wins outright; otherwise town wins when no mafia remain and
// mafia wins on reaching parity. Independent roles count for neither
// side. WinnerNone means play on.
func CheckWinCondition(players []roles.Player) Winner {
	living := make([]roles.Player, 0, len(players))
	for _, p := range players {
		if p.IsAlive {
			living = append(living, p)
		}
	}

	if len(living) == 1 && living[0].Role == roles.Joker {
		return WinnerJoker
	}

	mafia, town := 0, 0
	for _, p := range living {
		switch roles.TeamOf(p.Role) {
		case roles.TeamMafia:
			mafia++
		case roles.TeamTown:
			town++
		}
	}

	if mafia == 0 {
		return WinnerTown
	}
	if mafia >= town {
		return WinnerMafia
	}
	return WinnerNone
}
