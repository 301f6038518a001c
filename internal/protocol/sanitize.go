package protocol

import (
	"github.com/partydeck/mafia-backend/internal/engine"
	"github.com/partydeck/mafia-backend/internal/roles"
)

// PlayerView is a match participant as one specific viewer sees them.
type PlayerView struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Role       roles.Role `json:"role,omitempty"`
	IsAlive    bool       `json:"isAlive"`
	IsRevealed bool       `json:"isRevealed"`
	IsSilenced bool       `json:"isSilenced"`
}

// StateView is the sanitized snapshot that goes to player devices in
// game_state_update payloads.
type StateView struct {
	Phase    engine.Phase      `json:"phase"`
	DayCount int               `json:"dayCount"`
	Players  []PlayerView      `json:"players"`
	Votes    map[string]string `json:"votes,omitempty"`
	Winner   engine.Winner     `json:"winner,omitempty"`
}

// Sanitize filters full state down to what viewerID may see: roles stay
// hidden unless they are the viewer's own or publicly revealed, votes
// appear only during day, and pending night actions never leave the
// host at all.
func Sanitize(s engine.State, viewerID string) StateView {
	view := StateView{
		Phase:    s.Phase,
		DayCount: s.DayCount,
		Winner:   s.Winner,
		Players:  make([]PlayerView, 0, len(s.Players)),
	}

	for _, p := range s.Players {
		pv := PlayerView{
			ID:         p.ID,
			Name:       p.Name,
			IsAlive:    p.IsAlive,
			IsRevealed: p.IsRevealed,
			IsSilenced: p.IsSilenced,
		}
		if p.ID == viewerID || p.IsRevealed {
			pv.Role = p.Role
		}
		view.Players = append(view.Players, pv)
	}

	if s.Phase == engine.PhaseDay {
		view.Votes = make(map[string]string, len(s.Votes))
		for voter, target := range s.Votes {
			view.Votes[voter] = target
		}
	}

	return view
}
