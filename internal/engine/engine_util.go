package engine

import (
	"github.com/partydeck/mafia-backend/internal/roles"
)

// NewState returns the pre-lobby state: no players, mode not chosen yet.
func NewState() State {
	return State{
		Phase:    PhaseModeSelect,
		DayCount: 1,
		Players:  []roles.Player{},
		Votes:    map[string]string{},
		Night:    map[Slot]PendingAction{},
	}
}

func (s State) clone() State {
	next := s

	next.Players = make([]roles.Player, len(s.Players))
	copy(next.Players, s.Players)

	next.Votes = make(map[string]string, len(s.Votes))
	for k, v := range s.Votes {
		next.Votes[k] = v
	}

	next.Night = make(map[Slot]PendingAction, len(s.Night))
	for k, v := range s.Night {
		next.Night[k] = v
	}

	return next
}

// player returns a pointer into s.Players, or nil. Only call on a state
// you own.
func (s *State) player(id string) *roles.Player {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return &s.Players[i]
		}
	}
	return nil
}

func (s *State) living() []roles.Player {
	out := make([]roles.Player, 0, len(s.Players))
	for _, p := range s.Players {
		if p.IsAlive {
			out = append(out, p)
		}
	}
	return out
}

// eliminate marks the player dead and reveals their role. Returns nil if
// the id is unknown or the player is already dead.
func eliminate(s *State, id string) *roles.Player {
	p := s.player(id)
	if p == nil || !p.IsAlive {
		return nil
	}
	p.IsAlive = false
	p.IsRevealed = true
	return p
}

var defaultAssigner = roles.NewAssigner(nil)

// assignRoles is a var so tests can pin the deal.
var assignRoles = func(names []string, mode roles.Mode, custom *roles.CustomConfig) ([]roles.Player, error) {
	return defaultAssigner.Assign(names, mode, custom)
}

// ContainsEvent reports whether events holds at least one event of type t.
func ContainsEvent(events []Event, t EventType) bool {
	for _, ev := range events {
		if ev.Type == t {
			return true
		}
	}
	return false
}

// FindEvent returns the first event of type t.
func FindEvent(events []Event, t EventType) (Event, bool) {
	for _, ev := range events {
		if ev.Type == t {
			return ev, true
		}
	}
	return Event{}, false
}
