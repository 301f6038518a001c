package engine

import (
	"github.com/partydeck/mafia-backend/internal/roles"
)

/*
	CmdSelectMode      -> EvtPhaseChanged (setup)
	CmdInitialize      -> no events; deals roles into the new state
	CmdStartGame       -> EvtPhaseChanged (day)
	CmdCastVote        -> EvtVoteRecorded (overwrites any earlier vote)
	CmdSubmitAction    -> EvtActionRecorded (last submission per slot wins)
	CmdTimeoutSlot     -> no events; records a skip for an unresolved slot
	CmdAdvancePhase    -> day: tally -> elimination/tie -> night or game over
	                      night: resolve actions -> day or game over
	CmdKamikazeRevenge -> EvtPlayerEliminated; phase stays day
	CmdNextPlayer      -> no events; pass-the-device cursor only
	CmdReset           -> EvtPhaseChanged (mode_select), fresh state
*/

// Apply is pure: it never mutates s and returns the successor state
// alongside the events describing what happened. Events are emitted in
// causal order and EvtGameEnded is always last when the game ends.
func Apply(s State, cmd Command) ([]Event, State, error) {

	if s.Phase == PhaseGameOver && cmd.Type != CmdReset {
		return nil, s, ErrGameOver
	}

	next := s.clone()

	switch cmd.Type {
	case CmdSelectMode:
		if s.Phase != PhaseModeSelect {
			return nil, s, ErrInvalidPhase
		}
		next.Phase = PhaseSetup
		next.Mode = cmd.Mode
		return []Event{{Type: EvtPhaseChanged, Phase: PhaseSetup, DayCount: next.DayCount}}, next, nil

	case CmdInitialize:
		if s.Phase != PhaseSetup {
			return nil, s, ErrInvalidPhase
		}
		players, err := assignRoles(cmd.Names, cmd.Mode, cmd.Custom)
		if err != nil {
			return nil, s, err
		}
		next.Mode = cmd.Mode
		next.Players = players
		next.Votes = map[string]string{}
		next.Night = map[Slot]PendingAction{}
		next.DayCount = 1
		next.Cursor = 0
		next.Winner = WinnerNone
		next.RevengeBy = ""
		return nil, next, nil

	case CmdStartGame:
		if s.Phase != PhaseSetup || len(s.Players) == 0 {
			return nil, s, ErrInvalidPhase
		}
		next.Phase = PhaseDay
		return []Event{{Type: EvtPhaseChanged, Phase: PhaseDay, DayCount: next.DayCount}}, next, nil

	case CmdCastVote:
		if s.Phase != PhaseDay {
			return nil, s, ErrInvalidPhase
		}
		// once the tally has run, the day only stays open for the
		// revenge shot; the ballot box is closed
		if s.VotingClosed {
			return nil, s, ErrInvalidPhase
		}
		voter := next.player(cmd.PlayerID)
		if voter == nil {
			return nil, s, ErrUnknownPlayer
		}
		if !voter.IsAlive {
			return nil, s, ErrNotAlive
		}

		// Revoting before the tally replaces the earlier ballot.
		next.Votes[cmd.PlayerID] = cmd.TargetID
		return []Event{{Type: EvtVoteRecorded, PlayerID: cmd.PlayerID, TargetID: cmd.TargetID}}, next, nil

	case CmdSubmitAction:
		if s.Phase != PhaseNight {
			return nil, s, ErrInvalidPhase
		}

		actor := next.player(cmd.PlayerID)
		if actor == nil {
			return nil, s, ErrUnknownPlayer
		}
		if !actor.IsAlive {
			return nil, s, ErrNotAlive
		}
		slot, ok := SlotForRole(actor.Role)
		if !ok {
			return nil, s, ErrInvalidAction
		}
		spec, _ := roles.Lookup(actor.Role)
		if cmd.Action != "" && cmd.Action != spec.NightAction {
			return nil, s, ErrInvalidAction
		}

		// Empty target is an explicit skip; anything else must be a
		// known player the role is allowed to aim at.
		if cmd.TargetID != "" {
			target := next.player(cmd.TargetID)
			if target == nil {
				return nil, s, ErrUnknownPlayer
			}
			if target.ID == actor.ID && !spec.CanTargetSelf {
				return nil, s, ErrInvalidTarget
			}
			if target.ID != actor.ID && roles.TeamOf(target.Role) == spec.Team && !spec.CanTargetTeammates {
				return nil, s, ErrInvalidTarget
			}
		}

		next.Night[slot] = PendingAction{ActorID: actor.ID, TargetID: cmd.TargetID}
		return []Event{{Type: EvtActionRecorded, PlayerID: actor.ID, TargetID: cmd.TargetID}}, next, nil

	case CmdTimeoutSlot:
		if s.Phase != PhaseNight {
			return nil, s, ErrInvalidPhase
		}
		if _, done := next.Night[cmd.Slot]; !done {
			next.Night[cmd.Slot] = PendingAction{}
		}
		return nil, next, nil

	case CmdAdvancePhase:
		switch s.Phase {
		case PhaseDay:
			return advanceDay(next)
		case PhaseNight:
			return advanceNight(next)
		default:
			return nil, s, ErrInvalidPhase
		}

	case CmdKamikazeRevenge:
		if s.Phase != PhaseDay {
			return nil, s, ErrInvalidPhase
		}
		if next.RevengeBy == "" || (cmd.PlayerID != "" && cmd.PlayerID != next.RevengeBy) {
			return nil, s, ErrInvalidAction
		}
		target := next.player(cmd.TargetID)
		if target == nil {
			return nil, s, ErrUnknownPlayer
		}
		if !target.IsAlive {
			return nil, s, ErrNotAlive
		}

		avenger := next.RevengeBy
		next.RevengeBy = ""
		eliminate(&next, target.ID)
		events := []Event{{Type: EvtPlayerEliminated, PlayerID: avenger, TargetID: target.ID, Role: target.Role}}
		events = append(events, endGameIfDecided(&next)...)
		return events, next, nil

	case CmdNextPlayer:
		if n := len(next.living()); n > 0 {
			next.Cursor = (next.Cursor + 1) % n
		}
		return nil, next, nil

	case CmdReset:
		return []Event{{Type: EvtPhaseChanged, Phase: PhaseModeSelect, DayCount: 1}}, NewState(), nil

	default:
		return nil, s, ErrUnsupportedCommand
	}
}

// advanceDay closes the day: an open revenge window is forfeited, the
// vote is tallied, and unless the result ends the game the state rolls
// into night with fresh status flags.
func advanceDay(next State) ([]Event, State, error) {
	events := []Event{}

	// The verdict already ran this day: an open revenge window is
	// forfeited, and the day rolls into night without a second tally.
	if next.RevengeBy != "" || next.VotingClosed {
		next.RevengeBy = ""
		return enterNight(next, events)
	}

	res := Tally(next.Votes)
	next.Votes = map[string]string{}

	if res.IsTie {
		events = append(events, Event{Type: EvtVoteTied})
	} else if res.EliminatedID != "" {
		if p := eliminate(&next, res.EliminatedID); p != nil {
			events = append(events, Event{Type: EvtPlayerEliminated, TargetID: p.ID, Role: p.Role})

			switch p.Role {
			case roles.Joker:
				// Getting voted out is exactly what the joker wanted.
				next.Winner = WinnerJoker
				next.Phase = PhaseGameOver
				events = append(events,
					Event{Type: EvtPhaseChanged, Phase: PhaseGameOver, DayCount: next.DayCount},
					Event{Type: EvtGameEnded, Winner: WinnerJoker})
				return events, next, nil
			case roles.Kamikaze:
				// Hold the day open for the revenge shot; win checks
				// wait until it lands or is skipped.
				next.RevengeBy = p.ID
				next.VotingClosed = true
				events = append(events, Event{Type: EvtRevengePending, PlayerID: p.ID})
				return events, next, nil
			}
		}
	}

	return enterNight(next, events)
}

func enterNight(next State, events []Event) ([]Event, State, error) {
	next.Votes = map[string]string{}
	next.VotingClosed = false

	if over := endGameIfDecided(&next); len(over) > 0 {
		return append(events, over...), next, nil
	}

	for i := range next.Players {
		next.Players[i].IsSilenced = false
		next.Players[i].IsRoleblocked = false
	}
	next.Phase = PhaseNight
	next.Night = map[Slot]PendingAction{}
	events = append(events, Event{Type: EvtPhaseChanged, Phase: PhaseNight, DayCount: next.DayCount})
	return events, next, nil
}

// advanceNight resolves the pending actions and rolls into the next day
// unless the casualties decided the game.
func advanceNight(next State) ([]Event, State, error) {
	events := resolveNight(&next)
	next.Night = map[Slot]PendingAction{}
	next.Votes = map[string]string{}
	next.DayCount++

	if over := endGameIfDecided(&next); len(over) > 0 {
		return append(events, over...), next, nil
	}

	next.Phase = PhaseDay
	events = append(events, Event{Type: EvtPhaseChanged, Phase: PhaseDay, DayCount: next.DayCount})
	return events, next, nil
}

func endGameIfDecided(next *State) []Event {
	w := CheckWinCondition(next.Players)
	if w == WinnerNone {
		return nil
	}
	next.Winner = w
	next.Phase = PhaseGameOver
	return []Event{
		{Type: EvtPhaseChanged, Phase: PhaseGameOver, DayCount: next.DayCount},
		{Type: EvtGameEnded, Winner: w},
	}
}
