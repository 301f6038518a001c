package engine

import (
	"github.com/partydeck/mafia-backend/internal/roles"
)

// Night slots resolve in a fixed order: roleblock first, then silence,
// then the kill, then the investigation. The order is what makes a
// blocked doctor unable to save and a blocked killer unable to kill.
var nightSlotOrder = [...]Slot{
	SlotHooker,
	SlotSilencer,
	SlotGodfather,
	SlotMafia,
	SlotDoctor,
	SlotDetective,
}

var slotForRole = map[roles.Role]Slot{
	roles.Mafia:     SlotMafia,
	roles.Godfather: SlotGodfather,
	roles.Doctor:    SlotDoctor,
	roles.Detective: SlotDetective,
	roles.Hooker:    SlotHooker,
	roles.Silencer:  SlotSilencer,
}

// SlotForRole maps a role to the night slot it submits into. Roles with
// no night action have no slot.
func SlotForRole(r roles.Role) (Slot, bool) {
	slot, ok := slotForRole[r]
	return slot, ok
}

// ExpectedNightSlots lists the slots a night waits on, given who is
// still alive. The collective mafia slot appears once no matter how many
// plain mafia remain.
func ExpectedNightSlots(players []roles.Player) []Slot {
	seen := map[Slot]bool{}
	for _, p := range players {
		if !p.IsAlive {
			continue
		}
		if slot, ok := slotForRole[p.Role]; ok {
			seen[slot] = true
		}
	}

	out := make([]Slot, 0, len(seen))
	for _, slot := range nightSlotOrder {
		if seen[slot] {
			out = append(out, slot)
		}
	}
	return out
}

func allNightSlotsResolved(s State) bool {
	for _, slot := range ExpectedNightSlots(s.Players) {
		if _, ok := s.Night[slot]; !ok {
			return false
		}
	}
	return true
}

// resolveNight applies the accumulated night actions to s in slot order
// and returns what happened. Skipped slots and actions whose actor got
// roleblocked do nothing.
func resolveNight(s *State) []Event {
	var events []Event

	blocked := ""
	if act, ok := s.Night[SlotHooker]; ok && act.TargetID != "" {
		blocked = act.TargetID
		if p := s.player(act.TargetID); p != nil {
			p.IsRoleblocked = true
		}
	}

	// landed reports the slot's action unless it was skipped or its
	// actor is the hooker's target tonight.
	landed := func(slot Slot) (PendingAction, bool) {
		act, ok := s.Night[slot]
		if !ok || act.TargetID == "" {
			return PendingAction{}, false
		}
		if act.ActorID != "" && act.ActorID == blocked {
			return PendingAction{}, false
		}
		return act, true
	}

	if act, ok := landed(SlotSilencer); ok {
		if p := s.player(act.TargetID); p != nil && p.IsAlive {
			p.IsSilenced = true
			events = append(events, Event{Type: EvtPlayerSilenced, TargetID: p.ID})
		}
	}

	kill, haveKill := landed(SlotGodfather)
	if !haveKill {
		kill, haveKill = landed(SlotMafia)
	}
	protect := ""
	if act, ok := landed(SlotDoctor); ok {
		protect = act.TargetID
	}
	if haveKill {
		if kill.TargetID == protect {
			events = append(events, Event{Type: EvtPlayerSaved, TargetID: kill.TargetID})
		} else if p := eliminate(s, kill.TargetID); p != nil {
			events = append(events, Event{Type: EvtPlayerEliminated, TargetID: p.ID, Role: p.Role})
		}
	}

	if act, ok := landed(SlotDetective); ok {
		if p := s.player(act.TargetID); p != nil {
			isMafia := roles.TeamOf(p.Role) == roles.TeamMafia && !roles.ImmuneAgainst(p.Role, roles.Detective)
			events = append(events, Event{
				Type:     EvtInvestigationResult,
				PlayerID: act.ActorID,
				TargetID: p.ID,
				IsMafia:  isMafia,
			})
		}
	}

	return events
}
