package roles

type Team string

const (
	TeamMafia       Team = "mafia"
	TeamTown        Team = "town"
	TeamIndependent Team = "independent"
)

type NightAction string

const (
	ActionKill        NightAction = "kill"
	ActionProtect     NightAction = "protect"
	ActionInvestigate NightAction = "investigate"
	ActionSilence     NightAction = "silence"
	ActionRoleblock   NightAction = "roleblock"
	ActionNone        NightAction = "none"
)

type Role string

const (
	Citizen   Role = "citizen"
	Mafia     Role = "mafia"
	Godfather Role = "godfather"
	Detective Role = "detective"
	Doctor    Role = "doctor"
	Silencer  Role = "silencer"
	Joker     Role = "joker"
	Kamikaze  Role = "kamikaze"
	Hooker    Role = "hooker"
)

// Spec is the catalog entry for a single role. Assignment quotas and
// targeting validation both read from here; nothing else hardcodes
// role behavior.
type Spec struct {
	Team               Team
	NightAction        NightAction
	CanTargetSelf      bool
	CanTargetTeammates bool
	ImmuneTo           []Role
	MinPlayers         int
}

var catalog = map[Role]Spec{
	Citizen:   {Team: TeamTown, NightAction: ActionNone, MinPlayers: 4},
	Mafia:     {Team: TeamMafia, NightAction: ActionKill, MinPlayers: 4},
	Detective: {Team: TeamTown, NightAction: ActionInvestigate, CanTargetTeammates: true, MinPlayers: 5},
	Doctor:    {Team: TeamTown, NightAction: ActionProtect, CanTargetSelf: true, CanTargetTeammates: true, MinPlayers: 7},
	Godfather: {Team: TeamMafia, NightAction: ActionKill, ImmuneTo: []Role{Detective}, MinPlayers: 8},
	Silencer:  {Team: TeamIndependent, NightAction: ActionSilence, CanTargetTeammates: true, MinPlayers: 9},
	Joker:     {Team: TeamIndependent, NightAction: ActionNone, MinPlayers: 10},
	Kamikaze:  {Team: TeamIndependent, NightAction: ActionNone, MinPlayers: 11},
	Hooker:    {Team: TeamIndependent, NightAction: ActionRoleblock, CanTargetTeammates: true, MinPlayers: 12},
}

// Lookup returns the catalog entry for r.
func Lookup(r Role) (Spec, bool) {
	s, ok := catalog[r]
	return s, ok
}

func TeamOf(r Role) Team {
	return catalog[r].Team
}

// ImmuneAgainst reports whether target's role shrugs off a night action
// performed by actor's role.
func ImmuneAgainst(target, actor Role) bool {
	for _, r := range catalog[target].ImmuneTo {
		if r == actor {
			return true
		}
	}
	return false
}

// All lists every role in the catalog in a stable order.
func All() []Role {
	return []Role{Citizen, Mafia, Godfather, Detective, Doctor, Silencer, Joker, Kamikaze, Hooker}
}
