package engine

import (
	"errors"

	"github.com/partydeck/mafia-backend/internal/roles"
)

var ErrInvalidPhase = errors.New("operation not valid in current phase")
var ErrUnknownPlayer = errors.New("unknown player")
var ErrNotAlive = errors.New("player is not alive")
var ErrInvalidAction = errors.New("role cannot perform that action")
var ErrInvalidTarget = errors.New("illegal target for that action")
var ErrGameOver = errors.New("game is already over")
var ErrUnsupportedCommand = errors.New("unsupported command")

type Phase string

const (
	PhaseModeSelect Phase = "mode_select"
	PhaseSetup      Phase = "setup"
	PhaseDay        Phase = "day"
	PhaseNight      Phase = "night"
	PhaseGameOver   Phase = "game_over"
)

type Winner string

const (
	WinnerNone  Winner = ""
	WinnerMafia Winner = "mafia"
	WinnerTown  Winner = "town"
	WinnerJoker Winner = "joker"
)

// Slot names one pending night action. Every special role owns its own
// slot; plain mafia members share the collective kill slot.
type Slot string

const (
	SlotMafia     Slot = "mafia"
	SlotGodfather Slot = "godfather"
	SlotDoctor    Slot = "doctor"
	SlotDetective Slot = "detective"
	SlotHooker    Slot = "hooker"
	SlotSilencer  Slot = "silencer"
)

// PendingAction keeps the actor alongside the target so resolution can
// tell whose action a roleblock suppresses. An empty target is an
// explicit skip.
type PendingAction struct {
	ActorID  string `json:"actorId"`
	TargetID string `json:"targetId"`
}

type State struct {
	Phase    Phase                  `json:"phase"`
	Mode     roles.Mode             `json:"mode,omitempty"`
	DayCount int                    `json:"dayCount"`
	Players  []roles.Player         `json:"players"`
	Votes    map[string]string      `json:"votes"`
	Night    map[Slot]PendingAction `json:"nightActions"`
	Winner   Winner                 `json:"winner,omitempty"`
	// RevengeBy holds the lynched kamikaze while their shot is pending;
	// VotingClosed stays set from the tally until night begins, so a day
	// held open for the shot accepts no further ballots.
	RevengeBy    string `json:"revengeBy,omitempty"`
	VotingClosed bool   `json:"votingClosed,omitempty"`
	Cursor       int    `json:"cursor"`
}

type CommandType string

const (
	CmdSelectMode      CommandType = "SelectMode"
	CmdInitialize      CommandType = "Initialize"
	CmdStartGame       CommandType = "StartGame"
	CmdCastVote        CommandType = "CastVote"
	CmdSubmitAction    CommandType = "SubmitNightAction"
	CmdTimeoutSlot     CommandType = "TimeoutSlot"
	CmdAdvancePhase    CommandType = "AdvancePhase"
	CmdKamikazeRevenge CommandType = "KamikazeRevenge"
	CmdNextPlayer      CommandType = "NextPlayer"
	CmdReset           CommandType = "Reset"
)

type Command struct {
	Type     CommandType
	Mode     roles.Mode
	Names    []string
	Custom   *roles.CustomConfig
	PlayerID string
	TargetID string
	Action   roles.NightAction
	Slot     Slot
}

type EventType string

const (
	EvtPhaseChanged        EventType = "PhaseChanged"
	EvtVoteRecorded        EventType = "VoteRecorded"
	EvtActionRecorded      EventType = "ActionRecorded"
	EvtVoteTied            EventType = "VoteTied"
	EvtPlayerEliminated    EventType = "PlayerEliminated"
	EvtPlayerSaved         EventType = "PlayerSaved"
	EvtPlayerSilenced      EventType = "PlayerSilenced"
	EvtInvestigationResult EventType = "InvestigationResult"
	EvtRevengePending      EventType = "RevengePending"
	EvtGameEnded           EventType = "GameEnded"
)

// Event reports what a transition did. Events exist only on the way out
// to the caller; nothing replays or stores them.
type Event struct {
	Type     EventType
	Phase    Phase
	DayCount int
	PlayerID string
	TargetID string
	Role     roles.Role
	IsMafia  bool
	Winner   Winner
}
