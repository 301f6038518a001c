package host

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/partydeck/mafia-backend/internal/engine"
	"github.com/partydeck/mafia-backend/internal/protocol"
	"github.com/partydeck/mafia-backend/internal/roles"
)

// Sender delivers envelopes toward player devices. Implementations
// stamp TargetPlayerID on unicasts.
type Sender interface {
	ToPlayer(playerID string, env protocol.Envelope)
	Broadcast(env protocol.Envelope)
}

type Options struct {
	NightActionTimeout time.Duration
	Logger             *zap.Logger
}

// seat is one device in the session roster, in join order. The deal
// binds devices to match players by this order.
type seat struct {
	deviceID  string
	name      string
	connected bool
}

// RosterEntry is a read-only copy of one seat for callers outside the
// coordinator.
type RosterEntry struct {
	DeviceID     string
	Name         string
	Connected    bool
	GamePlayerID string
}

// Coordinator is the host side of one session: it keeps the device
// roster, owns the match engine, and translates between relay frames
// and engine commands.
//
// Locking contract: c.mu is never held across an engine call. The
// engine invokes onTransition with its own lock held, and onTransition
// takes c.mu only to copy the bindings, so the two locks never nest in
// the opposite order.
type Coordinator struct {
	mu       sync.Mutex
	roster   []seat
	toGame   map[string]string // device id -> match player id
	toDevice map[string]string // match player id -> device id

	eng     *engine.Engine
	send    Sender
	log     *zap.Logger
	timeout time.Duration
}

func NewCoordinator(send Sender, opts Options) *Coordinator {
	if opts.NightActionTimeout <= 0 {
		opts.NightActionTimeout = engine.DefaultNightTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	c := &Coordinator{
		toGame:   map[string]string{},
		toDevice: map[string]string{},
		send:     send,
		log:      opts.Logger,
		timeout:  opts.NightActionTimeout,
	}
	c.eng = engine.NewEngine(opts.NightActionTimeout, c.onTransition)
	return c
}

// HandleEnvelope processes one frame addressed to the host: broker
// notices about connections, and player submissions already stamped
// with the sender's device id.
func (c *Coordinator) HandleEnvelope(env protocol.Envelope) {
	switch env.Type {
	case protocol.TypePlayerJoined:
		c.handleJoined(env)
	case protocol.TypePlayerReconnected:
		c.handleReconnected(env)
	case protocol.TypePlayerDisconnected:
		c.handleDisconnected(env)
	case protocol.TypeSubmitVote:
		c.handleSubmitVote(env)
	case protocol.TypeSubmitAction:
		c.handleSubmitAction(env)
	default:
		c.log.Debug("unhandled frame", zap.String("type", string(env.Type)))
	}
}

func (c *Coordinator) handleJoined(env protocol.Envelope) {
	var p protocol.PlayerJoinedPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil || p.PlayerID == "" {
		c.log.Warn("malformed player_joined", zap.Error(err))
		return
	}
	c.mu.Lock()
	c.upsertSeatLocked(p.PlayerID, p.Name, true)
	c.mu.Unlock()
	c.log.Info("seat added", zap.String("device", p.PlayerID), zap.String("name", p.Name))
}

func (c *Coordinator) handleReconnected(env protocol.Envelope) {
	var p protocol.PlayerReconnectedPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil || p.PlayerID == "" {
		c.log.Warn("malformed player_reconnected", zap.Error(err))
		return
	}

	c.mu.Lock()
	c.upsertSeatLocked(p.PlayerID, p.Name, true)
	// Adopt the broker's stored binding when we have none, e.g. after
	// the host itself dropped and reattached mid-match.
	if p.GamePlayerID != "" {
		if _, bound := c.toGame[p.PlayerID]; !bound {
			c.toGame[p.PlayerID] = p.GamePlayerID
			c.toDevice[p.GamePlayerID] = p.PlayerID
		}
	}
	gameID := c.toGame[p.PlayerID]
	c.mu.Unlock()

	c.log.Info("seat reconnected", zap.String("device", p.PlayerID), zap.String("player", gameID))
	c.resync(p.PlayerID, gameID)
}

func (c *Coordinator) handleDisconnected(env protocol.Envelope) {
	var p protocol.PlayerDisconnectedPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil || p.PlayerID == "" {
		return
	}
	c.mu.Lock()
	for i := range c.roster {
		if c.roster[i].deviceID == p.PlayerID {
			c.roster[i].connected = false
			break
		}
	}
	c.mu.Unlock()
	c.log.Info("seat disconnected", zap.String("device", p.PlayerID))
}

func (c *Coordinator) handleSubmitVote(env protocol.Envelope) {
	var p protocol.SubmitVotePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		c.sendError(env.PlayerID, protocol.CodeBadJSON, "invalid submit_vote payload")
		return
	}
	gameID, ok := c.binding(env.PlayerID)
	if !ok {
		c.sendError(env.PlayerID, "not_in_match", "no player bound to this device")
		return
	}

	_, _, err := c.eng.Dispatch(engine.Command{
		Type:     engine.CmdCastVote,
		PlayerID: gameID,
		TargetID: p.TargetID,
	})
	if err != nil {
		c.sendError(env.PlayerID, errCode(err), err.Error())
		return
	}
	c.send.ToPlayer(env.PlayerID, protocol.New(protocol.TypeVoteReceived, protocol.VoteReceivedPayload{
		TargetID: p.TargetID,
	}))
}

func (c *Coordinator) handleSubmitAction(env protocol.Envelope) {
	var p protocol.SubmitActionPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		c.sendError(env.PlayerID, protocol.CodeBadJSON, "invalid submit_action payload")
		return
	}
	gameID, ok := c.binding(env.PlayerID)
	if !ok {
		c.sendError(env.PlayerID, "not_in_match", "no player bound to this device")
		return
	}

	cmd := engine.Command{Type: engine.CmdSubmitAction, PlayerID: gameID, TargetID: p.TargetID}
	if p.ActionType == protocol.ActionRevenge {
		cmd = engine.Command{Type: engine.CmdKamikazeRevenge, PlayerID: gameID, TargetID: p.TargetID}
	} else if p.ActionType != "" {
		cmd.Action = roles.NightAction(p.ActionType)
	}

	events, _, err := c.eng.Dispatch(cmd)
	if err != nil {
		c.sendError(env.PlayerID, errCode(err), err.Error())
		return
	}

	// When this submission closed the night, onTransition already sent
	// the detective an action_received carrying the finding; a plain
	// ack on top would shadow it.
	if ev, ok := engine.FindEvent(events, engine.EvtInvestigationResult); ok && ev.PlayerID == gameID {
		return
	}
	c.send.ToPlayer(env.PlayerID, protocol.New(protocol.TypeActionReceived, protocol.ActionReceivedPayload{
		ActionType: p.ActionType,
	}))
}

// StartMatch deals roles over the current roster and opens day 1. It
// is total: a running or finished match is reset first.
func (c *Coordinator) StartMatch(mode roles.Mode, custom *roles.CustomConfig) error {
	c.mu.Lock()
	devices := make([]string, 0, len(c.roster))
	names := make([]string, 0, len(c.roster))
	for _, s := range c.roster {
		devices = append(devices, s.deviceID)
		names = append(names, s.name)
	}
	c.mu.Unlock()

	if _, _, err := c.eng.Dispatch(engine.Command{Type: engine.CmdReset}); err != nil {
		return err
	}
	if _, _, err := c.eng.Dispatch(engine.Command{Type: engine.CmdSelectMode, Mode: mode}); err != nil {
		return err
	}
	_, snap, err := c.eng.Dispatch(engine.Command{
		Type:   engine.CmdInitialize,
		Mode:   mode,
		Names:  names,
		Custom: custom,
	})
	if err != nil {
		return err
	}

	// The deal preserves seat order: Players[i] wears devices[i].
	c.mu.Lock()
	c.toGame = make(map[string]string, len(devices))
	c.toDevice = make(map[string]string, len(devices))
	for i, p := range snap.Players {
		if i >= len(devices) {
			break
		}
		c.toGame[devices[i]] = p.ID
		c.toDevice[p.ID] = devices[i]
	}
	c.mu.Unlock()

	for i, p := range snap.Players {
		if i >= len(devices) {
			break
		}
		c.send.ToPlayer(devices[i], protocol.New(protocol.TypeAssignGameRole, protocol.AssignGameRolePayload{
			GamePlayerID: p.ID,
			GameRole:     string(p.Role),
		}))
	}

	_, _, err = c.eng.Dispatch(engine.Command{Type: engine.CmdStartGame})
	return err
}

// Advance closes the current phase: tallies the day vote or resolves
// the night early.
func (c *Coordinator) Advance() error {
	_, _, err := c.eng.Dispatch(engine.Command{Type: engine.CmdAdvancePhase})
	return err
}

// NextPlayer moves the pass-the-device cursor on the host screen.
func (c *Coordinator) NextPlayer() error {
	_, _, err := c.eng.Dispatch(engine.Command{Type: engine.CmdNextPlayer})
	return err
}

// Reset abandons the match and drops the device bindings. Seats stay.
func (c *Coordinator) Reset() error {
	if _, _, err := c.eng.Dispatch(engine.Command{Type: engine.CmdReset}); err != nil {
		return err
	}
	c.mu.Lock()
	c.toGame = map[string]string{}
	c.toDevice = map[string]string{}
	c.mu.Unlock()
	return nil
}

func (c *Coordinator) State() engine.State { return c.eng.Snapshot() }

func (c *Coordinator) Roster() []RosterEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]RosterEntry, 0, len(c.roster))
	for _, s := range c.roster {
		out = append(out, RosterEntry{
			DeviceID:     s.deviceID,
			Name:         s.name,
			Connected:    s.connected,
			GamePlayerID: c.toGame[s.deviceID],
		})
	}
	return out
}

func (c *Coordinator) Stop() { c.eng.Stop() }

// resync pushes a returning device everything it needs to rejoin the
// match mid-flight: sanitized state plus whatever prompt is still open
// for it.
func (c *Coordinator) resync(deviceID, gameID string) {
	snap := c.eng.Snapshot()
	c.send.ToPlayer(deviceID, protocol.New(protocol.TypeGameStateUpdate, protocol.Sanitize(snap, gameID)))
	if gameID == "" {
		return
	}

	var me *roles.Player
	for i := range snap.Players {
		if snap.Players[i].ID == gameID {
			me = &snap.Players[i]
			break
		}
	}
	if me == nil || !me.IsAlive {
		return
	}

	switch snap.Phase {
	case engine.PhaseDay:
		if snap.RevengeBy == gameID {
			c.send.ToPlayer(deviceID, protocol.New(protocol.TypeRequestAction, protocol.RequestActionPayload{
				ActionType: protocol.ActionRevenge,
			}))
			return
		}
		// no vote prompt while the day is only open for the revenge shot
		if _, voted := snap.Votes[gameID]; !voted && !snap.VotingClosed {
			c.send.ToPlayer(deviceID, protocol.New(protocol.TypeRequestVote, protocol.RequestVotePayload{
				DayCount: snap.DayCount,
			}))
		}

	case engine.PhaseNight:
		spec, ok := roles.Lookup(me.Role)
		if !ok || spec.NightAction == roles.ActionNone {
			return
		}
		slot, ok := engine.SlotForRole(me.Role)
		if !ok {
			return
		}
		if _, resolved := snap.Night[slot]; resolved {
			return
		}
		var deadlineMs int64
		if deadline, open := c.eng.NightDeadline(); open {
			deadlineMs = deadline.UnixMilli()
		}
		c.send.ToPlayer(deviceID, protocol.New(protocol.TypeRequestAction, protocol.RequestActionPayload{
			ActionType: string(spec.NightAction),
			DeadlineMs: deadlineMs,
		}))
	}
}

// onTransition runs under the engine lock; it must not call back into
// the engine. It narrates the transition to devices: per-event frames
// first, then a sanitized state update per bound device, then the
// prompts the new phase opens.
func (c *Coordinator) onTransition(events []engine.Event, st engine.State) {
	c.mu.Lock()
	toDevice := make(map[string]string, len(c.toDevice))
	for g, d := range c.toDevice {
		toDevice[g] = d
	}
	c.mu.Unlock()

	for _, ev := range events {
		switch ev.Type {
		case engine.EvtPhaseChanged:
			p := protocol.PhaseChangePayload{Phase: ev.Phase, DayCount: ev.DayCount}
			if ev.Phase == engine.PhaseGameOver {
				p.Winner = st.Winner
			}
			c.send.Broadcast(protocol.New(protocol.TypePhaseChange, p))

		case engine.EvtInvestigationResult:
			if dev := toDevice[ev.PlayerID]; dev != "" {
				c.send.ToPlayer(dev, protocol.New(protocol.TypeActionReceived, protocol.ActionReceivedPayload{
					ActionType: string(roles.ActionInvestigate),
					Investigation: &protocol.InvestigationFinding{
						TargetID: ev.TargetID,
						IsMafia:  ev.IsMafia,
					},
				}))
			}

		case engine.EvtRevengePending:
			if dev := toDevice[ev.PlayerID]; dev != "" {
				c.send.ToPlayer(dev, protocol.New(protocol.TypeRequestAction, protocol.RequestActionPayload{
					ActionType: protocol.ActionRevenge,
				}))
			}
		}
	}

	for gameID, dev := range toDevice {
		c.send.ToPlayer(dev, protocol.New(protocol.TypeGameStateUpdate, protocol.Sanitize(st, gameID)))
	}

	if !engine.ContainsEvent(events, engine.EvtPhaseChanged) {
		return
	}
	switch st.Phase {
	case engine.PhaseDay:
		c.send.Broadcast(protocol.New(protocol.TypeRequestVote, protocol.RequestVotePayload{
			DayCount: st.DayCount,
		}))

	case engine.PhaseNight:
		// Recomputing the deadline here instead of asking the engine:
		// we are inside its notify callback.
		deadlineMs := time.Now().Add(c.timeout).UnixMilli()
		for _, p := range st.Players {
			if !p.IsAlive {
				continue
			}
			spec, ok := roles.Lookup(p.Role)
			if !ok || spec.NightAction == roles.ActionNone {
				continue
			}
			dev := toDevice[p.ID]
			if dev == "" {
				continue
			}
			c.send.ToPlayer(dev, protocol.New(protocol.TypeRequestAction, protocol.RequestActionPayload{
				ActionType: string(spec.NightAction),
				DeadlineMs: deadlineMs,
			}))
		}
	}
}

func (c *Coordinator) upsertSeatLocked(deviceID, name string, connected bool) {
	for i := range c.roster {
		if c.roster[i].deviceID == deviceID {
			if name != "" {
				c.roster[i].name = name
			}
			c.roster[i].connected = connected
			return
		}
	}
	c.roster = append(c.roster, seat{deviceID: deviceID, name: name, connected: connected})
}

func (c *Coordinator) binding(deviceID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	gameID, ok := c.toGame[deviceID]
	return gameID, ok
}

func (c *Coordinator) sendError(deviceID, code, message string) {
	if deviceID == "" {
		return
	}
	c.send.ToPlayer(deviceID, protocol.New(protocol.TypeError, protocol.ErrorPayload{
		Code:    code,
		Message: message,
	}))
}

func errCode(err error) string {
	switch {
	case errors.Is(err, engine.ErrInvalidPhase):
		return "invalid_phase"
	case errors.Is(err, engine.ErrUnknownPlayer):
		return "unknown_player"
	case errors.Is(err, engine.ErrNotAlive):
		return "not_alive"
	case errors.Is(err, engine.ErrInvalidAction):
		return "invalid_action"
	case errors.Is(err, engine.ErrInvalidTarget):
		return "invalid_target"
	case errors.Is(err, engine.ErrGameOver):
		return "game_over"
	case errors.Is(err, roles.ErrInvalidPlayerCount):
		return "invalid_player_count"
	case errors.Is(err, roles.ErrInvalidCustomConfig):
		return "invalid_custom_config"
	default:
		return "internal"
	}
}
