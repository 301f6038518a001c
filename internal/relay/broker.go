package relay

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/partydeck/mafia-backend/internal/protocol"
)

var ErrSessionNotFound = errors.New("session not found")

// DefaultSweepInterval is how often the broker looks for dead sessions.
const DefaultSweepInterval = 60 * time.Second

type Msg interface{ isBrokerMsg() }

// AttachHost binds conn as the host of the session named by Code,
// creating the session on first use. A reconnecting host replaces the
// stored connection; session state and player records persist.
type AttachHost struct {
	Code string
	Conn *Client
}

// AttachPlayer asks to join an existing session. Reply receives nil on
// success or ErrSessionNotFound for an unknown code.
type AttachPlayer struct {
	Code  string
	Conn  *Client
	Reply chan error
}

// FromHost routes one host frame: unicast when TargetPlayerID is set,
// broadcast to every connected player otherwise.
type FromHost struct {
	Code string
	Env  protocol.Envelope
}

// FromPlayer routes one player frame. join_game binds the sender's
// persistent id; everything else is forwarded to the host, stamped
// with that id.
type FromPlayer struct {
	Code string
	Conn *Client
	Env  protocol.Envelope
}

// ConnClosed marks the matching record disconnected. Player records are
// never deleted on drop; only the sweep removes sessions.
type ConnClosed struct {
	Code   string
	Conn   *Client
	IsHost bool
}

// GetSession replies with a copy of the session's bookkeeping, or nil
// for an unknown code.
type GetSession struct {
	Code  string
	Reply chan *SessionInfo
}

type Shutdown struct{}

func (AttachHost) isBrokerMsg()   {}
func (AttachPlayer) isBrokerMsg() {}
func (FromHost) isBrokerMsg()     {}
func (FromPlayer) isBrokerMsg()   {}
func (ConnClosed) isBrokerMsg()   {}
func (GetSession) isBrokerMsg()   {}
func (Shutdown) isBrokerMsg()     {}

type Options struct {
	SweepInterval time.Duration
	Logger        *zap.Logger
}

// Broker is the relay registry: a single goroutine owns every session,
// so connection events are serialized without locks. It performs no
// game-semantic interpretation beyond routing, except remembering
// assign_game_role bindings for reconnects.
type Broker struct {
	inbox    chan Msg
	sessions map[string]*Session
	sweep    time.Duration
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewBroker(parent context.Context, opts Options) *Broker {
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(parent)
	b := &Broker{
		inbox:    make(chan Msg, 64),
		sessions: make(map[string]*Session),
		sweep:    opts.SweepInterval,
		log:      opts.Logger,
		ctx:      ctx,
		cancel:   cancel,
	}
	go b.loop()
	return b
}

// Inbox is where connection handlers post broker messages.
func (b *Broker) Inbox() chan<- Msg { return b.inbox }

func (b *Broker) loop() {
	ticker := time.NewTicker(b.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			b.shutdown()
			return

		case <-ticker.C:
			b.sweepSessions()

		case m := <-b.inbox:
			switch msg := m.(type) {
			case AttachHost:
				b.attachHost(msg)
			case AttachPlayer:
				b.attachPlayer(msg)
			case FromHost:
				b.fromHost(msg)
			case FromPlayer:
				b.fromPlayer(msg)
			case ConnClosed:
				b.connClosed(msg)
			case GetSession:
				if sess := b.sessions[msg.Code]; sess != nil {
					info := sess.info()
					msg.Reply <- &info
				} else {
					msg.Reply <- nil
				}
			case Shutdown:
				b.shutdown()
				return
			}
		}
	}
}

func (b *Broker) attachHost(msg AttachHost) {
	sess := b.sessions[msg.Code]
	if sess == nil {
		sess = newSession(msg.Code)
		b.sessions[msg.Code] = sess
		b.log.Info("session created", zap.String("code", msg.Code))
	}

	if sess.Host != nil && sess.Host != msg.Conn {
		sess.Host.Close(websocket.StatusGoingAway, "host replaced")
		b.log.Info("host replaced", zap.String("code", msg.Code))
	}
	sess.Host = msg.Conn
}

func (b *Broker) attachPlayer(msg AttachPlayer) {
	if b.sessions[msg.Code] == nil {
		msg.Reply <- ErrSessionNotFound
		return
	}
	// the record is created by the first join_game frame, not here
	msg.Reply <- nil
}

func (b *Broker) fromHost(msg FromHost) {
	sess := b.sessions[msg.Code]
	if sess == nil {
		b.log.Warn("host frame for unknown session", zap.String("code", msg.Code))
		return
	}

	if msg.Env.Type == protocol.TypeAssignGameRole && msg.Env.TargetPlayerID != "" {
		var p protocol.AssignGameRolePayload
		if err := json.Unmarshal(msg.Env.Payload, &p); err == nil {
			if rec := sess.Players[msg.Env.TargetPlayerID]; rec != nil {
				rec.GamePlayerID = p.GamePlayerID
				rec.GameRole = p.GameRole
			}
		}
	}

	if msg.Env.TargetPlayerID != "" {
		if !sess.toPlayer(msg.Env.TargetPlayerID, msg.Env) {
			b.log.Debug("unicast dropped",
				zap.String("code", msg.Code),
				zap.String("player", msg.Env.TargetPlayerID),
				zap.String("type", string(msg.Env.Type)))
		}
		return
	}
	n := sess.broadcast(msg.Env)
	b.log.Debug("broadcast",
		zap.String("code", msg.Code),
		zap.String("type", string(msg.Env.Type)),
		zap.Int("delivered", n))
}

func (b *Broker) fromPlayer(msg FromPlayer) {
	sess := b.sessions[msg.Code]
	if sess == nil {
		b.log.Warn("player frame for unknown session", zap.String("code", msg.Code))
		return
	}

	if msg.Env.Type == protocol.TypeJoinGame {
		b.joinPlayer(sess, msg)
		return
	}

	playerID, ok := sess.byConn[msg.Conn]
	if !ok {
		b.log.Warn("player frame before join_game",
			zap.String("code", msg.Code),
			zap.String("type", string(msg.Env.Type)))
		return
	}

	env := msg.Env
	env.PlayerID = playerID
	if !sess.toHost(env) {
		b.log.Debug("no host attached, frame dropped",
			zap.String("code", msg.Code),
			zap.String("type", string(env.Type)))
	}
}

func (b *Broker) joinPlayer(sess *Session, msg FromPlayer) {
	var p protocol.JoinGamePayload
	if err := json.Unmarshal(msg.Env.Payload, &p); err != nil || p.PlayerID == "" {
		b.log.Warn("malformed join_game", zap.String("code", msg.Code), zap.Error(err))
		return
	}

	rec := sess.Players[p.PlayerID]
	if rec == nil {
		sess.Players[p.PlayerID] = &PlayerRecord{
			Conn:      msg.Conn,
			Name:      p.Name,
			Connected: true,
		}
		sess.byConn[msg.Conn] = p.PlayerID
		b.log.Info("player joined",
			zap.String("code", msg.Code),
			zap.String("player", p.PlayerID))

		sess.toHost(protocol.New(protocol.TypePlayerJoined, protocol.PlayerJoinedPayload{
			PlayerID: p.PlayerID,
			Name:     p.Name,
		}))
		return
	}

	// known id: reattach, kicking any connection it still holds
	if rec.Conn != nil && rec.Conn != msg.Conn {
		delete(sess.byConn, rec.Conn)
		rec.Conn.Close(websocket.StatusGoingAway, "reconnected elsewhere")
	}
	rec.Conn = msg.Conn
	rec.Connected = true
	if p.Name != "" {
		rec.Name = p.Name
	}
	sess.byConn[msg.Conn] = p.PlayerID
	b.log.Info("player reconnected",
		zap.String("code", msg.Code),
		zap.String("player", p.PlayerID))

	// tell the returning device its match binding before the host's
	// state sync lands
	if rec.GamePlayerID != "" {
		sess.toPlayer(p.PlayerID, protocol.New(protocol.TypeRejoinGame, protocol.RejoinGamePayload{
			GamePlayerID: rec.GamePlayerID,
			GameRole:     rec.GameRole,
		}))
	}

	sess.toHost(protocol.New(protocol.TypePlayerReconnected, protocol.PlayerReconnectedPayload{
		PlayerID:     p.PlayerID,
		Name:         rec.Name,
		GamePlayerID: rec.GamePlayerID,
		GameRole:     rec.GameRole,
	}))
}

func (b *Broker) connClosed(msg ConnClosed) {
	sess := b.sessions[msg.Code]
	if sess == nil {
		return
	}

	if msg.IsHost {
		if sess.Host == msg.Conn {
			sess.Host = nil
			b.log.Info("host disconnected", zap.String("code", msg.Code))
		}
		return
	}

	playerID, ok := sess.byConn[msg.Conn]
	if !ok {
		return
	}
	delete(sess.byConn, msg.Conn)

	rec := sess.Players[playerID]
	if rec == nil || rec.Conn != msg.Conn {
		return
	}
	rec.Conn = nil
	rec.Connected = false
	b.log.Info("player disconnected",
		zap.String("code", msg.Code),
		zap.String("player", playerID))

	sess.toHost(protocol.New(protocol.TypePlayerDisconnected, protocol.PlayerDisconnectedPayload{
		PlayerID: playerID,
	}))
}

// sweepSessions deletes sessions whose host is gone and whose player
// map is empty. Disconnected-but-recorded players keep a session alive
// so they can still come back.
func (b *Broker) sweepSessions() {
	for code, sess := range b.sessions {
		if sess.empty() {
			delete(b.sessions, code)
			b.log.Info("session swept", zap.String("code", code))
		}
	}
}

func (b *Broker) shutdown() {
	for code, sess := range b.sessions {
		if sess.Host != nil {
			sess.Host.Close(websocket.StatusGoingAway, "server shutting down")
		}
		for _, rec := range sess.Players {
			if rec.Conn != nil {
				rec.Conn.Close(websocket.StatusGoingAway, "server shutting down")
			}
		}
		delete(b.sessions, code)
	}
	b.cancel()
}
