package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/partydeck/mafia-backend/internal/protocol"
	"github.com/partydeck/mafia-backend/internal/relay"
)

// Close codes for handshake rejections, mirrored in the error envelope
// sent just before closing.
const (
	CloseSessionRequired websocket.StatusCode = 4001
	CloseSessionNotFound websocket.StatusCode = 4004
)

// Handler upgrades relay connections. Every connection declares its
// role and session code up front: /ws?role=host&code=AB12CD. A host
// connect creates the session; players can only join existing ones.
func Handler(b *relay.Broker, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := r.URL.Query().Get("role")
		if role != "host" && role != "player" {
			http.Error(w, "role must be host or player", http.StatusBadRequest)
			return
		}
		code := strings.ToUpper(r.URL.Query().Get("code"))

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// In dev ONLY, you can loosen origin checks:
			// OriginPatterns: []string{"http://localhost:*", "http://127.0.0.1:*"},
		})
		if err != nil {
			return
		}

		if code == "" {
			reject(r.Context(), conn, protocol.CodeSessionRequired, "session code is required", CloseSessionRequired)
			return
		}

		client := relay.NewClient(conn)
		isHost := role == "host"
		if isHost {
			b.Inbox() <- relay.AttachHost{Code: code, Conn: client}
		} else {
			reply := make(chan error, 1)
			b.Inbox() <- relay.AttachPlayer{Code: code, Conn: client, Reply: reply}
			if err := <-reply; err != nil {
				log.Info("player rejected", zap.String("code", code), zap.Error(err))
				reject(r.Context(), conn, protocol.CodeSessionNotFound, "no session with that code", CloseSessionNotFound)
				return
			}
		}

		// Writer goroutine; anything the broker queued during attach
		// flushes as soon as the pump starts.
		go client.WritePump(r.Context())

		log.Info("connection attached",
			zap.String("code", code),
			zap.String("role", role))

		defer func() {
			b.Inbox() <- relay.ConnClosed{Code: code, Conn: client, IsHost: isHost}
			client.Close(websocket.StatusNormalClosure, "bye")
		}()

		// Reader loop. No idle deadline here: a player legitimately
		// sits silent through whole phases.
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				// Treat clean close/going-away as normal:
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				// Otherwise, just exit (ConnClosed in defer):
				return
			}

			var env protocol.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				log.Warn("malformed frame dropped", zap.String("code", code), zap.Error(err))
				client.TrySend(protocol.MustJSON(protocol.New(protocol.TypeError, protocol.ErrorPayload{
					Code:    protocol.CodeBadJSON,
					Message: "invalid json",
				})))
				continue
			}

			if isHost {
				b.Inbox() <- relay.FromHost{Code: code, Env: env}
			} else {
				b.Inbox() <- relay.FromPlayer{Code: code, Conn: client, Env: env}
			}
		}
	}
}

// reject writes one error envelope and closes the connection. Only
// called before the write pump starts, so the direct write is safe.
func reject(ctx context.Context, conn *websocket.Conn, code, message string, status websocket.StatusCode) {
	frame := protocol.MustJSON(protocol.New(protocol.TypeError, protocol.ErrorPayload{
		Code:    code,
		Message: message,
	}))
	wctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	_ = conn.Write(wctx, websocket.MessageText, frame)
	cancel()
	_ = conn.Close(status, code)
}
