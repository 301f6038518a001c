package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/partydeck/mafia-backend/internal/relay"
	"github.com/partydeck/mafia-backend/internal/ws"
)

func SetupRoutes(b *relay.Broker, baseURL string, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Public routes
	r.Post("/sessions", CreateSession(b, baseURL, log))
	r.Get("/sessions/{code}/qr", SessionQR(b, baseURL))
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(b, log))
	return r
}
