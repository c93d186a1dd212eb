package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/letsplay/tournament-hub/live"
	"github.com/letsplay/tournament-hub/services"
)

type WebSocketHandler struct {
	*Responder
	hub               *live.Hub
	tournamentService services.TournamentService
	upgrader          websocket.Upgrader
	logger            *slog.Logger
}

// NewWebSocketHandler accepts connections from allowedOrigins; an empty list allows any origin.
func NewWebSocketHandler(responder *Responder, hub *live.Hub, tournamentService services.TournamentService, allowedOrigins []string, logger *slog.Logger) *WebSocketHandler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	return &WebSocketHandler{
		Responder:         responder,
		hub:               hub,
		tournamentService: tournamentService,
		logger:            logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(allowed) == 0 {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

// ServeWs godoc
// @Summary Live registration updates for a tournament
// @Tags live
// @Param id path string true "Tournament ID"
// @Router /ws/tournaments/{id} [get]
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := uuidParam(r, "id")
	if err != nil {
		h.Error(w, r, err)
		return
	}
	if _, err := h.tournamentService.GetTournamentByID(r.Context(), tournamentID); err != nil {
		h.Error(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.WarnContext(r.Context(), "websocket upgrade failed",
			slog.String("tournament_id", tournamentID.String()),
			slog.Any("error", err))
		return
	}

	room := live.TournamentRoom(tournamentID)
	h.hub.Serve(conn, room)
	h.logger.InfoContext(r.Context(), "websocket client connected", slog.String("room", room))
}
