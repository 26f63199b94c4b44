package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mcqlab/mcq-review/internal/hub"
	"github.com/mcqlab/mcq-review/internal/protocol"
	"github.com/mcqlab/mcq-review/internal/store"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler owns the WebSocket command channel: the only way state mutates.
type WSHandler struct {
	store    *store.Store
	hub      *hub.Hub
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(st *store.Store, h *hub.Hub, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		store:    st,
		hub:      h,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// Stream godoc
// WS /ws
// Upgrades to WebSocket, pushes the current state, then applies commands in
// arrival order. Malformed or unauthorized commands are dropped without any
// reply; the client learns the outcome of its own commands from the same
// broadcasts everyone else gets.
func (h *WSHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	subscriber := h.hub.Register(conn)
	defer h.hub.Unregister(subscriber)

	wsLog := h.log.With().Str("remote", conn.RemoteAddr().String()).Logger()
	wsLog.Info().Msg("Client connected")

	// New clients get the full state before any of their commands run.
	if err := subscriber.Send(protocol.ServerMessage{
		Type:      protocol.MessageInitialState,
		State:     h.store.Snapshot(),
		Timestamp: time.Now().UnixMilli(),
	}); err != nil {
		wsLog.Warn().Err(err).Msg("Initial state push failed")
		return
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		cmd, err := protocol.DecodeCommand(raw)
		if err != nil {
			// Dropped, connection stays open. Operator visibility only.
			wsLog.Debug().Err(err).Msg("Command dropped")
			continue
		}

		switch cmd := cmd.(type) {
		case protocol.RequestState:
			err := subscriber.Send(protocol.ServerMessage{
				Type:      protocol.MessageFullState,
				State:     h.store.Snapshot(),
				Timestamp: time.Now().UnixMilli(),
			})
			if err != nil {
				wsLog.Warn().Err(err).Msg("Full state push failed")
				return
			}
		default:
			h.store.Apply(cmd)
		}
	}
}
