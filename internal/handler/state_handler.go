package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mcqlab/mcq-review/internal/response"
	"github.com/mcqlab/mcq-review/internal/store"
)

// StateHandler exposes a read-only snapshot of the authoritative state.
// Mutations go through the WebSocket command channel only.
type StateHandler struct {
	store *store.Store
}

// NewStateHandler creates a new StateHandler.
func NewStateHandler(st *store.Store) *StateHandler {
	return &StateHandler{store: st}
}

// GetState godoc
// GET /api/v1/state
func (h *StateHandler) GetState(c *gin.Context) {
	response.Success(c, http.StatusOK, h.store.Snapshot())
}
