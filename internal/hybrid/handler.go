package hybrid

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"knowledge-backend/internal/shared/server/respond"
)

// Handler exposes the dispatcher endpoint.
type Handler struct {
	Dispatcher *Dispatcher
}

// NewHandler constructs a Handler.
func NewHandler(d *Dispatcher) *Handler {
	return &Handler{Dispatcher: d}
}

// RegisterRoutes attaches dispatcher routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/ai/process", h.process)
}

func (h *Handler) process(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "request body must be valid JSON", nil)
		return
	}
	if strings.TrimSpace(req.Type) == "" {
		req.Type = TypeGeneral
	}
	switch req.Type {
	case TypeMaterialAnalysis, TypeGeneration, TypeTextProcessing, TypeGeneral:
	default:
		respond.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "unknown request type", gin.H{"type": req.Type})
		return
	}
	// the dispatcher never fails; an all-failed run is a 200 with
	// success=false and the attempt ledger
	respond.OK(c, h.Dispatcher.Dispatch(c.Request.Context(), req))
}
