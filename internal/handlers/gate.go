package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tributewall/tribute-backend/internal/logger"
	"github.com/tributewall/tribute-backend/internal/services"
)

type GateHandler struct {
	log  *logger.Logger
	gate services.GateService
}

func NewGateHandler(log *logger.Logger, gate services.GateService) *GateHandler {
	return &GateHandler{
		log:  log.With("handler", "GateHandler"),
		gate: gate,
	}
}

// Enter exchanges the shared passphrase for a session token.
func (h *GateHandler) Enter(c *gin.Context) {
	var body struct {
		Secret string `json:"secret"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	token, err := h.gate.Enter(body.Secret)
	if err != nil {
		// Same response for every failure mode.
		RespondError(c, http.StatusUnauthorized, "wrong passphrase", nil)
		return
	}
	RespondOK(c, gin.H{"token": token})
}
