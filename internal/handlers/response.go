package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tributewall/tribute-backend/internal/pkg/faults"
)

// ErrorEnvelope is the wire shape for every failed request:
// {"error": "...", "details": "..."}.
type ErrorEnvelope struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func RespondError(c *gin.Context, status int, message string, err error) {
	env := ErrorEnvelope{Error: message}
	if err != nil {
		env.Details = err.Error()
	}
	c.JSON(status, env)
}

// RespondFault maps the failure taxonomy onto HTTP statuses so
// handlers never switch on sentinel errors themselves.
func RespondFault(c *gin.Context, message string, err error) {
	switch {
	case errors.Is(err, faults.ErrNotFound):
		RespondError(c, http.StatusNotFound, message, err)
	case errors.Is(err, faults.ErrInvalidArgument):
		RespondError(c, http.StatusBadRequest, message, err)
	case errors.Is(err, faults.ErrUnauthorized):
		RespondError(c, http.StatusUnauthorized, message, err)
	case errors.Is(err, faults.ErrQuotaExceeded):
		RespondError(c, http.StatusRequestEntityTooLarge,
			"file exceeds the backend size limit; trim the video or lower its quality", err)
	case errors.Is(err, faults.ErrTransientNetwork):
		RespondError(c, http.StatusBadGateway,
			"a network hiccup interrupted the transfer; please retry", err)
	default:
		RespondError(c, http.StatusInternalServerError, message, err)
	}
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
