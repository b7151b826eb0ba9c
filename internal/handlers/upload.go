package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tributewall/tribute-backend/internal/logger"
	"github.com/tributewall/tribute-backend/internal/services"
)

type UploadHandler struct {
	log      *logger.Logger
	progress *services.UploadProgressRegistry
}

func NewUploadHandler(log *logger.Logger, progress *services.UploadProgressRegistry) *UploadHandler {
	return &UploadHandler{
		log:      log.With("handler", "UploadHandler"),
		progress: progress,
	}
}

// Progress reports the 0-100 percentage for an in-flight upload. A 404
// means either the token never existed or the upload already settled;
// the client treats both the same way.
func (h *UploadHandler) Progress(c *gin.Context) {
	itemIndex, err := strconv.Atoi(c.Query("item_index"))
	if err != nil || itemIndex < 0 {
		RespondError(c, http.StatusBadRequest, "invalid item_index", err)
		return
	}
	fileName := c.Query("file_name")
	if fileName == "" {
		RespondError(c, http.StatusBadRequest, "missing file_name", nil)
		return
	}
	pct, ok := h.progress.Get(itemIndex, fileName)
	if !ok {
		RespondError(c, http.StatusNotFound, "no upload in flight for token", nil)
		return
	}
	RespondOK(c, gin.H{"pct": pct})
}
