package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tributewall/tribute-backend/internal/logger"
	"github.com/tributewall/tribute-backend/internal/services"
	"github.com/tributewall/tribute-backend/internal/types"
)

type MediaHandler struct {
	log   *logger.Logger
	media services.MediaService
}

func NewMediaHandler(log *logger.Logger, media services.MediaService) *MediaHandler {
	return &MediaHandler{
		log:   log.With("handler", "MediaHandler"),
		media: media,
	}
}

// List returns the wall, newest first.
func (h *MediaHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	assets, err := h.media.List(c.Request.Context(), limit, offset)
	if err != nil {
		RespondFault(c, "failed to list media", err)
		return
	}
	RespondOK(c, assets)
}

func (h *MediaHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid media id", err)
		return
	}
	asset, err := h.media.GetByID(c.Request.Context(), id)
	if err != nil {
		RespondFault(c, "failed to load media", err)
		return
	}
	RespondOK(c, asset)
}

// Create ingests one multipart upload. The request blocks until the
// transfer settles; the client watches the progress token meanwhile.
func (h *MediaHandler) Create(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "missing file part", err)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "unreadable file part", err)
		return
	}
	defer file.Close()
	payload, err := io.ReadAll(file)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "failed to read file part", err)
		return
	}

	itemIndex, _ := strconv.Atoi(c.DefaultPostForm("item_index", "0"))
	frameOffset, _ := strconv.ParseFloat(c.DefaultPostForm("frame_offset_sec", "0"), 64)
	kind := types.MediaKind(c.DefaultPostForm("kind", string(types.MediaKindVideo)))

	asset, err := h.media.Create(c.Request.Context(), services.CreateMediaInput{
		Kind:           kind,
		Title:          c.PostForm("title"),
		Description:    c.PostForm("description"),
		FileName:       fileHeader.Filename,
		ItemIndex:      itemIndex,
		Payload:        payload,
		FrameOffsetSec: frameOffset,
	})
	if err != nil {
		RespondFault(c, "upload failed", err)
		return
	}
	c.JSON(http.StatusCreated, asset)
}

func (h *MediaHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid media id", err)
		return
	}
	if err := h.media.Delete(c.Request.Context(), id); err != nil {
		RespondFault(c, "failed to delete media", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Transcribe is the fire-and-forget trigger: validate, kick the
// pipeline, answer 202. The caller never awaits completion; the
// transcript arrives over the SSE stream.
func (h *MediaHandler) Transcribe(c *gin.Context) {
	var body struct {
		VideoID  string `json:"videoId"`
		VideoURL string `json:"videoUrl"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	pathID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid media id", err)
		return
	}
	if body.VideoID != "" && body.VideoID != pathID.String() {
		RespondError(c, http.StatusBadRequest, "videoId does not match path", nil)
		return
	}

	if err := h.media.TriggerTranscription(c.Request.Context(), pathID, body.VideoURL); err != nil {
		RespondFault(c, "failed to start transcription", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}
