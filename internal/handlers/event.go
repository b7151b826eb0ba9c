package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tributewall/tribute-backend/internal/logger"
	"github.com/tributewall/tribute-backend/internal/pkg/faults"
	"github.com/tributewall/tribute-backend/internal/services"
	"github.com/tributewall/tribute-backend/internal/types"
)

type EventHandler struct {
	log    *logger.Logger
	events services.EventService
}

func NewEventHandler(log *logger.Logger, events services.EventService) *EventHandler {
	return &EventHandler{
		log:    log.With("handler", "EventHandler"),
		events: events,
	}
}

type eventBody struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Date        *time.Time `json:"date"`
}

func (h *EventHandler) List(c *gin.Context) {
	events, err := h.events.List(c.Request.Context())
	if err != nil {
		RespondFault(c, "failed to list events", err)
		return
	}
	RespondOK(c, events)
}

func (h *EventHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid event id", err)
		return
	}
	event, err := h.events.GetByID(c.Request.Context(), id)
	if err != nil {
		RespondFault(c, "failed to load event", err)
		return
	}
	RespondOK(c, event)
}

func (h *EventHandler) Create(c *gin.Context) {
	var body eventBody
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	in := services.CreateEventInput{
		Title:       body.Title,
		Description: body.Description,
	}
	if body.Date != nil {
		in.Date = *body.Date
	}
	event, err := h.events.Create(c.Request.Context(), in)
	if err != nil {
		RespondFault(c, "failed to create event", err)
		return
	}
	c.JSON(http.StatusCreated, event)
}

func (h *EventHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid event id", err)
		return
	}
	var body struct {
		Title       *string    `json:"title"`
		Description *string    `json:"description"`
		Date        *time.Time `json:"date"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	event, err := h.events.Update(c.Request.Context(), id, services.UpdateEventInput{
		Title:       body.Title,
		Description: body.Description,
		Date:        body.Date,
	})
	if err != nil {
		RespondFault(c, "failed to update event", err)
		return
	}
	RespondOK(c, event)
}

// Delete cascades over the gallery. A partial cascade still removes
// the event; the response lists what could not be cleaned up.
func (h *EventHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid event id", err)
		return
	}
	err = h.events.Delete(c.Request.Context(), id)
	var partial *faults.PartialCascadeFailure
	if errors.As(err, &partial) {
		c.JSON(http.StatusMultiStatus, gin.H{
			"status":      "deleted with leftovers",
			"failed_keys": partial.FailedKeys,
		})
		return
	}
	if err != nil {
		RespondFault(c, "failed to delete event", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *EventHandler) AddGalleryItem(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid event id", err)
		return
	}
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

	item, err := h.events.AddGalleryItem(c.Request.Context(), eventID, services.AddGalleryItemInput{
		Kind:         types.MediaKind(c.DefaultPostForm("kind", string(types.MediaKindImage))),
		Title:        c.PostForm("title"),
		UploaderName: c.PostForm("uploader_name"),
		FileName:     fileHeader.Filename,
		ItemIndex:    itemIndex,
		Payload:      payload,
	})
	if err != nil {
		RespondFault(c, "failed to add gallery item", err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *EventHandler) RemoveGalleryItems(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid event id", err)
		return
	}
	var body struct {
		IDs []uuid.UUID `json:"ids"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := h.events.RemoveGalleryItems(c.Request.Context(), eventID, body.IDs); err != nil {
		RespondFault(c, "failed to remove gallery items", err)
		return
	}
	c.Status(http.StatusNoContent)
}
